// Package timefmt normalizes the platform's assorted timestamp formats to
// one canonical representation.
//
// The store compares created_at values lexicographically, which is only
// correct when every stored value shares one exact format. Normalize is the
// single funnel enforcing that invariant: canonical RFC 3339 UTC out, or
// empty when the input matches no known format (empty sorts as
// "always in range" rather than being dropped).
package timefmt

import "time"

// parseFormats is the fallback chain, tried in order. The first is the
// platform API's legacy format; naive formats are assumed UTC.
var parseFormats = []string{
	"Mon Jan 2 15:04:05 -0700 2006",
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// Parse attempts the fallback chain on a raw timestamp.
func Parse(raw string) (time.Time, bool) {
	if raw == "" {
		return time.Time{}, false
	}
	for _, layout := range parseFormats {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}

// Format renders a time in the canonical stored representation.
func Format(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

// Normalize converts a raw platform timestamp to the canonical stored
// representation, or "" when it cannot be parsed.
func Normalize(raw string) string {
	t, ok := Parse(raw)
	if !ok {
		return ""
	}
	return Format(t)
}

// OnOrAfter reports whether a raw timestamp is at or after since.
// Empty or unparsable timestamps are conservatively kept.
func OnOrAfter(raw string, since time.Time) bool {
	t, ok := Parse(raw)
	if !ok {
		return true
	}
	return !t.Before(since)
}
