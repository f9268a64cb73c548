package collector

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

// relativeRE matches relative window expressions like "12h", "3d", "2w", "1m".
var relativeRE = regexp.MustCompile(`(?i)^(\d+)\s*([hdwm])$`)

// ResolveSince turns a window expression into an absolute UTC time.
//
// Accepted forms: relative ("12h", "3d", "2w", "1m" where a month counts as
// 30 days), or literal "2006-01-02 15:04" / "2006-01-02" interpreted as UTC.
// An empty expression means the default last-24-hours window. Anything else
// also falls back to last 24 hours; the boolean is false only in that case so
// the caller can warn. Never errors.
func ResolveSince(s string) (time.Time, bool) {
	now := time.Now().UTC()
	s = strings.TrimSpace(s)
	if s == "" {
		return now.Add(-24 * time.Hour), true
	}

	if m := relativeRE.FindStringSubmatch(s); m != nil {
		amount, _ := strconv.Atoi(m[1])
		var unit time.Duration
		switch strings.ToLower(m[2]) {
		case "h":
			unit = time.Hour
		case "d":
			unit = 24 * time.Hour
		case "w":
			unit = 7 * 24 * time.Hour
		case "m":
			unit = 30 * 24 * time.Hour
		}
		return now.Add(-time.Duration(amount) * unit), true
	}

	for _, layout := range []string{"2006-01-02 15:04", "2006-01-02"} {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return t, true
		}
	}

	return now.Add(-24 * time.Hour), false
}
