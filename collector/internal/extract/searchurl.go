package extract

import (
	"strings"
	"time"
)

// SearchURL builds the x.com search-results URL for a query scoped to
// [since, now+1d]. The until bound is tomorrow so posts from the current
// partial day are included; "f=latest" selects chronological results.
func SearchURL(query string, since, now time.Time) string {
	return "https://x.com/search?q=" + encodeSearchQuery(query, since, now) +
		"&src=typed_query&f=latest"
}

// searchContextURL is the parent_url recorded on keyword mentions: the same
// search without the typed_query marker.
func searchContextURL(query string, since, now time.Time) string {
	return "https://x.com/search?q=" + encodeSearchQuery(query, since, now) + "&f=latest"
}

func encodeSearchQuery(query string, since, now time.Time) string {
	full := query +
		" since:" + since.UTC().Format("2006-01-02") +
		" until:" + now.UTC().AddDate(0, 0, 1).Format("2006-01-02")
	// Only spaces and quotes need escaping in practice; the search operators
	// must survive as-is.
	full = strings.ReplaceAll(full, " ", "%20")
	return strings.ReplaceAll(full, `"`, "%22")
}
