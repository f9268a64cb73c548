package extract

import "strings"

// RelevanceFilter narrows open-ended search results to on-topic mentions.
// Exclusion is checked first and wins outright; a surviving candidate is then
// kept only if text-plus-handle carries at least one relevance signal.
type RelevanceFilter struct {
	excludes []string
	signals  []string
}

// NewRelevanceFilter builds a filter from the configured term lists.
// Matching is case-insensitive substring.
func NewRelevanceFilter(excludeTerms, relevanceSignals []string) *RelevanceFilter {
	return &RelevanceFilter{
		excludes: lowerAll(excludeTerms),
		signals:  lowerAll(relevanceSignals),
	}
}

// Accept reports whether a candidate post passes the two-stage gate.
func (f *RelevanceFilter) Accept(text, handle string) bool {
	textLower := strings.ToLower(text)

	for _, ex := range f.excludes {
		if strings.Contains(textLower, ex) {
			return false
		}
	}

	// Signals may match the author handle too: an account named after the
	// product is itself a relevance hit.
	combined := textLower + " " + strings.ToLower(handle)
	for _, sig := range f.signals {
		if strings.Contains(combined, sig) {
			return true
		}
	}
	return false
}

func lowerAll(terms []string) []string {
	out := make([]string, 0, len(terms))
	for _, t := range terms {
		out = append(out, strings.ToLower(t))
	}
	return out
}
