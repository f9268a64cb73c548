package collector

import "strings"

// Feedback categories produced by Classify.
const (
	CategoryFeatureRequest  = "feature_request"
	CategoryProductFeedback = "product_feedback"
	CategoryGeneralFeedback = "general_feedback"
)

// Classify assigns a feedback category to text by counting case-insensitive
// substring hits against the three signal sets. The tie-break order is part
// of the contract: explicit feature asks outrank product complaints, which
// outrank generic sentiment. Text matching nothing is general feedback.
func Classify(text string) string {
	lower := strings.ToLower(text)
	fr := countSignals(lower, featureRequestSignals)
	pf := countSignals(lower, productFeedbackSignals)
	gf := countSignals(lower, generalFeedbackSignals)

	switch {
	case fr > 0 && fr >= pf && fr >= gf:
		return CategoryFeatureRequest
	case pf > 0 && pf >= gf:
		return CategoryProductFeedback
	case gf > 0:
		return CategoryGeneralFeedback
	}
	return CategoryGeneralFeedback
}

func countSignals(lower string, signals []string) int {
	n := 0
	for _, s := range signals {
		if strings.Contains(lower, s) {
			n++
		}
	}
	return n
}
