package collector

import "testing"

func TestClassify(t *testing.T) {
	cases := []struct {
		text string
		want string
	}{
		// "please add" and "dark mode" tie at one hit each; feature asks win.
		{"Please add dark mode support", CategoryFeatureRequest},
		{"PLS ADD HINDI SUPPORT", CategoryFeatureRequest},
		{"The app keeps crashing after every update", CategoryProductFeedback},
		{"Congrats to the whole team, proud to see this great initiative", CategoryGeneralFeedback},
		{"what time does the event start tomorrow", CategoryGeneralFeedback},
	}
	for _, tc := range cases {
		if got := Classify(tc.text); got != tc.want {
			t.Errorf("Classify(%q) = %q, want %q", tc.text, got, tc.want)
		}
	}
}

func TestClassify_ProductOutweighsFeature(t *testing.T) {
	// One feature hit ("needs to") against several product hits.
	got := Classify("needs to fix the app, please improve the performance")
	if got != CategoryProductFeedback {
		t.Errorf("got %q, want %q", got, CategoryProductFeedback)
	}
}

func TestClassify_NoSignalsIsGeneral(t *testing.T) {
	if got := Classify(""); got != CategoryGeneralFeedback {
		t.Errorf("empty text: got %q, want %q", got, CategoryGeneralFeedback)
	}
}
