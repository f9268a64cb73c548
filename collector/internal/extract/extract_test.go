package extract

import (
	"strings"
	"testing"
	"time"

	"github.com/induslabs/pulse/collector/internal/store"
)

func fixedNow() time.Time {
	return time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
}

func newReplyReconciler(parentID string) *reconciler {
	return &reconciler{
		parentID:     parentID,
		sourceType:   store.SourceTimelineReply,
		sourceDetail: "@SarvamAI/" + parentID,
		parentText:   "Announcing something",
		parentURL:    "https://x.com/SarvamAI/status/" + parentID,
		seen:         make(map[string]bool),
		now:          fixedNow,
	}
}

func TestReconciler_DedupAcrossPasses(t *testing.T) {
	rec := newReplyReconciler("100")

	// First scroll pass renders two replies.
	rec.add(candidate{href: "/alice/status/101", text: "love the app", name: "Alice"})
	rec.add(candidate{href: "/bob/status/102", text: "please add widgets", name: "Bob"})

	// Second pass: the virtualized feed re-renders 101 plus a new reply.
	rec.add(candidate{href: "/alice/status/101", text: "love the app", name: "Alice"})
	rec.add(candidate{href: "/carol/status/103", text: "crashes on login", name: "Carol"})

	res := rec.result()
	if len(res.Items) != 3 {
		t.Fatalf("items: got %d, want 3", len(res.Items))
	}
	ids := map[string]int{}
	for _, it := range res.Items {
		ids[it.ID]++
	}
	if ids["101"] != 1 {
		t.Fatalf("re-rendered id emitted %d times", ids["101"])
	}
}

func TestReconciler_SkipsParentPost(t *testing.T) {
	rec := newReplyReconciler("100")

	// The parent is the first article on its own permalink page.
	rec.add(candidate{href: "/SarvamAI/status/100", text: "Announcing something"})
	rec.add(candidate{href: "/dave/status/104", text: "nice"})

	res := rec.result()
	if len(res.Items) != 1 || res.Items[0].ID != "104" {
		t.Fatalf("items: %+v", res.Items)
	}
	if res.Skipped != 0 {
		t.Fatalf("parent post should not count as a skip, got %d", res.Skipped)
	}
}

func TestReconciler_MalformedPermalinkIsSkip(t *testing.T) {
	rec := newReplyReconciler("100")

	rec.add(candidate{href: ""})
	rec.add(candidate{href: "/about/privacy"})
	rec.add(candidate{href: "/eve/status/105", text: "works"})

	res := rec.result()
	if len(res.Items) != 1 {
		t.Fatalf("items: got %d, want 1", len(res.Items))
	}
	if res.Skipped != 2 {
		t.Fatalf("skipped: got %d, want 2", res.Skipped)
	}
}

func TestReconciler_MissingSubElementsYieldEmptyFields(t *testing.T) {
	rec := newReplyReconciler("100")

	rec.add(candidate{href: "/frank/status/106"})

	res := rec.result()
	if len(res.Items) != 1 {
		t.Fatalf("items: got %d", len(res.Items))
	}
	it := res.Items[0]
	if it.Text != "" {
		t.Fatalf("text: got %q", it.Text)
	}
	// Display name falls back to the handle from the permalink.
	if it.AuthorName != "frank" || it.AuthorHandle != "frank" {
		t.Fatalf("author: %q @%q", it.AuthorName, it.AuthorHandle)
	}
	if it.CreatedAt != "" {
		t.Fatalf("created_at: got %q, want empty", it.CreatedAt)
	}
	if it.CollectedAt != "2026-03-01T10:00:00Z" {
		t.Fatalf("collected_at: got %q", it.CollectedAt)
	}
}

func TestReconciler_ItemFields(t *testing.T) {
	rec := newReplyReconciler("100")

	rec.add(candidate{
		href:     "/grace/status/107?ref_src=abc",
		text:     "heating issue on my phone",
		name:     "Grace H",
		datetime: "2026-02-28T18:30:00.000Z",
	})

	res := rec.result()
	it := res.Items[0]
	if it.URL != "https://x.com/grace/status/107" {
		t.Fatalf("url: %q", it.URL)
	}
	if it.SourceType != store.SourceTimelineReply {
		t.Fatalf("source_type: %q", it.SourceType)
	}
	if it.SourceDetail != "@SarvamAI/100" {
		t.Fatalf("source_detail: %q", it.SourceDetail)
	}
	if it.ParentURL != "https://x.com/SarvamAI/status/100" {
		t.Fatalf("parent_url: %q", it.ParentURL)
	}
	if it.CreatedAt != "2026-02-28T18:30:00Z" {
		t.Fatalf("created_at not canonical: %q", it.CreatedAt)
	}
	if it.Likes != 0 || it.Retweets != 0 || it.Replies != 0 {
		t.Fatalf("engagement should default to zero")
	}
}

func TestReconciler_SearchFilterGate(t *testing.T) {
	filter := NewRelevanceFilter([]string{"spam"}, []string{"indus"})
	rec := &reconciler{
		sourceType:   store.SourceKeywordMention,
		sourceDetail: "indus app",
		parentText:   "indus app",
		parentURL:    "https://x.com/search?q=indus%20app&f=latest",
		filter:       filter,
		seen:         make(map[string]bool),
		now:          fixedNow,
	}

	rec.add(candidate{href: "/a/status/201", text: "spam about indus"})
	rec.add(candidate{href: "/b/status/202", text: "love indus app"})
	rec.add(candidate{href: "/c/status/203", text: "random tweet"})
	// Handle-only signal match.
	rec.add(candidate{href: "/indusfan/status/204", text: "just downloaded it"})

	res := rec.result()
	if len(res.Items) != 2 {
		t.Fatalf("items: got %d, want 2", len(res.Items))
	}
	if res.Items[0].ID != "202" || res.Items[1].ID != "204" {
		t.Fatalf("accepted: %s, %s", res.Items[0].ID, res.Items[1].ID)
	}
	if res.Filtered != 2 {
		t.Fatalf("filtered: got %d, want 2", res.Filtered)
	}

	// A filtered id stays rejected when the feed re-renders it.
	rec.add(candidate{href: "/a/status/201", text: "spam about indus"})
	if got := len(rec.result().Items); got != 2 {
		t.Fatalf("re-rendered filtered id accepted: %d items", got)
	}
}

func TestRelevanceFilter(t *testing.T) {
	f := NewRelevanceFilter([]string{"spam"}, []string{"indus"})

	tests := []struct {
		text   string
		handle string
		want   bool
	}{
		{"spam about indus", "a", false},
		{"love indus app", "b", true},
		{"random tweet", "c", false},
		{"SPAM mentioning Indus", "d", false}, // exclude is case-insensitive
		{"Indus is great", "e", true},
		{"great app honestly", "TeamIndus", true}, // signal via handle
		{"", "nobody", false},
	}
	for _, tt := range tests {
		if got := f.Accept(tt.text, tt.handle); got != tt.want {
			t.Fatalf("Accept(%q, %q): got %v, want %v", tt.text, tt.handle, got, tt.want)
		}
	}
}

func TestSearchURL(t *testing.T) {
	since := time.Date(2026, 2, 25, 8, 0, 0, 0, time.UTC)
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	got := SearchURL(`"indus app"`, since, now)
	want := "https://x.com/search?q=%22indus%20app%22%20since:2026-02-25%20until:2026-03-02&src=typed_query&f=latest"
	if got != want {
		t.Fatalf("SearchURL:\n got %s\nwant %s", got, want)
	}

	ctx := searchContextURL("indus", since, now)
	if strings.Contains(ctx, "typed_query") {
		t.Fatalf("context url should drop typed_query marker: %s", ctx)
	}
	if !strings.HasSuffix(ctx, "&f=latest") {
		t.Fatalf("context url: %s", ctx)
	}
}

func TestOptionsDefaults(t *testing.T) {
	var o Options
	o.defaults()
	if o.MaxScrolls != 5 {
		t.Fatalf("MaxScrolls: %d", o.MaxScrolls)
	}
	if o.SettleDelay != 3*time.Second {
		t.Fatalf("SettleDelay: %v", o.SettleDelay)
	}
	if o.ScrollStep != 2000 {
		t.Fatalf("ScrollStep: %d", o.ScrollStep)
	}
	if o.ScrollDelay != 2*time.Second {
		t.Fatalf("ScrollDelay: %v", o.ScrollDelay)
	}
}
