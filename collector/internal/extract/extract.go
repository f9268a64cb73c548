// Package extract drives a browser page through x.com's virtualized feeds
// and turns rendered posts into store items.
//
// Both extraction paths share one scroll-and-reconcile skeleton: enumerate
// every post-shaped element currently rendered, reconcile against a per-call
// seen set (the feed re-renders items after scrolling), scroll forward a
// fixed delta, settle, repeat up to a bounded budget. Element-level failures
// are skips, never aborts; the skip count is reported so callers can notice
// when the upstream DOM has drifted.
package extract

import (
	"context"
	"log/slog"
	"regexp"
	"time"

	"github.com/go-rod/rod"

	"github.com/induslabs/pulse/browser"
	"github.com/induslabs/pulse/collector/internal/store"
	"github.com/induslabs/pulse/collector/internal/timefmt"
)

var permalinkRE = regexp.MustCompile(`/(\w+)/status/(\d+)`)

// Options bounds one extraction call.
type Options struct {
	// MaxScrolls is the scroll budget. Deep curated threads warrant a
	// looser budget than ordinary timeline posts. Default: 5.
	MaxScrolls int

	// SettleDelay is the wait after navigation before the first harvest.
	// Default: 3s.
	SettleDelay time.Duration

	// ScrollStep is the per-pass scroll delta in pixels. Default: 2000.
	ScrollStep int

	// ScrollDelay is the wait after each scroll. Default: 2s.
	ScrollDelay time.Duration

	Logger *slog.Logger
}

func (o *Options) defaults() {
	if o.MaxScrolls <= 0 {
		o.MaxScrolls = 5
	}
	if o.SettleDelay <= 0 {
		o.SettleDelay = 3 * time.Second
	}
	if o.ScrollStep <= 0 {
		o.ScrollStep = 2000
	}
	if o.ScrollDelay <= 0 {
		o.ScrollDelay = 2 * time.Second
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
}

// Target identifies a parent post whose replies are wanted.
type Target struct {
	PostID     string
	Handle     string
	ParentText string // preview or label, recorded on each reply for grouping
	SourceType string // store.SourceTimelineReply or store.SourceThreadReply
}

// Result is the outcome of one extraction call.
type Result struct {
	Items []*store.Item

	// Skipped counts elements dropped because their permalink was missing
	// or malformed. A sudden spike means the selectors have gone stale.
	Skipped int

	// Filtered counts elements rejected by the relevance gate (search only).
	Filtered int
}

// Replies opens a post's permalink page and extracts every visible reply.
// The page is always closed, success or failure.
func Replies(ctx context.Context, mgr *browser.Manager, target Target, opts Options) (*Result, error) {
	opts.defaults()

	parentURL := "https://x.com/" + target.Handle + "/status/" + target.PostID
	page, err := mgr.Open(ctx, parentURL)
	if err != nil {
		return nil, err
	}
	defer page.Close()

	rec := &reconciler{
		parentID:     target.PostID,
		sourceType:   target.SourceType,
		sourceDetail: "@" + target.Handle + "/" + target.PostID,
		parentText:   target.ParentText,
		parentURL:    parentURL,
		seen:         make(map[string]bool),
		now:          time.Now,
	}
	if err := scrollAndReconcile(ctx, page, rec, opts); err != nil {
		return nil, err
	}
	return rec.result(), nil
}

// Search opens a time-scoped search-results page and extracts posts passing
// the relevance filter. The page is always closed, success or failure.
func Search(ctx context.Context, mgr *browser.Manager, query string, filter *RelevanceFilter, since time.Time, opts Options) (*Result, error) {
	opts.defaults()

	now := time.Now()
	page, err := mgr.Open(ctx, SearchURL(query, since, now))
	if err != nil {
		return nil, err
	}
	defer page.Close()

	rec := &reconciler{
		sourceType:   store.SourceKeywordMention,
		sourceDetail: query,
		parentText:   query,
		parentURL:    searchContextURL(query, since, now),
		filter:       filter,
		seen:         make(map[string]bool),
		now:          time.Now,
	}
	if err := scrollAndReconcile(ctx, page, rec, opts); err != nil {
		return nil, err
	}
	return rec.result(), nil
}

func scrollAndReconcile(ctx context.Context, page *rod.Page, rec *reconciler, opts Options) error {
	if err := sleepCtx(ctx, opts.SettleDelay); err != nil {
		return err
	}

	for pass := 0; pass < opts.MaxScrolls; pass++ {
		for _, c := range harvest(ctx, page, opts.Logger) {
			rec.add(c)
		}

		if _, err := page.Context(ctx).Eval(`(step) => window.scrollBy(0, step)`, opts.ScrollStep); err != nil {
			opts.Logger.Debug("extract: scroll failed", "pass", pass, "error", err)
		}
		if err := sleepCtx(ctx, opts.ScrollDelay); err != nil {
			return err
		}
	}
	return nil
}

// candidate is the raw string bundle pulled from one rendered element,
// before any reconciliation.
type candidate struct {
	href     string
	text     string
	name     string
	datetime string
}

// harvest reads every currently rendered post element. Sub-element misses
// leave fields empty; they never abort the pass.
func harvest(ctx context.Context, page *rod.Page, log *slog.Logger) []candidate {
	els, err := page.Context(ctx).Elements(selTweetArticle)
	if err != nil {
		log.Debug("extract: enumerate elements", "error", err)
		return nil
	}

	out := make([]candidate, 0, len(els))
	for _, el := range els {
		var c candidate
		if ok, link, _ := el.Has(selPermalink); ok {
			if href, err := link.Attribute("href"); err == nil && href != nil {
				c.href = *href
			}
		}
		if ok, textEl, _ := el.Has(selTweetText); ok {
			c.text, _ = textEl.Text()
		}
		if ok, nameEl, _ := el.Has(selAuthorName); ok {
			c.name, _ = nameEl.Text()
		}
		if ok, timeEl, _ := el.Has(selTimestamp); ok {
			if dt, err := timeEl.Attribute("datetime"); err == nil && dt != nil {
				c.datetime = *dt
			}
		}
		out = append(out, c)
	}
	return out
}

// reconciler accumulates items across scroll passes, deduplicating against
// re-rendered elements and dropping the parent post itself.
type reconciler struct {
	parentID     string
	sourceType   string
	sourceDetail string
	parentText   string
	parentURL    string
	filter       *RelevanceFilter
	seen         map[string]bool
	now          func() time.Time

	items    []*store.Item
	skipped  int
	filtered int
}

func (r *reconciler) add(c candidate) {
	m := permalinkRE.FindStringSubmatch(c.href)
	if m == nil {
		r.skipped++
		return
	}
	handle, id := m[1], m[2]

	// The parent shows up as the first article on its own permalink page.
	if id == r.parentID {
		return
	}
	if r.seen[id] {
		return
	}
	// Mark before filtering so a rejected id stays rejected on later passes.
	r.seen[id] = true

	if r.filter != nil && !r.filter.Accept(c.text, handle) {
		r.filtered++
		return
	}

	name := c.name
	if name == "" {
		name = handle
	}

	r.items = append(r.items, &store.Item{
		ID:           id,
		AuthorName:   name,
		AuthorHandle: handle,
		Text:         c.text,
		URL:          "https://x.com/" + handle + "/status/" + id,
		SourceType:   r.sourceType,
		SourceDetail: r.sourceDetail,
		ParentText:   r.parentText,
		ParentURL:    r.parentURL,
		CreatedAt:    timefmt.Normalize(c.datetime),
		CollectedAt:  timefmt.Format(r.now()),
	})
}

func (r *reconciler) result() *Result {
	return &Result{Items: r.items, Skipped: r.skipped, Filtered: r.filtered}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
