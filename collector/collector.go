package collector

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/induslabs/pulse/browser"
	"github.com/induslabs/pulse/collector/internal/extract"
	"github.com/induslabs/pulse/collector/internal/store"
	"github.com/induslabs/pulse/collector/internal/timefmt"
	"github.com/induslabs/pulse/collector/internal/timeline"
	"github.com/induslabs/pulse/connectivity"
	"github.com/induslabs/pulse/guard"
	"github.com/induslabs/pulse/idgen"
	"github.com/induslabs/pulse/observability"
)

// runPace is the pause between extraction targets within a run.
const runPace = 2 * time.Second

// Notifier delivers newly collected items to one output channel. Failures
// are logged by the service and never fail a run.
type Notifier interface {
	Name() string
	Notify(ctx context.Context, items []*Item) error
}

// DiscoverFunc finds candidate posts for the monitored account.
type DiscoverFunc func(ctx context.Context, jar browser.Jar, handle string, since time.Time) ([]timeline.Post, error)

// Extractor drives one authenticated browser session for the duration of a
// run. Close releases the underlying browser.
type Extractor interface {
	Replies(ctx context.Context, target extract.Target, opts extract.Options) (*extract.Result, error)
	Search(ctx context.Context, query string, filter *extract.RelevanceFilter, since time.Time, opts extract.Options) (*extract.Result, error)
	Close() error
}

// ExtractorFactory builds the Extractor for one run from the loaded session.
type ExtractorFactory func(ctx context.Context, jar browser.Jar) (Extractor, error)

// Service is the collection pipeline orchestrator.
type Service struct {
	cfg    *Config
	logger *slog.Logger
	db     *sql.DB
	store  *store.Store

	// runMu serializes overlapping Run invocations (dashboard button vs.
	// scheduler tick).
	runMu sync.Mutex

	newID        func() string
	now          func() time.Time
	pace         time.Duration
	urlValidator func(string) error

	discover     DiscoverFunc
	newExtractor ExtractorFactory

	// apiBreaker outlives individual runs so a down discovery API is
	// remembered between scheduler ticks.
	apiBreaker *connectivity.CircuitBreaker

	notifiers []Notifier
	events    *observability.EventLogger
	metrics   *observability.MetricsManager
}

// New creates a collector Service on the given feedback database. The schema
// is applied idempotently.
func New(db *sql.DB, cfg *Config, logger *slog.Logger, opts ...ServiceOption) (*Service, error) {
	if cfg == nil {
		cfg = &Config{}
	}
	cfg.applyDefaults()
	if logger == nil {
		logger = slog.Default()
	}

	if err := store.ApplySchema(db); err != nil {
		return nil, fmt.Errorf("collector: apply schema: %w", err)
	}

	svc := &Service{
		cfg:          cfg,
		logger:       logger,
		db:           db,
		store:        store.NewStore(db),
		newID:        idgen.Prefixed("run_", idgen.Default),
		now:          time.Now,
		pace:         runPace,
		urlValidator: guard.ValidateURL,
		apiBreaker:   connectivity.NewCircuitBreaker(),
	}
	svc.discover = svc.defaultDiscover
	svc.newExtractor = svc.defaultExtractor

	for _, opt := range opts {
		opt(svc)
	}

	if cfg.Notification.Webhook.Enabled {
		if err := svc.urlValidator(cfg.Notification.Webhook.URL); err != nil {
			return nil, fmt.Errorf("collector: webhook url: %w", err)
		}
	}
	if cfg.Platform.MirrorURL != "" {
		if err := svc.urlValidator(cfg.Platform.MirrorURL); err != nil {
			return nil, fmt.Errorf("collector: mirror url: %w", err)
		}
	}

	return svc, nil
}

// ServiceOption configures a Service during creation.
type ServiceOption func(*Service)

// WithNotifier appends an output channel invoked with each run's new items.
func WithNotifier(n Notifier) ServiceOption {
	return func(svc *Service) { svc.notifiers = append(svc.notifiers, n) }
}

// WithEventLogger wires the observability event log.
func WithEventLogger(ev *observability.EventLogger) ServiceOption {
	return func(svc *Service) { svc.events = ev }
}

// WithMetrics wires the observability metrics manager.
func WithMetrics(m *observability.MetricsManager) ServiceOption {
	return func(svc *Service) { svc.metrics = m }
}

// WithIDGenerator overrides run id generation.
func WithIDGenerator(fn func() string) ServiceOption {
	return func(svc *Service) { svc.newID = fn }
}

// WithClock overrides the time source.
func WithClock(fn func() time.Time) ServiceOption {
	return func(svc *Service) { svc.now = fn }
}

// WithPacing overrides the pause between extraction targets.
func WithPacing(d time.Duration) ServiceOption {
	return func(svc *Service) { svc.pace = d }
}

// WithDiscoverer overrides post discovery.
func WithDiscoverer(fn DiscoverFunc) ServiceOption {
	return func(svc *Service) { svc.discover = fn }
}

// WithExtractorFactory overrides how the per-run browser session is built.
func WithExtractorFactory(fn ExtractorFactory) ServiceOption {
	return func(svc *Service) { svc.newExtractor = fn }
}

// WithURLValidator overrides outbound URL validation (default:
// guard.ValidateURL). Use in tests with httptest servers that listen on
// loopback addresses.
func WithURLValidator(fn func(string) error) ServiceOption {
	return func(svc *Service) { svc.urlValidator = fn }
}

// Config returns the service configuration.
func (svc *Service) Config() *Config { return svc.cfg }

// DB returns the underlying feedback database handle.
func (svc *Service) DB() *sql.DB { return svc.db }

// ApplySchema applies the feedback schema to a database. Exported for
// migration scripts; New already applies it.
func ApplySchema(db *sql.DB) error {
	return store.ApplySchema(db)
}

// Run executes one collection pass: discover the monitored account's recent
// posts, scrape replies for each, scrape replies for every curated thread,
// run the keyword searches, then classify, dedup and persist. It returns
// exactly the newly inserted items.
//
// since is a window expression for ResolveSince. progress, when non-nil,
// receives human-readable lines as the run advances; every line is also
// logged. Runs are serialized: a second caller blocks until the first
// finishes.
func (svc *Service) Run(ctx context.Context, since string, progress func(string)) ([]*Item, error) {
	svc.runMu.Lock()
	defer svc.runMu.Unlock()

	emit := func(msg string) {
		svc.logger.Info(msg)
		if progress != nil {
			progress(msg)
		}
	}

	sinceT, recognized := ResolveSince(since)
	if !recognized {
		svc.logger.Warn("collector: unrecognized time window, using last 24h", "input", since)
	}

	runID := svc.newID()
	started := svc.now()
	if err := svc.store.InsertRun(ctx, &store.RunRecord{
		ID:        runID,
		StartedAt: started.UnixMilli(),
		Since:     timefmt.Format(sinceT),
	}); err != nil {
		return nil, err
	}
	svc.logEvent(ctx, observability.EventRunStarted, runID, "start",
		fmt.Sprintf(`{"since":%q}`, timefmt.Format(sinceT)), true)

	fail := func(err error) ([]*Item, error) {
		svc.finishRun(runID, store.RunStatusError, 0, 0, 0, err)
		svc.logEvent(ctx, observability.EventRunCompleted, runID, "fail", "", false)
		return nil, err
	}

	emit("Collecting feedback since: " + sinceT.Format("2006-01-02 15:04") + " UTC")

	jar, err := browser.LoadJar(svc.cfg.Platform.CookiesFile)
	if err != nil {
		if errors.Is(err, browser.ErrNoCookies) {
			return fail(fmt.Errorf("%w: %s (run pulse-login first)", ErrNoSession, svc.cfg.Platform.CookiesFile))
		}
		return fail(fmt.Errorf("collector: load cookies: %w", err))
	}

	// Part 0: discovery over the API, no browser yet.
	var candidates []timeline.Post
	handle := svc.cfg.Monitor.Handle
	if handle != "" {
		emit(fmt.Sprintf("Fetching @%s post list…", handle))
		candidates, err = svc.discover(ctx, jar, handle, sinceT)
		if err != nil {
			return fail(fmt.Errorf("collector: discover posts: %w", err))
		}
		emit(fmt.Sprintf("Found %d posts from @%s", len(candidates), handle))
	}

	threads := svc.cfg.Monitor.Threads
	queries := svc.cfg.Search.Queries
	total := len(candidates) + len(threads) + len(queries)
	idx := 0

	ex, err := svc.newExtractor(ctx, jar)
	if err != nil {
		return fail(fmt.Errorf("collector: start browser: %w", err))
	}
	defer ex.Close()

	var collected []*Item
	skipped := 0
	searchMatches := 0

	// Part 1: replies to the monitored account's recent posts.
	for _, pt := range candidates {
		idx++
		emit(fmt.Sprintf("[%d/%d] Timeline: %s…", idx, total, clip(pt.Preview, 60)))
		res, err := ex.Replies(ctx, extract.Target{
			PostID:     pt.ID,
			Handle:     pt.Handle,
			ParentText: pt.Preview,
			SourceType: store.SourceTimelineReply,
		}, svc.replyOpts(svc.cfg.Scrape.TimelineScrolls))
		if err != nil {
			return fail(fmt.Errorf("collector: timeline post %s: %w", pt.ID, err))
		}
		emit(fmt.Sprintf("  -> %d replies", len(res.Items)))
		collected = append(collected, res.Items...)
		skipped += res.Skipped
		if err := svc.sleep(ctx); err != nil {
			return fail(err)
		}
	}

	// Part 2: replies to the curated threads, with a deeper scroll budget.
	for _, th := range threads {
		idx++
		label := th.Label
		if label == "" {
			label = th.TweetID
		}
		emit(fmt.Sprintf("[%d/%d] Thread: %s…", idx, total, label))
		res, err := ex.Replies(ctx, extract.Target{
			PostID:     th.TweetID,
			Handle:     th.Handle,
			ParentText: label,
			SourceType: store.SourceThreadReply,
		}, svc.replyOpts(svc.cfg.Scrape.ThreadScrolls))
		if err != nil {
			return fail(fmt.Errorf("collector: thread %s: %w", th.TweetID, err))
		}
		emit(fmt.Sprintf("  -> %d replies", len(res.Items)))
		collected = append(collected, res.Items...)
		skipped += res.Skipped
		if err := svc.sleep(ctx); err != nil {
			return fail(err)
		}
	}

	// Part 3: broader keyword search with the relevance gate.
	if len(queries) > 0 {
		emit(fmt.Sprintf("Searching for %d keyword queries…", len(queries)))
		filter := extract.NewRelevanceFilter(svc.cfg.Search.ExcludeTerms, svc.cfg.Search.RelevanceSignals)
		for _, q := range queries {
			idx++
			emit(fmt.Sprintf("[%d/%d] Search: %s", idx, total, q))
			res, err := ex.Search(ctx, q, filter, sinceT, svc.searchOpts())
			if err != nil {
				return fail(fmt.Errorf("collector: search %q: %w", q, err))
			}
			emit(fmt.Sprintf("  -> %d posts", len(res.Items)))
			collected = append(collected, res.Items...)
			skipped += res.Skipped
			searchMatches += len(res.Items)
			if err := svc.sleep(ctx); err != nil {
				return fail(err)
			}
		}
	}

	// Classify, dedup within the batch, and gate against the store. The
	// store-level ON CONFLICT would catch intra-batch repeats too; the map
	// keeps the returned subset exact when one id arrived via two paths.
	seen := make(map[string]bool, len(collected))
	var fresh []*Item
	for _, it := range collected {
		if seen[it.ID] {
			continue
		}
		seen[it.ID] = true
		it.Category = Classify(it.Text)
		inserted, err := svc.store.InsertIfAbsent(ctx, it)
		if err != nil {
			return fail(fmt.Errorf("collector: insert item %s: %w", it.ID, err))
		}
		if inserted {
			fresh = append(fresh, it)
		}
	}

	emit(fmt.Sprintf("Done! %d new items collected.", len(fresh)))

	// Side effects get only the new subset; their failures never fail a run.
	for _, n := range svc.notifiers {
		if err := n.Notify(ctx, fresh); err != nil {
			svc.logger.Error("collector: notification failed", "channel", n.Name(), "error", err)
			svc.recordMetric(observability.MetricNotifyFailureCount, 1, "count")
		}
	}

	svc.finishRun(runID, store.RunStatusOK, len(fresh), len(collected), skipped, nil)
	svc.logEvent(ctx, observability.EventRunCompleted, runID, "complete",
		fmt.Sprintf(`{"new_items":%d,"scanned":%d,"skipped":%d}`, len(fresh), len(collected), skipped), true)
	svc.recordMetric(observability.MetricRunDurationMs, float64(svc.now().Sub(started).Milliseconds()), "ms")
	svc.recordMetric(observability.MetricItemsCollected, float64(len(fresh)), "count")
	svc.recordMetric(observability.MetricItemsSkipped, float64(skipped), "count")
	svc.recordMetric(observability.MetricPostsDiscovered, float64(len(candidates)), "count")
	svc.recordMetric(observability.MetricSearchMatches, float64(searchMatches), "count")

	return fresh, nil
}

// Start launches the background scheduler when enabled. Non-blocking.
func (svc *Service) Start(ctx context.Context) {
	if !svc.cfg.Scheduler.Enabled {
		return
	}
	go svc.scheduleLoop(ctx)
	svc.logger.Info("collector: scheduler started",
		"interval", svc.cfg.Scheduler.Interval, "window", svc.cfg.Scheduler.Window)
}

func (svc *Service) scheduleLoop(ctx context.Context) {
	ticker := time.NewTicker(svc.cfg.Scheduler.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := svc.Run(ctx, svc.cfg.Scheduler.Window, nil); err != nil {
				svc.logger.Error("collector: scheduled run failed", "error", err)
			}
		}
	}
}

// List returns stored items in the inclusive [since, until] range, newest
// first. Bounds are canonical RFC 3339 UTC strings; empty means unbounded.
// Items stored before the category column existed are classified on the fly.
func (svc *Service) List(ctx context.Context, since, until string) ([]*Item, error) {
	items, err := svc.store.ListRange(ctx, since, until)
	if err != nil {
		return nil, err
	}
	for _, it := range items {
		if it.Category == "" {
			it.Category = Classify(it.Text)
		}
	}
	return items, nil
}

// Stats returns aggregate counters for the dashboard.
func (svc *Service) Stats(ctx context.Context) (*Stats, error) {
	return svc.store.Stats(ctx)
}

// RunHistory returns recent runs, newest first.
func (svc *Service) RunHistory(ctx context.Context, limit int) ([]*RunRecord, error) {
	return svc.store.RunHistory(ctx, limit)
}

// LastRun returns the most recent run, or nil when none exist.
func (svc *Service) LastRun(ctx context.Context) (*RunRecord, error) {
	return svc.store.LastRun(ctx)
}

// --- Internal ---

func (svc *Service) defaultDiscover(ctx context.Context, jar browser.Jar, handle string, since time.Time) ([]timeline.Post, error) {
	d := &timeline.Discoverer{
		API: timeline.NewClient(timeline.Config{
			BaseURL:     svc.cfg.Platform.APIBase,
			BearerToken: svc.cfg.Platform.BearerToken,
			Logger:      svc.logger,
		}, jar),
		Breaker: svc.apiBreaker,
		Logger:  svc.logger,
	}
	if svc.cfg.Platform.MirrorURL != "" {
		d.Mirror = timeline.NewMirror(svc.cfg.Platform.MirrorURL, svc.logger)
	}
	return d.RecentPosts(ctx, handle, since)
}

func (svc *Service) defaultExtractor(ctx context.Context, jar browser.Jar) (Extractor, error) {
	mgr := browser.NewManager(browser.Config{
		RemoteURL: svc.cfg.Browser.Remote,
		Headful:   svc.cfg.Browser.Headful,
		Logger:    svc.logger,
	})
	if _, err := mgr.Start(ctx); err != nil {
		return nil, err
	}
	if err := browser.ApplyCookies(mgr.Browser(), jar); err != nil {
		mgr.Close()
		return nil, err
	}
	return &browserExtractor{mgr: mgr}, nil
}

// browserExtractor binds the extract package to one browser session.
type browserExtractor struct {
	mgr *browser.Manager
}

func (e *browserExtractor) Replies(ctx context.Context, target extract.Target, opts extract.Options) (*extract.Result, error) {
	return extract.Replies(ctx, e.mgr, target, opts)
}

func (e *browserExtractor) Search(ctx context.Context, query string, filter *extract.RelevanceFilter, since time.Time, opts extract.Options) (*extract.Result, error) {
	return extract.Search(ctx, e.mgr, query, filter, since, opts)
}

func (e *browserExtractor) Close() error {
	return e.mgr.Close()
}

func (svc *Service) replyOpts(scrolls int) extract.Options {
	return extract.Options{MaxScrolls: scrolls, Logger: svc.logger}
}

func (svc *Service) searchOpts() extract.Options {
	return extract.Options{
		MaxScrolls:  svc.cfg.Scrape.SearchScrolls,
		SettleDelay: 4 * time.Second,
		Logger:      svc.logger,
	}
}

// finishRun closes the run record. It uses a fresh context so the record is
// written even when the run's context was cancelled.
func (svc *Service) finishRun(runID, status string, newItems, scanned, skipped int, runErr error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	msg := ""
	if runErr != nil {
		msg = runErr.Error()
	}
	err := svc.store.FinishRun(ctx, &store.RunRecord{
		ID:           runID,
		FinishedAt:   svc.now().UnixMilli(),
		Status:       status,
		NewItems:     newItems,
		Scanned:      scanned,
		Skipped:      skipped,
		ErrorMessage: msg,
	})
	if err != nil {
		svc.logger.Error("collector: finish run record", "run_id", runID, "error", err)
	}
}

func (svc *Service) logEvent(ctx context.Context, eventType, runID, action, details string, success bool) {
	if svc.events == nil {
		return
	}
	svc.events.LogEvent(ctx, observability.Event{
		EventType:  eventType,
		EntityType: "run",
		EntityID:   runID,
		Action:     action,
		Details:    details,
		Success:    success,
	})
}

func (svc *Service) recordMetric(name string, value float64, unit string) {
	if svc.metrics == nil {
		return
	}
	svc.metrics.RecordSimple(name, value, unit)
}

func (svc *Service) sleep(ctx context.Context) error {
	if svc.pace <= 0 {
		return nil
	}
	t := time.NewTimer(svc.pace)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func clip(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
