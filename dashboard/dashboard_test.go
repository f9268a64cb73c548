package dashboard

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/induslabs/pulse/collector"
	"github.com/induslabs/pulse/dbopen"
	"github.com/induslabs/pulse/feedback"
	"github.com/induslabs/pulse/guard"
	"github.com/induslabs/pulse/observability"
)

type fakeCollector struct {
	mu        sync.Mutex
	items     []*collector.Item
	listSince string
	listUntil string

	runItems []*collector.Item
	runLines []string
	runErr   error
	runSince string

	stats      *collector.Stats
	statsCalls atomic.Int32

	runs []*collector.RunRecord

	runStarted chan struct{}
	runRelease chan struct{}
}

func (f *fakeCollector) Run(_ context.Context, since string, progress func(string)) ([]*collector.Item, error) {
	f.mu.Lock()
	f.runSince = since
	f.mu.Unlock()
	if f.runStarted != nil {
		close(f.runStarted)
	}
	if f.runRelease != nil {
		<-f.runRelease
	}
	for _, line := range f.runLines {
		progress(line)
	}
	return f.runItems, f.runErr
}

func (f *fakeCollector) List(_ context.Context, since, until string) ([]*collector.Item, error) {
	f.mu.Lock()
	f.listSince, f.listUntil = since, until
	f.mu.Unlock()
	return f.items, nil
}

func (f *fakeCollector) Stats(context.Context) (*collector.Stats, error) {
	f.statsCalls.Add(1)
	if f.stats == nil {
		return &collector.Stats{}, nil
	}
	return f.stats, nil
}

func (f *fakeCollector) RunHistory(_ context.Context, limit int) ([]*collector.RunRecord, error) {
	if limit > 0 && limit < len(f.runs) {
		return f.runs[:limit], nil
	}
	return f.runs, nil
}

func (f *fakeCollector) LastRun(context.Context) (*collector.RunRecord, error) {
	if len(f.runs) == 0 {
		return nil, nil
	}
	return f.runs[0], nil
}

func (f *fakeCollector) lastRunSince() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.runSince
}

func (f *fakeCollector) lastListWindow() (string, string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.listSince, f.listUntil
}

func newTestServer(t *testing.T, col Collector, opts ...Option) (*Server, *httptest.Server) {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte("adminindus2026"), bcrypt.MinCost)
	if err != nil {
		t.Fatal(err)
	}
	base := []Option{WithClock(func() time.Time { return testNow })}
	srv, err := New(col, Config{
		Secret:   []byte("0123456789abcdef0123456789abcdef"),
		Username: "indus2026",
		PassHash: hash,
		Handle:   "acmeai",
	}, append(base, opts...)...)
	if err != nil {
		t.Fatal(err)
	}
	ts := httptest.NewServer(srv.Router())
	t.Cleanup(ts.Close)
	return srv, ts
}

func authedClient(t *testing.T, ts *httptest.Server) *http.Client {
	t.Helper()
	jar, err := cookiejar.New(nil)
	if err != nil {
		t.Fatal(err)
	}
	client := &http.Client{Jar: jar}
	resp, err := client.PostForm(ts.URL+"/login", url.Values{
		"username": {"indus2026"},
		"password": {"adminindus2026"},
	})
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("login: status %d", resp.StatusCode)
	}
	return client
}

func fetchBody(t *testing.T, client *http.Client, url string) (int, string) {
	t.Helper()
	resp, err := client.Get(url)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	b, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatal(err)
	}
	return resp.StatusCode, string(b)
}

func TestNew_Validation(t *testing.T) {
	hash := []byte("$2a$04$notarealhashbutnonempty......")
	secret := []byte("0123456789abcdef0123456789abcdef")

	if _, err := New(nil, Config{Secret: secret, Username: "u", PassHash: hash}); err == nil {
		t.Error("expected error for nil collector")
	}
	if _, err := New(&fakeCollector{}, Config{Secret: []byte("short"), Username: "u", PassHash: hash}); !errors.Is(err, guard.ErrSecretTooShort) {
		t.Errorf("short secret: got %v", err)
	}
	if _, err := New(&fakeCollector{}, Config{Secret: secret}); err == nil {
		t.Error("expected error for missing credentials")
	}
}

func TestLoginFlow(t *testing.T) {
	_, ts := newTestServer(t, &fakeCollector{})

	jar, _ := cookiejar.New(nil)
	client := &http.Client{Jar: jar}

	// Unauthenticated page requests land on the login form.
	code, body := fetchBody(t, client, ts.URL+"/")
	if code != http.StatusOK || !strings.Contains(body, "Sign in to continue") {
		t.Fatalf("unauthenticated /: code %d, body %.120q", code, body)
	}

	// Wrong password: flash message on the login page, still no session.
	resp, err := client.PostForm(ts.URL+"/login", url.Values{
		"username": {"indus2026"},
		"password": {"nope"},
	})
	if err != nil {
		t.Fatal(err)
	}
	b, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if !strings.Contains(string(b), "Invalid credentials") {
		t.Fatalf("failed login: flash missing, body %.200q", string(b))
	}

	// Right credentials: redirected to the dashboard with a session.
	resp, err = client.PostForm(ts.URL+"/login", url.Values{
		"username": {"indus2026"},
		"password": {"adminindus2026"},
	})
	if err != nil {
		t.Fatal(err)
	}
	b, _ = io.ReadAll(resp.Body)
	resp.Body.Close()
	page := string(b)
	if !strings.Contains(page, "Pulse Feedback Dashboard") {
		t.Fatalf("dashboard not rendered after login: %.200q", page)
	}
	if !strings.Contains(page, "indus2026") {
		t.Error("operator name missing from page")
	}
}

func TestDashboardRendersWindow(t *testing.T) {
	col := &fakeCollector{
		items: []*collector.Item{
			viewItem("1", collector.SourceTimelineReply, "Launch day!", "@acmeai/1801"),
			viewItem("2", collector.SourceThreadReply, "Roadmap thread", "@acmeai/1900"),
			viewItem("3", collector.SourceKeywordMention, "acme ai feedback", "acme ai feedback"),
		},
		stats: &collector.Stats{Total: 3},
	}
	_, ts := newTestServer(t, col)
	client := authedClient(t, ts)

	code, body := fetchBody(t, client, ts.URL+"/?range=24h")
	if code != http.StatusOK {
		t.Fatalf("status %d", code)
	}
	for _, want := range []string{
		"@acmeai Timeline (1)",
		"Tracked Threads (1)",
		"Broader Mentions (1)",
		"THREAD by @acmeai",
		"SEARCH QUERY",
		"please add offline mode",
		"View on X →",
		"Aug 19, 12:00 PM  →  Aug 20, 12:00 PM UTC",
	} {
		if !strings.Contains(body, want) {
			t.Errorf("page missing %q", want)
		}
	}
	since, until := col.lastListWindow()
	if since != "2026-08-19T12:00:00Z" || until != "2026-08-20T12:00:00Z" {
		t.Errorf("list window %q..%q", since, until)
	}
}

func TestDashboardEscapesItemText(t *testing.T) {
	it := viewItem("1", collector.SourceTimelineReply, "Launch day!", "@acmeai/1801")
	it.Text = "broke it <script>alert(1)</script>"
	col := &fakeCollector{items: []*collector.Item{it}}
	_, ts := newTestServer(t, col)
	client := authedClient(t, ts)

	_, body := fetchBody(t, client, ts.URL+"/")
	if strings.Contains(body, "<script>alert(1)") {
		t.Fatal("item text rendered unescaped")
	}
	if !strings.Contains(body, "&lt;script&gt;alert(1)") {
		t.Error("escaped item text missing")
	}
}

func TestCollectStreamsProgress(t *testing.T) {
	col := &fakeCollector{
		runLines: []string{
			"Collecting feedback since: 2026-08-17 12:00 UTC",
			"Done! 2 new items collected.",
		},
		runItems: []*collector.Item{{ID: "1"}, {ID: "2"}},
	}
	_, ts := newTestServer(t, col)
	client := authedClient(t, ts)

	resp, err := client.Post(ts.URL+"/api/collect?range=3d", "", nil)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status %d", resp.StatusCode)
	}
	b, _ := io.ReadAll(resp.Body)
	body := string(b)
	for _, want := range []string{
		"Collecting feedback since: 2026-08-17 12:00 UTC",
		"Done! 2 new items collected.",
		"Fetched 2 new replies!",
	} {
		if !strings.Contains(body, want) {
			t.Errorf("stream missing %q, got %q", want, body)
		}
	}
	if got := col.lastRunSince(); got != "72h" {
		t.Errorf("run since %q, want 72h", got)
	}
}

func TestCollectNoNewItems(t *testing.T) {
	col := &fakeCollector{}
	_, ts := newTestServer(t, col)
	client := authedClient(t, ts)

	resp, err := client.Post(ts.URL+"/api/collect", "", nil)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	b, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(b), "No new replies (all already in DB)") {
		t.Errorf("body %q", string(b))
	}
	// Default window when no range is given.
	if got := col.lastRunSince(); got != "168h" {
		t.Errorf("run since %q, want 168h", got)
	}
}

func TestCollectErrorSurfacedVerbatim(t *testing.T) {
	col := &fakeCollector{
		runLines: []string{"Collecting feedback since: 2026-08-19 12:00 UTC"},
		runErr:   errors.New("tab crashed: target closed"),
	}
	_, ts := newTestServer(t, col)
	client := authedClient(t, ts)

	resp, err := client.Post(ts.URL+"/api/collect?range=24h", "", nil)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	b, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(b), "ERROR: tab crashed: target closed") {
		t.Errorf("error not surfaced: %q", string(b))
	}
}

func TestCollectConflict(t *testing.T) {
	col := &fakeCollector{
		runStarted: make(chan struct{}),
		runRelease: make(chan struct{}),
	}
	_, ts := newTestServer(t, col)
	client := authedClient(t, ts)

	first := make(chan string, 1)
	go func() {
		resp, err := client.Post(ts.URL+"/api/collect", "", nil)
		if err != nil {
			first <- "request error: " + err.Error()
			return
		}
		defer resp.Body.Close()
		b, _ := io.ReadAll(resp.Body)
		first <- string(b)
	}()

	select {
	case <-col.runStarted:
	case <-time.After(2 * time.Second):
		t.Fatal("first collect never started")
	}

	// Second trigger while the first run holds the lock.
	resp, err := client.Post(ts.URL+"/api/collect", "", nil)
	if err != nil {
		t.Fatal(err)
	}
	b, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("concurrent collect: status %d, body %s", resp.StatusCode, b)
	}

	close(col.runRelease)
	select {
	case body := <-first:
		if !strings.Contains(body, "No new replies") {
			t.Errorf("first collect body %q", body)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("first collect never finished")
	}
}

func TestAPIItems(t *testing.T) {
	col := &fakeCollector{
		items: []*collector.Item{
			viewItem("1", collector.SourceTimelineReply, "Launch day!", "@acmeai/1801"),
		},
	}
	_, ts := newTestServer(t, col)
	client := authedClient(t, ts)

	code, body := fetchBody(t, client, ts.URL+"/api/items?range=2h")
	if code != http.StatusOK {
		t.Fatalf("status %d", code)
	}
	var out struct {
		Window struct {
			Range string `json:"range"`
			Since string `json:"since"`
			Until string `json:"until"`
		} `json:"window"`
		Count int               `json:"count"`
		Items []*collector.Item `json:"items"`
	}
	if err := json.Unmarshal([]byte(body), &out); err != nil {
		t.Fatal(err)
	}
	if out.Count != 1 || len(out.Items) != 1 {
		t.Errorf("count %d items %d", out.Count, len(out.Items))
	}
	if out.Window.Range != "2h" || out.Window.Since != "2026-08-20T10:00:00Z" {
		t.Errorf("window %+v", out.Window)
	}
}

func TestAPIRunsAndStatus(t *testing.T) {
	col := &fakeCollector{
		runs: []*collector.RunRecord{
			{ID: "run_2", Status: collector.RunStatusOK, NewItems: 3, StartedAt: 200},
			{ID: "run_1", Status: collector.RunStatusError, StartedAt: 100},
		},
	}
	_, ts := newTestServer(t, col)
	client := authedClient(t, ts)

	code, body := fetchBody(t, client, ts.URL+"/api/runs?limit=1")
	if code != http.StatusOK {
		t.Fatalf("runs: status %d", code)
	}
	var runsOut struct {
		Count int                    `json:"count"`
		Runs  []*collector.RunRecord `json:"runs"`
	}
	if err := json.Unmarshal([]byte(body), &runsOut); err != nil {
		t.Fatal(err)
	}
	if runsOut.Count != 1 || runsOut.Runs[0].ID != "run_2" {
		t.Errorf("runs %+v", runsOut)
	}

	code, body = fetchBody(t, client, ts.URL+"/api/status")
	if code != http.StatusOK {
		t.Fatalf("status: %d", code)
	}
	var statusOut struct {
		LastRun *collector.RunRecord `json:"last_run"`
	}
	if err := json.Unmarshal([]byte(body), &statusOut); err != nil {
		t.Fatal(err)
	}
	if statusOut.LastRun == nil || statusOut.LastRun.ID != "run_2" {
		t.Errorf("last run %+v", statusOut.LastRun)
	}
}

func TestAPIStatusMetricTotals(t *testing.T) {
	obsDB := dbopen.OpenMemory(t)
	if err := observability.Init(obsDB); err != nil {
		t.Fatal(err)
	}
	// Buffer of two: the second Record flushes synchronously.
	mm := observability.NewMetricsManager(obsDB, 2, time.Hour)
	defer mm.Close()
	mm.RecordSimple(observability.MetricItemsCollected, 4, "count")
	mm.RecordSimple(observability.MetricNotifyFailureCount, 1, "count")

	// Real clock: the totals window is measured from now, not from the
	// pinned render clock.
	_, ts := newTestServer(t, &fakeCollector{}, WithMetrics(mm), WithClock(time.Now))
	client := authedClient(t, ts)

	code, body := fetchBody(t, client, ts.URL+"/api/status")
	if code != http.StatusOK {
		t.Fatalf("status: %d", code)
	}
	var out struct {
		Metrics map[string]float64 `json:"metrics"`
	}
	if err := json.Unmarshal([]byte(body), &out); err != nil {
		t.Fatal(err)
	}
	if out.Metrics[observability.MetricItemsCollected] != 4 {
		t.Errorf("items total = %v, want 4", out.Metrics[observability.MetricItemsCollected])
	}
	if out.Metrics[observability.MetricNotifyFailureCount] != 1 {
		t.Errorf("notify failures = %v, want 1", out.Metrics[observability.MetricNotifyFailureCount])
	}
}

func TestAPIRequiresSession(t *testing.T) {
	_, ts := newTestServer(t, &fakeCollector{})

	resp, err := http.Get(ts.URL + "/api/stats")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("status %d, want 401", resp.StatusCode)
	}
	var out map[string]string
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatal(err)
	}
	if out["error"] != "not authenticated" {
		t.Errorf("body %+v", out)
	}
}

func TestStatsCacheInvalidation(t *testing.T) {
	col := &fakeCollector{stats: &collector.Stats{Total: 7}}
	srv, ts := newTestServer(t, col)
	client := authedClient(t, ts)

	for i := 0; i < 2; i++ {
		code, body := fetchBody(t, client, ts.URL+"/api/stats")
		if code != http.StatusOK || !strings.Contains(body, `"total":7`) {
			t.Fatalf("stats call %d: code %d body %s", i, code, body)
		}
	}
	if got := col.statsCalls.Load(); got != 1 {
		t.Fatalf("collector stats calls %d, want 1 (cache)", got)
	}

	srv.invalidateStats()
	fetchBody(t, client, ts.URL+"/api/stats")
	if got := col.statsCalls.Load(); got != 2 {
		t.Errorf("collector stats calls after invalidation %d, want 2", got)
	}
}

func TestNotesWidgetMounted(t *testing.T) {
	notes, err := feedback.New(feedback.Config{DB: dbopen.OpenMemory(t)})
	if err != nil {
		t.Fatal(err)
	}
	_, ts := newTestServer(t, &fakeCollector{}, WithNotes(notes))

	// Session required.
	resp, err := http.Get(ts.URL + "/feedback/widget.js")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("unauthenticated widget: status %d", resp.StatusCode)
	}

	client := authedClient(t, ts)
	code, body := fetchBody(t, client, ts.URL+"/feedback/widget.js")
	if code != http.StatusOK || !strings.Contains(body, "pulse-notes") {
		t.Errorf("widget.js: code %d", code)
	}

	// The page advertises the widget script only when mounted.
	_, page := fetchBody(t, client, ts.URL+"/")
	if !strings.Contains(page, "/feedback/widget.js") {
		t.Error("widget script tag missing from dashboard page")
	}
}

func TestHealthzPublic(t *testing.T) {
	_, ts := newTestServer(t, &fakeCollector{})
	code, body := fetchBody(t, &http.Client{}, ts.URL+"/healthz")
	if code != http.StatusOK || !strings.Contains(body, `"status":"ok"`) {
		t.Errorf("healthz: code %d body %s", code, body)
	}
}
