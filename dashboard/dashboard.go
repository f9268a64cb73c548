// Package dashboard serves the operator UI for the feedback pipeline: a
// login-gated, server-rendered view of collected items with time-range
// presets, per-source tabs, a live collect trigger that streams progress, and
// a small JSON API over the same data.
//
// The package accepts the collector through the narrow [Collector] interface
// so it never touches a browser itself; *collector.Service satisfies it.
package dashboard

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/induslabs/pulse/auth"
	"github.com/induslabs/pulse/collector"
	"github.com/induslabs/pulse/feedback"
	"github.com/induslabs/pulse/guard"
	"github.com/induslabs/pulse/observability"
	"github.com/induslabs/pulse/shield"
	"github.com/induslabs/pulse/watch"
)

// Collector is the slice of the collection service the dashboard consumes.
type Collector interface {
	Run(ctx context.Context, since string, progress func(string)) ([]*collector.Item, error)
	List(ctx context.Context, since, until string) ([]*collector.Item, error)
	Stats(ctx context.Context) (*collector.Stats, error)
	RunHistory(ctx context.Context, limit int) ([]*collector.RunRecord, error)
	LastRun(ctx context.Context) (*collector.RunRecord, error)
}

// Config holds the dashboard settings.
type Config struct {
	// Secret signs the session JWT. Must satisfy guard.ValidateSecret.
	Secret []byte
	// Username and PassHash are the single operator credential pair;
	// PassHash is a bcrypt hash.
	Username string
	PassHash []byte
	// Handle is the monitored account, used in tab labels and captions.
	Handle string
	Logger *slog.Logger
}

// Server renders the dashboard and answers its API.
type Server struct {
	col    Collector
	cfg    Config
	logger *slog.Logger

	watcher *watch.Watcher
	events  *observability.EventLogger
	metrics *observability.MetricsManager
	notes   *feedback.Widget

	now func() time.Time

	// statsCache holds the last aggregate counters; the data_version
	// watcher clears it whenever the collector writes.
	statsMu    sync.RWMutex
	statsCache *collector.Stats

	// collectMu admits one live collect at a time.
	collectMu sync.Mutex
}

// Option configures a Server during creation.
type Option func(*Server)

// WithWatcher wires a data_version watcher for stats cache invalidation.
func WithWatcher(w *watch.Watcher) Option {
	return func(s *Server) { s.watcher = w }
}

// WithEventLogger surfaces recent collector events on the status endpoint.
func WithEventLogger(ev *observability.EventLogger) Option {
	return func(s *Server) { s.events = ev }
}

// WithMetrics surfaces day totals of the run counters on the status endpoint.
func WithMetrics(mm *observability.MetricsManager) Option {
	return func(s *Server) { s.metrics = mm }
}

// WithNotes mounts the operator-notes widget under /feedback.
func WithNotes(w *feedback.Widget) Option {
	return func(s *Server) { s.notes = w }
}

// WithClock overrides the time source.
func WithClock(fn func() time.Time) Option {
	return func(s *Server) { s.now = fn }
}

// New creates a dashboard Server.
func New(col Collector, cfg Config, opts ...Option) (*Server, error) {
	if col == nil {
		return nil, fmt.Errorf("dashboard: collector is required")
	}
	if err := guard.ValidateSecret(cfg.Secret); err != nil {
		return nil, fmt.Errorf("dashboard: session secret: %w", err)
	}
	if cfg.Username == "" || len(cfg.PassHash) == 0 {
		return nil, fmt.Errorf("dashboard: operator credentials are required")
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	s := &Server{
		col:    col,
		cfg:    cfg,
		logger: cfg.Logger,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Start launches the stats cache invalidation loop when a watcher is
// configured. Non-blocking; stops with ctx.
func (s *Server) Start(ctx context.Context) {
	if s.watcher == nil {
		return
	}
	go s.watcher.OnChange(ctx, func() error {
		s.invalidateStats()
		return nil
	})
}

// Router builds the chi router: hardening stack, soft JWT parse, public
// login endpoints, then the session-gated pages and API.
func (s *Server) Router() chi.Router {
	r := chi.NewRouter()
	for _, mw := range shield.DefaultStack(shield.DefaultRules()) {
		r.Use(mw)
	}
	r.Use(auth.Middleware(s.cfg.Secret))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Get("/login", s.handleLoginPage)
	r.Post("/login", s.handleLogin)
	r.Post("/logout", s.handleLogout)

	// Pages: redirect to the login form when unauthenticated.
	r.Group(func(r chi.Router) {
		r.Use(auth.RequireAuth)
		r.Get("/", s.handleIndex)
	})

	// API and widget: JSON 401 when unauthenticated.
	r.Group(func(r chi.Router) {
		r.Use(requireSession)
		r.Post("/api/collect", s.handleCollect)
		r.Get("/api/items", s.handleItems)
		r.Get("/api/stats", s.handleStats)
		r.Get("/api/runs", s.handleRuns)
		r.Get("/api/status", s.handleStatus)
		if s.notes != nil {
			r.Mount("/feedback", http.StripPrefix("/feedback", s.notes.Handler()))
		}
	})

	return r
}

// --- Auth handlers ---

func (s *Server) handleLoginPage(w http.ResponseWriter, r *http.Request) {
	if auth.GetClaims(r.Context()) != nil {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	loginTmpl.Execute(w, loginData{Flash: shield.GetFlash(r.Context())})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		shield.SetFlash(w, "error", "Invalid form")
		http.Redirect(w, r, "/login", http.StatusSeeOther)
		return
	}
	username := r.PostFormValue("username")
	password := r.PostFormValue("password")

	userOK := subtle.ConstantTimeCompare([]byte(username), []byte(s.cfg.Username)) == 1
	passErr := bcrypt.CompareHashAndPassword(s.cfg.PassHash, []byte(password))
	if !userOK || passErr != nil {
		s.logger.Warn("dashboard: failed login", "username", username, "ip", shield.ExtractIP(r))
		shield.SetFlash(w, "error", "Invalid credentials")
		http.Redirect(w, r, "/login", http.StatusSeeOther)
		return
	}

	claims := &auth.Claims{Username: username, Role: "operator"}
	token, err := auth.GenerateToken(s.cfg.Secret, claims, 24*time.Hour)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	secure := r.TLS != nil || r.Header.Get("X-Forwarded-Proto") == "https"
	auth.SetTokenCookie(w, token, secure)
	s.logger.Info("dashboard: operator signed in", "username", username)
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	auth.ClearTokenCookie(w)
	http.Redirect(w, r, "/login", http.StatusSeeOther)
}

// requireSession returns 401 JSON when no valid claims are in context. The
// globally applied auth.Middleware does the soft parsing.
func requireSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if auth.GetClaims(r.Context()) == nil {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "not authenticated"})
			return
		}
		next.ServeHTTP(w, r)
	})
}

// OperatorFromRequest extracts the signed-in operator name, for the notes
// widget. Returns "" when unauthenticated.
func OperatorFromRequest(r *http.Request) string {
	if c := auth.GetClaims(r.Context()); c != nil {
		return c.Username
	}
	return ""
}

// --- Stats cache ---

// CachedStats returns aggregate counters, recomputing only after the watcher
// reported a database change (or on first use).
func (s *Server) CachedStats(ctx context.Context) (*collector.Stats, error) {
	s.statsMu.RLock()
	cached := s.statsCache
	s.statsMu.RUnlock()
	if cached != nil {
		return cached, nil
	}

	st, err := s.col.Stats(ctx)
	if err != nil {
		return nil, err
	}
	s.statsMu.Lock()
	s.statsCache = st
	s.statsMu.Unlock()
	return st, nil
}

func (s *Server) invalidateStats() {
	s.statsMu.Lock()
	s.statsCache = nil
	s.statsMu.Unlock()
}

// --- Helpers ---

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, err error) {
	writeJSON(w, code, map[string]string{"error": err.Error()})
}

func queryInt(r *http.Request, key string, def int) int {
	s := r.URL.Query().Get(key)
	if s == "" {
		return def
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return v
}

// Compile-time check that the real service satisfies the interface.
var _ Collector = (*collector.Service)(nil)
