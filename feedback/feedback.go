// Package feedback provides a self-contained operator-notes widget for the
// Pulse dashboard. Operators reviewing collected items use it to flag
// collection-quality problems: a reply the scraper missed, an item filed
// under the wrong category, a selector that stopped matching after a markup
// change.
//
// It exposes both a chi-compatible [Widget.Handler] and a standard
// [Widget.RegisterMux] so callers can pick whichever router they use.
package feedback

import (
	"database/sql"
	"fmt"
	"net/http"
	"strings"

	"github.com/induslabs/pulse/idgen"
)

// Note kinds. Submissions with an unknown or empty kind are stored as
// KindOther.
const (
	KindMissedReply   = "missed_reply"
	KindWrongCategory = "wrong_category"
	KindSelectorDrift = "selector_drift"
	KindOther         = "other"
)

var validKinds = map[string]bool{
	KindMissedReply:   true,
	KindWrongCategory: true,
	KindSelectorDrift: true,
	KindOther:         true,
}

// OperatorFunc extracts an operator identifier from the HTTP request.
// Return "" for anonymous notes.
type OperatorFunc func(r *http.Request) string

// Config holds the settings needed to create a notes Widget.
type Config struct {
	DB         *sql.DB
	OperatorFn OperatorFunc // nil = always anonymous
}

// Note represents a single operator note.
type Note struct {
	ID        string  `json:"id"`
	Kind      string  `json:"kind"`
	Text      string  `json:"text"`
	ItemID    string  `json:"item_id,omitempty"`
	PageURL   string  `json:"page_url"`
	UserAgent string  `json:"user_agent"`
	Operator  *string `json:"operator,omitempty"`
	CreatedAt int64   `json:"created_at"`
}

// Widget manages the notes system (schema, HTTP handlers, embedded assets).
type Widget struct {
	db         *sql.DB
	operatorFn OperatorFunc
}

const schema = `
CREATE TABLE IF NOT EXISTS operator_notes (
    id         TEXT PRIMARY KEY,
    kind       TEXT NOT NULL DEFAULT 'other',
    text       TEXT NOT NULL,
    item_id    TEXT NOT NULL DEFAULT '',
    page_url   TEXT NOT NULL DEFAULT '',
    user_agent TEXT NOT NULL DEFAULT '',
    operator   TEXT,
    created_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_notes_created ON operator_notes(created_at DESC);
`

// New creates a Widget and applies the database schema.
func New(cfg Config) (*Widget, error) {
	if cfg.DB == nil {
		return nil, fmt.Errorf("feedback: DB is required")
	}
	for _, stmt := range strings.Split(schema, ";") {
		stmt = strings.TrimSpace(stmt)
		if stmt == "" {
			continue
		}
		if _, err := cfg.DB.Exec(stmt); err != nil {
			return nil, fmt.Errorf("feedback schema: %w", err)
		}
	}
	return &Widget{
		db:         cfg.DB,
		operatorFn: cfg.OperatorFn,
	}, nil
}

// Handler returns an http.Handler serving all notes endpoints.
// The caller must strip the URL prefix before passing requests.
//
//	chi:      r.Mount("/feedback", http.StripPrefix("/feedback", w.Handler()))
//	ServeMux: w.RegisterMux(mux, "/feedback")
func (w *Widget) Handler() http.Handler {
	return http.HandlerFunc(func(wr http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/submit":
			w.handleSubmit(wr, r)
		case r.Method == http.MethodGet && r.URL.Path == "/notes":
			w.handleListJSON(wr, r)
		case r.Method == http.MethodGet && r.URL.Path == "/notes.html":
			w.handleListHTML(wr, r)
		case r.Method == http.MethodGet && r.URL.Path == "/widget.js":
			w.handleWidgetJS(wr, r)
		case r.Method == http.MethodGet && r.URL.Path == "/widget.css":
			w.handleWidgetCSS(wr, r)
		default:
			http.NotFound(wr, r)
		}
	})
}

// RegisterMux registers notes routes directly on a standard ServeMux
// with explicit method+path patterns (Go 1.22+).
func (w *Widget) RegisterMux(mux *http.ServeMux, basePath string) {
	bp := strings.TrimRight(basePath, "/")
	mux.HandleFunc("POST "+bp+"/submit", w.handleSubmit)
	mux.HandleFunc("GET "+bp+"/notes", w.handleListJSON)
	mux.HandleFunc("GET "+bp+"/notes.html", w.handleListHTML)
	mux.HandleFunc("GET "+bp+"/widget.js", w.handleWidgetJS)
	mux.HandleFunc("GET "+bp+"/widget.css", w.handleWidgetCSS)
}

var newID = idgen.Prefixed("note_", idgen.Default)
