package dashboard

import (
	"net/http"
	"time"
)

// handleItems returns the items of the selected window, newest first.
func (s *Server) handleItems(w http.ResponseWriter, r *http.Request) {
	win := s.windowFromRequest(r)
	items, err := s.col.List(r.Context(), win.SinceRFC3339(), win.UntilRFC3339())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"window": map[string]string{
			"range": win.Key,
			"since": win.SinceRFC3339(),
			"until": win.UntilRFC3339(),
		},
		"count": len(items),
		"items": items,
	})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.CachedStats(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (s *Server) handleRuns(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", 20)
	runs, err := s.col.RunHistory(r.Context(), limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"count": len(runs), "runs": runs})
}

// handleStatus is the operational pane: last run, cache watcher counters,
// recent collector events and 24h metric totals when those are wired. A
// failing observability database degrades the pane, it never 500s it.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	out := map[string]any{}

	lastRun, err := s.col.LastRun(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	out["last_run"] = lastRun

	if s.watcher != nil {
		out["watch"] = s.watcher.Stats()
	}
	if s.events != nil {
		events, err := s.events.RecentEvents(r.Context(), queryInt(r, "events", 20))
		if err != nil {
			s.logger.Warn("dashboard: recent events", "error", err)
		} else {
			out["events"] = events
		}
	}
	if s.metrics != nil {
		totals, err := s.metrics.Totals(r.Context(), s.now().Add(-24*time.Hour))
		if err != nil {
			s.logger.Warn("dashboard: metric totals", "error", err)
		} else {
			out["metrics"] = totals
		}
	}

	writeJSON(w, http.StatusOK, out)
}
