package dashboard

import (
	"fmt"
	"net/http"
)

// handleCollect triggers a live collection run for the selected window and
// streams progress lines as plain text while the scrape advances. One run is
// admitted at a time; concurrent triggers get 409.
func (s *Server) handleCollect(w http.ResponseWriter, r *http.Request) {
	if !s.collectMu.TryLock() {
		writeJSON(w, http.StatusConflict, map[string]string{"error": "a collection run is already in progress"})
		return
	}
	defer s.collectMu.Unlock()

	win := s.windowFromRequest(r)

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)

	flusher, _ := w.(http.Flusher)
	progress := func(msg string) {
		fmt.Fprintln(w, msg)
		if flusher != nil {
			flusher.Flush()
		}
	}

	items, err := s.col.Run(r.Context(), win.RunExpr, progress)
	if err != nil {
		// The collector's own message, verbatim, with a marker the page
		// script and log readers can spot.
		progress("ERROR: " + err.Error())
		return
	}
	if len(items) > 0 {
		progress(fmt.Sprintf("Fetched %d new replies!", len(items)))
	} else {
		progress("No new replies (all already in DB)")
	}
	s.invalidateStats()
}
