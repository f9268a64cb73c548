package feedback

import (
	"database/sql"
	"encoding/json"
	"html/template"
	"net/http"
	"strconv"
	"strings"
	"time"
)

func (w *Widget) handleSubmit(wr http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(wr, r.Body, 32*1024)

	var req struct {
		Kind    string `json:"kind"`
		Text    string `json:"text"`
		ItemID  string `json:"item_id"`
		PageURL string `json:"page_url"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonErr(wr, "invalid request body", http.StatusBadRequest)
		return
	}
	req.Text = strings.TrimSpace(req.Text)
	if req.Text == "" {
		jsonErr(wr, "text is required", http.StatusBadRequest)
		return
	}
	if len(req.Text) > 5000 {
		req.Text = req.Text[:5000]
	}
	if !validKinds[req.Kind] {
		req.Kind = KindOther
	}

	id := newID()
	now := time.Now().Unix()
	ua := r.UserAgent()

	var operator *string
	if w.operatorFn != nil {
		if op := w.operatorFn(r); op != "" {
			operator = &op
		}
	}

	_, err := w.db.Exec(
		`INSERT INTO operator_notes (id, kind, text, item_id, page_url, user_agent, operator, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		id, req.Kind, req.Text, req.ItemID, req.PageURL, ua, operator, now,
	)
	if err != nil {
		jsonErr(wr, "internal error", http.StatusInternalServerError)
		return
	}

	wr.Header().Set("Content-Type", "application/json")
	json.NewEncoder(wr).Encode(map[string]string{"id": id, "status": "ok"})
}

func (w *Widget) handleListJSON(wr http.ResponseWriter, r *http.Request) {
	limit := 50
	offset := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 500 {
			limit = n
		}
	}
	if v := r.URL.Query().Get("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			offset = n
		}
	}

	notes, err := w.listNotes(limit, offset)
	if err != nil {
		jsonErr(wr, "internal error", http.StatusInternalServerError)
		return
	}

	wr.Header().Set("Content-Type", "application/json")
	json.NewEncoder(wr).Encode(notes)
}

// noteView is the template-friendly projection of a Note.
type noteView struct {
	Kind      string
	Text      string
	ItemID    string
	Operator  string
	CreatedAt string
	PageURL   string
	SafeURL   bool
}

var listHTMLTmpl = template.Must(template.New("list").Parse(`<!DOCTYPE html>
<html lang="en"><head><meta charset="UTF-8"><meta name="viewport" content="width=device-width,initial-scale=1">
<title>Operator notes</title>
<style>
body{font-family:system-ui,sans-serif;max-width:800px;margin:2rem auto;padding:0 1rem;color:#222;background:#fafafa}
h1{font-size:1.4rem;border-bottom:2px solid #e0e0e0;padding-bottom:.5rem}
.note{background:#fff;border:1px solid #e0e0e0;border-radius:6px;padding:1rem;margin-bottom:1rem}
.kind{display:inline-block;font-size:.75rem;background:#eef;border-radius:4px;padding:.1rem .4rem;margin-bottom:.3rem}
.meta{font-size:.8rem;color:#666;margin-top:.5rem}
.empty{color:#999;font-style:italic}
</style></head><body>
<h1>Operator notes ({{.Count}})</h1>
{{- if eq .Count 0}}
<p class="empty">No notes yet.</p>
{{- end}}
{{- range .Notes}}
<div class="note"><span class="kind">{{.Kind}}</span><p>{{.Text}}</p><div class="meta">{{.Operator}} &mdash; {{.CreatedAt}}
{{- if .ItemID}} &mdash; item {{.ItemID}}
{{- end}}
{{- if and .PageURL .SafeURL}} &mdash; <a href="{{.PageURL}}">{{.PageURL}}</a>
{{- else if .PageURL}} &mdash; {{.PageURL}}
{{- end}}</div></div>
{{- end}}
</body></html>`))

func (w *Widget) handleListHTML(wr http.ResponseWriter, r *http.Request) {
	notes, err := w.listNotes(200, 0)
	if err != nil {
		http.Error(wr, "internal error", http.StatusInternalServerError)
		return
	}

	views := make([]noteView, len(notes))
	for i, n := range notes {
		op := "anonymous"
		if n.Operator != nil {
			op = *n.Operator
		}
		views[i] = noteView{
			Kind:      n.Kind,
			Text:      n.Text,
			ItemID:    n.ItemID,
			Operator:  op,
			CreatedAt: time.Unix(n.CreatedAt, 0).Format("2006-01-02 15:04"),
			PageURL:   n.PageURL,
			SafeURL:   n.PageURL != "" && isSafeURL(n.PageURL),
		}
	}

	wr.Header().Set("Content-Type", "text/html; charset=utf-8")
	listHTMLTmpl.Execute(wr, struct {
		Count int
		Notes []noteView
	}{
		Count: len(notes),
		Notes: views,
	})
}

func (w *Widget) listNotes(limit, offset int) ([]Note, error) {
	rows, err := w.db.Query(
		`SELECT id, kind, text, item_id, page_url, user_agent, operator, created_at
		 FROM operator_notes ORDER BY created_at DESC LIMIT ? OFFSET ?`,
		limit, offset,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var notes []Note
	for rows.Next() {
		var n Note
		var op sql.NullString
		if err := rows.Scan(&n.ID, &n.Kind, &n.Text, &n.ItemID, &n.PageURL, &n.UserAgent, &op, &n.CreatedAt); err != nil {
			continue
		}
		if op.Valid {
			n.Operator = &op.String
		}
		notes = append(notes, n)
	}
	if notes == nil {
		notes = []Note{}
	}
	return notes, nil
}

// isSafeURL returns true if the URL uses http or https scheme.
func isSafeURL(u string) bool {
	lower := strings.ToLower(u)
	return strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://")
}

func jsonErr(w http.ResponseWriter, msg string, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
