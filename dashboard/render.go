package dashboard

import (
	"html/template"
	"net/http"
	"time"

	"github.com/induslabs/pulse/collector"
	"github.com/induslabs/pulse/shield"
)

const displayLayout = "Jan 02, 3:04 PM"

type loginData struct {
	Flash *shield.FlashMessage
}

var loginTmpl = template.Must(template.New("login").Parse(`<!DOCTYPE html>
<html lang="en"><head><meta charset="UTF-8"><meta name="viewport" content="width=device-width,initial-scale=1">
<title>Pulse — Sign in</title>
<style>
body{font-family:system-ui,sans-serif;background:#0f1123;color:#e0e0e0;display:flex;justify-content:center;margin:0}
.card{max-width:380px;width:100%;margin-top:80px;text-align:center;padding:0 1rem}
h1{font-size:28px;margin-bottom:4px}
.sub{color:#888;margin-bottom:32px}
form{display:flex;flex-direction:column;gap:.7rem;text-align:left}
label{font-size:.85rem;color:#aaa}
input{padding:.55rem;border-radius:6px;border:1px solid #333;background:#1a1a2e;color:#e0e0e0;font:inherit}
button{margin-top:.5rem;padding:.6rem;border:none;border-radius:6px;background:#1d9bf0;color:#fff;font:inherit;cursor:pointer}
button:hover{background:#1a8cd8}
.flash{background:#3b1f24;border:1px solid #843541;color:#f2b8c0;border-radius:6px;padding:.6rem;margin-bottom:1rem}
</style></head><body>
<div class="card">
<h1>Pulse Feedback</h1>
<p class="sub">Sign in to continue</p>
{{- if .Flash}}
<div class="flash">{{.Flash.Message}}</div>
{{- end}}
<form method="post" action="/login">
<label for="username">Username</label>
<input id="username" name="username" autocomplete="username" autofocus>
<label for="password">Password</label>
<input id="password" name="password" type="password" autocomplete="current-password">
<button type="submit">Sign in</button>
</form>
</div>
</body></html>`))

type indexData struct {
	Handle      string
	Operator    string
	Flash       *shield.FlashMessage
	RangeKey    string
	Presets     []Preset
	CustomFrom  string
	CustomTo    string
	WindowLabel string
	Metrics     Metrics
	Tabs        Tabs
	Stats       *collector.Stats
	LastRun     *collector.RunRecord
	Notes       bool
}

var indexFuncs = template.FuncMap{
	"itemtime": itemTime,
	"mstime": func(ms int64) string {
		if ms == 0 {
			return ""
		}
		return time.UnixMilli(ms).UTC().Format("2006-01-02 15:04")
	},
	"catlabel": func(cat string) string {
		switch cat {
		case collector.CategoryFeatureRequest:
			return "feature request"
		case collector.CategoryProductFeedback:
			return "product feedback"
		default:
			return "general"
		}
	},
	"catclass": func(cat string) string {
		switch cat {
		case collector.CategoryFeatureRequest:
			return "cat-feature"
		case collector.CategoryProductFeedback:
			return "cat-product"
		default:
			return "cat-general"
		}
	},
}

var indexTmpl = template.Must(template.New("index").Funcs(indexFuncs).Parse(`<!DOCTYPE html>
<html lang="en"><head><meta charset="UTF-8"><meta name="viewport" content="width=device-width,initial-scale=1">
<title>Pulse Feedback Dashboard</title>
<style>
body{font-family:system-ui,sans-serif;background:#0f1123;color:#e0e0e0;margin:0}
a{color:#1d9bf0;text-decoration:none}
.top{display:flex;justify-content:space-between;align-items:baseline;padding:1.2rem 1.5rem .4rem}
.top h1{margin:0;font-size:1.5rem}
.top .sub{color:#888;margin:.2rem 0 0}
.top form{display:inline}
.who{color:#888;font-size:.85rem}
.logout{background:none;border:none;color:#1d9bf0;cursor:pointer;font:inherit;padding:0;margin-left:.8rem}
.controls{display:flex;flex-wrap:wrap;align-items:flex-end;gap:.8rem;padding:.6rem 1.5rem;border-bottom:1px solid #222}
.controls label{display:block;font-size:.75rem;color:#aaa;margin-bottom:.2rem}
.controls select,.controls input{padding:.4rem;border-radius:6px;border:1px solid #333;background:#1a1a2e;color:#e0e0e0;font:inherit}
.controls button{padding:.45rem .9rem;border:none;border-radius:6px;background:#1d9bf0;color:#fff;font:inherit;cursor:pointer}
.controls button:hover{background:#1a8cd8}
.controls .fetch{background:#16a34a}
.controls .fetch:hover{background:#15803d}
.controls .fetch:disabled{background:#444;cursor:wait}
.caption{color:#888;font-size:.8rem;padding:.3rem 1.5rem}
.flash{margin:.6rem 1.5rem;border-radius:6px;padding:.6rem}
.flash.error{background:#3b1f24;border:1px solid #843541;color:#f2b8c0}
.flash.success{background:#1e3a2f;border:1px solid #2e6b4f;color:#b8f2cf}
#fetch-log{margin:.6rem 1.5rem;background:#16213e;border:1px solid #333;border-radius:8px;padding:.8rem;max-height:220px;overflow:auto;font-family:ui-monospace,monospace;font-size:.8rem;white-space:pre-wrap}
.metrics{display:flex;gap:1rem;padding:1rem 1.5rem;flex-wrap:wrap}
.metric{background:#1a1a2e;border:1px solid #333;border-radius:10px;padding:.8rem 1.2rem;min-width:9rem}
.metric .n{font-size:1.6rem;font-weight:600}
.metric .l{color:#888;font-size:.8rem}
.tabs{display:flex;gap:.4rem;padding:0 1.5rem;border-bottom:1px solid #222}
.tab{background:none;border:none;color:#aaa;padding:.6rem .9rem;font:inherit;cursor:pointer;border-bottom:2px solid transparent}
.tab.active{color:#fff;border-bottom-color:#1d9bf0}
.pane{display:none;padding:.5rem 1.5rem 2rem}
.pane.active{display:block}
.group-head{margin-top:24px;margin-bottom:8px;padding:10px 14px;background:#16213e;border-radius:8px;border-left:4px solid #1d9bf0}
.group-head.search{background:#1e3a2f;border-left-color:#2ecc71}
.group-head .tag{color:#aaa;font-size:12px}
.group-head .txt{color:#ddd;font-size:14px}
.reply{border:1px solid #333;border-left:4px solid #555;border-radius:10px;padding:14px 18px;margin:0 0 8px 16px;background:#1a1a2e}
.reply .row{display:flex;justify-content:space-between;align-items:center}
.reply .when{color:#777;font-size:12px}
.reply .handle{color:#999}
.reply p{margin:8px 0 6px;line-height:1.5;color:#ccc;white-space:pre-wrap}
.reply .foot{display:flex;gap:.8rem;align-items:center;font-size:13px}
.cat{font-size:.7rem;border-radius:4px;padding:.1rem .4rem}
.cat-feature{background:#172554;color:#93c5fd}
.cat-product{background:#431407;color:#fdba74}
.cat-general{background:#1f2937;color:#d1d5db}
.empty{color:#999;font-style:italic;padding:1rem 0}
.status{color:#888;font-size:.8rem;padding:.8rem 1.5rem;border-top:1px solid #222}
</style></head><body>
<div class="top">
<div><h1>Pulse Feedback Dashboard</h1>
<p class="sub">Replies on @{{.Handle}} posts + broader mentions</p></div>
<div class="who">{{.Operator}}<form method="post" action="/logout"><button class="logout" type="submit">Sign out</button></form></div>
</div>

<form class="controls" method="get" action="/">
<div><label for="range">Show replies from</label>
<select id="range" name="range" onchange="toggleCustom()">
{{- $key := .RangeKey}}
{{- range .Presets}}
<option value="{{.Key}}"{{if eq .Key $key}} selected{{end}}>{{.Label}}</option>
{{- end}}
<option value="custom"{{if eq "custom" $key}} selected{{end}}>Custom</option>
</select></div>
<div class="custom"{{if ne "custom" .RangeKey}} hidden{{end}}><label for="from">From</label>
<input id="from" type="datetime-local" name="from" value="{{.CustomFrom}}"></div>
<div class="custom"{{if ne "custom" .RangeKey}} hidden{{end}}><label for="to">To</label>
<input id="to" type="datetime-local" name="to" value="{{.CustomTo}}"></div>
<div><button type="submit">Apply</button></div>
<div><button type="button" class="fetch" id="fetch-btn" onclick="runCollect()">Fetch from X</button></div>
</form>
<p class="caption">{{.WindowLabel}}</p>

{{- if .Flash}}
<div class="flash {{.Flash.Type}}">{{.Flash.Message}}</div>
{{- end}}
<pre id="fetch-log" hidden></pre>

<div class="metrics">
<div class="metric"><div class="n">{{.Metrics.Total}}</div><div class="l">Total</div></div>
<div class="metric"><div class="n">{{.Metrics.Timeline}}</div><div class="l">@{{.Handle}} Timeline</div></div>
<div class="metric"><div class="n">{{.Metrics.Threads}}</div><div class="l">Tracked Threads</div></div>
<div class="metric"><div class="n">{{.Metrics.Mentions}}</div><div class="l">Broader Mentions</div></div>
</div>

{{- if eq .Metrics.Total 0}}
<p class="empty" style="padding:0 1.5rem">No replies found in this window. Try a wider range or click <b>Fetch from X</b> to scrape new data.</p>
{{- else}}
<div class="tabs">
<button class="tab active" data-pane="pane-timeline">@{{.Handle}} Timeline ({{.Metrics.Timeline}})</button>
<button class="tab" data-pane="pane-threads">Tracked Threads ({{.Metrics.Threads}})</button>
<button class="tab" data-pane="pane-mentions">Broader Mentions ({{.Metrics.Mentions}})</button>
</div>

<div class="pane active" id="pane-timeline">
{{- if not .Tabs.Timeline}}<p class="empty">No timeline replies in this window.</p>{{- end}}
{{- range .Tabs.Timeline}}{{template "thread" .}}{{- end}}
</div>
<div class="pane" id="pane-threads">
{{- if not .Tabs.Threads}}<p class="empty">No thread replies in this window.</p>{{- end}}
{{- range .Tabs.Threads}}{{template "thread" .}}{{- end}}
</div>
<div class="pane" id="pane-mentions">
{{- if not .Tabs.Mentions}}<p class="empty">No broader mentions in this window. Click <b>Fetch from X</b> to search for keyword mentions.</p>{{- end}}
{{- range .Tabs.Mentions}}
<div class="group-head search"><span class="tag">SEARCH QUERY · {{len .Items}} results</span><br>
<span class="txt">{{.Preview}}</span></div>
{{- range .Items}}{{template "reply" .}}{{- end}}
{{- end}}
</div>
{{- end}}

<div class="status">
{{- if .LastRun}}
Last run: {{.LastRun.Status}} · {{.LastRun.NewItems}} new / {{.LastRun.Scanned}} scanned / {{.LastRun.Skipped}} skipped · started {{mstime .LastRun.StartedAt}} UTC
{{- else}}
No runs recorded yet.
{{- end}}
{{- if .Stats}}
 · store total {{.Stats.Total}} ({{.Stats.FeatureRequests}} feature / {{.Stats.ProductFeedback}} product / {{.Stats.GeneralFeedback}} general)
{{- end}}
</div>

<script>
function toggleCustom() {
  var isCustom = document.getElementById("range").value === "custom";
  document.querySelectorAll(".custom").forEach(function (el) { el.hidden = !isCustom; });
}
document.querySelectorAll(".tab").forEach(function (btn) {
  btn.addEventListener("click", function () {
    document.querySelectorAll(".tab").forEach(function (b) { b.classList.remove("active"); });
    document.querySelectorAll(".pane").forEach(function (p) { p.classList.remove("active"); });
    btn.classList.add("active");
    document.getElementById(btn.dataset.pane).classList.add("active");
  });
});
function runCollect() {
  var btn = document.getElementById("fetch-btn");
  var log = document.getElementById("fetch-log");
  btn.disabled = true;
  log.hidden = false;
  log.textContent = "Scraping replies from X... this can take a while\n";
  fetch("/api/collect" + window.location.search, { method: "POST" })
    .then(function (resp) {
      if (resp.status === 401) { window.location = "/login"; return null; }
      var reader = resp.body.getReader();
      var dec = new TextDecoder();
      function pump() {
        return reader.read().then(function (chunk) {
          if (chunk.done) return;
          log.textContent += dec.decode(chunk.value, { stream: true });
          log.scrollTop = log.scrollHeight;
          return pump();
        });
      }
      return pump();
    })
    .then(function () { setTimeout(function () { window.location.reload(); }, 1500); })
    .catch(function (err) {
      log.textContent += "\nrequest failed: " + err;
      btn.disabled = false;
    });
}
</script>
{{- if .Notes}}
<script src="/feedback/widget.js" defer></script>
{{- end}}
</body></html>

{{- define "thread"}}
<div class="group-head"><span class="tag">THREAD by {{.Author}} · {{len .Items}} replies</span>
{{- if .URL}} &nbsp;<a href="{{.URL}}" target="_blank" rel="noopener">Open thread →</a>{{- end}}<br>
<span class="txt">{{.Preview}}</span></div>
{{- range .Items}}{{template "reply" .}}{{- end}}
{{- end}}

{{- define "reply"}}
<div class="reply">
<div class="row"><div><strong>{{.AuthorName}}</strong> <span class="handle">@{{.AuthorHandle}}</span></div>
<span class="when">{{itemtime .CreatedAt}}</span></div>
<p>{{.Text}}</p>
<div class="foot"><span class="cat {{catclass .Category}}">{{catlabel .Category}}</span>
<a href="{{.URL}}" target="_blank" rel="noopener">View on X →</a></div>
</div>
{{- end}}`))

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	win := s.windowFromRequest(r)

	items, err := s.col.List(r.Context(), win.SinceRFC3339(), win.UntilRFC3339())
	if err != nil {
		s.logger.Error("dashboard: list items", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	metrics, tabs := buildTabs(items, s.cfg.Handle)

	stats, err := s.CachedStats(r.Context())
	if err != nil {
		s.logger.Error("dashboard: stats", "error", err)
	}
	lastRun, err := s.col.LastRun(r.Context())
	if err != nil {
		s.logger.Error("dashboard: last run", "error", err)
	}

	data := indexData{
		Handle:      s.cfg.Handle,
		Operator:    OperatorFromRequest(r),
		Flash:       shield.GetFlash(r.Context()),
		RangeKey:    win.Key,
		Presets:     Presets,
		CustomFrom:  win.Since.Format(customLayout),
		CustomTo:    win.Until.Format(customLayout),
		WindowLabel: win.Since.Format(displayLayout) + "  →  " + win.Until.Format(displayLayout) + " UTC",
		Metrics:     metrics,
		Tabs:        tabs,
		Stats:       stats,
		LastRun:     lastRun,
		Notes:       s.notes != nil,
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := indexTmpl.Execute(w, data); err != nil {
		s.logger.Error("dashboard: render", "error", err)
	}
}
