package dashboard

import (
	"fmt"
	"net/http"
	"time"
)

// Preset is one entry of the time-range selector.
type Preset struct {
	Key   string
	Label string
	Hours int
}

// Presets lists the range options in display order. "custom" is handled
// separately by ResolveWindow.
var Presets = []Preset{
	{"2h", "Last 2 hours", 2},
	{"6h", "Last 6 hours", 6},
	{"8h", "Last 8 hours", 8},
	{"24h", "Last 24 hours", 24},
	{"3d", "Last 3 days", 72},
	{"7d", "Last 7 days", 168},
	{"14d", "Last 14 days", 336},
	{"30d", "Last 30 days", 720},
}

// DefaultPreset is the range applied when none is selected.
const DefaultPreset = "7d"

// customLayout matches HTML datetime-local input values.
const customLayout = "2006-01-02T15:04"

// Window is a resolved half-open display range. Since/Until are UTC instants;
// RunExpr is the equivalent window expression handed to the collector when
// the operator triggers a live collect for this range.
type Window struct {
	Key     string
	Since   time.Time
	Until   time.Time
	RunExpr string
}

// SinceRFC3339 returns the lower bound in the store's canonical format.
func (w Window) SinceRFC3339() string { return w.Since.UTC().Format(time.RFC3339) }

// UntilRFC3339 returns the upper bound in the store's canonical format.
func (w Window) UntilRFC3339() string { return w.Until.UTC().Format(time.RFC3339) }

// ResolveWindow maps a preset key, or a custom from/to pair, to an absolute
// range. Unknown keys fall back to DefaultPreset. Custom bounds that fail to
// parse fall back to the last 7 days at full-day precision, mirroring the
// blank custom form.
func ResolveWindow(key, from, to string, now time.Time) Window {
	now = now.UTC()

	if key == "custom" {
		since, err := time.ParseInLocation(customLayout, from, time.UTC)
		if err != nil {
			y, m, d := now.AddDate(0, 0, -7).Date()
			since = time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
		}
		until, err := time.ParseInLocation(customLayout, to, time.UTC)
		if err != nil {
			y, m, d := now.Date()
			until = time.Date(y, m, d, 23, 59, 0, 0, time.UTC)
		}
		return Window{
			Key:     "custom",
			Since:   since,
			Until:   until,
			RunExpr: since.Format("2006-01-02 15:04"),
		}
	}

	p := presetByKey(key)
	return Window{
		Key:     p.Key,
		Since:   now.Add(-time.Duration(p.Hours) * time.Hour),
		Until:   now,
		RunExpr: fmt.Sprintf("%dh", p.Hours),
	}
}

func presetByKey(key string) Preset {
	for _, p := range Presets {
		if p.Key == key {
			return p
		}
	}
	for _, p := range Presets {
		if p.Key == DefaultPreset {
			return p
		}
	}
	return Presets[0]
}

// windowFromRequest resolves the range query parameters of a dashboard or
// API request.
func (s *Server) windowFromRequest(r *http.Request) Window {
	q := r.URL.Query()
	key := q.Get("range")
	if key == "" {
		key = DefaultPreset
	}
	return ResolveWindow(key, q.Get("from"), q.Get("to"), s.now())
}
