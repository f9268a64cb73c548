package collector

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "pulse.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadConfig(t *testing.T) {
	t.Setenv("PULSE_TEST_BEARER", "tok-123")

	path := writeConfig(t, `
store:
  path: /tmp/custom.db
platform:
  cookies_file: /tmp/cookies.json
  bearer_token: ${PULSE_TEST_BEARER}
monitor:
  handle: acmeai
  threads:
    - tweet_id: "1894000000000000001"
      handle: acmeai
      label: Launch thread
search:
  queries:
    - acme assistant
  exclude_terms:
    - acme packaging
  relevance_signals:
    - ai
    - app
scrape:
  thread_scrolls: 12
notification:
  csv:
    enabled: false
scheduler:
  enabled: true
  window: 48h
`)

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}

	if cfg.Store.Path != "/tmp/custom.db" {
		t.Errorf("Store.Path = %q", cfg.Store.Path)
	}
	if cfg.Platform.CookiesFile != "/tmp/cookies.json" {
		t.Errorf("CookiesFile = %q", cfg.Platform.CookiesFile)
	}
	if cfg.Platform.BearerToken != "tok-123" {
		t.Errorf("BearerToken = %q, env reference not expanded", cfg.Platform.BearerToken)
	}
	if cfg.Monitor.Handle != "acmeai" {
		t.Errorf("Handle = %q", cfg.Monitor.Handle)
	}
	if len(cfg.Monitor.Threads) != 1 || cfg.Monitor.Threads[0].Label != "Launch thread" {
		t.Errorf("Threads = %+v", cfg.Monitor.Threads)
	}
	if len(cfg.Search.Queries) != 1 || len(cfg.Search.RelevanceSignals) != 2 {
		t.Errorf("Search = %+v", cfg.Search)
	}

	// Explicit value kept, siblings defaulted.
	if cfg.Scrape.ThreadScrolls != 12 {
		t.Errorf("ThreadScrolls = %d, want 12", cfg.Scrape.ThreadScrolls)
	}
	if cfg.Scrape.TimelineScrolls != 5 || cfg.Scrape.SearchScrolls != 3 {
		t.Errorf("scroll defaults = %d/%d, want 5/3",
			cfg.Scrape.TimelineScrolls, cfg.Scrape.SearchScrolls)
	}

	if cfg.Notification.CSV.On() {
		t.Error("csv.enabled: false should turn the export off")
	}
	if cfg.Notification.CSV.Path != "data/feedback_latest.csv" {
		t.Errorf("CSV.Path = %q", cfg.Notification.CSV.Path)
	}

	if !cfg.Scheduler.Enabled || cfg.Scheduler.Window != "48h" {
		t.Errorf("Scheduler = %+v", cfg.Scheduler)
	}
	if cfg.Scheduler.Interval != time.Hour {
		t.Errorf("Interval = %v, want default 1h", cfg.Scheduler.Interval)
	}
	if cfg.Dashboard.Listen != ":8085" {
		t.Errorf("Listen = %q", cfg.Dashboard.Listen)
	}
}

func TestLoadConfig_Defaults(t *testing.T) {
	cfg, err := LoadConfig(writeConfig(t, "monitor:\n  handle: acmeai\n"))
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Store.Path != "data/feedback.db" {
		t.Errorf("Store.Path = %q", cfg.Store.Path)
	}
	if cfg.Platform.CookiesFile != "data/cookies.json" {
		t.Errorf("CookiesFile = %q", cfg.Platform.CookiesFile)
	}
	if !cfg.Notification.CSV.On() {
		t.Error("csv export should default to on")
	}
	if cfg.Scheduler.Window != "24h" {
		t.Errorf("Window = %q", cfg.Scheduler.Window)
	}
}

func TestLoadConfig_Invalid(t *testing.T) {
	cases := []struct {
		name string
		body string
	}{
		{"no sources", "store:\n  path: x.db\n"},
		{"thread missing tweet_id", `
monitor:
  threads:
    - handle: acmeai
`},
		{"thread missing handle", `
monitor:
  threads:
    - tweet_id: "123"
`},
		{"queries without signals", `
search:
  queries:
    - acme assistant
`},
		{"email missing host", `
monitor:
  handle: acmeai
notification:
  email:
    enabled: true
    from: pulse@example.com
    to: [ops@example.com]
`},
		{"webhook missing url", `
monitor:
  handle: acmeai
notification:
  webhook:
    enabled: true
`},
		{"telegram missing chat_id", `
monitor:
  handle: acmeai
notification:
  telegram:
    enabled: true
    token: "12345:abc"
`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := LoadConfig(writeConfig(t, tc.body))
			if !errors.Is(err, ErrInvalidInput) {
				t.Errorf("err = %v, want ErrInvalidInput", err)
			}
		})
	}
}

func TestLoadConfig_MissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "absent.yaml"))
	if err == nil {
		t.Fatal("want error for missing file")
	}
	if errors.Is(err, ErrInvalidInput) {
		t.Error("a read failure is not a validation failure")
	}
}
