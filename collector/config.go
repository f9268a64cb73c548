package collector

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the top-level pulse configuration.
type Config struct {
	Store        StoreConfig        `yaml:"store"`
	Platform     PlatformConfig     `yaml:"platform"`
	Monitor      MonitorConfig      `yaml:"monitor"`
	Search       SearchConfig       `yaml:"search"`
	Scrape       ScrapeConfig       `yaml:"scrape"`
	Browser      BrowserConfig      `yaml:"browser"`
	Notification NotificationConfig `yaml:"notification"`
	Scheduler    SchedulerConfig    `yaml:"scheduler"`
	Dashboard    DashboardConfig    `yaml:"dashboard"`
}

// StoreConfig locates the feedback database.
type StoreConfig struct {
	Path string `yaml:"path"`
}

// PlatformConfig holds platform access settings.
type PlatformConfig struct {
	CookiesFile string `yaml:"cookies_file"`
	APIBase     string `yaml:"api_base"`
	BearerToken string `yaml:"bearer_token"` // supports ${ENV} expansion
	MirrorURL   string `yaml:"mirror_url"`   // optional RSS mirror for discovery fallback
}

// MonitorConfig names the monitored account and the curated threads.
type MonitorConfig struct {
	Handle  string   `yaml:"handle"`
	Threads []Thread `yaml:"threads"`
}

// Thread is a curated parent post whose replies are collected with a deeper
// scroll budget than timeline posts.
type Thread struct {
	TweetID string `yaml:"tweet_id"`
	Handle  string `yaml:"handle"`
	Label   string `yaml:"label"`
}

// SearchConfig drives the keyword search pass.
type SearchConfig struct {
	Queries          []string `yaml:"queries"`
	ExcludeTerms     []string `yaml:"exclude_terms"`
	RelevanceSignals []string `yaml:"relevance_signals"`
}

// ScrapeConfig bounds the scroll loops per extraction kind.
type ScrapeConfig struct {
	TimelineScrolls int `yaml:"timeline_scrolls"`
	ThreadScrolls   int `yaml:"thread_scrolls"`
	SearchScrolls   int `yaml:"search_scrolls"`
}

// BrowserConfig controls the Chrome session.
type BrowserConfig struct {
	Remote  string `yaml:"remote"` // DevTools URL of an already running Chrome
	Headful bool   `yaml:"headful"`
}

// NotificationConfig configures the export side effects.
type NotificationConfig struct {
	Email    EmailConfig    `yaml:"email"`
	CSV      CSVConfig      `yaml:"csv"`
	Webhook  WebhookConfig  `yaml:"webhook"`
	Telegram TelegramConfig `yaml:"telegram"`
}

// EmailConfig configures the SMTP digest.
type EmailConfig struct {
	Enabled  bool     `yaml:"enabled"`
	Host     string   `yaml:"host"`
	Port     int      `yaml:"port"`
	Username string   `yaml:"username"`
	Password string   `yaml:"password"` // supports ${ENV} expansion
	From     string   `yaml:"from"`
	To       []string `yaml:"to"`
}

// CSVConfig configures the CSV snapshot. Enabled defaults to true when
// omitted, matching the historical behavior.
type CSVConfig struct {
	Enabled *bool  `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// On reports whether the CSV export should run.
func (c CSVConfig) On() bool {
	return c.Enabled == nil || *c.Enabled
}

// WebhookConfig configures the signed webhook channel.
type WebhookConfig struct {
	Enabled bool   `yaml:"enabled"`
	URL     string `yaml:"url"`
	Secret  string `yaml:"secret"` // supports ${ENV} expansion
}

// TelegramConfig configures the Telegram channel.
type TelegramConfig struct {
	Enabled bool   `yaml:"enabled"`
	Token   string `yaml:"token"` // supports ${ENV} expansion
	ChatID  string `yaml:"chat_id"`
}

// SchedulerConfig controls background runs inside the daemon.
type SchedulerConfig struct {
	Enabled  bool          `yaml:"enabled"`
	Interval time.Duration `yaml:"interval"` // integer nanoseconds when set; default 1h
	Window   string        `yaml:"window"`   // since-expression for each scheduled run
}

// DashboardConfig holds the HTTP listen address. Credentials come from the
// environment, never from this file.
type DashboardConfig struct {
	Listen string `yaml:"listen"`
}

// LoadConfig reads and parses a YAML config file, expands ${ENV} references
// in secret-bearing fields, applies defaults, and validates.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("collector: read config %s: %w", path, err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("collector: parse config %s: %w", path, err)
	}
	cfg.expandSecrets()
	cfg.applyDefaults()
	return &cfg, cfg.Validate()
}

// expandSecrets replaces ${ENV_VAR} patterns in fields that typically carry
// credentials, so the YAML file itself can stay secret-free.
func (c *Config) expandSecrets() {
	c.Platform.BearerToken = expandEnv(c.Platform.BearerToken)
	c.Notification.Email.Username = expandEnv(c.Notification.Email.Username)
	c.Notification.Email.Password = expandEnv(c.Notification.Email.Password)
	c.Notification.Webhook.Secret = expandEnv(c.Notification.Webhook.Secret)
	c.Notification.Telegram.Token = expandEnv(c.Notification.Telegram.Token)
}

func expandEnv(s string) string {
	return os.Expand(s, os.Getenv)
}

func (c *Config) applyDefaults() {
	if c.Store.Path == "" {
		c.Store.Path = "data/feedback.db"
	}
	if c.Platform.CookiesFile == "" {
		c.Platform.CookiesFile = "data/cookies.json"
	}
	if c.Scrape.TimelineScrolls <= 0 {
		c.Scrape.TimelineScrolls = 5
	}
	if c.Scrape.ThreadScrolls <= 0 {
		c.Scrape.ThreadScrolls = 8
	}
	if c.Scrape.SearchScrolls <= 0 {
		c.Scrape.SearchScrolls = 3
	}
	if c.Notification.CSV.Path == "" {
		c.Notification.CSV.Path = "data/feedback_latest.csv"
	}
	if c.Scheduler.Interval <= 0 {
		c.Scheduler.Interval = time.Hour
	}
	if c.Scheduler.Window == "" {
		c.Scheduler.Window = "24h"
	}
	if c.Dashboard.Listen == "" {
		c.Dashboard.Listen = ":8085"
	}
}

// Validate checks that the configuration describes at least one collection
// source and that enabled channels carry their required fields.
func (c *Config) Validate() error {
	if c.Monitor.Handle == "" && len(c.Monitor.Threads) == 0 && len(c.Search.Queries) == 0 {
		return fmt.Errorf("%w: configure monitor.handle, monitor.threads or search.queries", ErrInvalidInput)
	}
	for i, th := range c.Monitor.Threads {
		if th.TweetID == "" {
			return fmt.Errorf("%w: monitor.threads[%d]: tweet_id is required", ErrInvalidInput, i)
		}
		if th.Handle == "" {
			return fmt.Errorf("%w: monitor.threads[%d]: handle is required", ErrInvalidInput, i)
		}
	}
	if len(c.Search.Queries) > 0 && len(c.Search.RelevanceSignals) == 0 {
		return fmt.Errorf("%w: search.relevance_signals is required when search.queries is set", ErrInvalidInput)
	}
	if c.Notification.Email.Enabled {
		if c.Notification.Email.Host == "" || c.Notification.Email.From == "" || len(c.Notification.Email.To) == 0 {
			return fmt.Errorf("%w: notification.email needs host, from and to", ErrInvalidInput)
		}
	}
	if c.Notification.Webhook.Enabled && c.Notification.Webhook.URL == "" {
		return fmt.Errorf("%w: notification.webhook.url is required", ErrInvalidInput)
	}
	if c.Notification.Telegram.Enabled && (c.Notification.Telegram.Token == "" || c.Notification.Telegram.ChatID == "") {
		return fmt.Errorf("%w: notification.telegram needs token and chat_id", ErrInvalidInput)
	}
	return nil
}
