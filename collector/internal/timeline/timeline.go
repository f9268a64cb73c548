// Package timeline discovers a monitored account's recent posts.
//
// Discovery is API-shaped, not browser-shaped: one bounded request for the
// most recent posts. If the account posted more than one page worth since
// the window opened, older in-range posts are missed; that is an accepted
// limitation of discovery, not of extraction.
package timeline

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/induslabs/pulse/browser"
	"github.com/induslabs/pulse/collector/internal/timefmt"
	"github.com/induslabs/pulse/connectivity"
	"github.com/induslabs/pulse/guard"
)

// PageSize is the fixed discovery page: one request, no pagination.
const PageSize = 40

const previewLen = 80

// Post is a discovered candidate post, carrying just enough for the
// extraction phase and progress logging.
type Post struct {
	ID         string
	Handle     string
	Preview    string // truncated, newlines flattened
	ReplyCount int
	CreatedAt  string // raw platform timestamp
}

// Config configures the API client.
type Config struct {
	// BaseURL of the platform API. Default: "https://api.x.com".
	BaseURL string

	// BearerToken for the Authorization header. The session cookies alone
	// are not enough for the JSON API.
	BearerToken string

	// UserAgent presented to the API. Default: browser.DefaultUserAgent.
	UserAgent string

	Timeout time.Duration // default 30s
	Logger  *slog.Logger
}

func (c *Config) defaults() {
	if c.BaseURL == "" {
		c.BaseURL = "https://api.x.com"
	}
	if c.UserAgent == "" {
		c.UserAgent = browser.DefaultUserAgent
	}
	if c.Timeout <= 0 {
		c.Timeout = 30 * time.Second
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// Client fetches an account's recent posts from the JSON API using the
// session cookies captured by the login flow.
type Client struct {
	cfg  Config
	jar  browser.Jar
	http *http.Client
}

// NewClient creates an API client authenticated with the given cookie jar.
func NewClient(cfg Config, jar browser.Jar) *Client {
	cfg.defaults()
	return &Client{
		cfg:  cfg,
		jar:  jar,
		http: &http.Client{Timeout: cfg.Timeout},
	}
}

type apiUser struct {
	ScreenName string `json:"screen_name"`
}

type apiPost struct {
	IDStr      string  `json:"id_str"`
	FullText   string  `json:"full_text"`
	Text       string  `json:"text"`
	CreatedAt  string  `json:"created_at"`
	ReplyCount int     `json:"reply_count"`
	User       apiUser `json:"user"`
}

// RecentPosts fetches one page of the account's latest posts and keeps those
// created at or after since. Posts whose timestamp cannot be parsed are
// conservatively kept.
func (c *Client) RecentPosts(ctx context.Context, handle string, since time.Time) ([]Post, error) {
	u := fmt.Sprintf("%s/1.1/statuses/user_timeline.json?screen_name=%s&count=%d&tweet_mode=extended",
		strings.TrimRight(c.cfg.BaseURL, "/"), handle, PageSize)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("timeline: build request: %w", err)
	}
	req.Header.Set("User-Agent", c.cfg.UserAgent)
	if c.cfg.BearerToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.BearerToken)
	}
	// The API wants the ct0 cookie mirrored in the CSRF header.
	req.Header.Set("x-csrf-token", c.jar.CSRFToken())
	req.Header.Set("Cookie", cookieHeader(c.jar))

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("timeline: fetch @%s: %w", handle, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("timeline: @%s: status %d", handle, resp.StatusCode)
	}

	body, err := guard.LimitedReadAll(resp.Body, guard.MaxResponseBody)
	if err != nil {
		return nil, fmt.Errorf("timeline: read @%s: %w", handle, err)
	}

	var raw []apiPost
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("timeline: parse @%s: %w", handle, err)
	}

	posts := make([]Post, 0, len(raw))
	for _, p := range raw {
		if !timefmt.OnOrAfter(p.CreatedAt, since) {
			continue
		}
		text := p.FullText
		if text == "" {
			text = p.Text
		}
		owner := p.User.ScreenName
		if owner == "" {
			owner = handle
		}
		posts = append(posts, Post{
			ID:         p.IDStr,
			Handle:     owner,
			Preview:    Preview(text),
			ReplyCount: p.ReplyCount,
			CreatedAt:  p.CreatedAt,
		})
	}

	c.cfg.Logger.Info("timeline: discovered posts", "handle", handle, "in_range", len(posts))
	return posts, nil
}

func cookieHeader(jar browser.Jar) string {
	pairs := make([]string, 0, len(jar))
	for name, value := range jar {
		pairs = append(pairs, name+"="+value)
	}
	return strings.Join(pairs, "; ")
}

// Preview flattens newlines and truncates to the progress-log length.
func Preview(text string) string {
	flat := strings.ReplaceAll(text, "\n", " ")
	runes := []rune(flat)
	if len(runes) <= previewLen {
		return flat
	}
	return string(runes[:previewLen])
}

// Discoverer tries the authenticated API first and falls back to the
// public mirror when it fails. An optional circuit breaker remembers API
// failures across runs, so a down API is skipped instead of burning the
// full request timeout every scheduled pass.
type Discoverer struct {
	API     *Client
	Mirror  *Mirror
	Breaker *connectivity.CircuitBreaker
	Logger  *slog.Logger
}

// RecentPosts discovers candidate posts through whichever path works.
func (d *Discoverer) RecentPosts(ctx context.Context, handle string, since time.Time) ([]Post, error) {
	log := d.Logger
	if log == nil {
		log = slog.Default()
	}

	var posts []Post
	var err error
	if d.Breaker != nil && !d.Breaker.Allow() {
		err = &connectivity.ErrCircuitOpen{Service: "timeline-api"}
	} else {
		posts, err = d.API.RecentPosts(ctx, handle, since)
		if d.Breaker != nil {
			if err != nil {
				d.Breaker.RecordFailure()
			} else {
				d.Breaker.RecordSuccess()
			}
		}
	}
	if err == nil {
		return posts, nil
	}
	if d.Mirror == nil {
		return nil, err
	}

	log.Warn("timeline: api discovery failed, trying mirror", "handle", handle, "error", err)
	return d.Mirror.RecentPosts(ctx, handle, since)
}
