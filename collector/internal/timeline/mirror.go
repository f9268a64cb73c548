package timeline

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"
	"golang.org/x/net/html"

	"github.com/induslabs/pulse/browser"
)

// statusIDRE pulls the numeric post id out of a mirror GUID or link,
// e.g. https://nitter.net/SomeHandle/status/1234567890#m.
var statusIDRE = regexp.MustCompile(`/status/(\d+)`)

// Mirror reads an account's posts from a public Nitter-style RSS mirror.
// It needs no session, which makes it the fallback path when the
// authenticated API rejects us. Mirrors do not expose reply counts, so
// ReplyCount is always zero here.
type Mirror struct {
	baseURL   string
	userAgent string
	http      *http.Client
	parser    *gofeed.Parser
	logger    *slog.Logger
}

// NewMirror creates a mirror reader. baseURL defaults to https://nitter.net.
func NewMirror(baseURL string, logger *slog.Logger) *Mirror {
	if baseURL == "" {
		baseURL = "https://nitter.net"
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Mirror{
		baseURL:   strings.TrimRight(baseURL, "/"),
		userAgent: browser.DefaultUserAgent,
		http:      &http.Client{Timeout: 30 * time.Second},
		parser:    gofeed.NewParser(),
		logger:    logger,
	}
}

// RecentPosts fetches the account's RSS feed and keeps posts published at or
// after since. Entries without a parsable timestamp are conservatively kept.
func (m *Mirror) RecentPosts(ctx context.Context, handle string, since time.Time) ([]Post, error) {
	feedURL := fmt.Sprintf("%s/%s/rss", m.baseURL, handle)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, feedURL, nil)
	if err != nil {
		return nil, fmt.Errorf("timeline: build mirror request: %w", err)
	}
	req.Header.Set("User-Agent", m.userAgent)

	resp, err := m.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("timeline: fetch mirror @%s: %w", handle, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("timeline: mirror @%s: status %d", handle, resp.StatusCode)
	}

	feed, err := m.parser.Parse(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("timeline: parse mirror feed @%s: %w", handle, err)
	}

	posts := make([]Post, 0, len(feed.Items))
	for _, entry := range feed.Items {
		id := extractStatusID(entry.GUID)
		if id == "" {
			id = extractStatusID(entry.Link)
		}
		if id == "" {
			continue
		}

		created := ""
		if entry.PublishedParsed != nil {
			published := entry.PublishedParsed.UTC()
			if published.Before(since) {
				continue
			}
			created = published.Format(time.RFC3339)
		}

		text := entry.Title
		if text == "" {
			text = flattenHTML(entry.Description)
		}

		posts = append(posts, Post{
			ID:        id,
			Handle:    handle,
			Preview:   Preview(text),
			CreatedAt: created,
		})
		if len(posts) >= PageSize {
			break
		}
	}

	m.logger.Info("timeline: mirror discovered posts", "handle", handle, "in_range", len(posts))
	return posts, nil
}

func extractStatusID(s string) string {
	match := statusIDRE.FindStringSubmatch(s)
	if match == nil {
		return ""
	}
	return match[1]
}

// flattenHTML strips markup from a mirror description and collapses
// whitespace. Mirror feeds wrap the post text in paragraph tags.
func flattenHTML(fragment string) string {
	node, err := html.Parse(strings.NewReader(fragment))
	if err != nil {
		return fragment
	}
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
			b.WriteByte(' ')
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(node)
	return strings.Join(strings.Fields(b.String()), " ")
}
