package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/induslabs/pulse/collector"
	"github.com/induslabs/pulse/connectivity"
	"github.com/induslabs/pulse/guard"
)

const telegramAPI = "https://api.telegram.org"

// telegramTextLimit is the Bot API maximum message length.
const telegramTextLimit = 4096

// Telegram pushes a compact summary of each run's new items to one chat via
// the Bot API sendMessage call. Empty runs send nothing.
//
// Transport failures and 5xx responses are retried with backoff; an explicit
// API rejection (bad chat, bad token) is not.
type Telegram struct {
	Token   string
	ChatID  string
	BaseURL string // tests point this at a local server
	Logger  *slog.Logger

	client  *http.Client
	retries int
	backoff time.Duration
}

// NewTelegram creates the Telegram channel.
func NewTelegram(cfg collector.TelegramConfig, logger *slog.Logger) *Telegram {
	if logger == nil {
		logger = slog.Default()
	}
	return &Telegram{
		Token:   cfg.Token,
		ChatID:  cfg.ChatID,
		BaseURL: telegramAPI,
		Logger:  logger,
		client:  &http.Client{Timeout: 30 * time.Second},
		retries: 2,
		backoff: 500 * time.Millisecond,
	}
}

func (t *Telegram) Name() string { return "telegram" }

func (t *Telegram) Notify(ctx context.Context, items []*collector.Item) error {
	if len(items) == 0 {
		return nil
	}

	payload := map[string]any{
		"chat_id":                  t.ChatID,
		"text":                     t.buildText(items),
		"disable_web_page_preview": true,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return &ErrDeliveryFailed{Channel: "telegram", Cause: err}
	}

	send := connectivity.Chain(
		connectivity.WithRetry(t.retries, t.backoff, t.Logger),
	)(t.call)
	data, err := send(ctx, body)
	if err != nil {
		return &ErrDeliveryFailed{Channel: "telegram", Cause: err}
	}

	var api struct {
		OK          bool   `json:"ok"`
		Description string `json:"description"`
	}
	if err := json.Unmarshal(data, &api); err != nil {
		return &ErrDeliveryFailed{Channel: "telegram",
			Cause: fmt.Errorf("parse response: %w", err)}
	}
	if !api.OK {
		return &ErrDeliveryFailed{Channel: "telegram",
			Cause: fmt.Errorf("api: %s", api.Description)}
	}

	t.Logger.Info("notify: telegram summary sent", "items", len(items), "chat_id", t.ChatID)
	return nil
}

// call performs one sendMessage round trip. A 5xx is returned as an error so
// the retry chain re-sends; any other status carries an API verdict the
// caller parses.
func (t *Telegram) call(ctx context.Context, body []byte) ([]byte, error) {
	url := t.BaseURL + "/bot" + t.Token + "/sendMessage"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := guard.LimitedReadAll(resp.Body, guard.MaxResponseBody)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= 500 {
		return nil, fmt.Errorf("api returned %d", resp.StatusCode)
	}
	return data, nil
}

func (t *Telegram) buildText(items []*collector.Item) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%d new feedback items", len(items))
	for i, it := range items {
		line := fmt.Sprintf("\n[%s] @%s: %s", it.Category, it.AuthorHandle, firstLine(it.Text))
		if b.Len()+len(line) > telegramTextLimit-32 {
			fmt.Fprintf(&b, "\n…and %d more", len(items)-i)
			break
		}
		b.WriteString(line)
	}
	return b.String()
}

// firstLine flattens an item to its first line, clipped to keep the summary
// scannable on a phone.
func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[:i]
	}
	runes := []rune(s)
	if len(runes) > 200 {
		return string(runes[:200]) + "…"
	}
	return s
}
