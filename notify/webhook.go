package notify

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/induslabs/pulse/collector"
	"github.com/induslabs/pulse/connectivity"
	"github.com/induslabs/pulse/guard"
)

// Webhook POSTs each run's new items as JSON. When a secret is configured
// the payload is signed GitHub-style: an X-Signature-256 header carrying
// "sha256=" plus the hex HMAC-SHA256 of the body. Empty runs send nothing.
//
// Delivery is retried twice with backoff; receivers that drop the odd
// request still get their payload without failing the run.
type Webhook struct {
	URL    string
	Secret string
	Logger *slog.Logger

	// Validate rejects unsafe destinations before each send. Defaults to
	// guard.ValidateURL; override in tests that target loopback servers.
	Validate func(string) error

	client  *http.Client
	retries int
	backoff time.Duration
}

// NewWebhook creates the webhook channel.
func NewWebhook(cfg collector.WebhookConfig, logger *slog.Logger) *Webhook {
	if logger == nil {
		logger = slog.Default()
	}
	return &Webhook{
		URL:      cfg.URL,
		Secret:   cfg.Secret,
		Logger:   logger,
		Validate: guard.ValidateURL,
		client:   &http.Client{Timeout: 30 * time.Second},
		retries:  2,
		backoff:  500 * time.Millisecond,
	}
}

func (w *Webhook) Name() string { return "webhook" }

type webhookPayload struct {
	NewItems int               `json:"new_items"`
	Items    []*collector.Item `json:"items"`
}

func (w *Webhook) Notify(ctx context.Context, items []*collector.Item) error {
	if len(items) == 0 {
		return nil
	}
	if err := w.Validate(w.URL); err != nil {
		return &ErrDeliveryFailed{Channel: "webhook", Cause: err}
	}

	body, err := json.Marshal(webhookPayload{NewItems: len(items), Items: items})
	if err != nil {
		return &ErrDeliveryFailed{Channel: "webhook", Cause: err}
	}

	send := connectivity.Chain(
		connectivity.WithRetry(w.retries, w.backoff, w.Logger),
	)(w.post)
	if _, err := send(ctx, body); err != nil {
		return &ErrDeliveryFailed{Channel: "webhook", Cause: err}
	}

	w.Logger.Info("notify: webhook delivered", "items", len(items))
	return nil
}

// post performs one signed delivery attempt.
func (w *Webhook) post(ctx context.Context, body []byte) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.URL, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if w.Secret != "" {
		mac := hmac.New(sha256.New, []byte(w.Secret))
		mac.Write(body)
		req.Header.Set("X-Signature-256", "sha256="+hex.EncodeToString(mac.Sum(nil)))
	}

	resp, err := w.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))

	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("endpoint returned %d", resp.StatusCode)
	}
	return nil, nil
}
