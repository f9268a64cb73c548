package notify

import (
	"context"
	"crypto/tls"
	"fmt"
	"log/slog"
	"net"
	"net/smtp"
	"strconv"
	"strings"
	"time"

	"github.com/induslabs/pulse/collector"
)

// EmailDigest sends a plain-text summary of a run's new items, grouped by
// category. Runs that found nothing send no mail.
type EmailDigest struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	To       []string
	Logger   *slog.Logger

	now func() time.Time
}

// NewEmailDigest creates the SMTP channel. Port defaults to 587.
func NewEmailDigest(cfg collector.EmailConfig, logger *slog.Logger) *EmailDigest {
	if logger == nil {
		logger = slog.Default()
	}
	port := cfg.Port
	if port == 0 {
		port = 587
	}
	return &EmailDigest{
		Host:     cfg.Host,
		Port:     port,
		Username: cfg.Username,
		Password: cfg.Password,
		From:     cfg.From,
		To:       cfg.To,
		Logger:   logger,
		now:      time.Now,
	}
}

func (e *EmailDigest) Name() string { return "email" }

func (e *EmailDigest) Notify(ctx context.Context, items []*collector.Item) error {
	if len(items) == 0 {
		return nil
	}

	msg := e.buildMessage(items)

	addr := net.JoinHostPort(e.Host, strconv.Itoa(e.Port))
	conn, err := (&net.Dialer{Timeout: 30 * time.Second}).DialContext(ctx, "tcp", addr)
	if err != nil {
		return &ErrDeliveryFailed{Channel: "email", Cause: err}
	}
	c, err := smtp.NewClient(conn, e.Host)
	if err != nil {
		conn.Close()
		return &ErrDeliveryFailed{Channel: "email", Cause: err}
	}
	defer c.Close()

	// Upgrade opportunistically; servers that never offer STARTTLS (local
	// relays) still work.
	if ok, _ := c.Extension("STARTTLS"); ok {
		if err := c.StartTLS(&tls.Config{ServerName: e.Host}); err != nil {
			return &ErrDeliveryFailed{Channel: "email", Cause: fmt.Errorf("starttls: %w", err)}
		}
	}
	if e.Username != "" {
		auth := smtp.PlainAuth("", e.Username, e.Password, e.Host)
		if err := c.Auth(auth); err != nil {
			return &ErrDeliveryFailed{Channel: "email", Cause: fmt.Errorf("auth: %w", err)}
		}
	}

	if err := c.Mail(e.From); err != nil {
		return &ErrDeliveryFailed{Channel: "email", Cause: err}
	}
	for _, to := range e.To {
		if err := c.Rcpt(to); err != nil {
			return &ErrDeliveryFailed{Channel: "email", Cause: fmt.Errorf("rcpt %s: %w", to, err)}
		}
	}
	w, err := c.Data()
	if err != nil {
		return &ErrDeliveryFailed{Channel: "email", Cause: err}
	}
	if _, err := w.Write([]byte(msg)); err != nil {
		return &ErrDeliveryFailed{Channel: "email", Cause: err}
	}
	if err := w.Close(); err != nil {
		return &ErrDeliveryFailed{Channel: "email", Cause: err}
	}
	if err := c.Quit(); err != nil {
		return &ErrDeliveryFailed{Channel: "email", Cause: err}
	}

	e.Logger.Info("notify: email digest sent", "items", len(items), "recipients", len(e.To))
	return nil
}

// digestOrder fixes the section order of the digest body.
var digestOrder = []string{
	collector.CategoryFeatureRequest,
	collector.CategoryProductFeedback,
	collector.CategoryGeneralFeedback,
}

func (e *EmailDigest) buildMessage(items []*collector.Item) string {
	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", e.From)
	fmt.Fprintf(&b, "To: %s\r\n", strings.Join(e.To, ", "))
	fmt.Fprintf(&b, "Subject: Pulse: %d new feedback items\r\n", len(items))
	fmt.Fprintf(&b, "Date: %s\r\n", e.now().UTC().Format(time.RFC1123Z))
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=UTF-8\r\n")
	b.WriteString("\r\n")

	groups := make(map[string][]*collector.Item)
	for _, it := range items {
		groups[it.Category] = append(groups[it.Category], it)
	}
	for _, cat := range digestOrder {
		list := groups[cat]
		if len(list) == 0 {
			continue
		}
		fmt.Fprintf(&b, "== %s (%d) ==\r\n\r\n", categoryTitle(cat), len(list))
		for _, it := range list {
			fmt.Fprintf(&b, "- @%s: %s\r\n  %s\r\n\r\n", it.AuthorHandle, it.Text, it.URL)
		}
	}
	return b.String()
}

func categoryTitle(cat string) string {
	switch cat {
	case collector.CategoryFeatureRequest:
		return "Feature requests"
	case collector.CategoryProductFeedback:
		return "Product feedback"
	default:
		return "General feedback"
	}
}
