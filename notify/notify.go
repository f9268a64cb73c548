// Package notify delivers each run's newly collected feedback to outbound
// channels: a CSV snapshot, an SMTP digest, a signed webhook and a Telegram
// chat.
//
// Every channel implements collector.Notifier. The collector invokes the
// channels after a successful run with exactly that run's new items; a
// failing channel is logged by the collector and never fails the run.
// FromConfig assembles the enabled channels:
//
//	var opts []collector.ServiceOption
//	for _, n := range notify.FromConfig(cfg.Notification, logger) {
//		opts = append(opts, collector.WithNotifier(n))
//	}
package notify

import (
	"log/slog"

	"github.com/induslabs/pulse/collector"
)

// FromConfig builds the enabled channels in delivery order: CSV first, so
// the snapshot on disk is current even when a network channel fails after it.
func FromConfig(cfg collector.NotificationConfig, logger *slog.Logger) []collector.Notifier {
	var out []collector.Notifier
	if cfg.CSV.On() {
		out = append(out, NewCSVExporter(cfg.CSV.Path, logger))
	}
	if cfg.Email.Enabled {
		out = append(out, NewEmailDigest(cfg.Email, logger))
	}
	if cfg.Webhook.Enabled {
		out = append(out, NewWebhook(cfg.Webhook, logger))
	}
	if cfg.Telegram.Enabled {
		out = append(out, NewTelegram(cfg.Telegram, logger))
	}
	return out
}
