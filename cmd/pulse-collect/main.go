// Command pulse-collect runs a single collection pass and exits.
//
// Usage:
//
//	pulse-collect -config pulse.yaml                  # last 24 hours
//	pulse-collect -config pulse.yaml -since 7d        # last 7 days
//	pulse-collect -config pulse.yaml -since 2026-02-25
//
// Progress lines go to stdout; structured logs go to stderr.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	_ "modernc.org/sqlite"

	"github.com/induslabs/pulse/collector"
	"github.com/induslabs/pulse/dbopen"
	"github.com/induslabs/pulse/notify"
	_ "github.com/induslabs/pulse/trace" // registers the "sqlite-trace" driver
)

func main() {
	configPath := flag.String("config", "pulse.yaml", "path to pulse.yaml config file")
	since := flag.String("since", "", `collection window: "24h", "7d", "2w" or "2026-02-25" (default 24h)`)
	sqlTrace := flag.Bool("sql-trace", false, "log every SQL statement via the tracing driver")
	logLevel := flag.String("log-level", "warn", "log level: debug, info, warn, error")
	flag.Parse()

	var level slog.Level
	switch *logLevel {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelWarn
	}
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, logger, *configPath, *since, *sqlTrace); err != nil {
		fmt.Fprintln(os.Stderr, "ERROR:", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, logger *slog.Logger, configPath, since string, sqlTrace bool) error {
	cfg, err := collector.LoadConfig(configPath)
	if err != nil {
		return err
	}

	openOpts := []dbopen.Option{dbopen.WithMkdirAll()}
	if sqlTrace {
		openOpts = append(openOpts, dbopen.WithTrace())
	}
	db, err := dbopen.Open(cfg.Store.Path, openOpts...)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer db.Close()

	var opts []collector.ServiceOption
	for _, n := range notify.FromConfig(cfg.Notification, logger) {
		opts = append(opts, collector.WithNotifier(n))
	}
	svc, err := collector.New(db, cfg, logger, opts...)
	if err != nil {
		return err
	}

	_, err = svc.Run(ctx, since, func(line string) { fmt.Println(line) })
	return err
}
