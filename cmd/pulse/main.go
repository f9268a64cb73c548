// Command pulse is the feedback collection daemon: dashboard, scheduler and
// an optional MCP stdio mode for agent access.
//
// Usage:
//
//	pulse -config pulse.yaml              # dashboard + scheduler
//	pulse -config pulse.yaml -mcp         # serve MCP tools over stdio
//	pulse -config pulse.yaml -sql-trace   # log every SQL statement
//
// Dashboard credentials come from DASH_USER / DASH_PASS. The session secret
// comes from SESSION_SECRET, falling back to the password.
package main

import (
	"context"
	"crypto/sha256"
	"crypto/tls"
	"database/sql"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"golang.org/x/crypto/bcrypt"
	_ "modernc.org/sqlite"

	"github.com/induslabs/pulse/collector"
	"github.com/induslabs/pulse/dashboard"
	"github.com/induslabs/pulse/dbopen"
	"github.com/induslabs/pulse/feedback"
	"github.com/induslabs/pulse/mcpquic"
	"github.com/induslabs/pulse/notify"
	"github.com/induslabs/pulse/observability"
	_ "github.com/induslabs/pulse/trace" // registers the "sqlite-trace" driver
	"github.com/induslabs/pulse/watch"
)

func main() {
	configPath := flag.String("config", "pulse.yaml", "path to pulse.yaml config file")
	mcpMode := flag.Bool("mcp", false, "serve MCP tools over stdio instead of the dashboard")
	sqlTrace := flag.Bool("sql-trace", false, "log every SQL statement via the tracing driver")
	logLevel := flag.String("log-level", "info", "log level: debug, info, warn, error")
	flag.Parse()

	var level slog.Level
	switch *logLevel {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}
	// Logs go to stderr: in -mcp mode stdout carries the protocol.
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, logger, *configPath, *mcpMode, *sqlTrace); err != nil {
		logger.Error("pulse: fatal", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, logger *slog.Logger, configPath string, mcpMode, sqlTrace bool) error {
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

	// Observability lives in its own database so metric flushes never
	// contend with collection writes.
	obsPath := filepath.Join(filepath.Dir(cfg.Store.Path), "observability.db")
	obsDB, err := dbopen.Open(obsPath, dbopen.WithMkdirAll())
	if err != nil {
		return fmt.Errorf("open observability db: %w", err)
	}
	defer obsDB.Close()
	if err := observability.Init(obsDB); err != nil {
		return fmt.Errorf("observability schema: %w", err)
	}
	events := observability.NewEventLogger(obsDB)
	metrics := observability.NewMetricsManager(obsDB, 256, 10*time.Second)
	defer metrics.Close()

	opts := []collector.ServiceOption{
		collector.WithEventLogger(events),
		collector.WithMetrics(metrics),
	}
	for _, n := range notify.FromConfig(cfg.Notification, logger) {
		opts = append(opts, collector.WithNotifier(n))
	}
	svc, err := collector.New(db, cfg, logger, opts...)
	if err != nil {
		return err
	}

	if mcpMode {
		srv := mcp.NewServer(&mcp.Implementation{
			Name:    "pulse",
			Version: "1.0.0",
		}, nil)
		svc.RegisterMCP(srv)
		logger.Info("pulse: MCP stdio serving")
		return srv.Run(ctx, &mcp.StdioTransport{})
	}

	// Optional MCP over QUIC alongside the dashboard, for agents on other
	// hosts. Failures here never take the dashboard down.
	if os.Getenv("MCP_TRANSPORT") == "quic" {
		mcpSrv := mcp.NewServer(&mcp.Implementation{
			Name:    "pulse",
			Version: "1.0.0",
		}, nil)
		svc.RegisterMCP(mcpSrv)

		quicAddr := env("MCP_QUIC_ADDR", ":9444")
		certFile := os.Getenv("MCP_QUIC_CERT")
		keyFile := os.Getenv("MCP_QUIC_KEY")

		var tlsCfg *tls.Config
		var tlsErr error
		if certFile != "" && keyFile != "" {
			tlsCfg, tlsErr = mcpquic.ServerTLSConfig(certFile, keyFile)
		} else {
			tlsCfg, tlsErr = mcpquic.SelfSignedTLSConfig()
		}
		if tlsErr != nil {
			logger.Error("pulse: MCP QUIC TLS", "error", tlsErr)
		} else {
			ql, qErr := mcpquic.NewListener(quicAddr, tlsCfg, mcpSrv, logger)
			if qErr != nil {
				logger.Error("pulse: MCP QUIC listener", "error", qErr)
			} else {
				go func() {
					logger.Info("pulse: MCP QUIC starting", "addr", quicAddr)
					if sErr := ql.Serve(ctx); sErr != nil && ctx.Err() == nil {
						logger.Error("pulse: MCP QUIC", "error", sErr)
					}
				}()
			}
		}
	}

	// Scheduler (no-op unless enabled in config).
	svc.Start(ctx)

	return serveDashboard(ctx, logger, svc, db, events, metrics, cfg)
}

func serveDashboard(ctx context.Context, logger *slog.Logger, svc *collector.Service, db *sql.DB, events *observability.EventLogger, metrics *observability.MetricsManager, cfg *collector.Config) error {
	username := env("DASH_USER", "indus2026")
	password := env("DASH_PASS", "adminindus2026")

	secretInput := os.Getenv("SESSION_SECRET")
	if secretInput == "" {
		secretInput = password
	}
	// Derive a 32-byte JWT secret via SHA-256 (satisfies guard.MinSecretLen).
	secretHash := sha256.Sum256([]byte(secretInput))

	passHash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}

	notes, err := feedback.New(feedback.Config{
		DB:         db,
		OperatorFn: dashboard.OperatorFromRequest,
	})
	if err != nil {
		return fmt.Errorf("notes widget: %w", err)
	}

	watcher := watch.New(db, watch.Options{
		Debounce: 500 * time.Millisecond,
		Logger:   logger,
	})

	dash, err := dashboard.New(svc, dashboard.Config{
		Secret:   secretHash[:],
		Username: username,
		PassHash: passHash,
		Handle:   cfg.Monitor.Handle,
		Logger:   logger,
	},
		dashboard.WithWatcher(watcher),
		dashboard.WithEventLogger(events),
		dashboard.WithMetrics(metrics),
		dashboard.WithNotes(notes),
	)
	if err != nil {
		return fmt.Errorf("dashboard: %w", err)
	}
	dash.Start(ctx)

	srv := &http.Server{
		Addr:              cfg.Dashboard.Listen,
		Handler:           dash.Router(),
		ReadHeaderTimeout: 10 * time.Second,
		// No WriteTimeout: /api/collect streams progress for the length
		// of a scrape run.
		IdleTimeout: 60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("pulse: dashboard starting", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("dashboard server: %w", err)
	case <-ctx.Done():
	}
	logger.Info("pulse: shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("pulse: shutdown", "error", err)
	}
	logger.Info("pulse: stopped")
	return nil
}

func env(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
