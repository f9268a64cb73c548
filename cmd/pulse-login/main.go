// Command pulse-login opens a visible Chrome window for a manual x.com
// sign-in, detects when the session cookies land, and saves them to the
// configured cookie file.
//
// Usage:
//
//	pulse-login -config pulse.yaml
//	pulse-login -cookies data/cookies.json
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/induslabs/pulse/browser"
	"github.com/induslabs/pulse/collector"
)

func main() {
	configPath := flag.String("config", "pulse.yaml", "path to pulse.yaml config file")
	cookiesPath := flag.String("cookies", "", "cookie file path (overrides config)")
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

	if err := run(ctx, logger, *configPath, *cookiesPath); err != nil {
		fmt.Fprintln(os.Stderr, "ERROR:", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, logger *slog.Logger, configPath, cookiesPath string) error {
	remote := ""
	if cookiesPath == "" {
		cfg, err := collector.LoadConfig(configPath)
		if err != nil {
			return err
		}
		cookiesPath = cfg.Platform.CookiesFile
		remote = cfg.Browser.Remote
	}

	m := browser.NewManager(browser.Config{
		RemoteURL:  remote,
		Headful:    true,
		SlowMotion: 50 * time.Millisecond,
		Logger:     logger,
	})
	defer m.Close()

	line := strings.Repeat("=", 55)
	fmt.Println()
	fmt.Println(line)
	fmt.Println("  Chrome window is open.")
	fmt.Println("  Log in to X normally.")
	fmt.Println("  Login is detected automatically.")
	fmt.Println(line)
	fmt.Println()
	fmt.Println("Waiting for login...")

	res, err := browser.Login(ctx, m, cookiesPath)
	if err != nil {
		return err
	}

	if res.Found {
		fmt.Printf("\nCookies saved to %s\n", cookiesPath)
		fmt.Printf("  auth_token: %s...\n", prefix(res.Jar.AuthToken(), 10))
		fmt.Printf("  ct0: %s...\n", prefix(res.Jar.CSRFToken(), 10))
		fmt.Printf("  (%d total cookies)\n", len(res.Jar))
		fmt.Println("\nRun:  pulse-collect -since 7d")
		return nil
	}

	fmt.Println("\nWARNING: auth_token or ct0 not found.")
	names := make([]string, 0, len(res.Jar))
	for name := range res.Jar {
		names = append(names, name)
	}
	fmt.Printf("Cookies found: %s\n", strings.Join(names, ", "))
	if len(res.Jar) > 0 {
		fmt.Println("Saved what we have, might still work.")
	}
	return nil
}

func prefix(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
