// Package shield provides the HTTP security middleware the dashboard mounts:
// security headers, rate limiting, body limits, request tracing, flash
// messages, and HEAD method handling.
//
// Usage:
//
//	r := chi.NewRouter()
//	for _, mw := range shield.DefaultStack(shield.DefaultRules()) {
//	    r.Use(mw)
//	}
package shield

import (
	"context"
	"net/http"
)

type contextKey string

const (
	// LoggerKey is the context key for the per-request structured logger.
	LoggerKey contextKey = "shield_logger"

	// FlashKey is the context key for flash messages.
	FlashKey contextKey = "shield_flash"
)

// FlashMessage represents a one-time notification shown to the user.
type FlashMessage struct {
	Type    string // "success" or "error"
	Message string
}

// GetFlash retrieves the flash message from the request context.
func GetFlash(ctx context.Context) *FlashMessage {
	v, _ := ctx.Value(FlashKey).(*FlashMessage)
	return v
}

// DefaultStack returns the standard middleware stack for the dashboard.
// Ordered: HeadToGet → SecurityHeaders → MaxFormBody → TraceID → RateLimiter
// → Flash. Static assets bypass rate limiting.
func DefaultStack(rules map[string]RateLimitConfig) []func(http.Handler) http.Handler {
	rl := NewRateLimiter(rules, "/static/", "/healthz")
	return []func(http.Handler) http.Handler{
		HeadToGet,
		SecurityHeaders(DefaultHeaders()),
		MaxFormBody(64 * 1024),
		TraceID,
		rl.Middleware,
		Flash,
	}
}
