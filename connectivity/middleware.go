package connectivity

import (
	"context"
	"errors"
	"log/slog"
	"time"
)

// WithRetry returns a HandlerMiddleware that retries failed calls with
// exponential backoff: baseBackoff, then doubled per attempt. Context
// cancellation and an open circuit stop the retries, since neither will
// improve on the next attempt. logger may be nil for silent retries.
func WithRetry(maxRetries int, baseBackoff time.Duration, logger *slog.Logger) HandlerMiddleware {
	return func(next Handler) Handler {
		return func(ctx context.Context, payload []byte) ([]byte, error) {
			var lastErr error
			for attempt := 0; attempt <= maxRetries; attempt++ {
				resp, err := next(ctx, payload)
				if err == nil {
					return resp, nil
				}
				lastErr = err

				if ctx.Err() != nil {
					return nil, lastErr
				}
				var open *ErrCircuitOpen
				if errors.As(err, &open) {
					return nil, err
				}

				if attempt < maxRetries {
					wait := baseBackoff * (1 << uint(attempt))
					if logger != nil {
						logger.WarnContext(ctx, "retrying call",
							"attempt", attempt+1,
							"max_retries", maxRetries,
							"backoff_ms", wait.Milliseconds(),
							"error", err)
					}
					select {
					case <-ctx.Done():
						return nil, lastErr
					case <-time.After(wait):
					}
				}
			}
			return nil, lastErr
		}
	}
}

// WithFallback returns a HandlerMiddleware that runs a secondary handler
// when the primary fails. Context cancellation is not retried on the
// fallback: it means the caller gave up, not that the primary is down.
func WithFallback(fallback Handler, service string, logger *slog.Logger) HandlerMiddleware {
	return func(next Handler) Handler {
		if fallback == nil {
			return next
		}
		return func(ctx context.Context, payload []byte) ([]byte, error) {
			resp, err := next(ctx, payload)
			if err == nil {
				return resp, nil
			}

			if ctx.Err() != nil {
				return nil, err
			}

			if logger != nil {
				logger.WarnContext(ctx, "primary failed, using fallback",
					"service", service,
					"primary_error", err)
			}

			return fallback(ctx, payload)
		}
	}
}
