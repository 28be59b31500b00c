// CLAUDE:SUMMARY Retry with linear backoff and safe-execute wrappers that downgrade failures to a logged fallback value.
// Package recovery bounds repeated attempts and contains failures at the
// engine boundary.
package recovery

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/hazyhaar/tourguide/pace"
)

// ExhaustedError is returned by Retry after the last attempt fails. It
// unwraps to that attempt's error.
type ExhaustedError struct {
	Attempts int
	Err      error
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("recovery: %d attempts exhausted: %v", e.Attempts, e.Err)
}

func (e *ExhaustedError) Unwrap() error { return e.Err }

type retryConfig struct {
	sleep  pace.Sleeper
	logger *slog.Logger
	name   string
}

// Option configures Retry.
type Option func(*retryConfig)

// WithSleeper replaces the backoff timer. Tests use it to observe delays.
func WithSleeper(s pace.Sleeper) Option { return func(c *retryConfig) { c.sleep = s } }

// WithLogger logs each failed attempt at debug.
func WithLogger(l *slog.Logger) Option { return func(c *retryConfig) { c.logger = l } }

// WithName labels log lines.
func WithName(name string) Option { return func(c *retryConfig) { c.name = name } }

// Retry invokes op up to maxAttempts times. Before attempt n+1 it waits
// baseDelay*n. The final failure is returned as *ExhaustedError; context
// cancellation during a wait returns the context error.
func Retry[T any](ctx context.Context, maxAttempts int, baseDelay time.Duration, op func(ctx context.Context) (T, error), opts ...Option) (T, error) {
	cfg := retryConfig{sleep: pace.Sleep, name: "operation"}
	for _, o := range opts {
		o(&cfg)
	}
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	var zero T
	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		v, err := op(ctx)
		if err == nil {
			return v, nil
		}
		lastErr = err
		if cfg.logger != nil {
			cfg.logger.Debug("recovery: attempt failed",
				"name", cfg.name, "attempt", attempt, "max", maxAttempts, "error", err)
		}
		if attempt == maxAttempts {
			break
		}
		if err := cfg.sleep(ctx, baseDelay*time.Duration(attempt)); err != nil {
			return zero, err
		}
	}
	return zero, &ExhaustedError{Attempts: maxAttempts, Err: lastErr}
}

// SafeExecute runs op and returns fallback when it fails or panics. The
// failure is logged at error with message.
func SafeExecute[T any](ctx context.Context, logger *slog.Logger, op func(ctx context.Context) (T, error), fallback T, message string) (result T) {
	if logger == nil {
		logger = slog.Default()
	}
	defer func() {
		if r := recover(); r != nil {
			logger.Error(message, "panic", fmt.Sprint(r))
			result = fallback
		}
	}()

	v, err := op(ctx)
	if err != nil {
		logger.Error(message, "error", err)
		return fallback
	}
	return v
}
