package retry

import (
	"context"
	"fmt"
	"time"
)

// Config holds retry configuration for bounded retries.
type Config struct {
	MaxAttempts  int           // Maximum number of retry attempts
	InitialDelay time.Duration // Delay before first retry
	MaxDelay     time.Duration // Maximum delay between retries
	Multiplier   float64       // Exponential backoff multiplier (typically 2.0)
}

// DefaultConfig returns a default bounded retry configuration.
func DefaultConfig() Config {
	return Config{
		MaxAttempts:  3,
		InitialDelay: 100 * time.Millisecond,
		MaxDelay:     5 * time.Second,
		Multiplier:   2.0,
	}
}

// Retry executes fn with exponential backoff until it succeeds, the attempt
// budget is exhausted, or ctx is cancelled.
func Retry(ctx context.Context, cfg Config, fn func() error) error {
	var lastErr error

	delay := cfg.InitialDelay
	for attempt := 0; attempt <= cfg.MaxAttempts; attempt++ {
		select {
		case <-ctx.Done():
			return fmt.Errorf("retry cancelled: %w", ctx.Err())
		default:
		}

		if lastErr = fn(); lastErr == nil {
			return nil
		}

		if attempt == cfg.MaxAttempts {
			break
		}

		select {
		case <-ctx.Done():
			return fmt.Errorf("retry cancelled during wait: %w", ctx.Err())
		case <-time.After(delay):
		}

		delay = time.Duration(float64(delay) * cfg.Multiplier)
		if delay > cfg.MaxDelay {
			delay = cfg.MaxDelay
		}
	}

	return fmt.Errorf("max attempts (%d) exceeded: %w", cfg.MaxAttempts, lastErr)
}

// Forever runs fn in a loop with a fixed delay between iterations until ctx
// is cancelled. The return value of fn is ignored beyond scheduling the next
// iteration: connection loops on both bridge links retry unconditionally and
// indefinitely. Cancellation interrupts the delay promptly.
func Forever(ctx context.Context, delay time.Duration, fn func(context.Context) error) {
	for {
		if ctx.Err() != nil {
			return
		}

		_ = fn(ctx)

		select {
		case <-ctx.Done():
			return
		case <-time.After(delay):
		}
	}
}
