// Package retry provides a bounded-retry combinator with capped
// exponential backoff. It has no knowledge of what it retries: every
// navigation and HTTP call site wraps itself in Do or DoValue.
package retry

import (
	"context"
	"fmt"
	"time"
)

// Config bounds the retry loop.
type Config struct {
	// MaxAttempts counts the initial attempt, so 3 means at most two retries.
	MaxAttempts  int
	InitialDelay time.Duration
	MaxDelay     time.Duration
}

// DefaultConfig matches the behaviour expected of transient network and
// page-navigation failures.
func DefaultConfig() Config {
	return Config{
		MaxAttempts:  3,
		InitialDelay: time.Second,
		MaxDelay:     30 * time.Second,
	}
}

func (c Config) withDefaults() Config {
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 3
	}
	if c.InitialDelay <= 0 {
		c.InitialDelay = time.Second
	}
	if c.MaxDelay <= 0 {
		c.MaxDelay = 30 * time.Second
	}
	return c
}

// Do invokes fn until it succeeds or attempts are exhausted, sleeping a
// capped exponential backoff between attempts. The sleep honours context
// cancellation. On exhaustion the last error is returned wrapped with the
// label and attempt count.
func Do(ctx context.Context, cfg Config, label string, fn func(ctx context.Context) error) error {
	cfg = cfg.withDefaults()

	var lastErr error
	for attempt := 1; attempt <= cfg.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("%s: %w", label, err)
		}
		lastErr = fn(ctx)
		if lastErr == nil {
			return nil
		}
		if attempt == cfg.MaxAttempts {
			break
		}

		delay := cfg.InitialDelay << (attempt - 1)
		if delay > cfg.MaxDelay || delay <= 0 {
			delay = cfg.MaxDelay
		}
		timer := time.NewTimer(delay)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return fmt.Errorf("%s: %w", label, ctx.Err())
		}
	}
	return fmt.Errorf("%s failed after %d attempts: %w", label, cfg.MaxAttempts, lastErr)
}

// DoValue is Do for operations that produce a value.
func DoValue[T any](ctx context.Context, cfg Config, label string, fn func(ctx context.Context) (T, error)) (T, error) {
	var out T
	err := Do(ctx, cfg, label, func(ctx context.Context) error {
		v, err := fn(ctx)
		if err != nil {
			return err
		}
		out = v
		return nil
	})
	return out, err
}
