// Package retry provides a bounded retry loop for transient I/O failures.
// Store operations are retried a small fixed number of times with a short
// fixed backoff; the last error surfaces to the caller once attempts are
// exhausted.
package retry

import (
	"context"
	"fmt"
	"time"
)

const (
	defaultMaxAttempts = 3
	defaultBackoff     = 200 * time.Millisecond
)

// Config represents retry configuration.
type Config struct {
	MaxAttempts int           // maximum number of attempts (default: 3)
	Backoff     time.Duration // delay between attempts (default: 200ms)
}

// Do executes fn until it succeeds or the attempt budget is exhausted.
// Context cancellation is checked before each backoff wait.
func Do(ctx context.Context, fn func() error, cfg Config) error {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = defaultMaxAttempts
	}
	if cfg.Backoff <= 0 {
		cfg.Backoff = defaultBackoff
	}

	var lastErr error

	for attempt := 0; attempt < cfg.MaxAttempts; attempt++ {
		err := fn()
		if err == nil {
			return nil
		}
		lastErr = err

		if attempt == cfg.MaxAttempts-1 {
			break
		}

		select {
		case <-time.After(cfg.Backoff):
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	return fmt.Errorf("all %d attempts failed: %w", cfg.MaxAttempts, lastErr)
}
