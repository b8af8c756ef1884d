// pkg/retry/retry.go - functions for retrying actions with exponential backoff.

package retry

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/windowsadmins/appstore/pkg/logging"
)

// NonRetryableError wraps an error that should not be retried.
type NonRetryableError struct {
	Err error
}

func (e *NonRetryableError) Error() string { return e.Err.Error() }
func (e *NonRetryableError) Unwrap() error { return e.Err }

// Permanent marks err as not worth retrying.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &NonRetryableError{Err: err}
}

// RetryConfig defines the configuration for retry attempts
type RetryConfig struct {
	MaxRetries      int
	InitialInterval time.Duration
	Multiplier      float64
}

// DefaultConfig is used for image downloads.
var DefaultConfig = RetryConfig{
	MaxRetries:      3,
	InitialInterval: 500 * time.Millisecond,
	Multiplier:      2,
}

// Retry retries action with exponential backoff until it succeeds, returns
// a permanent error, or ctx is done.
func Retry(ctx context.Context, config RetryConfig, action func(ctx context.Context) error) error {
	interval := config.InitialInterval
	attempts := max(config.MaxRetries, 1)

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		err := action(ctx)
		if err == nil {
			return nil
		}
		lastErr = err

		var permanent *NonRetryableError
		if errors.As(err, &permanent) {
			logging.Warn("Non-retryable error encountered", "attempt", attempt, "error", permanent.Err)
			return permanent.Err
		}

		errorMsg := err.Error()
		if strings.Contains(strings.ToLower(errorMsg), "status 404") {
			errorMsg = "not found (404): resource may have been moved or deleted"
		}

		if attempt == attempts {
			logging.Warn(fmt.Sprintf("Attempt %d/%d failed: %s. No more retries.", attempt, attempts, errorMsg))
			break
		}
		logging.Debug(fmt.Sprintf("Attempt %d/%d failed: %s. Retrying in %s...", attempt, attempts, errorMsg, interval))

		timer := time.NewTimer(interval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
		if config.Multiplier > 0 {
			interval = time.Duration(float64(interval) * config.Multiplier)
		}
	}

	return fmt.Errorf("action failed after %d attempts: %w", attempts, lastErr)
}
