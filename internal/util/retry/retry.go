// Package retry provides fixed-interval retry with an attempt budget.
//
// All polling in this system (stack status, health probes, artifact
// downloads) is a fixed-interval spin with a bounded number of attempts;
// there is no exponential backoff anywhere in the workflow.
package retry

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Fixed runs operation up to attempts times, sleeping interval between
// attempts. It returns nil on the first success, the wrapped last error
// once the budget is exhausted, and the context error if ctx is canceled
// while waiting.
//
// Errors wrapped with Fatal are returned immediately without further
// attempts.
func Fixed(ctx context.Context, attempts int, interval time.Duration, operation func() error) error {
	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		err := operation()
		if err == nil {
			return nil
		}
		lastErr = err

		if IsFatal(err) {
			return fmt.Errorf("fatal error (not retrying): %w", err)
		}
		if attempt == attempts {
			break
		}

		select {
		case <-ctx.Done():
			return fmt.Errorf("canceled after %d attempts: %w", attempt, ctx.Err())
		case <-time.After(interval):
		}
	}
	return fmt.Errorf("operation failed after %d attempts: %w", attempts, lastErr)
}

// FatalError wraps an error to mark it as non-retryable.
type FatalError struct {
	Err error
}

func (e *FatalError) Error() string {
	return e.Err.Error()
}

func (e *FatalError) Unwrap() error {
	return e.Err
}

// Fatal marks an error as non-retryable.
func Fatal(err error) error {
	if err == nil {
		return nil
	}
	return &FatalError{Err: err}
}

// IsFatal reports whether err is marked non-retryable.
func IsFatal(err error) bool {
	var fatalErr *FatalError
	return errors.As(err, &fatalErr)
}
