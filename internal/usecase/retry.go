package usecase

import (
	"context"
	"time"
)

// defaultRetryBackoff is the first wait between attempts; it doubles after each failure
const defaultRetryBackoff = 500 * time.Millisecond

// withRetry runs fn up to retries+1 times, each attempt under its own timeout.
// It stops early when ctx is done.
func withRetry(ctx context.Context, retries int, timeout, backoff time.Duration, fn func(ctx context.Context) error) error {
	var lastErr error
	for attempt := 1; attempt <= retries+1; attempt++ {
		attemptCtx, cancel := context.WithTimeout(ctx, timeout)
		err := fn(attemptCtx)
		cancel()
		if err == nil {
			return nil
		}
		lastErr = err

		if ctx.Err() != nil {
			return ctx.Err()
		}
		if attempt > retries {
			break
		}

		wait := backoff << (attempt - 1)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
	}
	return lastErr
}
