package settlement

import (
	"context"
	"time"
)

// Retry policy for transient lock contention. Three attempts with a
// short growing sleep is enough to ride out a deadlock burst without
// holding the HTTP request open for long.
const (
	retryAttempts = 3
	retryBaseWait = 25 * time.Millisecond
)

// withRetry runs fn up to retryAttempts times, sleeping between
// attempts, as long as the failure is retryable per IsRetryable. A
// non-retryable error returns immediately. When attempts are exhausted
// the last error is normalised to ErrConcurrentModification so callers
// see a single taxonomy entry instead of raw driver errors.
func withRetry(ctx context.Context, fn func() error) error {
	var err error
	for attempt := 0; attempt < retryAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-time.After(retryBaseWait * time.Duration(attempt)):
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		err = fn()
		if err == nil {
			return nil
		}
		if !IsRetryable(err) {
			return err
		}
	}
	return ErrConcurrentModification
}
