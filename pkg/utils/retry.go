package utils

import (
	"context"
	"time"
)

// RetryWithBackoff runs op up to maxAttempts times, doubling the delay after
// each failure. Returns nil on the first success, the last error otherwise.
// maxAttempts <= 1 means a single attempt with no retry.
func RetryWithBackoff(ctx context.Context, maxAttempts int, baseDelay time.Duration, op func() error) error {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	var err error
	delay := baseDelay
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if err = op(); err == nil {
			return nil
		}
		if attempt == maxAttempts {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
		delay *= 2
	}
	return err
}
