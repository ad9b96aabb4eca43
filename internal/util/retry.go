package util

import (
	"context"
	"time"
)

// Retry calls fn up to maxAttempts times, waiting b.Delay(n) after the n-th
// failure. It returns nil on the first success, the last error when every
// attempt fails, or the context error if ctx ends while waiting.
func Retry(ctx context.Context, maxAttempts int, b Backoff, fn func() error) error {
	var err error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		if err = fn(); err == nil {
			return nil
		}
		if attempt == maxAttempts-1 {
			break
		}
		t := time.NewTimer(b.Delay(attempt))
		select {
		case <-ctx.Done():
			t.Stop()
			return ctx.Err()
		case <-t.C:
		}
	}
	return err
}
