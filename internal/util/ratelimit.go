package util

import (
	"context"
	"sync"
	"time"
)

// RateLimiter spaces operations at a fixed rate with a burst of one.
type RateLimiter struct {
	interval time.Duration
	mu       sync.Mutex
	next     time.Time // earliest start of the next operation
}

// NewRateLimiter creates a RateLimiter that allows perMinute operations per
// minute. A non-positive rate disables limiting.
func NewRateLimiter(perMinute int) *RateLimiter {
	rl := &RateLimiter{}
	if perMinute > 0 {
		rl.interval = time.Minute / time.Duration(perMinute)
	}
	return rl
}

// Wait blocks until the caller may proceed or the context is cancelled.
func (rl *RateLimiter) Wait(ctx context.Context) error {
	rl.mu.Lock()
	now := time.Now()
	start := rl.next
	if start.Before(now) {
		start = now
	}
	rl.next = start.Add(rl.interval)
	rl.mu.Unlock()

	wait := time.Until(start)
	if wait <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(wait)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
