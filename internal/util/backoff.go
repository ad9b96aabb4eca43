package util

import "time"

// Backoff describes the delay before reconnect attempt n (0-based).
// A Factor of 1 (or less) gives a fixed delay of Base; larger factors grow
// the delay geometrically, capped at Max when Max is positive. There is no
// jitter and no attempt limit.
type Backoff struct {
	Base   time.Duration
	Max    time.Duration
	Factor float64
}

// FixedBackoff returns a policy that always waits d.
func FixedBackoff(d time.Duration) Backoff {
	return Backoff{Base: d, Factor: 1}
}

// Delay returns the wait before the given attempt.
func (b Backoff) Delay(attempt int) time.Duration {
	if b.Base <= 0 {
		return 0
	}
	delay := b.Base
	if b.Factor > 1 {
		for i := 0; i < attempt; i++ {
			delay = time.Duration(float64(delay) * b.Factor)
			if b.Max > 0 && delay >= b.Max {
				return b.Max
			}
		}
	}
	if b.Max > 0 && delay > b.Max {
		return b.Max
	}
	return delay
}
