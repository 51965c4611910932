// Package retry paces repeated attempts of an operation.
package retry

import (
	"context"
	"time"
)

// Backoff blocks until the next attempt may start. It returns nil when
// it is time to retry, or ctx.Err() when the context is done first.
type Backoff func(context.Context) error

// StaticBackoff waits a fixed interval before every attempt.
func StaticBackoff(interval time.Duration) Backoff {
	return ExponentialBackoff(interval, 1)
}

// ExponentialBackoff waits initial before the first attempt, then
// initial*r, initial*r*r, and so on.
func ExponentialBackoff(initial time.Duration, r float64) Backoff {
	next := initial
	return func(ctx context.Context) error {
		timer := time.NewTimer(next)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
			next = time.Duration(float64(next) * r)
			return nil
		}
	}
}
