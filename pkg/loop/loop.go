// Package loop runs a task over and over until it asks to stop.
package loop

import (
	"context"
	"time"
)

// Next tells Start what to do after a round: go on after an interval,
// or stop, with or without error.
type Next struct {
	err      error
	quit     bool
	interval time.Duration
}

// Continue requests one more round after interval (0 means immediately).
func Continue(interval time.Duration) Next {
	return Next{interval: interval}
}

// Break stops the loop. err may be nil for a normal stop.
func Break(err error) Next {
	return Next{quit: true, err: err}
}

// Task is one round of a loop.
//
// It receives the value the previous round returned, and tells Start
// whether to keep going via Next.
type Task[T any] func(context.Context, T) (T, Next)

// Start calls task(ctx, init), then keeps calling it with the value of
// the previous round until the task returns Break or ctx is done.
// The zero Next equals Continue(0).
//
// Counting 1 to 10:
//
//	Start(ctx, 1, func(_ context.Context, value int) (int, Next) {
//		value += 1
//		if 10 <= value {
//			return value, Break(nil)
//		}
//		return value, Continue(0)
//	})
//
// Start returns the last value the task returned, even on error.
// The error is the one given to Break, or ctx.Err() on cancellation.
func Start[T any](ctx context.Context, init T, task Task[T]) (T, error) {
	select {
	case <-ctx.Done():
		return init, ctx.Err()
	default:
	}

	value := init
	for {
		v, n := task(ctx, value)
		if n.err != nil {
			return v, n.err
		}
		if n.quit {
			return v, nil
		}
		value = v

		timer := time.NewTimer(n.interval)
		select {
		case <-ctx.Done():
			// cancellation wins over a fired timer
			if !timer.Stop() {
				<-timer.C
			}
			return value, ctx.Err()
		case <-timer.C:
		}
	}
}
