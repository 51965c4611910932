package retry_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/folklore-ml/folklore/pkg/utils/retry"
)

func TestStaticBackoff(t *testing.T) {
	t.Run("it waits at least the interval", func(t *testing.T) {
		b := retry.StaticBackoff(20 * time.Millisecond)

		start := time.Now()
		if err := b(context.Background()); err != nil {
			t.Fatal(err)
		}
		if err := b(context.Background()); err != nil {
			t.Fatal(err)
		}
		if elapsed := time.Since(start); elapsed < 40*time.Millisecond {
			t.Errorf("two waits took %s, expected at least 40ms", elapsed)
		}
	})

	t.Run("it returns the context error when canceled", func(t *testing.T) {
		b := retry.StaticBackoff(time.Hour)

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		if err := b(ctx); !errors.Is(err, context.Canceled) {
			t.Errorf("err is %v, expected %v", err, context.Canceled)
		}
	})
}

func TestExponentialBackoff(t *testing.T) {
	t.Run("it grows the wait by the ratio", func(t *testing.T) {
		b := retry.ExponentialBackoff(10*time.Millisecond, 2)

		start := time.Now()
		for i := 0; i < 3; i++ {
			if err := b(context.Background()); err != nil {
				t.Fatal(err)
			}
		}
		// 10ms + 20ms + 40ms
		if elapsed := time.Since(start); elapsed < 70*time.Millisecond {
			t.Errorf("three waits took %s, expected at least 70ms", elapsed)
		}
	})
}
