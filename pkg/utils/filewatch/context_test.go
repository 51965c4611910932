package filewatch_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/folklore-ml/folklore/pkg/utils/filewatch"
)

func TestUntilModifyContext(t *testing.T) {
	t.Run("it cancels context when a watched file is written", func(t *testing.T) {
		root := t.TempDir()
		target := filepath.Join(root, "watched.json")
		if err := os.WriteFile(target, []byte("[]"), 0644); err != nil {
			t.Fatal(err)
		}

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		wctx, stop, err := filewatch.UntilModifyContext(ctx, target)
		if err != nil {
			t.Fatal(err)
		}
		defer stop()

		if err := os.WriteFile(target, []byte(`[{"name":"a"}]`), 0644); err != nil {
			t.Fatal(err)
		}

		select {
		case <-wctx.Done():
			// expected
		case <-time.After(3 * time.Second):
			t.Fatal("context is not canceled after modification")
		}

		if ctx.Err() != nil {
			t.Fatal("parent context expired before detecting modification")
		}
	})

	t.Run("it does not cancel context when nothing happens", func(t *testing.T) {
		root := t.TempDir()
		target := filepath.Join(root, "calm.json")
		if err := os.WriteFile(target, []byte("[]"), 0644); err != nil {
			t.Fatal(err)
		}

		wctx, stop, err := filewatch.UntilModifyContext(context.Background(), target)
		if err != nil {
			t.Fatal(err)
		}
		defer stop()

		select {
		case <-wctx.Done():
			t.Fatal("context is canceled, unexpectedly")
		case <-time.After(100 * time.Millisecond):
			// expected
		}
	})

	t.Run("it returns error for missing target", func(t *testing.T) {
		root := t.TempDir()
		_, _, err := filewatch.UntilModifyContext(
			context.Background(), filepath.Join(root, "no-such-file"),
		)
		if err == nil {
			t.Fatal("no error returned for missing target")
		}
	})
}
