package stage_test

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/folklore-ml/folklore/pkg/manifest"
	"github.com/folklore-ml/folklore/pkg/stage"
	"github.com/folklore-ml/folklore/pkg/utils/retry"
	"github.com/folklore-ml/folklore/pkg/utils/try"
	"github.com/folklore-ml/folklore/pkg/workspace"
)

func testLayout(t *testing.T) workspace.Layout {
	t.Helper()
	root := t.TempDir()
	layout := try.To(workspace.At(root)).OrFatal(t)
	if err := layout.Scaffold(); err != nil {
		t.Fatal(err)
	}
	return layout
}

func items(names ...string) manifest.Manifest {
	m := manifest.Manifest{}
	for _, n := range names {
		m = append(m, manifest.WorkItem{Name: n})
	}
	return m
}

func TestRunner_Run(t *testing.T) {
	t.Run("when some items fail, it records every item in order and returns no error", func(t *testing.T) {
		layout := testLayout(t)
		resultPath := filepath.Join(layout.WorkflowDir(), "transformer_list.json.result")

		executor := stage.ExecutorFunc(func(_ context.Context, item manifest.WorkItem) ([]manifest.Artifact, error) {
			if item.Name == "bad_step" {
				return nil, errors.New("synthetic failure")
			}
			return nil, nil
		})

		runner := stage.New("transform", layout)
		result, err := runner.Run(
			context.Background(),
			stage.Input{
				Manifest:     items("scale_a", "bad_step", "scale_b"),
				ManifestPath: "workflow/transformer_list.json",
				ResultPath:   resultPath,
			},
			executor,
		)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if result.Succeeded != 2 || result.Failed != 1 {
			t.Errorf(
				"unexpected tally: (succeeded, failed) = (%d, %d), want (2, 1)",
				result.Succeeded, result.Failed,
			)
		}
		wantNames := []string{"scale_a", "bad_step", "scale_b"}
		if len(result.Records) != len(wantNames) {
			t.Fatalf("unexpected record count: %d (want %d)", len(result.Records), len(wantNames))
		}
		for i, rec := range result.Records {
			if rec.Name != wantNames[i] {
				t.Errorf("record #%d: name = %s, want %s", i, rec.Name, wantNames[i])
			}
		}
		if result.Records[1].Status != manifest.StatusFailed {
			t.Errorf("bad_step: status = %s, want failed", result.Records[1].Status)
		}
		if result.Records[1].Error != "synthetic failure" {
			t.Errorf("bad_step: error = %q", result.Records[1].Error)
		}
		if result.Records[0].Status != manifest.StatusSuccess {
			t.Errorf("scale_a: status = %s, want success", result.Records[0].Status)
		}
		if result.RunID == "" {
			t.Error("run id is empty")
		}

		saved := try.To(manifest.LoadResult(resultPath)).OrFatal(t)
		if !saved.Equiv(result) {
			t.Errorf("saved result does not match:\n%+v\nwant:\n%+v", saved, result)
		}
	})

	t.Run("when every item fails, the result is still written", func(t *testing.T) {
		layout := testLayout(t)
		resultPath := filepath.Join(layout.WorkflowDir(), "models.json.result")

		executor := stage.ExecutorFunc(func(context.Context, manifest.WorkItem) ([]manifest.Artifact, error) {
			return nil, errors.New("broken")
		})

		runner := stage.New("train", layout)
		result, err := runner.Run(
			context.Background(),
			stage.Input{Manifest: items("m1", "m2"), ResultPath: resultPath},
			executor,
		)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if result.Succeeded != 0 || result.Failed != 2 {
			t.Errorf(
				"unexpected tally: (succeeded, failed) = (%d, %d), want (0, 2)",
				result.Succeeded, result.Failed,
			)
		}
		if _, err := os.Stat(resultPath); err != nil {
			t.Errorf("result manifest is not written: %v", err)
		}
	})

	t.Run("when the executor panics, the item is recorded as failed and the batch continues", func(t *testing.T) {
		layout := testLayout(t)

		executor := stage.ExecutorFunc(func(_ context.Context, item manifest.WorkItem) ([]manifest.Artifact, error) {
			if item.Name == "boom" {
				panic("unexpected state")
			}
			return nil, nil
		})

		runner := stage.New("transform", layout)
		result, err := runner.Run(
			context.Background(),
			stage.Input{
				Manifest:   items("boom", "after"),
				ResultPath: filepath.Join(layout.WorkflowDir(), "t.result"),
			},
			executor,
		)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		boom := result.Records[0]
		if boom.Status != manifest.StatusFailed {
			t.Errorf("boom: status = %s, want failed", boom.Status)
		}
		if boom.Error != "panic: unexpected state" {
			t.Errorf("boom: error = %q", boom.Error)
		}
		if after := result.Records[1]; after.Status != manifest.StatusSuccess {
			t.Errorf("after: status = %s, want success", after.Status)
		}
	})

	t.Run("when items run in parallel, records keep manifest order", func(t *testing.T) {
		layout := testLayout(t)

		// later items finish first
		executor := stage.ExecutorFunc(func(ctx context.Context, item manifest.WorkItem) ([]manifest.Artifact, error) {
			var delay time.Duration
			switch item.Name {
			case "a":
				delay = 60 * time.Millisecond
			case "b":
				delay = 30 * time.Millisecond
			case "bad":
				return nil, errors.New("synthetic failure")
			}
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
			return nil, nil
		})

		runner := stage.New("transform", layout, stage.WithParallel(4))
		result, err := runner.Run(
			context.Background(),
			stage.Input{
				Manifest:   items("a", "b", "bad", "c"),
				ResultPath: filepath.Join(layout.WorkflowDir(), "t.result"),
			},
			executor,
		)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		wantNames := []string{"a", "b", "bad", "c"}
		for i, rec := range result.Records {
			if rec.Name != wantNames[i] {
				t.Errorf("record #%d: name = %s, want %s", i, rec.Name, wantNames[i])
			}
		}
		if result.Succeeded != 3 || result.Failed != 1 {
			t.Errorf(
				"unexpected tally: (succeeded, failed) = (%d, %d), want (3, 1)",
				result.Succeeded, result.Failed,
			)
		}
		if bad := result.Records[2]; bad.Status != manifest.StatusFailed {
			t.Errorf("bad: status = %s, want failed", bad.Status)
		}
	})

	t.Run("when an item declares retries, failing attempts are repeated", func(t *testing.T) {
		layout := testLayout(t)

		calls := int32(0)
		executor := stage.ExecutorFunc(func(context.Context, manifest.WorkItem) ([]manifest.Artifact, error) {
			if atomic.AddInt32(&calls, 1) < 3 {
				return nil, errors.New("flaky")
			}
			return nil, nil
		})

		runner := stage.New(
			"fetch", layout,
			stage.WithBackoff(func() retry.Backoff { return retry.StaticBackoff(time.Millisecond) }),
		)
		result, err := runner.Run(
			context.Background(),
			stage.Input{
				Manifest:   manifest.Manifest{{Name: "flaky_source", Retries: 2}},
				ResultPath: filepath.Join(layout.WorkflowDir(), "r.result"),
			},
			executor,
		)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		rec := result.Records[0]
		if rec.Status != manifest.StatusSuccess {
			t.Errorf("status = %s, want success (error: %s)", rec.Status, rec.Error)
		}
		if rec.Attempts != 3 {
			t.Errorf("attempts = %d, want 3", rec.Attempts)
		}
		if atomic.LoadInt32(&calls) != 3 {
			t.Errorf("executor ran %d times, want 3", calls)
		}
	})

	t.Run("when retries are exhausted, the item fails with the last error", func(t *testing.T) {
		layout := testLayout(t)

		calls := int32(0)
		executor := stage.ExecutorFunc(func(context.Context, manifest.WorkItem) ([]manifest.Artifact, error) {
			n := atomic.AddInt32(&calls, 1)
			return nil, fmt.Errorf("attempt %d went wrong", n)
		})

		runner := stage.New(
			"fetch", layout,
			stage.WithBackoff(func() retry.Backoff { return retry.StaticBackoff(time.Millisecond) }),
		)
		result := try.To(runner.Run(
			context.Background(),
			stage.Input{
				Manifest:   manifest.Manifest{{Name: "hopeless", Retries: 1}},
				ResultPath: filepath.Join(layout.WorkflowDir(), "r.result"),
			},
			executor,
		)).OrFatal(t)

		rec := result.Records[0]
		if rec.Status != manifest.StatusFailed {
			t.Errorf("status = %s, want failed", rec.Status)
		}
		if rec.Attempts != 2 {
			t.Errorf("attempts = %d, want 2", rec.Attempts)
		}
		if rec.Error != "attempt 2 went wrong" {
			t.Errorf("error = %q, want the last attempt's", rec.Error)
		}
	})

	t.Run("when an item declares a timeout, a hanging attempt is cut off", func(t *testing.T) {
		layout := testLayout(t)

		executor := stage.ExecutorFunc(func(ctx context.Context, _ manifest.WorkItem) ([]manifest.Artifact, error) {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(10 * time.Second):
				return nil, nil
			}
		})

		runner := stage.New("train", layout)
		result := try.To(runner.Run(
			context.Background(),
			stage.Input{
				Manifest: manifest.Manifest{
					{Name: "slow_model", Timeout: manifest.Duration(20 * time.Millisecond)},
				},
				ResultPath: filepath.Join(layout.WorkflowDir(), "r.result"),
			},
			executor,
		)).OrFatal(t)

		rec := result.Records[0]
		if rec.Status != manifest.StatusFailed {
			t.Errorf("status = %s, want failed", rec.Status)
		}
		if rec.Error != context.DeadlineExceeded.Error() {
			t.Errorf("error = %q, want %q", rec.Error, context.DeadlineExceeded)
		}
	})

	t.Run("when fail-fast is set, items after the failure are not run", func(t *testing.T) {
		layout := testLayout(t)

		var mu sync.Mutex
		ran := []string{}
		executor := stage.ExecutorFunc(func(_ context.Context, item manifest.WorkItem) ([]manifest.Artifact, error) {
			mu.Lock()
			ran = append(ran, item.Name)
			mu.Unlock()
			if item.Name == "bad" {
				return nil, errors.New("synthetic failure")
			}
			return nil, nil
		})

		runner := stage.New("transform", layout, stage.WithFailFast())
		result := try.To(runner.Run(
			context.Background(),
			stage.Input{
				Manifest:   items("ok", "bad", "never"),
				ResultPath: filepath.Join(layout.WorkflowDir(), "t.result"),
			},
			executor,
		)).OrFatal(t)

		mu.Lock()
		defer mu.Unlock()
		for _, name := range ran {
			if name == "never" {
				t.Error("item after the failure has been run")
			}
		}
		last := result.Records[2]
		if last.Status != manifest.StatusFailed {
			t.Errorf("never: status = %s, want failed", last.Status)
		}
		if last.Error != "not run: batch stopped after bad failed" {
			t.Errorf("never: error = %q", last.Error)
		}
	})

	t.Run("when an executor reports artifacts, sizes and checksums are recorded", func(t *testing.T) {
		layout := testLayout(t)

		payload := []byte("hello")
		executor := stage.ExecutorFunc(func(_ context.Context, item manifest.WorkItem) ([]manifest.Artifact, error) {
			dest := filepath.Join(layout.InterimDir(), item.Name+".csv")
			if err := os.WriteFile(dest, payload, 0644); err != nil {
				return nil, err
			}
			rel := try.To(layout.Rel(dest)).OrFatal(t)
			return []manifest.Artifact{{Path: rel}}, nil
		})

		runner := stage.New("transform", layout)
		result := try.To(runner.Run(
			context.Background(),
			stage.Input{
				Manifest:   items("scale_a"),
				ResultPath: filepath.Join(layout.WorkflowDir(), "t.result"),
			},
			executor,
		)).OrFatal(t)

		rec := result.Records[0]
		if rec.Status != manifest.StatusSuccess {
			t.Fatalf("status = %s, want success (error: %s)", rec.Status, rec.Error)
		}
		if len(rec.Artifacts) != 1 {
			t.Fatalf("artifacts = %d, want 1", len(rec.Artifacts))
		}
		a := rec.Artifacts[0]
		if a.Size != int64(len(payload)) {
			t.Errorf("size = %d, want %d", a.Size, len(payload))
		}
		if a.Algorithm != "sha256" {
			t.Errorf("algorithm = %s, want sha256", a.Algorithm)
		}
		if a.Checksum != "2cf24dba5fb0a30e26e83b2ac5b9e29e1b161e5c1fa7425e73043362938b9824" {
			t.Errorf("checksum = %s", a.Checksum)
		}
	})

	t.Run("when an artifact is missing, the item fails", func(t *testing.T) {
		layout := testLayout(t)

		executor := stage.ExecutorFunc(func(context.Context, manifest.WorkItem) ([]manifest.Artifact, error) {
			return []manifest.Artifact{{Path: "data/interim/nothing_here.csv"}}, nil
		})

		runner := stage.New("transform", layout)
		result := try.To(runner.Run(
			context.Background(),
			stage.Input{
				Manifest:   items("scale_a"),
				ResultPath: filepath.Join(layout.WorkflowDir(), "t.result"),
			},
			executor,
		)).OrFatal(t)

		rec := result.Records[0]
		if rec.Status != manifest.StatusFailed {
			t.Errorf("status = %s, want failed", rec.Status)
		}
	})

	t.Run("when the context is canceled, remaining items are recorded and the result is written", func(t *testing.T) {
		layout := testLayout(t)
		resultPath := filepath.Join(layout.WorkflowDir(), "t.result")

		ctx, cancel := context.WithCancel(context.Background())
		executor := stage.ExecutorFunc(func(_ context.Context, item manifest.WorkItem) ([]manifest.Artifact, error) {
			if item.Name == "trigger" {
				cancel()
			}
			return nil, nil
		})

		runner := stage.New("transform", layout)
		result, err := runner.Run(
			ctx,
			stage.Input{Manifest: items("trigger", "late"), ResultPath: resultPath},
			executor,
		)
		if !errors.Is(err, context.Canceled) {
			t.Errorf("unexpected error: %v (want %v)", err, context.Canceled)
		}

		if len(result.Records) != 2 {
			t.Fatalf("records = %d, want 2", len(result.Records))
		}
		late := result.Records[1]
		if late.Status != manifest.StatusFailed {
			t.Errorf("late: status = %s, want failed", late.Status)
		}
		if _, err := os.Stat(resultPath); err != nil {
			t.Errorf("result manifest is not written: %v", err)
		}
	})
}
