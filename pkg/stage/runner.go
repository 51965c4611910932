package stage

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/folklore-ml/folklore/pkg/manifest"
	"github.com/folklore-ml/folklore/pkg/utils/checksum"
	"github.com/folklore-ml/folklore/pkg/utils/retry"
	"github.com/folklore-ml/folklore/pkg/utils/rfctime"
	"github.com/folklore-ml/folklore/pkg/workspace"
)

// Executor runs one WorkItem and reports the artifacts it produced.
//
// Artifact paths are workspace-relative. The Runner fills in sizes and
// checksums afterwards, so executors may leave those zero.
type Executor interface {
	Execute(ctx context.Context, item manifest.WorkItem) ([]manifest.Artifact, error)
}

type ExecutorFunc func(ctx context.Context, item manifest.WorkItem) ([]manifest.Artifact, error)

func (f ExecutorFunc) Execute(ctx context.Context, item manifest.WorkItem) ([]manifest.Artifact, error) {
	return f(ctx, item)
}

// Input is one batch for Runner.Run.
type Input struct {
	// Manifest is the loaded item list.
	Manifest manifest.Manifest

	// ManifestPath is recorded in the result envelope,
	// workspace-relative. May be empty for synthesized batches.
	ManifestPath string

	// ResultPath is where the result manifest is written.
	ResultPath string
}

// Runner runs every item of a manifest and persists the outcome.
//
// One item failing, by error or by panic, never stops the batch: the
// failure becomes that item's record and the next item starts. Records
// keep manifest order, also when items run in parallel.
type Runner struct {
	stage    string
	layout   workspace.Layout
	logger   *log.Logger
	parallel int
	timeout  time.Duration
	backoff  func() retry.Backoff
	failFast bool
}

type Option func(*Runner) *Runner

// WithLogger sets where batch progress is logged. Default: discard.
func WithLogger(l *log.Logger) Option {
	return func(r *Runner) *Runner {
		r.logger = l
		return r
	}
}

// WithParallel overrides how many items run at once.
// 0 and 1 both mean strictly sequential.
func WithParallel(n int) Option {
	return func(r *Runner) *Runner {
		r.parallel = n
		return r
	}
}

// WithTimeout overrides the attempt timeout for items declaring none.
func WithTimeout(d time.Duration) Option {
	return func(r *Runner) *Runner {
		r.timeout = d
		return r
	}
}

// WithBackoff sets how waits between retry attempts are made.
// The factory is called once per item.
func WithBackoff(factory func() retry.Backoff) Option {
	return func(r *Runner) *Runner {
		r.backoff = factory
		return r
	}
}

// WithFailFast makes the batch stop starting new items once one has
// failed. Items which did not run are still recorded, as failed.
func WithFailFast() Option {
	return func(r *Runner) *Runner {
		r.failFast = true
		return r
	}
}

// New builds a Runner for stage.
//
// Parallelism and the default attempt timeout are taken from the
// workspace config; options override them.
func New(stage string, layout workspace.Layout, options ...Option) *Runner {
	r := &Runner{
		stage:    stage,
		layout:   layout,
		logger:   log.New(io.Discard, "", 0),
		parallel: layout.Config().Parallel,
		timeout:  layout.Config().Timeout,
		backoff:  func() retry.Backoff { return retry.StaticBackoff(1 * time.Second) },
	}
	for _, opt := range options {
		r = opt(r)
	}
	return r
}

// Run executes every item of input.Manifest with executor and writes
// the result manifest to input.ResultPath.
//
// The returned error is non-nil only when the batch infrastructure
// fails (the context dies or the result cannot be persisted). Item
// failures are reported in the result, not as an error: inspect
// ResultManifest.Failed.
func (r *Runner) Run(ctx context.Context, input Input, executor Executor) (manifest.ResultManifest, error) {
	items := input.Manifest
	records := make([]manifest.ResultRecord, len(items))
	started := rfctime.Now()

	r.logger.Printf("%s: starting %d items", r.stage, len(items))

	parallel := r.parallel
	if parallel < 1 {
		parallel = 1
	}
	if parallel == 1 {
		r.runSequential(ctx, items, executor, records)
	} else {
		r.runPool(ctx, items, executor, records, parallel)
	}

	result := manifest.ResultManifest{
		RunID:    uuid.NewString(),
		Stage:    r.stage,
		Manifest: input.ManifestPath,
		Started:  started,
		Finished: rfctime.Now(),
		Records:  records,
	}
	for _, rec := range records {
		if rec.Status == manifest.StatusSuccess {
			result.Succeeded += 1
		} else {
			result.Failed += 1
		}
	}

	if err := os.MkdirAll(filepath.Dir(input.ResultPath), 0755); err != nil {
		return result, err
	}
	if err := manifest.SaveResult(input.ResultPath, result); err != nil {
		return result, err
	}

	r.logger.Printf("%s: %d succeeded, %d failed", r.stage, result.Succeeded, result.Failed)

	// the result on disk already tells the story; the error only says
	// the batch was cut short.
	return result, ctx.Err()
}

func (r *Runner) runSequential(ctx context.Context, items manifest.Manifest, executor Executor, records []manifest.ResultRecord) {
	aborted := ""
	for i, item := range items {
		if aborted != "" {
			records[i] = notRunRecord(item, aborted)
			continue
		}
		records[i] = r.runOne(ctx, item, executor)
		if r.failFast && records[i].Status != manifest.StatusSuccess {
			aborted = item.Name
		}
	}
}

func (r *Runner) runPool(ctx context.Context, items manifest.Manifest, executor Executor, records []manifest.ResultRecord, parallel int) {
	var failed sync.Map

	jobs := make(chan int)
	var wg sync.WaitGroup
	for n := 0; n < parallel; n++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				// each index is owned by exactly one worker
				records[i] = r.runOne(ctx, items[i], executor)
				if records[i].Status != manifest.StatusSuccess {
					failed.Store(items[i].Name, struct{}{})
				}
			}
		}()
	}

	aborted := ""
	for i := range items {
		if r.failFast && aborted == "" {
			failed.Range(func(name, _ any) bool {
				aborted = name.(string)
				return false
			})
		}
		if aborted != "" {
			records[i] = notRunRecord(items[i], aborted)
			continue
		}
		jobs <- i
	}
	close(jobs)
	wg.Wait()
}

func notRunRecord(item manifest.WorkItem, after string) manifest.ResultRecord {
	return manifest.ResultRecord{
		Name:    item.Name,
		Status:  manifest.StatusFailed,
		Error:   fmt.Sprintf("not run: batch stopped after %s failed", after),
		Started: rfctime.Now(),
	}
}

func (r *Runner) runOne(ctx context.Context, item manifest.WorkItem, executor Executor) manifest.ResultRecord {
	rec := manifest.ResultRecord{Name: item.Name, Started: rfctime.Now()}
	begin := time.Now()

	timeout := item.Timeout.Duration()
	if timeout == 0 {
		timeout = r.timeout
	}

	backoff := r.backoff()
	var artifacts []manifest.Artifact
	var err error
	for {
		rec.Attempts += 1
		artifacts, err = attempt(ctx, item, executor, timeout)
		if err == nil || item.Retries < rec.Attempts {
			break
		}
		r.logger.Printf("%s: %s: attempt %d failed: %v", r.stage, item.Name, rec.Attempts, err)
		if berr := backoff(ctx); berr != nil {
			err = fmt.Errorf("%v (while waiting to retry: %w)", err, berr)
			break
		}
	}

	if err == nil {
		artifacts, err = r.seal(artifacts)
	}

	rec.Elapsed = manifest.Duration(time.Since(begin))
	if err != nil {
		rec.Status = manifest.StatusFailed
		rec.Error = err.Error()
		r.logger.Printf("%s: %s: failed: %v", r.stage, item.Name, err)
		return rec
	}

	rec.Status = manifest.StatusSuccess
	rec.Artifacts = artifacts
	r.logger.Printf("%s: %s: ok (%d artifacts)", r.stage, item.Name, len(artifacts))
	return rec
}

// attempt runs the executor once, fencing off panics and applying the
// per-attempt timeout.
func attempt(ctx context.Context, item manifest.WorkItem, executor Executor, timeout time.Duration) (artifacts []manifest.Artifact, err error) {
	defer func() {
		if rcv := recover(); rcv != nil {
			artifacts = nil
			err = fmt.Errorf("panic: %v", rcv)
		}
	}()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	actx := ctx
	if 0 < timeout {
		var cancel context.CancelFunc
		actx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	return executor.Execute(actx, item)
}

// seal completes artifact records: every artifact must exist, and ones
// without a digest yet get size and checksum filled in.
func (r *Runner) seal(artifacts []manifest.Artifact) ([]manifest.Artifact, error) {
	algorithm := r.layout.Config().Checksum
	sealed := make([]manifest.Artifact, len(artifacts))
	for i, a := range artifacts {
		if a.Checksum != "" {
			sealed[i] = a
			continue
		}
		digest, size, err := checksum.File(r.layout.Resolve(a.Path), algorithm)
		if err != nil {
			return nil, fmt.Errorf("recording artifact %s: %w", a.Path, err)
		}
		a.Checksum = digest
		a.Algorithm = string(algorithm)
		a.Size = size
		sealed[i] = a
	}
	return sealed, nil
}
