package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/folklore-ml/folklore/pkg/loop"
	"github.com/folklore-ml/folklore/pkg/manifest"
	"github.com/folklore-ml/folklore/pkg/stage"
	"github.com/folklore-ml/folklore/pkg/utils/filewatch"
	"github.com/folklore-ml/folklore/pkg/workspace"
)

// ErrStageDependency means a stage cannot run because its input
// manifest, or a result it needs from an upstream stage, is missing.
var ErrStageDependency = errors.New("stage dependency not satisfied")

// StageSpec is one step of a pipeline.
type StageSpec struct {
	// Name labels the stage in logs and result manifests.
	Name string

	// Kind selects the validation rules for the input manifest.
	Kind manifest.Kind

	// Input is the manifest the stage consumes.
	Input string

	// Output is where the stage's result manifest goes.
	Output string

	// Needs are upstream result manifests which must exist before the
	// stage may run.
	Needs []string

	// Executor performs the per-item work.
	Executor stage.Executor
}

// StageStatus reports what one pipeline pass did for one stage.
type StageStatus struct {
	Name string

	// Skipped is true when the stage was up to date and did not run.
	Skipped bool

	// Result is the stage's outcome. Nil when the stage was skipped.
	Result *manifest.ResultManifest
}

// Pipeline runs stages strictly in order.
type Pipeline struct {
	layout    workspace.Layout
	stages    []StageSpec
	logger    *log.Logger
	options   []stage.Option
	forceFrom string
}

type Option func(*Pipeline) *Pipeline

// WithLogger sets where pipeline progress is logged. Default: discard.
func WithLogger(l *log.Logger) Option {
	return func(p *Pipeline) *Pipeline {
		p.logger = l
		return p
	}
}

// WithRunnerOptions forwards options to every stage's Runner.
func WithRunnerOptions(options ...stage.Option) Option {
	return func(p *Pipeline) *Pipeline {
		p.options = options
		return p
	}
}

// WithForceFrom disables the up-to-date skip for the stage named name
// and every stage after it. Dependency checks still apply.
func WithForceFrom(name string) Option {
	return func(p *Pipeline) *Pipeline {
		p.forceFrom = name
		return p
	}
}

func New(layout workspace.Layout, stages []StageSpec, options ...Option) *Pipeline {
	p := &Pipeline{
		layout: layout,
		stages: stages,
		logger: log.New(io.Discard, "", 0),
	}
	for _, opt := range options {
		p = opt(p)
	}
	return p
}

// Run makes one pass over all stages, strictly in order.
//
// A stage is skipped when its result manifest is newer than both its
// input manifest and every result it needs, the way make skips an up
// to date target. A missing input manifest or missing needed result
// aborts the pass with ErrStageDependency. Item failures inside a
// stage do not abort the pass; they are visible in the StageStatus.
func (p *Pipeline) Run(ctx context.Context) ([]StageStatus, error) {
	statuses := []StageStatus{}
	force := false
	for _, s := range p.stages {
		if err := ctx.Err(); err != nil {
			return statuses, err
		}
		force = force || s.Name == p.forceFrom
		status, err := p.runStage(ctx, s, force)
		if err != nil {
			return statuses, fmt.Errorf("stage %s: %w", s.Name, err)
		}
		statuses = append(statuses, status)
	}
	return statuses, nil
}

// prerequisites stats the input manifest and every needed result, and
// returns the newest of their modification times. It is the timestamp
// the stage's output must beat to be considered up to date.
func prerequisites(s StageSpec) (time.Time, error) {
	input, err := os.Stat(s.Input)
	if errors.Is(err, fs.ErrNotExist) {
		return time.Time{}, fmt.Errorf(
			"%w: input manifest %s is missing", ErrStageDependency, s.Input,
		)
	} else if err != nil {
		return time.Time{}, err
	}

	newest := input.ModTime()
	for _, need := range s.Needs {
		n, err := os.Stat(need)
		if errors.Is(err, fs.ErrNotExist) {
			return time.Time{}, fmt.Errorf(
				"%w: %s needs %s from an upstream stage", ErrStageDependency, s.Name, need,
			)
		} else if err != nil {
			return time.Time{}, err
		}
		if n.ModTime().After(newest) {
			newest = n.ModTime()
		}
	}
	return newest, nil
}

// Condition is the state of a stage as the next pipeline pass will see
// it, determined from file timestamps alone.
type Condition string

const (
	// NoManifest: the stage has no input manifest to run from.
	NoManifest Condition = "no manifest"

	// Blocked: a result the stage needs from upstream is missing.
	Blocked Condition = "blocked"

	// Pending: the stage could run but never has.
	Pending Condition = "pending"

	// Stale: the stage ran, but a prerequisite changed since.
	Stale Condition = "stale"

	// UpToDate: the stage ran and nothing changed since.
	UpToDate Condition = "up to date"
)

// Inspect reports what Run would do with s on its next pass, without
// running anything: UpToDate stages are skipped, Stale and Pending ones
// run, NoManifest and Blocked ones abort the pass.
func Inspect(s StageSpec) Condition {
	if _, err := os.Stat(s.Input); err != nil {
		return NoManifest
	}
	newest, err := prerequisites(s)
	if err != nil {
		return Blocked
	}
	out, err := os.Stat(s.Output)
	if err != nil {
		return Pending
	}
	if out.ModTime().After(newest) {
		return UpToDate
	}
	return Stale
}

func (p *Pipeline) runStage(ctx context.Context, s StageSpec, force bool) (StageStatus, error) {
	// the newest prerequisite decides whether the output is stale
	newest, err := prerequisites(s)
	if err != nil {
		return StageStatus{}, err
	}

	if out, err := os.Stat(s.Output); !force && err == nil && out.ModTime().After(newest) {
		p.logger.Printf("%s: up to date", s.Name)
		return StageStatus{Name: s.Name, Skipped: true}, nil
	}

	m, err := manifest.Load(s.Input, s.Kind)
	if err != nil {
		return StageStatus{}, err
	}

	manifestPath := s.Input
	if rel, err := p.layout.Rel(s.Input); err == nil {
		manifestPath = rel
	}

	options := append([]stage.Option{stage.WithLogger(p.logger)}, p.options...)
	result, err := stage.New(s.Name, p.layout, options...).Run(
		ctx,
		stage.Input{Manifest: m, ManifestPath: manifestPath, ResultPath: s.Output},
		s.Executor,
	)
	if err != nil {
		return StageStatus{}, err
	}
	return StageStatus{Name: s.Name, Result: &result}, nil
}

// Watch makes one pass, then reruns the pipeline each time a manifest
// in one of the input directories changes, until ctx is done.
//
// A failing pass does not end the watch: the error is logged and the
// next manifest change triggers a new pass, so a user can fix a broken
// manifest and just save it again.
func (p *Pipeline) Watch(ctx context.Context) error {
	_, err := loop.Start(ctx, 1, func(ctx context.Context, pass int) (int, loop.Next) {
		if _, err := p.Run(ctx); err != nil {
			if ctx.Err() != nil {
				return pass, loop.Break(nil)
			}
			p.logger.Printf("pass #%d failed: %v", pass, err)
		}

		wctx, cancel, err := filewatch.UntilModifyContext(ctx, p.watchDirs()...)
		if err != nil {
			return pass, loop.Break(err)
		}
		defer cancel()

		<-wctx.Done()
		if ctx.Err() != nil {
			return pass, loop.Break(nil)
		}
		p.logger.Printf("%v", context.Cause(wctx))

		// editors write in several steps; let them settle.
		return pass + 1, loop.Continue(200 * time.Millisecond)
	})
	return err
}

// watchDirs lists the directories holding input manifests, deduped.
// Directories are watched rather than the files themselves so that
// write-temp-then-rename editors and newly created manifests are seen.
func (p *Pipeline) watchDirs() []string {
	seen := map[string]bool{}
	dirs := []string{}
	for _, s := range p.stages {
		d := filepath.Dir(s.Input)
		if seen[d] {
			continue
		}
		seen[d] = true
		dirs = append(dirs, d)
	}
	return dirs
}
