// Package batch is the shared plumbing of the stage commands: load an
// input manifest, run its items through an executor, persist and print
// the result manifest.
package batch

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"

	"github.com/folklore-ml/folklore/pkg/command"
	"github.com/folklore-ml/folklore/pkg/fetch"
	"github.com/folklore-ml/folklore/pkg/manifest"
	"github.com/folklore-ml/folklore/pkg/pipeline"
	"github.com/folklore-ml/folklore/pkg/stage"
	"github.com/folklore-ml/folklore/pkg/unpack"
	"github.com/folklore-ml/folklore/pkg/workspace"
)

// Spec describes one stage invocation from the command line.
type Spec struct {
	// Stage labels the run in logs and in the result manifest.
	Stage string

	// Kind selects validation rules for the input manifest.
	Kind manifest.Kind

	// Input is the absolute path of the input manifest.
	Input string

	// Output is the absolute path the result manifest is written to.
	Output string

	// Names picks a subset of items to run, in the order given.
	// Empty means every item.
	Names []string

	// Executor performs the per-item work.
	Executor stage.Executor
}

// Options translates the stage command flags into runner options.
// parallel = 0 keeps the workspace default.
func Options(parallel int, failFast bool) []stage.Option {
	options := []stage.Option{}
	if 0 < parallel {
		options = append(options, stage.WithParallel(parallel))
	}
	if failFast {
		options = append(options, stage.WithFailFast())
	}
	return options
}

// Run loads spec.Input, runs the (selected) items and writes the result
// manifest to spec.Output. The result is also printed to out as JSON.
//
// Item failures are part of the result, not an error: the returned
// error is non-nil only when the manifest cannot be loaded, an item
// name is unknown, or the batch infrastructure fails.
func Run(
	ctx context.Context,
	logger *log.Logger,
	layout workspace.Layout,
	spec Spec,
	out io.Writer,
	options ...stage.Option,
) error {
	m, err := manifest.Load(spec.Input, spec.Kind)
	if err != nil {
		return err
	}

	if 0 < len(spec.Names) {
		m, err = subset(m, spec.Names)
		if err != nil {
			return fmt.Errorf("%s: %w", spec.Input, err)
		}
	}

	manifestPath := spec.Input
	if rel, err := layout.Rel(spec.Input); err == nil {
		manifestPath = rel
	}

	runner := stage.New(
		spec.Stage, layout,
		append([]stage.Option{stage.WithLogger(logger)}, options...)...,
	)
	result, err := runner.Run(
		ctx,
		stage.Input{Manifest: m, ManifestPath: manifestPath, ResultPath: spec.Output},
		spec.Executor,
	)
	if err != nil {
		return err
	}

	buf, err := json.MarshalIndent(result, "", "    ")
	if err != nil {
		return err
	}
	out.Write(buf)
	out.Write([]byte("\n"))

	if 0 < result.Failed {
		logger.Printf(
			"%d of %d item(s) failed. See %s",
			result.Failed, len(result.Records), spec.Output,
		)
	}
	return nil
}

// subset picks the named items, in the order given, first mention wins.
func subset(m manifest.Manifest, names []string) (manifest.Manifest, error) {
	picked := manifest.Manifest{}
	seen := map[string]bool{}
	for _, name := range names {
		if seen[name] {
			continue
		}
		seen[name] = true

		item, ok := m.Find(name)
		if !ok {
			return nil, fmt.Errorf("no item named %q", name)
		}
		picked = append(picked, item)
	}
	return picked, nil
}

// Pipeline is the standard stage sequence of a workspace, each stage
// wired to its executor and to the results it needs from upstream.
func Pipeline(layout workspace.Layout) []pipeline.StageSpec {
	rawManifest := layout.ManifestPath(manifest.KindRaw)

	return []pipeline.StageSpec{
		{
			Name:     workspace.StageFetch,
			Kind:     manifest.KindRaw,
			Input:    rawManifest,
			Output:   layout.ResultPath(workspace.StageFetch),
			Executor: fetch.New(layout),
		},
		{
			Name:     workspace.StageUnpack,
			Kind:     manifest.KindRaw,
			Input:    rawManifest,
			Output:   layout.ResultPath(workspace.StageUnpack),
			Needs:    []string{layout.ResultPath(workspace.StageFetch)},
			Executor: unpack.NewExecutor(layout),
		},
		{
			Name:     workspace.StageProcess,
			Kind:     manifest.KindRaw,
			Input:    rawManifest,
			Output:   layout.ResultPath(workspace.StageProcess),
			Needs:    []string{layout.ResultPath(workspace.StageUnpack)},
			Executor: command.New(workspace.StageProcess, layout),
		},
		{
			Name:     workspace.StageTransform,
			Kind:     manifest.KindTransform,
			Input:    layout.ManifestPath(manifest.KindTransform),
			Output:   layout.ResultPath(workspace.StageTransform),
			Needs:    []string{layout.ResultPath(workspace.StageProcess)},
			Executor: command.New(workspace.StageTransform, layout),
		},
		{
			Name:     workspace.StageTrain,
			Kind:     manifest.KindTrain,
			Input:    layout.ManifestPath(manifest.KindTrain),
			Output:   layout.ResultPath(workspace.StageTrain),
			Needs:    []string{layout.ResultPath(workspace.StageTransform)},
			Executor: command.New(workspace.StageTrain, layout),
		},
		{
			Name:     workspace.StagePredict,
			Kind:     manifest.KindPredict,
			Input:    layout.ManifestPath(manifest.KindPredict),
			Output:   layout.ResultPath(workspace.StagePredict),
			Needs:    []string{layout.ResultPath(workspace.StageTrain)},
			Executor: command.New(workspace.StagePredict, layout),
		},
		{
			Name:     workspace.StageAnalysis,
			Kind:     manifest.KindAnalysis,
			Input:    layout.ManifestPath(manifest.KindAnalysis),
			Output:   layout.ResultPath(workspace.StageAnalysis),
			Needs:    []string{layout.ResultPath(workspace.StagePredict)},
			Executor: command.New(workspace.StageAnalysis, layout),
		},
	}
}
