package unpack

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/folklore-ml/folklore/pkg/manifest"
	"github.com/folklore-ml/folklore/pkg/workspace"
)

// Executor unpacks the ingested files of a raw dataset from the raw
// data area into the interim area, one directory per dataset.
//
// Dataset metadata (the .readme and .license files) stays behind.
// A dataset with nothing ingested yet is a no-op, not a failure, so
// placeholder items pass through raw stages freely.
type Executor struct {
	layout   workspace.Layout
	progress func(name string, delta int64)
}

type ExecutorOption func(*Executor) *Executor

// WithExecutorProgress reports consumed archive bytes per source file.
func WithExecutorProgress(fn func(name string, delta int64)) ExecutorOption {
	return func(e *Executor) *Executor {
		e.progress = fn
		return e
	}
}

func NewExecutor(layout workspace.Layout, options ...ExecutorOption) *Executor {
	e := &Executor{
		layout:   layout,
		progress: func(string, int64) {},
	}
	for _, opt := range options {
		e = opt(e)
	}
	return e
}

func (e *Executor) Execute(ctx context.Context, item manifest.WorkItem) ([]manifest.Artifact, error) {
	format, err := ParseFormat(item.Unpack)
	if err != nil {
		return nil, err
	}

	srcDir := filepath.Join(e.layout.RawDir(), item.Name)
	entries, err := os.ReadDir(srcDir)
	if os.IsNotExist(err) {
		return nil, nil
	} else if err != nil {
		return nil, err
	}

	destDir := filepath.Join(e.layout.InterimDir(), item.Name)
	artifacts := []manifest.Artifact{}
	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if entry.IsDir() || isMetadata(item.Name, entry.Name()) {
			continue
		}

		src := filepath.Join(srcDir, entry.Name())
		created, err := Extract(
			ctx, src, destDir, format,
			WithProgress(func(n int64) { e.progress(entry.Name(), n) }),
		)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", entry.Name(), err)
		}

		for _, name := range created {
			rel, err := e.layout.Rel(filepath.Join(destDir, name))
			if err != nil {
				return nil, err
			}
			artifacts = append(artifacts, manifest.Artifact{Path: rel})
		}
	}
	return artifacts, nil
}

// isMetadata spots the companion files fetch writes for a dataset.
func isMetadata(dataset string, name string) bool {
	return name == dataset+".readme" || name == dataset+".license"
}
