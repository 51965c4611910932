package clean

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log"
	"os"
	"path/filepath"

	"github.com/folklore-ml/folklore/pkg/workspace"
)

// Scope names a set of derived files which are removed together.
type Scope string

const (
	// Cache is scratch space and captured command logs.
	Cache Scope = "cache"

	// Raw is ingested raw data. Never part of the default set.
	Raw Scope = "raw"

	// Datasets are interim and processed datasets.
	Datasets Scope = "datasets"

	// Models are trained model files.
	Models Scope = "models"

	// Predictions are model outputs.
	Predictions Scope = "predictions"

	// Workflow is every result manifest and every report.
	// Input manifests are user property and always stay.
	Workflow Scope = "workflow"
)

var ErrUnknownScope = errors.New("unknown clean scope")

// Scopes lists every scope, in the order help texts show them.
func Scopes() []Scope {
	return []Scope{Cache, Raw, Datasets, Models, Predictions, Workflow}
}

// DerivedScopes is the default set: everything a workflow run can
// produce. Raw data is cleaned only when asked for by name.
func DerivedScopes() []Scope {
	return []Scope{Cache, Datasets, Models, Predictions, Workflow}
}

func ParseScope(s string) (Scope, error) {
	for _, scope := range Scopes() {
		if string(scope) == s {
			return scope, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownScope, s)
}

// Cleaner removes derived artifacts of a workspace, scope by scope.
type Cleaner struct {
	layout workspace.Layout
	logger *log.Logger
}

type Option func(*Cleaner) *Cleaner

func WithLogger(l *log.Logger) Option {
	return func(c *Cleaner) *Cleaner {
		c.logger = l
		return c
	}
}

func New(layout workspace.Layout, options ...Option) *Cleaner {
	c := &Cleaner{layout: layout, logger: log.New(io.Discard, "", 0)}
	for _, opt := range options {
		c = opt(c)
	}
	return c
}

// Clean removes the files belonging to the given scopes. No scopes
// means every derived scope.
//
// Scope directories are kept, emptied. Cleaning what is already clean
// removes nothing and succeeds.
func (c *Cleaner) Clean(scopes ...Scope) error {
	if len(scopes) == 0 {
		scopes = DerivedScopes()
	}
	for _, scope := range scopes {
		dirs, files, err := c.targets(scope)
		if err != nil {
			return err
		}
		for _, dir := range dirs {
			if err := emptyDir(dir); err != nil {
				return fmt.Errorf("clean %s: %w", scope, err)
			}
		}
		for _, file := range files {
			if err := os.Remove(file); err != nil && !errors.Is(err, fs.ErrNotExist) {
				return fmt.Errorf("clean %s: %w", scope, err)
			}
		}
		c.logger.Printf("cleaned %s", scope)
	}
	return nil
}

// targets maps a scope to directories to empty and files to remove.
//
// Result manifests referring to artifacts of a scope go with the scope,
// so that no result claims files which are gone.
func (c *Cleaner) targets(scope Scope) (dirs []string, files []string, err error) {
	l := c.layout
	switch scope {
	case Cache:
		dirs = []string{l.CacheDir(), l.LogsDir()}
	case Raw:
		dirs = []string{l.RawDir()}
		files = []string{
			l.ResultPath(workspace.StageFetch),
			l.ResultPath(workspace.StageUnpack),
			l.ResultPath(workspace.StageProcess),
		}
	case Datasets:
		dirs = []string{l.InterimDir(), l.ProcessedDir()}
		files = []string{
			l.ResultPath(workspace.StageUnpack),
			l.ResultPath(workspace.StageProcess),
			l.ResultPath(workspace.StageTransform),
		}
	case Models:
		dirs = []string{l.ModelsDir()}
		files = []string{l.ResultPath(workspace.StageTrain)}
	case Predictions:
		dirs = []string{l.OutputDir()}
		files = []string{l.ResultPath(workspace.StagePredict)}
	case Workflow:
		dirs = []string{
			filepath.Join(l.ReportsDir(), "figures"),
			filepath.Join(l.ReportsDir(), "tables"),
			filepath.Join(l.ReportsDir(), "summary"),
		}
		files = l.ResultPaths()
	default:
		return nil, nil, fmt.Errorf("%w: %q", ErrUnknownScope, scope)
	}
	return dirs, files, nil
}

// emptyDir removes everything under dir, keeping dir itself.
// A missing dir counts as already empty.
func emptyDir(dir string) error {
	entries, err := os.ReadDir(dir)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	} else if err != nil {
		return err
	}
	for _, e := range entries {
		if err := os.RemoveAll(filepath.Join(dir, e.Name())); err != nil {
			return err
		}
	}
	return nil
}
