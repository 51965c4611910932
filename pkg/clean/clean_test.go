package clean_test

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/folklore-ml/folklore/pkg/clean"
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

func seed(t *testing.T, paths ...string) {
	t.Helper()
	for _, p := range paths {
		if err := os.MkdirAll(filepath.Dir(p), 0755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(p, []byte("x"), 0644); err != nil {
			t.Fatal(err)
		}
	}
}

func dirEntries(t *testing.T, dir string) int {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("%s: %v", dir, err)
	}
	return len(entries)
}

func TestCleaner_Clean(t *testing.T) {
	t.Run("when raw is cleaned, the directory stays, empty, and raw results go", func(t *testing.T) {
		layout := testLayout(t)
		seed(
			t,
			filepath.Join(layout.RawDir(), "iris", "iris.csv"),
			layout.ResultPath(workspace.StageFetch),
			layout.ResultPath(workspace.StageProcess),
		)

		if err := clean.New(layout).Clean(clean.Raw); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if n := dirEntries(t, layout.RawDir()); n != 0 {
			t.Errorf("raw dir still holds %d entries", n)
		}
		if _, err := os.Stat(layout.ResultPath(workspace.StageFetch)); !errors.Is(err, os.ErrNotExist) {
			t.Errorf("fetch result still exists: %v", err)
		}
	})

	t.Run("when cleaning an already clean scope, nothing happens and no error raises", func(t *testing.T) {
		layout := testLayout(t)
		cleaner := clean.New(layout)

		if err := cleaner.Clean(clean.Raw); err != nil {
			t.Fatalf("first clean: %v", err)
		}
		if err := cleaner.Clean(clean.Raw); err != nil {
			t.Fatalf("second clean: %v", err)
		}
		if _, err := os.Stat(layout.RawDir()); err != nil {
			t.Errorf("raw dir is gone: %v", err)
		}
	})

	t.Run("when no scope is given, everything derived goes and raw data stays", func(t *testing.T) {
		layout := testLayout(t)
		rawData := filepath.Join(layout.RawDir(), "iris", "iris.csv")
		transformList := layout.ManifestPath("transform")
		seed(
			t,
			rawData,
			transformList,
			filepath.Join(layout.InterimDir(), "iris", "part1.csv"),
			filepath.Join(layout.ProcessedDir(), "iris.parquet"),
			filepath.Join(layout.ModelsDir(), "linear.bin"),
			filepath.Join(layout.OutputDir(), "linear_predictions.csv"),
			filepath.Join(layout.ReportsDir(), "figures", "roc.png"),
			filepath.Join(layout.CacheDir(), "tmp123"),
			filepath.Join(layout.LogsDir(), "transform", "scale_a.log"),
			layout.ResultPath(workspace.StageTransform),
			layout.ResultPath(workspace.StageTrain),
			layout.ResultPath(workspace.StagePredict),
		)

		if err := clean.New(layout).Clean(); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if _, err := os.Stat(rawData); err != nil {
			t.Errorf("raw data has been touched: %v", err)
		}
		if _, err := os.Stat(transformList); err != nil {
			t.Errorf("input manifest has been removed: %v", err)
		}
		for _, dir := range []string{
			layout.InterimDir(), layout.ProcessedDir(),
			layout.ModelsDir(), layout.OutputDir(),
			filepath.Join(layout.ReportsDir(), "figures"),
			layout.CacheDir(), layout.LogsDir(),
		} {
			if n := dirEntries(t, dir); n != 0 {
				t.Errorf("%s still holds %d entries", dir, n)
			}
		}
		for _, s := range []string{workspace.StageTransform, workspace.StageTrain, workspace.StagePredict} {
			if _, err := os.Stat(layout.ResultPath(s)); !errors.Is(err, os.ErrNotExist) {
				t.Errorf("%s result still exists: %v", s, err)
			}
		}
	})

	t.Run("when models are cleaned, predictions stay", func(t *testing.T) {
		layout := testLayout(t)
		prediction := filepath.Join(layout.OutputDir(), "linear_predictions.csv")
		seed(
			t,
			filepath.Join(layout.ModelsDir(), "linear.bin"),
			layout.ResultPath(workspace.StageTrain),
			prediction,
			layout.ResultPath(workspace.StagePredict),
		)

		if err := clean.New(layout).Clean(clean.Models); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if n := dirEntries(t, layout.ModelsDir()); n != 0 {
			t.Errorf("models dir still holds %d entries", n)
		}
		if _, err := os.Stat(layout.ResultPath(workspace.StageTrain)); !errors.Is(err, os.ErrNotExist) {
			t.Errorf("train result still exists: %v", err)
		}
		if _, err := os.Stat(prediction); err != nil {
			t.Errorf("prediction has been touched: %v", err)
		}
		if _, err := os.Stat(layout.ResultPath(workspace.StagePredict)); err != nil {
			t.Errorf("predict result has been touched: %v", err)
		}
	})
}

func TestParseScope(t *testing.T) {
	for _, scope := range clean.Scopes() {
		parsed, err := clean.ParseScope(string(scope))
		if err != nil {
			t.Errorf("%s: unexpected error: %v", scope, err)
		}
		if parsed != scope {
			t.Errorf("(actual, expected) = (%s, %s)", parsed, scope)
		}
	}

	if _, err := clean.ParseScope("everything"); !errors.Is(err, clean.ErrUnknownScope) {
		t.Errorf("unexpected error: %v (want %v)", err, clean.ErrUnknownScope)
	}
}

func TestDerivedScopes(t *testing.T) {
	for _, scope := range clean.DerivedScopes() {
		if scope == clean.Raw {
			t.Error("raw is part of the default scopes")
		}
	}
}
