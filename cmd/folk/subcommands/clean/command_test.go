package clean_test

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/youta-t/flarc"

	"github.com/folklore-ml/folklore/cmd/folk/subcommands/clean"
	"github.com/folklore-ml/folklore/cmd/folk/subcommands/common"
	"github.com/folklore-ml/folklore/cmd/folk/subcommands/internal/commandline"
	"github.com/folklore-ml/folklore/cmd/folk/subcommands/logger"
	"github.com/folklore-ml/folklore/pkg/manifest"
	"github.com/folklore-ml/folklore/pkg/utils/try"
	"github.com/folklore-ml/folklore/pkg/workspace"
)

func TestTask(t *testing.T) {
	prepare := func(t *testing.T) workspace.Layout {
		t.Helper()
		layout := try.To(workspace.At(t.TempDir())).OrFatal(t)
		if err := layout.Scaffold(); err != nil {
			t.Fatal(err)
		}

		touch := func(path string) {
			t.Helper()
			if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
				t.Fatal(err)
			}
			if err := os.WriteFile(path, []byte("x"), 0644); err != nil {
				t.Fatal(err)
			}
		}
		touch(filepath.Join(layout.RawDir(), "iris", "iris.csv"))
		touch(filepath.Join(layout.InterimDir(), "iris", "iris.csv"))
		touch(filepath.Join(layout.ProcessedDir(), "iris", "iris.csv"))
		touch(filepath.Join(layout.ModelsDir(), "linear.bin"))
		touch(filepath.Join(layout.OutputDir(), "linear.csv"))
		touch(filepath.Join(layout.ReportsDir(), "figures", "report.png"))
		touch(filepath.Join(layout.CacheDir(), "scratch"))
		touch(layout.ItemLogPath(workspace.StageTrain, "linear"))
		touch(layout.ResultPath(workspace.StageTrain))

		if err := manifest.Save(
			layout.ManifestPath(manifest.KindRaw),
			manifest.Manifest{{Name: "iris", Files: []manifest.FileSpec{{Path: "x"}}}},
		); err != nil {
			t.Fatal(err)
		}
		return layout
	}

	run := func(t *testing.T, layout workspace.Layout, scopes []string) error {
		t.Helper()
		return clean.Task()(
			context.Background(), logger.Null(),
			common.CommonFlags{}, layout,
			commandline.MockCommandline[struct{}]{
				Fullname_: "folk clean",
				Flags_:    struct{}{},
				Args_: map[string][]string{
					clean.ARG_SCOPE: scopes,
				},
				Stdout_: new(strings.Builder),
				Stderr_: io.Discard,
			},
			[]any{},
		)
	}

	t.Run("by default it cleans every derived scope, keeping raw data and inputs", func(t *testing.T) {
		layout := prepare(t)

		if err := run(t, layout, nil); err != nil {
			t.Fatal(err)
		}

		for _, kept := range []string{
			filepath.Join(layout.RawDir(), "iris", "iris.csv"),
			layout.ManifestPath(manifest.KindRaw),
		} {
			if _, err := os.Stat(kept); err != nil {
				t.Errorf("%s should survive the default clean", kept)
			}
		}
		for _, gone := range []string{
			filepath.Join(layout.InterimDir(), "iris"),
			filepath.Join(layout.ProcessedDir(), "iris"),
			filepath.Join(layout.ModelsDir(), "linear.bin"),
			filepath.Join(layout.OutputDir(), "linear.csv"),
			filepath.Join(layout.ReportsDir(), "figures", "report.png"),
			filepath.Join(layout.CacheDir(), "scratch"),
			layout.ItemLogPath(workspace.StageTrain, "linear"),
			layout.ResultPath(workspace.StageTrain),
		} {
			if _, err := os.Stat(gone); err == nil {
				t.Errorf("%s should be removed", gone)
			}
		}
		// the scope directories themselves stay
		for _, dir := range []string{layout.InterimDir(), layout.ModelsDir()} {
			stat, err := os.Stat(dir)
			if err != nil || !stat.IsDir() {
				t.Errorf("directory %s should stay", dir)
			}
		}
	})

	t.Run("it cleans only the named scopes", func(t *testing.T) {
		layout := prepare(t)

		if err := run(t, layout, []string{"models"}); err != nil {
			t.Fatal(err)
		}

		if _, err := os.Stat(filepath.Join(layout.ModelsDir(), "linear.bin")); err == nil {
			t.Error("models should be cleaned")
		}
		if _, err := os.Stat(layout.ResultPath(workspace.StageTrain)); err == nil {
			t.Error("the train result should go with the models")
		}
		for _, kept := range []string{
			filepath.Join(layout.OutputDir(), "linear.csv"),
			filepath.Join(layout.ProcessedDir(), "iris", "iris.csv"),
		} {
			if _, err := os.Stat(kept); err != nil {
				t.Errorf("%s should survive cleaning models", kept)
			}
		}
	})

	t.Run("an unknown scope is a usage error and nothing is removed", func(t *testing.T) {
		layout := prepare(t)

		err := run(t, layout, []string{"models", "everything"})
		if !errors.Is(err, flarc.ErrUsage) {
			t.Errorf("unexpected error: %v (want %v)", err, flarc.ErrUsage)
		}
		if _, err := os.Stat(filepath.Join(layout.ModelsDir(), "linear.bin")); err != nil {
			t.Error("models are removed although the scopes were rejected")
		}
	})

	t.Run("cleaning an already clean workspace is a no-op", func(t *testing.T) {
		layout := prepare(t)

		if err := run(t, layout, nil); err != nil {
			t.Fatal(err)
		}
		if err := run(t, layout, nil); err != nil {
			t.Errorf("second clean should succeed: %v", err)
		}
	})
}
