package unpack_test

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/folklore-ml/folklore/cmd/folk/subcommands/common"
	"github.com/folklore-ml/folklore/cmd/folk/subcommands/internal/commandline"
	"github.com/folklore-ml/folklore/cmd/folk/subcommands/logger"
	"github.com/folklore-ml/folklore/cmd/folk/subcommands/raw/unpack"
	"github.com/folklore-ml/folklore/pkg/manifest"
	"github.com/folklore-ml/folklore/pkg/utils/try"
	"github.com/folklore-ml/folklore/pkg/workspace"
)

func TestTask(t *testing.T) {
	run := func(t *testing.T, layout workspace.Layout) error {
		t.Helper()
		return unpack.Task()(
			context.Background(), logger.Null(),
			common.CommonFlags{Plain: true}, layout,
			commandline.MockCommandline[unpack.Flag]{
				Fullname_: "folk raw unpack",
				Flags_:    unpack.Flag{},
				Args_:     map[string][]string{},
				Stdout_:   new(strings.Builder),
				Stderr_:   io.Discard,
			},
			[]any{},
		)
	}

	t.Run("it copies plain files into the interim area, leaving metadata behind", func(t *testing.T) {
		root := t.TempDir()
		layout := try.To(workspace.At(root)).OrFatal(t)
		if err := layout.Scaffold(); err != nil {
			t.Fatal(err)
		}
		if err := manifest.Save(
			layout.ManifestPath(manifest.KindRaw),
			manifest.Manifest{{Name: "iris", Files: []manifest.FileSpec{{Path: "x"}}}},
		); err != nil {
			t.Fatal(err)
		}

		rawDir := filepath.Join(layout.RawDir(), "iris")
		if err := os.MkdirAll(rawDir, 0755); err != nil {
			t.Fatal(err)
		}
		content := []byte("sepal,petal\n5.1,1.4\n")
		if err := os.WriteFile(filepath.Join(rawDir, "iris.csv"), content, 0644); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(filepath.Join(rawDir, "iris.readme"), []byte("notes"), 0644); err != nil {
			t.Fatal(err)
		}

		if err := run(t, layout); err != nil {
			t.Fatal(err)
		}

		got := try.To(os.ReadFile(
			filepath.Join(layout.InterimDir(), "iris", "iris.csv"),
		)).OrFatal(t)
		if string(got) != string(content) {
			t.Errorf("unpacked file differs: %q", got)
		}
		if _, err := os.Stat(filepath.Join(layout.InterimDir(), "iris", "iris.readme")); err == nil {
			t.Error("metadata is copied into the interim area")
		}

		result := try.To(manifest.LoadResult(
			layout.ResultPath(workspace.StageUnpack),
		)).OrFatal(t)
		if result.Stage != workspace.StageUnpack || result.Succeeded != 1 {
			t.Errorf("unexpected result: %+v", result)
		}
	})

	t.Run("it skips datasets with nothing fetched yet", func(t *testing.T) {
		root := t.TempDir()
		layout := try.To(workspace.At(root)).OrFatal(t)
		if err := layout.Scaffold(); err != nil {
			t.Fatal(err)
		}
		if err := manifest.Save(
			layout.ManifestPath(manifest.KindRaw),
			manifest.Manifest{{Name: "ghost", Files: []manifest.FileSpec{{Path: "x"}}}},
		); err != nil {
			t.Fatal(err)
		}

		if err := run(t, layout); err != nil {
			t.Fatal(err)
		}

		result := try.To(manifest.LoadResult(
			layout.ResultPath(workspace.StageUnpack),
		)).OrFatal(t)
		if result.Succeeded != 1 || result.Failed != 0 {
			t.Errorf("nothing-to-do should not fail: %+v", result)
		}
		if artifacts := result.Records[0].Artifacts; len(artifacts) != 0 {
			t.Errorf("unexpected artifacts: %+v", artifacts)
		}
	})
}
