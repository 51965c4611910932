package init_test

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/folklore-ml/folklore/cmd/folk/subcommands/common"
	subinit "github.com/folklore-ml/folklore/cmd/folk/subcommands/init"
	"github.com/folklore-ml/folklore/cmd/folk/subcommands/internal/commandline"
	"github.com/folklore-ml/folklore/cmd/folk/subcommands/logger"
	"github.com/folklore-ml/folklore/pkg/manifest"
	"github.com/folklore-ml/folklore/pkg/utils/checksum"
	"github.com/folklore-ml/folklore/pkg/utils/try"
	"github.com/folklore-ml/folklore/pkg/workspace"
)

func TestTask(t *testing.T) {
	run := func(t *testing.T, root string, flags subinit.Flag) error {
		t.Helper()
		return subinit.Task()(
			context.Background(), logger.Null(), common.CommonFlags{},
			commandline.MockCommandline[subinit.Flag]{
				Fullname_: "folk init",
				Flags_:    flags,
				Args_: map[string][]string{
					subinit.ARG_DIRECTORY: {root},
				},
				Stdout_: io.Discard,
				Stderr_: io.Discard,
			},
			[]any{},
		)
	}

	t.Run("it scaffolds a workspace", func(t *testing.T) {
		root := t.TempDir()
		if err := run(t, root, subinit.Flag{}); err != nil {
			t.Fatal(err)
		}

		layout := try.To(workspace.At(root)).OrFatal(t)
		conf := layout.Config()
		if conf.Checksum != checksum.SHA256 {
			t.Errorf("checksum: got %s, want %s", conf.Checksum, checksum.SHA256)
		}
		if conf.Parallel != 1 {
			t.Errorf("parallel: got %d, want 1", conf.Parallel)
		}

		for _, dir := range []string{
			layout.RawDir(), layout.InterimDir(), layout.ProcessedDir(),
			layout.ModelsDir(), layout.OutputDir(), layout.ReportsDir(),
			layout.WorkflowDir(), layout.CacheDir(), layout.LogsDir(),
		} {
			stat, err := os.Stat(dir)
			if err != nil || !stat.IsDir() {
				t.Errorf("directory is not scaffolded: %s", dir)
			}
		}

		for _, kind := range []manifest.Kind{
			manifest.KindRaw, manifest.KindTransform, manifest.KindTrain,
			manifest.KindPredict, manifest.KindAnalysis,
		} {
			m := try.To(manifest.Load(layout.ManifestPath(kind), kind)).OrFatal(t)
			if len(m) != 0 {
				t.Errorf("starter %s manifest is not empty: %+v", kind, m)
			}
		}
	})

	t.Run("it keeps existing manifests", func(t *testing.T) {
		root := t.TempDir()
		mpath := filepath.Join(root, "workflow", "raw_datasets.json")
		if err := os.MkdirAll(filepath.Dir(mpath), 0755); err != nil {
			t.Fatal(err)
		}
		existing := manifest.Manifest{
			{Name: "iris", Files: []manifest.FileSpec{{Path: "incoming/iris.csv"}}},
		}
		if err := manifest.Save(mpath, existing); err != nil {
			t.Fatal(err)
		}

		if err := run(t, root, subinit.Flag{}); err != nil {
			t.Fatal(err)
		}

		layout := try.To(workspace.At(root)).OrFatal(t)
		got := try.To(manifest.Load(layout.ManifestPath(manifest.KindRaw), manifest.KindRaw)).OrFatal(t)
		if len(got) != 1 || got[0].Name != "iris" {
			t.Errorf("existing manifest is overwritten: %+v", got)
		}
	})

	t.Run("it refuses to rewrite folklore.yaml unless --force", func(t *testing.T) {
		root := t.TempDir()
		if err := run(t, root, subinit.Flag{}); err != nil {
			t.Fatal(err)
		}
		marker := filepath.Join(root, workspace.ConfigFileName)
		if err := os.WriteFile(marker, []byte("checksum: md5\n"), 0644); err != nil {
			t.Fatal(err)
		}

		if err := run(t, root, subinit.Flag{}); err == nil {
			t.Error("no error although folklore.yaml exists")
		}
		layout := try.To(workspace.At(root)).OrFatal(t)
		if layout.Config().Checksum != checksum.MD5 {
			t.Error("folklore.yaml is rewritten without --force")
		}

		if err := run(t, root, subinit.Flag{Force: true}); err != nil {
			t.Fatal(err)
		}
		layout = try.To(workspace.At(root)).OrFatal(t)
		if layout.Config().Checksum != checksum.SHA256 {
			t.Error("folklore.yaml is not rewritten although --force")
		}
	})
}
