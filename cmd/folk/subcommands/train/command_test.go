package train_test

import (
	"context"
	"io"
	"os"
	"strings"
	"testing"

	"github.com/folklore-ml/folklore/cmd/folk/subcommands/common"
	"github.com/folklore-ml/folklore/cmd/folk/subcommands/internal/commandline"
	"github.com/folklore-ml/folklore/cmd/folk/subcommands/logger"
	"github.com/folklore-ml/folklore/cmd/folk/subcommands/train"
	"github.com/folklore-ml/folklore/pkg/manifest"
	"github.com/folklore-ml/folklore/pkg/utils/try"
	"github.com/folklore-ml/folklore/pkg/workspace"
)

func TestTask(t *testing.T) {
	t.Run("it trains models per the model manifest", func(t *testing.T) {
		layout := try.To(workspace.At(t.TempDir())).OrFatal(t)
		if err := layout.Scaffold(); err != nil {
			t.Fatal(err)
		}
		if err := manifest.Save(
			layout.ManifestPath(manifest.KindTrain),
			manifest.Manifest{
				{
					Name:    "linear",
					Run:     []string{"sh", "-c", `printf '%s' "$FOLK_PARAM_ALPHA" > models/trained/linear.bin`},
					Outputs: []string{"models/trained/linear.bin"},
					Params:  map[string]string{"alpha": "0.5"},
				},
			},
		); err != nil {
			t.Fatal(err)
		}

		err := train.Task()(
			context.Background(), logger.Null(),
			common.CommonFlags{Plain: true}, layout,
			commandline.MockCommandline[train.Flag]{
				Fullname_: "folk train",
				Flags_:    train.Flag{},
				Args_:     map[string][]string{},
				Stdout_:   new(strings.Builder),
				Stderr_:   io.Discard,
			},
			[]any{},
		)
		if err != nil {
			t.Fatal(err)
		}

		model := try.To(os.ReadFile(layout.Resolve("models/trained/linear.bin"))).OrFatal(t)
		if string(model) != "0.5" {
			t.Errorf("parameters are not exported to the training command: %q", model)
		}

		result := try.To(manifest.LoadResult(
			layout.ResultPath(workspace.StageTrain),
		)).OrFatal(t)
		if result.Stage != workspace.StageTrain || result.Succeeded != 1 {
			t.Errorf("unexpected result: %+v", result)
		}
	})
}
