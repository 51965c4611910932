package predict

import (
	"context"
	"log"

	"github.com/youta-t/flarc"

	"github.com/folklore-ml/folklore/cmd/folk/subcommands/common"
	"github.com/folklore-ml/folklore/cmd/folk/subcommands/internal/batch"
	"github.com/folklore-ml/folklore/pkg/command"
	"github.com/folklore-ml/folklore/pkg/manifest"
	"github.com/folklore-ml/folklore/pkg/utils/args"
	fpath "github.com/folklore-ml/folklore/pkg/utils/path"
	"github.com/folklore-ml/folklore/pkg/workspace"
)

type Flag struct {
	Only     *args.Names `flag:"only" metavar:"NAME" help:"make only the named prediction. Repeatable."`
	Output   string      `flag:"output" alias:"o" metavar:"PATH" help:"write the result manifest to PATH instead of the workflow default."`
	Parallel int         `flag:"parallel" alias:"p" metavar:"N" help:"run up to N predictions at once. Default: the workspace setting."`
	FailFast bool        `flag:"fail-fast" help:"stop launching new predictions after the first failure."`
}

const ARG_MANIFEST = "MANIFEST"

func New() (flarc.Command, error) {
	return flarc.NewCommand(
		"Make predictions with the trained models.",
		Flag{
			Only: &args.Names{},
		},
		flarc.Args{
			{
				Name: ARG_MANIFEST, Required: false,
				Help: "predict manifest to run. Default: the workspace predict manifest.",
			},
		},
		common.NewTask(Task()),
		flarc.WithDescription(`
Run the prediction command of each item in the predict manifest,
conventionally reading trained models and writing into the model output
area.

	{{ .Command }}
	{{ .Command }} workflow/predict_list.json
	{{ .Command }} --only random_forest

The result manifest is written into the workflow directory and printed
to stdout as JSON.
`),
	)
}

func Task() common.Task[Flag] {
	return func(
		ctx context.Context,
		logger *log.Logger,
		cf common.CommonFlags,
		layout workspace.Layout,
		cl flarc.Commandline[Flag],
		params []any,
	) error {
		flags := cl.Flags()

		input := layout.ManifestPath(manifest.KindPredict)
		if arg := cl.Args()[ARG_MANIFEST]; 0 < len(arg) {
			resolved, err := fpath.Resolve(arg[0])
			if err != nil {
				return err
			}
			input = resolved
		}

		output := layout.ResultPath(workspace.StagePredict)
		if flags.Output != "" {
			output = flags.Output
		}

		return batch.Run(
			ctx, logger, layout,
			batch.Spec{
				Stage:    workspace.StagePredict,
				Kind:     manifest.KindPredict,
				Input:    input,
				Output:   output,
				Names:    flags.Only.Slice(),
				Executor: command.New(workspace.StagePredict, layout),
			},
			cl.Stdout(),
			batch.Options(flags.Parallel, flags.FailFast)...,
		)
	}
}
