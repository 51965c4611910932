package train

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
	Only     *args.Names `flag:"only" metavar:"NAME" help:"train only the named model. Repeatable."`
	Output   string      `flag:"output" alias:"o" metavar:"PATH" help:"write the result manifest to PATH instead of the workflow default."`
	Parallel int         `flag:"parallel" alias:"p" metavar:"N" help:"train up to N models at once. Default: the workspace setting."`
	FailFast bool        `flag:"fail-fast" help:"stop launching new trainings after the first failure."`
}

const ARG_MANIFEST = "MANIFEST"

func New() (flarc.Command, error) {
	return flarc.NewCommand(
		"Train the models of the workspace.",
		Flag{
			Only: &args.Names{},
		},
		flarc.Args{
			{
				Name: ARG_MANIFEST, Required: false,
				Help: "model manifest to train from. Default: the workspace model manifest.",
			},
		},
		common.NewTask(Task()),
		flarc.WithDescription(`
Run the training command of each item in the model manifest. Trained
model files are whatever the command declares as outputs, conventionally
under the trained-models area.

	{{ .Command }}
	{{ .Command }} workflow/model_list.json
	{{ .Command }} --only random_forest --parallel 2

Per-item timeouts and retries come from the manifest. The result
manifest is written into the workflow directory and printed to stdout.
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

		input := layout.ManifestPath(manifest.KindTrain)
		if arg := cl.Args()[ARG_MANIFEST]; 0 < len(arg) {
			resolved, err := fpath.Resolve(arg[0])
			if err != nil {
				return err
			}
			input = resolved
		}

		output := layout.ResultPath(workspace.StageTrain)
		if flags.Output != "" {
			output = flags.Output
		}

		return batch.Run(
			ctx, logger, layout,
			batch.Spec{
				Stage:    workspace.StageTrain,
				Kind:     manifest.KindTrain,
				Input:    input,
				Output:   output,
				Names:    flags.Only.Slice(),
				Executor: command.New(workspace.StageTrain, layout),
			},
			cl.Stdout(),
			batch.Options(flags.Parallel, flags.FailFast)...,
		)
	}
}
