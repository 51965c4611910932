package process

import (
	"context"
	"log"

	"github.com/youta-t/flarc"

	"github.com/folklore-ml/folklore/cmd/folk/subcommands/common"
	"github.com/folklore-ml/folklore/cmd/folk/subcommands/internal/batch"
	"github.com/folklore-ml/folklore/pkg/command"
	"github.com/folklore-ml/folklore/pkg/manifest"
	"github.com/folklore-ml/folklore/pkg/workspace"
)

type Flag struct {
	Output   string `flag:"output" alias:"o" metavar:"PATH" help:"write the result manifest to PATH instead of the workflow default."`
	Parallel int    `flag:"parallel" alias:"p" metavar:"N" help:"process up to N datasets at once. Default: the workspace setting."`
	FailFast bool   `flag:"fail-fast" help:"stop launching new datasets after the first failure."`
}

const ARG_DATASET = "DATASET"

func New() (flarc.Command, error) {
	return flarc.NewCommand(
		"Turn unpacked raw datasets into processed, analysis-ready ones.",
		Flag{},
		flarc.Args{
			{
				Name: ARG_DATASET, Required: false, Repeatable: true,
				Help: "datasets to process. Default: every dataset in the raw manifest.",
			},
		},
		common.NewTask(Task()),
		flarc.WithDescription(`
Run the "run" command of each dataset in the raw manifest. Datasets
without one get their unpacked files copied from the interim area into
the processed area as they are.

	{{ .Command }}
	{{ .Command }} iris --parallel 4

Commands run from the workspace root with FOLK_* variables describing
the item; their output is captured under the log directory. The result
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

		output := layout.ResultPath(workspace.StageProcess)
		if flags.Output != "" {
			output = flags.Output
		}

		return batch.Run(
			ctx, logger, layout,
			batch.Spec{
				Stage:    workspace.StageProcess,
				Kind:     manifest.KindRaw,
				Input:    layout.ManifestPath(manifest.KindRaw),
				Output:   output,
				Names:    cl.Args()[ARG_DATASET],
				Executor: command.New(workspace.StageProcess, layout),
			},
			cl.Stdout(),
			batch.Options(flags.Parallel, flags.FailFast)...,
		)
	}
}
