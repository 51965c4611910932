package unpack

import (
	"context"
	"log"

	"github.com/youta-t/flarc"

	"github.com/folklore-ml/folklore/cmd/folk/subcommands/common"
	"github.com/folklore-ml/folklore/cmd/folk/subcommands/internal/batch"
	"github.com/folklore-ml/folklore/cmd/folk/subcommands/internal/progress"
	"github.com/folklore-ml/folklore/pkg/manifest"
	"github.com/folklore-ml/folklore/pkg/unpack"
	"github.com/folklore-ml/folklore/pkg/workspace"
)

type Flag struct {
	Output   string `flag:"output" alias:"o" metavar:"PATH" help:"write the result manifest to PATH instead of the workflow default."`
	Parallel int    `flag:"parallel" alias:"p" metavar:"N" help:"unpack up to N datasets at once. Default: the workspace setting."`
	FailFast bool   `flag:"fail-fast" help:"stop launching new datasets after the first failure."`
}

const ARG_DATASET = "DATASET"

func New() (flarc.Command, error) {
	return flarc.NewCommand(
		"Unpack fetched raw datasets into the interim data area.",
		Flag{},
		flarc.Args{
			{
				Name: ARG_DATASET, Required: false, Repeatable: true,
				Help: "datasets to unpack. Default: every dataset in the raw manifest.",
			},
		},
		common.NewTask(Task()),
		flarc.WithDescription(`
Extract the fetched files of each dataset from the raw data area into
the interim area. The archive format comes from the "unpack" field of
the dataset; "auto" (the default) sniffs it from the file name.

	{{ .Command }}
	{{ .Command }} iris

Plain files are copied as they are. Dataset metadata (the .readme and
.license companions) stays in the raw area. Datasets with nothing
fetched yet are skipped, not failed.
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

		output := layout.ResultPath(workspace.StageUnpack)
		if flags.Output != "" {
			output = flags.Output
		}

		report, finish := progress.Bar(cl.Stderr(), cf.Plain)
		defer finish()

		return batch.Run(
			ctx, logger, layout,
			batch.Spec{
				Stage:    workspace.StageUnpack,
				Kind:     manifest.KindRaw,
				Input:    layout.ManifestPath(manifest.KindRaw),
				Output:   output,
				Names:    cl.Args()[ARG_DATASET],
				Executor: unpack.NewExecutor(layout, unpack.WithExecutorProgress(report)),
			},
			cl.Stdout(),
			batch.Options(flags.Parallel, flags.FailFast)...,
		)
	}
}
