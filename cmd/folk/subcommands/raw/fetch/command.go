package fetch

import (
	"context"
	"log"

	"github.com/youta-t/flarc"

	"github.com/folklore-ml/folklore/cmd/folk/subcommands/common"
	"github.com/folklore-ml/folklore/cmd/folk/subcommands/internal/batch"
	"github.com/folklore-ml/folklore/cmd/folk/subcommands/internal/progress"
	"github.com/folklore-ml/folklore/pkg/fetch"
	"github.com/folklore-ml/folklore/pkg/manifest"
	"github.com/folklore-ml/folklore/pkg/workspace"
)

type Flag struct {
	Output   string `flag:"output" alias:"o" metavar:"PATH" help:"write the result manifest to PATH instead of the workflow default."`
	Parallel int    `flag:"parallel" alias:"p" metavar:"N" help:"ingest up to N datasets at once. Default: the workspace setting."`
	FailFast bool   `flag:"fail-fast" help:"stop launching new datasets after the first failure."`
}

const ARG_DATASET = "DATASET"

func New() (flarc.Command, error) {
	return flarc.NewCommand(
		"Ingest declared raw dataset files into the raw data area.",
		Flag{},
		flarc.Args{
			{
				Name: ARG_DATASET, Required: false, Repeatable: true,
				Help: "datasets to fetch. Default: every dataset in the raw manifest.",
			},
		},
		common.NewTask(Task()),
		flarc.WithDescription(`
Materialize each file declared in the raw manifest under the raw data
area, one directory per dataset, verifying declared digests.

	{{ .Command }}
	{{ .Command }} iris wine
	{{ .Command }} --fail-fast

Local paths, file:// URLs and inline contents are ingested by folk
itself. Remote URLs are recorded as failed items, since downloading is
left to external tooling; the rest of the batch keeps going.

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

		output := layout.ResultPath(workspace.StageFetch)
		if flags.Output != "" {
			output = flags.Output
		}

		report, finish := progress.Bar(cl.Stderr(), cf.Plain)
		defer finish()

		return batch.Run(
			ctx, logger, layout,
			batch.Spec{
				Stage:    workspace.StageFetch,
				Kind:     manifest.KindRaw,
				Input:    layout.ManifestPath(manifest.KindRaw),
				Output:   output,
				Names:    cl.Args()[ARG_DATASET],
				Executor: fetch.New(layout, fetch.WithProgress(report)),
			},
			cl.Stdout(),
			batch.Options(flags.Parallel, flags.FailFast)...,
		)
	}
}
