package analysis

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
	Only     *args.Names `flag:"only" metavar:"NAME" help:"run only the named analysis. Repeatable."`
	Output   string      `flag:"output" alias:"o" metavar:"PATH" help:"write the result manifest to PATH instead of the workflow default."`
	Parallel int         `flag:"parallel" alias:"p" metavar:"N" help:"run up to N analyses at once. Default: the workspace setting."`
	FailFast bool        `flag:"fail-fast" help:"stop launching new analyses after the first failure."`
}

const ARG_MANIFEST = "MANIFEST"

func New() (flarc.Command, error) {
	return flarc.NewCommand(
		"Run the analyses and build the reports of the workspace.",
		Flag{
			Only: &args.Names{},
		},
		flarc.Args{
			{
				Name: ARG_MANIFEST, Required: false,
				Help: "analysis manifest to run. Default: the workspace analysis manifest.",
			},
		},
		common.NewTask(Task()),
		flarc.WithDescription(`
Run the command of each item in the analysis manifest, conventionally
reading prediction output and writing figures and tables under the
reports area.

	{{ .Command }}
	{{ .Command }} workflow/analysis_list.json
	{{ .Command }} --only confusion_matrix

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

		input := layout.ManifestPath(manifest.KindAnalysis)
		if arg := cl.Args()[ARG_MANIFEST]; 0 < len(arg) {
			resolved, err := fpath.Resolve(arg[0])
			if err != nil {
				return err
			}
			input = resolved
		}

		output := layout.ResultPath(workspace.StageAnalysis)
		if flags.Output != "" {
			output = flags.Output
		}

		return batch.Run(
			ctx, logger, layout,
			batch.Spec{
				Stage:    workspace.StageAnalysis,
				Kind:     manifest.KindAnalysis,
				Input:    input,
				Output:   output,
				Names:    flags.Only.Slice(),
				Executor: command.New(workspace.StageAnalysis, layout),
			},
			cl.Stdout(),
			batch.Options(flags.Parallel, flags.FailFast)...,
		)
	}
}
