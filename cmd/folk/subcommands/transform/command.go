package transform

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
	Only     *args.Names `flag:"only" metavar:"NAME" help:"run only the named transform. Repeatable."`
	Output   string      `flag:"output" alias:"o" metavar:"PATH" help:"write the result manifest to PATH instead of next to the input manifest."`
	Parallel int         `flag:"parallel" alias:"p" metavar:"N" help:"run up to N transforms at once. Default: the workspace setting."`
	FailFast bool        `flag:"fail-fast" help:"stop launching new transforms after the first failure."`
}

const ARG_MANIFEST = "MANIFEST"

func New() (flarc.Command, error) {
	return flarc.NewCommand(
		"Run the feature transforms of the workspace.",
		Flag{
			Only: &args.Names{},
		},
		flarc.Args{
			{
				Name: ARG_MANIFEST, Required: false,
				Help: "transform manifest to run. Default: the workspace transform manifest.",
			},
		},
		common.NewTask(Task()),
		flarc.WithDescription(`
Run each item of the transform manifest: its command, from the
workspace root, with FOLK_* variables describing the item and its
parameters. Declared outputs must exist afterwards; they are recorded
as artifacts.

	{{ .Command }}
	{{ .Command }} workflow/transformer_list.json
	{{ .Command }} --only scale_features
	{{ .Command }} --parallel 4 --fail-fast

A failing item does not abort the batch (see --fail-fast); it is
recorded in the result manifest, which lands next to the input manifest
as "<manifest>.result" and is printed to stdout as JSON.
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

		input := layout.ManifestPath(manifest.KindTransform)
		if arg := cl.Args()[ARG_MANIFEST]; 0 < len(arg) {
			resolved, err := fpath.Resolve(arg[0])
			if err != nil {
				return err
			}
			input = resolved
		}

		output := input + ".result"
		if flags.Output != "" {
			output = flags.Output
		}

		return batch.Run(
			ctx, logger, layout,
			batch.Spec{
				Stage:    workspace.StageTransform,
				Kind:     manifest.KindTransform,
				Input:    input,
				Output:   output,
				Names:    flags.Only.Slice(),
				Executor: command.New(workspace.StageTransform, layout),
			},
			cl.Stdout(),
			batch.Options(flags.Parallel, flags.FailFast)...,
		)
	}
}
