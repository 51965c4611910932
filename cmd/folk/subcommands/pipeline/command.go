package pipeline

import (
	"context"
	"fmt"
	"io"
	"log"
	"strings"
	"text/tabwriter"

	"github.com/youta-t/flarc"

	"github.com/folklore-ml/folklore/cmd/folk/subcommands/common"
	"github.com/folklore-ml/folklore/cmd/folk/subcommands/internal/batch"
	"github.com/folklore-ml/folklore/pkg/pipeline"
	"github.com/folklore-ml/folklore/pkg/workspace"
)

type Flag struct {
	From     string `flag:"from" metavar:"STAGE" help:"rerun from this stage on, even when up to date."`
	Watch    bool   `flag:"watch" help:"keep watching the manifests and rerun on changes."`
	Parallel int    `flag:"parallel" alias:"p" metavar:"N" help:"run up to N items of a stage at once. Default: the workspace setting."`
	FailFast bool   `flag:"fail-fast" help:"stop launching new items of a stage after the first failure."`
}

func New() (flarc.Command, error) {
	return flarc.NewCommand(
		"Run the whole pipeline, stage by stage.",
		Flag{},
		flarc.Args{},
		common.NewTask(Task()),
		flarc.WithDescription(`
Run fetch, unpack, process, transform, train, predict and analysis in
order. A stage whose result is newer than its input manifest and the
upstream results it needs is skipped, the way make skips an up to date
target.

	{{ .Command }}
	{{ .Command }} --from train
	{{ .Command }} --watch

Item failures inside a stage do not stop the pipeline; they are
recorded in the stage's result manifest and shown in the summary. A
missing input manifest does stop it.

With --watch, the pipeline reruns whenever a manifest changes, until
interrupted.
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

		stages := batch.Pipeline(layout)
		options := []pipeline.Option{
			pipeline.WithLogger(logger),
			pipeline.WithRunnerOptions(batch.Options(flags.Parallel, flags.FailFast)...),
		}
		if flags.From != "" {
			known := false
			names := make([]string, len(stages))
			for i, s := range stages {
				names[i] = s.Name
				known = known || s.Name == flags.From
			}
			if !known {
				return fmt.Errorf(
					"%w: unknown stage %q (one of: %s)",
					flarc.ErrUsage, flags.From, strings.Join(names, ", "),
				)
			}
			options = append(options, pipeline.WithForceFrom(flags.From))
		}

		p := pipeline.New(layout, stages, options...)

		if flags.Watch {
			logger.Printf("watching manifests under %s; interrupt to stop", layout.WorkflowDir())
			return p.Watch(ctx)
		}

		statuses, err := p.Run(ctx)
		if werr := printSummary(cl.Stdout(), layout, statuses); werr != nil && err == nil {
			err = werr
		}
		return err
	}
}

// printSummary renders one line per completed stage. Stages the pass
// never reached (after an aborting error) are absent.
func printSummary(out io.Writer, layout workspace.Layout, statuses []pipeline.StageStatus) error {
	if len(statuses) == 0 {
		return nil
	}

	tw := tabwriter.NewWriter(out, 2, 0, 3, ' ', 0)
	fmt.Fprintf(tw, "STAGE\tSTATUS\tSUCCEEDED\tFAILED\tRESULT\n")
	for _, s := range statuses {
		result := layout.ResultPath(s.Name)
		if rel, err := layout.Rel(result); err == nil {
			result = rel
		}
		if s.Skipped {
			fmt.Fprintf(tw, "%s\tup to date\t-\t-\t%s\n", s.Name, result)
			continue
		}
		fmt.Fprintf(
			tw, "%s\tran\t%d\t%d\t%s\n",
			s.Name, s.Result.Succeeded, s.Result.Failed, result,
		)
	}
	return tw.Flush()
}
