package status

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"text/tabwriter"

	"github.com/youta-t/flarc"

	"github.com/folklore-ml/folklore/cmd/folk/subcommands/common"
	"github.com/folklore-ml/folklore/cmd/folk/subcommands/internal/batch"
	"github.com/folklore-ml/folklore/pkg/manifest"
	"github.com/folklore-ml/folklore/pkg/pipeline"
	"github.com/folklore-ml/folklore/pkg/utils/rfctime"
	"github.com/folklore-ml/folklore/pkg/workspace"
)

type Flag struct {
	JSON bool `flag:"json" help:"print the report as JSON instead of tables."`
}

func New() (flarc.Command, error) {
	return flarc.NewCommand(
		"Show what the workspace holds and what a pipeline pass would do.",
		Flag{},
		flarc.Args{},
		common.NewTask(Task()),
		flarc.WithDescription(`
Report each stage of the pipeline (whether it has a manifest, whether
it ever ran, and whether its result is still up to date) and each raw
dataset's progress through the data areas.

	{{ .Command }}
	{{ .Command }} --json

Nothing is run and nothing is written.
`),
	)
}

// Report is the machine readable form of the status output.
type Report struct {
	Workspace string          `json:"workspace"`
	Stages    []StageReport   `json:"stages"`
	Datasets  []DatasetReport `json:"datasets"`
}

// StageReport is the state of one stage, as the next pipeline pass
// will see it.
type StageReport struct {
	Name      string             `json:"name"`
	Condition pipeline.Condition `json:"condition"`

	// Items counts the work items of the input manifest. Zero when the
	// manifest is missing or unreadable.
	Items int `json:"items"`

	// Error explains an input manifest which exists but cannot be read.
	Error string `json:"error,omitempty"`

	// LastRun summarizes the stage's result manifest, when one exists.
	LastRun *RunReport `json:"last_run,omitempty"`
}

// RunReport condenses a result manifest.
type RunReport struct {
	RunID     string          `json:"run_id"`
	Succeeded int             `json:"succeeded"`
	Failed    int             `json:"failed"`
	Finished  rfctime.RFC3339 `json:"finished"`
}

// DatasetReport tracks one raw dataset through the data areas.
type DatasetReport struct {
	Name      string `json:"name"`
	Fetched   bool   `json:"fetched"`
	Unpacked  bool   `json:"unpacked"`
	Processed bool   `json:"processed"`
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
		report := Report{
			Workspace: layout.Root(),
			Stages:    stageReports(batch.Pipeline(layout)),
			Datasets:  datasetReports(layout),
		}

		if cl.Flags().JSON {
			buf, err := json.MarshalIndent(report, "", "    ")
			if err != nil {
				return err
			}
			cl.Stdout().Write(buf)
			cl.Stdout().Write([]byte("\n"))
			return nil
		}

		logger.Printf("workspace: %s", report.Workspace)
		for _, s := range report.Stages {
			if s.Error != "" {
				logger.Printf("%s: %s", s.Name, s.Error)
			}
		}
		return printTables(cl.Stdout(), report)
	}
}

func stageReports(stages []pipeline.StageSpec) []StageReport {
	reports := make([]StageReport, 0, len(stages))
	for _, s := range stages {
		r := StageReport{Name: s.Name, Condition: pipeline.Inspect(s)}

		if m, err := manifest.Load(s.Input, s.Kind); err == nil {
			r.Items = len(m)
		} else if !errors.Is(err, manifest.ErrNotFound) {
			r.Error = err.Error()
		}

		if result, err := manifest.LoadResult(s.Output); err == nil {
			r.LastRun = &RunReport{
				RunID:     result.RunID,
				Succeeded: result.Succeeded,
				Failed:    result.Failed,
				Finished:  result.Finished,
			}
		}

		reports = append(reports, r)
	}
	return reports
}

func datasetReports(layout workspace.Layout) []DatasetReport {
	m, err := manifest.Load(layout.ManifestPath(manifest.KindRaw), manifest.KindRaw)
	if err != nil {
		return []DatasetReport{}
	}

	has := func(dir string, name string) bool {
		_, err := os.Stat(filepath.Join(dir, name))
		return err == nil
	}

	reports := make([]DatasetReport, 0, len(m))
	for _, item := range m {
		reports = append(reports, DatasetReport{
			Name:      item.Name,
			Fetched:   has(layout.RawDir(), item.Name),
			Unpacked:  has(layout.InterimDir(), item.Name),
			Processed: has(layout.ProcessedDir(), item.Name),
		})
	}
	return reports
}

func printTables(out io.Writer, report Report) error {
	tw := tabwriter.NewWriter(out, 2, 0, 3, ' ', 0)
	fmt.Fprintf(tw, "STAGE\tSTATE\tITEMS\tSUCCEEDED\tFAILED\tFINISHED\n")
	for _, s := range report.Stages {
		items := strconv.Itoa(s.Items)
		if s.Condition == pipeline.NoManifest || s.Error != "" {
			items = "-"
		}
		succeeded, failed, finished := "-", "-", "-"
		if s.LastRun != nil {
			succeeded = strconv.Itoa(s.LastRun.Succeeded)
			failed = strconv.Itoa(s.LastRun.Failed)
			finished = s.LastRun.Finished.String()
		}
		fmt.Fprintf(
			tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
			s.Name, s.Condition, items, succeeded, failed, finished,
		)
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	if len(report.Datasets) == 0 {
		return nil
	}

	fmt.Fprintln(out)
	tw = tabwriter.NewWriter(out, 2, 0, 3, ' ', 0)
	fmt.Fprintf(tw, "DATASET\tFETCHED\tUNPACKED\tPROCESSED\n")
	for _, d := range report.Datasets {
		fmt.Fprintf(
			tw, "%s\t%s\t%s\t%s\n",
			d.Name, mark(d.Fetched), mark(d.Unpacked), mark(d.Processed),
		)
	}
	return tw.Flush()
}

func mark(done bool) string {
	if done {
		return "yes"
	}
	return "-"
}
