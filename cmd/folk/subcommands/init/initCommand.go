package init

import (
	"bytes"
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/youta-t/flarc"
	"gopkg.in/yaml.v3"

	"github.com/folklore-ml/folklore/cmd/folk/subcommands/common"
	"github.com/folklore-ml/folklore/pkg/manifest"
	"github.com/folklore-ml/folklore/pkg/utils/checksum"
	y "github.com/folklore-ml/folklore/pkg/utils/yamler"
	"github.com/folklore-ml/folklore/pkg/workspace"
)

type Flag struct {
	Force bool `flag:"force" help:"rewrite folklore.yaml even when it already exists."`
}

const ARG_DIRECTORY = "DIRECTORY"

func New() (flarc.Command, error) {
	return flarc.NewCommand(
		"Initialize a directory as a folklore workspace.",
		Flag{},
		flarc.Args{
			{
				Name: ARG_DIRECTORY, Required: false,
				Help: "directory to initialize. Default: current directory.",
			},
		},
		common.NewTaskWithCommonFlag(Task()),
		flarc.WithDescription(`
Create the workspace skeleton: folklore.yaml, the data/model/report
directories and starter manifests under workflow/.

	{{ .Command }}
	{{ .Command }} path/to/project

Existing manifests are never touched. folklore.yaml is rewritten only
with --force.
`),
	)
}

func Task() common.TaskWithCommonFlag[Flag] {
	return func(
		ctx context.Context,
		logger *log.Logger,
		_ common.CommonFlags,
		cl flarc.Commandline[Flag],
		params []any,
	) error {
		dir := "."
		if args := cl.Args()[ARG_DIRECTORY]; 0 < len(args) {
			dir = args[0]
		}
		root, err := filepath.Abs(dir)
		if err != nil {
			return err
		}

		marker := filepath.Join(root, workspace.ConfigFileName)
		if _, err := os.Stat(marker); err == nil && !cl.Flags().Force {
			return fmt.Errorf(
				"%s already exists. Pass --force to rewrite it", marker,
			)
		}

		if err := os.MkdirAll(root, 0755); err != nil {
			return err
		}
		if err := writeConfig(marker); err != nil {
			return fmt.Errorf("cannot write %s: %w", marker, err)
		}

		layout, err := workspace.At(root)
		if err != nil {
			return err
		}
		if err := layout.Scaffold(); err != nil {
			return err
		}

		for kind, starter := range starters {
			path := layout.ManifestPath(kind)
			if _, err := os.Stat(path); err == nil {
				logger.Printf("kept: %s", path)
				continue
			}
			if err := os.WriteFile(path, []byte(starter), 0644); err != nil {
				return fmt.Errorf("cannot write %s: %w", path, err)
			}

			// what init writes must be loadable back.
			if _, err := manifest.Load(path, kind); err != nil {
				return err
			}
		}

		logger.Printf("workspace initialized: %s", root)
		return nil
	}
}

func writeConfig(path string) error {
	buf := bytes.NewBuffer(nil)
	enc := yaml.NewEncoder(buf)
	enc.SetIndent(2)
	if err := enc.Encode(configDocument()); err != nil {
		return err
	}
	if err := enc.Close(); err != nil {
		return err
	}
	return os.WriteFile(path, buf.Bytes(), 0644)
}

func configDocument() *yaml.Node {
	doc := y.Map(
		y.Entry(
			y.Text("checksum", y.WithHeadComment(`
checksum:
  Digest algorithm recorded for artifacts.
  One of: md5, sha1, sha256, blake3.
`)),
			y.Text(string(checksum.SHA256)),
		),
		y.Entry(
			y.Text("parallel", y.WithHeadComment(`
parallel:
  How many items a stage runs at once.
  0 and 1 both mean strictly sequential.
`)),
			y.Number(1),
		),
		y.Entry(
			y.Text("timeout", y.WithHeadComment(`
timeout:
  Bounds one attempt of an item which declares no own timeout,
  as a duration string ("90s", "15m"). Empty means unbounded.
`)),
			y.Text("", y.WithStyle(yaml.DoubleQuotedStyle)),
		),
	)

	doc.HeadComment = `folklore workspace configuration.
Every key is optional; missing keys fall back to the standard layout.
`

	doc.FootComment = `
# # dirs (optional):
# #   Override workspace directories, relative to this file.
# dirs:
#   raw: data/raw
#   interim: data/interim
#   processed: data/processed
#   models: models/trained
#   output: models/output
#   reports: reports
#   workflow: workflow
#   cache: .folklore/cache
#   logs: .folklore/logs
#
# # manifests (optional):
# #   Override where the input manifests live.
# manifests:
#   raw: workflow/raw_datasets.json
#   transform: workflow/transformer_list.json
#   train: workflow/model_list.json
#   predict: workflow/predict_list.json
#   analysis: workflow/analysis_list.json
`

	return doc
}

// starters are the initial input manifests: empty, with the item shape
// documented in comments. Manifests are JSONC, so the comments survive
// folk's own loading.
var starters = map[manifest.Kind]string{
	manifest.KindRaw: `// Raw datasets, ingested by these commands in order:
//   folk raw fetch    sources -> data/raw
//   folk raw unpack   data/raw -> data/interim
//   folk raw process  data/interim -> data/processed
//
// Item shape:
//   {
//     "name": "iris",
//     "files": [
//       {"path": "incoming/iris.csv", "hash_type": "sha256", "hash_value": "..."},
//       {"url": "file:///mnt/share/iris-extra.csv"},
//       {"contents": "Iris flower measurements.", "file_name": "README", "role": "descr"}
//     ],
//     "unpack": "auto",
//     "run": ["python", "src/data/make_iris.py"]
//   }
//
// "run" is optional: without it, ` + "`folk raw process`" + ` copies the unpacked
// dataset into data/processed as it is.
[]
`,
	manifest.KindTransform: `// Transform steps, run in order by ` + "`folk transform`" + `.
//
// Item shape:
//   {
//     "name": "scale_features",
//     "run": ["python", "src/features/scale.py"],
//     "inputs": ["data/processed/iris"],
//     "outputs": ["data/processed/iris_scaled.csv"],
//     "params": {"method": "standard"}
//   }
[]
`,
	manifest.KindTrain: `// Models to train, run by ` + "`folk train`" + `.
//
// Item shape:
//   {
//     "name": "random_forest",
//     "run": ["python", "src/models/train.py"],
//     "outputs": ["models/trained/random_forest.bin"],
//     "params": {"seed": "42"},
//     "timeout": "30m"
//   }
[]
`,
	manifest.KindPredict: `// Predictions to make, run by ` + "`folk predict`" + `.
//
// Item shape:
//   {
//     "name": "random_forest",
//     "run": ["python", "src/models/predict.py"],
//     "inputs": ["models/trained/random_forest.bin"],
//     "outputs": ["models/output/random_forest.csv"]
//   }
[]
`,
	manifest.KindAnalysis: `// Analyses and reports, run by ` + "`folk analysis`" + `.
//
// Item shape:
//   {
//     "name": "confusion_matrix",
//     "run": ["python", "src/visualization/confusion.py"],
//     "inputs": ["models/output/random_forest.csv"],
//     "outputs": ["reports/figures/confusion_matrix.png"]
//   }
[]
`,
}
