package workspace

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/folklore-ml/folklore/pkg/manifest"
)

// ErrNotInWorkspace means no folklore.yaml was found from the starting
// directory up to the filesystem root.
var ErrNotInWorkspace = errors.New("not in a folklore workspace")

// Stage names, as used in logs, result manifests and the pipeline.
const (
	StageFetch     = "fetch"
	StageUnpack    = "unpack"
	StageProcess   = "process"
	StageTransform = "transform"
	StageTrain     = "train"
	StagePredict   = "predict"
	StageAnalysis  = "analysis"
)

// Layout gives every component its paths.
//
// Nothing reads the working directory or environment after a Layout is
// built; pass it explicitly.
type Layout struct {
	root string
	conf Config
}

// Find locates the workspace containing start: the nearest ancestor
// directory (start included) holding folklore.yaml.
//
// It returns ErrNotInWorkspace when there is no such directory.
func Find(start string) (Layout, error) {
	dir, err := filepath.Abs(start)
	if err != nil {
		return Layout{}, err
	}

	for {
		marker := filepath.Join(dir, ConfigFileName)
		if _, err := os.Stat(marker); err == nil {
			return At(dir)
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return Layout{}, fmt.Errorf("%w: searched from %s", ErrNotInWorkspace, start)
		}
		dir = parent
	}
}

// At opens the workspace rooted at root.
//
// A missing folklore.yaml is fine; the standard layout applies then.
func At(root string) (Layout, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return Layout{}, err
	}
	conf, err := loadConfig(filepath.Join(abs, ConfigFileName))
	if err != nil {
		return Layout{}, err
	}
	return Layout{root: abs, conf: conf}, nil
}

func (l Layout) Root() string {
	return l.root
}

func (l Layout) Config() Config {
	return l.conf
}

func (l Layout) RawDir() string       { return filepath.Join(l.root, l.conf.Dirs.Raw) }
func (l Layout) InterimDir() string   { return filepath.Join(l.root, l.conf.Dirs.Interim) }
func (l Layout) ProcessedDir() string { return filepath.Join(l.root, l.conf.Dirs.Processed) }
func (l Layout) ModelsDir() string    { return filepath.Join(l.root, l.conf.Dirs.Models) }
func (l Layout) OutputDir() string    { return filepath.Join(l.root, l.conf.Dirs.Output) }
func (l Layout) ReportsDir() string   { return filepath.Join(l.root, l.conf.Dirs.Reports) }
func (l Layout) WorkflowDir() string  { return filepath.Join(l.root, l.conf.Dirs.Workflow) }
func (l Layout) CacheDir() string     { return filepath.Join(l.root, l.conf.Dirs.Cache) }
func (l Layout) LogsDir() string      { return filepath.Join(l.root, l.conf.Dirs.Logs) }

// ManifestPath is the absolute path of the input manifest for kind.
// All raw stages (fetch, unpack, process) share the raw manifest.
func (l Layout) ManifestPath(kind manifest.Kind) string {
	var rel string
	switch kind {
	case manifest.KindRaw:
		rel = l.conf.Manifests.Raw
	case manifest.KindTransform:
		rel = l.conf.Manifests.Transform
	case manifest.KindTrain:
		rel = l.conf.Manifests.Train
	case manifest.KindPredict:
		rel = l.conf.Manifests.Predict
	case manifest.KindAnalysis:
		rel = l.conf.Manifests.Analysis
	default:
		rel = filepath.Join(l.conf.Dirs.Workflow, string(kind)+".json")
	}
	return filepath.Join(l.root, rel)
}

// ResultPath is the absolute path where the result manifest of stage lands.
//
// The transform result sits next to its input manifest as
// "<manifest>.result"; train, predict and analysis have conventional
// names under the workflow directory; raw stages are named
// raw_<stage>.results.json.
func (l Layout) ResultPath(stage string) string {
	switch stage {
	case StageTransform:
		return l.ManifestPath(manifest.KindTransform) + ".result"
	case StageTrain:
		return filepath.Join(l.WorkflowDir(), "trained_models.json")
	case StagePredict:
		return filepath.Join(l.WorkflowDir(), "predictions.json")
	case StageAnalysis:
		return filepath.Join(l.WorkflowDir(), "analyses.json")
	case StageFetch, StageUnpack, StageProcess:
		return filepath.Join(l.WorkflowDir(), "raw_"+stage+".results.json")
	default:
		return filepath.Join(l.WorkflowDir(), stage+".results.json")
	}
}

// ResultPaths lists the result manifests of every stage.
func (l Layout) ResultPaths() []string {
	stages := []string{
		StageFetch, StageUnpack, StageProcess,
		StageTransform, StageTrain, StagePredict, StageAnalysis,
	}
	paths := make([]string, len(stages))
	for i, s := range stages {
		paths[i] = l.ResultPath(s)
	}
	return paths
}

// Resolve turns a workspace-relative path into an absolute one.
func (l Layout) Resolve(rel string) string {
	if filepath.IsAbs(rel) {
		return filepath.Clean(rel)
	}
	return filepath.Join(l.root, rel)
}

// Rel turns an absolute path under the workspace into a root-relative
// one, as recorded in result manifests.
func (l Layout) Rel(abs string) (string, error) {
	rel, err := filepath.Rel(l.root, abs)
	if err != nil {
		return "", err
	}
	if !filepath.IsLocal(rel) {
		return "", fmt.Errorf("%s is out of the workspace %s", abs, l.root)
	}
	return rel, nil
}

// ItemLogPath is where the captured output of one item of a stage goes.
func (l Layout) ItemLogPath(stage string, item string) string {
	return filepath.Join(l.LogsDir(), stage, item+".log")
}

// Scaffold creates the directory tree of the workspace.
//
// Existing directories are left alone, so it is safe to call again.
func (l Layout) Scaffold() error {
	for _, dir := range []string{
		l.RawDir(), l.InterimDir(), l.ProcessedDir(),
		l.ModelsDir(), l.OutputDir(),
		filepath.Join(l.ReportsDir(), "figures"),
		filepath.Join(l.ReportsDir(), "tables"),
		filepath.Join(l.ReportsDir(), "summary"),
		l.WorkflowDir(), l.CacheDir(), l.LogsDir(),
	} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return err
		}
	}
	return nil
}
