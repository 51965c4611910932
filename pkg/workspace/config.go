package workspace

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/folklore-ml/folklore/pkg/utils/checksum"
)

// ConfigFileName marks the root of a workspace.
const ConfigFileName = "folklore.yaml"

var ErrInvalidConfig = errors.New("invalid workspace config")

// Dirs names the directories of a workspace relative to its root.
// Empty fields fall back to the standard layout.
type Dirs struct {
	Raw       string `yaml:"raw,omitempty"`
	Interim   string `yaml:"interim,omitempty"`
	Processed string `yaml:"processed,omitempty"`
	Models    string `yaml:"models,omitempty"`
	Output    string `yaml:"output,omitempty"`
	Reports   string `yaml:"reports,omitempty"`
	Workflow  string `yaml:"workflow,omitempty"`
	Cache     string `yaml:"cache,omitempty"`
	Logs      string `yaml:"logs,omitempty"`
}

// Manifests locates the input manifests relative to the workspace root.
// Empty fields fall back to the standard names under the workflow directory.
type Manifests struct {
	Raw       string `yaml:"raw,omitempty"`
	Transform string `yaml:"transform,omitempty"`
	Train     string `yaml:"train,omitempty"`
	Predict   string `yaml:"predict,omitempty"`
	Analysis  string `yaml:"analysis,omitempty"`
}

// Config is the content of folklore.yaml.
//
// Everything is optional. A missing file means all defaults.
type Config struct {
	// Checksum is the digest algorithm recorded for artifacts.
	Checksum checksum.Algorithm

	// Timeout bounds one attempt of an item which declares no own timeout.
	// Zero means unbounded.
	Timeout time.Duration

	// Parallel is how many items a stage runs at once. 0 and 1 both mean
	// strictly sequential.
	Parallel int

	Dirs      Dirs
	Manifests Manifests
}

func (c *Config) UnmarshalYAML(node *yaml.Node) error {
	raw := struct {
		Checksum  string    `yaml:"checksum,omitempty"`
		Timeout   string    `yaml:"timeout,omitempty"`
		Parallel  int       `yaml:"parallel,omitempty"`
		Dirs      Dirs      `yaml:"dirs,omitempty"`
		Manifests Manifests `yaml:"manifests,omitempty"`
	}{}
	if err := node.Decode(&raw); err != nil {
		return err
	}

	if raw.Checksum != "" {
		algorithm, err := checksum.ParseAlgorithm(raw.Checksum)
		if err != nil {
			return fmt.Errorf("%w: %s", ErrInvalidConfig, err)
		}
		c.Checksum = algorithm
	}

	if raw.Timeout != "" {
		timeout, err := time.ParseDuration(raw.Timeout)
		if err != nil {
			return fmt.Errorf("%w: timeout: %s", ErrInvalidConfig, err)
		}
		if timeout < 0 {
			return fmt.Errorf("%w: timeout is negative: %s", ErrInvalidConfig, raw.Timeout)
		}
		c.Timeout = timeout
	}

	if raw.Parallel < 0 {
		return fmt.Errorf("%w: parallel is negative: %d", ErrInvalidConfig, raw.Parallel)
	}
	c.Parallel = raw.Parallel

	for _, p := range []string{
		raw.Dirs.Raw, raw.Dirs.Interim, raw.Dirs.Processed,
		raw.Dirs.Models, raw.Dirs.Output, raw.Dirs.Reports,
		raw.Dirs.Workflow, raw.Dirs.Cache, raw.Dirs.Logs,
		raw.Manifests.Raw, raw.Manifests.Transform, raw.Manifests.Train,
		raw.Manifests.Predict, raw.Manifests.Analysis,
	} {
		if p == "" {
			continue
		}
		if !filepath.IsLocal(p) {
			return fmt.Errorf("%w: path escapes the workspace: %s", ErrInvalidConfig, p)
		}
	}
	c.Dirs = raw.Dirs
	c.Manifests = raw.Manifests

	return nil
}

// withDefaults fills zero fields with the standard layout.
func (c Config) withDefaults() Config {
	if c.Checksum == "" {
		c.Checksum = checksum.SHA256
	}

	def := func(v *string, fallback string) {
		if *v == "" {
			*v = fallback
		}
	}
	def(&c.Dirs.Raw, filepath.Join("data", "raw"))
	def(&c.Dirs.Interim, filepath.Join("data", "interim"))
	def(&c.Dirs.Processed, filepath.Join("data", "processed"))
	def(&c.Dirs.Models, filepath.Join("models", "trained"))
	def(&c.Dirs.Output, filepath.Join("models", "output"))
	def(&c.Dirs.Reports, "reports")
	def(&c.Dirs.Workflow, "workflow")
	def(&c.Dirs.Cache, filepath.Join(".folklore", "cache"))
	def(&c.Dirs.Logs, filepath.Join(".folklore", "logs"))

	def(&c.Manifests.Raw, filepath.Join(c.Dirs.Workflow, "raw_datasets.json"))
	def(&c.Manifests.Transform, filepath.Join(c.Dirs.Workflow, "transformer_list.json"))
	def(&c.Manifests.Train, filepath.Join(c.Dirs.Workflow, "model_list.json"))
	def(&c.Manifests.Predict, filepath.Join(c.Dirs.Workflow, "predict_list.json"))
	def(&c.Manifests.Analysis, filepath.Join(c.Dirs.Workflow, "analysis_list.json"))

	return c
}

// loadConfig reads the config file at path.
//
// A missing file is not an error; it yields the all-defaults Config.
// A file which fails to parse or validate is an error.
func loadConfig(path string) (Config, error) {
	conf := Config{}

	content, err := os.ReadFile(path)
	if err != nil {
		return conf.withDefaults(), nil
	}

	if err := yaml.Unmarshal(content, &conf); err != nil {
		return Config{}, fmt.Errorf("%s: %w", path, err)
	}
	return conf.withDefaults(), nil
}
