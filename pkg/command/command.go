package command

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/folklore-ml/folklore/pkg/manifest"
	"github.com/folklore-ml/folklore/pkg/workspace"
)

// Executor runs the declared command of a WorkItem from the workspace
// root, with the item's parameters exported in the environment:
//
//	FOLK_WORKSPACE    workspace root
//	FOLK_STAGE        stage name
//	FOLK_ITEM         item name
//	FOLK_PARAM_<KEY>  one per params entry
//
// Output of the command, stdout and stderr both, is captured into the
// workspace log area. Declared outputs must exist when the command is
// done; they become the item's artifacts.
//
// The process stage treats items without a command as passthrough: the
// unpacked dataset is copied from the interim area into the processed
// area as it is. Other stages fail such items.
type Executor struct {
	layout workspace.Layout
	stage  string
}

func New(stage string, layout workspace.Layout) *Executor {
	return &Executor{layout: layout, stage: stage}
}

func (e *Executor) Execute(ctx context.Context, item manifest.WorkItem) ([]manifest.Artifact, error) {
	if len(item.Run) == 0 {
		if e.stage == workspace.StageProcess {
			return e.passthrough(ctx, item)
		}
		return nil, fmt.Errorf("%s declares no command", item.Name)
	}

	logPath := e.layout.ItemLogPath(e.stage, item.Name)
	if err := os.MkdirAll(filepath.Dir(logPath), 0755); err != nil {
		return nil, err
	}
	logFile, err := os.Create(logPath)
	if err != nil {
		return nil, err
	}
	defer logFile.Close()

	cmd := exec.CommandContext(ctx, item.Run[0], item.Run[1:]...)
	cmd.Dir = e.layout.Root()
	cmd.Env = e.environ(item)
	cmd.Stdout = logFile
	cmd.Stderr = logFile

	if err := cmd.Run(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, fmt.Errorf("%w (log: %s)", err, logPath)
	}

	return e.collectOutputs(item)
}

// environ extends the host environment with the folk variables.
func (e *Executor) environ(item manifest.WorkItem) []string {
	env := append(os.Environ(),
		"FOLK_WORKSPACE="+e.layout.Root(),
		"FOLK_STAGE="+e.stage,
		"FOLK_ITEM="+item.Name,
	)
	for key, value := range item.Params {
		env = append(env, "FOLK_PARAM_"+envKey(key)+"="+value)
	}
	return env
}

// envKey turns a parameter name into an environment variable suffix.
func envKey(key string) string {
	mapped := strings.Map(func(r rune) rune {
		switch {
		case 'a' <= r && r <= 'z', 'A' <= r && r <= 'Z', '0' <= r && r <= '9':
			return r
		default:
			return '_'
		}
	}, key)
	return strings.ToUpper(mapped)
}

// collectOutputs resolves the declared outputs of item. Every output
// must exist; a directory output stands for all files under it.
func (e *Executor) collectOutputs(item manifest.WorkItem) ([]manifest.Artifact, error) {
	artifacts := []manifest.Artifact{}
	for _, out := range item.Outputs {
		abs := e.layout.Resolve(out)
		stat, err := os.Stat(abs)
		if err != nil {
			return nil, fmt.Errorf("declared output %s is missing: %w", out, err)
		}

		if !stat.IsDir() {
			rel, err := e.layout.Rel(abs)
			if err != nil {
				return nil, err
			}
			artifacts = append(artifacts, manifest.Artifact{Path: rel})
			continue
		}

		if err := filepath.WalkDir(abs, func(p string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() {
				return nil
			}
			rel, err := e.layout.Rel(p)
			if err != nil {
				return err
			}
			artifacts = append(artifacts, manifest.Artifact{Path: rel})
			return nil
		}); err != nil {
			return nil, err
		}
	}
	return artifacts, nil
}

// passthrough copies the unpacked dataset into the processed area.
// A dataset with no unpacked files is a no-op, not a failure.
func (e *Executor) passthrough(ctx context.Context, item manifest.WorkItem) ([]manifest.Artifact, error) {
	src := filepath.Join(e.layout.InterimDir(), item.Name)
	if _, err := os.Stat(src); os.IsNotExist(err) {
		return nil, nil
	} else if err != nil {
		return nil, err
	}
	dest := filepath.Join(e.layout.ProcessedDir(), item.Name)

	artifacts := []manifest.Artifact{}
	err := filepath.WalkDir(src, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		relInSrc, err := filepath.Rel(src, p)
		if err != nil {
			return err
		}
		target := filepath.Join(dest, relInSrc)

		if d.IsDir() {
			return os.MkdirAll(target, 0755)
		}
		if err := copyFile(target, p); err != nil {
			return err
		}
		rel, err := e.layout.Rel(target)
		if err != nil {
			return err
		}
		artifacts = append(artifacts, manifest.Artifact{Path: rel})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return artifacts, nil
}

func copyFile(dest string, src string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dest)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
