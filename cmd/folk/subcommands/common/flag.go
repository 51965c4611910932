package common

import (
	"github.com/folklore-ml/folklore/pkg/workspace"
)

// CommonFlags are understood by every folk subcommand.
type CommonFlags struct {
	Workspace string `flag:"workspace" alias:"w" metavar:"DIR" help:"path to the workspace root."`
	Plain     bool   `flag:"plain" help:"no progress bars."`
}

// Flags detects default values for CommonFlags, starting at from.
//
// The default workspace is the nearest ancestor of from (from included)
// which contains folklore.yaml. When there is none, the default is left
// empty and commands which need a workspace will ask the user to run
// `folk init` or to pass --workspace.
func Flags(from string) (CommonFlags, error) {
	ws := ""
	if l, err := workspace.Find(from); err == nil {
		ws = l.Root()
	}

	return CommonFlags{Workspace: ws}, nil
}
