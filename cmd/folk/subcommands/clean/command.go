package clean

import (
	"context"
	"fmt"
	"log"

	"github.com/youta-t/flarc"

	"github.com/folklore-ml/folklore/cmd/folk/subcommands/common"
	"github.com/folklore-ml/folklore/pkg/clean"
	"github.com/folklore-ml/folklore/pkg/workspace"
)

const ARG_SCOPE = "SCOPE"

func New() (flarc.Command, error) {
	return flarc.NewCommand(
		"Remove derived files of the workspace, scope by scope.",
		struct{}{},
		flarc.Args{
			{
				Name: ARG_SCOPE, Required: false, Repeatable: true,
				Help: "scopes to clean. Default: every derived scope (raw stays).",
			},
		},
		common.NewTask(Task()),
		flarc.WithDescription(`
Remove what the pipeline can rebuild.

	{{ .Command }}
	{{ .Command }} models predictions
	{{ .Command }} raw

Scopes:

	cache        scratch space and captured command logs
	raw          ingested raw data (cleaned only when named)
	datasets     interim and processed datasets
	models       trained model files
	predictions  model outputs
	workflow     result manifests and reports

Input manifests are never touched. The scope directories stay, emptied,
and cleaning an already clean scope is a no-op.
`),
	)
}

func Task() common.Task[struct{}] {
	return func(
		ctx context.Context,
		logger *log.Logger,
		_ common.CommonFlags,
		layout workspace.Layout,
		cl flarc.Commandline[struct{}],
		params []any,
	) error {
		scopes := []clean.Scope{}
		for _, arg := range cl.Args()[ARG_SCOPE] {
			scope, err := clean.ParseScope(arg)
			if err != nil {
				return fmt.Errorf("%w: %s", flarc.ErrUsage, err)
			}
			scopes = append(scopes, scope)
		}

		return clean.New(layout, clean.WithLogger(logger)).Clean(scopes...)
	}
}
