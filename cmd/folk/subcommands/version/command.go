package version

import (
	"context"
	"fmt"

	"github.com/youta-t/flarc"

	"github.com/folklore-ml/folklore/pkg/buildtime"
)

func New() (flarc.Command, error) {
	return flarc.NewCommand(
		"Show the version of folk.",
		struct{}{},
		flarc.Args{},
		func(ctx context.Context, cl flarc.Commandline[struct{}], _ []any) error {
			_, err := fmt.Fprintln(cl.Stdout(), buildtime.VersionString())
			return err
		},
	)
}
