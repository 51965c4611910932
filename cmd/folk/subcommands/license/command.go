// Package license prints the notices folk is distributed under.
package license

import (
	"context"
	"io"

	"github.com/youta-t/flarc"
)

// New builds the command around the embedded notice text, which main
// regenerates with gocredits at build time.
func New(notices string) (flarc.Command, error) {
	return flarc.NewCommand(
		"Show the licenses of folk and its dependencies.",
		struct{}{},
		flarc.Args{},
		func(ctx context.Context, cl flarc.Commandline[struct{}], _ []any) error {
			_, err := io.WriteString(cl.Stdout(), notices)
			return err
		},
		flarc.WithDescription(`
Print the license notices of every library compiled into this binary.
`),
	)
}
