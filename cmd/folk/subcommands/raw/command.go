package raw

import (
	"github.com/youta-t/flarc"

	raw_add "github.com/folklore-ml/folklore/cmd/folk/subcommands/raw/add"
	raw_fetch "github.com/folklore-ml/folklore/cmd/folk/subcommands/raw/fetch"
	raw_process "github.com/folklore-ml/folklore/cmd/folk/subcommands/raw/process"
	raw_unpack "github.com/folklore-ml/folklore/cmd/folk/subcommands/raw/unpack"
)

func New() (flarc.Command, error) {
	add, err := raw_add.New()
	if err != nil {
		return nil, err
	}
	fetch, err := raw_fetch.New()
	if err != nil {
		return nil, err
	}
	unpack, err := raw_unpack.New()
	if err != nil {
		return nil, err
	}
	process, err := raw_process.New()
	if err != nil {
		return nil, err
	}

	return flarc.NewCommandGroup(
		"Declare, ingest and prepare raw datasets.",
		struct{}{},
		flarc.WithSubcommand("add", add),
		flarc.WithSubcommand("fetch", fetch),
		flarc.WithSubcommand("unpack", unpack),
		flarc.WithSubcommand("process", process),
	)
}
