//go:generate go run github.com/Songmu/gocredits/cmd/gocredits@v0.3.0 -w
package main

import (
	"context"
	_ "embed"
	"os"
	"os/signal"
	"path"

	"github.com/youta-t/flarc"

	subanalysis "github.com/folklore-ml/folklore/cmd/folk/subcommands/analysis"
	subclean "github.com/folklore-ml/folklore/cmd/folk/subcommands/clean"
	"github.com/folklore-ml/folklore/cmd/folk/subcommands/common"
	subinit "github.com/folklore-ml/folklore/cmd/folk/subcommands/init"
	sublic "github.com/folklore-ml/folklore/cmd/folk/subcommands/license"
	"github.com/folklore-ml/folklore/cmd/folk/subcommands/logger"
	subpipeline "github.com/folklore-ml/folklore/cmd/folk/subcommands/pipeline"
	subpredict "github.com/folklore-ml/folklore/cmd/folk/subcommands/predict"
	subraw "github.com/folklore-ml/folklore/cmd/folk/subcommands/raw"
	substatus "github.com/folklore-ml/folklore/cmd/folk/subcommands/status"
	subtrain "github.com/folklore-ml/folklore/cmd/folk/subcommands/train"
	subtransform "github.com/folklore-ml/folklore/cmd/folk/subcommands/transform"
	subver "github.com/folklore-ml/folklore/cmd/folk/subcommands/version"
	"github.com/folklore-ml/folklore/pkg/utils/try"
)

//go:embed CREDITS
var CREDITS string

func main() {
	name := path.Base(os.Args[0])
	logger := logger.For(os.Stderr, name)

	ctx, cancel := signal.NotifyContext(
		context.Background(), os.Interrupt, os.Kill,
	)
	defer cancel()

	cf := try.To(common.Flags(".")).OrFatal(logger)
	init := try.To(subinit.New()).OrFatal(logger)
	raw := try.To(subraw.New()).OrFatal(logger)
	transform := try.To(subtransform.New()).OrFatal(logger)
	train := try.To(subtrain.New()).OrFatal(logger)
	predict := try.To(subpredict.New()).OrFatal(logger)
	analysis := try.To(subanalysis.New()).OrFatal(logger)
	pipeline := try.To(subpipeline.New()).OrFatal(logger)
	clean := try.To(subclean.New()).OrFatal(logger)
	status := try.To(substatus.New()).OrFatal(logger)
	license := try.To(sublic.New(CREDITS)).OrFatal(logger)
	version := try.To(subver.New()).OrFatal(logger)

	folk := try.To(
		flarc.NewCommandGroup(
			"Manifest-driven pipelines for data science workspaces.",
			cf,
			flarc.WithSubcommand("init", init),
			flarc.WithSubcommand("raw", raw),
			flarc.WithSubcommand("transform", transform),
			flarc.WithSubcommand("train", train),
			flarc.WithSubcommand("predict", predict),
			flarc.WithSubcommand("analysis", analysis),
			flarc.WithSubcommand("pipeline", pipeline),
			flarc.WithSubcommand("clean", clean),
			flarc.WithSubcommand("status", status),
			flarc.WithSubcommand("license", license),
			flarc.WithSubcommand("version", version),
		),
	).OrFatal(logger)

	os.Exit(flarc.Run(ctx, folk, flarc.WithHelp(true)))
}
