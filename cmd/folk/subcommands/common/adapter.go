package common

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/youta-t/flarc"

	"github.com/folklore-ml/folklore/cmd/folk/subcommands/logger"
	"github.com/folklore-ml/folklore/pkg/workspace"
)

type TaskWithCommonFlag[T any] func(
	ctx context.Context,
	logger *log.Logger,
	commonFlag CommonFlags,
	cl flarc.Commandline[T],
	params []any,
) error

func NewTaskWithCommonFlag[T any](task TaskWithCommonFlag[T]) flarc.Task[T] {
	return func(ctx context.Context, cl flarc.Commandline[T], pos []any) error {
		var commonFlag CommonFlags
		found := false
		newpos := make([]any, 0, len(pos))
		for _, p := range pos {
			switch v := p.(type) {
			case CommonFlags:
				found = true
				commonFlag = v
			default:
				newpos = append(newpos, p)
			}
		}
		if !found {
			return errors.New("programming error: common flags not found")
		}

		return task(
			ctx,
			logger.For(cl.Stderr(), cl.Fullname()),
			commonFlag,
			cl,
			newpos,
		)
	}
}

type Task[T any] func(
	ctx context.Context,
	logger *log.Logger,
	commonFlag CommonFlags,
	layout workspace.Layout,
	cl flarc.Commandline[T],
	params []any,
) error

// NewTask adapts a workspace-bound task into a flarc one.
//
// The workspace comes from the --workspace common flag, whose default
// is detected by Flags. Commands built with NewTask fail outside of a
// workspace; commands which must run anywhere (init, version) use
// NewTaskWithCommonFlag or a bare flarc.Task instead.
func NewTask[T any](task Task[T]) flarc.Task[T] {
	return NewTaskWithCommonFlag(func(
		ctx context.Context,
		logger *log.Logger,
		commonFlag CommonFlags,
		cl flarc.Commandline[T],
		params []any,
	) error {
		if commonFlag.Workspace == "" {
			return fmt.Errorf(
				"%w: no %s found here or above. Run `folk init` first, or pass --workspace",
				workspace.ErrNotInWorkspace, workspace.ConfigFileName,
			)
		}

		layout, err := workspace.At(commonFlag.Workspace)
		if err != nil {
			return fmt.Errorf("failed to open workspace %s: %w", commonFlag.Workspace, err)
		}

		return task(ctx, logger, commonFlag, layout, cl, params)
	})
}
