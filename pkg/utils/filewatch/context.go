// Package filewatch turns filesystem modifications into context
// cancellation.
package filewatch

import (
	"context"
	"fmt"

	"github.com/fsnotify/fsnotify"
)

// UntilModifyContext derives from ctx a context that is canceled as soon
// as any of the given paths is modified (written, created, removed, or
// renamed). A directory counts as modified when any direct child is.
//
// context.Cause of the returned context names the path that changed.
// The returned stop function releases the watcher; call it when the
// watch is over.
func UntilModifyContext(ctx context.Context, paths ...string) (context.Context, func(), error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, nil, err
	}
	for _, p := range paths {
		if err := w.Add(p); err != nil {
			w.Close()
			return nil, nil, err
		}
	}

	cctx, cancel := context.WithCancelCause(ctx)
	go func() {
		defer w.Close()
		for {
			select {
			case <-cctx.Done():
				return
			case event, ok := <-w.Events:
				if !ok {
					return
				}
				cancel(fmt.Errorf("%s changed (%s)", event.Name, event.Op))
			case _, ok := <-w.Errors:
				if !ok {
					return
				}
				// watcher errors are not modifications; keep watching
			}
		}
	}()

	return cctx, func() { cancel(nil) }, nil
}
