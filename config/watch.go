package config

import (
	"context"
	"fmt"

	"github.com/fsnotify/fsnotify"
	verrors "github.com/ha1tch/veloq-go/pkg/errors"
)

// StashWatcher notifies a caller whenever a project's stash files
// change on disk, so a long-lived process can pick up an
// `edgedb project-init`/`edgedb instance link` change without
// restarting. Resolve itself stays one-shot per spec.md §4.I; this is
// a supplemental convenience layered on top of project discovery,
// mirroring the teacher's file-watching reload loop.
type StashWatcher struct {
	fsw *fsnotify.Watcher
	cwd string
}

// WatchProjectStash locates the project rooted at or above cwd, starts
// watching its stash directory, and calls onChange with a freshly
// re-resolved Endpoint (resolved with no explicit options, so the
// process-wide, environment and project levels apply; callers wanting
// explicit overlays should re-apply them in onChange) every time a stash file is created, written, renamed, or
// removed. It returns an error immediately if no project is found or
// the stash directory doesn't exist yet - the same "not initialized"
// condition projectOptions raises.
func WatchProjectStash(ctx context.Context, cwd string, onChange func(*Endpoint, error)) (*StashWatcher, error) {
	root, found, err := findProjectRoot(cwd)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, verrors.ConnectionFailed(
			fmt.Sprintf("no %s found above %s", ProjectMarkerFile, cwd)).Err()
	}

	dir, err := stashDir(root)
	if err != nil {
		return nil, err
	}
	if _, ok := readStashFile(dir, "instance-name"); !ok {
		return nil, verrors.ConnectionFailed(
			fmt.Sprintf("found %s at %s but project is not initialized (missing stash %s)", ProjectMarkerFile, root, dir)).Err()
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, verrors.ConnectionFailed(err.Error()).Err()
	}
	if err := fsw.Add(dir); err != nil {
		fsw.Close()
		return nil, verrors.ConnectionFailed(err.Error()).Err()
	}

	w := &StashWatcher{fsw: fsw, cwd: cwd}
	go w.run(ctx, onChange)
	return w, nil
}

func (w *StashWatcher) run(ctx context.Context, onChange func(*Endpoint, error)) {
	defer w.fsw.Close()
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			ep, err := resolveFrom(Options{}, w.cwd)
			onChange(ep, err)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			onChange(nil, verrors.ConnectionFailed(err.Error()).Err())
		}
	}
}

// Close stops the watcher and releases its underlying fsnotify handle.
// Safe to call more than once; subsequent calls are no-ops once the
// run goroutine has already closed fsw via ctx cancellation.
func (w *StashWatcher) Close() error {
	return w.fsw.Close()
}
