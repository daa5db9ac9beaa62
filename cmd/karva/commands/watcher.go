package commands

import (
	"io/fs"
	"path/filepath"

	"github.com/fsnotify/fsnotify"

	"github.com/karva-go/karva/internal/orchestrator"
)

// guestSourceExt is the file extension discovery.Walk's enry-based language
// classification ultimately accepts for the reference guest language
// (Python). The watcher only needs a coarse, delete-event-safe pre-filter;
// discovery.Walk re-applies enry.GetLanguage's full filename+content
// classification on every re-run it triggers.
const guestSourceExt = ".py"

// fsWatcher implements orchestrator.Watcher over fsnotify, recursively
// watching root and filtering events to guest-language source files, per
// spec.md §4.4's Watch mode rule ("filtered to source-language files").
// orchestrator itself never touches the filesystem (it's the out-of-scope
// external collaborator named in spec.md's Purpose & Scope); this type is
// the one piece of cmd/karva that does.
type fsWatcher struct {
	inner  *fsnotify.Watcher
	events chan struct{}
}

// newFSWatcher recursively adds every directory under root to a new
// fsnotify watcher and starts forwarding matching events to Events().
func newFSWatcher(root string) (*fsWatcher, error) {
	inner, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, _ error) error {
		if d != nil && d.IsDir() {
			_ = inner.Add(path)
		}

		return nil
	})
	if err != nil {
		inner.Close()

		return nil, err
	}

	w := &fsWatcher{inner: inner, events: make(chan struct{}, 1)}

	go w.loop()

	return w, nil
}

func (w *fsWatcher) loop() {
	for {
		select {
		case event, ok := <-w.inner.Events:
			if !ok {
				close(w.events)

				return
			}

			if !isSourceFile(event.Name) {
				continue
			}

			select {
			case w.events <- struct{}{}:
			default:
			}
		case _, ok := <-w.inner.Errors:
			if !ok {
				return
			}
		}
	}
}

func isSourceFile(path string) bool {
	return filepath.Ext(path) == guestSourceExt
}

// Events implements orchestrator.Watcher.
func (w *fsWatcher) Events() <-chan struct{} { return w.events }

// Close stops the underlying fsnotify watcher.
func (w *fsWatcher) Close() error { return w.inner.Close() }

var _ orchestrator.Watcher = (*fsWatcher)(nil)
