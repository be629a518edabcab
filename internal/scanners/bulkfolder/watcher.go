package bulkfolder

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/polyforge/polyforge/internal/logger"
)

// CoalesceWindow is how long Watcher waits after the last filesystem event
// before emitting the set of parent folders that changed (spec §4.12:
// "events are coalesced (parent folders of changed files) and re-scanned").
const CoalesceWindow = 2 * time.Second

// Watcher streams created/modified/deleted/moved events for root, emitting
// the distinct parent folders needing a re-scan once events go quiet for
// CoalesceWindow.
type Watcher struct {
	root    string
	fsw     *fsnotify.Watcher
	Changed chan string
}

// NewWatcher opens an fsnotify watch on root and every existing
// subdirectory.
func NewWatcher(root string) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := addRecursive(fsw, root); err != nil {
		fsw.Close()
		return nil, err
	}
	return &Watcher{root: root, fsw: fsw, Changed: make(chan string, 1)}, nil
}

func addRecursive(fsw *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() {
			_ = fsw.Add(path)
		}
		return nil
	})
}

// Run blocks, coalescing events into folder-level change notifications on
// Changed until ctx is canceled.
func (w *Watcher) Run(ctx context.Context) {
	pending := map[string]bool{}
	timer := time.NewTimer(time.Hour)
	if !timer.Stop() {
		<-timer.C
	}

	for {
		select {
		case <-ctx.Done():
			w.fsw.Close()
			return
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			parent := filepath.Dir(ev.Name)
			pending[parent] = true
			if ev.Op&fsnotify.Create != 0 {
				_ = w.fsw.Add(ev.Name)
			}
			timer.Reset(CoalesceWindow)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			logger.Warn(ctx, "bulkfolder_watch_error", "error", err.Error())
		case <-timer.C:
			for folder := range pending {
				select {
				case w.Changed <- folder:
				default:
				}
			}
			pending = map[string]bool{}
		}
	}
}

// Close stops the underlying fsnotify watch.
func (w *Watcher) Close() error {
	return w.fsw.Close()
}
