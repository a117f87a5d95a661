// Package watch reports changes to a single file.
package watch

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce is how long a file must stay quiet before a change is reported.
const DefaultDebounce = 250 * time.Millisecond

// Watcher reports settled changes to one file. The parent directory is watched so
// that editors which save by renaming a temp file over the original are seen too.
type Watcher struct {
	watcher  *fsnotify.Watcher
	path     string
	debounce time.Duration
}

// New creates a watcher for path. debounce <= 0 uses DefaultDebounce.
func New(path string, debounce time.Duration) (*Watcher, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve %s: %w", path, err)
	}
	if debounce <= 0 {
		debounce = DefaultDebounce
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}
	return &Watcher{watcher: w, path: abs, debounce: debounce}, nil
}

// Path returns the absolute path being watched.
func (w *Watcher) Path() string {
	return w.path
}

// Watch starts monitoring and sends the file's path once per burst of writes. The
// channel is closed when ctx is done or the watcher is closed.
func (w *Watcher) Watch(ctx context.Context) (<-chan string, error) {
	if err := w.watcher.Add(filepath.Dir(w.path)); err != nil {
		return nil, fmt.Errorf("watch %s: %w", filepath.Dir(w.path), err)
	}

	changes := make(chan string, 1)

	go func() {
		defer close(changes)

		timer := time.NewTimer(w.debounce)
		timer.Stop()
		defer timer.Stop()

		for {
			select {
			case <-ctx.Done():
				return

			case event, ok := <-w.watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(event.Name) != w.path {
					continue
				}
				if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) {
					continue
				}
				slog.Debug("input changed", "path", w.path, "op", event.Op.String())
				timer.Reset(w.debounce)

			case <-timer.C:
				select {
				case changes <- w.path:
				default:
					// A change is already pending.
				}

			case err, ok := <-w.watcher.Errors:
				if !ok {
					return
				}
				slog.Warn("file watcher error", "path", w.path, "error", err)
			}
		}
	}()

	return changes, nil
}

// Close stops the watcher.
func (w *Watcher) Close() error {
	return w.watcher.Close()
}
