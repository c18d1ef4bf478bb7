// Package watch reruns a callback whenever a single file changes on disk.
package watch

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/chazu/csgbox/pkg/logging"
)

// DefaultDebounce is how long a file must stay quiet before the callback
// runs.
const DefaultDebounce = 100 * time.Millisecond

// File watches one file.
type File struct {
	path     string
	debounce time.Duration
	log      *slog.Logger
}

// Option configures a File.
type Option func(*File)

// WithDebounce sets the quiet period. Non-positive values are ignored.
func WithDebounce(d time.Duration) Option {
	return func(f *File) {
		if d > 0 {
			f.debounce = d
		}
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(f *File) { f.log = logging.OrNop(l) }
}

// NewFile returns a watcher for path.
func NewFile(path string, opts ...Option) *File {
	f := &File{path: filepath.Clean(path), debounce: DefaultDebounce, log: logging.Nop()}
	for _, o := range opts {
		o(f)
	}
	return f
}

// Run calls fn after every burst of changes to the file until ctx is done.
// The parent directory is watched rather than the file, so editors that
// save by rename keep triggering. fn runs on Run's goroutine.
func (f *File) Run(ctx context.Context, fn func()) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("watch: %w", err)
	}
	defer w.Close()

	if err := w.Add(filepath.Dir(f.path)); err != nil {
		return fmt.Errorf("watch: %s: %w", f.path, err)
	}
	f.log.Debug("watching", "path", f.path)

	var timer *time.Timer
	var timerC <-chan time.Time
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != f.path {
				continue
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Rename) {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(f.debounce)
				timerC = timer.C
			} else {
				timer.Reset(f.debounce)
			}

		case <-timerC:
			timer, timerC = nil, nil
			fn()

		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			f.log.Warn("watch error", "path", f.path, "err", err)
		}
	}
}
