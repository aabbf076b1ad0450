// Package watcher triggers a callback when watched files change on disk.
package watcher

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/sirupsen/logrus"
)

var log = logrus.WithField("component", "watcher")

const defaultDebounce = 500 * time.Millisecond

// Watcher watches files for changes
type Watcher struct {
	files    map[string]bool
	onChange func(path string)
	debounce time.Duration
}

// New creates a watcher for paths calling onChange with the absolute path of
// the file that changed
func New(onChange func(path string), paths ...string) (*Watcher, error) {
	w := &Watcher{
		files:    make(map[string]bool, len(paths)),
		onChange: onChange,
		debounce: defaultDebounce,
	}
	for _, p := range paths {
		abs, err := filepath.Abs(p)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve %s: %w", p, err)
		}
		w.files[abs] = true
	}
	return w, nil
}

// WithDebounce sets the debounce duration
func (w *Watcher) WithDebounce(d time.Duration) *Watcher {
	if d > 0 {
		w.debounce = d
	}
	return w
}

// Watch starts watching the files for changes.
// It blocks until the context is cancelled or an error occurs.
func (w *Watcher) Watch(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer fw.Close()

	// Watch the directories: editors often replace files instead of writing them
	dirs := make(map[string]bool)
	for f := range w.files {
		dir := filepath.Dir(f)
		if dirs[dir] {
			continue
		}
		if err := fw.Add(dir); err != nil {
			return fmt.Errorf("failed to watch %s: %w", dir, err)
		}
		dirs[dir] = true
		log.WithField("dir", dir).Debug("watching directory")
	}
	for f := range w.files {
		log.Infof("watching %s for changes", f)
	}

	pending := make(map[string]bool)
	timer := time.NewTimer(w.debounce)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case event, ok := <-fw.Events:
			if !ok {
				return nil
			}
			abs, err := filepath.Abs(event.Name)
			if err != nil || !w.files[abs] {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			pending[abs] = true
			timer.Reset(w.debounce)

		case <-timer.C:
			for path := range pending {
				log.Infof("file changed: %s", path)
				w.onChange(path)
			}
			clear(pending)

		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			log.WithError(err).Warn("watcher error")

		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
