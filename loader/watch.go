package loader

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/ZacxDev/pagesgen/output"
	"github.com/fsnotify/fsnotify"
	"github.com/pkg/errors"
)

const DefaultDebounce = 100 * time.Millisecond

// ChangeHandler receives the de-duplicated set of paths touched during one
// debounce window.
type ChangeHandler func(paths []string)

// Watcher invalidates a DevLoader when source files change and notifies a
// handler (the live reload hub) once per burst of events.
type Watcher struct {
	fs       *fsnotify.Watcher
	loader   *DevLoader
	onChange ChangeHandler
	debounce time.Duration

	mu      sync.Mutex
	pending map[string]bool
	timer   *time.Timer
}

// Watch starts watching dirs and every directory below them. Missing dirs
// are skipped. The watcher stops when ctx is done.
func Watch(ctx context.Context, dirs []string, dev *DevLoader, onChange ChangeHandler) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, errors.WithStack(err)
	}

	w := &Watcher{
		fs:       fw,
		loader:   dev,
		onChange: onChange,
		debounce: DefaultDebounce,
		pending:  make(map[string]bool),
	}

	for _, dir := range dirs {
		if err := w.addRecursive(dir); err != nil {
			fw.Close()
			return nil, err
		}
	}

	go w.loop(ctx)
	return w, nil
}

func (w *Watcher) Close() error {
	w.mu.Lock()
	if w.timer != nil {
		w.timer.Stop()
	}
	w.mu.Unlock()
	return w.fs.Close()
}

func (w *Watcher) addRecursive(root string) error {
	if _, err := os.Stat(root); os.IsNotExist(err) {
		return nil
	}
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return errors.WithStack(err)
		}
		if !d.IsDir() {
			return nil
		}
		if path != root && strings.HasPrefix(d.Name(), ".") {
			return filepath.SkipDir
		}
		return errors.Wrapf(w.fs.Add(path), "watching %s", path)
	})
}

func (w *Watcher) loop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			w.Close()
			return
		case event, ok := <-w.fs.Events:
			if !ok {
				return
			}
			w.handle(event)
		case err, ok := <-w.fs.Errors:
			if !ok {
				return
			}
			output.Warn("file watcher error", "err", err)
		}
	}
}

func (w *Watcher) handle(event fsnotify.Event) {
	if event.Has(fsnotify.Chmod) && !event.Has(fsnotify.Write) {
		return
	}
	if strings.HasPrefix(filepath.Base(event.Name), ".") {
		return
	}

	if event.Has(fsnotify.Create) {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			if err := w.addRecursive(event.Name); err != nil {
				output.Warn("could not watch new directory", "dir", event.Name, "err", err)
			}
		}
	}

	if w.loader != nil {
		w.loader.Invalidate(event.Name)
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	w.pending[event.Name] = true
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.debounce, w.flush)
}

func (w *Watcher) flush() {
	w.mu.Lock()
	paths := make([]string, 0, len(w.pending))
	for path := range w.pending {
		paths = append(paths, path)
	}
	w.pending = make(map[string]bool)
	w.mu.Unlock()

	if len(paths) == 0 {
		return
	}
	sort.Strings(paths)
	output.Debug("source files changed", "paths", paths)
	if w.onChange != nil {
		w.onChange(paths)
	}
}
