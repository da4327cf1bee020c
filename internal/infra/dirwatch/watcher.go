package dirwatch

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/yndnr/amrsnap/internal/telemetry/logger"
)

// DefaultDebounce is the quiet period before callbacks run.
const DefaultDebounce = 500 * time.Millisecond

// ErrClosed is returned by Add and Run after Close.
var ErrClosed = errors.New("dirwatch: watcher closed")

// Watcher watches a directory tree and reports settled changes.
type Watcher struct {
	fsw      *fsnotify.Watcher
	debounce time.Duration
	log      logger.Logger

	mu        sync.RWMutex
	callbacks []func(ctx context.Context, path string)
	dirs      map[string]bool
	closed    bool
}

// Option configures a Watcher.
type Option func(*Watcher)

// WithLogger sets the logger for the watcher.
func WithLogger(l logger.Logger) Option {
	return func(w *Watcher) {
		w.log = l
	}
}

// WithDebounce sets the quiet period. Non-positive values keep the default.
func WithDebounce(d time.Duration) Option {
	return func(w *Watcher) {
		if d > 0 {
			w.debounce = d
		}
	}
}

// New creates a watcher with nothing watched yet.
func New(opts ...Option) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("dirwatch: create watcher: %w", err)
	}
	w := &Watcher{
		fsw:      fsw,
		debounce: DefaultDebounce,
		log:      logger.Discard(),
		dirs:     make(map[string]bool),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w, nil
}

// OnChange registers a callback. It receives the last path seen in the
// burst that triggered it.
func (w *Watcher) OnChange(cb func(ctx context.Context, path string)) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.callbacks = append(w.callbacks, cb)
}

// Add watches root and every directory below it.
func (w *Watcher) Add(root string) error {
	info, err := os.Stat(root)
	if err != nil {
		return fmt.Errorf("dirwatch: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("dirwatch: %s is not a directory", root)
	}
	return w.addTree(root)
}

// Dirs returns the number of directories being watched.
func (w *Watcher) Dirs() int {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return len(w.dirs)
}

func (w *Watcher) addTree(root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			// Directories may vanish between the event and the walk.
			if errors.Is(err, fs.ErrNotExist) {
				return nil
			}
			return err
		}
		if !d.IsDir() {
			return nil
		}
		return w.addDir(path)
	})
}

func (w *Watcher) addDir(dir string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return ErrClosed
	}
	if w.dirs[dir] {
		return nil
	}
	if err := w.fsw.Add(dir); err != nil {
		return fmt.Errorf("dirwatch: watch %s: %w", dir, err)
	}
	w.dirs[dir] = true
	w.log.Debug("watching directory", "path", dir)
	return nil
}

// Run processes events until ctx is done or the watcher is closed.
func (w *Watcher) Run(ctx context.Context) error {
	w.mu.RLock()
	closed := w.closed
	w.mu.RUnlock()
	if closed {
		return ErrClosed
	}

	w.log.Info("directory watcher started", "dirs", w.Dirs(), "debounce", w.debounce)

	timer := time.NewTimer(w.debounce)
	timer.Stop()
	defer timer.Stop()

	var pending string
	for {
		select {
		case <-ctx.Done():
			w.log.Debug("directory watcher stopping", "reason", ctx.Err())
			return nil

		case ev, ok := <-w.fsw.Events:
			if !ok {
				return nil
			}
			if !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Write) {
				continue
			}
			if ev.Has(fsnotify.Create) {
				if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
					if err := w.addTree(ev.Name); err != nil {
						w.log.Warn("failed to watch new directory", "path", ev.Name, "error", err)
					}
				}
			}
			pending = ev.Name
			timer.Reset(w.debounce)

		case <-timer.C:
			w.notify(ctx, pending)

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return nil
			}
			w.log.Error("directory watcher error", "error", err)
		}
	}
}

func (w *Watcher) notify(ctx context.Context, path string) {
	w.mu.RLock()
	cbs := make([]func(context.Context, string), len(w.callbacks))
	copy(cbs, w.callbacks)
	w.mu.RUnlock()

	w.log.Debug("tree changed", "path", path)
	for _, cb := range cbs {
		cb(ctx, path)
	}
}

// Close stops watching. Run returns once the event channels close.
func (w *Watcher) Close() error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return nil
	}
	w.closed = true
	w.mu.Unlock()

	if err := w.fsw.Close(); err != nil {
		return fmt.Errorf("dirwatch: close: %w", err)
	}
	w.log.Info("directory watcher stopped")
	return nil
}
