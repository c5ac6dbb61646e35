package policyfs

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// debounceWindow coalesces bursts of file events. Editors commonly write
// via a temp-file rename dance that fires several events per save; a
// trigger within the window extends it instead of reloading again.
const debounceWindow = 100 * time.Millisecond

// Watcher observes the policy directory and re-runs Store.Load on change.
// The snapshot swap is idempotent, so spurious triggers are harmless.
type Watcher struct {
	store   *Store
	watcher *fsnotify.Watcher
	logger  *slog.Logger

	mu       sync.Mutex
	debounce *time.Timer
}

// NewWatcher creates a watcher over the store's policy directory.
func NewWatcher(store *Store, logger *slog.Logger) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create file watcher: %w", err)
	}
	if err := fsw.Add(store.Dir()); err != nil {
		fsw.Close()
		return nil, fmt.Errorf("watch %q: %w", store.Dir(), err)
	}
	return &Watcher{
		store:   store,
		watcher: fsw,
		logger:  logger,
	}, nil
}

// Run consumes file events until ctx is cancelled. Blocks; callers run it
// in a dedicated goroutine.
func (w *Watcher) Run(ctx context.Context) error {
	defer w.watcher.Close()
	defer w.stopDebounce()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			if !w.relevant(event) {
				continue
			}
			w.logger.Info("policy file changed",
				"file", filepath.Base(event.Name),
				"op", event.Op.String(),
			)
			w.trigger()

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			w.logger.Error("policy watcher error", "error", err)
		}
	}
}

// relevant reports whether the event should trigger a reload: a write,
// create, remove, or rename of a file matching the extension filter.
func (w *Watcher) relevant(event fsnotify.Event) bool {
	if !matchesExtension(event.Name) {
		return false
	}
	return event.Has(fsnotify.Write) ||
		event.Has(fsnotify.Create) ||
		event.Has(fsnotify.Remove) ||
		event.Has(fsnotify.Rename)
}

// trigger schedules a reload after the debounce window, extending the
// window if one is already scheduled.
func (w *Watcher) trigger() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.debounce != nil {
		w.debounce.Stop()
	}
	w.debounce = time.AfterFunc(debounceWindow, func() {
		if err := w.store.Load(); err != nil {
			w.logger.Error("policy reload failed", "error", err)
		}
	})
}

func (w *Watcher) stopDebounce() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.debounce != nil {
		w.debounce.Stop()
	}
}
