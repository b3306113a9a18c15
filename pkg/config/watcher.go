package config

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"mercator-hq/keeper/pkg/lifecycle"
)

// ChangedByFileWatcher is recorded as the author of reloaded changes.
const ChangedByFileWatcher = "file_watcher"

// DefaultDebounceInterval is the quiet period before a reload.
const DefaultDebounceInterval = 250 * time.Millisecond

// ReloadFunc is called after a successful reload with the new configuration
// and the keys that changed.
type ReloadFunc func(cfg *Config, changes []Change)

// Watcher reloads the configuration file when it changes and records every
// changed key in the configuration history.
type Watcher struct {
	path     string
	history  lifecycle.ConfigHistoryStore
	watcher  *fsnotify.Watcher
	debounce *Debouncer
	onReload ReloadFunc
	logger   *slog.Logger

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

// NewWatcher creates a watcher for the configuration file at path. history
// may be nil, in which case changes are only logged.
func NewWatcher(path string, history lifecycle.ConfigHistoryStore, onReload ReloadFunc) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}

	return &Watcher{
		path:     filepath.Clean(path),
		history:  history,
		watcher:  fsw,
		debounce: NewDebouncer(DefaultDebounceInterval),
		onReload: onReload,
		logger:   slog.Default().With("component", "config.watcher"),
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}, nil
}

// SetDebounceInterval overrides the quiet period. It must be called before
// Watch.
func (w *Watcher) SetDebounceInterval(d time.Duration) {
	w.debounce = NewDebouncer(d)
}

// Watch blocks until ctx is cancelled or Stop is called. The parent
// directory is watched so that editors replacing the file are noticed.
func (w *Watcher) Watch(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return fmt.Errorf("watcher already running")
	}
	w.running = true
	w.mu.Unlock()

	defer func() {
		w.mu.Lock()
		w.running = false
		w.mu.Unlock()
		close(w.doneCh)
	}()

	if err := w.watcher.Add(filepath.Dir(w.path)); err != nil {
		return fmt.Errorf("failed to watch %q: %w", w.path, err)
	}

	w.logger.Info("config watcher started", "path", w.path)

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("config watcher stopped (context cancelled)")
			return nil

		case <-w.stopCh:
			w.logger.Info("config watcher stopped")
			return nil

		case event, ok := <-w.watcher.Events:
			if !ok {
				return fmt.Errorf("watcher events channel closed")
			}
			if !w.shouldProcessEvent(event) {
				continue
			}

			w.logger.Debug("config file event", "path", event.Name, "op", event.Op.String())
			w.debounce.Trigger(func() {
				if err := w.Reload(ctx); err != nil {
					w.logger.Error("config reload failed", "error", err)
				}
			})

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return fmt.Errorf("watcher errors channel closed")
			}
			w.logger.Error("config watcher error", "error", err)
		}
	}
}

func (w *Watcher) shouldProcessEvent(event fsnotify.Event) bool {
	if event.Op&fsnotify.Chmod == fsnotify.Chmod {
		return false
	}
	return filepath.Clean(event.Name) == w.path
}

// Reload loads the file, replaces the global configuration, records the
// changed keys and invokes the reload callback. An invalid file leaves the
// current configuration in place.
func (w *Watcher) Reload(ctx context.Context) error {
	old, updated, err := ReloadConfig(w.path)
	if err != nil {
		return err
	}

	changes, err := Diff(old, updated)
	if err != nil {
		return fmt.Errorf("failed to diff configuration: %w", err)
	}
	if old == nil {
		// First load: nothing to compare against.
		changes = nil
	}

	now := time.Now()
	for _, change := range changes {
		w.logger.Info("configuration changed",
			"key", change.Key,
			"old_value", change.OldValue,
			"new_value", change.NewValue,
		)
		if w.history == nil {
			continue
		}
		w.history.RecordConfigChange(ctx, lifecycle.ConfigChange{
			Key:       change.Key,
			OldValue:  change.OldValue,
			NewValue:  change.NewValue,
			ChangedBy: ChangedByFileWatcher,
			Reason:    "configuration file reloaded",
			Timestamp: now,
		})
	}

	if w.onReload != nil {
		w.onReload(updated, changes)
	}
	return nil
}

// Stop stops the watcher and waits for Watch to return.
func (w *Watcher) Stop() error {
	w.mu.Lock()
	running := w.running
	w.mu.Unlock()

	if running {
		close(w.stopCh)
		<-w.doneCh
	}

	w.debounce.Stop()

	if err := w.watcher.Close(); err != nil {
		return fmt.Errorf("failed to close watcher: %w", err)
	}
	return nil
}

// Debouncer collects rapid events and runs the latest callback only after
// a quiet period.
type Debouncer struct {
	interval time.Duration
	timer    *time.Timer
	mu       sync.Mutex
	callback func()
	stopCh   chan struct{}
	stopOnce sync.Once
}

// NewDebouncer creates a new debouncer.
func NewDebouncer(interval time.Duration) *Debouncer {
	return &Debouncer{
		interval: interval,
		stopCh:   make(chan struct{}),
	}
}

// Trigger schedules callback after the debounce interval, replacing any
// pending callback.
func (d *Debouncer) Trigger(callback func()) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.callback = callback

	if d.timer != nil {
		d.timer.Stop()
	}

	d.timer = time.AfterFunc(d.interval, func() {
		select {
		case <-d.stopCh:
			return
		default:
			d.mu.Lock()
			cb := d.callback
			d.mu.Unlock()

			if cb != nil {
				cb()
			}
		}
	})
}

// Stop cancels any pending callback.
func (d *Debouncer) Stop() {
	d.stopOnce.Do(func() { close(d.stopCh) })

	d.mu.Lock()
	defer d.mu.Unlock()

	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
	d.callback = nil
}
