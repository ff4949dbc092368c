package watcher

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Watcher watches a vault and emits debounced batches of note events.
type Watcher struct {
	fsWatcher   *fsnotify.Watcher
	pollWatcher *PollingWatcher
	useFsnotify bool
	debouncer   *Debouncer
	filter      Filter
	rootPath    string
	events      chan []FileEvent
	errors      chan error
	stopCh      chan struct{}
	forwardDone chan struct{}
	ready       chan struct{}
	readyOnce   sync.Once
	startOnce   sync.Once
	started     bool
	mu          sync.RWMutex
	stopped     bool
}

// New creates a Watcher for the vault at root. It prefers fsnotify and
// falls back to polling when fsnotify cannot be initialized.
func New(root string, filter Filter, opts Options) (*Watcher, error) {
	opts = opts.WithDefaults()

	absPath, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve absolute path: %w", err)
	}
	info, err := os.Stat(absPath)
	if err != nil {
		return nil, fmt.Errorf("stat vault root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("vault root %s is not a directory", absPath)
	}

	w := &Watcher{
		debouncer:   NewDebouncer(opts.DebounceWindow),
		filter:      filter,
		rootPath:    absPath,
		events:      make(chan []FileEvent, opts.EventBufferSize),
		errors:      make(chan error, 10),
		stopCh:      make(chan struct{}),
		forwardDone: make(chan struct{}),
		ready:       make(chan struct{}),
	}

	if !opts.ForcePolling {
		fsw, err := fsnotify.NewWatcher()
		if err == nil {
			w.fsWatcher = fsw
			w.useFsnotify = true
		} else {
			slog.Warn("fsnotify_unavailable", slog.String("error", err.Error()))
		}
	}
	if !w.useFsnotify {
		w.pollWatcher = NewPollingWatcher(opts.PollInterval, filter, w.debouncer.Add)
		w.pollWatcher.onBaseline = w.markReady
	}
	return w, nil
}

// Start watches until ctx is cancelled or Stop is called.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.stopped {
		w.mu.Unlock()
		return fmt.Errorf("watcher is stopped")
	}
	w.startOnce.Do(func() {
		w.started = true
		go w.forwardDebouncedEvents(ctx)
	})
	w.mu.Unlock()

	if w.useFsnotify {
		return w.startFsnotify(ctx)
	}
	err := w.pollWatcher.Start(ctx, w.rootPath)
	if ctx.Err() != nil {
		_ = w.Stop()
	} else if err != nil {
		w.emitError(err)
	}
	return err
}

func (w *Watcher) startFsnotify(ctx context.Context) error {
	if err := w.addRecursive(w.rootPath); err != nil {
		return fmt.Errorf("add directories to watcher: %w", err)
	}
	w.markReady()
	slog.Debug("watcher_started", slog.String("root", w.rootPath), slog.String("mode", w.Mode()))

	for {
		select {
		case <-ctx.Done():
			_ = w.Stop()
			return ctx.Err()
		case <-w.stopCh:
			return nil
		case event, ok := <-w.fsWatcher.Events:
			if !ok {
				return nil
			}
			w.handleFsnotifyEvent(event)
		case err, ok := <-w.fsWatcher.Errors:
			if !ok {
				return nil
			}
			w.emitError(err)
		}
	}
}

// handleFsnotifyEvent converts and filters one fsnotify event. Renames
// arrive as a Rename on the old path and a Create on the new one, so a
// rename becomes a delete plus a create.
func (w *Watcher) handleFsnotifyEvent(event fsnotify.Event) {
	rel, err := filepath.Rel(w.rootPath, event.Name)
	if err != nil || rel == "." {
		return
	}
	rel = filepath.ToSlash(rel)
	now := time.Now()

	switch {
	case event.Op&(fsnotify.Remove|fsnotify.Rename) != 0:
		// The path is gone, so it may have been a note or a directory of
		// notes. Consumers drop both.
		if w.filter.Excluded(rel) {
			return
		}
		w.debouncer.Add(FileEvent{Path: rel, Operation: OpDelete, Timestamp: now})

	case event.Op&fsnotify.Create != 0:
		info, statErr := os.Stat(event.Name)
		if statErr != nil {
			return
		}
		if info.IsDir() {
			if !w.filter.Excluded(rel) {
				w.addDirectory(event.Name)
			}
			return
		}
		if w.filter.Includes(rel) {
			w.debouncer.Add(FileEvent{Path: rel, Operation: OpCreate, Timestamp: now})
		}

	case event.Op&fsnotify.Write != 0:
		if w.filter.Includes(rel) {
			w.debouncer.Add(FileEvent{Path: rel, Operation: OpModify, Timestamp: now})
		}
	}
}

// addDirectory watches a newly created or moved-in directory and reports
// the notes already inside it, which fsnotify never announced.
func (w *Watcher) addDirectory(dir string) {
	if err := w.addRecursive(dir); err != nil {
		w.emitError(err)
		return
	}
	now := time.Now()
	_ = filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		rel, relErr := filepath.Rel(w.rootPath, path)
		if relErr != nil {
			return nil
		}
		rel = filepath.ToSlash(rel)
		if d.IsDir() {
			if w.filter.Excluded(rel) {
				return filepath.SkipDir
			}
			return nil
		}
		if w.filter.Includes(rel) {
			w.debouncer.Add(FileEvent{Path: rel, Operation: OpCreate, Timestamp: now})
		}
		return nil
	})
}

// addRecursive adds root and every non-excluded directory below it.
func (w *Watcher) addRecursive(root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == root {
				return err
			}
			return nil
		}
		if !d.IsDir() {
			return nil
		}

		rel, _ := filepath.Rel(w.rootPath, path)
		if rel != "." && w.filter.Excluded(filepath.ToSlash(rel)) {
			return filepath.SkipDir
		}
		return w.fsWatcher.Add(path)
	})
}

func (w *Watcher) forwardDebouncedEvents(ctx context.Context) {
	defer close(w.forwardDone)
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopCh:
			return
		case batch, ok := <-w.debouncer.Output():
			if !ok {
				return
			}
			w.emitEvents(batch)
		}
	}
}

// emitEvents blocks until the batch is taken or the watcher stops. Only
// the forwarding goroutine sends, and Stop closes the channel after it
// exits.
func (w *Watcher) emitEvents(batch []FileEvent) {
	select {
	case w.events <- batch:
	case <-w.stopCh:
	}
}

func (w *Watcher) emitError(err error) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	if w.stopped {
		return
	}
	slog.Warn("watcher_error", slog.String("error", err.Error()))
	select {
	case w.errors <- err:
	default:
	}
}

// Stop stops watching and closes the Events and Errors channels. Safe to
// call multiple times.
func (w *Watcher) Stop() error {
	w.mu.Lock()
	if w.stopped {
		w.mu.Unlock()
		return nil
	}
	w.stopped = true
	close(w.stopCh)
	started := w.started
	w.mu.Unlock()

	w.debouncer.Stop()
	if w.fsWatcher != nil {
		_ = w.fsWatcher.Close()
	}
	if w.pollWatcher != nil {
		w.pollWatcher.Stop()
	}
	if started {
		<-w.forwardDone
	}

	w.mu.Lock()
	close(w.events)
	close(w.errors)
	w.mu.Unlock()
	return nil
}

// Ready is closed once the watcher observes the whole vault: every
// directory is registered with fsnotify, or the polling baseline is taken.
// Changes made after that are reported.
func (w *Watcher) Ready() <-chan struct{} {
	return w.ready
}

func (w *Watcher) markReady() {
	w.readyOnce.Do(func() { close(w.ready) })
}

// Events returns the channel of debounced batches.
func (w *Watcher) Events() <-chan []FileEvent {
	return w.events
}

// Errors returns non-fatal watcher errors.
func (w *Watcher) Errors() <-chan error {
	return w.errors
}

// Flush emits pending events immediately.
func (w *Watcher) Flush() {
	w.debouncer.Flush()
}

// Mode returns "fsnotify" or "polling".
func (w *Watcher) Mode() string {
	if w.useFsnotify {
		return "fsnotify"
	}
	return "polling"
}

// RootPath returns the watched vault root.
func (w *Watcher) RootPath() string {
	return w.rootPath
}
