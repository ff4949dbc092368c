package watcher

import (
	"context"
	"fmt"
	"io/fs"
	"path/filepath"
	"sync"
	"time"
)

// PollingWatcher detects note changes by rescanning the vault on an
// interval. It is the fallback for file systems where fsnotify is
// unavailable, such as some network and synced-folder mounts.
type PollingWatcher struct {
	interval  time.Duration
	filter    Filter
	emit      func(FileEvent)
	fileState map[string]fileSnapshot
	stopCh    chan struct{}
	mu        sync.Mutex
	stopped   bool
	rootPath  string

	// onBaseline, if set, runs after the initial scan.
	onBaseline func()
}

type fileSnapshot struct {
	modTime time.Time
	size    int64
}

// NewPollingWatcher creates a polling watcher that reports changes to emit.
func NewPollingWatcher(interval time.Duration, filter Filter, emit func(FileEvent)) *PollingWatcher {
	return &PollingWatcher{
		interval:  interval,
		filter:    filter,
		emit:      emit,
		fileState: make(map[string]fileSnapshot),
		stopCh:    make(chan struct{}),
	}
}

// Start scans root once for a baseline, then polls until ctx is done or
// Stop is called.
func (p *PollingWatcher) Start(ctx context.Context, root string) error {
	absPath, err := filepath.Abs(root)
	if err != nil {
		return fmt.Errorf("resolve absolute path: %w", err)
	}
	p.rootPath = absPath

	state, err := p.scan()
	if err != nil {
		return fmt.Errorf("perform initial scan: %w", err)
	}
	p.mu.Lock()
	p.fileState = state
	p.mu.Unlock()
	if p.onBaseline != nil {
		p.onBaseline()
	}

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			p.Stop()
			return ctx.Err()
		case <-p.stopCh:
			return nil
		case <-ticker.C:
			if err := p.detectChanges(); err != nil {
				return err
			}
		}
	}
}

// Stop halts polling. Safe to call multiple times.
func (p *PollingWatcher) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.stopped {
		return
	}
	p.stopped = true
	close(p.stopCh)
}

// scan records the state of every included note.
func (p *PollingWatcher) scan() (map[string]fileSnapshot, error) {
	state := make(map[string]fileSnapshot)
	err := filepath.WalkDir(p.rootPath, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == p.rootPath {
				return err
			}
			return nil
		}
		rel, err := filepath.Rel(p.rootPath, path)
		if err != nil || rel == "." {
			return nil
		}
		rel = filepath.ToSlash(rel)

		if d.IsDir() {
			if p.filter.Excluded(rel) {
				return filepath.SkipDir
			}
			return nil
		}
		if !p.filter.Includes(rel) {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return nil
		}
		state[rel] = fileSnapshot{modTime: info.ModTime(), size: info.Size()}
		return nil
	})
	return state, err
}

// detectChanges diffs a fresh scan against the previous one.
func (p *PollingWatcher) detectChanges() error {
	current, err := p.scan()
	if err != nil {
		return fmt.Errorf("walk directory for changes: %w", err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.stopped {
		return nil
	}

	now := time.Now()
	for rel, snap := range current {
		prev, exists := p.fileState[rel]
		switch {
		case !exists:
			p.emit(FileEvent{Path: rel, Operation: OpCreate, Timestamp: now})
		case !prev.modTime.Equal(snap.modTime) || prev.size != snap.size:
			p.emit(FileEvent{Path: rel, Operation: OpModify, Timestamp: now})
		}
	}
	for rel := range p.fileState {
		if _, exists := current[rel]; !exists {
			p.emit(FileEvent{Path: rel, Operation: OpDelete, Timestamp: now})
		}
	}

	p.fileState = current
	return nil
}
