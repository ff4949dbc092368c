package search

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	vserrors "github.com/Aman-CERP/vaultsearch/internal/errors"
	"github.com/Aman-CERP/vaultsearch/internal/vault"
	"github.com/Aman-CERP/vaultsearch/internal/watcher"
)

// EventSource delivers debounced change batches. *watcher.Watcher
// implements it.
type EventSource interface {
	Events() <-chan []watcher.FileEvent
	Errors() <-chan error
}

// Watch applies batches from src until ctx is done or src closes.
func (s *Service) Watch(ctx context.Context, src EventSource) error {
	events, errs := src.Events(), src.Errors()
	for {
		select {
		case <-ctx.Done():
			return nil
		case batch, ok := <-events:
			if !ok {
				return nil
			}
			if err := s.HandleEvents(ctx, batch); err != nil {
				return err
			}
		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			slog.Warn("watcher_error", slog.String("error", err.Error()))
		}
	}
}

// HandleEvents applies a batch of file events. A failing event is logged
// and skipped; the rest of the batch still applies. The snapshot is saved
// once after the batch.
func (s *Service) HandleEvents(ctx context.Context, events []watcher.FileEvent) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	var applied int
	for _, event := range events {
		if ctx.Err() != nil {
			slog.Debug("event batch interrupted",
				slog.Int("processed", applied),
				slog.Int("remaining", len(events)-applied))
			break
		}
		if err := s.handleEvent(ctx, event); err != nil {
			attrs := append([]slog.Attr{
				slog.String("path", event.Path),
				slog.String("operation", event.Operation.String()),
			}, vserrors.LogAttrs(err)...)
			slog.LogAttrs(ctx, slog.LevelWarn, "watch_event_failed", attrs...)
			continue
		}
		applied++
	}

	if applied > 0 && ctx.Err() == nil {
		if err := s.saveLocked(ctx); err != nil {
			slog.Warn("snapshot_save_failed", slog.String("error", err.Error()))
		}
	}
	return nil
}

func (s *Service) handleEvent(ctx context.Context, event watcher.FileEvent) error {
	slog.Debug("processing file event",
		slog.String("path", event.Path),
		slog.String("operation", event.Operation.String()))

	switch event.Operation {
	case watcher.OpCreate, watcher.OpModify:
		return s.indexFile(ctx, event.Path)
	case watcher.OpDelete:
		s.removePath(event.Path)
		return nil
	default:
		return fmt.Errorf("unknown operation %s", event.Operation)
	}
}

// indexFile reads and upserts one note. A note that vanished before it
// could be read is removed instead; one that is no longer plain text is
// removed and reported.
func (s *Service) indexFile(ctx context.Context, rel string) error {
	doc, err := s.vault.ReadDocument(ctx, rel)
	if err != nil {
		switch {
		case errors.Is(err, vserrors.ErrFileNotFound):
			s.removePath(rel)
			return nil
		case vault.IsUnsupported(err):
			s.index.Remove(rel)
		}
		return err
	}
	s.index.Upsert(doc)
	return nil
}

// removePath removes rel and, when rel was a directory, every note under it.
func (s *Service) removePath(rel string) {
	s.index.Remove(rel)
	prefix := rel + "/"
	for _, ref := range s.index.Refs() {
		if strings.HasPrefix(ref.Path, prefix) {
			s.index.Remove(ref.Path)
		}
	}
}

// CatchUp reconciles the index with the vault and saves the snapshot when
// anything changed. Call it once a watcher is armed: edits made between
// Open and the first watched event are otherwise never seen.
func (s *Service) CatchUp(ctx context.Context) (ReconcileSummary, error) {
	sum, err := s.Reconcile(ctx)
	if err != nil {
		return sum, err
	}
	if sum.Total() > 0 {
		s.saveOrWarn(ctx)
	}
	return sum, nil
}

type changeType int

const (
	changeAdded changeType = iota
	changeModified
	changeDeleted
)

type fileChange struct {
	path string
	kind changeType
	file vault.FileStat
}

// Reconcile brings a restored index up to date with the vault: notes
// whose mtime differs from the indexed one are re-read, notes no longer
// present are removed and new notes are added.
func (s *Service) Reconcile(ctx context.Context) (ReconcileSummary, error) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	files, err := s.vault.List(ctx)
	if err != nil {
		return ReconcileSummary{}, fmt.Errorf("failed to scan vault: %w", err)
	}

	changes := s.detectChanges(files)
	if len(changes) == 0 {
		slog.Debug("no file changes detected since last index")
		return ReconcileSummary{}, nil
	}

	sum, err := s.applyChanges(ctx, changes)
	if err != nil {
		return sum, err
	}
	slog.Info("reconcile_complete",
		slog.Int("added", sum.Added),
		slog.Int("modified", sum.Modified),
		slog.Int("deleted", sum.Deleted),
		slog.Int("failed", sum.Failed))
	return sum, nil
}

// detectChanges compares indexed refs with the listing. Deletions sort
// first, then modifications, then additions, each by path.
func (s *Service) detectChanges(files []vault.FileStat) []fileChange {
	current := make(map[string]vault.FileStat, len(files))
	for _, f := range files {
		current[f.Path] = f
	}

	var changes []fileChange
	indexed := make(map[string]bool)
	for _, ref := range s.index.Refs() {
		indexed[ref.Path] = true
		f, ok := current[ref.Path]
		switch {
		case !ok:
			changes = append(changes, fileChange{path: ref.Path, kind: changeDeleted})
		case f.ModTime != ref.LexicalMtime:
			changes = append(changes, fileChange{path: ref.Path, kind: changeModified, file: f})
		}
	}
	for _, f := range files {
		if !indexed[f.Path] {
			changes = append(changes, fileChange{path: f.Path, kind: changeAdded, file: f})
		}
	}

	sort.Slice(changes, func(i, j int) bool {
		if changes[i].kind != changes[j].kind {
			return changes[i].kind > changes[j].kind
		}
		return changes[i].path < changes[j].path
	})
	return changes
}

// applyChanges removes deleted notes and reads the rest in parallel.
// Cancellation stops it without error.
func (s *Service) applyChanges(ctx context.Context, changes []fileChange) (ReconcileSummary, error) {
	var (
		sum   ReconcileSummary
		reads []vault.FileStat
		kinds = make(map[string]changeType)
	)
	for _, c := range changes {
		if c.kind == changeDeleted {
			s.index.Remove(c.path)
			sum.Deleted++
			continue
		}
		reads = append(reads, c.file)
		kinds[c.path] = c.kind
	}
	if len(reads) == 0 {
		return sum, nil
	}

	docs, rs, err := s.vault.ReadDocuments(ctx, reads)
	if err != nil {
		if ctx.Err() != nil {
			slog.Debug("reconcile interrupted by shutdown", slog.Int("remaining", len(reads)))
			return sum, nil
		}
		return sum, err
	}
	for _, doc := range docs {
		s.index.Upsert(doc)
		if kinds[doc.Path] == changeModified {
			sum.Modified++
		} else {
			sum.Added++
		}
	}
	// A note that became unreadable keeps no stale postings.
	for path := range rs.Failures {
		if kinds[path] == changeModified {
			s.index.Remove(path)
		}
	}
	sum.Failed = rs.Skipped
	return sum, nil
}
