// Package search is the query surface of vaultsearch. A Service owns the
// index and its collaborators, keeps the index current (startup load,
// full rebuilds, watch events) and answers vault-wide and in-file queries.
package search

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	vserrors "github.com/Aman-CERP/vaultsearch/internal/errors"
	"github.com/Aman-CERP/vaultsearch/internal/highlight"
	"github.com/Aman-CERP/vaultsearch/internal/index"
	"github.com/Aman-CERP/vaultsearch/internal/match"
	"github.com/Aman-CERP/vaultsearch/internal/query"
	"github.com/Aman-CERP/vaultsearch/internal/store"
	"github.com/Aman-CERP/vaultsearch/internal/vault"
)

// ErrNilDependency is returned when a required dependency is nil.
var ErrNilDependency = errors.New("nil dependency")

// Default result caps.
const (
	DefaultMaxResults     = 30
	DefaultMaxLineResults = 30
)

// Dependencies are the collaborators a Service is built from. Store is
// optional; without it nothing is persisted.
type Dependencies struct {
	Vault       *vault.Vault
	Index       *index.Index
	Processor   *query.Processor
	Highlighter *highlight.Highlighter
	Store       *store.SnapshotStore
}

// Config tunes a Service.
type Config struct {
	MaxResults     int
	MaxLineResults int
	// Fingerprint identifies the analysis settings postings were built
	// with. A snapshot saved under another fingerprint is rebuilt.
	Fingerprint string
	// Degraded is reported by Status when CJK segmentation is unavailable.
	Degraded bool
}

// Service answers queries against one vault.
type Service struct {
	vault       *vault.Vault
	index       *index.Index
	processor   *query.Processor
	highlighter *highlight.Highlighter
	store       *store.SnapshotStore
	config      Config

	// writeMu serializes incremental updates and snapshot writes.
	writeMu sync.Mutex

	statusMu    sync.Mutex
	source      Source
	lastReindex time.Duration
	skipped     int
}

// NewService creates a Service. It returns an error wrapping
// ErrNilDependency if a required dependency is missing.
func NewService(deps Dependencies, cfg Config) (*Service, error) {
	if deps.Vault == nil {
		return nil, fmt.Errorf("%w: vault is required", ErrNilDependency)
	}
	if deps.Index == nil {
		return nil, fmt.Errorf("%w: index is required", ErrNilDependency)
	}
	if deps.Processor == nil {
		return nil, fmt.Errorf("%w: query processor is required", ErrNilDependency)
	}
	if deps.Highlighter == nil {
		deps.Highlighter = highlight.New(highlight.DefaultOptions())
	}
	if cfg.MaxResults <= 0 {
		cfg.MaxResults = DefaultMaxResults
	}
	if cfg.MaxLineResults <= 0 {
		cfg.MaxLineResults = DefaultMaxLineResults
	}
	return &Service{
		vault:       deps.Vault,
		index:       deps.Index,
		processor:   deps.Processor,
		highlighter: deps.Highlighter,
		store:       deps.Store,
		config:      cfg,
	}, nil
}

// Vault returns the vault the service searches.
func (s *Service) Vault() *vault.Vault {
	return s.vault
}

// Open makes the index ready. A valid snapshot is restored and reconciled
// with the vault; a missing, incompatible or unreadable one is discarded
// and the index is rebuilt from the files.
func (s *Service) Open(ctx context.Context) error {
	if s.store != nil {
		snap, err := s.store.Load(ctx, s.config.Fingerprint)
		switch {
		case err == nil:
			return s.openFromSnapshot(ctx, snap)
		case ctx.Err() != nil:
			return ctx.Err()
		case errors.Is(err, store.ErrNoSnapshot):
			slog.Info("snapshot_missing", slog.String("path", s.store.Path()))
		default:
			slog.LogAttrs(ctx, slog.LevelWarn, "snapshot_discarded", vserrors.LogAttrs(err)...)
		}
	}

	_, err := s.Reindex(ctx)
	return err
}

func (s *Service) openFromSnapshot(ctx context.Context, snap index.Snapshot) error {
	s.index.Restore(snap)
	s.setSource(SourceSnapshot)
	slog.Info("snapshot_loaded", slog.Int("documents", len(snap.Documents)))

	sum, err := s.Reconcile(ctx)
	if err != nil {
		return err
	}
	if sum.Total() > 0 {
		s.saveOrWarn(ctx)
	}
	return nil
}

// Reindex rebuilds the index from every note in the vault and saves a
// snapshot. Unreadable files are skipped and counted. If another rebuild
// starts before this one commits, this one returns ErrReindexSuperseded
// and changes nothing.
func (s *Service) Reindex(ctx context.Context) (ReindexSummary, error) {
	start := time.Now()

	// The rebuild starts before the read so that events applied while the
	// vault is read are replayed over the documents read.
	rb := s.index.BeginRebuild()
	docs, rs, err := s.vault.ReadAll(ctx)
	if err != nil {
		rb.Abort()
		return ReindexSummary{}, err
	}
	if err := rb.Commit(ctx, docs); err != nil {
		if errors.Is(err, vserrors.ErrReindexSuperseded) {
			slog.Info("reindex_superseded", slog.Int("documents", len(docs)))
		}
		return ReindexSummary{}, err
	}

	sum := ReindexSummary{
		Documents: len(docs),
		Skipped:   rs.Skipped,
		Duration:  time.Since(start),
		Failures:  rs.Failures,
	}

	s.statusMu.Lock()
	s.source = SourceRebuild
	s.lastReindex = sum.Duration
	s.skipped = sum.Skipped
	s.statusMu.Unlock()

	slog.Info("reindex_complete",
		slog.Int("documents", sum.Documents),
		slog.Int("skipped", sum.Skipped),
		slog.Duration("duration", sum.Duration))

	s.saveOrWarn(ctx)
	return sum, nil
}

// Save writes the current index to the snapshot store, if there is one.
func (s *Service) Save(ctx context.Context) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return s.saveLocked(ctx)
}

func (s *Service) saveLocked(ctx context.Context) error {
	if s.store == nil {
		return nil
	}
	return s.store.Save(ctx, s.index.Snapshot(), s.config.Fingerprint)
}

// saveOrWarn saves and logs a failure; the in-memory index stays usable.
func (s *Service) saveOrWarn(ctx context.Context) {
	if err := s.Save(ctx); err != nil {
		slog.Warn("snapshot_save_failed", slog.String("error", err.Error()))
	}
}

// SearchFiles ranks vault files against query. An index that is not
// ready yet yields no results.
func (s *Service) SearchFiles(q string, mode index.Mode) []MatchedFile {
	return s.SearchFilesLimit(q, mode, s.config.MaxResults)
}

// SearchFilesLimit is SearchFiles with an explicit result cap. A limit of
// zero or less means no cap.
func (s *Service) SearchFilesLimit(q string, mode index.Mode, limit int) []MatchedFile {
	terms := s.processor.Parse(q)
	if len(terms) == 0 {
		return nil
	}
	ms := s.index.Query(terms, mode, limit)
	out := make([]MatchedFile, len(ms))
	for i, m := range ms {
		out[i] = MatchedFile{Path: m.Path, MatchedTerms: m.MatchedTerms, Score: m.Score}
	}
	return out
}

// SearchLines fuzzily matches query against lines, ignoring whitespace
// in the query.
func (s *Service) SearchLines(lines []match.Line, q string, limit int) []match.MatchedLine {
	return match.MatchLines(lines, query.NormalizeInFile(q), limit)
}

// FzfMatch matches query as given, capped at the configured line limit.
func (s *Service) FzfMatch(q string, lines []match.Line) []match.MatchedLine {
	return match.MatchLines(lines, q, s.config.MaxLineResults)
}

// SearchInVault runs an AND search and wraps the hits as lexical file
// items in rank order.
func (s *Service) SearchInVault(q string) SearchResult {
	files := s.SearchFiles(q, index.ModeAnd)
	res := SearchResult{Items: make([]Item, 0, len(files))}
	for _, f := range files {
		res.Items = append(res.Items, Item{
			Kind: ItemFile,
			File: &FileItem{
				Engine:       EngineLexical,
				Path:         f.Path,
				MatchedTerms: f.MatchedTerms,
				Score:        f.Score,
			},
		})
	}
	return res
}

// GetFileSubItems returns compact excerpts of the lines in path matching
// query. Non-plain-text files give an empty result flagged Unsupported.
func (s *Service) GetFileSubItems(ctx context.Context, path, q string) (SubItemsResult, error) {
	res := SubItemsResult{Path: path}
	lines, err := s.vault.ReadFile(ctx, path)
	if err != nil {
		if vault.IsUnsupported(err) {
			slog.Warn("unsupported_content", slog.String("path", path))
			res.Unsupported = true
			return res, nil
		}
		return res, err
	}

	matched := s.SearchLines(lines, q, s.config.MaxLineResults)
	for _, hc := range s.highlighter.ParseAll(lines, matched, highlight.ModeSubItem, false) {
		res.Items = append(res.Items, FileSubItem{Text: hc.Text, Row: hc.Row, Col: hc.Col, Positions: hc.Positions})
	}
	return res, nil
}

// SearchInFile fuzzily searches one file. Whitespace in the query is
// dropped. Each match carries its highlighted line and the surrounding
// paragraph as context.
func (s *Service) SearchInFile(ctx context.Context, path, q string) (SearchResult, error) {
	res := SearchResult{CurrPath: path}
	q = query.NormalizeInFile(q)
	if q == "" {
		return res, nil
	}

	lines, err := s.vault.ReadFile(ctx, path)
	if err != nil {
		if vault.IsUnsupported(err) {
			res.Unsupported = true
			return res, nil
		}
		return res, err
	}

	for _, m := range s.FzfMatch(q, lines) {
		res.Items = append(res.Items, Item{
			Kind: ItemLine,
			Line: &LineItem{
				Line:    s.highlighter.Parse(lines, m, highlight.ModeLine, false),
				Context: s.highlighter.Parse(lines, m, highlight.ModeParagraph, true).Text,
			},
		})
	}
	return res, nil
}

// Status reports index size and freshness.
func (s *Service) Status(ctx context.Context) Status {
	stats := s.index.Stats()

	s.statusMu.Lock()
	st := Status{
		Ready:       stats.Ready,
		Documents:   stats.Documents,
		Terms:       stats.Terms,
		Degraded:    s.config.Degraded,
		Source:      s.source,
		LastReindex: s.lastReindex,
		Skipped:     s.skipped,
	}
	s.statusMu.Unlock()

	if s.store != nil {
		st.SnapshotPath = s.store.Path()
		if info, err := s.store.Info(ctx); err == nil {
			st.SnapshotSavedAt = info.SavedAt
		}
	}
	return st
}

func (s *Service) setSource(src Source) {
	s.statusMu.Lock()
	s.source = src
	s.statusMu.Unlock()
}

// Close releases the snapshot store.
func (s *Service) Close() error {
	if s.store == nil {
		return nil
	}
	return s.store.Close()
}
