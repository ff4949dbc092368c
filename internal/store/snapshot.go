// Package store persists index snapshots in a single SQLite file.
//
// The database holds a meta table (schema version, tokenizer fingerprint),
// one row per document and one row per posting. A snapshot whose version
// or fingerprint differs from the running binary is reported as
// malformed so the caller rebuilds instead of trusting stale postings.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/gofrs/flock"
	_ "modernc.org/sqlite" // Pure Go SQLite driver (no CGO)

	vserrors "github.com/Aman-CERP/vaultsearch/internal/errors"
	"github.com/Aman-CERP/vaultsearch/internal/index"
)

// SchemaVersion is bumped whenever the table layout or posting encoding
// changes.
const SchemaVersion = 1

const (
	metaSchemaVersion = "schema_version"
	metaFingerprint   = "fingerprint"
	metaNextID        = "next_id"
	metaSavedAt       = "saved_at"
)

// ErrNoSnapshot is returned by Load when nothing has been saved yet.
var ErrNoSnapshot = errors.New("no persisted snapshot")

// Info describes the saved snapshot without loading postings.
type Info struct {
	Version     int
	Fingerprint string
	Documents   int
	Postings    int
	SavedAt     time.Time
}

// SnapshotStore reads and writes index snapshots.
type SnapshotStore struct {
	mu     sync.Mutex
	db     *sql.DB
	path   string
	lock   *flock.Flock
	closed bool
}

// validateIntegrity checks an existing database before opening it.
// Returns nil if the file is missing or healthy.
func validateIntegrity(path string) error {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil
	}

	db, err := sql.Open("sqlite", path+"?mode=ro")
	if err != nil {
		return fmt.Errorf("cannot open for validation: %w", err)
	}
	defer db.Close()

	var result string
	if err := db.QueryRow("PRAGMA integrity_check").Scan(&result); err != nil {
		return fmt.Errorf("integrity check failed: %w", err)
	}
	if result != "ok" {
		return fmt.Errorf("database corrupted: %s", result)
	}
	return nil
}

// Open opens (creating if needed) the snapshot database at path and takes
// an exclusive lock on path+".lock". An empty path opens an in-memory
// store for tests.
func Open(path string) (*SnapshotStore, error) {
	s := &SnapshotStore{path: path}

	dsn := ":memory:"
	if path != "" {
		dir := filepath.Dir(path)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create directory %s: %w", dir, err)
		}

		s.lock = flock.New(path + ".lock")
		locked, err := s.lock.TryLock()
		if err != nil {
			return nil, fmt.Errorf("failed to acquire snapshot lock: %w", err)
		}
		if !locked {
			return nil, vserrors.New(vserrors.ErrCodeSnapshotLocked, "snapshot is in use by another process", nil).
				WithDetail("path", path)
		}

		if validErr := validateIntegrity(path); validErr != nil {
			slog.Warn("snapshot_corrupted",
				slog.String("path", path),
				slog.String("error", validErr.Error()))
			if removeErr := os.Remove(path); removeErr != nil && !os.IsNotExist(removeErr) {
				_ = s.lock.Unlock()
				return nil, fmt.Errorf("snapshot corrupted at %s and cannot remove: %w (original error: %v)", path, removeErr, validErr)
			}
			_ = os.Remove(path + "-wal")
			_ = os.Remove(path + "-shm")
			slog.Info("snapshot_cleared", slog.String("path", path))
		}
		dsn = path
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		s.unlock()
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// Single writer; an in-memory database also lives only as long as its
	// one connection.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)
	s.db = db

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA temp_store = MEMORY",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			_ = s.Close()
			return nil, fmt.Errorf("failed to set pragma: %w", err)
		}
	}

	if err := s.initSchema(); err != nil {
		_ = s.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return s, nil
}

func (s *SnapshotStore) initSchema() error {
	_, err := s.db.Exec(`
	CREATE TABLE IF NOT EXISTS meta (
		key   TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS documents (
		id              INTEGER PRIMARY KEY,
		path            TEXT NOT NULL UNIQUE,
		lexical_mtime   INTEGER NOT NULL,
		embedding_mtime INTEGER NOT NULL DEFAULT 0
	);

	CREATE TABLE IF NOT EXISTS postings (
		doc_id INTEGER NOT NULL,
		term   TEXT NOT NULL,
		field  INTEGER NOT NULL,
		tf     INTEGER NOT NULL,
		PRIMARY KEY (doc_id, term, field)
	) WITHOUT ROWID;
	`)
	return err
}

// Path returns the database path ("" for in-memory stores).
func (s *SnapshotStore) Path() string {
	return s.path
}

// Save replaces the stored snapshot atomically.
func (s *SnapshotStore) Save(ctx context.Context, snap index.Snapshot, fingerprint string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return fmt.Errorf("snapshot store is closed")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, table := range []string{"postings", "documents", "meta"} {
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return fmt.Errorf("failed to clear %s: %w", table, err)
		}
	}

	meta := map[string]string{
		metaSchemaVersion: strconv.Itoa(SchemaVersion),
		metaFingerprint:   fingerprint,
		metaNextID:        strconv.FormatInt(snap.NextID, 10),
		metaSavedAt:       strconv.FormatInt(time.Now().Unix(), 10),
	}
	for k, v := range meta {
		if _, err := tx.ExecContext(ctx, "INSERT INTO meta (key, value) VALUES (?, ?)", k, v); err != nil {
			return fmt.Errorf("failed to write meta %s: %w", k, err)
		}
	}

	docStmt, err := tx.PrepareContext(ctx,
		"INSERT INTO documents (id, path, lexical_mtime, embedding_mtime) VALUES (?, ?, ?, ?)")
	if err != nil {
		return fmt.Errorf("failed to prepare document insert: %w", err)
	}
	defer docStmt.Close()

	postStmt, err := tx.PrepareContext(ctx,
		"INSERT INTO postings (doc_id, term, field, tf) VALUES (?, ?, ?, ?)")
	if err != nil {
		return fmt.Errorf("failed to prepare posting insert: %w", err)
	}
	defer postStmt.Close()

	for _, doc := range snap.Documents {
		if err := ctx.Err(); err != nil {
			return err
		}
		ref := doc.Ref
		if _, err := docStmt.ExecContext(ctx, ref.ID, ref.Path, ref.LexicalMtime, ref.EmbeddingMtime); err != nil {
			return fmt.Errorf("failed to insert document %s: %w", ref.Path, err)
		}
		for _, p := range doc.Postings {
			if _, err := postStmt.ExecContext(ctx, ref.ID, p.Term, int(p.Field), p.TF); err != nil {
				return fmt.Errorf("failed to insert posting for %s: %w", ref.Path, err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit snapshot: %w", err)
	}
	return nil
}

// Load reads the stored snapshot. It returns ErrNoSnapshot when the store
// is empty and a MALFORMED_SNAPSHOT error when the version or fingerprint
// does not match or the rows cannot be decoded.
func (s *SnapshotStore) Load(ctx context.Context, fingerprint string) (index.Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return index.Snapshot{}, fmt.Errorf("snapshot store is closed")
	}

	meta, err := s.readMeta(ctx)
	if err != nil {
		return index.Snapshot{}, vserrors.SnapshotError("failed to read snapshot meta", err)
	}
	if len(meta) == 0 {
		return index.Snapshot{}, ErrNoSnapshot
	}
	if v := meta[metaSchemaVersion]; v != strconv.Itoa(SchemaVersion) {
		return index.Snapshot{}, vserrors.SnapshotError(
			fmt.Sprintf("snapshot schema version %q, want %d", v, SchemaVersion), nil)
	}
	if got := meta[metaFingerprint]; got != fingerprint {
		return index.Snapshot{}, vserrors.SnapshotError("snapshot built with different tokenizer settings", nil).
			WithDetail("fingerprint", got)
	}
	nextID, err := strconv.ParseInt(meta[metaNextID], 10, 64)
	if err != nil {
		return index.Snapshot{}, vserrors.SnapshotError("invalid next_id", err)
	}

	snap := index.Snapshot{NextID: nextID}
	byID := make(map[int64]int)

	rows, err := s.db.QueryContext(ctx,
		"SELECT id, path, lexical_mtime, embedding_mtime FROM documents ORDER BY path")
	if err != nil {
		return index.Snapshot{}, vserrors.SnapshotError("failed to read documents", err)
	}
	for rows.Next() {
		var ref index.DocumentRef
		if err := rows.Scan(&ref.ID, &ref.Path, &ref.LexicalMtime, &ref.EmbeddingMtime); err != nil {
			_ = rows.Close()
			return index.Snapshot{}, vserrors.SnapshotError("failed to decode document", err)
		}
		byID[ref.ID] = len(snap.Documents)
		snap.Documents = append(snap.Documents, index.SnapshotDocument{Ref: ref})
	}
	if err := closeRows(rows); err != nil {
		return index.Snapshot{}, vserrors.SnapshotError("failed to read documents", err)
	}

	rows, err = s.db.QueryContext(ctx,
		"SELECT doc_id, term, field, tf FROM postings ORDER BY doc_id, term, field")
	if err != nil {
		return index.Snapshot{}, vserrors.SnapshotError("failed to read postings", err)
	}
	for rows.Next() {
		var (
			id    int64
			p     index.Posting
			field int
		)
		if err := rows.Scan(&id, &p.Term, &field, &p.TF); err != nil {
			_ = rows.Close()
			return index.Snapshot{}, vserrors.SnapshotError("failed to decode posting", err)
		}
		i, ok := byID[id]
		if !ok || field < 0 || field >= index.NumFields {
			_ = rows.Close()
			return index.Snapshot{}, vserrors.SnapshotError(
				fmt.Sprintf("posting references unknown document %d or field %d", id, field), nil)
		}
		p.Field = index.Field(field)
		snap.Documents[i].Postings = append(snap.Documents[i].Postings, p)
	}
	if err := closeRows(rows); err != nil {
		return index.Snapshot{}, vserrors.SnapshotError("failed to read postings", err)
	}

	return snap, nil
}

// Info summarizes the stored snapshot. It returns ErrNoSnapshot when the
// store is empty.
func (s *SnapshotStore) Info(ctx context.Context) (Info, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return Info{}, fmt.Errorf("snapshot store is closed")
	}

	meta, err := s.readMeta(ctx)
	if err != nil {
		return Info{}, err
	}
	if len(meta) == 0 {
		return Info{}, ErrNoSnapshot
	}

	var info Info
	info.Version, _ = strconv.Atoi(meta[metaSchemaVersion])
	info.Fingerprint = meta[metaFingerprint]
	if ts, err := strconv.ParseInt(meta[metaSavedAt], 10, 64); err == nil {
		info.SavedAt = time.Unix(ts, 0)
	}
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM documents").Scan(&info.Documents); err != nil {
		return Info{}, err
	}
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM postings").Scan(&info.Postings); err != nil {
		return Info{}, err
	}
	return info, nil
}

// Clear removes the stored snapshot.
func (s *SnapshotStore) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return fmt.Errorf("snapshot store is closed")
	}
	for _, table := range []string{"postings", "documents", "meta"} {
		if _, err := s.db.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return fmt.Errorf("failed to clear %s: %w", table, err)
		}
	}
	return nil
}

// Close closes the database and releases the lock. Safe to call twice.
func (s *SnapshotStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true

	var err error
	if s.db != nil {
		err = s.db.Close()
	}
	s.unlock()
	return err
}

func (s *SnapshotStore) unlock() {
	if s.lock != nil {
		_ = s.lock.Unlock()
	}
}

func (s *SnapshotStore) readMeta(ctx context.Context) (map[string]string, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT key, value FROM meta")
	if err != nil {
		return nil, err
	}
	meta := make(map[string]string)
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			_ = rows.Close()
			return nil, err
		}
		meta[k] = v
	}
	return meta, closeRows(rows)
}

func closeRows(rows *sql.Rows) error {
	if err := rows.Err(); err != nil {
		_ = rows.Close()
		return err
	}
	return rows.Close()
}
