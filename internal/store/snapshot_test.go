package store

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	vserrors "github.com/Aman-CERP/vaultsearch/internal/errors"
	"github.com/Aman-CERP/vaultsearch/internal/index"
	"github.com/Aman-CERP/vaultsearch/internal/tokenizer"
)

const testFingerprint = "v1|en|hyphen"

func newIndex(t *testing.T) *index.Index {
	t.Helper()
	ix := index.New(tokenizer.New(tokenizer.DefaultConfig(), tokenizer.Assets{}), index.DefaultOptions())
	docs := []index.IndexedDocument{
		{Path: "projects/a.md", Basename: "a", Folder: "projects", Content: "alpha beta", ModTime: 100},
		{Path: "b.md", Basename: "b", Headings: "Gamma", Content: "beta gamma beta", ModTime: 200},
	}
	require.NoError(t, ix.ReindexAll(context.Background(), docs))
	return ix
}

func openMemory(t *testing.T) *SnapshotStore {
	t.Helper()
	s, err := Open("")
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestSnapshotStore_SaveLoad_RoundTrip(t *testing.T) {
	// Given: a populated index
	ctx := context.Background()
	ix := newIndex(t)
	s := openMemory(t)

	// When: saving and loading its snapshot
	require.NoError(t, s.Save(ctx, ix.Snapshot(), testFingerprint))
	got, err := s.Load(ctx, testFingerprint)
	require.NoError(t, err)

	// Then: the loaded snapshot equals the exported one
	assert.Equal(t, ix.Snapshot(), got)

	// And: a restored index answers like the original
	restored := index.New(tokenizer.New(tokenizer.DefaultConfig(), tokenizer.Assets{}), index.DefaultOptions())
	restored.Restore(got)
	assert.Equal(t, ix.Query([]string{"beta"}, index.ModeOr, 0), restored.Query([]string{"beta"}, index.ModeOr, 0))
}

func TestSnapshotStore_Load_Empty(t *testing.T) {
	s := openMemory(t)

	_, err := s.Load(context.Background(), testFingerprint)

	assert.ErrorIs(t, err, ErrNoSnapshot)
}

func TestSnapshotStore_Load_VersionMismatch(t *testing.T) {
	// Given: a snapshot whose version tag is unknown
	ctx := context.Background()
	s := openMemory(t)
	require.NoError(t, s.Save(ctx, newIndex(t).Snapshot(), testFingerprint))
	_, err := s.db.Exec("UPDATE meta SET value = '99' WHERE key = ?", metaSchemaVersion)
	require.NoError(t, err)

	// When: loading it
	_, err = s.Load(ctx, testFingerprint)

	// Then: it is reported as malformed, not as a crash
	require.Error(t, err)
	assert.True(t, errors.Is(err, vserrors.ErrMalformedSnapshot))
	assert.Equal(t, vserrors.ErrCodeMalformedSnapshot, vserrors.GetCode(err))
}

func TestSnapshotStore_Load_FingerprintMismatch(t *testing.T) {
	ctx := context.Background()
	s := openMemory(t)
	require.NoError(t, s.Save(ctx, newIndex(t).Snapshot(), testFingerprint))

	_, err := s.Load(ctx, "v1|en|zh|hyphen")

	assert.ErrorIs(t, err, vserrors.ErrMalformedSnapshot)
}

func TestSnapshotStore_Load_DanglingPosting(t *testing.T) {
	ctx := context.Background()
	s := openMemory(t)
	require.NoError(t, s.Save(ctx, newIndex(t).Snapshot(), testFingerprint))
	_, err := s.db.Exec("INSERT INTO postings (doc_id, term, field, tf) VALUES (9999, 'ghost', 4, 1)")
	require.NoError(t, err)

	_, err = s.Load(ctx, testFingerprint)

	assert.ErrorIs(t, err, vserrors.ErrMalformedSnapshot)
}

func TestSnapshotStore_Save_ReplacesPrevious(t *testing.T) {
	ctx := context.Background()
	s := openMemory(t)
	ix := newIndex(t)
	require.NoError(t, s.Save(ctx, ix.Snapshot(), testFingerprint))

	ix.Remove("b.md")
	require.NoError(t, s.Save(ctx, ix.Snapshot(), testFingerprint))

	got, err := s.Load(ctx, testFingerprint)
	require.NoError(t, err)
	require.Len(t, got.Documents, 1)
	assert.Equal(t, "projects/a.md", got.Documents[0].Ref.Path)
}

func TestSnapshotStore_InfoAndClear(t *testing.T) {
	ctx := context.Background()
	s := openMemory(t)
	snap := newIndex(t).Snapshot()
	require.NoError(t, s.Save(ctx, snap, testFingerprint))

	info, err := s.Info(ctx)
	require.NoError(t, err)
	assert.Equal(t, SchemaVersion, info.Version)
	assert.Equal(t, testFingerprint, info.Fingerprint)
	assert.Equal(t, 2, info.Documents)
	assert.Positive(t, info.Postings)
	assert.False(t, info.SavedAt.IsZero())

	require.NoError(t, s.Clear(ctx))
	_, err = s.Info(ctx)
	assert.ErrorIs(t, err, ErrNoSnapshot)
}

func TestSnapshotStore_FileBacked_PersistsAcrossOpen(t *testing.T) {
	// Given: a snapshot saved to disk
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "data", "index.db")
	s, err := Open(path)
	require.NoError(t, err)
	snap := newIndex(t).Snapshot()
	require.NoError(t, s.Save(ctx, snap, testFingerprint))
	require.NoError(t, s.Close())

	// When: reopening the file
	s, err = Open(path)
	require.NoError(t, err)
	defer func() { _ = s.Close() }()

	// Then: the snapshot is still there
	got, err := s.Load(ctx, testFingerprint)
	require.NoError(t, err)
	assert.Equal(t, snap, got)
	assert.Equal(t, path, s.Path())
}

func TestSnapshotStore_Open_LockedBySecondOpener(t *testing.T) {
	path := filepath.Join(t.TempDir(), "index.db")
	first, err := Open(path)
	require.NoError(t, err)
	defer func() { _ = first.Close() }()

	_, err = Open(path)

	require.Error(t, err)
	assert.Equal(t, vserrors.ErrCodeSnapshotLocked, vserrors.GetCode(err))
	assert.True(t, vserrors.IsRetryable(err))
}

func TestSnapshotStore_Open_ClearsCorruptFile(t *testing.T) {
	// Given: garbage where the database should be
	path := filepath.Join(t.TempDir(), "index.db")
	require.NoError(t, os.WriteFile(path, []byte("this is not a sqlite database at all, just text"), 0644))

	// When: opening it
	s, err := Open(path)
	require.NoError(t, err)
	defer func() { _ = s.Close() }()

	// Then: the store starts empty
	_, err = s.Load(context.Background(), testFingerprint)
	assert.ErrorIs(t, err, ErrNoSnapshot)
}

func TestSnapshotStore_ClosedStore(t *testing.T) {
	s, err := Open("")
	require.NoError(t, err)
	require.NoError(t, s.Close())
	require.NoError(t, s.Close())

	assert.Error(t, s.Save(context.Background(), index.Snapshot{}, testFingerprint))
	_, err = s.Load(context.Background(), testFingerprint)
	assert.Error(t, err)
}
