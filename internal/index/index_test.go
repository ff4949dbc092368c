package index

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	vserrors "github.com/Aman-CERP/vaultsearch/internal/errors"
	"github.com/Aman-CERP/vaultsearch/internal/tokenizer"
)

func newTestIndex() *Index {
	return New(tokenizer.New(tokenizer.Config{SplitHyphen: true}, tokenizer.Assets{}), DefaultOptions())
}

func scenarioDocs() []IndexedDocument {
	return []IndexedDocument{
		{Path: "a.md", Basename: "Projects", Content: "alpha beta"},
		{Path: "b.md", Basename: "Notes", Content: "beta gamma"},
	}
}

func paths(ms []Match) []string {
	out := make([]string, len(ms))
	for i, m := range ms {
		out[i] = m.Path
	}
	return out
}

func TestQuery_Scenario_AndOr(t *testing.T) {
	// Given: two indexed documents
	ix := newTestIndex()
	require.NoError(t, ix.ReindexAll(context.Background(), scenarioDocs()))

	// When/Then: OR on a shared term returns both
	assert.ElementsMatch(t, []string{"a.md", "b.md"}, paths(ix.Query([]string{"beta"}, ModeOr, 30)))

	// When/Then: AND on both terms returns only the document holding both
	assert.Equal(t, []string{"a.md"}, paths(ix.Query([]string{"alpha", "beta"}, ModeAnd, 30)))
}

func TestQuery_AndIsSubsetOfOr(t *testing.T) {
	ix := newTestIndex()
	docs := []IndexedDocument{
		{Path: "x/one.md", Basename: "one", Folder: "x", Content: "search engine tokenizer"},
		{Path: "x/two.md", Basename: "two", Folder: "x", Content: "engine index postings"},
		{Path: "y/three.md", Basename: "three", Folder: "y", Content: "tokenizer segmenter"},
		{Path: "y/four.md", Basename: "four", Folder: "y", Content: "unrelated text"},
	}
	require.NoError(t, ix.ReindexAll(context.Background(), docs))

	queries := [][]string{
		{"engine"},
		{"engine", "tokenizer"},
		{"x", "index"},
		{"tok", "seg"},
		{"missing", "engine"},
	}
	for _, q := range queries {
		t.Run(fmt.Sprint(q), func(t *testing.T) {
			and := paths(ix.Query(q, ModeAnd, 0))
			or := paths(ix.Query(q, ModeOr, 0))
			assert.Subset(t, or, and)
		})
	}
}

func TestQuery_OrRanksFullMatchesFirst(t *testing.T) {
	ix := newTestIndex()
	require.NoError(t, ix.ReindexAll(context.Background(), scenarioDocs()))

	got := ix.Query([]string{"alpha", "beta"}, ModeOr, 30)

	require.Len(t, got, 2)
	assert.Equal(t, "a.md", got[0].Path)
	assert.Equal(t, 2, got[0].QueryTermsMatched)
	assert.Equal(t, []string{"alpha", "beta"}, got[0].MatchedTerms)
}

func TestQuery_RemovedDocumentNeverReturned(t *testing.T) {
	ix := newTestIndex()
	require.NoError(t, ix.ReindexAll(context.Background(), scenarioDocs()))

	ix.Remove("a.md")
	ix.Remove("does-not-exist.md")

	for _, q := range [][]string{{"alpha"}, {"beta"}, {"projects"}, {"alp"}} {
		for _, mode := range []Mode{ModeAnd, ModeOr} {
			assert.NotContains(t, paths(ix.Query(q, mode, 0)), "a.md")
		}
	}
	assert.Equal(t, 1, ix.Stats().Documents)
	_, ok := ix.Ref("a.md")
	assert.False(t, ok)
}

func TestReindexAll_Idempotent(t *testing.T) {
	ix := newTestIndex()
	docs := scenarioDocs()
	require.NoError(t, ix.ReindexAll(context.Background(), docs))
	first := ix.Query([]string{"beta", "gam"}, ModeOr, 0)

	require.NoError(t, ix.ReindexAll(context.Background(), docs))
	second := ix.Query([]string{"beta", "gam"}, ModeOr, 0)

	assert.Equal(t, first, second)
}

func TestQuery_NotReady_ReturnsEmpty(t *testing.T) {
	ix := newTestIndex()
	ix.Upsert(IndexedDocument{Path: "a.md", Content: "alpha"})

	assert.Empty(t, ix.Query([]string{"alpha"}, ModeOr, 10))
	assert.False(t, ix.Stats().Ready)
}

func TestQuery_EmptyTerms(t *testing.T) {
	ix := newTestIndex()
	require.NoError(t, ix.ReindexAll(context.Background(), scenarioDocs()))

	assert.Empty(t, ix.Query(nil, ModeOr, 10))
	assert.Empty(t, ix.Query([]string{""}, ModeAnd, 10))
}

func TestQuery_FieldWeights(t *testing.T) {
	ix := newTestIndex()
	require.NoError(t, ix.ReindexAll(context.Background(), []IndexedDocument{
		{Path: "content.md", Basename: "misc", Content: "kubernetes"},
		{Path: "title.md", Basename: "kubernetes", Content: "misc"},
		{Path: "heading.md", Basename: "other", Headings: "kubernetes", Content: "misc"},
	}))

	got := paths(ix.Query([]string{"kubernetes"}, ModeOr, 0))

	assert.Equal(t, []string{"title.md", "heading.md", "content.md"}, got)
}

func TestQuery_ExactOutranksPrefixOutranksFuzzy(t *testing.T) {
	// Given: one exact, one prefix-only and one fuzzy-only document
	ix := newTestIndex()
	require.NoError(t, ix.ReindexAll(context.Background(), []IndexedDocument{
		{Path: "f.md", Content: "bets"},
		{Path: "p.md", Content: "betamax"},
		{Path: "e.md", Content: "beta"},
	}))

	// When: querying the exact term
	got := ix.Query([]string{"beta"}, ModeOr, 0)

	// Then: exact > prefix > fuzzy
	assert.Equal(t, []string{"e.md", "p.md", "f.md"}, paths(got))
	assert.Equal(t, []string{"betamax"}, got[1].MatchedTerms)
}

func TestQuery_TierBeatsFieldWeightAndFrequency(t *testing.T) {
	// Given: the only exact match sits in plain content once, while the
	// prefix and fuzzy matches sit in the title or repeat
	ix := newTestIndex()
	require.NoError(t, ix.ReindexAll(context.Background(), []IndexedDocument{
		{Path: "exact.md", Content: "beta"},
		{Path: "prefix-title.md", Basename: "betamax"},
		{Path: "prefix-tf.md", Content: "betas betas betas"},
		{Path: "fuzzy-title.md", Basename: "bets"},
	}))

	// When: querying the exact term
	got := ix.Query([]string{"beta"}, ModeOr, 0)

	// Then: exact first, prefix matches next, fuzzy last
	require.Len(t, got, 4)
	assert.Equal(t, "exact.md", got[0].Path)
	assert.ElementsMatch(t, []string{"prefix-title.md", "prefix-tf.md"}, paths(got[1:3]))
	assert.Equal(t, "fuzzy-title.md", got[3].Path)
	assert.Greater(t, got[0].Score, got[1].Score)
	assert.Greater(t, got[2].Score, got[3].Score)
}

func TestCapTiers(t *testing.T) {
	best := map[int64]scored{
		1: {score: 1, tier: tierExact},
		2: {score: 4, tier: tierExact},
		3: {score: 9, tier: tierPrefix},
		4: {score: 0.1, tier: tierPrefix},
		5: {score: 7, tier: tierFuzzy},
	}

	capTiers(best)

	assert.Equal(t, 1.0, best[1].score)
	assert.Equal(t, 4.0, best[2].score)
	assert.Equal(t, 0.5, best[3].score)
	assert.Equal(t, 0.1, best[4].score)
	assert.InDelta(t, 0.05, best[5].score, 1e-12)
}

func TestQuery_ShortTermsSkipExpansion(t *testing.T) {
	ix := newTestIndex()
	require.NoError(t, ix.ReindexAll(context.Background(), []IndexedDocument{
		{Path: "a.md", Content: "apple"},
		{Path: "b.md", Content: "ab"},
	}))

	// One rune: below the prefix minimum, exact only.
	assert.Empty(t, ix.Query([]string{"a"}, ModeOr, 0))
	// Two runes: prefix allowed, fuzzy not.
	assert.ElementsMatch(t, []string{"a.md"}, paths(ix.Query([]string{"ap"}, ModeOr, 0)))
	assert.ElementsMatch(t, []string{"b.md"}, paths(ix.Query([]string{"ab"}, ModeOr, 0)))
}

func TestQuery_LimitKeepsRankOrder(t *testing.T) {
	ix := newTestIndex()
	var docs []IndexedDocument
	for i := 0; i < 10; i++ {
		docs = append(docs, IndexedDocument{Path: fmt.Sprintf("n%02d.md", i), Content: "shared"})
	}
	require.NoError(t, ix.ReindexAll(context.Background(), docs))

	got := paths(ix.Query([]string{"shared"}, ModeOr, 3))

	assert.Equal(t, []string{"n00.md", "n01.md", "n02.md"}, got)
}

func TestUpsert_ReplacesPostings(t *testing.T) {
	ix := newTestIndex()
	require.NoError(t, ix.ReindexAll(context.Background(), scenarioDocs()))
	before, _ := ix.Ref("a.md")

	ix.Upsert(IndexedDocument{Path: "a.md", Basename: "Projects", Content: "delta", ModTime: 42})

	assert.NotContains(t, paths(ix.Query([]string{"alpha"}, ModeOr, 0)), "a.md")
	assert.Equal(t, []string{"a.md"}, paths(ix.Query([]string{"delta"}, ModeOr, 0)))
	after, ok := ix.Ref("a.md")
	require.True(t, ok)
	assert.Equal(t, before.ID, after.ID)
	assert.Equal(t, int64(42), after.LexicalMtime)
}

func TestUpsert_IDsNeverReused(t *testing.T) {
	ix := newTestIndex()
	require.NoError(t, ix.ReindexAll(context.Background(), nil))

	ix.Upsert(IndexedDocument{Path: "x.md", Content: "x"})
	first, _ := ix.Ref("x.md")
	ix.Remove("x.md")
	ix.Upsert(IndexedDocument{Path: "x.md", Content: "x"})
	second, _ := ix.Ref("x.md")

	assert.Greater(t, second.ID, first.ID)
}

// blockingSegmenter parks the caller on the text "BLOCK" until released.
type blockingSegmenter struct {
	inner   Segmenter
	entered chan struct{}
	release chan struct{}
	once    sync.Once
}

func (b *blockingSegmenter) Segment(text string, fine bool) []string {
	if text == "BLOCK" {
		b.once.Do(func() { close(b.entered) })
		<-b.release
	}
	return b.inner.Segment(text, fine)
}

func newBlockingIndex() (*Index, *blockingSegmenter) {
	seg := &blockingSegmenter{
		inner:   tokenizer.New(tokenizer.Config{}, tokenizer.Assets{}),
		entered: make(chan struct{}),
		release: make(chan struct{}),
	}
	return New(seg, DefaultOptions()), seg
}

func TestReindexAll_SupersededRunIsDiscarded(t *testing.T) {
	// Given: a rebuild stuck mid-way
	ix, seg := newBlockingIndex()
	errc := make(chan error, 1)
	go func() {
		errc <- ix.ReindexAll(context.Background(), []IndexedDocument{{Path: "old.md", Content: "BLOCK"}})
	}()
	<-seg.entered

	// When: a newer rebuild completes first
	require.NoError(t, ix.ReindexAll(context.Background(), scenarioDocs()))
	close(seg.release)

	// Then: the older run reports superseded and its data never appears
	err := <-errc
	assert.ErrorIs(t, err, vserrors.ErrReindexSuperseded)
	assert.Empty(t, ix.Query([]string{"block"}, ModeOr, 0))
	assert.Len(t, ix.Query([]string{"beta"}, ModeOr, 0), 2)
}

func TestReindexAll_ReplaysConcurrentMutations(t *testing.T) {
	// Given: a rebuild in flight
	ix, seg := newBlockingIndex()
	errc := make(chan error, 1)
	go func() {
		errc <- ix.ReindexAll(context.Background(), []IndexedDocument{
			{Path: "slow.md", Content: "BLOCK"},
			{Path: "gone.md", Content: "obsolete"},
		})
	}()
	<-seg.entered

	// When: documents change before it commits
	ix.Upsert(IndexedDocument{Path: "fresh.md", Content: "newcomer"})
	ix.Remove("gone.md")
	close(seg.release)
	require.NoError(t, <-errc)

	// Then: the committed index reflects the later changes
	assert.Equal(t, []string{"fresh.md"}, paths(ix.Query([]string{"newcomer"}, ModeOr, 0)))
	assert.Empty(t, ix.Query([]string{"obsolete"}, ModeOr, 0))
	assert.Equal(t, 2, ix.Stats().Documents)
}

func TestBeginRebuild_ChangesDuringReadWin(t *testing.T) {
	// Given: a rebuild opened before its documents are read
	ix := newTestIndex()
	require.NoError(t, ix.ReindexAll(context.Background(), scenarioDocs()))
	rb := ix.BeginRebuild()
	stale := []IndexedDocument{
		{Path: "a.md", Content: "alpha beta"},
		{Path: "b.md", Content: "beta gamma"},
	}

	// When: a.md changes after the read but before the commit
	ix.Upsert(IndexedDocument{Path: "a.md", Content: "epsilon"})
	require.NoError(t, rb.Commit(context.Background(), stale))

	// Then: the newer content survives the commit
	assert.Equal(t, []string{"a.md"}, paths(ix.Query([]string{"epsilon"}, ModeOr, 0)))
	assert.Empty(t, ix.Query([]string{"alpha"}, ModeOr, 0))
}

func TestBeginRebuild_AbortLeavesIndex(t *testing.T) {
	ix := newTestIndex()
	require.NoError(t, ix.ReindexAll(context.Background(), scenarioDocs()))

	rb := ix.BeginRebuild()
	rb.Abort()
	rb.Abort()

	assert.Len(t, ix.Query([]string{"beta"}, ModeOr, 0), 2)
	assert.Equal(t, int32(0), ix.building.Load())
}

func TestReindexAll_CancelledContext(t *testing.T) {
	ix := newTestIndex()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := ix.ReindexAll(ctx, scenarioDocs())

	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, ix.Stats().Ready)
}

func TestSnapshot_RestoreMatchesFreshIndex(t *testing.T) {
	// Given: an index and its exported snapshot
	ix := newTestIndex()
	require.NoError(t, ix.ReindexAll(context.Background(), scenarioDocs()))
	snap := ix.Snapshot()

	// When: restoring into a new index
	restored := newTestIndex()
	restored.Restore(snap)

	// Then: queries, refs and id allocation carry over
	for _, q := range [][]string{{"beta"}, {"alpha", "beta"}, {"gam"}, {"notes"}} {
		assert.Equal(t, ix.Query(q, ModeOr, 0), restored.Query(q, ModeOr, 0))
	}
	assert.Equal(t, ix.Refs(), restored.Refs())
	restored.Upsert(IndexedDocument{Path: "c.md", Content: "c"})
	ref, _ := restored.Ref("c.md")
	assert.Greater(t, ref.ID, snap.NextID-1)
}

func TestSnapshot_SortedAndComplete(t *testing.T) {
	ix := newTestIndex()
	require.NoError(t, ix.ReindexAll(context.Background(), scenarioDocs()))

	snap := ix.Snapshot()

	require.Len(t, snap.Documents, 2)
	assert.Equal(t, "a.md", snap.Documents[0].Ref.Path)
	assert.Contains(t, snap.Documents[0].Postings, Posting{Term: "alpha", Field: FieldContent, TF: 1})
	assert.Contains(t, snap.Documents[0].Postings, Posting{Term: "projects", Field: FieldBasename, TF: 1})
}

func TestParseMode(t *testing.T) {
	m, err := ParseMode(" AND ")
	require.NoError(t, err)
	assert.Equal(t, ModeAnd, m)

	m, err = ParseMode("or")
	require.NoError(t, err)
	assert.Equal(t, ModeOr, m)

	_, err = ParseMode("xor")
	assert.Error(t, err)
}

func TestParseField(t *testing.T) {
	for f := Field(0); f < numFields; f++ {
		got, err := ParseField(f.String())
		require.NoError(t, err)
		assert.Equal(t, f, got)
	}
	_, err := ParseField("body")
	assert.Error(t, err)
}

func TestDocumentWeight_Of(t *testing.T) {
	w := DefaultWeights()
	assert.Equal(t, 3.0, w.Of(FieldBasename))
	assert.Equal(t, 1.0, w.Of(FieldContent))
	assert.Equal(t, 1.0, DocumentWeight(nil).Of(FieldFolder))
}
