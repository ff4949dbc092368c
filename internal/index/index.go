package index

import (
	"context"
	"log/slog"
	"math"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"unicode/utf8"

	"github.com/blevesearch/vellum"

	vserrors "github.com/Aman-CERP/vaultsearch/internal/errors"
)

// Index is the document index. Mutations and queries are serialized by a
// read-write lock, so a query never observes a half-applied upsert.
type Index struct {
	seg  Segmenter
	opts Options

	mu    sync.RWMutex
	st    *state
	ready bool
	dict  termDictionary

	// Rebuild bookkeeping. A rebuild commits only if it is still the
	// latest generation; ops applied while it ran are replayed onto it.
	generation atomic.Uint64
	building   atomic.Int32
	opSeq      uint64
	journal    []op

	nextID atomic.Int64
}

// New creates an empty index. Queries return nothing until the first
// ReindexAll or Restore completes.
func New(seg Segmenter, opts Options) *Index {
	if opts.Weights == nil {
		opts.Weights = DefaultWeights()
	}
	return &Index{seg: seg, opts: opts, st: newState()}
}

// analyze tokenizes every field of d in coarse mode.
func (ix *Index) analyze(d IndexedDocument) map[string]fieldFreqs {
	terms := make(map[string]fieldFreqs)
	for f := Field(0); f < numFields; f++ {
		text := d.field(f)
		if text == "" {
			continue
		}
		for _, tok := range ix.seg.Segment(text, false) {
			ff := terms[tok]
			ff[f]++
			terms[tok] = ff
		}
	}
	return terms
}

func (ix *Index) entry(id int64, d IndexedDocument) *docEntry {
	return &docEntry{
		ref:   DocumentRef{ID: id, Path: d.Path, LexicalMtime: d.ModTime},
		terms: ix.analyze(d),
	}
}

// ReindexAll replaces the whole index with docs. Tokenization runs without
// holding the lock. If another ReindexAll or a Restore starts before this
// one commits, this run is abandoned with ErrReindexSuperseded and nothing
// it built becomes visible.
func (ix *Index) ReindexAll(ctx context.Context, docs []IndexedDocument) error {
	return ix.BeginRebuild().Commit(ctx, docs)
}

// Rebuild is a full rebuild started by BeginRebuild.
type Rebuild struct {
	ix       *Index
	gen      uint64
	startSeq uint64
	ids      map[string]int64
	finished bool
}

// BeginRebuild opens a rebuild generation. Upserts and removals from this
// point on are journaled and replayed onto the rebuilt index, so documents
// read after BeginRebuild never overwrite a newer concurrent change. The
// caller must end it with Commit or Abort.
func (ix *Index) BeginRebuild() *Rebuild {
	gen := ix.generation.Add(1)
	ix.building.Add(1)

	ix.mu.RLock()
	defer ix.mu.RUnlock()

	ids := make(map[string]int64, len(ix.st.byPath))
	for path, e := range ix.st.byPath {
		ids[path] = e.ref.ID
	}
	return &Rebuild{ix: ix, gen: gen, startSeq: ix.opSeq, ids: ids}
}

// Commit builds the index from docs and installs it, unless a newer
// rebuild or a Restore has started since BeginRebuild.
func (rb *Rebuild) Commit(ctx context.Context, docs []IndexedDocument) error {
	defer rb.Abort()
	ix := rb.ix

	st := newState()
	for i, d := range docs {
		if i%128 == 0 {
			if err := ctx.Err(); err != nil {
				return err
			}
			if ix.generation.Load() != rb.gen {
				return vserrors.ErrReindexSuperseded
			}
		}
		id, ok := rb.ids[d.Path]
		if !ok {
			id = ix.nextID.Add(1)
			rb.ids[d.Path] = id
		}
		st.add(ix.entry(id, d))
	}

	ix.mu.Lock()
	defer ix.mu.Unlock()

	if ix.generation.Load() != rb.gen {
		slog.Debug("reindex_superseded", slog.Uint64("generation", rb.gen))
		return vserrors.ErrReindexSuperseded
	}
	ix.commit(st, rb.startSeq)
	return nil
}

// Abort ends the rebuild without installing anything. It is a no-op after
// Commit.
func (rb *Rebuild) Abort() {
	if rb.finished {
		return
	}
	rb.finished = true
	rb.ix.building.Add(-1)
}

// commit installs st, replaying ops newer than startSeq. Caller holds mu.
func (ix *Index) commit(st *state, startSeq uint64) {
	for _, o := range ix.journal {
		if o.seq > startSeq {
			st.apply(o)
		}
	}
	ix.journal = nil
	ix.st = st
	ix.ready = true
	ix.dict.invalidate()
}

// Upsert indexes d, replacing any previous version of the same path.
func (ix *Index) Upsert(d IndexedDocument) {
	terms := ix.analyze(d)

	ix.mu.Lock()
	defer ix.mu.Unlock()

	var id int64
	if e, ok := ix.st.byPath[d.Path]; ok {
		id = e.ref.ID
	} else {
		id = ix.nextID.Add(1)
	}
	e := &docEntry{
		ref:   DocumentRef{ID: id, Path: d.Path, LexicalMtime: d.ModTime},
		terms: terms,
	}
	ix.st.add(e)
	ix.record(op{entry: e})
	ix.dict.invalidate()
}

// Remove drops path from the index. Unknown paths are ignored.
func (ix *Index) Remove(path string) {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	ix.record(op{remove: path})
	if ix.st.remove(path) {
		ix.dict.invalidate()
	}
}

// record journals o while a rebuild is running. Caller holds mu.
func (ix *Index) record(o op) {
	ix.opSeq++
	if ix.building.Load() == 0 {
		return
	}
	o.seq = ix.opSeq
	ix.journal = append(ix.journal, o)
}

// Query ranks documents against terms. A limit of zero or less means no
// cap. Results are ordered by score, then by number of query terms
// matched, then by path.
func (ix *Index) Query(terms []string, mode Mode, limit int) []Match {
	terms = dedupe(terms)
	if len(terms) == 0 {
		return nil
	}

	ix.mu.RLock()
	defer ix.mu.RUnlock()

	if !ix.ready {
		return nil
	}

	fst, err := ix.dict.get(ix.st.postings)
	if err != nil {
		slog.Warn("term_dictionary_build_failed", slog.String("error", err.Error()))
	}

	n := float64(len(ix.st.byPath))
	hits := make(map[int64]*hit)

	for qi, q := range terms {
		exps := ix.expand(fst, q)
		if len(exps) == 0 {
			continue
		}

		// Best expansion per document: the strongest tier wins, then the
		// higher score. idf is the rarity of the query term across all its
		// expansions.
		best := make(map[int64]scored)
		for _, x := range exps {
			for id, ff := range ix.st.postings[x.term] {
				s := x.factor * ix.fieldScore(ff)
				cur, ok := best[id]
				if !ok || x.tier < cur.tier || (x.tier == cur.tier && s > cur.score) {
					best[id] = scored{score: s, term: x.term, tier: x.tier}
				}
			}
		}
		capTiers(best)
		idf := inverseDocFreq(n, float64(len(best)))

		for id, b := range best {
			h, ok := hits[id]
			if !ok {
				h = &hit{id: id, matched: make([]bool, len(terms))}
				hits[id] = h
			}
			h.score += b.score * idf
			h.matched[qi] = true
			h.terms = append(h.terms, b.term)
		}
	}

	results := make([]Match, 0, len(hits))
	for id, h := range hits {
		count := 0
		for _, m := range h.matched {
			if m {
				count++
			}
		}
		if mode == ModeAnd && count < len(terms) {
			continue
		}
		results = append(results, Match{
			Path:              ix.st.byID[id].ref.Path,
			Score:             h.score,
			MatchedTerms:      dedupe(h.terms),
			QueryTermsMatched: count,
		})
	}

	slices.SortFunc(results, compareMatches)
	if limit > 0 && len(results) > limit {
		results = results[:limit]
	}
	return results
}

type hit struct {
	id      int64
	score   float64
	matched []bool
	terms   []string
}

type scored struct {
	score float64
	term  string
	tier  matchTier
}

// matchTier ranks how a query term reached an indexed term.
type matchTier int

const (
	tierExact matchTier = iota
	tierPrefix
	tierFuzzy
)

// tierGap is the most a document in a weaker tier may score, relative to
// the lowest-scoring document of every stronger tier for the same term.
const tierGap = 0.5

type expansion struct {
	term   string
	factor float64
	tier   matchTier
}

// capTiers clamps the per-term scores in best so that every exact match
// outscores every prefix match, and every prefix match outscores every
// fuzzy match, whatever the field weights and term frequencies.
func capTiers(best map[int64]scored) {
	floor := math.Inf(1)
	for tier := tierExact; tier <= tierFuzzy; tier++ {
		limit := floor * tierGap
		tierMin := math.Inf(1)
		for id, b := range best {
			if b.tier != tier {
				continue
			}
			if b.score > limit {
				b.score = limit
				best[id] = b
			}
			tierMin = min(tierMin, b.score)
		}
		floor = min(floor, tierMin)
	}
}

// expand resolves query term q to indexed terms with their discount.
// Exact matches weigh 1. Prefix matches fall between FuzzyDiscount and
// PrefixDiscount by length ratio, so a longer completion weighs less.
// Fuzzy matches weigh FuzzyDiscount divided by edit distance. Query caps
// each tier below the one above it.
func (ix *Index) expand(fst *vellum.FST, q string) []expansion {
	var out []expansion
	seen := make(map[string]bool)

	if _, ok := ix.st.postings[q]; ok {
		out = append(out, expansion{term: q, factor: 1, tier: tierExact})
		seen[q] = true
	}

	qlen := utf8.RuneCountInString(q)

	if qlen >= ix.opts.MinTermLengthForPrefixSearch {
		terms, err := prefixTerms(fst, q)
		if err != nil {
			slog.Debug("prefix_expansion_failed", slog.String("term", q), slog.String("error", err.Error()))
		}
		for _, t := range terms {
			seen[t] = true
			ratio := float64(qlen) / float64(utf8.RuneCountInString(t))
			factor := ix.opts.FuzzyDiscount + (ix.opts.PrefixDiscount-ix.opts.FuzzyDiscount)*ratio
			out = append(out, expansion{term: t, factor: factor, tier: tierPrefix})
		}
	}

	if qlen >= ix.opts.MinTermLengthForPrefix {
		budget := fuzzyBudget(qlen, ix.opts.FuzzyProportion)
		terms, err := fuzzyTerms(fst, q, budget)
		if err != nil {
			slog.Debug("fuzzy_expansion_failed", slog.String("term", q), slog.String("error", err.Error()))
		}
		for _, t := range terms {
			if seen[t] {
				continue
			}
			seen[t] = true
			d := max(editDistance(q, t), 1)
			out = append(out, expansion{term: t, factor: ix.opts.FuzzyDiscount / float64(d), tier: tierFuzzy})
		}
	}

	return out
}

func (ix *Index) fieldScore(ff fieldFreqs) float64 {
	var s float64
	for f, tf := range ff {
		if tf > 0 {
			s += ix.opts.Weights.Of(Field(f)) * float64(tf)
		}
	}
	return s
}

// fuzzyBudget is floor(proportion*length), at least 1, at most maxFuzzyDistance.
func fuzzyBudget(length int, proportion float64) uint8 {
	d := int(math.Floor(proportion * float64(length)))
	return uint8(min(max(d, 1), maxFuzzyDistance))
}

// inverseDocFreq is the BM25 idf, always positive and saturating in df.
func inverseDocFreq(n, df float64) float64 {
	return math.Log(1 + (n-df+0.5)/(df+0.5))
}

func compareMatches(a, b Match) int {
	switch {
	case a.Score > b.Score:
		return -1
	case a.Score < b.Score:
		return 1
	case a.QueryTermsMatched != b.QueryTermsMatched:
		return b.QueryTermsMatched - a.QueryTermsMatched
	default:
		return strings.Compare(a.Path, b.Path)
	}
}

func dedupe(terms []string) []string {
	seen := make(map[string]bool, len(terms))
	out := make([]string, 0, len(terms))
	for _, t := range terms {
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
	}
	return out
}

// Ref returns the DocumentRef for path.
func (ix *Index) Ref(path string) (DocumentRef, bool) {
	ix.mu.RLock()
	defer ix.mu.RUnlock()

	e, ok := ix.st.byPath[path]
	if !ok {
		return DocumentRef{}, false
	}
	return e.ref, true
}

// Refs returns all DocumentRefs sorted by path.
func (ix *Index) Refs() []DocumentRef {
	ix.mu.RLock()
	defer ix.mu.RUnlock()

	refs := make([]DocumentRef, 0, len(ix.st.byPath))
	for _, e := range ix.st.byPath {
		refs = append(refs, e.ref)
	}
	slices.SortFunc(refs, func(a, b DocumentRef) int { return strings.Compare(a.Path, b.Path) })
	return refs
}

// Stats reports the index size.
func (ix *Index) Stats() Stats {
	ix.mu.RLock()
	defer ix.mu.RUnlock()

	return Stats{
		Ready:     ix.ready,
		Documents: len(ix.st.byPath),
		Terms:     len(ix.st.postings),
		NextID:    ix.nextID.Load(),
	}
}
