package index

import (
	"bytes"
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/blevesearch/vellum"
	"github.com/blevesearch/vellum/levenshtein"
)

// maxFuzzyDistance caps the edit budget; larger automata get expensive.
const maxFuzzyDistance = 2

var (
	lbOnce     [maxFuzzyDistance + 1]sync.Once
	lbBuilders [maxFuzzyDistance + 1]*levenshtein.LevenshteinAutomatonBuilder
	lbErrs     [maxFuzzyDistance + 1]error
)

func automatonBuilder(distance uint8) (*levenshtein.LevenshteinAutomatonBuilder, error) {
	lbOnce[distance].Do(func() {
		lbBuilders[distance], lbErrs[distance] = levenshtein.NewLevenshteinAutomatonBuilder(distance, false)
	})
	return lbBuilders[distance], lbErrs[distance]
}

// termDictionary is an FST over all indexed terms, rebuilt lazily after
// mutations.
type termDictionary struct {
	mu    sync.Mutex
	fst   *vellum.FST
	built bool
}

func (d *termDictionary) invalidate() {
	d.mu.Lock()
	d.built = false
	d.mu.Unlock()
}

// get returns the FST for postings, rebuilding it if stale. A nil FST
// means no terms. The caller must hold the index read lock so postings
// cannot change underneath.
func (d *termDictionary) get(postings map[string]map[int64]fieldFreqs) (*vellum.FST, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.built {
		return d.fst, nil
	}

	fst, err := buildFST(postings)
	if err != nil {
		return nil, err
	}
	d.fst = fst
	d.built = true
	return fst, nil
}

func buildFST(postings map[string]map[int64]fieldFreqs) (*vellum.FST, error) {
	keys := make([]string, 0, len(postings))
	for term := range postings {
		keys = append(keys, term)
	}
	if len(keys) == 0 {
		return nil, nil
	}
	slices.Sort(keys)

	var buf bytes.Buffer
	b, err := vellum.New(&buf, nil)
	if err != nil {
		return nil, fmt.Errorf("create fst builder: %w", err)
	}
	for _, k := range keys {
		if err := b.Insert([]byte(k), uint64(len(postings[k]))); err != nil {
			return nil, fmt.Errorf("insert term %q: %w", k, err)
		}
	}
	if err := b.Close(); err != nil {
		return nil, fmt.Errorf("finish fst: %w", err)
	}

	return vellum.Load(buf.Bytes())
}

// prefixTerms returns indexed terms starting with prefix, excluding prefix.
func prefixTerms(fst *vellum.FST, prefix string) ([]string, error) {
	if fst == nil {
		return nil, nil
	}
	itr, err := fst.Iterator([]byte(prefix), prefixEnd([]byte(prefix)))
	return collect(itr, err, prefix)
}

// fuzzyTerms returns indexed terms within distance edits of term,
// excluding term itself.
func fuzzyTerms(fst *vellum.FST, term string, distance uint8) ([]string, error) {
	if fst == nil {
		return nil, nil
	}
	lb, err := automatonBuilder(distance)
	if err != nil {
		return nil, fmt.Errorf("levenshtein builder: %w", err)
	}
	dfa, err := lb.BuildDfa(term, distance)
	if err != nil {
		return nil, fmt.Errorf("levenshtein dfa: %w", err)
	}
	itr, err := fst.Search(dfa, nil, nil)
	return collect(itr, err, term)
}

func collect(itr *vellum.FSTIterator, err error, skip string) ([]string, error) {
	var out []string
	for err == nil {
		key, _ := itr.Current()
		if string(key) != skip {
			out = append(out, string(key))
		}
		err = itr.Next()
	}
	if !errors.Is(err, vellum.ErrIteratorDone) {
		return nil, err
	}
	return out, nil
}

// prefixEnd returns the smallest key greater than every key with prefix,
// or nil when no such key exists.
func prefixEnd(prefix []byte) []byte {
	end := slices.Clone(prefix)
	for i := len(end) - 1; i >= 0; i-- {
		if end[i] < 0xff {
			end[i]++
			return end[:i+1]
		}
	}
	return nil
}

// editDistance is the rune-level Levenshtein distance.
func editDistance(a, b string) int {
	ra, rb := []rune(a), []rune(b)
	prev := make([]int, len(rb)+1)
	cur := make([]int, len(rb)+1)
	for j := range prev {
		prev[j] = j
	}
	for i := 1; i <= len(ra); i++ {
		cur[0] = i
		for j := 1; j <= len(rb); j++ {
			cost := 1
			if ra[i-1] == rb[j-1] {
				cost = 0
			}
			cur[j] = min(prev[j]+1, cur[j-1]+1, prev[j-1]+cost)
		}
		prev, cur = cur, prev
	}
	return prev[len(rb)]
}
