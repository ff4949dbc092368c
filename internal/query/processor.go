// Package query turns raw user input into index terms.
package query

import (
	"slices"
	"strings"
	"unicode"

	lru "github.com/hashicorp/golang-lru/v2"
)

// DefaultCacheSize is the number of parsed queries kept.
const DefaultCacheSize = 256

// Segmenter turns text into terms.
type Segmenter interface {
	Segment(text string, fine bool) []string
}

// Processor parses queries with the fine-grained segmentation so short
// input still reaches longer indexed compounds. Parses are cached; the
// segmenter is immutable so cached results never go stale.
type Processor struct {
	seg   Segmenter
	cache *lru.Cache[string, []string]
}

// NewProcessor creates a Processor. cacheSize <= 0 uses DefaultCacheSize.
func NewProcessor(seg Segmenter, cacheSize int) *Processor {
	if cacheSize <= 0 {
		cacheSize = DefaultCacheSize
	}
	cache, _ := lru.New[string, []string](cacheSize)
	return &Processor{seg: seg, cache: cache}
}

// Parse returns the ordered, de-duplicated terms of q.
func (p *Processor) Parse(q string) []string {
	q = strings.TrimSpace(q)
	if q == "" {
		return nil
	}
	if terms, ok := p.cache.Get(q); ok {
		return slices.Clone(terms)
	}

	var terms []string
	seen := make(map[string]bool)
	for _, t := range p.seg.Segment(q, true) {
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		terms = append(terms, t)
	}

	p.cache.Add(q, terms)
	return slices.Clone(terms)
}

// NormalizeInFile prepares a query for in-file line matching by removing
// every whitespace character.
func NormalizeInFile(q string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, q)
}
