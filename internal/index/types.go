// Package index implements the multi-field weighted inverted index over
// vault documents.
package index

import (
	"fmt"
	"strings"
)

// Field identifies an indexed document field.
type Field uint8

const (
	FieldBasename Field = iota
	FieldFolder
	FieldAliases
	FieldHeadings
	FieldContent

	numFields
)

// NumFields is the number of indexed fields.
const NumFields = int(numFields)

var fieldNames = [numFields]string{"basename", "folder", "aliases", "headings", "content"}

func (f Field) String() string {
	if f < numFields {
		return fieldNames[f]
	}
	return fmt.Sprintf("field(%d)", uint8(f))
}

// ParseField converts a field name back to a Field.
func ParseField(s string) (Field, error) {
	for i, name := range fieldNames {
		if name == s {
			return Field(i), nil
		}
	}
	return 0, fmt.Errorf("unknown field %q", s)
}

// IndexedDocument is the unit of indexing. Path is its identity.
type IndexedDocument struct {
	Path     string
	Basename string
	Folder   string
	// Aliases holds front-matter aliases and tags, space separated.
	Aliases  string
	Headings string
	Content  string
	// ModTime is the file mtime in Unix milliseconds.
	ModTime int64
}

func (d *IndexedDocument) field(f Field) string {
	switch f {
	case FieldBasename:
		return d.Basename
	case FieldFolder:
		return d.Folder
	case FieldAliases:
		return d.Aliases
	case FieldHeadings:
		return d.Headings
	default:
		return d.Content
	}
}

// DocumentRef tracks per-path freshness. ID is assigned once per path and
// never reused within a process.
type DocumentRef struct {
	ID             int64  `json:"id"`
	Path           string `json:"path"`
	LexicalMtime   int64  `json:"lexical_mtime"`
	EmbeddingMtime int64  `json:"embedding_mtime"`
}

// DocumentWeight maps fields to score multipliers. Missing fields weigh 1.
type DocumentWeight map[Field]float64

// DefaultWeights returns the default field weights.
func DefaultWeights() DocumentWeight {
	return DocumentWeight{
		FieldBasename: 3,
		FieldFolder:   2,
		FieldAliases:  1.15,
		FieldHeadings: 1.27,
	}
}

// Of returns the weight of f.
func (w DocumentWeight) Of(f Field) float64 {
	if v, ok := w[f]; ok && v > 0 {
		return v
	}
	return 1
}

// Mode selects how query terms combine.
type Mode string

const (
	ModeAnd Mode = "and"
	ModeOr  Mode = "or"
)

// ParseMode parses "and" or "or", case-insensitively.
func ParseMode(s string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(s))) {
	case ModeAnd:
		return ModeAnd, nil
	case ModeOr:
		return ModeOr, nil
	}
	return "", fmt.Errorf("unknown query mode %q (use and, or)", s)
}

// Match is one ranked query result.
type Match struct {
	Path  string
	Score float64
	// MatchedTerms lists the indexed terms that matched, in query order.
	MatchedTerms []string
	// QueryTermsMatched counts query terms with at least one match.
	QueryTermsMatched int
}

// Segmenter turns text into terms.
type Segmenter interface {
	Segment(text string, fine bool) []string
}

// Options tune matching and scoring.
type Options struct {
	Weights DocumentWeight

	// MinTermLengthForPrefix is the minimum rune length for fuzzy expansion.
	MinTermLengthForPrefix int
	// MinTermLengthForPrefixSearch is the minimum rune length for prefix expansion.
	MinTermLengthForPrefixSearch int
	// FuzzyProportion scales the edit budget by term length.
	FuzzyProportion float64

	PrefixDiscount float64
	FuzzyDiscount  float64
}

// DefaultOptions returns the default tuning.
func DefaultOptions() Options {
	return Options{
		Weights:                      DefaultWeights(),
		MinTermLengthForPrefix:       3,
		MinTermLengthForPrefixSearch: 2,
		FuzzyProportion:              0.2,
		PrefixDiscount:               0.5,
		FuzzyDiscount:                0.25,
	}
}

// Stats describes the current index contents.
type Stats struct {
	Ready     bool  `json:"ready"`
	Documents int   `json:"documents"`
	Terms     int   `json:"terms"`
	NextID    int64 `json:"next_id"`
}
