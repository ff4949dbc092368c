package search

import (
	"time"

	"github.com/Aman-CERP/vaultsearch/internal/highlight"
)

// EngineType names the engine that produced a result.
type EngineType string

const (
	// EngineLexical is the inverted-index engine.
	EngineLexical EngineType = "lexical"
	// EngineSemantic is reserved for an embedding engine. Nothing produces it yet.
	EngineSemantic EngineType = "semantic"
)

// ItemKind discriminates the variants of Item.
type ItemKind string

const (
	ItemFile ItemKind = "file"
	ItemLine ItemKind = "line"
)

// MatchedFile is one vault-wide hit.
type MatchedFile struct {
	Path         string   `json:"path"`
	MatchedTerms []string `json:"matched_terms"`
	Score        float64  `json:"score"`
}

// FileSubItem is a compact excerpt of a matched line inside a file.
type FileSubItem struct {
	Text string `json:"text"`
	Row  int    `json:"row"`
	Col  int    `json:"col"`
	// Positions are rune offsets of the matched characters in Text.
	Positions []int `json:"positions,omitempty"`
}

// FileItem is a ranked file from a vault search. SubItems are filled on
// demand by GetFileSubItems.
type FileItem struct {
	Engine       EngineType    `json:"engine"`
	Path         string        `json:"path"`
	MatchedTerms []string      `json:"matched_terms"`
	Score        float64       `json:"score"`
	SubItems     []FileSubItem `json:"sub_items,omitempty"`

	// PreviewContent is a rendered preview for files that are not plain
	// text. Notes leave it empty; their excerpts come from SubItems.
	PreviewContent string `json:"preview_content,omitempty"`
}

// LineItem is a matched line from an in-file search, with the paragraph
// around it as context.
type LineItem struct {
	Line    highlight.HighlightedContext `json:"line"`
	Context string                       `json:"context"`
}

// Item is a result entry. Exactly one of File and Line is set, as named
// by Kind.
type Item struct {
	Kind ItemKind  `json:"kind"`
	File *FileItem `json:"file,omitempty"`
	Line *LineItem `json:"line,omitempty"`
}

// SearchResult is what the item-level operations return.
type SearchResult struct {
	// CurrPath is the searched file for in-file searches, empty otherwise.
	CurrPath string `json:"curr_path,omitempty"`
	Items    []Item `json:"items"`
	// Unsupported is set when the file is not plain text.
	Unsupported bool `json:"unsupported,omitempty"`
}

// Files returns the file items of r in order.
func (r SearchResult) Files() []FileItem {
	var out []FileItem
	for _, it := range r.Items {
		if it.Kind == ItemFile && it.File != nil {
			out = append(out, *it.File)
		}
	}
	return out
}

// Lines returns the line items of r in order.
func (r SearchResult) Lines() []LineItem {
	var out []LineItem
	for _, it := range r.Items {
		if it.Kind == ItemLine && it.Line != nil {
			out = append(out, *it.Line)
		}
	}
	return out
}

// SubItemsResult holds the excerpts of one file.
type SubItemsResult struct {
	Path        string        `json:"path"`
	Items       []FileSubItem `json:"items"`
	Unsupported bool          `json:"unsupported,omitempty"`
}

// ReindexSummary reports a full rebuild.
type ReindexSummary struct {
	Documents int           `json:"documents"`
	Skipped   int           `json:"skipped"`
	Duration  time.Duration `json:"duration"`
	// Failures maps skipped paths to their error message.
	Failures map[string]string `json:"failures,omitempty"`
}

// ReconcileSummary counts the changes applied when a loaded snapshot is
// brought up to date with the vault.
type ReconcileSummary struct {
	Added    int `json:"added"`
	Modified int `json:"modified"`
	Deleted  int `json:"deleted"`
	Failed   int `json:"failed"`
}

// Total is the number of changes applied.
func (s ReconcileSummary) Total() int {
	return s.Added + s.Modified + s.Deleted
}

// Source tells how the index was populated at startup.
type Source string

const (
	SourceNone     Source = ""
	SourceSnapshot Source = "snapshot"
	SourceRebuild  Source = "rebuild"
)

// Status describes the index for status displays.
type Status struct {
	Ready       bool          `json:"ready"`
	Documents   int           `json:"documents"`
	Terms       int           `json:"terms"`
	Degraded    bool          `json:"degraded"`
	Source      Source        `json:"source"`
	LastReindex time.Duration `json:"last_reindex"`
	Skipped     int           `json:"skipped"`

	SnapshotPath    string    `json:"snapshot_path,omitempty"`
	SnapshotSavedAt time.Time `json:"snapshot_saved_at,omitempty"`
}
