package mcp

// SearchVaultInput defines the input schema for the search_vault tool.
type SearchVaultInput struct {
	Query    string `json:"query" jsonschema:"words to look for in note titles, folders, aliases, headings and text"`
	Mode     string `json:"mode,omitempty" jsonschema:"and (every term must match, default) or or (any term)"`
	Limit    int    `json:"limit,omitempty" jsonschema:"maximum number of notes, default 10"`
	Excerpts bool   `json:"excerpts,omitempty" jsonschema:"include the matching lines of each note"`
}

// SearchVaultOutput defines the output schema for the search_vault tool.
type SearchVaultOutput struct {
	Results []NoteResultOutput `json:"results" jsonschema:"ranked notes"`
}

// NoteResultOutput is one ranked note.
type NoteResultOutput struct {
	Path         string          `json:"path" jsonschema:"note path relative to the vault root"`
	Score        float64         `json:"score" jsonschema:"relevance score, higher is better"`
	MatchedTerms []string        `json:"matched_terms" jsonschema:"indexed terms that matched"`
	Excerpts     []ExcerptOutput `json:"excerpts,omitempty" jsonschema:"matching lines when excerpts were requested"`
}

// ExcerptOutput is one matching line of a note.
type ExcerptOutput struct {
	Line int    `json:"line" jsonschema:"1-based line number"`
	Text string `json:"text"`
}

// SearchInFileInput defines the input schema for the search_in_file tool.
type SearchInFileInput struct {
	Path  string `json:"path" jsonschema:"note path relative to the vault root"`
	Query string `json:"query" jsonschema:"characters to fuzzy-match in order; whitespace is ignored"`
	Limit int    `json:"limit,omitempty" jsonschema:"maximum number of lines, default 10"`
}

// SearchInFileOutput defines the output schema for the search_in_file tool.
type SearchInFileOutput struct {
	Path        string            `json:"path"`
	Unsupported bool              `json:"unsupported,omitempty" jsonschema:"true when the file is not plain text"`
	Matches     []LineMatchOutput `json:"matches"`
}

// LineMatchOutput is one matched line with its paragraph.
type LineMatchOutput struct {
	Line      int    `json:"line" jsonschema:"1-based line number"`
	Column    int    `json:"column" jsonschema:"0-based rune offset of the first matched character"`
	Text      string `json:"text"`
	Positions []int  `json:"positions" jsonschema:"rune offsets of matched characters in text"`
	Context   string `json:"context" jsonschema:"the surrounding paragraph"`
}

// IndexStatusInput defines the input schema for the index_status tool (no parameters).
type IndexStatusInput struct{}

// IndexStatusOutput defines the output schema for the index_status tool.
type IndexStatusOutput struct {
	Vault VaultInfo  `json:"vault"`
	Stats IndexStats `json:"stats"`
}

// VaultInfo describes the searched vault.
type VaultInfo struct {
	Name     string `json:"name"`
	RootPath string `json:"root_path"`
	Type     string `json:"type"`
}

// IndexStats contains statistics about the index.
type IndexStats struct {
	Ready           bool   `json:"ready"`
	Documents       int    `json:"documents"`
	Terms           int    `json:"terms"`
	Degraded        bool   `json:"degraded" jsonschema:"true when CJK segmentation is unavailable"`
	Source          string `json:"source" jsonschema:"snapshot or rebuild"`
	LastReindexMs   int64  `json:"last_reindex_ms"`
	SkippedFiles    int    `json:"skipped_files"`
	SnapshotSavedAt string `json:"snapshot_saved_at,omitempty"`
}
