// Package highlight turns matched lines into render-ready excerpts.
package highlight

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/mattn/go-runewidth"

	"github.com/Aman-CERP/vaultsearch/internal/match"
)

// Mode selects the excerpt shape.
type Mode string

const (
	// ModeLine returns the matched line verbatim.
	ModeLine Mode = "line"
	// ModeParagraph returns the block of non-blank lines around the match.
	ModeParagraph Mode = "paragraph"
	// ModeSubItem returns one compact, width-cropped line.
	ModeSubItem Mode = "subItem"
)

// ParseMode validates a mode name.
func ParseMode(s string) (Mode, error) {
	switch m := Mode(s); m {
	case ModeLine, ModeParagraph, ModeSubItem:
		return m, nil
	}
	return "", fmt.Errorf("unknown highlight mode %q", s)
}

const ellipsis = "…"

// HighlightedContext is an excerpt anchored on a matched line. Row is the
// matched row; Col and Positions are rune offsets into Text.
type HighlightedContext struct {
	match.Line
	Col       int   `json:"col"`
	Positions []int `json:"positions"`
}

// Options tune excerpt sizes.
type Options struct {
	// MaxParagraphLines caps a paragraph excerpt, matched line included.
	MaxParagraphLines int
	// ContextLines is added above and below when expandContext is set.
	ContextLines int
	// SubItemWidth is the display width of a subItem excerpt in cells.
	SubItemWidth int
	// Separator joins lines of a multi-line excerpt.
	Separator string
}

// DefaultOptions returns the defaults.
func DefaultOptions() Options {
	return Options{
		MaxParagraphLines: 7,
		ContextLines:      1,
		SubItemWidth:      80,
		Separator:         "\n",
	}
}

// Highlighter builds excerpts. It keeps no state between calls.
type Highlighter struct {
	opts Options
}

// New creates a Highlighter, filling unset options with defaults.
func New(opts Options) *Highlighter {
	def := DefaultOptions()
	if opts.MaxParagraphLines <= 0 {
		opts.MaxParagraphLines = def.MaxParagraphLines
	}
	if opts.ContextLines < 0 {
		opts.ContextLines = 0
	}
	if opts.SubItemWidth <= 0 {
		opts.SubItemWidth = def.SubItemWidth
	}
	if opts.Separator == "" {
		opts.Separator = def.Separator
	}
	return &Highlighter{opts: opts}
}

// Parse builds the excerpt for m. lines is the whole file, indexed by row.
// Windows never extend past the first or last line.
func (h *Highlighter) Parse(lines []match.Line, m match.MatchedLine, mode Mode, expandContext bool) HighlightedContext {
	switch mode {
	case ModeSubItem:
		return h.subItem(m)
	case ModeParagraph:
		start, end := h.paragraph(lines, m.Row)
		return h.window(lines, m, start, end, expandContext)
	default:
		return h.window(lines, m, m.Row, m.Row, expandContext)
	}
}

// ParseAll applies Parse to every match, preserving order.
func (h *Highlighter) ParseAll(lines []match.Line, ms []match.MatchedLine, mode Mode, expandContext bool) []HighlightedContext {
	out := make([]HighlightedContext, len(ms))
	for i, m := range ms {
		out[i] = h.Parse(lines, m, mode, expandContext)
	}
	return out
}

// paragraph finds the contiguous non-blank block around row, growing
// alternately up and down until MaxParagraphLines.
func (h *Highlighter) paragraph(lines []match.Line, row int) (int, int) {
	if row < 0 || row >= len(lines) {
		return row, row
	}
	start, end := row, row
	for end-start+1 < h.opts.MaxParagraphLines {
		grew := false
		if start > 0 && !isBlank(lines[start-1].Text) {
			start--
			grew = true
		}
		if end-start+1 < h.opts.MaxParagraphLines && end < len(lines)-1 && !isBlank(lines[end+1].Text) {
			end++
			grew = true
		}
		if !grew {
			break
		}
	}
	return start, end
}

// window joins lines[start..end], widened by ContextLines when expand is
// set, and shifts positions to the joined text.
func (h *Highlighter) window(lines []match.Line, m match.MatchedLine, start, end int, expand bool) HighlightedContext {
	if m.Row < 0 || m.Row >= len(lines) {
		return anchored(m.Line, m.Positions, 0)
	}
	if expand {
		start = max(0, start-h.opts.ContextLines)
		end = min(len(lines)-1, end+h.opts.ContextLines)
	}
	if start == end {
		return anchored(lines[m.Row], m.Positions, 0)
	}

	sepLen := utf8.RuneCountInString(h.opts.Separator)
	texts := make([]string, 0, end-start+1)
	offset := 0
	for i := start; i <= end; i++ {
		texts = append(texts, lines[i].Text)
		if i < m.Row {
			offset += utf8.RuneCountInString(lines[i].Text) + sepLen
		}
	}

	return anchored(match.Line{Text: strings.Join(texts, h.opts.Separator), Row: m.Row}, m.Positions, offset)
}

// subItem trims leading space and crops the line to SubItemWidth cells,
// keeping the first match visible.
func (h *Highlighter) subItem(m match.MatchedLine) HighlightedContext {
	runes := []rune(m.Text)
	lead := 0
	for lead < len(runes) && unicode.IsSpace(runes[lead]) {
		lead++
	}
	runes = runes[lead:]
	positions := shift(m.Positions, -lead, 0, len(runes))

	width := h.opts.SubItemWidth
	if runewidth.StringWidth(string(runes)) <= width {
		return anchored(match.Line{Text: string(runes), Row: m.Row}, positions, 0)
	}

	anchor := 0
	if len(positions) > 0 {
		anchor = positions[0]
	}

	// Keep about a third of the width before the anchor.
	start, used := anchor, 0
	for start > 0 && used+runewidth.RuneWidth(runes[start-1]) <= width/3 {
		start--
		used += runewidth.RuneWidth(runes[start])
	}

	budget := width
	prefix := ""
	if start > 0 {
		prefix = ellipsis
		budget -= runewidth.StringWidth(ellipsis)
	}
	end, used := start, 0
	for end < len(runes) && used+runewidth.RuneWidth(runes[end]) <= budget {
		used += runewidth.RuneWidth(runes[end])
		end++
	}
	suffix := ""
	if end < len(runes) {
		// Make room for the trailing ellipsis.
		for end > start+1 && used+runewidth.StringWidth(ellipsis) > budget {
			end--
			used -= runewidth.RuneWidth(runes[end])
		}
		suffix = ellipsis
	}

	prefixLen := utf8.RuneCountInString(prefix)
	text := prefix + string(runes[start:end]) + suffix
	return anchored(match.Line{Text: text, Row: m.Row}, shift(positions, prefixLen-start, prefixLen, prefixLen+end-start), 0)
}

// anchored builds a context with positions shifted by offset and Col at
// the first position.
func anchored(line match.Line, positions []int, offset int) HighlightedContext {
	n := utf8.RuneCountInString(line.Text)
	ps := shift(positions, offset, 0, n)
	col := 0
	if len(ps) > 0 {
		col = ps[0]
	}
	return HighlightedContext{Line: line, Col: col, Positions: ps}
}

// shift adds delta to each position and keeps those in [lo, hi).
func shift(positions []int, delta, lo, hi int) []int {
	out := make([]int, 0, len(positions))
	for _, p := range positions {
		if q := p + delta; q >= lo && q < hi {
			out = append(out, q)
		}
	}
	return out
}

func isBlank(s string) bool {
	return strings.TrimSpace(s) == ""
}
