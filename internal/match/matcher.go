// Package match finds the lines of one file that fuzzily match a query.
//
// A line matches when every query character occurs in it in order. Lines
// are scored with github.com/sahilm/fuzzy, which rewards contiguous runs,
// word-boundary hits and short lines. Reported positions come from the
// earliest possible alignment so the same input always highlights the
// same characters.
package match

import (
	"slices"
	"strings"
	"unicode"

	"github.com/sahilm/fuzzy"
)

// Line is one line of a file. Row is zero-based.
type Line struct {
	Text string `json:"text"`
	Row  int    `json:"row"`
}

// MatchedLine is a Line plus the rune offsets of its matched characters,
// in increasing order.
type MatchedLine struct {
	Line
	Positions []int `json:"positions"`
	Score     int   `json:"score"`
}

// SplitLines splits content into Lines, accepting \n and \r\n endings.
func SplitLines(content string) []Line {
	if content == "" {
		return nil
	}
	raw := strings.Split(content, "\n")
	lines := make([]Line, len(raw))
	for i, text := range raw {
		lines[i] = Line{Text: strings.TrimSuffix(text, "\r"), Row: i}
	}
	return lines
}

type lineSource []Line

func (s lineSource) String(i int) string { return s[i].Text }
func (s lineSource) Len() int { return len(s) }

// MatchLines returns lines containing query as a subsequence, best score
// first, ties by ascending row, at most limit of them (no cap if limit <= 0).
// An empty query matches nothing.
func MatchLines(lines []Line, query string, limit int) []MatchedLine {
	if query == "" || len(lines) == 0 {
		return nil
	}
	pattern := []rune(query)

	found := fuzzy.FindFrom(query, lineSource(lines))
	out := make([]MatchedLine, 0, len(found))
	for _, m := range found {
		line := lines[m.Index]
		pos, ok := align(line.Text, pattern)
		if !ok {
			continue
		}
		out = append(out, MatchedLine{Line: line, Positions: pos, Score: m.Score})
	}

	slices.SortStableFunc(out, func(a, b MatchedLine) int {
		if a.Score != b.Score {
			return b.Score - a.Score
		}
		return a.Row - b.Row
	})

	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

// align greedily assigns each pattern rune to its earliest occurrence
// after the previous one. Offsets are in runes.
func align(text string, pattern []rune) ([]int, bool) {
	pos := make([]int, 0, len(pattern))
	pi, ri := 0, 0
	for _, r := range text {
		if pi == len(pattern) {
			break
		}
		if foldEqual(r, pattern[pi]) {
			pos = append(pos, ri)
			pi++
		}
		ri++
	}
	return pos, pi == len(pattern)
}

func foldEqual(a, b rune) bool {
	return a == b || unicode.ToLower(a) == unicode.ToLower(b)
}
