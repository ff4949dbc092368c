package tokenizer

import (
	"strings"
	"unicode"
)

type runKind uint8

const (
	runLatin runKind = iota + 1
	runCJK
)

// run is a maximal stretch of same-script word characters.
type run struct {
	kind runKind
	text string
}

var cjkTables = []*unicode.RangeTable{
	unicode.Han,
	unicode.Hiragana,
	unicode.Katakana,
	unicode.Hangul,
	unicode.Bopomofo,
}

func isCJK(r rune) bool {
	switch r {
	// Script=Common marks used inside katakana words: the middle dot and
	// the full- and half-width prolonged sound marks.
	case '\u30FB', '\u30FC', '\uFF70':
		return true
	}
	return unicode.In(r, cjkTables...)
}

func isWordRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.Is(unicode.Mn, r)
}

// splitRuns cuts text into script runs. Anything that is not a word rune
// ends the current run. A hyphen is kept inside a Latin run when keepHyphen
// is set and it sits between two word runes.
func splitRuns(text string, keepHyphen bool) []run {
	var (
		runs []run
		cur  strings.Builder
		kind runKind
	)

	flush := func() {
		if cur.Len() > 0 {
			runs = append(runs, run{kind: kind, text: strings.Trim(cur.String(), "-")})
			cur.Reset()
		}
		kind = 0
	}

	rs := []rune(text)
	for i, r := range rs {
		switch {
		case isCJK(r):
			if kind != runCJK {
				flush()
				kind = runCJK
			}
			cur.WriteRune(r)
		case isWordRune(r):
			if kind != runLatin {
				flush()
				kind = runLatin
			}
			cur.WriteRune(r)
		case r == '-' && keepHyphen && kind == runLatin &&
			i+1 < len(rs) && isWordRune(rs[i+1]) && !isCJK(rs[i+1]):
			cur.WriteRune(r)
		default:
			flush()
		}
	}
	flush()

	return runs
}
