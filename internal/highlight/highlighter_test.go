package highlight

import (
	"fmt"
	"strings"
	"testing"

	"github.com/mattn/go-runewidth"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/vaultsearch/internal/match"
)

func matched(lines []match.Line, row int, positions ...int) match.MatchedLine {
	return match.MatchedLine{Line: lines[row], Positions: positions}
}

func runeAt(s string, i int) rune {
	return []rune(s)[i]
}

var doc = match.SplitLines("# Title\npara one\npara two match\npara three\n\nnext block")

func TestParse_LineMode(t *testing.T) {
	h := New(DefaultOptions())

	got := h.Parse(doc, matched(doc, 2, 9, 10), ModeLine, false)

	assert.Equal(t, "para two match", got.Text)
	assert.Equal(t, 2, got.Row)
	assert.Equal(t, 9, got.Col)
	assert.Equal(t, []int{9, 10}, got.Positions)
}

func TestParse_ParagraphMode(t *testing.T) {
	// Given: a match in the middle of a paragraph
	h := New(DefaultOptions())

	// When: expanding to the paragraph
	got := h.Parse(doc, matched(doc, 2, 9), ModeParagraph, false)

	// Then: the block stops at the blank line and the column follows the match
	assert.Equal(t, "# Title\npara one\npara two match\npara three", got.Text)
	assert.Equal(t, 2, got.Row)
	assert.Equal(t, 'm', runeAt(got.Text, got.Col))
}

func TestParse_ParagraphCap(t *testing.T) {
	var sb strings.Builder
	for i := 0; i < 20; i++ {
		fmt.Fprintf(&sb, "line %02d\n", i)
	}
	lines := match.SplitLines(strings.TrimSuffix(sb.String(), "\n"))
	h := New(Options{MaxParagraphLines: 3})

	got := h.Parse(lines, matched(lines, 10, 5), ModeParagraph, false)

	assert.Equal(t, "line 09\nline 10\nline 11", got.Text)
	assert.Equal(t, '1', runeAt(got.Text, got.Col))
}

func TestParse_ExpandContextClampsAtBoundaries(t *testing.T) {
	h := New(Options{ContextLines: 2})

	first := h.Parse(doc, matched(doc, 0, 2), ModeLine, true)
	assert.Equal(t, "# Title\npara one\npara two match", first.Text)
	assert.Equal(t, 2, first.Col)

	last := h.Parse(doc, matched(doc, 5, 0), ModeLine, true)
	assert.Equal(t, "para three\n\nnext block", last.Text)
	assert.Equal(t, 'n', runeAt(last.Text, last.Col))
	assert.Equal(t, 5, last.Row)
}

func TestParse_ParagraphWithExpandContext(t *testing.T) {
	h := New(DefaultOptions())

	got := h.Parse(doc, matched(doc, 5, 0), ModeParagraph, true)

	assert.Equal(t, "\nnext block", got.Text)
	assert.Equal(t, 'n', runeAt(got.Text, got.Col))
}

func TestParse_SubItemTrimsIndent(t *testing.T) {
	lines := match.SplitLines("    - [ ] buy milk")
	h := New(DefaultOptions())

	got := h.Parse(lines, matched(lines, 0, 14, 15), ModeSubItem, false)

	assert.Equal(t, "- [ ] buy milk", got.Text)
	assert.Equal(t, []int{10, 11}, got.Positions)
	assert.Equal(t, 10, got.Col)
}

func TestParse_SubItemCropsLongLines(t *testing.T) {
	text := strings.Repeat("a", 150) + "match" + strings.Repeat("b", 100)
	lines := []match.Line{{Text: text, Row: 0}}
	h := New(Options{SubItemWidth: 40})

	got := h.Parse(lines, matched(lines, 0, 150, 151), ModeSubItem, false)

	assert.True(t, strings.HasPrefix(got.Text, ellipsis))
	assert.True(t, strings.HasSuffix(got.Text, ellipsis))
	assert.LessOrEqual(t, runewidth.StringWidth(got.Text), 40)
	require.Len(t, got.Positions, 2)
	assert.Equal(t, 'm', runeAt(got.Text, got.Col))
	assert.Equal(t, 'a', runeAt(got.Text, got.Positions[1]))
}

func TestParse_SubItemWideRunes(t *testing.T) {
	text := strings.Repeat("笔", 60) + "记"
	lines := []match.Line{{Text: text, Row: 0}}
	h := New(Options{SubItemWidth: 20})

	got := h.Parse(lines, matched(lines, 0, 60), ModeSubItem, false)

	assert.LessOrEqual(t, runewidth.StringWidth(got.Text), 20)
	assert.Equal(t, '记', runeAt(got.Text, got.Col))
}

func TestParse_RowOutsideLines(t *testing.T) {
	h := New(DefaultOptions())
	m := match.MatchedLine{Line: match.Line{Text: "orphan", Row: 99}, Positions: []int{1}}

	got := h.Parse(doc, m, ModeParagraph, true)

	assert.Equal(t, "orphan", got.Text)
	assert.Equal(t, 1, got.Col)
}

func TestParseAll_PositionsAlwaysValid(t *testing.T) {
	h := New(Options{SubItemWidth: 12})
	lines := match.SplitLines("alpha beta gamma delta epsilon\n\n  zeta eta theta\niota kappa lambda mu nu xi omicron\n")
	ms := match.MatchLines(lines, "ae", 0)
	require.NotEmpty(t, ms)

	for _, mode := range []Mode{ModeLine, ModeParagraph, ModeSubItem} {
		for _, expand := range []bool{false, true} {
			for _, hc := range h.ParseAll(lines, ms, mode, expand) {
				n := len([]rune(hc.Text))
				for _, p := range hc.Positions {
					assert.True(t, p >= 0 && p < n, "mode %s position %d outside %q", mode, p, hc.Text)
				}
				if len(hc.Positions) > 0 {
					assert.Equal(t, hc.Positions[0], hc.Col)
				}
			}
		}
	}
}

func TestParseMode(t *testing.T) {
	for _, s := range []string{"line", "paragraph", "subItem"} {
		m, err := ParseMode(s)
		require.NoError(t, err)
		assert.Equal(t, Mode(s), m)
	}
	_, err := ParseMode("page")
	assert.Error(t, err)
}
