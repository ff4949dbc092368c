package match

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMatchLines_Scenario_HelloWorld(t *testing.T) {
	// Given: a single line
	lines := []Line{{Text: "hello world", Row: 0}}

	// When: matching a subsequence query
	got := MatchLines(lines, "wrd", 10)

	// Then: positions point at w, r, d inside "world"
	require.Len(t, got, 1)
	assert.Equal(t, 0, got[0].Row)
	assert.Equal(t, []int{6, 8, 10}, got[0].Positions)
}

func TestMatchLines_EmptyQuery(t *testing.T) {
	lines := []Line{{Text: "anything", Row: 0}}

	assert.Empty(t, MatchLines(lines, "", 10))
	assert.Empty(t, MatchLines(nil, "a", 10))
}

func TestMatchLines_MissingCharacterExcludes(t *testing.T) {
	lines := []Line{
		{Text: "abc", Row: 0},
		{Text: "abcd", Row: 1},
		{Text: "dcba", Row: 2},
	}

	got := MatchLines(lines, "abcd", 10)

	require.Len(t, got, 1)
	assert.Equal(t, 1, got[0].Row)
}

func TestMatchLines_CaseInsensitive(t *testing.T) {
	got := MatchLines([]Line{{Text: "Hello World", Row: 4}}, "HW", 10)

	require.Len(t, got, 1)
	assert.Equal(t, []int{0, 6}, got[0].Positions)
}

func TestMatchLines_RuneOffsets(t *testing.T) {
	got := MatchLines([]Line{{Text: "用起来还不错", Row: 0}}, "起不", 10)

	require.Len(t, got, 1)
	assert.Equal(t, []int{1, 4}, got[0].Positions)
}

func TestMatchLines_PrefersContiguousAndShort(t *testing.T) {
	lines := []Line{
		{Text: "nxoxtxexs", Row: 0},
		{Text: "notes and more", Row: 1},
		{Text: "notes", Row: 2},
	}

	got := MatchLines(lines, "notes", 10)

	require.Len(t, got, 3)
	assert.Equal(t, 2, got[0].Row)
	assert.Equal(t, 1, got[1].Row)
	assert.Equal(t, 0, got[2].Row)
}

func TestMatchLines_TiesByRow(t *testing.T) {
	lines := []Line{
		{Text: "same line", Row: 0},
		{Text: "other", Row: 1},
		{Text: "same line", Row: 2},
	}

	got := MatchLines(lines, "same", 10)

	require.Len(t, got, 2)
	assert.Equal(t, 0, got[0].Row)
	assert.Equal(t, 2, got[1].Row)
}

func TestMatchLines_Limit(t *testing.T) {
	var lines []Line
	for i := 0; i < 20; i++ {
		lines = append(lines, Line{Text: "todo item", Row: i})
	}

	got := MatchLines(lines, "todo", 5)

	require.Len(t, got, 5)
	for i, m := range got {
		assert.Equal(t, i, m.Row)
	}
}

func TestMatchLines_Deterministic(t *testing.T) {
	lines := SplitLines("alpha beta\nbeta alpha\nab ab ab\nbanana")

	first := MatchLines(lines, "ab", 0)
	second := MatchLines(lines, "ab", 0)

	assert.Equal(t, first, second)
	for _, m := range first {
		runes := []rune(m.Text)
		for i, p := range m.Positions {
			require.Less(t, p, len(runes))
			if i > 0 {
				assert.Greater(t, p, m.Positions[i-1])
			}
		}
	}
}

func TestAlign_FrontLoaded(t *testing.T) {
	pos, ok := align("aXbXab", []rune("ab"))

	require.True(t, ok)
	assert.Equal(t, []int{0, 2}, pos)
}

func TestSplitLines(t *testing.T) {
	lines := SplitLines("one\r\ntwo\n\nfour")

	assert.Equal(t, []Line{
		{Text: "one", Row: 0},
		{Text: "two", Row: 1},
		{Text: "", Row: 2},
		{Text: "four", Row: 3},
	}, lines)
	assert.Nil(t, SplitLines(""))
}
