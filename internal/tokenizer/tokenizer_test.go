package tokenizer

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"unicode"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testDict = `用 10 p
起来 50 v
用起来 1000 v
还 100 d
不错 500 a
笔记 800 n
软件 600 n
笔记软件 900 n
的 2000 u
データベース 700 n
`

func newTestTokenizer(t *testing.T, cfg Config) *Tokenizer {
	t.Helper()
	tok := New(cfg, Assets{
		Dictionary:  []byte(testDict),
		StopWordsZh: []string{"的", "还"},
	})
	require.False(t, tok.Degraded())
	return tok
}

func hasScripts(tok string) (latin, cjk bool) {
	for _, r := range tok {
		switch {
		case isCJK(r):
			cjk = true
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			latin = true
		}
	}
	return latin, cjk
}

func TestSegment_MixedScript_NeverMergesRuns(t *testing.T) {
	// Given: a tokenizer with a CJK dictionary
	tok := newTestTokenizer(t, DefaultConfig())

	// When: segmenting mixed Latin and CJK text in coarse mode
	tokens := tok.Segment("smart-Connection用起来还不错", false)

	// Then: Latin and CJK characters never share a token
	require.NotEmpty(t, tokens)
	for _, s := range tokens {
		latin, cjk := hasScripts(s)
		assert.False(t, latin && cjk, "token %q mixes scripts", s)
	}
	assert.Equal(t, []string{"smart", "connection"}, tokens[:2])
	assert.Contains(t, tokens, "用起来")
}

func TestSegment_CoarseCoversRun(t *testing.T) {
	tok := newTestTokenizer(t, Config{})

	tokens := tok.Segment("用起来还不错", false)

	assert.Equal(t, "用起来还不错", strings.Join(tokens, ""))
}

func TestSegment_FineIncludesSubWords(t *testing.T) {
	tok := newTestTokenizer(t, Config{})

	coarse := tok.Segment("笔记软件", false)
	fine := tok.Segment("笔记软件", true)

	assert.Contains(t, coarse, "笔记软件")
	assert.Contains(t, fine, "笔记")
	assert.Contains(t, fine, "软件")
	assert.GreaterOrEqual(t, len(fine), len(coarse))
}

func TestSegment_Deterministic(t *testing.T) {
	tok := newTestTokenizer(t, DefaultConfig())
	input := "Obsidian笔记软件 smart-connection 用起来还不错!"

	for _, fine := range []bool{false, true} {
		first := tok.Segment(input, fine)
		second := tok.Segment(input, fine)
		assert.Equal(t, first, second)
	}
}

func TestSegment_Latin(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
		in   string
		want []string
	}{
		{
			name: "lowercases and splits punctuation",
			cfg:  Config{SplitHyphen: true},
			in:   "Hello, World! foo_bar",
			want: []string{"hello", "world", "foo", "bar"},
		},
		{
			name: "hyphen split",
			cfg:  Config{SplitHyphen: true},
			in:   "smart-connection",
			want: []string{"smart", "connection"},
		},
		{
			name: "hyphen kept",
			cfg:  Config{SplitHyphen: false},
			in:   "smart-connection -dangling-",
			want: []string{"smart-connection", "dangling"},
		},
		{
			name: "full width folded",
			cfg:  Config{},
			in:   "Ｈｅｌｌｏ　２０２４",
			want: []string{"hello", "2024"},
		},
		{
			name: "other scripts treated as latin runs",
			cfg:  Config{},
			in:   "Привет мир",
			want: []string{"привет", "мир"},
		},
		{
			name: "empty",
			cfg:  Config{},
			in:   "",
			want: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tok := New(tt.cfg, Assets{})
			assert.Equal(t, tt.want, tok.Segment(tt.in, false))
		})
	}
}

func TestSegment_EnglishStopWords(t *testing.T) {
	tok := New(Config{StopWordsEn: true}, Assets{})

	t.Run("removes stop words", func(t *testing.T) {
		assert.Equal(t, []string{"quick", "fox"}, tok.Segment("The quick fox", false))
	})

	t.Run("never empties a field", func(t *testing.T) {
		assert.Equal(t, []string{"the"}, tok.Segment("The", false))
	})

	t.Run("digits survive", func(t *testing.T) {
		assert.Equal(t, []string{"2024"}, tok.Segment("2024", false))
	})
}

func TestSegment_StopWordListAssetReplacesBuiltin(t *testing.T) {
	tok := New(Config{StopWordsEn: true}, Assets{StopWordsEn: []string{"Quick"}})

	assert.Equal(t, []string{"the", "fox"}, tok.Segment("the quick fox", false))
}

func TestSegment_ChineseStopWordsToggle(t *testing.T) {
	on := newTestTokenizer(t, Config{StopWordsZh: true})
	off := newTestTokenizer(t, Config{StopWordsZh: false})

	assert.NotContains(t, on.Segment("用起来还不错", false), "还")
	assert.Contains(t, off.Segment("用起来还不错", false), "还")
}

func TestNew_WithoutDictionary_Degrades(t *testing.T) {
	// Given: no CJK dictionary
	tok := New(DefaultConfig(), Assets{})

	// Then: degraded mode keeps CJK runs whole and Latin still works
	assert.True(t, tok.Degraded())
	assert.Equal(t, []string{"smart", "connection", "用起来还不错"}, tok.Segment("smart-Connection用起来还不错", false))
}

func TestLoadAssets(t *testing.T) {
	t.Run("missing directory contents are tolerated", func(t *testing.T) {
		a, err := LoadAssets(t.TempDir())
		require.NoError(t, err)
		assert.Nil(t, a.Dictionary)
		assert.Nil(t, a.StopWordsEn)
	})

	t.Run("reads all three files", func(t *testing.T) {
		dir := t.TempDir()
		require.NoError(t, os.WriteFile(filepath.Join(dir, DictionaryFile), []byte(testDict), 0o644))
		require.NoError(t, os.WriteFile(filepath.Join(dir, StopWordsEnFile), []byte("a\n the \n\nof\n"), 0o644))
		require.NoError(t, os.WriteFile(filepath.Join(dir, StopWordsZhFile), []byte("的\n"), 0o644))

		a, err := LoadAssets(dir)

		require.NoError(t, err)
		assert.NotEmpty(t, a.Dictionary)
		assert.Equal(t, []string{"a", "the", "of"}, a.StopWordsEn)
		assert.Equal(t, []string{"的"}, a.StopWordsZh)
	})

	t.Run("empty dir argument", func(t *testing.T) {
		a, err := LoadAssets("")
		require.NoError(t, err)
		assert.Equal(t, Assets{}, a)
	})
}

func TestSplitRuns(t *testing.T) {
	runs := splitRuns("abc中文123 日本語です", false)

	require.Len(t, runs, 4)
	assert.Equal(t, run{kind: runLatin, text: "abc"}, runs[0])
	assert.Equal(t, run{kind: runCJK, text: "中文"}, runs[1])
	assert.Equal(t, run{kind: runLatin, text: "123"}, runs[2])
	assert.Equal(t, run{kind: runCJK, text: "日本語です"}, runs[3])
}

func TestSegment_KatakanaProlongedSoundMark(t *testing.T) {
	tok := newTestTokenizer(t, Config{})

	tests := []struct {
		name  string
		input string
		want  []string
	}{
		{"alone", "データベース", []string{"データベース"}},
		{"after latin", "SQLデータベース", []string{"sql", "データベース"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// When: segmenting a dictionary loanword with ー
			coarse := tok.Segment(tt.input, false)
			fine := tok.Segment(tt.input, true)

			// Then: the word stays whole and no bare mark is emitted
			assert.Equal(t, tt.want, coarse)
			assert.Contains(t, fine, "データベース")
			assert.NotContains(t, fine, "ー")
		})
	}
}

func TestSplitRuns_KatakanaMarksStayInRun(t *testing.T) {
	for _, input := range []string{"データベース", "カｰド", "データ・ベース"} {
		runs := splitRuns(input, false)
		require.Len(t, runs, 1, input)
		assert.Equal(t, run{kind: runCJK, text: input}, runs[0])
	}
}

func TestEnglishFilter_MemoIsBounded(t *testing.T) {
	f := newEnglishFilter()

	assert.True(t, f.isStop("the"))
	assert.False(t, f.isStop("granite"))
	for i := range englishMemoSize + 100 {
		f.isStop(fmt.Sprintf("term%d", i))
	}

	assert.Equal(t, englishMemoSize, f.memo.Len())
	assert.True(t, f.isStop("the"))
}
