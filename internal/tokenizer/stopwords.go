package tokenizer

import (
	"strings"
	"unicode"

	"github.com/bbalet/stopwords"
	lru "github.com/hashicorp/golang-lru/v2"
)

// englishMemoSize bounds the per-tokenizer stop-word memo.
const englishMemoSize = 8192

func init() {
	// Numbers are valid search terms.
	stopwords.DontStripDigits()
}

// stopFilter answers whether a normalized token is a stop word.
type stopFilter interface {
	isStop(token string) bool
}

// setFilter is a stop-word list supplied as an asset.
type setFilter map[string]struct{}

func newSetFilter(words []string) setFilter {
	s := make(setFilter, len(words))
	for _, w := range words {
		s[strings.ToLower(w)] = struct{}{}
	}
	return s
}

func (s setFilter) isStop(token string) bool {
	_, ok := s[token]
	return ok
}

// englishFilter consults the bbalet/stopwords English list. Results are
// memoized in a bounded LRU since the library works on whole strings.
type englishFilter struct {
	memo *lru.Cache[string, bool]
}

func newEnglishFilter() *englishFilter {
	memo, _ := lru.New[string, bool](englishMemoSize)
	return &englishFilter{memo: memo}
}

func (f *englishFilter) isStop(token string) bool {
	if stop, ok := f.memo.Get(token); ok {
		return stop
	}
	stop := false
	if isLetters(token) {
		stop = strings.TrimSpace(stopwords.CleanString(token, "en", false)) == ""
	}
	f.memo.Add(token, stop)
	return stop
}

func isLetters(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if !unicode.IsLetter(r) {
			return false
		}
	}
	return true
}
