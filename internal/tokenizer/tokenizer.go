package tokenizer

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/width"

	vserrors "github.com/Aman-CERP/vaultsearch/internal/errors"
)

// Config controls segmentation.
type Config struct {
	StopWordsEn bool
	StopWordsZh bool
	// SplitHyphen treats '-' inside a Latin run as a token boundary.
	SplitHyphen bool
}

// DefaultConfig returns the indexing defaults.
func DefaultConfig() Config {
	return Config{StopWordsEn: true, SplitHyphen: true}
}

// Tokenizer is immutable after New and safe for concurrent use.
type Tokenizer struct {
	cfg    Config
	cjk    *cjkSegmenter
	stopEn stopFilter
	stopZh stopFilter
}

// New builds a tokenizer from assets. A missing or unusable dictionary
// puts the tokenizer in degraded Latin-only mode; this is logged, never
// returned as an error.
func New(cfg Config, assets Assets) *Tokenizer {
	t := &Tokenizer{cfg: cfg}

	cjk, err := newCJKSegmenter(assets.Dictionary)
	if err != nil {
		ve := vserrors.New(vserrors.ErrCodeResourceUnavailable, "CJK segmentation disabled", err)
		slog.LogAttrs(context.Background(), slog.LevelWarn, "tokenizer_degraded", vserrors.LogAttrs(ve)...)
	} else {
		t.cjk = cjk
	}

	if cfg.StopWordsEn {
		if len(assets.StopWordsEn) > 0 {
			t.stopEn = newSetFilter(assets.StopWordsEn)
		} else {
			t.stopEn = newEnglishFilter()
		}
	}
	if cfg.StopWordsZh {
		if len(assets.StopWordsZh) > 0 {
			t.stopZh = newSetFilter(assets.StopWordsZh)
		} else {
			slog.Warn("tokenizer_stop_words_missing", slog.String("script", "zh"))
		}
	}

	return t
}

// Degraded reports whether CJK segmentation is unavailable.
func (t *Tokenizer) Degraded() bool {
	return t.cjk == nil
}

// Segment splits text into normalized terms. fine selects query-time
// segmentation of CJK runs. Segment never panics; if segmentation fails
// the lowercased whitespace-split text is returned.
func (t *Tokenizer) Segment(text string, fine bool) (tokens []string) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("tokenizer_panic", slog.String("panic", fmt.Sprint(r)))
			tokens = strings.Fields(strings.ToLower(text))
		}
	}()

	if text == "" {
		return nil
	}

	normalized := width.Fold.String(text)
	for _, r := range splitRuns(normalized, !t.cfg.SplitHyphen) {
		if r.text == "" {
			continue
		}
		switch r.kind {
		case runCJK:
			if t.cjk == nil {
				tokens = append(tokens, r.text)
				continue
			}
			tokens = append(tokens, t.cjk.cut(r.text, fine)...)
		default:
			tokens = append(tokens, strings.ToLower(r.text))
		}
	}

	return t.filterStopWords(tokens)
}

// filterStopWords drops stop words unless that would leave nothing.
func (t *Tokenizer) filterStopWords(tokens []string) []string {
	if t.stopEn == nil && t.stopZh == nil {
		return tokens
	}

	kept := make([]string, 0, len(tokens))
	for _, tok := range tokens {
		f := t.stopEn
		if isCJKToken(tok) {
			f = t.stopZh
		}
		if f != nil && f.isStop(tok) {
			continue
		}
		kept = append(kept, tok)
	}

	if len(kept) == 0 {
		return tokens
	}
	return kept
}

func isCJKToken(tok string) bool {
	r, _ := utf8.DecodeRuneInString(tok)
	return r != utf8.RuneError && isCJK(r)
}
