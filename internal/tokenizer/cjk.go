package tokenizer

import (
	"fmt"
	"strings"

	"github.com/go-ego/gse"
)

// cjkSegmenter wraps a gse maximum-probability segmenter. The dictionary is
// read-only after loading, so cut is safe for concurrent use.
type cjkSegmenter struct {
	seg gse.Segmenter
}

func newCJKSegmenter(dict []byte) (*cjkSegmenter, error) {
	if len(strings.TrimSpace(string(dict))) == 0 {
		return nil, fmt.Errorf("empty CJK dictionary")
	}
	s := &cjkSegmenter{}
	s.seg.SkipLog = true
	if err := s.seg.LoadDictStr(string(dict)); err != nil {
		return nil, fmt.Errorf("load CJK dictionary: %w", err)
	}
	return s, nil
}

// cut segments one CJK run with the dictionary DAG (no HMM). Coarse mode
// returns the most probable segmentation; fine mode also emits the shorter
// dictionary words found inside long ones.
func (s *cjkSegmenter) cut(text string, fine bool) []string {
	var words []string
	if fine {
		words = s.seg.CutSearch(text, false)
	} else {
		words = s.seg.Cut(text, false)
	}

	out := words[:0]
	for _, w := range words {
		if w = strings.TrimSpace(w); w != "" {
			out = append(out, w)
		}
	}
	return out
}
