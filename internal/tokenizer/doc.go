// Package tokenizer segments note text into searchable terms.
//
// Text is split into script runs first. Latin-derived runs are split on
// whitespace and punctuation and lowercased; CJK runs go through a
// dictionary segmenter, coarse for indexing and fine for queries. A Latin
// run and an adjacent CJK run never end up in the same token.
//
// Without a CJK dictionary the tokenizer runs in degraded mode and emits
// each CJK run as a single token.
package tokenizer
