// Package lexicon provides word-bounded phrase matching over fact text using
// a single Aho-Corasick automaton per lexicon, plus the tokenizer used for
// lexical overlap scoring.
package lexicon

import (
	"strings"
	"unicode"

	"github.com/kittclouds/chapterfacts/pkg/pool"
)

// Canonicalize transforms text into the normalized form used for BOTH pattern
// compilation and text scanning:
//   - fold to lowercase
//   - keep letters and digits
//   - replace every other run of characters with a single space
//   - trim leading and trailing spaces
//
// "Dimitri's plan" becomes "dimitri s plan", so the mention "dimitri" still
// matches on a word boundary.
func Canonicalize(s string) string {
	var out strings.Builder
	out.Grow(len(s))

	lastWasSpace := true // start true to trim leading spaces
	for _, ch := range s {
		c := unicode.ToLower(ch)
		if unicode.IsLetter(c) || unicode.IsDigit(c) {
			out.WriteRune(c)
			lastWasSpace = false
			continue
		}
		if !lastWasSpace {
			out.WriteByte(' ')
			lastWasSpace = true
		}
	}

	result := out.String()
	if len(result) > 0 && result[len(result)-1] == ' ' {
		result = result[:len(result)-1]
	}
	return result
}

// onWordBoundary reports whether haystack[start:end] is delimited by spaces
// or the ends of the canonical text.
func onWordBoundary(haystack []byte, start, end int) bool {
	if start < 0 || end > len(haystack) || start >= end {
		return false
	}
	if start > 0 && haystack[start-1] != ' ' {
		return false
	}
	if end < len(haystack) && haystack[end] != ' ' {
		return false
	}
	return true
}

// Tokenize lowercases text, strips punctuation (anything that is not a
// letter, digit, underscore or whitespace) and splits on whitespace.
// Punctuation is removed rather than replaced, so "don't" yields "dont".
func Tokenize(text string) []string {
	var b strings.Builder
	b.Grow(len(text))
	for _, ch := range strings.ToLower(text) {
		if unicode.IsLetter(ch) || unicode.IsDigit(ch) || ch == '_' || unicode.IsSpace(ch) {
			b.WriteRune(ch)
		}
	}
	return strings.Fields(b.String())
}

// Similarity is the Jaccard similarity of the Tokenize word sets of a and
// b. It is 0 when either side has no words.
func Similarity(a, b string) float64 {
	left := pool.GetTokenSet()
	defer pool.PutTokenSet(left)
	for _, tok := range Tokenize(a) {
		left[tok] = struct{}{}
	}
	right := pool.GetTokenSet()
	defer pool.PutTokenSet(right)
	for _, tok := range Tokenize(b) {
		right[tok] = struct{}{}
	}
	if len(left) == 0 || len(right) == 0 {
		return 0
	}

	inter := 0
	for tok := range left {
		if _, ok := right[tok]; ok {
			inter++
		}
	}
	return float64(inter) / float64(len(left)+len(right)-inter)
}
