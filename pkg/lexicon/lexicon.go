package lexicon

import (
	"github.com/cockroachdb/errors"
	"github.com/coregx/ahocorasick"
)

// Lexicon is an ordered list of phrases compiled into one automaton.
// Order matters: FirstMatch reports the earliest-listed phrase present in
// the text, not the leftmost occurrence.
type Lexicon struct {
	ac *ahocorasick.Automaton

	// phrases in caller order, as given
	phrases []string

	// pattern index -> phrase index (duplicate phrases collapse)
	patternToPhrase []int
}

// Compile builds a Lexicon. Phrases that canonicalize to nothing are ignored.
func Compile(phrases []string) (*Lexicon, error) {
	lex := &Lexicon{phrases: append([]string(nil), phrases...)}

	seen := make(map[string]bool, len(phrases))
	patterns := make([]string, 0, len(phrases))
	for i, p := range phrases {
		key := Canonicalize(p)
		if key == "" || seen[key] {
			continue
		}
		seen[key] = true
		patterns = append(patterns, key)
		lex.patternToPhrase = append(lex.patternToPhrase, i)
	}

	if len(patterns) == 0 {
		return lex, nil
	}

	automaton, err := ahocorasick.NewBuilder().
		AddStrings(patterns).
		SetMatchKind(ahocorasick.LeftmostLongest).
		SetPrefilter(true).
		Build()
	if err != nil {
		return nil, errors.Wrap(err, "lexicon: build automaton")
	}
	lex.ac = automaton
	return lex, nil
}

// MustCompile is Compile for package-level lexicons with fixed phrases.
func MustCompile(phrases []string) *Lexicon {
	lex, err := Compile(phrases)
	if err != nil {
		panic(err)
	}
	return lex
}

// Phrases returns the phrases in their original order.
func (l *Lexicon) Phrases() []string {
	return append([]string(nil), l.phrases...)
}

// FirstMatch returns the earliest-listed phrase that occurs in text on word
// boundaries.
func (l *Lexicon) FirstMatch(text string) (string, bool) {
	best := -1
	for _, idx := range l.matchedPhrases(text) {
		if best == -1 || idx < best {
			best = idx
		}
	}
	if best == -1 {
		return "", false
	}
	return l.phrases[best], true
}

// Contains reports whether any phrase occurs in text.
func (l *Lexicon) Contains(text string) bool {
	return len(l.matchedPhrases(text)) > 0
}

func (l *Lexicon) matchedPhrases(text string) []int {
	if l == nil || l.ac == nil {
		return nil
	}
	haystack := []byte(Canonicalize(text))

	matches := l.ac.FindAllOverlapping(haystack)
	out := make([]int, 0, len(matches))
	for _, m := range matches {
		if m.PatternID < 0 || m.PatternID >= len(l.patternToPhrase) {
			continue
		}
		// "later" must not fire inside "translater"
		if !onWordBoundary(haystack, m.Start, m.End) {
			continue
		}
		out = append(out, l.patternToPhrase[m.PatternID])
	}
	return out
}
