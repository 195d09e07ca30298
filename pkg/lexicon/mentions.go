package lexicon

import (
	"sort"

	"github.com/cockroachdb/errors"
	"github.com/coregx/ahocorasick"
	"github.com/orsinium-labs/stopwords"

	"github.com/kittclouds/chapterfacts/pkg/pool"
)

// Entity is a character registered for mention detection.
type Entity struct {
	ID      string
	Aliases []string
}

// MentionDictionary finds which registered characters a text refers to.
// A single automaton serves both exact surface lookup and text scanning.
type MentionDictionary struct {
	ac *ahocorasick.Automaton

	// Pattern index -> entity IDs (several entities may share a surface)
	patternToIDs [][]string

	// Canonical surface -> pattern index
	patternIndex map[string]int

	patterns []string

	// Surfaces rejected as stopwords, kept for diagnostics
	dropped []string
}

// CompileMentions builds a MentionDictionary from ids and aliases. A surface
// that is a single English stopword is never registered, otherwise a
// character aliased "will" would be mentioned by every future-tense sentence.
func CompileMentions(entities []Entity) (*MentionDictionary, error) {
	d := &MentionDictionary{patternIndex: make(map[string]int)}
	checker := stopwords.MustGet("en")

	for _, e := range entities {
		surfaces := append([]string{e.ID}, e.Aliases...)
		for _, surface := range surfaces {
			key := Canonicalize(surface)
			if key == "" {
				continue
			}
			if checker.Contains(key) {
				d.dropped = append(d.dropped, key)
				continue
			}
			if idx, ok := d.patternIndex[key]; ok {
				d.patternToIDs[idx] = appendUnique(d.patternToIDs[idx], e.ID)
				continue
			}
			d.patternIndex[key] = len(d.patterns)
			d.patterns = append(d.patterns, key)
			d.patternToIDs = append(d.patternToIDs, []string{e.ID})
		}
	}

	if len(d.patterns) == 0 {
		return d, nil
	}

	automaton, err := ahocorasick.NewBuilder().
		AddStrings(d.patterns).
		SetMatchKind(ahocorasick.LeftmostLongest).
		SetPrefilter(true).
		Build()
	if err != nil {
		return nil, errors.Wrap(err, "lexicon: build mention automaton")
	}
	d.ac = automaton
	return d, nil
}

// Lookup returns the entity IDs registered under an exact surface form.
func (d *MentionDictionary) Lookup(surface string) []string {
	idx, ok := d.patternIndex[Canonicalize(surface)]
	if !ok {
		return nil
	}
	return append([]string(nil), d.patternToIDs[idx]...)
}

// Dropped lists surfaces that were skipped because they are stopwords.
func (d *MentionDictionary) Dropped() []string {
	return append([]string(nil), d.dropped...)
}

// Mentions returns the sorted, de-duplicated IDs of every entity whose id or
// alias appears in text on word boundaries.
func (d *MentionDictionary) Mentions(text string) []string {
	if d == nil || d.ac == nil {
		return nil
	}
	haystack := []byte(Canonicalize(text))

	scratch := pool.GetStrings()
	defer func() { pool.PutStrings(scratch) }()
	for _, m := range d.ac.FindAllOverlapping(haystack) {
		if m.PatternID < 0 || m.PatternID >= len(d.patternToIDs) {
			continue
		}
		if !onWordBoundary(haystack, m.Start, m.End) {
			continue
		}
		for _, id := range d.patternToIDs[m.PatternID] {
			scratch = appendUnique(scratch, id)
		}
	}

	out := append([]string(nil), scratch...)
	sort.Strings(out)
	return out
}

// Mentioned reports whether text refers to the given entity.
func (d *MentionDictionary) Mentioned(text, id string) bool {
	for _, got := range d.Mentions(text) {
		if got == id {
			return true
		}
	}
	return false
}

func appendUnique(slice []string, s string) []string {
	for _, existing := range slice {
		if existing == s {
			return slice
		}
	}
	return append(slice, s)
}
