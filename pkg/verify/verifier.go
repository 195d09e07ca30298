// Package verify scans a store snapshot for violations of the temporal and
// knowledge-boundary invariants. It never modifies the store.
package verify

import (
	"fmt"
	"sort"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/kittclouds/chapterfacts/pkg/fact"
	"github.com/kittclouds/chapterfacts/pkg/factstore"
	"github.com/kittclouds/chapterfacts/pkg/lexicon"
	"github.com/kittclouds/chapterfacts/pkg/logger"
)

// Params configures the lexicons and the pseudo-entities to ignore.
type Params struct {
	FutureMarkers   []string
	AsymmetricTerms []string

	// ExcludedSubjects never count as characters (world and user ids).
	ExcludedSubjects []string

	// Aliases maps character ids to extra names used when looking for
	// mentions in fact text.
	Aliases map[string][]string

	// Concurrent runs the four scans in parallel.
	Concurrent bool
}

// DefaultParams returns the stock lexicons.
func DefaultParams() Params {
	return Params{
		FutureMarkers: []string{
			"will", "going to", "plan to", "intend to", "future", "upcoming",
			"next week", "next month", "next year", "tomorrow", "later",
		},
		AsymmetricTerms: []string{
			"likes", "hates", "loves", "dislikes", "admires", "despises",
			"trusts", "distrusts", "respects", "disrespects",
		},
		ExcludedSubjects: []string{"world", "user_123"},
		Concurrent:       true,
	}
}

// Verifier runs the consistency scans.
type Verifier struct {
	store    *factstore.Store
	params   Params
	excluded map[string]bool
	log      *zap.SugaredLogger
}

// New creates a verifier over store.
func New(store *factstore.Store, params Params) *Verifier {
	excluded := make(map[string]bool, len(params.ExcludedSubjects))
	for _, id := range params.ExcludedSubjects {
		excluded[id] = true
	}
	return &Verifier{
		store:    store,
		params:   params,
		excluded: excluded,
		log:      logger.Named("verify"),
	}
}

// RunAll takes a snapshot of the store and runs every scan over it.
func (v *Verifier) RunAll() (*Report, error) {
	snapshot := v.store.All()
	report := &Report{}

	scans := []func() error{
		func() (err error) {
			report.TimeOverlapConflicts = v.timeOverlaps(snapshot)
			return nil
		},
		func() (err error) {
			report.WorldFutureLeaks, err = v.futureLeaks(snapshot)
			return err
		},
		func() (err error) {
			report.CrosstalkViolations, err = v.crosstalk(snapshot)
			return err
		},
		func() (err error) {
			report.SymmetryViolations, err = v.symmetry(snapshot)
			return err
		},
	}

	if v.params.Concurrent {
		var g errgroup.Group
		for _, scan := range scans {
			g.Go(scan)
		}
		if err := g.Wait(); err != nil {
			return nil, err
		}
	} else {
		for _, scan := range scans {
			if err := scan(); err != nil {
				return nil, err
			}
		}
	}

	report.summarize()
	v.log.Infow("verification finished",
		logger.FieldCount, len(snapshot),
		"total_conflicts", report.Summary.TotalConflicts,
	)
	return report, nil
}

// timeOverlaps groups active records by canonical key and reports every
// pair in a group with differing start chapters.
func (v *Verifier) timeOverlaps(snapshot []*fact.Fact) []TimeOverlapConflict {
	var order []fact.Key
	groups := make(map[fact.Key][]*fact.Fact)
	for _, f := range snapshot {
		if !f.IsActive {
			continue
		}
		k := f.Key()
		if _, seen := groups[k]; !seen {
			order = append(order, k)
		}
		groups[k] = append(groups[k], f)
	}

	out := []TimeOverlapConflict{}
	for _, k := range order {
		group := groups[k]
		for i := 0; i < len(group); i++ {
			for j := i + 1; j < len(group); j++ {
				a, b := group[i], group[j]
				if a.ChapterStart == b.ChapterStart {
					continue
				}
				out = append(out, TimeOverlapConflict{
					Type:           KindTimeOverlap,
					Memory1ID:      a.ID,
					Memory2ID:      b.ID,
					CanonicalKey:   k,
					Memory1Chapter: a.ChapterStart,
					Memory2Chapter: b.ChapterStart,
					Memory1Fact:    a.FactText,
					Memory2Fact:    b.FactText,
					Description:    fmt.Sprintf("Same fact appears in chapters %d and %d", a.ChapterStart, b.ChapterStart),
				})
			}
		}
	}
	return out
}

// futureLeaks reports active world records whose text carries a futurity
// marker, at most once per record.
func (v *Verifier) futureLeaks(snapshot []*fact.Fact) ([]WorldFutureLeak, error) {
	markers, err := lexicon.Compile(v.params.FutureMarkers)
	if err != nil {
		return nil, errors.Wrap(err, "future markers")
	}

	out := []WorldFutureLeak{}
	for _, f := range snapshot {
		if !f.IsActive || f.MemType != fact.MemWorld {
			continue
		}
		marker, ok := markers.FirstMatch(f.FactText)
		if !ok {
			continue
		}
		out = append(out, WorldFutureLeak{
			Type:            KindFutureLeak,
			MemoryID:        f.ID,
			CanonicalKey:    f.Key(),
			Chapter:         f.ChapterStart,
			FactText:        f.FactText,
			FutureIndicator: marker,
			Description:     fmt.Sprintf("World memory contains future reference: '%s'", marker),
		})
	}
	return out, nil
}

// crosstalk reports, once per (record, character, referenced character),
// a record whose text names a character with a private user-directed
// record in a later chapter. The earliest such chapter is cited.
func (v *Verifier) crosstalk(snapshot []*fact.Fact) ([]CrosstalkViolation, error) {
	// character -> sorted distinct chapters of its active private records
	private := make(map[string][]int)
	for _, f := range snapshot {
		if !f.IsActive || f.MemType != fact.MemCharacterToUser {
			continue
		}
		for _, s := range f.Subjects {
			if v.excluded[s] {
				continue
			}
			private[s] = insertSorted(private[s], f.ChapterStart)
		}
	}

	out := []CrosstalkViolation{}
	if len(private) == 0 {
		return out, nil
	}

	entities := make([]lexicon.Entity, 0, len(private))
	for id := range private {
		entities = append(entities, lexicon.Entity{ID: id, Aliases: v.params.Aliases[id]})
	}
	sort.Slice(entities, func(i, j int) bool { return entities[i].ID < entities[j].ID })
	mentions, err := lexicon.CompileMentions(entities)
	if err != nil {
		return nil, errors.Wrap(err, "mention dictionary")
	}

	for _, f := range snapshot {
		if !f.IsActive {
			continue
		}
		named := mentions.Mentions(f.FactText)
		if len(named) == 0 {
			continue
		}
		seen := make(map[string]bool, len(f.Subjects))
		for _, character := range f.Subjects {
			if v.excluded[character] || seen[character] {
				continue
			}
			seen[character] = true

			for _, other := range named {
				if other == character {
					continue
				}
				chapters := private[other]
				i := sort.SearchInts(chapters, f.ChapterStart+1)
				if i == len(chapters) {
					continue
				}
				out = append(out, CrosstalkViolation{
					Type:                KindCrosstalk,
					MemoryID:            f.ID,
					Character:           character,
					Chapter:             f.ChapterStart,
					ReferencedCharacter: other,
					ReferencedChapter:   chapters[i],
					FactText:            f.FactText,
					Description: fmt.Sprintf("Character %s at chapter %d references future private information about %s",
						character, f.ChapterStart, other),
				})
			}
		}
	}
	return out, nil
}

// symmetry groups active two-subject intercharacter records by unordered
// pair. A pair with a single record carrying an asymmetric term has no
// reciprocal record in either direction and is reported.
func (v *Verifier) symmetry(snapshot []*fact.Fact) ([]SymmetryViolation, error) {
	terms, err := lexicon.Compile(v.params.AsymmetricTerms)
	if err != nil {
		return nil, errors.Wrap(err, "asymmetric terms")
	}

	var order []string
	pairs := make(map[string][]*fact.Fact)
	for _, f := range snapshot {
		if !f.IsActive || f.MemType != fact.MemInterCharacter || len(f.Subjects) != 2 {
			continue
		}
		a, b := f.Subjects[0], f.Subjects[1]
		if b < a {
			a, b = b, a
		}
		key := a + "::" + b
		if _, seen := pairs[key]; !seen {
			order = append(order, key)
		}
		pairs[key] = append(pairs[key], f)
	}

	out := []SymmetryViolation{}
	for _, key := range order {
		group := pairs[key]
		if len(group) != 1 {
			continue
		}
		f := group[0]
		term, ok := terms.FirstMatch(f.FactText)
		if !ok {
			continue
		}
		a, b := f.Subjects[0], f.Subjects[1]
		if b < a {
			a, b = b, a
		}
		out = append(out, SymmetryViolation{
			Type:                KindSymmetry,
			MemoryID:            f.ID,
			RelationshipKey:     key,
			Character1:          a,
			Character2:          b,
			FactText:            f.FactText,
			AsymmetricIndicator: term,
			Description:         fmt.Sprintf("Asymmetric relationship: %s %s %s but no reciprocal memory found", a, term, b),
		})
	}
	return out, nil
}

func insertSorted(xs []int, x int) []int {
	i := sort.SearchInts(xs, x)
	if i < len(xs) && xs[i] == x {
		return xs
	}
	xs = append(xs, 0)
	copy(xs[i+1:], xs[i:])
	xs[i] = x
	return xs
}
