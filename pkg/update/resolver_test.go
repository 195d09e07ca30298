package update

import (
	"bytes"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kittclouds/chapterfacts/pkg/fact"
	"github.com/kittclouds/chapterfacts/pkg/factstore"
)

func candidate(text string, confidence float64) *fact.Fact {
	return &fact.Fact{
		MemType:    fact.MemInterCharacter,
		Subjects:   []string{"dimitri", "byleth"},
		Predicate:  "relationship_status",
		Object:     "started_affair",
		FactText:   text,
		Confidence: confidence,
		Provenance: fact.Provenance{Source: "synopsis"},
	}
}

func stored(id string, start int, confidence float64) *fact.Fact {
	f := candidate("Byleth and Dimitri began an affair.", confidence)
	f.ID = id
	f.ChapterStart = start
	f.Visibility = fact.VisibilityShared
	f.IsActive = true
	f.Version = 1
	return f
}

func newResolver(t *testing.T, s *factstore.Store, params Params) *Resolver {
	t.Helper()
	n := 0
	return NewResolver(s, params,
		WithIDGenerator(func() string {
			n++
			return fmt.Sprintf("n%d", n)
		}),
		WithClock(func() time.Time { return time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC) }),
	)
}

func TestScore(t *testing.T) {
	p := DefaultParams()
	existing := stored("e", 3, 0.7)

	c := candidate("x", 0.9)
	c.ChapterStart = 7
	assert.InDelta(t, 0.27+0.2+0.2, p.Score(c, existing), 1e-9)

	c.ChapterStart = 4
	c.Confidence = 0.5
	assert.InDelta(t, 0.15+0.05, p.Score(c, existing), 1e-9)

	c.ChapterStart = 20
	c.Confidence = 1.0
	assert.InDelta(t, 0.8, p.Score(c, existing), 1e-9)

	p.ConfidenceWeight = 5
	assert.Equal(t, 1.0, p.Score(c, existing), "score is clamped")
}

func TestReason(t *testing.T) {
	assert.Equal(t, "high_confidence_update", Reason(0.85))
	assert.Equal(t, "moderate_update", Reason(0.67))
	assert.Equal(t, "low_confidence_update", Reason(0.6))
}

func TestCreateWhenNothingMatches(t *testing.T) {
	s := factstore.New()
	r := newResolver(t, s, DefaultParams())

	d, err := r.Resolve(candidate("Byleth and Dimitri began an affair.", 0.8), 3)
	require.NoError(t, err)
	assert.Equal(t, ActionCreate, d.Action)
	require.NotNil(t, d.Record)

	rec := d.Record
	assert.Equal(t, "n1", rec.ID)
	assert.Equal(t, 1, rec.Version)
	assert.True(t, rec.IsActive)
	assert.Nil(t, rec.ChapterEnd)
	assert.Nil(t, rec.Supersedes)
	assert.Equal(t, 3, rec.ChapterStart)
	assert.Equal(t, 3, rec.Provenance.Chapter)
	assert.Equal(t, fact.VisibilityShared, rec.Visibility)
	assert.Equal(t, 1, s.Len())
}

func TestSupersede(t *testing.T) {
	s := factstore.New()
	require.NoError(t, s.Insert(stored("e", 3, 0.7)))
	r := newResolver(t, s, DefaultParams())

	d, err := r.Resolve(candidate("Byleth and Dimitri acknowledge the affair.", 0.9), 7)
	require.NoError(t, err)
	require.Equal(t, ActionSupersede, d.Action)

	existing, next := d.Existing, d.Record
	assert.False(t, existing.IsActive)
	require.NotNil(t, existing.ChapterEnd)
	assert.Equal(t, next.ChapterStart-1, *existing.ChapterEnd)
	require.NotNil(t, existing.SupersededBy)
	assert.Equal(t, next.ID, *existing.SupersededBy)
	require.NotNil(t, next.Supersedes)
	assert.Equal(t, existing.ID, *next.Supersedes)
	assert.Equal(t, existing.Version+1, next.Version)

	assert.Equal(t, "Byleth and Dimitri acknowledge the affair.", next.FactText)
	assert.Equal(t, 0.9, next.Confidence)
	assert.Equal(t, "moderate_update", next.UpdateReason)
	require.NotNil(t, next.UpdateConfidence)
	assert.Equal(t, 0.9, *next.UpdateConfidence)

	chain, err := s.EvolutionChain(next.ID)
	require.NoError(t, err)
	require.Len(t, chain, 2)
	assert.Equal(t, "e", chain[0].ID)
	assert.Equal(t, next.ID, chain[1].ID)
	assert.Less(t, chain[0].ChapterStart, chain[1].ChapterStart)

	cur, ok := s.Current(next.Key())
	require.True(t, ok)
	assert.Equal(t, next.ID, cur.ID)
}

func TestLowScoreCreatesParallelRecord(t *testing.T) {
	s := factstore.New()
	require.NoError(t, s.Insert(stored("e", 3, 0.9)))
	r := newResolver(t, s, DefaultParams())

	d, err := r.Resolve(candidate("Rumour of an affair.", 0.5), 4)
	require.NoError(t, err)
	assert.Equal(t, ActionCreate, d.Action)
	assert.InDelta(t, 0.2, d.Score, 1e-9)
	assert.Len(t, s.FindByCanonicalKey(d.Record.Key()), 2)
}

func TestOnlyEarlierRecordsAreCandidates(t *testing.T) {
	s := factstore.New()
	require.NoError(t, s.Insert(stored("e", 5, 0.5)))
	r := newResolver(t, s, DefaultParams())

	d, err := r.Resolve(candidate("Same chapter observation.", 1.0), 5)
	require.NoError(t, err)
	assert.Equal(t, ActionCreate, d.Action)
}

func TestTieBreak(t *testing.T) {
	setup := func() *factstore.Store {
		s := factstore.New()
		require.NoError(t, s.Insert(stored("e2", 2, 0.5)))
		require.NoError(t, s.Insert(stored("e1", 2, 0.5)))
		return s
	}

	t.Run("earliest", func(t *testing.T) {
		r := newResolver(t, setup(), DefaultParams())
		d, err := r.Resolve(candidate("Affair confirmed.", 0.9), 8)
		require.NoError(t, err)
		require.Equal(t, ActionSupersede, d.Action)
		assert.Equal(t, "e1", d.Existing.ID)
	})

	t.Run("strict", func(t *testing.T) {
		p := DefaultParams()
		p.TieBreak = TieBreakStrict
		s := setup()
		r := newResolver(t, s, p)

		d, err := r.Resolve(candidate("Affair confirmed.", 0.9), 8)
		var ambiguous *fact.AmbiguousUpdateError
		require.True(t, errors.As(err, &ambiguous))
		assert.Equal(t, []string{"e1", "e2"}, ambiguous.TiedIDs)
		assert.Equal(t, ActionDiscard, d.Action)
		assert.Nil(t, d.Record)
		assert.Equal(t, 2, s.Len())
	})
}

func TestMalformedCandidateIsDiscarded(t *testing.T) {
	s := factstore.New()
	r := newResolver(t, s, DefaultParams())

	bad := candidate("", 0.8)
	_, err := r.Resolve(bad, 2)
	var malformed *fact.MalformedRecordError
	require.True(t, errors.As(err, &malformed))
	assert.Equal(t, "fact_text", malformed.Field)

	_, err = r.Resolve(candidate("Valid text.", 0.8), 0)
	assert.Error(t, err)

	_, err = r.Resolve(nil, 2)
	assert.Error(t, err)

	assert.Equal(t, 0, s.Len())
	assert.Equal(t, 3, r.Journal().Counts()[ActionDiscard])
}

func TestJournal(t *testing.T) {
	s := factstore.New()
	r := newResolver(t, s, DefaultParams())

	long := strings.Repeat("a", 80)
	_, err := r.Resolve(candidate(long, 0.7), 1)
	require.NoError(t, err)
	_, err = r.Resolve(candidate("Affair acknowledged at last.", 0.9), 6)
	require.NoError(t, err)

	entries := r.Journal().Entries()
	require.Len(t, entries, 2)
	assert.Equal(t, ActionCreate, entries[0].Action)
	assert.Equal(t, strings.Repeat("a", 50)+"...", entries[0].FactText)
	assert.Equal(t, ActionSupersede, entries[1].Action)
	assert.Equal(t, "n1", entries[1].ExistingID)
	assert.Equal(t, "n2", entries[1].ResultID)
	assert.Equal(t, 6, entries[1].Chapter)

	var buf bytes.Buffer
	require.NoError(t, r.Journal().WriteJSONL(&buf))
	assert.Equal(t, 2, strings.Count(buf.String(), "\n"))
	assert.Contains(t, buf.String(), `"action":"supersede"`)

	r.Journal().Clear()
	assert.Empty(t, r.Journal().Entries())
}

func TestDecisionCarriesStoredRecords(t *testing.T) {
	s := factstore.New()
	r := newResolver(t, s, DefaultParams())

	created, err := r.Resolve(candidate("Byleth and Dimitri began an affair.", 0.6), 1)
	require.NoError(t, err)
	require.NotNil(t, created.Record)
	assert.Equal(t, "n1", created.Record.ID)
	assert.Nil(t, created.Existing)

	updated, err := r.Resolve(candidate("The affair is out in the open.", 0.95), 6)
	require.NoError(t, err)
	require.Equal(t, ActionSupersede, updated.Action)
	require.NotNil(t, updated.Record)
	require.NotNil(t, updated.Existing)
	assert.Equal(t, "n2", updated.Record.ID)
	assert.False(t, updated.Existing.IsActive)
}

func TestFailedInsertDiscardsWithoutRecord(t *testing.T) {
	s := factstore.New()
	r := NewResolver(s, DefaultParams(), WithIDGenerator(func() string { return "same" }))

	_, err := r.Resolve(candidate("Byleth and Dimitri began an affair.", 0.8), 1)
	require.NoError(t, err)

	other := candidate("Dimitri confessed to Byleth.", 0.8)
	other.Object = "confessed"
	decision, err := r.Resolve(other, 2)
	var dup *fact.DuplicateIDError
	require.True(t, errors.As(err, &dup), "got %v", err)
	assert.Equal(t, ActionDiscard, decision.Action)
	assert.Nil(t, decision.Record)
	assert.Equal(t, 1, s.Len())
}

func TestSupersedeMergesAttrs(t *testing.T) {
	s := factstore.New()
	r := newResolver(t, s, DefaultParams())

	first := candidate("Byleth and Dimitri began an affair.", 0.6)
	first.Attrs = map[string]any{"language": "en", "source_line": float64(12)}
	_, err := r.Resolve(first, 1)
	require.NoError(t, err)

	next := candidate("The affair is out in the open.", 0.95)
	next.Attrs = map[string]any{"source_line": float64(40)}
	decision, err := r.Resolve(next, 6)
	require.NoError(t, err)
	require.Equal(t, ActionSupersede, decision.Action)
	assert.Equal(t, map[string]any{"language": "en", "source_line": float64(40)}, decision.Record.Attrs)
}
