package rank

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kittclouds/chapterfacts/pkg/fact"
	"github.com/kittclouds/chapterfacts/pkg/factstore"
)

func mk(id string, t fact.MemType, subjects []string, text string, start int, confidence float64) *fact.Fact {
	return &fact.Fact{
		ID:           id,
		MemType:      t,
		Subjects:     subjects,
		Predicate:    "p_" + id,
		Object:       "o",
		FactText:     text,
		Visibility:   fact.DefaultVisibility(t),
		Confidence:   confidence,
		ChapterStart: start,
		IsActive:     true,
		Version:      1,
	}
}

func newRanker(t *testing.T, facts ...*fact.Fact) *Ranker {
	t.Helper()
	s := factstore.New()
	for _, f := range facts {
		require.NoError(t, s.Insert(f))
	}
	r, err := New(s, DefaultParams())
	require.NoError(t, err)
	return r
}

func TestRankPrefersRecentConfidentOverlapping(t *testing.T) {
	pair := []string{"byleth", "dimitri"}
	fresh := mk("fresh", fact.MemInterCharacter, pair, "Byleth and Dimitri had a secret meeting.", 20, 0.95)
	stale := mk("stale", fact.MemInterCharacter, pair, "Rain fell on the garden.", 5, 0.4)
	r := newRanker(t, stale, fresh)

	results := r.Rank("secret meeting Byleth Dimitri", 20, 10)
	require.Len(t, results, 2)
	assert.Equal(t, "fresh", results[0].Fact.ID)
	assert.Equal(t, "stale", results[1].Fact.ID)
	assert.Greater(t, results[0].Score, results[1].Score)
}

func TestScoreComponents(t *testing.T) {
	p := DefaultParams()
	f := mk("w", fact.MemWorld, []string{"world"}, "The company memo circulated.", 4, 0.8)
	r := newRanker(t, f)

	// exact chapter, empty query: 0.3*0.8 + 0.25*1 + 0.25*0.5 + 0.2*0.5
	assert.InDelta(t, 0.24+0.25+0.125+0.1, r.Score(f, "", 4), 1e-9)

	// near band, keyword hit, overlap {company} / {the,company,memo,circulated,policy} = 1/5
	got := r.Score(f, "Company policy?", 6)
	want := p.ConfidenceWeight*0.8 + p.ChapterWeight*0.8 + p.OverlapWeight*0.2 + p.TypeWeight*1.0
	assert.InDelta(t, want, got, 1e-9)

	assert.InDelta(t, p.ChapterWeight*(0.6-1.0), r.Score(f, "", 14)-r.Score(f, "", 4), 1e-9)
	assert.InDelta(t, p.ChapterWeight*(0.4-1.0), r.Score(f, "", 15)-r.Score(f, "", 4), 1e-9)
}

func TestTypeKeywordsAreWholeWords(t *testing.T) {
	f := mk("c", fact.MemCharacterToUser, []string{"dimitri", "user_123"}, "Dimitri confides in the user.", 1, 0.8)
	r := newRanker(t, f)

	hit := r.Score(f, "what did he tell me", 1)
	miss := r.Score(f, "the meeting memo", 1)
	assert.Greater(t, hit, miss, "\"me\" should match but not inside \"meeting\" or \"memo\"")
}

func TestRankHonoursVisibilityAndK(t *testing.T) {
	r := newRanker(t,
		mk("a", fact.MemWorld, []string{"world"}, "Office opened.", 1, 0.9),
		mk("b", fact.MemWorld, []string{"world"}, "Policy changed.", 3, 0.8),
		mk("c", fact.MemWorld, []string{"world"}, "Layoffs began.", 9, 0.7),
	)

	results := r.Rank("", 5, 0)
	assert.Len(t, results, 2, "future facts are never visible")
	for _, res := range results {
		assert.LessOrEqual(t, res.Fact.ChapterStart, 5)
	}

	assert.Len(t, r.Rank("", 9, 1), 1)
}

func TestByCharacterAndByType(t *testing.T) {
	r := newRanker(t,
		mk("a", fact.MemInterCharacter, []string{"byleth", "dimitri"}, "A.", 1, 0.7),
		mk("b", fact.MemInterCharacter, []string{"sylvain", "dimitri"}, "B.", 2, 0.9),
		mk("c", fact.MemInterCharacter, []string{"sylvain", "annette"}, "C.", 2, 0.8),
		mk("w", fact.MemWorld, []string{"world"}, "W.", 1, 0.6),
	)

	got := r.ByCharacter("dimitri", 3, 10)
	require.Len(t, got, 2)
	assert.Equal(t, "b", got[0].ID)
	assert.Equal(t, "a", got[1].ID)

	assert.Len(t, r.ByCharacter("sylvain", 3, 1), 1)

	ic := r.ByType(fact.MemInterCharacter, 3, 10)
	require.Len(t, ic, 3)
	assert.Equal(t, []string{"b", "c", "a"}, []string{ic[0].ID, ic[1].ID, ic[2].ID})
	assert.Len(t, r.ByType(fact.MemWorld, 3, 10), 1)
}
