package verify

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kittclouds/chapterfacts/pkg/fact"
	"github.com/kittclouds/chapterfacts/pkg/factstore"
)

func mk(id string, t fact.MemType, subjects []string, pred, text string, start int) *fact.Fact {
	return &fact.Fact{
		ID:           id,
		MemType:      t,
		Subjects:     subjects,
		Predicate:    pred,
		Object:       "o",
		FactText:     text,
		Visibility:   fact.DefaultVisibility(t),
		Confidence:   0.9,
		ChapterStart: start,
		IsActive:     true,
		Version:      1,
	}
}

func run(t *testing.T, concurrent bool, facts ...*fact.Fact) *Report {
	t.Helper()
	s := factstore.New()
	for _, f := range facts {
		require.NoError(t, s.Insert(f))
	}
	p := DefaultParams()
	p.Concurrent = concurrent
	report, err := New(s, p).RunAll()
	require.NoError(t, err)
	return report
}

func TestEmptyStoreIsClean(t *testing.T) {
	report := run(t, true)
	assert.True(t, report.Clean())
	assert.Empty(t, report.TimeOverlapConflicts)
	assert.Empty(t, report.CrosstalkViolations)
}

func TestTimeOverlap(t *testing.T) {
	pair := []string{"byleth", "dimitri"}
	a := mk("a", fact.MemInterCharacter, pair, "trust_level", "Byleth and Dimitri trust each other.", 3)
	b := mk("b", fact.MemInterCharacter, pair, "trust_level", "Byleth and Dimitri still trust each other.", 7)

	report := run(t, false, a, b)
	require.Len(t, report.TimeOverlapConflicts, 1)
	c := report.TimeOverlapConflicts[0]
	assert.Equal(t, KindTimeOverlap, c.Type)
	assert.Equal(t, "a", c.Memory1ID)
	assert.Equal(t, "b", c.Memory2ID)
	assert.Equal(t, 3, c.Memory1Chapter)
	assert.Equal(t, 7, c.Memory2Chapter)
	assert.Equal(t, "Same fact appears in chapters 3 and 7", c.Description)

	// b supersedes a: only one active record remains for the key
	b2 := mk("b", fact.MemInterCharacter, pair, "trust_level", "Byleth and Dimitri still trust each other.", 7)
	b2.Version = 2
	b2.Supersedes = fact.StringPtr("a")
	report = run(t, false, mk("a", fact.MemInterCharacter, pair, "trust_level", "Byleth and Dimitri trust each other.", 3), b2)
	assert.Empty(t, report.TimeOverlapConflicts)
}

func TestTimeOverlapIgnoresSameChapter(t *testing.T) {
	w := []string{"world"}
	report := run(t, false,
		mk("a", fact.MemWorld, w, "company_policy", "Remote work is allowed.", 4),
		mk("b", fact.MemWorld, w, "company_policy", "Remote work is permitted.", 4),
	)
	assert.Empty(t, report.TimeOverlapConflicts)
}

func TestWorldFutureLeak(t *testing.T) {
	w := []string{"world"}
	report := run(t, true,
		mk("leak", fact.MemWorld, w, "company_policy", "The company will announce layoffs next month.", 2),
		mk("past", fact.MemWorld, w, "company_status", "The company announced layoffs.", 3),
		mk("willow", fact.MemWorld, w, "office_location", "The office sits by the willow tree.", 3),
	)
	require.Len(t, report.WorldFutureLeaks, 1)
	leak := report.WorldFutureLeaks[0]
	assert.Equal(t, "leak", leak.MemoryID)
	assert.Equal(t, "will", leak.FutureIndicator, "first marker in lexicon order")
	assert.Equal(t, "World memory contains future reference: 'will'", leak.Description)
}

func TestFutureMarkersOnlyApplyToWorld(t *testing.T) {
	report := run(t, false,
		mk("ic", fact.MemInterCharacter, []string{"sylvain", "annette"}, "plans", "Sylvain will visit Annette tomorrow.", 2),
	)
	assert.Empty(t, report.WorldFutureLeaks)
}

func TestSymmetry(t *testing.T) {
	lone := mk("s1", fact.MemInterCharacter, []string{"sylvain", "annette"}, "trust_level", "Sylvain trusts Annette.", 2)

	report := run(t, false, lone)
	require.Len(t, report.SymmetryViolations, 1)
	v := report.SymmetryViolations[0]
	assert.Equal(t, "annette::sylvain", v.RelationshipKey)
	assert.Equal(t, "annette", v.Character1)
	assert.Equal(t, "sylvain", v.Character2)
	assert.Equal(t, "trusts", v.AsymmetricIndicator)

	reverse := mk("s2", fact.MemInterCharacter, []string{"annette", "sylvain"}, "trust_level", "Annette is wary of Sylvain.", 2)
	report = run(t, false,
		mk("s1", fact.MemInterCharacter, []string{"sylvain", "annette"}, "trust_level", "Sylvain trusts Annette.", 2),
		reverse,
	)
	assert.Empty(t, report.SymmetryViolations)
}

func TestSymmetryNeedsAsymmetricTerm(t *testing.T) {
	report := run(t, false,
		mk("m", fact.MemInterCharacter, []string{"byleth", "dimitri"}, "meeting", "Byleth met Dimitri at the gate.", 1),
	)
	assert.Empty(t, report.SymmetryViolations)
}

func TestCrosstalk(t *testing.T) {
	early := mk("ic", fact.MemInterCharacter, []string{"byleth", "dimitri"}, "worry", "Byleth and Dimitri worry about Sylvain.", 3)
	private := mk("c2u", fact.MemCharacterToUser, []string{"sylvain", "user_123"}, "confides_in", "Sylvain confided in the user.", 6)
	later := mk("c2u2", fact.MemCharacterToUser, []string{"sylvain", "user_123"}, "secret", "Sylvain shared a secret with the user.", 9)

	report := run(t, true, early, private, later)
	require.Len(t, report.CrosstalkViolations, 2, "one per subject of the record")
	for _, v := range report.CrosstalkViolations {
		assert.Equal(t, "ic", v.MemoryID)
		assert.Equal(t, "sylvain", v.ReferencedCharacter)
		assert.Equal(t, 6, v.ReferencedChapter, "earliest later chapter is cited")
		assert.Equal(t, 3, v.Chapter)
	}
	assert.Equal(t, "byleth", report.CrosstalkViolations[0].Character)
	assert.Equal(t, "dimitri", report.CrosstalkViolations[1].Character)
	assert.Equal(t, "Character byleth at chapter 3 references future private information about sylvain",
		report.CrosstalkViolations[0].Description)
}

func TestCrosstalkAllowsPastPrivateKnowledge(t *testing.T) {
	report := run(t, false,
		mk("c2u", fact.MemCharacterToUser, []string{"sylvain", "user_123"}, "confides_in", "Sylvain confided in the user.", 2),
		mk("ic", fact.MemInterCharacter, []string{"byleth", "dimitri"}, "worry", "Byleth and Dimitri worry about Sylvain.", 3),
	)
	assert.Empty(t, report.CrosstalkViolations)
}

func TestCrosstalkUsesAliases(t *testing.T) {
	s := factstore.New()
	require.NoError(t, s.Insert(mk("ic", fact.MemInterCharacter, []string{"byleth", "dimitri"}, "worry", "Byleth asked about the Professor.", 1)))
	require.NoError(t, s.Insert(mk("c2u", fact.MemCharacterToUser, []string{"professor", "user_123"}, "confides_in", "The professor confided in the user.", 4)))

	p := DefaultParams()
	p.Aliases = map[string][]string{"professor": {"Professor", "Prof"}}
	report, err := New(s, p).RunAll()
	require.NoError(t, err)
	assert.Len(t, report.CrosstalkViolations, 2)
}

func TestSummaryAndJSONShape(t *testing.T) {
	w := []string{"world"}
	report := run(t, true,
		mk("leak", fact.MemWorld, w, "company_policy", "Layoffs are upcoming.", 1),
		mk("s1", fact.MemInterCharacter, []string{"sylvain", "annette"}, "trust_level", "Sylvain loves Annette.", 2),
	)
	assert.Equal(t, 2, report.Summary.TotalConflicts)
	assert.Equal(t, 1, report.Summary.WorldFutureLeaks)
	assert.Equal(t, 1, report.Summary.SymmetryViolations)
	assert.False(t, report.Clean())

	raw, err := json.Marshal(report)
	require.NoError(t, err)
	var decoded map[string]any
	require.NoError(t, json.Unmarshal(raw, &decoded))
	for _, key := range []string{"time_overlap_conflicts", "world_future_leaks", "crosstalk_violations", "symmetry_violations", "summary"} {
		assert.Contains(t, decoded, key)
	}
	assert.Equal(t, []any{}, decoded["time_overlap_conflicts"], "empty classes encode as arrays")
}
