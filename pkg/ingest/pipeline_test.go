package ingest

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kittclouds/chapterfacts/pkg/fact"
	"github.com/kittclouds/chapterfacts/pkg/factstore"
	"github.com/kittclouds/chapterfacts/pkg/update"
	"github.com/kittclouds/chapterfacts/pkg/vocab"
)

func newPipeline(t *testing.T) (*Pipeline, *factstore.Store, *update.Resolver) {
	t.Helper()
	s := factstore.New()
	n := 0
	r := update.NewResolver(s, update.DefaultParams(), update.WithIDGenerator(func() string {
		n++
		return fmt.Sprintf("m%d", n)
	}))
	return NewPipeline(vocab.Default(), r, s), s, r
}

func ic(subjects []string, pred, obj, text string, confidence float64) *fact.Fact {
	return &fact.Fact{
		MemType:    fact.MemInterCharacter,
		Subjects:   subjects,
		Predicate:  pred,
		Object:     obj,
		FactText:   text,
		Confidence: confidence,
	}
}

func storyBatches() []Batch {
	pair := []string{"Byleth", "Dimitri"}
	return []Batch{
		{Chapter: 1, Candidates: []*fact.Fact{
			ic(pair, "relationship_status", "started_affair", "Byleth and Dimitri began an affair.", 0.9),
			{
				MemType:    fact.MemWorld,
				Subjects:   []string{"world"},
				Predicate:  "alert",
				Object:     "company_memo",
				FactText:   "A company memo circulated about the merger.",
				Confidence: 0.8,
			},
			ic(pair, "relationship_status", "jealous", "Maybe Dimitri is jealous.", 0.5),
			ic(pair, "favourite_colour", "blue", "Byleth likes blue.", 0.9),
		}},
		{Chapter: 5, Candidates: []*fact.Fact{
			ic(pair, "relationship_status", "started_affair", "Byleth and Dimitri's affair is serious.", 0.95),
			{
				MemType:    fact.MemCharacterToUser,
				Subjects:   []string{"Dimitri", "user_123"},
				Predicate:  "secrecy_pact",
				Object:     "true",
				FactText:   "Dimitri asked the user to keep the affair secret.",
				Confidence: 0.8,
			},
		}},
	}
}

func TestRun(t *testing.T) {
	p, s, r := newPipeline(t)

	summary, err := p.Run(context.Background(), storyBatches())
	require.NoError(t, err)

	assert.Equal(t, 2, summary.ChaptersProcessed)
	assert.Equal(t, 6, summary.CandidatesSeen)
	assert.Equal(t, 3, summary.Created)
	assert.Equal(t, 1, summary.Superseded)
	assert.Equal(t, 2, summary.Discarded)
	assert.Equal(t, 2, summary.ValidationFailures)
	assert.Equal(t, 2, summary.ByType[fact.MemInterCharacter])
	assert.Equal(t, 1, summary.ByType[fact.MemWorld])
	assert.Equal(t, 1, summary.ByType[fact.MemCharacterToUser])
	assert.Equal(t, 4, summary.TotalMemories)
	assert.Equal(t, 4, s.Len())

	counts := r.Journal().Counts()
	assert.Equal(t, 3, counts[update.ActionCreate])
	assert.Equal(t, 1, counts[update.ActionSupersede])
	assert.Equal(t, 2, counts[update.ActionDiscard])

	// display names were resolved and visibility defaulted
	c2u := s.QueryAtChapter(5)
	var private *fact.Fact
	for _, f := range c2u {
		if f.MemType == fact.MemCharacterToUser {
			private = f
		}
	}
	require.NotNil(t, private)
	assert.Equal(t, []string{"dimitri", "user_123"}, private.Subjects)
	assert.Equal(t, fact.VisibilityPrivate, private.Visibility)

	head, ok := s.Current(fact.KeyOf([]string{"byleth", "dimitri"}, "relationship_status", "started_affair"))
	require.True(t, ok)
	assert.Equal(t, 2, head.Version)
	assert.Equal(t, 5, head.ChapterStart)
}

func TestRunRejectsOutOfOrderChapters(t *testing.T) {
	p, _, _ := newPipeline(t)

	_, err := p.Run(context.Background(), []Batch{{Chapter: 3}, {Chapter: 2}})
	var ooo *OutOfOrderError
	require.True(t, errors.As(err, &ooo))
	assert.Equal(t, 2, ooo.Chapter)
	assert.Equal(t, 3, ooo.Last)

	// chapters already in the store count as ingested
	p, _, _ = newPipeline(t)
	_, err = p.Run(context.Background(), storyBatches())
	require.NoError(t, err)
	summary, err := p.Run(context.Background(), []Batch{{Chapter: 5}})
	require.True(t, errors.As(err, &ooo))
	assert.Equal(t, 0, summary.ChaptersProcessed)
	assert.Equal(t, 4, summary.TotalMemories)
}

func TestRunHonoursCancellation(t *testing.T) {
	p, s, _ := newPipeline(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	summary, err := p.Run(ctx, storyBatches())
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))
	assert.Equal(t, 0, summary.CandidatesSeen)
	assert.Equal(t, 0, s.Len())
}

func TestReadCandidatesJSONL(t *testing.T) {
	input := strings.Join([]string{
		`{"mem_type":"IC","subjects":["Byleth","Dimitri"],"predicate":"contact","object":"private_meeting","fact_text":"They met after hours.","confidence":0.9,"chapter_start":3}`,
		``,
		`{"mem_type":"WM","subjects":["world"],"predicate":"alert","object":"virus_warning","fact_text":"A virus warning went out.","confidence":0.8,"provenance":{"chapter":1,"source":"synopsis"}}`,
		`{"mem_type":"C2U","subjects":["Sylvain","user_123"],"predicate":"secrecy_pact","object":"true","fact_text":"Sylvain swore the user to secrecy.","confidence":0.75,"chapter_start":3}`,
	}, "\n")

	batches, err := ReadCandidates(strings.NewReader(input), "candidates.jsonl")
	require.NoError(t, err)
	require.Len(t, batches, 2)
	assert.Equal(t, 1, batches[0].Chapter)
	assert.Equal(t, fact.MemWorld, batches[0].Candidates[0].MemType)
	assert.Equal(t, 3, batches[1].Chapter)
	require.Len(t, batches[1].Candidates, 2)
	assert.Equal(t, "contact", batches[1].Candidates[0].Predicate)
	assert.Equal(t, "secrecy_pact", batches[1].Candidates[1].Predicate)
}

func TestReadCandidatesArray(t *testing.T) {
	input := `
  [
    {"mem_type":"WORLD","subjects":["world"],"predicate":"alert","object":"company_memo","fact_text":"Memo.","confidence":0.9,"chapter_start":2}
  ]`
	batches, err := ReadCandidates(strings.NewReader(input), "candidates.json")
	require.NoError(t, err)
	require.Len(t, batches, 1)
	assert.Equal(t, 2, batches[0].Chapter)
}

func TestReadCandidatesErrors(t *testing.T) {
	_, err := ReadCandidates(strings.NewReader(`{"mem_type":"WORLD","fact_text":"no chapter"}`), "x.jsonl")
	var malformed *fact.MalformedRecordError
	require.True(t, errors.As(err, &malformed))
	assert.Equal(t, "chapter_start", malformed.Field)

	_, err = ReadCandidates(strings.NewReader("{not json"), "y.jsonl")
	require.True(t, errors.As(err, &malformed))

	batches, err := ReadCandidates(strings.NewReader("  \n"), "empty.jsonl")
	require.NoError(t, err)
	assert.Empty(t, batches)
}

func TestLoadCandidatesMissingFile(t *testing.T) {
	_, err := LoadCandidates(t.TempDir() + "/missing.jsonl")
	require.Error(t, err)
}
