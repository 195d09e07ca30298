// Package ingest feeds chapter-ordered candidate facts through vocabulary
// validation and the update resolver into a store.
package ingest

import (
	"context"
	"fmt"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"

	"github.com/kittclouds/chapterfacts/pkg/fact"
	"github.com/kittclouds/chapterfacts/pkg/factstore"
	"github.com/kittclouds/chapterfacts/pkg/logger"
	"github.com/kittclouds/chapterfacts/pkg/update"
	"github.com/kittclouds/chapterfacts/pkg/vocab"
)

// Batch is the set of candidates observed in one chapter.
type Batch struct {
	Chapter    int          `json:"chapter"`
	Candidates []*fact.Fact `json:"candidates"`
}

// Summary describes one ingestion run.
type Summary struct {
	ChaptersProcessed  int                  `json:"chapters_processed"`
	CandidatesSeen     int                  `json:"candidates_seen"`
	Created            int                  `json:"new_memories"`
	Superseded         int                  `json:"updated_memories"`
	Discarded          int                  `json:"discarded"`
	ValidationFailures int                  `json:"validation_failures"`
	ByType             map[fact.MemType]int `json:"by_type"`
	TotalMemories      int                  `json:"total_memories"`
}

// OutOfOrderError is returned when a batch does not come strictly after
// every chapter already ingested.
type OutOfOrderError struct {
	Chapter int
	Last    int
}

func (e *OutOfOrderError) Error() string {
	return fmt.Sprintf("ingest: chapter %d does not follow chapter %d", e.Chapter, e.Last)
}

// Pipeline composes a vocabulary with a resolver writing to store.
type Pipeline struct {
	vocab    *vocab.Vocabulary
	resolver *update.Resolver
	store    *factstore.Store
	log      *zap.SugaredLogger
}

// NewPipeline creates a pipeline. The resolver must write to store.
func NewPipeline(v *vocab.Vocabulary, r *update.Resolver, s *factstore.Store) *Pipeline {
	return &Pipeline{
		vocab:    v,
		resolver: r,
		store:    s,
		log:      logger.Named("ingest"),
	}
}

// Run ingests batches in order. Rejected candidates are journaled and
// counted; they never stop the run. Out-of-order batches and cancellation
// do, returning the summary accumulated so far.
func (p *Pipeline) Run(ctx context.Context, batches []Batch) (*Summary, error) {
	summary := &Summary{ByType: make(map[fact.MemType]int)}

	last := 0
	if chapters := p.store.Chapters(); len(chapters) > 0 {
		last = chapters[len(chapters)-1]
	}

	for _, b := range batches {
		if err := ctx.Err(); err != nil {
			return p.finish(summary), errors.Wrap(err, "ingest cancelled")
		}
		if b.Chapter < 1 || b.Chapter <= last {
			return p.finish(summary), &OutOfOrderError{Chapter: b.Chapter, Last: last}
		}

		for _, candidate := range b.Candidates {
			if err := ctx.Err(); err != nil {
				return p.finish(summary), errors.Wrap(err, "ingest cancelled")
			}
			p.apply(summary, candidate, b.Chapter)
		}

		last = b.Chapter
		summary.ChaptersProcessed++
		p.log.Infow("chapter ingested",
			logger.FieldChapter, b.Chapter,
			logger.FieldCount, len(b.Candidates),
			"total", p.store.Len(),
		)
	}

	return p.finish(summary), nil
}

func (p *Pipeline) apply(summary *Summary, candidate *fact.Fact, chapter int) {
	summary.CandidatesSeen++
	if candidate == nil {
		summary.Discarded++
		return
	}

	c := candidate.Clone()
	p.vocab.Normalize(c)
	if err := p.vocab.Validate(c); err != nil {
		summary.ValidationFailures++
		summary.Discarded++
		_, _ = p.resolver.Reject(c, chapter, err)
		return
	}

	decision, err := p.resolver.Resolve(c, chapter)
	if err != nil || decision.Record == nil {
		summary.Discarded++
		return
	}
	switch decision.Action {
	case update.ActionCreate:
		summary.Created++
	case update.ActionSupersede:
		summary.Superseded++
	}
	summary.ByType[decision.Record.MemType]++
}

func (p *Pipeline) finish(summary *Summary) *Summary {
	summary.TotalMemories = p.store.Len()
	return summary
}
