package update

import (
	"math"
	"sort"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/kittclouds/chapterfacts/pkg/fact"
	"github.com/kittclouds/chapterfacts/pkg/factstore"
	"github.com/kittclouds/chapterfacts/pkg/logger"
)

// excerptLength bounds fact_text in journal entries.
const excerptLength = 50

// Decision is the result of resolving one candidate.
type Decision struct {
	Action Action
	// Record is the stored result; nil on discard.
	Record *fact.Fact
	// Existing is the superseded record after the update; nil otherwise.
	Existing *fact.Fact
	// Score is the winning update score, zero when nothing was compared.
	Score float64
}

// Resolver applies candidates to a store. It is not safe for concurrent use;
// the store has a single writer.
type Resolver struct {
	store   *factstore.Store
	params  Params
	journal *Journal
	newID   func() string
	now     func() time.Time
	log     *zap.SugaredLogger
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithIDGenerator replaces the uuid generator.
func WithIDGenerator(gen func() string) Option {
	return func(r *Resolver) { r.newID = gen }
}

// WithClock replaces time.Now for journal timestamps.
func WithClock(now func() time.Time) Option {
	return func(r *Resolver) { r.now = now }
}

// WithJournal shares a journal between resolvers.
func WithJournal(j *Journal) Option {
	return func(r *Resolver) { r.journal = j }
}

// NewResolver creates a resolver writing to store.
func NewResolver(store *factstore.Store, params Params, opts ...Option) *Resolver {
	r := &Resolver{
		store:   store,
		params:  params,
		journal: NewJournal(),
		newID:   uuid.NewString,
		now:     time.Now,
		log:     logger.Named("update"),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Journal returns the resolver's decision log.
func (r *Resolver) Journal() *Journal {
	return r.journal
}

// Resolve applies candidate as observed in chapter. The candidate's id,
// version and chain fields are ignored; the stored record gets a fresh id.
//
// A candidate that cannot be applied is discarded: the discard is journaled
// and the returned error says why (*fact.MalformedRecordError,
// *fact.AmbiguousUpdateError or *fact.DuplicateIDError). Callers may skip
// it and continue.
func (r *Resolver) Resolve(candidate *fact.Fact, chapter int) (Decision, error) {
	if candidate == nil {
		return r.discard(nil, chapter, &fact.MalformedRecordError{Field: "record", Reason: "nil"})
	}

	c := candidate.Clone()
	c.ChapterStart = chapter
	if c.Provenance.Chapter == 0 {
		c.Provenance.Chapter = chapter
	}
	if err := c.ValidateCandidate(); err != nil {
		return r.discard(c, chapter, err)
	}

	best, score, err := r.selectExisting(c)
	if err != nil {
		return r.discard(c, chapter, err)
	}
	if best != nil && score >= r.params.Threshold {
		return r.supersede(best, c, score)
	}
	return r.create(c, score)
}

// selectExisting returns the highest-scoring active record that c could
// replace, or nil when there is none.
func (r *Resolver) selectExisting(c *fact.Fact) (*fact.Fact, float64, error) {
	key := c.Key()

	var tied []*fact.Fact
	best := math.Inf(-1)
	for _, existing := range r.store.FindByCanonicalKey(key) {
		if !existing.IsActive || existing.ChapterStart >= c.ChapterStart {
			continue
		}
		s := r.params.Score(c, existing)
		switch {
		case s > best+tieEpsilon:
			best = s
			tied = []*fact.Fact{existing}
		case math.Abs(s-best) <= tieEpsilon:
			tied = append(tied, existing)
		}
	}

	if len(tied) == 0 {
		return nil, 0, nil
	}
	if len(tied) > 1 {
		if r.params.TieBreak == TieBreakStrict {
			ids := make([]string, len(tied))
			for i, t := range tied {
				ids[i] = t.ID
			}
			sort.Strings(ids)
			return nil, best, &fact.AmbiguousUpdateError{Key: key, TiedIDs: ids, Score: best}
		}
		sort.Slice(tied, func(i, j int) bool {
			if tied[i].ChapterStart != tied[j].ChapterStart {
				return tied[i].ChapterStart < tied[j].ChapterStart
			}
			return tied[i].ID < tied[j].ID
		})
	}
	return tied[0], best, nil
}

func (r *Resolver) supersede(existing, c *fact.Fact, score float64) (Decision, error) {
	conf := c.Confidence
	next := &fact.Fact{
		ID:               r.newID(),
		MemType:          existing.MemType,
		Subjects:         append([]string(nil), existing.Subjects...),
		Predicate:        existing.Predicate,
		Object:           existing.Object,
		FactText:         c.FactText,
		Visibility:       existing.Visibility,
		Confidence:       c.Confidence,
		ChapterStart:     c.ChapterStart,
		IsActive:         true,
		Version:          existing.Version + 1,
		Supersedes:       fact.StringPtr(existing.ID),
		Provenance:       c.Provenance,
		UpdateReason:     Reason(score),
		UpdateConfidence: &conf,
		Attrs:            mergeAttrs(existing.Attrs, c.Attrs),
	}
	if err := r.store.Insert(next); err != nil {
		return r.discard(c, c.ChapterStart, err)
	}

	closed, err := r.store.Get(existing.ID)
	if err != nil {
		return Decision{}, errors.Wrap(err, "reload superseded fact")
	}

	r.journal.append(Entry{
		Timestamp:  r.now(),
		Action:     ActionSupersede,
		ExistingID: existing.ID,
		ResultID:   next.ID,
		Chapter:    next.ChapterStart,
		Score:      score,
		Reason:     next.UpdateReason,
		FactText:   fact.Excerpt(next.FactText, excerptLength),
	})
	r.log.Debugw("superseded fact",
		logger.FieldExistingID, existing.ID,
		logger.FieldFactID, next.ID,
		logger.FieldScore, score,
		logger.FieldChapter, next.ChapterStart,
	)

	stored, err := r.store.Get(next.ID)
	if err != nil {
		return Decision{}, errors.Wrap(err, "reload superseding fact")
	}
	return Decision{Action: ActionSupersede, Record: stored, Existing: closed, Score: score}, nil
}

// mergeAttrs keeps the predecessor's annotations, overridden by the
// candidate's.
func mergeAttrs(prev, next map[string]any) map[string]any {
	if len(prev) == 0 && len(next) == 0 {
		return nil
	}
	out := make(map[string]any, len(prev)+len(next))
	for k, v := range prev {
		out[k] = v
	}
	for k, v := range next {
		out[k] = v
	}
	return out
}

func (r *Resolver) create(c *fact.Fact, score float64) (Decision, error) {
	created := c.Clone()
	created.ID = r.newID()
	created.Version = 1
	created.IsActive = true
	created.ChapterEnd = nil
	created.Supersedes = nil
	created.SupersededBy = nil
	created.UpdateReason = ""
	created.UpdateConfidence = nil
	if created.Visibility == "" {
		created.Visibility = fact.DefaultVisibility(created.MemType)
	}

	if err := r.store.Insert(created); err != nil {
		return r.discard(c, c.ChapterStart, err)
	}

	r.journal.append(Entry{
		Timestamp: r.now(),
		Action:    ActionCreate,
		ResultID:  created.ID,
		Chapter:   created.ChapterStart,
		Score:     score,
		FactText:  fact.Excerpt(created.FactText, excerptLength),
	})
	r.log.Debugw("created fact",
		logger.FieldFactID, created.ID,
		logger.FieldCanonicalKey, created.Key(),
		logger.FieldChapter, created.ChapterStart,
	)

	stored, err := r.store.Get(created.ID)
	if err != nil {
		return Decision{}, errors.Wrap(err, "reload created fact")
	}
	return Decision{Action: ActionCreate, Record: stored, Score: score}, nil
}

func (r *Resolver) discard(c *fact.Fact, chapter int, cause error) (Decision, error) {
	entry := Entry{
		Timestamp: r.now(),
		Action:    ActionDiscard,
		Chapter:   chapter,
		Reason:    cause.Error(),
	}
	if c != nil {
		entry.FactText = fact.Excerpt(c.FactText, excerptLength)
	}
	var ambiguous *fact.AmbiguousUpdateError
	if errors.As(cause, &ambiguous) {
		entry.Score = ambiguous.Score
	}
	r.journal.append(entry)

	r.log.Warnw("discarded candidate",
		logger.FieldChapter, chapter,
		logger.FieldError, cause,
	)
	return Decision{Action: ActionDiscard, Score: entry.Score}, cause
}

// Reject journals a candidate turned away before resolution, for example by
// vocabulary validation, and returns cause.
func (r *Resolver) Reject(candidate *fact.Fact, chapter int, cause error) (Decision, error) {
	return r.discard(candidate, chapter, cause)
}
