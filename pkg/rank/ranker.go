// Package rank orders the facts visible at a chapter by relevance to a
// free-text query.
package rank

import (
	"sort"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"

	"github.com/kittclouds/chapterfacts/pkg/fact"
	"github.com/kittclouds/chapterfacts/pkg/factstore"
	"github.com/kittclouds/chapterfacts/pkg/lexicon"
	"github.com/kittclouds/chapterfacts/pkg/logger"
	"github.com/kittclouds/chapterfacts/pkg/pool"
)

// Params weights the four relevance signals and configures their bands.
type Params struct {
	ConfidenceWeight float64
	ChapterWeight    float64
	OverlapWeight    float64
	TypeWeight       float64

	ExactScore float64
	NearWindow int
	NearScore  float64
	MidWindow  int
	MidScore   float64
	FarScore   float64

	EmptyQueryOverlap float64
	TypeMiss          float64

	// Keywords are the query words that signal interest in a memory type.
	Keywords map[fact.MemType][]string
}

// DefaultParams returns the stock weights and bands.
func DefaultParams() Params {
	return Params{
		ConfidenceWeight:  0.3,
		ChapterWeight:     0.25,
		OverlapWeight:     0.25,
		TypeWeight:        0.2,
		ExactScore:        1.0,
		NearWindow:        3,
		NearScore:         0.8,
		MidWindow:         10,
		MidScore:          0.6,
		FarScore:          0.4,
		EmptyQueryOverlap: 0.5,
		TypeMiss:          0.5,
		Keywords: map[fact.MemType][]string{
			fact.MemWorld:           {"world", "company", "office", "policy"},
			fact.MemInterCharacter:  {"relationship", "interaction", "meeting", "conversation"},
			fact.MemCharacterToUser: {"user", "me", "my", "personal"},
		},
	}
}

// Result is a ranked fact.
type Result struct {
	Fact  *fact.Fact `json:"fact"`
	Score float64    `json:"score"`
}

// Ranker scores store contents. It only reads the store.
type Ranker struct {
	store    *factstore.Store
	params   Params
	keywords map[fact.MemType]*lexicon.Lexicon
	log      *zap.SugaredLogger
}

// New builds a ranker, compiling one keyword lexicon per memory type.
func New(store *factstore.Store, params Params) (*Ranker, error) {
	r := &Ranker{
		store:    store,
		params:   params,
		keywords: make(map[fact.MemType]*lexicon.Lexicon, len(params.Keywords)),
		log:      logger.Named("rank"),
	}
	for t, words := range params.Keywords {
		lex, err := lexicon.Compile(words)
		if err != nil {
			return nil, errors.Wrapf(err, "keywords for %s", t)
		}
		r.keywords[t] = lex
	}
	return r, nil
}

// Rank returns up to k facts visible at chapter, best first. k <= 0 means
// no limit. Equal scores keep chapter order.
func (r *Ranker) Rank(query string, chapter, k int) []Result {
	visible := r.store.QueryAtChapter(chapter)

	queryTokens := lexicon.Tokenize(query)
	querySet := pool.GetTokenSet()
	defer pool.PutTokenSet(querySet)
	for _, tok := range queryTokens {
		querySet[tok] = struct{}{}
	}

	results := make([]Result, 0, len(visible))
	for _, f := range visible {
		results = append(results, Result{Fact: f, Score: r.score(f, query, querySet, chapter)})
	}
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})
	if k > 0 && len(results) > k {
		results = results[:k]
	}

	r.log.Debugw("ranked facts",
		logger.FieldChapter, chapter,
		logger.FieldCount, len(results),
	)
	return results
}

// Score computes the relevance of one fact for query at chapter.
func (r *Ranker) Score(f *fact.Fact, query string, chapter int) float64 {
	querySet := pool.GetTokenSet()
	defer pool.PutTokenSet(querySet)
	for _, tok := range lexicon.Tokenize(query) {
		querySet[tok] = struct{}{}
	}
	return r.score(f, query, querySet, chapter)
}

func (r *Ranker) score(f *fact.Fact, query string, querySet map[string]struct{}, chapter int) float64 {
	p := r.params
	return p.ConfidenceWeight*f.Confidence +
		p.ChapterWeight*r.chapterRelevance(f, chapter) +
		p.OverlapWeight*r.textOverlap(f, querySet) +
		p.TypeWeight*r.typeMatch(f, query)
}

func (r *Ranker) chapterRelevance(f *fact.Fact, chapter int) float64 {
	p := r.params
	age := chapter - f.ChapterStart
	switch {
	case age == 0:
		return p.ExactScore
	case age < 0:
		// Not visible through QueryAtChapter; scored only via Score.
		return 0
	case age <= p.NearWindow:
		return p.NearScore
	case age <= p.MidWindow:
		return p.MidScore
	default:
		return p.FarScore
	}
}

// textOverlap is the Jaccard similarity of the query and fact word sets.
func (r *Ranker) textOverlap(f *fact.Fact, querySet map[string]struct{}) float64 {
	if len(querySet) == 0 {
		return r.params.EmptyQueryOverlap
	}

	factSet := pool.GetTokenSet()
	defer pool.PutTokenSet(factSet)
	for _, tok := range lexicon.Tokenize(f.FactText) {
		factSet[tok] = struct{}{}
	}

	inter := 0
	for tok := range querySet {
		if _, ok := factSet[tok]; ok {
			inter++
		}
	}
	union := len(querySet) + len(factSet) - inter
	if union == 0 {
		return r.params.EmptyQueryOverlap
	}
	return float64(inter) / float64(union)
}

func (r *Ranker) typeMatch(f *fact.Fact, query string) float64 {
	if lex, ok := r.keywords[f.MemType]; ok && lex.Contains(query) {
		return 1.0
	}
	return r.params.TypeMiss
}

// ByCharacter returns up to k facts visible at chapter that involve id,
// highest confidence first.
func (r *Ranker) ByCharacter(id string, chapter, k int) []*fact.Fact {
	return r.byConfidence(chapter, k, func(f *fact.Fact) bool { return f.HasSubject(id) })
}

// ByType returns up to k facts of type t visible at chapter, highest
// confidence first.
func (r *Ranker) ByType(t fact.MemType, chapter, k int) []*fact.Fact {
	return r.byConfidence(chapter, k, func(f *fact.Fact) bool { return f.MemType == t })
}

func (r *Ranker) byConfidence(chapter, k int, keep func(*fact.Fact) bool) []*fact.Fact {
	var out []*fact.Fact
	for _, f := range r.store.QueryAtChapter(chapter) {
		if keep(f) {
			out = append(out, f)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Confidence > out[j].Confidence
	})
	if k > 0 && len(out) > k {
		out = out[:k]
	}
	return out
}
