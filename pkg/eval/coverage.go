package eval

import (
	"go.uber.org/zap"

	"github.com/kittclouds/chapterfacts/pkg/factstore"
	"github.com/kittclouds/chapterfacts/pkg/lexicon"
	"github.com/kittclouds/chapterfacts/pkg/logger"
	"github.com/kittclouds/chapterfacts/pkg/rank"
)

// Params tunes the evaluations.
type Params struct {
	// CoverageThreshold is the text similarity a gold fact must exceed to
	// count as covered without an exact key match.
	CoverageThreshold float64
	// DefaultK applies to queries that give no k.
	DefaultK          int
	// DefaultChapter applies to gold entries that give no chapter.
	DefaultChapter    int
}

// DefaultParams returns the stock settings.
func DefaultParams() Params {
	return Params{
		CoverageThreshold: 0.7,
		DefaultK:          5,
		DefaultChapter:    1,
	}
}

// CoverageType says how a gold fact was matched.
type CoverageType string

const (
	CoverageExactKey   CoverageType = "exact_key_match"
	CoverageSimilarity CoverageType = "text_similarity"
	CoverageNone       CoverageType = "not_covered"
)

// FactCoverage is the outcome for one gold fact.
type FactCoverage struct {
	FactID            string       `json:"fact_id"`
	FactText          string       `json:"fact_text"`
	IsCovered         bool         `json:"is_covered"`
	CoverageType      CoverageType `json:"coverage_type"`
	MatchedMemoryID   *string      `json:"matched_memory_id"`
	MatchedMemoryText *string      `json:"matched_memory_text"`
	Confidence        *float64     `json:"confidence"`
	SimilarityScore   float64      `json:"similarity_score"`
}

// ChapterCoverage aggregates one KeyFacts entry.
type ChapterCoverage struct {
	Chapter      int            `json:"chapter"`
	Facts        []FactCoverage `json:"facts"`
	TotalFacts   int            `json:"total_facts"`
	CoveredFacts int            `json:"covered_facts"`
	CoverageRate float64        `json:"coverage_rate"`
}

// CoverageSummary repeats the headline rates.
type CoverageSummary struct {
	Overall   float64         `json:"overall"`
	ByChapter map[int]float64 `json:"by_chapter"`
}

// CoverageReport is the result of Coverage.
type CoverageReport struct {
	OverallCoverage float64           `json:"overall_coverage"`
	TotalFacts      int               `json:"total_facts"`
	CoveredFacts    int               `json:"covered_facts"`
	ChapterCoverage []ChapterCoverage `json:"chapter_coverage"`
	Summary         CoverageSummary   `json:"summary"`
}

// Evaluator runs gold-data evaluations against a store. It only reads.
type Evaluator struct {
	store  *factstore.Store
	ranker *rank.Ranker
	params Params
	log    *zap.SugaredLogger
}

// New creates an evaluator. ranker must read the same store.
func New(store *factstore.Store, ranker *rank.Ranker, params Params) *Evaluator {
	return &Evaluator{
		store:  store,
		ranker: ranker,
		params: params,
		log:    logger.Named("eval"),
	}
}

// Coverage checks, per chapter entry, whether each gold fact is held by a
// fact visible at that chapter: first by canonical key, otherwise by the
// most similar fact text.
func (e *Evaluator) Coverage(keyFacts []KeyFacts) *CoverageReport {
	report := &CoverageReport{
		ChapterCoverage: make([]ChapterCoverage, 0, len(keyFacts)),
		Summary:         CoverageSummary{ByChapter: make(map[int]float64)},
	}

	for _, entry := range keyFacts {
		chapter := entry.Chapter
		if chapter == 0 {
			chapter = e.params.DefaultChapter
		}

		cc := ChapterCoverage{
			Chapter:    chapter,
			Facts:      make([]FactCoverage, 0, len(entry.Facts)),
			TotalFacts: len(entry.Facts),
		}
		for _, g := range entry.Facts {
			fc := e.coverFact(g, chapter)
			if fc.IsCovered {
				cc.CoveredFacts++
			}
			cc.Facts = append(cc.Facts, fc)
		}
		if cc.TotalFacts > 0 {
			cc.CoverageRate = float64(cc.CoveredFacts) / float64(cc.TotalFacts)
		}

		report.TotalFacts += cc.TotalFacts
		report.CoveredFacts += cc.CoveredFacts
		report.ChapterCoverage = append(report.ChapterCoverage, cc)
		report.Summary.ByChapter[chapter] = cc.CoverageRate
	}

	if report.TotalFacts > 0 {
		report.OverallCoverage = float64(report.CoveredFacts) / float64(report.TotalFacts)
	}
	report.Summary.Overall = report.OverallCoverage

	e.log.Infow("coverage evaluated",
		logger.FieldCount, report.TotalFacts,
		"covered", report.CoveredFacts,
		"overall", report.OverallCoverage,
	)
	return report
}

func (e *Evaluator) coverFact(g GoldFact, chapter int) FactCoverage {
	fc := FactCoverage{FactID: g.ID, FactText: g.Fact, CoverageType: CoverageNone}
	if fc.FactID == "" {
		fc.FactID = "unknown"
	}

	visible := e.store.QueryAtChapter(chapter)
	key := g.Key()
	for _, f := range visible {
		if f.Key() == key {
			fc.IsCovered = true
			fc.CoverageType = CoverageExactKey
			fc.MatchedMemoryID = &f.ID
			fc.MatchedMemoryText = &f.FactText
			fc.Confidence = &f.Confidence
			fc.SimilarityScore = 1
			return fc
		}
	}

	best := -1
	for i, f := range visible {
		if sim := lexicon.Similarity(g.Fact, f.FactText); sim > fc.SimilarityScore {
			fc.SimilarityScore = sim
			best = i
		}
	}
	if best >= 0 {
		f := visible[best]
		fc.MatchedMemoryID = &f.ID
		fc.MatchedMemoryText = &f.FactText
		fc.Confidence = &f.Confidence
	}
	if fc.SimilarityScore > e.params.CoverageThreshold {
		fc.IsCovered = true
		fc.CoverageType = CoverageSimilarity
	}
	return fc
}
