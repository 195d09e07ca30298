package eval

import (
	"sort"

	"github.com/kittclouds/chapterfacts/pkg/fact"
	"github.com/kittclouds/chapterfacts/pkg/logger"
)

// reportedQueries bounds the best and worst query lists.
const reportedQueries = 5

// Retrieved describes one ranked result of a query.
type Retrieved struct {
	Rank          int          `json:"rank"`
	MemoryID      string       `json:"memory_id"`
	CanonicalKey  fact.Key     `json:"canonical_key"`
	MatchedGoldID *string      `json:"matched_gold_id"`
	FactText      string       `json:"fact_text"`
	Subjects      []string     `json:"subjects"`
	Predicate     string       `json:"predicate"`
	Object        string       `json:"object"`
	ChapterStart  int          `json:"chapter_start"`
	MemType       fact.MemType `json:"mem_type"`
	Confidence    float64      `json:"confidence"`
	Score         float64      `json:"score"`
	IsCorrect     bool         `json:"is_correct"`
}

// Metrics are the three retrieval measures.
type Metrics struct {
	Precision float64 `json:"precision"`
	Recall    float64 `json:"recall"`
	MRR       float64 `json:"mrr"`
}

// QueryResult is the evaluation of one query.
type QueryResult struct {
	QueryID       string      `json:"query_id"`
	TargetChapter int         `json:"target_chapter"`
	K             int         `json:"k"`
	GoldIDs       []string    `json:"gold_ids"`
	RetrievedKeys []fact.Key  `json:"retrieved_keys"`
	Analysis      []Retrieved `json:"retrieval_analysis"`
	Metrics
}

// QueryScore is a QueryResult without the detail.
type QueryScore struct {
	QueryID string `json:"query_id"`
	Metrics
}

// ChapterMetrics averages the queries asked at one chapter.
type ChapterMetrics struct {
	Count int `json:"count"`
	Metrics
}

// PerformanceAnalysis buckets queries by precision.
type PerformanceAnalysis struct {
	TotalQueries   int     `json:"total_queries"`
	PerfectQueries int     `json:"perfect_queries"`
	PartialQueries int     `json:"partial_queries"`
	FailedQueries  int     `json:"failed_queries"`
	SuccessRate    float64 `json:"success_rate"`
}

// FailureAnalysis lists the queries that were not perfect.
type FailureAnalysis struct {
	FailedQueryIDs  []string `json:"failed_query_ids"`
	PartialQueryIDs []string `json:"partial_query_ids"`
}

// RetrievalReport is the result of Retrieval.
type RetrievalReport struct {
	OverallMetrics      Metrics                 `json:"overall_metrics"`
	QueryResults        []QueryResult           `json:"query_results"`
	PerformanceAnalysis PerformanceAnalysis     `json:"performance_analysis"`
	TopQueries          []QueryScore            `json:"top_performing_queries"`
	BottomQueries       []QueryScore            `json:"bottom_performing_queries"`
	ChapterPerformance  map[int]*ChapterMetrics `json:"chapter_performance"`
	FailureAnalysis     FailureAnalysis         `json:"failure_analysis"`
}

// Retrieval ranks every query at its chapter and scores the top k against
// the gold ids. A result is correct when its canonical key belongs to a
// gold memory whose id the query lists.
func (e *Evaluator) Retrieval(gold []GoldMemory, queries []Query) *RetrievalReport {
	goldByKey := make(map[fact.Key]string, len(gold))
	for _, g := range gold {
		goldByKey[g.Key()] = g.ID
	}

	report := &RetrievalReport{
		QueryResults:       make([]QueryResult, 0, len(queries)),
		ChapterPerformance: make(map[int]*ChapterMetrics),
		FailureAnalysis: FailureAnalysis{
			FailedQueryIDs:  []string{},
			PartialQueryIDs: []string{},
		},
	}

	for _, q := range queries {
		res := e.evaluateQuery(q, goldByKey)
		report.QueryResults = append(report.QueryResults, res)

		report.OverallMetrics.add(res.Metrics)
		cm, ok := report.ChapterPerformance[res.TargetChapter]
		if !ok {
			cm = &ChapterMetrics{}
			report.ChapterPerformance[res.TargetChapter] = cm
		}
		cm.Count++
		cm.add(res.Metrics)

		switch {
		case res.Precision == 1:
			report.PerformanceAnalysis.PerfectQueries++
		case res.Precision == 0:
			report.PerformanceAnalysis.FailedQueries++
			report.FailureAnalysis.FailedQueryIDs = append(report.FailureAnalysis.FailedQueryIDs, res.QueryID)
		default:
			report.PerformanceAnalysis.PartialQueries++
			report.FailureAnalysis.PartialQueryIDs = append(report.FailureAnalysis.PartialQueryIDs, res.QueryID)
		}
	}

	n := len(report.QueryResults)
	report.PerformanceAnalysis.TotalQueries = n
	if n > 0 {
		report.OverallMetrics.scale(1 / float64(n))
		report.PerformanceAnalysis.SuccessRate = float64(report.PerformanceAnalysis.PerfectQueries) / float64(n)
	}
	for _, cm := range report.ChapterPerformance {
		cm.scale(1 / float64(cm.Count))
	}

	byPrecision := make([]QueryScore, n)
	for i, res := range report.QueryResults {
		byPrecision[i] = QueryScore{QueryID: res.QueryID, Metrics: res.Metrics}
	}
	sort.SliceStable(byPrecision, func(i, j int) bool {
		return byPrecision[i].Precision > byPrecision[j].Precision
	})
	report.TopQueries = byPrecision[:min(reportedQueries, n)]
	report.BottomQueries = byPrecision[n-min(reportedQueries, n):]

	e.log.Infow("retrieval evaluated",
		logger.FieldCount, n,
		"precision", report.OverallMetrics.Precision,
		"recall", report.OverallMetrics.Recall,
		"mrr", report.OverallMetrics.MRR,
	)
	return report
}

func (e *Evaluator) evaluateQuery(q Query, goldByKey map[fact.Key]string) QueryResult {
	chapter := q.Chapter
	if chapter == 0 {
		chapter = e.params.DefaultChapter
	}
	k := q.K
	if k <= 0 {
		k = e.params.DefaultK
	}
	wanted := make(map[string]bool, len(q.GoldIDs))
	for _, id := range q.GoldIDs {
		wanted[id] = true
	}

	res := QueryResult{
		QueryID:       q.QID,
		TargetChapter: chapter,
		K:             k,
		GoldIDs:       append([]string{}, q.GoldIDs...),
		RetrievedKeys: []fact.Key{},
		Analysis:      []Retrieved{},
	}

	correct := make([]bool, 0, k)
	hit := make(map[string]bool)
	for i, r := range e.ranker.Rank(q.Query, chapter, k) {
		f := r.Fact
		key := f.Key()
		item := Retrieved{
			Rank:         i + 1,
			MemoryID:     f.ID,
			CanonicalKey: key,
			FactText:     f.FactText,
			Subjects:     f.Subjects,
			Predicate:    f.Predicate,
			Object:       f.Object,
			ChapterStart: f.ChapterStart,
			MemType:      f.MemType,
			Confidence:   f.Confidence,
			Score:        r.Score,
		}
		if goldID, ok := goldByKey[key]; ok {
			item.MatchedGoldID = &goldID
			item.IsCorrect = wanted[goldID]
			if item.IsCorrect {
				hit[goldID] = true
			}
		}
		res.RetrievedKeys = append(res.RetrievedKeys, key)
		res.Analysis = append(res.Analysis, item)
		correct = append(correct, item.IsCorrect)
	}

	res.Metrics = Score(correct, len(hit), len(wanted))
	return res
}

// Score computes precision over the retrieved list, recall as the share of
// gold ids found, and the reciprocal rank of the first correct result.
// correct[i] tells whether the result at rank i+1 is correct.
func Score(correct []bool, goldFound, goldTotal int) Metrics {
	var m Metrics
	n := 0
	for i, ok := range correct {
		if !ok {
			continue
		}
		n++
		if m.MRR == 0 {
			m.MRR = 1 / float64(i+1)
		}
	}
	if len(correct) > 0 {
		m.Precision = float64(n) / float64(len(correct))
	}
	if goldTotal > 0 {
		m.Recall = float64(goldFound) / float64(goldTotal)
	}
	return m
}

func (m *Metrics) add(o Metrics) {
	m.Precision += o.Precision
	m.Recall += o.Recall
	m.MRR += o.MRR
}

func (m *Metrics) scale(f float64) {
	m.Precision *= f
	m.Recall *= f
	m.MRR *= f
}
