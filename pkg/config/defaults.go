package config

import (
	"strings"

	"github.com/kittclouds/chapterfacts/pkg/eval"
	"github.com/kittclouds/chapterfacts/pkg/rank"
	"github.com/kittclouds/chapterfacts/pkg/update"
	"github.com/kittclouds/chapterfacts/pkg/verify"
)

const (
	defaultLogLevel  = "info"
	defaultLogFormat = "text"

	defaultBackend   = BackendJSONL
	defaultStorePath = "chapter_facts.jsonl"
)

// NewDefaultConfig returns a Config with the stock heuristics. It is the
// single source of truth for default values.
func NewDefaultConfig() *Config {
	u := update.DefaultParams()
	r := rank.DefaultParams()
	v := verify.DefaultParams()
	e := eval.DefaultParams()

	keywords := make(map[string][]string, len(r.Keywords))
	for t, words := range r.Keywords {
		keywords[strings.ToLower(string(t))] = append([]string(nil), words...)
	}

	return &Config{
		Log: LogConfig{
			Level:  defaultLogLevel,
			Format: defaultLogFormat,
		},
		Store: StoreConfig{
			Backend: defaultBackend,
			Path:    defaultStorePath,
		},
		Update: UpdateConfig{
			Threshold:           u.Threshold,
			ConfidenceWeight:    u.ConfidenceWeight,
			RecencyStep:         u.RecencyStep,
			RecencyCap:          u.RecencyCap,
			ConfidenceGainBonus: u.ConfidenceGainBonus,
			StaleAfter:          u.StaleAfter,
			StaleBonus:          u.StaleBonus,
			TieBreak:            string(u.TieBreak),
		},
		Rank: RankConfig{
			ConfidenceWeight:  r.ConfidenceWeight,
			ChapterWeight:     r.ChapterWeight,
			OverlapWeight:     r.OverlapWeight,
			TypeWeight:        r.TypeWeight,
			ExactScore:        r.ExactScore,
			NearWindow:        r.NearWindow,
			NearScore:         r.NearScore,
			MidWindow:         r.MidWindow,
			MidScore:          r.MidScore,
			FarScore:          r.FarScore,
			EmptyQueryOverlap: r.EmptyQueryOverlap,
			TypeMiss:          r.TypeMiss,
			Keywords:          keywords,
		},
		Verify: VerifyConfig{
			FutureMarkers:   v.FutureMarkers,
			AsymmetricTerms: v.AsymmetricTerms,
			Concurrent:      v.Concurrent,
		},
		Eval: EvalConfig{
			CoverageThreshold: e.CoverageThreshold,
			DefaultK:          e.DefaultK,
			DefaultChapter:    e.DefaultChapter,
		},
	}
}
