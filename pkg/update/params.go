// Package update decides whether an observed fact candidate creates a new
// fact slot, supersedes an existing version, or is discarded.
package update

import (
	"math"

	"github.com/kittclouds/chapterfacts/pkg/fact"
)

// TieBreak selects among update candidates that share the top score.
type TieBreak string

const (
	// TieBreakEarliest picks the lowest chapter_start, then the lowest id.
	TieBreakEarliest TieBreak = "earliest"
	// TieBreakStrict refuses to choose and discards the candidate.
	TieBreakStrict TieBreak = "strict"
)

// tieEpsilon is the score distance under which two scores are equal.
const tieEpsilon = 1e-9

// Params holds the scoring heuristics. All of them are tunable.
type Params struct {
	Threshold           float64
	ConfidenceWeight    float64
	RecencyStep         float64
	RecencyCap          float64
	ConfidenceGainBonus float64
	StaleAfter          int
	StaleBonus          float64
	TieBreak            TieBreak
}

// DefaultParams returns the stock heuristics.
func DefaultParams() Params {
	return Params{
		Threshold:           0.6,
		ConfidenceWeight:    0.3,
		RecencyStep:         0.05,
		RecencyCap:          0.2,
		ConfidenceGainBonus: 0.2,
		StaleAfter:          5,
		StaleBonus:          0.1,
		TieBreak:            TieBreakEarliest,
	}
}

// Score rates how strongly candidate should replace existing:
//
//	w*conf + min(cap, step*(Δchapter)) + gain bonus + stale bonus
//
// clamped to [0, 1].
func (p Params) Score(candidate, existing *fact.Fact) float64 {
	delta := candidate.ChapterStart - existing.ChapterStart

	score := p.ConfidenceWeight * candidate.Confidence
	score += math.Min(p.RecencyCap, p.RecencyStep*float64(delta))
	if candidate.Confidence > existing.Confidence {
		score += p.ConfidenceGainBonus
	}
	if existing.ChapterStart < candidate.ChapterStart-p.StaleAfter {
		score += p.StaleBonus
	}
	return math.Max(0, math.Min(1, score))
}

// Reason labels a supersession by the strength of its score.
func Reason(score float64) string {
	switch {
	case score > 0.8:
		return "high_confidence_update"
	case score > 0.6:
		return "moderate_update"
	default:
		return "low_confidence_update"
	}
}
