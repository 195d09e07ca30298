package verify

import (
	"github.com/kittclouds/chapterfacts/pkg/fact"
)

// Violation kinds, as written in the "type" field of each report.
const (
	KindTimeOverlap = "time_overlap_conflict"
	KindFutureLeak  = "world_future_leak"
	KindCrosstalk   = "crosstalk_violation"
	KindSymmetry    = "symmetry_violation"
)

// TimeOverlapConflict: two active records share a canonical key but start
// in different chapters.
type TimeOverlapConflict struct {
	Type           string   `json:"type"`
	Memory1ID      string   `json:"memory1_id"`
	Memory2ID      string   `json:"memory2_id"`
	CanonicalKey   fact.Key `json:"canonical_key"`
	Memory1Chapter int      `json:"memory1_chapter"`
	Memory2Chapter int      `json:"memory2_chapter"`
	Memory1Fact    string   `json:"memory1_fact"`
	Memory2Fact    string   `json:"memory2_fact"`
	Description    string   `json:"description"`
}

// WorldFutureLeak: an active world record speaks about the future.
type WorldFutureLeak struct {
	Type            string   `json:"type"`
	MemoryID        string   `json:"memory_id"`
	CanonicalKey    fact.Key `json:"canonical_key"`
	Chapter         int      `json:"chapter"`
	FactText        string   `json:"fact_text"`
	FutureIndicator string   `json:"future_indicator"`
	Description     string   `json:"description"`
}

// CrosstalkViolation: a character's record names someone whose private
// user-directed knowledge only appears in a later chapter.
type CrosstalkViolation struct {
	Type                string `json:"type"`
	MemoryID            string `json:"memory_id"`
	Character           string `json:"character"`
	Chapter             int    `json:"chapter"`
	ReferencedCharacter string `json:"referenced_character"`
	ReferencedChapter   int    `json:"referenced_chapter"`
	FactText            string `json:"fact_text"`
	Description         string `json:"description"`
}

// SymmetryViolation: a lone asymmetric claim between two characters with
// no record for the pair in the other direction.
type SymmetryViolation struct {
	Type                string `json:"type"`
	MemoryID            string `json:"memory_id"`
	RelationshipKey     string `json:"relationship_key"`
	Character1          string `json:"character1"`
	Character2          string `json:"character2"`
	FactText            string `json:"fact_text"`
	AsymmetricIndicator string `json:"asymmetric_indicator"`
	Description         string `json:"description"`
}

// Summary counts violations per class.
type Summary struct {
	TotalConflicts       int `json:"total_conflicts"`
	TimeOverlapConflicts int `json:"time_overlap_conflicts"`
	WorldFutureLeaks     int `json:"world_future_leaks"`
	CrosstalkViolations  int `json:"crosstalk_violations"`
	SymmetryViolations   int `json:"symmetry_violations"`
}

// Report is the outcome of a full verification pass. An empty report is
// the success condition.
type Report struct {
	TimeOverlapConflicts []TimeOverlapConflict `json:"time_overlap_conflicts"`
	WorldFutureLeaks     []WorldFutureLeak     `json:"world_future_leaks"`
	CrosstalkViolations  []CrosstalkViolation  `json:"crosstalk_violations"`
	SymmetryViolations   []SymmetryViolation   `json:"symmetry_violations"`
	Summary              Summary               `json:"summary"`
}

// Clean reports whether no violation was found.
func (r *Report) Clean() bool {
	return r.Summary.TotalConflicts == 0
}

func (r *Report) summarize() {
	r.Summary = Summary{
		TimeOverlapConflicts: len(r.TimeOverlapConflicts),
		WorldFutureLeaks:     len(r.WorldFutureLeaks),
		CrosstalkViolations:  len(r.CrosstalkViolations),
		SymmetryViolations:   len(r.SymmetryViolations),
	}
	r.Summary.TotalConflicts = r.Summary.TimeOverlapConflicts + r.Summary.WorldFutureLeaks +
		r.Summary.CrosstalkViolations + r.Summary.SymmetryViolations
}
