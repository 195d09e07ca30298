package factstore

import (
	"sort"

	"github.com/kittclouds/chapterfacts/pkg/fact"
)

// Confidence bands used in summaries.
const (
	HighConfidence   = 0.8
	MediumConfidence = 0.6
)

// ConfidenceBands counts records per confidence band.
type ConfidenceBands struct {
	High   int `json:"high"`
	Medium int `json:"medium"`
	Low    int `json:"low"`
}

// Summary describes what is known at one chapter.
type Summary struct {
	Chapter      int                  `json:"chapter"`
	Total        int                  `json:"total_memories"`
	ByType       map[fact.MemType]int `json:"by_type"`
	ByConfidence ConfidenceBands      `json:"by_confidence"`
	Characters   []string             `json:"characters_involved"`
	Top          []*fact.Fact         `json:"top_memories"`
}

// Chapters returns the sorted chapters that have at least one record.
func (s *Store) Chapters() []int {
	return append([]int(nil), s.chapters...)
}

// ChapterCounts returns the number of records originating in each chapter.
func (s *Store) ChapterCounts() map[int]int {
	out := make(map[int]int, len(s.byChapter))
	for ch, idxs := range s.byChapter {
		out[ch] = len(idxs)
	}
	return out
}

// SummaryAt aggregates the records visible at chapter c.
func (s *Store) SummaryAt(c int) Summary {
	visible := s.QueryAtChapter(c)

	sum := Summary{
		Chapter: c,
		Total:   len(visible),
		ByType:  make(map[fact.MemType]int),
	}

	chars := make(map[string]bool)
	for _, r := range visible {
		sum.ByType[r.MemType]++
		switch {
		case r.Confidence >= HighConfidence:
			sum.ByConfidence.High++
		case r.Confidence >= MediumConfidence:
			sum.ByConfidence.Medium++
		default:
			sum.ByConfidence.Low++
		}
		for _, subj := range r.Subjects {
			if !s.reserved[subj] {
				chars[subj] = true
			}
		}
	}

	sum.Characters = make([]string, 0, len(chars))
	for name := range chars {
		sum.Characters = append(sum.Characters, name)
	}
	sort.Strings(sum.Characters)

	sort.SliceStable(visible, func(i, j int) bool {
		return visible[i].Confidence > visible[j].Confidence
	})
	if len(visible) > 5 {
		visible = visible[:5]
	}
	sum.Top = visible
	return sum
}
