package fact

import (
	"math"
	"strconv"
	"strings"
	"unicode/utf8"
)

// MaxFactTextLength bounds FactText, in runes.
const MaxFactTextLength = 140

// ValidateCandidate checks the fields a new observation must carry before it
// is resolved. Identity and chain fields are assigned by the resolver and are
// not checked here.
func (f *Fact) ValidateCandidate() error {
	bad := func(field, reason string) error {
		return &MalformedRecordError{ID: f.ID, Field: field, Reason: reason}
	}

	if !f.MemType.Valid() {
		return bad("mem_type", "unknown memory type "+string(f.MemType))
	}
	want := 2
	if f.MemType == MemWorld {
		want = 1
	}
	if len(f.Subjects) != want {
		return bad("subjects", "expected "+strconv.Itoa(want)+" subjects for "+string(f.MemType)+", got "+strconv.Itoa(len(f.Subjects)))
	}
	for _, s := range f.Subjects {
		if strings.TrimSpace(s) == "" {
			return bad("subjects", "empty subject")
		}
	}
	if strings.TrimSpace(f.Predicate) == "" {
		return bad("predicate", "required")
	}
	if strings.TrimSpace(f.Object) == "" {
		return bad("object", "required")
	}
	if strings.TrimSpace(f.FactText) == "" {
		return bad("fact_text", "required")
	}
	if utf8.RuneCountInString(f.FactText) > MaxFactTextLength {
		return bad("fact_text", "longer than "+strconv.Itoa(MaxFactTextLength)+" characters")
	}
	if f.Visibility != "" && !f.Visibility.Valid() {
		return bad("visibility", "unknown visibility "+string(f.Visibility))
	}
	if math.IsNaN(f.Confidence) || f.Confidence < 0 || f.Confidence > 1 {
		return bad("confidence", "must be within [0,1]")
	}
	if f.ChapterStart < 1 {
		return bad("chapter_start", "must be >= 1")
	}
	return nil
}

// Validate checks a stored record: everything ValidateCandidate checks plus
// identity, window and version fields.
func (f *Fact) Validate() error {
	if strings.TrimSpace(f.ID) == "" {
		return &MalformedRecordError{Field: "id", Reason: "required"}
	}
	if err := f.ValidateCandidate(); err != nil {
		return err
	}
	if !f.Visibility.Valid() {
		return &MalformedRecordError{ID: f.ID, Field: "visibility", Reason: "required"}
	}
	if f.ChapterEnd != nil && *f.ChapterEnd < f.ChapterStart {
		return &MalformedRecordError{ID: f.ID, Field: "chapter_end", Reason: "before chapter_start"}
	}
	if f.Version < 1 {
		return &MalformedRecordError{ID: f.ID, Field: "version", Reason: "must be >= 1"}
	}
	if f.Supersedes != nil && *f.Supersedes == f.ID {
		return &MalformedRecordError{ID: f.ID, Field: "supersedes", Reason: "references itself"}
	}
	return nil
}
