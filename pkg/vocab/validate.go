package vocab

import (
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/kittclouds/chapterfacts/pkg/fact"
)

// Normalize resolves display-name subjects to registered ids and fills the
// default visibility for the candidate's memory type. Unknown subjects are
// left untouched for Validate to report.
func (v *Vocabulary) Normalize(f *fact.Fact) {
	for i, s := range f.Subjects {
		if id, ok := v.registry.Resolve(s); ok {
			f.Subjects[i] = id
		}
	}
	if f.Visibility == "" {
		f.Visibility = v.DefaultVisibility(f.MemType)
	}
}

// Validate checks a candidate against the vocabulary and the entity
// registry. It returns a *fact.ValidationError on the first mismatch.
func (v *Vocabulary) Validate(f *fact.Fact) error {
	if f.Confidence < v.minConfidence {
		return &fact.ValidationError{
			Field:  "confidence",
			Value:  strconv.FormatFloat(f.Confidence, 'f', 2, 64),
			Reason: "below minimum confidence " + strconv.FormatFloat(v.minConfidence, 'f', 2, 64),
		}
	}
	if n := utf8.RuneCountInString(f.FactText); n > v.maxFactLength {
		return &fact.ValidationError{
			Field:  "fact_text",
			Value:  fact.Excerpt(f.FactText, 20),
			Reason: "longer than " + strconv.Itoa(v.maxFactLength) + " characters",
		}
	}

	reg := v.registry
	switch f.MemType {
	case fact.MemWorld:
		if len(f.Subjects) != 1 || f.Subjects[0] != reg.worldID {
			return &fact.ValidationError{Field: "subjects", Value: joinSubjects(f.Subjects), Reason: "world facts take the world id as sole subject"}
		}
	case fact.MemInterCharacter:
		if len(f.Subjects) != 2 {
			return &fact.ValidationError{Field: "subjects", Value: joinSubjects(f.Subjects), Reason: "intercharacter facts take two subjects"}
		}
	case fact.MemCharacterToUser:
		if len(f.Subjects) != 2 || !f.HasSubject(reg.userID) {
			return &fact.ValidationError{Field: "subjects", Value: joinSubjects(f.Subjects), Reason: "character-to-user facts take a character and the user id"}
		}
	default:
		return &fact.ValidationError{Field: "mem_type", Value: string(f.MemType), Reason: "unknown memory type"}
	}

	for _, s := range f.Subjects {
		if s == reg.worldID || s == reg.userID || reg.IsCharacter(s) {
			continue
		}
		return &fact.ValidationError{Field: "subjects", Value: s, Reason: "not in entity registry"}
	}

	p, ok := v.predicates[f.Predicate]
	if !ok {
		return &fact.ValidationError{Field: "predicate", Value: f.Predicate, Reason: "not in predicate vocabulary"}
	}
	// Character predicates serve both intercharacter and character-to-user facts.
	if (p.Type == fact.MemWorld) != (f.MemType == fact.MemWorld) {
		return &fact.ValidationError{Field: "predicate", Value: f.Predicate, Reason: "belongs to " + string(p.Type) + " facts"}
	}
	if !p.Allows(f.Object) {
		return &fact.ValidationError{Field: "object", Value: f.Object, Reason: "not allowed for predicate " + f.Predicate}
	}
	return nil
}

func joinSubjects(subjects []string) string {
	return strings.Join(subjects, ",")
}
