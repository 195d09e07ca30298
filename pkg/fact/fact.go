// Package fact defines the versioned fact record shared by the store, the
// update resolver, the ranker and the verifier.
package fact

import (
	"encoding/json"
	"sort"
	"strings"
)

// MemType categorizes a fact by who it is about and who may know it.
type MemType string

const (
	MemWorld           MemType = "WORLD"             // Global world state
	MemInterCharacter  MemType = "INTERCHARACTER"    // Between two characters
	MemCharacterToUser MemType = "CHARACTER_TO_USER" // Private, character to user
)

// ParseMemType accepts canonical names and the short legacy codes.
func ParseMemType(s string) (MemType, bool) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "WORLD", "WM":
		return MemWorld, true
	case "INTERCHARACTER", "IC":
		return MemInterCharacter, true
	case "CHARACTER_TO_USER", "C2U":
		return MemCharacterToUser, true
	default:
		return MemType(s), false
	}
}

// UnmarshalJSON allows legacy codes ("WM", "IC", "C2U") in persisted files.
func (t *MemType) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	*t, _ = ParseMemType(s)
	return nil
}

// Valid reports whether t is one of the three known memory types.
func (t MemType) Valid() bool {
	switch t {
	case MemWorld, MemInterCharacter, MemCharacterToUser:
		return true
	default:
		return false
	}
}

// Visibility controls who can see a fact.
type Visibility string

const (
	VisibilityGlobal  Visibility = "GLOBAL"
	VisibilityShared  Visibility = "SHARED"
	VisibilityPrivate Visibility = "PRIVATE"
)

// UnmarshalJSON accepts lowercase visibility values.
func (v *Visibility) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	*v = Visibility(strings.ToUpper(strings.TrimSpace(s)))
	return nil
}

// Valid reports whether v is a known visibility, empty excluded.
func (v Visibility) Valid() bool {
	switch v {
	case VisibilityGlobal, VisibilityShared, VisibilityPrivate:
		return true
	default:
		return false
	}
}

// DefaultVisibility is the visibility a fact of type t gets when none is given.
func DefaultVisibility(t MemType) Visibility {
	switch t {
	case MemWorld:
		return VisibilityGlobal
	case MemCharacterToUser:
		return VisibilityPrivate
	default:
		return VisibilityShared
	}
}

// Provenance records where a fact was observed.
type Provenance struct {
	Chapter   int    `json:"chapter"`
	Source    string `json:"source"`
	Timestamp string `json:"timestamp,omitempty"`
}

// Fact is a single versioned assertion about one or two entities.
// Supersedes and SupersededBy form the version chain; they are relations
// between records owned by the store, never ownership.
type Fact struct {
	ID         string     `json:"id"`
	MemType    MemType    `json:"mem_type"`
	Subjects   []string   `json:"subjects"`
	Predicate  string     `json:"predicate"`
	Object     string     `json:"object"`
	FactText   string     `json:"fact_text"`
	Visibility Visibility `json:"visibility"`
	Confidence float64    `json:"confidence"`

	// Chapter window
	ChapterStart int  `json:"chapter_start"`
	ChapterEnd   *int `json:"chapter_end"`
	IsActive     bool `json:"is_active"`

	// Version chain
	Version      int     `json:"version"`
	Supersedes   *string `json:"supersedes"`
	SupersededBy *string `json:"superseded_by"`

	Provenance       Provenance `json:"provenance"`
	UpdateReason     string     `json:"update_reason,omitempty"`
	UpdateConfidence *float64   `json:"update_confidence,omitempty"`

	// Attrs carries free-form annotations (for example "language") through
	// load, save and supersession untouched.
	Attrs map[string]any `json:"attrs,omitempty"`
}

// Key is the canonical identity of a fact slot: sorted subjects, predicate
// and object joined by "::".
type Key string

// KeyOf derives the canonical key. Subject order does not matter.
func KeyOf(subjects []string, predicate, object string) Key {
	sorted := make([]string, len(subjects))
	copy(sorted, subjects)
	sort.Strings(sorted)
	parts := append(sorted, predicate, object)
	return Key(strings.Join(parts, "::"))
}

// Key returns the canonical key of f.
func (f *Fact) Key() Key {
	return KeyOf(f.Subjects, f.Predicate, f.Object)
}

// VisibleAt reports whether f is current at chapter c.
func (f *Fact) VisibleAt(c int) bool {
	if !f.IsActive || f.ChapterStart > c {
		return false
	}
	return f.ChapterEnd == nil || *f.ChapterEnd >= c
}

// HasSubject reports whether id is one of f's subjects.
func (f *Fact) HasSubject(id string) bool {
	for _, s := range f.Subjects {
		if s == id {
			return true
		}
	}
	return false
}

// Clone returns a deep copy so callers cannot alias store-owned memory.
func (f *Fact) Clone() *Fact {
	c := *f
	c.Subjects = append([]string(nil), f.Subjects...)
	if f.ChapterEnd != nil {
		end := *f.ChapterEnd
		c.ChapterEnd = &end
	}
	if f.Supersedes != nil {
		s := *f.Supersedes
		c.Supersedes = &s
	}
	if f.SupersededBy != nil {
		s := *f.SupersededBy
		c.SupersededBy = &s
	}
	if f.UpdateConfidence != nil {
		u := *f.UpdateConfidence
		c.UpdateConfidence = &u
	}
	if f.Attrs != nil {
		c.Attrs = make(map[string]any, len(f.Attrs))
		for k, v := range f.Attrs {
			c.Attrs[k] = v
		}
	}
	return &c
}

// StringPtr is a small helper for the optional chain fields.
func StringPtr(s string) *string {
	return &s
}

// IntPtr is a small helper for the optional chapter_end field.
func IntPtr(i int) *int {
	return &i
}

// Excerpt shortens text to n runes, appending "..." when cut.
func Excerpt(text string, n int) string {
	r := []rune(text)
	if len(r) <= n {
		return text
	}
	return string(r[:n]) + "..."
}
