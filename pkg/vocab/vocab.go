// Package vocab holds the controlled predicate vocabulary, the entity
// registry and the extraction defaults. A Vocabulary is loaded once and
// shared read-only by every component that needs it.
package vocab

import (
	"os"
	"sort"
	"strings"

	"github.com/cockroachdb/errors"
	"gopkg.in/yaml.v3"

	"github.com/kittclouds/chapterfacts/pkg/fact"
)

// Predicate describes one controlled predicate.
type Predicate struct {
	Type    fact.MemType
	Objects []string
}

// Allows reports whether object is in the predicate's enumerated value set.
func (p Predicate) Allows(object string) bool {
	for _, o := range p.Objects {
		if o == object {
			return true
		}
	}
	return false
}

// Vocabulary is immutable after construction.
type Vocabulary struct {
	predicates    map[string]Predicate
	visibility    map[fact.MemType]fact.Visibility
	registry      *Registry
	minConfidence float64
	maxFactLength int
}

// file mirrors the YAML layout.
type file struct {
	Predicates map[string]struct {
		Type       string   `yaml:"type"`
		ObjectEnum []string `yaml:"object_enum"`
	} `yaml:"predicates"`
	Entities struct {
		WorldID          string            `yaml:"world_id"`
		UserID           string            `yaml:"user_id"`
		CharacterAliases map[string]string `yaml:"character_aliases"`
	} `yaml:"entities"`
	Defaults struct {
		Visibility    map[string]string `yaml:"visibility"`
		MinConfidence *float64          `yaml:"min_confidence"`
		MaxFactLength int               `yaml:"max_fact_length"`
	} `yaml:"defaults"`
}

// Load reads a vocabulary YAML file. Sections missing from the file fall
// back to the built-in defaults.
func Load(path string) (*Vocabulary, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "read vocabulary %s", path)
	}
	v, err := Parse(data)
	if err != nil {
		return nil, errors.Wrapf(err, "parse vocabulary %s", path)
	}
	return v, nil
}

// Parse builds a Vocabulary from YAML bytes.
func Parse(data []byte) (*Vocabulary, error) {
	var f file
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, errors.Wrap(err, "decode yaml")
	}

	v := Default()

	if len(f.Predicates) > 0 {
		v.predicates = make(map[string]Predicate, len(f.Predicates))
		for name, p := range f.Predicates {
			t, ok := fact.ParseMemType(p.Type)
			if !ok {
				return nil, errors.Newf("predicate %s: unknown type %q", name, p.Type)
			}
			if len(p.ObjectEnum) == 0 {
				return nil, errors.Newf("predicate %s: empty object_enum", name)
			}
			v.predicates[name] = Predicate{Type: t, Objects: append([]string(nil), p.ObjectEnum...)}
		}
	}

	e := f.Entities
	if e.WorldID != "" || e.UserID != "" || len(e.CharacterAliases) > 0 {
		reg := &Registry{worldID: v.registry.worldID, userID: v.registry.userID}
		if e.WorldID != "" {
			reg.worldID = e.WorldID
		}
		if e.UserID != "" {
			reg.userID = e.UserID
		}
		if len(e.CharacterAliases) > 0 {
			reg.setAliases(e.CharacterAliases)
		} else {
			reg.setAliases(v.registry.aliases)
		}
		v.registry = reg
	}

	d := f.Defaults
	for code, vis := range d.Visibility {
		t, ok := fact.ParseMemType(code)
		if !ok {
			return nil, errors.Newf("visibility default: unknown type %q", code)
		}
		visibility := fact.Visibility(strings.ToUpper(vis))
		if !visibility.Valid() {
			return nil, errors.Newf("visibility default for %s: unknown visibility %q", code, vis)
		}
		v.visibility[t] = visibility
	}
	if d.MinConfidence != nil {
		if *d.MinConfidence < 0 || *d.MinConfidence > 1 {
			return nil, errors.Newf("min_confidence %v outside [0,1]", *d.MinConfidence)
		}
		v.minConfidence = *d.MinConfidence
	}
	if d.MaxFactLength > 0 {
		v.maxFactLength = d.MaxFactLength
	}

	return v, nil
}

// Default returns the built-in vocabulary.
func Default() *Vocabulary {
	ic := fact.MemInterCharacter
	wm := fact.MemWorld
	reg := &Registry{worldID: "world", userID: "user_123"}
	reg.setAliases(map[string]string{
		"Byleth":   "byleth",
		"Dimitri":  "dimitri",
		"Sylvain":  "sylvain",
		"Annette":  "annette",
		"Dedue":    "dedue",
		"Felix":    "felix",
		"Mercedes": "mercedes",
		"Ashe":     "ashe",
	})

	return &Vocabulary{
		predicates: map[string]Predicate{
			"relationship_status": {Type: ic, Objects: []string{
				"started_affair", "affair_acknowledged", "jealous", "suspicious",
				"reconciled", "proprietary_display", "mentor_mask", "confrontation",
				"deception", "manipulation", "betrayal_discovered",
			}},
			"secrecy_pact":     {Type: ic, Objects: []string{"true", "false"}},
			"contact":          {Type: ic, Objects: []string{"exchanged_numbers", "private_meeting", "hotel_rendezvous"}},
			"evidence":         {Type: ic, Objects: []string{"dedue_found_earring", "public_display", "witnessed_betrayal"}},
			"manipulation":     {Type: ic, Objects: []string{"engineered_alibi_and_tryst", "sabotaged_plans", "created_conflict"}},
			"alert":            {Type: wm, Objects: []string{"health_alert_circulated", "virus_warning", "company_memo"}},
			"world_discussion": {Type: wm, Objects: []string{"office_dismissive_attitude", "virus_fearmongering", "distant_threat"}},
			"office_dynamics":  {Type: wm, Objects: []string{"first_day_energy", "professional_boundaries", "workplace_entanglements"}},
		},
		visibility: map[fact.MemType]fact.Visibility{
			fact.MemWorld:           fact.VisibilityGlobal,
			fact.MemInterCharacter:  fact.VisibilityShared,
			fact.MemCharacterToUser: fact.VisibilityPrivate,
		},
		registry:      reg,
		minConfidence: 0.70,
		maxFactLength: fact.MaxFactTextLength,
	}
}

// Predicate looks up a predicate by name.
func (v *Vocabulary) Predicate(name string) (Predicate, bool) {
	p, ok := v.predicates[name]
	return p, ok
}

// PredicateNames returns all predicate names, sorted.
func (v *Vocabulary) PredicateNames() []string {
	names := make([]string, 0, len(v.predicates))
	for n := range v.predicates {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// DefaultVisibility returns the visibility used when a candidate omits one.
func (v *Vocabulary) DefaultVisibility(t fact.MemType) fact.Visibility {
	if vis, ok := v.visibility[t]; ok {
		return vis
	}
	return fact.DefaultVisibility(t)
}

// Registry returns the entity registry.
func (v *Vocabulary) Registry() *Registry {
	return v.registry
}

// MinConfidence is the lowest candidate confidence accepted at ingestion.
func (v *Vocabulary) MinConfidence() float64 {
	return v.minConfidence
}

// MaxFactLength bounds fact_text in characters.
func (v *Vocabulary) MaxFactLength() int {
	return v.maxFactLength
}
