package vocab

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kittclouds/chapterfacts/pkg/fact"
)

func candidate() *fact.Fact {
	return &fact.Fact{
		MemType:      fact.MemInterCharacter,
		Subjects:     []string{"Dimitri", "Byleth"},
		Predicate:    "relationship_status",
		Object:       "started_affair",
		FactText:     "Byleth and Dimitri began an affair.",
		Confidence:   0.9,
		ChapterStart: 3,
	}
}

func TestDefaultVocabulary(t *testing.T) {
	v := Default()

	p, ok := v.Predicate("alert")
	require.True(t, ok)
	assert.Equal(t, fact.MemWorld, p.Type)
	assert.True(t, p.Allows("company_memo"))
	assert.False(t, p.Allows("started_affair"))

	assert.Equal(t, fact.VisibilityPrivate, v.DefaultVisibility(fact.MemCharacterToUser))
	assert.Equal(t, 0.70, v.MinConfidence())
	assert.Equal(t, 140, v.MaxFactLength())
	assert.Contains(t, v.PredicateNames(), "secrecy_pact")
}

func TestRegistryResolve(t *testing.T) {
	reg := Default().Registry()

	id, ok := reg.Resolve("Dimitri")
	require.True(t, ok)
	assert.Equal(t, "dimitri", id)

	id, ok = reg.Resolve("  BYLETH ")
	require.True(t, ok)
	assert.Equal(t, "byleth", id)

	id, ok = reg.Resolve("user_123")
	require.True(t, ok)
	assert.Equal(t, "user_123", id)
	assert.False(t, reg.IsCharacter("user_123"))

	_, ok = reg.Resolve("Claude")
	assert.False(t, ok)

	assert.Equal(t, []string{"Dimitri"}, reg.Aliases("dimitri"))
	assert.Len(t, reg.MentionEntities(), 8)
}

func TestNormalizeAndValidate(t *testing.T) {
	v := Default()
	f := candidate()

	v.Normalize(f)
	assert.Equal(t, []string{"dimitri", "byleth"}, f.Subjects)
	assert.Equal(t, fact.VisibilityShared, f.Visibility)
	assert.NoError(t, v.Validate(f))
}

func TestValidateRejections(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(f *fact.Fact)
		field  string
	}{
		{"low confidence", func(f *fact.Fact) { f.Confidence = 0.5 }, "confidence"},
		{"unknown subject", func(f *fact.Fact) { f.Subjects[1] = "claude" }, "subjects"},
		{"unknown predicate", func(f *fact.Fact) { f.Predicate = "rivalry" }, "predicate"},
		{"object outside enum", func(f *fact.Fact) { f.Object = "married" }, "object"},
		{"world predicate on character fact", func(f *fact.Fact) {
			f.Predicate = "alert"
			f.Object = "company_memo"
		}, "predicate"},
		{"world fact with character subject", func(f *fact.Fact) {
			f.MemType = fact.MemWorld
			f.Subjects = []string{"byleth"}
		}, "subjects"},
		{"user fact without user", func(f *fact.Fact) { f.MemType = fact.MemCharacterToUser }, "subjects"},
	}

	v := Default()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := candidate()
			v.Normalize(f)
			tt.mutate(f)

			err := v.Validate(f)
			var verr *fact.ValidationError
			require.True(t, errors.As(err, &verr), "expected ValidationError, got %v", err)
			assert.Equal(t, tt.field, verr.Field)
		})
	}
}

func TestUserFactAcceptsCharacterPredicate(t *testing.T) {
	v := Default()
	f := &fact.Fact{
		MemType:    fact.MemCharacterToUser,
		Subjects:   []string{"Dimitri", "user_123"},
		Predicate:  "secrecy_pact",
		Object:     "true",
		FactText:   "Dimitri asks the user to keep his secret.",
		Confidence: 0.8,
	}
	v.Normalize(f)
	assert.Equal(t, fact.VisibilityPrivate, f.Visibility)
	assert.NoError(t, v.Validate(f))
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vocabulary.yaml")
	data := `
predicates:
  rivalry:
    type: IC
    object_enum: [declared, ended]
entities:
  world_id: realm
  character_aliases:
    Hilda: hilda
    Claude: claude
defaults:
  visibility:
    IC: private
  min_confidence: 0.5
`
	require.NoError(t, os.WriteFile(path, []byte(data), 0o644))

	v, err := Load(path)
	require.NoError(t, err)

	_, ok := v.Predicate("relationship_status")
	assert.False(t, ok, "predicates section replaces the defaults")
	_, ok = v.Predicate("rivalry")
	assert.True(t, ok)

	reg := v.Registry()
	assert.Equal(t, "realm", reg.WorldID())
	assert.Equal(t, "user_123", reg.UserID())
	assert.Equal(t, []string{"claude", "hilda"}, reg.Characters())

	assert.Equal(t, fact.VisibilityPrivate, v.DefaultVisibility(fact.MemInterCharacter))
	assert.Equal(t, fact.VisibilityGlobal, v.DefaultVisibility(fact.MemWorld))
	assert.Equal(t, 0.5, v.MinConfidence())
}

func TestParseRejectsBadTypes(t *testing.T) {
	_, err := Parse([]byte("predicates:\n  x:\n    type: GOSSIP\n    object_enum: [a]\n"))
	assert.Error(t, err)

	_, err = Parse([]byte("defaults:\n  visibility:\n    WM: everyone\n"))
	assert.Error(t, err)
}

func TestSampleVocabularyFile(t *testing.T) {
	v, err := Load(filepath.Join("..", "..", "configs", "vocabulary.yaml"))
	require.NoError(t, err)

	assert.Equal(t, Default().PredicateNames(), v.PredicateNames())

	id, ok := v.Registry().Resolve("professor")
	require.True(t, ok)
	assert.Equal(t, "byleth", id)
	assert.Equal(t, []string{"Byleth", "Professor"}, v.Registry().Aliases("byleth"))

	p, ok := v.Predicate("secrecy_pact")
	require.True(t, ok)
	assert.True(t, p.Allows("true"))
}
