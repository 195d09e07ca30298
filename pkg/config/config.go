// Package config loads every tunable of the fact pipeline from defaults, an
// optional YAML file and CHAPTERFACTS_* environment variables.
package config

import (
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/spf13/viper"

	"github.com/kittclouds/chapterfacts/pkg/eval"
	"github.com/kittclouds/chapterfacts/pkg/fact"
	"github.com/kittclouds/chapterfacts/pkg/rank"
	"github.com/kittclouds/chapterfacts/pkg/update"
	"github.com/kittclouds/chapterfacts/pkg/verify"
)

// Storage backends.
const (
	BackendJSONL  = "jsonl"
	BackendSQLite = "sqlite"
)

// Config holds all configuration for the application
type Config struct {
	// Log configuration
	Log LogConfig `mapstructure:"log"`

	// Store configuration
	Store StoreConfig `mapstructure:"store"`

	// Vocabulary configuration
	Vocabulary VocabularyConfig `mapstructure:"vocabulary"`

	// Update resolver heuristics
	Update UpdateConfig `mapstructure:"update"`

	// Ranker weights and bands
	Rank RankConfig `mapstructure:"rank"`

	// Verifier lexicons
	Verify VerifyConfig `mapstructure:"verify"`

	// Evaluation against gold data
	Eval EvalConfig `mapstructure:"eval"`
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"` // text, json
}

// StoreConfig holds persistence configuration
type StoreConfig struct {
	Backend string `mapstructure:"backend"` // jsonl, sqlite
	Path    string `mapstructure:"path"`
}

// VocabularyConfig points at the predicate vocabulary and entity registry.
// An empty path means the built-in tables.
type VocabularyConfig struct {
	Path string `mapstructure:"path"`
}

// UpdateConfig holds the supersession score heuristics
type UpdateConfig struct {
	Threshold           float64 `mapstructure:"threshold"`
	ConfidenceWeight    float64 `mapstructure:"confidence_weight"`
	RecencyStep         float64 `mapstructure:"recency_step"`
	RecencyCap          float64 `mapstructure:"recency_cap"`
	ConfidenceGainBonus float64 `mapstructure:"confidence_gain_bonus"`
	StaleAfter          int     `mapstructure:"stale_after"`
	StaleBonus          float64 `mapstructure:"stale_bonus"`
	TieBreak            string  `mapstructure:"tie_break"` // earliest, strict
}

// RankConfig holds relevance weights, chapter bands and type keywords
type RankConfig struct {
	ConfidenceWeight  float64 `mapstructure:"confidence_weight"`
	ChapterWeight     float64 `mapstructure:"chapter_weight"`
	OverlapWeight     float64 `mapstructure:"overlap_weight"`
	TypeWeight        float64 `mapstructure:"type_weight"`
	ExactScore        float64 `mapstructure:"exact_score"`
	NearWindow        int     `mapstructure:"near_window"`
	NearScore         float64 `mapstructure:"near_score"`
	MidWindow         int     `mapstructure:"mid_window"`
	MidScore          float64 `mapstructure:"mid_score"`
	FarScore          float64 `mapstructure:"far_score"`
	EmptyQueryOverlap float64 `mapstructure:"empty_query_overlap"`
	TypeMiss          float64 `mapstructure:"type_miss"`

	// Keywords is keyed by memory type name (world, intercharacter,
	// character_to_user, or the short codes).
	Keywords map[string][]string `mapstructure:"keywords"`
}

// VerifyConfig holds the consistency verifier lexicons
type VerifyConfig struct {
	FutureMarkers   []string `mapstructure:"future_markers"`
	AsymmetricTerms []string `mapstructure:"asymmetric_terms"`
	Concurrent      bool     `mapstructure:"concurrent"`
}

// EvalConfig holds the gold-data evaluation settings
type EvalConfig struct {
	CoverageThreshold float64 `mapstructure:"coverage_threshold"`
	DefaultK          int     `mapstructure:"default_k"`
	DefaultChapter    int     `mapstructure:"default_chapter"`
}

// Load decodes v into a Config and checks enumerated values.
func Load(v *viper.Viper) (*Config, error) {
	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, errors.Wrap(err, "unable to decode config")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects unknown enumerated values.
func (c *Config) Validate() error {
	switch c.Store.Backend {
	case BackendJSONL, BackendSQLite:
	default:
		return errors.Newf("config: unknown store backend %q", c.Store.Backend)
	}
	switch update.TieBreak(c.Update.TieBreak) {
	case update.TieBreakEarliest, update.TieBreakStrict:
	default:
		return errors.Newf("config: unknown tie_break %q", c.Update.TieBreak)
	}
	switch strings.ToLower(c.Log.Format) {
	case "text", "json":
	default:
		return errors.Newf("config: unknown log format %q", c.Log.Format)
	}
	for name := range c.Rank.Keywords {
		if _, ok := fact.ParseMemType(name); !ok {
			return errors.Newf("config: unknown memory type %q in rank.keywords", name)
		}
	}
	return nil
}

// JSONLogs reports whether the JSON log encoder was requested.
func (c *Config) JSONLogs() bool {
	return strings.EqualFold(c.Log.Format, "json")
}

// UpdateParams converts the update section for the resolver.
func (c *Config) UpdateParams() update.Params {
	u := c.Update
	return update.Params{
		Threshold:           u.Threshold,
		ConfidenceWeight:    u.ConfidenceWeight,
		RecencyStep:         u.RecencyStep,
		RecencyCap:          u.RecencyCap,
		ConfidenceGainBonus: u.ConfidenceGainBonus,
		StaleAfter:          u.StaleAfter,
		StaleBonus:          u.StaleBonus,
		TieBreak:            update.TieBreak(u.TieBreak),
	}
}

// RankParams converts the rank section for the ranker.
func (c *Config) RankParams() rank.Params {
	r := c.Rank
	keywords := make(map[fact.MemType][]string, len(r.Keywords))
	for name, words := range r.Keywords {
		t, _ := fact.ParseMemType(name)
		keywords[t] = append(keywords[t], words...)
	}
	return rank.Params{
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
	}
}

// VerifyParams converts the verify section. World/user ids and aliases
// come from the vocabulary, not from here.
func (c *Config) VerifyParams() verify.Params {
	p := verify.DefaultParams()
	p.FutureMarkers = append([]string(nil), c.Verify.FutureMarkers...)
	p.AsymmetricTerms = append([]string(nil), c.Verify.AsymmetricTerms...)
	p.Concurrent = c.Verify.Concurrent
	return p
}

// EvalParams converts the eval section.
func (c *Config) EvalParams() eval.Params {
	return eval.Params{
		CoverageThreshold: c.Eval.CoverageThreshold,
		DefaultK:          c.Eval.DefaultK,
		DefaultChapter:    c.Eval.DefaultChapter,
	}
}
