package config

import (
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/spf13/viper"
)

// EnvPrefix is prepended to environment overrides, e.g.
// CHAPTERFACTS_STORE_BACKEND or CHAPTERFACTS_UPDATE_THRESHOLD.
const EnvPrefix = "CHAPTERFACTS"

// InitViper creates a configured *viper.Viper.
//
// Precedence (highest to lowest):
//  1. flags bound by the caller
//  2. CHAPTERFACTS_* environment variables
//  3. the YAML file at configFile, or chapterfacts.yaml in the working directory
//  4. NewDefaultConfig
func InitViper(configFile string) (*viper.Viper, error) {
	v := viper.New()
	setDefaults(v)

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("chapterfacts")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		// A missing default file is fine; an explicit one is not.
		var notFound viper.ConfigFileNotFoundError
		if configFile != "" || !errors.As(err, &notFound) {
			return nil, errors.Wrap(err, "reading config")
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	return v, nil
}

// setDefaults registers NewDefaultConfig under dotted keys.
func setDefaults(v *viper.Viper) {
	d := NewDefaultConfig()

	// Log
	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.format", d.Log.Format)

	// Store
	v.SetDefault("store.backend", d.Store.Backend)
	v.SetDefault("store.path", d.Store.Path)

	// Vocabulary
	v.SetDefault("vocabulary.path", d.Vocabulary.Path)

	// Update
	v.SetDefault("update.threshold", d.Update.Threshold)
	v.SetDefault("update.confidence_weight", d.Update.ConfidenceWeight)
	v.SetDefault("update.recency_step", d.Update.RecencyStep)
	v.SetDefault("update.recency_cap", d.Update.RecencyCap)
	v.SetDefault("update.confidence_gain_bonus", d.Update.ConfidenceGainBonus)
	v.SetDefault("update.stale_after", d.Update.StaleAfter)
	v.SetDefault("update.stale_bonus", d.Update.StaleBonus)
	v.SetDefault("update.tie_break", d.Update.TieBreak)

	// Rank
	v.SetDefault("rank.confidence_weight", d.Rank.ConfidenceWeight)
	v.SetDefault("rank.chapter_weight", d.Rank.ChapterWeight)
	v.SetDefault("rank.overlap_weight", d.Rank.OverlapWeight)
	v.SetDefault("rank.type_weight", d.Rank.TypeWeight)
	v.SetDefault("rank.exact_score", d.Rank.ExactScore)
	v.SetDefault("rank.near_window", d.Rank.NearWindow)
	v.SetDefault("rank.near_score", d.Rank.NearScore)
	v.SetDefault("rank.mid_window", d.Rank.MidWindow)
	v.SetDefault("rank.mid_score", d.Rank.MidScore)
	v.SetDefault("rank.far_score", d.Rank.FarScore)
	v.SetDefault("rank.empty_query_overlap", d.Rank.EmptyQueryOverlap)
	v.SetDefault("rank.type_miss", d.Rank.TypeMiss)
	v.SetDefault("rank.keywords", d.Rank.Keywords)

	// Verify
	v.SetDefault("verify.future_markers", d.Verify.FutureMarkers)
	v.SetDefault("verify.asymmetric_terms", d.Verify.AsymmetricTerms)
	v.SetDefault("verify.concurrent", d.Verify.Concurrent)

	// Eval
	v.SetDefault("eval.coverage_threshold", d.Eval.CoverageThreshold)
	v.SetDefault("eval.default_k", d.Eval.DefaultK)
	v.SetDefault("eval.default_chapter", d.Eval.DefaultChapter)
}
