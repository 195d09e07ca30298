package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kittclouds/chapterfacts/pkg/eval"
	"github.com/kittclouds/chapterfacts/pkg/fact"
	"github.com/kittclouds/chapterfacts/pkg/rank"
	"github.com/kittclouds/chapterfacts/pkg/update"
	"github.com/kittclouds/chapterfacts/pkg/verify"
)

func load(t *testing.T, file string) *Config {
	t.Helper()
	v, err := InitViper(file)
	require.NoError(t, err)
	cfg, err := Load(v)
	require.NoError(t, err)
	return cfg
}

func TestDefaults(t *testing.T) {
	t.Chdir(t.TempDir())
	cfg := load(t, "")

	assert.Equal(t, "info", cfg.Log.Level)
	assert.False(t, cfg.JSONLogs())
	assert.Equal(t, BackendJSONL, cfg.Store.Backend)
	assert.Empty(t, cfg.Vocabulary.Path)

	assert.Equal(t, update.DefaultParams(), cfg.UpdateParams())
	assert.Equal(t, rank.DefaultParams(), cfg.RankParams())

	vp := cfg.VerifyParams()
	dv := verify.DefaultParams()
	assert.Equal(t, dv.FutureMarkers, vp.FutureMarkers)
	assert.Equal(t, dv.AsymmetricTerms, vp.AsymmetricTerms)
	assert.True(t, vp.Concurrent)

	assert.Equal(t, eval.DefaultParams(), cfg.EvalParams())
}

func TestFileOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "facts.yaml")
	data := `
log:
  level: debug
  format: json
store:
  backend: sqlite
  path: /tmp/facts.db
update:
  threshold: 0.7
  tie_break: strict
rank:
  near_window: 2
verify:
  future_markers: ["soon"]
  concurrent: false
eval:
  coverage_threshold: 0.5
`
	require.NoError(t, os.WriteFile(path, []byte(data), 0o600))

	cfg := load(t, path)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.True(t, cfg.JSONLogs())
	assert.Equal(t, BackendSQLite, cfg.Store.Backend)
	assert.Equal(t, "/tmp/facts.db", cfg.Store.Path)

	up := cfg.UpdateParams()
	assert.InDelta(t, 0.7, up.Threshold, 1e-9)
	assert.Equal(t, update.TieBreakStrict, up.TieBreak)
	assert.InDelta(t, 0.3, up.ConfidenceWeight, 1e-9, "unset keys keep defaults")

	assert.Equal(t, 2, cfg.RankParams().NearWindow)
	assert.Equal(t, 10, cfg.RankParams().MidWindow)

	vp := cfg.VerifyParams()
	assert.Equal(t, []string{"soon"}, vp.FutureMarkers)
	assert.False(t, vp.Concurrent)

	ep := cfg.EvalParams()
	assert.InDelta(t, 0.5, ep.CoverageThreshold, 1e-9)
	assert.Equal(t, 5, ep.DefaultK)
}

func TestEnvOverrides(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("CHAPTERFACTS_UPDATE_THRESHOLD", "0.9")
	t.Setenv("CHAPTERFACTS_STORE_BACKEND", "sqlite")

	cfg := load(t, "")
	assert.InDelta(t, 0.9, cfg.Update.Threshold, 1e-9)
	assert.Equal(t, BackendSQLite, cfg.Store.Backend)
}

func TestRankKeywordsAcceptShortCodes(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Rank.Keywords = map[string][]string{"wm": {"kingdom"}, "c2u": {"you"}}
	require.NoError(t, cfg.Validate())

	kw := cfg.RankParams().Keywords
	assert.Equal(t, []string{"kingdom"}, kw[fact.MemWorld])
	assert.Equal(t, []string{"you"}, kw[fact.MemCharacterToUser])
}

func TestValidateRejectsUnknownValues(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Store.Backend = "postgres"
	assert.Error(t, cfg.Validate())

	cfg = NewDefaultConfig()
	cfg.Update.TieBreak = "latest"
	assert.Error(t, cfg.Validate())

	cfg = NewDefaultConfig()
	cfg.Rank.Keywords = map[string][]string{"gossip": {"rumour"}}
	assert.Error(t, cfg.Validate())
}

func TestMissingExplicitFile(t *testing.T) {
	_, err := InitViper(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestSampleConfigFile(t *testing.T) {
	cfg := load(t, filepath.Join("..", "..", "configs", "chapterfacts.yaml"))

	assert.Equal(t, "configs/vocabulary.yaml", cfg.Vocabulary.Path)
	assert.Equal(t, update.DefaultParams(), cfg.UpdateParams())
	assert.Equal(t, rank.DefaultParams(), cfg.RankParams())
	assert.Equal(t, verify.DefaultParams().FutureMarkers, cfg.VerifyParams().FutureMarkers)
	assert.Equal(t, eval.DefaultParams(), cfg.EvalParams())
}
