package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "development", cfg.Environment)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "./data", cfg.Data.Dir)
	assert.True(t, cfg.Data.VerifySignatures)
	assert.Equal(t, "KR_classic_v1.4", cfg.DefaultRuleset)
	assert.NotEmpty(t, cfg.Rulesets)
}

func TestDefaultRulesetShape(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	rs, err := cfg.Ruleset("KR_classic_v1.4")
	require.NoError(t, err)
	assert.Equal(t, "traditional_zi", rs.DayBoundaryPolicy)
	assert.Equal(t, "post_lmt", rs.ZiCheckBasis)
	assert.Equal(t, -32, rs.LMTOffsetMinutes)
	assert.Equal(t, "jie", rs.MonthReference)
	assert.Equal(t, "standard", rs.DeltaTMode)
}

func TestRulesetLookup(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	t.Run("case insensitive", func(t *testing.T) {
		_, err := cfg.Ruleset("kr_CLASSIC_v1.4")
		assert.NoError(t, err)
	})

	t.Run("unknown id", func(t *testing.T) {
		_, err := cfg.Ruleset("JP_modern_v9")
		assert.Error(t, err)
	})
}
