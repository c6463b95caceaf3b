package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nholloway/modguard/internal/permission"
)

func TestNew_Defaults(t *testing.T) {
	cfg, err := New()
	require.NoError(t, err)

	assert.Equal(t, 128, cfg.CacheSize)
	assert.Equal(t, 12, cfg.ComplexityThreshold)
	assert.Equal(t, "restricted", cfg.DefaultLevel)
	assert.Equal(t, "scripts", cfg.ScriptsDir)
	assert.False(t, cfg.HotReload)
	assert.Equal(t, permission.LevelRestricted, cfg.Level())
}

func TestNew_EnvOverrides(t *testing.T) {
	t.Setenv("MODGUARD_CACHE_SIZE", "16")
	t.Setenv("MODGUARD_DEFAULT_LEVEL", "standard")
	t.Setenv("MODGUARD_HOT_RELOAD", "true")

	cfg, err := New()
	require.NoError(t, err)
	assert.Equal(t, 16, cfg.CacheSize)
	assert.Equal(t, permission.LevelStandard, cfg.Level())
	assert.True(t, cfg.HotReload)
}

func TestNew_RejectsInvalidLevel(t *testing.T) {
	t.Setenv("MODGUARD_DEFAULT_LEVEL", "sudo")

	_, err := New()
	assert.Error(t, err)
}

func TestNew_RejectsNonPositiveCacheSize(t *testing.T) {
	t.Setenv("MODGUARD_CACHE_SIZE", "0")

	_, err := New()
	assert.Error(t, err)
}

func TestNew_IgnoresMalformedNumbers(t *testing.T) {
	t.Setenv("MODGUARD_CACHE_SIZE", "many")

	cfg, err := New()
	require.NoError(t, err)
	assert.Equal(t, 128, cfg.CacheSize)
}
