package app

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nholloway/modguard/internal/config"
	"github.com/nholloway/modguard/internal/registry"
)

func TestNew_WiresEverything(t *testing.T) {
	cfg, err := config.New()
	require.NoError(t, err)

	deps := New(cfg)
	defer deps.Close()

	assert.NotNil(t, deps.Engine)
	assert.NotNil(t, deps.Store)
	assert.NotNil(t, deps.Executor)
	assert.Nil(t, deps.Bus, "the bus only exists when audit publishing is on")

	eng := registry.MustGet(deps.Registry, EngineKey)
	assert.Same(t, deps.Engine, eng)
}

func TestNew_AuditToBus(t *testing.T) {
	t.Setenv("MODGUARD_AUDIT_TO_BUS", "true")
	cfg, err := config.New()
	require.NoError(t, err)

	deps := New(cfg)
	defer deps.Close()

	require.NotNil(t, deps.Bus)
}
