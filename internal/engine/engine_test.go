package engine

import (
	"context"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nholloway/modguard/internal/hostapi"
	"github.com/nholloway/modguard/internal/permission"
	"github.com/nholloway/modguard/internal/provider"
	"github.com/nholloway/modguard/internal/sandbox"
	"github.com/nholloway/modguard/internal/validator"
)

type fakeProvider struct {
	mod     string
	scripts map[string]string
}

func (p fakeProvider) ModName() string            { return p.mod }
func (p fakeProvider) Scripts() map[string]string { return p.scripts }

func newTestEngine(t *testing.T, scripts map[string]string) *Engine {
	t.Helper()

	store := provider.NewStore(afero.NewMemMapFs(), "scripts")
	store.RegisterEmbedded(fakeProvider{mod: "combat", scripts: scripts})

	v := validator.New()
	e := New(store, sandbox.New(sandbox.WithValidator(v)), v, permission.LevelRestricted)
	require.NoError(t, e.Initialize(context.Background(), false))
	return e
}

func TestEngine_RunStoredScript(t *testing.T) {
	e := newTestEngine(t, map[string]string{
		"damage": `calc := func(base) { return base * 2 }`,
	})

	result, err := e.Run(context.Background(), RunRequest{
		Mod:        "combat",
		Script:     "damage",
		EntryPoint: "calc",
		Args:       []interface{}{21},
	})
	require.NoError(t, err)
	require.True(t, result.Success, "exception: %v", result.Exception)
	assert.Equal(t, int64(42), result.ReturnValue)
}

func TestEngine_UnknownScript(t *testing.T) {
	e := newTestEngine(t, nil)

	_, err := e.Run(context.Background(), RunRequest{Mod: "combat", Script: "missing"})
	assert.ErrorIs(t, err, provider.ErrNotFound)
}

func TestEngine_DefaultLevelGovernsUnregisteredMods(t *testing.T) {
	// The default level is Restricted, which has no GameStateWrite.
	e := newTestEngine(t, map[string]string{
		"cheat": `world.set("gold", 9999)`,
	})

	result, err := e.Run(context.Background(), RunRequest{
		Mod:    "combat",
		Script: "cheat",
		Host:   hostapi.NewMemoryHost(nil),
	})
	require.NoError(t, err)
	assert.False(t, result.Success)
	require.NotNil(t, result.Exception)
	assert.Equal(t, sandbox.ErrorTypeValidation, result.Exception.Type)
}

func TestEngine_RegisteredModGetsItsCap(t *testing.T) {
	e := newTestEngine(t, map[string]string{
		"grant": `world.set("gold", 10)`,
	})
	e.RegisterMod("combat", permission.LevelStandard)

	host := hostapi.NewMemoryHost(nil)
	result, err := e.Run(context.Background(), RunRequest{
		Mod:    "combat",
		Script: "grant",
		Host:   host,
	})
	require.NoError(t, err)
	require.True(t, result.Success, "exception: %v", result.Exception)

	gold, ok := host.StateGet("gold")
	require.True(t, ok)
	assert.Equal(t, int64(10), gold)
}

func TestEngine_HintsNarrowTheCap(t *testing.T) {
	e := newTestEngine(t, map[string]string{
		"cautious": `//mod: level=none
result := 1 + 1`,
	})
	e.RegisterMod("combat", permission.LevelStandard)

	result, err := e.Run(context.Background(), RunRequest{Mod: "combat", Script: "cautious"})
	require.NoError(t, err)
	require.True(t, result.Success)
	assert.Equal(t, int64(2), result.ReturnValue)
}

func TestEngine_ValidateWithoutRunning(t *testing.T) {
	e := newTestEngine(t, map[string]string{
		"bad": `o := import("os")`,
	})

	res, err := e.Validate("combat", "bad")
	require.NoError(t, err)
	assert.False(t, res.IsValid)
}

func TestEngine_CacheStats(t *testing.T) {
	e := newTestEngine(t, map[string]string{
		"simple": `result := 1`,
	})

	for i := 0; i < 3; i++ {
		_, err := e.Run(context.Background(), RunRequest{Mod: "combat", Script: "simple"})
		require.NoError(t, err)
	}

	stats := e.CacheStats()
	assert.Equal(t, int64(1), stats.Misses)
	assert.Equal(t, int64(2), stats.Hits)
}
