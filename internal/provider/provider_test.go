package provider

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeProvider struct {
	mod     string
	scripts map[string]string
}

func (p fakeProvider) ModName() string            { return p.mod }
func (p fakeProvider) Scripts() map[string]string { return p.scripts }

func TestStore_LoadEmbedded(t *testing.T) {
	store := NewStore(afero.NewMemMapFs(), "scripts")
	store.RegisterEmbedded(fakeProvider{
		mod:     "combat",
		scripts: map[string]string{"strike": `result := 1`},
	})
	require.NoError(t, store.Load())

	script, err := store.Get("combat", "strike")
	require.NoError(t, err)
	assert.Equal(t, SourceEmbedded, script.Source)
	assert.Equal(t, "combat/strike", script.ID())
	assert.NotEmpty(t, script.Checksum)
}

func TestStore_GetUnknownScript(t *testing.T) {
	store := NewStore(afero.NewMemMapFs(), "scripts")
	require.NoError(t, store.Load())

	_, err := store.Get("combat", "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStore_ExternalOverridesEmbedded(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs,
		filepath.Join("scripts", "combat", "strike.tengo"),
		[]byte(`result := 2`), 0o644))

	store := NewStore(fs, "scripts")
	store.RegisterEmbedded(fakeProvider{
		mod:     "combat",
		scripts: map[string]string{"strike": `result := 1`},
	})
	require.NoError(t, store.Load())

	script, err := store.Get("combat", "strike")
	require.NoError(t, err)
	assert.Equal(t, SourceExternal, script.Source)
	assert.Equal(t, `result := 2`, script.Content)
}

func TestStore_ChecksumTracksContent(t *testing.T) {
	fs := afero.NewMemMapFs()
	path := filepath.Join("scripts", "combat", "strike.tengo")
	require.NoError(t, afero.WriteFile(fs, path, []byte(`result := 2`), 0o644))

	store := NewStore(fs, "scripts")
	require.NoError(t, store.Load())
	before, err := store.Get("combat", "strike")
	require.NoError(t, err)

	require.NoError(t, afero.WriteFile(fs, path, []byte(`result := 3`), 0o644))
	store.reload("combat", "strike")

	after, err := store.Get("combat", "strike")
	require.NoError(t, err)
	assert.NotEqual(t, before.Checksum, after.Checksum)
	assert.Equal(t, `result := 3`, after.Content)
}

func TestStore_IgnoresNonScriptFiles(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs,
		filepath.Join("scripts", "combat", "README.md"),
		[]byte("docs"), 0o644))

	store := NewStore(fs, "scripts")
	require.NoError(t, store.Load())
	assert.Empty(t, store.List())
}

func TestStore_List(t *testing.T) {
	store := NewStore(afero.NewMemMapFs(), "scripts")
	store.RegisterEmbedded(fakeProvider{
		mod:     "combat",
		scripts: map[string]string{"strike": `result := 1`, "parry": `result := 2`},
	})
	store.RegisterEmbedded(fakeProvider{
		mod:     "economy",
		scripts: map[string]string{"trade": `result := 3`},
	})
	require.NoError(t, store.Load())

	listing := store.List()
	assert.ElementsMatch(t, []string{"strike", "parry"}, listing["combat"])
	assert.ElementsMatch(t, []string{"trade"}, listing["economy"])
}

func TestStore_HotReload(t *testing.T) {
	dir := t.TempDir()
	modDir := filepath.Join(dir, "combat")
	require.NoError(t, os.MkdirAll(modDir, 0o755))
	path := filepath.Join(modDir, "strike.tengo")
	require.NoError(t, os.WriteFile(path, []byte(`result := 1`), 0o644))

	store := NewStore(afero.NewOsFs(), dir)
	store.RegisterEmbedded(fakeProvider{
		mod:     "combat",
		scripts: map[string]string{"strike": `result := 0`},
	})
	require.NoError(t, store.Load())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, store.StartWatcher(ctx, true))
	defer store.StopWatcher()

	require.NoError(t, os.WriteFile(path, []byte(`result := 99`), 0o644))
	require.Eventually(t, func() bool {
		script, err := store.Get("combat", "strike")
		return err == nil && script.Content == `result := 99`
	}, 3*time.Second, 20*time.Millisecond, "modified script never reloaded")

	require.NoError(t, os.Remove(path))
	require.Eventually(t, func() bool {
		script, err := store.Get("combat", "strike")
		return err == nil && script.Source == SourceEmbedded && script.Content == `result := 0`
	}, 3*time.Second, 20*time.Millisecond, "deleted script never reverted to embedded")
}

func TestStore_WatcherSkipsMemFs(t *testing.T) {
	store := NewStore(afero.NewMemMapFs(), "scripts")
	require.NoError(t, store.StartWatcher(context.Background(), true))
	store.StopWatcher()
}
