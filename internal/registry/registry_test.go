package registry

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nholloway/modguard/internal/config"
)

type fakeService struct {
	name string
}

func TestRegistry_SetGet(t *testing.T) {
	r := New(&config.Config{CacheSize: 8})
	key := Key[*fakeService]("test.service")

	Set(r, key, &fakeService{name: "a"})

	got, ok := Get(r, key)
	require.True(t, ok)
	assert.Equal(t, "a", got.name)
	assert.Equal(t, 8, r.Config().CacheSize)
}

func TestRegistry_GetMissing(t *testing.T) {
	r := New(nil)
	_, ok := Get(r, Key[*fakeService]("absent"))
	assert.False(t, ok)
}

func TestRegistry_MustGetPanicsOnMissing(t *testing.T) {
	r := New(nil)
	assert.Panics(t, func() {
		MustGet(r, Key[*fakeService]("absent"))
	})
}
