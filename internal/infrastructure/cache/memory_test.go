package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemory_SetGet(t *testing.T) {
	ctx := context.Background()
	m := NewMemory[string](10, time.Minute)

	_, ok, err := m.Get(ctx, "a")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, m.Set(ctx, "a", "alpha"))
	v, ok, err := m.Get(ctx, "a")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "alpha", v)
}

func TestMemory_EvictsLeastRecentlyUsed(t *testing.T) {
	ctx := context.Background()
	m := NewMemory[int](2, time.Minute)

	require.NoError(t, m.Set(ctx, "a", 1))
	require.NoError(t, m.Set(ctx, "b", 2))
	_, _, _ = m.Get(ctx, "a")
	require.NoError(t, m.Set(ctx, "c", 3))

	assert.Equal(t, 2, m.Len())
	_, ok, _ := m.Get(ctx, "b")
	assert.False(t, ok, "b was least recently used")
	_, ok, _ = m.Get(ctx, "a")
	assert.True(t, ok)
}

func TestMemory_Expires(t *testing.T) {
	ctx := context.Background()
	m := NewMemory[int](10, 20*time.Millisecond)
	require.NoError(t, m.Set(ctx, "a", 1))

	assert.Eventually(t, func() bool {
		_, ok, _ := m.Get(ctx, "a")
		return !ok
	}, time.Second, 10*time.Millisecond)
}

func TestMemory_Purge(t *testing.T) {
	ctx := context.Background()
	m := NewMemory[int](10, time.Minute)
	require.NoError(t, m.Set(ctx, "a", 1))
	require.NoError(t, m.Purge(ctx))
	assert.Equal(t, 0, m.Len())
}
