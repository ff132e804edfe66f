package cache

import (
	"context"
	stderrors "errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mission-apprentissage/api-apprentissage-sub004/internal/infrastructure/monitoring/logging"
)

func TestTiered_FarHitPopulatesNear(t *testing.T) {
	ctx := context.Background()
	near := NewMemory[string](10, time.Minute)
	far := NewMemory[string](10, time.Minute)
	require.NoError(t, far.Set(ctx, "k", "from-far"))

	tiered := NewTiered[string](near, far, logging.NewNopLogger())
	v, ok, err := tiered.Get(ctx, "k")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "from-far", v)

	v, ok, _ = near.Get(ctx, "k")
	assert.True(t, ok)
	assert.Equal(t, "from-far", v)
}

func TestTiered_SetWritesBothTiers(t *testing.T) {
	ctx := context.Background()
	near := NewMemory[int](10, time.Minute)
	far := NewMemory[int](10, time.Minute)
	tiered := NewTiered[int](near, far, nil)

	require.NoError(t, tiered.Set(ctx, "k", 5))
	assert.Equal(t, 1, near.Len())
	assert.Equal(t, 1, far.Len())

	require.NoError(t, tiered.Purge(ctx))
	assert.Equal(t, 0, near.Len())
	assert.Equal(t, 0, far.Len())
}

func TestTiered_FarFailureIsAMiss(t *testing.T) {
	ctx := context.Background()
	far := &failingStore[int]{readErr: stderrors.New("down"), writeErr: stderrors.New("down")}
	tiered := NewTiered[int](NewMemory[int](10, time.Minute), far, nil)

	_, ok, err := tiered.Get(ctx, "k")
	assert.NoError(t, err)
	assert.False(t, ok)

	assert.NoError(t, tiered.Set(ctx, "k", 1))
	v, ok, _ := tiered.Get(ctx, "k")
	assert.True(t, ok)
	assert.Equal(t, 1, v)
}
