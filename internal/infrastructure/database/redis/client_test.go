package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mission-apprentissage/api-apprentissage-sub004/internal/config"
	"github.com/mission-apprentissage/api-apprentissage-sub004/internal/infrastructure/cache"
	"github.com/mission-apprentissage/api-apprentissage-sub004/internal/infrastructure/monitoring/logging"
	"github.com/mission-apprentissage/api-apprentissage-sub004/pkg/errors"
)

func newTestClient(t *testing.T) (*Client, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client, err := NewClient(config.RedisConfig{Addr: mr.Addr()}, logging.NewNopLogger())
	require.NoError(t, err)
	return client, mr
}

func TestNewClient_Success(t *testing.T) {
	client, _ := newTestClient(t)
	defer client.Close()

	assert.NoError(t, client.HealthCheck(context.Background()))
	assert.NotNil(t, client.PoolStats())
}

func TestNewClient_ConnectionFailed(t *testing.T) {
	client, err := NewClient(config.RedisConfig{Addr: "localhost:1", DialTimeout: 100 * time.Millisecond}, logging.NewNopLogger())
	assert.Nil(t, client)
	assert.True(t, errors.IsCode(err, errors.ErrCodeCacheError))
}

func TestNewClientFromUniversal(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()

	client := NewClientFromUniversal(redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{mr.Addr()}}), nil)
	defer client.Close()

	require.NoError(t, client.Ping(context.Background()))
	require.NoError(t, client.Set(context.Background(), "k", "v", 0).Err())
	got, err := mr.Get("k")
	require.NoError(t, err)
	assert.Equal(t, "v", got)
}

func TestClient_Operations(t *testing.T) {
	client, _ := newTestClient(t)
	defer client.Close()
	ctx := context.Background()

	require.NoError(t, client.Set(ctx, "foo", "bar", 0).Err())
	val, err := client.Get(ctx, "foo").Result()
	require.NoError(t, err)
	assert.Equal(t, "bar", val)

	keys, _, err := client.Scan(ctx, 0, "f*", 10).Result()
	require.NoError(t, err)
	assert.Equal(t, []string{"foo"}, keys)

	deleted, err := client.Del(ctx, "foo").Result()
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)
}

func TestClient_BacksRedisStore(t *testing.T) {
	client, mr := newTestClient(t)
	defer client.Close()
	ctx := context.Background()

	store := cache.NewRedisStore[map[string]string](client, "apprentissage:organisme:", time.Hour)
	require.NoError(t, store.Set(ctx, "12345678900011|0751234J", map[string]string{"siret": "12345678900011"}))
	assert.True(t, mr.Exists("apprentissage:organisme:12345678900011|0751234J"))

	got, ok, err := store.Get(ctx, "12345678900011|0751234J")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "12345678900011", got["siret"])

	require.NoError(t, store.Purge(ctx))
	assert.False(t, mr.Exists("apprentissage:organisme:12345678900011|0751234J"))
}

func TestClient_Close(t *testing.T) {
	client, _ := newTestClient(t)

	assert.NoError(t, client.Close())
	assert.NoError(t, client.Close())

	err := client.Get(context.Background(), "foo").Err()
	assert.Equal(t, ErrClientClosed, err)
	assert.Equal(t, ErrClientClosed, client.Ping(context.Background()))
}
