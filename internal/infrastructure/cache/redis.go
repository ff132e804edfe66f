package cache

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"math/rand"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/mission-apprentissage/api-apprentissage-sub004/pkg/errors"
)

// RedisCommander is the subset of go-redis used by RedisStore. Both the
// database/redis Client wrapper and a raw go-redis client satisfy it.
type RedisCommander interface {
	Get(ctx context.Context, key string) *goredis.StringCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *goredis.StatusCmd
	Del(ctx context.Context, keys ...string) *goredis.IntCmd
	Scan(ctx context.Context, cursor uint64, match string, count int64) *goredis.ScanCmd
}

// RedisStore keeps JSON-encoded values under prefix+key so several importer
// processes share one lookup tier.
type RedisStore[V any] struct {
	client RedisCommander
	prefix string
	ttl    time.Duration
	jitter bool
}

type RedisOption func(*redisOptions)

type redisOptions struct {
	jitter bool
}

// WithoutJitter disables the +/-10% TTL spread. Tests use it to assert exact
// expirations.
func WithoutJitter() RedisOption {
	return func(o *redisOptions) { o.jitter = false }
}

func NewRedisStore[V any](client RedisCommander, prefix string, ttl time.Duration, opts ...RedisOption) *RedisStore[V] {
	o := redisOptions{jitter: true}
	for _, opt := range opts {
		opt(&o)
	}
	return &RedisStore[V]{client: client, prefix: prefix, ttl: ttl, jitter: o.jitter}
}

func (s *RedisStore[V]) fullKey(key string) string {
	return s.prefix + key
}

func (s *RedisStore[V]) expiration() time.Duration {
	if s.ttl <= 0 || !s.jitter {
		return s.ttl
	}
	spread := float64(s.ttl) * 0.1 * (rand.Float64()*2 - 1)
	return s.ttl + time.Duration(spread)
}

func (s *RedisStore[V]) Get(ctx context.Context, key string) (V, bool, error) {
	var zero V
	data, err := s.client.Get(ctx, s.fullKey(key)).Bytes()
	if stderrors.Is(err, goredis.Nil) {
		return zero, false, nil
	}
	if err != nil {
		return zero, false, errors.Wrap(err, errors.ErrCodeCacheError, "redis get failed").WithDetail(key)
	}
	var v V
	if err := json.Unmarshal(data, &v); err != nil {
		return zero, false, errors.Wrap(err, errors.ErrCodeSerialization, "redis value is not valid json").WithDetail(key)
	}
	return v, true, nil
}

func (s *RedisStore[V]) Set(ctx context.Context, key string, value V) error {
	data, err := json.Marshal(value)
	if err != nil {
		return ErrSerializationFailed.WithCause(err)
	}
	if err := s.client.Set(ctx, s.fullKey(key), data, s.expiration()).Err(); err != nil {
		return errors.Wrap(err, errors.ErrCodeCacheError, "redis set failed").WithDetail(key)
	}
	return nil
}

// Purge deletes every key under the store prefix, scanning in pages of 100.
func (s *RedisStore[V]) Purge(ctx context.Context) error {
	var cursor uint64
	match := s.prefix + "*"
	for {
		keys, next, err := s.client.Scan(ctx, cursor, match, 100).Result()
		if err != nil {
			return errors.Wrap(err, errors.ErrCodeCacheError, "redis scan failed")
		}
		if len(keys) > 0 {
			if err := s.client.Del(ctx, keys...).Err(); err != nil {
				return errors.Wrap(err, errors.ErrCodeCacheError, "redis delete failed")
			}
		}
		cursor = next
		if cursor == 0 {
			return nil
		}
	}
}
