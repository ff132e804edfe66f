package cache

import (
	"context"
	"fmt"

	"golang.org/x/sync/singleflight"

	"github.com/mission-apprentissage/api-apprentissage-sub004/internal/infrastructure/monitoring/logging"
)

// Loader computes the value of a missing key.
type Loader[V any] func(ctx context.Context) (V, error)

// Memo memoizes loader results in a Store. Concurrent misses on one key
// share a single load. Loader errors are never cached.
type Memo[V any] struct {
	name     string
	store    Store[V]
	group    singleflight.Group
	logger   logging.Logger
	recorder AccessRecorder
}

type MemoOption func(*memoOptions)

type memoOptions struct {
	logger   logging.Logger
	recorder AccessRecorder
}

func WithLogger(log logging.Logger) MemoOption {
	return func(o *memoOptions) { o.logger = log }
}

func WithRecorder(r AccessRecorder) MemoOption {
	return func(o *memoOptions) { o.recorder = r }
}

// NewMemo wraps store. name labels log lines and hit/miss metrics.
func NewMemo[V any](name string, store Store[V], opts ...MemoOption) *Memo[V] {
	o := memoOptions{}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = logging.NewNopLogger()
	}
	if o.recorder == nil {
		o.recorder = nopRecorder{}
	}
	return &Memo[V]{
		name:     name,
		store:    store,
		logger:   o.logger.Named("cache").With(logging.String("cache", name)),
		recorder: o.recorder,
	}
}

// GetOrLoad returns the cached value for key or runs load and caches its
// result. A failing store read is treated as a miss and a failing write is
// logged and ignored. A caller whose ctx ends returns ctx.Err() while the
// shared load carries on for the others.
func (m *Memo[V]) GetOrLoad(ctx context.Context, key string, load Loader[V]) (V, error) {
	v, ok, err := m.store.Get(ctx, key)
	if err != nil {
		m.logger.Warn("cache read failed", logging.String("key", key), logging.Err(err))
	}
	if err == nil && ok {
		m.recorder.RecordCacheAccess(m.name, true)
		return v, nil
	}
	m.recorder.RecordCacheAccess(m.name, false)

	// The shared load must not inherit the cancellation of whichever caller
	// started it: the other callers waiting on the key would fail with it.
	ch := m.group.DoChan(key, func() (interface{}, error) {
		lctx := context.WithoutCancel(ctx)
		loaded, err := load(lctx)
		if err != nil {
			return nil, err
		}
		if err := m.store.Set(lctx, key, loaded); err != nil {
			m.logger.Warn("cache write failed", logging.String("key", key), logging.Err(err))
		}
		return loaded, nil
	})

	var res interface{}
	select {
	case <-ctx.Done():
		var zero V
		return zero, ctx.Err()
	case r := <-ch:
		res, err = r.Val, r.Err
	}
	if err != nil {
		var zero V
		return zero, err
	}
	if res == nil {
		var zero V
		return zero, nil
	}
	out, ok := res.(V)
	if !ok {
		var zero V
		return zero, fmt.Errorf("cache %s: unexpected value type %T", m.name, res)
	}
	return out, nil
}

// Reset drops every entry when the underlying store supports it.
func (m *Memo[V]) Reset(ctx context.Context) error {
	if p, ok := m.store.(Purger); ok {
		return p.Purge(ctx)
	}
	return nil
}

// Name is the label given at construction.
func (m *Memo[V]) Name() string {
	return m.name
}
