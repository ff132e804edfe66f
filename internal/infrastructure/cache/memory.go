package cache

import (
	"context"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// Memory is a bounded LRU with per-entry expiry. It is safe for concurrent use.
type Memory[V any] struct {
	lru *expirable.LRU[string, V]
}

// NewMemory builds a store holding at most maxEntries values, each for ttl.
// A non-positive maxEntries means unbounded and a non-positive ttl means
// entries never expire.
func NewMemory[V any](maxEntries int, ttl time.Duration) *Memory[V] {
	if maxEntries < 0 {
		maxEntries = 0
	}
	if ttl < 0 {
		ttl = 0
	}
	return &Memory[V]{lru: expirable.NewLRU[string, V](maxEntries, nil, ttl)}
}

func (m *Memory[V]) Get(_ context.Context, key string) (V, bool, error) {
	v, ok := m.lru.Get(key)
	return v, ok, nil
}

func (m *Memory[V]) Set(_ context.Context, key string, value V) error {
	m.lru.Add(key, value)
	return nil
}

func (m *Memory[V]) Purge(context.Context) error {
	m.lru.Purge()
	return nil
}

// Len reports the number of live entries.
func (m *Memory[V]) Len() int {
	return m.lru.Len()
}
