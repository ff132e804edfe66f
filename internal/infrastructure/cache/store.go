// Package cache provides the lookup caches shared by the reconciliation
// services: a bounded in-process tier, an optional redis tier, and a Memo
// that collapses concurrent loads of the same key.
package cache

import (
	"context"

	"github.com/mission-apprentissage/api-apprentissage-sub004/pkg/errors"
)

// Store is a keyed cache of V. Entry lifetime is fixed when the store is
// built. A miss is reported with ok=false and a nil error.
type Store[V any] interface {
	Get(ctx context.Context, key string) (V, bool, error)
	Set(ctx context.Context, key string, value V) error
}

// Purger is implemented by stores that can drop every entry they own.
type Purger interface {
	Purge(ctx context.Context) error
}

var ErrSerializationFailed = errors.New(errors.ErrCodeSerialization, "cache serialization failed")

// AccessRecorder receives hit/miss notifications. The prometheus import
// metrics implement it.
type AccessRecorder interface {
	RecordCacheAccess(cache string, hit bool)
}

type nopRecorder struct{}

func (nopRecorder) RecordCacheAccess(string, bool) {}
