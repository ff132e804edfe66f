package cache

import (
	"context"
	stderrors "errors"

	"github.com/mission-apprentissage/api-apprentissage-sub004/internal/infrastructure/monitoring/logging"
)

// Tiered reads through a near store (in-process) to a far store (redis).
// Far-tier failures degrade to a miss so a redis outage never fails a row.
type Tiered[V any] struct {
	near   Store[V]
	far    Store[V]
	logger logging.Logger
}

func NewTiered[V any](near, far Store[V], log logging.Logger) *Tiered[V] {
	if log == nil {
		log = logging.NewNopLogger()
	}
	return &Tiered[V]{near: near, far: far, logger: log}
}

func (t *Tiered[V]) Get(ctx context.Context, key string) (V, bool, error) {
	if v, ok, err := t.near.Get(ctx, key); err == nil && ok {
		return v, true, nil
	}

	v, ok, err := t.far.Get(ctx, key)
	if err != nil {
		t.logger.Warn("far cache tier read failed", logging.String("key", key), logging.Err(err))
		var zero V
		return zero, false, nil
	}
	if !ok {
		return v, false, nil
	}
	_ = t.near.Set(ctx, key, v)
	return v, true, nil
}

func (t *Tiered[V]) Set(ctx context.Context, key string, value V) error {
	if err := t.near.Set(ctx, key, value); err != nil {
		return err
	}
	if err := t.far.Set(ctx, key, value); err != nil {
		t.logger.Warn("far cache tier write failed", logging.String("key", key), logging.Err(err))
	}
	return nil
}

// Purge empties both tiers that support it.
func (t *Tiered[V]) Purge(ctx context.Context) error {
	var errs []error
	for _, s := range []Store[V]{t.near, t.far} {
		if p, ok := s.(Purger); ok {
			if err := p.Purge(ctx); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return stderrors.Join(errs...)
}
