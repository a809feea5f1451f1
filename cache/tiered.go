package cache

import (
	"bytes"
	"context"
	"errors"
	"time"

	"golang.org/x/sync/singleflight"
)

// Tiered reads L1, then L2, then the loader, and writes through both layers.
type Tiered struct {
	l1    *L1
	l2    *L2
	loads singleflight.Group
}

// NewTiered creates a two-level cache.
func NewTiered(l1 *L1, l2 *L2) *Tiered {
	return &Tiered{l1: l1, l2: l2}
}

// Get checks L1, then L2. An L2 hit is not promoted because its remaining
// TTL is unknown here.
func (t *Tiered) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if v, ok, err := t.l1.Get(ctx, key); err != nil || ok {
		return v, ok, err
	}
	return t.l2.Get(ctx, key)
}

// Set writes the value to L2 and then L1.
func (t *Tiered) Set(ctx context.Context, key string, val []byte, ttl time.Duration) error {
	_ = t.l2.Set(ctx, key, val, ttl)
	return t.l1.Set(ctx, key, val, ttl)
}

// GetOrSet follows L1 → L2 → loader. An L2 hit is promoted into L1 with the
// caller's ttl.
func (t *Tiered) GetOrSet(ctx context.Context, key string, ttl time.Duration, loader func(context.Context) ([]byte, error)) ([]byte, error) {
	if v, ok, _ := t.l1.Get(ctx, key); ok {
		return v, nil
	}
	if v, ok, _ := t.l2.Get(ctx, key); ok {
		_ = t.l1.Set(ctx, key, v, ttl)
		return bytes.Clone(v), nil
	}

	v, err, _ := t.loads.Do(key, func() (any, error) {
		b, err := loader(ctx)
		if err != nil {
			return nil, err
		}
		_ = t.Set(ctx, key, b, ttl)
		return b, nil
	})
	if err != nil {
		return nil, err
	}
	return bytes.Clone(v.([]byte)), nil
}

// Close closes both layers.
func (t *Tiered) Close() error {
	return errors.Join(t.l1.Close(), t.l2.Close())
}
