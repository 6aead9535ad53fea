package kv

import (
	"context"
	"errors"

	"github.com/getdevflow/core-sub003/core/cache"
)

// Cached puts a local cache in front of a remote store. Reads go to the
// cache first and fill it on a hit in the inner store; writes go through to
// the inner store and then update the cache. Misses are not cached.
type Cached struct {
	inner Store
	local cache.Typed[[]byte]
}

// NewCached wraps inner. A nil local cache makes Cached a pass-through.
func NewCached(inner Store, local cache.Cache) *Cached {
	return &Cached{inner: inner, local: cache.NewTyped[[]byte](local)}
}

func (c *Cached) Put(ctx context.Context, key string, value []byte, opts PutOptions) error {
	if err := c.inner.Put(ctx, key, value, opts); err != nil {
		c.local.Delete(key)
		return err
	}
	c.local.Put(key, append([]byte(nil), value...), cacheOpts(opts)...)
	return nil
}

func (c *Cached) Get(ctx context.Context, key string) ([]byte, error) {
	if v, ok := c.local.Get(key); ok {
		return append([]byte(nil), v...), nil
	}
	v, err := c.inner.Get(ctx, key)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			c.local.Delete(key)
		}
		return nil, err
	}
	c.local.Put(key, append([]byte(nil), v...))
	return v, nil
}

func (c *Cached) Delete(ctx context.Context, key string) error {
	c.local.Delete(key)
	return c.inner.Delete(ctx, key)
}

func cacheOpts(opts PutOptions) []cache.PutOption {
	if opts.TTL <= 0 {
		return nil
	}
	return []cache.PutOption{cache.WithTTL(opts.TTL)}
}

var _ Store = (*Cached)(nil)
