package cache

import "time"

type PutOptions struct {
	TTL time.Duration
}

type PutOption func(*PutOptions)

// WithTTL overrides the cache's default TTL for one entry.
func WithTTL(ttl time.Duration) PutOption {
	return func(o *PutOptions) { o.TTL = ttl }
}

// Cache holds values of any type under string keys.
type Cache interface {
	Get(key string) (any, bool)
	Put(key string, val any, opts ...PutOption)
	Delete(key string)
}

// Typed narrows a Cache to values of T. A value of another type under the
// same key is a miss and is evicted.
type Typed[T any] struct {
	c Cache
}

// NewTyped wraps c. A nil c caches nothing.
func NewTyped[T any](c Cache) Typed[T] {
	if c == nil {
		c = NewNop()
	}
	return Typed[T]{c: c}
}

func (t Typed[T]) Get(key string) (T, bool) {
	v, ok := t.c.Get(key)
	if !ok {
		var zero T
		return zero, false
	}
	out, ok := v.(T)
	if !ok {
		t.c.Delete(key)
	}
	return out, ok
}

func (t Typed[T]) Put(key string, val T, opts ...PutOption) { t.c.Put(key, val, opts...) }

func (t Typed[T]) Delete(key string) { t.c.Delete(key) }
