package kv

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/getdevflow/core-sub003/core/cache"
	"github.com/getdevflow/core-sub003/core/es"
)

type brokenStore struct{}

func (brokenStore) Put(context.Context, string, []byte, PutOptions) error { return errors.New("down") }
func (brokenStore) Get(context.Context, string) ([]byte, error)           { return nil, errors.New("down") }
func (brokenStore) Delete(context.Context, string) error                  { return errors.New("down") }

type countingStore struct {
	Store
	gets atomic.Int32
}

func (c *countingStore) Get(ctx context.Context, key string) ([]byte, error) {
	c.gets.Add(1)
	return c.Store.Get(ctx, key)
}

type lookups struct {
	mu   sync.Mutex
	hits map[bool]int
}

func (l *lookups) IndexLookup(_ string, hit bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.hits == nil {
		l.hits = map[bool]int{}
	}
	l.hits[hit]++
}

func TestMemStore(t *testing.T) {
	s := NewMemStore()

	_, err := s.Get(t.Context(), "main:user:login:jo")
	require.ErrorIs(t, err, ErrNotFound)

	value := []byte("01J")
	require.NoError(t, s.Put(t.Context(), "main:user:login:jo", value, PutOptions{}))
	value[0] = 'x'
	loaded, err := s.Get(t.Context(), "main:user:login:jo")
	require.NoError(t, err)
	require.Equal(t, "01J", string(loaded), "values are copied on put")

	require.NoError(t, s.Delete(t.Context(), "main:user:login:jo"))
	_, err = s.Get(t.Context(), "main:user:login:jo")
	require.ErrorIs(t, err, ErrNotFound)
	require.NoError(t, s.Delete(t.Context(), "main:user:login:jo"))
}

func TestDeadline(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	require.True(t, PutOptions{}.Deadline(now).IsZero())
	require.False(t, Expired(time.Time{}, now))

	deadline := PutOptions{TTL: time.Minute}.Deadline(now)
	require.Equal(t, now.Add(time.Minute), deadline)
	require.False(t, Expired(deadline, now.Add(59*time.Second)))
	require.True(t, Expired(deadline, now.Add(time.Minute)))
}

func TestMemStore_TTL(t *testing.T) {
	s := NewMemStore()
	now := time.Now()
	s.now = func() time.Time { return now }

	require.NoError(t, s.Put(t.Context(), "k", []byte("v"), PutOptions{TTL: time.Minute}))
	v, err := s.Get(t.Context(), "k")
	require.NoError(t, err)
	require.Equal(t, "v", string(v))

	now = now.Add(2 * time.Minute)
	_, err = s.Get(t.Context(), "k")
	require.ErrorIs(t, err, ErrNotFound)
	require.Zero(t, s.Len())
}

func TestCached(t *testing.T) {
	inner := &countingStore{Store: NewMemStore()}
	lru := cache.NewLRU(cache.LRUOpts{Size: 8})
	defer lru.Close()
	c := NewCached(inner, lru)

	require.NoError(t, c.Put(t.Context(), "k", []byte("v"), PutOptions{}))
	for range 3 {
		v, err := c.Get(t.Context(), "k")
		require.NoError(t, err)
		require.Equal(t, "v", string(v))
	}
	require.Zero(t, inner.gets.Load(), "writes fill the cache")

	require.NoError(t, inner.Put(t.Context(), "other", []byte("x"), PutOptions{}))
	_, err := c.Get(t.Context(), "other")
	require.NoError(t, err)
	_, err = c.Get(t.Context(), "other")
	require.NoError(t, err)
	require.Equal(t, int32(1), inner.gets.Load())

	require.NoError(t, c.Delete(t.Context(), "k"))
	_, err = c.Get(t.Context(), "k")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestCached_NoLocalCache(t *testing.T) {
	inner := &countingStore{Store: NewMemStore()}
	c := NewCached(inner, nil)

	require.NoError(t, c.Put(t.Context(), "k", []byte("v"), PutOptions{}))
	for range 2 {
		_, err := c.Get(t.Context(), "k")
		require.NoError(t, err)
	}
	require.Equal(t, int32(2), inner.gets.Load())
}

func TestIndex(t *testing.T) {
	tenant, err := es.NewTenant("blog")
	require.NoError(t, err)
	store := NewMemStore()
	m := &lookups{}
	idx := NewIndex(store, tenant, "user", "login", IndexOpts{Metrics: m})
	id := es.NewID()

	t.Run("put and lookup", func(t *testing.T) {
		idx.Put(t.Context(), "jo", id)
		got, err := idx.Lookup(t.Context(), "jo")
		require.NoError(t, err)
		require.Equal(t, id, got)

		raw, err := store.Get(t.Context(), "blog:user:login:jo")
		require.NoError(t, err)
		require.Equal(t, id.String(), string(raw))
	})

	t.Run("move", func(t *testing.T) {
		idx.Move(t.Context(), "jo", "joe", id)
		_, err := idx.Lookup(t.Context(), "jo")
		require.ErrorIs(t, err, ErrNotFound)
		got, err := idx.Lookup(t.Context(), "joe")
		require.NoError(t, err)
		require.Equal(t, id, got)
	})

	t.Run("resolve falls back and fills", func(t *testing.T) {
		other := es.NewID()
		calls := 0
		fallback := func(context.Context) (es.ID, error) {
			calls++
			return other, nil
		}
		got, err := idx.Resolve(t.Context(), "ann", fallback)
		require.NoError(t, err)
		require.Equal(t, other, got)
		got, err = idx.Resolve(t.Context(), "ann", fallback)
		require.NoError(t, err)
		require.Equal(t, other, got)
		require.Equal(t, 1, calls)
	})

	t.Run("resolve unknown", func(t *testing.T) {
		_, err := idx.Resolve(t.Context(), "nobody", func(context.Context) (es.ID, error) {
			return "", ErrNotFound
		})
		require.ErrorIs(t, err, ErrNotFound)
	})

	require.Positive(t, m.hits[true])
	require.Positive(t, m.hits[false])
}

func TestIndex_BrokenStoreIsAMiss(t *testing.T) {
	idx := NewIndex(brokenStore{}, es.DefaultTenant(), "content", "slug", IndexOpts{})
	id := es.NewID()

	idx.Put(t.Context(), "hello", id)
	idx.Delete(t.Context(), "hello")
	_, err := idx.Lookup(t.Context(), "hello")
	require.ErrorIs(t, err, ErrNotFound)

	got, err := idx.Resolve(t.Context(), "hello", func(context.Context) (es.ID, error) { return id, nil })
	require.NoError(t, err)
	require.Equal(t, id, got)
}
