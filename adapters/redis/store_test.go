package redis

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/getdevflow/core-sub003/core/es"
	"github.com/getdevflow/core-sub003/ports/kv"
)

func TestStore(t *testing.T) {
	if testing.Short() {
		t.Skip("redis container tests skipped in short mode")
	}
	s, err := Open(t.Context(), Config{Addr: NewTestContainer(t)})
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	t.Run("get put delete", func(t *testing.T) {
		_, err := s.Get(t.Context(), "missing")
		require.ErrorIs(t, err, kv.ErrNotFound)

		require.NoError(t, s.Put(t.Context(), "k", []byte("v"), kv.PutOptions{}))
		v, err := s.Get(t.Context(), "k")
		require.NoError(t, err)
		require.Equal(t, "v", string(v))

		require.NoError(t, s.Delete(t.Context(), "k"))
		require.NoError(t, s.Delete(t.Context(), "k"))
		_, err = s.Get(t.Context(), "k")
		require.ErrorIs(t, err, kv.ErrNotFound)
	})

	t.Run("ttl", func(t *testing.T) {
		require.NoError(t, s.Put(t.Context(), "short", []byte("v"), kv.PutOptions{TTL: 100 * time.Millisecond}))
		require.Eventually(t, func() bool {
			_, err := s.Get(t.Context(), "short")
			return err != nil
		}, 5*time.Second, 50*time.Millisecond)
	})

	t.Run("index", func(t *testing.T) {
		tenant, err := es.NewTenant("blog")
		require.NoError(t, err)
		idx := kv.NewIndex(s, tenant, "content", "slug", kv.IndexOpts{})
		id := es.NewID()

		idx.Put(t.Context(), "hello-world", id)
		got, err := idx.Lookup(t.Context(), "hello-world")
		require.NoError(t, err)
		require.Equal(t, id, got)

		raw, err := s.Get(t.Context(), "blog:content:slug:hello-world")
		require.NoError(t, err)
		require.Equal(t, id.String(), string(raw))
	})
}
