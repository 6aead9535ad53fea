package cache

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLRU_Eviction(t *testing.T) {
	l := NewLRU(LRUOpts{Size: 2})
	defer l.Close()

	l.Put("a", 1)
	l.Put("b", 2)
	l.Get("a") // promote
	l.Put("c", 3)

	_, ok := l.Get("b")
	require.False(t, ok, "b is least recently used")

	v, ok := l.Get("a")
	require.True(t, ok)
	require.Equal(t, 1, v)
	v, ok = l.Get("c")
	require.True(t, ok)
	require.Equal(t, 3, v)
}

func TestLRU_Update(t *testing.T) {
	l := NewLRU(LRUOpts{Size: 2})
	defer l.Close()

	l.Put("a", 1)
	l.Put("a", 2)
	v, ok := l.Get("a")
	require.True(t, ok)
	require.Equal(t, 2, v)
}

func TestLRU_Delete(t *testing.T) {
	l := NewLRU(LRUOpts{Size: 2})
	defer l.Close()

	l.Put("a", 1)
	l.Delete("a")
	l.Delete("missing")

	_, ok := l.Get("a")
	require.False(t, ok)
}

func TestLRU_TTL(t *testing.T) {
	l := NewLRU(LRUOpts{Size: 4, TTL: time.Hour})
	defer l.Close()

	l.Put("short", 1, WithTTL(30*time.Millisecond))
	l.Put("default", 2)
	l.Put("refreshed", 3, WithTTL(30*time.Millisecond))

	time.Sleep(15 * time.Millisecond)
	l.Put("refreshed", 4, WithTTL(time.Second))
	time.Sleep(30 * time.Millisecond)

	_, ok := l.Get("short")
	require.False(t, ok)

	v, ok := l.Get("default")
	require.True(t, ok)
	require.Equal(t, 2, v)

	v, ok = l.Get("refreshed")
	require.True(t, ok)
	require.Equal(t, 4, v)
}

func TestLRU_Close(t *testing.T) {
	l := NewLRU(LRUOpts{Size: 2})
	l.Put("a", 1)
	l.Close()
	l.Close()

	_, ok := l.Get("a")
	require.False(t, ok)
	l.Put("b", 2)
	l.Delete("a")
}

func TestLRU_Concurrent(t *testing.T) {
	l := NewLRU(LRUOpts{Size: 100})
	defer l.Close()

	var wg sync.WaitGroup
	for w := range 10 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := range 500 {
				key := fmt.Sprintf("k%d", (w+j)%150)
				l.Put(key, j)
				l.Get(key)
			}
		}()
	}
	wg.Wait()
}

func TestTyped(t *testing.T) {
	l := NewLRU(LRUOpts{})
	defer l.Close()

	ids := NewTyped[string](l)
	ids.Put("k", "v")
	v, ok := ids.Get("k")
	require.True(t, ok)
	require.Equal(t, "v", v)

	l.Put("int", 1)
	_, ok = NewTyped[string](l).Get("int")
	require.False(t, ok, "wrong type is a miss")
	_, ok = l.Get("int")
	require.False(t, ok, "and is evicted")

	none := NewTyped[string](nil)
	none.Put("k", "v")
	_, ok = none.Get("k")
	require.False(t, ok)
}

func TestNop(t *testing.T) {
	n := NewNop()
	n.Put("key", "val")
	_, ok := n.Get("key")
	require.False(t, ok)
	n.Delete("key")
}
