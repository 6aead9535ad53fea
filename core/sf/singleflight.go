// Package sf deduplicates concurrent calls that share a key.
//
// Lookup indexes use it so that a burst of cache misses for the same key
// reaches the read tables once:
//
//	var group sf.Group[es.ID]
//	id, err := group.Do(ctx, "user:login:jo", func(ctx context.Context) (es.ID, error) {
//	    return lookupLogin(ctx, "jo")
//	})
package sf

import (
	"context"

	"golang.org/x/sync/singleflight"
)

// Group is a typed singleflight.Group. The zero value is ready to use.
type Group[T any] struct {
	group singleflight.Group
}

// Do runs fn once for all concurrent callers of key and hands every caller
// the same result. A caller whose ctx ends first stops waiting; fn keeps
// running for the others with the ctx of the caller that started it.
func (g *Group[T]) Do(ctx context.Context, key string, fn func(context.Context) (T, error)) (T, error) {
	ch := g.group.DoChan(key, func() (any, error) {
		return fn(ctx)
	})

	var zero T
	select {
	case <-ctx.Done():
		return zero, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return zero, res.Err
		}
		return res.Val.(T), nil
	}
}

// Forget drops key so the next Do runs fn again even if a call is in flight.
func (g *Group[T]) Forget(key string) { g.group.Forget(key) }
