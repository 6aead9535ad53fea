// Package perkey serializes work per key while allowing work for different
// keys to execute concurrently.
//
// Typical use-case: event-sourced aggregates, where commands for one
// aggregate ID must run one after another, but different aggregates may
// proceed in parallel. Work runs on the caller's goroutine.
package perkey

import (
	"context"
	"sync"
)

// Locker hands out one exclusive slot per key. Slots are created on demand
// and dropped once no caller holds or waits for them.
type Locker[K comparable] struct {
	mu    sync.Mutex
	slots map[K]*slot
}

type slot struct {
	sem  chan struct{}
	refs int
}

// New creates a new Locker.
func New[K comparable]() *Locker[K] {
	return &Locker[K]{slots: make(map[K]*slot)}
}

// Do runs fn while holding the slot for key and returns its error.
// Calls for the same key never overlap; waiters are served in arrival order.
// If ctx is cancelled while waiting, fn is not run and the context error is
// returned.
func (l *Locker[K]) Do(ctx context.Context, key K, fn func() error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s := l.acquire(key)
	defer l.release(key, s)

	select {
	case s.sem <- struct{}{}:
	case <-ctx.Done():
		return ctx.Err()
	}
	defer func() { <-s.sem }()

	return fn()
}

// Len returns the number of keys currently held or waited for.
func (l *Locker[K]) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.slots)
}

func (l *Locker[K]) acquire(key K) *slot {
	l.mu.Lock()
	defer l.mu.Unlock()
	s, ok := l.slots[key]
	if !ok {
		s = &slot{sem: make(chan struct{}, 1)}
		l.slots[key] = s
	}
	s.refs++
	return s
}

func (l *Locker[K]) release(key K, s *slot) {
	l.mu.Lock()
	defer l.mu.Unlock()
	s.refs--
	if s.refs == 0 {
		delete(l.slots, key)
	}
}
