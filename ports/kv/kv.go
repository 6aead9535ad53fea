// Package kv is the key/value port lookup indexes are kept in.
package kv

import (
	"context"
	"errors"
	"time"
)

var ErrNotFound = errors.New("not found")

type PutOptions struct {
	// TTL of the entry. Zero keeps it until deleted.
	TTL time.Duration
}

// Deadline is the expiry of an entry put at now, or the zero time when it
// does not expire.
func (o PutOptions) Deadline(now time.Time) time.Time {
	if o.TTL <= 0 {
		return time.Time{}
	}
	return now.Add(o.TTL)
}

// Expired reports whether an entry with deadline is gone at now.
func Expired(deadline, now time.Time) bool {
	return !deadline.IsZero() && !now.Before(deadline)
}

// Store is a flat key/value store of lookup entries. Get returns ErrNotFound
// for missing or expired keys; Delete of a missing key is not an error.
// Implementations copy values on the way in and out.
type Store interface {
	Put(ctx context.Context, key string, value []byte, opts PutOptions) error
	Get(ctx context.Context, key string) ([]byte, error)
	Delete(ctx context.Context, key string) error
}
