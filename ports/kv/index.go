package kv

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/getdevflow/core-sub003/core/es"
	"github.com/getdevflow/core-sub003/core/sf"
)

// IndexMetrics counts index lookups.
type IndexMetrics interface {
	IndexLookup(index string, hit bool)
}

type nopIndexMetrics struct{}

func (nopIndexMetrics) IndexLookup(string, bool) {}

type IndexOpts struct {
	Log     *slog.Logger
	Metrics IndexMetrics
	// TTL of index entries. Zero keeps them until the projection removes
	// them.
	TTL time.Duration
}

// Index maps a unique value of a family (a login, a slug, a sku) to the
// owning aggregate id. Keys live under the tenant's cache namespace as
// "<ns>:<family>:<name>:<value>".
//
// The index is a cache of the read tables, never their source of truth: store
// errors are logged and treated as misses, and Resolve falls back to the
// caller's table lookup.
type Index struct {
	store   Store
	tenant  es.Tenant
	family  string
	name    string
	log     *slog.Logger
	metrics IndexMetrics
	ttl     time.Duration
	flight  sf.Group[es.ID]
}

func NewIndex(store Store, tenant es.Tenant, family, name string, opts IndexOpts) *Index {
	if opts.Log == nil {
		opts.Log = slog.Default()
	}
	if opts.Metrics == nil {
		opts.Metrics = nopIndexMetrics{}
	}
	return &Index{
		store:   store,
		tenant:  tenant,
		family:  family,
		name:    name,
		ttl:     opts.TTL,
		metrics: opts.Metrics,
		log: opts.Log.With(
			slog.String("index", family+"."+name),
			slog.String("site", tenant.Site),
		),
	}
}

func (x *Index) Name() string { return x.family + "." + x.name }

func (x *Index) key(value string) string { return x.tenant.Key(x.family, x.name, value) }

// Put points value at id.
func (x *Index) Put(ctx context.Context, value string, id es.ID) {
	if value == "" {
		return
	}
	if err := x.store.Put(ctx, x.key(value), []byte(id), PutOptions{TTL: x.ttl}); err != nil {
		x.log.Warn("index put failed", slog.String("value", value), slog.Any("error", err))
	}
}

// Delete removes value.
func (x *Index) Delete(ctx context.Context, value string) {
	if value == "" {
		return
	}
	if err := x.store.Delete(ctx, x.key(value)); err != nil {
		x.log.Warn("index delete failed", slog.String("value", value), slog.Any("error", err))
	}
}

// Move repoints an index entry when the indexed value of id changes.
func (x *Index) Move(ctx context.Context, from, to string, id es.ID) {
	if from == to {
		return
	}
	x.Delete(ctx, from)
	x.Put(ctx, to, id)
}

// Lookup returns the id stored for value or ErrNotFound.
func (x *Index) Lookup(ctx context.Context, value string) (es.ID, error) {
	data, err := x.store.Get(ctx, x.key(value))
	switch {
	case err == nil:
		x.metrics.IndexLookup(x.Name(), true)
		return es.ID(data), nil
	case !errors.Is(err, ErrNotFound):
		x.log.Warn("index get failed", slog.String("value", value), slog.Any("error", err))
	}
	x.metrics.IndexLookup(x.Name(), false)
	return "", ErrNotFound
}

// Resolve is Lookup with a fallback. On a miss, fallback is called once for
// all concurrent callers of the same value; a found id is written back.
// fallback returns ErrNotFound when the value is unknown.
func (x *Index) Resolve(ctx context.Context, value string, fallback func(ctx context.Context) (es.ID, error)) (es.ID, error) {
	if id, err := x.Lookup(ctx, value); err == nil {
		return id, nil
	}
	return x.flight.Do(ctx, x.key(value), func(ctx context.Context) (es.ID, error) {
		id, err := fallback(ctx)
		if err != nil {
			return "", err
		}
		x.Put(ctx, value, id)
		return id, nil
	})
}
