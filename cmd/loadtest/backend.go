package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/getdevflow/core-sub003/adapters/nats"
	"github.com/getdevflow/core-sub003/adapters/postgres"
	"github.com/getdevflow/core-sub003/adapters/redis"
	"github.com/getdevflow/core-sub003/adapters/sqlite"
	"github.com/getdevflow/core-sub003/core/cache"
	"github.com/getdevflow/core-sub003/core/es"
	"github.com/getdevflow/core-sub003/internal/config"
	"github.com/getdevflow/core-sub003/ports/kv"
	"github.com/getdevflow/core-sub003/ports/sqldb"
)

// backend is the event store, the read model database and the lookup store
// selected by the configuration.
type backend struct {
	events  es.EventStore
	db      sqldb.DB
	lookup  kv.Store
	closers []func() error
}

func (b *backend) onClose(fn func() error) { b.closers = append(b.closers, fn) }

func (b *backend) Close() error {
	var errs []error
	for i := len(b.closers) - 1; i >= 0; i-- {
		errs = append(errs, b.closers[i]())
	}
	return errors.Join(errs...)
}

func openBackend(ctx context.Context, cfg config.Config, tenant es.Tenant, log *slog.Logger) (_ *backend, err error) {
	b := &backend{}
	defer func() {
		if err != nil {
			_ = b.Close()
		}
	}()

	connect := nats.ReuseConnection(nats.ConnectURL(cfg.NatsURL))

	// read models live in postgres when it is the event store, in sqlite
	// otherwise
	if cfg.Backend == config.BackendPostgres {
		db, err := postgres.Open(ctx, cfg.PostgresURL, postgres.PoolOpts{
			MinConns: cfg.PostgresMin,
			MaxConns: cfg.PostgresMax,
		}, log)
		if err != nil {
			return nil, err
		}
		b.onClose(db.Close)
		if err := db.Migrate(ctx, tenant); err != nil {
			return nil, err
		}
		b.db = db
		b.events = postgres.NewEventStore(db, log)
	} else {
		db, err := sqlite.OpenTenant(ctx, cfg.SQLitePath, tenant, log)
		if err != nil {
			return nil, err
		}
		b.onClose(db.Close)
		b.db = db
		b.events = sqlite.NewEventStore(db, log)
	}

	switch cfg.Backend {
	case config.BackendMemory:
		b.events = es.NewInMemoryStore()
	case config.BackendNats:
		store, err := nats.NewEventStore(ctx, nats.EventStoreConfig{Connect: connect, Log: log})
		if err != nil {
			return nil, fmt.Errorf("nats event store: %w", err)
		}
		b.onClose(store.Close)
		b.events = store
	}

	switch cfg.Lookup {
	case config.LookupRedis:
		store, err := redis.Open(ctx, redis.Config{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
			Log:      log,
		})
		if err != nil {
			return nil, err
		}
		b.onClose(store.Close)
		b.lookup = store
	case config.LookupNats:
		store, err := nats.NewKvStore(ctx, nats.KvConfig{Connect: connect})
		if err != nil {
			return nil, fmt.Errorf("nats kv store: %w", err)
		}
		b.onClose(store.Close)
		b.lookup = store
	default:
		b.lookup = kv.NewMemStore()
	}

	if cfg.LookupCache > 0 {
		lru := cache.NewLRU(cache.LRUOpts{Size: cfg.LookupCache, TTL: cfg.LookupTTL})
		b.onClose(func() error { lru.Close(); return nil })
		b.lookup = kv.NewCached(b.lookup, lru)
	}

	log.Info(
		"backend ready",
		slog.String("backend", string(cfg.Backend)),
		slog.String("lookup", string(cfg.Lookup)),
		slog.String("site", tenant.Site),
	)
	return b, nil
}
