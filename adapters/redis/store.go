// Package redis implements the key/value port on Redis.
package redis

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	goredis "github.com/redis/go-redis/v9"

	"github.com/getdevflow/core-sub003/ports/kv"
)

type Config struct {
	Addr     string
	Password string
	DB       int
	Log      *slog.Logger
}

// Store is a kv.Store on a Redis client. Keys are used as is; callers
// namespace them.
type Store struct {
	client *goredis.Client
	log    *slog.Logger
}

// Open connects to cfg.Addr and pings the server.
func Open(ctx context.Context, cfg Config) (*Store, error) {
	client := goredis.NewClient(&goredis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis %s: %w", cfg.Addr, err)
	}
	return New(client, cfg.Log), nil
}

func New(client *goredis.Client, log *slog.Logger) *Store {
	if log == nil {
		log = slog.Default()
	}
	return &Store{client: client, log: log.With(slog.String("kv", "redis"))}
}

func (s *Store) Close() error { return s.client.Close() }

func (s *Store) Put(ctx context.Context, key string, value []byte, opts kv.PutOptions) error {
	if err := s.client.Set(ctx, key, value, opts.TTL).Err(); err != nil {
		return fmt.Errorf("set %s: %w", key, err)
	}
	return nil
}

func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	v, err := s.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return nil, kv.ErrNotFound
		}
		return nil, fmt.Errorf("get %s: %w", key, err)
	}
	return v, nil
}

func (s *Store) Delete(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("del %s: %w", key, err)
	}
	return nil
}

var _ kv.Store = (*Store)(nil)
