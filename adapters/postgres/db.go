// Package postgres implements the SQL port, the event store backend and the
// read model schema on PostgreSQL with pgx.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/getdevflow/core-sub003/adapters/postgres/migrations"
	"github.com/getdevflow/core-sub003/core/es"
	"github.com/getdevflow/core-sub003/ports/sqldb"
)

const (
	defaultMinConns        = 2
	defaultMaxConns        = 20
	defaultMaxConnLifetime = 30 * time.Minute
	defaultMaxConnIdleTime = 5 * time.Minute
	defaultHealthCheck     = 30 * time.Second
)

const uniqueViolation = "23505"

type PoolOpts struct {
	MinConns int32
	MaxConns int32
}

// DB is a sqldb.DB on a pgx pool.
type DB struct {
	pool *pgxpool.Pool
	log  *slog.Logger
}

// Open connects to databaseURL and pings the server.
func Open(ctx context.Context, databaseURL string, opts PoolOpts, log *slog.Logger) (*DB, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse database config: %w", err)
	}
	if log == nil {
		log = slog.Default()
	}

	if opts.MaxConns <= 0 {
		opts.MaxConns = defaultMaxConns
	}
	if opts.MinConns <= 0 {
		opts.MinConns = defaultMinConns
	}
	if opts.MinConns > opts.MaxConns {
		opts.MinConns = opts.MaxConns
	}
	cfg.MinConns = opts.MinConns
	cfg.MaxConns = opts.MaxConns
	cfg.MaxConnLifetime = defaultMaxConnLifetime
	cfg.MaxConnIdleTime = defaultMaxConnIdleTime
	cfg.HealthCheckPeriod = defaultHealthCheck

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("open pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return &DB{pool: pool, log: log.With(slog.String("db", "postgres"))}, nil
}

// OpenTenant opens databaseURL and applies the migrations for tenant.
func OpenTenant(ctx context.Context, databaseURL string, tenant es.Tenant, log *slog.Logger) (*DB, error) {
	db, err := Open(ctx, databaseURL, PoolOpts{}, log)
	if err != nil {
		return nil, err
	}
	if err := db.Migrate(ctx, tenant); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

// Migrate creates the event store table and the read model tables of
// tenant.
func (db *DB) Migrate(ctx context.Context, tenant es.Tenant) error {
	if err := sqldb.ApplyMigrations(ctx, db, migrations.FS, tenant.TablePrefix); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}
	db.log.Debug("migrated", slog.String("prefix", tenant.TablePrefix))
	return nil
}

func (db *DB) Close() error {
	if db != nil && db.pool != nil {
		db.pool.Close()
	}
	return nil
}

func (db *DB) Dialect() sqldb.Dialect { return sqldb.DialectPostgres }

func (db *DB) Exec(ctx context.Context, q string, args ...any) (int64, error) {
	return exec(ctx, db.pool, q, args...)
}

func (db *DB) Query(ctx context.Context, q string, args ...any) (sqldb.Rows, error) {
	return query(ctx, db.pool, q, args...)
}

func (db *DB) QueryRow(ctx context.Context, q string, args ...any) sqldb.Row {
	return row{db.pool.QueryRow(ctx, Rebind(q), args...)}
}

func (db *DB) Transactional(ctx context.Context, fn func(ctx context.Context, tx sqldb.Tx) error) error {
	return pgx.BeginFunc(ctx, db.pool, func(pgTx pgx.Tx) error {
		return fn(ctx, &tx{pgTx})
	})
}

func (db *DB) IsUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}

// Rebind turns "?" placeholders into "$1", "$2", ... Question marks inside
// single quoted literals are kept.
func Rebind(q string) string {
	if !strings.Contains(q, "?") {
		return q
	}
	var (
		b       strings.Builder
		n       int
		literal bool
	)
	b.Grow(len(q) + 8)
	for i := 0; i < len(q); i++ {
		c := q[i]
		switch {
		case c == '\'':
			literal = !literal
			b.WriteByte(c)
		case c == '?' && !literal:
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
		default:
			b.WriteByte(c)
		}
	}
	return b.String()
}

// === tx ===

type tx struct {
	pgTx pgx.Tx
}

func (t *tx) Exec(ctx context.Context, q string, args ...any) (int64, error) {
	return exec(ctx, t.pgTx, q, args...)
}

func (t *tx) Query(ctx context.Context, q string, args ...any) (sqldb.Rows, error) {
	return query(ctx, t.pgTx, q, args...)
}

func (t *tx) QueryRow(ctx context.Context, q string, args ...any) sqldb.Row {
	return row{t.pgTx.QueryRow(ctx, Rebind(q), args...)}
}

// === helpers ===

type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

func exec(ctx context.Context, q querier, sql string, args ...any) (int64, error) {
	tag, err := q.Exec(ctx, Rebind(sql), args...)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func query(ctx context.Context, q querier, sql string, args ...any) (sqldb.Rows, error) {
	r, err := q.Query(ctx, Rebind(sql), args...)
	if err != nil {
		return nil, err
	}
	return rows{r}, nil
}

type rows struct {
	r pgx.Rows
}

func (r rows) Next() bool             { return r.r.Next() }
func (r rows) Scan(dest ...any) error { return r.r.Scan(dest...) }
func (r rows) Err() error             { return r.r.Err() }
func (r rows) Close() error {
	r.r.Close()
	return nil
}

type row struct {
	r pgx.Row
}

func (r row) Scan(dest ...any) error {
	if err := r.r.Scan(dest...); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return sqldb.ErrNoRows
		}
		return err
	}
	return nil
}

var _ sqldb.DB = (*DB)(nil)
