// Package sqlite implements the SQL port, the event store backend and the
// read model schema on SQLite (modernc.org/sqlite, no cgo).
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"path/filepath"
	"strings"

	msqlite "modernc.org/sqlite"
	sqlite3lib "modernc.org/sqlite/lib"

	"github.com/getdevflow/core-sub003/adapters/sqlite/migrations"
	"github.com/getdevflow/core-sub003/core/es"
	"github.com/getdevflow/core-sub003/ports/sqldb"
)

// Memory opens a private in-memory database.
const Memory = ":memory:"

// DB is a sqldb.DB on a SQLite file.
type DB struct {
	sqlDB *sql.DB
	log   *slog.Logger
}

// Open opens the database at path. Writers take the lock when their
// transaction begins, so concurrent appends queue on busy_timeout instead of
// failing on lock upgrade.
func Open(path string, log *slog.Logger) (*DB, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	if log == nil {
		log = slog.Default()
	}

	q := url.Values{}
	q.Add("_pragma", "busy_timeout(5000)")
	q.Add("_pragma", "foreign_keys(1)")
	q.Set("_txlock", "immediate")

	var dsn string
	if path == Memory {
		dsn = "file::memory:?" + q.Encode()
	} else {
		q.Add("_pragma", "journal_mode(WAL)")
		q.Add("_pragma", "synchronous(NORMAL)")
		dsn = "file:" + filepath.Clean(path) + "?" + q.Encode()
	}

	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if path == Memory {
		// every connection would get its own empty database
		sqlDB.SetMaxOpenConns(1)
	}
	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	return &DB{sqlDB: sqlDB, log: log.With(slog.String("db", "sqlite"))}, nil
}

// OpenTenant opens path and applies the migrations for tenant.
func OpenTenant(ctx context.Context, path string, tenant es.Tenant, log *slog.Logger) (*DB, error) {
	db, err := Open(path, log)
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
	if db == nil || db.sqlDB == nil {
		return nil
	}
	return db.sqlDB.Close()
}

func (db *DB) Dialect() sqldb.Dialect { return sqldb.DialectSQLite }

func (db *DB) Exec(ctx context.Context, query string, args ...any) (int64, error) {
	return exec(ctx, db.sqlDB, query, args...)
}

func (db *DB) Query(ctx context.Context, query string, args ...any) (sqldb.Rows, error) {
	return db.sqlDB.QueryContext(ctx, query, args...)
}

func (db *DB) QueryRow(ctx context.Context, query string, args ...any) sqldb.Row {
	return row{db.sqlDB.QueryRowContext(ctx, query, args...)}
}

func (db *DB) Transactional(ctx context.Context, fn func(ctx context.Context, tx sqldb.Tx) error) (err error) {
	sqlTx, err := db.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() {
		if p := recover(); p != nil {
			_ = sqlTx.Rollback()
			panic(p)
		}
	}()

	if err := fn(ctx, &tx{sqlTx}); err != nil {
		if rbErr := sqlTx.Rollback(); rbErr != nil {
			db.log.Error("rollback failed", slog.Any("error", rbErr))
		}
		return err
	}
	if err := sqlTx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func (db *DB) IsUniqueViolation(err error) bool {
	var sqliteErr *msqlite.Error
	if !errors.As(err, &sqliteErr) {
		return false
	}
	switch sqliteErr.Code() {
	case sqlite3lib.SQLITE_CONSTRAINT, sqlite3lib.SQLITE_CONSTRAINT_UNIQUE, sqlite3lib.SQLITE_CONSTRAINT_PRIMARYKEY:
		return true
	}
	return false
}

// IsBusy reports lock contention that outlasted busy_timeout.
func IsBusy(err error) bool {
	var sqliteErr *msqlite.Error
	if !errors.As(err, &sqliteErr) {
		return false
	}
	code := sqliteErr.Code()
	return code == sqlite3lib.SQLITE_BUSY || code == sqlite3lib.SQLITE_LOCKED
}

// === tx ===

type tx struct {
	sqlTx *sql.Tx
}

func (t *tx) Exec(ctx context.Context, query string, args ...any) (int64, error) {
	return exec(ctx, t.sqlTx, query, args...)
}

func (t *tx) Query(ctx context.Context, query string, args ...any) (sqldb.Rows, error) {
	return t.sqlTx.QueryContext(ctx, query, args...)
}

func (t *tx) QueryRow(ctx context.Context, query string, args ...any) sqldb.Row {
	return row{t.sqlTx.QueryRowContext(ctx, query, args...)}
}

// === helpers ===

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func exec(ctx context.Context, e execer, query string, args ...any) (int64, error) {
	res, err := e.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

type row struct {
	r *sql.Row
}

func (r row) Scan(dest ...any) error {
	if err := r.r.Scan(dest...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return sqldb.ErrNoRows
		}
		return err
	}
	return nil
}

var _ sqldb.DB = (*DB)(nil)
