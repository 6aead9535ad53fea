package postgres

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/getdevflow/core-sub003/core/es"
	"github.com/getdevflow/core-sub003/core/es/estests"
	"github.com/getdevflow/core-sub003/ports/sqldb"
)

func TestRebind(t *testing.T) {
	for _, tc := range []struct{ in, want string }{
		{"SELECT 1", "SELECT 1"},
		{"SELECT * FROM t WHERE a = ? AND b = ?", "SELECT * FROM t WHERE a = $1 AND b = $2"},
		{"INSERT INTO t (a, b) VALUES (?, ?::jsonb)", "INSERT INTO t (a, b) VALUES ($1, $2::jsonb)"},
		{"SELECT '?' FROM t WHERE a = ?", "SELECT '?' FROM t WHERE a = $1"},
		{"SELECT 'it''s ?' WHERE a = ?", "SELECT 'it''s ?' WHERE a = $1"},
	} {
		require.Equal(t, tc.want, Rebind(tc.in), tc.in)
	}
}

func openTestDB(t *testing.T) *DB {
	if testing.Short() {
		t.Skip("postgres container tests skipped in short mode")
	}
	db, err := Open(t.Context(), NewTestContainer(t), PoolOpts{MaxConns: 8}, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestPostgres(t *testing.T) {
	db := openTestDB(t)

	t.Run("event store contract", func(t *testing.T) {
		var mu sync.Mutex
		estests.RunEventStoreSuite(t, func(t *testing.T, tenant es.Tenant) es.EventStore {
			mu.Lock()
			defer mu.Unlock()
			require.NoError(t, db.Migrate(t.Context(), tenant))
			return NewEventStore(db, nil)
		})
	})

	t.Run("migrate is idempotent", func(t *testing.T) {
		tenant, err := es.NewTenant("blog")
		require.NoError(t, err)
		require.NoError(t, db.Migrate(t.Context(), tenant))
		require.NoError(t, db.Migrate(t.Context(), tenant))

		var n int
		require.NoError(t, db.QueryRow(t.Context(), "SELECT COUNT(*) FROM blog_schema_migrations").Scan(&n))
		require.Equal(t, 2, n)

		for _, table := range []string{"event_store", "blog_users", "blog_contents", "blog_products"} {
			var name string
			require.NoError(t, db.QueryRow(t.Context(),
				"SELECT table_name FROM information_schema.tables WHERE table_name = ?", table,
			).Scan(&name), table)
		}
	})

	t.Run("transactional", func(t *testing.T) {
		_, err := db.Exec(t.Context(), "CREATE TABLE kv (k TEXT PRIMARY KEY, v TEXT NOT NULL)")
		require.NoError(t, err)

		boom := errors.New("boom")
		err = db.Transactional(t.Context(), func(ctx context.Context, tx sqldb.Tx) error {
			_, err := tx.Exec(ctx, "INSERT INTO kv (k, v) VALUES (?, ?)", "a", "1")
			require.NoError(t, err)
			return boom
		})
		require.ErrorIs(t, err, boom)

		var v string
		err = db.QueryRow(t.Context(), "SELECT v FROM kv WHERE k = ?", "a").Scan(&v)
		require.ErrorIs(t, err, sqldb.ErrNoRows)

		n, err := db.Exec(t.Context(), "INSERT INTO kv (k, v) VALUES (?, ?)", "b", "2")
		require.NoError(t, err)
		require.Equal(t, int64(1), n)

		_, err = db.Exec(t.Context(), "INSERT INTO kv (k, v) VALUES (?, ?)", "b", "again")
		require.True(t, db.IsUniqueViolation(err))
	})
}
