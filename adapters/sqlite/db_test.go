package sqlite

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/getdevflow/core-sub003/core/es"
	"github.com/getdevflow/core-sub003/core/es/estests"
	"github.com/getdevflow/core-sub003/ports/sqldb"
)

func openTestDB(t *testing.T) *DB {
	db, err := Open(filepath.Join(t.TempDir(), "test.db"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestEventStore_Contract(t *testing.T) {
	db := openTestDB(t)
	var mu sync.Mutex
	estests.RunEventStoreSuite(t, func(t *testing.T, tenant es.Tenant) es.EventStore {
		mu.Lock()
		defer mu.Unlock()
		require.NoError(t, db.Migrate(t.Context(), tenant))
		return NewEventStore(db, nil)
	})
}

func TestEventStore_Memory(t *testing.T) {
	db, err := OpenTenant(t.Context(), Memory, es.DefaultTenant(), nil)
	require.NoError(t, err)
	defer db.Close()

	estests.RunEventStoreSuite(t, func(t *testing.T, tenant es.Tenant) es.EventStore {
		require.NoError(t, db.Migrate(t.Context(), tenant))
		return NewEventStore(db, nil)
	})
}

func TestMigrate(t *testing.T) {
	db := openTestDB(t)
	tenant, err := es.NewTenant("blog")
	require.NoError(t, err)

	require.NoError(t, db.Migrate(t.Context(), tenant))
	require.NoError(t, db.Migrate(t.Context(), tenant))
	require.NoError(t, db.Migrate(t.Context(), es.DefaultTenant()))

	var n int
	require.NoError(t, db.QueryRow(t.Context(), "SELECT COUNT(*) FROM blog_schema_migrations").Scan(&n))
	require.Equal(t, 2, n)

	for _, table := range []string{"event_store", "blog_users", "blog_contents", "sites", "products"} {
		var name string
		require.NoError(t, db.QueryRow(t.Context(),
			"SELECT name FROM sqlite_master WHERE type = 'table' AND name = ?", table,
		).Scan(&name), table)
	}
}

func TestDB_Transactional(t *testing.T) {
	db := openTestDB(t)
	_, err := db.Exec(t.Context(), "CREATE TABLE kv (k TEXT PRIMARY KEY, v TEXT NOT NULL)")
	require.NoError(t, err)

	t.Run("rollback on error", func(t *testing.T) {
		boom := errors.New("boom")
		err := db.Transactional(t.Context(), func(ctx context.Context, tx sqldb.Tx) error {
			_, err := tx.Exec(ctx, "INSERT INTO kv (k, v) VALUES (?, ?)", "a", "1")
			require.NoError(t, err)
			return boom
		})
		require.ErrorIs(t, err, boom)

		var v string
		err = db.QueryRow(t.Context(), "SELECT v FROM kv WHERE k = ?", "a").Scan(&v)
		require.ErrorIs(t, err, sqldb.ErrNoRows)
	})

	t.Run("commit", func(t *testing.T) {
		err := db.Transactional(t.Context(), func(ctx context.Context, tx sqldb.Tx) error {
			n, err := tx.Exec(ctx, "INSERT INTO kv (k, v) VALUES (?, ?)", "b", "2")
			require.Equal(t, int64(1), n)
			return err
		})
		require.NoError(t, err)

		rows, err := db.Query(t.Context(), "SELECT k, v FROM kv")
		require.NoError(t, err)
		got, err := sqldb.Collect(rows, func(r sqldb.Rows) ([2]string, error) {
			var kv [2]string
			return kv, r.Scan(&kv[0], &kv[1])
		})
		require.NoError(t, err)
		require.Equal(t, [][2]string{{"b", "2"}}, got)
	})

	t.Run("unique violation", func(t *testing.T) {
		_, err := db.Exec(t.Context(), "INSERT INTO kv (k, v) VALUES (?, ?)", "b", "again")
		require.Error(t, err)
		require.True(t, db.IsUniqueViolation(err))
		require.False(t, db.IsUniqueViolation(errors.New("other")))
	})
}
