// Package domaintest wires a family's repository and projection onto an in
// memory SQLite database for tests.
package domaintest

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/getdevflow/core-sub003/adapters/sqlite"
	"github.com/getdevflow/core-sub003/core/es"
	"github.com/getdevflow/core-sub003/ports/kv"
)

type Env struct {
	Tenant es.Tenant
	DB     *sqlite.DB
	KV     *kv.MemStore
	Store  *es.Store
}

// New migrates a fresh database for the "test" site and builds a store on
// its event table.
func New(t *testing.T, registrars ...es.Registrar) *Env {
	tenant, err := es.NewTenant("test")
	require.NoError(t, err)

	db, err := sqlite.OpenTenant(t.Context(), sqlite.Memory, tenant, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	registry := es.NewRegistry().Register(registrars...)
	return &Env{
		Tenant: tenant,
		DB:     db,
		KV:     kv.NewMemStore(),
		Store:  es.NewStore(sqlite.NewEventStore(db, nil), registry, es.WithTenant(tenant)),
	}
}

// Count returns the number of rows of a tenant table.
func (e *Env) Count(t *testing.T, table string) int {
	var n int
	require.NoError(t, e.DB.QueryRow(t.Context(), "SELECT COUNT(*) FROM "+e.Tenant.Table(table)).Scan(&n))
	return n
}
