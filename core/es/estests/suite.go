// Package estests is the contract every es.EventStore backend must satisfy.
// Adapters call RunEventStoreSuite from their own tests.
package estests

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/getdevflow/core-sub003/core/es"
	"github.com/getdevflow/core-sub003/core/es/estests/domain"
)

// BackendFactory returns an empty backend scoped to tenant. Backends that
// share storage across calls must still isolate tenants by site.
type BackendFactory func(t *testing.T, tenant es.Tenant) es.EventStore

func newStore(t *testing.T, factory BackendFactory, tenant es.Tenant) *es.Store {
	return es.NewStore(
		factory(t, tenant),
		es.NewRegistry().Register(domain.Events{}),
		es.WithTenant(tenant),
	)
}

func mustTenant(t *testing.T, site string) es.Tenant {
	tenant, err := es.NewTenant(site)
	require.NoError(t, err)
	return tenant
}

// RunEventStoreSuite runs the backend contract as subtests of t.
func RunEventStoreSuite(t *testing.T, factory BackendFactory) {
	t.Run("empty history", func(t *testing.T) {
		s := newStore(t, factory, mustTenant(t, "empty"))
		stream, err := s.AggregateHistoryFor(t.Context(), es.NewID())
		require.NoError(t, err)
		require.True(t, stream.Empty())
	})

	t.Run("commit and load", func(t *testing.T) {
		s := newStore(t, factory, mustTenant(t, "roundtrip"))
		p, err := domain.Create(es.NewID(), "first")
		require.NoError(t, err)
		require.NoError(t, p.ChangeTitle("second"))
		require.NoError(t, p.IncBy(3))

		tx, err := s.Commit(t.Context(), p.Uncommitted()...)
		require.NoError(t, err)
		require.NotEmpty(t, tx.ID)
		require.Len(t, tx.Events, 3)

		stream, err := s.AggregateHistoryFor(t.Context(), p.AggregateID())
		require.NoError(t, err)
		require.Equal(t, 3, stream.Len())
		require.Equal(t, es.Playhead(3), stream.Playhead())
		for i, ev := range stream.Events {
			want := tx.Events[i]
			require.Equal(t, es.Playhead(i), ev.Playhead())
			require.Equal(t, want.EventID(), ev.EventID())
			require.Equal(t, want.EventType(), ev.EventType())
			require.Equal(t, want.Payload(), ev.Payload())
			require.Equal(t, want.Metadata(), ev.Metadata())
			require.True(t, want.RecordedAt().Equal(ev.RecordedAt()))
		}
		require.Equal(t, domain.PageTitleWasChanged{Title: "second"}, stream.Events[1].Payload())
	})

	t.Run("load from playhead", func(t *testing.T) {
		s := newStore(t, factory, mustTenant(t, "suffix"))
		p, err := domain.Create(es.NewID(), "t")
		require.NoError(t, err)
		for range 4 {
			require.NoError(t, p.Inc())
		}
		_, err = s.Commit(t.Context(), p.Uncommitted()...)
		require.NoError(t, err)

		stream, err := s.LoadFromPlayhead(t.Context(), p.AggregateID(), 2)
		require.NoError(t, err)
		require.Equal(t, 3, stream.Len())
		require.Equal(t, es.Playhead(2), stream.Events[0].Playhead())

		stream, err = s.LoadFromPlayhead(t.Context(), p.AggregateID(), 5)
		require.NoError(t, err)
		require.True(t, stream.Empty())
	})

	t.Run("consecutive commits", func(t *testing.T) {
		s := newStore(t, factory, mustTenant(t, "consecutive"))
		p, err := domain.Create(es.NewID(), "t")
		require.NoError(t, err)
		_, err = s.Commit(t.Context(), p.Uncommitted()...)
		require.NoError(t, err)
		p.ClearUncommitted()

		require.NoError(t, p.ChangeTitle("u"))
		_, err = s.Commit(t.Context(), p.Uncommitted()...)
		require.NoError(t, err)

		stream, err := s.AggregateHistoryFor(t.Context(), p.AggregateID())
		require.NoError(t, err)
		require.Equal(t, 2, stream.Len())
	})

	t.Run("stale append conflicts", func(t *testing.T) {
		s := newStore(t, factory, mustTenant(t, "stale"))
		p, err := domain.Create(es.NewID(), "t")
		require.NoError(t, err)
		_, err = s.Commit(t.Context(), p.Uncommitted()...)
		require.NoError(t, err)

		again := es.NewDomainEvent(domain.AggregateType, p.AggregateID(), 0, domain.PageWasCreated{Title: "again"})
		_, err = s.Commit(t.Context(), again)
		require.ErrorIs(t, err, es.ErrConcurrencyConflict)

		var conflict *es.ConflictError
		require.ErrorAs(t, err, &conflict)
		require.Equal(t, p.AggregateID(), conflict.AggregateID)
		require.Equal(t, es.Playhead(0), conflict.Expected)
		require.Equal(t, es.Playhead(1), conflict.Actual)
	})

	t.Run("gap conflicts", func(t *testing.T) {
		s := newStore(t, factory, mustTenant(t, "gap"))
		ahead := es.NewDomainEvent(domain.AggregateType, es.NewID(), 2, domain.PageTitleWasChanged{Title: "x"})
		_, err := s.Commit(t.Context(), ahead)
		require.ErrorIs(t, err, es.ErrConcurrencyConflict)

		stream, err := s.AggregateHistoryFor(t.Context(), ahead.AggregateID())
		require.NoError(t, err)
		require.True(t, stream.Empty())
	})

	t.Run("atomic batch", func(t *testing.T) {
		s := newStore(t, factory, mustTenant(t, "atomic"))
		existing, err := domain.Create(es.NewID(), "existing")
		require.NoError(t, err)
		_, err = s.Commit(t.Context(), existing.Uncommitted()...)
		require.NoError(t, err)

		fresh, err := domain.Create(es.NewID(), "fresh")
		require.NoError(t, err)
		require.NoError(t, fresh.ChangeTitle("fresh 2"))

		// the last row of the batch conflicts
		stale := es.NewDomainEvent(domain.AggregateType, existing.AggregateID(), 0, domain.PageWasCreated{Title: "stale"})
		_, err = s.Commit(t.Context(), append(fresh.Uncommitted(), stale)...)
		require.ErrorIs(t, err, es.ErrConcurrencyConflict)

		stream, err := s.AggregateHistoryFor(t.Context(), fresh.AggregateID())
		require.NoError(t, err)
		require.True(t, stream.Empty(), "no row of a failed commit may be visible")

		stream, err = s.AggregateHistoryFor(t.Context(), existing.AggregateID())
		require.NoError(t, err)
		require.Equal(t, 1, stream.Len())
	})

	t.Run("multi aggregate commit", func(t *testing.T) {
		s := newStore(t, factory, mustTenant(t, "multi"))
		a, err := domain.Create(es.NewID(), "a")
		require.NoError(t, err)
		b, err := domain.Create(es.NewID(), "b")
		require.NoError(t, err)
		require.NoError(t, b.Inc())

		tx, err := s.Commit(t.Context(), append(a.Uncommitted(), b.Uncommitted()...)...)
		require.NoError(t, err)
		require.Equal(t, []es.ID{a.AggregateID(), b.AggregateID()}, tx.AggregateIDs())

		sa, err := s.AggregateHistoryFor(t.Context(), a.AggregateID())
		require.NoError(t, err)
		require.Equal(t, 1, sa.Len())
		sb, err := s.AggregateHistoryFor(t.Context(), b.AggregateID())
		require.NoError(t, err)
		require.Equal(t, 2, sb.Len())
	})

	t.Run("sites are isolated", func(t *testing.T) {
		one := newStore(t, factory, mustTenant(t, "site-one"))
		two := newStore(t, factory, mustTenant(t, "site-two"))

		p, err := domain.Create(es.NewID(), "t")
		require.NoError(t, err)
		_, err = one.Commit(t.Context(), p.Uncommitted()...)
		require.NoError(t, err)

		stream, err := two.AggregateHistoryFor(t.Context(), p.AggregateID())
		require.NoError(t, err)
		require.True(t, stream.Empty())

		// the same id starts over at playhead 0 in another site
		again := es.NewDomainEvent(domain.AggregateType, p.AggregateID(), 0, domain.PageWasCreated{Title: "t"})
		_, err = two.Commit(t.Context(), again)
		require.NoError(t, err)
		stream, err = two.AggregateHistoryFor(t.Context(), p.AggregateID())
		require.NoError(t, err)
		require.Equal(t, 1, stream.Len())
	})

	t.Run("repository end to end", func(t *testing.T) {
		s := newStore(t, factory, mustTenant(t, "e2e"))
		proj := es.NewRecordingProjection("pages")
		repo := es.NewRepository(s, domain.New, es.WithProjections(proj))

		id := es.NewID()
		a1, err := domain.Create(id, "A1")
		require.NoError(t, err)
		require.NoError(t, a1.ChangeTitle("Hello"))
		require.NoError(t, a1.ChangeTitle("Hello"))
		require.Len(t, a1.Uncommitted(), 2)

		tx, err := repo.Save(t.Context(), es.NewUnitOfWork(), a1)
		require.NoError(t, err)
		require.Len(t, tx.Events, 2)
		require.False(t, a1.HasRecordedEvents())
		require.Len(t, proj.Calls(), 1)

		loaded, err := repo.Load(t.Context(), es.NewUnitOfWork(), id)
		require.NoError(t, err)
		require.Equal(t, "Hello", loaded.Title)
		require.Equal(t, es.Playhead(2), loaded.Playhead())
		require.Empty(t, loaded.Uncommitted())
	})

	t.Run("concurrent writers", func(t *testing.T) {
		s := newStore(t, factory, mustTenant(t, "concurrent"))
		repo := es.NewRepository(s, domain.New)

		p, err := domain.Create(es.NewID(), "t")
		require.NoError(t, err)
		_, err = repo.Save(t.Context(), nil, p)
		require.NoError(t, err)

		first, err := repo.Load(t.Context(), es.NewUnitOfWork(), p.AggregateID())
		require.NoError(t, err)
		second, err := repo.Load(t.Context(), es.NewUnitOfWork(), p.AggregateID())
		require.NoError(t, err)

		require.NoError(t, first.ChangeTitle("first"))
		require.NoError(t, second.ChangeTitle("second"))

		_, err = repo.Save(t.Context(), nil, first)
		require.NoError(t, err)
		_, err = repo.Save(t.Context(), nil, second)
		require.ErrorIs(t, err, es.ErrConcurrencyConflict)

		loaded, err := repo.Load(t.Context(), nil, p.AggregateID())
		require.NoError(t, err)
		require.Equal(t, "first", loaded.Title)
	})

	t.Run("parallel transact", func(t *testing.T) {
		s := newStore(t, factory, mustTenant(t, "transact"))
		repo := es.NewRepository(s, domain.New)

		p, err := domain.Create(es.NewID(), "t")
		require.NoError(t, err)
		_, err = repo.Save(t.Context(), nil, p)
		require.NoError(t, err)

		const n = 10
		var wg sync.WaitGroup
		errs := make(chan error, n)
		for range n {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, err := repo.Transact(t.Context(), p.AggregateID(), func(p *domain.Page) error {
					return p.Inc()
				})
				errs <- err
			}()
		}
		wg.Wait()
		close(errs)
		for err := range errs {
			require.NoError(t, err)
		}

		loaded, err := repo.Load(t.Context(), nil, p.AggregateID())
		require.NoError(t, err)
		require.Equal(t, uint16(n), loaded.Counter)
		require.Equal(t, es.Playhead(n+1), loaded.Playhead())
	})
}
