package es_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/getdevflow/core-sub003/core/es"
)

type noteEvents struct{}

func (noteEvents) RegisterEvents(r *es.EventRegistry) {
	es.RegisterEvent[noteWasCreated](r)
	es.RegisterEvent[noteTextWasChanged](r)
	es.RegisterEvent[noteWasDeleted](r)
}

type failingBackend struct{ err error }

func (f failingBackend) Append(context.Context, []es.Record) error { return f.err }
func (f failingBackend) Load(context.Context, string, es.ID, es.Playhead) ([]es.Record, error) {
	return nil, f.err
}

func TestRegistry(t *testing.T) {
	r := es.NewRegistry().Register(noteEvents{})
	require.Equal(t, 3, r.Kinds())
	require.Equal(t, "github.com/getdevflow/core-sub003/core/es_test.noteWasCreated", es.KindOf(noteWasCreated{}))
}

func TestStore_Commit(t *testing.T) {
	te := es.StartTestEnv(t, noteEvents{})

	t.Run("empty", func(t *testing.T) {
		tx, err := te.Store.Commit(t.Context())
		require.NoError(t, err)
		require.True(t, tx.Empty())
		require.NotEmpty(t, tx.ID)
	})

	t.Run("transaction", func(t *testing.T) {
		a := newNote(t, "a")
		b := newNote(t, "b")
		require.NoError(t, b.ChangeText("bb"))

		tx := te.Commit(t.Context(), append(a.Uncommitted(), b.Uncommitted()...)...)
		require.Equal(t, []es.ID{a.AggregateID(), b.AggregateID()}, tx.AggregateIDs())
		require.Equal(t, 2, tx.Stream(b.AggregateID()).Len())
		require.Len(t, tx.Streams(), 2)

		recs, err := te.Backend.Load(t.Context(), "main", b.AggregateID(), 0)
		require.NoError(t, err)
		require.Len(t, recs, 2)
		for _, r := range recs {
			require.Equal(t, tx.ID, r.TransactionID)
			require.Equal(t, "main", r.Site)
			require.Equal(t, "note", r.AggregateType)
		}
		require.Equal(t, "NoteTextWasChanged", recs[1].EventType)
		require.JSONEq(t, `{"Text":"bb"}`, string(recs[1].Payload))
	})

	t.Run("playheads must be consecutive", func(t *testing.T) {
		a := newNote(t, "a")
		require.NoError(t, a.ChangeText("b"))
		evs := a.Uncommitted()
		_, err := te.Store.Commit(t.Context(), evs[1], evs[0])
		require.ErrorIs(t, err, es.ErrInvalidEvent)
	})

	t.Run("zero event", func(t *testing.T) {
		_, err := te.Store.Commit(t.Context(), es.DomainEvent{})
		require.ErrorIs(t, err, es.ErrInvalidEvent)
	})

	t.Run("duplicate event ids", func(t *testing.T) {
		a := newNote(t, "a")
		tx := te.Commit(t.Context(), a.Uncommitted()...)
		require.Len(t, tx.Events, 1)

		_, err := te.Store.Commit(t.Context(), a.Uncommitted()...)
		require.ErrorIs(t, err, es.ErrConcurrencyConflict)
	})
}

func TestInMemoryStore_SiteKeys(t *testing.T) {
	b := es.NewInMemoryStore()
	require.NoError(t, b.Append(t.Context(), []es.Record{{EventID: "e1", Site: "blog-one", AggregateID: "x"}}))

	recs, err := b.Load(t.Context(), "blog", "one-x", 0)
	require.NoError(t, err)
	require.Empty(t, recs)

	require.NoError(t, b.Append(t.Context(), []es.Record{{EventID: "e2", Site: "blog", AggregateID: "one-x"}}))
	recs, err = b.Load(t.Context(), "blog-one", "x", 0)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	require.Equal(t, "e1", recs[0].EventID)
}

func TestStore_BackendFailure(t *testing.T) {
	boom := errors.New("disk on fire")
	s := es.NewStore(failingBackend{err: boom}, es.NewRegistry().Register(noteEvents{}))

	_, err := s.Commit(t.Context(), newNote(t, "a").Uncommitted()...)
	require.ErrorIs(t, err, es.ErrPersistence)
	require.ErrorIs(t, err, boom)

	_, err = s.AggregateHistoryFor(t.Context(), es.NewID())
	require.ErrorIs(t, err, es.ErrPersistence)

	conflict := &es.ConflictError{AggregateID: es.NewID(), Expected: 0, Actual: 3}
	s = es.NewStore(failingBackend{err: conflict}, es.NewRegistry())
	_, err = s.Commit(t.Context(), newNote(t, "a").Uncommitted()...)
	require.ErrorIs(t, err, es.ErrConcurrencyConflict)
	require.NotErrorIs(t, err, es.ErrPersistence)
}

func TestStore_TransactionIDs(t *testing.T) {
	s := es.NewStore(es.NewInMemoryStore(), es.NewRegistry(), es.WithTransactionIDGenerator(func() es.TransactionID {
		return "tx-1"
	}))
	tx, err := s.Commit(t.Context())
	require.NoError(t, err)
	require.Equal(t, es.TransactionID("tx-1"), tx.ID)
}

func TestUnitOfWork(t *testing.T) {
	var nilUow *es.UnitOfWork
	nilUow.Register(newNote(t, "a"))
	nilUow.Evict("x")
	nilUow.Clear()
	require.Zero(t, nilUow.Len())

	uow := es.NewUnitOfWork()
	a := newNote(t, "a")
	uow.Register(a)
	uow.Register(&note{})
	require.Equal(t, 1, uow.Len())
	require.True(t, uow.Contains(a.AggregateID()))
	uow.Evict(a.AggregateID())
	require.False(t, uow.Contains(a.AggregateID()))
	uow.Register(a)
	uow.Clear()
	require.Zero(t, uow.Len())
}

func TestTenant(t *testing.T) {
	tenant, err := es.NewTenant("blog-one")
	require.NoError(t, err)
	require.Equal(t, "blog_one_content", tenant.Table("content"))
	require.Equal(t, "blog-one:user:login:jo", tenant.Key("user", "login", "jo"))

	_, err = es.NewTenant("Bad Site")
	require.Error(t, err)
	require.NoError(t, es.DefaultTenant().Validate())
	require.Error(t, es.Tenant{Site: "ok", TablePrefix: "x; drop", CacheNamespace: "ok"}.Validate())
}

func TestID(t *testing.T) {
	a, b := es.NewID(), es.NewID()
	require.Less(t, a.String(), b.String())
	require.Len(t, a.String(), 26)

	parsed, err := es.ParseID(a.String())
	require.NoError(t, err)
	require.Equal(t, a, parsed)

	_, err = es.ParseID("not-a-ulid")
	require.Error(t, err)
	require.Panics(t, func() { es.MustParseID("") })
}
