package site

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/getdevflow/core-sub003/core/es"
	"github.com/getdevflow/core-sub003/domain/domaintest"
	"github.com/getdevflow/core-sub003/domain/readmodel"
	"github.com/getdevflow/core-sub003/ports/kv"
)

var now = time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)

func details() Details {
	return Details{
		Name:   "Blog",
		Slug:   "blog",
		Domain: "Example.com",
		Path:   "/blog/",
		Owner:  es.NewID(),
	}
}

func TestSite_Commands(t *testing.T) {
	t.Run("create", func(t *testing.T) {
		s, err := Create(es.NewID(), details(), now)
		require.NoError(t, err)
		require.Equal(t, "example.com", s.Domain)
		require.Equal(t, StatusPublic, s.Status)
		require.Equal(t, es.Playhead(1), s.Playhead())
		require.Equal(t, es.StateCreated, s.State())
	})

	t.Run("invalid input", func(t *testing.T) {
		for name, mutate := range map[string]func(*Details){
			"blank name": func(d *Details) { d.Name = " " },
			"bad slug":   func(d *Details) { d.Slug = "Not A Slug" },
			"bad path":   func(d *Details) { d.Path = "blog" },
			"no owner":   func(d *Details) { d.Owner = "" },
			"bad status": func(d *Details) { d.Status = "gone" },
			"bad domain": func(d *Details) { d.Domain = "example.com/blog" },
		} {
			t.Run(name, func(t *testing.T) {
				d := details()
				mutate(&d)
				_, err := Create(es.NewID(), d, now)
				require.ErrorIs(t, err, es.ErrInvariantViolation)
			})
		}
	})

	t.Run("no-op change", func(t *testing.T) {
		s, err := Create(es.NewID(), details(), now)
		require.NoError(t, err)
		s.ClearUncommitted()

		require.NoError(t, s.ChangeName("Blog"))
		require.NoError(t, s.ChangeDomain("EXAMPLE.com"))
		require.False(t, s.HasRecordedEvents())
		require.NoError(t, s.StampModified(now))
		require.False(t, s.HasRecordedEvents(), "nothing to stamp")

		require.NoError(t, s.ChangeName("Journal"))
		require.NoError(t, s.StampModified(now.Add(time.Hour)))
		require.Len(t, s.Uncommitted(), 2)
		require.Equal(t, now.Add(time.Hour), s.Modified)
	})

	t.Run("failed change keeps state", func(t *testing.T) {
		s, err := Create(es.NewID(), details(), now)
		require.NoError(t, err)
		require.ErrorIs(t, s.ChangePath("nope"), es.ErrInvariantViolation)
		require.Equal(t, "/blog/", s.Path)
		require.Len(t, s.Uncommitted(), 1)
	})

	t.Run("delete", func(t *testing.T) {
		id := es.NewID()
		s, err := Create(id, details(), now)
		require.NoError(t, err)
		require.ErrorIs(t, s.Delete(es.NewID()), es.ErrInvariantViolation)
		require.NoError(t, s.Delete(id))
		require.NoError(t, s.Delete(id))
		require.Len(t, s.Uncommitted(), 2)
		require.Equal(t, es.StateDeleted, s.State())

		require.ErrorIs(t, s.ChangeName("Journal"), es.ErrInvariantViolation)
		require.NoError(t, s.StampModified(now.Add(time.Hour)))
		require.Len(t, s.Uncommitted(), 2)
	})
}

func TestSite_Projection(t *testing.T) {
	env := domaintest.New(t, Events{})
	proj := NewProjection(env.DB, env.Tenant, env.KV, kv.IndexOpts{})
	repo := NewRepository(env.Store, es.WithProjections(proj))
	ctx := t.Context()

	id := es.NewID()
	s, err := Create(id, details(), now)
	require.NoError(t, err)
	_, err = repo.Save(ctx, nil, s)
	require.NoError(t, err)

	row, err := proj.Find(ctx, id)
	require.NoError(t, err)
	require.Equal(t, Row{
		ID:         id,
		Name:       "Blog",
		Slug:       "blog",
		Domain:     "example.com",
		Path:       "/blog/",
		Owner:      s.Owner,
		Status:     StatusPublic,
		Registered: now,
		Modified:   now,
	}, row)

	got, err := proj.FindByAddress(ctx, "example.com", "/blog/")
	require.NoError(t, err)
	require.Equal(t, id, got.ID)

	t.Run("moving the address moves the index", func(t *testing.T) {
		_, err := repo.Transact(ctx, id, func(s *Site) error {
			if err := s.ChangeDomain("example.org"); err != nil {
				return err
			}
			if err := s.ChangePath("/"); err != nil {
				return err
			}
			return s.StampModified(now.Add(time.Minute))
		})
		require.NoError(t, err)

		_, err = proj.FindByAddress(ctx, "example.com", "/blog/")
		require.ErrorIs(t, err, readmodel.ErrNotFound)
		got, err := proj.FindByAddress(ctx, "example.org", "/")
		require.NoError(t, err)
		require.Equal(t, id, got.ID)
		require.Equal(t, now.Add(time.Minute), got.Modified)

		raw, err := env.KV.Get(ctx, env.Tenant.Key("site", "domain_path", "example.org/"))
		require.NoError(t, err)
		require.Equal(t, id.String(), string(raw))
	})

	t.Run("index falls back to the table", func(t *testing.T) {
		require.NoError(t, env.KV.Delete(ctx, env.Tenant.Key("site", "domain_path", "example.org/")))
		got, err := proj.FindByAddress(ctx, "example.org", "/")
		require.NoError(t, err)
		require.Equal(t, id, got.ID)
	})

	t.Run("address taken", func(t *testing.T) {
		second, err := Create(es.NewID(), details(), now)
		require.NoError(t, err)
		_, err = repo.Save(ctx, nil, second)
		require.NoError(t, err, "example.com/blog/ was freed by the move")

		_, err = repo.Transact(ctx, second.AggregateID(), func(s *Site) error {
			if err := s.ChangeDomain("example.org"); err != nil {
				return err
			}
			return s.ChangePath("/")
		})
		require.ErrorIs(t, err, es.ErrInvariantViolation)
		require.ErrorContains(t, err, `address "example.org/" is already taken`)

		row, err := proj.Find(ctx, second.AggregateID())
		require.NoError(t, err)
		require.Equal(t, "example.com", row.Domain)

		third, err := Create(es.NewID(), details(), now)
		require.NoError(t, err)
		_, err = repo.Save(ctx, nil, third)
		require.ErrorIs(t, err, es.ErrInvariantViolation)
	})

	t.Run("delete removes row and index", func(t *testing.T) {
		_, err := repo.Transact(ctx, id, func(s *Site) error { return s.Delete(id) })
		require.NoError(t, err)
		require.Equal(t, 1, env.Count(t, "sites"))
		_, err = proj.FindByAddress(ctx, "example.org", "/")
		require.ErrorIs(t, err, readmodel.ErrNotFound)
		_, err = proj.Find(ctx, id)
		require.ErrorIs(t, err, readmodel.ErrNotFound)
	})

	t.Run("unhandled event", func(t *testing.T) {
		other := es.NewDomainEvent(AggregateType, id, 0, otherEvent{})
		require.ErrorIs(t, proj.Project(ctx, other), es.ErrUnhandledEvent)
	})
}

type otherEvent struct{}

func (otherEvent) EventType() string { return "Other" }
