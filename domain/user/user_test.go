package user

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/getdevflow/core-sub003/core/es"
	"github.com/getdevflow/core-sub003/domain/domaintest"
	"github.com/getdevflow/core-sub003/domain/readmodel"
	"github.com/getdevflow/core-sub003/ports/kv"
)

var (
	now      = time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	testHash = sync.OnceValue(func() string {
		h, err := HashPassword("correct horse")
		if err != nil {
			panic(err)
		}
		return h
	})
)

func details() Details {
	return Details{
		Login:     "Jdoe",
		Email:     " JDoe@Example.com",
		FirstName: "Jane",
		LastName:  "Doe",
		Pass:      testHash(),
		Timezone:  "Europe/Berlin",
	}
}

func TestPassword(t *testing.T) {
	_, err := HashPassword("short")
	require.ErrorIs(t, err, ErrInvalidPassword)

	require.True(t, CheckPassword(testHash(), "correct horse"))
	require.False(t, CheckPassword(testHash(), "wrong horse"))
	require.True(t, isHash(testHash()))
	require.False(t, isHash("plain text"))
}

func TestUser_Commands(t *testing.T) {
	t.Run("create normalizes", func(t *testing.T) {
		u, err := Create(es.NewID(), details(), now)
		require.NoError(t, err)
		require.Equal(t, "jdoe", u.Login)
		require.Equal(t, "jdoe@example.com", u.Email)
		require.Equal(t, "en", u.Locale)
		require.True(t, u.CheckPassword("correct horse"))
	})

	t.Run("invalid input", func(t *testing.T) {
		for name, mutate := range map[string]func(*Details){
			"login":    func(d *Details) { d.Login = "a b" },
			"email":    func(d *Details) { d.Email = "nope" },
			"name":     func(d *Details) { d.FirstName = "" },
			"pass":     func(d *Details) { d.Pass = "plain" },
			"timezone": func(d *Details) { d.Timezone = "Mars/Olympus" },
		} {
			t.Run(name, func(t *testing.T) {
				d := details()
				mutate(&d)
				_, err := Create(es.NewID(), d, now)
				require.ErrorIs(t, err, es.ErrInvariantViolation)
			})
		}
	})

	t.Run("meta", func(t *testing.T) {
		u, err := Create(es.NewID(), details(), now)
		require.NoError(t, err)
		u.ClearUncommitted()

		require.NoError(t, u.ChangeMeta("bio", "hi"))
		require.NoError(t, u.ChangeMeta("bio", "hi"))
		require.Len(t, u.Uncommitted(), 1)
		require.Equal(t, "hi", u.Meta.Value("bio"))

		require.NoError(t, u.ChangeMeta("bio", ""))
		_, ok := u.Meta.Get("bio")
		require.False(t, ok)
		require.NoError(t, u.ChangeMeta("bio", ""))
		require.Len(t, u.Uncommitted(), 2)

		require.ErrorIs(t, u.ChangeMeta(" ", "x"), es.ErrInvariantViolation)
	})

	t.Run("replay", func(t *testing.T) {
		u, err := Create(es.NewID(), details(), now)
		require.NoError(t, err)
		require.NoError(t, u.ChangeEmail("jane@example.org"))
		require.NoError(t, u.ChangeMeta("color", "green"))
		require.NoError(t, u.StampModified(now.Add(time.Hour)))

		replayed := New()
		require.NoError(t, es.Reconstitute(replayed, es.NewEventStream(u.AggregateID(), u.Uncommitted()...)))
		require.Equal(t, u.Email, replayed.Email)
		require.Equal(t, u.Meta, replayed.Meta)
		require.Equal(t, u.Modified, replayed.Modified)
		require.Equal(t, u.Playhead(), replayed.Playhead())
		require.False(t, replayed.HasRecordedEvents())
	})
}

func TestUser_Projection(t *testing.T) {
	env := domaintest.New(t, Events{})
	proj := NewProjection(env.DB, env.Tenant, env.KV, kv.IndexOpts{})
	repo := NewRepository(env.Store, es.WithProjections(proj))
	ctx := t.Context()

	id := es.NewID()
	u, err := Create(id, details(), now)
	require.NoError(t, err)
	_, err = repo.Save(ctx, nil, u)
	require.NoError(t, err)

	row, err := proj.FindByLogin(ctx, "jdoe")
	require.NoError(t, err)
	require.Equal(t, id, row.ID)
	require.Equal(t, "Europe/Berlin", row.Timezone)
	require.Empty(t, row.Meta)
	require.Equal(t, now, row.Registered)

	t.Run("changes", func(t *testing.T) {
		_, err := repo.Transact(ctx, id, func(u *User) error {
			if err := u.ChangeEmail("jane@example.org"); err != nil {
				return err
			}
			if err := u.ChangeLastName("Roe"); err != nil {
				return err
			}
			if err := u.ChangeMeta("twitter", "@jane"); err != nil {
				return err
			}
			return u.StampModified(now.Add(time.Hour))
		})
		require.NoError(t, err)

		row, err := proj.FindByEmail(ctx, "JANE@example.org")
		require.NoError(t, err)
		require.Equal(t, id, row.ID)
		require.Equal(t, "Roe", row.LastName)
		require.Equal(t, readmodel.Meta{"twitter": "@jane"}, row.Meta)
		require.Equal(t, now.Add(time.Hour), row.Modified)

		_, err = proj.FindByEmail(ctx, "jdoe@example.com")
		require.ErrorIs(t, err, readmodel.ErrNotFound)
	})

	t.Run("unique login", func(t *testing.T) {
		dup, err := Create(es.NewID(), details(), now)
		require.NoError(t, err)
		_, err = repo.Save(ctx, nil, dup)
		require.ErrorIs(t, err, es.ErrInvariantViolation)
		require.ErrorContains(t, err, `login "jdoe" is already taken`)
		_, err = repo.Load(ctx, nil, dup.AggregateID())
		require.ErrorIs(t, err, es.ErrAggregateNotFound)
	})

	t.Run("taken email", func(t *testing.T) {
		d := details()
		d.Login, d.Email = "rroe", "rroe@example.com"
		other, err := Create(es.NewID(), d, now)
		require.NoError(t, err)
		_, err = repo.Save(ctx, nil, other)
		require.NoError(t, err)

		_, err = repo.Transact(ctx, other.AggregateID(), func(u *User) error {
			return u.ChangeEmail("jane@example.org")
		})
		require.ErrorIs(t, err, es.ErrInvariantViolation)
		row, err := proj.FindByEmail(ctx, "jane@example.org")
		require.NoError(t, err)
		require.Equal(t, id, row.ID)
	})

	t.Run("delete", func(t *testing.T) {
		_, err := repo.Transact(ctx, id, func(u *User) error { return u.Delete(id) })
		require.NoError(t, err)
		_, err = proj.FindByLogin(ctx, "jdoe")
		require.ErrorIs(t, err, readmodel.ErrNotFound)
		deleted, err := repo.Load(ctx, nil, id)
		require.NoError(t, err, "the stream outlives the row")
		require.ErrorIs(t, deleted.ChangeLastName("Poe"), es.ErrInvariantViolation)
		require.NoError(t, deleted.StampModified(now.Add(2*time.Hour)))
		require.False(t, deleted.HasRecordedEvents())
	})
}
