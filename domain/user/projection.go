package user

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/getdevflow/core-sub003/core/es"
	"github.com/getdevflow/core-sub003/domain/readmodel"
	"github.com/getdevflow/core-sub003/ports/kv"
	"github.com/getdevflow/core-sub003/ports/sqldb"
)

const ProjectionName = "users"

// Row is the read model of a user.
type Row struct {
	ID         es.ID
	Login      string
	Email      string
	FirstName  string
	LastName   string
	Pass       string
	Timezone   string
	Locale     string
	Meta       readmodel.Meta
	Registered time.Time
	Modified   time.Time
}

var columns = []string{
	"user_id", "login", "email", "fname", "lname", "pass", "timezone", "locale", "meta", "registered", "modified",
}

// Projection keeps the users table and the login and email indexes.
type Projection struct {
	table   *readmodel.Table
	byLogin *kv.Index
	byEmail *kv.Index
}

func NewProjection(db sqldb.DB, tenant es.Tenant, lookup kv.Store, opts kv.IndexOpts) *Projection {
	return &Projection{
		table:   readmodel.NewTable(db, tenant, "users", "user_id", opts.Log),
		byLogin: kv.NewIndex(lookup, tenant, AggregateType, "login", opts),
		byEmail: kv.NewIndex(lookup, tenant, AggregateType, "email", opts),
	}
}

func (p *Projection) Name() string { return ProjectionName }

func (p *Projection) Project(ctx context.Context, events ...es.DomainEvent) error {
	return es.Each(ctx, events, p.handle)
}

func (p *Projection) handle(ctx context.Context, ev es.DomainEvent) error {
	id := ev.AggregateID()
	switch e := ev.Payload().(type) {
	case UserWasCreated:
		err := p.table.Insert(ctx, columns,
			string(id), e.Login, e.Email, e.FirstName, e.LastName, e.Pass, e.Timezone, e.Locale, "{}",
			readmodel.FormatTime(e.Registered), readmodel.FormatTime(e.Registered),
		)
		if err != nil {
			return err
		}
		p.byLogin.Put(ctx, e.Login, id)
		p.byEmail.Put(ctx, e.Email, id)
		return nil
	case UserEmailWasChanged:
		row, err := p.Find(ctx, id)
		if err != nil {
			return err
		}
		if err := p.table.Set(ctx, id, readmodel.Col("email", e.Email)); err != nil {
			return err
		}
		p.byEmail.Move(ctx, row.Email, e.Email, id)
		return nil
	case UserFirstNameWasChanged:
		return p.table.Set(ctx, id, readmodel.Col("fname", e.FirstName))
	case UserLastNameWasChanged:
		return p.table.Set(ctx, id, readmodel.Col("lname", e.LastName))
	case UserPassWasChanged:
		return p.table.Set(ctx, id, readmodel.Col("pass", e.Pass))
	case UserTimezoneWasChanged:
		return p.table.Set(ctx, id, readmodel.Col("timezone", e.Timezone))
	case UserLocaleWasChanged:
		return p.table.Set(ctx, id, readmodel.Col("locale", e.Locale))
	case UserMetaWasChanged:
		row, err := p.Find(ctx, id)
		if err != nil {
			return err
		}
		meta, err := row.Meta.With(e.Key, e.Value).Encode()
		if err != nil {
			return err
		}
		return p.table.Set(ctx, id, readmodel.Col("meta", meta))
	case UserModifiedWasChanged:
		return p.table.Set(ctx, id, readmodel.Col("modified", readmodel.FormatTime(e.Modified)))
	case UserWasDeleted:
		row, err := p.Find(ctx, id)
		switch {
		case errors.Is(err, readmodel.ErrNotFound):
			return nil
		case err != nil:
			return err
		}
		if err := p.table.Delete(ctx, id); err != nil {
			return err
		}
		p.byLogin.Delete(ctx, row.Login)
		p.byEmail.Delete(ctx, row.Email)
		return nil
	default:
		return es.Unhandled(p.Name(), ev)
	}
}

// Guard rejects logins and emails held by another user.
func (p *Projection) Guard(ctx context.Context, events ...es.DomainEvent) error {
	claims := p.table.Claims(AggregateType)
	for _, ev := range events {
		id := ev.AggregateID()
		switch e := ev.Payload().(type) {
		case UserWasCreated:
			if err := claims.Take(ctx, id, "login", e.Login, "login = ?", e.Login); err != nil {
				return err
			}
			if err := claims.Take(ctx, id, "email", e.Email, "email = ?", e.Email); err != nil {
				return err
			}
		case UserEmailWasChanged:
			if err := claims.Take(ctx, id, "email", e.Email, "email = ?", e.Email); err != nil {
				return err
			}
		}
	}
	return nil
}

// Find returns the user row with id.
func (p *Projection) Find(ctx context.Context, id es.ID) (Row, error) {
	var (
		r                    Row
		userID, meta         string
		registered, modified string
	)
	err := p.table.Row(ctx, columns, id).Scan(
		&userID, &r.Login, &r.Email, &r.FirstName, &r.LastName, &r.Pass, &r.Timezone, &r.Locale,
		&meta, &registered, &modified,
	)
	switch {
	case errors.Is(err, sqldb.ErrNoRows):
		return Row{}, fmt.Errorf("user %s: %w", id, readmodel.ErrNotFound)
	case err != nil:
		return Row{}, fmt.Errorf("find user %s: %w", id, err)
	}
	r.ID = es.ID(userID)
	if r.Meta, err = readmodel.DecodeMeta(meta); err != nil {
		return Row{}, err
	}
	if r.Registered, err = readmodel.ParseTime(registered); err != nil {
		return Row{}, err
	}
	if r.Modified, err = readmodel.ParseTime(modified); err != nil {
		return Row{}, err
	}
	return r, nil
}

// FindByLogin returns the user with login.
func (p *Projection) FindByLogin(ctx context.Context, login string) (Row, error) {
	return p.findBy(ctx, p.byLogin, "login", login)
}

// FindByEmail returns the user with email.
func (p *Projection) FindByEmail(ctx context.Context, email string) (Row, error) {
	return p.findBy(ctx, p.byEmail, "email", normalizeEmail(email))
}

func (p *Projection) findBy(ctx context.Context, idx *kv.Index, col, value string) (Row, error) {
	id, err := idx.Resolve(ctx, value, func(ctx context.Context) (es.ID, error) {
		return p.table.IDWhere(ctx, col+" = ?", value)
	})
	if errors.Is(err, kv.ErrNotFound) {
		return Row{}, fmt.Errorf("user %s=%s: %w", col, value, readmodel.ErrNotFound)
	}
	if err != nil {
		return Row{}, err
	}
	return p.Find(ctx, id)
}

var (
	_ es.Projection = (*Projection)(nil)
	_ es.Guard      = (*Projection)(nil)
)
