package contenttype

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

const ProjectionName = "content_types"

type Row struct {
	ID          es.ID
	Title       string
	Slug        string
	Description string
	Created     time.Time
	Modified    time.Time
}

var columns = []string{"content_type_id", "title", "slug", "description", "created", "modified"}

// Projection keeps the content_types table and the slug index. Every change
// moves the modified column to the event's time.
type Projection struct {
	table  *readmodel.Table
	bySlug *kv.Index
}

func NewProjection(db sqldb.DB, tenant es.Tenant, lookup kv.Store, opts kv.IndexOpts) *Projection {
	return &Projection{
		table:  readmodel.NewTable(db, tenant, "content_types", "content_type_id", opts.Log),
		bySlug: kv.NewIndex(lookup, tenant, AggregateType, "slug", opts),
	}
}

func (p *Projection) Name() string { return ProjectionName }

func (p *Projection) Project(ctx context.Context, events ...es.DomainEvent) error {
	return es.Each(ctx, events, p.handle)
}

func (p *Projection) handle(ctx context.Context, ev es.DomainEvent) error {
	id := ev.AggregateID()
	modified := readmodel.Col("modified", readmodel.FormatTime(ev.RecordedAt()))
	switch e := ev.Payload().(type) {
	case ContentTypeWasCreated:
		err := p.table.Insert(ctx, columns,
			string(id), e.Title, e.Slug, e.Description,
			readmodel.FormatTime(e.Created), readmodel.FormatTime(e.Created),
		)
		if err != nil {
			return err
		}
		p.bySlug.Put(ctx, e.Slug, id)
		return nil
	case ContentTypeTitleWasChanged:
		return p.table.Set(ctx, id, readmodel.Col("title", e.Title), modified)
	case ContentTypeSlugWasChanged:
		row, err := p.Find(ctx, id)
		if err != nil {
			return err
		}
		if err := p.table.Set(ctx, id, readmodel.Col("slug", e.Slug), modified); err != nil {
			return err
		}
		p.bySlug.Move(ctx, row.Slug, e.Slug, id)
		return nil
	case ContentTypeDescriptionWasChanged:
		return p.table.Set(ctx, id, readmodel.Col("description", e.Description), modified)
	case ContentTypeWasDeleted:
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
		p.bySlug.Delete(ctx, row.Slug)
		return nil
	default:
		return es.Unhandled(p.Name(), ev)
	}
}

// Guard rejects slugs held by another content type.
func (p *Projection) Guard(ctx context.Context, events ...es.DomainEvent) error {
	claims := p.table.Claims(AggregateType)
	for _, ev := range events {
		var slug string
		switch e := ev.Payload().(type) {
		case ContentTypeWasCreated:
			slug = e.Slug
		case ContentTypeSlugWasChanged:
			slug = e.Slug
		default:
			continue
		}
		if err := claims.Take(ctx, ev.AggregateID(), "slug", slug, "slug = ?", slug); err != nil {
			return err
		}
	}
	return nil
}

func (p *Projection) Find(ctx context.Context, id es.ID) (Row, error) {
	var (
		r                         Row
		typeID, created, modified string
	)
	err := p.table.Row(ctx, columns, id).Scan(&typeID, &r.Title, &r.Slug, &r.Description, &created, &modified)
	switch {
	case errors.Is(err, sqldb.ErrNoRows):
		return Row{}, fmt.Errorf("content type %s: %w", id, readmodel.ErrNotFound)
	case err != nil:
		return Row{}, fmt.Errorf("find content type %s: %w", id, err)
	}
	r.ID = es.ID(typeID)
	if r.Created, err = readmodel.ParseTime(created); err != nil {
		return Row{}, err
	}
	if r.Modified, err = readmodel.ParseTime(modified); err != nil {
		return Row{}, err
	}
	return r, nil
}

// FindBySlug returns the content type with slug.
func (p *Projection) FindBySlug(ctx context.Context, slug string) (Row, error) {
	id, err := p.bySlug.Resolve(ctx, slug, func(ctx context.Context) (es.ID, error) {
		return p.table.IDWhere(ctx, "slug = ?", slug)
	})
	if errors.Is(err, kv.ErrNotFound) {
		return Row{}, fmt.Errorf("content type %s: %w", slug, readmodel.ErrNotFound)
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
