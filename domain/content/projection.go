package content

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

const ProjectionName = "contents"

type Row struct {
	ID        es.ID
	Title     string
	Slug      string
	Body      string
	Author    es.ID
	TypeSlug  string
	Parent    es.ID
	Status    string
	Published time.Time
	Meta      readmodel.Meta
	Created   time.Time
	Modified  time.Time
}

var columns = []string{
	"content_id", "title", "slug", "body", "author", "type_slug", "parent", "status", "published", "meta",
	"created", "modified",
}

// Projection keeps the contents table and the slug index.
type Projection struct {
	table  *readmodel.Table
	bySlug *kv.Index
}

func NewProjection(db sqldb.DB, tenant es.Tenant, lookup kv.Store, opts kv.IndexOpts) *Projection {
	return &Projection{
		table:  readmodel.NewTable(db, tenant, "contents", "content_id", opts.Log),
		bySlug: kv.NewIndex(lookup, tenant, AggregateType, "slug", opts),
	}
}

func (p *Projection) Name() string { return ProjectionName }

func (p *Projection) Project(ctx context.Context, events ...es.DomainEvent) error {
	return es.Each(ctx, events, p.handle)
}

func (p *Projection) handle(ctx context.Context, ev es.DomainEvent) error {
	id := ev.AggregateID()
	switch e := ev.Payload().(type) {
	case ContentWasCreated:
		err := p.table.Insert(ctx, columns,
			string(id), e.Title, e.Slug, e.Body, string(e.Author), e.TypeSlug, string(e.Parent), e.Status,
			readmodel.FormatTime(e.Published), "{}",
			readmodel.FormatTime(e.Created), readmodel.FormatTime(e.Created),
		)
		if err != nil {
			return err
		}
		p.bySlug.Put(ctx, e.Slug, id)
		return nil
	case ContentTitleWasChanged:
		return p.table.Set(ctx, id, readmodel.Col("title", e.Title))
	case ContentSlugWasChanged:
		row, err := p.Find(ctx, id)
		if err != nil {
			return err
		}
		if err := p.table.Set(ctx, id, readmodel.Col("slug", e.Slug)); err != nil {
			return err
		}
		p.bySlug.Move(ctx, row.Slug, e.Slug, id)
		return nil
	case ContentBodyWasChanged:
		return p.table.Set(ctx, id, readmodel.Col("body", e.Body))
	case ContentAuthorWasChanged:
		return p.table.Set(ctx, id, readmodel.Col("author", string(e.Author)))
	case ContentTypeWasChanged:
		return p.table.Set(ctx, id, readmodel.Col("type_slug", e.TypeSlug))
	case ContentParentWasChanged:
		return p.table.Set(ctx, id, readmodel.Col("parent", string(e.Parent)))
	case ContentStatusWasChanged:
		return p.table.Set(ctx, id, readmodel.Col("status", e.Status))
	case ContentPublishedWasChanged:
		return p.table.Set(ctx, id, readmodel.Col("published", readmodel.FormatTime(e.Published)))
	case ContentMetaWasChanged:
		row, err := p.Find(ctx, id)
		if err != nil {
			return err
		}
		meta, err := row.Meta.With(e.Key, e.Value).Encode()
		if err != nil {
			return err
		}
		return p.table.Set(ctx, id, readmodel.Col("meta", meta))
	case ContentModifiedWasChanged:
		return p.table.Set(ctx, id, readmodel.Col("modified", readmodel.FormatTime(e.Modified)))
	case ContentWasDeleted:
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

// Guard rejects slugs held by another content.
func (p *Projection) Guard(ctx context.Context, events ...es.DomainEvent) error {
	claims := p.table.Claims(AggregateType)
	for _, ev := range events {
		var slug string
		switch e := ev.Payload().(type) {
		case ContentWasCreated:
			slug = e.Slug
		case ContentSlugWasChanged:
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
		contentID, author, parent string
		published, meta           string
		created, modified         string
	)
	err := p.table.Row(ctx, columns, id).Scan(
		&contentID, &r.Title, &r.Slug, &r.Body, &author, &r.TypeSlug, &parent, &r.Status,
		&published, &meta, &created, &modified,
	)
	switch {
	case errors.Is(err, sqldb.ErrNoRows):
		return Row{}, fmt.Errorf("content %s: %w", id, readmodel.ErrNotFound)
	case err != nil:
		return Row{}, fmt.Errorf("find content %s: %w", id, err)
	}
	r.ID = es.ID(contentID)
	r.Author = es.ID(author)
	r.Parent = es.ID(parent)
	if r.Meta, err = readmodel.DecodeMeta(meta); err != nil {
		return Row{}, err
	}
	for _, ts := range []struct {
		dst *time.Time
		src string
	}{{&r.Published, published}, {&r.Created, created}, {&r.Modified, modified}} {
		if *ts.dst, err = readmodel.ParseTime(ts.src); err != nil {
			return Row{}, err
		}
	}
	return r, nil
}

// FindBySlug returns the content with slug.
func (p *Projection) FindBySlug(ctx context.Context, slug string) (Row, error) {
	id, err := p.bySlug.Resolve(ctx, slug, func(ctx context.Context) (es.ID, error) {
		return p.table.IDWhere(ctx, "slug = ?", slug)
	})
	if errors.Is(err, kv.ErrNotFound) {
		return Row{}, fmt.Errorf("content %s: %w", slug, readmodel.ErrNotFound)
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
