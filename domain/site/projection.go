package site

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

const ProjectionName = "sites"

// Row is the read model of a site.
type Row struct {
	ID         es.ID
	Name       string
	Slug       string
	Domain     string
	Path       string
	Owner      es.ID
	Status     string
	Registered time.Time
	Modified   time.Time
}

var columns = []string{"site_id", "name", "slug", "domain", "path", "owner", "status", "registered", "modified"}

// Projection keeps the sites table and the domain+path index.
type Projection struct {
	table        *readmodel.Table
	byDomainPath *kv.Index
}

func NewProjection(db sqldb.DB, tenant es.Tenant, lookup kv.Store, opts kv.IndexOpts) *Projection {
	table := readmodel.NewTable(db, tenant, "sites", "site_id", opts.Log)
	return &Projection{
		table:        table,
		byDomainPath: kv.NewIndex(lookup, tenant, AggregateType, "domain_path", opts),
	}
}

func (p *Projection) Name() string { return ProjectionName }

func (p *Projection) Project(ctx context.Context, events ...es.DomainEvent) error {
	return es.Each(ctx, events, p.handle)
}

func (p *Projection) handle(ctx context.Context, ev es.DomainEvent) error {
	id := ev.AggregateID()
	switch e := ev.Payload().(type) {
	case SiteWasCreated:
		err := p.table.Insert(ctx, columns,
			string(id), e.Name, e.Slug, e.Domain, e.Path, string(e.Owner), e.Status,
			readmodel.FormatTime(e.Registered), readmodel.FormatTime(e.Registered),
		)
		if err != nil {
			return err
		}
		p.byDomainPath.Put(ctx, e.Domain+e.Path, id)
		return nil
	case SiteNameWasChanged:
		return p.table.Set(ctx, id, readmodel.Col("name", e.Name))
	case SiteSlugWasChanged:
		return p.table.Set(ctx, id, readmodel.Col("slug", e.Slug))
	case SiteDomainWasChanged:
		return p.moveAddress(ctx, id, readmodel.Col("domain", e.Domain), func(r *Row) { r.Domain = e.Domain })
	case SitePathWasChanged:
		return p.moveAddress(ctx, id, readmodel.Col("path", e.Path), func(r *Row) { r.Path = e.Path })
	case SiteOwnerWasChanged:
		return p.table.Set(ctx, id, readmodel.Col("owner", string(e.Owner)))
	case SiteStatusWasChanged:
		return p.table.Set(ctx, id, readmodel.Col("status", e.Status))
	case SiteModifiedWasChanged:
		return p.table.Set(ctx, id, readmodel.Col("modified", readmodel.FormatTime(e.Modified)))
	case SiteWasDeleted:
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
		p.byDomainPath.Delete(ctx, row.Domain+row.Path)
		return nil
	default:
		return es.Unhandled(p.Name(), ev)
	}
}

func (p *Projection) moveAddress(ctx context.Context, id es.ID, set readmodel.Assign, apply func(*Row)) error {
	row, err := p.Find(ctx, id)
	if err != nil {
		return err
	}
	old := row.Domain + row.Path
	if err := p.table.Set(ctx, id, set); err != nil {
		return err
	}
	apply(&row)
	p.byDomainPath.Move(ctx, old, row.Domain+row.Path, id)
	return nil
}

// Guard rejects a domain and path pair served by another site.
func (p *Projection) Guard(ctx context.Context, events ...es.DomainEvent) error {
	claims := p.table.Claims(AggregateType)
	addrs := make(map[es.ID]*Row)
	current := func(id es.ID) (*Row, error) {
		if r, ok := addrs[id]; ok {
			return r, nil
		}
		row, err := p.Find(ctx, id)
		if err != nil {
			return nil, err
		}
		addrs[id] = &row
		return &row, nil
	}
	for _, ev := range events {
		id := ev.AggregateID()
		var (
			r   *Row
			err error
		)
		switch e := ev.Payload().(type) {
		case SiteWasCreated:
			r = &Row{Domain: e.Domain, Path: e.Path}
			addrs[id] = r
		case SiteDomainWasChanged:
			if r, err = current(id); err == nil {
				r.Domain = e.Domain
			}
		case SitePathWasChanged:
			if r, err = current(id); err == nil {
				r.Path = e.Path
			}
		default:
			continue
		}
		if err != nil {
			return err
		}
		addr := r.Domain + r.Path
		if err := claims.Take(ctx, id, "address", addr, "domain = ? AND path = ?", r.Domain, r.Path); err != nil {
			return err
		}
	}
	return nil
}

// Find returns the site row with id.
func (p *Projection) Find(ctx context.Context, id es.ID) (Row, error) {
	var (
		r                    Row
		siteID, owner        string
		registered, modified string
	)
	err := p.table.Row(ctx, columns, id).Scan(
		&siteID, &r.Name, &r.Slug, &r.Domain, &r.Path, &owner, &r.Status, &registered, &modified,
	)
	switch {
	case errors.Is(err, sqldb.ErrNoRows):
		return Row{}, fmt.Errorf("site %s: %w", id, readmodel.ErrNotFound)
	case err != nil:
		return Row{}, fmt.Errorf("find site %s: %w", id, err)
	}
	r.ID = es.ID(siteID)
	r.Owner = es.ID(owner)
	if r.Registered, err = readmodel.ParseTime(registered); err != nil {
		return Row{}, err
	}
	if r.Modified, err = readmodel.ParseTime(modified); err != nil {
		return Row{}, err
	}
	return r, nil
}

// FindByAddress returns the site served at domain and path.
func (p *Projection) FindByAddress(ctx context.Context, domain, path string) (Row, error) {
	id, err := p.byDomainPath.Resolve(ctx, domain+path, func(ctx context.Context) (es.ID, error) {
		return p.table.IDWhere(ctx, "domain = ? AND path = ?", domain, path)
	})
	if errors.Is(err, kv.ErrNotFound) {
		return Row{}, fmt.Errorf("site %s%s: %w", domain, path, readmodel.ErrNotFound)
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
