package product

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

const ProjectionName = "products"

type Row struct {
	ID          es.ID
	Title       string
	Slug        string
	Body        string
	Author      es.ID
	Sku         string
	Price       int64
	Currency    string
	PurchaseURL string
	Status      string
	Published   time.Time
	Meta        readmodel.Meta
	Created     time.Time
	Modified    time.Time
}

var columns = []string{
	"product_id", "title", "slug", "body", "author", "sku", "price", "currency", "purchase_url", "status",
	"published", "meta", "created", "modified",
}

// Projection keeps the products table and the sku and slug indexes.
type Projection struct {
	table  *readmodel.Table
	bySku  *kv.Index
	bySlug *kv.Index
}

func NewProjection(db sqldb.DB, tenant es.Tenant, lookup kv.Store, opts kv.IndexOpts) *Projection {
	return &Projection{
		table:  readmodel.NewTable(db, tenant, "products", "product_id", opts.Log),
		bySku:  kv.NewIndex(lookup, tenant, AggregateType, "sku", opts),
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
	case ProductWasCreated:
		err := p.table.Insert(ctx, columns,
			string(id), e.Title, e.Slug, e.Body, string(e.Author), e.Sku, e.Price, e.Currency, e.PurchaseURL,
			e.Status, readmodel.FormatTime(e.Published), "{}",
			readmodel.FormatTime(e.Created), readmodel.FormatTime(e.Created),
		)
		if err != nil {
			return err
		}
		p.bySku.Put(ctx, e.Sku, id)
		p.bySlug.Put(ctx, e.Slug, id)
		return nil
	case ProductTitleWasChanged:
		return p.table.Set(ctx, id, readmodel.Col("title", e.Title))
	case ProductSlugWasChanged:
		row, err := p.Find(ctx, id)
		if err != nil {
			return err
		}
		if err := p.table.Set(ctx, id, readmodel.Col("slug", e.Slug)); err != nil {
			return err
		}
		p.bySlug.Move(ctx, row.Slug, e.Slug, id)
		return nil
	case ProductBodyWasChanged:
		return p.table.Set(ctx, id, readmodel.Col("body", e.Body))
	case ProductAuthorWasChanged:
		return p.table.Set(ctx, id, readmodel.Col("author", string(e.Author)))
	case ProductSkuWasChanged:
		row, err := p.Find(ctx, id)
		if err != nil {
			return err
		}
		if err := p.table.Set(ctx, id, readmodel.Col("sku", e.Sku)); err != nil {
			return err
		}
		p.bySku.Move(ctx, row.Sku, e.Sku, id)
		return nil
	case ProductPriceWasChanged:
		return p.table.Set(ctx, id, readmodel.Col("price", e.Price))
	case ProductCurrencyWasChanged:
		return p.table.Set(ctx, id, readmodel.Col("currency", e.Currency))
	case ProductPurchaseURLWasChanged:
		return p.table.Set(ctx, id, readmodel.Col("purchase_url", e.PurchaseURL))
	case ProductStatusWasChanged:
		return p.table.Set(ctx, id, readmodel.Col("status", e.Status))
	case ProductPublishedWasChanged:
		return p.table.Set(ctx, id, readmodel.Col("published", readmodel.FormatTime(e.Published)))
	case ProductMetaWasChanged:
		row, err := p.Find(ctx, id)
		if err != nil {
			return err
		}
		meta, err := row.Meta.With(e.Key, e.Value).Encode()
		if err != nil {
			return err
		}
		return p.table.Set(ctx, id, readmodel.Col("meta", meta))
	case ProductModifiedWasChanged:
		return p.table.Set(ctx, id, readmodel.Col("modified", readmodel.FormatTime(e.Modified)))
	case ProductWasDeleted:
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
		p.bySku.Delete(ctx, row.Sku)
		p.bySlug.Delete(ctx, row.Slug)
		return nil
	default:
		return es.Unhandled(p.Name(), ev)
	}
}

// Guard rejects skus and slugs held by another product.
func (p *Projection) Guard(ctx context.Context, events ...es.DomainEvent) error {
	claims := p.table.Claims(AggregateType)
	for _, ev := range events {
		id := ev.AggregateID()
		var sku, slug string
		switch e := ev.Payload().(type) {
		case ProductWasCreated:
			sku, slug = e.Sku, e.Slug
		case ProductSkuWasChanged:
			sku = e.Sku
		case ProductSlugWasChanged:
			slug = e.Slug
		default:
			continue
		}
		if sku != "" {
			if err := claims.Take(ctx, id, "sku", sku, "sku = ?", sku); err != nil {
				return err
			}
		}
		if slug != "" {
			if err := claims.Take(ctx, id, "slug", slug, "slug = ?", slug); err != nil {
				return err
			}
		}
	}
	return nil
}

func (p *Projection) Find(ctx context.Context, id es.ID) (Row, error) {
	var (
		r                 Row
		productID, author string
		published, meta   string
		created, modified string
	)
	err := p.table.Row(ctx, columns, id).Scan(
		&productID, &r.Title, &r.Slug, &r.Body, &author, &r.Sku, &r.Price, &r.Currency, &r.PurchaseURL,
		&r.Status, &published, &meta, &created, &modified,
	)
	switch {
	case errors.Is(err, sqldb.ErrNoRows):
		return Row{}, fmt.Errorf("product %s: %w", id, readmodel.ErrNotFound)
	case err != nil:
		return Row{}, fmt.Errorf("find product %s: %w", id, err)
	}
	r.ID = es.ID(productID)
	r.Author = es.ID(author)
	if r.Meta, err = readmodel.DecodeMeta(meta); err != nil {
		return Row{}, err
	}
	if r.Published, err = readmodel.ParseTime(published); err != nil {
		return Row{}, err
	}
	if r.Created, err = readmodel.ParseTime(created); err != nil {
		return Row{}, err
	}
	if r.Modified, err = readmodel.ParseTime(modified); err != nil {
		return Row{}, err
	}
	return r, nil
}

// FindBySku returns the product with sku.
func (p *Projection) FindBySku(ctx context.Context, sku string) (Row, error) {
	return p.findBy(ctx, p.bySku, "sku", sku)
}

// FindBySlug returns the product with slug.
func (p *Projection) FindBySlug(ctx context.Context, slug string) (Row, error) {
	return p.findBy(ctx, p.bySlug, "slug", slug)
}

func (p *Projection) findBy(ctx context.Context, idx *kv.Index, col, value string) (Row, error) {
	id, err := idx.Resolve(ctx, value, func(ctx context.Context) (es.ID, error) {
		return p.table.IDWhere(ctx, col+" = ?", value)
	})
	if errors.Is(err, kv.ErrNotFound) {
		return Row{}, fmt.Errorf("product %s=%s: %w", col, value, readmodel.ErrNotFound)
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
