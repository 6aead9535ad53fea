// Package product is the product family: sellable content with a sku and a
// price in minor currency units.
package product

import (
	"errors"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/getdevflow/core-sub003/core/es"
	"github.com/getdevflow/core-sub003/core/es/assert"
	"github.com/getdevflow/core-sub003/domain/readmodel"
)

const AggregateType = "product"

const (
	StatusDraft     = "draft"
	StatusPublished = "published"
	StatusArchived  = "archived"
)

var ErrNegativePrice = errors.New("price must not be negative")

var (
	currencyPattern = regexp.MustCompile(`^[A-Z]{3}$`)
	skuPattern      = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._-]{0,63}$`)
)

type Product struct {
	es.BaseAggregate

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

type Details struct {
	Title       string
	Slug        string
	Body        string
	Author      es.ID
	Sku         string
	Price       int64
	Currency    string
	PurchaseURL string
	Status      string
}

func New() *Product { return &Product{Meta: readmodel.Meta{}} }

func NewRepository(store es.TransactionalStore, opts ...es.RepositoryOption) *es.Repository[*Product] {
	return es.NewRepository(store, New, opts...)
}

func (p *Product) AggregateType() string { return AggregateType }

func (p *Product) Apply(ev es.Event) error {
	switch e := ev.(type) {
	case ProductWasCreated:
		p.Title = e.Title
		p.Slug = e.Slug
		p.Body = e.Body
		p.Author = e.Author
		p.Sku = e.Sku
		p.Price = e.Price
		p.Currency = e.Currency
		p.PurchaseURL = e.PurchaseURL
		p.Status = e.Status
		p.Published = e.Published
		p.Created = e.Created
		p.Modified = e.Created
	case ProductTitleWasChanged:
		p.Title = e.Title
	case ProductSlugWasChanged:
		p.Slug = e.Slug
	case ProductBodyWasChanged:
		p.Body = e.Body
	case ProductAuthorWasChanged:
		p.Author = e.Author
	case ProductSkuWasChanged:
		p.Sku = e.Sku
	case ProductPriceWasChanged:
		p.Price = e.Price
	case ProductCurrencyWasChanged:
		p.Currency = e.Currency
	case ProductPurchaseURLWasChanged:
		p.PurchaseURL = e.PurchaseURL
	case ProductStatusWasChanged:
		p.Status = e.Status
	case ProductPublishedWasChanged:
		p.Published = e.Published
	case ProductMetaWasChanged:
		p.Meta = p.Meta.With(e.Key, e.Value)
	case ProductModifiedWasChanged:
		p.Modified = e.Modified
	case ProductWasDeleted:
	default:
		return es.UnknownEvent(p, ev)
	}
	return nil
}

// === Commands ===

func Create(id es.ID, d Details, now time.Time) (*Product, error) {
	p := New()
	if d.Status == "" {
		d.Status = StatusDraft
	}
	d.Currency = strings.ToUpper(d.Currency)
	if err := es.Check(p,
		assert.All(assert.NotBlank(d.Title, "title"), assert.MaxLen(d.Title, 191, "title")),
		assert.Slug(d.Slug, "slug"),
		assert.False(d.Author.IsZero(), "author is required"),
		skuCond(d.Sku),
		assert.NonNegative(d.Price, "price"),
		currencyCond(d.Currency),
		purchaseURLCond(d.PurchaseURL),
		statusCond(d.Status),
	); err != nil {
		return nil, err
	}
	err := es.Create(p, id, ProductWasCreated{
		Title:       d.Title,
		Slug:        d.Slug,
		Body:        d.Body,
		Author:      d.Author,
		Sku:         d.Sku,
		Price:       d.Price,
		Currency:    d.Currency,
		PurchaseURL: d.PurchaseURL,
		Status:      d.Status,
		Created:     now.UTC(),
	})
	if err != nil {
		return nil, err
	}
	return p, nil
}

func (p *Product) ChangeTitle(title string) error {
	return es.Change(p, p.Title, title,
		func(v string) es.Event { return ProductTitleWasChanged{Title: v} },
		assert.NotBlank(title, "title"),
		assert.MaxLen(title, 191, "title"),
	)
}

func (p *Product) ChangeSlug(slug string) error {
	return es.Change(p, p.Slug, slug,
		func(v string) es.Event { return ProductSlugWasChanged{Slug: v} },
		assert.Slug(slug, "slug"),
	)
}

func (p *Product) ChangeBody(body string) error {
	return es.Change(p, p.Body, body, func(v string) es.Event { return ProductBodyWasChanged{Body: v} })
}

func (p *Product) ChangeAuthor(author es.ID) error {
	return es.Change(p, p.Author, author,
		func(v es.ID) es.Event { return ProductAuthorWasChanged{Author: v} },
		assert.False(author.IsZero(), "author is required"),
	)
}

func (p *Product) ChangeSku(sku string) error {
	return es.Change(p, p.Sku, sku,
		func(v string) es.Event { return ProductSkuWasChanged{Sku: v} },
		skuCond(sku),
	)
}

// ChangePrice sets the price in minor units of the product's currency.
func (p *Product) ChangePrice(price int64) error {
	return es.Change(p, p.Price, price,
		func(v int64) es.Event { return ProductPriceWasChanged{Price: v} },
		assert.NonNegative(price, "price"),
	)
}

func (p *Product) ChangeCurrency(currency string) error {
	currency = strings.ToUpper(currency)
	return es.Change(p, p.Currency, currency,
		func(v string) es.Event { return ProductCurrencyWasChanged{Currency: v} },
		currencyCond(currency),
	)
}

func (p *Product) ChangePurchaseURL(u string) error {
	return es.Change(p, p.PurchaseURL, u,
		func(v string) es.Event { return ProductPurchaseURLWasChanged{PurchaseURL: v} },
		purchaseURLCond(u),
	)
}

func (p *Product) ChangeStatus(status string) error {
	return es.Change(p, p.Status, status,
		func(v string) es.Event { return ProductStatusWasChanged{Status: v} },
		statusCond(status),
	)
}

func (p *Product) ChangePublished(published time.Time) error {
	return es.Change(p, p.Published, published.UTC(),
		func(v time.Time) es.Event { return ProductPublishedWasChanged{Published: v} },
	)
}

// Publish sets the status to published and, on first publication, the
// published time.
func (p *Product) Publish(now time.Time) error {
	if err := p.ChangeStatus(StatusPublished); err != nil {
		return err
	}
	if p.Published.IsZero() {
		return p.ChangePublished(now)
	}
	return nil
}

func (p *Product) ChangeMeta(key, value string) error {
	return es.Change(p, p.Meta.Value(key), value,
		func(v string) es.Event { return ProductMetaWasChanged{Key: key, Value: v} },
		assert.NotBlank(key, "meta key"),
		assert.MaxLen(key, 191, "meta key"),
	)
}

// StampModified records the modification time when the product has recorded
// other events since it was loaded and is not deleted.
func (p *Product) StampModified(now time.Time) error {
	if !p.HasRecordedEvents() || p.State() == es.StateDeleted {
		return nil
	}
	return es.RecordEvent(p, ProductModifiedWasChanged{Modified: now.UTC()})
}

func (p *Product) Delete(id es.ID) error { return es.Delete(p, id, ProductWasDeleted{}) }

func skuCond(sku string) assert.Cond {
	return assert.True(skuPattern.MatchString(sku), "sku must be 1-64 letters, digits or ._-")
}

func currencyCond(currency string) assert.Cond {
	return assert.True(currencyPattern.MatchString(currency), "currency must be an ISO 4217 code")
}

func purchaseURLCond(u string) assert.Cond {
	return assert.True(u == "" || isHTTPURL(u), "purchase url must be an http(s) url")
}

func statusCond(status string) assert.Cond {
	return assert.OneOf(status, "status", StatusDraft, StatusPublished, StatusArchived)
}

func isHTTPURL(s string) bool {
	u, err := url.Parse(s)
	return err == nil && (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

var _ es.Aggregate = (*Product)(nil)
