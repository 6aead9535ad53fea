package product

import (
	"time"

	"github.com/getdevflow/core-sub003/core/es"
)

type (
	ProductWasCreated struct {
		Title       string    `json:"title"`
		Slug        string    `json:"slug"`
		Body        string    `json:"body"`
		Author      es.ID     `json:"author"`
		Sku         string    `json:"sku"`
		Price       int64     `json:"price"`
		Currency    string    `json:"currency"`
		PurchaseURL string    `json:"purchase_url"`
		Status      string    `json:"status"`
		Published   time.Time `json:"published"`
		Created     time.Time `json:"created"`
	}
	ProductTitleWasChanged struct {
		Title string `json:"title"`
	}
	ProductSlugWasChanged struct {
		Slug string `json:"slug"`
	}
	ProductBodyWasChanged struct {
		Body string `json:"body"`
	}
	ProductAuthorWasChanged struct {
		Author es.ID `json:"author"`
	}
	ProductSkuWasChanged struct {
		Sku string `json:"sku"`
	}
	ProductPriceWasChanged struct {
		Price int64 `json:"price"`
	}
	ProductCurrencyWasChanged struct {
		Currency string `json:"currency"`
	}
	ProductPurchaseURLWasChanged struct {
		PurchaseURL string `json:"purchase_url"`
	}
	ProductStatusWasChanged struct {
		Status string `json:"status"`
	}
	ProductPublishedWasChanged struct {
		Published time.Time `json:"published"`
	}
	ProductMetaWasChanged struct {
		Key   string `json:"key"`
		Value string `json:"value"`
	}
	ProductModifiedWasChanged struct {
		Modified time.Time `json:"modified"`
	}
	ProductWasDeleted struct{}
)

func (ProductWasCreated) EventType() string            { return "ProductWasCreated" }
func (ProductTitleWasChanged) EventType() string       { return "ProductTitleWasChanged" }
func (ProductSlugWasChanged) EventType() string        { return "ProductSlugWasChanged" }
func (ProductBodyWasChanged) EventType() string        { return "ProductBodyWasChanged" }
func (ProductAuthorWasChanged) EventType() string      { return "ProductAuthorWasChanged" }
func (ProductSkuWasChanged) EventType() string         { return "ProductSkuWasChanged" }
func (ProductPriceWasChanged) EventType() string       { return "ProductPriceWasChanged" }
func (ProductCurrencyWasChanged) EventType() string    { return "ProductCurrencyWasChanged" }
func (ProductPurchaseURLWasChanged) EventType() string { return "ProductPurchaseUrlWasChanged" }
func (ProductStatusWasChanged) EventType() string      { return "ProductStatusWasChanged" }
func (ProductPublishedWasChanged) EventType() string   { return "ProductPublishedWasChanged" }
func (ProductMetaWasChanged) EventType() string        { return "ProductMetaWasChanged" }
func (ProductModifiedWasChanged) EventType() string    { return "ProductModifiedWasChanged" }
func (ProductWasDeleted) EventType() string            { return "ProductWasDeleted" }
func (ProductWasDeleted) IsDeletion() bool             { return true }

// Validate rejects a negative price even when the event is built outside
// the aggregate.
func (e ProductPriceWasChanged) Validate() error {
	if e.Price < 0 {
		return ErrNegativePrice
	}
	return nil
}

type Events struct{}

func (Events) RegisterEvents(r *es.EventRegistry) {
	es.RegisterEvent[ProductWasCreated](r)
	es.RegisterEvent[ProductTitleWasChanged](r)
	es.RegisterEvent[ProductSlugWasChanged](r)
	es.RegisterEvent[ProductBodyWasChanged](r)
	es.RegisterEvent[ProductAuthorWasChanged](r)
	es.RegisterEvent[ProductSkuWasChanged](r)
	es.RegisterEvent[ProductPriceWasChanged](r)
	es.RegisterEvent[ProductCurrencyWasChanged](r)
	es.RegisterEvent[ProductPurchaseURLWasChanged](r)
	es.RegisterEvent[ProductStatusWasChanged](r)
	es.RegisterEvent[ProductPublishedWasChanged](r)
	es.RegisterEvent[ProductMetaWasChanged](r)
	es.RegisterEvent[ProductModifiedWasChanged](r)
	es.RegisterEvent[ProductWasDeleted](r)
}
