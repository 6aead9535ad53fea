// Package domain holds the aggregate the contract tests run against.
package domain

import (
	"github.com/getdevflow/core-sub003/core/es"
	"github.com/getdevflow/core-sub003/core/es/assert"
)

const AggregateType = "test_page"

type (
	Page struct {
		es.BaseAggregate

		Title         string
		Counter       uint16
		NumIncrements int
		NumResets     int
	}

	PageWasCreated struct {
		Title string `json:"title"`
	}
	PageTitleWasChanged struct {
		Title string `json:"title"`
	}
	PageWasIncremented struct {
		Inc   uint8 `json:"inc,omitempty"`
		Reset bool  `json:"reset,omitempty"`
	}
	PageWasDeleted struct{}
)

func (PageWasCreated) EventType() string      { return "PageWasCreated" }
func (PageTitleWasChanged) EventType() string { return "PageTitleWasChanged" }
func (PageWasIncremented) EventType() string  { return "PageWasIncremented" }
func (PageWasDeleted) EventType() string      { return "PageWasDeleted" }
func (PageWasDeleted) IsDeletion() bool       { return true }

type Events struct{}

func (Events) RegisterEvents(r *es.EventRegistry) {
	es.RegisterEvent[PageWasCreated](r)
	es.RegisterEvent[PageTitleWasChanged](r)
	es.RegisterEvent[PageWasIncremented](r)
	es.RegisterEvent[PageWasDeleted](r)
}

func New() *Page { return &Page{} }

func (p *Page) AggregateType() string { return AggregateType }

func (p *Page) Apply(ev es.Event) error {
	switch e := ev.(type) {
	case PageWasCreated:
		p.Title = e.Title
	case PageTitleWasChanged:
		p.Title = e.Title
	case PageWasIncremented:
		if e.Inc > 0 {
			p.Counter += uint16(e.Inc)
			p.NumIncrements++
		}
		if e.Reset {
			p.Counter = 0
			p.NumResets++
		}
	case PageWasDeleted:
	default:
		return es.UnknownEvent(p, ev)
	}
	return nil
}

// === Commands ===

func Create(id es.ID, title string) (*Page, error) {
	p := New()
	if err := es.Check(p, assert.NotBlank(title, "title")); err != nil {
		return nil, err
	}
	if err := es.Create(p, id, PageWasCreated{Title: title}); err != nil {
		return nil, err
	}
	return p, nil
}

func (p *Page) ChangeTitle(title string) error {
	return es.Change(p, p.Title, title,
		func(v string) es.Event { return PageTitleWasChanged{Title: v} },
		assert.NotBlank(title, "title"),
		assert.MaxLen(title, 80, "title"),
	)
}

func (p *Page) Inc() error { return p.IncBy(1) }

func (p *Page) IncBy(v uint8) error {
	if err := es.Check(p, assert.True(p.Counter+uint16(v) <= 24, "counter cannot exceed 24")); err != nil {
		return err
	}
	return es.RecordEvent(p, PageWasIncremented{Inc: v})
}

func (p *Page) Reset() error { return es.RecordEvent(p, PageWasIncremented{Reset: true}) }

func (p *Page) Delete(id es.ID) error { return es.Delete(p, id, PageWasDeleted{}) }

var _ es.Aggregate = (*Page)(nil)
