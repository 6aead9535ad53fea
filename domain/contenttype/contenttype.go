// Package contenttype is the content type family. Content references its
// type by slug.
package contenttype

import (
	"time"

	"github.com/getdevflow/core-sub003/core/es"
	"github.com/getdevflow/core-sub003/core/es/assert"
)

const AggregateType = "content_type"

type (
	ContentType struct {
		es.BaseAggregate

		Title       string
		Slug        string
		Description string
		Created     time.Time
	}

	ContentTypeWasCreated struct {
		Title       string    `json:"title"`
		Slug        string    `json:"slug"`
		Description string    `json:"description"`
		Created     time.Time `json:"created"`
	}
	ContentTypeTitleWasChanged struct {
		Title string `json:"title"`
	}
	ContentTypeSlugWasChanged struct {
		Slug string `json:"slug"`
	}
	ContentTypeDescriptionWasChanged struct {
		Description string `json:"description"`
	}
	ContentTypeWasDeleted struct{}
)

func (ContentTypeWasCreated) EventType() string            { return "ContentTypeWasCreated" }
func (ContentTypeTitleWasChanged) EventType() string       { return "ContentTypeTitleWasChanged" }
func (ContentTypeSlugWasChanged) EventType() string        { return "ContentTypeSlugWasChanged" }
func (ContentTypeDescriptionWasChanged) EventType() string { return "ContentTypeDescriptionWasChanged" }
func (ContentTypeWasDeleted) EventType() string            { return "ContentTypeWasDeleted" }
func (ContentTypeWasDeleted) IsDeletion() bool             { return true }

type Events struct{}

func (Events) RegisterEvents(r *es.EventRegistry) {
	es.RegisterEvent[ContentTypeWasCreated](r)
	es.RegisterEvent[ContentTypeTitleWasChanged](r)
	es.RegisterEvent[ContentTypeSlugWasChanged](r)
	es.RegisterEvent[ContentTypeDescriptionWasChanged](r)
	es.RegisterEvent[ContentTypeWasDeleted](r)
}

func New() *ContentType { return &ContentType{} }

func NewRepository(store es.TransactionalStore, opts ...es.RepositoryOption) *es.Repository[*ContentType] {
	return es.NewRepository(store, New, opts...)
}

func (c *ContentType) AggregateType() string { return AggregateType }

func (c *ContentType) Apply(ev es.Event) error {
	switch e := ev.(type) {
	case ContentTypeWasCreated:
		c.Title = e.Title
		c.Slug = e.Slug
		c.Description = e.Description
		c.Created = e.Created
	case ContentTypeTitleWasChanged:
		c.Title = e.Title
	case ContentTypeSlugWasChanged:
		c.Slug = e.Slug
	case ContentTypeDescriptionWasChanged:
		c.Description = e.Description
	case ContentTypeWasDeleted:
	default:
		return es.UnknownEvent(c, ev)
	}
	return nil
}

// === Commands ===

func Create(id es.ID, title, slug, description string, now time.Time) (*ContentType, error) {
	c := New()
	if err := es.Check(c, titleCond(title), assert.Slug(slug, "slug")); err != nil {
		return nil, err
	}
	err := es.Create(c, id, ContentTypeWasCreated{
		Title:       title,
		Slug:        slug,
		Description: description,
		Created:     now.UTC(),
	})
	if err != nil {
		return nil, err
	}
	return c, nil
}

func (c *ContentType) ChangeTitle(title string) error {
	return es.Change(c, c.Title, title,
		func(v string) es.Event { return ContentTypeTitleWasChanged{Title: v} },
		titleCond(title),
	)
}

func (c *ContentType) ChangeSlug(slug string) error {
	return es.Change(c, c.Slug, slug,
		func(v string) es.Event { return ContentTypeSlugWasChanged{Slug: v} },
		assert.Slug(slug, "slug"),
	)
}

func (c *ContentType) ChangeDescription(description string) error {
	return es.Change(c, c.Description, description,
		func(v string) es.Event { return ContentTypeDescriptionWasChanged{Description: v} },
		assert.MaxLen(description, 1000, "description"),
	)
}

func (c *ContentType) Delete(id es.ID) error { return es.Delete(c, id, ContentTypeWasDeleted{}) }

func titleCond(title string) assert.Cond {
	return assert.All(assert.NotBlank(title, "title"), assert.MaxLen(title, 191, "title"))
}

var _ es.Aggregate = (*ContentType)(nil)
