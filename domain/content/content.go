// Package content is the content family: posts, pages and any other content
// type, with a slug lookup.
package content

import (
	"time"

	"github.com/getdevflow/core-sub003/core/es"
	"github.com/getdevflow/core-sub003/core/es/assert"
	"github.com/getdevflow/core-sub003/domain/readmodel"
)

const AggregateType = "content"

const (
	StatusDraft     = "draft"
	StatusPending   = "pending"
	StatusPublished = "published"
	StatusArchived  = "archived"
)

type Content struct {
	es.BaseAggregate

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

type Details struct {
	Title     string
	Slug      string
	Body      string
	Author    es.ID
	TypeSlug  string
	Parent    es.ID
	Status    string
	Published time.Time
}

func New() *Content { return &Content{Meta: readmodel.Meta{}} }

func NewRepository(store es.TransactionalStore, opts ...es.RepositoryOption) *es.Repository[*Content] {
	return es.NewRepository(store, New, opts...)
}

func (c *Content) AggregateType() string { return AggregateType }

func (c *Content) Apply(ev es.Event) error {
	switch e := ev.(type) {
	case ContentWasCreated:
		c.Title = e.Title
		c.Slug = e.Slug
		c.Body = e.Body
		c.Author = e.Author
		c.TypeSlug = e.TypeSlug
		c.Parent = e.Parent
		c.Status = e.Status
		c.Published = e.Published
		c.Created = e.Created
		c.Modified = e.Created
	case ContentTitleWasChanged:
		c.Title = e.Title
	case ContentSlugWasChanged:
		c.Slug = e.Slug
	case ContentBodyWasChanged:
		c.Body = e.Body
	case ContentAuthorWasChanged:
		c.Author = e.Author
	case ContentTypeWasChanged:
		c.TypeSlug = e.TypeSlug
	case ContentParentWasChanged:
		c.Parent = e.Parent
	case ContentStatusWasChanged:
		c.Status = e.Status
	case ContentPublishedWasChanged:
		c.Published = e.Published
	case ContentMetaWasChanged:
		c.Meta = c.Meta.With(e.Key, e.Value)
	case ContentModifiedWasChanged:
		c.Modified = e.Modified
	case ContentWasDeleted:
	default:
		return es.UnknownEvent(c, ev)
	}
	return nil
}

// === Commands ===

func Create(id es.ID, d Details, now time.Time) (*Content, error) {
	c := New()
	if d.Status == "" {
		d.Status = StatusDraft
	}
	if err := es.Check(c,
		titleCond(d.Title),
		assert.Slug(d.Slug, "slug"),
		authorCond(d.Author),
		assert.Slug(d.TypeSlug, "type slug"),
		parentCond(id, d.Parent),
		statusCond(d.Status),
	); err != nil {
		return nil, err
	}
	err := es.Create(c, id, ContentWasCreated{
		Title:     d.Title,
		Slug:      d.Slug,
		Body:      d.Body,
		Author:    d.Author,
		TypeSlug:  d.TypeSlug,
		Parent:    d.Parent,
		Status:    d.Status,
		Published: d.Published.UTC(),
		Created:   now.UTC(),
	})
	if err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Content) ChangeTitle(title string) error {
	return es.Change(c, c.Title, title,
		func(v string) es.Event { return ContentTitleWasChanged{Title: v} },
		titleCond(title),
	)
}

func (c *Content) ChangeSlug(slug string) error {
	return es.Change(c, c.Slug, slug,
		func(v string) es.Event { return ContentSlugWasChanged{Slug: v} },
		assert.Slug(slug, "slug"),
	)
}

func (c *Content) ChangeBody(body string) error {
	return es.Change(c, c.Body, body, func(v string) es.Event { return ContentBodyWasChanged{Body: v} })
}

func (c *Content) ChangeAuthor(author es.ID) error {
	return es.Change(c, c.Author, author,
		func(v es.ID) es.Event { return ContentAuthorWasChanged{Author: v} },
		authorCond(author),
	)
}

func (c *Content) ChangeType(typeSlug string) error {
	return es.Change(c, c.TypeSlug, typeSlug,
		func(v string) es.Event { return ContentTypeWasChanged{TypeSlug: v} },
		assert.Slug(typeSlug, "type slug"),
	)
}

// ChangeParent moves the content under parent; an empty id detaches it.
func (c *Content) ChangeParent(parent es.ID) error {
	return es.Change(c, c.Parent, parent,
		func(v es.ID) es.Event { return ContentParentWasChanged{Parent: v} },
		parentCond(c.AggregateID(), parent),
	)
}

func (c *Content) ChangeStatus(status string) error {
	return es.Change(c, c.Status, status,
		func(v string) es.Event { return ContentStatusWasChanged{Status: v} },
		statusCond(status),
	)
}

func (c *Content) ChangePublished(published time.Time) error {
	return es.Change(c, c.Published, published.UTC(),
		func(v time.Time) es.Event { return ContentPublishedWasChanged{Published: v} },
	)
}

// Publish sets the status to published and, on first publication, the
// published time.
func (c *Content) Publish(now time.Time) error {
	if err := c.ChangeStatus(StatusPublished); err != nil {
		return err
	}
	if c.Published.IsZero() {
		return c.ChangePublished(now)
	}
	return nil
}

func (c *Content) ChangeMeta(key, value string) error {
	return es.Change(c, c.Meta.Value(key), value,
		func(v string) es.Event { return ContentMetaWasChanged{Key: key, Value: v} },
		assert.NotBlank(key, "meta key"),
		assert.MaxLen(key, 191, "meta key"),
	)
}

// StampModified records the modification time when the content has recorded
// other events since it was loaded and is not deleted.
func (c *Content) StampModified(now time.Time) error {
	if !c.HasRecordedEvents() || c.State() == es.StateDeleted {
		return nil
	}
	return es.RecordEvent(c, ContentModifiedWasChanged{Modified: now.UTC()})
}

func (c *Content) Delete(id es.ID) error { return es.Delete(c, id, ContentWasDeleted{}) }

func titleCond(title string) assert.Cond {
	return assert.All(assert.NotBlank(title, "title"), assert.MaxLen(title, 191, "title"))
}

func authorCond(author es.ID) assert.Cond {
	return assert.False(author.IsZero(), "author is required")
}

func parentCond(id, parent es.ID) assert.Cond {
	return assert.True(parent.IsZero() || parent != id, "content cannot be its own parent")
}

func statusCond(status string) assert.Cond {
	return assert.OneOf(status, "status", StatusDraft, StatusPending, StatusPublished, StatusArchived)
}

var _ es.Aggregate = (*Content)(nil)
