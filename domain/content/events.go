package content

import (
	"time"

	"github.com/getdevflow/core-sub003/core/es"
)

type (
	ContentWasCreated struct {
		Title     string    `json:"title"`
		Slug      string    `json:"slug"`
		Body      string    `json:"body"`
		Author    es.ID     `json:"author"`
		TypeSlug  string    `json:"type_slug"`
		Parent    es.ID     `json:"parent,omitempty"`
		Status    string    `json:"status"`
		Published time.Time `json:"published"`
		Created   time.Time `json:"created"`
	}
	ContentTitleWasChanged struct {
		Title string `json:"title"`
	}
	ContentSlugWasChanged struct {
		Slug string `json:"slug"`
	}
	ContentBodyWasChanged struct {
		Body string `json:"body"`
	}
	ContentAuthorWasChanged struct {
		Author es.ID `json:"author"`
	}
	ContentTypeWasChanged struct {
		TypeSlug string `json:"type_slug"`
	}
	ContentParentWasChanged struct {
		Parent es.ID `json:"parent"`
	}
	ContentStatusWasChanged struct {
		Status string `json:"status"`
	}
	ContentPublishedWasChanged struct {
		Published time.Time `json:"published"`
	}
	ContentMetaWasChanged struct {
		Key   string `json:"key"`
		Value string `json:"value"`
	}
	ContentModifiedWasChanged struct {
		Modified time.Time `json:"modified"`
	}
	ContentWasDeleted struct{}
)

func (ContentWasCreated) EventType() string          { return "ContentWasCreated" }
func (ContentTitleWasChanged) EventType() string     { return "ContentTitleWasChanged" }
func (ContentSlugWasChanged) EventType() string      { return "ContentSlugWasChanged" }
func (ContentBodyWasChanged) EventType() string      { return "ContentBodyWasChanged" }
func (ContentAuthorWasChanged) EventType() string    { return "ContentAuthorWasChanged" }
func (ContentTypeWasChanged) EventType() string      { return "ContentTypeWasChanged" }
func (ContentParentWasChanged) EventType() string    { return "ContentParentWasChanged" }
func (ContentStatusWasChanged) EventType() string    { return "ContentStatusWasChanged" }
func (ContentPublishedWasChanged) EventType() string { return "ContentPublishedWasChanged" }
func (ContentMetaWasChanged) EventType() string      { return "ContentMetaWasChanged" }
func (ContentModifiedWasChanged) EventType() string  { return "ContentModifiedWasChanged" }
func (ContentWasDeleted) EventType() string          { return "ContentWasDeleted" }
func (ContentWasDeleted) IsDeletion() bool           { return true }

type Events struct{}

func (Events) RegisterEvents(r *es.EventRegistry) {
	es.RegisterEvent[ContentWasCreated](r)
	es.RegisterEvent[ContentTitleWasChanged](r)
	es.RegisterEvent[ContentSlugWasChanged](r)
	es.RegisterEvent[ContentBodyWasChanged](r)
	es.RegisterEvent[ContentAuthorWasChanged](r)
	es.RegisterEvent[ContentTypeWasChanged](r)
	es.RegisterEvent[ContentParentWasChanged](r)
	es.RegisterEvent[ContentStatusWasChanged](r)
	es.RegisterEvent[ContentPublishedWasChanged](r)
	es.RegisterEvent[ContentMetaWasChanged](r)
	es.RegisterEvent[ContentModifiedWasChanged](r)
	es.RegisterEvent[ContentWasDeleted](r)
}
