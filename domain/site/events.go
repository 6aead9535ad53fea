package site

import (
	"time"

	"github.com/getdevflow/core-sub003/core/es"
)

type (
	SiteWasCreated struct {
		Name       string    `json:"name"`
		Slug       string    `json:"slug"`
		Domain     string    `json:"domain"`
		Path       string    `json:"path"`
		Owner      es.ID     `json:"owner"`
		Status     string    `json:"status"`
		Registered time.Time `json:"registered"`
	}
	SiteNameWasChanged struct {
		Name string `json:"name"`
	}
	SiteSlugWasChanged struct {
		Slug string `json:"slug"`
	}
	SiteDomainWasChanged struct {
		Domain string `json:"domain"`
	}
	SitePathWasChanged struct {
		Path string `json:"path"`
	}
	SiteOwnerWasChanged struct {
		Owner es.ID `json:"owner"`
	}
	SiteStatusWasChanged struct {
		Status string `json:"status"`
	}
	SiteModifiedWasChanged struct {
		Modified time.Time `json:"modified"`
	}
	SiteWasDeleted struct{}
)

func (SiteWasCreated) EventType() string         { return "SiteWasCreated" }
func (SiteNameWasChanged) EventType() string     { return "SiteNameWasChanged" }
func (SiteSlugWasChanged) EventType() string     { return "SiteSlugWasChanged" }
func (SiteDomainWasChanged) EventType() string   { return "SiteDomainWasChanged" }
func (SitePathWasChanged) EventType() string     { return "SitePathWasChanged" }
func (SiteOwnerWasChanged) EventType() string    { return "SiteOwnerWasChanged" }
func (SiteStatusWasChanged) EventType() string   { return "SiteStatusWasChanged" }
func (SiteModifiedWasChanged) EventType() string { return "SiteModifiedWasChanged" }
func (SiteWasDeleted) EventType() string         { return "SiteWasDeleted" }
func (SiteWasDeleted) IsDeletion() bool          { return true }

// Events registers the site events.
type Events struct{}

func (Events) RegisterEvents(r *es.EventRegistry) {
	es.RegisterEvent[SiteWasCreated](r)
	es.RegisterEvent[SiteNameWasChanged](r)
	es.RegisterEvent[SiteSlugWasChanged](r)
	es.RegisterEvent[SiteDomainWasChanged](r)
	es.RegisterEvent[SitePathWasChanged](r)
	es.RegisterEvent[SiteOwnerWasChanged](r)
	es.RegisterEvent[SiteStatusWasChanged](r)
	es.RegisterEvent[SiteModifiedWasChanged](r)
	es.RegisterEvent[SiteWasDeleted](r)
}
