// Package site is the site family: the aggregate, its events and the sites
// read model.
package site

import (
	"strings"
	"time"

	"github.com/getdevflow/core-sub003/core/es"
	"github.com/getdevflow/core-sub003/core/es/assert"
)

const AggregateType = "site"

const (
	StatusPublic   = "public"
	StatusArchived = "archived"
)

// Site is a tenant of the installation, reachable at Domain + Path.
type Site struct {
	es.BaseAggregate

	Name       string
	Slug       string
	Domain     string
	Path       string
	Owner      es.ID
	Status     string
	Registered time.Time
	Modified   time.Time
}

// Details are the fields a site is created with.
type Details struct {
	Name   string
	Slug   string
	Domain string
	Path   string
	Owner  es.ID
	Status string
}

func New() *Site { return &Site{} }

func NewRepository(store es.TransactionalStore, opts ...es.RepositoryOption) *es.Repository[*Site] {
	return es.NewRepository(store, New, opts...)
}

func (s *Site) AggregateType() string { return AggregateType }

func (s *Site) Apply(ev es.Event) error {
	switch e := ev.(type) {
	case SiteWasCreated:
		s.Name = e.Name
		s.Slug = e.Slug
		s.Domain = e.Domain
		s.Path = e.Path
		s.Owner = e.Owner
		s.Status = e.Status
		s.Registered = e.Registered
		s.Modified = e.Registered
	case SiteNameWasChanged:
		s.Name = e.Name
	case SiteSlugWasChanged:
		s.Slug = e.Slug
	case SiteDomainWasChanged:
		s.Domain = e.Domain
	case SitePathWasChanged:
		s.Path = e.Path
	case SiteOwnerWasChanged:
		s.Owner = e.Owner
	case SiteStatusWasChanged:
		s.Status = e.Status
	case SiteModifiedWasChanged:
		s.Modified = e.Modified
	case SiteWasDeleted:
	default:
		return es.UnknownEvent(s, ev)
	}
	return nil
}

// === Commands ===

func Create(id es.ID, d Details, now time.Time) (*Site, error) {
	s := New()
	if d.Status == "" {
		d.Status = StatusPublic
	}
	if err := es.Check(s,
		nameConds(d.Name),
		assert.Slug(d.Slug, "slug"),
		domainCond(d.Domain),
		pathCond(d.Path),
		ownerCond(d.Owner),
		statusCond(d.Status),
	); err != nil {
		return nil, err
	}
	err := es.Create(s, id, SiteWasCreated{
		Name:       d.Name,
		Slug:       d.Slug,
		Domain:     strings.ToLower(d.Domain),
		Path:       d.Path,
		Owner:      d.Owner,
		Status:     d.Status,
		Registered: now.UTC(),
	})
	if err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Site) ChangeName(name string) error {
	return es.Change(s, s.Name, name,
		func(v string) es.Event { return SiteNameWasChanged{Name: v} },
		nameConds(name),
	)
}

func (s *Site) ChangeSlug(slug string) error {
	return es.Change(s, s.Slug, slug,
		func(v string) es.Event { return SiteSlugWasChanged{Slug: v} },
		assert.Slug(slug, "slug"),
	)
}

func (s *Site) ChangeDomain(domain string) error {
	return es.Change(s, s.Domain, strings.ToLower(domain),
		func(v string) es.Event { return SiteDomainWasChanged{Domain: v} },
		domainCond(domain),
	)
}

func (s *Site) ChangePath(path string) error {
	return es.Change(s, s.Path, path,
		func(v string) es.Event { return SitePathWasChanged{Path: v} },
		pathCond(path),
	)
}

func (s *Site) ChangeOwner(owner es.ID) error {
	return es.Change(s, s.Owner, owner,
		func(v es.ID) es.Event { return SiteOwnerWasChanged{Owner: v} },
		ownerCond(owner),
	)
}

func (s *Site) ChangeStatus(status string) error {
	return es.Change(s, s.Status, status,
		func(v string) es.Event { return SiteStatusWasChanged{Status: v} },
		statusCond(status),
	)
}

// StampModified records the modification time when the site has recorded
// other events since it was loaded and is not deleted.
func (s *Site) StampModified(now time.Time) error {
	if !s.HasRecordedEvents() || s.State() == es.StateDeleted {
		return nil
	}
	return es.RecordEvent(s, SiteModifiedWasChanged{Modified: now.UTC()})
}

func (s *Site) Delete(id es.ID) error { return es.Delete(s, id, SiteWasDeleted{}) }

func nameConds(name string) assert.Cond {
	return assert.All(assert.NotBlank(name, "name"), assert.MaxLen(name, 191, "name"))
}

func domainCond(domain string) assert.Cond {
	return assert.All(
		assert.NotBlank(domain, "domain"),
		assert.False(strings.ContainsAny(domain, "/ "), "domain must be a host name"),
	)
}

func pathCond(path string) assert.Cond {
	return assert.True(strings.HasPrefix(path, "/") && strings.HasSuffix(path, "/"), "path must start and end with /")
}

func ownerCond(owner es.ID) assert.Cond {
	return assert.False(owner.IsZero(), "owner is required")
}

func statusCond(status string) assert.Cond {
	return assert.OneOf(status, "status", StatusPublic, StatusArchived)
}

var _ es.Aggregate = (*Site)(nil)
