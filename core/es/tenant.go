package es

import (
	"fmt"
	"regexp"
	"strings"
)

// Tenant scopes storage for one site. It is passed explicitly to every store,
// backend and projection constructor.
type Tenant struct {
	// Site is written to the site column of every event row and filters reads.
	Site string
	// TablePrefix is prepended to read model table names.
	TablePrefix string
	// CacheNamespace prefixes lookup index keys.
	CacheNamespace string
}

var (
	sitePattern   = regexp.MustCompile(`^[a-z0-9][a-z0-9_-]*$`)
	prefixPattern = regexp.MustCompile(`^[a-z0-9_]*$`)
)

// DefaultTenant is the single-site setup.
func DefaultTenant() Tenant {
	return Tenant{Site: "main", TablePrefix: "", CacheNamespace: "main"}
}

// NewTenant derives table prefix and cache namespace from site.
func NewTenant(site string) (Tenant, error) {
	t := Tenant{
		Site:           site,
		TablePrefix:    strings.ReplaceAll(site, "-", "_") + "_",
		CacheNamespace: site,
	}
	return t, t.Validate()
}

// Validate rejects values that are unsafe to interpolate into SQL
// identifiers or cache keys.
func (t Tenant) Validate() error {
	if !sitePattern.MatchString(t.Site) {
		return fmt.Errorf("invalid tenant site %q", t.Site)
	}
	if !prefixPattern.MatchString(t.TablePrefix) {
		return fmt.Errorf("invalid tenant table prefix %q", t.TablePrefix)
	}
	if t.CacheNamespace == "" {
		return fmt.Errorf("tenant cache namespace is required")
	}
	return nil
}

// Table returns the prefixed read model table name.
func (t Tenant) Table(name string) string { return t.TablePrefix + name }

// Key joins parts under the cache namespace.
func (t Tenant) Key(parts ...string) string {
	return t.CacheNamespace + ":" + strings.Join(parts, ":")
}
