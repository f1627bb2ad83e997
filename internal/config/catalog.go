package config

import (
	"fmt"

	"github.com/BurntSushi/toml"

	"github.com/pkgwatch/pkgwatch/pkg/store"
	"github.com/pkgwatch/pkgwatch/pkg/upstream"
)

// Catalog is the seed file enumerating watched packages, their upstreams
// and the subscriptions to poll.
type Catalog struct {
	Packages      []CatalogPackage      `toml:"package"`
	Upstreams     []CatalogUpstream     `toml:"upstream"`
	Subscriptions []CatalogSubscription `toml:"subscription"`
}

// CatalogPackage describes one distribution package and the upstream it
// maps to.
type CatalogPackage struct {
	Name        string `toml:"name"`
	Category    string `toml:"category"`
	Section     string `toml:"section"`
	PkgSection  string `toml:"pkg_section"`
	Version     string `toml:"version"`
	Release     string `toml:"release"`
	Description string `toml:"description"`
	Upstream    string `toml:"upstream"`
}

// CatalogUpstream describes one watched source. Branch carries the git
// branch for commit feeds, the title filter for feed upstreams and the
// CSS selector for html upstreams.
type CatalogUpstream struct {
	Name   string `toml:"name"`
	Type   string `toml:"type"`
	URL    string `toml:"url"`
	Branch string `toml:"branch"`
}

// CatalogSubscription describes one polled channel. Type and URL default
// to the upstream's own when empty.
type CatalogSubscription struct {
	Upstream string `toml:"upstream"`
	Type     string `toml:"type"`
	Category string `toml:"category"`
	URL      string `toml:"url"`
}

// LoadCatalog parses a catalog file.
func LoadCatalog(path string) (*Catalog, error) {
	var cat Catalog
	if _, err := toml.DecodeFile(path, &cat); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if err := cat.validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return &cat, nil
}

func (c *Catalog) validate() error {
	byName := make(map[string]*CatalogUpstream, len(c.Upstreams))
	for i := range c.Upstreams {
		u := &c.Upstreams[i]
		if u.Name == "" || u.Type == "" || u.URL == "" {
			return fmt.Errorf("upstream %d: name, type and url are required", i)
		}
		if _, dup := byName[u.Name]; dup {
			return fmt.Errorf("duplicate upstream %q", u.Name)
		}
		byName[u.Name] = u
	}
	for i, p := range c.Packages {
		if p.Name == "" {
			return fmt.Errorf("package %d: name is required", i)
		}
		if p.Upstream != "" {
			if _, ok := byName[p.Upstream]; !ok {
				return fmt.Errorf("package %q references unknown upstream %q", p.Name, p.Upstream)
			}
		}
	}
	for i, s := range c.Subscriptions {
		if _, ok := byName[s.Upstream]; !ok {
			return fmt.Errorf("subscription %d references unknown upstream %q", i, s.Upstream)
		}
		if s.Category == "" {
			return fmt.Errorf("subscription %d: category is required", i)
		}
	}
	return nil
}

// ImportStats counts what an import touched.
type ImportStats struct {
	Packages      int
	Upstreams     int
	Subscriptions int
}

// Import seeds the store from the catalog. Upserting an upstream whose
// type changed invalidates its stored cursors; subscriptions are
// idempotent, so re-importing the same catalog is a no-op.
func (c *Catalog) Import(db *store.DB) (ImportStats, error) {
	var stats ImportStats

	byName := make(map[string]CatalogUpstream, len(c.Upstreams))
	for _, u := range c.Upstreams {
		byName[u.Name] = u
		if err := db.UpsertUpstream(upstream.Upstream{
			Name:   u.Name,
			Type:   u.Type,
			URL:    u.URL,
			Branch: u.Branch,
		}); err != nil {
			return stats, fmt.Errorf("upstream %q: %w", u.Name, err)
		}
		stats.Upstreams++
	}

	for _, p := range c.Packages {
		if err := db.UpsertPackage(store.Package{
			Name:        p.Name,
			Category:    p.Category,
			Section:     p.Section,
			PkgSection:  p.PkgSection,
			Version:     p.Version,
			Release:     p.Release,
			Description: p.Description,
		}); err != nil {
			return stats, fmt.Errorf("package %q: %w", p.Name, err)
		}
		if p.Upstream != "" {
			if err := db.LinkPackage(p.Name, p.Upstream); err != nil {
				return stats, fmt.Errorf("link %q: %w", p.Name, err)
			}
		}
		stats.Packages++
	}

	for _, s := range c.Subscriptions {
		up := byName[s.Upstream]
		typ := s.Type
		if typ == "" {
			typ = up.Type
		}
		url := s.URL
		if url == "" {
			url = up.URL
		}
		if _, err := db.EnsureSubscription(s.Upstream, typ, s.Category, url); err != nil {
			return stats, fmt.Errorf("subscription for %q: %w", s.Upstream, err)
		}
		stats.Subscriptions++
	}
	return stats, nil
}
