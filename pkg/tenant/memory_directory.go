package tenant

import (
	"context"
	"strings"
	"sync"

	"github.com/google/uuid"
)

// MemoryDirectory is an in-memory implementation of Directory, used by tests
// and by embedders that manage sites themselves.
type MemoryDirectory struct {
	mu      sync.RWMutex
	byID    map[string]*Site
	domains map[string]string // lowercase hostname -> site ID
	proxied map[string]string // lowercase visitor hostname -> site ID
}

// NewMemoryDirectory creates an empty MemoryDirectory.
func NewMemoryDirectory() *MemoryDirectory {
	return &MemoryDirectory{
		byID:    make(map[string]*Site),
		domains: make(map[string]string),
		proxied: make(map[string]string),
	}
}

// Add registers a site, assigning an ID when the record has none. The stored
// record is a copy; callers keep ownership of theirs.
func (d *MemoryDirectory) Add(site *Site) *Site {
	s := *site
	if s.ID == "" {
		s.ID = uuid.NewString()
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	d.byID[s.ID] = &s
	if s.PrimaryDomain != "" {
		d.domains[strings.ToLower(s.PrimaryDomain)] = s.ID
	}
	for _, alias := range s.DomainAliases {
		if alias != "" {
			d.domains[strings.ToLower(alias)] = s.ID
		}
	}
	if s.ProxyVisitorHostname != "" {
		d.proxied[strings.ToLower(s.ProxyVisitorHostname)] = s.ID
	}
	return &s
}

// Remove deletes a site and its hostname index entries.
func (d *MemoryDirectory) Remove(siteID string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	s, ok := d.byID[siteID]
	if !ok {
		return
	}
	delete(d.byID, siteID)
	for host, id := range d.domains {
		if id == s.ID {
			delete(d.domains, host)
		}
	}
	for host, id := range d.proxied {
		if id == s.ID {
			delete(d.proxied, host)
		}
	}
}

// ByDomain matches the primary domain or any alias.
func (d *MemoryDirectory) ByDomain(_ context.Context, hostname string) (*Site, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	id, ok := d.domains[strings.ToLower(hostname)]
	if !ok {
		return nil, ErrSiteNotFound
	}
	return d.byID[id], nil
}

// ByVisitorHostname matches ProxyVisitorHostname for reverse_proxy sites.
func (d *MemoryDirectory) ByVisitorHostname(_ context.Context, hostname string) (*Site, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	id, ok := d.proxied[strings.ToLower(hostname)]
	if !ok {
		return nil, ErrSiteNotFound
	}
	s := d.byID[id]
	if s.DeploymentMode != ModeReverseProxy {
		return nil, ErrSiteNotFound
	}
	return s, nil
}
