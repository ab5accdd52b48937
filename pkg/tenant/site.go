// Package tenant defines the site model and the directory interfaces the
// routing pipeline resolves tenants through.
package tenant

import (
	"context"
	"errors"
)

// DeploymentMode describes how a site is reached by visitors.
type DeploymentMode string

const (
	// ModeStandalone serves the site directly on its primary domain.
	ModeStandalone DeploymentMode = "standalone"
	// ModeReverseProxy serves the site behind a customer-operated proxy.
	// The site may have no primary domain at all; identity comes from the
	// visitor-hostname header asserted by the trusted proxy.
	ModeReverseProxy DeploymentMode = "reverse_proxy"
)

// ErrSiteNotFound is returned by directory lookups when no site matches.
var ErrSiteNotFound = errors.New("site not found")

// Site is one tenant's configured content destination. It is owned by the
// persistence layer and read-only to the routing core.
type Site struct {
	ID string `yaml:"id"`
	// PrimaryDomain is empty for proxy-only deployments.
	PrimaryDomain string   `yaml:"primary_domain"`
	DomainAliases []string `yaml:"domain_aliases"`
	// BasePath is the URL prefix the site is deployed under behind a
	// reverse proxy, e.g. "/blog". Stored raw; the routing layer
	// normalizes it defensively on every use.
	BasePath       string         `yaml:"base_path"`
	DeploymentMode DeploymentMode `yaml:"deployment_mode"`
	// ProxyVisitorHostname identifies the site in reverse_proxy mode.
	ProxyVisitorHostname string `yaml:"proxy_visitor_hostname"`
}

// Directory looks sites up by the hostnames a request arrives with. Lookups
// may hit a persistence layer and therefore take a context.
type Directory interface {
	// ByDomain matches the primary domain or any alias.
	ByDomain(ctx context.Context, hostname string) (*Site, error)
	// ByVisitorHostname matches ProxyVisitorHostname for reverse_proxy
	// deployments.
	ByVisitorHostname(ctx context.Context, hostname string) (*Site, error)
}
