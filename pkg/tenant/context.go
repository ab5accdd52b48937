package tenant

import "context"

// contextKey is a custom type for context keys to avoid collisions
type contextKey string

// resolutionContextKey is the context key the resolver middleware stores the
// per-request ResolutionContext under.
const resolutionContextKey contextKey = "tenantResolution"

// ResolutionContext is the per-request outcome of tenant resolution. It is
// created once by the resolver middleware and never mutated downstream.
type ResolutionContext struct {
	SiteID string
	// BasePath is the site's normalized base path ("" or "/segment...").
	BasePath string
	// SiteHostname is the site's own primary domain, used for internal
	// logic such as alias detection.
	SiteHostname string
	// VisitorHostname is the hostname the visitor's browser actually used,
	// used for URL generation and alias detection.
	VisitorHostname string
	// SitePrimaryDomain mirrors the Site record's primary domain.
	SitePrimaryDomain string
	// PlatformDefault marks the "no tenant, default platform host"
	// outcome, which serves the platform landing experience.
	PlatformDefault bool
}

// IsAliasDomain reports whether the request arrived on a hostname other than
// the site's primary domain.
func (rc *ResolutionContext) IsAliasDomain() bool {
	return rc.VisitorHostname != "" && rc.SitePrimaryDomain != "" &&
		rc.VisitorHostname != rc.SitePrimaryDomain
}

// NewContext returns a context carrying the resolution outcome.
func NewContext(ctx context.Context, rc *ResolutionContext) context.Context {
	return context.WithValue(ctx, resolutionContextKey, rc)
}

// FromContext extracts the resolution outcome from the request context.
func FromContext(ctx context.Context) (*ResolutionContext, bool) {
	rc, ok := ctx.Value(resolutionContextKey).(*ResolutionContext)
	return rc, ok
}
