package routing

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"strings"

	"github.com/brightvale/platform/pkg/telemetry"
	"github.com/brightvale/platform/pkg/tenant"
)

// Proxy identity headers consumed by the resolver (case-insensitive).
const (
	VisitorHostHeader   = "X-BV-Visitor-Host"
	ForwardedHostHeader = "X-Forwarded-Host"
	OriginalHostHeader  = "X-Original-Host"
	RealHostHeader      = "X-Real-Host"
)

// dropPort strips a ":port" suffix from a host header value.
func dropPort(hostport string) string {
	host, _, err := net.SplitHostPort(hostport)
	if err != nil {
		return hostport
	}
	return host
}

// firstHeaderValue returns the first comma-separated value of a header,
// trimmed. Proxies append to forwarding headers, so the first entry is the
// one closest to the visitor.
func firstHeaderValue(raw string) string {
	if i := strings.IndexByte(raw, ','); i >= 0 {
		raw = raw[:i]
	}
	return strings.TrimSpace(raw)
}

// siteDomainCandidate extracts the hostname used for tenant lookup. This
// chain is distinct from visitorHostnameCandidate and the two must not be
// merged: the site-domain chain identifies the origin the request was routed
// to, the visitor chain identifies the hostname the browser used.
//
// transportHost is r.Host, which net/http populates from the Host header
// (HTTP/1.1) or the :authority pseudo-header (HTTP/2), so it covers the
// first and last links of the chain at once.
func siteDomainCandidate(h http.Header, transportHost string) string {
	if v := strings.TrimSpace(transportHost); v != "" {
		return dropPort(v)
	}
	for _, name := range []string{OriginalHostHeader, RealHostHeader} {
		if v := h.Get(name); v != "" {
			return dropPort(strings.TrimSpace(v))
		}
	}
	return ""
}

// visitorHostnameCandidate extracts the hostname the visitor's browser
// actually used, as asserted by fronting proxies.
func visitorHostnameCandidate(h http.Header, transportHost string) string {
	for _, name := range []string{VisitorHostHeader, ForwardedHostHeader, OriginalHostHeader, RealHostHeader} {
		if v := h.Get(name); v != "" {
			return dropPort(firstHeaderValue(v))
		}
	}
	return dropPort(transportHost)
}

// Resolver maps an inbound request to the tenant owning it.
type Resolver struct {
	directory   tenant.Directory
	gate        *TrustGate
	adminDomain string
	logger      *slog.Logger
	metrics     *telemetry.Metrics
}

// NewResolver builds a resolver. Logger and metrics may be nil.
func NewResolver(directory tenant.Directory, gate *TrustGate, adminDomain string, logger *slog.Logger, metrics *telemetry.Metrics) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{
		directory:   directory,
		gate:        gate,
		adminDomain: strings.ToLower(adminDomain),
		logger:      logger,
		metrics:     metrics,
	}
}

// Resolve determines the tenant for a request. A nil ResolutionContext with
// nil error means "no tenant": the admin domain, an unknown domain, or a
// rejected proxy fallback. The platform-default outcome returns a non-nil
// context with PlatformDefault set and no site fields.
func (r *Resolver) Resolve(ctx context.Context, headers http.Header, transportHost string) (*tenant.ResolutionContext, error) {
	siteDomain := siteDomainCandidate(headers, transportHost)
	visitorHost := visitorHostnameCandidate(headers, transportHost)

	// The platform dashboard is never a tenant.
	if r.adminDomain != "" && strings.EqualFold(siteDomain, r.adminDomain) {
		r.record(telemetry.OutcomeAdmin)
		return nil, nil
	}

	site, err := r.directory.ByDomain(ctx, siteDomain)
	switch {
	case err == nil:
		r.record(telemetry.OutcomeResolved)
		return r.contextFor(site, visitorHost), nil
	case !errors.Is(err, tenant.ErrSiteNotFound):
		return nil, err
	}

	// Fallback: reverse_proxy deployments may have no primary domain at
	// all; the trusted proxy identifies the tenant by visitor hostname.
	if visitorHost != "" {
		decision := r.gate.Evaluate(siteDomain, headers.Get(ProxySecretHeader))
		if decision.Allows() {
			site, err = r.directory.ByVisitorHostname(ctx, visitorHost)
			switch {
			case err == nil:
				r.record(telemetry.OutcomeProxyFallback)
				return r.contextFor(site, visitorHost), nil
			case !errors.Is(err, tenant.ErrSiteNotFound):
				return nil, err
			}
		} else {
			r.gate.NoteRejectedFallback(siteDomain, visitorHost, decision)
		}
	}

	if r.gate.IsPlatformHost(siteDomain) {
		r.record(telemetry.OutcomePlatformDefault)
		return &tenant.ResolutionContext{PlatformDefault: true, VisitorHostname: visitorHost}, nil
	}

	r.record(telemetry.OutcomeUnknown)
	r.logger.Debug("No tenant for domain", "domain", siteDomain)
	return nil, nil
}

func (r *Resolver) contextFor(site *tenant.Site, visitorHost string) *tenant.ResolutionContext {
	return &tenant.ResolutionContext{
		SiteID:            site.ID,
		BasePath:          NormalizeBasePath(site.BasePath),
		SiteHostname:      site.PrimaryDomain,
		VisitorHostname:   visitorHost,
		SitePrimaryDomain: site.PrimaryDomain,
	}
}

func (r *Resolver) record(outcome string) {
	if r.metrics != nil {
		r.metrics.RecordResolution(outcome)
	}
}
