package routing

import (
	"log/slog"
	"net/http"

	"github.com/brightvale/platform/pkg/telemetry"
	"github.com/brightvale/platform/pkg/tenant"
)

// Middleware composes the resolution pipeline around a downstream handler:
// resolve the tenant, issue the canonical base-path redirect when required,
// strip the base path, and hand off with the ResolutionContext in the
// request context.
type Middleware struct {
	resolver *Resolver
	logger   *slog.Logger
	metrics  *telemetry.Metrics
}

// NewMiddleware builds the pipeline middleware. Logger and metrics may be nil.
func NewMiddleware(resolver *Resolver, logger *slog.Logger, metrics *telemetry.Metrics) *Middleware {
	if logger == nil {
		logger = slog.Default()
	}
	return &Middleware{resolver: resolver, logger: logger, metrics: metrics}
}

// Wrap wraps an HTTP handler with tenant resolution, canonical redirect, and
// base-path stripping. Requests that resolve to no tenant pass through
// without a ResolutionContext; the downstream handler decides how to answer
// them.
func (m *Middleware) Wrap(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rc, err := m.resolver.Resolve(r.Context(), r.Header, r.Host)
		if err != nil {
			// Directory outage. Only this request fails; resolution is
			// per-request and holds no shared state.
			m.logger.Error("Tenant resolution failed", "host", r.Host, "error", err)
			http.Error(w, "service unavailable", http.StatusServiceUnavailable)
			return
		}

		if rc == nil {
			next.ServeHTTP(w, r)
			return
		}

		if target, ok := CanonicalRedirect(rc, r.URL.Path); ok {
			if m.metrics != nil {
				m.metrics.RecordCanonicalRedirect()
			}
			http.Redirect(w, r, target, http.StatusMovedPermanently)
			return
		}

		StripBasePath(r.URL, rc.BasePath)

		next.ServeHTTP(w, r.WithContext(tenant.NewContext(r.Context(), rc)))
	})
}
