package rewrite

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/brightvale/platform/pkg/telemetry"
	"github.com/brightvale/platform/pkg/tenant"
)

// bypassPrefixes never get the rewrite stage: API responses are JSON and
// asset paths are binary or latency-sensitive. The check runs on the
// already-stripped request path.
var bypassPrefixes = []string{
	"/api/",
	"/bv_api/",
	"/assets/",
	"/src/",
}

// Middleware installs the response rewrite stage for tenants with a
// non-empty base path.
type Middleware struct {
	logger  *slog.Logger
	metrics *telemetry.Metrics
}

// NewMiddleware builds the rewrite middleware. Logger and metrics may be nil.
func NewMiddleware(logger *slog.Logger, metrics *telemetry.Metrics) *Middleware {
	if logger == nil {
		logger = slog.Default()
	}
	return &Middleware{logger: logger, metrics: metrics}
}

// Wrap decorates the response writer with the buffering rewrite stage when
// the resolved tenant has a base path and the path is not carved out.
func (m *Middleware) Wrap(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rc, ok := tenant.FromContext(r.Context())
		if !ok || rc.BasePath == "" {
			next.ServeHTTP(w, r)
			return
		}
		for _, prefix := range bypassPrefixes {
			if strings.HasPrefix(r.URL.Path, prefix) {
				next.ServeHTTP(w, r)
				return
			}
		}

		stage := NewStage(w, rc.BasePath, m.logger, m.metrics)
		defer stage.Close()
		next.ServeHTTP(stage, r)
	})
}
