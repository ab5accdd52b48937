package sitemap

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/brightvale/platform/pkg/tenant"
)

// Handler serves /sitemap.xml and /robots.txt for the resolved tenant.
type Handler struct {
	cache  *Cache
	lister ContentLister
	logger *slog.Logger
}

// NewHandler builds the sitemap/robots handler. Logger may be nil.
func NewHandler(cache *Cache, lister ContentLister, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{cache: cache, lister: lister, logger: logger}
}

// requestBaseURL derives the absolute URL prefix sitemap entries are built
// on. On the primary domain the base path is part of every public URL; on an
// alias domain the fronting proxy already maps the root onto the base path,
// so the prefix is bare.
func requestBaseURL(r *http.Request, rc *tenant.ResolutionContext) string {
	scheme := "https"
	if proto := r.Header.Get("X-Forwarded-Proto"); proto != "" {
		scheme = proto
	} else if r.TLS == nil {
		scheme = "http"
	}
	host := rc.VisitorHostname
	if host == "" {
		host = r.Host
	}
	if rc.IsAliasDomain() {
		return scheme + "://" + host
	}
	return scheme + "://" + host + rc.BasePath
}

// ServeSitemap handles GET /sitemap.xml.
func (h *Handler) ServeSitemap(w http.ResponseWriter, r *http.Request) {
	rc, ok := tenant.FromContext(r.Context())
	if !ok || rc.SiteID == "" {
		http.NotFound(w, r)
		return
	}

	baseURL := requestBaseURL(r, rc)
	xml, err := h.cache.Get(r.Context(), rc.SiteID, baseURL, h.lister)
	if err != nil {
		// Only the sitemap surface fails; tenant traffic is unaffected.
		h.logger.Error("Sitemap generation failed", "site_id", rc.SiteID, "error", err)
		http.Error(w, "sitemap generation failed", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/xml; charset=utf-8")
	w.Header().Set("Cache-Control", fmt.Sprintf("public, max-age=%d", int(h.cache.ttl.Seconds())))
	_, _ = w.Write(xml)
}

// ServeRobots handles GET /robots.txt, pointing crawlers at the sitemap.
func (h *Handler) ServeRobots(w http.ResponseWriter, r *http.Request) {
	rc, ok := tenant.FromContext(r.Context())
	if !ok || rc.SiteID == "" {
		http.NotFound(w, r)
		return
	}

	baseURL := requestBaseURL(r, rc)
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("Cache-Control", "public, max-age=86400")
	fmt.Fprintf(w, "User-agent: *\nAllow: /\n\nSitemap: %s/sitemap.xml\n", baseURL)
}
