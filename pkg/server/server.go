// Package server assembles the routing pipeline into the platform's HTTP
// surfaces: the data plane serving tenant traffic and the admin plane
// serving health and metrics.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/brightvale/platform/pkg/config"
	"github.com/brightvale/platform/pkg/rewrite"
	"github.com/brightvale/platform/pkg/routing"
	"github.com/brightvale/platform/pkg/sitemap"
	"github.com/brightvale/platform/pkg/telemetry"
	"github.com/brightvale/platform/pkg/tenant"
)

const (
	readTimeout     = 30 * time.Second
	writeTimeout    = 30 * time.Second
	idleTimeout     = 120 * time.Second
	cleanupInterval = 5 * time.Minute
)

// Options binds the collaborators the routing core does not own: the tenant
// directory, the content lister feeding the sitemap, and the downstream
// handler producing tenant responses (admin/public renderers, asset
// servers). Content is required; a nil Landing falls back to a plain 404.
type Options struct {
	Directory tenant.Directory
	Lister    sitemap.ContentLister
	// Content receives every tenant request after resolution, stripping,
	// and rewrite-stage installation.
	Content http.Handler
	// Landing answers requests with no tenant (unknown domains and the
	// platform default hosts).
	Landing http.Handler
	Logger  *slog.Logger
	Metrics *telemetry.Metrics
}

// Server is the assembled platform routing core.
type Server struct {
	cfg     *config.Config
	logger  *slog.Logger
	metrics *telemetry.Metrics

	gate    *routing.TrustGate
	cache   *sitemap.Cache
	dataSrv *http.Server
	admSrv  *http.Server

	stopCh chan struct{}
}

// New builds the server and its middleware chain.
func New(cfg *config.Config, opts Options) (*Server, error) {
	if opts.Directory == nil {
		return nil, fmt.Errorf("a tenant directory is required")
	}
	if opts.Content == nil {
		return nil, fmt.Errorf("a content handler is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	metrics := opts.Metrics
	if metrics == nil {
		metrics = telemetry.NewMetrics()
	}

	gate := routing.NewTrustGate(cfg.Proxy.TrustedHosts, cfg.Proxy.PlatformHosts, cfg.Proxy.SharedSecret, logger, metrics)
	resolver := routing.NewResolver(opts.Directory, gate, cfg.Proxy.AdminDomain, logger, metrics)
	cache := sitemap.NewCache(sitemap.DefaultTTL, nil, logger, metrics)

	mux := http.NewServeMux()
	if opts.Lister != nil {
		smh := sitemap.NewHandler(cache, opts.Lister, logger)
		mux.HandleFunc("GET /sitemap.xml", smh.ServeSitemap)
		mux.HandleFunc("GET /robots.txt", smh.ServeRobots)
	}
	mux.Handle("/", &dispatcher{content: opts.Content, landing: opts.Landing})

	// Chain, innermost first: mux ← rewrite stage ← resolution ← request
	// metrics ← otel. The rewrite stage must sit inside resolution so it
	// sees the stripped path and the ResolutionContext.
	var handler http.Handler = mux
	handler = rewrite.NewMiddleware(logger, metrics).Wrap(handler)
	handler = routing.NewMiddleware(resolver, logger, metrics).Wrap(handler)
	handler = metrics.Middleware(handler)
	handler = otelhttp.NewHandler(handler, "platform.data")

	adminMux := http.NewServeMux()
	adminMux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	adminMux.Handle("/metrics", metrics.Handler())

	return &Server{
		cfg:     cfg,
		logger:  logger,
		metrics: metrics,
		gate:    gate,
		cache:   cache,
		dataSrv: &http.Server{
			Addr:         cfg.Server.ListenAddress,
			Handler:      handler,
			ReadTimeout:  readTimeout,
			WriteTimeout: writeTimeout,
			IdleTimeout:  idleTimeout,
		},
		admSrv: &http.Server{
			Addr:         cfg.Server.AdminAddress,
			Handler:      adminMux,
			ReadTimeout:  readTimeout,
			WriteTimeout: writeTimeout,
			IdleTimeout:  idleTimeout,
		},
		stopCh: make(chan struct{}),
	}, nil
}

// SitemapCache exposes the cache so embedders can invalidate sites when
// their content changes.
func (s *Server) SitemapCache() *sitemap.Cache {
	return s.cache
}

// Handler returns the fully assembled data-plane handler, for tests and
// embedders that manage their own listener.
func (s *Server) Handler() http.Handler {
	return s.dataSrv.Handler
}

// Start begins serving on both addresses and starts the background cleanup
// routines. It returns once the listeners are bound.
func (s *Server) Start() error {
	s.cache.StartCleanupRoutine(cleanupInterval, s.stopCh)
	s.gate.StartCleanupRoutine(cleanupInterval, s.stopCh)

	dataLn, err := net.Listen("tcp", s.cfg.Server.ListenAddress)
	if err != nil {
		return fmt.Errorf("data listener on %s: %w", s.cfg.Server.ListenAddress, err)
	}
	admLn, err := net.Listen("tcp", s.cfg.Server.AdminAddress)
	if err != nil {
		_ = dataLn.Close()
		return fmt.Errorf("admin listener on %s: %w", s.cfg.Server.AdminAddress, err)
	}

	go func() {
		s.logger.Info("Data plane listening", "address", dataLn.Addr().String())
		if err := s.dataSrv.Serve(dataLn); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("Data plane server error", "error", err)
		}
	}()
	go func() {
		s.logger.Info("Admin plane listening", "address", admLn.Addr().String())
		if err := s.admSrv.Serve(admLn); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("Admin server error", "error", err)
		}
	}()

	return nil
}

// Shutdown drains both servers and stops the cleanup routines.
func (s *Server) Shutdown(ctx context.Context) error {
	close(s.stopCh)

	var firstErr error
	if err := s.dataSrv.Shutdown(ctx); err != nil {
		firstErr = err
	}
	if err := s.admSrv.Shutdown(ctx); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}

// dispatcher routes resolved tenant traffic to the content handler and
// everything else to the landing handler.
type dispatcher struct {
	content http.Handler
	landing http.Handler
}

func (d *dispatcher) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	rc, ok := tenant.FromContext(r.Context())
	if ok && rc.SiteID != "" {
		d.content.ServeHTTP(w, r)
		return
	}
	if d.landing != nil {
		d.landing.ServeHTTP(w, r)
		return
	}
	http.NotFound(w, r)
}
