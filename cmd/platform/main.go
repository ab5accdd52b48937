// Package main is the entry point for the platform binary.
// It provides a CLI for starting the multi-tenant routing core.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/brightvale/platform/pkg/config"
	"github.com/brightvale/platform/pkg/logging"
	"github.com/brightvale/platform/pkg/server"
	"github.com/brightvale/platform/pkg/sitemap"
	"github.com/brightvale/platform/pkg/telemetry"
	"github.com/brightvale/platform/pkg/tenant"
)

const (
	serviceName              = "brightvale-platform"
	telemetryShutdownTimeout = 5 * time.Second
	gracefulShutdownTimeout  = 10 * time.Second
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// newRootCmd creates the root command for the platform binary
func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "platform",
		Short: "Brightvale multi-tenant routing core",
		Long: `The request-to-tenant resolution and base-path rewriting pipeline.

The server resolves each inbound request to a tenant site by domain or by
trusted proxy headers, strips the site's base path, rewrites root-relative
URLs in HTML responses, and serves per-tenant sitemaps.

Example:
  platform --config config.yaml --tenants tenants.yaml`,
		RunE: runServe,
	}

	rootCmd.Flags().StringP("config", "c", "", "Path to configuration file (YAML)")
	rootCmd.Flags().String("listen", "", "Data plane listen address (overrides config)")
	rootCmd.Flags().String("admin-listen", "", "Admin listen address (overrides config)")
	rootCmd.Flags().String("tenants", "", "Path to the site registry file (overrides config)")
	rootCmd.Flags().String("otel-endpoint", "", "OTLP trace endpoint (overrides config)")
	rootCmd.Flags().StringP("log-level", "l", "", "Log level (debug, info, warn, error)")

	return rootCmd
}

func runServe(cmd *cobra.Command, _ []string) error {
	configPath, err := cmd.Flags().GetString("config")
	if err != nil {
		return fmt.Errorf("failed to get config flag: %w", err)
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("configuration load failed: %w", err)
	}
	applyFlagOverrides(cmd, cfg)

	logger := logging.Setup(cfg.Logging.Level)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	return run(ctx, cfg, logger)
}

// applyFlagOverrides lets explicit flags win over file and environment.
func applyFlagOverrides(cmd *cobra.Command, cfg *config.Config) {
	if v, _ := cmd.Flags().GetString("listen"); v != "" {
		cfg.Server.ListenAddress = v
	}
	if v, _ := cmd.Flags().GetString("admin-listen"); v != "" {
		cfg.Server.AdminAddress = v
	}
	if v, _ := cmd.Flags().GetString("tenants"); v != "" {
		cfg.Tenants.File = v
	}
	if v, _ := cmd.Flags().GetString("otel-endpoint"); v != "" {
		cfg.Telemetry.OTLPEndpoint = v
	}
	if v, _ := cmd.Flags().GetString("log-level"); v != "" {
		cfg.Logging.Level = v
	}
}

// run orchestrates the application lifecycle.
func run(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	telemetryShutdown, err := telemetry.SetupTracing(ctx, telemetry.TraceConfig{
		ServiceName: serviceName,
		Endpoint:    cfg.Telemetry.OTLPEndpoint,
		Insecure:    cfg.Telemetry.Insecure,
		Environment: os.Getenv("BV_ENVIRONMENT"),
	})
	if err != nil {
		return fmt.Errorf("telemetry initialization failed: %w", err)
	}
	defer func() {
		shCtx, shCancel := context.WithTimeout(context.Background(), telemetryShutdownTimeout)
		defer shCancel()
		if err := telemetryShutdown(shCtx); err != nil {
			logger.Error("Telemetry shutdown error", "error", err)
		}
	}()

	metrics := telemetry.NewMetrics()

	directory, err := buildDirectory(cfg, logger)
	if err != nil {
		return err
	}

	srv, err := server.New(cfg, server.Options{
		Directory: directory,
		Lister:    noContent{},
		Content:   http.NotFoundHandler(),
		Landing:   nil,
		Logger:    logger,
		Metrics:   metrics,
	})
	if err != nil {
		return fmt.Errorf("server assembly failed: %w", err)
	}

	// The hook must be installed before the watcher starts: registry edits
	// must drop every cached sitemap variant of the affected sites.
	if fd, ok := directory.(*tenant.FileDirectory); ok {
		fd.SetReloadHook(func(changed []string) {
			for _, siteID := range changed {
				srv.SitemapCache().Invalidate(siteID)
			}
		})
		if cfg.Tenants.Watch {
			if err := fd.Watch(ctx); err != nil {
				return fmt.Errorf("site registry watch failed: %w", err)
			}
			defer func() { _ = fd.Stop() }()
		}
	}

	if err := srv.Start(); err != nil {
		return err
	}

	awaitShutdownSignal(ctx, logger)

	shCtx, shCancel := context.WithTimeout(context.Background(), gracefulShutdownTimeout)
	defer shCancel()
	if err := srv.Shutdown(shCtx); err != nil {
		return fmt.Errorf("shutdown failed: %w", err)
	}
	logger.Info("Shutdown complete")
	return nil
}

// buildDirectory creates the tenant directory from configuration. Watching
// begins later, once the reload hook is installed.
func buildDirectory(cfg *config.Config, logger *slog.Logger) (tenant.Directory, error) {
	if cfg.Tenants.File == "" {
		logger.Warn("No site registry configured; starting with an empty in-memory directory")
		return tenant.NewMemoryDirectory(), nil
	}

	fd, err := tenant.NewFileDirectory(cfg.Tenants.File, logger)
	if err != nil {
		return nil, fmt.Errorf("site registry load failed: %w", err)
	}
	return fd, nil
}

func awaitShutdownSignal(ctx context.Context, logger *slog.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	select {
	case sig := <-sigCh:
		logger.Info("Received signal, shutting down", "signal", sig.String())
	case <-ctx.Done():
	}
}

// noContent is the standalone binary's empty content lister. Deployments
// embed the routing core with their real content layer; the bare binary
// still serves structurally valid, empty sitemaps.
type noContent struct{}

func (noContent) ListPublished(context.Context, string) ([]sitemap.ContentItem, error) {
	return nil, nil
}

func (noContent) TopTags(context.Context, string, int) ([]string, error) {
	return nil, nil
}
