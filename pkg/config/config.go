// Package config provides configuration structures and loading logic for the platform.
package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds the global configuration for the routing core.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Proxy     ProxyConfig     `yaml:"proxy"`
	Tenants   TenantsConfig   `yaml:"tenants"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// ServerConfig holds configuration for the HTTP servers.
type ServerConfig struct {
	// ListenAddress serves tenant traffic.
	ListenAddress string `yaml:"listen_address"`
	// AdminAddress serves /healthz and /metrics.
	AdminAddress string `yaml:"admin_address"`
}

// ProxyConfig holds the trust boundary settings for fronting proxies and CDNs.
type ProxyConfig struct {
	// AdminDomain is the platform's own dashboard hostname. Requests for it
	// never resolve to a tenant.
	AdminDomain string `yaml:"admin_domain"`
	// TrustedHosts lists hostnames allowed to assert a visitor hostname on
	// behalf of a tenant. Entries may be exact or "*.suffix" wildcards.
	TrustedHosts []string `yaml:"trusted_hosts"`
	// SharedSecret must be presented in X-BV-Proxy-Secret by trusted
	// proxies. Empty disables authentication (logged as a warning).
	SharedSecret string `yaml:"shared_secret"`
	// PlatformHosts are the default hostnames the platform itself answers
	// on. They are implicitly trusted and serve the platform landing
	// experience when no tenant matches.
	PlatformHosts []string `yaml:"platform_hosts"`
}

// TenantsConfig holds configuration for the tenant directory.
type TenantsConfig struct {
	// File points at the YAML site registry. Empty means the directory is
	// provided programmatically (embedding, tests).
	File string `yaml:"file"`
	// Watch enables fsnotify hot reload of the registry file.
	Watch bool `yaml:"watch"`
}

// TelemetryConfig holds configuration for OpenTelemetry.
type TelemetryConfig struct {
	OTLPEndpoint string `yaml:"otlp_endpoint"`
	Insecure     bool   `yaml:"insecure"`
}

// LoggingConfig holds configuration for logging.
type LoggingConfig struct {
	Level string `yaml:"level"`
}

// Load reads configuration from a file and applies environment variable overrides.
func Load(path string) (*Config, error) {
	cfg := &Config{
		// Defaults
		Server: ServerConfig{
			ListenAddress: ":8080",
			AdminAddress:  ":19090",
		},
		Proxy: ProxyConfig{
			PlatformHosts: []string{"brightvale.app", "www.brightvale.app"},
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}

	if path != "" {
		//nolint:gosec // Config file path is controlled by the operator
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	if val := os.Getenv("BV_LISTEN"); val != "" {
		cfg.Server.ListenAddress = val
	}
	if val := os.Getenv("BV_ADMIN_LISTEN"); val != "" {
		cfg.Server.AdminAddress = val
	}

	if val := os.Getenv("BV_ADMIN_DOMAIN"); val != "" {
		cfg.Proxy.AdminDomain = val
	}
	if val := os.Getenv("BV_TRUSTED_PROXY_HOSTS"); val != "" {
		cfg.Proxy.TrustedHosts = splitHostList(val)
	}
	if val := os.Getenv("BV_PROXY_SECRET"); val != "" {
		cfg.Proxy.SharedSecret = val
	}
	if val := os.Getenv("BV_PLATFORM_HOSTS"); val != "" {
		cfg.Proxy.PlatformHosts = splitHostList(val)
	}

	if val := os.Getenv("BV_TENANTS_FILE"); val != "" {
		cfg.Tenants.File = val
	}
	if val := os.Getenv("BV_TENANTS_WATCH"); val == "true" {
		cfg.Tenants.Watch = true
	}

	if val := os.Getenv("BV_OTLP_ENDPOINT"); val != "" {
		cfg.Telemetry.OTLPEndpoint = val
	}
	if val := os.Getenv("BV_OTLP_INSECURE"); val == "true" {
		cfg.Telemetry.Insecure = true
	}

	if val := os.Getenv("BV_LOG_LEVEL"); val != "" {
		cfg.Logging.Level = val
	}
}

// splitHostList parses a comma-separated host list, trimming whitespace and
// dropping empty entries.
func splitHostList(raw string) []string {
	parts := strings.Split(raw, ",")
	hosts := make([]string, 0, len(parts))
	for _, p := range parts {
		if h := strings.TrimSpace(p); h != "" {
			hosts = append(hosts, h)
		}
	}
	return hosts
}

// Validate checks the configuration for consistency.
func (c *Config) Validate() error {
	if c.Server.ListenAddress == "" {
		return fmt.Errorf("server.listen_address must not be empty")
	}
	if c.Server.AdminAddress == c.Server.ListenAddress {
		return fmt.Errorf("server.admin_address must differ from server.listen_address")
	}
	for _, h := range c.Proxy.TrustedHosts {
		if strings.ContainsAny(h, " /") {
			return fmt.Errorf("proxy.trusted_hosts entry %q is not a hostname", h)
		}
		if strings.HasPrefix(h, "*.") && len(h) <= 2 {
			return fmt.Errorf("proxy.trusted_hosts wildcard %q has no suffix", h)
		}
	}
	switch strings.ToLower(c.Logging.Level) {
	case "", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level %q is not one of debug, info, warn, error", c.Logging.Level)
	}
	return nil
}
