package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Server.ListenAddress)
	assert.Equal(t, ":19090", cfg.Server.AdminAddress)
	assert.Equal(t, []string{"brightvale.app", "www.brightvale.app"}, cfg.Proxy.PlatformHosts)
	assert.Equal(t, "info", cfg.Logging.Level)
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
server:
  listen_address: ":9000"
proxy:
  admin_domain: admin.brightvale.app
  trusted_hosts:
    - "*.bv-edge.net"
    - edge.example.com
  shared_secret: s3cret
tenants:
  file: /etc/platform/sites.yaml
  watch: true
logging:
  level: debug
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, ":9000", cfg.Server.ListenAddress)
	// Unset file keys keep their defaults.
	assert.Equal(t, ":19090", cfg.Server.AdminAddress)
	assert.Equal(t, "admin.brightvale.app", cfg.Proxy.AdminDomain)
	assert.Equal(t, []string{"*.bv-edge.net", "edge.example.com"}, cfg.Proxy.TrustedHosts)
	assert.Equal(t, "s3cret", cfg.Proxy.SharedSecret)
	assert.Equal(t, "/etc/platform/sites.yaml", cfg.Tenants.File)
	assert.True(t, cfg.Tenants.Watch)
	assert.Equal(t, "debug", cfg.Logging.Level)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestLoadInvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server: [not: {valid"), 0o600))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("BV_LISTEN", ":7000")
	t.Setenv("BV_TRUSTED_PROXY_HOSTS", " *.bv-edge.net , edge.example.com ,")
	t.Setenv("BV_PROXY_SECRET", "from-env")
	t.Setenv("BV_PLATFORM_HOSTS", "platform.example")
	t.Setenv("BV_TENANTS_WATCH", "true")
	t.Setenv("BV_LOG_LEVEL", "warn")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, ":7000", cfg.Server.ListenAddress)
	assert.Equal(t, []string{"*.bv-edge.net", "edge.example.com"}, cfg.Proxy.TrustedHosts)
	assert.Equal(t, "from-env", cfg.Proxy.SharedSecret)
	assert.Equal(t, []string{"platform.example"}, cfg.Proxy.PlatformHosts)
	assert.True(t, cfg.Tenants.Watch)
	assert.Equal(t, "warn", cfg.Logging.Level)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"defaults are valid", func(*Config) {}, false},
		{"empty listen address", func(c *Config) { c.Server.ListenAddress = "" }, true},
		{"admin equals data listen", func(c *Config) { c.Server.AdminAddress = c.Server.ListenAddress }, true},
		{"trusted host with slash", func(c *Config) { c.Proxy.TrustedHosts = []string{"edge.example/path"} }, true},
		{"bare wildcard", func(c *Config) { c.Proxy.TrustedHosts = []string{"*."} }, true},
		{"valid wildcard", func(c *Config) { c.Proxy.TrustedHosts = []string{"*.bv-edge.net"} }, false},
		{"bad log level", func(c *Config) { c.Logging.Level = "verbose" }, true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := &Config{
				Server:  ServerConfig{ListenAddress: ":8080", AdminAddress: ":19090"},
				Logging: LoggingConfig{Level: "info"},
			}
			tc.mutate(cfg)
			err := cfg.Validate()
			if tc.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
