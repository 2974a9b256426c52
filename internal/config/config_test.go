package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("PORT", "")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 3000, cfg.Server.Port)
	assert.Equal(t, 10*time.Minute, cfg.Cache.TTL)
	assert.Equal(t, 4, cfg.Retry.MaxAttempts)
	assert.Equal(t, 500*time.Millisecond, cfg.Retry.BaseDelay)
	assert.Equal(t, 3*time.Second, cfg.Retry.MaxDelay)
	assert.Equal(t, "https://moviebox.ph", cfg.Catalog.BaseURL)
	assert.InDelta(t, 0.6, cfg.Catalog.MinOverlap, 1e-9)
	assert.Empty(t, cfg.Cache.PersistPath)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("MEDIABRIDGE_SERVER_PORT", "9090")
	t.Setenv("MEDIABRIDGE_CACHE_TTL", "90s")
	t.Setenv("MEDIABRIDGE_RETRY_MAX_ATTEMPTS", "2")
	t.Setenv("TMDB_API_KEY", "from-env")
	t.Setenv("MEDIABRIDGE_CACHE_PERSIST_PATH", "/var/lib/mediabridge/cache.db")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, 90*time.Second, cfg.Cache.TTL)
	assert.Equal(t, 2, cfg.Retry.MaxAttempts)
	assert.Equal(t, "from-env", cfg.TMDB.APIKey)
	assert.Equal(t, "/var/lib/mediabridge/cache.db", cfg.Cache.PersistPath)
}

func TestLoad_ConfigFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := []byte(`
server:
  port: 4000
catalog:
  base_url: https://catalog.example
  min_overlap: 0.75
cache:
  stale_while_revalidate: true
`)
	require.NoError(t, os.WriteFile(path, content, 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 4000, cfg.Server.Port)
	assert.Equal(t, "https://catalog.example", cfg.Catalog.BaseURL)
	assert.InDelta(t, 0.75, cfg.Catalog.MinOverlap, 1e-9)
	assert.True(t, cfg.Cache.StaleWhileRevalidate)
	// Untouched keys keep their defaults.
	assert.Equal(t, "/web/searchResult", cfg.Catalog.SearchPath)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"defaults", func(*Config) {}, false},
		{"bad port", func(c *Config) { c.Server.Port = 0 }, true},
		{"no attempts", func(c *Config) { c.Retry.MaxAttempts = 0 }, true},
		{"zero ttl", func(c *Config) { c.Cache.TTL = 0 }, true},
		{"overlap above one", func(c *Config) { c.Catalog.MinOverlap = 1.5 }, true},
		{"missing catalog", func(c *Config) { c.Catalog.BaseURL = "" }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestServerConfig_Address(t *testing.T) {
	c := ServerConfig{Host: "127.0.0.1", Port: 3000}
	assert.Equal(t, "127.0.0.1:3000", c.Address())
}
