package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	assert.Equal(t, 8000, cfg.Server.Port)
	assert.Equal(t, "info", cfg.Server.LogLevel)
	assert.Equal(t, 50, cfg.Server.RateLimit)
	assert.Equal(t, "localhost", cfg.Database.Host)
	assert.Equal(t, "clipnotes", cfg.Database.Database)
	assert.Equal(t, 60, cfg.Insights.CacheTTLSeconds)
	assert.Empty(t, cfg.Insights.ShareBaseURL)
}

func TestLoad(t *testing.T) {
	t.Run("missing file uses defaults", func(t *testing.T) {
		cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
		require.NoError(t, err)
		assert.Equal(t, 8000, cfg.Server.Port)
	})

	t.Run("yaml overrides defaults", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "config.yaml")
		require.NoError(t, os.WriteFile(path, []byte(`
server:
  port: 9000
  log_level: debug
insights:
  cache_ttl_seconds: 120
  share_base_url: https://clips.example.com
`), 0o600))

		cfg, err := Load(path)
		require.NoError(t, err)
		assert.Equal(t, 9000, cfg.Server.Port)
		assert.Equal(t, "debug", cfg.Server.LogLevel)
		assert.Equal(t, 120, cfg.Insights.CacheTTLSeconds)
		assert.Equal(t, "https://clips.example.com", cfg.Insights.ShareBaseURL)
		// Untouched sections keep their defaults.
		assert.Equal(t, 5432, cfg.Database.Port)
	})

	t.Run("malformed yaml is an error", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "config.yaml")
		require.NoError(t, os.WriteFile(path, []byte("server: ["), 0o600))

		_, err := Load(path)
		assert.Error(t, err)
	})

	t.Run("environment wins over yaml", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "config.yaml")
		require.NoError(t, os.WriteFile(path, []byte("server:\n  port: 9000\n"), 0o600))

		t.Setenv("CLIPNOTES_PORT", "9100")
		t.Setenv("CLIPNOTES_DB_HOST", "db.internal")
		t.Setenv("CLIPNOTES_INSIGHTS_CACHE_TTL", "0")
		t.Setenv("CLIPNOTES_SHARE_TOKEN_SALT", "env-salt")

		cfg, err := Load(path)
		require.NoError(t, err)
		assert.Equal(t, 9100, cfg.Server.Port)
		assert.Equal(t, "db.internal", cfg.Database.Host)
		assert.Equal(t, 0, cfg.Insights.CacheTTLSeconds)
		assert.Equal(t, "env-salt", cfg.Insights.ShareTokenSalt)
	})

	t.Run("non-numeric env values are ignored", func(t *testing.T) {
		t.Setenv("CLIPNOTES_PORT", "not-a-port")

		cfg, err := Load("")
		require.NoError(t, err)
		assert.Equal(t, 8000, cfg.Server.Port)
	})
}

func TestGetEnvOrDefault(t *testing.T) {
	t.Setenv("CLIPNOTES_TEST_KEY", "set")
	assert.Equal(t, "set", GetEnvOrDefault("CLIPNOTES_TEST_KEY", "fallback"))
	assert.Equal(t, "fallback", GetEnvOrDefault("CLIPNOTES_TEST_KEY_MISSING", "fallback"))
}
