package config

import (
	"os"
	"strconv"
)

// LoadFromEnv loads configuration from environment variables
func LoadFromEnv(cfg *Config) {
	if port := os.Getenv("CLIPNOTES_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			cfg.Server.Port = p
		}
	}

	if logLevel := os.Getenv("CLIPNOTES_LOG_LEVEL"); logLevel != "" {
		cfg.Server.LogLevel = logLevel
	}

	if host := os.Getenv("CLIPNOTES_DB_HOST"); host != "" {
		cfg.Database.Host = host
	}
	if port := os.Getenv("CLIPNOTES_DB_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			cfg.Database.Port = p
		}
	}
	if name := os.Getenv("CLIPNOTES_DB_NAME"); name != "" {
		cfg.Database.Database = name
	}
	if user := os.Getenv("CLIPNOTES_DB_USER"); user != "" {
		cfg.Database.User = user
	}
	if password := os.Getenv("CLIPNOTES_DB_PASSWORD"); password != "" {
		cfg.Database.Password = password
	}

	// Insight layer settings
	if ttl := os.Getenv("CLIPNOTES_INSIGHTS_CACHE_TTL"); ttl != "" {
		if t, err := strconv.Atoi(ttl); err == nil {
			cfg.Insights.CacheTTLSeconds = t
		}
	}
	if salt := os.Getenv("CLIPNOTES_SHARE_TOKEN_SALT"); salt != "" {
		cfg.Insights.ShareTokenSalt = salt
	}
	if base := os.Getenv("CLIPNOTES_SHARE_BASE_URL"); base != "" {
		cfg.Insights.ShareBaseURL = base
	}
}

// GetEnvOrDefault returns environment variable or default value
func GetEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
