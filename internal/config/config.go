package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Insights InsightsConfig `yaml:"insights"`
}

type ServerConfig struct {
	Port        int    `yaml:"port" default:"8000"`
	LogLevel    string `yaml:"log_level" default:"info"`
	// Requests per second allowed per client on /api routes.
	RateLimit int `yaml:"rate_limit" default:"50"`
	RateBurst int `yaml:"rate_burst" default:"100"`
}

type DatabaseConfig struct {
	Host     string `yaml:"host" default:"localhost"`
	Port     int    `yaml:"port" default:"5432"`
	Database string `yaml:"database" default:"clipnotes"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	SSLMode  string `yaml:"ssl_mode" default:"disable"`
}

type InsightsConfig struct {
	// CacheTTLSeconds <= 0 disables serving stale snapshots; concurrent
	// builders are still collapsed per window.
	CacheTTLSeconds int    `yaml:"cache_ttl_seconds" default:"60"`
	ShareTokenSalt  string `yaml:"share_token_salt"`
	ShareBaseURL    string `yaml:"share_base_url"`
}

// Default returns a config populated with development defaults.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:        8000,
			LogLevel:    "info",
			RateLimit:   50,
			RateBurst:   100,
		},
		Database: DatabaseConfig{
			Host:     "localhost",
			Port:     5432,
			Database: "clipnotes",
			SSLMode:  "disable",
		},
		Insights: InsightsConfig{
			CacheTTLSeconds: 60,
		},
	}
}

// Load reads a YAML config file and applies environment overrides on top.
// A missing file is not an error; defaults plus environment are used.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path) // #nosec G304 - operator-supplied path
		if err != nil {
			if !os.IsNotExist(err) {
				return nil, fmt.Errorf("read config %s: %w", path, err)
			}
		} else if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	LoadFromEnv(cfg)
	return cfg, nil
}
