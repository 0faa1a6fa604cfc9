package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq" // PostgreSQL driver
)

// Config holds database configuration
type Config struct {
	Host     string
	Port     int
	Database string
	User     string
	Password string
	SSLMode  string
}

// Postgres represents a PostgreSQL connection
type Postgres struct {
	db *sql.DB
}

// NewPostgres creates a new PostgreSQL connection
func NewPostgres(cfg Config) (*Postgres, error) {
	if cfg.SSLMode == "" {
		cfg.SSLMode = "disable"
	}

	dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.Database, cfg.SSLMode)

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// Set connection pool settings
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	return &Postgres{db: db}, nil
}

// WrapDB wraps an existing handle, used by tests with sqlmock.
func WrapDB(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

// DB exposes the underlying handle for store constructors.
func (p *Postgres) DB() *sql.DB {
	return p.db
}

// Close closes the database connection
func (p *Postgres) Close() error {
	return p.db.Close()
}

// Ping verifies the database connection
func (p *Postgres) Ping(ctx context.Context) error {
	return p.db.PingContext(ctx)
}

// CreateTables creates the necessary database tables
func (p *Postgres) CreateTables(ctx context.Context) error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS clips (
			id VARCHAR(36) PRIMARY KEY,
			filename VARCHAR(255) NOT NULL,
			status VARCHAR(32) NOT NULL DEFAULT 'pending',
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			last_analysis_at TIMESTAMPTZ,
			latency_ms INTEGER,
			asset_id VARCHAR(128)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_clips_asset_id ON clips(asset_id)`,
		`CREATE TABLE IF NOT EXISTS analysis_results (
			id SERIAL PRIMARY KEY,
			clip_id VARCHAR(36) NOT NULL REFERENCES clips(id) ON DELETE CASCADE,
			summary TEXT,
			moments JSONB NOT NULL DEFAULT '[]',
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			latency_ms INTEGER,
			error_code VARCHAR(64),
			error_message TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_analysis_clip_id ON analysis_results(clip_id)`,
		`CREATE INDEX IF NOT EXISTS idx_analysis_created_at ON analysis_results(created_at)`,
		`CREATE TABLE IF NOT EXISTS insight_shares (
			token_hash VARCHAR(128) PRIMARY KEY,
			"window" VARCHAR(8) NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			last_accessed_at TIMESTAMPTZ,
			expires_at TIMESTAMPTZ,
			payload JSONB NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS request_counts (
			date DATE PRIMARY KEY,
			requests BIGINT NOT NULL DEFAULT 0,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
	}

	for _, query := range queries {
		if _, err := p.db.ExecContext(ctx, query); err != nil {
			return fmt.Errorf("create table: %w", err)
		}
	}

	return nil
}
