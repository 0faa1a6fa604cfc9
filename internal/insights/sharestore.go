package insights

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"database/sql"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"
	"go.uber.org/zap"
)

// defaultTokenSalt is a development convenience used when no salt is
// configured. Deployments must set their own secret.
const defaultTokenSalt = "clipnotes-share-token"

const maxTokenAttempts = 5

// ErrShareTokenNotFound is returned when a share token lookup fails.
var ErrShareTokenNotFound = errors.New("share token not found")

// ShareStore persists and retrieves insight share tokens and payloads.
type ShareStore interface {
	CreateShare(ctx context.Context, window Window, payload []byte, expiresAt *time.Time) (string, *ShareRecord, error)
	GetShare(ctx context.Context, token string) (*ShareRecord, error)
	UpdatePayload(ctx context.Context, token string, payload []byte, expiresAt *time.Time) error
}

// PostgresShareStore stores share rows in the insight_shares table, keyed
// by a salted hash of the plaintext token. The plaintext is never stored
// or logged beyond the creation response.
type PostgresShareStore struct {
	db     *sql.DB
	salt   string
	logger *zap.Logger
	now    func() time.Time
}

// NewPostgresShareStore creates a share store. An empty salt falls back to
// the fixed development salt with a warning.
func NewPostgresShareStore(db *sql.DB, salt string, logger *zap.Logger) *PostgresShareStore {
	if salt == "" {
		logger.Warn("share token salt is not configured; falling back to a default development salt")
		salt = defaultTokenSalt
	}
	return &PostgresShareStore{
		db:     db,
		salt:   salt,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// CreateShare mints a random URL-safe token, persists the hashed row, and
// returns the plaintext token. Hash collisions retry with a fresh token.
func (s *PostgresShareStore) CreateShare(ctx context.Context, window Window, payload []byte, expiresAt *time.Time) (string, *ShareRecord, error) {
	for attempt := 0; attempt < maxTokenAttempts; attempt++ {
		token, err := generateToken()
		if err != nil {
			return "", nil, fmt.Errorf("generate share token: %w", err)
		}

		record := &ShareRecord{
			TokenHash: s.hashToken(token),
			Window:    window,
			CreatedAt: s.now(),
			ExpiresAt: expiresAt,
			Payload:   payload,
		}

		// "window" is a reserved word in Postgres and must stay quoted.
		query := `INSERT INTO insight_shares (token_hash, "window", created_at, expires_at, payload)
			VALUES ($1, $2, $3, $4, $5)`
		_, err = s.db.ExecContext(ctx, query,
			record.TokenHash, string(record.Window), record.CreatedAt, record.ExpiresAt, record.Payload)
		if err == nil {
			return token, record, nil
		}

		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code.Name() == "unique_violation" {
			continue
		}
		return "", nil, fmt.Errorf("insert share: %w", err)
	}

	return "", nil, errors.New("unable to generate unique share token")
}

// GetShare looks up a share row by plaintext token and bumps its
// last-accessed timestamp. The bump is best-effort bookkeeping; a failure
// there does not fail the read.
func (s *PostgresShareStore) GetShare(ctx context.Context, token string) (*ShareRecord, error) {
	tokenHash := s.hashToken(token)

	query := `SELECT token_hash, "window", created_at, last_accessed_at, expires_at, payload
		FROM insight_shares WHERE token_hash = $1`
	record, err := scanShare(s.db.QueryRowContext(ctx, query, tokenHash))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrShareTokenNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get share: %w", err)
	}

	accessedAt := s.now()
	update := `UPDATE insight_shares SET last_accessed_at = $2 WHERE token_hash = $1`
	if _, err := s.db.ExecContext(ctx, update, tokenHash, accessedAt); err != nil {
		s.logger.Warn("failed to record share access time", zap.Error(err))
	} else {
		record.LastAccessedAt = &accessedAt
	}

	return record, nil
}

// UpdatePayload overwrites the stored payload and expiry for a token.
func (s *PostgresShareStore) UpdatePayload(ctx context.Context, token string, payload []byte, expiresAt *time.Time) error {
	tokenHash := s.hashToken(token)

	query := `UPDATE insight_shares SET payload = $2, expires_at = $3, last_accessed_at = $4
		WHERE token_hash = $1`
	result, err := s.db.ExecContext(ctx, query, tokenHash, payload, expiresAt, s.now())
	if err != nil {
		return fmt.Errorf("update share payload: %w", err)
	}
	if affected, err := result.RowsAffected(); err == nil && affected == 0 {
		return ErrShareTokenNotFound
	}

	return nil
}

func (s *PostgresShareStore) hashToken(token string) string {
	digest := sha256.New()
	digest.Write([]byte(s.salt))
	digest.Write([]byte(":"))
	digest.Write([]byte(token))
	return hex.EncodeToString(digest.Sum(nil))
}

// generateToken returns a URL-safe bearer token with 128 bits of entropy.
func generateToken() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

func scanShare(row *sql.Row) (*ShareRecord, error) {
	var (
		record     ShareRecord
		window     string
		accessedAt sql.NullTime
		expiresAt  sql.NullTime
	)
	if err := row.Scan(&record.TokenHash, &window, &record.CreatedAt, &accessedAt, &expiresAt, &record.Payload); err != nil {
		return nil, err
	}

	record.Window = Window(window)
	record.CreatedAt = record.CreatedAt.UTC()
	if accessedAt.Valid {
		t := accessedAt.Time.UTC()
		record.LastAccessedAt = &t
	}
	if expiresAt.Valid {
		t := expiresAt.Time.UTC()
		record.ExpiresAt = &t
	}
	return &record, nil
}
