package clips

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// PostgresStore persists clips and analyses in PostgreSQL.
type PostgresStore struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewPostgresStore creates a PostgreSQL-backed clip store.
func NewPostgresStore(db *sql.DB, logger *zap.Logger) *PostgresStore {
	return &PostgresStore{db: db, logger: logger}
}

// CreateClip registers a new clip in pending status.
func (s *PostgresStore) CreateClip(ctx context.Context, filename string) (*Clip, error) {
	clip := &Clip{
		ID:        uuid.New(),
		Filename:  filename,
		Status:    StatusPending,
		CreatedAt: time.Now().UTC(),
	}

	query := `INSERT INTO clips (id, filename, status, created_at) VALUES ($1, $2, $3, $4)`
	if _, err := s.db.ExecContext(ctx, query, clip.ID.String(), clip.Filename, string(clip.Status), clip.CreatedAt); err != nil {
		return nil, fmt.Errorf("insert clip: %w", err)
	}

	return clip, nil
}

// ListClips returns the most recently created clips.
func (s *PostgresStore) ListClips(ctx context.Context, limit int) ([]*Clip, error) {
	if limit <= 0 {
		limit = 25
	}

	query := `SELECT id, filename, status, created_at, last_analysis_at, latency_ms, asset_id
		FROM clips ORDER BY created_at DESC LIMIT $1`
	rows, err := s.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("list clips: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var clips []*Clip
	for rows.Next() {
		clip, err := scanClip(rows)
		if err != nil {
			return nil, err
		}
		clips = append(clips, clip)
	}
	return clips, rows.Err()
}

// GetClip retrieves a clip by id.
func (s *PostgresStore) GetClip(ctx context.Context, id uuid.UUID) (*Clip, error) {
	query := `SELECT id, filename, status, created_at, last_analysis_at, latency_ms, asset_id
		FROM clips WHERE id = $1`
	clip, err := scanClip(s.db.QueryRowContext(ctx, query, id.String()))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrClipNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get clip: %w", err)
	}
	return clip, nil
}

// UpdateClipStatus transitions a clip's lifecycle status.
func (s *PostgresStore) UpdateClipStatus(ctx context.Context, id uuid.UUID, status ClipStatus, lastAnalysisAt *time.Time, latencyMS *int) (*Clip, error) {
	query := `UPDATE clips SET status = $2, last_analysis_at = $3, latency_ms = $4 WHERE id = $1`
	result, err := s.db.ExecContext(ctx, query, id.String(), string(status), lastAnalysisAt, latencyMS)
	if err != nil {
		return nil, fmt.Errorf("update clip status: %w", err)
	}
	if affected, err := result.RowsAffected(); err == nil && affected == 0 {
		return nil, ErrClipNotFound
	}

	return s.GetClip(ctx, id)
}

// AttachAsset links an uploaded asset to a clip.
func (s *PostgresStore) AttachAsset(ctx context.Context, id uuid.UUID, assetID string) (*Clip, error) {
	query := `UPDATE clips SET asset_id = $2 WHERE id = $1`
	result, err := s.db.ExecContext(ctx, query, id.String(), assetID)
	if err != nil {
		return nil, fmt.Errorf("attach asset: %w", err)
	}
	if affected, err := result.RowsAffected(); err == nil && affected == 0 {
		return nil, ErrClipNotFound
	}

	return s.GetClip(ctx, id)
}

// SaveAnalysis stores an analysis run and rolls its outcome up onto the clip.
func (s *PostgresStore) SaveAnalysis(ctx context.Context, clipID uuid.UUID, payload AnalysisPayload) (*Analysis, error) {
	moments := payload.Moments
	if moments == nil {
		moments = []Moment{}
	}
	momentsJSON, err := json.Marshal(moments)
	if err != nil {
		return nil, fmt.Errorf("marshal moments: %w", err)
	}

	createdAt := time.Now().UTC()
	status := StatusReady
	if payload.ErrorCode != "" || payload.ErrorMessage != "" {
		status = StatusFailed
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	analysis := &Analysis{
		ClipID:       clipID,
		Summary:      payload.Summary,
		Moments:      moments,
		CreatedAt:    createdAt,
		LatencyMS:    payload.LatencyMS,
		ErrorCode:    payload.ErrorCode,
		ErrorMessage: payload.ErrorMessage,
	}

	insert := `INSERT INTO analysis_results (clip_id, summary, moments, created_at, latency_ms, error_code, error_message)
		VALUES ($1, $2, $3, $4, $5, $6, $7) RETURNING id`
	err = tx.QueryRowContext(ctx, insert,
		clipID.String(), nullableString(payload.Summary), momentsJSON, createdAt,
		payload.LatencyMS, nullableString(payload.ErrorCode), nullableString(payload.ErrorMessage),
	).Scan(&analysis.ID)
	if err != nil {
		return nil, fmt.Errorf("insert analysis: %w", err)
	}

	update := `UPDATE clips SET status = $2, last_analysis_at = $3, latency_ms = $4 WHERE id = $1`
	result, err := tx.ExecContext(ctx, update, clipID.String(), string(status), createdAt, payload.LatencyMS)
	if err != nil {
		return nil, fmt.Errorf("update clip after analysis: %w", err)
	}
	if affected, err := result.RowsAffected(); err == nil && affected == 0 {
		return nil, ErrClipNotFound
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit analysis: %w", err)
	}

	return analysis, nil
}

// LatestAnalysis returns the newest analysis for a clip, or nil.
func (s *PostgresStore) LatestAnalysis(ctx context.Context, clipID uuid.UUID) (*Analysis, error) {
	query := `SELECT id, clip_id, summary, moments, created_at, latency_ms, error_code, error_message
		FROM analysis_results WHERE clip_id = $1 ORDER BY created_at DESC LIMIT 1`
	analysis, err := scanAnalysis(s.db.QueryRowContext(ctx, query, clipID.String()))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("latest analysis: %w", err)
	}
	return analysis, nil
}

// DeleteClip removes a clip; analyses cascade.
func (s *PostgresStore) DeleteClip(ctx context.Context, id uuid.UUID) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM clips WHERE id = $1`, id.String())
	if err != nil {
		return fmt.Errorf("delete clip: %w", err)
	}
	if affected, err := result.RowsAffected(); err == nil && affected == 0 {
		return ErrClipNotFound
	}
	return nil
}

// ListAnalysesBetween returns analyses created in [since, until), ascending.
// A zero until means no upper bound.
func (s *PostgresStore) ListAnalysesBetween(ctx context.Context, since, until time.Time) ([]*Analysis, error) {
	query := `SELECT id, clip_id, summary, moments, created_at, latency_ms, error_code, error_message
		FROM analysis_results WHERE created_at >= $1`
	args := []interface{}{since}
	if !until.IsZero() {
		query += ` AND created_at < $2`
		args = append(args, until)
	}
	query += ` ORDER BY created_at ASC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list analyses: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var analyses []*Analysis
	for rows.Next() {
		analysis, err := scanAnalysis(rows)
		if err != nil {
			return nil, err
		}
		analyses = append(analyses, analysis)
	}
	return analyses, rows.Err()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanClip(row rowScanner) (*Clip, error) {
	var (
		clip     Clip
		id       string
		status   string
		lastAt   sql.NullTime
		latency  sql.NullInt64
		assetID  sql.NullString
	)
	if err := row.Scan(&id, &clip.Filename, &status, &clip.CreatedAt, &lastAt, &latency, &assetID); err != nil {
		return nil, err
	}

	parsed, err := uuid.Parse(id)
	if err != nil {
		return nil, fmt.Errorf("parse clip id: %w", err)
	}
	clip.ID = parsed
	clip.Status = ClipStatus(status)
	if lastAt.Valid {
		t := lastAt.Time.UTC()
		clip.LastAnalysisAt = &t
	}
	if latency.Valid {
		v := int(latency.Int64)
		clip.LatencyMS = &v
	}
	if assetID.Valid {
		clip.AssetID = assetID.String
	}
	return &clip, nil
}

func scanAnalysis(row rowScanner) (*Analysis, error) {
	var (
		analysis Analysis
		clipID   string
		summary  sql.NullString
		moments  []byte
		latency  sql.NullInt64
		errCode  sql.NullString
		errMsg   sql.NullString
	)
	if err := row.Scan(&analysis.ID, &clipID, &summary, &moments, &analysis.CreatedAt, &latency, &errCode, &errMsg); err != nil {
		return nil, err
	}

	parsed, err := uuid.Parse(clipID)
	if err != nil {
		return nil, fmt.Errorf("parse analysis clip id: %w", err)
	}
	analysis.ClipID = parsed
	analysis.CreatedAt = analysis.CreatedAt.UTC()
	if summary.Valid {
		analysis.Summary = summary.String
	}
	if len(moments) > 0 {
		if err := json.Unmarshal(moments, &analysis.Moments); err != nil {
			return nil, fmt.Errorf("unmarshal moments: %w", err)
		}
	}
	if analysis.Moments == nil {
		analysis.Moments = []Moment{}
	}
	if latency.Valid {
		v := int(latency.Int64)
		analysis.LatencyMS = &v
	}
	if errCode.Valid {
		analysis.ErrorCode = errCode.String
	}
	if errMsg.Valid {
		analysis.ErrorMessage = errMsg.String
	}
	return &analysis, nil
}

func nullableString(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
