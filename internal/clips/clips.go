package clips

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// ClipStatus tracks where a clip is in its analysis lifecycle.
type ClipStatus string

const (
	StatusPending ClipStatus = "pending"
	StatusReady   ClipStatus = "ready"
	StatusFailed  ClipStatus = "failed"
)

// ErrClipNotFound is returned when a clip id has no row.
var ErrClipNotFound = errors.New("clip not found")

// Moment is one labeled slice of a clip produced by the analysis provider.
type Moment struct {
	StartS   float64 `json:"start_s"`
	EndS     float64 `json:"end_s"`
	Label    string  `json:"label"`
	Severity string  `json:"severity"`
}

// Clip holds persisted metadata for a registered clip.
type Clip struct {
	ID             uuid.UUID  `json:"id"`
	Filename       string     `json:"filename"`
	AssetID        string     `json:"asset_id,omitempty"`
	Status         ClipStatus `json:"status"`
	CreatedAt      time.Time  `json:"created_at"`
	LastAnalysisAt *time.Time `json:"last_analysis_at,omitempty"`
	LatencyMS      *int       `json:"latency_ms,omitempty"`
}

// Analysis is one persisted analysis run for a clip.
type Analysis struct {
	ID           int64     `json:"id"`
	ClipID       uuid.UUID `json:"clip_id"`
	Summary      string    `json:"summary,omitempty"`
	Moments      []Moment  `json:"moments"`
	CreatedAt    time.Time `json:"created_at"`
	LatencyMS    *int      `json:"latency_ms,omitempty"`
	ErrorCode    string    `json:"error_code,omitempty"`
	ErrorMessage string    `json:"error_message,omitempty"`
}

// AnalysisPayload describes the outcome of an analysis run being saved.
type AnalysisPayload struct {
	Summary      string
	Moments      []Moment
	LatencyMS    *int
	ErrorCode    string
	ErrorMessage string
}

// Store is the clip/analysis registry.
type Store interface {
	CreateClip(ctx context.Context, filename string) (*Clip, error)
	ListClips(ctx context.Context, limit int) ([]*Clip, error)
	GetClip(ctx context.Context, id uuid.UUID) (*Clip, error)
	UpdateClipStatus(ctx context.Context, id uuid.UUID, status ClipStatus, lastAnalysisAt *time.Time, latencyMS *int) (*Clip, error)
	AttachAsset(ctx context.Context, id uuid.UUID, assetID string) (*Clip, error)
	SaveAnalysis(ctx context.Context, clipID uuid.UUID, payload AnalysisPayload) (*Analysis, error)
	LatestAnalysis(ctx context.Context, clipID uuid.UUID) (*Analysis, error)
	DeleteClip(ctx context.Context, id uuid.UUID) error

	AnalysisSource
}

// AnalysisSource is the read-only view the insight aggregator consumes.
// Records come back ordered ascending by creation time; the interval is
// half-open [since, until), and a zero until means unbounded.
type AnalysisSource interface {
	ListAnalysesBetween(ctx context.Context, since, until time.Time) ([]*Analysis, error)
}
