package clips

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStore is an in-memory clip store for tests and development.
type MemoryStore struct {
	mu       sync.RWMutex
	clips    map[uuid.UUID]*Clip
	analyses []*Analysis
	nextID   int64
}

// NewMemoryStore creates a new in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		clips: make(map[uuid.UUID]*Clip),
	}
}

func (s *MemoryStore) CreateClip(ctx context.Context, filename string) (*Clip, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	clip := &Clip{
		ID:        uuid.New(),
		Filename:  filename,
		Status:    StatusPending,
		CreatedAt: time.Now().UTC(),
	}
	s.clips[clip.ID] = clip
	return cloneClip(clip), nil
}

func (s *MemoryStore) ListClips(ctx context.Context, limit int) ([]*Clip, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 {
		limit = 25
	}

	clips := make([]*Clip, 0, len(s.clips))
	for _, clip := range s.clips {
		clips = append(clips, cloneClip(clip))
	}
	sort.Slice(clips, func(i, j int) bool {
		return clips[i].CreatedAt.After(clips[j].CreatedAt)
	})
	if len(clips) > limit {
		clips = clips[:limit]
	}
	return clips, nil
}

func (s *MemoryStore) GetClip(ctx context.Context, id uuid.UUID) (*Clip, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	clip, ok := s.clips[id]
	if !ok {
		return nil, ErrClipNotFound
	}
	return cloneClip(clip), nil
}

func (s *MemoryStore) UpdateClipStatus(ctx context.Context, id uuid.UUID, status ClipStatus, lastAnalysisAt *time.Time, latencyMS *int) (*Clip, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	clip, ok := s.clips[id]
	if !ok {
		return nil, ErrClipNotFound
	}
	clip.Status = status
	clip.LastAnalysisAt = lastAnalysisAt
	clip.LatencyMS = latencyMS
	return cloneClip(clip), nil
}

func (s *MemoryStore) AttachAsset(ctx context.Context, id uuid.UUID, assetID string) (*Clip, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	clip, ok := s.clips[id]
	if !ok {
		return nil, ErrClipNotFound
	}
	clip.AssetID = assetID
	return cloneClip(clip), nil
}

func (s *MemoryStore) SaveAnalysis(ctx context.Context, clipID uuid.UUID, payload AnalysisPayload) (*Analysis, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	clip, ok := s.clips[clipID]
	if !ok {
		return nil, ErrClipNotFound
	}

	s.nextID++
	createdAt := time.Now().UTC()
	moments := payload.Moments
	if moments == nil {
		moments = []Moment{}
	}

	analysis := &Analysis{
		ID:           s.nextID,
		ClipID:       clipID,
		Summary:      payload.Summary,
		Moments:      moments,
		CreatedAt:    createdAt,
		LatencyMS:    payload.LatencyMS,
		ErrorCode:    payload.ErrorCode,
		ErrorMessage: payload.ErrorMessage,
	}
	s.analyses = append(s.analyses, analysis)

	clip.LastAnalysisAt = &createdAt
	clip.LatencyMS = payload.LatencyMS
	if payload.ErrorCode != "" || payload.ErrorMessage != "" {
		clip.Status = StatusFailed
	} else {
		clip.Status = StatusReady
	}

	return cloneAnalysis(analysis), nil
}

func (s *MemoryStore) LatestAnalysis(ctx context.Context, clipID uuid.UUID) (*Analysis, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var latest *Analysis
	for _, analysis := range s.analyses {
		if analysis.ClipID != clipID {
			continue
		}
		if latest == nil || analysis.CreatedAt.After(latest.CreatedAt) {
			latest = analysis
		}
	}
	if latest == nil {
		return nil, nil
	}
	return cloneAnalysis(latest), nil
}

func (s *MemoryStore) DeleteClip(ctx context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.clips[id]; !ok {
		return ErrClipNotFound
	}
	delete(s.clips, id)

	kept := s.analyses[:0]
	for _, analysis := range s.analyses {
		if analysis.ClipID != id {
			kept = append(kept, analysis)
		}
	}
	s.analyses = kept
	return nil
}

// AddAnalysis seeds an analysis row directly, bypassing clip bookkeeping.
// Test helper for the insight aggregator.
func (s *MemoryStore) AddAnalysis(clipID uuid.UUID, createdAt time.Time, moments []Moment) *Analysis {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextID++
	if moments == nil {
		moments = []Moment{}
	}
	analysis := &Analysis{
		ID:        s.nextID,
		ClipID:    clipID,
		Moments:   moments,
		CreatedAt: createdAt.UTC(),
	}
	s.analyses = append(s.analyses, analysis)
	return cloneAnalysis(analysis)
}

func (s *MemoryStore) ListAnalysesBetween(ctx context.Context, since, until time.Time) ([]*Analysis, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*Analysis
	for _, analysis := range s.analyses {
		if analysis.CreatedAt.Before(since) {
			continue
		}
		if !until.IsZero() && !analysis.CreatedAt.Before(until) {
			continue
		}
		out = append(out, cloneAnalysis(analysis))
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

func cloneClip(clip *Clip) *Clip {
	c := *clip
	return &c
}

func cloneAnalysis(analysis *Analysis) *Analysis {
	a := *analysis
	a.Moments = append([]Moment(nil), analysis.Moments...)
	return &a
}
