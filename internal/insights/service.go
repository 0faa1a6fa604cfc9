package insights

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
)

// ErrSharingNotConfigured is returned when share operations are requested
// without a configured share store.
var ErrSharingNotConfigured = errors.New("insight sharing is not configured")

// ErrWindowMismatch is returned when a share fetch asserts a window other
// than the one the token was created for.
var ErrWindowMismatch = errors.New("requested window does not match share token")

// Service coordinates aggregation, caching, and sharing for the insight
// layer. It owns the cache and share store; the aggregator and summary
// generator are stateless.
type Service struct {
	aggregator *Aggregator
	cache      *Cache
	shares     ShareStore
	baseURL    string
	cacheTTL   time.Duration
	logger     *zap.Logger
}

// ServiceOption configures optional service collaborators.
type ServiceOption func(*Service)

// WithShareStore enables share token issuance and retrieval.
func WithShareStore(shares ShareStore, baseURL string) ServiceOption {
	return func(s *Service) {
		s.shares = shares
		s.baseURL = baseURL
	}
}

// NewService creates an insight service. cacheTTL <= 0 means snapshots are
// never served stale, though concurrent rebuilds still collapse.
func NewService(aggregator *Aggregator, cacheTTL time.Duration, metrics *Metrics, logger *zap.Logger, opts ...ServiceOption) *Service {
	s := &Service{
		aggregator: aggregator,
		cache:      NewCache(cacheTTL, metrics),
		cacheTTL:   cacheTTL,
		logger:     logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CacheTTL reports the configured snapshot time-to-live.
func (s *Service) CacheTTL() time.Duration {
	return s.cacheTTL
}

// GetSnapshot returns the snapshot for a window, building it on a cache
// miss. With regenerate set, the cached entry is dropped first.
func (s *Service) GetSnapshot(ctx context.Context, rawWindow string, regenerate bool) (*Snapshot, error) {
	window, err := ParseWindow(rawWindow)
	if err != nil {
		return nil, err
	}

	if regenerate {
		s.cache.Invalidate(window)
	}

	entry, err := s.cache.GetOrSet(ctx, window, func(ctx context.Context) (*Snapshot, error) {
		return s.buildSnapshot(ctx, window)
	})
	if err != nil {
		return nil, err
	}

	return snapshotWithExpiry(entry), nil
}

// RegenerateSnapshot forces a rebuild for the window.
func (s *Service) RegenerateSnapshot(ctx context.Context, rawWindow string) (*Snapshot, error) {
	return s.GetSnapshot(ctx, rawWindow, true)
}

// CreateShare issues a bearer token for the window's current snapshot.
func (s *Service) CreateShare(ctx context.Context, rawWindow string, expiresAt *time.Time) (*Share, error) {
	if s.shares == nil {
		return nil, ErrSharingNotConfigured
	}

	snapshot, err := s.GetSnapshot(ctx, rawWindow, false)
	if err != nil {
		return nil, err
	}

	payload, err := json.Marshal(snapshot)
	if err != nil {
		return nil, fmt.Errorf("serialize snapshot: %w", err)
	}

	if expiresAt == nil {
		expiresAt = snapshot.CacheExpiresAt
	}

	token, _, err := s.shares.CreateShare(ctx, snapshot.Window, payload, expiresAt)
	if err != nil {
		return nil, err
	}

	shareURL, err := s.buildShareURL(token)
	if err != nil {
		return nil, err
	}

	return &Share{
		Token:          token,
		URL:            shareURL,
		Window:         snapshot.Window,
		GeneratedAt:    snapshot.GeneratedAt,
		CacheExpiresAt: snapshot.CacheExpiresAt,
	}, nil
}

// GetSharedSnapshot resolves a share token to a snapshot. It prefers a
// fresh snapshot but deliberately falls back to the last persisted payload
// when the live path fails: availability over freshness, on this read path
// only. A window override must match the token's recorded window.
func (s *Service) GetSharedSnapshot(ctx context.Context, token, rawWindow string) (*Snapshot, error) {
	if s.shares == nil {
		return nil, ErrSharingNotConfigured
	}

	record, err := s.shares.GetShare(ctx, token)
	if err != nil {
		return nil, err
	}

	window := record.Window
	if rawWindow != "" {
		override, err := ParseWindow(rawWindow)
		if err != nil {
			return nil, err
		}
		if override != record.Window {
			return nil, ErrWindowMismatch
		}
		window = override
	}

	snapshot, err := s.GetSnapshot(ctx, string(window), false)
	if err != nil {
		var persisted Snapshot
		if unmarshalErr := json.Unmarshal(record.Payload, &persisted); unmarshalErr != nil {
			return nil, err
		}
		s.logger.Warn("live insight refresh failed, serving persisted share payload",
			zap.String("window", string(window)), zap.Error(err))
		return &persisted, nil
	}

	payload, err := json.Marshal(snapshot)
	if err == nil {
		if err := s.shares.UpdatePayload(ctx, token, payload, snapshot.CacheExpiresAt); err != nil {
			s.logger.Warn("failed to refresh share payload", zap.Error(err))
		}
	}

	return snapshot, nil
}

// buildSnapshot runs the aggregator and summary generator. Expiry is a
// cache-layer concern, so CacheExpiresAt is left unset here.
func (s *Service) buildSnapshot(ctx context.Context, window Window) (*Snapshot, error) {
	aggregated, err := s.aggregator.Aggregate(ctx, window, time.Time{})
	if err != nil {
		return nil, err
	}

	return &Snapshot{
		Window:         aggregated.Window,
		GeneratedAt:    aggregated.GeneratedAt,
		Summary:        BuildFallbackSummary(aggregated),
		SummarySource:  SummarySourceFallback,
		SeverityTotals: aggregated.SeverityTotals,
		Series:         aggregated.Series,
		TopLabels:      aggregated.TopLabels,
		Delta:          aggregated.Delta,
	}, nil
}

// snapshotWithExpiry annotates a copy of the cached snapshot with the
// entry's expiry. The cache keeps the canonical value untouched.
func snapshotWithExpiry(entry *CacheEntry) *Snapshot {
	snapshot := *entry.Value
	snapshot.CacheExpiresAt = entry.ExpiresAt
	return &snapshot
}

func (s *Service) buildShareURL(token string) (string, error) {
	if s.baseURL == "" {
		return "", errors.New("share base URL is not configured")
	}

	origin := strings.TrimRight(s.baseURL, "/")
	if parsed, err := url.Parse(s.baseURL); err == nil && parsed.Scheme != "" && parsed.Host != "" {
		origin = parsed.Scheme + "://" + parsed.Host
	}
	return origin + "/share/" + token, nil
}
