package clips

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStore_ClipLifecycle(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	clip, err := store.CreateClip(ctx, "porch-cam.mp4")
	require.NoError(t, err)
	assert.Equal(t, StatusPending, clip.Status)
	assert.Equal(t, "porch-cam.mp4", clip.Filename)
	assert.NotEqual(t, uuid.Nil, clip.ID)

	fetched, err := store.GetClip(ctx, clip.ID)
	require.NoError(t, err)
	assert.Equal(t, clip.ID, fetched.ID)

	attached, err := store.AttachAsset(ctx, clip.ID, "asset-42")
	require.NoError(t, err)
	assert.Equal(t, "asset-42", attached.AssetID)

	require.NoError(t, store.DeleteClip(ctx, clip.ID))

	_, err = store.GetClip(ctx, clip.ID)
	assert.ErrorIs(t, err, ErrClipNotFound)
	assert.ErrorIs(t, store.DeleteClip(ctx, clip.ID), ErrClipNotFound)
}

func TestMemoryStore_SaveAnalysis(t *testing.T) {
	ctx := context.Background()

	t.Run("successful run marks the clip ready", func(t *testing.T) {
		store := NewMemoryStore()
		clip, err := store.CreateClip(ctx, "dock.mp4")
		require.NoError(t, err)

		latency := 1200
		analysis, err := store.SaveAnalysis(ctx, clip.ID, AnalysisPayload{
			Summary:   "quiet afternoon",
			Moments:   []Moment{{StartS: 1, EndS: 4, Label: "delivery", Severity: "low"}},
			LatencyMS: &latency,
		})
		require.NoError(t, err)
		assert.Equal(t, clip.ID, analysis.ClipID)
		assert.Len(t, analysis.Moments, 1)

		updated, err := store.GetClip(ctx, clip.ID)
		require.NoError(t, err)
		assert.Equal(t, StatusReady, updated.Status)
		require.NotNil(t, updated.LastAnalysisAt)
		require.NotNil(t, updated.LatencyMS)
		assert.Equal(t, 1200, *updated.LatencyMS)
	})

	t.Run("failed run marks the clip failed", func(t *testing.T) {
		store := NewMemoryStore()
		clip, err := store.CreateClip(ctx, "dock.mp4")
		require.NoError(t, err)

		_, err = store.SaveAnalysis(ctx, clip.ID, AnalysisPayload{
			ErrorCode:    "provider_timeout",
			ErrorMessage: "upstream timed out",
		})
		require.NoError(t, err)

		updated, err := store.GetClip(ctx, clip.ID)
		require.NoError(t, err)
		assert.Equal(t, StatusFailed, updated.Status)
	})

	t.Run("unknown clip", func(t *testing.T) {
		store := NewMemoryStore()
		_, err := store.SaveAnalysis(ctx, uuid.New(), AnalysisPayload{})
		assert.ErrorIs(t, err, ErrClipNotFound)
	})
}

func TestMemoryStore_LatestAnalysis(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	clip, err := store.CreateClip(ctx, "yard.mp4")
	require.NoError(t, err)

	latest, err := store.LatestAnalysis(ctx, clip.ID)
	require.NoError(t, err)
	assert.Nil(t, latest)

	now := time.Now().UTC()
	store.AddAnalysis(clip.ID, now.Add(-2*time.Hour), []Moment{{Label: "older"}})
	newest := store.AddAnalysis(clip.ID, now.Add(-time.Minute), []Moment{{Label: "newer"}})

	latest, err = store.LatestAnalysis(ctx, clip.ID)
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.Equal(t, newest.ID, latest.ID)
}

func TestMemoryStore_ListAnalysesBetween(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	clipID := uuid.New()

	base := time.Date(2026, 8, 29, 12, 0, 0, 0, time.UTC)
	store.AddAnalysis(clipID, base.Add(-3*time.Hour), nil)
	store.AddAnalysis(clipID, base.Add(-time.Hour), nil)
	store.AddAnalysis(clipID, base, nil)

	t.Run("since is inclusive, until is exclusive", func(t *testing.T) {
		out, err := store.ListAnalysesBetween(ctx, base.Add(-3*time.Hour), base)
		require.NoError(t, err)
		require.Len(t, out, 2)
		assert.True(t, out[0].CreatedAt.Before(out[1].CreatedAt))
	})

	t.Run("zero until is unbounded", func(t *testing.T) {
		out, err := store.ListAnalysesBetween(ctx, base.Add(-time.Hour), time.Time{})
		require.NoError(t, err)
		assert.Len(t, out, 2)
	})
}

func TestMemoryStore_ListClips(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	for i := 0; i < 3; i++ {
		_, err := store.CreateClip(ctx, "clip.mp4")
		require.NoError(t, err)
	}

	out, err := store.ListClips(ctx, 2)
	require.NoError(t, err)
	assert.Len(t, out, 2)
}
