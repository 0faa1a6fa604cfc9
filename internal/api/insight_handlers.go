package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/clipnotes/clipnotes/internal/insights"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

type insightWindowRequest struct {
	Window string `json:"window"`
}

// handleGetInsights serves GET /api/insights?window=
func (s *Server) handleGetInsights(w http.ResponseWriter, r *http.Request) {
	window := r.URL.Query().Get("window")
	if window == "" {
		window = "24h"
	}

	snapshot, err := s.insights.GetSnapshot(r.Context(), window, false)
	if err != nil {
		s.writeInsightError(w, err)
		return
	}

	s.applyCacheHeaders(w)
	s.writeJSON(w, http.StatusOK, snapshot)
}

// handleRegenerateInsights serves POST /api/insights/regenerate
func (s *Server) handleRegenerateInsights(w http.ResponseWriter, r *http.Request) {
	req := insightWindowRequest{Window: "24h"}
	if err := decodeBody(r, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid_request", "Request body is invalid.", err.Error())
		return
	}

	snapshot, err := s.insights.RegenerateSnapshot(r.Context(), req.Window)
	if err != nil {
		s.writeInsightError(w, err)
		return
	}

	s.applyCacheHeaders(w)
	s.writeJSON(w, http.StatusOK, snapshot)
}

// handleCreateShare serves POST /api/insights/share
func (s *Server) handleCreateShare(w http.ResponseWriter, r *http.Request) {
	req := insightWindowRequest{Window: "24h"}
	if err := decodeBody(r, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid_request", "Request body is invalid.", err.Error())
		return
	}

	share, err := s.insights.CreateShare(r.Context(), req.Window, nil)
	if err != nil {
		s.writeInsightError(w, err)
		return
	}

	s.writeJSON(w, http.StatusCreated, share)
}

// handleGetShare serves GET /api/insights/share/{token}?window=
func (s *Server) handleGetShare(w http.ResponseWriter, r *http.Request) {
	token := chi.URLParam(r, "token")
	window := r.URL.Query().Get("window")

	snapshot, err := s.insights.GetSharedSnapshot(r.Context(), token, window)
	if err != nil {
		s.writeInsightError(w, err)
		return
	}

	s.applyCacheHeaders(w)
	s.writeJSON(w, http.StatusOK, snapshot)
}

func (s *Server) writeInsightError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, insights.ErrInvalidWindow):
		s.writeError(w, http.StatusBadRequest, "invalid_window", "Window parameter is invalid.", err.Error())
	case errors.Is(err, insights.ErrWindowMismatch):
		s.writeError(w, http.StatusBadRequest, "window_mismatch", "Requested window does not match share token.", err.Error())
	case errors.Is(err, insights.ErrShareTokenNotFound):
		s.writeError(w, http.StatusNotFound, "share_not_found", "Share token was not found.", "")
	case errors.Is(err, insights.ErrSharingNotConfigured):
		s.writeError(w, http.StatusServiceUnavailable, "share_unavailable", "Insight sharing is temporarily unavailable.", err.Error())
	default:
		s.logger.Error("insight request failed", zap.Error(err))
		s.writeError(w, http.StatusInternalServerError, "insight_error", "Failed to build insight snapshot.", "")
	}
}

func (s *Server) applyCacheHeaders(w http.ResponseWriter) {
	ttl := int(s.insights.CacheTTL().Seconds())
	if ttl <= 0 {
		w.Header().Set("Cache-Control", "no-store")
		return
	}
	w.Header().Set("Cache-Control", fmt.Sprintf("public, max-age=%d", ttl))
}

func decodeBody(r *http.Request, v interface{}) error {
	if r.Body == nil || r.ContentLength == 0 {
		return nil
	}
	return json.NewDecoder(r.Body).Decode(v)
}
