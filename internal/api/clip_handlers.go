package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/clipnotes/clipnotes/internal/clips"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type createClipRequest struct {
	Filename string `json:"filename"`
}

type saveAnalysisRequest struct {
	Summary      string         `json:"summary"`
	Moments      []clips.Moment `json:"moments"`
	LatencyMS    *int           `json:"latency_ms"`
	ErrorCode    string         `json:"error_code"`
	ErrorMessage string         `json:"error_message"`
}

// handleCreateClip serves POST /api/clips
func (s *Server) handleCreateClip(w http.ResponseWriter, r *http.Request) {
	var req createClipRequest
	if err := decodeBody(r, &req); err != nil || req.Filename == "" {
		s.writeError(w, http.StatusBadRequest, "invalid_request", "A filename is required.", "")
		return
	}

	clip, err := s.clips.CreateClip(r.Context(), req.Filename)
	if err != nil {
		s.logger.Error("failed to create clip", zap.Error(err))
		s.writeError(w, http.StatusInternalServerError, "clip_error", "Failed to register clip.", "")
		return
	}

	s.writeJSON(w, http.StatusCreated, clip)
}

// handleListClips serves GET /api/clips?limit=
func (s *Server) handleListClips(w http.ResponseWriter, r *http.Request) {
	limit := 25
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
			limit = parsed
		}
	}

	list, err := s.clips.ListClips(r.Context(), limit)
	if err != nil {
		s.logger.Error("failed to list clips", zap.Error(err))
		s.writeError(w, http.StatusInternalServerError, "clip_error", "Failed to list clips.", "")
		return
	}
	if list == nil {
		list = []*clips.Clip{}
	}

	s.writeJSON(w, http.StatusOK, map[string]interface{}{"clips": list})
}

// handleGetClip serves GET /api/clips/{id}
func (s *Server) handleGetClip(w http.ResponseWriter, r *http.Request) {
	id, ok := s.clipID(w, r)
	if !ok {
		return
	}

	clip, err := s.clips.GetClip(r.Context(), id)
	if err != nil {
		s.writeClipError(w, err)
		return
	}

	s.writeJSON(w, http.StatusOK, clip)
}

// handleDeleteClip serves DELETE /api/clips/{id}
func (s *Server) handleDeleteClip(w http.ResponseWriter, r *http.Request) {
	id, ok := s.clipID(w, r)
	if !ok {
		return
	}

	if err := s.clips.DeleteClip(r.Context(), id); err != nil {
		s.writeClipError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// handleGetLatestAnalysis serves GET /api/clips/{id}/analysis
func (s *Server) handleGetLatestAnalysis(w http.ResponseWriter, r *http.Request) {
	id, ok := s.clipID(w, r)
	if !ok {
		return
	}

	analysis, err := s.clips.LatestAnalysis(r.Context(), id)
	if err != nil {
		s.writeClipError(w, err)
		return
	}
	if analysis == nil {
		s.writeError(w, http.StatusNotFound, "analysis_not_found", "No analysis exists for this clip.", "")
		return
	}

	s.writeJSON(w, http.StatusOK, analysis)
}

// handleSaveAnalysis serves POST /api/clips/{id}/analysis
func (s *Server) handleSaveAnalysis(w http.ResponseWriter, r *http.Request) {
	id, ok := s.clipID(w, r)
	if !ok {
		return
	}

	var req saveAnalysisRequest
	if err := decodeBody(r, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid_request", "Request body is invalid.", err.Error())
		return
	}

	analysis, err := s.clips.SaveAnalysis(r.Context(), id, clips.AnalysisPayload{
		Summary:      req.Summary,
		Moments:      req.Moments,
		LatencyMS:    req.LatencyMS,
		ErrorCode:    req.ErrorCode,
		ErrorMessage: req.ErrorMessage,
	})
	if err != nil {
		s.writeClipError(w, err)
		return
	}

	s.writeJSON(w, http.StatusCreated, analysis)
}

func (s *Server) clipID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid_clip_id", "Clip id must be a UUID.", "")
		return uuid.Nil, false
	}
	return id, true
}

func (s *Server) writeClipError(w http.ResponseWriter, err error) {
	if errors.Is(err, clips.ErrClipNotFound) {
		s.writeError(w, http.StatusNotFound, "clip_not_found", "Clip was not found.", "")
		return
	}
	s.logger.Error("clip request failed", zap.Error(err))
	s.writeError(w, http.StatusInternalServerError, "clip_error", "Clip operation failed.", "")
}
