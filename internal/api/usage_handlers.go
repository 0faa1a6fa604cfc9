package api

import (
	"errors"
	"net/http"

	"github.com/clipnotes/clipnotes/internal/usage"
	"go.uber.org/zap"
)

// handleGetUsage serves GET /api/metrics/usage?window=
func (s *Server) handleGetUsage(w http.ResponseWriter, r *http.Request) {
	report, err := s.usage.GetMetrics(r.Context(), r.URL.Query().Get("window"))
	if err != nil {
		if errors.Is(err, usage.ErrInvalidMetricsWindow) {
			s.writeError(w, http.StatusBadRequest, "invalid_window", "Window parameter is invalid.", err.Error())
			return
		}
		s.logger.Error("usage metrics failed", zap.Error(err))
		s.writeError(w, http.StatusInternalServerError, "metrics_error", "Failed to compute usage metrics.", "")
		return
	}

	s.writeJSON(w, http.StatusOK, report)
}
