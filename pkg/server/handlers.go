package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"

	"vitacheck/engine/pkg/analysis"
	"vitacheck/engine/pkg/normalize"
)

type errorResponse struct {
	Error         string `json:"error"`
	CorrelationID string `json:"correlationId,omitempty"`
}

type healthResponse struct {
	Status      string `json:"status"`
	CalcVersion string `json:"calcVersion"`
}

func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	var req analysis.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, start, http.StatusBadRequest, "request body is not valid JSON", "")
		return
	}
	if !s.allowTrace {
		req.Options.Debug = false
	}

	resp, err := s.analyzer.Analyze(r.Context(), &req)
	if err != nil {
		var invalid *normalize.InvalidInputError
		if errors.As(err, &invalid) {
			s.writeError(w, start, http.StatusBadRequest, invalid.Reason, "")
			return
		}
		// Internal failures get an opaque body. The correlation id links the
		// response to the log line carrying the real error.
		id := uuid.NewString()[:8]
		s.logger.Error("analysis failed", "correlation_id", id, "error", err)
		s.writeError(w, start, http.StatusInternalServerError, "internal error", id)
		return
	}

	s.writeJSON(w, start, http.StatusOK, resp)
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, time.Now(), http.StatusOK, healthResponse{
		Status:      "ok",
		CalcVersion: analysis.CalcVersion,
	})
}

func (s *Server) writeError(w http.ResponseWriter, start time.Time, status int, msg, correlationID string) {
	s.writeJSON(w, start, status, errorResponse{Error: msg, CorrelationID: correlationID})
}

func (s *Server) writeJSON(w http.ResponseWriter, start time.Time, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		s.logger.Error("write response", "error", err)
	}
	if s.metrics != nil {
		s.metrics.ObserveRequest(status, time.Since(start))
	}
}
