package api

import (
	"net/http"
	"strconv"

	"github.com/nerrad567/flashlight-core/internal/device"
)

// historyDefaultLimit and historyMaxLimit bound GET /history.
const (
	historyDefaultLimit = 50
	historyMaxLimit     = 500
)

// handleCurrentState returns {"is_turned_on": bool, "color": "#rrggbb"}.
func (s *Server) handleCurrentState(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.state.Snapshot())
}

// historyResponse is the body of GET /history.
type historyResponse struct {
	Entries []device.HistoryEntry `json:"entries"`
	Count   int                   `json:"count"`
}

// handleHistory returns state changes recorded since process start, newest first.
func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	limit := historyDefaultLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			writeBadRequest(w, "limit must be a positive integer")
			return
		}
		limit = min(n, historyMaxLimit)
	}

	if s.history == nil {
		writeJSON(w, http.StatusOK, historyResponse{Entries: []device.HistoryEntry{}})
		return
	}

	entries, err := s.history.List(r.Context(), limit)
	if err != nil {
		s.logger.Error("listing state history", "error", err)
		writeInternalError(w, "failed to read history")
		return
	}
	if entries == nil {
		entries = []device.HistoryEntry{}
	}

	writeJSON(w, http.StatusOK, historyResponse{Entries: entries, Count: len(entries)})
}

// healthResponse is the body of GET /health.
type healthResponse struct {
	Status   string `json:"status"`
	Upstream string `json:"upstream"`
	Version  string `json:"version"`
	Error    string `json:"error,omitempty"`
}

// handleHealth returns 200 while the reader is receiving commands and 503 otherwise.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{
		Status:   "ok",
		Upstream: s.upstream.Stats().State.String(),
		Version:  s.version,
	}

	if err := s.upstream.HealthCheck(r.Context()); err != nil {
		resp.Status = "degraded"
		resp.Error = err.Error()
		writeJSON(w, http.StatusServiceUnavailable, resp)
		return
	}

	writeJSON(w, http.StatusOK, resp)
}
