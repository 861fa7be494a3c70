package handler

import (
	"encoding/json"
	"net/http"

	"firedesk/internal/gateway/service/analysis"
)

// Service implements the gateway HTTP API. It holds the analysis service as
// its single dependency.
type Service struct {
	analysis *analysis.Service
}

// NewService creates a gateway handler backed by the given analysis service.
func NewService(a *analysis.Service) *Service {
	return &Service{analysis: a}
}

func (s *Service) HandleHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]any{"error": message})
}
