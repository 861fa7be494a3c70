package handler

import (
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	"firedesk/internal/firebreak"
)

// HandleRunFirebreak runs one analysis synchronously and returns the
// validated result.
func (s *Service) HandleRunFirebreak(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	runID := fmt.Sprintf("firebreak-%d", time.Now().UnixNano())
	result, analysisID, err := s.analysis.Analyze(r.Context(), runID)
	if err != nil {
		log.Printf("firebreak run %s failed: %v", runID, err)
		status, message := mapAnalysisError(err)
		writeError(w, status, message)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"run_id":      runID,
		"analysis_id": analysisID,
		"result":      result,
	})
}

// HandleStartFirebreak launches a background analysis and returns its run id
// for watching.
func (s *Service) HandleStartFirebreak(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	runID := s.analysis.StartRun("")
	writeJSON(w, http.StatusAccepted, map[string]any{"run_id": runID})
}

func mapAnalysisError(err error) (int, string) {
	switch {
	case errors.Is(err, firebreak.ErrInvalidStructure):
		return http.StatusBadGateway, "Invalid analysis structure"
	case errors.Is(err, firebreak.ErrIncomplete):
		return http.StatusBadGateway, "Analysis incomplete"
	case errors.Is(err, firebreak.ErrInconclusive):
		return http.StatusBadGateway, "Analysis inconclusive"
	case errors.Is(err, firebreak.ErrAttribution):
		return http.StatusInternalServerError, "failed to get workspace/user"
	default:
		return http.StatusInternalServerError, "analysis failed"
	}
}
