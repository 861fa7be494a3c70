package analysis

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"firedesk/internal/firebreak"
	"firedesk/internal/metrics"
)

// eventBuffer is the per-run event channel capacity. A slow watcher drops
// events rather than stalling the analysis.
const eventBuffer = 128

// retainClosed keeps a finished run's channel reachable for late watchers
// before it is swept.
const retainClosed = 5 * time.Minute

// Service owns Firebreak analysis runs: synchronous execution for blocking
// callers and background runs with watchable event channels.
type Service struct {
	runner *firebreak.Runner

	mu   sync.RWMutex
	runs map[string]chan firebreak.Event
}

func New(runner *firebreak.Runner) *Service {
	return &Service{
		runner: runner,
		runs:   make(map[string]chan firebreak.Event),
	}
}

// Analyze runs one analysis to completion and returns the validated result.
func (s *Service) Analyze(ctx context.Context, runID string) (*firebreak.AnalysisResult, string, error) {
	start := time.Now()
	result, analysisID, err := s.runner.Run(ctx, runID, nil)
	outcome := metrics.OutcomeSuccess
	if err != nil {
		outcome = metrics.OutcomeError
	}
	metrics.ObserveAnalysis(time.Since(start), outcome)
	return result, analysisID, err
}

// StartRun launches an analysis in the background and returns its run id.
// Events stream on the channel returned by EventChannel until the run ends.
func (s *Service) StartRun(runID string) string {
	if runID == "" {
		runID = fmt.Sprintf("firebreak-%d", time.Now().UnixNano())
	}

	ch := make(chan firebreak.Event, eventBuffer)
	s.mu.Lock()
	s.runs[runID] = ch
	s.mu.Unlock()

	go func() {
		defer s.finishRun(runID, ch)

		start := time.Now()
		// Detached from the caller's request context: the run outlives the
		// HTTP request that started it.
		_, _, err := s.runner.Run(context.Background(), runID, func(ev firebreak.Event) {
			select {
			case ch <- ev:
			default:
				log.Printf("analysis: run %s: event buffer full, dropping %s", runID, ev.Type)
			}
		})
		outcome := metrics.OutcomeSuccess
		if err != nil {
			outcome = metrics.OutcomeError
			log.Printf("analysis: run %s failed: %v", runID, err)
			select {
			case ch <- firebreak.Event{Type: firebreak.EventErrored, Message: err.Error()}:
			default:
			}
		}
		metrics.ObserveAnalysis(time.Since(start), outcome)
	}()

	return runID
}

// EventChannel returns the live event channel for a run.
func (s *Service) EventChannel(runID string) (<-chan firebreak.Event, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ch, ok := s.runs[runID]
	return ch, ok
}

func (s *Service) finishRun(runID string, ch chan firebreak.Event) {
	close(ch)
	time.AfterFunc(retainClosed, func() {
		s.mu.Lock()
		delete(s.runs, runID)
		s.mu.Unlock()
	})
}
