package firebreak

import (
	"context"
	"fmt"
	"log"

	"firedesk/internal/gateway/repository/analysisstore"
	"firedesk/internal/gateway/repository/identity"
	"firedesk/internal/gateway/repository/ticketstore"
	"firedesk/internal/gateway/repository/transcript"
	"firedesk/internal/llmclient"
)

// Runner is the single entry point for one Firebreak analysis: control loop,
// result validation, then materialization. A new run-scoped tool registry is
// built per call so no analysis state leaks between runs.
type Runner struct {
	LLM           llmclient.LLMClient
	Tickets       ticketstore.Store
	Identity      identity.Lookup
	Analyses      analysisstore.Store
	Transcripts   *transcript.S3Store // optional archive
	WorkspaceSlug string
	MaxIterations int
}

// Run executes a full analysis. runID names the run for transcript archiving;
// emit (optional) receives step events. On success the returned result
// carries the persisted incident ids.
func (r *Runner) Run(ctx context.Context, runID string, emit EmitFunc) (*AnalysisResult, string, error) {
	registry := NewRegistry(r.Tickets, r.Identity, r.LLM)
	loop := &Loop{
		LLM:           r.LLM,
		Tools:         registry,
		MaxIterations: r.MaxIterations,
		OnEvent:       emit,
	}

	_, tr, err := loop.Run(ctx)
	if r.Transcripts != nil && tr.Len() > 0 {
		// Archiving is best-effort; a storage hiccup must not fail the run.
		if archiveErr := r.Transcripts.Put(ctx, runID, tr); archiveErr != nil {
			log.Printf("firebreak: archive transcript for run %s: %v", runID, archiveErr)
		}
	}
	if err != nil {
		return nil, "", err
	}

	raw, ok := registry.StructuredResult()
	if !ok {
		return nil, "", fmt.Errorf("%w: the run never reached structure_analysis", ErrInconclusive)
	}

	result, err := ParseResult(raw)
	if err != nil {
		return nil, "", err
	}
	if err := CheckCompleted(result); err != nil {
		return nil, "", err
	}

	mat := &Materializer{
		Identity:      r.Identity,
		Tickets:       r.Tickets,
		Analyses:      r.Analyses,
		WorkspaceSlug: r.WorkspaceSlug,
	}
	echo, analysisID, err := mat.Persist(ctx, result)
	if err != nil {
		return nil, analysisID, err
	}

	emit.emit(Event{Type: EventCompleted, Result: echo})
	return echo, analysisID, nil
}
