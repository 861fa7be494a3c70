package firebreak

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"firedesk/internal/chat"
)

type reviewPattern struct {
	Title            string   `json:"title"`
	Description      string   `json:"description"`
	Severity         Severity `json:"severity"`
	RelatedTicketIDs []string `json:"related_ticket_ids"`
}

type reviewInput struct {
	Tickets []struct {
		ID          string `json:"id"`
		Subject     string `json:"subject,omitempty"`
		Description string `json:"description,omitempty"`
	} `json:"tickets"`
	Patterns []reviewPattern `json:"patterns"`
}

// reviewAnalysis re-fetches full ticket details and runs the single-cluster
// validation pass. The verdict is free text; it is only made machine-readable
// later by structure_analysis.
func (r *Registry) reviewAnalysis(ctx context.Context, args json.RawMessage) (string, error) {
	var in reviewInput
	if err := json.Unmarshal(args, &in); err != nil {
		return fmt.Sprintf("Invalid review_analysis arguments: %v", err), nil
	}

	ids := make([]string, 0, len(in.Tickets))
	for _, t := range in.Tickets {
		if id := strings.TrimSpace(t.ID); id != "" {
			ids = append(ids, id)
		}
	}
	full, err := r.tickets.GetByIDs(ctx, ids)
	if err != nil {
		return fmt.Sprintf("Error fetching ticket details for review: %v", err), nil
	}
	snapshots := make([]FoundTicket, 0, len(full))
	for _, t := range full {
		snapshots = append(snapshots, FoundTicket{
			ID:          t.ID,
			Subject:     t.Subject,
			Description: t.Description,
			Status:      string(t.Status),
		})
	}

	resp, err := r.llm.Complete(ctx,
		[]chat.Message{chat.UserMessage(reviewPrompt(snapshots, in.Patterns))}, nil)
	if err != nil {
		return fmt.Sprintf("Error running the review pass: %v", err), nil
	}
	if strings.TrimSpace(resp.Content) == "" {
		return "The review pass returned no verdict; treat the candidate patterns as unconfirmed.", nil
	}
	return resp.Content, nil
}

type structureInput struct {
	Analysis string `json:"analysis"`
}

// structureAnalysis runs the schema-constrained structuring call, then
// mechanically enforces ticket-id fidelity (only ids from the original set
// survive) and status monotonicity before recording the payload.
func (r *Registry) structureAnalysis(ctx context.Context, args json.RawMessage) (string, error) {
	var in structureInput
	if err := json.Unmarshal(args, &in); err != nil {
		return fmt.Sprintf("Invalid structure_analysis arguments: %v", err), nil
	}
	if strings.TrimSpace(in.Analysis) == "" {
		return "structure_analysis requires the analysis narrative.", nil
	}

	known, ids, found := r.knownTicketIDs()
	raw, err := r.llm.CompleteStructured(ctx, structuringPrompt(in.Analysis, ids, found), resultSchema())
	if err != nil {
		return fmt.Sprintf("Error structuring the analysis: %v", err), nil
	}

	var result AnalysisResult
	if err := json.Unmarshal(raw, &result); err != nil {
		// Record the payload as-is; the validator reports the failure.
		r.recordStructured(raw, StatusAnalyzing)
		return string(raw), nil
	}

	filterTicketIDs(&result, known)
	result.AnalysisState.Status = r.clampStatus(result.AnalysisState.Status)

	payload, err := json.Marshal(&result)
	if err != nil {
		return fmt.Sprintf("Error encoding the structured analysis: %v", err), nil
	}
	r.recordStructured(payload, result.AnalysisState.Status)
	return string(payload), nil
}

func (r *Registry) recordStructured(raw json.RawMessage, status AnalysisStatus) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.structured = raw
	r.lastStatus = status
}

// clampStatus keeps the analysis status monotonic: once a terminal status has
// been observed it never regresses to analyzing.
func (r *Registry) clampStatus(next AnalysisStatus) AnalysisStatus {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.lastStatus.Terminal() && !next.Terminal() {
		return r.lastStatus
	}
	return next
}

// filterTicketIDs drops every ticket id outside the original set S from
// found_tickets, pattern references and incident links.
func filterTicketIDs(result *AnalysisResult, known map[string]struct{}) {
	kept := result.FoundTickets[:0]
	for _, ft := range result.FoundTickets {
		if _, ok := known[ft.ID]; ok {
			kept = append(kept, ft)
		}
	}
	result.FoundTickets = kept

	for i := range result.IdentifiedPatterns {
		result.IdentifiedPatterns[i].RelatedTicketIDs =
			keepKnown(result.IdentifiedPatterns[i].RelatedTicketIDs, known)
	}
	for i := range result.CreatedIncidents {
		result.CreatedIncidents[i].LinkedTicketIDs =
			keepKnown(result.CreatedIncidents[i].LinkedTicketIDs, known)
	}
}

func keepKnown(ids []string, known map[string]struct{}) []string {
	kept := ids[:0]
	for _, id := range ids {
		if _, ok := known[id]; ok {
			kept = append(kept, id)
		}
	}
	return kept
}
