package firebreak

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"firedesk/internal/gateway/entity"
	"firedesk/internal/gateway/repository/analysisstore"
	"firedesk/internal/gateway/repository/identity"
	"firedesk/internal/gateway/repository/ticketstore"
	"firedesk/internal/metrics"
)

// ErrAttribution marks a failure to resolve the workspace or system account
// the analysis must be attributed to. The analysis is discarded rather than
// persisted without attribution.
var ErrAttribution = errors.New("firebreak: failed to get workspace/user")

// Materializer persists a validated, completed analysis: the analysis record
// always, and one real incident ticket per proposed incident when the model
// both identified patterns and proposed incidents.
type Materializer struct {
	Identity      identity.Lookup
	Tickets       ticketstore.Store
	Analyses      analysisstore.Store
	WorkspaceSlug string
}

// Persist writes the analysis and any incidents, then returns the result the
// caller should render: proposed incident ids are replaced with the real
// persisted ticket ids, and created_incidents is echoed as [] when nothing
// was materialized. Re-running the pipeline is deliberately not idempotent.
func (m *Materializer) Persist(ctx context.Context, result *AnalysisResult) (*AnalysisResult, string, error) {
	slug := m.WorkspaceSlug
	if slug == "" {
		slug = entity.DemoWorkspaceSlug
	}
	workspaceID, err := m.Identity.WorkspaceIDBySlug(ctx, slug)
	if err != nil {
		return nil, "", fmt.Errorf("%w: %v", ErrAttribution, err)
	}
	systemID, err := m.Identity.SystemAccountID(ctx)
	if err != nil {
		return nil, "", fmt.Errorf("%w: %v", ErrAttribution, err)
	}

	foundJSON, err := json.Marshal(result.FoundTickets)
	if err != nil {
		return nil, "", fmt.Errorf("firebreak: encode found tickets: %w", err)
	}
	patternsJSON, err := json.Marshal(result.IdentifiedPatterns)
	if err != nil {
		return nil, "", fmt.Errorf("firebreak: encode patterns: %w", err)
	}

	analysisID, err := m.Analyses.Insert(ctx, analysisstore.Record{
		TotalTickets:       result.AnalysisState.TotalTickets,
		TimeWindow:         result.AnalysisState.TimeWindow,
		Status:             string(result.AnalysisState.Status),
		FoundTickets:       foundJSON,
		IdentifiedPatterns: patternsJSON,
		CreatedIncidentIDs: []string{},
		WorkspaceID:        workspaceID,
		CreatedBy:          systemID,
	})
	if err != nil {
		return nil, "", fmt.Errorf("firebreak: persist analysis: %w", err)
	}

	echo := *result
	echo.CreatedIncidents = []CreatedIncident{}

	if len(result.IdentifiedPatterns) == 0 || len(result.CreatedIncidents) == 0 {
		return &echo, analysisID, nil
	}

	incidentIDs := make([]string, 0, len(result.CreatedIncidents))
	persisted := make([]CreatedIncident, 0, len(result.CreatedIncidents))
	for _, inc := range result.CreatedIncidents {
		linked, err := m.Tickets.GetByIDs(ctx, inc.LinkedTicketIDs)
		if err != nil {
			return nil, analysisID, fmt.Errorf("firebreak: resolve linked tickets: %w", err)
		}
		ticket, err := m.Tickets.Create(ctx, entity.Ticket{
			Subject:        incidentSubject(inc.Subject),
			Description:    incidentDescription(inc.Description, linked),
			Status:         entity.TicketOpen,
			Priority:       entity.PriorityHigh,
			CustomerID:     systemID,
			WorkspaceID:    workspaceID,
			AnalysisID:     analysisID,
			CrisisKeywords: affectedSystemsFor(result.IdentifiedPatterns, inc.PatternName),
		})
		if err != nil {
			// The analysis record is already saved; callers tolerate this
			// partial state by re-reading it.
			return nil, analysisID, fmt.Errorf("firebreak: persist incident: %w", err)
		}
		for _, lt := range linked {
			if err := m.Tickets.SetParentTicket(ctx, lt.ID, ticket.ID); err != nil {
				return nil, analysisID, fmt.Errorf("firebreak: link ticket %s: %w", lt.ID, err)
			}
		}
		incidentIDs = append(incidentIDs, ticket.ID)
		inc.ID = ticket.ID
		persisted = append(persisted, inc)
	}

	if err := m.Analyses.UpdateIncidentIDs(ctx, analysisID, incidentIDs); err != nil {
		return nil, analysisID, fmt.Errorf("firebreak: attach incident ids: %w", err)
	}
	metrics.ObserveIncidentsCreated(len(incidentIDs))

	echo.CreatedIncidents = persisted
	return &echo, analysisID, nil
}

func incidentSubject(subject string) string {
	subject = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(subject), entity.IncidentSubjectPrefix))
	return entity.IncidentSubjectPrefix + subject
}

func affectedSystemsFor(patterns []IdentifiedPattern, patternName string) []string {
	for _, p := range patterns {
		if p.Name == patternName {
			return p.AffectedSystems
		}
	}
	return nil
}
