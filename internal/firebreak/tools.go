package firebreak

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"firedesk/internal/gateway/repository/identity"
	"firedesk/internal/gateway/repository/ticketstore"
	"firedesk/internal/llmclient"
	"firedesk/internal/metrics"

	"firedesk/internal/chat"
)

// ErrUnknownTool marks a tool name outside the registry's vocabulary. It is
// the only fatal tool failure: it means the model's tool vocabulary and the
// registry disagree, not that the data was bad.
var ErrUnknownTool = errors.New("firebreak: unknown tool")

// ToolKind is the closed set of capabilities the model may invoke. Adding a
// tool means extending this enumeration and the dispatch switch below.
type ToolKind int

const (
	ToolUnknown ToolKind = iota
	ToolGetRecentTickets
	ToolReviewAnalysis
	ToolCreateIncident
	ToolStructureAnalysis
)

const (
	toolNameGetRecentTickets  = "get_recent_tickets"
	toolNameReviewAnalysis    = "review_analysis"
	toolNameCreateIncident    = "create_incident_ticket"
	toolNameStructureAnalysis = "structure_analysis"
)

// KindForName maps a wire tool name onto the enumeration.
func KindForName(name string) ToolKind {
	switch name {
	case toolNameGetRecentTickets:
		return ToolGetRecentTickets
	case toolNameReviewAnalysis:
		return ToolReviewAnalysis
	case toolNameCreateIncident:
		return ToolCreateIncident
	case toolNameStructureAnalysis:
		return ToolStructureAnalysis
	}
	return ToolUnknown
}

// Registry holds the fixed tool set plus the run-scoped analysis state the
// tools accumulate: the original ticket id set, found-ticket snapshots, the
// last structured payload, and the last observed analysis status. One
// Registry serves exactly one analysis run.
//
// Tool bodies must stay independent of their siblings within a single model
// turn: the loop dispatches sibling calls concurrently and assumes no
// ordering dependency between them.
type Registry struct {
	tickets  ticketstore.Store
	identity identity.Lookup
	llm      llmclient.LLMClient

	mu         sync.Mutex
	ticketIDs  map[string]struct{}
	found      []FoundTicket
	structured json.RawMessage
	lastStatus AnalysisStatus
}

func NewRegistry(tickets ticketstore.Store, ident identity.Lookup, llm llmclient.LLMClient) *Registry {
	return &Registry{
		tickets:    tickets,
		identity:   ident,
		llm:        llm,
		ticketIDs:  make(map[string]struct{}),
		lastStatus: StatusAnalyzing,
	}
}

// Definitions returns the tool contracts advertised to the model.
func (r *Registry) Definitions() []chat.ToolDefinition {
	return []chat.ToolDefinition{
		{
			Name: toolNameGetRecentTickets,
			Description: "Fetch support tickets created in the last " + TimeWindowLabel +
				" whose status is open or new. Returns a formatted summary of id, subject, status, description and priority.",
			Parameters: map[string]any{
				"type":       "object",
				"properties": map[string]any{},
			},
		},
		{
			Name: toolNameReviewAnalysis,
			Description: "Validate candidate crisis patterns against full ticket details. " +
				"Converges the evidence onto at most one significant pattern or reports that none qualifies.",
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"tickets": map[string]any{
						"type":        "array",
						"description": "Tickets under consideration.",
						"items": map[string]any{
							"type": "object",
							"properties": map[string]any{
								"id":          map[string]any{"type": "string"},
								"subject":     map[string]any{"type": "string"},
								"description": map[string]any{"type": "string"},
							},
							"required": []string{"id"},
						},
					},
					"patterns": map[string]any{
						"type":        "array",
						"description": "Candidate patterns to validate.",
						"items": map[string]any{
							"type": "object",
							"properties": map[string]any{
								"title":       map[string]any{"type": "string"},
								"description": map[string]any{"type": "string"},
								"severity": map[string]any{
									"type": "string",
									"enum": []string{string(SeverityLow), string(SeverityMedium), string(SeverityHigh)},
								},
								"related_ticket_ids": map[string]any{
									"type":  "array",
									"items": map[string]any{"type": "string"},
								},
							},
							"required": []string{"title", "description", "severity", "related_ticket_ids"},
						},
					},
				},
				"required": []string{"tickets", "patterns"},
			},
		},
		{
			Name: toolNameCreateIncident,
			Description: "Create an incident ticket linking at least 2 related tickets that exhibit " +
				"a confirmed pattern. The incident is created with high priority under the system account.",
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"subject":     map[string]any{"type": "string", "description": "Incident subject, without any prefix"},
					"description": map[string]any{"type": "string", "description": "What is happening and why the tickets are related"},
					"related_tickets": map[string]any{
						"type": "array",
						"items": map[string]any{
							"type": "object",
							"properties": map[string]any{
								"id": map[string]any{"type": "string"},
							},
							"required": []string{"id"},
						},
					},
				},
				"required": []string{"subject", "description", "related_tickets"},
			},
		},
		{
			Name: toolNameStructureAnalysis,
			Description: "Convert the accumulated analysis narrative into the structured analysis result. " +
				"Must be called exactly once at the end of every analysis, even when nothing was found.",
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"analysis": map[string]any{"type": "string", "description": "The full analysis narrative"},
				},
				"required": []string{"analysis"},
			},
		},
	}
}

// Execute dispatches a tool call. Tool input problems come back as
// descriptive string results the model can react to; only an unregistered
// tool name returns an error.
func (r *Registry) Execute(ctx context.Context, name string, args json.RawMessage) (string, error) {
	metrics.ObserveToolCall(name)
	switch KindForName(name) {
	case ToolGetRecentTickets:
		return r.getRecentTickets(ctx)
	case ToolReviewAnalysis:
		return r.reviewAnalysis(ctx, args)
	case ToolCreateIncident:
		return r.createIncidentTicket(ctx, args)
	case ToolStructureAnalysis:
		return r.structureAnalysis(ctx, args)
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownTool, name)
	}
}

// StructuredResult returns the last payload produced by structure_analysis.
func (r *Registry) StructuredResult() (json.RawMessage, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.structured) == 0 {
		return nil, false
	}
	out := make(json.RawMessage, len(r.structured))
	copy(out, r.structured)
	return out, true
}

// knownTicketIDs snapshots the original ticket id set S.
func (r *Registry) knownTicketIDs() (map[string]struct{}, []string, []FoundTicket) {
	r.mu.Lock()
	defer r.mu.Unlock()
	set := make(map[string]struct{}, len(r.ticketIDs))
	ids := make([]string, 0, len(r.ticketIDs))
	for _, ft := range r.found {
		set[ft.ID] = struct{}{}
		ids = append(ids, ft.ID)
	}
	found := make([]FoundTicket, len(r.found))
	copy(found, r.found)
	return set, ids, found
}
