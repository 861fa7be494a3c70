package analysisstore

import (
	"context"
	"encoding/json"
	"time"
)

// Record is one persisted Firebreak analysis run. FoundTickets and
// IdentifiedPatterns are stored as the validated JSON the agent produced;
// CreatedIncidentIDs starts empty and is back-filled exactly once if
// incidents were materialized.
type Record struct {
	ID                 string          `json:"id"`
	TotalTickets       int             `json:"total_tickets"`
	TimeWindow         string          `json:"time_window"`
	Status             string          `json:"status"`
	FoundTickets       json.RawMessage `json:"found_tickets"`
	IdentifiedPatterns json.RawMessage `json:"identified_patterns"`
	CreatedIncidentIDs []string        `json:"created_incident_ids"`
	WorkspaceID        string          `json:"workspace_id"`
	CreatedBy          string          `json:"created_by"`
	CreatedAt          time.Time       `json:"created_at"`
}

// Store persists Firebreak analysis records.
type Store interface {
	Insert(ctx context.Context, rec Record) (string, error)
	UpdateIncidentIDs(ctx context.Context, id string, incidentIDs []string) error
	Get(ctx context.Context, id string) (Record, bool, error)
}
