package entity

import (
	"strings"
	"time"
)

// TicketStatus is the lifecycle state of a support ticket.
type TicketStatus string

const (
	TicketNew     TicketStatus = "new"
	TicketOpen    TicketStatus = "open"
	TicketPending TicketStatus = "pending"
	TicketClosed  TicketStatus = "closed"
)

// TicketPriority is the urgency level of a support ticket.
type TicketPriority string

const (
	PriorityLow    TicketPriority = "low"
	PriorityMedium TicketPriority = "medium"
	PriorityHigh   TicketPriority = "high"
)

// IncidentSubjectPrefix marks tickets that represent a confirmed crisis
// pattern rather than a customer request.
const IncidentSubjectPrefix = "[INCIDENT] "

// Ticket is a support ticket record. The crisis metadata fields
// (ParentTicketID, CrisisKeywords, ChaosScore) track incident membership:
// ParentTicketID is a weak back-reference to an incident ticket and carries
// no ownership semantics.
type Ticket struct {
	ID             string         `json:"id"`
	Subject        string         `json:"subject"`
	Description    string         `json:"description"`
	Status         TicketStatus   `json:"status"`
	Priority       TicketPriority `json:"priority"`
	CustomerID     string         `json:"customer_id"`
	AgentID        string         `json:"agent_id,omitempty"`
	WorkspaceID    string         `json:"workspace_id"`
	ParentTicketID *string        `json:"parent_ticket_id,omitempty"`
	CrisisKeywords []string       `json:"crisis_keywords,omitempty"`
	ChaosScore     *float64       `json:"chaos_score,omitempty"`
	AnalysisID     string         `json:"analysis_id,omitempty"`
	CreatedAt      time.Time      `json:"created_at"`
}

// IsIncident reports whether the ticket is a materialized incident record.
func (t Ticket) IsIncident() bool {
	return strings.HasPrefix(t.Subject, IncidentSubjectPrefix)
}
