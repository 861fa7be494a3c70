package firebreak

import (
	"fmt"
	"strings"
)

// AnalysisStatus is the lifecycle state of one analysis run. It only moves
// forward: analyzing -> completed or analyzing -> no_tickets.
type AnalysisStatus string

const (
	StatusAnalyzing AnalysisStatus = "analyzing"
	StatusCompleted AnalysisStatus = "completed"
	StatusNoTickets AnalysisStatus = "no_tickets"
)

func (s AnalysisStatus) Valid() bool {
	switch s {
	case StatusAnalyzing, StatusCompleted, StatusNoTickets:
		return true
	}
	return false
}

// Terminal reports whether the status is an end state.
func (s AnalysisStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusNoTickets
}

// Severity grades an identified pattern.
type Severity string

const (
	SeverityLow    Severity = "low"
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)

func (s Severity) Valid() bool {
	switch s {
	case SeverityLow, SeverityMedium, SeverityHigh:
		return true
	}
	return false
}

// AnalysisState summarizes one run.
type AnalysisState struct {
	TotalTickets int            `json:"total_tickets"`
	TimeWindow   string         `json:"time_window"`
	Status       AnalysisStatus `json:"status"`
}

// FoundTicket is an immutable snapshot of ticket fields at analysis time,
// decoupled from the live ticket record.
type FoundTicket struct {
	ID          string `json:"id"`
	Subject     string `json:"subject"`
	Description string `json:"description"`
	Status      string `json:"status"`
}

// IdentifiedPattern is a hypothesized cluster of tickets sharing a root cause.
type IdentifiedPattern struct {
	Name             string   `json:"name"`
	Description      string   `json:"description"`
	AffectedSystems  []string `json:"affected_systems"`
	Severity         Severity `json:"severity"`
	RelatedTicketIDs []string `json:"related_ticket_ids"`
}

// CreatedIncident is an incident the model proposed. The id is replaced with
// the real ticket id on persistence.
type CreatedIncident struct {
	ID              string   `json:"id"`
	Subject         string   `json:"subject"`
	Description     string   `json:"description"`
	PatternName     string   `json:"pattern_name"`
	LinkedTicketIDs []string `json:"linked_ticket_ids"`
}

// AnalysisResult is the validated terminal payload of one analysis run.
type AnalysisResult struct {
	AnalysisState      AnalysisState       `json:"analysis_state"`
	FoundTickets       []FoundTicket       `json:"found_tickets"`
	IdentifiedPatterns []IdentifiedPattern `json:"identified_patterns"`
	CreatedIncidents   []CreatedIncident   `json:"created_incidents"`
}

// Validate checks the result against the strict analysis schema.
func (r *AnalysisResult) Validate() error {
	if r == nil {
		return fmt.Errorf("result is nil")
	}
	if r.AnalysisState.TotalTickets < 0 {
		return fmt.Errorf("total_tickets must be >= 0, got %d", r.AnalysisState.TotalTickets)
	}
	if !r.AnalysisState.Status.Valid() {
		return fmt.Errorf("invalid status %q", r.AnalysisState.Status)
	}
	if strings.TrimSpace(r.AnalysisState.TimeWindow) == "" {
		return fmt.Errorf("time_window is required")
	}
	for i, ft := range r.FoundTickets {
		if strings.TrimSpace(ft.ID) == "" {
			return fmt.Errorf("found_tickets[%d]: id is required", i)
		}
	}
	for i, p := range r.IdentifiedPatterns {
		if strings.TrimSpace(p.Name) == "" {
			return fmt.Errorf("identified_patterns[%d]: name is required", i)
		}
		if !p.Severity.Valid() {
			return fmt.Errorf("identified_patterns[%d]: invalid severity %q", i, p.Severity)
		}
	}
	for i, inc := range r.CreatedIncidents {
		if strings.TrimSpace(inc.Subject) == "" {
			return fmt.Errorf("created_incidents[%d]: subject is required", i)
		}
	}
	return nil
}
