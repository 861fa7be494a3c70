package firebreak

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"firedesk/internal/gateway/entity"
)

// NoTicketsMessage is the literal result of get_recent_tickets when the scan
// window is empty.
const NoTicketsMessage = "No tickets found in the last " + TimeWindowLabel

// minRelatedTickets is the hard structural minimum for incident creation.
// (The review prompt advises 3; this is the mechanical gate.)
const minRelatedTickets = 2

func (r *Registry) getRecentTickets(ctx context.Context) (string, error) {
	tickets, err := r.tickets.ListRecent(ctx, LookbackHours,
		[]entity.TicketStatus{entity.TicketOpen, entity.TicketNew})
	if err != nil {
		return fmt.Sprintf("Error fetching recent tickets: %v", err), nil
	}
	if len(tickets) == 0 {
		return NoTicketsMessage, nil
	}

	r.mu.Lock()
	for _, t := range tickets {
		if _, seen := r.ticketIDs[t.ID]; seen {
			continue
		}
		r.ticketIDs[t.ID] = struct{}{}
		r.found = append(r.found, FoundTicket{
			ID:          t.ID,
			Subject:     t.Subject,
			Description: t.Description,
			Status:      string(t.Status),
		})
	}
	r.mu.Unlock()

	var b strings.Builder
	fmt.Fprintf(&b, "Found %d tickets in the last %s:\n", len(tickets), TimeWindowLabel)
	for _, t := range tickets {
		fmt.Fprintf(&b, "\n- id: %s\n  subject: %s\n  status: %s\n  priority: %s\n  description: %s\n",
			t.ID, t.Subject, t.Status, t.Priority, t.Description)
	}
	return b.String(), nil
}

type createIncidentInput struct {
	Subject        string `json:"subject"`
	Description    string `json:"description"`
	RelatedTickets []struct {
		ID string `json:"id"`
	} `json:"related_tickets"`
}

func (r *Registry) createIncidentTicket(ctx context.Context, args json.RawMessage) (string, error) {
	var in createIncidentInput
	if err := json.Unmarshal(args, &in); err != nil {
		return fmt.Sprintf("Invalid create_incident_ticket arguments: %v", err), nil
	}

	// Distinct ids only: repeating one ticket must not satisfy the minimum.
	seen := make(map[string]struct{}, len(in.RelatedTickets))
	ids := make([]string, 0, len(in.RelatedTickets))
	for _, rt := range in.RelatedTickets {
		id := strings.TrimSpace(rt.ID)
		if id == "" {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	if len(ids) < minRelatedTickets {
		return fmt.Sprintf("At least %d related tickets are required to create an incident ticket; got %d. "+
			"Gather more evidence before escalating.", minRelatedTickets, len(ids)), nil
	}

	related, err := r.tickets.GetByIDs(ctx, ids)
	if err != nil {
		return fmt.Sprintf("Error verifying related tickets: %v", err), nil
	}
	if len(related) != len(ids) {
		return "Some of the specified tickets could not be found. No incident was created; " +
			"verify the ticket ids and try again.", nil
	}

	systemID, err := r.identity.SystemAccountID(ctx)
	if err != nil {
		return fmt.Sprintf("Error resolving the system account: %v", err), nil
	}

	incident, err := r.tickets.Create(ctx, entity.Ticket{
		Subject:     entity.IncidentSubjectPrefix + strings.TrimSpace(in.Subject),
		Description: incidentDescription(in.Description, related),
		Status:      entity.TicketOpen,
		Priority:    entity.PriorityHigh,
		CustomerID:  systemID,
		WorkspaceID: related[0].WorkspaceID,
	})
	if err != nil {
		return fmt.Sprintf("Error creating the incident ticket: %v", err), nil
	}

	linked := 0
	for _, id := range ids {
		if err := r.tickets.SetParentTicket(ctx, id, incident.ID); err != nil {
			return fmt.Sprintf("Created incident ticket %s but linking ticket %s failed: %v. "+
				"%d of %d tickets were linked.", incident.ID, id, err, linked, len(ids)), nil
		}
		linked++
	}

	return fmt.Sprintf("Created incident ticket %s linking %d tickets.", incident.ID, linked), nil
}

// incidentDescription enumerates the linked tickets under the model's
// description so the incident record is self-contained.
func incidentDescription(description string, related []entity.Ticket) string {
	var b strings.Builder
	b.WriteString(strings.TrimSpace(description))
	b.WriteString("\n\nLinked tickets:\n")
	for _, t := range related {
		fmt.Fprintf(&b, "- %s: %s (priority %s)\n", t.ID, t.Subject, t.Priority)
	}
	return b.String()
}
