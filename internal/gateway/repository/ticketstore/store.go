package ticketstore

import (
	"context"

	"firedesk/internal/gateway/entity"
)

// Store is the ticket gateway consumed by the Firebreak agent. Implementations
// must keep single-row writes atomic; the agent relies on the store's own
// write semantics for parent_ticket_id back-references.
type Store interface {
	// ListRecent returns tickets created within the last hoursBack hours whose
	// status is one of statuses, newest first.
	ListRecent(ctx context.Context, hoursBack int, statuses []entity.TicketStatus) ([]entity.Ticket, error)
	// GetByIDs returns the tickets matching ids. Missing ids are simply absent
	// from the result; callers compare counts to detect unresolvable tickets.
	GetByIDs(ctx context.Context, ids []string) ([]entity.Ticket, error)
	// Create persists a new ticket and returns it with its assigned id.
	Create(ctx context.Context, t entity.Ticket) (entity.Ticket, error)
	// SetParentTicket points a ticket's parent_ticket_id at an incident.
	SetParentTicket(ctx context.Context, ticketID, parentID string) error
}
