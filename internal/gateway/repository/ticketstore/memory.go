package ticketstore

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"firedesk/internal/gateway/entity"
)

// MemoryStore is a map-backed Store for tests and DSN-less local runs.
type MemoryStore struct {
	mu   sync.RWMutex
	byID map[string]entity.Ticket
}

func NewMemory() *MemoryStore {
	return &MemoryStore{byID: make(map[string]entity.Ticket)}
}

// Seed inserts tickets directly, assigning ids and timestamps when missing.
func (s *MemoryStore) Seed(tickets ...entity.Ticket) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, t := range tickets {
		if t.ID == "" {
			t.ID = uuid.NewString()
		}
		if t.CreatedAt.IsZero() {
			t.CreatedAt = time.Now()
		}
		s.byID[t.ID] = t
	}
}

func (s *MemoryStore) ListRecent(_ context.Context, hoursBack int, statuses []entity.TicketStatus) ([]entity.Ticket, error) {
	if hoursBack <= 0 {
		hoursBack = 2
	}
	since := time.Now().Add(-time.Duration(hoursBack) * time.Hour)
	allowed := make(map[entity.TicketStatus]struct{}, len(statuses))
	for _, st := range statuses {
		allowed[st] = struct{}{}
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []entity.Ticket
	for _, t := range s.byID {
		if t.CreatedAt.Before(since) {
			continue
		}
		if len(allowed) > 0 {
			if _, ok := allowed[t.Status]; !ok {
				continue
			}
		}
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (s *MemoryStore) GetByIDs(_ context.Context, ids []string) ([]entity.Ticket, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []entity.Ticket
	for _, id := range ids {
		if t, ok := s.byID[strings.TrimSpace(id)]; ok {
			out = append(out, t)
		}
	}
	return out, nil
}

func (s *MemoryStore) Create(_ context.Context, t entity.Ticket) (entity.Ticket, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if strings.TrimSpace(t.ID) == "" {
		t.ID = uuid.NewString()
	}
	if _, exists := s.byID[t.ID]; exists {
		return entity.Ticket{}, fmt.Errorf("ticketstore: ticket %q already exists", t.ID)
	}
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now()
	}
	s.byID[t.ID] = t
	return t, nil
}

func (s *MemoryStore) SetParentTicket(_ context.Context, ticketID, parentID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.byID[strings.TrimSpace(ticketID)]
	if !ok {
		return fmt.Errorf("ticketstore: ticket %q not found", ticketID)
	}
	parent := strings.TrimSpace(parentID)
	t.ParentTicketID = &parent
	s.byID[t.ID] = t
	return nil
}

// Get returns a single ticket; test helper.
func (s *MemoryStore) Get(id string) (entity.Ticket, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.byID[id]
	return t, ok
}

// Len returns the number of stored tickets; test helper.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.byID)
}
