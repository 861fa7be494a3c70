package analysisstore

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStore is a map-backed Store for tests and DSN-less local runs.
type MemoryStore struct {
	mu   sync.RWMutex
	byID map[string]Record
}

func NewMemory() *MemoryStore {
	return &MemoryStore{byID: make(map[string]Record)}
}

func (s *MemoryStore) Insert(_ context.Context, rec Record) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if strings.TrimSpace(rec.ID) == "" {
		rec.ID = uuid.NewString()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now()
	}
	if _, exists := s.byID[rec.ID]; exists {
		return "", fmt.Errorf("analysisstore: analysis %q already exists", rec.ID)
	}
	s.byID[rec.ID] = rec
	return rec.ID, nil
}

func (s *MemoryStore) UpdateIncidentIDs(_ context.Context, id string, incidentIDs []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.byID[strings.TrimSpace(id)]
	if !ok {
		return fmt.Errorf("analysisstore: analysis %q not found", id)
	}
	rec.CreatedIncidentIDs = append([]string(nil), incidentIDs...)
	s.byID[rec.ID] = rec
	return nil
}

func (s *MemoryStore) Get(_ context.Context, id string) (Record, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.byID[strings.TrimSpace(id)]
	return rec, ok, nil
}

// Len returns the number of stored records; test helper.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.byID)
}
