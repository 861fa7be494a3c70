package analysisstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "github.com/jackc/pgx/v5/stdlib"
)

// PostgresStore stores analysis records in Postgres via the pgx stdlib driver.
type PostgresStore struct {
	db *sql.DB

	schemaOnce sync.Once
	schemaErr  error
}

func NewPostgres(dsn string) (*PostgresStore, error) {
	db, err := sql.Open("pgx", strings.TrimSpace(dsn))
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &PostgresStore{db: db}, nil
}

// NewPostgresFromDB wraps an existing handle so stores can share one pool.
func NewPostgresFromDB(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) ensureSchema() error {
	if s == nil || s.db == nil {
		return fmt.Errorf("analysisstore: db not configured")
	}
	s.schemaOnce.Do(func() {
		_, s.schemaErr = s.db.Exec(`
CREATE TABLE IF NOT EXISTS firebreak_analyses (
  analysis_id TEXT PRIMARY KEY,
  total_tickets INTEGER NOT NULL DEFAULT 0,
  time_window TEXT NOT NULL DEFAULT '',
  status TEXT NOT NULL DEFAULT 'analyzing',
  found_tickets JSONB NOT NULL DEFAULT '[]',
  identified_patterns JSONB NOT NULL DEFAULT '[]',
  created_incident_ids JSONB NOT NULL DEFAULT '[]',
  workspace_id TEXT NOT NULL DEFAULT '',
  created_by TEXT NOT NULL DEFAULT '',
  created_at TIMESTAMP WITH TIME ZONE DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_firebreak_analyses_workspace ON firebreak_analyses (workspace_id, created_at DESC);
`)
	})
	return s.schemaErr
}

func (s *PostgresStore) Insert(ctx context.Context, rec Record) (string, error) {
	if err := s.ensureSchema(); err != nil {
		return "", err
	}
	if strings.TrimSpace(rec.ID) == "" {
		rec.ID = uuid.NewString()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now()
	}
	incidentIDs, _ := json.Marshal(rec.CreatedIncidentIDs)
	_, err := s.db.ExecContext(ctx, `
INSERT INTO firebreak_analyses (
  analysis_id, total_tickets, time_window, status, found_tickets,
  identified_patterns, created_incident_ids, workspace_id, created_by, created_at
)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)`,
		rec.ID, rec.TotalTickets, rec.TimeWindow, rec.Status,
		nullableJSON(rec.FoundTickets), nullableJSON(rec.IdentifiedPatterns),
		string(incidentIDs), rec.WorkspaceID, rec.CreatedBy, rec.CreatedAt)
	if err != nil {
		return "", fmt.Errorf("analysisstore: insert: %w", err)
	}
	return rec.ID, nil
}

func (s *PostgresStore) UpdateIncidentIDs(ctx context.Context, id string, incidentIDs []string) error {
	if err := s.ensureSchema(); err != nil {
		return err
	}
	encoded, _ := json.Marshal(incidentIDs)
	res, err := s.db.ExecContext(ctx,
		`UPDATE firebreak_analyses SET created_incident_ids = $2 WHERE analysis_id = $1`,
		strings.TrimSpace(id), string(encoded))
	if err != nil {
		return fmt.Errorf("analysisstore: update incident ids: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("analysisstore: analysis %q not found", id)
	}
	return nil
}

func (s *PostgresStore) Get(ctx context.Context, id string) (Record, bool, error) {
	if err := s.ensureSchema(); err != nil {
		return Record{}, false, err
	}
	row := s.db.QueryRowContext(ctx, `
SELECT analysis_id, total_tickets, time_window, status, found_tickets,
  identified_patterns, created_incident_ids, workspace_id, created_by, created_at
FROM firebreak_analyses WHERE analysis_id = $1`, strings.TrimSpace(id))

	var (
		rec         Record
		found       []byte
		patterns    []byte
		incidentIDs []byte
	)
	err := row.Scan(&rec.ID, &rec.TotalTickets, &rec.TimeWindow, &rec.Status, &found,
		&patterns, &incidentIDs, &rec.WorkspaceID, &rec.CreatedBy, &rec.CreatedAt)
	if err == sql.ErrNoRows {
		return Record{}, false, nil
	}
	if err != nil {
		return Record{}, false, fmt.Errorf("analysisstore: get: %w", err)
	}
	rec.FoundTickets = json.RawMessage(found)
	rec.IdentifiedPatterns = json.RawMessage(patterns)
	if len(incidentIDs) > 0 {
		_ = json.Unmarshal(incidentIDs, &rec.CreatedIncidentIDs)
	}
	return rec, true, nil
}

func nullableJSON(raw json.RawMessage) string {
	if len(raw) == 0 {
		return "[]"
	}
	return string(raw)
}
