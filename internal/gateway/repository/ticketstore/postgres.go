package ticketstore

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

	"firedesk/internal/gateway/entity"
)

// PostgresStore stores tickets in Postgres via the pgx stdlib driver.
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
		return fmt.Errorf("ticketstore: db not configured")
	}
	s.schemaOnce.Do(func() {
		_, s.schemaErr = s.db.Exec(`
CREATE TABLE IF NOT EXISTS tickets (
  ticket_id TEXT PRIMARY KEY,
  subject TEXT NOT NULL,
  description TEXT NOT NULL DEFAULT '',
  status TEXT NOT NULL DEFAULT 'new',
  priority TEXT NOT NULL DEFAULT 'medium',
  customer_id TEXT NOT NULL DEFAULT '',
  agent_id TEXT NOT NULL DEFAULT '',
  workspace_id TEXT NOT NULL DEFAULT '',
  parent_ticket_id TEXT,
  crisis_keywords JSONB NOT NULL DEFAULT '[]',
  chaos_score DOUBLE PRECISION,
  analysis_id TEXT NOT NULL DEFAULT '',
  created_at TIMESTAMP WITH TIME ZONE DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_tickets_status_created ON tickets (status, created_at DESC);
CREATE INDEX IF NOT EXISTS idx_tickets_parent ON tickets (parent_ticket_id);
`)
	})
	return s.schemaErr
}

const ticketColumns = `ticket_id, subject, description, status, priority, customer_id,
agent_id, workspace_id, parent_ticket_id, crisis_keywords, chaos_score, analysis_id, created_at`

func (s *PostgresStore) ListRecent(ctx context.Context, hoursBack int, statuses []entity.TicketStatus) ([]entity.Ticket, error) {
	if err := s.ensureSchema(); err != nil {
		return nil, err
	}
	if hoursBack <= 0 {
		hoursBack = 2
	}
	since := time.Now().Add(-time.Duration(hoursBack) * time.Hour)

	args := []any{since}
	placeholders := make([]string, 0, len(statuses))
	for i, st := range statuses {
		placeholders = append(placeholders, fmt.Sprintf("$%d", i+2))
		args = append(args, string(st))
	}
	query := `SELECT ` + ticketColumns + ` FROM tickets WHERE created_at >= $1`
	if len(placeholders) > 0 {
		query += ` AND status IN (` + strings.Join(placeholders, ",") + `)`
	}
	query += ` ORDER BY created_at DESC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("ticketstore: list recent: %w", err)
	}
	defer rows.Close()
	return scanTickets(rows)
}

func (s *PostgresStore) GetByIDs(ctx context.Context, ids []string) ([]entity.Ticket, error) {
	if err := s.ensureSchema(); err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, nil
	}
	placeholders := make([]string, len(ids))
	args := make([]any, len(ids))
	for i, id := range ids {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
		args[i] = strings.TrimSpace(id)
	}
	query := `SELECT ` + ticketColumns + ` FROM tickets WHERE ticket_id IN (` +
		strings.Join(placeholders, ",") + `)`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("ticketstore: get by ids: %w", err)
	}
	defer rows.Close()
	return scanTickets(rows)
}

func (s *PostgresStore) Create(ctx context.Context, t entity.Ticket) (entity.Ticket, error) {
	if err := s.ensureSchema(); err != nil {
		return entity.Ticket{}, err
	}
	if strings.TrimSpace(t.ID) == "" {
		t.ID = uuid.NewString()
	}
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now()
	}
	keywords, _ := json.Marshal(t.CrisisKeywords)
	_, err := s.db.ExecContext(ctx, `
INSERT INTO tickets (
  ticket_id, subject, description, status, priority, customer_id,
  agent_id, workspace_id, parent_ticket_id, crisis_keywords, chaos_score, analysis_id, created_at
)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)`,
		t.ID, t.Subject, t.Description, string(t.Status), string(t.Priority), t.CustomerID,
		t.AgentID, t.WorkspaceID, t.ParentTicketID, string(keywords), t.ChaosScore, t.AnalysisID, t.CreatedAt)
	if err != nil {
		return entity.Ticket{}, fmt.Errorf("ticketstore: create: %w", err)
	}
	return t, nil
}

func (s *PostgresStore) SetParentTicket(ctx context.Context, ticketID, parentID string) error {
	if err := s.ensureSchema(); err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE tickets SET parent_ticket_id = $2 WHERE ticket_id = $1`,
		strings.TrimSpace(ticketID), strings.TrimSpace(parentID))
	if err != nil {
		return fmt.Errorf("ticketstore: set parent: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("ticketstore: ticket %q not found", ticketID)
	}
	return nil
}

func scanTickets(rows *sql.Rows) ([]entity.Ticket, error) {
	var out []entity.Ticket
	for rows.Next() {
		var (
			t        entity.Ticket
			status   string
			priority string
			keywords []byte
		)
		if err := rows.Scan(&t.ID, &t.Subject, &t.Description, &status, &priority, &t.CustomerID,
			&t.AgentID, &t.WorkspaceID, &t.ParentTicketID, &keywords, &t.ChaosScore, &t.AnalysisID, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("ticketstore: scan: %w", err)
		}
		t.Status = entity.TicketStatus(status)
		t.Priority = entity.TicketPriority(priority)
		if len(keywords) > 0 {
			_ = json.Unmarshal(keywords, &t.CrisisKeywords)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}
