package identity

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"
	_ "github.com/jackc/pgx/v5/stdlib"

	"firedesk/internal/gateway/entity"
)

// Lookup resolves the fixed identities analyses are attributed to. It is an
// explicit, injected dependency: construct one at process scope and pass it
// by reference, never reach for a package-level singleton.
type Lookup interface {
	SystemAccountID(ctx context.Context) (string, error)
	WorkspaceIDBySlug(ctx context.Context, slug string) (string, error)
}

// PostgresLookup resolves identities from the users/workspaces tables owned
// by the CRUD services. It does not create or migrate those tables.
type PostgresLookup struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresLookup {
	return &PostgresLookup{db: db}
}

func (l *PostgresLookup) SystemAccountID(ctx context.Context) (string, error) {
	var id string
	err := l.db.QueryRowContext(ctx,
		`SELECT user_id FROM users WHERE email = $1`, entity.SystemAccountEmail).Scan(&id)
	if err != nil {
		return "", fmt.Errorf("identity: system account: %w", err)
	}
	return id, nil
}

func (l *PostgresLookup) WorkspaceIDBySlug(ctx context.Context, slug string) (string, error) {
	var id string
	err := l.db.QueryRowContext(ctx,
		`SELECT workspace_id FROM workspaces WHERE slug = $1`, strings.TrimSpace(slug)).Scan(&id)
	if err != nil {
		return "", fmt.Errorf("identity: workspace %q: %w", slug, err)
	}
	return id, nil
}

// Cached memoizes a Lookup with a small LRU. Lookups are stable for the
// process lifetime, so entries are never invalidated.
type Cached struct {
	inner Lookup
	cache *lru.Cache[string, string]
}

func NewCached(inner Lookup) (*Cached, error) {
	cache, err := lru.New[string, string](64)
	if err != nil {
		return nil, err
	}
	return &Cached{inner: inner, cache: cache}, nil
}

func (c *Cached) SystemAccountID(ctx context.Context) (string, error) {
	if id, ok := c.cache.Get("system-account"); ok {
		return id, nil
	}
	id, err := c.inner.SystemAccountID(ctx)
	if err != nil {
		return "", err
	}
	c.cache.Add("system-account", id)
	return id, nil
}

func (c *Cached) WorkspaceIDBySlug(ctx context.Context, slug string) (string, error) {
	key := "workspace:" + strings.TrimSpace(slug)
	if id, ok := c.cache.Get(key); ok {
		return id, nil
	}
	id, err := c.inner.WorkspaceIDBySlug(ctx, slug)
	if err != nil {
		return "", err
	}
	c.cache.Add(key, id)
	return id, nil
}

// Static returns fixed identities; used in tests and DSN-less local runs.
type Static struct {
	SystemAccount string
	Workspaces    map[string]string
}

func (s Static) SystemAccountID(context.Context) (string, error) {
	if s.SystemAccount == "" {
		return "", fmt.Errorf("identity: system account not configured")
	}
	return s.SystemAccount, nil
}

func (s Static) WorkspaceIDBySlug(_ context.Context, slug string) (string, error) {
	if id, ok := s.Workspaces[strings.TrimSpace(slug)]; ok {
		return id, nil
	}
	return "", fmt.Errorf("identity: workspace %q not found", slug)
}
