package app

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"strings"

	"github.com/google/uuid"
	_ "github.com/jackc/pgx/v5/stdlib"

	"firedesk/internal/gateway/config"
	"firedesk/internal/gateway/entity"
	"firedesk/internal/gateway/repository/analysisstore"
	"firedesk/internal/gateway/repository/identity"
	"firedesk/internal/gateway/repository/ticketstore"
	"firedesk/internal/gateway/repository/transcript"
	"firedesk/internal/llmclient"
)

type gatewayStores struct {
	tickets  ticketstore.Store
	analyses analysisstore.Store
	identity identity.Lookup
}

func initStores(cfg *config.Config) (*gatewayStores, error) {
	if dsn := strings.TrimSpace(cfg.DatabaseURL); dsn != "" {
		return initPostgresStores(dsn)
	}
	return initInMemoryStores(cfg), nil
}

func initPostgresStores(dsn string) (*gatewayStores, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open db: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping db: %w", err)
	}

	cached, err := identity.NewCached(identity.NewPostgres(db))
	if err != nil {
		return nil, fmt.Errorf("failed to init identity cache: %w", err)
	}

	log.Printf("stores: postgres")
	return &gatewayStores{
		tickets:  ticketstore.NewPostgresFromDB(db),
		analyses: analysisstore.NewPostgresFromDB(db),
		identity: cached,
	}, nil
}

// initInMemoryStores backs a DSN-less run with map stores and synthetic
// identities so the agent is exercisable without infrastructure.
func initInMemoryStores(cfg *config.Config) *gatewayStores {
	slug := cfg.WorkspaceSlug
	if slug == "" {
		slug = entity.DemoWorkspaceSlug
	}
	log.Printf("stores: in-memory (no DATABASE_URL)")
	return &gatewayStores{
		tickets:  ticketstore.NewMemory(),
		analyses: analysisstore.NewMemory(),
		identity: identity.Static{
			SystemAccount: uuid.NewString(),
			Workspaces:    map[string]string{slug: uuid.NewString()},
		},
	}
}

func initLLM(ctx context.Context, cfg *config.Config) (llmclient.LLMClient, error) {
	if strings.TrimSpace(cfg.GeminiAPIKey) == "" {
		log.Printf("llm: no GEMINI_API_KEY, using fake client")
		return llmclient.NewFakeClient(), nil
	}
	cli, err := llmclient.NewGeminiClient(ctx, cfg.GeminiAPIKey, cfg.GeminiModel)
	if err != nil {
		return nil, fmt.Errorf("failed to init gemini client: %w", err)
	}
	log.Printf("llm: %s", cli.Name())
	return cli, nil
}

func initTranscripts(cfg *config.Config) *transcript.S3Store {
	if !cfg.Transcript.Enabled {
		return nil
	}
	store, err := transcript.NewS3Store(transcript.S3Config{
		Endpoint:  cfg.Transcript.Endpoint,
		Region:    cfg.Transcript.Region,
		AccessKey: cfg.Transcript.AccessKey,
		SecretKey: cfg.Transcript.SecretKey,
		Bucket:    cfg.Transcript.Bucket,
		UseSSL:    cfg.Transcript.UseSSL,
	})
	if err != nil {
		// The archive is optional; run without it rather than failing boot.
		log.Printf("transcript store disabled: %v", err)
		return nil
	}
	log.Printf("transcript store: s3 bucket=%s endpoint=%s", cfg.Transcript.Bucket, cfg.Transcript.Endpoint)
	return store
}
