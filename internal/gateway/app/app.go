package app

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"

	"firedesk/internal/firebreak"
	"firedesk/internal/gateway/config"
	"firedesk/internal/gateway/handler"
	"firedesk/internal/gateway/server"
	"firedesk/internal/gateway/service/analysis"
	"firedesk/internal/llmclient"
	"firedesk/internal/metrics"
)

type App struct {
	server *server.Server
	llm    llmclient.LLMClient
}

func New(ctx context.Context) (*App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	// Dependencies
	stores, err := initStores(cfg)
	if err != nil {
		return nil, err
	}
	llm, err := initLLM(ctx, cfg)
	if err != nil {
		return nil, err
	}
	transcripts := initTranscripts(cfg)

	runner := &firebreak.Runner{
		LLM:           llm,
		Tickets:       stores.tickets,
		Identity:      stores.identity,
		Analyses:      stores.analyses,
		Transcripts:   transcripts,
		WorkspaceSlug: cfg.WorkspaceSlug,
		MaxIterations: cfg.MaxIterations,
	}
	analysisSvc := analysis.New(runner)
	h := handler.NewService(analysisSvc)

	registry := prometheus.NewRegistry()
	if err := metrics.Register(registry); err != nil {
		return nil, fmt.Errorf("failed to register metrics: %w", err)
	}

	// Routing & Server
	mux := server.NewMux(h, registry)
	srv := server.New(cfg.Port, mux)

	return &App{
		server: srv,
		llm:    llm,
	}, nil
}

func (a *App) Start() error {
	return a.server.Start()
}

func (a *App) Shutdown(ctx context.Context) error {
	if a.llm != nil {
		_ = a.llm.Close()
	}
	return a.server.Shutdown(ctx)
}
