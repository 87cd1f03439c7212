package main

import (
	"context"
	"io"
	"net/http"
	"time"

	"github.com/vilaca/pipeline-flow/internal/api"
	"github.com/vilaca/pipeline-flow/internal/api/resolver"
	"github.com/vilaca/pipeline-flow/internal/config"
	"github.com/vilaca/pipeline-flow/internal/dashboard"
	"github.com/vilaca/pipeline-flow/internal/service"
)

// app holds the dependencies shared by the commands.
type app struct {
	cfg     *config.Config
	logger  *dashboard.PhusluLogger
	source  *config.FileSource
	service *service.PipelineService
}

// buildApp wires up all dependencies. This is the composition root.
// Without fetch no provider is resolved and no network call is made.
func buildApp(ctx context.Context, cfg *config.Config, fetch bool, metrics service.Metrics, logOutput io.Writer) *app {
	logger := dashboard.NewPhusluLogger(cfg.LogLevel, logOutput)
	httpClient := &http.Client{
		Timeout: 30 * time.Second,
	}

	var provider api.Provider
	if fetch {
		provider = resolver.Resolve(ctx, cfg.ResolveRemoteURL(), config.NewEnvSecretStore(), httpClient, logger)
		if provider.IsActive() {
			provider = api.NewCachingProvider(provider, cfg.CacheTTL)
		}
	}

	source := config.NewFileSource(cfg.RepoDir)
	enricher := service.NewEnricher(
		service.NewRegexTicketCompleter(cfg.TicketBaseURL),
		config.NewCommandCatalog(cfg.RepoDir),
		metrics,
		logger,
	)

	return &app{
		cfg:     cfg,
		logger:  logger,
		source:  source,
		service: service.NewPipelineService(source, provider, enricher, metrics, logger),
	}
}
