package service

import (
	"context"
	"fmt"
	"time"

	"github.com/vilaca/pipeline-flow/internal/api"
	"github.com/vilaca/pipeline-flow/internal/domain"
	"github.com/vilaca/pipeline-flow/internal/graph"
	"github.com/vilaca/pipeline-flow/internal/topology"
)

// ErrorDiagramText replaces the diagram when the build cannot complete.
const ErrorDiagramText = "Error while building pipeline diagram"

// Logger interface for logging operations.
type Logger interface {
	Printf(format string, v ...interface{})
}

// Metrics receives build and provider counters. Implementations must be safe
// for concurrent use.
type Metrics interface {
	ObserveBuild(outcome string, duration time.Duration)
	ProviderError(operation string)
}

type noopMetrics struct{}

func (noopMetrics) ObserveBuild(string, time.Duration) {}
func (noopMetrics) ProviderError(string) {}

// ConfigSource yields the project settings and per-branch records of one build.
type ConfigSource interface {
	LoadProject() (topology.ProjectConfig, error)
	LoadBranches() ([]topology.BranchConfig, error)
	HasKeyFile(branchName string) bool
}

// BuildOptions controls a single pipeline build.
type BuildOptions struct {
	// Fetch enables provider calls. When false branches keep unknown status.
	Fetch bool
	// Wrap encloses the diagram texts in a mermaid fence.
	Wrap bool
}

// Result is the outcome of one pipeline build.
type Result struct {
	Orgs                 []graph.Node         `json:"orgs"`
	Links                []graph.Link         `json:"links"`
	DiagramText          string               `json:"diagramText"`
	DiagramTextMajorOnly string               `json:"diagramTextMajorOnly"`
	Warnings             []string             `json:"warnings"`
	Branches             []domain.Branch      `json:"branches"`
	OpenPullRequests     []domain.PullRequest `json:"openPullRequests"`
	Platform             string               `json:"platform"`
	GeneratedAt          time.Time            `json:"generatedAt"`
	Failed               bool                 `json:"failed,omitempty"`
}

// PipelineService orchestrates topology, enrichment and diagram generation.
type PipelineService struct {
	config   ConfigSource
	provider api.Provider
	enricher *Enricher
	metrics  Metrics
	logger   Logger
	now      func() time.Time
}

// NewPipelineService creates a pipeline service. A nil provider is replaced by
// the inactive provider and nil metrics by a no-op recorder.
func NewPipelineService(config ConfigSource, provider api.Provider, enricher *Enricher, metrics Metrics, logger Logger) *PipelineService {
	if provider == nil {
		provider = api.NewInactiveProvider()
	}
	if metrics == nil {
		metrics = noopMetrics{}
	}
	if enricher == nil {
		enricher = NewEnricher(nil, nil, metrics, logger)
	}
	return &PipelineService{
		config:   config,
		provider: provider,
		enricher: enricher,
		metrics:  metrics,
		logger:   logger,
		now:      time.Now,
	}
}

// Build runs one pipeline build. It never fails: configuration errors produce
// a result carrying ErrorDiagramText and the error message as its only warning.
func (s *PipelineService) Build(ctx context.Context, opts BuildOptions) *Result {
	start := s.now()

	result, err := s.build(ctx, opts)
	if err != nil {
		s.logger.Printf("Pipeline: build failed: %v", err)
		s.metrics.ObserveBuild("error", s.now().Sub(start))
		return &Result{
			DiagramText:          ErrorDiagramText,
			DiagramTextMajorOnly: ErrorDiagramText,
			Warnings:             []string{err.Error()},
			Platform:             s.provider.Platform(),
			GeneratedAt:          start,
			Failed:               true,
		}
	}

	s.metrics.ObserveBuild("success", s.now().Sub(start))
	s.logger.Printf("Pipeline: built %d branches, %d nodes, %d links, %d warnings in %v",
		len(result.Branches), len(result.Orgs), len(result.Links), len(result.Warnings), s.now().Sub(start))
	result.GeneratedAt = start
	return result
}

func (s *PipelineService) build(ctx context.Context, opts BuildOptions) (*Result, error) {
	project, err := s.config.LoadProject()
	if err != nil {
		return nil, fmt.Errorf("failed to load project configuration: %w", err)
	}
	records, err := s.config.LoadBranches()
	if err != nil {
		return nil, fmt.Errorf("failed to load branch configuration: %w", err)
	}

	topo := topology.Build(records, project, s.config.HasKeyFile)
	branches := append([]domain.Branch(nil), topo.Branches...)

	provider := s.provider
	if !opts.Fetch {
		provider = api.NewInactiveProvider()
	}

	var openPRs []domain.PullRequest
	if provider.IsActive() {
		s.enricher.EnrichBranches(ctx, provider, topo, branches)
		openPRs = s.enricher.OpenPullRequests(ctx, provider)
	} else {
		for i := range branches {
			branches[i].JobsStatus = domain.StatusUnknown
		}
	}

	diagram := graph.Build(graph.Input{
		Branches:             branches,
		OpenPullRequests:     openPRs,
		Authenticated:        provider.IsActive(),
		CreatePullRequestURL: provider.CreatePullRequestURL,
		DevelopmentBranch:    project.DevelopmentBranch,
	}, graph.Options{Wrap: opts.Wrap})
	major := diagram.MajorOnly()

	warnings := append(topo.Warnings(), diagram.Warnings...)
	if warnings == nil {
		warnings = []string{}
	}

	return &Result{
		Orgs:                 diagram.Nodes,
		Links:                diagram.Links,
		DiagramText:          diagram.Text(),
		DiagramTextMajorOnly: major.Text(),
		Warnings:             warnings,
		Branches:             branches,
		OpenPullRequests:     openPRs,
		Platform:             provider.Platform(),
	}, nil
}
