package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vilaca/pipeline-flow/internal/api"
	"github.com/vilaca/pipeline-flow/internal/domain"
	"github.com/vilaca/pipeline-flow/internal/topology"
)

// mockProvider is a test double for api.Provider.
type mockProvider struct {
	api.InactiveProvider
	openFunc      func(ctx context.Context) ([]domain.PullRequest, error)
	jobsFunc      func(ctx context.Context, branch string) (*api.BranchJobs, error)
	sinceFunc     func(ctx context.Context, branch, target string, excluded []string) ([]domain.PullRequest, error)
	createURLFunc func(source, target string) string

	mu        sync.Mutex
	sinceArgs map[string][]string
}

func (m *mockProvider) Platform() string { return domain.PlatformGitLab }

func (m *mockProvider) IsActive() bool { return true }

func (m *mockProvider) ListOpenPullRequests(ctx context.Context) ([]domain.PullRequest, error) {
	if m.openFunc != nil {
		return m.openFunc(ctx)
	}
	return nil, nil
}

func (m *mockProvider) GetJobsForBranchLatestCommit(ctx context.Context, branch string) (*api.BranchJobs, error) {
	if m.jobsFunc != nil {
		return m.jobsFunc(ctx, branch)
	}
	return &api.BranchJobs{JobsStatus: domain.StatusUnknown}, nil
}

func (m *mockProvider) ListPullRequestsInBranchSinceLastMerge(ctx context.Context, branch, target string, excluded []string) ([]domain.PullRequest, error) {
	m.mu.Lock()
	if m.sinceArgs == nil {
		m.sinceArgs = make(map[string][]string)
	}
	m.sinceArgs[branch] = append([]string{target}, excluded...)
	m.mu.Unlock()

	if m.sinceFunc != nil {
		return m.sinceFunc(ctx, branch, target, excluded)
	}
	return nil, nil
}

func (m *mockProvider) CreatePullRequestURL(source, target string) string {
	if m.createURLFunc != nil {
		return m.createURLFunc(source, target)
	}
	return ""
}

// mockConfigSource is a test double for ConfigSource.
type mockConfigSource struct {
	project    topology.ProjectConfig
	branches   []topology.BranchConfig
	projectErr error
	branchErr  error
}

func (m *mockConfigSource) LoadProject() (topology.ProjectConfig, error) {
	return m.project, m.projectErr
}

func (m *mockConfigSource) LoadBranches() ([]topology.BranchConfig, error) {
	return m.branches, m.branchErr
}

func (m *mockConfigSource) HasKeyFile(string) bool { return true }

// mockLogger collects log lines.
type mockLogger struct {
	mu    sync.Mutex
	lines []string
}

func (l *mockLogger) Printf(format string, v ...interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.lines = append(l.lines, format)
}

// mockMetrics records observed outcomes.
type mockMetrics struct {
	mu       sync.Mutex
	outcomes []string
	errors   []string
}

func (m *mockMetrics) ObserveBuild(outcome string, _ time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.outcomes = append(m.outcomes, outcome)
}

func (m *mockMetrics) ProviderError(operation string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errors = append(m.errors, operation)
}

func sampleConfig() *mockConfigSource {
	return &mockConfigSource{
		project: topology.ProjectConfig{ManualActionsFileURL: "https://wiki.example.com/actions"},
		branches: []topology.BranchConfig{
			{BranchName: "main", DeployTargetURL: "https://acme.my.salesforce.com"},
			{BranchName: "preprod", MergeTargets: []string{"main"}},
			{BranchName: "uat", MergeTargets: []string{"preprod"}},
		},
	}
}

func TestBuild_WithoutFetchKeepsUnknownStatus(t *testing.T) {
	// Arrange
	provider := &mockProvider{
		jobsFunc: func(ctx context.Context, branch string) (*api.BranchJobs, error) {
			t.Fatal("provider must not be called without fetch")
			return nil, nil
		},
	}
	svc := NewPipelineService(sampleConfig(), provider, nil, nil, &mockLogger{})

	// Act
	result := svc.Build(context.Background(), BuildOptions{Fetch: false})

	// Assert
	require.False(t, result.Failed)
	require.Len(t, result.Branches, 3)
	for _, b := range result.Branches {
		assert.Equal(t, domain.StatusUnknown, b.JobsStatus)
		assert.Empty(t, b.Jobs)
		assert.Empty(t, b.PullRequestsSinceLastMerge)
	}
	assert.Equal(t, domain.PlatformNone, result.Platform)
	assert.Contains(t, result.DiagramText, `uat ==>|"Merge"| preprod`)
	assert.NotNil(t, result.Warnings)
}

func TestBuild_EndToEndFeatureBranch(t *testing.T) {
	// Arrange
	provider := &mockProvider{
		openFunc: func(ctx context.Context) ([]domain.PullRequest, error) {
			return []domain.PullRequest{{
				ID: "3", Number: 3, Title: "CRM-42 fix login",
				SourceBranch: "hotfix-login", TargetBranch: "preprod",
				JobsStatus: domain.StatusRunning,
			}}, nil
		},
		jobsFunc: func(ctx context.Context, branch string) (*api.BranchJobs, error) {
			return &api.BranchJobs{
				Jobs:       []domain.Job{{Name: "deploy", Status: domain.StatusSuccess}},
				JobsStatus: domain.StatusSuccess,
			}, nil
		},
		createURLFunc: func(source, target string) string { return "https://example.com/new" },
	}
	enricher := NewEnricher(NewRegexTicketCompleter("https://jira.example.com/browse"), nil, nil, &mockLogger{})
	metrics := &mockMetrics{}
	svc := NewPipelineService(sampleConfig(), provider, enricher, metrics, &mockLogger{})

	// Act
	result := svc.Build(context.Background(), BuildOptions{Fetch: true})

	// Assert
	require.False(t, result.Failed)
	assert.Equal(t, domain.PlatformGitLab, result.Platform)
	assert.Contains(t, result.DiagramText, `hotfix-login -->|"#3 🔄"| preprod`)
	assert.NotContains(t, result.DiagramTextMajorOnly, "hotfix-login")
	assert.Contains(t, result.DiagramText, "Create PR")
	assert.Contains(t, result.DiagramText, `main -.->|"Deploy ✅"| main_org`)

	require.Len(t, result.OpenPullRequests, 1)
	require.Len(t, result.OpenPullRequests[0].Tickets, 1)
	assert.Equal(t, "https://jira.example.com/browse/CRM-42", result.OpenPullRequests[0].Tickets[0].URL)
	assert.Equal(t, []string{"success"}, metrics.outcomes)
}

func TestBuild_PassesChildBranchesToSinceLastMerge(t *testing.T) {
	// Arrange
	provider := &mockProvider{
		sinceFunc: func(ctx context.Context, branch, target string, excluded []string) ([]domain.PullRequest, error) {
			if branch == "preprod" {
				return []domain.PullRequest{{ID: "1"}, {ID: "2"}}, nil
			}
			return nil, nil
		},
	}
	svc := NewPipelineService(sampleConfig(), provider, nil, nil, &mockLogger{})

	// Act
	result := svc.Build(context.Background(), BuildOptions{Fetch: true})

	// Assert
	assert.Equal(t, []string{"main", "uat"}, provider.sinceArgs["preprod"])
	assert.Equal(t, []string{"preprod"}, provider.sinceArgs["uat"])
	_, called := provider.sinceArgs["main"]
	assert.False(t, called, "branches without merge target are not queried")
	assert.Contains(t, result.DiagramText, `preprod["preprod (2)"]`)
}

func TestBuild_BranchFailureDoesNotAbortOthers(t *testing.T) {
	// Arrange
	metrics := &mockMetrics{}
	provider := &mockProvider{
		jobsFunc: func(ctx context.Context, branch string) (*api.BranchJobs, error) {
			if branch == "preprod" {
				return nil, errors.New("API returned status 500: boom")
			}
			return &api.BranchJobs{JobsStatus: domain.StatusFailed}, nil
		},
		sinceFunc: func(ctx context.Context, branch, target string, excluded []string) ([]domain.PullRequest, error) {
			if branch == "uat" {
				return nil, errors.New("timeout")
			}
			return []domain.PullRequest{{ID: "9"}}, nil
		},
	}
	svc := NewPipelineService(sampleConfig(), provider, nil, metrics, &mockLogger{})

	// Act
	result := svc.Build(context.Background(), BuildOptions{Fetch: true})

	// Assert
	require.False(t, result.Failed)
	byName := make(map[string]domain.Branch)
	for _, b := range result.Branches {
		byName[b.Name] = b
	}
	assert.Equal(t, domain.StatusUnknown, byName["preprod"].JobsStatus)
	assert.Len(t, byName["preprod"].PullRequestsSinceLastMerge, 1)
	assert.Equal(t, domain.StatusFailed, byName["uat"].JobsStatus)
	assert.Empty(t, byName["uat"].PullRequestsSinceLastMerge)
	assert.Equal(t, domain.StatusFailed, byName["main"].JobsStatus)
	assert.ElementsMatch(t, []string{"branch_jobs", "since_last_merge"}, metrics.errors)
}

func TestBuild_ConfigErrorReturnsPlaceholder(t *testing.T) {
	tests := []struct {
		name   string
		config *mockConfigSource
	}{
		{"project", &mockConfigSource{projectErr: errors.New("permission denied")}},
		{"branches", &mockConfigSource{branchErr: errors.New("permission denied")}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Arrange
			metrics := &mockMetrics{}
			svc := NewPipelineService(tt.config, nil, nil, metrics, &mockLogger{})

			// Act
			result := svc.Build(context.Background(), BuildOptions{Fetch: true})

			// Assert
			require.NotNil(t, result)
			assert.True(t, result.Failed)
			assert.Equal(t, ErrorDiagramText, result.DiagramText)
			assert.Equal(t, ErrorDiagramText, result.DiagramTextMajorOnly)
			require.Len(t, result.Warnings, 1)
			assert.True(t, strings.HasSuffix(result.Warnings[0], "permission denied"))
			assert.Equal(t, []string{"error"}, metrics.outcomes)
		})
	}
}

func TestBuild_WarningsCombineTopologyAndGraph(t *testing.T) {
	// Arrange
	config := &mockConfigSource{
		project: topology.ProjectConfig{DevelopmentBranch: "develop"},
		branches: []topology.BranchConfig{
			{BranchName: "main"},
			{BranchName: "uat", MergeTargets: []string{"ghost"}},
		},
	}
	svc := NewPipelineService(config, nil, nil, nil, &mockLogger{})

	// Act
	result := svc.Build(context.Background(), BuildOptions{Wrap: true})

	// Assert
	joined := strings.Join(result.Warnings, "\n")
	assert.Contains(t, joined, "manualActionsFileUrl")
	assert.Contains(t, joined, "develop")
	assert.Contains(t, joined, "ghost")
	assert.True(t, strings.HasPrefix(result.DiagramText, "```mermaid\n"))
}

func TestBuild_RecordWarningsKeepTheDiagram(t *testing.T) {
	// Arrange
	cfg := sampleConfig()
	cfg.branches[0].Warnings = []string{
		`Invalid configuration for branch main: instanceUrl "acme.my.salesforce.com" is not a valid URL`,
	}
	cfg.branches[0].DeployTargetURL = ""
	svc := NewPipelineService(cfg, &mockProvider{}, nil, nil, &mockLogger{})

	// Act
	result := svc.Build(context.Background(), BuildOptions{Fetch: false})

	// Assert
	require.False(t, result.Failed)
	assert.NotEqual(t, ErrorDiagramText, result.DiagramText)
	assert.Contains(t, result.DiagramText, `preprod ==>|"Merge"| main`)
	assert.NotContains(t, result.DiagramText, "main_org")
	assert.Contains(t, result.Warnings, cfg.branches[0].Warnings[0])
}
