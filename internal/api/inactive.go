package api

import (
	"context"

	"github.com/vilaca/pipeline-flow/internal/domain"
)

// InactiveProvider is the null-object provider used when no platform could be
// resolved or authenticated. Every call returns an empty result.
type InactiveProvider struct{}

// NewInactiveProvider creates an inactive provider.
func NewInactiveProvider() *InactiveProvider {
	return &InactiveProvider{}
}

func (p *InactiveProvider) Platform() string { return domain.PlatformNone }

func (p *InactiveProvider) IsActive() bool { return false }

func (p *InactiveProvider) ListPullRequestsForBranch(ctx context.Context, targetBranch string) ([]domain.PullRequest, error) {
	return nil, nil
}

func (p *InactiveProvider) ListOpenPullRequests(ctx context.Context) ([]domain.PullRequest, error) {
	return nil, nil
}

func (p *InactiveProvider) GetJobsForBranchLatestCommit(ctx context.Context, branchName string) (*BranchJobs, error) {
	return &BranchJobs{JobsStatus: domain.StatusUnknown}, nil
}

func (p *InactiveProvider) CreatePullRequestURL(sourceBranch, targetBranch string) string {
	return ""
}

func (p *InactiveProvider) ListPullRequestsInBranchSinceLastMerge(ctx context.Context, branchName, targetBranch string, excludedSourceBranches []string) ([]domain.PullRequest, error) {
	return nil, nil
}

var _ Provider = (*InactiveProvider)(nil)
