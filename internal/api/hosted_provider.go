package api

import (
	"context"
	"fmt"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/vilaca/pipeline-flow/internal/domain"
)

// HostedProvider implements Provider on top of a vendor Backend.
// The aggregation and "since last merge" logic is shared by every platform.
type HostedProvider struct {
	backend Backend
}

// NewHostedProvider creates an active provider for a vendor backend.
func NewHostedProvider(backend Backend) *HostedProvider {
	return &HostedProvider{backend: backend}
}

func (p *HostedProvider) Platform() string { return p.backend.Platform() }

func (p *HostedProvider) IsActive() bool { return true }

// ListPullRequestsForBranch returns every pull request targeting a branch.
func (p *HostedProvider) ListPullRequestsForBranch(ctx context.Context, targetBranch string) ([]domain.PullRequest, error) {
	prs, err := p.backend.ListPullRequests(ctx, PullRequestFilter{TargetBranch: targetBranch})
	if err != nil {
		return nil, fmt.Errorf("failed to list pull requests for %s: %w", targetBranch, err)
	}
	return prs, nil
}

// ListOpenPullRequests returns open pull requests with the jobs of their head commit.
// A pull request whose jobs cannot be fetched keeps an unknown status.
func (p *HostedProvider) ListOpenPullRequests(ctx context.Context) ([]domain.PullRequest, error) {
	prs, err := p.backend.ListPullRequests(ctx, PullRequestFilter{State: domain.PullRequestOpen})
	if err != nil {
		return nil, fmt.Errorf("failed to list open pull requests: %w", err)
	}

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(MaxConcurrentRequests)
	for i := range prs {
		i := i
		prs[i].JobsStatus = domain.StatusUnknown
		if prs[i].HeadSHA == "" {
			continue
		}
		g.Go(func() error {
			jobs, err := p.backend.GetCommitJobs(gCtx, prs[i].HeadSHA)
			if err != nil {
				return nil // non-fatal: status stays unknown
			}
			prs[i].Jobs = jobs
			prs[i].JobsStatus = domain.ComputeJobsStatus(jobs)
			return nil
		})
	}
	_ = g.Wait()

	return prs, nil
}

// GetJobsForBranchLatestCommit returns the jobs of a branch head commit.
func (p *HostedProvider) GetJobsForBranchLatestCommit(ctx context.Context, branchName string) (*BranchJobs, error) {
	sha, err := p.backend.GetBranchHead(ctx, branchName)
	if err != nil {
		return nil, fmt.Errorf("failed to get head of %s: %w", branchName, err)
	}
	if sha == "" {
		return &BranchJobs{JobsStatus: domain.StatusUnknown}, nil
	}

	jobs, err := p.backend.GetCommitJobs(ctx, sha)
	if err != nil {
		return nil, fmt.Errorf("failed to get jobs of %s@%s: %w", branchName, sha, err)
	}

	return &BranchJobs{
		Jobs:       jobs,
		JobsStatus: domain.ComputeJobsStatus(jobs),
	}, nil
}

// CreatePullRequestURL delegates to the backend.
func (p *HostedProvider) CreatePullRequestURL(sourceBranch, targetBranch string) string {
	return p.backend.CreatePullRequestURL(sourceBranch, targetBranch)
}

// ListPullRequestsInBranchSinceLastMerge finds the last merge of branchName into
// targetBranch, then returns the pull requests merged after it into branchName
// or any of the child branches. Requests whose source is the branch itself,
// its target or one of the children are promotions and are skipped.
func (p *HostedProvider) ListPullRequestsInBranchSinceLastMerge(ctx context.Context, branchName, targetBranch string, excludedSourceBranches []string) ([]domain.PullRequest, error) {
	syncs, err := p.backend.ListPullRequests(ctx, PullRequestFilter{
		State:        domain.PullRequestMerged,
		SourceBranch: branchName,
		TargetBranch: targetBranch,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to find last merge of %s into %s: %w", branchName, targetBranch, err)
	}

	var lastSync domain.PullRequest
	for _, pr := range syncs {
		if pr.MergedAt.After(lastSync.MergedAt) {
			lastSync = pr
		}
	}

	skip := map[string]bool{branchName: true, targetBranch: true}
	for _, b := range excludedSourceBranches {
		skip[b] = true
	}

	seen := make(map[string]bool)
	var result []domain.PullRequest
	for _, target := range append([]string{branchName}, excludedSourceBranches...) {
		merged, err := p.backend.ListPullRequests(ctx, PullRequestFilter{
			State:        domain.PullRequestMerged,
			TargetBranch: target,
			MergedAfter:  lastSync.MergedAt,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to list pull requests merged into %s: %w", target, err)
		}
		for _, pr := range merged {
			if skip[pr.SourceBranch] || seen[pr.ID] || !pr.MergedAt.After(lastSync.MergedAt) {
				continue
			}
			seen[pr.ID] = true
			result = append(result, pr)
		}
	}

	sort.SliceStable(result, func(i, j int) bool {
		if !result[i].MergedAt.Equal(result[j].MergedAt) {
			return result[i].MergedAt.After(result[j].MergedAt)
		}
		return result[i].ID < result[j].ID
	})

	return result, nil
}

var _ Provider = (*HostedProvider)(nil)
