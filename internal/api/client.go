package api

import (
	"context"
	"errors"
	"time"

	"github.com/vilaca/pipeline-flow/internal/domain"
)

// ErrUnsupported is returned by a backend for an operation its vendor API cannot serve.
var ErrUnsupported = errors.New("operation not supported by provider")

// Provider is the capability interface over a remote source-hosting provider.
// Exactly one variant is selected per repository; InactiveProvider is used
// when none can be resolved, so callers never check for a missing provider.
type Provider interface {
	// Platform returns the platform identifier (see domain.Platform* constants).
	Platform() string

	// IsActive returns true when the provider is resolved and authenticated.
	IsActive() bool

	// ListPullRequestsForBranch returns pull requests (any state) targeting a branch.
	ListPullRequestsForBranch(ctx context.Context, targetBranch string) ([]domain.PullRequest, error)

	// ListOpenPullRequests returns open pull requests with their jobs attached.
	ListOpenPullRequests(ctx context.Context) ([]domain.PullRequest, error)

	// GetJobsForBranchLatestCommit returns the jobs of the head commit of a branch.
	GetJobsForBranchLatestCommit(ctx context.Context, branchName string) (*BranchJobs, error)

	// CreatePullRequestURL returns a web URL opening a new pull request form, or "".
	CreatePullRequestURL(sourceBranch, targetBranch string) string

	// ListPullRequestsInBranchSinceLastMerge returns the feature pull requests merged
	// into branchName (directly or through excludedSourceBranches) since branchName
	// was last merged into targetBranch. Promotion requests coming from
	// excludedSourceBranches are not counted.
	ListPullRequestsInBranchSinceLastMerge(ctx context.Context, branchName, targetBranch string, excludedSourceBranches []string) ([]domain.PullRequest, error)
}

// BranchJobs is the job list of a branch head commit and its aggregated status.
type BranchJobs struct {
	Jobs       []domain.Job
	JobsStatus domain.Status
}

// PullRequestFilter narrows a backend pull request listing.
// Empty fields do not filter.
type PullRequestFilter struct {
	State        domain.PullRequestState
	SourceBranch string
	TargetBranch string
	MergedAfter  time.Time
}

// Backend is the small vendor surface each platform client implements.
// HostedProvider builds the full Provider behavior on top of it.
type Backend interface {
	Platform() string

	// ListPullRequests lists pull requests matching the filter.
	ListPullRequests(ctx context.Context, filter PullRequestFilter) ([]domain.PullRequest, error)

	// GetBranchHead returns the SHA of the latest commit of a branch.
	GetBranchHead(ctx context.Context, branchName string) (string, error)

	// GetCommitJobs returns the CI jobs reported for a commit.
	GetCommitJobs(ctx context.Context, sha string) ([]domain.Job, error)

	// CreatePullRequestURL returns the web URL of the new pull request form.
	CreatePullRequestURL(sourceBranch, targetBranch string) string
}

// ClientConfig holds common configuration for API clients.
type ClientConfig struct {
	BaseURL string
	Token   string

	// Owner and Repository identify the repository on the platform
	// (GitLab namespace path, GitHub owner, Bitbucket workspace, Azure organization).
	Owner      string
	Project    string // Azure DevOps project, unused elsewhere
	Repository string

	// Username is used by platforms authenticating with basic auth (Bitbucket app passwords).
	Username string

	// WebURL is the browser base URL when it differs from the API base URL.
	WebURL string
}
