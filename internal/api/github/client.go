package github

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	gh "github.com/google/go-github/v57/github"
	"golang.org/x/oauth2"

	"github.com/vilaca/pipeline-flow/internal/api"
	"github.com/vilaca/pipeline-flow/internal/domain"
)

// Client implements api.Backend for GitHub, and for Gitea through its
// GitHub-compatible REST API.
type Client struct {
	client   *gh.Client
	platform string
	owner    string
	repo     string
	webURL   string
}

// NewClient creates a GitHub client authenticated with an oauth2 static token.
// A non-empty BaseURL targets GitHub Enterprise.
func NewClient(ctx context.Context, config api.ClientConfig) (*Client, error) {
	client := gh.NewClient(tokenHTTPClient(ctx, config.Token))

	webURL := "https://github.com"
	if config.BaseURL != "" && !strings.Contains(config.BaseURL, "api.github.com") {
		var err error
		client, err = client.WithEnterpriseURLs(config.BaseURL, config.BaseURL)
		if err != nil {
			return nil, fmt.Errorf("invalid GitHub Enterprise URL: %w", err)
		}
		webURL = strings.TrimSuffix(config.BaseURL, "/")
	}
	if config.WebURL != "" {
		webURL = strings.TrimSuffix(config.WebURL, "/")
	}

	return &Client{
		client:   client,
		platform: domain.PlatformGitHub,
		owner:    config.Owner,
		repo:     config.Repository,
		webURL:   webURL,
	}, nil
}

// NewGiteaClient creates a client for a Gitea instance; the API lives under /api/v1.
func NewGiteaClient(ctx context.Context, config api.ClientConfig) (*Client, error) {
	base := strings.TrimSuffix(config.BaseURL, "/")
	if base == "" {
		return nil, fmt.Errorf("gitea base URL is required")
	}

	apiURL, err := url.Parse(base + "/api/v1/")
	if err != nil {
		return nil, fmt.Errorf("invalid Gitea URL: %w", err)
	}

	client := gh.NewClient(tokenHTTPClient(ctx, config.Token))
	client.BaseURL = apiURL

	webURL := base
	if config.WebURL != "" {
		webURL = strings.TrimSuffix(config.WebURL, "/")
	}

	return &Client{
		client:   client,
		platform: domain.PlatformGitea,
		owner:    config.Owner,
		repo:     config.Repository,
		webURL:   webURL,
	}, nil
}

func tokenHTTPClient(ctx context.Context, token string) *http.Client {
	if token == "" {
		return nil
	}
	ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token})
	return oauth2.NewClient(ctx, ts)
}

func (c *Client) Platform() string { return c.platform }

// ListPullRequests retrieves pull requests, following pagination.
func (c *Client) ListPullRequests(ctx context.Context, filter api.PullRequestFilter) ([]domain.PullRequest, error) {
	opts := &gh.PullRequestListOptions{
		State:       convertStateFilter(filter.State),
		Base:        filter.TargetBranch,
		ListOptions: gh.ListOptions{PerPage: api.DefaultPageSize},
	}
	if filter.SourceBranch != "" {
		opts.Head = c.owner + ":" + filter.SourceBranch
	}
	if !filter.MergedAfter.IsZero() {
		opts.Sort = "updated"
		opts.Direction = "desc"
	}

	var result []domain.PullRequest
	for page := 0; page < api.MaxPages; page++ {
		prs, resp, err := c.client.PullRequests.List(ctx, c.owner, c.repo, opts)
		if err != nil {
			return nil, fmt.Errorf("failed to list pull requests: %w", err)
		}

		for _, pr := range prs {
			converted := convertPullRequest(pr)
			if filter.State == domain.PullRequestMerged && converted.State != domain.PullRequestMerged {
				continue
			}
			if filter.SourceBranch != "" && converted.SourceBranch != filter.SourceBranch {
				continue
			}
			if !filter.MergedAfter.IsZero() && !converted.MergedAt.After(filter.MergedAfter) {
				continue
			}
			result = append(result, converted)
		}

		if resp == nil || resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}

	return result, nil
}

// GetBranchHead retrieves the latest commit SHA of a branch.
func (c *Client) GetBranchHead(ctx context.Context, branchName string) (string, error) {
	branch, _, err := c.client.Repositories.GetBranch(ctx, c.owner, c.repo, branchName, 1)
	if err != nil {
		return "", fmt.Errorf("failed to get branch: %w", err)
	}
	return branch.GetCommit().GetSHA(), nil
}

// GetCommitJobs retrieves check runs of a commit. Gitea has no checks API and
// reports commit statuses instead.
func (c *Client) GetCommitJobs(ctx context.Context, sha string) ([]domain.Job, error) {
	if c.platform == domain.PlatformGitea {
		return c.getCommitStatuses(ctx, sha)
	}

	results, _, err := c.client.Checks.ListCheckRunsForRef(ctx, c.owner, c.repo, sha, &gh.ListCheckRunsOptions{
		ListOptions: gh.ListOptions{PerPage: api.DefaultPageSize},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list check runs: %w", err)
	}

	jobs := make([]domain.Job, 0, len(results.CheckRuns))
	for _, run := range results.CheckRuns {
		updated := run.GetCompletedAt().Time
		if updated.IsZero() {
			updated = run.GetStartedAt().Time
		}
		jobs = append(jobs, domain.Job{
			Name:      run.GetName(),
			Status:    convertCheckStatus(run.GetStatus(), run.GetConclusion()),
			WebURL:    run.GetHTMLURL(),
			UpdatedAt: updated,
		})
	}

	return jobs, nil
}

func (c *Client) getCommitStatuses(ctx context.Context, sha string) ([]domain.Job, error) {
	statuses, _, err := c.client.Repositories.ListStatuses(ctx, c.owner, c.repo, sha, &gh.ListOptions{PerPage: api.DefaultPageSize})
	if err != nil {
		return nil, fmt.Errorf("failed to list commit statuses: %w", err)
	}

	// Statuses are returned newest first; keep the latest one per context.
	seen := make(map[string]bool)
	var jobs []domain.Job
	for _, s := range statuses {
		name := s.GetContext()
		if seen[name] {
			continue
		}
		seen[name] = true
		jobs = append(jobs, domain.Job{
			Name:      name,
			Status:    convertCommitState(s.GetState()),
			WebURL:    s.GetTargetURL(),
			UpdatedAt: s.GetUpdatedAt().Time,
		})
	}

	return jobs, nil
}

// CreatePullRequestURL returns the compare page that opens a new pull request.
func (c *Client) CreatePullRequestURL(sourceBranch, targetBranch string) string {
	if c.platform == domain.PlatformGitea {
		return fmt.Sprintf("%s/%s/%s/compare/%s...%s", c.webURL, c.owner, c.repo,
			url.PathEscape(targetBranch), url.PathEscape(sourceBranch))
	}
	return fmt.Sprintf("%s/%s/%s/compare/%s...%s?expand=1", c.webURL, c.owner, c.repo,
		url.PathEscape(targetBranch), url.PathEscape(sourceBranch))
}

// convertPullRequest converts a go-github pull request to domain model.
func convertPullRequest(pr *gh.PullRequest) domain.PullRequest {
	state := domain.PullRequestOpen
	switch {
	case pr.MergedAt != nil:
		state = domain.PullRequestMerged
	case pr.GetState() == "closed":
		state = domain.PullRequestClosed
	}

	return domain.PullRequest{
		ID:           strconv.FormatInt(pr.GetID(), 10),
		Number:       pr.GetNumber(),
		Title:        pr.GetTitle(),
		Description:  pr.GetBody(),
		State:        state,
		SourceBranch: pr.GetHead().GetRef(),
		TargetBranch: pr.GetBase().GetRef(),
		WebURL:       pr.GetHTMLURL(),
		AuthorLabel:  pr.GetUser().GetLogin(),
		HeadSHA:      pr.GetHead().GetSHA(),
		MergedAt:     pr.GetMergedAt().Time,
		JobsStatus:   domain.StatusUnknown,
	}
}

func convertStateFilter(state domain.PullRequestState) string {
	switch state {
	case domain.PullRequestOpen:
		return "open"
	case domain.PullRequestMerged, domain.PullRequestClosed, domain.PullRequestDeclined:
		return "closed"
	default:
		return "all"
	}
}

// convertCheckStatus converts GitHub check run status and conclusion to domain status.
func convertCheckStatus(status, conclusion string) domain.Status {
	switch status {
	case "queued", "requested", "waiting", "pending":
		return domain.StatusPending
	case "in_progress":
		return domain.StatusRunning
	}

	// Status is 'completed', check conclusion
	switch conclusion {
	case "success", "neutral", "skipped":
		return domain.StatusSuccess
	case "failure", "cancelled", "timed_out", "action_required", "startup_failure":
		return domain.StatusFailed
	default:
		return domain.StatusUnknown
	}
}

// convertCommitState converts a commit status state (Gitea, GitHub legacy statuses).
func convertCommitState(state string) domain.Status {
	switch state {
	case "pending":
		return domain.StatusPending
	case "running":
		return domain.StatusRunning
	case "success":
		return domain.StatusSuccess
	case "failure", "error":
		return domain.StatusFailed
	default:
		return domain.StatusUnknown
	}
}

var _ api.Backend = (*Client)(nil)
