package gitlab

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/vilaca/pipeline-flow/internal/api"
	"github.com/vilaca/pipeline-flow/internal/domain"
)

// Client implements api.Backend for GitLab REST API v4.
type Client struct {
	*api.BaseClient
	webURL    string
	projectID string // URL-escaped namespace/project path
	project   string // raw namespace/project path
}

// NewClient creates a new GitLab client.
// Uses dependency injection for HTTPClient (IoC).
func NewClient(config api.ClientConfig, httpClient api.HTTPClient) *Client {
	baseURL := strings.TrimSuffix(config.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://gitlab.com"
	}
	webURL := strings.TrimSuffix(config.WebURL, "/")
	if webURL == "" {
		webURL = baseURL
	}
	project := config.Owner + "/" + config.Repository
	token := config.Token

	return &Client{
		BaseClient: api.NewBaseClient(baseURL, httpClient, func(req *http.Request) {
			req.Header.Set("PRIVATE-TOKEN", token)
		}),
		webURL:    webURL,
		projectID: url.PathEscape(project),
		project:   project,
	}
}

func (c *Client) Platform() string { return domain.PlatformGitLab }

// ListPullRequests retrieves merge requests of the project.
func (c *Client) ListPullRequests(ctx context.Context, filter api.PullRequestFilter) ([]domain.PullRequest, error) {
	query := url.Values{}
	query.Set("per_page", strconv.Itoa(api.DefaultPageSize))
	query.Set("state", convertStateFilter(filter.State))
	if filter.TargetBranch != "" {
		query.Set("target_branch", filter.TargetBranch)
	}
	if filter.SourceBranch != "" {
		query.Set("source_branch", filter.SourceBranch)
	}
	if !filter.MergedAfter.IsZero() {
		query.Set("updated_after", filter.MergedAfter.UTC().Format(time.RFC3339))
	}

	var result []domain.PullRequest
	for page := 1; page <= api.MaxPages; page++ {
		query.Set("page", strconv.Itoa(page))
		endpoint := fmt.Sprintf("%s/api/v4/projects/%s/merge_requests?%s", c.BaseURL, c.projectID, query.Encode())

		var glMRs []gitlabMergeRequest
		if err := c.GetJSON(ctx, endpoint, &glMRs); err != nil {
			return nil, fmt.Errorf("failed to get merge requests: %w", err)
		}
		for _, mr := range glMRs {
			result = append(result, c.convertMergeRequest(mr))
		}
		if len(glMRs) < api.DefaultPageSize {
			break
		}
	}

	return result, nil
}

// GetBranchHead retrieves the latest commit SHA of a branch.
func (c *Client) GetBranchHead(ctx context.Context, branchName string) (string, error) {
	endpoint := fmt.Sprintf("%s/api/v4/projects/%s/repository/branches/%s",
		c.BaseURL, c.projectID, url.PathEscape(branchName))

	var branch gitlabBranch
	if err := c.GetJSON(ctx, endpoint, &branch); err != nil {
		return "", fmt.Errorf("failed to get branch: %w", err)
	}

	return branch.Commit.ID, nil
}

// GetCommitJobs retrieves the commit statuses (one per CI job) of a commit.
func (c *Client) GetCommitJobs(ctx context.Context, sha string) ([]domain.Job, error) {
	endpoint := fmt.Sprintf("%s/api/v4/projects/%s/repository/commits/%s/statuses?per_page=%d",
		c.BaseURL, c.projectID, url.PathEscape(sha), api.DefaultPageSize)

	var statuses []gitlabCommitStatus
	if err := c.GetJSON(ctx, endpoint, &statuses); err != nil {
		return nil, fmt.Errorf("failed to get commit statuses: %w", err)
	}

	jobs := make([]domain.Job, len(statuses))
	for i, s := range statuses {
		updated := s.CreatedAt
		if s.FinishedAt != nil {
			updated = *s.FinishedAt
		} else if s.StartedAt != nil {
			updated = *s.StartedAt
		}
		jobs[i] = domain.Job{
			Name:      s.Name,
			Status:    convertStatus(s.Status),
			WebURL:    s.TargetURL,
			UpdatedAt: updated,
		}
	}

	return jobs, nil
}

// CreatePullRequestURL returns the new merge request form URL.
func (c *Client) CreatePullRequestURL(sourceBranch, targetBranch string) string {
	query := url.Values{}
	query.Set("merge_request[source_branch]", sourceBranch)
	query.Set("merge_request[target_branch]", targetBranch)
	return fmt.Sprintf("%s/%s/-/merge_requests/new?%s", c.webURL, c.project, query.Encode())
}

// convertMergeRequest converts a GitLab merge request to domain model.
func (c *Client) convertMergeRequest(mr gitlabMergeRequest) domain.PullRequest {
	pr := domain.PullRequest{
		ID:           strconv.Itoa(mr.ID),
		Number:       mr.IID,
		Title:        mr.Title,
		Description:  mr.Description,
		State:        convertState(mr.State),
		SourceBranch: mr.SourceBranch,
		TargetBranch: mr.TargetBranch,
		WebURL:       mr.WebURL,
		AuthorLabel:  mr.Author.Name,
		HeadSHA:      mr.SHA,
		JobsStatus:   domain.StatusUnknown,
	}
	if pr.AuthorLabel == "" {
		pr.AuthorLabel = mr.Author.Username
	}
	if mr.MergedAt != nil {
		pr.MergedAt = *mr.MergedAt
	}
	return pr
}

func convertStateFilter(state domain.PullRequestState) string {
	switch state {
	case domain.PullRequestOpen:
		return "opened"
	case domain.PullRequestMerged:
		return "merged"
	case domain.PullRequestClosed, domain.PullRequestDeclined:
		return "closed"
	default:
		return "all"
	}
}

func convertState(glState string) domain.PullRequestState {
	switch glState {
	case "opened", "locked":
		return domain.PullRequestOpen
	case "merged":
		return domain.PullRequestMerged
	default:
		return domain.PullRequestClosed
	}
}

// convertStatus converts a GitLab job status to domain status.
func convertStatus(glStatus string) domain.Status {
	switch glStatus {
	case "created", "pending", "waiting_for_resource", "preparing", "scheduled":
		return domain.StatusPending
	case "running":
		return domain.StatusRunning
	case "success", "skipped":
		return domain.StatusSuccess
	case "failed", "canceled":
		return domain.StatusFailed
	default:
		return domain.StatusUnknown
	}
}

// GitLab API response types
type gitlabMergeRequest struct {
	ID           int        `json:"id"`
	IID          int        `json:"iid"`
	Title        string     `json:"title"`
	Description  string     `json:"description"`
	State        string     `json:"state"`
	SourceBranch string     `json:"source_branch"`
	TargetBranch string     `json:"target_branch"`
	WebURL       string     `json:"web_url"`
	SHA          string     `json:"sha"`
	MergedAt     *time.Time `json:"merged_at"`
	Author       struct {
		Name     string `json:"name"`
		Username string `json:"username"`
	} `json:"author"`
}

type gitlabBranch struct {
	Name   string `json:"name"`
	Commit struct {
		ID string `json:"id"`
	} `json:"commit"`
}

type gitlabCommitStatus struct {
	Name       string     `json:"name"`
	Status     string     `json:"status"`
	TargetURL  string     `json:"target_url"`
	CreatedAt  time.Time  `json:"created_at"`
	StartedAt  *time.Time `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at"`
}

var _ api.Backend = (*Client)(nil)
