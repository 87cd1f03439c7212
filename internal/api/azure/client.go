package azure

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/vilaca/pipeline-flow/internal/api"
	"github.com/vilaca/pipeline-flow/internal/domain"
)

const apiVersion = "7.0"

// Client implements api.Backend for Azure DevOps Repos.
type Client struct {
	*api.BaseClient
	organization string
	project      string
	repository   string
}

// NewClient creates a new Azure DevOps client authenticated with a personal access token.
func NewClient(config api.ClientConfig, httpClient api.HTTPClient) *Client {
	baseURL := strings.TrimSuffix(config.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://dev.azure.com"
	}
	auth := "Basic " + base64.StdEncoding.EncodeToString([]byte(":"+config.Token))

	return &Client{
		BaseClient: api.NewBaseClient(baseURL, httpClient, func(req *http.Request) {
			req.Header.Set("Authorization", auth)
		}),
		organization: config.Owner,
		project:      config.Project,
		repository:   config.Repository,
	}
}

func (c *Client) Platform() string { return domain.PlatformAzure }

func (c *Client) repoURL() string {
	return fmt.Sprintf("%s/%s/%s/_apis/git/repositories/%s",
		c.BaseURL, url.PathEscape(c.organization), url.PathEscape(c.project), url.PathEscape(c.repository))
}

func (c *Client) webRepoURL() string {
	return fmt.Sprintf("%s/%s/%s/_git/%s",
		c.BaseURL, url.PathEscape(c.organization), url.PathEscape(c.project), url.PathEscape(c.repository))
}

// ListPullRequests retrieves pull requests of the repository.
func (c *Client) ListPullRequests(ctx context.Context, filter api.PullRequestFilter) ([]domain.PullRequest, error) {
	query := url.Values{}
	query.Set("api-version", apiVersion)
	query.Set("searchCriteria.status", convertStateFilter(filter.State))
	query.Set("$top", strconv.Itoa(api.DefaultPageSize))
	if filter.TargetBranch != "" {
		query.Set("searchCriteria.targetRefName", "refs/heads/"+filter.TargetBranch)
	}
	if filter.SourceBranch != "" {
		query.Set("searchCriteria.sourceRefName", "refs/heads/"+filter.SourceBranch)
	}

	var result []domain.PullRequest
	for page := 0; page < api.MaxPages; page++ {
		query.Set("$skip", strconv.Itoa(page*api.DefaultPageSize))
		endpoint := fmt.Sprintf("%s/pullrequests?%s", c.repoURL(), query.Encode())

		var response azurePullRequestList
		if err := c.GetJSON(ctx, endpoint, &response); err != nil {
			return nil, fmt.Errorf("failed to get pull requests: %w", err)
		}
		for _, apr := range response.Value {
			pr := c.convertPullRequest(apr)
			if !filter.MergedAfter.IsZero() && !pr.MergedAt.After(filter.MergedAfter) {
				continue
			}
			result = append(result, pr)
		}
		if len(response.Value) < api.DefaultPageSize {
			break
		}
	}

	return result, nil
}

// GetBranchHead retrieves the latest commit SHA of a branch.
func (c *Client) GetBranchHead(ctx context.Context, branchName string) (string, error) {
	query := url.Values{}
	query.Set("api-version", apiVersion)
	query.Set("filter", "heads/"+branchName)
	endpoint := fmt.Sprintf("%s/refs?%s", c.repoURL(), query.Encode())

	var response azureRefList
	if err := c.GetJSON(ctx, endpoint, &response); err != nil {
		return "", fmt.Errorf("failed to get branch ref: %w", err)
	}

	// The filter is a prefix match; pick the exact ref.
	for _, ref := range response.Value {
		if ref.Name == "refs/heads/"+branchName {
			return ref.ObjectID, nil
		}
	}
	return "", nil
}

// GetCommitJobs retrieves build/policy statuses posted on a commit.
func (c *Client) GetCommitJobs(ctx context.Context, sha string) ([]domain.Job, error) {
	endpoint := fmt.Sprintf("%s/commits/%s/statuses?api-version=%s&latestOnly=true",
		c.repoURL(), url.PathEscape(sha), apiVersion)

	var response azureStatusList
	if err := c.GetJSON(ctx, endpoint, &response); err != nil {
		return nil, fmt.Errorf("failed to get commit statuses: %w", err)
	}

	jobs := make([]domain.Job, len(response.Value))
	for i, s := range response.Value {
		name := s.Context.Name
		if s.Context.Genre != "" {
			name = s.Context.Genre + "/" + name
		}
		updated := s.CreationDate
		if s.UpdatedDate != nil {
			updated = *s.UpdatedDate
		}
		jobs[i] = domain.Job{
			Name:      name,
			Status:    convertStatus(s.State),
			WebURL:    s.TargetURL,
			UpdatedAt: updated,
		}
	}

	return jobs, nil
}

// CreatePullRequestURL returns the new pull request page URL.
func (c *Client) CreatePullRequestURL(sourceBranch, targetBranch string) string {
	query := url.Values{}
	query.Set("sourceRef", sourceBranch)
	query.Set("targetRef", targetBranch)
	return fmt.Sprintf("%s/pullrequestcreate?%s", c.webRepoURL(), query.Encode())
}

// convertPullRequest converts an Azure DevOps pull request to domain model.
func (c *Client) convertPullRequest(apr azurePullRequest) domain.PullRequest {
	pr := domain.PullRequest{
		ID:           strconv.Itoa(apr.PullRequestID),
		Number:       apr.PullRequestID,
		Title:        apr.Title,
		Description:  apr.Description,
		State:        convertState(apr.Status),
		SourceBranch: strings.TrimPrefix(apr.SourceRefName, "refs/heads/"),
		TargetBranch: strings.TrimPrefix(apr.TargetRefName, "refs/heads/"),
		WebURL:       fmt.Sprintf("%s/pullrequest/%d", c.webRepoURL(), apr.PullRequestID),
		AuthorLabel:  apr.CreatedBy.DisplayName,
		HeadSHA:      apr.LastMergeSourceCommit.CommitID,
		JobsStatus:   domain.StatusUnknown,
	}
	if pr.State == domain.PullRequestMerged && apr.ClosedDate != nil {
		pr.MergedAt = *apr.ClosedDate
	}
	return pr
}

func convertStateFilter(state domain.PullRequestState) string {
	switch state {
	case domain.PullRequestOpen:
		return "active"
	case domain.PullRequestMerged:
		return "completed"
	case domain.PullRequestClosed, domain.PullRequestDeclined:
		return "abandoned"
	default:
		return "all"
	}
}

func convertState(status string) domain.PullRequestState {
	switch status {
	case "active":
		return domain.PullRequestOpen
	case "completed":
		return domain.PullRequestMerged
	default:
		return domain.PullRequestClosed
	}
}

// convertStatus converts an Azure DevOps git status state to domain status.
func convertStatus(state string) domain.Status {
	switch state {
	case "pending":
		return domain.StatusRunning
	case "notSet":
		return domain.StatusPending
	case "succeeded", "notApplicable":
		return domain.StatusSuccess
	case "failed", "error":
		return domain.StatusFailed
	default:
		return domain.StatusUnknown
	}
}

// Azure DevOps API response types
type azurePullRequestList struct {
	Value []azurePullRequest `json:"value"`
}

type azurePullRequest struct {
	PullRequestID int        `json:"pullRequestId"`
	Title         string     `json:"title"`
	Description   string     `json:"description"`
	Status        string     `json:"status"`
	SourceRefName string     `json:"sourceRefName"`
	TargetRefName string     `json:"targetRefName"`
	ClosedDate    *time.Time `json:"closedDate"`
	CreatedBy     struct {
		DisplayName string `json:"displayName"`
	} `json:"createdBy"`
	LastMergeSourceCommit struct {
		CommitID string `json:"commitId"`
	} `json:"lastMergeSourceCommit"`
}

type azureRefList struct {
	Value []struct {
		Name     string `json:"name"`
		ObjectID string `json:"objectId"`
	} `json:"value"`
}

type azureStatusList struct {
	Value []azureStatus `json:"value"`
}

type azureStatus struct {
	State        string     `json:"state"`
	TargetURL    string     `json:"targetUrl"`
	CreationDate time.Time  `json:"creationDate"`
	UpdatedDate  *time.Time `json:"updatedDate"`
	Context      struct {
		Name  string `json:"name"`
		Genre string `json:"genre"`
	} `json:"context"`
}

var _ api.Backend = (*Client)(nil)
