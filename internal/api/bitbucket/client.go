package bitbucket

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

// Client implements api.Backend for Bitbucket Cloud REST API 2.0.
type Client struct {
	*api.BaseClient
	webURL    string
	workspace string
	repoSlug  string
}

// NewClient creates a new Bitbucket client. With a Username the token is used as
// an app password (basic auth), otherwise as a bearer access token.
func NewClient(config api.ClientConfig, httpClient api.HTTPClient) *Client {
	baseURL := strings.TrimSuffix(config.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://api.bitbucket.org/2.0"
	}
	webURL := strings.TrimSuffix(config.WebURL, "/")
	if webURL == "" {
		webURL = "https://bitbucket.org"
	}
	username, token := config.Username, config.Token

	return &Client{
		BaseClient: api.NewBaseClient(baseURL, httpClient, func(req *http.Request) {
			if username != "" {
				req.SetBasicAuth(username, token)
				return
			}
			req.Header.Set("Authorization", "Bearer "+token)
		}),
		webURL:    webURL,
		workspace: config.Owner,
		repoSlug:  config.Repository,
	}
}

func (c *Client) Platform() string { return domain.PlatformBitbucket }

func (c *Client) repoURL() string {
	return fmt.Sprintf("%s/repositories/%s/%s", c.BaseURL, url.PathEscape(c.workspace), url.PathEscape(c.repoSlug))
}

// ListPullRequests retrieves pull requests, following the "next" links.
func (c *Client) ListPullRequests(ctx context.Context, filter api.PullRequestFilter) ([]domain.PullRequest, error) {
	query := url.Values{}
	for _, state := range convertStateFilter(filter.State) {
		query.Add("state", state)
	}
	query.Set("pagelen", "50")
	if q := buildQuery(filter); q != "" {
		query.Set("q", q)
	}

	endpoint := fmt.Sprintf("%s/pullrequests?%s", c.repoURL(), query.Encode())
	var result []domain.PullRequest
	for page := 0; page < api.MaxPages && endpoint != ""; page++ {
		var response bitbucketPage[bitbucketPullRequest]
		if err := c.GetJSON(ctx, endpoint, &response); err != nil {
			return nil, fmt.Errorf("failed to get pull requests: %w", err)
		}
		for _, bpr := range response.Values {
			result = append(result, convertPullRequest(bpr))
		}
		endpoint = response.Next
	}

	return result, nil
}

// buildQuery builds the Bitbucket filter language expression for a filter.
func buildQuery(filter api.PullRequestFilter) string {
	var clauses []string
	if filter.TargetBranch != "" {
		clauses = append(clauses, fmt.Sprintf(`destination.branch.name = %q`, filter.TargetBranch))
	}
	if filter.SourceBranch != "" {
		clauses = append(clauses, fmt.Sprintf(`source.branch.name = %q`, filter.SourceBranch))
	}
	if !filter.MergedAfter.IsZero() {
		clauses = append(clauses, fmt.Sprintf(`updated_on > %s`, filter.MergedAfter.UTC().Format(time.RFC3339)))
	}
	return strings.Join(clauses, " AND ")
}

// GetBranchHead retrieves the latest commit hash of a branch.
func (c *Client) GetBranchHead(ctx context.Context, branchName string) (string, error) {
	endpoint := fmt.Sprintf("%s/refs/branches/%s", c.repoURL(), url.PathEscape(branchName))

	var branch bitbucketBranch
	if err := c.GetJSON(ctx, endpoint, &branch); err != nil {
		return "", fmt.Errorf("failed to get branch: %w", err)
	}

	return branch.Target.Hash, nil
}

// GetCommitJobs retrieves build statuses of a commit.
func (c *Client) GetCommitJobs(ctx context.Context, sha string) ([]domain.Job, error) {
	endpoint := fmt.Sprintf("%s/commit/%s/statuses?pagelen=100", c.repoURL(), url.PathEscape(sha))

	var response bitbucketPage[bitbucketStatus]
	if err := c.GetJSON(ctx, endpoint, &response); err != nil {
		return nil, fmt.Errorf("failed to get commit statuses: %w", err)
	}

	jobs := make([]domain.Job, len(response.Values))
	for i, s := range response.Values {
		name := s.Name
		if name == "" {
			name = s.Key
		}
		jobs[i] = domain.Job{
			Name:      name,
			Status:    convertStatus(s.State),
			WebURL:    s.URL,
			UpdatedAt: s.UpdatedOn,
		}
	}

	return jobs, nil
}

// CreatePullRequestURL returns the new pull request page URL.
func (c *Client) CreatePullRequestURL(sourceBranch, targetBranch string) string {
	query := url.Values{}
	query.Set("source", sourceBranch)
	query.Set("dest", targetBranch)
	return fmt.Sprintf("%s/%s/%s/pull-requests/new?%s", c.webURL, c.workspace, c.repoSlug, query.Encode())
}

// convertPullRequest converts a Bitbucket pull request to domain model.
// Bitbucket does not expose a merge date; updated_on of a merged request is used.
func convertPullRequest(bpr bitbucketPullRequest) domain.PullRequest {
	pr := domain.PullRequest{
		ID:           strconv.Itoa(bpr.ID),
		Number:       bpr.ID,
		Title:        bpr.Title,
		Description:  bpr.Description,
		State:        convertState(bpr.State),
		SourceBranch: bpr.Source.Branch.Name,
		TargetBranch: bpr.Destination.Branch.Name,
		WebURL:       bpr.Links.HTML.Href,
		AuthorLabel:  bpr.Author.DisplayName,
		HeadSHA:      bpr.Source.Commit.Hash,
		JobsStatus:   domain.StatusUnknown,
	}
	if pr.State == domain.PullRequestMerged {
		pr.MergedAt = bpr.UpdatedOn
	}
	return pr
}

func convertStateFilter(state domain.PullRequestState) []string {
	switch state {
	case domain.PullRequestOpen:
		return []string{"OPEN"}
	case domain.PullRequestMerged:
		return []string{"MERGED"}
	case domain.PullRequestDeclined, domain.PullRequestClosed:
		return []string{"DECLINED", "SUPERSEDED"}
	default:
		return []string{"OPEN", "MERGED", "DECLINED", "SUPERSEDED"}
	}
}

func convertState(state string) domain.PullRequestState {
	switch state {
	case "OPEN":
		return domain.PullRequestOpen
	case "MERGED":
		return domain.PullRequestMerged
	case "DECLINED":
		return domain.PullRequestDeclined
	default:
		return domain.PullRequestClosed
	}
}

// convertStatus converts a Bitbucket build status state to domain status.
func convertStatus(state string) domain.Status {
	switch state {
	case "INPROGRESS":
		return domain.StatusRunning
	case "SUCCESSFUL":
		return domain.StatusSuccess
	case "FAILED", "STOPPED":
		return domain.StatusFailed
	default:
		return domain.StatusUnknown
	}
}

// Bitbucket API response types
type bitbucketPage[T any] struct {
	Values []T    `json:"values"`
	Next   string `json:"next"`
}

type bitbucketPullRequest struct {
	ID          int       `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	State       string    `json:"state"`
	UpdatedOn   time.Time `json:"updated_on"`
	Source      struct {
		Branch struct {
			Name string `json:"name"`
		} `json:"branch"`
		Commit struct {
			Hash string `json:"hash"`
		} `json:"commit"`
	} `json:"source"`
	Destination struct {
		Branch struct {
			Name string `json:"name"`
		} `json:"branch"`
	} `json:"destination"`
	Author struct {
		DisplayName string `json:"display_name"`
	} `json:"author"`
	Links struct {
		HTML struct {
			Href string `json:"href"`
		} `json:"html"`
	} `json:"links"`
}

type bitbucketBranch struct {
	Name   string `json:"name"`
	Target struct {
		Hash string `json:"hash"`
	} `json:"target"`
}

type bitbucketStatus struct {
	Key       string    `json:"key"`
	Name      string    `json:"name"`
	State     string    `json:"state"`
	URL       string    `json:"url"`
	UpdatedOn time.Time `json:"updated_on"`
}

var _ api.Backend = (*Client)(nil)
