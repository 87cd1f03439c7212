package domain

import (
	"strconv"
	"time"
)

// PullRequestState is the normalized state of a pull request (GitHub, Gitea,
// Bitbucket, Azure) or merge request (GitLab).
type PullRequestState string

const (
	PullRequestOpen     PullRequestState = "open"
	PullRequestClosed   PullRequestState = "closed"
	PullRequestMerged   PullRequestState = "merged"
	PullRequestDeclined PullRequestState = "declined"
)

// PullRequest represents a request to merge SourceBranch into TargetBranch.
type PullRequest struct {
	ID           string           `json:"id"`
	Number       int              `json:"number,omitempty"` // provider-native number (GitLab iid), 0 if none
	Title        string           `json:"title"`
	Description  string           `json:"description,omitempty"`
	State        PullRequestState `json:"state"`
	SourceBranch string           `json:"sourceBranch"`
	TargetBranch string           `json:"targetBranch"`
	WebURL       string           `json:"webUrl"`
	AuthorLabel  string           `json:"authorLabel,omitempty"`
	HeadSHA      string           `json:"headSha,omitempty"`
	MergedAt     time.Time        `json:"mergedAt,omitempty"`
	Jobs         []Job            `json:"jobs,omitempty"`
	JobsStatus   Status           `json:"jobsStatus"`

	Tickets            []Ticket  `json:"tickets,omitempty"`
	PreDeployCommands  []Command `json:"preDeployCommands,omitempty"`
	PostDeployCommands []Command `json:"postDeployCommands,omitempty"`
}

// DisplayNumber returns the number shown to users: the native number when
// the provider has one, the ID otherwise.
func (pr PullRequest) DisplayNumber() string {
	if pr.Number > 0 {
		return strconv.Itoa(pr.Number)
	}
	return pr.ID
}

// Ticket is an issue-tracker reference found on a pull request.
type Ticket struct {
	ID  string `json:"id"`
	URL string `json:"url,omitempty"`
}

// Command is a pre or post deployment action attached to a pull request.
type Command struct {
	ID      string `json:"id" yaml:"id"`
	Label   string `json:"label" yaml:"label"`
	Type    string `json:"type,omitempty" yaml:"type"`
	Command string `json:"command" yaml:"command"`
}
