package domain

import "time"

// Job represents one CI run tied to a commit (GitLab job, GitHub check run,
// Azure or Bitbucket commit status).
type Job struct {
	Name      string    `json:"name"`
	Status    Status    `json:"status"`
	WebURL    string    `json:"webUrl,omitempty"`
	UpdatedAt time.Time `json:"updatedAt,omitempty"`
}
