package domain

// OrgType is the pipeline role of a long-lived branch.
type OrgType string

const (
	OrgTypeProd        OrgType = "prod"
	OrgTypePreprod     OrgType = "preprod"
	OrgTypeUATRun      OrgType = "uatrun"
	OrgTypeUAT         OrgType = "uat"
	OrgTypeIntegration OrgType = "integration"
	OrgTypeOther       OrgType = "other"
)

// Branch represents a configured long-lived pipeline branch and its deployment target.
// Jobs, JobsStatus and PullRequestsSinceLastMerge are attached by the enrichment pass.
type Branch struct {
	Name            string   `json:"branchName"`
	OrgType         OrgType  `json:"orgType"`
	Level           int      `json:"level"`
	Alias           string   `json:"alias,omitempty"`
	DeployTargetURL string   `json:"deployTargetUrl,omitempty"`
	MergeTargets    []string `json:"mergeTargets"`
	Warnings        []string `json:"warnings,omitempty"`

	Jobs                       []Job         `json:"jobs,omitempty"`
	JobsStatus                 Status        `json:"jobsStatus"`
	PullRequestsSinceLastMerge []PullRequest `json:"pullRequestsSinceLastMerge,omitempty"`
}

// FirstMergeTarget returns the first merge target, or "" if none is set.
func (b Branch) FirstMergeTarget() string {
	if len(b.MergeTargets) == 0 {
		return ""
	}
	return b.MergeTargets[0]
}
