package domain

// Platform constants
const (
	// PlatformGitLab represents GitLab (gitlab.com or self-hosted)
	PlatformGitLab = "gitlab"
	// PlatformGitHub represents GitHub and GitHub Enterprise
	PlatformGitHub = "github"
	// PlatformGitea represents Gitea, reached through its GitHub-compatible API
	PlatformGitea = "gitea"
	// PlatformAzure represents Azure DevOps Repos
	PlatformAzure = "azure"
	// PlatformBitbucket represents Bitbucket Cloud
	PlatformBitbucket = "bitbucket"
	// PlatformNone is reported by the inactive provider
	PlatformNone = "none"
)
