// Package resolver selects the hosting provider variant for a repository remote.
package resolver

import (
	"context"
	"strings"

	"github.com/vilaca/pipeline-flow/internal/api"
	"github.com/vilaca/pipeline-flow/internal/api/azure"
	"github.com/vilaca/pipeline-flow/internal/api/bitbucket"
	"github.com/vilaca/pipeline-flow/internal/api/github"
	"github.com/vilaca/pipeline-flow/internal/api/gitlab"
	"github.com/vilaca/pipeline-flow/internal/domain"
)

// Secret keys looked up per platform.
const (
	SecretGitLabToken       = "GITLAB_TOKEN"
	SecretGitHubToken       = "GITHUB_TOKEN"
	SecretGiteaToken        = "GITEA_TOKEN"
	SecretAzureToken        = "AZURE_DEVOPS_TOKEN"
	SecretBitbucketToken    = "BITBUCKET_TOKEN"
	SecretBitbucketUsername = "BITBUCKET_USERNAME"
)

// SecretStore returns a stored secret and whether it exists.
type SecretStore interface {
	GetSecret(key string) (string, bool)
}

// Logger interface for logging operations.
type Logger interface {
	Printf(format string, v ...interface{})
}

// Resolve detects the platform from the remote URL and returns an authenticated
// provider, or the inactive provider when the remote is unknown or no token is stored.
func Resolve(ctx context.Context, remoteURL string, secrets SecretStore, httpClient api.HTTPClient, logger Logger) api.Provider {
	remote, err := api.ParseRemote(remoteURL)
	if err != nil {
		logger.Printf("Provider: cannot parse remote %q: %v", remoteURL, err)
		return api.NewInactiveProvider()
	}
	if remote.Platform == "" {
		logger.Printf("Provider: unrecognized host %s", remote.Host)
		return api.NewInactiveProvider()
	}

	tokenKey := tokenKeyFor(remote.Platform)
	token, ok := secrets.GetSecret(tokenKey)
	if !ok || strings.TrimSpace(token) == "" {
		logger.Printf("Provider: %s detected but %s is not set, running without remote data", remote.Platform, tokenKey)
		return api.NewInactiveProvider()
	}

	config := api.ClientConfig{
		Token:      token,
		Owner:      remote.Owner,
		Project:    remote.Project,
		Repository: remote.Repository,
	}

	var backend api.Backend
	switch remote.Platform {
	case domain.PlatformGitLab:
		config.BaseURL = remote.WebBaseURL()
		backend = gitlab.NewClient(config, httpClient)
	case domain.PlatformGitHub:
		if remote.Host != "github.com" {
			config.BaseURL = remote.WebBaseURL()
		}
		backend, err = github.NewClient(ctx, config)
	case domain.PlatformGitea:
		config.BaseURL = remote.WebBaseURL()
		backend, err = github.NewGiteaClient(ctx, config)
	case domain.PlatformAzure:
		backend = azure.NewClient(config, httpClient)
	case domain.PlatformBitbucket:
		config.Username, _ = secrets.GetSecret(SecretBitbucketUsername)
		backend = bitbucket.NewClient(config, httpClient)
	}
	if err != nil || backend == nil {
		logger.Printf("Provider: failed to create %s client: %v", remote.Platform, err)
		return api.NewInactiveProvider()
	}

	logger.Printf("Provider: %s enabled for %s/%s", remote.Platform, remote.Owner, remote.Repository)
	return api.NewHostedProvider(backend)
}

func tokenKeyFor(platform string) string {
	switch platform {
	case domain.PlatformGitLab:
		return SecretGitLabToken
	case domain.PlatformGitea:
		return SecretGiteaToken
	case domain.PlatformAzure:
		return SecretAzureToken
	case domain.PlatformBitbucket:
		return SecretBitbucketToken
	default:
		return SecretGitHubToken
	}
}
