package api

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/vilaca/pipeline-flow/internal/domain"
)

// Remote identifies a repository from its git remote URL.
type Remote struct {
	Platform string
	Scheme   string
	Host     string
	// Owner is the GitLab namespace path, GitHub/Gitea owner, Bitbucket workspace
	// or Azure DevOps organization.
	Owner      string
	Project    string // Azure DevOps only
	Repository string
}

// WebBaseURL returns the browser base URL of the host.
func (r Remote) WebBaseURL() string {
	scheme := r.Scheme
	if scheme == "" || scheme == "ssh" {
		scheme = "https"
	}
	return scheme + "://" + r.Host
}

// DetectPlatform guesses the hosting platform from a remote URL host.
// Returns "" when the host is not recognized.
func DetectPlatform(host string) string {
	host = strings.ToLower(host)
	switch {
	case strings.Contains(host, "dev.azure.com") || strings.Contains(host, "visualstudio.com"):
		return domain.PlatformAzure
	case strings.Contains(host, "bitbucket"):
		return domain.PlatformBitbucket
	case strings.Contains(host, "gitlab"):
		return domain.PlatformGitLab
	case strings.Contains(host, "gitea"):
		return domain.PlatformGitea
	case strings.Contains(host, "github"):
		return domain.PlatformGitHub
	default:
		return ""
	}
}

// ParseRemote parses https and scp-like ssh remote URLs.
func ParseRemote(remoteURL string) (Remote, error) {
	raw := strings.TrimSpace(remoteURL)
	if raw == "" {
		return Remote{}, fmt.Errorf("empty remote URL")
	}

	var scheme, host, path string
	if strings.Contains(raw, "://") {
		u, err := url.Parse(raw)
		if err != nil {
			return Remote{}, fmt.Errorf("invalid remote URL %q: %w", raw, err)
		}
		scheme, host, path = u.Scheme, u.Hostname(), u.Path
		if u.Port() != "" && scheme != "ssh" {
			host = u.Host
		}
	} else if at := strings.Index(raw, "@"); at >= 0 && strings.Contains(raw[at:], ":") {
		// git@host:owner/repo.git
		rest := raw[at+1:]
		colon := strings.Index(rest, ":")
		scheme, host, path = "ssh", rest[:colon], rest[colon+1:]
	} else {
		return Remote{}, fmt.Errorf("unsupported remote URL %q", raw)
	}

	path = strings.Trim(strings.TrimSuffix(strings.Trim(path, "/"), ".git"), "/")
	segments := strings.Split(path, "/")

	remote := Remote{
		Platform: DetectPlatform(host),
		Scheme:   scheme,
		Host:     host,
	}

	switch remote.Platform {
	case domain.PlatformAzure:
		// https://dev.azure.com/{org}/{project}/_git/{repo}
		// git@ssh.dev.azure.com:v3/{org}/{project}/{repo}
		if len(segments) > 0 && segments[0] == "v3" {
			segments = segments[1:]
		}
		filtered := make([]string, 0, len(segments))
		for _, s := range segments {
			if s != "_git" {
				filtered = append(filtered, s)
			}
		}
		if len(filtered) < 3 {
			return Remote{}, fmt.Errorf("invalid Azure DevOps remote %q", raw)
		}
		remote.Host = "dev.azure.com"
		remote.Owner, remote.Project, remote.Repository = filtered[0], filtered[1], filtered[2]
	default:
		if len(segments) < 2 {
			return Remote{}, fmt.Errorf("remote %q has no owner/repository path", raw)
		}
		remote.Owner = strings.Join(segments[:len(segments)-1], "/")
		remote.Repository = segments[len(segments)-1]
	}

	return remote, nil
}
