package config

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// Config holds process configuration read from the environment.
type Config struct {
	Port int

	// RepoDir is the repository root holding config/ and scripts/.
	RepoDir string

	// RemoteURL overrides the origin URL found in the repository git config.
	RemoteURL string

	// CacheTTL is how long provider responses are reused.
	CacheTTL time.Duration

	// RefreshInterval is the period of background rebuilds in serve mode.
	RefreshInterval time.Duration

	// CacheFile persists the last build result; empty disables it.
	CacheFile string

	// TicketBaseURL prefixes ticket keys found in pull requests.
	TicketBaseURL string

	LogLevel string
}

// Load loads configuration from environment variables.
// Invalid numbers fall back to their defaults.
func Load() (*Config, error) {
	repoDir := getEnvOrDefault("PIPELINE_REPO_DIR", ".")
	if abs, err := filepath.Abs(repoDir); err == nil {
		repoDir = abs
	}

	return &Config{
		Port:            getIntOrDefault("PORT", 8080),
		RepoDir:         repoDir,
		RemoteURL:       os.Getenv("PIPELINE_REMOTE_URL"),
		CacheTTL:        time.Duration(getIntOrDefault("PIPELINE_CACHE_SECONDS", 60)) * time.Second,
		RefreshInterval: time.Duration(getIntOrDefault("PIPELINE_REFRESH_SECONDS", 300)) * time.Second,
		CacheFile:       os.Getenv("PIPELINE_CACHE_FILE"),
		TicketBaseURL:   os.Getenv("PIPELINE_TICKET_BASE_URL"),
		LogLevel:        strings.ToLower(getEnvOrDefault("PIPELINE_LOG_LEVEL", "info")),
	}, nil
}

// ResolveRemoteURL returns RemoteURL, or the origin URL of the repository.
func (c *Config) ResolveRemoteURL() string {
	if c.RemoteURL != "" {
		return c.RemoteURL
	}
	return DiscoverRemoteURL(c.RepoDir)
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntOrDefault(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	n, err := strconv.Atoi(value)
	if err != nil || n <= 0 {
		return defaultValue
	}
	return n
}
