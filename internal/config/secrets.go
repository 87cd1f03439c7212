package config

import (
	"os"
	"strings"
)

// EnvSecretStore reads secrets from environment variables.
type EnvSecretStore struct {
	lookup func(key string) (string, bool)
}

// NewEnvSecretStore creates a secret store over the process environment.
func NewEnvSecretStore() *EnvSecretStore {
	return &EnvSecretStore{lookup: os.LookupEnv}
}

// GetSecret returns the trimmed value of key; blank values count as missing.
func (s *EnvSecretStore) GetSecret(key string) (string, bool) {
	value, ok := s.lookup(key)
	value = strings.TrimSpace(value)
	if !ok || value == "" {
		return "", false
	}
	return value, true
}
