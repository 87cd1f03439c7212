package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeRepo(t *testing.T, files map[string]string) string {
	t.Helper()
	root := t.TempDir()
	for name, content := range files {
		path := filepath.Join(root, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	}
	return root
}

func sampleRepo(t *testing.T) string {
	return writeRepo(t, map[string]string{
		"config/.pipeline.yml":                      "manualActionsFileUrl: https://wiki.example.com/actions\n",
		"config/branches/.pipeline.main.yml":        "instanceUrl: https://acme.my.salesforce.com\n",
		"config/branches/.pipeline.preprod.yml":     "mergeTargets: [main]\n",
		"config/branches/.pipeline.integration.yml": "alias: Integration\n",
		"config/branches/.jwt/main.key":             "k",
		"config/branches/.jwt/preprod.key":          "k",
		"config/branches/.jwt/integration.key":      "k",
	})
}

func runCommand(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	t.Setenv("PIPELINE_LOG_LEVEL", "error")
	cmd := newRootCommand()
	stdout, stderr := &bytes.Buffer{}, &bytes.Buffer{}
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func TestRootCommandHasSubcommands(t *testing.T) {
	names := make(map[string]bool)
	for _, c := range newRootCommand().Commands() {
		names[c.Name()] = true
	}

	for _, want := range []string{"render", "serve"} {
		assert.True(t, names[want], "root command missing subcommand %q", want)
	}
}

func TestRender_NoFetch(t *testing.T) {
	// Arrange
	repo := sampleRepo(t)

	// Act
	stdout, stderr, err := runCommand(t, "render", "--no-fetch", "--repo", repo)

	// Assert
	require.NoError(t, err)
	assert.Contains(t, stdout, "flowchart LR")
	assert.Contains(t, stdout, `preprod ==>|"Merge"| main`)
	assert.Contains(t, stdout, `main -.->|"Deploy ❔"| main_org`)
	assert.Contains(t, stderr, "No merge target defined for branch integration")
}

func TestRender_MajorOnlyWrapped(t *testing.T) {
	// Arrange
	repo := sampleRepo(t)

	// Act
	stdout, _, err := runCommand(t, "render", "--no-fetch", "--major-only", "--wrap", "--repo", repo)

	// Assert
	require.NoError(t, err)
	assert.Contains(t, stdout, "```mermaid\n")
	assert.Contains(t, stdout, "preprod ==>")
}

func TestRender_JSON(t *testing.T) {
	// Arrange
	repo := sampleRepo(t)

	// Act
	stdout, _, err := runCommand(t, "render", "--no-fetch", "--json", "--repo", repo)

	// Assert
	require.NoError(t, err)
	var result map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(stdout), &result))
	assert.Equal(t, "none", result["platform"])
	assert.Len(t, result["branches"], 3)
	assert.NotEmpty(t, result["diagramTextMajorOnly"])
}

func TestRender_BrokenConfigurationPrintsPlaceholder(t *testing.T) {
	// Arrange
	repo := writeRepo(t, map[string]string{
		"config/branches/.pipeline.uat.yml": "mergeTargets: [preprod\n",
	})

	// Act
	stdout, stderr, err := runCommand(t, "render", "--no-fetch", "--repo", repo)

	// Assert
	require.Error(t, err)
	assert.Equal(t, "Error while building pipeline diagram", stdout)
	assert.Contains(t, stderr, "failed to parse")
}

func TestRender_InvalidBranchFieldIsAWarning(t *testing.T) {
	// Arrange
	repo := writeRepo(t, map[string]string{
		"config/.pipeline.yml":                  "manualActionsFileUrl: https://wiki.example.com/actions\n",
		"config/branches/.pipeline.main.yml":    "instanceUrl: acme.my.salesforce.com\n",
		"config/branches/.pipeline.preprod.yml": "mergeTargets: [main, \"\"]\n",
	})

	// Act
	stdout, stderr, err := runCommand(t, "render", "--no-fetch", "--repo", repo)

	// Assert
	require.NoError(t, err)
	assert.Contains(t, stdout, `preprod ==>|"Merge"| main`)
	assert.NotContains(t, stdout, "main_org")
	assert.Contains(t, stderr, "instanceUrl")
	assert.Contains(t, stderr, "mergeTargets contains an empty entry")
}
