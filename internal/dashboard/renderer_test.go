package dashboard

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vilaca/pipeline-flow/internal/graph"
	"github.com/vilaca/pipeline-flow/internal/service"
)

// TestJSONRenderer_RenderHealth tests the health check rendering.
// Follows AAA (Arrange, Act, Assert) pattern.
func TestJSONRenderer_RenderHealth(t *testing.T) {
	// Arrange
	renderer := NewJSONRenderer(false)
	buf := &bytes.Buffer{}

	// Act
	err := renderer.RenderHealth(buf)

	// Assert
	require.NoError(t, err)
	assert.Equal(t, `{"status":"ok"}`, buf.String())
}

func TestJSONRenderer_RenderResult(t *testing.T) {
	// Arrange
	renderer := NewJSONRenderer(true)
	buf := &bytes.Buffer{}
	result := &service.Result{
		Orgs:        []graph.Node{{Name: "main", Label: "main", Class: graph.ClassGitMain, Level: 100, Kind: graph.KindBranch}},
		Links:       []graph.Link{{Source: "uat", Target: "main", Type: graph.LinkMajorMerge, Label: "Merge"}},
		DiagramText: "flowchart LR\n",
		Warnings:    []string{},
	}

	// Act
	err := renderer.RenderResult(buf, result)

	// Assert
	require.NoError(t, err)
	assert.True(t, strings.Contains(buf.String(), "\n  \"orgs\""), "indented output")
	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	orgs := decoded["orgs"].([]interface{})
	assert.Equal(t, "gitMain", orgs[0].(map[string]interface{})["styleClass"])
	links := decoded["links"].([]interface{})
	assert.Equal(t, "majorMerge", links[0].(map[string]interface{})["linkType"])
}

func TestJSONRenderer_RenderWarningsNil(t *testing.T) {
	// Arrange
	buf := &bytes.Buffer{}

	// Act
	err := NewJSONRenderer(false).RenderWarnings(buf, nil)

	// Assert
	require.NoError(t, err)
	assert.JSONEq(t, `{"warnings":[],"count":0}`, buf.String())
}

func TestPhusluLogger_Printf(t *testing.T) {
	// Arrange
	buf := &bytes.Buffer{}
	logger := NewPhusluLogger("info", buf)

	// Act
	logger.Printf("built %d branches", 3)
	logger.Logger().Debug().Msg("hidden")

	// Assert
	assert.Contains(t, buf.String(), "built 3 branches")
	assert.NotContains(t, buf.String(), "hidden")
}
