package service

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileCache_SaveLoadClear(t *testing.T) {
	// Arrange
	path := filepath.Join(t.TempDir(), "nested", "result.json")
	cache := NewFileCache(path, &mockLogger{})

	// Act
	require.NoError(t, cache.Save(&Result{DiagramText: "flowchart LR", Platform: "github"}))
	data, err := cache.Load()

	// Assert
	require.NoError(t, err)
	require.NotNil(t, data)
	assert.Equal(t, snapshotVersion, data.Version)
	assert.Equal(t, "github", data.Result.Platform)
	assert.False(t, data.Timestamp.IsZero())

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "no temp files are left behind")

	require.NoError(t, cache.Clear())
	require.NoError(t, cache.Clear(), "clearing twice is fine")
	data, err = cache.Load()
	require.NoError(t, err)
	assert.Nil(t, data)
}

func TestFileCache_Load(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr bool
	}{
		{"corrupt file", "{not json", true},
		{"older version", `{"version":0,"result":{"diagramText":"old"}}`, false},
		{"missing result", `{"version":1}`, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Arrange
			path := filepath.Join(t.TempDir(), "result.json")
			require.NoError(t, os.WriteFile(path, []byte(tt.content), 0644))

			// Act
			data, err := NewFileCache(path, &mockLogger{}).Load()

			// Assert
			if tt.wantErr {
				require.Error(t, err)
				assert.Contains(t, err.Error(), "parsing snapshot")
			} else {
				require.NoError(t, err)
			}
			assert.Nil(t, data)
		})
	}
}

func TestFileCache_SaveRejectsNil(t *testing.T) {
	// Arrange
	cache := NewFileCache(filepath.Join(t.TempDir(), "result.json"), &mockLogger{})

	// Act
	err := cache.Save(nil)

	// Assert
	require.Error(t, err)
}
