package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestComputeJobsStatus(t *testing.T) {
	tests := []struct {
		name     string
		statuses []Status
		expected Status
	}{
		{"no jobs", nil, StatusUnknown},
		{"single success", []Status{StatusSuccess}, StatusSuccess},
		{"success and failed", []Status{StatusSuccess, StatusFailed}, StatusFailed},
		{"success and running", []Status{StatusSuccess, StatusRunning}, StatusRunning},
		{"running wins over failed", []Status{StatusFailed, StatusRunning}, StatusRunning},
		{"failed wins over pending", []Status{StatusPending, StatusFailed}, StatusFailed},
		{"pending and success", []Status{StatusSuccess, StatusPending}, StatusPending},
		{"success and unknown", []Status{StatusSuccess, StatusUnknown}, StatusUnknown},
		{"all unknown", []Status{StatusUnknown, StatusUnknown}, StatusUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Arrange
			jobs := make([]Job, len(tt.statuses))
			for i, s := range tt.statuses {
				jobs[i] = Job{Name: "job", Status: s}
			}

			// Act
			status := ComputeJobsStatus(jobs)

			// Assert
			assert.Equal(t, tt.expected, status)
		})
	}
}

func TestStatus_IsInProgress(t *testing.T) {
	assert.True(t, StatusRunning.IsInProgress())
	assert.True(t, StatusPending.IsInProgress())
	assert.False(t, StatusSuccess.IsInProgress())
	assert.False(t, StatusFailed.IsInProgress())
	assert.False(t, StatusUnknown.IsInProgress())
}

func TestPullRequest_DisplayNumber(t *testing.T) {
	assert.Equal(t, "42", PullRequest{ID: "9001", Number: 42}.DisplayNumber())
	assert.Equal(t, "9001", PullRequest{ID: "9001"}.DisplayNumber())
}
