package api

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vilaca/pipeline-flow/internal/domain"
)

// countingProvider counts calls reaching the wrapped provider.
type countingProvider struct {
	InactiveProvider
	openCalls int
	jobCalls  int
}

func (p *countingProvider) IsActive() bool { return true }

func (p *countingProvider) ListOpenPullRequests(ctx context.Context) ([]domain.PullRequest, error) {
	p.openCalls++
	return []domain.PullRequest{{ID: "1", SourceBranch: "feature", TargetBranch: "main"}}, nil
}

func (p *countingProvider) GetJobsForBranchLatestCommit(ctx context.Context, branchName string) (*BranchJobs, error) {
	p.jobCalls++
	return &BranchJobs{JobsStatus: domain.StatusSuccess}, nil
}

// TestCachingProvider_CachesWithinTTL tests that repeated calls hit the cache.
func TestCachingProvider_CachesWithinTTL(t *testing.T) {
	// Arrange
	inner := &countingProvider{}
	client := NewCachingProvider(inner, time.Minute)

	// Act
	first, err := client.ListOpenPullRequests(context.Background())
	require.NoError(t, err)
	second, err := client.ListOpenPullRequests(context.Background())
	require.NoError(t, err)
	_, _ = client.GetJobsForBranchLatestCommit(context.Background(), "main")
	_, _ = client.GetJobsForBranchLatestCommit(context.Background(), "main")

	// Assert
	assert.Equal(t, 1, inner.openCalls)
	assert.Equal(t, 1, inner.jobCalls)
	assert.Equal(t, first, second)
	assert.True(t, client.IsActive())
}

// TestCachingProvider_Expiry tests that expired entries are refetched.
func TestCachingProvider_Expiry(t *testing.T) {
	// Arrange
	inner := &countingProvider{}
	client := NewCachingProvider(inner, time.Minute)
	now := time.Now()
	client.cache.now = func() time.Time { return now }

	// Act
	_, _ = client.ListOpenPullRequests(context.Background())
	now = now.Add(2 * time.Minute)
	_, _ = client.ListOpenPullRequests(context.Background())

	// Assert
	assert.Equal(t, 2, inner.openCalls)
}

// TestCachingProvider_ReturnsCopies tests that callers cannot corrupt cached slices.
func TestCachingProvider_ReturnsCopies(t *testing.T) {
	// Arrange
	inner := &countingProvider{}
	client := NewCachingProvider(inner, time.Minute)
	prs, _ := client.ListOpenPullRequests(context.Background())

	// Act
	prs[0].Title = "mutated"
	again, _ := client.ListOpenPullRequests(context.Background())

	// Assert
	assert.Empty(t, again[0].Title)
}

// TestCachingProvider_Invalidate tests that invalidation forces a refetch.
func TestCachingProvider_Invalidate(t *testing.T) {
	// Arrange
	inner := &countingProvider{}
	client := NewCachingProvider(inner, time.Hour)
	_, _ = client.ListOpenPullRequests(context.Background())

	// Act
	client.Invalidate()
	_, _ = client.ListOpenPullRequests(context.Background())

	// Assert
	assert.Equal(t, 2, inner.openCalls)
}
