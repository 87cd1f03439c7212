package api

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/vilaca/pipeline-flow/internal/domain"
)

// CachingProvider wraps a Provider with a TTL cache.
// Decorator: the wrapped provider is unaware of caching.
type CachingProvider struct {
	provider Provider
	cache    *cache
}

// NewCachingProvider creates a new caching provider wrapper.
func NewCachingProvider(provider Provider, cacheDuration time.Duration) *CachingProvider {
	return &CachingProvider{
		provider: provider,
		cache:    newCache(cacheDuration),
	}
}

func (c *CachingProvider) Platform() string { return c.provider.Platform() }

func (c *CachingProvider) IsActive() bool { return c.provider.IsActive() }

// ListPullRequestsForBranch retrieves pull requests with caching.
func (c *CachingProvider) ListPullRequestsForBranch(ctx context.Context, targetBranch string) ([]domain.PullRequest, error) {
	key := fmt.Sprintf("ListPullRequestsForBranch:%s", targetBranch)

	if cached, found := c.cache.get(key); found {
		if prs, ok := cached.([]domain.PullRequest); ok {
			return append([]domain.PullRequest(nil), prs...), nil
		}
	}

	prs, err := c.provider.ListPullRequestsForBranch(ctx, targetBranch)
	if err != nil {
		return nil, err
	}

	c.cache.set(key, append([]domain.PullRequest(nil), prs...))
	return prs, nil
}

// ListOpenPullRequests retrieves open pull requests with caching.
func (c *CachingProvider) ListOpenPullRequests(ctx context.Context) ([]domain.PullRequest, error) {
	key := "ListOpenPullRequests"

	if cached, found := c.cache.get(key); found {
		if prs, ok := cached.([]domain.PullRequest); ok {
			return append([]domain.PullRequest(nil), prs...), nil
		}
	}

	prs, err := c.provider.ListOpenPullRequests(ctx)
	if err != nil {
		return nil, err
	}

	c.cache.set(key, append([]domain.PullRequest(nil), prs...))
	return prs, nil
}

// GetJobsForBranchLatestCommit retrieves branch jobs with caching.
func (c *CachingProvider) GetJobsForBranchLatestCommit(ctx context.Context, branchName string) (*BranchJobs, error) {
	key := fmt.Sprintf("GetJobsForBranchLatestCommit:%s", branchName)

	if cached, found := c.cache.get(key); found {
		if jobs, ok := cached.(*BranchJobs); ok {
			return jobs, nil
		}
	}

	jobs, err := c.provider.GetJobsForBranchLatestCommit(ctx, branchName)
	if err != nil {
		return nil, err
	}

	c.cache.set(key, jobs)
	return jobs, nil
}

// CreatePullRequestURL is computed locally, never cached.
func (c *CachingProvider) CreatePullRequestURL(sourceBranch, targetBranch string) string {
	return c.provider.CreatePullRequestURL(sourceBranch, targetBranch)
}

// ListPullRequestsInBranchSinceLastMerge retrieves pending pull requests with caching.
func (c *CachingProvider) ListPullRequestsInBranchSinceLastMerge(ctx context.Context, branchName, targetBranch string, excludedSourceBranches []string) ([]domain.PullRequest, error) {
	key := fmt.Sprintf("ListPullRequestsInBranchSinceLastMerge:%s:%s:%s",
		branchName, targetBranch, strings.Join(excludedSourceBranches, ","))

	if cached, found := c.cache.get(key); found {
		if prs, ok := cached.([]domain.PullRequest); ok {
			return append([]domain.PullRequest(nil), prs...), nil
		}
	}

	prs, err := c.provider.ListPullRequestsInBranchSinceLastMerge(ctx, branchName, targetBranch, excludedSourceBranches)
	if err != nil {
		return nil, err
	}

	c.cache.set(key, append([]domain.PullRequest(nil), prs...))
	return prs, nil
}

// Invalidate drops every cached entry.
func (c *CachingProvider) Invalidate() {
	c.cache.clear()
}

var _ Provider = (*CachingProvider)(nil)

// cache implements a thread-safe TTL cache.
type cache struct {
	mu       sync.RWMutex
	entries  map[string]*cacheEntry
	duration time.Duration
	now      func() time.Time
}

// cacheEntry holds a cached value with expiry time.
type cacheEntry struct {
	value     interface{}
	expiresAt time.Time
}

func newCache(duration time.Duration) *cache {
	return &cache{
		entries:  make(map[string]*cacheEntry),
		duration: duration,
		now:      time.Now,
	}
}

// get retrieves a value from cache. Expired entries are removed on access.
func (c *cache) get(key string) (interface{}, bool) {
	c.mu.RLock()
	entry, exists := c.entries[key]
	c.mu.RUnlock()
	if !exists {
		return nil, false
	}

	if c.now().After(entry.expiresAt) {
		c.mu.Lock()
		delete(c.entries, key)
		c.mu.Unlock()
		return nil, false
	}

	return entry.value, true
}

// set stores a value in cache with TTL.
func (c *cache) set(key string, value interface{}) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[key] = &cacheEntry{
		value:     value,
		expiresAt: c.now().Add(c.duration),
	}
}

func (c *cache) clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]*cacheEntry)
}
