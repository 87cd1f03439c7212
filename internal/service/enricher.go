package service

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/vilaca/pipeline-flow/internal/api"
	"github.com/vilaca/pipeline-flow/internal/domain"
	"github.com/vilaca/pipeline-flow/internal/topology"
)

// maxConcurrentBranches bounds the per-branch enrichment fan-out.
const maxConcurrentBranches = 8

// TicketCompleter attaches ticket references to pull requests in place.
type TicketCompleter interface {
	CompleteTickets(ctx context.Context, prs []domain.PullRequest) error
}

// CommandCompleter attaches pre/post deployment commands to pull requests in place.
type CommandCompleter interface {
	CompleteCommands(ctx context.Context, prs []domain.PullRequest) error
}

// Enricher attaches live provider data to classified branches.
type Enricher struct {
	tickets  TicketCompleter
	commands CommandCompleter
	metrics  Metrics
	logger   Logger
}

// NewEnricher creates an enricher. Nil completers are skipped.
func NewEnricher(tickets TicketCompleter, commands CommandCompleter, metrics Metrics, logger Logger) *Enricher {
	if metrics == nil {
		metrics = noopMetrics{}
	}
	return &Enricher{
		tickets:  tickets,
		commands: commands,
		metrics:  metrics,
		logger:   logger,
	}
}

// EnrichBranches fetches the head-commit jobs of every branch and, for branches
// with a merge target, the pull requests merged since their last promotion.
// Every branch is awaited; a failing branch keeps empty enrichment data.
// Each leg writes only its own slot of branches.
func (e *Enricher) EnrichBranches(ctx context.Context, provider api.Provider, topo *topology.Topology, branches []domain.Branch) {
	var g errgroup.Group
	g.SetLimit(maxConcurrentBranches)

	for i := range branches {
		branch := &branches[i]
		branch.JobsStatus = domain.StatusUnknown

		g.Go(func() error {
			jobs, err := provider.GetJobsForBranchLatestCommit(ctx, branch.Name)
			if err != nil {
				e.metrics.ProviderError("branch_jobs")
				e.logger.Printf("Enricher: failed to get jobs for %s: %v", branch.Name, err)
			} else if jobs != nil {
				branch.Jobs = jobs.Jobs
				branch.JobsStatus = jobs.JobsStatus
			}

			target := branch.FirstMergeTarget()
			if target == "" {
				return nil
			}
			prs, err := provider.ListPullRequestsInBranchSinceLastMerge(ctx, branch.Name, target, topo.ChildrenOf(branch.Name))
			if err != nil {
				e.metrics.ProviderError("since_last_merge")
				e.logger.Printf("Enricher: failed to list pull requests merged into %s: %v", branch.Name, err)
				return nil
			}
			e.complete(ctx, prs)
			branch.PullRequestsSinceLastMerge = prs
			return nil
		})
	}

	_ = g.Wait() // legs never fail
}

// OpenPullRequests lists open pull requests with jobs, tickets and commands attached.
// A provider failure yields an empty list.
func (e *Enricher) OpenPullRequests(ctx context.Context, provider api.Provider) []domain.PullRequest {
	prs, err := provider.ListOpenPullRequests(ctx)
	if err != nil {
		e.metrics.ProviderError("open_pull_requests")
		e.logger.Printf("Enricher: failed to list open pull requests: %v", err)
		return nil
	}
	e.complete(ctx, prs)
	return prs
}

func (e *Enricher) complete(ctx context.Context, prs []domain.PullRequest) {
	if len(prs) == 0 {
		return
	}
	if e.tickets != nil {
		if err := e.tickets.CompleteTickets(ctx, prs); err != nil {
			e.logger.Printf("Enricher: ticket completion failed: %v", err)
		}
	}
	if e.commands != nil {
		if err := e.commands.CompleteCommands(ctx, prs); err != nil {
			e.logger.Printf("Enricher: command completion failed: %v", err)
		}
	}
}
