package domain

// Status represents the state of a CI job, or the aggregated state of a list of jobs.
type Status string

const (
	StatusRunning Status = "running"
	StatusPending Status = "pending"
	StatusSuccess Status = "success"
	StatusFailed  Status = "failed"
	StatusUnknown Status = "unknown"
)

// IsInProgress returns true while work is still queued or executing.
func (s Status) IsInProgress() bool {
	return s == StatusRunning || s == StatusPending
}

// Emoji returns the short marker used in diagram labels.
func (s Status) Emoji() string {
	switch s {
	case StatusRunning:
		return "🔄"
	case StatusPending:
		return "⏳"
	case StatusSuccess:
		return "✅"
	case StatusFailed:
		return "❌"
	default:
		return "❔"
	}
}

// ComputeJobsStatus aggregates job statuses into a single status.
// Precedence: running, then failed, then pending. All-success yields success.
// Anything else, including an empty list, is unknown.
func ComputeJobsStatus(jobs []Job) Status {
	if len(jobs) == 0 {
		return StatusUnknown
	}

	var running, failed, pending, success int
	for _, job := range jobs {
		switch job.Status {
		case StatusRunning:
			running++
		case StatusFailed:
			failed++
		case StatusPending:
			pending++
		case StatusSuccess:
			success++
		}
	}

	switch {
	case running > 0:
		return StatusRunning
	case failed > 0:
		return StatusFailed
	case pending > 0:
		return StatusPending
	case success == len(jobs):
		return StatusSuccess
	default:
		return StatusUnknown
	}
}
