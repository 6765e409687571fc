// Package health provides liveness checks for the work-queue repository's
// broker resources. Checks are point-in-time probes meant for supervisors
// that restart dead listeners or alert on broker trouble.
package health

import (
	"context"
	"time"
)

// Status represents the outcome of a health check.
type Status string

const (
	StatusHealthy   Status = "healthy"
	StatusDegraded  Status = "degraded"
	StatusUnhealthy Status = "unhealthy"
)

// CheckResult contains the outcome of one check run.
type CheckResult struct {
	Name      string
	Status    Status
	Message   string
	Error     string
	Duration  time.Duration
	Timestamp time.Time
	Details   map[string]interface{}
}

// Checker performs a single health check.
type Checker interface {
	Name() string
	Check(ctx context.Context) CheckResult
}

// RunAll executes every checker and returns the results in order. The
// overall status is the worst individual status.
func RunAll(ctx context.Context, checkers ...Checker) ([]CheckResult, Status) {
	results := make([]CheckResult, 0, len(checkers))
	overall := StatusHealthy

	for _, c := range checkers {
		result := c.Check(ctx)
		results = append(results, result)

		switch result.Status {
		case StatusUnhealthy:
			overall = StatusUnhealthy
		case StatusDegraded:
			if overall == StatusHealthy {
				overall = StatusDegraded
			}
		}
	}

	return results, overall
}
