package indexstager

import (
	"context"

	healthuc "github.com/kailas-cloud/indexstager/internal/usecase/health"
)

// HealthStatus represents the aggregated index service health.
type HealthStatus struct {
	Status  string            // "ok", "degraded", "error"
	Checks  map[string]string // component -> "ok"/"error"
	Indexes int
}

// Health checks connectivity and that the search module answers.
func (c *Client) Health(ctx context.Context) HealthStatus {
	report := c.healthSvc.Check(ctx)
	checks := make(map[string]string, len(report.Checks))
	for k, v := range report.Checks {
		checks[k] = string(v)
	}
	return HealthStatus{
		Status:  string(report.Status),
		Checks:  checks,
		Indexes: report.Indexes,
	}
}

// healthUseCase is the internal interface for health checks.
type healthUseCase interface {
	Check(ctx context.Context) healthuc.Report
}
