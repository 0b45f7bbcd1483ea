package health

import "context"

// Status represents the aggregated health status.
type Status string

const (
	// Healthy indicates all components are operational.
	Healthy Status = "ok"
	// Degraded indicates the database answers but index commands fail.
	Degraded Status = "degraded"
	// Unhealthy indicates the database is unreachable.
	Unhealthy Status = "error"
)

// CheckResult represents an individual component health check outcome.
type CheckResult string

const (
	CheckOK    CheckResult = "ok"
	CheckError CheckResult = "error"
)

// Report aggregates health check results.
type Report struct {
	Status  Status                 `json:"status"`
	Checks  map[string]CheckResult `json:"checks"`
	Indexes int                    `json:"indexes"`
}

// Service coordinates health checks.
type Service struct {
	db      DBPinger
	indexes IndexLister
}

// New creates a Service. indexes can be nil.
func New(db DBPinger, indexes IndexLister) *Service {
	return &Service{db: db, indexes: indexes}
}

// Check pings the database, then lists indexes when the ping succeeded.
func (s *Service) Check(ctx context.Context) Report {
	r := Report{Status: Healthy, Checks: make(map[string]CheckResult)}

	if err := s.db.Ping(ctx); err != nil {
		r.Checks["database"] = CheckError
		r.Status = Unhealthy
		return r
	}
	r.Checks["database"] = CheckOK

	if s.indexes == nil {
		return r
	}
	names, err := s.indexes.ListIndexes(ctx)
	if err != nil {
		r.Checks["search"] = CheckError
		r.Status = Degraded
		return r
	}
	r.Checks["search"] = CheckOK
	r.Indexes = len(names)
	return r
}
