package staging

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/kailas-cloud/indexstager/internal/domain"
	"github.com/kailas-cloud/indexstager/internal/metrics"
)

// CleanupOutcome is the result of deleting one index.
type CleanupOutcome string

const (
	CleanupDeleted CleanupOutcome = "deleted"
	CleanupMissing CleanupOutcome = "missing"
	CleanupFailed  CleanupOutcome = "failed"
)

// CleanupResult describes one deletion attempt.
type CleanupResult struct {
	Index   string         `json:"index"`
	Outcome CleanupOutcome `json:"outcome"`
	Error   string         `json:"error,omitempty"`
}

// CleanupReport aggregates independent deletions.
type CleanupReport struct {
	Deleted []string        `json:"deleted"`
	Missing []string        `json:"missing"`
	Failed  []CleanupResult `json:"failed"`
}

// OK reports whether every deletion succeeded or found nothing to delete.
func (r CleanupReport) OK() bool { return len(r.Failed) == 0 }

// DeleteIfExists drops name, treating absence as success. Failures are logged
// and returned in the result, never as an error.
func (s *Session) DeleteIfExists(ctx context.Context, name string) CleanupResult {
	err := s.repo.DeleteIndex(ctx, name)
	switch {
	case err == nil:
		s.logger.Info("Deleted orphaned index", zap.String("index", name))
		return CleanupResult{Index: name, Outcome: CleanupDeleted}
	case errors.Is(err, domain.ErrNotFound):
		return CleanupResult{Index: name, Outcome: CleanupMissing}
	default:
		metrics.CleanupFailuresTotal.Inc()
		s.logger.Warn("Failed to delete orphaned index", zap.String("index", name), zap.Error(err))
		return CleanupResult{Index: name, Outcome: CleanupFailed, Error: err.Error()}
	}
}

// Cleanup deletes each name independently; one failure does not stop the rest.
func (s *Session) Cleanup(ctx context.Context, names ...string) CleanupReport {
	var rep CleanupReport
	for _, n := range names {
		res := s.DeleteIfExists(ctx, n)
		switch res.Outcome {
		case CleanupDeleted:
			rep.Deleted = append(rep.Deleted, n)
		case CleanupMissing:
			rep.Missing = append(rep.Missing, n)
		case CleanupFailed:
			rep.Failed = append(rep.Failed, res)
		}
	}
	return rep
}
