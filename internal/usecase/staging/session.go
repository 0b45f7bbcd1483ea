package staging

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"go.uber.org/zap"

	"github.com/kailas-cloud/indexstager/internal/domain"
	"github.com/kailas-cloud/indexstager/internal/domain/alias"
	domstaging "github.com/kailas-cloud/indexstager/internal/domain/staging"
	"github.com/kailas-cloud/indexstager/internal/metrics"
)

// Session is one migration of a logical name. Its temp index name is fixed at
// creation. A Session is not safe for concurrent use, and callers must not run
// two sessions for the same logical name at once.
type Session struct {
	repo       Repository
	retry      RetryPolicy
	names      domstaging.Names
	logger     *zap.Logger
	superseded []string
}

// Names returns the session's derived names.
func (s *Session) Names() domstaging.Names { return s.names }

// Superseded returns the indexes AliasStageToTemp unbound from the staging
// alias. They are no longer reachable through it and await deletion by their
// owner.
func (s *Session) Superseded() []string { return slices.Clone(s.superseded) }

// AliasStageToTemp points the staging alias at the session's temp index and
// nothing else. A concrete index squatting on the staging alias name is
// dropped first. Indexes staged earlier are unbound in the same request.
func (s *Session) AliasStageToTemp(ctx context.Context) error {
	stagingAlias := s.names.StagingAlias()
	temp := s.names.TempIndex()
	if temp == "" {
		return fmt.Errorf("%w: session for %s has no temp index", domain.ErrInvalidConfig, s.names.Logical())
	}
	log := s.logger.With(zap.String("staging_alias", stagingAlias), zap.String("temp_index", temp))

	err := s.repo.DeleteIndex(ctx, stagingAlias)
	switch {
	case err == nil:
		log.Warn("Dropped concrete index occupying the staging alias name")
	case errors.Is(err, domain.ErrNotFound):
	default:
		metrics.StageTotal.WithLabelValues(metrics.OutcomeFailed).Inc()
		return fmt.Errorf("clear staging name %s: %w", stagingAlias, err)
	}

	prev, err := s.repo.Bindings(ctx, stagingAlias)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		metrics.StageTotal.WithLabelValues(metrics.OutcomeFailed).Inc()
		return fmt.Errorf("bindings of %s: %w", stagingAlias, err)
	}
	var (
		actions    []alias.Action
		superseded []string
	)
	for _, idx := range prev.Indexes() {
		if idx == temp {
			continue
		}
		actions = append(actions, alias.Remove(idx, stagingAlias))
		superseded = append(superseded, idx)
	}
	actions = append(actions, alias.Add(temp, stagingAlias))

	if err := s.repo.UpdateAliases(ctx, actions); err != nil {
		metrics.StageTotal.WithLabelValues(metrics.OutcomeFailed).Inc()
		log.Error("Staging alias update failed", zap.Error(err))
		return fmt.Errorf("alias %s to %s: %w", stagingAlias, temp, err)
	}

	s.superseded = superseded
	if len(superseded) > 0 {
		log.Warn("Unstaged previously staged indexes", zap.Strings("superseded", superseded))
	}
	metrics.StageTotal.WithLabelValues(metrics.OutcomeStaged).Inc()
	log.Info("Staged temp index")
	return nil
}

// FindNewestAliasTarget returns the most recently stamped temp index of this
// session's logical name among the indexes bound to name.
func (s *Session) FindNewestAliasTarget(ctx context.Context, name string) (string, error) {
	b, err := s.repo.Bindings(ctx, name)
	if errors.Is(err, domain.ErrNotFound) {
		return "", &domain.UnresolvableStageError{Alias: name}
	}
	if err != nil {
		return "", fmt.Errorf("bindings of %s: %w", name, err)
	}

	newest, ok := domstaging.Newest(s.names.Logical(), b.Indexes())
	if !ok {
		return "", &domain.UnresolvableStageError{Alias: name}
	}
	if len(b) > 1 {
		s.logger.Warn("Several indexes bound to alias, using the newest",
			zap.String("alias", name),
			zap.Strings("indexes", b.Indexes()),
			zap.String("chosen", newest),
		)
	}
	return newest, nil
}
