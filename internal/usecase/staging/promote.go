package staging

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/indexstager/internal/domain"
	"github.com/kailas-cloud/indexstager/internal/domain/alias"
	domstaging "github.com/kailas-cloud/indexstager/internal/domain/staging"
	"github.com/kailas-cloud/indexstager/internal/metrics"
)

// State is a step of the promotion state machine.
type State string

const (
	StateStaged      State = "staged"
	StateResolving   State = "resolving"
	StateTransacting State = "transacting"
	StatePromoted    State = "promoted"
	StateFailed      State = "failed"
)

// PromotionReport describes what a promotion did.
type PromotionReport struct {
	StagedIndex     string   `json:"staged_index"`
	LiveName        string   `json:"live_name"`
	State           State    `json:"state"`
	PreviousTargets []string `json:"previous_targets"`
	// OriginalPreserved is set when a concrete live index was copied aside.
	OriginalPreserved string        `json:"original_preserved,omitempty"`
	CopyConfirmed     bool          `json:"copy_confirmed"`
	PollAttempts      int           `json:"poll_attempts"`
	Cleanup           CleanupReport `json:"cleanup"`
	Duration          time.Duration `json:"duration"`
}

// Promote makes live (the logical name when empty) resolve to the index the
// staging alias points at. The alias swap is the commit point: failures before
// it leave aliases untouched, cleanup after it never fails the promotion.
func (s *Session) Promote(ctx context.Context, live string) (PromotionReport, error) {
	start := time.Now()
	if live == "" {
		live = s.names.Logical()
	}
	rep := PromotionReport{LiveName: live, State: StateStaged}
	log := s.logger.With(zap.String("live_name", live))

	if err := domstaging.ValidateLogicalName(live); err != nil {
		return s.fail(rep, start, log, fmt.Errorf("%w: %w", domain.ErrInvalidName, err))
	}

	rep.State = StateResolving
	log.Debug("Resolving staged index", zap.String("staging_alias", s.names.StagingAlias()))
	staged, err := s.FindNewestAliasTarget(ctx, s.names.StagingAlias())
	if err != nil {
		return s.fail(rep, start, log, err)
	}
	rep.StagedIndex = staged
	log = log.With(zap.String("staged_index", staged))

	actions := []alias.Action{
		alias.Remove(staged, s.names.StagingAlias()),
		alias.Add(staged, live),
	}

	bindings, liveExists, err := s.liveBindings(ctx, live)
	if err != nil {
		return s.fail(rep, start, log, err)
	}

	var (
		removals []alias.Action
		orphans  []string
	)
	for _, idx := range bindings.Indexes() {
		if idx == live {
			metrics.PromotionsTotal.WithLabelValues(metrics.OutcomeCorrupt).Inc()
			rep.State = StateFailed
			rep.Duration = time.Since(start)
			err := &domain.CorruptStateError{Name: live}
			log.Error("Promotion aborted", zap.Error(err))
			return rep, err
		}
		rep.PreviousTargets = append(rep.PreviousTargets, idx)
		if idx == staged {
			// already live; the add below keeps it bound
			continue
		}
		removals = append(removals, alias.Remove(idx, live))
		orphans = append(orphans, idx)
	}
	actions = append(removals, actions...)

	if liveExists && len(bindings) == 0 {
		if err := s.preserveConcrete(ctx, live, &rep, log); err != nil {
			return s.fail(rep, start, log, err)
		}
	}

	rep.State = StateTransacting
	log.Debug("Swapping aliases", zap.Int("actions", len(actions)))
	if err := s.repo.UpdateAliases(ctx, actions); err != nil {
		return s.fail(rep, start, log, fmt.Errorf("swap aliases for %s: %w", live, err))
	}
	rep.State = StatePromoted

	rep.Cleanup = s.Cleanup(ctx, orphans...)
	rep.Duration = time.Since(start)
	metrics.PromotionsTotal.WithLabelValues(metrics.OutcomePromoted).Inc()
	metrics.PromotionDuration.Observe(rep.Duration.Seconds())
	log.Info("Promoted staged index",
		zap.Strings("previous_targets", rep.PreviousTargets),
		zap.Int("cleanup_failures", len(rep.Cleanup.Failed)),
		zap.Duration("duration", rep.Duration),
	)
	return rep, nil
}

// liveBindings looks up live. NotFound means live does not exist yet.
func (s *Session) liveBindings(ctx context.Context, live string) (alias.Bindings, bool, error) {
	b, err := s.repo.Bindings(ctx, live)
	if errors.Is(err, domain.ErrNotFound) {
		return alias.Bindings{}, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("bindings of %s: %w", live, err)
	}
	return b, true, nil
}

// preserveConcrete copies a concrete live index aside and drops it so the live
// name can become an alias.
func (s *Session) preserveConcrete(ctx context.Context, live string, rep *PromotionReport, log *zap.Logger) error {
	backup := domstaging.PreStagedOriginalName(live)
	log = log.With(zap.String("backup_index", backup))
	log.Info("Live name is a concrete index, preserving a copy")

	if err := s.repo.CopyIndex(ctx, live, backup); err != nil {
		return fmt.Errorf("copy %s to %s: %w", live, backup, err)
	}
	rep.OriginalPreserved = backup

	attempts, confirmed, err := s.retry.Poll(ctx, func(ctx context.Context) (bool, error) {
		names, err := s.repo.ListIndexes(ctx)
		if err != nil {
			log.Warn("Listing indexes failed while awaiting copy", zap.Error(err))
			return false, err
		}
		return slices.Contains(names, backup), nil
	})
	rep.PollAttempts = attempts
	rep.CopyConfirmed = confirmed
	metrics.CopyPollAttempts.Observe(float64(attempts))
	if err != nil {
		return fmt.Errorf("await copy %s: %w", backup, err)
	}
	if !confirmed {
		metrics.CopyPollExhaustedTotal.Inc()
		log.Warn("Copy not listed before poll budget ran out, proceeding", zap.Int("attempts", attempts))
	}

	if err := s.repo.DeleteIndex(ctx, live); err != nil {
		log.Warn("Failed to delete concrete live index", zap.Error(err))
	}
	return nil
}

func (s *Session) fail(rep PromotionReport, start time.Time, log *zap.Logger, err error) (PromotionReport, error) {
	rep.State = StateFailed
	rep.Duration = time.Since(start)
	metrics.PromotionsTotal.WithLabelValues(metrics.OutcomeFailed).Inc()
	log.Error("Promotion failed", zap.Error(err))
	return rep, err
}
