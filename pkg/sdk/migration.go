package indexstager

import (
	"context"
	"fmt"
	"time"

	"github.com/kailas-cloud/indexstager/internal/domain"
	"github.com/kailas-cloud/indexstager/internal/repository/index"
	staginguc "github.com/kailas-cloud/indexstager/internal/usecase/staging"
)

// Report types returned by a migration.
type (
	PromotionReport = staginguc.PromotionReport
	CleanupResult   = staginguc.CleanupResult
	CleanupReport   = staginguc.CleanupReport
)

// Promotion states.
const (
	StatePromoted = staginguc.StatePromoted
	StateFailed   = staginguc.StateFailed
)

// Migration is one rebuild of a logical index. Its temp index name is fixed
// for its lifetime. Do not run two migrations of the same logical name at once.
type Migration struct {
	sess *staginguc.Session
	repo *index.Repo
	obs  *observer
}

// LogicalName returns the name readers use.
func (m *Migration) LogicalName() string { return m.sess.Names().Logical() }

// StagingAlias returns <logical>_staged.
func (m *Migration) StagingAlias() string { return m.sess.Names().StagingAlias() }

// TempIndex returns the index this migration builds.
func (m *Migration) TempIndex() string { return m.sess.Names().TempIndex() }

// CreateTempIndex creates TempIndex() with the given schema.
func (m *Migration) CreateTempIndex(ctx context.Context, s *Schema) (err error) {
	start := time.Now()
	defer func() { m.obs.observe(opCreateIndex, m.TempIndex(), start, err) }()

	def, err := s.definition(m.TempIndex())
	if err != nil {
		return fmt.Errorf("%w: schema: %w", domain.ErrInvalidConfig, err)
	}
	return m.repo.CreateIndex(ctx, def)
}

// Stage points the staging alias at TempIndex().
func (m *Migration) Stage(ctx context.Context) (err error) {
	start := time.Now()
	defer func() { m.obs.observe(opStage, m.StagingAlias(), start, err) }()

	return m.sess.AliasStageToTemp(ctx)
}

// StagedIndex returns the newest temp index behind the staging alias.
func (m *Migration) StagedIndex(ctx context.Context) (name string, err error) {
	start := time.Now()
	defer func() { m.obs.observe(opStagedIndex, m.StagingAlias(), start, err) }()

	return m.sess.FindNewestAliasTarget(ctx, m.StagingAlias())
}

// Promote swaps live (the logical name when empty) onto the staged index.
func (m *Migration) Promote(ctx context.Context, live string) (rep PromotionReport, err error) {
	start := time.Now()
	defer func() { m.obs.observe(opPromote, m.LogicalName(), start, err) }()

	return m.sess.Promote(ctx, live)
}

// DeleteIfExists drops a concrete index, reporting rather than returning failures.
func (m *Migration) DeleteIfExists(ctx context.Context, name string) CleanupResult {
	start := time.Now()
	res := m.sess.DeleteIfExists(ctx, name)
	var err error
	if res.Outcome == staginguc.CleanupFailed {
		err = fmt.Errorf("delete %s: %s", name, res.Error)
	}
	m.obs.observe(opDelete, name, start, err)
	return res
}

func (m *Migration) discardTemp(ctx context.Context) {
	m.DeleteIfExists(context.WithoutCancel(ctx), m.TempIndex())
}
