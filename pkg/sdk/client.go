package indexstager

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/kailas-cloud/indexstager/internal/db"
	"github.com/kailas-cloud/indexstager/internal/db/memory"
	dbRedis "github.com/kailas-cloud/indexstager/internal/db/redis"
	"github.com/kailas-cloud/indexstager/internal/repository/index"
	healthuc "github.com/kailas-cloud/indexstager/internal/usecase/health"
	staginguc "github.com/kailas-cloud/indexstager/internal/usecase/staging"
)

const defaultReadinessTimeout = 10 * time.Second

// Client is the indexstager SDK entry point.
type Client struct {
	store     db.Store
	repo      *index.Repo
	staging   *staginguc.Service
	healthSvc healthUseCase
	obs       *observer
}

// New creates a Client and connects to the index service.
// The provided context is used for the initial readiness check.
func New(ctx context.Context, opts ...Option) (*Client, error) {
	cfg := &clientConfig{}
	for _, o := range opts {
		o.apply(cfg)
	}

	if cfg.driver == "" {
		return nil, errors.New("indexstager: index service required (use WithRedis or WithMemory)")
	}

	store, err := createStore(cfg)
	if err != nil {
		return nil, err
	}

	if err := store.WaitForReady(ctx, defaultReadinessTimeout); err != nil {
		store.Close()
		return nil, fmt.Errorf("indexstager: index service not ready: %w", err)
	}

	obs, err := newObserver(cfg.logger, cfg.metricsReg)
	if err != nil {
		store.Close()
		return nil, err
	}

	c, err := wireClient(store, cfg, obs)
	if err != nil {
		store.Close()
		return nil, err
	}
	return c, nil
}

func createStore(cfg *clientConfig) (db.Store, error) {
	switch cfg.driver {
	case driverRedis:
		s, err := dbRedis.NewStore(dbRedis.Config{
			Addrs:    cfg.addrs,
			Username: cfg.username,
			Password: cfg.password,
			DB:       cfg.db,
		})
		if err != nil {
			return nil, fmt.Errorf("indexstager: create redis store: %w", err)
		}
		return s, nil
	case driverMemory:
		return memory.NewStore(), nil
	default:
		return nil, fmt.Errorf("indexstager: unknown driver %q", cfg.driver)
	}
}

func wireClient(store db.Store, cfg *clientConfig, obs *observer) (*Client, error) {
	policy := staginguc.DefaultRetryPolicy()
	if cfg.pollAttempts > 0 {
		policy.MaxAttempts = cfg.pollAttempts
	}
	if cfg.pollInterval > 0 {
		policy.Interval = cfg.pollInterval
	}

	repo := index.New(store)
	svc, err := staginguc.New(repo,
		staginguc.WithRetryPolicy(policy),
		staginguc.WithLogger(zapToSlog(cfg.logger)),
	)
	if err != nil {
		return nil, fmt.Errorf("indexstager: %w", err)
	}

	return &Client{
		store:     store,
		repo:      repo,
		staging:   svc,
		healthSvc: healthuc.New(store, store),
		obs:       obs,
	}, nil
}

// Close releases all resources.
func (c *Client) Close() {
	if c.store != nil {
		c.store.Close()
	}
}

// Ping checks connectivity.
func (c *Client) Ping(ctx context.Context) (err error) {
	start := time.Now()
	defer func() { c.obs.observe(opPing, "", start, err) }()

	if err = c.store.Ping(ctx); err != nil {
		return fmt.Errorf("ping: %w", err)
	}
	return nil
}

// Resolution describes what a name points at.
type Resolution struct {
	Name   string
	Exists bool
	// Bindings maps each physical index to the aliases that reach it.
	// An unaliased concrete index has an empty bindings map.
	Bindings map[string][]string
	Indexes  []string
}

// Resolve reports the physical indexes name currently reaches.
func (c *Client) Resolve(ctx context.Context, name string) (res Resolution, err error) {
	start := time.Now()
	defer func() { c.obs.observe(opResolve, name, start, err) }()

	b, exists, err := c.staging.Resolve(ctx, name)
	if err != nil {
		return Resolution{}, err
	}
	return Resolution{Name: name, Exists: exists, Bindings: b, Indexes: b.Indexes()}, nil
}

// NewMigration starts a migration of logical under a fresh temp index name.
func (c *Client) NewMigration(logical string) (*Migration, error) {
	sess, err := c.staging.NewSession(logical)
	if err != nil {
		return nil, err
	}
	return &Migration{sess: sess, repo: c.repo, obs: c.obs}, nil
}

// ResumeMigration continues a migration whose temp index was built elsewhere.
func (c *Client) ResumeMigration(logical, temp string) (*Migration, error) {
	sess, err := c.staging.ResumeSession(logical, temp)
	if err != nil {
		return nil, err
	}
	return &Migration{sess: sess, repo: c.repo, obs: c.obs}, nil
}

// BuildFunc creates and fills m.TempIndex().
type BuildFunc func(ctx context.Context, m *Migration) error

// Migrate runs a whole migration of logical: build, stage, promote.
// A temp index left behind by a failed build or stage is deleted. A failed
// promotion leaves the stage in place so Promote can be retried.
func (c *Client) Migrate(ctx context.Context, logical string, build BuildFunc) (rep PromotionReport, err error) {
	start := time.Now()
	defer func() { c.obs.observe(opMigrate, logical, start, err) }()

	m, err := c.NewMigration(logical)
	if err != nil {
		return PromotionReport{}, err
	}

	if err := build(ctx, m); err != nil {
		m.discardTemp(ctx)
		return PromotionReport{}, fmt.Errorf("build %s: %w", m.TempIndex(), err)
	}
	if err := m.Stage(ctx); err != nil {
		m.discardTemp(ctx)
		return PromotionReport{}, err
	}
	return m.Promote(ctx, "")
}
