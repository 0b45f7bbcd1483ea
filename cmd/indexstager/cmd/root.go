// Package cmd provides the CLI commands for indexstager.
package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/kailas-cloud/indexstager/internal/config"
	"github.com/kailas-cloud/indexstager/internal/db"
	"github.com/kailas-cloud/indexstager/internal/db/memory"
	dbRedis "github.com/kailas-cloud/indexstager/internal/db/redis"
	logpkg "github.com/kailas-cloud/indexstager/internal/logger"
	"github.com/kailas-cloud/indexstager/internal/repository/index"
	staginguc "github.com/kailas-cloud/indexstager/internal/usecase/staging"
	"github.com/kailas-cloud/indexstager/internal/version"
)

// rootOptions carries the persistent flags into subcommands.
type rootOptions struct {
	env        string
	configPath string
	// openStore builds the index service client. Tests swap it for a shared store.
	openStore func(cfg config.Config) (db.Store, error)
}

// NewRootCmd creates the root command for the indexstager CLI.
func NewRootCmd() *cobra.Command {
	return newRootCmd(&rootOptions{openStore: openStore})
}

func newRootCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "indexstager",
		Short: "Zero-downtime search index migrations through alias staging",
		Long: `indexstager rebuilds a search index under a timestamped temp name,
parks it behind a staging alias, and swaps the live alias onto it in one
atomic update. Readers of the live name never see a missing index.`,
		Version:      version.Version,
		SilenceUsage: true,
	}
	cmd.SetVersionTemplate("indexstager version {{.Version}}\n")

	cmd.PersistentFlags().StringVar(&opts.env, "env", config.GetEnv(), "Environment: local, dev, docker or prod")
	cmd.PersistentFlags().StringVar(&opts.configPath, "config", "", "Config file path (default: config/<env>.yaml)")

	cmd.AddCommand(newServeCmd(opts))
	cmd.AddCommand(newNamesCmd(opts))
	cmd.AddCommand(newStageCmd(opts))
	cmd.AddCommand(newPromoteCmd(opts))
	cmd.AddCommand(newResolveCmd(opts))
	cmd.AddCommand(newCleanupCmd(opts))
	cmd.AddCommand(newVersionCmd())

	return cmd
}

// Execute runs the root command.
func Execute() error {
	return NewRootCmd().Execute()
}

// app is the wired dependency graph shared by all commands.
type app struct {
	cfg     config.Config
	log     *zap.Logger
	store   db.Store
	staging *staginguc.Service
}

func (a *app) close() {
	a.store.Close()
	_ = a.log.Sync()
}

// setup is the composition root: config, logger, store, repository and service.
func (o *rootOptions) setup(ctx context.Context) (*app, error) {
	cfg, err := o.loadConfig()
	if err != nil {
		return nil, err
	}

	log, err := logpkg.NewLogger(o.env, cfg.Logging.Level)
	if err != nil {
		return nil, fmt.Errorf("create logger: %w", err)
	}

	store, err := o.openStore(cfg)
	if err != nil {
		return nil, fmt.Errorf("create %s store: %w", cfg.Database.Driver, err)
	}
	if err := store.WaitForReady(ctx, time.Duration(cfg.Database.ReadinessTimeout)*time.Second); err != nil {
		store.Close()
		return nil, fmt.Errorf("database not ready: %w", err)
	}
	log.Debug("Connected to database",
		zap.String("db_driver", cfg.Database.Driver),
		zap.Strings("db_addrs", cfg.Database.Addrs),
	)

	svc, err := staginguc.New(index.New(store),
		staginguc.WithRetryPolicy(staginguc.RetryPolicy{
			MaxAttempts: cfg.Promotion.CopyPollAttempts,
			Interval:    cfg.Promotion.Interval(),
			Multiplier:  cfg.Promotion.CopyPollMultiplier,
			MaxInterval: cfg.Promotion.MaxInterval(),
		}),
		staginguc.WithLogger(log),
	)
	if err != nil {
		store.Close()
		return nil, err
	}

	return &app{cfg: cfg, log: log, store: store, staging: svc}, nil
}

func (o *rootOptions) loadConfig() (config.Config, error) {
	if o.configPath != "" {
		return config.LoadFile(o.configPath)
	}
	return config.Load(o.env)
}

// openStore creates the database store for the configured driver.
func openStore(cfg config.Config) (db.Store, error) {
	switch cfg.Database.Driver {
	case config.DriverRedis:
		return dbRedis.NewStore(dbRedis.Config{
			Addrs:    cfg.Database.Addrs,
			Username: cfg.Database.Username,
			Password: cfg.Database.Password,
			DB:       cfg.Database.DB,
		})
	case config.DriverMemory:
		return memory.NewStore(), nil
	default:
		return nil, fmt.Errorf("unknown database driver %q", cfg.Database.Driver)
	}
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
