package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/kailas-cloud/indexstager/internal/config"
	"github.com/kailas-cloud/indexstager/internal/domain/alias"
	domstaging "github.com/kailas-cloud/indexstager/internal/domain/staging"
	staginguc "github.com/kailas-cloud/indexstager/internal/usecase/staging"
)

type namesOutput struct {
	LogicalName  string `json:"logical_name"`
	StagingAlias string `json:"staging_alias"`
	TempIndex    string `json:"temp_index"`
}

type stageOutput struct {
	namesOutput
	Superseded []string `json:"superseded,omitempty"`
}

type resolveOutput struct {
	Name     string         `json:"name"`
	Exists   bool           `json:"exists"`
	Bindings alias.Bindings `json:"bindings"`
	Indexes  []string       `json:"indexes"`
}

func toNamesOutput(n domstaging.Names) namesOutput {
	return namesOutput{LogicalName: n.Logical(), StagingAlias: n.StagingAlias(), TempIndex: n.TempIndex()}
}

// errEphemeralStore rejects one-shot commands on a store that dies with the process.
var errEphemeralStore = errors.New("the memory driver keeps no state between commands: " +
	"use the redis driver, or the HTTP API of 'indexstager serve'")

// withApp runs fn against a freshly wired app, cancelled on SIGINT or SIGTERM.
func withApp(cmd *cobra.Command, opts *rootOptions, fn func(ctx context.Context, a *app) error) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := opts.setup(ctx)
	if err != nil {
		return err
	}
	defer a.close()
	if a.cfg.Database.Driver == config.DriverMemory {
		return errEphemeralStore
	}
	return fn(ctx, a)
}

// newNamesCmd prints a fresh temp index name for a loader to build into.
func newNamesCmd(_ *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "names <logical>",
		Short: "Derive the staging alias and a fresh temp index name",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			n, err := domstaging.NewNames(args[0], nil, nil)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), toNamesOutput(n))
		},
	}
}

func newStageCmd(opts *rootOptions) *cobra.Command {
	var temp string

	cmd := &cobra.Command{
		Use:   "stage <logical>",
		Short: "Point the staging alias at a built temp index",
		Long: `Point <logical>_staged at the temp index given by --temp. A concrete
index occupying the staging alias name is dropped first. Indexes staged
earlier are unbound and listed as superseded for 'indexstager cleanup'.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, func(ctx context.Context, a *app) error {
				sess, err := a.staging.ResumeSession(args[0], temp)
				if err != nil {
					return err
				}
				if err := sess.AliasStageToTemp(ctx); err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), stageOutput{
					namesOutput: toNamesOutput(sess.Names()),
					Superseded:  sess.Superseded(),
				})
			})
		},
	}

	cmd.Flags().StringVar(&temp, "temp", "", "Temp index to stage (from 'indexstager names')")
	_ = cmd.MarkFlagRequired("temp")

	return cmd
}

func newPromoteCmd(opts *rootOptions) *cobra.Command {
	var live string

	cmd := &cobra.Command{
		Use:   "promote <logical>",
		Short: "Swap the live alias onto the staged index",
		Long: `Swap the live name (default <logical>) onto the index behind
<logical>_staged in one alias update, then delete the indexes it replaced.
A concrete index under the live name is copied aside first.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, func(ctx context.Context, a *app) error {
				sess, err := a.staging.AttachSession(args[0])
				if err != nil {
					return err
				}
				rep, err := sess.Promote(ctx, live)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), rep)
			})
		},
	}

	cmd.Flags().StringVar(&live, "live", "", "Live name to promote (default: the logical name)")

	return cmd
}

func newResolveCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "resolve <name>",
		Short: "Show which indexes a name resolves to",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, func(ctx context.Context, a *app) error {
				b, exists, err := a.staging.Resolve(ctx, args[0])
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), resolveOutput{
					Name:     args[0],
					Exists:   exists,
					Bindings: b,
					Indexes:  b.Indexes(),
				})
			})
		},
	}
}

func newCleanupCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "cleanup <logical> <index>...",
		Short: "Delete leftover indexes of a migration",
		Long: `Delete each named index if it exists. Indexes still reachable through
the live name or the staging alias of <logical> are refused.`,
		Args: cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, func(ctx context.Context, a *app) error {
				sess, err := a.staging.AttachSession(args[0])
				if err != nil {
					return err
				}
				if err := refuseReachable(ctx, a.staging, sess.Names(), args[1:]); err != nil {
					return err
				}
				rep := sess.Cleanup(ctx, args[1:]...)
				if err := printJSON(cmd.OutOrStdout(), rep); err != nil {
					return err
				}
				if !rep.OK() {
					return fmt.Errorf("%d of %d indexes could not be deleted", len(rep.Failed), len(args)-1)
				}
				return nil
			})
		},
	}
}

func refuseReachable(ctx context.Context, svc *staginguc.Service, n domstaging.Names, targets []string) error {
	for _, name := range []string{n.Logical(), n.StagingAlias()} {
		b, _, err := svc.Resolve(ctx, name)
		if err != nil {
			return err
		}
		for _, t := range targets {
			if _, ok := b[t]; ok || t == name {
				return fmt.Errorf("index %s is still reachable through %s", t, name)
			}
		}
	}
	return nil
}
