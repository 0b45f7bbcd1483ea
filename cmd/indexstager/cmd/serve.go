package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/kailas-cloud/indexstager/internal/metrics"
	chiTransport "github.com/kailas-cloud/indexstager/internal/transport/chi"
	healthuc "github.com/kailas-cloud/indexstager/internal/usecase/health"
	"github.com/kailas-cloud/indexstager/internal/version"
)

// newServeCmd creates the serve command running the admin HTTP API.
func newServeCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the admin HTTP API",
		Long: `Run the admin HTTP API exposing names, stage, promote and resolve
per logical index, plus /health and /metrics. Stops gracefully on SIGINT or SIGTERM.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runServe(ctx, opts)
		},
	}
}

func runServe(ctx context.Context, opts *rootOptions) error {
	a, err := opts.setup(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	a.log.Info("Starting indexstager API server",
		zap.String("version", version.Version),
		zap.String("commit", version.Commit),
		zap.String("env", opts.env),
		zap.Int("http_port", a.cfg.HTTP.Port),
		zap.String("db_driver", a.cfg.Database.Driver),
	)

	// Registered explicitly (no init())
	metrics.RegisterPromotionMetrics()
	metrics.RegisterHTTPMetrics()

	server := chiTransport.NewServer(a.staging, healthuc.New(a.store, a.store), a.log)
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", a.cfg.HTTP.Port),
		Handler:      chiTransport.NewRouter(server, a.cfg.Auth.APIKeys, a.log),
		ReadTimeout:  time.Duration(a.cfg.HTTP.ReadTimeoutSec) * time.Second,
		WriteTimeout: time.Duration(a.cfg.HTTP.WriteTimeoutSec) * time.Second,
	}

	return serveUntilDone(ctx, srv, time.Duration(a.cfg.HTTP.ShutdownSec)*time.Second, a.log)
}

// serveUntilDone runs srv until ctx ends, then drains in-flight requests for up to grace.
func serveUntilDone(ctx context.Context, srv *http.Server, grace time.Duration, log *zap.Logger) error {
	errCh := make(chan error, 1)
	go func() {
		log.Info("Starting HTTP server", zap.String("addr", srv.Addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
		log.Info("Received shutdown signal")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), grace)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Error during shutdown", zap.Error(err))
		return fmt.Errorf("shutdown: %w", err)
	}

	log.Info("Server stopped gracefully")
	return nil
}
