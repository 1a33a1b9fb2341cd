package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/rshade/greenreport/internal/api"
	"github.com/rshade/greenreport/internal/logging"
)

const (
	poolMonitorInterval = 30 * time.Second
	archiveSweepPeriod  = time.Hour
)

func newServeCmd() *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the report HTTP API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a, err := newApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			cfg := a.cfg
			if addr == "" {
				addr = cfg.Server.Addr()
			}

			opts := []api.Option{api.WithLogger(logging.ComponentLogger(logging.Default(), "api"))}
			if a.archive != nil {
				opts = append(opts, api.WithArchive(a.archive))
				go sweepArchive(ctx, a)
			}
			if a.db != nil {
				go a.db.MonitorConnections(ctx, poolMonitorInterval)
			}

			srv := api.NewServer(api.Config{
				Addr:        addr,
				CORSOrigins: cfg.Server.CORSOrigins,
				Timeout:     cfg.Server.Timeout,
			}, a.orch, opts...)

			logger.Info().Ctx(ctx).
				Str("addr", addr).
				Bool("model_configured", a.orch.ModelConfigured()).
				Bool("readings_configured", a.orch.ReadingsConfigured()).
				Msg("starting report server")
			return srv.Run(ctx)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default from server.host and server.port)")
	return cmd
}

// sweepArchive removes expired reports until ctx ends.
func sweepArchive(ctx context.Context, a *app) {
	ticker := time.NewTicker(archiveSweepPeriod)
	defer ticker.Stop()
	for {
		removed, err := a.archive.CleanupExpired()
		if err != nil {
			logger.Warn().Ctx(ctx).Err(err).Msg("archive cleanup failed")
		} else if removed > 0 {
			logger.Info().Ctx(ctx).Int("removed", removed).Msg("expired reports removed")
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
