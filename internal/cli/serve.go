package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/randalmurphal/hrdesk/internal/api"
	"github.com/randalmurphal/hrdesk/internal/config"
	"github.com/randalmurphal/hrdesk/internal/engine"
	"github.com/randalmurphal/hrdesk/internal/events"
	"github.com/randalmurphal/hrdesk/internal/lock"
	"github.com/randalmurphal/hrdesk/internal/metrics"
	"github.com/randalmurphal/hrdesk/internal/runner"
)

// newServeCmd creates the serve command for the API server.
func newServeCmd() *cobra.Command {
	var (
		addr      string
		rateLimit float64
		rateBurst int
		interval  time.Duration
		noTicker  bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the API server and the scheduler",
		Long: `Start the hrdesk API server. The scheduler ticks once shortly after
startup and then every scheduler.interval, so overdue sweeps and recurring
instances happen without a separate cron job.

The server provides:
  • REST endpoints under /api
  • A WebSocket event stream at /ws
  • Prometheus metrics at /metrics

Example:
  hrdesk serve                    # listen on server.addr (default 127.0.0.1:8080)
  hrdesk serve --addr :9000       # custom address
  hrdesk serve --interval 15m     # tick every 15 minutes`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			gin.SetMode(gin.ReleaseMode)
			ctx := cmd.Context()

			rec, err := metrics.New(ctx, "hrdesk")
			if err != nil {
				return err
			}
			defer func() {
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				_ = rec.Shutdown(shutdownCtx)
			}()

			// The engine publishes through the CLI printer into the fan-out
			// publisher that the websocket stream and inbox subscribe to.
			fanout := events.NewMemoryPublisher()
			pub := events.NewCLIPublisher(cmd.ErrOrStderr(), events.WithInnerPublisher(fanout))
			defer pub.Close()
			rec.ObserveDroppedEvents(fanout.Dropped)

			tc, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			if guard := storeGuard(tc.Config.Storage); guard != nil {
				if err := guard.Acquire(); err != nil {
					return err
				}
				defer guard.Release()
			}

			a, err := openAppWith(ctx, tc, cmd.ErrOrStderr(), engine.WithPublisher(pub), engine.WithMetrics(rec))
			if err != nil {
				return err
			}
			defer a.Close()

			cfg := a.cfg.Config
			inbox := events.NewInbox(0)
			srv := api.New(a.engine, api.Config{
				Addr:         cfg.Server.Addr,
				RateLimit:    cfg.Server.RateLimit,
				RateBurst:    cfg.Server.RateBurst,
				UpcomingDays: cfg.Queries.UpcomingDays,
				Logger:       a.logger,
				Publisher:    pub,
				Inbox:        inbox,
				Metrics:      rec,
			})

			g, gctx := errgroup.WithContext(ctx)
			g.Go(func() error {
				inbox.Run(gctx, pub)
				return nil
			})
			g.Go(func() error {
				return srv.Run(gctx)
			})
			if !noTicker {
				r := runner.New(a.engine, runner.Config{
					Interval:     cfg.Scheduler.Interval,
					StartupDelay: cfg.Scheduler.StartupDelay,
					Logger:       a.logger,
				})
				g.Go(func() error {
					return r.Run(gctx)
				})
			}

			fmt.Fprintf(cmd.ErrOrStderr(), "hrdesk listening on %s (Ctrl+C to stop)\n", cfg.Server.Addr)
			err = g.Wait()

			saveCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if saveErr := a.engine.Save(saveCtx); saveErr != nil && err == nil {
				err = saveErr
			}
			return err
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "127.0.0.1:8080", "listen address")
	cmd.Flags().Float64Var(&rateLimit, "rate-limit", 20, "requests per second per client (0 disables)")
	cmd.Flags().IntVar(&rateBurst, "rate-burst", 40, "burst size for the rate limiter")
	cmd.Flags().DurationVar(&interval, "interval", time.Hour, "scheduler tick interval")
	cmd.Flags().BoolVar(&noTicker, "no-scheduler", false, "serve the API without running the scheduler")
	bindConfigFlag(cmd, "addr", "server.addr")
	bindConfigFlag(cmd, "rate-limit", "server.rate_limit")
	bindConfigFlag(cmd, "rate-burst", "server.rate_burst")
	bindConfigFlag(cmd, "interval", "scheduler.interval")

	return cmd
}

// storeGuard returns a PID guard for stores kept in a local file. Only one
// server may write such a store at a time.
func storeGuard(cfg config.StorageConfig) *lock.PIDGuard {
	switch cfg.Driver {
	case config.DriverFile, config.DriverSQLite:
		return lock.NewPIDGuard(cfg.Path)
	}
	return nil
}
