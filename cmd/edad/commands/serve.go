package commands

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/xtxerr/rcaeda/internal/loader"
	"github.com/xtxerr/rcaeda/internal/logging"
	"github.com/xtxerr/rcaeda/internal/metrics"
	"github.com/xtxerr/rcaeda/internal/pipeline"
	"github.com/xtxerr/rcaeda/internal/trigger"
)

var (
	runNow        bool
	metricsListen string
	stopTimeout   time.Duration
)

var serveCmd = &cobra.Command{
	Use:   "serve [s3://bucket/key]",
	Short: "Run the stage on its cron schedule",
	Long: `Run the stage on the configured schedule (every 30 minutes by
default). A tick that fires while a run is active is skipped. Failed
runs are logged and the schedule continues.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd, args)
		if err != nil {
			return err
		}
		if cmd.Flags().Changed("metrics-listen") {
			cfg.Metrics.Listen = metricsListen
		}
		log := logging.Component("edad")
		log.Info("configuration loaded", loader.Summary(cfg)...)

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		rec := metrics.New()
		runner, err := newRunner(ctx, cfg, pipeline.WithRecorder(rec))
		if err != nil {
			return err
		}

		tr, err := trigger.New(cfg.Schedule.Cron, func(ctx context.Context) {
			rep := runner.Run(ctx)
			if rep.Status != pipeline.StatusSuccess {
				log.Warn("scheduled run did not succeed", "run_id", rep.RunID, "status", rep.Status)
			}
		})
		if err != nil {
			return err
		}

		var srv *http.Server
		if cfg.Metrics.Listen != "" {
			mux := http.NewServeMux()
			mux.Handle("/metrics", rec.Handler())
			srv = &http.Server{Addr: cfg.Metrics.Listen, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
			go func() {
				log.Info("metrics listening", "addr", cfg.Metrics.Listen)
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					log.Error("metrics server failed", "error", err)
				}
			}()
		}

		tr.Start(ctx)
		if runNow {
			go tr.RunNow()
		}

		<-ctx.Done()
		log.Info("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), stopTimeout)
		defer cancel()
		if srv != nil {
			_ = srv.Shutdown(shutdownCtx)
		}
		return tr.Stop(shutdownCtx)
	},
}

func init() {
	serveCmd.Flags().BoolVar(&runNow, "run-now", false, "run once immediately on start")
	serveCmd.Flags().StringVar(&metricsListen, "metrics-listen", "", "serve /metrics on this address, e.g. :9464")
	serveCmd.Flags().DurationVar(&stopTimeout, "stop-timeout", 30*time.Second, "how long to wait for an active run on shutdown")
}
