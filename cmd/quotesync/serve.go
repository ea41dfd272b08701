package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/rcollins/quotesync/internal/logger"
	"github.com/rcollins/quotesync/internal/refresh"
	"github.com/rcollins/quotesync/internal/schedule"
	"github.com/rcollins/quotesync/internal/server"
)

var (
	serveConfigPath string
	serveLogLevel   string
)

// serveCmd represents the serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the refresh daemon (main command)",
	Long: `Start the quotesync daemon. This initializes the run log, the
fetcher, the cron scheduler with missed-run detection, and the admin API,
and handles graceful shutdown on SIGINT/SIGTERM.`,
	Run: serveHandler,
}

func serveHandler(cmd *cobra.Command, args []string) {
	cfg := loadConfig(serveConfigPath)
	if serveLogLevel != "" {
		cfg.Logging.Level = serveLogLevel
	}

	registry := prometheus.NewRegistry()
	c := assemble(cfg, registry)

	c.log.Info("starting quotesync",
		logger.Field{Key: "version", Value: Version},
		logger.Field{Key: "git_commit", Value: GitCommit},
		logger.Field{Key: "data_dir", Value: cfg.Storage.DataDir},
		logger.Field{Key: "schedule_enabled", Value: cfg.Schedule.Enabled})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	scheduler := schedule.New(c.schedulerConfig(), c.orch, c.store, c.log)
	if err := scheduler.Initialize(ctx); err != nil {
		c.log.Error("failed to initialize scheduler", err)
		os.Exit(1)
	}

	serverErr := make(chan error, 1)
	if cfg.Server.Enabled {
		reporter := refresh.NewStatusReporter(cfg.Schedule.Enabled, cfg.Schedule.Cron, scheduler.NextRun, c.orch)
		srv := server.New(cfg.Server.Addr, reporter, c.orch, registry, c.log)
		go func() {
			serverErr <- srv.Start(ctx)
		}()
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		c.log.Info("shutdown signal received", logger.Field{Key: "signal", Value: sig.String()})
	case err := <-serverErr:
		if err != nil {
			c.log.Error("admin server failed", err)
		}
	}

	scheduler.Stop()
	cancel()
	c.log.Info("quotesync stopped")
}

func init() {
	serveCmd.Flags().StringVarP(&serveConfigPath, "config", "c", "", "path to config file (default ./config.toml)")
	serveCmd.Flags().StringVarP(&serveLogLevel, "log-level", "l", "", "override log level")
}
