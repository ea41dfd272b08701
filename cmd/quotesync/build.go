package main

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/rcollins/quotesync/internal/config"
	"github.com/rcollins/quotesync/internal/fetch"
	"github.com/rcollins/quotesync/internal/logger"
	"github.com/rcollins/quotesync/internal/refresh"
	"github.com/rcollins/quotesync/internal/schedule"
	"github.com/rcollins/quotesync/internal/store"
)

// components is everything a command needs after assembly.
type components struct {
	cfg   *config.Config
	log   *logger.Logger
	store *store.Store
	orch  *refresh.Orchestrator
}

// loadConfig loads .env (when present), then loads and validates the
// configuration, exiting with a report on any problem.
func loadConfig(path string) *config.Config {
	_ = godotenv.Load()

	if path == "" {
		path = defaultConfigPath
	}

	cfg, err := config.Load(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	if errors := cfg.Validate(); len(errors) > 0 {
		fmt.Fprintf(os.Stderr, "Configuration validation failed:\n")
		for _, e := range errors {
			fmt.Fprintf(os.Stderr, "  - %v\n", e)
		}
		os.Exit(1)
	}
	return cfg
}

// assemble wires the run log, fetcher, metrics, and orchestrator from config.
func assemble(cfg *config.Config, registry prometheus.Registerer) *components {
	log, err := logger.New(logger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cfg.Logging.Output,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	logger.SetDefault(log)

	runLog := store.New(cfg.Storage.DataDir, log)
	valueLog := store.NewValueLog(cfg.Storage.DataDir)

	fetcher := fetch.New(
		toSources(cfg.Sources.Prices),
		toSources(cfg.Sources.Benchmarks),
		fetch.Currency{URL: cfg.Sources.Currency.URL, JSONPath: cfg.Sources.Currency.JSONPath},
		valueLog,
		log,
	)

	metrics := refresh.InitMetrics("quotesync", registry)

	orch := refresh.NewOrchestrator(refresh.Config{
		RetryDelay:   time.Duration(cfg.Retry.DelayMinutes) * time.Minute,
		MaxAttempts:  cfg.Retry.MaxAttempts,
		DelayProfile: cfg.Pacing.DefaultProfile,
	}, fetcher, runLog, metrics, log)

	return &components{
		cfg:   cfg,
		log:   log,
		store: runLog,
		orch:  orch,
	}
}

func (c *components) schedulerConfig() schedule.Config {
	return schedule.Config{
		Enabled:              c.cfg.Schedule.Enabled,
		CronExpression:       c.cfg.Schedule.Cron,
		RunOnStartupIfMissed: c.cfg.Schedule.RunOnStartupIfMissed,
		StartupDelay:         time.Duration(c.cfg.Schedule.StartupDelayMinutes) * time.Minute,
	}
}

func toSources(configured []config.SourceConfig) []fetch.Source {
	sources := make([]fetch.Source, 0, len(configured))
	for _, src := range configured {
		sources = append(sources, fetch.Source{
			ID:       src.ID,
			Name:     src.Name,
			URL:      src.URL,
			JSONPath: src.JSONPath,
		})
	}
	return sources
}
