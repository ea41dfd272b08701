// Package config provides configuration loading and validation for quotesync.
// It reads TOML with environment variable expansion, default values, and
// validation of everything the daemon needs before it starts.
//
// Configuration structure:
//   - [logging]: level, format, output
//   - [schedule]: cron expression and missed-run behavior
//   - [retry]: retry loop delay and attempt bound
//   - [pacing]: default politeness-delay profile
//   - [storage]: data directory for the run log
//   - [server]: admin API listen address
//   - [[sources.prices]] / [[sources.benchmarks]] / [sources.currency]:
//     HTTP endpoints for the built-in fetcher
//
// String values can reference environment variables using ${VAR} or
// ${VAR:default} syntax.
package config

// Config is the root of the TOML configuration.
type Config struct {
	Logging  LoggingConfig  `toml:"logging"`
	Schedule ScheduleConfig `toml:"schedule"`
	Retry    RetryConfig    `toml:"retry"`
	Pacing   PacingConfig   `toml:"pacing"`
	Storage  StorageConfig  `toml:"storage"`
	Server   ServerConfig   `toml:"server"`
	Sources  SourcesConfig  `toml:"sources"`
}

// LoggingConfig controls the structured logger.
type LoggingConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
	Output string `toml:"output"`
}

// ScheduleConfig controls when bulk refreshes run. Read once at scheduler
// initialization; there is no live reload.
type ScheduleConfig struct {
	Enabled              bool   `toml:"enabled"`
	Cron                 string `toml:"cron"`
	RunOnStartupIfMissed bool   `toml:"run_on_startup_if_missed"`
	StartupDelayMinutes  int    `toml:"startup_delay_minutes"`
}

// RetryConfig bounds the retry loop over failed items.
type RetryConfig struct {
	DelayMinutes int `toml:"delay_minutes"`
	MaxAttempts  int `toml:"max_attempts"`
}

// PacingConfig selects the default politeness-delay profile.
type PacingConfig struct {
	DefaultProfile string `toml:"default_profile"`
}

// StorageConfig locates the run log.
type StorageConfig struct {
	DataDir string `toml:"data_dir"`
}

// ServerConfig controls the admin API.
type ServerConfig struct {
	Enabled bool   `toml:"enabled"`
	Addr    string `toml:"addr"`
}

// SourcesConfig lists the HTTP endpoints the built-in fetcher refreshes.
type SourcesConfig struct {
	Prices     []SourceConfig `toml:"prices"`
	Benchmarks []SourceConfig `toml:"benchmarks"`
	Currency   CurrencyConfig `toml:"currency"`
}

// SourceConfig is one price or benchmark endpoint. JSONPath is the
// dot-separated path to the numeric value inside the response body.
type SourceConfig struct {
	ID       int64  `toml:"id"`
	Name     string `toml:"name"`
	URL      string `toml:"url"`
	JSONPath string `toml:"json_path"`
}

// CurrencyConfig is the single exchange-rate endpoint.
type CurrencyConfig struct {
	URL      string `toml:"url"`
	JSONPath string `toml:"json_path"`
}
