package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/robfig/cron/v3"
)

// Load reads, defaults, and env-expands the configuration at path.
// Validation is a separate step so callers can report every problem at once.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	applyDefaults(&cfg)
	expandConfig(&cfg)

	return &cfg, nil
}

// Validate checks the configuration and returns every violation found.
func (c *Config) Validate() []error {
	var errors []error

	if c.Logging.Level == "" {
		errors = append(errors, fmt.Errorf("logging.level is required"))
	} else {
		validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
		if !validLevels[strings.ToLower(c.Logging.Level)] {
			errors = append(errors, fmt.Errorf("invalid logging.level: %s (expected: debug, info, warn, error)", c.Logging.Level))
		}
	}
	if c.Logging.Format != "" {
		validFormats := map[string]bool{"json": true, "text": true}
		if !validFormats[strings.ToLower(c.Logging.Format)] {
			errors = append(errors, fmt.Errorf("invalid logging.format: %s (expected: json, text)", c.Logging.Format))
		}
	}

	if c.Schedule.Enabled {
		if c.Schedule.Cron == "" {
			errors = append(errors, fmt.Errorf("schedule.cron is required when scheduling is enabled"))
		} else if _, err := cron.ParseStandard(c.Schedule.Cron); err != nil {
			errors = append(errors, fmt.Errorf("invalid schedule.cron: %w", err))
		}
	}
	if c.Schedule.StartupDelayMinutes < 0 {
		errors = append(errors, fmt.Errorf("schedule.startup_delay_minutes cannot be negative"))
	}

	if c.Retry.DelayMinutes <= 0 {
		errors = append(errors, fmt.Errorf("retry.delay_minutes must be positive"))
	}
	if c.Retry.MaxAttempts < 1 || c.Retry.MaxAttempts > 10 {
		errors = append(errors, fmt.Errorf("retry.max_attempts must be between 1 and 10 (got %d)", c.Retry.MaxAttempts))
	}

	if c.Storage.DataDir == "" {
		errors = append(errors, fmt.Errorf("storage.data_dir is required"))
	}

	if c.Server.Enabled && c.Server.Addr == "" {
		errors = append(errors, fmt.Errorf("server.addr is required when the server is enabled"))
	}

	for i, src := range c.Sources.Prices {
		if src.URL == "" {
			errors = append(errors, fmt.Errorf("sources.prices[%d].url is required", i))
		}
	}
	for i, src := range c.Sources.Benchmarks {
		if src.URL == "" {
			errors = append(errors, fmt.Errorf("sources.benchmarks[%d].url is required", i))
		}
	}

	return errors
}

// expandConfig applies env-var and home-dir expansion to path and URL fields.
func expandConfig(c *Config) {
	c.Logging.Output = expandEnv(c.Logging.Output)
	c.Storage.DataDir = expandHome(expandEnv(c.Storage.DataDir))
	c.Server.Addr = expandEnv(c.Server.Addr)
	for i := range c.Sources.Prices {
		c.Sources.Prices[i].URL = expandEnv(c.Sources.Prices[i].URL)
	}
	for i := range c.Sources.Benchmarks {
		c.Sources.Benchmarks[i].URL = expandEnv(c.Sources.Benchmarks[i].URL)
	}
	c.Sources.Currency.URL = expandEnv(c.Sources.Currency.URL)
}

// expandEnv expands a ${VAR} or ${VAR:default} reference.
func expandEnv(s string) string {
	if !strings.HasPrefix(s, "${") {
		return s
	}

	end := strings.Index(s, "}")
	if end == -1 {
		return s
	}

	content := s[2:end]
	if parts := strings.SplitN(content, ":", 2); len(parts) == 2 {
		key := parts[0]
		defaultVal := parts[1]
		if val := os.Getenv(key); val != "" {
			return val
		}
		return defaultVal
	}

	return os.Getenv(content)
}

// expandHome expands a leading ~/ to the user's home directory.
func expandHome(path string) string {
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, path[2:])
	}
	return path
}
