package config

// applyDefaults fills in defaults for anything the file leaves unset.
func applyDefaults(c *Config) {
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "json"
	}
	if c.Logging.Output == "" {
		c.Logging.Output = "stdout"
	}

	if c.Schedule.Cron == "" {
		c.Schedule.Cron = "0 18 * * 1-5"
	}
	if c.Schedule.StartupDelayMinutes == 0 {
		c.Schedule.StartupDelayMinutes = 5
	}

	if c.Retry.DelayMinutes == 0 {
		c.Retry.DelayMinutes = 15
	}
	if c.Retry.MaxAttempts == 0 {
		c.Retry.MaxAttempts = 3
	}

	if c.Pacing.DefaultProfile == "" {
		c.Pacing.DefaultProfile = "cron"
	}

	if c.Storage.DataDir == "" {
		c.Storage.DataDir = "~/.config/quotesync"
	}

	if c.Server.Addr == "" {
		c.Server.Addr = ":8087"
	}
}
