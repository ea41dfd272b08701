package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoad_AppliesDefaults(t *testing.T) {
	path := writeConfig(t, ``)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "json", cfg.Logging.Format)
	assert.Equal(t, "stdout", cfg.Logging.Output)
	assert.Equal(t, "0 18 * * 1-5", cfg.Schedule.Cron)
	assert.Equal(t, 5, cfg.Schedule.StartupDelayMinutes)
	assert.Equal(t, 15, cfg.Retry.DelayMinutes)
	assert.Equal(t, 3, cfg.Retry.MaxAttempts)
	assert.Equal(t, "cron", cfg.Pacing.DefaultProfile)
	assert.Equal(t, ":8087", cfg.Server.Addr)
}

func TestLoad_ParsesFullConfig(t *testing.T) {
	path := writeConfig(t, `
[logging]
level = "debug"
format = "text"

[schedule]
enabled = true
cron = "30 17 * * *"
run_on_startup_if_missed = true
startup_delay_minutes = 2

[retry]
delay_minutes = 10
max_attempts = 5

[pacing]
default_profile = "interactive"

[storage]
data_dir = "/var/lib/quotesync"

[server]
enabled = true
addr = "127.0.0.1:9000"

[[sources.prices]]
id = 7
name = "ACME"
url = "https://quotes.example.com/acme"
json_path = "quote.last"

[[sources.benchmarks]]
id = 1
name = "WORLD"
url = "https://index.example.com/world"
json_path = "value"

[sources.currency]
url = "https://fx.example.com/usd-eur"
json_path = "rate"
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Empty(t, cfg.Validate())

	assert.True(t, cfg.Schedule.Enabled)
	assert.Equal(t, "30 17 * * *", cfg.Schedule.Cron)
	assert.True(t, cfg.Schedule.RunOnStartupIfMissed)
	assert.Equal(t, 5, cfg.Retry.MaxAttempts)
	require.Len(t, cfg.Sources.Prices, 1)
	assert.Equal(t, int64(7), cfg.Sources.Prices[0].ID)
	assert.Equal(t, "quote.last", cfg.Sources.Prices[0].JSONPath)
	assert.Equal(t, "https://fx.example.com/usd-eur", cfg.Sources.Currency.URL)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load("/nonexistent/config.toml")
	assert.Error(t, err)
}

func TestLoad_MalformedTOML(t *testing.T) {
	path := writeConfig(t, `[schedule
enabled = `)

	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoad_ExpandsEnvVars(t *testing.T) {
	t.Setenv("QS_TEST_URL", "https://real.example.com/quote")
	path := writeConfig(t, `
[[sources.prices]]
id = 1
url = "${QS_TEST_URL}"

[storage]
data_dir = "${QS_TEST_DATA:/tmp/qs-data}"
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "https://real.example.com/quote", cfg.Sources.Prices[0].URL)
	assert.Equal(t, "/tmp/qs-data", cfg.Storage.DataDir)
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		c := &Config{}
		applyDefaults(c)
		c.Schedule.Enabled = true
		return c
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"valid", func(c *Config) {}, ""},
		{"bad level", func(c *Config) { c.Logging.Level = "loud" }, "logging.level"},
		{"bad format", func(c *Config) { c.Logging.Format = "xml" }, "logging.format"},
		{"bad cron", func(c *Config) { c.Schedule.Cron = "nope" }, "schedule.cron"},
		{"empty cron while enabled", func(c *Config) { c.Schedule.Cron = "" }, "schedule.cron"},
		{"negative startup delay", func(c *Config) { c.Schedule.StartupDelayMinutes = -1 }, "startup_delay_minutes"},
		{"zero retry delay", func(c *Config) { c.Retry.DelayMinutes = 0 }, "retry.delay_minutes"},
		{"max attempts too high", func(c *Config) { c.Retry.MaxAttempts = 11 }, "retry.max_attempts"},
		{"max attempts too low", func(c *Config) { c.Retry.MaxAttempts = 0 }, "retry.max_attempts"},
		{"missing data dir", func(c *Config) { c.Storage.DataDir = "" }, "storage.data_dir"},
		{"server without addr", func(c *Config) { c.Server.Enabled = true; c.Server.Addr = "" }, "server.addr"},
		{"price source without url", func(c *Config) { c.Sources.Prices = []SourceConfig{{ID: 1}} }, "sources.prices"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := valid()
			tt.mutate(c)
			errs := c.Validate()
			if tt.wantErr == "" {
				assert.Empty(t, errs)
				return
			}
			require.NotEmpty(t, errs)
			found := false
			for _, err := range errs {
				if strings.Contains(err.Error(), tt.wantErr) {
					found = true
					break
				}
			}
			assert.True(t, found, "no error mentioning %q in %v", tt.wantErr, errs)
		})
	}
}

func TestExpandEnv(t *testing.T) {
	t.Setenv("QS_SET", "value")

	tests := []struct {
		in   string
		want string
	}{
		{"plain", "plain"},
		{"${QS_SET}", "value"},
		{"${QS_UNSET}", ""},
		{"${QS_UNSET:fallback}", "fallback"},
		{"${QS_SET:fallback}", "value"},
		{"${unterminated", "${unterminated"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, expandEnv(tt.in), tt.in)
	}
}
