package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func chdirTemp(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) }) //nolint:errcheck
	return dir
}

func TestLoadDefaults(t *testing.T) {
	// Change to temp dir so no config.yaml is found
	chdirTemp(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, int32(10), cfg.Store.MaxConns)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.InDelta(t, 0.92, cfg.Dedup.HighThreshold, 0.001)
	assert.InDelta(t, 0.85, cfg.Dedup.ModerateThreshold, 0.001)
	assert.Equal(t, "name", cfg.Dedup.BlockKey)
	assert.Equal(t, 500, cfg.Maintenance.BatchSize)
	assert.Equal(t, 300, cfg.Maintenance.CorrectiveTimeoutSecs)
	assert.Equal(t, 5, cfg.Maintenance.FailureThreshold)
	assert.Equal(t, 7200, cfg.Maintenance.LockTTLSecs)
	assert.False(t, cfg.Maintenance.PersistRuns)
	assert.Equal(t, 3, cfg.Retry.MaxAttempts)
	assert.Equal(t, 24, cfg.Monitoring.LookbackWindowHours)
	assert.Empty(t, cfg.Monitoring.WebhookURL)
}

func TestLoadFromYAML(t *testing.T) {
	dir := chdirTemp(t)

	yaml := `
store:
  driver: sqlite
  database_url: hygiene.db
log:
  level: debug
  format: console
dedup:
  high_threshold: 0.95
  block_key: prefix
maintenance:
  batch_size: 250
  persist_runs: true
taxonomy:
  file: taxonomy.yaml
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0644))

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.Equal(t, "hygiene.db", cfg.Store.DatabaseURL)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "console", cfg.Log.Format)
	assert.InDelta(t, 0.95, cfg.Dedup.HighThreshold, 0.001)
	assert.Equal(t, "prefix", cfg.Dedup.BlockKey)
	assert.Equal(t, 250, cfg.Maintenance.BatchSize)
	assert.True(t, cfg.Maintenance.PersistRuns)
	assert.Equal(t, "taxonomy.yaml", cfg.Taxonomy.File)
	// Defaults still apply for unset values
	assert.InDelta(t, 0.85, cfg.Dedup.ModerateThreshold, 0.001)
	assert.Equal(t, 5, cfg.Maintenance.FailureThreshold)
}

func TestLoadEnvOverridesFile(t *testing.T) {
	dir := chdirTemp(t)

	yaml := `
store:
  driver: sqlite
log:
  level: debug
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0644))

	t.Setenv("HYGIENE_STORE_DRIVER", "postgres")
	t.Setenv("HYGIENE_LOG_LEVEL", "warn")

	cfg, err := Load()
	require.NoError(t, err)

	// Env overrides file
	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, "warn", cfg.Log.Level)
}

func TestLoadEnvOverridesDefaults(t *testing.T) {
	chdirTemp(t)

	t.Setenv("HYGIENE_MAINTENANCE_BATCH_SIZE", "50")
	t.Setenv("HYGIENE_MONITORING_WEBHOOK_URL", "https://hooks.example.com/hygiene")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 50, cfg.Maintenance.BatchSize)
	assert.Equal(t, "https://hooks.example.com/hygiene", cfg.Monitoring.WebhookURL)
}

func TestLoadMalformedFile(t *testing.T) {
	dir := chdirTemp(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte("store: [unclosed"), 0644))

	_, err := Load()
	assert.Error(t, err)
}

func TestInitLoggerConsole(t *testing.T) {
	err := InitLogger(LogConfig{Level: "debug", Format: "console"})
	require.NoError(t, err)
	assert.NotNil(t, zap.L())
}

func TestInitLoggerJSON(t *testing.T) {
	err := InitLogger(LogConfig{Level: "info", Format: "json"})
	require.NoError(t, err)
	assert.NotNil(t, zap.L())
}

func TestInitLoggerInvalidLevel(t *testing.T) {
	err := InitLogger(LogConfig{Level: "invalid", Format: "json"})
	assert.Error(t, err)
}

// validDefaults returns a Config with all defaults populated for validation tests.
func validDefaults() *Config {
	cfg := &Config{}
	cfg.Store.Driver = "postgres"
	cfg.Store.DatabaseURL = "postgres://localhost/hygiene"
	cfg.Dedup.HighThreshold = 0.92
	cfg.Dedup.ModerateThreshold = 0.85
	cfg.Dedup.EditWeight = 0.7
	cfg.Dedup.PhoneticWeight = 0.3
	cfg.Dedup.JaroPrefixScale = 0.1
	cfg.Dedup.BlockKey = "name"
	cfg.Maintenance.BatchSize = 500
	cfg.Maintenance.FailureThreshold = 5
	cfg.Monitoring.FailureRateThreshold = 0.25
	return cfg
}

func TestValidateRun_AllPresent(t *testing.T) {
	assert.NoError(t, validDefaults().Validate("run"))
}

func TestValidateRun_MissingStore(t *testing.T) {
	cfg := validDefaults()
	cfg.Store.DatabaseURL = ""
	cfg.Store.Driver = "mysql"

	err := cfg.Validate("run")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "store.database_url is required")
	assert.Contains(t, err.Error(), "store.driver must be postgres or sqlite")
}

func TestValidateOffline_NoStoreNeeded(t *testing.T) {
	cfg := validDefaults()
	cfg.Store.DatabaseURL = ""
	assert.NoError(t, cfg.Validate("offline"))
}

func TestValidateUnknownMode(t *testing.T) {
	err := validDefaults().Validate("serve")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "unknown mode")
}

func TestValidateThresholds(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{"high above one", func(c *Config) { c.Dedup.HighThreshold = 1.2 }, "dedup.high_threshold"},
		{"moderate negative", func(c *Config) { c.Dedup.ModerateThreshold = -0.1 }, "dedup.moderate_threshold"},
		{"moderate above high", func(c *Config) { c.Dedup.ModerateThreshold = 0.95 }, "must be <= dedup.high_threshold"},
		{"negative weight", func(c *Config) { c.Dedup.PhoneticWeight = -1 }, "weights must be >= 0"},
		{"prefix scale", func(c *Config) { c.Dedup.JaroPrefixScale = 0.3 }, "jaro_prefix_scale"},
		{"block key", func(c *Config) { c.Dedup.BlockKey = "soundex" }, "dedup.block_key"},
		{"batch size", func(c *Config) { c.Maintenance.BatchSize = 0 }, "maintenance.batch_size must be > 0"},
		{"failure threshold", func(c *Config) { c.Maintenance.FailureThreshold = 0 }, "maintenance.failure_threshold"},
		{"failure rate", func(c *Config) { c.Monitoring.FailureRateThreshold = 2 }, "monitoring.failure_rate_threshold"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validDefaults()
			tt.mutate(cfg)
			err := cfg.Validate("offline")
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
