package config

import (
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store       StoreConfig       `yaml:"store" mapstructure:"store"`
	Log         LogConfig         `yaml:"log" mapstructure:"log"`
	Dedup       DedupConfig       `yaml:"dedup" mapstructure:"dedup"`
	Maintenance MaintenanceConfig `yaml:"maintenance" mapstructure:"maintenance"`
	Taxonomy    TaxonomyConfig    `yaml:"taxonomy" mapstructure:"taxonomy"`
	Retry       RetryConfig       `yaml:"retry" mapstructure:"retry"`
	Monitoring  MonitoringConfig  `yaml:"monitoring" mapstructure:"monitoring"`
}

// StoreConfig selects and configures the storage backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	MaxConns    int32  `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns    int32  `yaml:"min_conns" mapstructure:"min_conns"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// DedupConfig tunes duplicate detection and merging.
type DedupConfig struct {
	HighThreshold      float64 `yaml:"high_threshold" mapstructure:"high_threshold"`
	ModerateThreshold  float64 `yaml:"moderate_threshold" mapstructure:"moderate_threshold"`
	EditWeight         float64 `yaml:"edit_weight" mapstructure:"edit_weight"`
	PhoneticWeight     float64 `yaml:"phonetic_weight" mapstructure:"phonetic_weight"`
	JaroPrefixScale    float64 `yaml:"jaro_prefix_scale" mapstructure:"jaro_prefix_scale"`
	BlockKey           string  `yaml:"block_key" mapstructure:"block_key"`
	BlockPrefixLen     int     `yaml:"block_prefix_len" mapstructure:"block_prefix_len"`
	MaxMergesPerSecond float64 `yaml:"max_merges_per_second" mapstructure:"max_merges_per_second"`
}

// MaintenanceConfig configures the run orchestrator.
type MaintenanceConfig struct {
	BatchSize             int  `yaml:"batch_size" mapstructure:"batch_size"`
	CorrectiveTimeoutSecs int  `yaml:"corrective_timeout_secs" mapstructure:"corrective_timeout_secs"`
	FailureThreshold      int  `yaml:"failure_threshold" mapstructure:"failure_threshold"`
	LockTTLSecs           int  `yaml:"lock_ttl_secs" mapstructure:"lock_ttl_secs"`
	PersistRuns           bool `yaml:"persist_runs" mapstructure:"persist_runs"`
}

// TaxonomyConfig points at an optional YAML file extending the built-in
// country, stage and industry tables.
type TaxonomyConfig struct {
	File string `yaml:"file" mapstructure:"file"`
}

// RetryConfig configures retries of transient database and webhook errors.
type RetryConfig struct {
	MaxAttempts      int `yaml:"max_attempts" mapstructure:"max_attempts"`
	InitialBackoffMs int `yaml:"initial_backoff_ms" mapstructure:"initial_backoff_ms"`
	MaxBackoffMs     int `yaml:"max_backoff_ms" mapstructure:"max_backoff_ms"`
}

// MonitoringConfig configures run alerts.
type MonitoringConfig struct {
	WebhookURL           string  `yaml:"webhook_url" mapstructure:"webhook_url"`
	FailureRateThreshold float64 `yaml:"failure_rate_threshold" mapstructure:"failure_rate_threshold"`
	LookbackWindowHours  int     `yaml:"lookback_window_hours" mapstructure:"lookback_window_hours"`
	CheckIntervalSecs    int     `yaml:"check_interval_secs" mapstructure:"check_interval_secs"`
	StaleAfterHours      int     `yaml:"stale_after_hours" mapstructure:"stale_after_hours"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("HYGIENE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "postgres")
	v.SetDefault("store.database_url", "")
	v.SetDefault("store.max_conns", 10)
	v.SetDefault("store.min_conns", 2)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("dedup.high_threshold", 0.92)
	v.SetDefault("dedup.moderate_threshold", 0.85)
	v.SetDefault("dedup.edit_weight", 0.7)
	v.SetDefault("dedup.phonetic_weight", 0.3)
	v.SetDefault("dedup.jaro_prefix_scale", 0.1)
	v.SetDefault("dedup.block_key", "name")
	v.SetDefault("dedup.block_prefix_len", 5)
	v.SetDefault("dedup.max_merges_per_second", 0)
	v.SetDefault("maintenance.batch_size", 500)
	v.SetDefault("maintenance.corrective_timeout_secs", 300)
	v.SetDefault("maintenance.failure_threshold", 5)
	v.SetDefault("maintenance.lock_ttl_secs", 7200)
	v.SetDefault("maintenance.persist_runs", false)
	v.SetDefault("taxonomy.file", "")
	v.SetDefault("retry.max_attempts", 3)
	v.SetDefault("retry.initial_backoff_ms", 200)
	v.SetDefault("retry.max_backoff_ms", 5000)
	v.SetDefault("monitoring.webhook_url", "")
	v.SetDefault("monitoring.failure_rate_threshold", 0.25)
	v.SetDefault("monitoring.lookback_window_hours", 24)
	v.SetDefault("monitoring.check_interval_secs", 300)
	v.SetDefault("monitoring.stale_after_hours", 48)

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// Validate checks the configuration for the given command mode. "run" and
// "monitor" need a database; "offline" only checks tuning values.
func (c *Config) Validate(mode string) error {
	var errs []string

	switch mode {
	case "run", "monitor":
		switch c.Store.Driver {
		case "postgres", "sqlite":
		default:
			errs = append(errs, fmt.Sprintf("store.driver must be postgres or sqlite, got %q", c.Store.Driver))
		}
		if c.Store.DatabaseURL == "" {
			errs = append(errs, "store.database_url is required")
		}
	case "offline":
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	d := c.Dedup
	if d.HighThreshold < 0 || d.HighThreshold > 1 {
		errs = append(errs, "dedup.high_threshold must be between 0 and 1")
	}
	if d.ModerateThreshold < 0 || d.ModerateThreshold > 1 {
		errs = append(errs, "dedup.moderate_threshold must be between 0 and 1")
	}
	if d.ModerateThreshold > d.HighThreshold {
		errs = append(errs, "dedup.moderate_threshold must be <= dedup.high_threshold")
	}
	if d.EditWeight < 0 || d.PhoneticWeight < 0 {
		errs = append(errs, "dedup weights must be >= 0")
	}
	if d.JaroPrefixScale < 0 || d.JaroPrefixScale > 0.25 {
		errs = append(errs, "dedup.jaro_prefix_scale must be between 0 and 0.25")
	}
	if d.BlockKey != "" && d.BlockKey != "name" && d.BlockKey != "prefix" {
		errs = append(errs, fmt.Sprintf("dedup.block_key must be name or prefix, got %q", d.BlockKey))
	}
	if d.MaxMergesPerSecond < 0 {
		errs = append(errs, "dedup.max_merges_per_second must be >= 0")
	}
	if c.Maintenance.BatchSize <= 0 {
		errs = append(errs, "maintenance.batch_size must be > 0")
	}
	if c.Maintenance.FailureThreshold <= 0 {
		errs = append(errs, "maintenance.failure_threshold must be > 0")
	}
	if c.Monitoring.FailureRateThreshold < 0 || c.Monitoring.FailureRateThreshold > 1 {
		errs = append(errs, "monitoring.failure_rate_threshold must be between 0 and 1")
	}

	if len(errs) > 0 {
		return eris.Errorf("config: invalid: %s", strings.Join(errs, "; "))
	}
	return nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
