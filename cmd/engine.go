package main

import (
	"time"

	"go.uber.org/zap"

	"github.com/sells-group/hygiene-cli/internal/config"
	"github.com/sells-group/hygiene-cli/internal/maintenance"
	"github.com/sells-group/hygiene-cli/internal/monitoring"
	"github.com/sells-group/hygiene-cli/internal/resilience"
	"github.com/sells-group/hygiene-cli/internal/resolve"
	"github.com/sells-group/hygiene-cli/internal/store"
	"github.com/sells-group/hygiene-cli/internal/taxonomy"
)

// engineConfig maps the loaded configuration onto the engine's settings.
func engineConfig(c *config.Config) maintenance.Config {
	return maintenance.Config{
		BatchSize:          c.Maintenance.BatchSize,
		CorrectiveTimeout:  time.Duration(c.Maintenance.CorrectiveTimeoutSecs) * time.Second,
		FailureThreshold:   c.Maintenance.FailureThreshold,
		LockTTL:            time.Duration(c.Maintenance.LockTTLSecs) * time.Second,
		PersistRuns:        c.Maintenance.PersistRuns,
		MaxMergesPerSecond: c.Dedup.MaxMergesPerSecond,
		BlockKey:           c.Dedup.BlockKey,
		BlockPrefixLen:     c.Dedup.BlockPrefixLen,
		Thresholds: resolve.Thresholds{
			High:     c.Dedup.HighThreshold,
			Moderate: c.Dedup.ModerateThreshold,
		},
		Weights: scorerWeights(c),
		Retry:   retryConfig(c),
	}
}

func scorerWeights(c *config.Config) resolve.Weights {
	return resolve.Weights{
		Edit:        c.Dedup.EditWeight,
		Phonetic:    c.Dedup.PhoneticWeight,
		PrefixScale: c.Dedup.JaroPrefixScale,
	}
}

func retryConfig(c *config.Config) resilience.RetryConfig {
	return resilience.FromConfig(c.Retry.MaxAttempts, c.Retry.InitialBackoffMs, c.Retry.MaxBackoffMs)
}

func newEngine(st store.Store) (*maintenance.Engine, error) {
	tax, err := taxonomy.Load(cfg.Taxonomy.File)
	if err != nil {
		return nil, err
	}
	return maintenance.New(st, tax, engineConfig(cfg), zap.L()), nil
}

func newAlerter() *monitoring.Alerter {
	return monitoring.NewAlerter(cfg.Monitoring, retryConfig(cfg), zap.L())
}
