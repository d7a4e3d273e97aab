package monitoring

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/sells-group/hygiene-cli/internal/config"
)

// Checker runs periodic alert checks in the background.
type Checker struct {
	collector *Collector
	alerter   *Alerter
	cfg       config.MonitoringConfig
	log       *zap.Logger
}

// NewChecker creates a background alert checker.
func NewChecker(collector *Collector, alerter *Alerter, cfg config.MonitoringConfig, logger *zap.Logger) *Checker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Checker{
		collector: collector,
		alerter:   alerter,
		cfg:       cfg,
		log:       logger.With(zap.String("component", "monitoring.checker")),
	}
}

// Run checks once immediately and then on every interval. It blocks until
// ctx is cancelled.
func (c *Checker) Run(ctx context.Context) {
	interval := time.Duration(c.cfg.CheckIntervalSecs) * time.Second
	if interval <= 0 {
		interval = 5 * time.Minute
	}

	c.log.Info("starting alert checker",
		zap.Duration("interval", interval),
		zap.Int("lookback_hours", c.cfg.LookbackWindowHours),
	)
	if ctx.Err() != nil {
		return
	}
	c.check(ctx)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			c.log.Info("alert checker stopped")
			return
		case <-ticker.C:
			c.check(ctx)
		}
	}
}

// Check collects one snapshot and sends the alerts it triggers.
func (c *Checker) Check(ctx context.Context) ([]Alert, int, error) {
	snap, err := c.collector.Collect(ctx, c.cfg.LookbackWindowHours)
	if err != nil {
		return nil, 0, err
	}

	alerts := c.alerter.Evaluate(snap)
	if len(alerts) == 0 {
		return nil, 0, nil
	}
	return alerts, c.alerter.SendAlerts(ctx, alerts), nil
}

func (c *Checker) check(ctx context.Context) {
	alerts, sent, err := c.Check(ctx)
	if err != nil {
		c.log.Error("monitoring: failed to collect metrics", zap.Error(err))
		return
	}
	if len(alerts) == 0 {
		c.log.Debug("monitoring: no alerts triggered")
		return
	}
	c.log.Info("monitoring: alert check complete",
		zap.Int("alerts_triggered", len(alerts)),
		zap.Int("alerts_sent", sent),
	)
}
