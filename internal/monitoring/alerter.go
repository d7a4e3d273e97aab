package monitoring

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/hygiene-cli/internal/config"
	"github.com/sells-group/hygiene-cli/internal/model"
	"github.com/sells-group/hygiene-cli/internal/resilience"
)

// AlertType identifies the kind of alert.
type AlertType string

const (
	AlertRunFailed      AlertType = "run_failed"
	AlertRunPartial     AlertType = "run_partial"
	AlertFailureRate    AlertType = "run_failure_rate"
	AlertNoRecentSuccess AlertType = "no_recent_success"
)

// minRunsForRate is the number of finished runs needed before the failure
// rate is meaningful.
const minRunsForRate = 3

// maxErrorsInAlert caps how many run errors are copied into one alert.
const maxErrorsInAlert = 5

// Alert represents a single alert to be sent.
type Alert struct {
	Type      AlertType      `json:"type"`
	Severity  string         `json:"severity"`
	Message   string         `json:"message"`
	RunID     string         `json:"run_id,omitempty"`
	Details   map[string]any `json:"details,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

// Alerter turns run outcomes and metric snapshots into alerts and posts them
// to a webhook.
type Alerter struct {
	cfg    config.MonitoringConfig
	client *http.Client
	retry  resilience.RetryConfig
	log    *zap.Logger
}

// NewAlerter creates a new Alerter with the given monitoring config.
func NewAlerter(cfg config.MonitoringConfig, retry resilience.RetryConfig, logger *zap.Logger) *Alerter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Alerter{
		cfg:    cfg,
		client: &http.Client{Timeout: 10 * time.Second},
		retry:  retry,
		log:    logger.With(zap.String("component", "monitoring.alerter")),
	}
}

// EvaluateRun returns an alert when a run ended PARTIAL or FAILED.
func (a *Alerter) EvaluateRun(res *model.Result) []Alert {
	if res == nil {
		return nil
	}
	var typ AlertType
	var severity string
	switch res.Status {
	case model.RunStatusFailed:
		typ, severity = AlertRunFailed, "high"
	case model.RunStatusPartial:
		typ, severity = AlertRunPartial, "medium"
	default:
		return nil
	}

	errs := res.Errors
	if len(errs) > maxErrorsInAlert {
		errs = errs[:maxErrorsInAlert]
	}
	mode := "run"
	if res.DryRun {
		mode = "dry run"
	}
	return []Alert{{
		Type:     typ,
		Severity: severity,
		Message: fmt.Sprintf("Maintenance %s %s ended %s with %d error(s), %d item(s) failed",
			mode, res.RunID, res.Status, len(res.Errors), res.ItemsFailed),
		RunID: res.RunID,
		Details: map[string]any{
			"items_processed": res.ItemsProcessed,
			"items_updated":   res.ItemsUpdated,
			"items_failed":    res.ItemsFailed,
			"duration_ms":     res.DurationMs,
			"errors":          errs,
		},
		Timestamp: time.Now().UTC(),
	}}
}

// Evaluate checks the snapshot against thresholds and returns any alerts.
func (a *Alerter) Evaluate(snap *MetricsSnapshot) []Alert {
	var alerts []Alert
	now := time.Now().UTC()

	// Check run failure rate.
	finished := snap.RunsCompleted + snap.RunsPartial + snap.RunsFailed
	if finished >= minRunsForRate && snap.FailureRate > a.cfg.FailureRateThreshold {
		alerts = append(alerts, Alert{
			Type:     AlertFailureRate,
			Severity: "high",
			Message: fmt.Sprintf(
				"Maintenance failure rate %.1f%% exceeds threshold %.1f%% (%d failed / %d finished in last %dh)",
				snap.FailureRate*100, a.cfg.FailureRateThreshold*100,
				snap.RunsFailed, finished, snap.LookbackHours,
			),
			Details: map[string]any{
				"failure_rate": snap.FailureRate,
				"threshold":    a.cfg.FailureRateThreshold,
				"failed":       snap.RunsFailed,
				"finished":     finished,
			},
			Timestamp: now,
		})
	}

	// Check that maintenance still completes.
	if a.cfg.StaleAfterHours > 0 {
		limit := time.Duration(a.cfg.StaleAfterHours) * time.Hour
		if snap.LastSuccessAt == nil || snap.CollectedAt.Sub(*snap.LastSuccessAt) > limit {
			last := "never"
			if snap.LastSuccessAt != nil {
				last = snap.LastSuccessAt.Format(time.RFC3339)
			}
			alerts = append(alerts, Alert{
				Type:      AlertNoRecentSuccess,
				Severity:  "medium",
				Message:   fmt.Sprintf("No successful maintenance run in %dh (last: %s)", a.cfg.StaleAfterHours, last),
				Details:   map[string]any{"stale_after_hours": a.cfg.StaleAfterHours},
				Timestamp: now,
			})
		}
	}

	return alerts
}

// NotifyRun evaluates a finished run and sends any resulting alert.
func (a *Alerter) NotifyRun(ctx context.Context, res *model.Result) int {
	return a.SendAlerts(ctx, a.EvaluateRun(res))
}

// SendAlerts delivers alerts to the configured webhook URL.
// Returns the number of alerts successfully sent.
func (a *Alerter) SendAlerts(ctx context.Context, alerts []Alert) int {
	if a.cfg.WebhookURL == "" || len(alerts) == 0 {
		return 0
	}

	sent := 0
	for _, alert := range alerts {
		cfg := a.retry
		cfg.OnRetry = resilience.RetryLogger(a.log, "send alert "+string(alert.Type))
		if err := resilience.Do(ctx, cfg, func(ctx context.Context) error {
			return a.sendWebhook(ctx, alert)
		}); err != nil {
			a.log.Error("monitoring: failed to send alert",
				zap.String("type", string(alert.Type)),
				zap.Error(err),
			)
			continue
		}
		a.log.Info("monitoring: alert sent",
			zap.String("type", string(alert.Type)),
			zap.String("severity", alert.Severity),
		)
		sent++
	}
	return sent
}

// sendWebhook posts a single alert to the webhook URL. 5xx and 429
// responses come back as transient errors.
func (a *Alerter) sendWebhook(ctx context.Context, alert Alert) error {
	payload, err := json.Marshal(alert)
	if err != nil {
		return eris.Wrap(err, "monitoring: marshal alert")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.cfg.WebhookURL, bytes.NewReader(payload))
	if err != nil {
		return eris.Wrap(err, "monitoring: create webhook request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		return eris.Wrap(err, "monitoring: webhook request")
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode >= 400 {
		err := eris.Errorf("monitoring: webhook returned status %d", resp.StatusCode)
		if resilience.IsTransientHTTPStatus(resp.StatusCode) {
			return resilience.NewTransientError(err, resp.StatusCode)
		}
		return err
	}
	return nil
}
