package monitoring

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/sells-group/hygiene-cli/internal/config"
	"github.com/sells-group/hygiene-cli/internal/model"
	"github.com/sells-group/hygiene-cli/internal/resilience"
)

func fastRetry() resilience.RetryConfig {
	return resilience.RetryConfig{
		MaxAttempts:    3,
		InitialBackoff: time.Millisecond,
		MaxBackoff:     2 * time.Millisecond,
	}
}

func newTestAlerter(cfg config.MonitoringConfig) *Alerter {
	return NewAlerter(cfg, fastRetry(), zap.NewNop())
}

func recentSuccess() *time.Time {
	t := testNow.Add(-time.Hour)
	return &t
}

func TestAlerter_Evaluate_NoAlerts(t *testing.T) {
	a := newTestAlerter(config.MonitoringConfig{FailureRateThreshold: 0.25, StaleAfterHours: 48})

	snap := &MetricsSnapshot{
		RunsTotal:     10,
		RunsCompleted: 9,
		RunsFailed:    1,
		FailureRate:   0.1,
		LastSuccessAt: recentSuccess(),
		CollectedAt:   testNow,
		LookbackHours: 24,
	}
	assert.Empty(t, a.Evaluate(snap))
}

func TestAlerter_Evaluate_FailureRate(t *testing.T) {
	a := newTestAlerter(config.MonitoringConfig{FailureRateThreshold: 0.25})

	snap := &MetricsSnapshot{
		RunsTotal:     5,
		RunsCompleted: 3,
		RunsFailed:    2,
		FailureRate:   0.4,
		LastSuccessAt: recentSuccess(),
		CollectedAt:   testNow,
		LookbackHours: 24,
	}

	alerts := a.Evaluate(snap)
	require.Len(t, alerts, 1)
	assert.Equal(t, AlertFailureRate, alerts[0].Type)
	assert.Equal(t, "high", alerts[0].Severity)
	assert.Contains(t, alerts[0].Message, "40.0%")
}

func TestAlerter_Evaluate_MinimumRunsRequired(t *testing.T) {
	a := newTestAlerter(config.MonitoringConfig{FailureRateThreshold: 0.25})

	// Two finished runs are too few to judge a rate.
	snap := &MetricsSnapshot{
		RunsTotal:     2,
		RunsCompleted: 1,
		RunsFailed:    1,
		FailureRate:   0.5,
		CollectedAt:   testNow,
	}
	assert.Empty(t, a.Evaluate(snap))
}

func TestAlerter_Evaluate_Stale(t *testing.T) {
	a := newTestAlerter(config.MonitoringConfig{FailureRateThreshold: 1, StaleAfterHours: 48})

	old := testNow.Add(-72 * time.Hour)
	alerts := a.Evaluate(&MetricsSnapshot{LastSuccessAt: &old, CollectedAt: testNow})
	require.Len(t, alerts, 1)
	assert.Equal(t, AlertNoRecentSuccess, alerts[0].Type)
	assert.Contains(t, alerts[0].Message, old.Format(time.RFC3339))

	alerts = a.Evaluate(&MetricsSnapshot{CollectedAt: testNow})
	require.Len(t, alerts, 1)
	assert.Contains(t, alerts[0].Message, "never")
}

func TestAlerter_Evaluate_StaleDisabled(t *testing.T) {
	a := newTestAlerter(config.MonitoringConfig{FailureRateThreshold: 1})
	assert.Empty(t, a.Evaluate(&MetricsSnapshot{CollectedAt: testNow}))
}

func TestAlerter_EvaluateRun(t *testing.T) {
	a := newTestAlerter(config.MonitoringConfig{})

	tests := []struct {
		name     string
		status   model.RunStatus
		wantType AlertType
		severity string
	}{
		{"completed", model.RunStatusCompleted, "", ""},
		{"partial", model.RunStatusPartial, AlertRunPartial, "medium"},
		{"failed", model.RunStatusFailed, AlertRunFailed, "high"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := &model.Result{RunID: "run-1", Status: tt.status, ItemsFailed: 2}
			alerts := a.EvaluateRun(res)
			if tt.wantType == "" {
				assert.Empty(t, alerts)
				return
			}
			require.Len(t, alerts, 1)
			assert.Equal(t, tt.wantType, alerts[0].Type)
			assert.Equal(t, tt.severity, alerts[0].Severity)
			assert.Equal(t, "run-1", alerts[0].RunID)
			assert.Contains(t, alerts[0].Message, string(tt.status))
		})
	}
	assert.Nil(t, a.EvaluateRun(nil))
}

func TestAlerter_EvaluateRun_CapsErrors(t *testing.T) {
	a := newTestAlerter(config.MonitoringConfig{})
	res := &model.Result{Status: model.RunStatusFailed}
	for range 8 {
		res.Errors = append(res.Errors, model.RunError{Kind: model.ErrorKindPhase, Message: "boom"})
	}

	alerts := a.EvaluateRun(res)
	require.Len(t, alerts, 1)
	assert.Len(t, alerts[0].Details["errors"], maxErrorsInAlert)
	assert.Contains(t, alerts[0].Message, "8 error(s)")
}

func TestAlerter_SendAlerts_Webhook(t *testing.T) {
	var received atomic.Int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		var alert Alert
		err := json.NewDecoder(r.Body).Decode(&alert)
		require.NoError(t, err)
		assert.NotEmpty(t, alert.Type)
		received.Add(1)
		w.WriteHeader(http.StatusOK)
	}))
	defer ts.Close()

	a := newTestAlerter(config.MonitoringConfig{WebhookURL: ts.URL})
	alerts := []Alert{
		{Type: AlertFailureRate, Severity: "high", Message: "test alert 1"},
		{Type: AlertRunFailed, Severity: "high", Message: "test alert 2"},
	}

	sent := a.SendAlerts(context.Background(), alerts)
	assert.Equal(t, 2, sent)
	assert.Equal(t, int32(2), received.Load())
}

func TestAlerter_SendAlerts_EmptyURL(t *testing.T) {
	a := newTestAlerter(config.MonitoringConfig{})
	sent := a.SendAlerts(context.Background(), []Alert{{Type: AlertRunFailed, Message: "test"}})
	assert.Equal(t, 0, sent)
}

func TestAlerter_SendAlerts_EmptyAlerts(t *testing.T) {
	a := newTestAlerter(config.MonitoringConfig{WebhookURL: "http://example.com"})
	assert.Equal(t, 0, a.SendAlerts(context.Background(), nil))
}

func TestAlerter_SendAlerts_RetriesServerError(t *testing.T) {
	var calls atomic.Int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer ts.Close()

	a := newTestAlerter(config.MonitoringConfig{WebhookURL: ts.URL})
	sent := a.SendAlerts(context.Background(), []Alert{{Type: AlertRunFailed, Message: "test"}})
	assert.Equal(t, 1, sent)
	assert.Equal(t, int32(2), calls.Load())
}

func TestAlerter_SendAlerts_ClientErrorNotRetried(t *testing.T) {
	var calls atomic.Int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer ts.Close()

	a := newTestAlerter(config.MonitoringConfig{WebhookURL: ts.URL})
	sent := a.SendAlerts(context.Background(), []Alert{{Type: AlertRunFailed, Message: "test"}})
	assert.Equal(t, 0, sent)
	assert.Equal(t, int32(1), calls.Load())
}

func TestAlerter_NotifyRun(t *testing.T) {
	var got Alert
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusNoContent)
	}))
	defer ts.Close()

	a := newTestAlerter(config.MonitoringConfig{WebhookURL: ts.URL})
	assert.Equal(t, 0, a.NotifyRun(context.Background(), &model.Result{Status: model.RunStatusCompleted}))
	assert.Equal(t, 1, a.NotifyRun(context.Background(), &model.Result{RunID: "r-9", Status: model.RunStatusPartial}))
	assert.Equal(t, AlertRunPartial, got.Type)
	assert.Equal(t, "r-9", got.RunID)
}
