// Package monitoring summarizes maintenance run history and raises webhook
// alerts when runs degrade.
package monitoring

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/hygiene-cli/internal/model"
	"github.com/sells-group/hygiene-cli/internal/store"
)

// MetricsSnapshot holds a point-in-time view of maintenance health.
type MetricsSnapshot struct {
	// Runs started within the lookback window.
	RunsTotal     int     `json:"runs_total"`
	RunsCompleted int     `json:"runs_completed"`
	RunsPartial   int     `json:"runs_partial"`
	RunsFailed    int     `json:"runs_failed"`
	RunsRunning   int     `json:"runs_running"`
	FailureRate   float64 `json:"failure_rate"`

	ItemsUpdated int   `json:"items_updated"`
	ItemsFailed  int   `json:"items_failed"`
	AvgDuration  int64 `json:"avg_duration_ms"`

	// LastSuccessAt is the completion time of the newest non-failed mutating
	// run ever recorded, regardless of the window.
	LastSuccessAt *time.Time `json:"last_success_at,omitempty"`

	// Metadata.
	LookbackHours int       `json:"lookback_hours"`
	CollectedAt   time.Time `json:"collected_at"`
}

// RunLister is the slice of the store the collector reads.
type RunLister interface {
	ListRuns(ctx context.Context, filter store.RunFilter) ([]model.MaintenanceRun, error)
}

// Collector gathers run metrics from the store.
type Collector struct {
	runs RunLister
	now  func() time.Time
}

// NewCollector creates a new metrics collector.
func NewCollector(runs RunLister) *Collector {
	return &Collector{runs: runs, now: time.Now}
}

// Collect gathers a snapshot of run metrics over the given lookback window.
// Dry runs are excluded.
func (c *Collector) Collect(ctx context.Context, lookbackHours int) (*MetricsSnapshot, error) {
	now := c.now().UTC()
	snap := &MetricsSnapshot{
		LookbackHours: lookbackHours,
		CollectedAt:   now,
	}
	cutoff := now.Add(-time.Duration(lookbackHours) * time.Hour)

	runs, err := c.runs.ListRuns(ctx, store.RunFilter{Since: cutoff, Limit: 10000})
	if err != nil {
		return nil, eris.Wrap(err, "monitoring: list runs")
	}

	var totalDuration int64
	var finished int
	for _, r := range runs {
		if r.DryRun {
			continue
		}
		snap.RunsTotal++
		switch r.Status {
		case model.RunStatusCompleted:
			snap.RunsCompleted++
		case model.RunStatusPartial:
			snap.RunsPartial++
		case model.RunStatusFailed:
			snap.RunsFailed++
		case model.RunStatusRunning:
			snap.RunsRunning++
		}
		if r.Status.IsTerminal() {
			finished++
			totalDuration += r.DurationMs
		}
		snap.ItemsUpdated += r.ItemsUpdated
		snap.ItemsFailed += r.ItemsFailed
	}
	if finished > 0 {
		snap.FailureRate = float64(snap.RunsFailed) / float64(finished)
		snap.AvgDuration = totalDuration / int64(finished)
	}

	last, err := c.lastSuccess(ctx)
	if err != nil {
		return nil, err
	}
	snap.LastSuccessAt = last

	return snap, nil
}

// lastSuccess scans completed and partial runs for the newest finish time.
func (c *Collector) lastSuccess(ctx context.Context) (*time.Time, error) {
	var newest *time.Time
	for _, status := range []model.RunStatus{model.RunStatusCompleted, model.RunStatusPartial} {
		runs, err := c.runs.ListRuns(ctx, store.RunFilter{Status: status, Limit: 50})
		if err != nil {
			return nil, eris.Wrapf(err, "monitoring: list %s runs", status)
		}
		for _, r := range runs {
			if r.DryRun || r.CompletedAt == nil {
				continue
			}
			if newest == nil || r.CompletedAt.After(*newest) {
				t := *r.CompletedAt
				newest = &t
			}
		}
	}
	return newest, nil
}
