package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestParsePhase(t *testing.T) {
	for _, p := range AllPhases {
		got, ok := ParsePhase(string(p))
		assert.True(t, ok, p)
		assert.Equal(t, p, got)
	}

	_, ok := ParsePhase("deduplicate_everything")
	assert.False(t, ok)
}

func TestRunStatus_IsTerminal(t *testing.T) {
	assert.False(t, RunStatusRunning.IsTerminal())
	assert.True(t, RunStatusCompleted.IsTerminal())
	assert.True(t, RunStatusPartial.IsTerminal())
	assert.True(t, RunStatusFailed.IsTerminal())
}

func TestResult_PhaseErrorCount_IgnoresMergeErrors(t *testing.T) {
	r := &Result{Errors: []RunError{
		{Phase: PhaseDedupCompanies, Kind: ErrorKindMerge, Message: "keep 1 missing"},
		{Phase: PhaseRemoveOrphans, Kind: ErrorKindPhase, Message: "boom"},
		{Phase: PhaseFixAberrant, Kind: ErrorKindTimeout, Message: "deadline"},
	}}
	assert.Equal(t, 2, r.PhaseErrorCount())
}

func TestPlan_Estimate(t *testing.T) {
	p := &Plan{
		Merges:         make([]PlannedMerge, 2),
		Deletions:      make([]PlannedDeletion, 5),
		Normalizations: make([]PlannedNormalization, 10),
		Fixes:          make([]PlannedFix, 4),
	}
	p.Estimate()

	assert.Equal(t, int64(2*250+5*20+10*5+4*5), p.EstimatedMs)
	assert.Equal(t, 21, p.ActionCount())
}

func TestMaintenanceRun_Apply(t *testing.T) {
	run := &MaintenanceRun{ID: "r1", Status: RunStatusRunning}
	res := &Result{
		Status:         RunStatusPartial,
		ItemsProcessed: 10,
		ItemsUpdated:   4,
		ItemsFailed:    1,
		DurationMs:     1234,
		Errors:         []RunError{{Kind: ErrorKindPhase, Message: "x"}},
		Details:        []PhaseResult{{Phase: PhaseFixAberrant, Status: PhaseStatusFailed}},
	}
	done := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	run.Apply(res, done)

	assert.Equal(t, RunStatusPartial, run.Status)
	assert.Equal(t, 10, run.ItemsProcessed)
	assert.Equal(t, 4, run.ItemsUpdated)
	assert.Equal(t, 1, run.ItemsFailed)
	assert.Equal(t, int64(1234), run.DurationMs)
	assert.Len(t, run.Errors, 1)
	assert.Len(t, run.Phases, 1)
	assert.Equal(t, done, *run.CompletedAt)
}
