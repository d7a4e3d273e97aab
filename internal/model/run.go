// Package model holds the run, plan and audit types shared by the maintenance
// engine, its store and the CLI.
package model

import (
	"time"
)

// RunStatus is the lifecycle state of a maintenance run.
type RunStatus string

const (
	RunStatusRunning   RunStatus = "RUNNING"
	RunStatusCompleted RunStatus = "COMPLETED"
	RunStatusPartial   RunStatus = "PARTIAL"
	RunStatusFailed    RunStatus = "FAILED"
)

// IsTerminal reports whether the status is final.
func (s RunStatus) IsTerminal() bool {
	return s == RunStatusCompleted || s == RunStatusPartial || s == RunStatusFailed
}

// Phase identifies one maintenance phase.
type Phase string

const (
	PhaseDedupCompanies      Phase = "deduplicate_companies"
	PhaseDedupRounds         Phase = "deduplicate_rounds"
	PhaseRemoveInvalid       Phase = "remove_invalid"
	PhaseNormalizeCountries  Phase = "normalize_countries"
	PhaseNormalizeStages     Phase = "normalize_stages"
	PhaseNormalizeIndustries Phase = "normalize_industries"
	PhaseRemoveOrphans       Phase = "remove_orphans"
	PhaseFixAberrant         Phase = "fix_aberrant"
)

// AllPhases lists every phase in execution order.
var AllPhases = []Phase{
	PhaseDedupCompanies,
	PhaseDedupRounds,
	PhaseRemoveInvalid,
	PhaseNormalizeCountries,
	PhaseNormalizeStages,
	PhaseNormalizeIndustries,
	PhaseRemoveOrphans,
	PhaseFixAberrant,
}

// ParsePhase validates a phase identifier.
func ParsePhase(s string) (Phase, bool) {
	for _, p := range AllPhases {
		if string(p) == s {
			return p, true
		}
	}
	return "", false
}

// PhaseStatus is the outcome of a single phase.
type PhaseStatus string

const (
	PhaseStatusCompleted  PhaseStatus = "completed"
	PhaseStatusFailed     PhaseStatus = "failed"
	PhaseStatusRolledBack PhaseStatus = "rolled_back"
	PhaseStatusSkipped    PhaseStatus = "skipped"
	PhaseStatusPlanned    PhaseStatus = "planned"
)

// PhaseResult records counters and outcome for one phase.
type PhaseResult struct {
	Phase      Phase       `json:"phase"`
	Status     PhaseStatus `json:"status"`
	Processed  int         `json:"processed"`
	Updated    int         `json:"updated"`
	Failed     int         `json:"failed"`
	Skipped    int         `json:"skipped"`
	Flagged    int         `json:"flagged,omitempty"`
	DurationMs int64       `json:"duration_ms"`
	Error      string      `json:"error,omitempty"`
}

// ErrorKind classifies a run error.
type ErrorKind string

const (
	ErrorKindFetch   ErrorKind = "fetch"
	ErrorKindMerge   ErrorKind = "merge"
	ErrorKindPhase   ErrorKind = "phase"
	ErrorKindTimeout ErrorKind = "timeout"
	ErrorKindRun     ErrorKind = "run"
)

// RunError is one structured error collected during a run.
type RunError struct {
	Phase   Phase     `json:"phase,omitempty"`
	Kind    ErrorKind `json:"kind"`
	Message string    `json:"message"`
}

// Result is what the engine returns to its caller.
type Result struct {
	RunID          string        `json:"run_id,omitempty"`
	Success        bool          `json:"success"`
	Status         RunStatus     `json:"status"`
	DryRun         bool          `json:"dry_run"`
	ItemsProcessed int           `json:"items_processed"`
	ItemsUpdated   int           `json:"items_updated"`
	ItemsFailed    int           `json:"items_failed"`
	ItemsSkipped   int           `json:"items_skipped"`
	DurationMs     int64         `json:"duration_ms"`
	Errors         []RunError    `json:"errors,omitempty"`
	Details        []PhaseResult `json:"details"`
	Plan           *Plan         `json:"plan,omitempty"`
}

// PhaseErrorCount counts errors that are scoped to a phase or the run. Merge
// errors are tallied in ItemsFailed instead.
func (r *Result) PhaseErrorCount() int {
	n := 0
	for _, e := range r.Errors {
		if e.Kind != ErrorKindMerge {
			n++
		}
	}
	return n
}

// MaintenanceRun is the persisted summary of one engine invocation.
type MaintenanceRun struct {
	ID             string        `json:"id"`
	Status         RunStatus     `json:"status"`
	DryRun         bool          `json:"dry_run"`
	SkipPhases     []Phase       `json:"skip_phases,omitempty"`
	Phases         []PhaseResult `json:"phases,omitempty"`
	Errors         []RunError    `json:"errors,omitempty"`
	ItemsProcessed int           `json:"items_processed"`
	ItemsUpdated   int           `json:"items_updated"`
	ItemsFailed    int           `json:"items_failed"`
	ItemsSkipped   int           `json:"items_skipped"`
	StartedAt      time.Time     `json:"started_at"`
	CompletedAt    *time.Time    `json:"completed_at,omitempty"`
	DurationMs     int64         `json:"duration_ms"`
}

// Apply copies the outcome of a result onto the run.
func (m *MaintenanceRun) Apply(r *Result, completedAt time.Time) {
	m.Status = r.Status
	m.Phases = r.Details
	m.Errors = r.Errors
	m.ItemsProcessed = r.ItemsProcessed
	m.ItemsUpdated = r.ItemsUpdated
	m.ItemsFailed = r.ItemsFailed
	m.ItemsSkipped = r.ItemsSkipped
	m.DurationMs = r.DurationMs
	m.CompletedAt = &completedAt
}
