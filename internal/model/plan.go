package model

import (
	"time"
)

// EntityKind names the table a merge or fix targets.
type EntityKind string

const (
	EntityCompany      EntityKind = "company"
	EntityFundingRound EntityKind = "funding_round"
)

// Similarity is the breakdown of a name comparison.
type Similarity struct {
	Combined        float64 `json:"combined"`
	Levenshtein     float64 `json:"levenshtein"`
	JaroWinkler     float64 `json:"jaro_winkler"`
	Phonetic        float64 `json:"phonetic"`
	NormalizedMatch bool    `json:"normalized_match"`
}

// PlannedMerge describes a merge before it is executed.
type PlannedMerge struct {
	Entity            EntityKind       `json:"entity"`
	KeepID            int64            `json:"keep_id"`
	KeepName          string           `json:"keep_name"`
	MergeID           int64            `json:"merge_id"`
	MergeName         string           `json:"merge_name"`
	Score             Similarity       `json:"score"`
	FieldsTransferred []string         `json:"fields_transferred,omitempty"`
	ChildrenMoved     map[string]int64 `json:"children_moved,omitempty"`
	Signals           []string         `json:"signals,omitempty"`
	Justification     string           `json:"justification"`
}

// PlannedDeletion is a row the run would delete outright. When Column is
// set, the deletion covers every row of Table whose Column equals ID.
type PlannedDeletion struct {
	Phase  Phase  `json:"phase"`
	Table  string `json:"table"`
	Column string `json:"column,omitempty"`
	ID     int64  `json:"id"`
	Reason string `json:"reason"`
}

// PlannedNormalization is a categorical value rewrite.
type PlannedNormalization struct {
	Phase  Phase  `json:"phase"`
	Table  string `json:"table"`
	Column string `json:"column"`
	ID     int64  `json:"id"`
	From   string `json:"from"`
	To     string `json:"to"`
}

// UnmappedValue is a categorical value with no canonical mapping. It is left
// untouched and surfaced for manual review.
type UnmappedValue struct {
	Phase  Phase  `json:"phase"`
	Table  string `json:"table"`
	Column string `json:"column"`
	ID     int64  `json:"id"`
	Value  string `json:"value"`
}

// PlannedFix nulls out an aberrant value.
type PlannedFix struct {
	Table  string `json:"table"`
	Column string `json:"column"`
	ID     int64  `json:"id"`
	Value  string `json:"value"`
	Reason string `json:"reason"`
}

// Plan is the change set a dry run produces.
type Plan struct {
	Merges         []PlannedMerge         `json:"merges"`
	Deletions      []PlannedDeletion      `json:"deletions"`
	Normalizations []PlannedNormalization `json:"normalizations"`
	Unmapped       []UnmappedValue        `json:"unmapped,omitempty"`
	Fixes          []PlannedFix           `json:"fixes"`
	EstimatedMs    int64                  `json:"estimated_ms"`
	GeneratedAt    time.Time              `json:"generated_at"`
}

// Per-action weights for the duration estimate.
const (
	estimateMergeMs         = 250
	estimateDeletionMs      = 20
	estimateNormalizationMs = 5
	estimateFixMs           = 5
)

// Estimate sets EstimatedMs from the planned action counts.
func (p *Plan) Estimate() {
	p.EstimatedMs = int64(len(p.Merges)*estimateMergeMs +
		len(p.Deletions)*estimateDeletionMs +
		len(p.Normalizations)*estimateNormalizationMs +
		len(p.Fixes)*estimateFixMs)
}

// ActionCount is the number of mutations the plan describes.
func (p *Plan) ActionCount() int {
	return len(p.Merges) + len(p.Deletions) + len(p.Normalizations) + len(p.Fixes)
}
