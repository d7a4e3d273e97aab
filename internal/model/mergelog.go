package model

import (
	"time"

	"github.com/sells-group/hygiene-cli/internal/company"
)

// Snapshot captures the kept record at one point of a merge. Exactly one of
// the fields is set, matching the entry's entity kind.
type Snapshot struct {
	Company *company.Company      `json:"company,omitempty"`
	Round   *company.FundingRound `json:"round,omitempty"`
}

// MergeLogEntry is the write-once audit record of a committed merge.
type MergeLogEntry struct {
	ID                int64            `json:"id"`
	Entity            EntityKind       `json:"entity"`
	KeptID            int64            `json:"kept_id"`
	MergedFromID      int64            `json:"merged_from_id"`
	MergedFromName    string           `json:"merged_from_name"`
	Before            Snapshot         `json:"before"`
	After             Snapshot         `json:"after"`
	FieldsTransferred []string         `json:"fields_transferred"`
	ChildrenMoved     map[string]int64 `json:"children_moved"`
	Similarity        Similarity       `json:"similarity"`
	Justification     string           `json:"justification"`
	RunID             string           `json:"run_id,omitempty"`
	CreatedAt         time.Time        `json:"created_at"`
}
