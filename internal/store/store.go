package store

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/hygiene-cli/internal/company"
	"github.com/sells-group/hygiene-cli/internal/model"
)

var (
	// ErrNotFound is returned when a keyed row does not exist.
	ErrNotFound = eris.New("store: not found")
	// ErrLocked is returned when another holder owns a live lease.
	ErrLocked = eris.New("store: lock held by another run")
)

// Table names.
const (
	TableCompanies   = "companies"
	TableRounds      = "funding_rounds"
	TableEnrichments = "company_enrichments"
)

// ChildRef is a foreign key column pointing at companies.id.
type ChildRef struct {
	Table  string
	Column string
}

// ChildRefs lists every column that references a company.
var ChildRefs = []ChildRef{
	{Table: TableRounds, Column: "company_id"},
	{Table: TableEnrichments, Column: "company_id"},
}

// writableColumns whitelists the table/column pairs accepted by the generic
// column writers, since their names are interpolated into SQL.
var writableColumns = map[string]map[string]bool{
	TableCompanies: {
		"country": true, "industry": true, "founded_year": true,
		"employee_count": true, "total_raised_usd": true, "quality_score": true,
	},
	TableRounds: {
		"stage": true, "sector_normalized": true, "amount": true,
		"amount_usd": true, "announced_date": true,
	},
}

func checkColumn(table, column string) error {
	if !writableColumns[table][column] {
		return eris.Errorf("store: column %s.%s is not writable", table, column)
	}
	return nil
}

func checkChildRef(ref ChildRef) error {
	for _, r := range ChildRefs {
		if r == ref {
			return nil
		}
	}
	return eris.Errorf("store: unknown child reference %s.%s", ref.Table, ref.Column)
}

// FieldUpdate sets one text column of one row.
type FieldUpdate struct {
	ID    int64
	Value string
}

// RunFilter specifies criteria for listing maintenance runs.
type RunFilter struct {
	Status model.RunStatus `json:"status,omitempty"`
	Since  time.Time       `json:"since,omitempty"`
	Limit  int             `json:"limit,omitempty"`
	Offset int             `json:"offset,omitempty"`
}

// MergeLogFilter specifies criteria for listing merge log entries.
type MergeLogFilter struct {
	RunID  string           `json:"run_id,omitempty"`
	KeptID int64            `json:"kept_id,omitempty"`
	Entity model.EntityKind `json:"entity,omitempty"`
	Limit  int              `json:"limit,omitempty"`
}

// Reader is the read surface shared by the store and its transactions.
// Page methods use keyset pagination: rows with id > afterID, ascending.
type Reader interface {
	PageCompanyNames(ctx context.Context, afterID int64, limit int) ([]company.NameRef, error)
	PageCompanies(ctx context.Context, afterID int64, limit int) ([]company.Company, error)
	GetCompanies(ctx context.Context, ids []int64) ([]company.Company, error)
	GetCompany(ctx context.Context, id int64) (*company.Company, error)
	PageRounds(ctx context.Context, afterID int64, limit int) ([]company.FundingRound, error)
	GetRound(ctx context.Context, id int64) (*company.FundingRound, error)
	GetRounds(ctx context.Context, ids []int64) ([]company.FundingRound, error)
	// PageChildRefs returns distinct non-null parent ids referenced by ref.
	PageChildRefs(ctx context.Context, ref ChildRef, afterID int64, limit int) ([]int64, error)
	ExistingCompanyIDs(ctx context.Context, ids []int64) (map[int64]bool, error)
	// CountByRef returns how many ref rows point at each of parentIDs.
	// Parents with no rows are absent from the map.
	CountByRef(ctx context.Context, ref ChildRef, parentIDs []int64) (map[int64]int, error)
	CountCompanies(ctx context.Context) (int, error)
	CountRounds(ctx context.Context) (int, error)
}

// Tx is a unit of work. Writes become visible only when the enclosing InTx
// callback returns nil.
type Tx interface {
	Reader

	UpdateCompany(ctx context.Context, c *company.Company) error
	UpdateRound(ctx context.Context, r *company.FundingRound) error
	// ReparentChildren moves every ref row from fromID to toID.
	ReparentChildren(ctx context.Context, ref ChildRef, fromID, toID int64) (int64, error)
	// DeleteCompany and DeleteRound return ErrNotFound when no row matched.
	DeleteCompany(ctx context.Context, id int64) error
	DeleteRound(ctx context.Context, id int64) error
	// DeleteByRef deletes ref rows pointing at any of parentIDs.
	DeleteByRef(ctx context.Context, ref ChildRef, parentIDs []int64) (int64, error)
	DeleteRows(ctx context.Context, table string, ids []int64) (int64, error)
	SetValues(ctx context.Context, table, column string, updates []FieldUpdate) (int64, error)
	NullColumn(ctx context.Context, table, column string, ids []int64) (int64, error)
	InsertMergeLog(ctx context.Context, e *model.MergeLogEntry) error
	// SetTimeout bounds every remaining statement of the transaction.
	SetTimeout(ctx context.Context, d time.Duration) error
}

// Store is the persistence interface for the maintenance engine.
type Store interface {
	Reader

	// InTx runs fn in one transaction, committing when fn returns nil.
	InTx(ctx context.Context, fn func(tx Tx) error) error

	// Runs
	CreateRun(ctx context.Context, run *model.MaintenanceRun) error
	FinishRun(ctx context.Context, run *model.MaintenanceRun) error
	GetRun(ctx context.Context, id string) (*model.MaintenanceRun, error)
	ListRuns(ctx context.Context, filter RunFilter) ([]model.MaintenanceRun, error)

	// Audit
	ListMergeLog(ctx context.Context, filter MergeLogFilter) ([]model.MergeLogEntry, error)

	// Single-flight lease
	AcquireLock(ctx context.Context, name, holder string, ttl time.Duration) error
	ReleaseLock(ctx context.Context, name, holder string) error

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}
