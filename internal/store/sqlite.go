package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/hygiene-cli/internal/company"
)

// sqliteInLimit caps the number of bound ids per IN list.
const sqliteInLimit = 500

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	sqliteReader
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close() //nolint:errcheck
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{sqliteReader: sqliteReader{q: db}, db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS companies (
	id               INTEGER PRIMARY KEY AUTOINCREMENT,
	name             TEXT NOT NULL,
	website          TEXT,
	description      TEXT,
	industry         TEXT,
	headquarters     TEXT,
	country          TEXT,
	linkedin_url     TEXT,
	founded_year     INTEGER,
	employee_count   INTEGER,
	total_raised_usd REAL,
	quality_score    REAL,
	founders         TEXT NOT NULL DEFAULT '[]',
	competitors      TEXT NOT NULL DEFAULT '[]',
	notable_clients  TEXT NOT NULL DEFAULT '[]',
	aliases          TEXT NOT NULL DEFAULT '[]',
	created_at       DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at       DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS funding_rounds (
	id                INTEGER PRIMARY KEY AUTOINCREMENT,
	company_id        INTEGER,
	company_name      TEXT,
	stage             TEXT,
	amount            REAL,
	currency          TEXT,
	amount_usd        REAL,
	announced_date    DATE,
	investors         TEXT NOT NULL DEFAULT '[]',
	lead_investor     TEXT,
	sector            TEXT,
	sector_normalized TEXT,
	source            TEXT,
	source_url        TEXT,
	created_at        DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at        DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS company_enrichments (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	company_id INTEGER,
	source     TEXT NOT NULL,
	payload    TEXT NOT NULL DEFAULT '{}',
	fetched_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS merge_log (
	id                 INTEGER PRIMARY KEY AUTOINCREMENT,
	entity             TEXT NOT NULL,
	kept_id            INTEGER NOT NULL,
	merged_from_id     INTEGER NOT NULL,
	merged_from_name   TEXT NOT NULL,
	before_snapshot    TEXT NOT NULL,
	after_snapshot     TEXT NOT NULL,
	fields_transferred TEXT NOT NULL DEFAULT '[]',
	children_moved     TEXT NOT NULL DEFAULT '{}',
	similarity         TEXT NOT NULL,
	justification      TEXT NOT NULL,
	run_id             TEXT,
	created_at         DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS maintenance_runs (
	id              TEXT PRIMARY KEY,
	status          TEXT NOT NULL,
	dry_run         INTEGER NOT NULL DEFAULT 0,
	skip_phases     TEXT NOT NULL DEFAULT '[]',
	phases          TEXT NOT NULL DEFAULT '[]',
	errors          TEXT NOT NULL DEFAULT '[]',
	items_processed INTEGER NOT NULL DEFAULT 0,
	items_updated   INTEGER NOT NULL DEFAULT 0,
	items_failed    INTEGER NOT NULL DEFAULT 0,
	items_skipped   INTEGER NOT NULL DEFAULT 0,
	started_at      DATETIME NOT NULL,
	completed_at    DATETIME,
	duration_ms     INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS maintenance_lock (
	name        TEXT PRIMARY KEY,
	holder      TEXT NOT NULL,
	acquired_at INTEGER NOT NULL,
	expires_at  INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_funding_rounds_company_id ON funding_rounds(company_id);
CREATE INDEX IF NOT EXISTS idx_company_enrichments_company_id ON company_enrichments(company_id);
CREATE INDEX IF NOT EXISTS idx_merge_log_run_id ON merge_log(run_id);
CREATE INDEX IF NOT EXISTS idx_merge_log_kept_id ON merge_log(kept_id);
CREATE INDEX IF NOT EXISTS idx_maintenance_runs_started_at ON maintenance_runs(started_at);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// DB exposes the handle for seeding fixtures.
func (s *SQLiteStore) DB() *sql.DB {
	return s.db
}

// InTx runs fn inside one database/sql transaction.
func (s *SQLiteStore) InTx(ctx context.Context, fn func(tx Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin")
	}
	defer tx.Rollback() //nolint:errcheck

	if err := fn(&sqliteTx{sqliteReader: sqliteReader{q: tx}, tx: tx}); err != nil {
		return err
	}
	return eris.Wrap(tx.Commit(), "sqlite: commit")
}

// sqlQuerier is the statement surface shared by *sql.DB and *sql.Tx.
type sqlQuerier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// sqliteReader implements Reader over a database or a transaction.
type sqliteReader struct {
	q sqlQuerier
}

func (r sqliteReader) PageCompanyNames(ctx context.Context, afterID int64, limit int) ([]company.NameRef, error) {
	rows, err := r.q.QueryContext(ctx,
		`SELECT id, name FROM companies WHERE id > ? ORDER BY id LIMIT ?`, afterID, limit)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: page company names")
	}
	defer rows.Close() //nolint:errcheck

	var out []company.NameRef
	for rows.Next() {
		var n company.NameRef
		if err := rows.Scan(&n.ID, &n.Name); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan company name")
		}
		out = append(out, n)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: iterate company names")
}

func (r sqliteReader) PageCompanies(ctx context.Context, afterID int64, limit int) ([]company.Company, error) {
	rows, err := r.q.QueryContext(ctx, companySelect+` WHERE c.id > ? ORDER BY c.id LIMIT ?`, afterID, limit)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: page companies")
	}
	return collectSQLiteCompanies(rows)
}

func (r sqliteReader) GetCompanies(ctx context.Context, ids []int64) ([]company.Company, error) {
	var out []company.Company
	for _, batch := range chunk(ids, sqliteInLimit) {
		in, args := inList(batch)
		rows, err := r.q.QueryContext(ctx, companySelect+` WHERE c.id IN (`+in+`) ORDER BY c.id`, args...)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: get companies")
		}
		cs, err := collectSQLiteCompanies(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, cs...)
	}
	return out, nil
}

func (r sqliteReader) GetCompany(ctx context.Context, id int64) (*company.Company, error) {
	c, err := scanCompany(r.q.QueryRowContext(ctx, companySelect+` WHERE c.id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "company %d", id)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get company %d", id)
	}
	return c, nil
}

func (r sqliteReader) PageRounds(ctx context.Context, afterID int64, limit int) ([]company.FundingRound, error) {
	rows, err := r.q.QueryContext(ctx, roundSelect+` WHERE r.id > ? ORDER BY r.id LIMIT ?`, afterID, limit)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: page rounds")
	}
	return collectSQLiteRounds(rows)
}

func (r sqliteReader) GetRounds(ctx context.Context, ids []int64) ([]company.FundingRound, error) {
	var out []company.FundingRound
	for _, batch := range chunk(ids, sqliteInLimit) {
		in, args := inList(batch)
		rows, err := r.q.QueryContext(ctx, roundSelect+` WHERE r.id IN (`+in+`) ORDER BY r.id`, args...)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: get rounds")
		}
		rs, err := collectSQLiteRounds(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rs...)
	}
	return out, nil
}

func (r sqliteReader) GetRound(ctx context.Context, id int64) (*company.FundingRound, error) {
	fr, err := scanRound(r.q.QueryRowContext(ctx, roundSelect+` WHERE r.id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "round %d", id)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get round %d", id)
	}
	return fr, nil
}

func (r sqliteReader) PageChildRefs(ctx context.Context, ref ChildRef, afterID int64, limit int) ([]int64, error) {
	if err := checkChildRef(ref); err != nil {
		return nil, err
	}
	q := fmt.Sprintf(
		`SELECT DISTINCT %[2]s FROM %[1]s WHERE %[2]s IS NOT NULL AND %[2]s > ? ORDER BY %[2]s LIMIT ?`,
		ref.Table, ref.Column)
	rows, err := r.q.QueryContext(ctx, q, afterID, limit)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: page %s.%s", ref.Table, ref.Column)
	}
	return collectSQLiteIDs(rows)
}

func (r sqliteReader) ExistingCompanyIDs(ctx context.Context, ids []int64) (map[int64]bool, error) {
	out := make(map[int64]bool, len(ids))
	for _, batch := range chunk(ids, sqliteInLimit) {
		in, args := inList(batch)
		rows, err := r.q.QueryContext(ctx, `SELECT id FROM companies WHERE id IN (`+in+`)`, args...)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: existing company ids")
		}
		found, err := collectSQLiteIDs(rows)
		if err != nil {
			return nil, err
		}
		for _, id := range found {
			out[id] = true
		}
	}
	return out, nil
}

func (r sqliteReader) CountByRef(ctx context.Context, ref ChildRef, parentIDs []int64) (map[int64]int, error) {
	if err := checkChildRef(ref); err != nil {
		return nil, err
	}
	out := make(map[int64]int, len(parentIDs))
	for _, batch := range chunk(parentIDs, sqliteInLimit) {
		in, args := inList(batch)
		rows, err := r.q.QueryContext(ctx,
			fmt.Sprintf(`SELECT %[2]s, COUNT(*) FROM %[1]s WHERE %[2]s IN (%[3]s) GROUP BY %[2]s`, ref.Table, ref.Column, in),
			args...)
		if err != nil {
			return nil, eris.Wrapf(err, "sqlite: count %s.%s", ref.Table, ref.Column)
		}
		for rows.Next() {
			var id int64
			var n int
			if err := rows.Scan(&id, &n); err != nil {
				rows.Close() //nolint:errcheck
				return nil, eris.Wrap(err, "sqlite: scan ref count")
			}
			out[id] = n
		}
		err = rows.Err()
		rows.Close() //nolint:errcheck
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: iterate ref counts")
		}
	}
	return out, nil
}

func (r sqliteReader) CountCompanies(ctx context.Context) (int, error) {
	var n int
	err := r.q.QueryRowContext(ctx, `SELECT COUNT(*) FROM companies`).Scan(&n)
	return n, eris.Wrap(err, "sqlite: count companies")
}

func (r sqliteReader) CountRounds(ctx context.Context) (int, error) {
	var n int
	err := r.q.QueryRowContext(ctx, `SELECT COUNT(*) FROM funding_rounds`).Scan(&n)
	return n, eris.Wrap(err, "sqlite: count rounds")
}

func collectSQLiteCompanies(rows *sql.Rows) ([]company.Company, error) {
	defer rows.Close() //nolint:errcheck
	var out []company.Company
	for rows.Next() {
		c, err := scanCompany(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan company")
		}
		out = append(out, *c)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: iterate companies")
}

func collectSQLiteRounds(rows *sql.Rows) ([]company.FundingRound, error) {
	defer rows.Close() //nolint:errcheck
	var out []company.FundingRound
	for rows.Next() {
		fr, err := scanRound(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan round")
		}
		out = append(out, *fr)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: iterate rounds")
}

func collectSQLiteIDs(rows *sql.Rows) ([]int64, error) {
	defer rows.Close() //nolint:errcheck
	var out []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan id")
		}
		out = append(out, id)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: iterate ids")
}

// inList renders "?, ?, ..." for ids with matching bind args.
func inList(ids []int64) (string, []any) {
	marks := make([]string, len(ids))
	args := make([]any, len(ids))
	for i, id := range ids {
		marks[i] = "?"
		args[i] = id
	}
	return strings.Join(marks, ", "), args
}

func checkRowsAffected(res sql.Result, entity string, id any) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "sqlite: rows affected")
	}
	if n == 0 {
		return eris.Wrapf(ErrNotFound, "%s %v", entity, id)
	}
	return nil
}
