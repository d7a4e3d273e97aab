package store

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/hygiene-cli/internal/company"
	"github.com/sells-group/hygiene-cli/internal/db"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pgReader
	pool    db.Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return newPostgresStore(pool, pool.Close), nil
}

func newPostgresStore(pool db.Pool, closeFn func()) *PostgresStore {
	return &PostgresStore{pgReader: pgReader{q: pool}, pool: pool, closeFn: closeFn}
}

// company_id carries no foreign key: orphaned children are a condition the
// maintenance run repairs, not one the schema prevents.
const postgresMigration = `
CREATE TABLE IF NOT EXISTS companies (
	id               BIGSERIAL PRIMARY KEY,
	name             TEXT NOT NULL,
	website          TEXT,
	description      TEXT,
	industry         TEXT,
	headquarters     TEXT,
	country          TEXT,
	linkedin_url     TEXT,
	founded_year     INTEGER,
	employee_count   INTEGER,
	total_raised_usd DOUBLE PRECISION,
	quality_score    DOUBLE PRECISION,
	founders         JSONB NOT NULL DEFAULT '[]',
	competitors      JSONB NOT NULL DEFAULT '[]',
	notable_clients  JSONB NOT NULL DEFAULT '[]',
	aliases          JSONB NOT NULL DEFAULT '[]',
	created_at       TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at       TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS funding_rounds (
	id                BIGSERIAL PRIMARY KEY,
	company_id        BIGINT,
	company_name      TEXT,
	stage             TEXT,
	amount            DOUBLE PRECISION,
	currency          TEXT,
	amount_usd        DOUBLE PRECISION,
	announced_date    DATE,
	investors         JSONB NOT NULL DEFAULT '[]',
	lead_investor     TEXT,
	sector            TEXT,
	sector_normalized TEXT,
	source            TEXT,
	source_url        TEXT,
	created_at        TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at        TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS company_enrichments (
	id         BIGSERIAL PRIMARY KEY,
	company_id BIGINT,
	source     TEXT NOT NULL,
	payload    JSONB NOT NULL DEFAULT '{}',
	fetched_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS merge_log (
	id                 BIGSERIAL PRIMARY KEY,
	entity             TEXT NOT NULL,
	kept_id            BIGINT NOT NULL,
	merged_from_id     BIGINT NOT NULL,
	merged_from_name   TEXT NOT NULL,
	before_snapshot    JSONB NOT NULL,
	after_snapshot     JSONB NOT NULL,
	fields_transferred JSONB NOT NULL DEFAULT '[]',
	children_moved     JSONB NOT NULL DEFAULT '{}',
	similarity         JSONB NOT NULL,
	justification      TEXT NOT NULL,
	run_id             TEXT,
	created_at         TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS maintenance_runs (
	id              TEXT PRIMARY KEY,
	status          TEXT NOT NULL,
	dry_run         BOOLEAN NOT NULL DEFAULT false,
	skip_phases     JSONB NOT NULL DEFAULT '[]',
	phases          JSONB NOT NULL DEFAULT '[]',
	errors          JSONB NOT NULL DEFAULT '[]',
	items_processed INTEGER NOT NULL DEFAULT 0,
	items_updated   INTEGER NOT NULL DEFAULT 0,
	items_failed    INTEGER NOT NULL DEFAULT 0,
	items_skipped   INTEGER NOT NULL DEFAULT 0,
	started_at      TIMESTAMPTZ NOT NULL,
	completed_at    TIMESTAMPTZ,
	duration_ms     BIGINT NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS maintenance_lock (
	name        TEXT PRIMARY KEY,
	holder      TEXT NOT NULL,
	acquired_at TIMESTAMPTZ NOT NULL,
	expires_at  TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_funding_rounds_company_id ON funding_rounds(company_id);
CREATE INDEX IF NOT EXISTS idx_company_enrichments_company_id ON company_enrichments(company_id);
CREATE INDEX IF NOT EXISTS idx_merge_log_run_id ON merge_log(run_id);
CREATE INDEX IF NOT EXISTS idx_merge_log_kept_id ON merge_log(kept_id);
CREATE INDEX IF NOT EXISTS idx_maintenance_runs_started_at ON maintenance_runs(started_at DESC);
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

// InTx runs fn inside one pgx transaction.
func (s *PostgresStore) InTx(ctx context.Context, fn func(tx Tx) error) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return eris.Wrap(err, "postgres: begin")
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	if err := fn(&pgTx{pgReader: pgReader{q: tx}, tx: tx}); err != nil {
		return err
	}
	return eris.Wrap(tx.Commit(ctx), "postgres: commit")
}

// pgReader implements Reader over a pool or a transaction.
type pgReader struct {
	q db.Querier
}

func (r pgReader) PageCompanyNames(ctx context.Context, afterID int64, limit int) ([]company.NameRef, error) {
	rows, err := r.q.Query(ctx,
		`SELECT id, name FROM companies WHERE id > $1 ORDER BY id LIMIT $2`, afterID, limit)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: page company names")
	}
	defer rows.Close()

	var out []company.NameRef
	for rows.Next() {
		var n company.NameRef
		if err := rows.Scan(&n.ID, &n.Name); err != nil {
			return nil, eris.Wrap(err, "postgres: scan company name")
		}
		out = append(out, n)
	}
	return out, eris.Wrap(rows.Err(), "postgres: iterate company names")
}

func (r pgReader) PageCompanies(ctx context.Context, afterID int64, limit int) ([]company.Company, error) {
	rows, err := r.q.Query(ctx, companySelect+` WHERE c.id > $1 ORDER BY c.id LIMIT $2`, afterID, limit)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: page companies")
	}
	return collectCompanies(rows)
}

func (r pgReader) GetCompanies(ctx context.Context, ids []int64) ([]company.Company, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	rows, err := r.q.Query(ctx, companySelect+` WHERE c.id = ANY($1) ORDER BY c.id`, ids)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: get companies")
	}
	return collectCompanies(rows)
}

func (r pgReader) GetCompany(ctx context.Context, id int64) (*company.Company, error) {
	c, err := scanCompany(r.q.QueryRow(ctx, companySelect+` WHERE c.id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "company %d", id)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get company %d", id)
	}
	return c, nil
}

func (r pgReader) PageRounds(ctx context.Context, afterID int64, limit int) ([]company.FundingRound, error) {
	rows, err := r.q.Query(ctx, roundSelect+` WHERE r.id > $1 ORDER BY r.id LIMIT $2`, afterID, limit)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: page rounds")
	}
	return collectRounds(rows)
}

func (r pgReader) GetRounds(ctx context.Context, ids []int64) ([]company.FundingRound, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	rows, err := r.q.Query(ctx, roundSelect+` WHERE r.id = ANY($1) ORDER BY r.id`, ids)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: get rounds")
	}
	return collectRounds(rows)
}

func (r pgReader) GetRound(ctx context.Context, id int64) (*company.FundingRound, error) {
	fr, err := scanRound(r.q.QueryRow(ctx, roundSelect+` WHERE r.id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "round %d", id)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get round %d", id)
	}
	return fr, nil
}

func (r pgReader) PageChildRefs(ctx context.Context, ref ChildRef, afterID int64, limit int) ([]int64, error) {
	if err := checkChildRef(ref); err != nil {
		return nil, err
	}
	col := pgx.Identifier{ref.Column}.Sanitize()
	rows, err := r.q.Query(ctx,
		`SELECT DISTINCT `+col+` FROM `+pgx.Identifier{ref.Table}.Sanitize()+
			` WHERE `+col+` IS NOT NULL AND `+col+` > $1 ORDER BY `+col+` LIMIT $2`,
		afterID, limit)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: page %s.%s", ref.Table, ref.Column)
	}
	return collectIDs(rows)
}

func (r pgReader) ExistingCompanyIDs(ctx context.Context, ids []int64) (map[int64]bool, error) {
	out := make(map[int64]bool, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	rows, err := r.q.Query(ctx, `SELECT id FROM companies WHERE id = ANY($1)`, ids)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: existing company ids")
	}
	found, err := collectIDs(rows)
	if err != nil {
		return nil, err
	}
	for _, id := range found {
		out[id] = true
	}
	return out, nil
}

func (r pgReader) CountByRef(ctx context.Context, ref ChildRef, parentIDs []int64) (map[int64]int, error) {
	if err := checkChildRef(ref); err != nil {
		return nil, err
	}
	out := make(map[int64]int, len(parentIDs))
	if len(parentIDs) == 0 {
		return out, nil
	}
	col := pgx.Identifier{ref.Column}.Sanitize()
	rows, err := r.q.Query(ctx,
		`SELECT `+col+`, COUNT(*) FROM `+pgx.Identifier{ref.Table}.Sanitize()+
			` WHERE `+col+` = ANY($1) GROUP BY `+col,
		parentIDs)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: count %s.%s", ref.Table, ref.Column)
	}
	defer rows.Close()
	for rows.Next() {
		var id int64
		var n int
		if err := rows.Scan(&id, &n); err != nil {
			return nil, eris.Wrap(err, "postgres: scan ref count")
		}
		out[id] = n
	}
	return out, eris.Wrap(rows.Err(), "postgres: iterate ref counts")
}

func (r pgReader) CountCompanies(ctx context.Context) (int, error) {
	var n int
	err := r.q.QueryRow(ctx, `SELECT COUNT(*) FROM companies`).Scan(&n)
	return n, eris.Wrap(err, "postgres: count companies")
}

func (r pgReader) CountRounds(ctx context.Context) (int, error) {
	var n int
	err := r.q.QueryRow(ctx, `SELECT COUNT(*) FROM funding_rounds`).Scan(&n)
	return n, eris.Wrap(err, "postgres: count rounds")
}

func collectCompanies(rows pgx.Rows) ([]company.Company, error) {
	defer rows.Close()
	var out []company.Company
	for rows.Next() {
		c, err := scanCompany(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan company")
		}
		out = append(out, *c)
	}
	return out, eris.Wrap(rows.Err(), "postgres: iterate companies")
}

func collectRounds(rows pgx.Rows) ([]company.FundingRound, error) {
	defer rows.Close()
	var out []company.FundingRound
	for rows.Next() {
		fr, err := scanRound(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan round")
		}
		out = append(out, *fr)
	}
	return out, eris.Wrap(rows.Err(), "postgres: iterate rounds")
}

func collectIDs(rows pgx.Rows) ([]int64, error) {
	defer rows.Close()
	var out []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, eris.Wrap(err, "postgres: scan id")
		}
		out = append(out, id)
	}
	return out, eris.Wrap(rows.Err(), "postgres: iterate ids")
}

// checkTag maps a zero-row command to ErrNotFound.
func checkTag(tag pgconn.CommandTag, entity string, id int64) error {
	if tag.RowsAffected() == 0 {
		return eris.Wrapf(ErrNotFound, "%s %d", entity, id)
	}
	return nil
}
