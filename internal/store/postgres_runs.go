package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"

	"github.com/sells-group/hygiene-cli/internal/model"
)

func (s *PostgresStore) CreateRun(ctx context.Context, run *model.MaintenanceRun) error {
	js, err := encodeRunJSON(run)
	if err != nil {
		return eris.Wrapf(err, "postgres: create run %s", run.ID)
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO maintenance_runs (id, status, dry_run, skip_phases, phases, errors, started_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		run.ID, string(run.Status), run.DryRun, js.skip, js.phases, js.errors, run.StartedAt,
	)
	return eris.Wrapf(err, "postgres: create run %s", run.ID)
}

func (s *PostgresStore) FinishRun(ctx context.Context, run *model.MaintenanceRun) error {
	js, err := encodeRunJSON(run)
	if err != nil {
		return eris.Wrapf(err, "postgres: finish run %s", run.ID)
	}
	tag, err := s.pool.Exec(ctx,
		`UPDATE maintenance_runs SET status = $1, phases = $2, errors = $3, items_processed = $4,
			items_updated = $5, items_failed = $6, items_skipped = $7, completed_at = $8, duration_ms = $9
		WHERE id = $10`,
		string(run.Status), js.phases, js.errors, run.ItemsProcessed,
		run.ItemsUpdated, run.ItemsFailed, run.ItemsSkipped, run.CompletedAt, run.DurationMs,
		run.ID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: finish run %s", run.ID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Wrapf(ErrNotFound, "run %s", run.ID)
	}
	return nil
}

func (s *PostgresStore) GetRun(ctx context.Context, id string) (*model.MaintenanceRun, error) {
	run, err := scanRun(s.pool.QueryRow(ctx, `SELECT `+runColumns+` FROM maintenance_runs WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "run %s", id)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get run %s", id)
	}
	return run, nil
}

func (s *PostgresStore) ListRuns(ctx context.Context, filter RunFilter) ([]model.MaintenanceRun, error) {
	var where []string
	var args []any
	if filter.Status != "" {
		args = append(args, string(filter.Status))
		where = append(where, fmt.Sprintf("status = $%d", len(args)))
	}
	if !filter.Since.IsZero() {
		args = append(args, filter.Since)
		where = append(where, fmt.Sprintf("started_at >= $%d", len(args)))
	}

	q := `SELECT ` + runColumns + ` FROM maintenance_runs`
	if len(where) > 0 {
		q += " WHERE " + strings.Join(where, " AND ")
	}
	q += " ORDER BY started_at DESC"
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		q += fmt.Sprintf(" LIMIT $%d", len(args))
	}
	if filter.Offset > 0 {
		args = append(args, filter.Offset)
		q += fmt.Sprintf(" OFFSET $%d", len(args))
	}

	rows, err := s.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list runs")
	}
	defer rows.Close()

	var out []model.MaintenanceRun
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan run")
		}
		out = append(out, *run)
	}
	return out, eris.Wrap(rows.Err(), "postgres: iterate runs")
}

func (s *PostgresStore) ListMergeLog(ctx context.Context, filter MergeLogFilter) ([]model.MergeLogEntry, error) {
	var where []string
	var args []any
	if filter.RunID != "" {
		args = append(args, filter.RunID)
		where = append(where, fmt.Sprintf("run_id = $%d", len(args)))
	}
	if filter.KeptID != 0 {
		args = append(args, filter.KeptID)
		where = append(where, fmt.Sprintf("kept_id = $%d", len(args)))
	}
	if filter.Entity != "" {
		args = append(args, string(filter.Entity))
		where = append(where, fmt.Sprintf("entity = $%d", len(args)))
	}

	q := `SELECT ` + mergeLogColumns + ` FROM merge_log`
	if len(where) > 0 {
		q += " WHERE " + strings.Join(where, " AND ")
	}
	q += " ORDER BY id"
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		q += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	rows, err := s.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list merge log")
	}
	defer rows.Close()

	var out []model.MergeLogEntry
	for rows.Next() {
		e, err := scanMergeLog(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan merge log")
		}
		out = append(out, *e)
	}
	return out, eris.Wrap(rows.Err(), "postgres: iterate merge log")
}

// lockUpsert takes the lease when it is free, expired, or already ours.
const lockUpsert = `INSERT INTO maintenance_lock (name, holder, acquired_at, expires_at)
VALUES (%[1]s, %[2]s, %[3]s, %[4]s)
ON CONFLICT (name) DO UPDATE SET holder = excluded.holder,
	acquired_at = excluded.acquired_at, expires_at = excluded.expires_at
WHERE maintenance_lock.expires_at < excluded.acquired_at
	OR maintenance_lock.holder = excluded.holder`

func (s *PostgresStore) AcquireLock(ctx context.Context, name, holder string, ttl time.Duration) error {
	now := time.Now().UTC()
	tag, err := s.pool.Exec(ctx, fmt.Sprintf(lockUpsert, "$1", "$2", "$3", "$4"),
		name, holder, now, now.Add(ttl))
	if err != nil {
		return eris.Wrapf(err, "postgres: acquire lock %s", name)
	}
	if tag.RowsAffected() == 0 {
		return eris.Wrapf(ErrLocked, "lock %s", name)
	}
	return nil
}

func (s *PostgresStore) ReleaseLock(ctx context.Context, name, holder string) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM maintenance_lock WHERE name = $1 AND holder = $2`, name, holder)
	return eris.Wrapf(err, "postgres: release lock %s", name)
}
