package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/hygiene-cli/internal/model"
)

func (s *SQLiteStore) CreateRun(ctx context.Context, run *model.MaintenanceRun) error {
	js, err := encodeRunJSON(run)
	if err != nil {
		return eris.Wrapf(err, "sqlite: create run %s", run.ID)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO maintenance_runs (id, status, dry_run, skip_phases, phases, errors, started_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		run.ID, string(run.Status), run.DryRun, string(js.skip), string(js.phases), string(js.errors),
		run.StartedAt.UTC(),
	)
	return eris.Wrapf(err, "sqlite: create run %s", run.ID)
}

func (s *SQLiteStore) FinishRun(ctx context.Context, run *model.MaintenanceRun) error {
	js, err := encodeRunJSON(run)
	if err != nil {
		return eris.Wrapf(err, "sqlite: finish run %s", run.ID)
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE maintenance_runs SET status = ?, phases = ?, errors = ?, items_processed = ?,
			items_updated = ?, items_failed = ?, items_skipped = ?, completed_at = ?, duration_ms = ?
		WHERE id = ?`,
		string(run.Status), string(js.phases), string(js.errors), run.ItemsProcessed,
		run.ItemsUpdated, run.ItemsFailed, run.ItemsSkipped, run.CompletedAt, run.DurationMs,
		run.ID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: finish run %s", run.ID)
	}
	return checkRowsAffected(res, "run", run.ID)
}

func (s *SQLiteStore) GetRun(ctx context.Context, id string) (*model.MaintenanceRun, error) {
	run, err := scanRun(s.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM maintenance_runs WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "run %s", id)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get run %s", id)
	}
	return run, nil
}

func (s *SQLiteStore) ListRuns(ctx context.Context, filter RunFilter) ([]model.MaintenanceRun, error) {
	var where []string
	var args []any
	if filter.Status != "" {
		where = append(where, "status = ?")
		args = append(args, string(filter.Status))
	}
	if !filter.Since.IsZero() {
		where = append(where, "started_at >= ?")
		args = append(args, filter.Since.UTC())
	}

	q := `SELECT ` + runColumns + ` FROM maintenance_runs`
	if len(where) > 0 {
		q += " WHERE " + strings.Join(where, " AND ")
	}
	q += " ORDER BY started_at DESC"
	if filter.Limit > 0 {
		q += " LIMIT ?"
		args = append(args, filter.Limit)
		if filter.Offset > 0 {
			q += " OFFSET ?"
			args = append(args, filter.Offset)
		}
	}

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list runs")
	}
	defer rows.Close() //nolint:errcheck

	var out []model.MaintenanceRun
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan run")
		}
		out = append(out, *run)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: iterate runs")
}

func (s *SQLiteStore) ListMergeLog(ctx context.Context, filter MergeLogFilter) ([]model.MergeLogEntry, error) {
	var where []string
	var args []any
	if filter.RunID != "" {
		where = append(where, "run_id = ?")
		args = append(args, filter.RunID)
	}
	if filter.KeptID != 0 {
		where = append(where, "kept_id = ?")
		args = append(args, filter.KeptID)
	}
	if filter.Entity != "" {
		where = append(where, "entity = ?")
		args = append(args, string(filter.Entity))
	}

	q := `SELECT ` + mergeLogColumns + ` FROM merge_log`
	if len(where) > 0 {
		q += " WHERE " + strings.Join(where, " AND ")
	}
	q += " ORDER BY id"
	if filter.Limit > 0 {
		q += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list merge log")
	}
	defer rows.Close() //nolint:errcheck

	var out []model.MergeLogEntry
	for rows.Next() {
		e, err := scanMergeLog(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan merge log")
		}
		out = append(out, *e)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: iterate merge log")
}

// AcquireLock stores lease times as unix milliseconds so the expiry
// comparison is numeric.
func (s *SQLiteStore) AcquireLock(ctx context.Context, name, holder string, ttl time.Duration) error {
	now := time.Now().UTC()
	res, err := s.db.ExecContext(ctx, fmt.Sprintf(lockUpsert, "?", "?", "?", "?"),
		name, holder, now.UnixMilli(), now.Add(ttl).UnixMilli())
	if err != nil {
		return eris.Wrapf(err, "sqlite: acquire lock %s", name)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "sqlite: rows affected")
	}
	if n == 0 {
		return eris.Wrapf(ErrLocked, "lock %s", name)
	}
	return nil
}

func (s *SQLiteStore) ReleaseLock(ctx context.Context, name, holder string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM maintenance_lock WHERE name = ? AND holder = ?`, name, holder)
	return eris.Wrapf(err, "sqlite: release lock %s", name)
}
