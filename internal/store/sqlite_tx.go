package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/hygiene-cli/internal/company"
	"github.com/sells-group/hygiene-cli/internal/model"
)

// sqliteTx implements Tx over a database/sql transaction.
type sqliteTx struct {
	sqliteReader
	tx *sql.Tx
}

func (t *sqliteTx) UpdateCompany(ctx context.Context, c *company.Company) error {
	js, err := encodeCompanyJSON(c)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update company %d", c.ID)
	}
	res, err := t.tx.ExecContext(ctx,
		`UPDATE companies SET name = ?, website = ?, description = ?, industry = ?,
			headquarters = ?, country = ?, linkedin_url = ?, founded_year = ?,
			employee_count = ?, total_raised_usd = ?, quality_score = ?,
			founders = ?, competitors = ?, notable_clients = ?, aliases = ?,
			updated_at = ?
		WHERE id = ?`,
		c.Name, nilIfEmpty(c.Website), nilIfEmpty(c.Description), nilIfEmpty(c.Industry),
		nilIfEmpty(c.Headquarters), nilIfEmpty(c.Country), nilIfEmpty(c.LinkedInURL), c.FoundedYear,
		c.EmployeeCount, c.TotalRaisedUSD, c.QualityScore,
		string(js.founders), string(js.competitors), string(js.clients), string(js.aliases),
		time.Now().UTC(), c.ID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update company %d", c.ID)
	}
	return checkRowsAffected(res, "company", c.ID)
}

func (t *sqliteTx) UpdateRound(ctx context.Context, r *company.FundingRound) error {
	investors, err := marshalJSON(r.Investors)
	if err != nil {
		return eris.Wrapf(err, "sqlite: marshal investors for round %d", r.ID)
	}
	res, err := t.tx.ExecContext(ctx,
		`UPDATE funding_rounds SET company_id = ?, company_name = ?, stage = ?, amount = ?,
			currency = ?, amount_usd = ?, announced_date = ?, investors = ?,
			lead_investor = ?, sector = ?, sector_normalized = ?, source = ?,
			source_url = ?, updated_at = ?
		WHERE id = ?`,
		r.CompanyID, nilIfEmpty(r.CompanyName), nilIfEmpty(r.Stage), r.Amount,
		nilIfEmpty(r.Currency), r.AmountUSD, r.AnnouncedDate, string(investors),
		nilIfEmpty(r.LeadInvestor), nilIfEmpty(r.Sector), nilIfEmpty(r.SectorNormalized), nilIfEmpty(r.Source),
		nilIfEmpty(r.SourceURL), time.Now().UTC(), r.ID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update round %d", r.ID)
	}
	return checkRowsAffected(res, "round", r.ID)
}

func (t *sqliteTx) ReparentChildren(ctx context.Context, ref ChildRef, fromID, toID int64) (int64, error) {
	if err := checkChildRef(ref); err != nil {
		return 0, err
	}
	res, err := t.tx.ExecContext(ctx,
		fmt.Sprintf(`UPDATE %[1]s SET %[2]s = ? WHERE %[2]s = ?`, ref.Table, ref.Column),
		toID, fromID)
	if err != nil {
		return 0, eris.Wrapf(err, "sqlite: reparent %s from %d to %d", ref.Table, fromID, toID)
	}
	n, err := res.RowsAffected()
	return n, eris.Wrap(err, "sqlite: rows affected")
}

func (t *sqliteTx) DeleteCompany(ctx context.Context, id int64) error {
	res, err := t.tx.ExecContext(ctx, `DELETE FROM companies WHERE id = ?`, id)
	if err != nil {
		return eris.Wrapf(err, "sqlite: delete company %d", id)
	}
	return checkRowsAffected(res, "company", id)
}

func (t *sqliteTx) DeleteRound(ctx context.Context, id int64) error {
	res, err := t.tx.ExecContext(ctx, `DELETE FROM funding_rounds WHERE id = ?`, id)
	if err != nil {
		return eris.Wrapf(err, "sqlite: delete round %d", id)
	}
	return checkRowsAffected(res, "round", id)
}

func (t *sqliteTx) DeleteByRef(ctx context.Context, ref ChildRef, parentIDs []int64) (int64, error) {
	if err := checkChildRef(ref); err != nil {
		return 0, err
	}
	return t.execChunked(ctx, parentIDs, func(in string) string {
		return fmt.Sprintf(`DELETE FROM %s WHERE %s IN (%s)`, ref.Table, ref.Column, in)
	})
}

func (t *sqliteTx) DeleteRows(ctx context.Context, table string, ids []int64) (int64, error) {
	if table != TableCompanies && table != TableRounds {
		return 0, eris.Errorf("sqlite: delete rows: unsupported table %s", table)
	}
	return t.execChunked(ctx, ids, func(in string) string {
		return fmt.Sprintf(`DELETE FROM %s WHERE id IN (%s)`, table, in)
	})
}

func (t *sqliteTx) SetValues(ctx context.Context, table, column string, updates []FieldUpdate) (int64, error) {
	if err := checkColumn(table, column); err != nil {
		return 0, err
	}
	if len(updates) == 0 {
		return 0, nil
	}
	stmt, err := t.tx.PrepareContext(ctx,
		fmt.Sprintf(`UPDATE %s SET %s = ?, updated_at = ? WHERE id = ?`, table, column))
	if err != nil {
		return 0, eris.Wrapf(err, "sqlite: prepare set %s.%s", table, column)
	}
	defer stmt.Close() //nolint:errcheck

	now := time.Now().UTC()
	var total int64
	for _, u := range updates {
		res, err := stmt.ExecContext(ctx, u.Value, now, u.ID)
		if err != nil {
			return total, eris.Wrapf(err, "sqlite: set %s.%s for %d", table, column, u.ID)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return total, eris.Wrap(err, "sqlite: rows affected")
		}
		total += n
	}
	return total, nil
}

func (t *sqliteTx) NullColumn(ctx context.Context, table, column string, ids []int64) (int64, error) {
	if err := checkColumn(table, column); err != nil {
		return 0, err
	}
	now := time.Now().UTC()
	var total int64
	for _, batch := range chunk(ids, sqliteInLimit) {
		in, args := inList(batch)
		res, err := t.tx.ExecContext(ctx,
			fmt.Sprintf(`UPDATE %s SET %s = NULL, updated_at = ? WHERE id IN (%s)`, table, column, in),
			append([]any{now}, args...)...)
		if err != nil {
			return total, eris.Wrapf(err, "sqlite: null %s.%s", table, column)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return total, eris.Wrap(err, "sqlite: rows affected")
		}
		total += n
	}
	return total, nil
}

func (t *sqliteTx) InsertMergeLog(ctx context.Context, e *model.MergeLogEntry) error {
	js, err := encodeMergeLogJSON(e)
	if err != nil {
		return eris.Wrap(err, "sqlite: insert merge log")
	}
	now := time.Now().UTC()
	res, err := t.tx.ExecContext(ctx,
		`INSERT INTO merge_log (entity, kept_id, merged_from_id, merged_from_name, before_snapshot,
			after_snapshot, fields_transferred, children_moved, similarity, justification, run_id, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		string(e.Entity), e.KeptID, e.MergedFromID, e.MergedFromName, string(js.before),
		string(js.after), string(js.fields), string(js.children), string(js.similarity), e.Justification,
		nilIfEmpty(e.RunID), now,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: insert merge log %d <- %d", e.KeptID, e.MergedFromID)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return eris.Wrap(err, "sqlite: merge log id")
	}
	e.ID = id
	e.CreatedAt = now
	return nil
}

// SetTimeout is a no-op: SQLite has no per-statement timeout, so the
// caller's context deadline bounds the transaction instead.
func (t *sqliteTx) SetTimeout(context.Context, time.Duration) error {
	return nil
}

func (t *sqliteTx) execChunked(ctx context.Context, ids []int64, query func(in string) string) (int64, error) {
	var total int64
	for _, batch := range chunk(ids, sqliteInLimit) {
		in, args := inList(batch)
		res, err := t.tx.ExecContext(ctx, query(in), args...)
		if err != nil {
			return total, eris.Wrap(err, "sqlite: delete")
		}
		n, err := res.RowsAffected()
		if err != nil {
			return total, eris.Wrap(err, "sqlite: rows affected")
		}
		total += n
	}
	return total, nil
}
