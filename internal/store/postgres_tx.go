package store

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"

	"github.com/sells-group/hygiene-cli/internal/company"
	"github.com/sells-group/hygiene-cli/internal/db"
	"github.com/sells-group/hygiene-cli/internal/model"
)

// pgTx implements Tx over a pgx transaction.
type pgTx struct {
	pgReader
	tx pgx.Tx
}

func (t *pgTx) UpdateCompany(ctx context.Context, c *company.Company) error {
	js, err := encodeCompanyJSON(c)
	if err != nil {
		return eris.Wrapf(err, "postgres: update company %d", c.ID)
	}
	tag, err := t.tx.Exec(ctx,
		`UPDATE companies SET name = $1, website = $2, description = $3, industry = $4,
			headquarters = $5, country = $6, linkedin_url = $7, founded_year = $8,
			employee_count = $9, total_raised_usd = $10, quality_score = $11,
			founders = $12, competitors = $13, notable_clients = $14, aliases = $15,
			updated_at = now()
		WHERE id = $16`,
		c.Name, nilIfEmpty(c.Website), nilIfEmpty(c.Description), nilIfEmpty(c.Industry),
		nilIfEmpty(c.Headquarters), nilIfEmpty(c.Country), nilIfEmpty(c.LinkedInURL), c.FoundedYear,
		c.EmployeeCount, c.TotalRaisedUSD, c.QualityScore,
		js.founders, js.competitors, js.clients, js.aliases,
		c.ID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: update company %d", c.ID)
	}
	return checkTag(tag, "company", c.ID)
}

func (t *pgTx) UpdateRound(ctx context.Context, r *company.FundingRound) error {
	investors, err := marshalJSON(r.Investors)
	if err != nil {
		return eris.Wrapf(err, "postgres: marshal investors for round %d", r.ID)
	}
	tag, err := t.tx.Exec(ctx,
		`UPDATE funding_rounds SET company_id = $1, company_name = $2, stage = $3, amount = $4,
			currency = $5, amount_usd = $6, announced_date = $7, investors = $8,
			lead_investor = $9, sector = $10, sector_normalized = $11, source = $12,
			source_url = $13, updated_at = now()
		WHERE id = $14`,
		r.CompanyID, nilIfEmpty(r.CompanyName), nilIfEmpty(r.Stage), r.Amount,
		nilIfEmpty(r.Currency), r.AmountUSD, r.AnnouncedDate, investors,
		nilIfEmpty(r.LeadInvestor), nilIfEmpty(r.Sector), nilIfEmpty(r.SectorNormalized), nilIfEmpty(r.Source),
		nilIfEmpty(r.SourceURL), r.ID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: update round %d", r.ID)
	}
	return checkTag(tag, "round", r.ID)
}

func (t *pgTx) ReparentChildren(ctx context.Context, ref ChildRef, fromID, toID int64) (int64, error) {
	if err := checkChildRef(ref); err != nil {
		return 0, err
	}
	col := pgx.Identifier{ref.Column}.Sanitize()
	tag, err := t.tx.Exec(ctx,
		`UPDATE `+pgx.Identifier{ref.Table}.Sanitize()+` SET `+col+` = $1 WHERE `+col+` = $2`,
		toID, fromID)
	if err != nil {
		return 0, eris.Wrapf(err, "postgres: reparent %s from %d to %d", ref.Table, fromID, toID)
	}
	return tag.RowsAffected(), nil
}

func (t *pgTx) DeleteCompany(ctx context.Context, id int64) error {
	tag, err := t.tx.Exec(ctx, `DELETE FROM companies WHERE id = $1`, id)
	if err != nil {
		return eris.Wrapf(err, "postgres: delete company %d", id)
	}
	return checkTag(tag, "company", id)
}

func (t *pgTx) DeleteRound(ctx context.Context, id int64) error {
	tag, err := t.tx.Exec(ctx, `DELETE FROM funding_rounds WHERE id = $1`, id)
	if err != nil {
		return eris.Wrapf(err, "postgres: delete round %d", id)
	}
	return checkTag(tag, "round", id)
}

func (t *pgTx) DeleteByRef(ctx context.Context, ref ChildRef, parentIDs []int64) (int64, error) {
	if err := checkChildRef(ref); err != nil {
		return 0, err
	}
	if len(parentIDs) == 0 {
		return 0, nil
	}
	tag, err := t.tx.Exec(ctx,
		`DELETE FROM `+pgx.Identifier{ref.Table}.Sanitize()+
			` WHERE `+pgx.Identifier{ref.Column}.Sanitize()+` = ANY($1)`,
		parentIDs)
	if err != nil {
		return 0, eris.Wrapf(err, "postgres: delete %s by %s", ref.Table, ref.Column)
	}
	return tag.RowsAffected(), nil
}

func (t *pgTx) DeleteRows(ctx context.Context, table string, ids []int64) (int64, error) {
	if table != TableCompanies && table != TableRounds {
		return 0, eris.Errorf("postgres: delete rows: unsupported table %s", table)
	}
	if len(ids) == 0 {
		return 0, nil
	}
	tag, err := t.tx.Exec(ctx, `DELETE FROM `+pgx.Identifier{table}.Sanitize()+` WHERE id = ANY($1)`, ids)
	if err != nil {
		return 0, eris.Wrapf(err, "postgres: delete %d rows from %s", len(ids), table)
	}
	return tag.RowsAffected(), nil
}

// SetValues stages the updates with COPY and applies them in one UPDATE FROM.
func (t *pgTx) SetValues(ctx context.Context, table, column string, updates []FieldUpdate) (int64, error) {
	if err := checkColumn(table, column); err != nil {
		return 0, err
	}
	rows := make([][]any, len(updates))
	for i, u := range updates {
		rows[i] = []any{u.ID, u.Value}
	}
	n, err := db.BulkUpdate(ctx, t.tx, db.UpdateConfig{
		Table:     table,
		KeyColumn: "id",
		Columns:   []string{column},
		TouchCol:  "updated_at",
	}, rows)
	if err != nil {
		return 0, eris.Wrapf(err, "postgres: set %s.%s", table, column)
	}
	return n, nil
}

func (t *pgTx) NullColumn(ctx context.Context, table, column string, ids []int64) (int64, error) {
	if err := checkColumn(table, column); err != nil {
		return 0, err
	}
	if len(ids) == 0 {
		return 0, nil
	}
	tag, err := t.tx.Exec(ctx,
		`UPDATE `+pgx.Identifier{table}.Sanitize()+` SET `+pgx.Identifier{column}.Sanitize()+
			` = NULL, updated_at = now() WHERE id = ANY($1)`,
		ids)
	if err != nil {
		return 0, eris.Wrapf(err, "postgres: null %s.%s", table, column)
	}
	return tag.RowsAffected(), nil
}

func (t *pgTx) InsertMergeLog(ctx context.Context, e *model.MergeLogEntry) error {
	js, err := encodeMergeLogJSON(e)
	if err != nil {
		return eris.Wrap(err, "postgres: insert merge log")
	}
	err = t.tx.QueryRow(ctx,
		`INSERT INTO merge_log (entity, kept_id, merged_from_id, merged_from_name, before_snapshot,
			after_snapshot, fields_transferred, children_moved, similarity, justification, run_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING id, created_at`,
		string(e.Entity), e.KeptID, e.MergedFromID, e.MergedFromName, js.before,
		js.after, js.fields, js.children, js.similarity, e.Justification, nilIfEmpty(e.RunID),
	).Scan(&e.ID, &e.CreatedAt)
	return eris.Wrapf(err, "postgres: insert merge log %d <- %d", e.KeptID, e.MergedFromID)
}

// SetTimeout applies SET LOCAL statement_timeout, which ends with the
// transaction.
func (t *pgTx) SetTimeout(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	_, err := t.tx.Exec(ctx, fmt.Sprintf("SET LOCAL statement_timeout = %d", d.Milliseconds()))
	return eris.Wrap(err, "postgres: set statement timeout")
}
