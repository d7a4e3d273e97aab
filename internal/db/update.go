package db

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"
)

// UpdateConfig defines a keyed bulk column update.
type UpdateConfig struct {
	Table     string   // target table
	KeyColumn string   // primary key column matched against the staged rows
	Columns   []string // columns to overwrite from the staged rows
	TouchCol  string   // optional timestamp column set to now(); "" to skip
}

// BulkUpdate overwrites Columns on the rows identified by KeyColumn. Each row
// in rows is (key, col1, col2, ...).
//  1. Creates an unconstrained temp table shaped like (key, columns...)
//  2. COPY rows into it
//  3. UPDATE target FROM temp
//  4. Drops the temp table
//
// It must run inside a transaction so a failure leaves the target untouched.
func BulkUpdate(ctx context.Context, tx Querier, cfg UpdateConfig, rows [][]any) (int64, error) {
	if len(rows) == 0 {
		return 0, nil
	}
	if cfg.KeyColumn == "" {
		return 0, eris.New("db: update: no key column specified")
	}
	if len(cfg.Columns) == 0 {
		return 0, eris.New("db: update: no columns specified")
	}

	tempTable := fmt.Sprintf("_tmp_update_%s", strings.ReplaceAll(cfg.Table, ".", "_"))
	allCols := append([]string{cfg.KeyColumn}, cfg.Columns...)

	// CREATE ... AS SELECT keeps the column types without NOT NULL constraints.
	createSQL := fmt.Sprintf(
		"CREATE TEMP TABLE %s ON COMMIT DROP AS SELECT %s FROM %s WITH NO DATA",
		pgx.Identifier{tempTable}.Sanitize(),
		quoteAndJoin(allCols),
		sanitizeTable(cfg.Table),
	)
	if _, err := tx.Exec(ctx, createSQL); err != nil {
		return 0, eris.Wrapf(err, "db: update: create temp table for %s", cfg.Table)
	}

	if _, err := CopyFrom(ctx, tx, tempTable, allCols, rows); err != nil {
		return 0, eris.Wrapf(err, "db: update: stage rows for %s", cfg.Table)
	}

	setClauses := make([]string, 0, len(cfg.Columns)+1)
	for _, col := range cfg.Columns {
		c := pgx.Identifier{col}.Sanitize()
		setClauses = append(setClauses, fmt.Sprintf("%s = s.%s", c, c))
	}
	if cfg.TouchCol != "" {
		setClauses = append(setClauses, fmt.Sprintf("%s = now()", pgx.Identifier{cfg.TouchCol}.Sanitize()))
	}
	key := pgx.Identifier{cfg.KeyColumn}.Sanitize()

	updateSQL := fmt.Sprintf(
		"UPDATE %s AS t SET %s FROM %s AS s WHERE t.%s = s.%s",
		sanitizeTable(cfg.Table),
		strings.Join(setClauses, ", "),
		pgx.Identifier{tempTable}.Sanitize(),
		key, key,
	)
	tag, err := tx.Exec(ctx, updateSQL)
	if err != nil {
		return 0, eris.Wrapf(err, "db: update: UPDATE FROM for %s", cfg.Table)
	}

	// Dropped eagerly so a second update of the same table in this
	// transaction can recreate it.
	if _, err := tx.Exec(ctx, fmt.Sprintf("DROP TABLE %s", pgx.Identifier{tempTable}.Sanitize())); err != nil {
		return 0, eris.Wrapf(err, "db: update: drop temp table for %s", cfg.Table)
	}

	return tag.RowsAffected(), nil
}

// sanitizeTable handles schema-qualified table names like "public.companies".
func sanitizeTable(table string) string {
	parts := strings.SplitN(table, ".", 2)
	if len(parts) == 2 {
		return pgx.Identifier{parts[0], parts[1]}.Sanitize()
	}
	return pgx.Identifier{table}.Sanitize()
}

// quoteAndJoin quotes each column name and joins with commas.
func quoteAndJoin(cols []string) string {
	quoted := make([]string, len(cols))
	for i, c := range cols {
		quoted[i] = pgx.Identifier{c}.Sanitize()
	}
	return strings.Join(quoted, ", ")
}
