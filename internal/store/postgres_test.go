package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/hygiene-cli/internal/model"
)

// newMockPostgresStore creates a PostgresStore backed by pgxmock for unit testing.
func newMockPostgresStore(t *testing.T) (*PostgresStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { mock.Close() })

	return newPostgresStore(mock, nil), mock
}

func TestPostgresStore_GetCompany_NotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`FROM companies c WHERE c.id = \$1`).
		WithArgs(int64(42)).
		WillReturnError(pgx.ErrNoRows)

	_, err := s.GetCompany(context.Background(), 42)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNotFound))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_PageCompanyNames(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT id, name FROM companies WHERE id > \$1 ORDER BY id LIMIT \$2`).
		WithArgs(int64(10), 2).
		WillReturnRows(pgxmock.NewRows([]string{"id", "name"}).
			AddRow(int64(11), "Acme").
			AddRow(int64(12), "Globex"))

	got, err := s.PageCompanyNames(context.Background(), 10, 2)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "Globex", got[1].Name)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ExistingCompanyIDs(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT id FROM companies WHERE id = ANY\(\$1\)`).
		WithArgs([]int64{1, 2, 3}).
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow(int64(1)).AddRow(int64(3)))

	got, err := s.ExistingCompanyIDs(context.Background(), []int64{1, 2, 3})
	require.NoError(t, err)
	assert.Equal(t, map[int64]bool{1: true, 3: true}, got)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetRounds_Empty(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	got, err := s.GetRounds(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, got)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetRounds_QueryError(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`FROM funding_rounds r WHERE r.id = ANY\(\$1\) ORDER BY r.id`).
		WithArgs([]int64{4, 5}).
		WillReturnError(errors.New("connection reset by peer"))

	_, err := s.GetRounds(context.Background(), []int64{4, 5})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "postgres: get rounds")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_CountByRef(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT "company_id", COUNT\(\*\) FROM "funding_rounds" WHERE "company_id" = ANY\(\$1\) GROUP BY "company_id"`).
		WithArgs([]int64{1, 2}).
		WillReturnRows(pgxmock.NewRows([]string{"company_id", "count"}).AddRow(int64(1), 3))

	got, err := s.CountByRef(context.Background(), ChildRefs[0], []int64{1, 2})
	require.NoError(t, err)
	assert.Equal(t, map[int64]int{1: 3}, got)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_InTx_SetValuesUsesBulkUpdate(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectBegin()
	mock.ExpectExec(`SET LOCAL statement_timeout = 300000`).
		WillReturnResult(pgxmock.NewResult("SET", 0))
	mock.ExpectExec(`CREATE TEMP TABLE "_tmp_update_companies"`).
		WillReturnResult(pgxmock.NewResult("CREATE", 0))
	mock.ExpectCopyFrom(pgx.Identifier{"_tmp_update_companies"}, []string{"id", "country"}).
		WillReturnResult(2)
	mock.ExpectExec(`UPDATE "companies" AS t SET "country" = s\."country", "updated_at" = now\(\)`).
		WillReturnResult(pgxmock.NewResult("UPDATE", 2))
	mock.ExpectExec(`DROP TABLE "_tmp_update_companies"`).
		WillReturnResult(pgxmock.NewResult("DROP", 0))
	mock.ExpectCommit()

	err := s.InTx(context.Background(), func(tx Tx) error {
		if err := tx.SetTimeout(context.Background(), 5*time.Minute); err != nil {
			return err
		}
		n, err := tx.SetValues(context.Background(), TableCompanies, "country", []FieldUpdate{
			{ID: 1, Value: "France"},
			{ID: 2, Value: "Germany"},
		})
		assert.Equal(t, int64(2), n)
		return err
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_InTx_RollsBack(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectBegin()
	mock.ExpectExec(`DELETE FROM companies WHERE id = \$1`).
		WithArgs(int64(7)).
		WillReturnResult(pgxmock.NewResult("DELETE", 0))
	mock.ExpectRollback()

	err := s.InTx(context.Background(), func(tx Tx) error {
		return tx.DeleteCompany(context.Background(), 7)
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNotFound))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_NullColumn(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE "funding_rounds" SET "amount" = NULL, updated_at = now\(\) WHERE id = ANY\(\$1\)`).
		WithArgs([]int64{4, 5}).
		WillReturnResult(pgxmock.NewResult("UPDATE", 2))
	mock.ExpectCommit()

	err := s.InTx(context.Background(), func(tx Tx) error {
		n, err := tx.NullColumn(context.Background(), TableRounds, "amount", []int64{4, 5})
		assert.Equal(t, int64(2), n)
		return err
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_AcquireLock_Conflict(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`INSERT INTO maintenance_lock .* ON CONFLICT \(name\) DO UPDATE`).
		WithArgs("maintenance", "run-2", pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 0))

	err := s.AcquireLock(context.Background(), "maintenance", "run-2", time.Hour)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrLocked))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_AcquireLock_Granted(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`INSERT INTO maintenance_lock`).
		WithArgs("maintenance", "run-1", pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	assert.NoError(t, s.AcquireLock(context.Background(), "maintenance", "run-1", time.Hour))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_FinishRun_NotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`UPDATE maintenance_runs SET status = \$1`).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err := s.FinishRun(context.Background(), &model.MaintenanceRun{ID: "nope", Status: model.RunStatusCompleted})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNotFound))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ListRuns_BuildsFilter(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`FROM maintenance_runs WHERE status = \$1 ORDER BY started_at DESC LIMIT \$2`).
		WithArgs("FAILED", 5).
		WillReturnRows(pgxmock.NewRows([]string{
			"id", "status", "dry_run", "skip_phases", "phases", "errors", "items_processed",
			"items_updated", "items_failed", "items_skipped", "started_at", "completed_at", "duration_ms",
		}))

	runs, err := s.ListRuns(context.Background(), RunFilter{Status: model.RunStatusFailed, Limit: 5})
	require.NoError(t, err)
	assert.Empty(t, runs)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_Migrate(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`CREATE TABLE IF NOT EXISTS companies`).
		WillReturnResult(pgxmock.NewResult("CREATE", 0))

	assert.NoError(t, s.Migrate(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}
