package maintenance

import (
	"context"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/sells-group/hygiene-cli/internal/company"
	"github.com/sells-group/hygiene-cli/internal/model"
	"github.com/sells-group/hygiene-cli/internal/store"
)

// faultStore routes every transaction through wrap so tests can inject
// failures into individual writes.
type faultStore struct {
	store.Store
	wrap func(tx store.Tx) store.Tx
}

func (f *faultStore) InTx(ctx context.Context, fn func(tx store.Tx) error) error {
	return f.Store.InTx(ctx, func(tx store.Tx) error { return fn(f.wrap(tx)) })
}

type faultTx struct {
	store.Tx
	deleteCompany func() error
	nullColumn    func() error
}

func (f *faultTx) DeleteCompany(ctx context.Context, id int64) error {
	if f.deleteCompany != nil {
		if err := f.deleteCompany(); err != nil {
			return err
		}
	}
	return f.Tx.DeleteCompany(ctx, id)
}

func (f *faultTx) NullColumn(ctx context.Context, table, column string, ids []int64) (int64, error) {
	if f.nullColumn != nil {
		if err := f.nullColumn(); err != nil {
			return 0, err
		}
	}
	return f.Tx.NullColumn(ctx, table, column, ids)
}

func newTestMerger(st store.Store) *Merger {
	return NewMerger(st, testConfig().Retry, nil, zap.NewNop())
}

func TestMergeCompanies_NeverOverwrites(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()
	keep := seedCompany(t, st, company.Company{Name: "Acme", Industry: "fintech"})
	merge := seedCompany(t, st, company.Company{Name: "Acme Inc", Industry: "banking", Website: "https://acme.io"})

	entry, err := newTestMerger(st).MergeCompanies(ctx, keep.ID, merge.ID, model.Similarity{Combined: 1, NormalizedMatch: true}, "exact normalized match", "")
	require.NoError(t, err)

	got, err := st.GetCompany(ctx, keep.ID)
	require.NoError(t, err)
	assert.Equal(t, "fintech", got.Industry)
	assert.Equal(t, "https://acme.io", got.Website)
	assert.Contains(t, got.Aliases, "Acme Inc")
	assert.Equal(t, []string{"website", "aliases"}, entry.FieldsTransferred)
}

func TestMergeCompanies_FounderUnion(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()
	keep := seedCompany(t, st, company.Company{Name: "Acme", Founders: []company.Founder{{Name: "Alice"}}})
	merge := seedCompany(t, st, company.Company{Name: "ACME", Founders: []company.Founder{{Name: "Alice"}, {Name: "Bob"}}})

	_, err := newTestMerger(st).MergeCompanies(ctx, keep.ID, merge.ID, model.Similarity{}, "", "")
	require.NoError(t, err)

	got, err := st.GetCompany(ctx, keep.ID)
	require.NoError(t, err)
	require.Len(t, got.Founders, 2)
	assert.Equal(t, "Alice", got.Founders[0].Name)
	assert.Equal(t, "Bob", got.Founders[1].Name)
	assert.Empty(t, got.Aliases, "same normalized spelling is not an alias")
}

func TestMergeCompanies_MovesChildrenAndLogs(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()
	keep := seedCompany(t, st, company.Company{Name: "Acme Robotics", Country: "United States"})
	merge := seedCompany(t, st, company.Company{Name: "Acme Robotic", Description: "Warehouse robots"})
	for i := 0; i < 3; i++ {
		seedRound(t, st, company.FundingRound{CompanyID: idPtr(merge.ID), Stage: "Seed", AmountUSD: floatPtr(float64(i+1) * 1e6)})
	}
	_, err := st.InsertEnrichment(ctx, merge.ID, "crunchbase", `{"employees": 40}`)
	require.NoError(t, err)

	score := model.Similarity{Combined: 0.95, Levenshtein: 0.92, JaroWinkler: 0.98, Phonetic: 1}
	entry, err := newTestMerger(st).MergeCompanies(ctx, keep.ID, merge.ID, score, "high name similarity (0.95)", "run-7")
	require.NoError(t, err)

	assert.Equal(t, map[string]int64{store.TableRounds: 3, store.TableEnrichments: 1}, entry.ChildrenMoved)
	assert.Equal(t, "Acme Robotic", entry.MergedFromName)
	require.NotNil(t, entry.Before.Company)
	require.NotNil(t, entry.After.Company)
	assert.Empty(t, entry.Before.Company.Description)
	assert.Equal(t, "Warehouse robots", entry.After.Company.Description)
	assert.Equal(t, 3, entry.After.Company.RoundCount)

	_, err = st.GetCompany(ctx, merge.ID)
	assert.ErrorIs(t, err, store.ErrNotFound)

	logs, err := st.ListMergeLog(ctx, store.MergeLogFilter{KeptID: keep.ID})
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, merge.ID, logs[0].MergedFromID)
	assert.Equal(t, "run-7", logs[0].RunID)
	assert.InDelta(t, 0.95, logs[0].Similarity.Combined, 1e-9)
	assert.Equal(t, int64(3), logs[0].ChildrenMoved[store.TableRounds])
}

func TestMergeCompanies_ReplayFails(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()
	keep := seedCompany(t, st, company.Company{Name: "Acme"})
	merge := seedCompany(t, st, company.Company{Name: "ACME"})
	m := newTestMerger(st)

	_, err := m.MergeCompanies(ctx, keep.ID, merge.ID, model.Similarity{}, "", "")
	require.NoError(t, err)
	_, err = m.MergeCompanies(ctx, keep.ID, merge.ID, model.Similarity{}, "", "")
	assert.ErrorIs(t, err, store.ErrNotFound)

	logs, err := st.ListMergeLog(ctx, store.MergeLogFilter{})
	require.NoError(t, err)
	assert.Len(t, logs, 1)
}

func TestMergeCompanies_SelfMergeRejected(t *testing.T) {
	_, err := newTestMerger(nil).MergeCompanies(context.Background(), 4, 4, model.Similarity{}, "", "")
	assert.Error(t, err)
}

func TestMergeCompanies_RetriesDeadlock(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()
	keep := seedCompany(t, st, company.Company{Name: "Acme"})
	merge := seedCompany(t, st, company.Company{Name: "Acme GmbH", Website: "https://acme.de"})
	seedRound(t, st, company.FundingRound{CompanyID: idPtr(merge.ID), Stage: "Seed", AmountUSD: floatPtr(2e6)})

	attempts := 0
	fs := &faultStore{Store: st, wrap: func(tx store.Tx) store.Tx {
		return &faultTx{Tx: tx, deleteCompany: func() error {
			attempts++
			if attempts == 1 {
				return &pgconn.PgError{Code: "40P01", Message: "deadlock detected"}
			}
			return nil
		}}
	}}

	entry, err := newTestMerger(fs).MergeCompanies(ctx, keep.ID, merge.ID, model.Similarity{}, "", "")
	require.NoError(t, err)
	assert.Equal(t, 2, attempts)
	assert.Equal(t, int64(1), entry.ChildrenMoved[store.TableRounds], "first attempt must have rolled back")

	logs, err := st.ListMergeLog(ctx, store.MergeLogFilter{})
	require.NoError(t, err)
	assert.Len(t, logs, 1)
}

func TestRun_MergeFailureContinues(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()
	seedCompany(t, st, company.Company{Name: "Acme", Website: "https://acme.io"})
	seedCompany(t, st, company.Company{Name: "ACME"})
	seedCompany(t, st, company.Company{Name: "Globex Corporation", Website: "https://globex.com"})
	seedCompany(t, st, company.Company{Name: "Globex"})

	calls := 0
	fs := &faultStore{Store: st, wrap: func(tx store.Tx) store.Tx {
		return &faultTx{Tx: tx, deleteCompany: func() error {
			calls++
			if calls == 1 {
				return errors.New("permission denied for table companies")
			}
			return nil
		}}
	}}

	res := newTestEngine(fs, testConfig()).Run(ctx, Options{SkipPhases: correctiveSkip})
	assert.Equal(t, model.RunStatusPartial, res.Status)
	assert.True(t, res.Success)
	assert.Equal(t, 1, res.ItemsFailed)

	dedup := phaseResult(t, res, model.PhaseDedupCompanies)
	assert.Equal(t, model.PhaseStatusCompleted, dedup.Status)
	assert.Equal(t, 1, dedup.Updated)
	assert.Equal(t, 1, dedup.Failed)
	require.Len(t, res.Errors, 1)
	assert.Equal(t, model.ErrorKindMerge, res.Errors[0].Kind)

	n, err := st.CountCompanies(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
}

func TestMergeRounds_UnknownRound(t *testing.T) {
	st := newTestStore(t)
	_, err := newTestMerger(st).MergeRounds(context.Background(), 1, 2, model.Similarity{}, "", "")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestMerger_UnknownEntity(t *testing.T) {
	_, err := newTestMerger(nil).Merge(context.Background(), model.PlannedMerge{Entity: "investor"}, "")
	assert.Error(t, err)
}
