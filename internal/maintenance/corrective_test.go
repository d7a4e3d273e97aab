package maintenance

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/hygiene-cli/internal/company"
	"github.com/sells-group/hygiene-cli/internal/model"
	"github.com/sells-group/hygiene-cli/internal/store"
)

var dedupSkip = []string{"deduplicate_companies", "deduplicate_rounds"}

func TestRun_AberrantScenario(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()
	c := seedCompany(t, st, company.Company{Name: "Acme", FoundedYear: intPtr(2099), EmployeeCount: intPtr(-4), QualityScore: floatPtr(87)})
	r := seedRound(t, st, company.FundingRound{
		CompanyID: idPtr(c.ID), Stage: "Series B",
		Amount: floatPtr(500_000_000_000), AmountUSD: floatPtr(500_000_000_000),
		AnnouncedDate: datePtr("2022-05-01"),
	})

	res := newTestEngine(st, testConfig()).Run(ctx, Options{SkipPhases: dedupSkip})
	require.Equal(t, model.RunStatusCompleted, res.Status, "errors: %v", res.Errors)

	gotC, err := st.GetCompany(ctx, c.ID)
	require.NoError(t, err)
	assert.Nil(t, gotC.FoundedYear)
	assert.Nil(t, gotC.EmployeeCount)
	require.NotNil(t, gotC.QualityScore)
	assert.InDelta(t, 87, *gotC.QualityScore, 1e-9)

	gotR, err := st.GetRound(ctx, r.ID)
	require.NoError(t, err)
	assert.Nil(t, gotR.Amount)
	assert.Nil(t, gotR.AmountUSD)
	assert.NotNil(t, gotR.AnnouncedDate)

	fix := phaseResult(t, res, model.PhaseFixAberrant)
	assert.Equal(t, 2, fix.Processed)
	assert.Equal(t, 4, fix.Updated)
}

func TestRun_OrphanRepair(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()
	live := seedCompany(t, st, company.Company{Name: "Acme"})
	gone := seedCompany(t, st, company.Company{Name: "Globex"})
	orphan := seedRound(t, st, company.FundingRound{CompanyID: idPtr(gone.ID), Stage: "Seed", AmountUSD: floatPtr(1e6)})
	kept := seedRound(t, st, company.FundingRound{CompanyID: idPtr(live.ID), Stage: "Seed", AmountUSD: floatPtr(2e6)})
	unlinked := seedRound(t, st, company.FundingRound{CompanyName: "Hooli", Stage: "Seed", AmountUSD: floatPtr(3e6)})
	_, err := st.InsertEnrichment(ctx, gone.ID, "crunchbase", "")
	require.NoError(t, err)
	require.NoError(t, st.InTx(ctx, func(tx store.Tx) error { return tx.DeleteCompany(ctx, gone.ID) }))

	res := newTestEngine(st, testConfig()).Run(ctx, Options{SkipPhases: dedupSkip})
	require.Equal(t, model.RunStatusCompleted, res.Status, "errors: %v", res.Errors)
	assert.Equal(t, 2, phaseResult(t, res, model.PhaseRemoveOrphans).Updated)

	_, err = st.GetRound(ctx, orphan.ID)
	assert.ErrorIs(t, err, store.ErrNotFound)
	_, err = st.GetRound(ctx, kept.ID)
	assert.NoError(t, err)
	_, err = st.GetRound(ctx, unlinked.ID)
	assert.NoError(t, err, "rounds with a null company reference are not orphans")

	n, err := st.CountEnrichments(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestRun_NormalizationIsIdempotent(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()
	usa := seedCompany(t, st, company.Company{Name: "Acme", Country: "USA", Industry: "financial technology"})
	berlin := seedCompany(t, st, company.Company{Name: "Globex", Headquarters: "Berlin, Germany"})
	narnia := seedCompany(t, st, company.Company{Name: "Initech", Country: "Narnia"})
	r := seedRound(t, st, company.FundingRound{
		CompanyID: idPtr(usa.ID), Stage: "series a", Sector: "payments",
		AmountUSD: floatPtr(8e6), AnnouncedDate: datePtr("2024-02-10"),
	})
	eng := newTestEngine(st, testConfig())

	res := eng.Run(ctx, Options{SkipPhases: dedupSkip})
	require.Equal(t, model.RunStatusCompleted, res.Status, "errors: %v", res.Errors)
	countries := phaseResult(t, res, model.PhaseNormalizeCountries)
	assert.Equal(t, 2, countries.Updated)
	assert.Equal(t, 1, countries.Flagged)

	got, err := st.GetCompany(ctx, usa.ID)
	require.NoError(t, err)
	assert.Equal(t, "United States", got.Country)
	assert.Equal(t, "Fintech", got.Industry)
	got, err = st.GetCompany(ctx, berlin.ID)
	require.NoError(t, err)
	assert.Equal(t, "Germany", got.Country)
	got, err = st.GetCompany(ctx, narnia.ID)
	require.NoError(t, err)
	assert.Equal(t, "Narnia", got.Country, "unmapped values are left untouched")

	gotR, err := st.GetRound(ctx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, "Series A", gotR.Stage)
	assert.Equal(t, "payments", gotR.Sector)
	assert.Equal(t, "Fintech", gotR.SectorNormalized)

	again := eng.Run(ctx, Options{SkipPhases: dedupSkip})
	require.Equal(t, model.RunStatusCompleted, again.Status)
	for _, p := range []model.Phase{model.PhaseNormalizeCountries, model.PhaseNormalizeStages, model.PhaseNormalizeIndustries} {
		assert.Zero(t, phaseResult(t, again, p).Updated, "phase %s rewrote values on second run", p)
	}
}

func TestRun_RemoveInvalid(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()
	placeholder := seedCompany(t, st, company.Company{Name: "N/A"})
	referenced := seedCompany(t, st, company.Company{Name: "unknown"})
	acme := seedCompany(t, st, company.Company{Name: "Acme"})
	seedRound(t, st, company.FundingRound{CompanyID: idPtr(referenced.ID), Stage: "Seed"})
	empty := seedRound(t, st, company.FundingRound{CompanyID: idPtr(acme.ID), Source: "scraper"})

	res := newTestEngine(st, testConfig()).Run(ctx, Options{SkipPhases: dedupSkip})
	require.Equal(t, model.RunStatusCompleted, res.Status, "errors: %v", res.Errors)
	assert.Equal(t, 2, phaseResult(t, res, model.PhaseRemoveInvalid).Updated)

	_, err := st.GetCompany(ctx, placeholder.ID)
	assert.ErrorIs(t, err, store.ErrNotFound)
	_, err = st.GetCompany(ctx, referenced.ID)
	assert.NoError(t, err, "placeholder with related rows is kept")
	_, err = st.GetRound(ctx, empty.ID)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestRun_CorrectiveGroupRollsBack(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()
	c := seedCompany(t, st, company.Company{Name: "Acme", Country: "USA", FoundedYear: intPtr(2099)})

	fs := &faultStore{Store: st, wrap: func(tx store.Tx) store.Tx {
		return &faultTx{Tx: tx, nullColumn: func() error { return errors.New("disk I/O error") }}
	}}
	cfg := testConfig()
	cfg.FailureThreshold = 10

	res := newTestEngine(fs, cfg).Run(ctx, Options{SkipPhases: dedupSkip})
	assert.Equal(t, model.RunStatusPartial, res.Status)
	assert.Zero(t, res.ItemsUpdated)
	require.Len(t, res.Errors, len(correctivePhases))
	for _, e := range res.Errors {
		assert.Equal(t, model.ErrorKindPhase, e.Kind)
	}
	assert.Equal(t, model.PhaseStatusFailed, phaseResult(t, res, model.PhaseFixAberrant).Status)
	countries := phaseResult(t, res, model.PhaseNormalizeCountries)
	assert.Equal(t, model.PhaseStatusRolledBack, countries.Status)
	assert.Zero(t, countries.Updated)

	got, err := st.GetCompany(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, "USA", got.Country)
	require.NotNil(t, got.FoundedYear)
}

// stallStore never starts a transaction before the context expires.
type stallStore struct{ store.Store }

func (stallStore) InTx(ctx context.Context, _ func(tx store.Tx) error) error {
	<-ctx.Done()
	return ctx.Err()
}

func TestRun_CorrectiveTimeout(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()
	seedCompany(t, st, company.Company{Name: "Acme", Country: "USA"})
	cfg := testConfig()
	cfg.CorrectiveTimeout = 20 * time.Millisecond

	res := newTestEngine(stallStore{st}, cfg).Run(ctx, Options{SkipPhases: dedupSkip})
	assert.Equal(t, model.RunStatusFailed, res.Status)
	require.Len(t, res.Errors, len(correctivePhases))
	for _, e := range res.Errors {
		assert.Equal(t, model.ErrorKindTimeout, e.Kind)
	}
	for _, p := range correctivePhases {
		assert.Equal(t, model.PhaseStatusRolledBack, phaseResult(t, res, p).Status)
	}
}

func TestIsPlaceholderName(t *testing.T) {
	for _, name := range []string{"", "  ", "N/A", "unknown", "TBD", "-", "null"} {
		assert.True(t, IsPlaceholderName(name), name)
	}
	for _, name := range []string{"Acme", "Unknown Labs", "NA Capital"} {
		assert.False(t, IsPlaceholderName(name), name)
	}
}
