package resolve

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/sells-group/hygiene-cli/internal/company"
	"github.com/sells-group/hygiene-cli/internal/model"
)

type mapCanon map[string]string

func (m mapCanon) Canonical(raw string) (string, bool) {
	v, ok := m[strings.ToLower(strings.TrimSpace(raw))]
	return v, ok
}

func newTestResolver(th Thresholds) *Resolver {
	countries := mapCanon{"fr": "France", "france": "France", "us": "United States", "usa": "United States"}
	return NewResolver(NewScorer(DefaultWeights()), th, countries, zap.NewNop())
}

func intPtr(v int) *int           { return &v }
func floatPtr(v float64) *float64 { return &v }
func idPtr(v int64) *int64        { return &v }

func datePtr(s string) *time.Time {
	d, _ := time.Parse("2006-01-02", s)
	return &d
}

func TestResolveCompanies_ExactNormalizedMatch(t *testing.T) {
	r := newTestResolver(DefaultThresholds())
	group := []company.Company{
		{ID: 1, Name: "Acme Inc"},
		{ID: 2, Name: "ACME, Ltd."},
	}

	merges := r.ResolveCompanies(group, IDSet{})
	require.Len(t, merges, 1)
	assert.Equal(t, int64(1), merges[0].KeepID)
	assert.Equal(t, int64(2), merges[0].MergeID)
	assert.Equal(t, model.EntityCompany, merges[0].Entity)
	assert.Contains(t, merges[0].Justification, "exact normalized match")
}

func TestResolveCompanies_CompletenessPicksKeep(t *testing.T) {
	r := newTestResolver(DefaultThresholds())
	// A has three populated optional fields; B has one plus five rounds.
	a := company.Company{ID: 1, Name: "Acme", Description: "Widgets", Industry: "Manufacturing", Headquarters: "Paris"}
	b := company.Company{ID: 2, Name: "Acme Inc", Industry: "Manufacturing", RoundCount: 5}
	require.Greater(t, Completeness(&b), Completeness(&a))

	merges := r.ResolveCompanies([]company.Company{a, b}, IDSet{})
	require.Len(t, merges, 1)
	assert.Equal(t, int64(2), merges[0].KeepID)
	assert.Equal(t, int64(1), merges[0].MergeID)
	assert.Contains(t, merges[0].FieldsTransferred, "description")
	assert.Contains(t, merges[0].FieldsTransferred, "headquarters")
	assert.NotContains(t, merges[0].FieldsTransferred, "industry")
}

func TestResolveCompanies_TieKeepsLowerID(t *testing.T) {
	r := newTestResolver(DefaultThresholds())
	merges := r.ResolveCompanies([]company.Company{
		{ID: 9, Name: "Globex"},
		{ID: 4, Name: "Globex Corp"},
	}, IDSet{})
	require.Len(t, merges, 1)
	assert.Equal(t, int64(4), merges[0].KeepID)
}

func TestResolveCompanies_VisitedSetPreventsReuse(t *testing.T) {
	r := newTestResolver(DefaultThresholds())
	group := []company.Company{
		{ID: 1, Name: "Acme"},
		{ID: 2, Name: "Acme Inc"},
		{ID: 3, Name: "Acme LLC"},
	}

	visited := IDSet{}
	merges := r.ResolveCompanies(group, visited)
	require.Len(t, merges, 2)

	mergedAway := map[int64]bool{}
	for _, m := range merges {
		assert.Equal(t, int64(1), m.KeepID)
		assert.False(t, mergedAway[m.MergeID], "id merged twice")
		mergedAway[m.MergeID] = true
	}
	assert.True(t, visited.Has(2))
	assert.True(t, visited.Has(3))
	assert.False(t, visited.Has(1))
}

func TestResolveCompanies_PreVisitedSkipped(t *testing.T) {
	r := newTestResolver(DefaultThresholds())
	visited := IDSet{}
	visited.Add(2)

	merges := r.ResolveCompanies([]company.Company{{ID: 1, Name: "Acme"}, {ID: 2, Name: "Acme"}}, visited)
	assert.Empty(t, merges)
}

func TestResolveCompanies_ModerateNeedsSameCountry(t *testing.T) {
	r := newTestResolver(Thresholds{High: 0.99, Moderate: 0.5})

	same := r.ResolveCompanies([]company.Company{
		{ID: 1, Name: "Doctolib", Country: "France"},
		{ID: 2, Name: "Doctolibe", Country: "FR"},
	}, IDSet{})
	require.Len(t, same, 1)
	assert.Contains(t, same[0].Justification, "same country (France)")

	diff := r.ResolveCompanies([]company.Company{
		{ID: 1, Name: "Doctolib", Country: "France"},
		{ID: 2, Name: "Doctolibe", Country: "USA"},
	}, IDSet{})
	assert.Empty(t, diff)
}

func TestResolveCompanies_HeadquartersFallback(t *testing.T) {
	r := newTestResolver(Thresholds{High: 0.99, Moderate: 0.5})
	merges := r.ResolveCompanies([]company.Company{
		{ID: 1, Name: "Doctolib", Headquarters: "Paris"},
		{ID: 2, Name: "Doctolibe", Headquarters: "paris"},
	}, IDSet{})
	require.Len(t, merges, 1)
	assert.Contains(t, merges[0].Justification, "same headquarters")
}

func TestResolveCompanies_Unrelated(t *testing.T) {
	r := newTestResolver(DefaultThresholds())
	merges := r.ResolveCompanies([]company.Company{
		{ID: 1, Name: "Apple", Country: "US"},
		{ID: 2, Name: "Microsoft", Country: "US"},
	}, IDSet{})
	assert.Empty(t, merges)
}

func TestPlanCompanyMerge_DoesNotMutateKeep(t *testing.T) {
	keep := &company.Company{ID: 1, Name: "Acme"}
	merge := &company.Company{ID: 2, Name: "Acme Inc", Website: "acme.com", RoundCount: 2, EnrichmentCount: 1}

	pm := PlanCompanyMerge(keep, merge, model.Similarity{Combined: 1}, []string{"exact normalized match"})
	assert.Equal(t, []string{"website"}, pm.FieldsTransferred)
	assert.Equal(t, int64(2), pm.ChildrenMoved[ChildFundingRounds])
	assert.Equal(t, int64(1), pm.ChildrenMoved[ChildEnrichments])
	assert.Empty(t, keep.Website)
}

func TestMergeCompany_NeverOverwrites(t *testing.T) {
	keep := &company.Company{Industry: "fintech", FoundedYear: intPtr(2010)}
	src := &company.Company{Industry: "banking", FoundedYear: intPtr(1999), EmployeeCount: intPtr(40)}

	fields := MergeCompany(keep, src)
	assert.Equal(t, "fintech", keep.Industry)
	assert.Equal(t, 2010, *keep.FoundedYear)
	require.NotNil(t, keep.EmployeeCount)
	assert.Equal(t, 40, *keep.EmployeeCount)
	assert.Equal(t, []string{"employee_count"}, fields)
}

func TestMergeCompany_FounderUnion(t *testing.T) {
	keep := &company.Company{Founders: []company.Founder{{Name: "Alice"}}}
	src := &company.Company{Founders: []company.Founder{{Name: "alice", Title: "CEO"}, {Name: "Bob"}}}

	fields := MergeCompany(keep, src)
	require.Len(t, keep.Founders, 2)
	assert.Equal(t, "Alice", keep.Founders[0].Name)
	assert.Equal(t, "CEO", keep.Founders[0].Title)
	assert.Equal(t, "Bob", keep.Founders[1].Name)
	assert.Contains(t, fields, "founders")
}

func TestMergeCompany_ListUnionDedup(t *testing.T) {
	keep := &company.Company{Competitors: []string{"Globex"}, Aliases: []string{"ACME SA"}}
	src := &company.Company{Competitors: []string{"globex", "Initech"}, Aliases: []string{"acme sa"}, NotableClients: []string{"Umbrella"}}

	fields := MergeCompany(keep, src)
	assert.Equal(t, []string{"Globex", "Initech"}, keep.Competitors)
	assert.Equal(t, []string{"ACME SA"}, keep.Aliases)
	assert.Equal(t, []string{"Umbrella"}, keep.NotableClients)
	assert.Equal(t, []string{"competitors", "notable_clients"}, fields)
}

func TestAddAlias(t *testing.T) {
	keep := &company.Company{Name: "Acme", Aliases: []string{"Acme Labs"}}

	assert.False(t, AddAlias(keep, "ACME"))
	assert.False(t, AddAlias(keep, "acme labs"))
	assert.False(t, AddAlias(keep, " "))
	assert.True(t, AddAlias(keep, "Acme Inc"))
	assert.Equal(t, []string{"Acme Labs", "Acme Inc"}, keep.Aliases)
}

func TestRoundKey(t *testing.T) {
	stages := mapCanon{"series a": "Series A", "a round": "Series A"}
	r1 := &company.FundingRound{CompanyID: idPtr(7), Stage: "A round", AnnouncedDate: datePtr("2023-04-02")}
	r2 := &company.FundingRound{CompanyID: idPtr(7), Stage: "Series A", AnnouncedDate: datePtr("2023-04-28")}

	assert.Equal(t, "7|series a|2023-04", RoundKey(r1, stages))
	assert.Equal(t, RoundKey(r1, stages), RoundKey(r2, stages))
	assert.Equal(t, "", RoundKey(&company.FundingRound{Stage: "Seed"}, stages))
}

func TestResolveRounds(t *testing.T) {
	r := newTestResolver(DefaultThresholds())
	group := []company.FundingRound{
		{ID: 10, CompanyID: idPtr(1), Stage: "Series A", AmountUSD: floatPtr(10_000_000), AnnouncedDate: datePtr("2023-04-02")},
		{ID: 11, CompanyID: idPtr(1), Stage: "Series A", AmountUSD: floatPtr(10_500_000), AnnouncedDate: datePtr("2023-04-05"),
			Investors: []string{"Accel"}, LeadInvestor: "Accel", SourceURL: "https://news.example/a"},
		{ID: 12, CompanyID: idPtr(1), Stage: "Series A", AmountUSD: floatPtr(25_000_000), AnnouncedDate: datePtr("2023-04-20")},
	}

	merges := r.ResolveRounds(group, IDSet{})
	require.Len(t, merges, 1)
	assert.Equal(t, model.EntityFundingRound, merges[0].Entity)
	assert.Equal(t, int64(11), merges[0].KeepID)
	assert.Equal(t, int64(10), merges[0].MergeID)
	assert.Greater(t, merges[0].Score.Combined, 0.0)
}

func TestResolveRounds_MissingAmountIsCompatible(t *testing.T) {
	r := newTestResolver(DefaultThresholds())
	merges := r.ResolveRounds([]company.FundingRound{
		{ID: 1, CompanyID: idPtr(1), Stage: "Seed", AnnouncedDate: datePtr("2022-01-03")},
		{ID: 2, CompanyID: idPtr(1), Stage: "Seed", Amount: floatPtr(500_000), AnnouncedDate: datePtr("2022-01-10")},
	}, IDSet{})
	require.Len(t, merges, 1)
	assert.Equal(t, int64(2), merges[0].KeepID)
	assert.Contains(t, merges[0].Justification, "amount missing on one side")
}

func TestMergeRound_InvestorUnion(t *testing.T) {
	keep := &company.FundingRound{Investors: []string{"Accel"}, Amount: floatPtr(1)}
	src := &company.FundingRound{Investors: []string{"accel", "Index Ventures"}, Amount: floatPtr(2), Currency: "EUR"}

	fields := MergeRound(keep, src)
	assert.Equal(t, []string{"Accel", "Index Ventures"}, keep.Investors)
	assert.InDelta(t, 1.0, *keep.Amount, 0.0001)
	assert.Equal(t, "EUR", keep.Currency)
	assert.Equal(t, []string{"currency", "investors"}, fields)
}

func TestInvestorOverlap(t *testing.T) {
	assert.InDelta(t, 0.0, investorOverlap(nil, []string{"a"}), 0.0001)
	assert.InDelta(t, 1.0/3.0, investorOverlap([]string{"Accel", "Index"}, []string{"accel", "Balderton"}), 0.0001)
}
