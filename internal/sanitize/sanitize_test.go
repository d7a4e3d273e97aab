package sanitize

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/hygiene-cli/internal/company"
)

var now = time.Date(2026, 6, 15, 12, 0, 0, 0, time.UTC)

func ptr[T any](v T) *T { return &v }

func TestCheckFoundedYear(t *testing.T) {
	tests := []struct {
		year  *int
		fixes int
	}{
		{nil, 0},
		{ptr(1899), 1},
		{ptr(1900), 0},
		{ptr(2027), 0},
		{ptr(2028), 1},
		{ptr(2099), 1},
	}
	for _, tt := range tests {
		c := &company.Company{ID: 1, FoundedYear: tt.year}
		assert.Len(t, CheckFoundedYear(c, now), tt.fixes)
	}
}

func TestCompany_AllChecks(t *testing.T) {
	c := &company.Company{
		ID:             5,
		FoundedYear:    ptr(2099),
		EmployeeCount:  ptr(-3),
		TotalRaisedUSD: ptr(-1.5),
		QualityScore:   ptr(140.0),
	}

	fixes := Company(c, now)
	require.Len(t, fixes, 4)
	cols := map[string]Fix{}
	for _, f := range fixes {
		assert.Equal(t, "companies", f.Table)
		assert.Equal(t, int64(5), f.ID)
		cols[f.Column] = f
	}
	assert.Equal(t, "2099", cols["founded_year"].Value)
	assert.Equal(t, "-3", cols["employee_count"].Value)
	assert.Equal(t, "-1.5", cols["total_raised_usd"].Value)
	assert.Equal(t, "score outside [0, 100]", cols["quality_score"].Reason)
}

func TestCompany_Clean(t *testing.T) {
	c := &company.Company{ID: 1, FoundedYear: ptr(2012), EmployeeCount: ptr(0), TotalRaisedUSD: ptr(0.0), QualityScore: ptr(100.0)}
	assert.Empty(t, Company(c, now))
}

func TestCheckRoundAmount_NullsBoth(t *testing.T) {
	r := &company.FundingRound{ID: 9, Amount: ptr(450e9), AmountUSD: ptr(500e9)}

	fixes := CheckRoundAmount(r, now)
	require.Len(t, fixes, 2)
	assert.Equal(t, "amount", fixes[0].Column)
	assert.Equal(t, "amount_usd", fixes[1].Column)
	assert.Equal(t, "amount above $100B ceiling", fixes[0].Reason)
}

func TestCheckRoundAmount_OnlyUSDBad(t *testing.T) {
	r := &company.FundingRound{ID: 9, Amount: ptr(5e6), AmountUSD: ptr(-5e6)}
	fixes := CheckRoundAmount(r, now)
	require.Len(t, fixes, 2)
	assert.Equal(t, "negative amount", fixes[1].Reason)
}

func TestCheckRoundAmount_CeilingByCurrency(t *testing.T) {
	tests := []struct {
		name  string
		round company.FundingRound
		want  int
	}{
		{"large KRW amount with sane USD", company.FundingRound{Amount: ptr(1.5e11), Currency: "KRW", AmountUSD: ptr(1.1e8)}, 0},
		{"large JPY amount without USD", company.FundingRound{Amount: ptr(2e12), Currency: "JPY"}, 0},
		{"USD amount above ceiling", company.FundingRound{Amount: ptr(5e11), Currency: "USD", AmountUSD: ptr(5e11)}, 2},
		{"lower-case usd", company.FundingRound{Amount: ptr(5e11), Currency: "usd"}, 1},
		{"unknown currency", company.FundingRound{Amount: ptr(5e11)}, 1},
		{"KRW with USD above ceiling", company.FundingRound{Amount: ptr(1.5e14), Currency: "KRW", AmountUSD: ptr(1.1e11)}, 2},
		{"negative KRW amount", company.FundingRound{Amount: ptr(-1.0), Currency: "KRW", AmountUSD: ptr(1e6)}, 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Len(t, CheckRoundAmount(&tt.round, now), tt.want)
		})
	}
}

func TestCheckRoundAmount_Valid(t *testing.T) {
	assert.Empty(t, CheckRoundAmount(&company.FundingRound{Amount: ptr(1e8)}, now))
	assert.Empty(t, CheckRoundAmount(&company.FundingRound{AmountUSD: ptr(MaxRoundAmount)}, now))
	assert.Empty(t, CheckRoundAmount(&company.FundingRound{}, now))
}

func TestCheckAnnouncedDate(t *testing.T) {
	future := now.Add(48 * time.Hour)
	old := time.Date(1985, 5, 1, 0, 0, 0, 0, time.UTC)
	ok := time.Date(2020, 5, 1, 0, 0, 0, 0, time.UTC)

	assert.Equal(t, "date in the future", CheckAnnouncedDate(&company.FundingRound{AnnouncedDate: &future}, now)[0].Reason)
	assert.Equal(t, "date before 1990", CheckAnnouncedDate(&company.FundingRound{AnnouncedDate: &old}, now)[0].Reason)
	assert.Empty(t, CheckAnnouncedDate(&company.FundingRound{AnnouncedDate: &ok}, now))
	assert.Empty(t, CheckAnnouncedDate(&company.FundingRound{}, now))
}

func TestRound_Commutative(t *testing.T) {
	future := now.Add(time.Hour)
	r := &company.FundingRound{ID: 2, AmountUSD: ptr(5e11), AnnouncedDate: &future}

	forward := Round(r, now)
	var backward []Fix
	for i := len(RoundChecks) - 1; i >= 0; i-- {
		backward = append(backward, RoundChecks[i](r, now)...)
	}
	assert.ElementsMatch(t, forward, backward)
}
