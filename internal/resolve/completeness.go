package resolve

import (
	"github.com/sells-group/hygiene-cli/internal/company"
)

// Completeness weights. Related rows count more than any single field: a
// record that other tables point at is the cheaper one to keep.
const (
	weightWebsite      = 2.0
	weightField        = 1.0
	weightFounder      = 1.0
	maxFounderCredit   = 3
	weightListField    = 0.5
	weightRound        = 2.0
	weightEnrichment   = 1.0
	weightRoundField   = 1.0
	weightRoundInvest  = 0.5
	maxInvestorsCredit = 4
)

// Completeness scores how much useful data a company holds.
func Completeness(c *company.Company) float64 {
	score := 0.0
	if c.Website != "" {
		score += weightWebsite
	}
	for _, s := range []string{c.Description, c.Industry, c.Headquarters, c.Country, c.LinkedInURL} {
		if s != "" {
			score += weightField
		}
	}
	if c.FoundedYear != nil {
		score += weightField
	}
	if c.EmployeeCount != nil {
		score += weightField
	}
	if c.TotalRaisedUSD != nil {
		score += weightField
	}
	score += float64(min(len(c.Founders), maxFounderCredit)) * weightFounder
	if len(c.Competitors) > 0 {
		score += weightListField
	}
	if len(c.NotableClients) > 0 {
		score += weightListField
	}
	score += float64(c.RoundCount) * weightRound
	score += float64(c.EnrichmentCount) * weightEnrichment
	return score
}

// RoundCompleteness scores how much useful data a funding round holds.
func RoundCompleteness(r *company.FundingRound) float64 {
	score := 0.0
	if r.Amount != nil {
		score += weightRoundField
	}
	if r.AmountUSD != nil {
		score += weightRoundField
	}
	if r.AnnouncedDate != nil {
		score += weightRoundField
	}
	for _, s := range []string{r.Currency, r.LeadInvestor, r.Sector, r.SourceURL} {
		if s != "" {
			score += weightRoundField
		}
	}
	score += float64(min(len(r.Investors), maxInvestorsCredit)) * weightRoundInvest
	return score
}

// chooseKeep returns (keep, merge). The higher score keeps; ties go to the
// lower (older) id.
func chooseKeep[T any](a, b T, idA, idB int64, scoreA, scoreB float64) (keep, merge T) {
	switch {
	case scoreA > scoreB:
		return a, b
	case scoreB > scoreA:
		return b, a
	case idA <= idB:
		return a, b
	default:
		return b, a
	}
}
