// Package sanitize detects physically impossible values on company and
// funding round records. Every check is a pure function returning the fixes
// to apply; fixes only ever null a column, so they commute.
package sanitize

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/sells-group/hygiene-cli/internal/company"
)

// Bounds for plausible values.
const (
	MinFoundedYear   = 1900
	MinScore         = 0.0
	MaxScore         = 100.0
	MaxRoundAmount   = 100_000_000_000.0
	companiesTable   = "companies"
	fundingRoundsTbl = "funding_rounds"
)

// MinRoundDate is the earliest plausible announcement date.
var MinRoundDate = time.Date(1990, time.January, 1, 0, 0, 0, 0, time.UTC)

// Fix nulls one column of one row.
type Fix struct {
	Table  string `json:"table"`
	Column string `json:"column"`
	ID     int64  `json:"id"`
	Value  string `json:"value"`
	Reason string `json:"reason"`
}

// CompanyCheck inspects a company at time now.
type CompanyCheck func(c *company.Company, now time.Time) []Fix

// RoundCheck inspects a funding round at time now.
type RoundCheck func(r *company.FundingRound, now time.Time) []Fix

// CompanyChecks lists every company validator.
var CompanyChecks = []CompanyCheck{
	CheckFoundedYear,
	CheckEmployeeCount,
	CheckTotalRaised,
	CheckQualityScore,
}

// RoundChecks lists every funding round validator.
var RoundChecks = []RoundCheck{
	CheckRoundAmount,
	CheckAnnouncedDate,
}

// Company runs every company check.
func Company(c *company.Company, now time.Time) []Fix {
	var out []Fix
	for _, check := range CompanyChecks {
		out = append(out, check(c, now)...)
	}
	return out
}

// Round runs every funding round check.
func Round(r *company.FundingRound, now time.Time) []Fix {
	var out []Fix
	for _, check := range RoundChecks {
		out = append(out, check(r, now)...)
	}
	return out
}

// CheckFoundedYear nulls years outside [1900, currentYear+1].
func CheckFoundedYear(c *company.Company, now time.Time) []Fix {
	if c.FoundedYear == nil {
		return nil
	}
	y := *c.FoundedYear
	if y >= MinFoundedYear && y <= now.Year()+1 {
		return nil
	}
	return []Fix{{
		Table: companiesTable, Column: "founded_year", ID: c.ID,
		Value:  strconv.Itoa(y),
		Reason: fmt.Sprintf("founded year outside [%d, %d]", MinFoundedYear, now.Year()+1),
	}}
}

// CheckEmployeeCount nulls negative headcounts.
func CheckEmployeeCount(c *company.Company, _ time.Time) []Fix {
	if c.EmployeeCount == nil || *c.EmployeeCount >= 0 {
		return nil
	}
	return []Fix{{
		Table: companiesTable, Column: "employee_count", ID: c.ID,
		Value: strconv.Itoa(*c.EmployeeCount), Reason: "negative headcount",
	}}
}

// CheckTotalRaised nulls negative totals.
func CheckTotalRaised(c *company.Company, _ time.Time) []Fix {
	if c.TotalRaisedUSD == nil || *c.TotalRaisedUSD >= 0 {
		return nil
	}
	return []Fix{{
		Table: companiesTable, Column: "total_raised_usd", ID: c.ID,
		Value: formatFloat(*c.TotalRaisedUSD), Reason: "negative amount",
	}}
}

// CheckQualityScore nulls scores outside [0, 100].
func CheckQualityScore(c *company.Company, _ time.Time) []Fix {
	if c.QualityScore == nil {
		return nil
	}
	s := *c.QualityScore
	if s >= MinScore && s <= MaxScore {
		return nil
	}
	return []Fix{{
		Table: companiesTable, Column: "quality_score", ID: c.ID,
		Value: formatFloat(s), Reason: "score outside [0, 100]",
	}}
}

// CheckRoundAmount nulls amount and amount_usd together when either is
// negative or above the per-round ceiling. The ceiling is in dollars, so it
// applies to amount only when the round's currency is USD or unknown.
func CheckRoundAmount(r *company.FundingRound, _ time.Time) []Fix {
	cur := strings.TrimSpace(r.Currency)
	inUSD := cur == "" || strings.EqualFold(cur, "USD")

	var reason, value string
	check := func(v *float64, ceiling bool) {
		if v == nil || reason != "" {
			return
		}
		switch {
		case *v < 0:
			reason, value = "negative amount", formatFloat(*v)
		case ceiling && *v > MaxRoundAmount:
			reason, value = "amount above $100B ceiling", formatFloat(*v)
		}
	}
	check(r.Amount, inUSD)
	check(r.AmountUSD, true)
	if reason == "" {
		return nil
	}
	var out []Fix
	if r.Amount != nil {
		out = append(out, Fix{Table: fundingRoundsTbl, Column: "amount", ID: r.ID, Value: value, Reason: reason})
	}
	if r.AmountUSD != nil {
		out = append(out, Fix{Table: fundingRoundsTbl, Column: "amount_usd", ID: r.ID, Value: value, Reason: reason})
	}
	return out
}

// CheckAnnouncedDate nulls dates in the future or before 1990.
func CheckAnnouncedDate(r *company.FundingRound, now time.Time) []Fix {
	if r.AnnouncedDate == nil {
		return nil
	}
	d := *r.AnnouncedDate
	var reason string
	switch {
	case d.After(now):
		reason = "date in the future"
	case d.Before(MinRoundDate):
		reason = "date before 1990"
	default:
		return nil
	}
	return []Fix{{
		Table: fundingRoundsTbl, Column: "announced_date", ID: r.ID,
		Value: d.UTC().Format("2006-01-02"), Reason: reason,
	}}
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
