package resolve

import (
	"strings"

	"github.com/sells-group/hygiene-cli/internal/company"
)

// MergeCompany fills fields that are empty on keep from src and unions the
// list fields. Populated keep fields are never overwritten. It returns the
// names of the fields that changed, in column order.
func MergeCompany(keep, src *company.Company) []string {
	var fields []string
	fill := func(name string, dst *string, v string) {
		if *dst == "" && v != "" {
			*dst = v
			fields = append(fields, name)
		}
	}
	fill("website", &keep.Website, src.Website)
	fill("description", &keep.Description, src.Description)
	fill("industry", &keep.Industry, src.Industry)
	fill("headquarters", &keep.Headquarters, src.Headquarters)
	fill("country", &keep.Country, src.Country)
	fill("linkedin_url", &keep.LinkedInURL, src.LinkedInURL)

	if fillPtr(&keep.FoundedYear, src.FoundedYear) {
		fields = append(fields, "founded_year")
	}
	if fillPtr(&keep.EmployeeCount, src.EmployeeCount) {
		fields = append(fields, "employee_count")
	}
	if fillPtr(&keep.TotalRaisedUSD, src.TotalRaisedUSD) {
		fields = append(fields, "total_raised_usd")
	}
	if fillPtr(&keep.QualityScore, src.QualityScore) {
		fields = append(fields, "quality_score")
	}

	var added bool
	if keep.Founders, added = unionFounders(keep.Founders, src.Founders); added {
		fields = append(fields, "founders")
	}
	if keep.Competitors, added = unionStrings(keep.Competitors, src.Competitors); added {
		fields = append(fields, "competitors")
	}
	if keep.NotableClients, added = unionStrings(keep.NotableClients, src.NotableClients); added {
		fields = append(fields, "notable_clients")
	}
	if keep.Aliases, added = unionStrings(keep.Aliases, src.Aliases); added {
		fields = append(fields, "aliases")
	}
	return fields
}

// AddAlias appends name to keep's aliases unless it is keep's own name or
// already listed (case and accent insensitive).
func AddAlias(keep *company.Company, name string) bool {
	name = strings.TrimSpace(name)
	if name == "" || NormalizeText(name) == NormalizeText(keep.Name) {
		return false
	}
	var added bool
	keep.Aliases, added = unionStrings(keep.Aliases, []string{name})
	return added
}

// MergeRound fills empty round fields from src and unions investors.
func MergeRound(keep, src *company.FundingRound) []string {
	var fields []string
	fill := func(name string, dst *string, v string) {
		if *dst == "" && v != "" {
			*dst = v
			fields = append(fields, name)
		}
	}
	fill("company_name", &keep.CompanyName, src.CompanyName)
	fill("stage", &keep.Stage, src.Stage)
	if fillPtr(&keep.Amount, src.Amount) {
		fields = append(fields, "amount")
	}
	fill("currency", &keep.Currency, src.Currency)
	if fillPtr(&keep.AmountUSD, src.AmountUSD) {
		fields = append(fields, "amount_usd")
	}
	if fillPtr(&keep.AnnouncedDate, src.AnnouncedDate) {
		fields = append(fields, "announced_date")
	}
	var added bool
	if keep.Investors, added = unionStrings(keep.Investors, src.Investors); added {
		fields = append(fields, "investors")
	}
	fill("lead_investor", &keep.LeadInvestor, src.LeadInvestor)
	fill("sector", &keep.Sector, src.Sector)
	fill("sector_normalized", &keep.SectorNormalized, src.SectorNormalized)
	fill("source", &keep.Source, src.Source)
	fill("source_url", &keep.SourceURL, src.SourceURL)
	return fields
}

func fillPtr[T any](dst **T, src *T) bool {
	if *dst != nil || src == nil {
		return false
	}
	v := *src
	*dst = &v
	return true
}

// unionStrings appends entries of extra not already in base, keyed by
// NormalizeText. Order of base is preserved.
func unionStrings(base, extra []string) ([]string, bool) {
	seen := make(map[string]bool, len(base))
	for _, s := range base {
		seen[NormalizeText(s)] = true
	}
	added := false
	for _, s := range extra {
		k := NormalizeText(s)
		if k == "" || seen[k] {
			continue
		}
		seen[k] = true
		base = append(base, s)
		added = true
	}
	return base, added
}

// unionFounders dedupes founders by normalized name. A founder already on
// keep gains a missing title or LinkedIn URL from the duplicate entry.
func unionFounders(base, extra []company.Founder) ([]company.Founder, bool) {
	idx := make(map[string]int, len(base))
	for i, f := range base {
		idx[NormalizeText(f.Name)] = i
	}
	changed := false
	for _, f := range extra {
		k := NormalizeText(f.Name)
		if k == "" {
			continue
		}
		if i, ok := idx[k]; ok {
			if base[i].Title == "" && f.Title != "" {
				base[i].Title = f.Title
				changed = true
			}
			if base[i].LinkedInURL == "" && f.LinkedInURL != "" {
				base[i].LinkedInURL = f.LinkedInURL
				changed = true
			}
			continue
		}
		idx[k] = len(base)
		base = append(base, f)
		changed = true
	}
	return base, changed
}
