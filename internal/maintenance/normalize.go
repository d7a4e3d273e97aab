package maintenance

import (
	"context"
	"strings"

	"github.com/sells-group/hygiene-cli/internal/company"
	"github.com/sells-group/hygiene-cli/internal/model"
	"github.com/sells-group/hygiene-cli/internal/store"
	"github.com/sells-group/hygiene-cli/internal/taxonomy"
)

// normalizer accumulates rewrites and unmapped values for one phase.
type normalizer struct {
	phase model.Phase
	plan  model.Plan
}

// check queues a rewrite of column when raw maps to a different canonical
// value, or flags raw when it has no mapping. Blank values are ignored.
func (n *normalizer) check(t *taxonomy.Table, table, column string, id int64, raw string) {
	if strings.TrimSpace(raw) == "" {
		return
	}
	canon, ok := t.Canonical(raw)
	if !ok {
		n.flag(table, column, id, raw)
		return
	}
	if canon != raw {
		n.set(table, column, id, raw, canon)
	}
}

func (n *normalizer) set(table, column string, id int64, from, to string) {
	n.plan.Normalizations = append(n.plan.Normalizations, model.PlannedNormalization{
		Phase:  n.phase,
		Table:  table,
		Column: column,
		ID:     id,
		From:   from,
		To:     to,
	})
}

func (n *normalizer) flag(table, column string, id int64, value string) {
	n.plan.Unmapped = append(n.plan.Unmapped, model.UnmappedValue{
		Phase:  n.phase,
		Table:  table,
		Column: column,
		ID:     id,
		Value:  value,
	})
}

// detectCountries canonicalizes companies.country, inferring it from the
// headquarters when the column is blank.
func (e *Engine) detectCountries(ctx context.Context, r store.Reader) (findings, error) {
	n := &normalizer{phase: model.PhaseNormalizeCountries}
	processed, err := e.eachCompany(ctx, r, func(c *company.Company) {
		if strings.TrimSpace(c.Country) != "" {
			n.check(e.tax.Countries, store.TableCompanies, "country", c.ID, c.Country)
			return
		}
		if canon, ok := e.tax.CountryFromLocation(c.Headquarters); ok {
			n.set(store.TableCompanies, "country", c.ID, c.Country, canon)
		}
	})
	if err != nil {
		return findings{}, err
	}
	return findings{plan: n.plan, processed: processed}, nil
}

// detectStages canonicalizes funding_rounds.stage in place.
func (e *Engine) detectStages(ctx context.Context, r store.Reader) (findings, error) {
	n := &normalizer{phase: model.PhaseNormalizeStages}
	processed, err := e.eachRound(ctx, r, func(fr *company.FundingRound) {
		n.check(e.tax.Stages, store.TableRounds, "stage", fr.ID, fr.Stage)
	})
	if err != nil {
		return findings{}, err
	}
	return findings{plan: n.plan, processed: processed}, nil
}

// detectIndustries canonicalizes companies.industry and derives
// funding_rounds.sector_normalized from the raw sector.
func (e *Engine) detectIndustries(ctx context.Context, r store.Reader) (findings, error) {
	n := &normalizer{phase: model.PhaseNormalizeIndustries}
	nc, err := e.eachCompany(ctx, r, func(c *company.Company) {
		n.check(e.tax.Industries, store.TableCompanies, "industry", c.ID, c.Industry)
	})
	if err != nil {
		return findings{}, err
	}
	nr, err := e.eachRound(ctx, r, func(fr *company.FundingRound) {
		if strings.TrimSpace(fr.Sector) == "" {
			return
		}
		canon, ok := e.tax.Industries.Canonical(fr.Sector)
		if !ok {
			n.flag(store.TableRounds, "sector", fr.ID, fr.Sector)
			return
		}
		if canon != fr.SectorNormalized {
			n.set(store.TableRounds, "sector_normalized", fr.ID, fr.Sector, canon)
		}
	})
	if err != nil {
		return findings{}, err
	}
	return findings{plan: n.plan, processed: nc + nr}, nil
}
