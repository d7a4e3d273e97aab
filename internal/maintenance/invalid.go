package maintenance

import (
	"context"
	"strings"

	"github.com/sells-group/hygiene-cli/internal/company"
	"github.com/sells-group/hygiene-cli/internal/model"
	"github.com/sells-group/hygiene-cli/internal/store"
)

// placeholderNames are names ingestion jobs write when the source had none.
var placeholderNames = map[string]bool{
	"":        true,
	"-":       true,
	"n/a":     true,
	"na":      true,
	"none":    true,
	"null":    true,
	"test":    true,
	"tbd":     true,
	"unknown": true,
}

// IsPlaceholderName reports whether name carries no identity.
func IsPlaceholderName(name string) bool {
	return placeholderNames[strings.ToLower(strings.TrimSpace(name))]
}

// isEmptyRound reports a round with no amount, date, stage or investors.
func isEmptyRound(r *company.FundingRound) bool {
	return r.Amount == nil && r.AmountUSD == nil && r.AnnouncedDate == nil &&
		strings.TrimSpace(r.Stage) == "" && len(r.Investors) == 0
}

// detectInvalid finds placeholder companies nothing references and rounds
// that carry no information.
func (e *Engine) detectInvalid(ctx context.Context, r store.Reader) (findings, error) {
	var plan model.Plan
	nc, err := e.eachCompany(ctx, r, func(c *company.Company) {
		if IsPlaceholderName(c.Name) && c.ChildCount() == 0 {
			plan.Deletions = append(plan.Deletions, model.PlannedDeletion{
				Phase:  model.PhaseRemoveInvalid,
				Table:  store.TableCompanies,
				ID:     c.ID,
				Reason: "placeholder name with no related records",
			})
		}
	})
	if err != nil {
		return findings{}, err
	}
	nr, err := e.eachRound(ctx, r, func(fr *company.FundingRound) {
		if isEmptyRound(fr) {
			plan.Deletions = append(plan.Deletions, model.PlannedDeletion{
				Phase:  model.PhaseRemoveInvalid,
				Table:  store.TableRounds,
				ID:     fr.ID,
				Reason: "funding round with no amount, date, stage or investors",
			})
		}
	})
	if err != nil {
		return findings{}, err
	}
	return findings{plan: plan, processed: nc + nr}, nil
}
