package maintenance

import (
	"context"

	"github.com/sells-group/hygiene-cli/internal/company"
	"github.com/sells-group/hygiene-cli/internal/model"
	"github.com/sells-group/hygiene-cli/internal/sanitize"
	"github.com/sells-group/hygiene-cli/internal/store"
)

// detectAberrant runs the sanitizer checks over every company and round.
func (e *Engine) detectAberrant(ctx context.Context, r store.Reader) (findings, error) {
	now := e.now()
	var plan model.Plan
	add := func(fixes []sanitize.Fix) {
		for _, f := range fixes {
			plan.Fixes = append(plan.Fixes, model.PlannedFix(f))
		}
	}

	nc, err := e.eachCompany(ctx, r, func(c *company.Company) {
		add(sanitize.Company(c, now))
	})
	if err != nil {
		return findings{}, err
	}
	nr, err := e.eachRound(ctx, r, func(fr *company.FundingRound) {
		add(sanitize.Round(fr, now))
	})
	if err != nil {
		return findings{}, err
	}
	return findings{plan: plan, processed: nc + nr}, nil
}
