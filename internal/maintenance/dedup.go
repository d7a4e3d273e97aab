package maintenance

import (
	"context"
	"errors"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/hygiene-cli/internal/company"
	"github.com/sells-group/hygiene-cli/internal/model"
	"github.com/sells-group/hygiene-cli/internal/resolve"
	"github.com/sells-group/hygiene-cli/internal/store"
)

// detectCompanyDuplicates groups every company by its name key and resolves
// each group. Only the id/name projection is held for the whole table; full
// records are loaded one group at a time.
func (e *Engine) detectCompanyDuplicates(ctx context.Context, r store.Reader) (findings, error) {
	g := resolve.NewGrouper(e.groupKey)
	var after int64
	for {
		page, err := r.PageCompanyNames(ctx, after, e.cfg.BatchSize)
		if err != nil {
			return findings{}, eris.Wrap(err, "maintenance: page company names")
		}
		for _, ref := range page {
			g.Add(ref.ID, ref.Name)
		}
		if len(page) < e.cfg.BatchSize {
			break
		}
		after = page[len(page)-1].ID
	}

	visited := resolve.IDSet{}
	var merges []model.PlannedMerge
	for _, grp := range g.Groups() {
		members, err := r.GetCompanies(ctx, grp.IDs)
		if err != nil {
			return findings{}, eris.Wrapf(err, "maintenance: load group %q", grp.Key)
		}
		merges = append(merges, e.resolver.ResolveCompanies(members, visited)...)
	}
	return findings{plan: model.Plan{Merges: merges}, processed: g.Seen()}, nil
}

// detectRoundDuplicates buckets rounds by company, canonical stage and
// month. Like company detection it holds only id/key pairs for the whole
// table and loads full rows one group at a time.
func (e *Engine) detectRoundDuplicates(ctx context.Context, r store.Reader) (findings, error) {
	g := resolve.NewGrouper(func(key string) string { return key })
	processed, err := e.eachRound(ctx, r, func(fr *company.FundingRound) {
		if key := resolve.RoundKey(fr, e.tax.Stages); key != "" {
			g.Add(fr.ID, key)
		}
	})
	if err != nil {
		return findings{}, err
	}

	visited := resolve.IDSet{}
	var merges []model.PlannedMerge
	for _, grp := range g.Groups() {
		members, err := r.GetRounds(ctx, grp.IDs)
		if err != nil {
			return findings{}, eris.Wrapf(err, "maintenance: load round group %q", grp.Key)
		}
		merges = append(merges, e.resolver.ResolveRounds(members, visited)...)
	}
	return findings{plan: model.Plan{Merges: merges}, processed: processed}, nil
}

// dedupPhase detects duplicates on the live store and executes each planned
// merge in its own transaction. A failed merge is counted and the phase
// continues with the next pair.
func (e *Engine) dedupPhase(ctx context.Context, p model.Phase, res *model.Result, pr *model.PhaseResult) error {
	detect := e.detectCompanyDuplicates
	if p == model.PhaseDedupRounds {
		detect = e.detectRoundDuplicates
	}
	f, err := detect(ctx, e.store)
	if err != nil {
		return errors.Join(ErrFetch, err)
	}
	pr.Processed = f.processed

	for _, pm := range f.plan.Merges {
		if err := ctx.Err(); err != nil {
			return eris.Wrap(err, "maintenance: dedup interrupted")
		}
		if _, err := e.merger.Merge(ctx, pm, res.RunID); err != nil {
			pr.Failed++
			res.Errors = append(res.Errors, model.RunError{
				Phase:   p,
				Kind:    model.ErrorKindMerge,
				Message: err.Error(),
			})
			e.log.Error("maintenance: merge failed",
				zap.String("phase", string(p)),
				zap.Int64("keep_id", pm.KeepID),
				zap.Int64("merge_id", pm.MergeID),
				zap.Error(err),
			)
			continue
		}
		pr.Updated++
	}
	return nil
}
