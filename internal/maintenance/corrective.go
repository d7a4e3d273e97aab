package maintenance

import (
	"context"
	"errors"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/hygiene-cli/internal/company"
	"github.com/sells-group/hygiene-cli/internal/model"
	"github.com/sells-group/hygiene-cli/internal/store"
)

// dedupPhases run first, each merge in its own transaction.
var dedupPhases = []model.Phase{model.PhaseDedupCompanies, model.PhaseDedupRounds}

// correctivePhases share one transaction, in this order.
var correctivePhases = []model.Phase{
	model.PhaseRemoveInvalid,
	model.PhaseNormalizeCountries,
	model.PhaseNormalizeStages,
	model.PhaseNormalizeIndustries,
	model.PhaseRemoveOrphans,
	model.PhaseFixAberrant,
}

// findings is what a phase detector reports: the actions it would take and
// how many records it examined.
type findings struct {
	plan      model.Plan
	processed int
}

type detectFunc func(ctx context.Context, r store.Reader) (findings, error)

func (e *Engine) detector(p model.Phase) detectFunc {
	switch p {
	case model.PhaseDedupCompanies:
		return e.detectCompanyDuplicates
	case model.PhaseDedupRounds:
		return e.detectRoundDuplicates
	case model.PhaseRemoveInvalid:
		return e.detectInvalid
	case model.PhaseNormalizeCountries:
		return e.detectCountries
	case model.PhaseNormalizeStages:
		return e.detectStages
	case model.PhaseNormalizeIndustries:
		return e.detectIndustries
	case model.PhaseRemoveOrphans:
		return e.detectOrphans
	case model.PhaseFixAberrant:
		return e.detectAberrant
	}
	return nil
}

// runCorrective executes the corrective group in a single transaction bounded
// by the corrective timeout. If any phase fails the whole group is rolled
// back and every phase in it reports an error.
func (e *Engine) runCorrective(ctx context.Context, group []model.Phase, log *zap.Logger) ([]model.PhaseResult, []model.RunError) {
	tctx, cancel := context.WithTimeout(ctx, e.cfg.CorrectiveTimeout)
	defer cancel()

	results := make([]model.PhaseResult, 0, len(group))
	failed := -1
	err := e.store.InTx(tctx, func(tx store.Tx) error {
		if err := tx.SetTimeout(tctx, e.cfg.CorrectiveTimeout); err != nil {
			return eris.Wrap(err, "maintenance: set statement timeout")
		}
		for i, p := range group {
			pr := e.trackPhase(log, p, func(pr *model.PhaseResult) error {
				f, err := e.detector(p)(tctx, tx)
				if err != nil {
					return err
				}
				pr.Processed = f.processed
				pr.Flagged = len(f.plan.Unmapped)
				e.logUnmapped(log, f.plan.Unmapped)
				n, err := e.apply(tctx, tx, f.plan)
				pr.Updated = n
				return err
			})
			results = append(results, pr)
			if pr.Status == model.PhaseStatusFailed {
				failed = i
				return eris.Errorf("maintenance: phase %s failed: %s", p, pr.Error)
			}
		}
		return nil
	})
	if err == nil {
		return results, nil
	}

	kind := model.ErrorKindPhase
	if errors.Is(tctx.Err(), context.DeadlineExceeded) {
		kind = model.ErrorKindTimeout
	}
	log.Error("maintenance: corrective group rolled back",
		zap.String("kind", string(kind)),
		zap.Error(err),
	)

	out := make([]model.PhaseResult, len(group))
	errs := make([]model.RunError, len(group))
	for i, p := range group {
		pr := model.PhaseResult{Phase: p}
		if i < len(results) {
			pr = results[i]
		}
		pr.Updated = 0
		pr.Status = model.PhaseStatusRolledBack
		if i == failed {
			pr.Status = model.PhaseStatusFailed
		} else {
			pr.Error = err.Error()
		}
		out[i] = pr
		errs[i] = model.RunError{Phase: p, Kind: kind, Message: err.Error()}
	}
	return out, errs
}

// apply writes a phase's findings through tx and returns the rows affected.
func (e *Engine) apply(ctx context.Context, tx store.Tx, plan model.Plan) (int, error) {
	var total int64

	type target struct{ table, column string }

	var delOrder []target
	dels := map[target][]int64{}
	for _, d := range plan.Deletions {
		t := target{d.Table, d.Column}
		if _, ok := dels[t]; !ok {
			delOrder = append(delOrder, t)
		}
		dels[t] = append(dels[t], d.ID)
	}
	for _, t := range delOrder {
		var n int64
		var err error
		if t.column != "" {
			n, err = tx.DeleteByRef(ctx, store.ChildRef{Table: t.table, Column: t.column}, dels[t])
		} else {
			n, err = tx.DeleteRows(ctx, t.table, dels[t])
		}
		if err != nil {
			return int(total), eris.Wrapf(err, "maintenance: delete from %s", t.table)
		}
		total += n
	}

	var normOrder []target
	norms := map[target][]store.FieldUpdate{}
	for _, n := range plan.Normalizations {
		t := target{n.Table, n.Column}
		if _, ok := norms[t]; !ok {
			normOrder = append(normOrder, t)
		}
		norms[t] = append(norms[t], store.FieldUpdate{ID: n.ID, Value: n.To})
	}
	for _, t := range normOrder {
		n, err := tx.SetValues(ctx, t.table, t.column, norms[t])
		if err != nil {
			return int(total), eris.Wrapf(err, "maintenance: normalize %s.%s", t.table, t.column)
		}
		total += n
	}

	var fixOrder []target
	fixes := map[target][]int64{}
	for _, f := range plan.Fixes {
		t := target{f.Table, f.Column}
		if _, ok := fixes[t]; !ok {
			fixOrder = append(fixOrder, t)
		}
		fixes[t] = append(fixes[t], f.ID)
	}
	for _, t := range fixOrder {
		n, err := tx.NullColumn(ctx, t.table, t.column, fixes[t])
		if err != nil {
			return int(total), eris.Wrapf(err, "maintenance: null %s.%s", t.table, t.column)
		}
		total += n
	}
	return int(total), nil
}

func (e *Engine) logUnmapped(log *zap.Logger, values []model.UnmappedValue) {
	for _, u := range values {
		log.Warn("maintenance: unmapped value",
			zap.String("phase", string(u.Phase)),
			zap.String("table", u.Table),
			zap.String("column", u.Column),
			zap.Int64("id", u.ID),
			zap.String("value", u.Value),
		)
	}
}

// eachCompany pages through every company in id order.
func (e *Engine) eachCompany(ctx context.Context, r store.Reader, fn func(c *company.Company)) (int, error) {
	n := 0
	var after int64
	for {
		page, err := r.PageCompanies(ctx, after, e.cfg.BatchSize)
		if err != nil {
			return n, eris.Wrap(err, "maintenance: page companies")
		}
		for i := range page {
			fn(&page[i])
		}
		n += len(page)
		if len(page) < e.cfg.BatchSize {
			return n, nil
		}
		after = page[len(page)-1].ID
	}
}

// eachRound pages through every funding round in id order.
func (e *Engine) eachRound(ctx context.Context, r store.Reader, fn func(fr *company.FundingRound)) (int, error) {
	n := 0
	var after int64
	for {
		page, err := r.PageRounds(ctx, after, e.cfg.BatchSize)
		if err != nil {
			return n, eris.Wrap(err, "maintenance: page rounds")
		}
		for i := range page {
			fn(&page[i])
		}
		n += len(page)
		if len(page) < e.cfg.BatchSize {
			return n, nil
		}
		after = page[len(page)-1].ID
	}
}
