package maintenance

import (
	"context"
	"errors"
	"slices"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/hygiene-cli/internal/model"
	"github.com/sells-group/hygiene-cli/internal/store"
)

// planConcurrency bounds the detectors running at once in a dry run.
const planConcurrency = 4

// planStages orders the dry-run detectors. Phases in one stage neither read
// nor write anything the others write, so they run concurrently against the
// same sandbox state; their findings are staged in phase order before the
// next stage starts.
var planStages = [][]model.Phase{
	{model.PhaseDedupCompanies},
	{model.PhaseDedupRounds},
	{model.PhaseRemoveInvalid},
	{model.PhaseNormalizeCountries, model.PhaseNormalizeStages, model.PhaseNormalizeIndustries, model.PhaseRemoveOrphans},
	{model.PhaseFixAberrant},
}

// detection is one detector's outcome in a dry run.
type detection struct {
	f   findings
	err error
	pr  model.PhaseResult
}

// dryRun replays every non-skipped phase against a sandbox over the store:
// merges and corrective writes are staged in memory, so each phase plans
// against the state the earlier phases of a real run would leave. The
// combined plan is attached to res. Item counters stay zero.
func (e *Engine) dryRun(ctx context.Context, res *model.Result, skip map[model.Phase]bool) {
	sb := store.NewSandbox(e.store)
	log := e.log.With(zap.String("run_id", res.RunID))
	plan := model.Plan{
		Merges:         []model.PlannedMerge{},
		Deletions:      []model.PlannedDeletion{},
		Normalizations: []model.PlannedNormalization{},
		Fixes:          []model.PlannedFix{},
	}
	details := make(map[model.Phase]model.PhaseResult, len(model.AllPhases))

	defer func() {
		for _, p := range model.AllPhases {
			if pr, ok := details[p]; ok {
				res.Details = append(res.Details, pr)
			}
		}
		plan.Estimate()
		plan.GeneratedAt = e.now().UTC()
		res.Plan = &plan
	}()

	for _, stage := range planStages {
		var phases []model.Phase
		for _, p := range stage {
			if skip[p] {
				details[p] = model.PhaseResult{Phase: p, Status: model.PhaseStatusSkipped}
				continue
			}
			phases = append(phases, p)
		}

		found := e.detectStage(ctx, sb, phases, log)
		for _, p := range phases {
			d := found[p]
			details[p] = d.pr
			if d.err != nil {
				if slices.Contains(dedupPhases, p) {
					e.fail(res, p, model.ErrorKindFetch, errors.Join(ErrFetch, d.err))
					return
				}
				res.Errors = append(res.Errors, model.RunError{Phase: p, Kind: model.ErrorKindPhase, Message: d.pr.Error})
				continue
			}
			if err := e.stageFindings(ctx, sb, p, d.f, res, &plan); err != nil {
				d.pr.Status = model.PhaseStatusFailed
				d.pr.Error = err.Error()
				details[p] = d.pr
				log.Error("maintenance: could not stage findings", zap.String("phase", string(p)), zap.Error(err))
				res.Errors = append(res.Errors, model.RunError{Phase: p, Kind: model.ErrorKindPhase, Message: d.pr.Error})
			}
		}
	}
}

// detectStage runs the detectors of one stage concurrently against sb.
func (e *Engine) detectStage(ctx context.Context, sb store.Tx, phases []model.Phase, log *zap.Logger) map[model.Phase]*detection {
	out := make(map[model.Phase]*detection, len(phases))
	for _, p := range phases {
		out[p] = &detection{}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(planConcurrency)
	for _, p := range phases {
		d := out[p]
		g.Go(func() error {
			d.pr = e.trackPhase(log, p, func(pr *model.PhaseResult) error {
				d.f, d.err = e.detector(p)(gctx, sb)
				if d.err != nil {
					return d.err
				}
				pr.Status = model.PhaseStatusPlanned
				pr.Flagged = len(d.f.plan.Unmapped)
				return nil
			})
			return nil // one failed detector must not cancel the others
		})
	}
	_ = g.Wait()
	return out
}

// stageFindings writes a phase's findings into the sandbox and adds them to
// plan. A merge that cannot be staged is reported and left out of the plan.
func (e *Engine) stageFindings(ctx context.Context, sb store.Tx, p model.Phase, f findings, res *model.Result, plan *model.Plan) error {
	if slices.Contains(dedupPhases, p) {
		for _, pm := range f.plan.Merges {
			if _, err := e.merger.MergeIn(ctx, sb, pm, res.RunID); err != nil {
				res.Errors = append(res.Errors, model.RunError{Phase: p, Kind: model.ErrorKindMerge, Message: err.Error()})
				continue
			}
			plan.Merges = append(plan.Merges, pm)
		}
		return nil
	}

	if _, err := e.apply(ctx, sb, f.plan); err != nil {
		return err
	}
	plan.Deletions = append(plan.Deletions, f.plan.Deletions...)
	plan.Normalizations = append(plan.Normalizations, f.plan.Normalizations...)
	plan.Unmapped = append(plan.Unmapped, f.plan.Unmapped...)
	plan.Fixes = append(plan.Fixes, f.plan.Fixes...)
	return nil
}
