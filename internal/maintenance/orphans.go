package maintenance

import (
	"context"
	"fmt"

	"github.com/rotisserie/eris"

	"github.com/sells-group/hygiene-cli/internal/model"
	"github.com/sells-group/hygiene-cli/internal/store"
)

// detectOrphans finds child rows whose company reference points at a row
// that no longer exists. Null references are left alone.
func (e *Engine) detectOrphans(ctx context.Context, r store.Reader) (findings, error) {
	var plan model.Plan
	processed := 0
	for _, ref := range store.ChildRefs {
		var after int64
		for {
			ids, err := r.PageChildRefs(ctx, ref, after, e.cfg.BatchSize)
			if err != nil {
				return findings{}, eris.Wrapf(err, "maintenance: page %s.%s", ref.Table, ref.Column)
			}
			if len(ids) == 0 {
				break
			}
			live, err := r.ExistingCompanyIDs(ctx, ids)
			if err != nil {
				return findings{}, eris.Wrap(err, "maintenance: check parents")
			}
			for _, id := range ids {
				if live[id] {
					continue
				}
				plan.Deletions = append(plan.Deletions, model.PlannedDeletion{
					Phase:  model.PhaseRemoveOrphans,
					Table:  ref.Table,
					Column: ref.Column,
					ID:     id,
					Reason: fmt.Sprintf("references missing company %d", id),
				})
			}
			processed += len(ids)
			if len(ids) < e.cfg.BatchSize {
				break
			}
			after = ids[len(ids)-1]
		}
	}
	return findings{plan: plan, processed: processed}, nil
}
