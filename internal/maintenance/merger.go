package maintenance

import (
	"context"
	"fmt"
	"slices"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/sells-group/hygiene-cli/internal/company"
	"github.com/sells-group/hygiene-cli/internal/model"
	"github.com/sells-group/hygiene-cli/internal/resilience"
	"github.com/sells-group/hygiene-cli/internal/resolve"
	"github.com/sells-group/hygiene-cli/internal/store"
)

// Merger executes one merge per transaction. Transfers are recomputed from
// the rows as they are inside the transaction, not from the plan.
type Merger struct {
	store   store.Store
	retry   resilience.RetryConfig
	limiter *rate.Limiter
	log     *zap.Logger
}

// NewMerger creates a Merger. limiter may be nil for unthrottled merges.
func NewMerger(st store.Store, retry resilience.RetryConfig, limiter *rate.Limiter, logger *zap.Logger) *Merger {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Merger{
		store:   st,
		retry:   retry,
		limiter: limiter,
		log:     logger.With(zap.String("component", "merger")),
	}
}

// Merge executes a planned merge of either entity kind in its own
// transaction.
func (m *Merger) Merge(ctx context.Context, pm model.PlannedMerge, runID string) (*model.MergeLogEntry, error) {
	switch pm.Entity {
	case model.EntityCompany:
		return m.MergeCompanies(ctx, pm.KeepID, pm.MergeID, pm.Score, pm.Justification, runID)
	case model.EntityFundingRound:
		return m.MergeRounds(ctx, pm.KeepID, pm.MergeID, pm.Score, pm.Justification, runID)
	default:
		return nil, eris.Errorf("merger: unknown entity %q", pm.Entity)
	}
}

// MergeIn applies a planned merge through tx without retrying or
// throttling. Dry runs use it to stage merges in a sandbox.
func (m *Merger) MergeIn(ctx context.Context, tx store.Tx, pm model.PlannedMerge, runID string) (*model.MergeLogEntry, error) {
	if pm.KeepID == pm.MergeID {
		return nil, eris.Errorf("merger: cannot merge %s %d into itself", pm.Entity, pm.KeepID)
	}
	switch pm.Entity {
	case model.EntityCompany:
		return mergeCompanies(ctx, tx, pm.KeepID, pm.MergeID, pm.Score, pm.Justification, runID)
	case model.EntityFundingRound:
		return mergeRounds(ctx, tx, pm.KeepID, pm.MergeID, pm.Score, pm.Justification, runID)
	default:
		return nil, eris.Errorf("merger: unknown entity %q", pm.Entity)
	}
}

// MergeCompanies folds mergeID into keepID: fills empty fields, unions list
// fields, re-parents child rows, writes the audit entry and deletes the merged
// row, all in one transaction.
func (m *Merger) MergeCompanies(ctx context.Context, keepID, mergeID int64, score model.Similarity, justification, runID string) (*model.MergeLogEntry, error) {
	if keepID == mergeID {
		return nil, eris.Errorf("merger: cannot merge company %d into itself", keepID)
	}
	op := fmt.Sprintf("merge company %d <- %d", keepID, mergeID)
	return m.withRetry(ctx, op, func(tx store.Tx) (*model.MergeLogEntry, error) {
		return mergeCompanies(ctx, tx, keepID, mergeID, score, justification, runID)
	})
}

// MergeRounds folds funding round mergeID into keepID.
func (m *Merger) MergeRounds(ctx context.Context, keepID, mergeID int64, score model.Similarity, justification, runID string) (*model.MergeLogEntry, error) {
	if keepID == mergeID {
		return nil, eris.Errorf("merger: cannot merge round %d into itself", keepID)
	}
	op := fmt.Sprintf("merge round %d <- %d", keepID, mergeID)
	return m.withRetry(ctx, op, func(tx store.Tx) (*model.MergeLogEntry, error) {
		return mergeRounds(ctx, tx, keepID, mergeID, score, justification, runID)
	})
}

func mergeCompanies(ctx context.Context, tx store.Tx, keepID, mergeID int64, score model.Similarity, justification, runID string) (*model.MergeLogEntry, error) {
	keep, err := tx.GetCompany(ctx, keepID)
	if err != nil {
		return nil, eris.Wrapf(err, "merger: load keep %d", keepID)
	}
	merge, err := tx.GetCompany(ctx, mergeID)
	if err != nil {
		return nil, eris.Wrapf(err, "merger: load merge %d", mergeID)
	}
	before := keep.Clone()

	fields := resolve.MergeCompany(keep, merge)
	if resolve.AddAlias(keep, merge.Name) && !slices.Contains(fields, "aliases") {
		fields = append(fields, "aliases")
	}

	moved := map[string]int64{}
	for _, ref := range store.ChildRefs {
		n, err := tx.ReparentChildren(ctx, ref, mergeID, keepID)
		if err != nil {
			return nil, eris.Wrapf(err, "merger: re-parent %s", ref.Table)
		}
		if n > 0 {
			moved[ref.Table] = n
		}
	}

	if err := tx.UpdateCompany(ctx, keep); err != nil {
		return nil, eris.Wrap(err, "merger: update keep")
	}
	after, err := tx.GetCompany(ctx, keepID)
	if err != nil {
		return nil, eris.Wrap(err, "merger: reload keep")
	}

	entry := &model.MergeLogEntry{
		Entity:            model.EntityCompany,
		KeptID:            keepID,
		MergedFromID:      mergeID,
		MergedFromName:    merge.Name,
		Before:            model.Snapshot{Company: before},
		After:             model.Snapshot{Company: after},
		FieldsTransferred: nonNil(fields),
		ChildrenMoved:     moved,
		Similarity:        score,
		Justification:     justification,
		RunID:             runID,
	}
	if err := tx.InsertMergeLog(ctx, entry); err != nil {
		return nil, eris.Wrap(err, "merger: write merge log")
	}
	if err := tx.DeleteCompany(ctx, mergeID); err != nil {
		return nil, eris.Wrapf(err, "merger: delete company %d", mergeID)
	}
	return entry, nil
}

func mergeRounds(ctx context.Context, tx store.Tx, keepID, mergeID int64, score model.Similarity, justification, runID string) (*model.MergeLogEntry, error) {
	keep, err := tx.GetRound(ctx, keepID)
	if err != nil {
		return nil, eris.Wrapf(err, "merger: load keep round %d", keepID)
	}
	merge, err := tx.GetRound(ctx, mergeID)
	if err != nil {
		return nil, eris.Wrapf(err, "merger: load merge round %d", mergeID)
	}
	before := keep.Clone()
	fields := resolve.MergeRound(keep, merge)

	if err := tx.UpdateRound(ctx, keep); err != nil {
		return nil, eris.Wrap(err, "merger: update keep round")
	}
	after, err := tx.GetRound(ctx, keepID)
	if err != nil {
		return nil, eris.Wrap(err, "merger: reload keep round")
	}

	entry := &model.MergeLogEntry{
		Entity:            model.EntityFundingRound,
		KeptID:            keepID,
		MergedFromID:      mergeID,
		MergedFromName:    roundName(merge),
		Before:            model.Snapshot{Round: before},
		After:             model.Snapshot{Round: after},
		FieldsTransferred: nonNil(fields),
		ChildrenMoved:     map[string]int64{},
		Similarity:        score,
		Justification:     justification,
		RunID:             runID,
	}
	if err := tx.InsertMergeLog(ctx, entry); err != nil {
		return nil, eris.Wrap(err, "merger: write merge log")
	}
	if err := tx.DeleteRound(ctx, mergeID); err != nil {
		return nil, eris.Wrapf(err, "merger: delete round %d", mergeID)
	}
	return entry, nil
}

// withRetry throttles, then runs fn in a fresh transaction per attempt.
func (m *Merger) withRetry(ctx context.Context, op string, fn func(tx store.Tx) (*model.MergeLogEntry, error)) (*model.MergeLogEntry, error) {
	if m.limiter != nil {
		if err := m.limiter.Wait(ctx); err != nil {
			return nil, eris.Wrap(err, "merger: rate limit wait")
		}
	}
	cfg := m.retry
	cfg.OnRetry = resilience.RetryLogger(m.log, op)

	entry, err := resilience.DoVal(ctx, cfg, func(ctx context.Context) (*model.MergeLogEntry, error) {
		var out *model.MergeLogEntry
		err := m.store.InTx(ctx, func(tx store.Tx) error {
			e, err := fn(tx)
			out = e
			return err
		})
		return out, err
	})
	if err != nil {
		return nil, err
	}
	m.log.Info("merge committed",
		zap.String("entity", string(entry.Entity)),
		zap.Int64("keep_id", entry.KeptID),
		zap.Int64("merge_id", entry.MergedFromID),
		zap.Strings("fields", entry.FieldsTransferred),
	)
	return entry, nil
}

func roundName(r *company.FundingRound) string {
	if r.CompanyName != "" && r.Stage != "" {
		return r.CompanyName + " " + r.Stage
	}
	if r.Stage != "" {
		return r.Stage
	}
	return fmt.Sprintf("round %d", r.ID)
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
