// Package maintenance runs the data-quality phases over the company store:
// deduplication, normalization, invalid and orphan removal, and aberrant
// value repair.
package maintenance

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/sells-group/hygiene-cli/internal/model"
	"github.com/sells-group/hygiene-cli/internal/resilience"
	"github.com/sells-group/hygiene-cli/internal/resolve"
	"github.com/sells-group/hygiene-cli/internal/store"
	"github.com/sells-group/hygiene-cli/internal/taxonomy"
)

// LockName is the lease row a mutating run holds.
const LockName = "maintenance"

var (
	// ErrFetch marks a storage read failure that aborts the run.
	ErrFetch = eris.New("maintenance: storage unreachable")
	// ErrRunInProgress is reported when another run holds the lease.
	ErrRunInProgress = eris.New("maintenance: another run is in progress")
	// ErrUnknownPhase is reported for an unrecognized skip-phase id.
	ErrUnknownPhase = eris.New("maintenance: unknown phase")
)

// Config tunes the engine.
type Config struct {
	BatchSize          int
	CorrectiveTimeout  time.Duration
	FailureThreshold   int
	LockTTL            time.Duration
	PersistRuns        bool
	MaxMergesPerSecond float64
	BlockKey           string // "name" or "prefix"
	BlockPrefixLen     int
	Thresholds         resolve.Thresholds
	Weights            resolve.Weights
	Retry              resilience.RetryConfig
}

// DefaultConfig returns the engine defaults.
func DefaultConfig() Config {
	return Config{
		BatchSize:         500,
		CorrectiveTimeout: 5 * time.Minute,
		FailureThreshold:  5,
		LockTTL:           2 * time.Hour,
		BlockKey:          "name",
		BlockPrefixLen:    5,
		Thresholds:        resolve.DefaultThresholds(),
		Weights:           resolve.DefaultWeights(),
		Retry:             resilience.DefaultRetryConfig(),
	}
}

// Options are the per-invocation inputs.
type Options struct {
	DryRun     bool
	RunID      string
	SkipPhases []string
}

// Engine orchestrates a maintenance run.
type Engine struct {
	store    store.Store
	tax      *taxonomy.Taxonomy
	resolver *resolve.Resolver
	scorer   *resolve.Scorer
	groupKey resolve.KeyFunc
	merger   *Merger
	cfg      Config
	log      *zap.Logger
	now      func() time.Time
}

// New creates an Engine. A nil taxonomy uses the built-in tables; a nil
// logger discards output.
func New(st store.Store, tax *taxonomy.Taxonomy, cfg Config, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	if tax == nil {
		tax = taxonomy.Default()
	}
	def := DefaultConfig()
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = def.BatchSize
	}
	if cfg.CorrectiveTimeout <= 0 {
		cfg.CorrectiveTimeout = def.CorrectiveTimeout
	}
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = def.FailureThreshold
	}
	if cfg.LockTTL <= 0 {
		cfg.LockTTL = def.LockTTL
	}
	if cfg.Thresholds == (resolve.Thresholds{}) {
		cfg.Thresholds = def.Thresholds
	}
	if cfg.Weights == (resolve.Weights{}) {
		cfg.Weights = def.Weights
	}

	log := logger.With(zap.String("component", "maintenance"))
	scorer := resolve.NewScorer(cfg.Weights)
	e := &Engine{
		store:    st,
		tax:      tax,
		scorer:   scorer,
		resolver: resolve.NewResolver(scorer, cfg.Thresholds, tax.Countries, logger),
		groupKey: resolve.NameKey,
		cfg:      cfg,
		log:      log,
		now:      time.Now,
	}
	if cfg.BlockKey == "prefix" {
		e.groupKey = resolve.PrefixKey(cfg.BlockPrefixLen)
	}
	var limiter *rate.Limiter
	if cfg.MaxMergesPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.MaxMergesPerSecond), 1)
	}
	e.merger = NewMerger(st, cfg.Retry, limiter, logger)
	return e
}

// Run executes one maintenance run. It never returns an error: every
// failure is recorded in the Result.
func (e *Engine) Run(ctx context.Context, opts Options) (res *model.Result) {
	start := e.now()
	res = &model.Result{RunID: opts.RunID, DryRun: opts.DryRun, Details: []model.PhaseResult{}}
	log := e.log.With(zap.Bool("dry_run", opts.DryRun))

	var run *model.MaintenanceRun
	defer func() {
		if r := recover(); r != nil {
			log.Error("maintenance: run panicked",
				zap.Any("panic", r),
				zap.ByteString("stack", debug.Stack()),
			)
			res.Errors = append(res.Errors, model.RunError{
				Kind:    model.ErrorKindRun,
				Message: fmt.Sprintf("panic: %v", r),
			})
			res.Status = model.RunStatusFailed
			res.Success = false
		}
		res.DurationMs = e.now().Sub(start).Milliseconds()
		if run != nil {
			e.finishRun(ctx, run, res)
		}
		log.Info("maintenance: run finished",
			zap.String("run_id", res.RunID),
			zap.String("status", string(res.Status)),
			zap.Int("processed", res.ItemsProcessed),
			zap.Int("updated", res.ItemsUpdated),
			zap.Int("failed", res.ItemsFailed),
			zap.Int("errors", len(res.Errors)),
			zap.Int64("duration_ms", res.DurationMs),
		)
	}()

	skip, err := parseSkip(opts.SkipPhases)
	if err != nil {
		res.Errors = append(res.Errors, model.RunError{Kind: model.ErrorKindRun, Message: err.Error()})
		res.Status = model.RunStatusFailed
		return res
	}

	persist := opts.RunID != "" || e.cfg.PersistRuns
	if res.RunID == "" {
		res.RunID = uuid.New().String()
	}
	log = log.With(zap.String("run_id", res.RunID))

	if persist {
		run = &model.MaintenanceRun{
			ID:         res.RunID,
			Status:     model.RunStatusRunning,
			DryRun:     opts.DryRun,
			SkipPhases: skipList(skip),
			StartedAt:  start.UTC(),
		}
		if err := e.store.CreateRun(ctx, run); err != nil {
			log.Warn("maintenance: could not persist run", zap.Error(err))
			run = nil
		}
	}

	if _, err := e.store.CountCompanies(ctx); err != nil {
		e.fail(res, "", model.ErrorKindFetch, eris.Wrap(errors.Join(ErrFetch, err), "probe store"))
		return res
	}

	if opts.DryRun {
		e.dryRun(ctx, res, skip)
	} else {
		if err := e.store.AcquireLock(ctx, LockName, res.RunID, e.cfg.LockTTL); err != nil {
			if errors.Is(err, store.ErrLocked) {
				err = eris.Wrap(ErrRunInProgress, err.Error())
			}
			e.fail(res, "", model.ErrorKindRun, err)
			return res
		}
		defer func() {
			if err := e.store.ReleaseLock(context.WithoutCancel(ctx), LockName, res.RunID); err != nil {
				log.Warn("maintenance: release lock", zap.Error(err))
			}
		}()
		e.execute(ctx, res, skip, log)
	}

	res.Status = e.status(res)
	res.Success = res.Status != model.RunStatusFailed
	return res
}

// execute runs every non-skipped phase against the store. A storage read
// failure while detecting duplicates aborts the run.
func (e *Engine) execute(ctx context.Context, res *model.Result, skip map[model.Phase]bool, log *zap.Logger) {
	for _, p := range dedupPhases {
		if skip[p] {
			res.Details = append(res.Details, model.PhaseResult{Phase: p, Status: model.PhaseStatusSkipped})
			continue
		}
		var fetchErr error
		pr := e.trackPhase(log, p, func(pr *model.PhaseResult) error {
			err := e.dedupPhase(ctx, p, res, pr)
			if errors.Is(err, ErrFetch) {
				fetchErr = err
			}
			return err
		})
		e.record(res, pr)
		if fetchErr != nil {
			e.fail(res, p, model.ErrorKindFetch, fetchErr)
			return
		}
		if pr.Status == model.PhaseStatusFailed {
			res.Errors = append(res.Errors, model.RunError{Phase: p, Kind: model.ErrorKindPhase, Message: pr.Error})
		}
	}

	var group []model.Phase
	for _, p := range correctivePhases {
		if !skip[p] {
			group = append(group, p)
		}
	}
	var results []model.PhaseResult
	if len(group) > 0 {
		var errs []model.RunError
		results, errs = e.runCorrective(ctx, group, log)
		res.Errors = append(res.Errors, errs...)
	}

	// results follow correctivePhases order with skipped phases left out.
	next := 0
	for _, p := range correctivePhases {
		if skip[p] {
			res.Details = append(res.Details, model.PhaseResult{Phase: p, Status: model.PhaseStatusSkipped})
			continue
		}
		e.record(res, results[next])
		next++
	}
}

// trackPhase times fn and logs its outcome.
func (e *Engine) trackPhase(log *zap.Logger, p model.Phase, fn func(pr *model.PhaseResult) error) model.PhaseResult {
	pr := model.PhaseResult{Phase: p}
	start := e.now()
	err := fn(&pr)
	pr.DurationMs = e.now().Sub(start).Milliseconds()

	plog := log.With(zap.String("phase", string(p)), zap.Int64("duration_ms", pr.DurationMs))
	if err != nil {
		pr.Status = model.PhaseStatusFailed
		pr.Error = err.Error()
		plog.Error("maintenance: phase failed", zap.Error(err))
		return pr
	}
	if pr.Status == "" {
		pr.Status = model.PhaseStatusCompleted
	}
	plog.Info("maintenance: phase complete",
		zap.Int("processed", pr.Processed),
		zap.Int("updated", pr.Updated),
		zap.Int("failed", pr.Failed),
		zap.Int("flagged", pr.Flagged),
	)
	return pr
}

// record appends a phase result and folds its counters into the totals.
func (e *Engine) record(res *model.Result, pr model.PhaseResult) {
	res.Details = append(res.Details, pr)
	res.ItemsProcessed += pr.Processed
	res.ItemsUpdated += pr.Updated
	res.ItemsFailed += pr.Failed
	res.ItemsSkipped += pr.Skipped
}

func (e *Engine) fail(res *model.Result, p model.Phase, kind model.ErrorKind, err error) {
	e.log.Error("maintenance: run aborted", zap.String("kind", string(kind)), zap.Error(err))
	res.Errors = append(res.Errors, model.RunError{Phase: p, Kind: kind, Message: err.Error()})
	res.Status = model.RunStatusFailed
}

// status derives the terminal status from the collected errors.
func (e *Engine) status(res *model.Result) model.RunStatus {
	if res.Status == model.RunStatusFailed {
		return res.Status
	}
	for _, err := range res.Errors {
		if err.Kind == model.ErrorKindFetch || err.Kind == model.ErrorKindRun {
			return model.RunStatusFailed
		}
	}
	switch n := res.PhaseErrorCount(); {
	case len(res.Errors) == 0:
		return model.RunStatusCompleted
	case n >= e.cfg.FailureThreshold:
		return model.RunStatusFailed
	default:
		return model.RunStatusPartial
	}
}

func (e *Engine) finishRun(ctx context.Context, run *model.MaintenanceRun, res *model.Result) {
	run.Apply(res, e.now().UTC())
	if err := e.store.FinishRun(context.WithoutCancel(ctx), run); err != nil {
		e.log.Warn("maintenance: could not finish run", zap.String("run_id", run.ID), zap.Error(err))
	}
}

func parseSkip(ids []string) (map[model.Phase]bool, error) {
	skip := make(map[model.Phase]bool, len(ids))
	var unknown []string
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		p, ok := model.ParsePhase(id)
		if !ok {
			unknown = append(unknown, id)
			continue
		}
		skip[p] = true
	}
	if len(unknown) > 0 {
		return nil, eris.Wrapf(ErrUnknownPhase, "%s", strings.Join(unknown, ", "))
	}
	return skip, nil
}

func skipList(skip map[model.Phase]bool) []model.Phase {
	var out []model.Phase
	for _, p := range model.AllPhases {
		if skip[p] {
			out = append(out, p)
		}
	}
	return out
}
