/*
engine.go - One billing pass per user action

PASS:
  1. List active policies and load the ledger (snapshot)
  2. Generate receipts from that snapshot and merge them
  3. Re-evaluate PENDING/OVERDUE against req.Today
  4. Apply the action's mutation (payment or cancellation) in memory
  5. Save the whole ledger once

  Any error before step 5 means nothing is written. Load and save failures
  surface as *StoreUnavailableError and the caller retries the action.

ORDERING:
  Generation always sees the ledger as loaded, before payment or
  cancellation touch it.

METRICS:
  Counters go to Engine.Metrics. A nil Metrics records nothing, so the core
  holds no process-wide state; the server injects a metrics.Collector.

CANCELLATION WRITES:
  The policy state is saved before the ledger. If the ledger save then
  fails, repeating CancelPolicy re-runs the cascade against the stored
  cancellation date and completes it.
*/
package cobranza

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ealc/cobranza/generic"
)

// Recorder receives the counters of each pass.
type Recorder interface {
	AddGenerated(n int)
	AddPaid(n int)
	AddCancelled(n int)
	IncSkipped(reason string)
	IncStoreError(op string)
	ObservePass(action string, err error, elapsed time.Duration)
}

type nopRecorder struct{}

func (nopRecorder) AddGenerated(int)                         {}
func (nopRecorder) AddPaid(int)                              {}
func (nopRecorder) AddCancelled(int)                         {}
func (nopRecorder) IncSkipped(string)                        {}
func (nopRecorder) IncStoreError(string)                     {}
func (nopRecorder) ObservePass(string, error, time.Duration) {}

// Engine wires the billing components to their stores.
type Engine struct {
	Policies PolicyStore
	Ledger   LedgerStore
	Logger   *zap.Logger
	Metrics  Recorder         // optional
	Now      func() time.Time // run timestamps; defaults to time.Now
}

func NewEngine(policies PolicyStore, ledger LedgerStore, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{Policies: policies, Ledger: ledger, Logger: logger, Now: time.Now}
}

// RunSummary describes the outcome of one pass.
type RunSummary struct {
	RunID                string
	Action               RunAction
	AsOf                 generic.TimePoint
	Generated            []ReceiptKey
	Skipped              []SkippedPolicy
	DefaultedPeriodicity []PolicyID
	Refreshed            int // PENDING/OVERDUE flips
	Paid                 []ReceiptKey
	Cancelled            []ReceiptKey

	ledger *Ledger
}

// Receipts returns the ledger as it was saved by the pass.
func (s *RunSummary) Receipts() []Receipt {
	if s.ledger == nil {
		return nil
	}
	return s.ledger.Receipts()
}

type mutation func(ctx context.Context, l *Ledger, summary *RunSummary) error

// =============================================================================
// OPERATIONS
// =============================================================================

// Run performs a pass with no mutation: generate, merge, refresh, save.
func (e *Engine) Run(ctx context.Context, req Request) (*RunSummary, error) {
	return e.pass(ctx, req, ActionGenerate, nil)
}

// RegisterPayment performs a pass and settles one receipt in it.
func (e *Engine) RegisterPayment(ctx context.Context, req Request, in PaymentInput) (*PaymentResult, error) {
	var result PaymentResult
	_, err := e.pass(ctx, req, ActionPayment, func(_ context.Context, l *Ledger, s *RunSummary) error {
		res, err := RegisterPayment(l, req, in)
		if err != nil {
			return err
		}
		result = res
		s.Paid = append(s.Paid, res.Receipt.Key())
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &result, nil
}

// CancelPolicy moves an ACTIVE policy to CANCELLED and voids its receipts due
// after cancellationDate. Cancelling an already cancelled policy re-applies
// the cascade with the stored date; cancellationDate must then be empty or
// name that same day.
func (e *Engine) CancelPolicy(ctx context.Context, req Request, id PolicyID, cancellationDate string) (*CancellationResult, error) {
	repo, ok := e.Policies.(PolicyRepository)
	if !ok {
		return nil, ErrStoreRequired
	}

	policy, err := repo.GetPolicy(ctx, id)
	if err != nil {
		e.metrics().IncStoreError("get_policy")
		return nil, storeUnavailable("get_policy", err)
	}
	if policy == nil {
		return nil, policyNotFound(id)
	}

	var cancelledOn generic.TimePoint
	switch policy.State {
	case PolicyActive:
		date, ok := generic.ParseDate(cancellationDate)
		if !ok {
			return nil, &ValidationError{Field: "cancellation_date", Value: cancellationDate, Err: ErrInvalidDate}
		}
		cancelledOn = date
		policy.State = PolicyCancelled
		policy.CancellationDate = date
	case PolicyCancelled:
		cancelledOn = policy.CancellationDate
		if cancellationDate != "" {
			date, ok := generic.ParseDate(cancellationDate)
			if !ok {
				return nil, &ValidationError{Field: "cancellation_date", Value: cancellationDate, Err: ErrInvalidDate}
			}
			if !date.Equal(cancelledOn) {
				return nil, &ValidationError{Field: "cancellation_date", Value: cancellationDate, Err: ErrCancellationConflict}
			}
		}
		policy = nil // already stored
	default:
		return nil, &ValidationError{Field: "state", Value: string(policy.State), Err: ErrInvalidPolicy}
	}

	var result CancellationResult
	_, err = e.pass(ctx, req, ActionCancellation, func(ctx context.Context, l *Ledger, s *RunSummary) error {
		result = CancelFutureReceipts(l, req, id, cancelledOn)
		s.Cancelled = append(s.Cancelled, result.Cancelled...)
		if policy == nil {
			return nil
		}
		if err := repo.SavePolicy(ctx, *policy); err != nil {
			e.metrics().IncStoreError("save_policy")
			return storeUnavailable("save_policy", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &result, nil
}

// SavePolicy stores a new policy or replaces an existing one. Replacing is
// refused when CheckPolicyUpdate rejects the change; the ledger is loaded
// only to learn whether the policy was billed.
func (e *Engine) SavePolicy(ctx context.Context, p Policy) error {
	repo, ok := e.Policies.(PolicyRepository)
	if !ok {
		return ErrStoreRequired
	}

	stored, err := repo.GetPolicy(ctx, p.ID)
	if err != nil {
		e.metrics().IncStoreError("get_policy")
		return storeUnavailable("get_policy", err)
	}
	if stored != nil {
		receipts, err := e.Ledger.LoadAll(ctx)
		if err != nil {
			e.metrics().IncStoreError("load_receipts")
			return storeUnavailable("load_receipts", err)
		}
		billed := len(NewLedger(receipts).ByPolicy(p.ID)) > 0
		if err := CheckPolicyUpdate(*stored, p, billed); err != nil {
			return err
		}
	}

	if err := repo.SavePolicy(ctx, p); err != nil {
		e.metrics().IncStoreError("save_policy")
		return storeUnavailable("save_policy", err)
	}
	return nil
}

// StatementFilter narrows a statement. Zero values match everything.
type StatementFilter struct {
	PolicyID PolicyID
	Tier     Tier
}

// Statement runs a pass (opening the billing view refreshes the ledger) and
// returns the matching receipts with their display fields.
func (e *Engine) Statement(ctx context.Context, req Request, filter StatementFilter) ([]ReceiptView, *RunSummary, error) {
	summary, err := e.Run(ctx, req)
	if err != nil {
		return nil, nil, err
	}

	var views []ReceiptView
	for _, r := range summary.Receipts() {
		if filter.PolicyID != "" && r.PolicyID != filter.PolicyID {
			continue
		}
		v := View(r, req.Today)
		if filter.Tier != "" && v.Tier != filter.Tier {
			continue
		}
		views = append(views, v)
	}
	return views, summary, nil
}

// Renewals lists active policies whose coverage ends inside cfg's range.
func (e *Engine) Renewals(ctx context.Context, req Request, cfg RenewalConfig) ([]RenewalNotice, error) {
	policies, err := e.Policies.ListActive(ctx)
	if err != nil {
		e.metrics().IncStoreError("list_policies")
		return nil, storeUnavailable("list_policies", err)
	}
	return ExpiringPolicies(policies, req.Today, cfg), nil
}

// =============================================================================
// PASS
// =============================================================================

func (e *Engine) pass(ctx context.Context, req Request, action RunAction, mutate mutation) (*RunSummary, error) {
	started := e.now()
	summary := &RunSummary{RunID: uuid.NewString(), Action: action, AsOf: req.Today}

	err := e.execute(ctx, req, summary, mutate)

	e.metrics().ObservePass(string(action), err, e.now().Sub(started))
	e.record(ctx, req, summary, started, err)

	if err != nil {
		e.Logger.Warn("billing pass failed",
			zap.String("run_id", summary.RunID),
			zap.String("action", string(action)),
			zap.String("as_of", req.Today.String()),
			zap.Error(err),
		)
		return nil, err
	}

	e.metrics().AddGenerated(len(summary.Generated))
	e.metrics().AddPaid(len(summary.Paid))
	e.metrics().AddCancelled(len(summary.Cancelled))
	e.Logger.Info("billing pass completed",
		zap.String("run_id", summary.RunID),
		zap.String("action", string(action)),
		zap.String("as_of", req.Today.String()),
		zap.Int("generated", len(summary.Generated)),
		zap.Int("refreshed", summary.Refreshed),
		zap.Int("paid", len(summary.Paid)),
		zap.Int("cancelled", len(summary.Cancelled)),
		zap.Int("skipped", len(summary.Skipped)),
	)
	return summary, nil
}

func (e *Engine) execute(ctx context.Context, req Request, summary *RunSummary, mutate mutation) error {
	policies, err := e.Policies.ListActive(ctx)
	if err != nil {
		e.metrics().IncStoreError("list_policies")
		return storeUnavailable("list_policies", err)
	}
	receipts, err := e.Ledger.LoadAll(ctx)
	if err != nil {
		e.metrics().IncStoreError("load_receipts")
		return storeUnavailable("load_receipts", err)
	}

	ledger := NewLedger(receipts)
	generated := Generate(req, policies, ledger)
	for _, r := range ledger.Merge(generated.Receipts) {
		summary.Generated = append(summary.Generated, r.Key())
	}
	summary.Skipped = generated.Skipped
	summary.DefaultedPeriodicity = generated.DefaultedPeriodicity
	for _, s := range generated.Skipped {
		e.metrics().IncSkipped(string(s.Reason))
		e.Logger.Warn("policy skipped during generation",
			zap.String("policy_id", string(s.PolicyID)),
			zap.String("reason", string(s.Reason)),
		)
	}
	for _, id := range generated.DefaultedPeriodicity {
		e.Logger.Warn("unknown periodicity, billing monthly", zap.String("policy_id", string(id)))
	}
	summary.Refreshed = ledger.RefreshOverdue(req.Today)

	if mutate != nil {
		if err := mutate(ctx, ledger, summary); err != nil {
			return err
		}
	}

	if err := e.Ledger.SaveAll(ctx, ledger.Receipts()); err != nil {
		e.metrics().IncStoreError("save_receipts")
		return storeUnavailable("save_receipts", err)
	}
	summary.ledger = ledger
	return nil
}

// record writes the run log entry. A failure here never fails the pass.
func (e *Engine) record(ctx context.Context, req Request, summary *RunSummary, started time.Time, passErr error) {
	recorder, ok := e.Ledger.(RunRecorder)
	if !ok {
		return
	}
	run := Run{
		ID:          summary.RunID,
		Action:      summary.Action,
		AsOf:        req.Today,
		Actor:       req.Actor,
		Status:      RunCompleted,
		StartedAt:   started,
		CompletedAt: e.now(),
	}
	if passErr != nil {
		run.Status = RunFailed
		run.Error = passErr.Error()
	} else {
		run.Generated = len(summary.Generated)
		run.Paid = len(summary.Paid)
		run.Cancelled = len(summary.Cancelled)
		run.Skipped = len(summary.Skipped)
	}
	if err := recorder.SaveRun(ctx, run); err != nil && !errors.Is(err, context.Canceled) {
		e.Logger.Warn("failed to record billing run", zap.String("run_id", run.ID), zap.Error(err))
	}
}

func (e *Engine) metrics() Recorder {
	if e.Metrics == nil {
		return nopRecorder{}
	}
	return e.Metrics
}

func (e *Engine) now() time.Time {
	if e.Now == nil {
		return time.Now()
	}
	return e.Now()
}
