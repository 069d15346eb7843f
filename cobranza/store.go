/*
store.go - Persistence interfaces

KEY INTERFACES:
  PolicyStore:      read-only source of active policies
  PolicyRepository: PolicyStore plus lookup and save (needed to cancel)
  LedgerStore:      whole-collection load and replace of receipts
  RunRecorder:      optional audit log of billing passes

WHOLE-COLLECTION REPLACE:
  SaveAll replaces every stored receipt with the given set. It must be
  atomic: either the new set is fully stored or the old one is kept.
  Two sessions saving concurrently means the last writer wins; there is no
  version check.

IMPLEMENTATIONS:
  - cobranza/store/memory.go: in-memory, for tests and demos
  - store/sqlite/sqlite.go:   SQLite
*/
package cobranza

import (
	"context"
	"time"

	"github.com/ealc/cobranza/generic"
)

type PolicyStore interface {
	// ListActive returns the policies whose state is ACTIVE.
	ListActive(ctx context.Context) ([]Policy, error)
}

// PolicyRepository extends PolicyStore with the writes needed by the
// cancellation flow. GetPolicy returns (nil, nil) for an unknown id.
type PolicyRepository interface {
	PolicyStore
	GetPolicy(ctx context.Context, id PolicyID) (*Policy, error)
	SavePolicy(ctx context.Context, p Policy) error
}

type LedgerStore interface {
	LoadAll(ctx context.Context) ([]Receipt, error)
	SaveAll(ctx context.Context, receipts []Receipt) error
}

// =============================================================================
// RUN LOG
// =============================================================================

type RunAction string

const (
	ActionGenerate     RunAction = "generate"
	ActionPayment      RunAction = "payment"
	ActionCancellation RunAction = "cancellation"
)

type RunStatus string

const (
	RunCompleted RunStatus = "completed"
	RunFailed    RunStatus = "failed"
)

// Run records one billing pass for audit and display.
type Run struct {
	ID          string
	Action      RunAction
	AsOf        generic.TimePoint
	Actor       string
	Generated   int
	Paid        int
	Cancelled   int
	Skipped     int
	Status      RunStatus
	Error       string
	StartedAt   time.Time
	CompletedAt time.Time
}

// RunRecorder is implemented by stores that keep a run log. The engine
// detects it with a type assertion.
type RunRecorder interface {
	SaveRun(ctx context.Context, run Run) error
}
