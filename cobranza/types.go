/*
Package cobranza implements the recurring billing engine for insurance policies.

PURPOSE:
  Given a policy's start date and payment periodicity, generate the receipts
  (scheduled installments) that fall due, merge them into the persisted
  ledger without duplicates, and track each receipt until it is paid or
  voided by a policy cancellation.

KEY CONCEPTS IN THIS FILE (types.go):
  - Policy:      insurance contract with start date, periodicity and premiums
  - Receipt:     one installment, keyed by (PolicyID, Number)
  - Periodicity: MONTHLY, QUARTERLY, SEMIANNUAL, ANNUAL
  - Status:      PENDING, OVERDUE, PAID, CANCELLED

RECEIPT LIFECYCLE:

	         generate                 register payment
	  (none) ────────▶ PENDING/OVERDUE ─────────────────▶ PAID
	                          │
	                          │ policy cancelled, due after cancellation date
	                          ▼
	                      CANCELLED

  PAID and CANCELLED are terminal. OVERDUE is PENDING past its due date and
  is re-evaluated on every billing pass.

SEE ALSO:
  - schedule.go:     receipt generation inside a rolling window
  - ledger.go:       idempotent merge
  - payment.go:      PENDING/OVERDUE → PAID
  - cancellation.go: PENDING/OVERDUE → CANCELLED
  - engine.go:       one load → generate → mutate → persist pass
*/
package cobranza

import (
	"fmt"
	"strings"

	"github.com/ealc/cobranza/generic"
)

// =============================================================================
// IDENTIFIERS
// =============================================================================

type PolicyID string

// ReceiptKey is the composite identity of a receipt.
type ReceiptKey struct {
	PolicyID PolicyID
	Number   int
}

func (k ReceiptKey) String() string {
	return fmt.Sprintf("%s#%d", k.PolicyID, k.Number)
}

// =============================================================================
// PERIODICITY
// =============================================================================

type Periodicity string

const (
	Monthly    Periodicity = "MONTHLY"
	Quarterly  Periodicity = "QUARTERLY"
	Semiannual Periodicity = "SEMIANNUAL"
	Annual     Periodicity = "ANNUAL" // also "cash": a single yearly payment
)

// Months returns the period length. Unknown values bill monthly.
func (p Periodicity) Months() int {
	switch p {
	case Quarterly:
		return 3
	case Semiannual:
		return 6
	case Annual:
		return 12
	default:
		return 1
	}
}

// ParsePeriodicity accepts the English enum names and the labels used in the
// policy forms (MENSUAL, TRIMESTRAL, SEMESTRAL, ANUAL, CONTADO).
// The second return value is false when the label was not recognized and
// the result fell back to Monthly.
func ParsePeriodicity(s string) (Periodicity, bool) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "MONTHLY", "MENSUAL":
		return Monthly, true
	case "QUARTERLY", "TRIMESTRAL":
		return Quarterly, true
	case "SEMIANNUAL", "SEMESTRAL":
		return Semiannual, true
	case "ANNUAL", "ANUAL", "CASH", "CONTADO":
		return Annual, true
	default:
		return Monthly, false
	}
}

// =============================================================================
// POLICY
// =============================================================================

type PolicyState string

const (
	PolicyActive     PolicyState = "ACTIVE"
	PolicyCancelled  PolicyState = "CANCELLED"
	PolicyTerminated PolicyState = "TERMINATED"
)

// ParsePolicyState accepts the English names and the form labels
// (VIGENTE, CANCELADO, TERMINADO). Anything else is reported as not ok.
func ParsePolicyState(s string) (PolicyState, bool) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "ACTIVE", "VIGENTE", "":
		return PolicyActive, true
	case "CANCELLED", "CANCELED", "CANCELADO", "CANCELADA":
		return PolicyCancelled, true
	case "TERMINATED", "TERMINADO", "TERMINADA":
		return PolicyTerminated, true
	default:
		return "", false
	}
}

type Policy struct {
	ID                      PolicyID
	ClientName              string
	StartDate               generic.TimePoint
	EndDate                 generic.TimePoint // optional, renewal watch only
	Periodicity             Periodicity
	FirstPaymentAmount      generic.Amount
	SubsequentPaymentAmount generic.Amount
	Currency                generic.Currency
	State                   PolicyState
	CancellationDate        generic.TimePoint // set when State is CANCELLED
	IssuanceKey             string

	// Descriptive fields carried from the policy form.
	Product       string
	Insurer       string
	PaymentMethod string
}

// ExpectedAmount returns the premium owed by receipt n. Receipts after the
// first fall back to the first payment when no subsequent amount is set.
func (p Policy) ExpectedAmount(n int) generic.Amount {
	if n == 1 || p.SubsequentPaymentAmount.IsZero() {
		return p.FirstPaymentAmount
	}
	return p.SubsequentPaymentAmount
}

// DueDate returns start + (n-1) periods. Months are added from the start
// date each time so a policy starting on the 31st keeps billing at month end.
func (p Policy) DueDate(n int) generic.TimePoint {
	return p.StartDate.AddMonths((n - 1) * p.Periodicity.Months())
}

// =============================================================================
// RECEIPT
// =============================================================================

type Status string

const (
	StatusPending   Status = "PENDING"
	StatusOverdue   Status = "OVERDUE"
	StatusPaid      Status = "PAID"
	StatusCancelled Status = "CANCELLED"
)

// IsTerminal reports whether no further mutation is allowed.
func (s Status) IsTerminal() bool {
	return s == StatusPaid || s == StatusCancelled
}

// ParseStatus reads a stored status. Unknown values are reported as not ok.
func ParseStatus(s string) (Status, bool) {
	switch st := Status(strings.ToUpper(strings.TrimSpace(s))); st {
	case StatusPending, StatusOverdue, StatusPaid, StatusCancelled:
		return st, true
	default:
		return "", false
	}
}

type Receipt struct {
	PolicyID       PolicyID
	Number         int
	DueDate        generic.TimePoint
	ExpectedAmount generic.Amount
	PaidAmount     generic.Amount
	PaymentDate    generic.TimePoint
	DaysLate       int
	Status         Status
	Comment        string
	ClientName     string
	IssuanceKey    string
}

func (r Receipt) Key() ReceiptKey {
	return ReceiptKey{PolicyID: r.PolicyID, Number: r.Number}
}

// statusOn is the stored status a non-terminal receipt should carry on day
// today: OVERDUE once its due date has passed, otherwise PENDING.
func statusOn(due, today generic.TimePoint) Status {
	if due.Before(today) {
		return StatusOverdue
	}
	return StatusPending
}

// appendComment keeps the audit trail: new notes never replace old ones.
func appendComment(existing, note string) string {
	if strings.TrimSpace(existing) == "" {
		return note
	}
	return existing + " | " + note
}
