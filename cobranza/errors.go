/*
errors.go - Error taxonomy for the billing engine

ERROR CATEGORIES:
  1. Validation     - bad date, amount or policy data; operation aborted
  2. Not found      - unknown receipt or policy key; nothing mutated
  3. Already settled - receipt is PAID or CANCELLED; nothing mutated
  4. Store unavailable - persistence failed; the whole pass is abandoned

Per-policy problems during generation are not errors: the policy is skipped
and reported in RunSummary.Skipped.

USAGE:
  if errors.Is(err, cobranza.ErrAlreadySettled) { ... }

  var nf *cobranza.NotFoundError
  if errors.As(err, &nf) { log(nf.Key) }
*/
package cobranza

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	ErrValidation    = errors.New("validation failed")
	ErrInvalidAmount = fmt.Errorf("%w: invalid amount", ErrValidation)
	ErrInvalidDate   = fmt.Errorf("%w: invalid date", ErrValidation)
	ErrInvalidPolicy = fmt.Errorf("%w: invalid policy", ErrValidation)

	// ErrPolicyStateChange rejects a save that would move the policy between
	// states. Cancellation goes through CancelPolicy.
	ErrPolicyStateChange = fmt.Errorf("%w: state changes only through cancellation", ErrInvalidPolicy)
	// ErrScheduleFrozen rejects edits to schedule fields of a billed policy.
	ErrScheduleFrozen = fmt.Errorf("%w: schedule is fixed once receipts exist", ErrInvalidPolicy)
	// ErrCancellationConflict is returned when a cancelled policy is
	// cancelled again with a different date.
	ErrCancellationConflict = fmt.Errorf("%w: policy already cancelled on another date", ErrInvalidDate)

	ErrNotFound        = errors.New("not found")
	ErrReceiptNotFound = fmt.Errorf("receipt %w", ErrNotFound)
	ErrPolicyNotFound  = fmt.Errorf("policy %w", ErrNotFound)

	// ErrAlreadySettled is returned when mutating a PAID or CANCELLED receipt.
	ErrAlreadySettled = errors.New("receipt already settled")

	// ErrStoreUnavailable is returned when loading or saving fails. Nothing
	// from the pass was written; callers retry the whole action.
	ErrStoreUnavailable = errors.New("store unavailable")

	// ErrStoreRequired is returned when the configured store lacks a
	// capability the operation needs (e.g. saving policies).
	ErrStoreRequired = errors.New("operation requires extended store interface")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// ValidationError names the offending field and value.
type ValidationError struct {
	Field string
	Value string
	Err   error // ErrInvalidAmount, ErrInvalidDate, ErrInvalidPolicy or one wrapping them
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%v: %s=%q", e.Err, e.Field, e.Value)
}

func (e *ValidationError) Unwrap() error { return e.Err }

// NotFoundError identifies the missing key.
type NotFoundError struct {
	Kind string // "receipt" or "policy"
	Key  string
	Err  error
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Kind, e.Key)
}

func (e *NotFoundError) Unwrap() error { return e.Err }

func receiptNotFound(key ReceiptKey) error {
	return &NotFoundError{Kind: "receipt", Key: key.String(), Err: ErrReceiptNotFound}
}

func policyNotFound(id PolicyID) error {
	return &NotFoundError{Kind: "policy", Key: string(id), Err: ErrPolicyNotFound}
}

// AlreadySettledError reports the terminal status that blocked the change.
type AlreadySettledError struct {
	Key    ReceiptKey
	Status Status
}

func (e *AlreadySettledError) Error() string {
	return fmt.Sprintf("receipt %s already settled (%s)", e.Key, e.Status)
}

func (e *AlreadySettledError) Unwrap() error { return ErrAlreadySettled }

// StoreUnavailableError wraps the underlying persistence failure.
type StoreUnavailableError struct {
	Op  string // "list_policies", "load_receipts", "save_receipts", ...
	Err error
}

func (e *StoreUnavailableError) Error() string {
	return fmt.Sprintf("store unavailable during %s: %v", e.Op, e.Err)
}

// Unwrap exposes both the sentinel and the cause.
func (e *StoreUnavailableError) Unwrap() []error {
	return []error{ErrStoreUnavailable, e.Err}
}

func storeUnavailable(op string, err error) error {
	return &StoreUnavailableError{Op: op, Err: err}
}

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsRetryable returns true if the same action might succeed on retry.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrStoreUnavailable)
}

// IsClientError returns true if the error is due to invalid caller input.
func IsClientError(err error) bool {
	return errors.Is(err, ErrValidation) || errors.Is(err, ErrAlreadySettled)
}

// IsNotFound returns true if the error indicates a missing receipt or policy.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
