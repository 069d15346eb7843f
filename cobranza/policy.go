package cobranza

// =============================================================================
// POLICY UPDATES
// =============================================================================

// CheckPolicyUpdate decides whether updated may replace stored.
//
// The state never changes through a plain save: ACTIVE → CANCELLED must go
// through CancelPolicy so the cascade runs, and CANCELLED or TERMINATED
// policies are never reactivated. Once the ledger holds receipts for the
// policy (billed), the fields that shaped them are frozen too. Descriptive
// fields may always change.
func CheckPolicyUpdate(stored, updated Policy, billed bool) error {
	if stored.State != updated.State {
		return &ValidationError{Field: "state", Value: string(updated.State), Err: ErrPolicyStateChange}
	}
	if !stored.CancellationDate.Equal(updated.CancellationDate) {
		return &ValidationError{Field: "cancellation_date", Value: updated.CancellationDate.String(), Err: ErrPolicyStateChange}
	}
	if !billed {
		return nil
	}

	switch {
	case !stored.StartDate.Equal(updated.StartDate):
		return scheduleFrozen("start_date", updated.StartDate.String())
	case stored.Periodicity != updated.Periodicity:
		return scheduleFrozen("periodicity", string(updated.Periodicity))
	case stored.Currency != updated.Currency:
		return scheduleFrozen("currency", string(updated.Currency))
	case !stored.FirstPaymentAmount.Equal(updated.FirstPaymentAmount):
		return scheduleFrozen("first_payment", updated.FirstPaymentAmount.String())
	case !stored.SubsequentPaymentAmount.Equal(updated.SubsequentPaymentAmount):
		return scheduleFrozen("subsequent_payment", updated.SubsequentPaymentAmount.String())
	}
	return nil
}

func scheduleFrozen(field, value string) error {
	return &ValidationError{Field: field, Value: value, Err: ErrScheduleFrozen}
}
