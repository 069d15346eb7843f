package cobranza

import "github.com/ealc/cobranza/generic"

// =============================================================================
// CANCELLATION CASCADE - Void receipts due after the cancellation date
// =============================================================================

// CancellationResult lists the receipts voided by one cascade.
type CancellationResult struct {
	PolicyID         PolicyID
	CancellationDate generic.TimePoint
	Cancelled        []ReceiptKey
}

// CancelFutureReceipts voids every PENDING/OVERDUE receipt of the policy
// whose due date is strictly after cancelledOn. Receipts due on or before
// that day stay collectable. Running it twice changes nothing the second
// time because voided receipts are terminal.
func CancelFutureReceipts(l *Ledger, req Request, policyID PolicyID, cancelledOn generic.TimePoint) CancellationResult {
	result := CancellationResult{PolicyID: policyID, CancellationDate: cancelledOn}
	note := "auto-cancelled: policy cancelled on " + cancelledOn.String()
	if req.Actor != "" {
		note += " by " + req.Actor
	}

	for _, r := range l.ByPolicy(policyID) {
		if r.Status.IsTerminal() || !r.DueDate.After(cancelledOn) {
			continue
		}
		r.Status = StatusCancelled
		r.ExpectedAmount = r.ExpectedAmount.Zero()
		r.PaidAmount = r.ExpectedAmount.Zero()
		r.Comment = appendComment(r.Comment, note)
		l.update(r)
		result.Cancelled = append(result.Cancelled, r.Key())
	}
	return result
}
