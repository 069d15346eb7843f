package cobranza

import (
	"github.com/shopspring/decimal"

	"github.com/ealc/cobranza/generic"
)

// =============================================================================
// PAYMENT PROCESSOR - PENDING/OVERDUE → PAID
// =============================================================================

// PaymentInput is a payment as typed into the collection form.
type PaymentInput struct {
	PolicyID      PolicyID
	ReceiptNumber int
	Amount        decimal.Decimal
	PaymentDate   string // any format ParseDate accepts
}

// PaymentResult is the settled receipt plus the lateness derived from it.
type PaymentResult struct {
	Receipt  Receipt
	DaysLate int
}

// RegisterPayment marks the receipt PAID. On any error the ledger is left
// exactly as it was. The expected amount is never changed.
func RegisterPayment(l *Ledger, req Request, in PaymentInput) (PaymentResult, error) {
	key := ReceiptKey{PolicyID: in.PolicyID, Number: in.ReceiptNumber}

	r, ok := l.Get(key)
	if !ok {
		return PaymentResult{}, receiptNotFound(key)
	}
	if r.Status.IsTerminal() {
		return PaymentResult{}, &AlreadySettledError{Key: key, Status: r.Status}
	}
	if !in.Amount.IsPositive() {
		return PaymentResult{}, &ValidationError{Field: "amount", Value: in.Amount.String(), Err: ErrInvalidAmount}
	}
	paidOn, ok := generic.ParseDate(in.PaymentDate)
	if !ok {
		return PaymentResult{}, &ValidationError{Field: "payment_date", Value: in.PaymentDate, Err: ErrInvalidDate}
	}

	daysLate := generic.DaysBetween(r.DueDate, paidOn)
	if daysLate < 0 {
		daysLate = 0
	}

	r.PaidAmount = generic.NewAmount(in.Amount, r.ExpectedAmount.Currency)
	r.PaymentDate = paidOn
	r.DaysLate = daysLate
	r.Status = StatusPaid
	if req.Actor != "" {
		r.Comment = appendComment(r.Comment, "paid on "+paidOn.String()+" by "+req.Actor)
	}
	l.update(r)

	return PaymentResult{Receipt: r, DaysLate: daysLate}, nil
}
