package cobranza_test

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ealc/cobranza/cobranza"
)

// sixMonthLedger holds P1 #1..#6 (Jan..Jun 2024), all PENDING.
func sixMonthLedger() *cobranza.Ledger {
	p := monthlyPolicy("P1")
	var rs []cobranza.Receipt
	for n := 1; n <= 6; n++ {
		rs = append(rs, cobranza.Receipt{
			PolicyID:       "P1",
			Number:         n,
			DueDate:        p.DueDate(n),
			ExpectedAmount: p.ExpectedAmount(n),
			PaidAmount:     mxn(0),
			Status:         cobranza.StatusPending,
		})
	}
	rs = append(rs, cobranza.Receipt{
		PolicyID: "P2", Number: 5, DueDate: day(2024, time.May, 1),
		ExpectedAmount: mxn(500), PaidAmount: mxn(0), Status: cobranza.StatusPending,
	})
	return cobranza.NewLedger(rs)
}

func TestCancelFutureReceipts_VoidsAfterDate(t *testing.T) {
	// GIVEN: #1 already paid
	l := sixMonthLedger()
	req := cobranza.NewRequest(day(2024, time.March, 15), "luis")
	_, err := cobranza.RegisterPayment(l, req, cobranza.PaymentInput{
		PolicyID: "P1", ReceiptNumber: 1, Amount: decimal.NewFromInt(1000), PaymentDate: "02/01/2024",
	})
	require.NoError(t, err)

	// WHEN: Cancelling on 15/03/2024
	result := cobranza.CancelFutureReceipts(l, req, "P1", day(2024, time.March, 15))

	// THEN: #4..#6 are voided, earlier receipts untouched
	assert.Equal(t, []cobranza.ReceiptKey{key("P1", 4), key("P1", 5), key("P1", 6)}, result.Cancelled)
	assert.Equal(t, day(2024, time.March, 15), result.CancellationDate)

	for _, r := range l.ByPolicy("P1") {
		switch {
		case r.Number == 1:
			assert.Equal(t, cobranza.StatusPaid, r.Status)
		case r.Number <= 3:
			assert.Equal(t, cobranza.StatusPending, r.Status, "n=%d", r.Number)
			assert.Empty(t, r.Comment)
		default:
			assert.Equal(t, cobranza.StatusCancelled, r.Status, "n=%d", r.Number)
			assert.True(t, r.ExpectedAmount.IsZero())
			assert.True(t, r.PaidAmount.IsZero())
			assert.Equal(t, "auto-cancelled: policy cancelled on 2024-03-15 by luis", r.Comment)
		}
	}

	// AND: Other policies are not affected
	other, _ := l.Get(key("P2", 5))
	assert.Equal(t, cobranza.StatusPending, other.Status)
}

func TestCancelFutureReceipts_DueOnCancellationDateStays(t *testing.T) {
	l := sixMonthLedger()

	result := cobranza.CancelFutureReceipts(l, request(day(2024, time.March, 1)), "P1", day(2024, time.March, 1))

	assert.Equal(t, []cobranza.ReceiptKey{key("P1", 4), key("P1", 5), key("P1", 6)}, result.Cancelled)
	r, _ := l.Get(key("P1", 3))
	assert.Equal(t, cobranza.StatusPending, r.Status)
}

func TestCancelFutureReceipts_Idempotent(t *testing.T) {
	l := sixMonthLedger()
	req := request(day(2024, time.March, 15))

	cobranza.CancelFutureReceipts(l, req, "P1", day(2024, time.March, 15))
	before := l.Receipts()

	again := cobranza.CancelFutureReceipts(l, req, "P1", day(2024, time.March, 15))

	assert.Empty(t, again.Cancelled)
	assert.Equal(t, before, l.Receipts())
}

func TestCancelFutureReceipts_AppendsToExistingComment(t *testing.T) {
	l := cobranza.NewLedger([]cobranza.Receipt{{
		PolicyID: "P1", Number: 2, DueDate: day(2024, time.February, 1),
		ExpectedAmount: mxn(500), PaidAmount: mxn(0), Status: cobranza.StatusOverdue,
		Comment: "called client",
	}})

	cobranza.CancelFutureReceipts(l, request(day(2024, time.March, 1)), "P1", day(2024, time.January, 20))

	r, _ := l.Get(key("P1", 2))
	assert.Equal(t, cobranza.StatusCancelled, r.Status)
	assert.Equal(t, "called client | auto-cancelled: policy cancelled on 2024-01-20", r.Comment)
}
