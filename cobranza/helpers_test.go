package cobranza_test

import (
	"time"

	"github.com/ealc/cobranza/cobranza"
	"github.com/ealc/cobranza/generic"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

func day(y int, m time.Month, d int) generic.TimePoint {
	return generic.NewTimePoint(y, m, d)
}

func mxn(v int64) generic.Amount {
	return generic.NewAmountFromInt(v, generic.CurrencyLocal)
}

func request(today generic.TimePoint) cobranza.Request {
	return cobranza.NewRequest(today, "")
}

// monthlyPolicy is P1 from the billing examples: starts 01/01/2024,
// 1000 first payment then 500 per month.
func monthlyPolicy(id string) cobranza.Policy {
	return cobranza.Policy{
		ID:                      cobranza.PolicyID(id),
		ClientName:              "Cliente " + id,
		StartDate:               day(2024, time.January, 1),
		Periodicity:             cobranza.Monthly,
		FirstPaymentAmount:      mxn(1000),
		SubsequentPaymentAmount: mxn(500),
		Currency:                generic.CurrencyLocal,
		State:                   cobranza.PolicyActive,
		IssuanceKey:             "AG-01",
	}
}

func keys(rs []cobranza.Receipt) []cobranza.ReceiptKey {
	out := make([]cobranza.ReceiptKey, len(rs))
	for i, r := range rs {
		out[i] = r.Key()
	}
	return out
}

func key(policy string, n int) cobranza.ReceiptKey {
	return cobranza.ReceiptKey{PolicyID: cobranza.PolicyID(policy), Number: n}
}
