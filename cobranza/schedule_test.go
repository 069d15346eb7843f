package cobranza_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ealc/cobranza/cobranza"
	"github.com/ealc/cobranza/generic"
)

// =============================================================================
// DUE DATES
// =============================================================================

func TestDueDate_Monthly(t *testing.T) {
	p := monthlyPolicy("P1")

	for n := 1; n <= 36; n++ {
		assert.Equal(t, day(2024, time.January, 1).AddMonths(n-1), p.DueDate(n), "n=%d", n)
	}
	assert.Equal(t, day(2024, time.December, 1), p.DueDate(12))
	assert.Equal(t, day(2025, time.January, 1), p.DueDate(13))
}

func TestDueDate_Periodicities(t *testing.T) {
	p := monthlyPolicy("P1")

	cases := []struct {
		periodicity cobranza.Periodicity
		second      generic.TimePoint
	}{
		{cobranza.Monthly, day(2024, time.February, 1)},
		{cobranza.Quarterly, day(2024, time.April, 1)},
		{cobranza.Semiannual, day(2024, time.July, 1)},
		{cobranza.Annual, day(2025, time.January, 1)},
	}
	for _, tc := range cases {
		p.Periodicity = tc.periodicity
		assert.Equal(t, tc.second, p.DueDate(2), string(tc.periodicity))
	}
}

func TestDueDate_MonthEndStart(t *testing.T) {
	// GIVEN: A policy starting on January 31st
	p := monthlyPolicy("P1")
	p.StartDate = day(2024, time.January, 31)

	// THEN: Each due date is computed from the start, not chained
	assert.Equal(t, day(2024, time.February, 29), p.DueDate(2))
	assert.Equal(t, day(2024, time.March, 31), p.DueDate(3))
}

func TestExpectedAmount(t *testing.T) {
	p := monthlyPolicy("P1")
	assert.True(t, p.ExpectedAmount(1).Equal(mxn(1000)))
	assert.True(t, p.ExpectedAmount(2).Equal(mxn(500)))

	// Subsequent amount missing: every receipt bills the first payment
	p.SubsequentPaymentAmount = mxn(0)
	assert.True(t, p.ExpectedAmount(5).Equal(mxn(1000)))
}

func TestParsePeriodicity(t *testing.T) {
	cases := map[string]cobranza.Periodicity{
		"MENSUAL":    cobranza.Monthly,
		"trimestral": cobranza.Quarterly,
		"Semestral":  cobranza.Semiannual,
		"ANUAL":      cobranza.Annual,
		"CONTADO":    cobranza.Annual,
		"quarterly":  cobranza.Quarterly,
	}
	for in, want := range cases {
		got, ok := cobranza.ParsePeriodicity(in)
		assert.True(t, ok, in)
		assert.Equal(t, want, got, in)
	}

	got, ok := cobranza.ParsePeriodicity("BIMESTRAL")
	assert.False(t, ok)
	assert.Equal(t, cobranza.Monthly, got)
}

// =============================================================================
// GENERATION
// =============================================================================

func TestGenerate_EndToEndScenario(t *testing.T) {
	// GIVEN: P1 monthly from 01/01/2024, today 15/01/2024, empty ledger
	req := request(day(2024, time.January, 15))

	// WHEN: Generating with the default window
	result := cobranza.Generate(req, []cobranza.Policy{monthlyPolicy("P1")}, nil)

	// THEN: Receipts #1..#3
	require.Len(t, result.Receipts, 3)
	assert.Empty(t, result.Skipped)

	r1, r2, r3 := result.Receipts[0], result.Receipts[1], result.Receipts[2]

	assert.Equal(t, 1, r1.Number)
	assert.Equal(t, day(2024, time.January, 1), r1.DueDate)
	assert.True(t, r1.ExpectedAmount.Equal(mxn(1000)))
	assert.Equal(t, cobranza.StatusOverdue, r1.Status)

	assert.Equal(t, 2, r2.Number)
	assert.Equal(t, day(2024, time.February, 1), r2.DueDate)
	assert.True(t, r2.ExpectedAmount.Equal(mxn(500)))
	assert.Equal(t, cobranza.StatusPending, r2.Status)

	assert.Equal(t, 3, r3.Number)
	assert.Equal(t, day(2024, time.March, 1), r3.DueDate)
	assert.True(t, r3.ExpectedAmount.Equal(mxn(500)))
	assert.Equal(t, cobranza.StatusPending, r3.Status)

	for _, r := range result.Receipts {
		assert.True(t, r.PaidAmount.IsZero())
		assert.Equal(t, "Cliente P1", r.ClientName)
		assert.Equal(t, "AG-01", r.IssuanceKey)
	}
}

func TestGenerate_SkipsExistingKeys(t *testing.T) {
	// GIVEN: Receipt #2 already in the ledger (paid)
	existing := cobranza.NewLedger([]cobranza.Receipt{{
		PolicyID: "P1", Number: 2, DueDate: day(2024, time.February, 1),
		ExpectedAmount: mxn(500), PaidAmount: mxn(500), Status: cobranza.StatusPaid,
	}})

	// WHEN: Generating
	result := cobranza.Generate(request(day(2024, time.January, 15)), []cobranza.Policy{monthlyPolicy("P1")}, existing)

	// THEN: Only #1 and #3 are produced
	assert.Equal(t, []cobranza.ReceiptKey{key("P1", 1), key("P1", 3)}, keys(result.Receipts))
}

func TestGenerate_GracePeriodDropsStaleInstallments(t *testing.T) {
	// GIVEN: today 20/03/2024, window [10/03/2024, 19/05/2024]
	req := request(day(2024, time.March, 20))

	result := cobranza.Generate(req, []cobranza.Policy{monthlyPolicy("P1")}, nil)

	// THEN: #1 (initial premium) plus #4 (01/04) and #5 (01/05); #2 and #3
	// fell due before the grace period
	assert.Equal(t, []cobranza.ReceiptKey{key("P1", 1), key("P1", 4), key("P1", 5)}, keys(result.Receipts))
}

func TestGenerate_ZeroGrace(t *testing.T) {
	req := request(day(2024, time.February, 2))
	req.Config.GraceDays = 0

	result := cobranza.Generate(req, []cobranza.Policy{monthlyPolicy("P1")}, nil)

	// #2 was due yesterday, outside a zero-day grace period
	assert.Equal(t, []cobranza.ReceiptKey{key("P1", 1), key("P1", 3), key("P1", 4)}, keys(result.Receipts))
}

func TestGenerate_FuturePolicyProducesNothing(t *testing.T) {
	p := monthlyPolicy("P1")
	p.StartDate = day(2024, time.June, 1)

	result := cobranza.Generate(request(day(2024, time.January, 15)), []cobranza.Policy{p}, nil)

	assert.Empty(t, result.Receipts)
}

func TestGenerate_MaxReceiptsCap(t *testing.T) {
	// GIVEN: A policy started long ago and a cap of 36
	p := monthlyPolicy("OLD")
	p.StartDate = day(2015, time.January, 1)

	result := cobranza.Generate(request(day(2024, time.January, 15)), []cobranza.Policy{p}, nil)

	// THEN: Only the initial premium; receipt 37+ is never reached
	assert.Equal(t, []cobranza.ReceiptKey{key("OLD", 1)}, keys(result.Receipts))

	// AND: A small cap stops a current policy early
	req := request(day(2024, time.January, 15))
	req.Config.MaxReceipts = 2
	result = cobranza.Generate(req, []cobranza.Policy{monthlyPolicy("P1")}, nil)
	assert.Equal(t, []cobranza.ReceiptKey{key("P1", 1), key("P1", 2)}, keys(result.Receipts))
}

func TestGenerate_SkipsMalformedPolicies(t *testing.T) {
	noID := monthlyPolicy("")
	noStart := monthlyPolicy("P2")
	noStart.StartDate = generic.TimePoint{}
	cancelled := monthlyPolicy("P3")
	cancelled.State = cobranza.PolicyCancelled

	result := cobranza.Generate(request(day(2024, time.January, 15)),
		[]cobranza.Policy{noID, noStart, cancelled, monthlyPolicy("P1")}, nil)

	// THEN: The batch continues with P1
	assert.Len(t, result.Receipts, 3)
	assert.Equal(t, []cobranza.SkippedPolicy{
		{Reason: cobranza.SkipMissingID},
		{PolicyID: "P2", Reason: cobranza.SkipMissingStartDate},
		{PolicyID: "P3", Reason: cobranza.SkipNotActive},
	}, result.Skipped)
}

func TestGenerate_UnknownPeriodicityBillsMonthly(t *testing.T) {
	p := monthlyPolicy("P1")
	p.Periodicity = "BIMESTRAL"

	result := cobranza.Generate(request(day(2024, time.January, 15)), []cobranza.Policy{p}, nil)

	assert.Equal(t, []cobranza.PolicyID{"P1"}, result.DefaultedPeriodicity)
	require.Len(t, result.Receipts, 3)
	assert.Equal(t, day(2024, time.February, 1), result.Receipts[1].DueDate)
}

func TestGenerate_QuarterlyInsideHorizon(t *testing.T) {
	p := monthlyPolicy("Q1")
	p.Periodicity = cobranza.Quarterly
	p.StartDate = day(2023, time.October, 15)

	// today 01/04/2024: window [22/03/2024, 31/05/2024]
	result := cobranza.Generate(request(day(2024, time.April, 1)), []cobranza.Policy{p}, nil)

	// #1 (15/10/2023) always, #3 (15/04/2024) in window; #2 (15/01) is stale
	assert.Equal(t, []cobranza.ReceiptKey{key("Q1", 1), key("Q1", 3)}, keys(result.Receipts))
	assert.Equal(t, cobranza.StatusOverdue, result.Receipts[0].Status)
	assert.Equal(t, cobranza.StatusPending, result.Receipts[1].Status)
}

func TestGenerate_Deterministic(t *testing.T) {
	policies := []cobranza.Policy{monthlyPolicy("P2"), monthlyPolicy("P1")}
	req := request(day(2024, time.January, 15))

	first := cobranza.Generate(req, policies, nil)
	second := cobranza.Generate(req, policies, nil)

	assert.Equal(t, first, second)
	// Sorted by policy then number regardless of input order
	assert.Equal(t, cobranza.PolicyID("P1"), first.Receipts[0].PolicyID)
}
