package cobranza_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ealc/cobranza/cobranza"
)

func TestMerge_ExistingWins(t *testing.T) {
	// GIVEN: #1 already paid in the ledger
	paid := cobranza.Receipt{
		PolicyID: "P1", Number: 1, DueDate: day(2024, time.January, 1),
		ExpectedAmount: mxn(1000), PaidAmount: mxn(1000), Status: cobranza.StatusPaid,
	}

	// WHEN: Generation proposes a fresh #1 and a new #2
	generated := []cobranza.Receipt{
		{PolicyID: "P1", Number: 1, ExpectedAmount: mxn(1000), PaidAmount: mxn(0), Status: cobranza.StatusOverdue},
		{PolicyID: "P1", Number: 2, ExpectedAmount: mxn(500), PaidAmount: mxn(0), Status: cobranza.StatusPending},
	}
	merged := cobranza.Merge([]cobranza.Receipt{paid}, generated)

	// THEN: The paid receipt is kept untouched and #2 is appended
	require.Len(t, merged, 2)
	assert.Equal(t, cobranza.StatusPaid, merged[0].Status)
	assert.True(t, merged[0].PaidAmount.Equal(mxn(1000)))
	assert.Equal(t, 2, merged[1].Number)
}

func TestMerge_Idempotent(t *testing.T) {
	// GIVEN: The e2e scenario generated once
	req := request(day(2024, time.January, 15))
	policies := []cobranza.Policy{monthlyPolicy("P1"), monthlyPolicy("P2")}

	first := cobranza.Merge(nil, cobranza.Generate(req, policies, nil).Receipts)

	// WHEN: Generating again against the merged ledger
	again := cobranza.Generate(req, policies, cobranza.NewLedger(first))
	second := cobranza.Merge(first, again.Receipts)

	// THEN: Nothing new, identical ledger
	assert.Empty(t, again.Receipts)
	assert.Equal(t, first, second)
}

func TestMerge_NewWindowAddsOnlyNewReceipts(t *testing.T) {
	policies := []cobranza.Policy{monthlyPolicy("P1")}
	ledger := cobranza.NewLedger(cobranza.Generate(request(day(2024, time.January, 15)), policies, nil).Receipts)

	// A month later the window reaches #4
	later := cobranza.Generate(request(day(2024, time.February, 15)), policies, ledger)
	added := ledger.Merge(later.Receipts)

	assert.Equal(t, []cobranza.ReceiptKey{key("P1", 4)}, keys(added))
	assert.Equal(t, 4, ledger.Len())
}

func TestNewLedger_FirstOccurrenceWins(t *testing.T) {
	l := cobranza.NewLedger([]cobranza.Receipt{
		{PolicyID: "P1", Number: 1, Comment: "first"},
		{PolicyID: "P1", Number: 1, Comment: "second"},
	})

	require.Equal(t, 1, l.Len())
	r, ok := l.Get(key("P1", 1))
	require.True(t, ok)
	assert.Equal(t, "first", r.Comment)

	_, ok = l.Get(key("P1", 2))
	assert.False(t, ok)
}

func TestLedger_ZeroValueIsUsable(t *testing.T) {
	// GIVEN: A ledger not built with NewLedger
	var l cobranza.Ledger

	assert.False(t, l.Has(key("P1", 1)))
	_, ok := l.Get(key("P1", 1))
	assert.False(t, ok)
	assert.Zero(t, l.RefreshOverdue(day(2024, time.January, 15)))

	// WHEN: Receipts are merged into it
	var added []cobranza.Receipt
	require.NotPanics(t, func() {
		added = l.Merge([]cobranza.Receipt{
			{PolicyID: "P1", Number: 1},
			{PolicyID: "P1", Number: 1},
		})
	})

	// THEN: It behaves like an empty NewLedger
	assert.Len(t, added, 1)
	assert.Equal(t, 1, l.Len())
	assert.True(t, l.Has(key("P1", 1)))
}

func TestLedger_ReceiptsSortedCopy(t *testing.T) {
	l := cobranza.NewLedger([]cobranza.Receipt{
		{PolicyID: "P2", Number: 1},
		{PolicyID: "P1", Number: 2},
		{PolicyID: "P1", Number: 1},
	})

	rs := l.Receipts()
	assert.Equal(t, []cobranza.ReceiptKey{key("P1", 1), key("P1", 2), key("P2", 1)}, keys(rs))

	// Mutating the copy leaves the ledger alone
	rs[0].Comment = "changed"
	r, _ := l.Get(key("P1", 1))
	assert.Empty(t, r.Comment)

	assert.Equal(t, []cobranza.ReceiptKey{key("P1", 1), key("P1", 2)}, keys(l.ByPolicy("P1")))
}

func TestRefreshOverdue(t *testing.T) {
	l := cobranza.NewLedger([]cobranza.Receipt{
		{PolicyID: "P1", Number: 1, DueDate: day(2024, time.January, 1), Status: cobranza.StatusPending},
		{PolicyID: "P1", Number: 2, DueDate: day(2024, time.February, 1), Status: cobranza.StatusPending},
		{PolicyID: "P1", Number: 3, DueDate: day(2024, time.January, 1), Status: cobranza.StatusPaid},
		{PolicyID: "P1", Number: 4, DueDate: day(2024, time.March, 1), Status: cobranza.StatusOverdue},
	})

	changed := l.RefreshOverdue(day(2024, time.February, 1))

	// #1 becomes OVERDUE; #2 is due today so stays PENDING; #3 is terminal;
	// #4 moves back to PENDING
	assert.Equal(t, 2, changed)
	statuses := map[int]cobranza.Status{}
	for _, r := range l.Receipts() {
		statuses[r.Number] = r.Status
	}
	assert.Equal(t, map[int]cobranza.Status{
		1: cobranza.StatusOverdue,
		2: cobranza.StatusPending,
		3: cobranza.StatusPaid,
		4: cobranza.StatusPending,
	}, statuses)
}
