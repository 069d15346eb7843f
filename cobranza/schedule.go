/*
schedule.go - Receipt generation inside a rolling window

ALGORITHM:
  For each policy, walk n = 1, 2, ... computing due(n) = start + (n-1) periods.
  Stop when due(n) passes the end of the window or n exceeds MaxReceipts.
  Emit receipt n when:
    - no ledger entry exists for (policy, n), and
    - due(n) is inside the window, or n == 1.

  Receipt #1 is the initial premium that puts the policy in force; it is
  generated even when it fell due before the grace period so it can still be
  collected. Later installments older than the grace period are not
  back-filled.

GUARANTEES:
  - Never touches existing ledger entries.
  - Deterministic: output depends only on (policies, ledger keys, request).
  - Output is sorted by (PolicyID, Number).

EXAMPLE:
  Policy P1 starts 01/01/2024, MONTHLY, 1000 then 500; today 15/01/2024.
  Window [05/01/2024, 15/03/2024] yields:
    #1 due 01/01/2024  1000  OVERDUE
    #2 due 01/02/2024   500  PENDING
    #3 due 01/03/2024   500  PENDING
*/
package cobranza

import (
	"sort"

	"github.com/ealc/cobranza/generic"
)

// SkipReason explains why a policy produced no receipts.
type SkipReason string

const (
	SkipMissingID        SkipReason = "missing_policy_id"
	SkipMissingStartDate SkipReason = "missing_start_date"
	SkipNotActive        SkipReason = "not_active"
)

type SkippedPolicy struct {
	PolicyID PolicyID
	Reason   SkipReason
}

// GenerateResult is the output of one generation run.
type GenerateResult struct {
	Receipts []Receipt
	Skipped  []SkippedPolicy

	// DefaultedPeriodicity lists policies whose periodicity was not
	// recognized and was billed monthly.
	DefaultedPeriodicity []PolicyID
}

// Generate produces the receipts that are due inside req.Window() and absent
// from existing. existing may be nil.
func Generate(req Request, policies []Policy, existing *Ledger) GenerateResult {
	cfg := req.Config.withDefaults()
	window := req.Window()

	var result GenerateResult
	for _, p := range policies {
		switch {
		case p.ID == "":
			result.Skipped = append(result.Skipped, SkippedPolicy{Reason: SkipMissingID})
			continue
		case p.StartDate.IsZero():
			result.Skipped = append(result.Skipped, SkippedPolicy{PolicyID: p.ID, Reason: SkipMissingStartDate})
			continue
		case p.State != PolicyActive:
			result.Skipped = append(result.Skipped, SkippedPolicy{PolicyID: p.ID, Reason: SkipNotActive})
			continue
		}

		if _, known := ParsePeriodicity(string(p.Periodicity)); !known {
			result.DefaultedPeriodicity = append(result.DefaultedPeriodicity, p.ID)
			p.Periodicity = Monthly
		}

		result.Receipts = append(result.Receipts, generateForPolicy(p, req.Today, window, cfg.MaxReceipts, existing)...)
	}

	sortReceipts(result.Receipts)
	return result
}

func generateForPolicy(p Policy, today generic.TimePoint, window generic.Window, maxReceipts int, existing *Ledger) []Receipt {
	var receipts []Receipt
	for n := 1; n <= maxReceipts; n++ {
		due := p.DueDate(n)
		if due.After(window.End) {
			break
		}
		if n > 1 && due.Before(window.Start) {
			continue
		}
		if existing != nil && existing.Has(ReceiptKey{PolicyID: p.ID, Number: n}) {
			continue
		}

		expected := p.ExpectedAmount(n)
		receipts = append(receipts, Receipt{
			PolicyID:       p.ID,
			Number:         n,
			DueDate:        due,
			ExpectedAmount: expected,
			PaidAmount:     expected.Zero(),
			Status:         statusOn(due, today),
			ClientName:     p.ClientName,
			IssuanceKey:    p.IssuanceKey,
		})
	}
	return receipts
}

func sortReceipts(rs []Receipt) {
	sort.SliceStable(rs, func(i, j int) bool {
		if rs[i].PolicyID != rs[j].PolicyID {
			return rs[i].PolicyID < rs[j].PolicyID
		}
		return rs[i].Number < rs[j].Number
	})
}
