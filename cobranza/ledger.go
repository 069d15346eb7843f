/*
ledger.go - The set of receipts and its idempotent merge

INVARIANTS:
  1. UNIQUE: exactly one receipt per (PolicyID, Number)
  2. EXISTING WINS: merge never replaces a receipt already in the ledger,
     since it may carry payment or cancellation state
  3. NEVER DELETED: receipts only change status

MERGE:
  merge(existing, generated) = existing ∪ {g ∈ generated | key(g) ∉ keys(existing)}

  Running generation and merge again against the result adds nothing except
  receipts that have newly entered the window.

The Ledger is an in-memory snapshot. It is loaded once per pass, mutated by
payment and cancellation, and saved whole through LedgerStore.
*/
package cobranza

import "github.com/ealc/cobranza/generic"

// =============================================================================
// LEDGER - In-memory snapshot indexed by key
// =============================================================================

// Ledger is an in-memory snapshot of receipts keyed by ReceiptKey. The zero
// value is an empty ledger ready to use.
type Ledger struct {
	receipts []Receipt
	index    map[ReceiptKey]int
}

// NewLedger builds a snapshot. If the input carries the same key twice the
// first occurrence wins, matching merge semantics.
func NewLedger(receipts []Receipt) *Ledger {
	l := &Ledger{index: make(map[ReceiptKey]int, len(receipts))}
	l.Merge(receipts)
	return l
}

// Merge appends every receipt whose key is not yet present and returns the
// ones that were added, in input order.
func (l *Ledger) Merge(generated []Receipt) []Receipt {
	if l.index == nil {
		l.index = make(map[ReceiptKey]int, len(generated))
	}
	var added []Receipt
	for _, r := range generated {
		k := r.Key()
		if _, exists := l.index[k]; exists {
			continue
		}
		l.index[k] = len(l.receipts)
		l.receipts = append(l.receipts, r)
		added = append(added, r)
	}
	return added
}

func (l *Ledger) Has(key ReceiptKey) bool {
	_, ok := l.index[key]
	return ok
}

// Get returns a copy of the receipt.
func (l *Ledger) Get(key ReceiptKey) (Receipt, bool) {
	i, ok := l.index[key]
	if !ok {
		return Receipt{}, false
	}
	return l.receipts[i], true
}

func (l *Ledger) Len() int { return len(l.receipts) }

// Receipts returns a sorted copy of every receipt.
func (l *Ledger) Receipts() []Receipt {
	out := make([]Receipt, len(l.receipts))
	copy(out, l.receipts)
	sortReceipts(out)
	return out
}

// ByPolicy returns the receipts of one policy ordered by number.
func (l *Ledger) ByPolicy(id PolicyID) []Receipt {
	var out []Receipt
	for _, r := range l.receipts {
		if r.PolicyID == id {
			out = append(out, r)
		}
	}
	sortReceipts(out)
	return out
}

// update overwrites an existing receipt. Callers check terminal status first.
func (l *Ledger) update(r Receipt) {
	if i, ok := l.index[r.Key()]; ok {
		l.receipts[i] = r
	}
}

// RefreshOverdue re-evaluates PENDING/OVERDUE against today and returns the
// number of receipts whose stored status changed. Terminal receipts are not
// touched.
func (l *Ledger) RefreshOverdue(today generic.TimePoint) int {
	changed := 0
	for i, r := range l.receipts {
		if r.Status.IsTerminal() {
			continue
		}
		if s := statusOn(r.DueDate, today); s != r.Status {
			l.receipts[i].Status = s
			changed++
		}
	}
	return changed
}

// =============================================================================
// PURE MERGE
// =============================================================================

// Merge returns existing followed by the generated receipts whose keys are
// absent from existing. Neither input is modified.
func Merge(existing, generated []Receipt) []Receipt {
	l := NewLedger(existing)
	l.Merge(generated)
	return l.Receipts()
}
