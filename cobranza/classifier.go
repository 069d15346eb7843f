package cobranza

import "github.com/ealc/cobranza/generic"

// =============================================================================
// OVERDUE CLASSIFIER - Read-only urgency tiers for display
// =============================================================================

type Tier string

const (
	TierLow      Tier = "low"      // 0-4 days elapsed
	TierWatch    Tier = "watch"    // 5-10
	TierHigh     Tier = "high"     // 11-20
	TierCritical Tier = "critical" // 21+
	TierSettled  Tier = "settled"  // PAID
	TierVoid     Tier = "void"     // CANCELLED
)

// tierFloors is ordered from the highest lower bound down.
var tierFloors = []struct {
	minDays int
	tier    Tier
}{
	{21, TierCritical},
	{11, TierHigh},
	{5, TierWatch},
	{0, TierLow},
}

// DaysElapsed returns max(0, today - due).
func DaysElapsed(r Receipt, today generic.TimePoint) int {
	if d := generic.DaysBetween(r.DueDate, today); d > 0 {
		return d
	}
	return 0
}

// TierForDays maps days elapsed on an unpaid receipt to its tier.
func TierForDays(days int) Tier {
	for _, f := range tierFloors {
		if days >= f.minDays {
			return f.tier
		}
	}
	return TierLow
}

// Classify returns the tier of r as of today. It is never persisted.
func Classify(r Receipt, today generic.TimePoint) Tier {
	switch r.Status {
	case StatusPaid:
		return TierSettled
	case StatusCancelled:
		return TierVoid
	default:
		return TierForDays(DaysElapsed(r, today))
	}
}

// ReceiptView is a receipt decorated for display.
type ReceiptView struct {
	Receipt
	EffectiveStatus Status
	DaysElapsed     int
	Tier            Tier
}

// View derives the display fields of r as of today. EffectiveStatus reports
// OVERDUE for a stored PENDING receipt that is past due.
func View(r Receipt, today generic.TimePoint) ReceiptView {
	v := ReceiptView{Receipt: r, EffectiveStatus: r.Status, Tier: Classify(r, today)}
	if !r.Status.IsTerminal() {
		v.EffectiveStatus = statusOn(r.DueDate, today)
		v.DaysElapsed = DaysElapsed(r, today)
	}
	return v
}
