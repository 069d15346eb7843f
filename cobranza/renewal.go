package cobranza

import (
	"sort"

	"github.com/ealc/cobranza/generic"
)

// =============================================================================
// RENEWAL WATCH - Active policies whose coverage ends soon
// =============================================================================

type RenewalConfig struct {
	MinDays       int
	MaxDays       int
	HighlightDays int // notices at or below this many days are flagged
}

func DefaultRenewalConfig() RenewalConfig {
	return RenewalConfig{MinDays: 45, MaxDays: 60, HighlightDays: 50}
}

type RenewalNotice struct {
	Policy        Policy
	DaysRemaining int
	Highlight     bool
}

// ExpiringPolicies returns the active policies with MinDays <= end - today <=
// MaxDays, soonest first. Policies without an end date are ignored.
func ExpiringPolicies(policies []Policy, today generic.TimePoint, cfg RenewalConfig) []RenewalNotice {
	var notices []RenewalNotice
	for _, p := range policies {
		if p.State != PolicyActive || p.EndDate.IsZero() {
			continue
		}
		remaining := generic.DaysBetween(today, p.EndDate)
		if remaining < cfg.MinDays || remaining > cfg.MaxDays {
			continue
		}
		notices = append(notices, RenewalNotice{
			Policy:        p,
			DaysRemaining: remaining,
			Highlight:     remaining <= cfg.HighlightDays,
		})
	}

	sort.SliceStable(notices, func(i, j int) bool {
		if notices[i].DaysRemaining != notices[j].DaysRemaining {
			return notices[i].DaysRemaining < notices[j].DaysRemaining
		}
		return notices[i].Policy.ID < notices[j].Policy.ID
	})
	return notices
}
