package cobranza_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ealc/cobranza/cobranza"
	"github.com/ealc/cobranza/generic"
)

func TestExpiringPolicies(t *testing.T) {
	today := day(2024, time.January, 1)

	withEnd := func(id string, daysAhead int) cobranza.Policy {
		p := monthlyPolicy(id)
		p.EndDate = today.AddDays(daysAhead)
		return p
	}
	cancelled := withEnd("C", 50)
	cancelled.State = cobranza.PolicyCancelled
	noEnd := monthlyPolicy("N")
	noEnd.EndDate = generic.TimePoint{}

	policies := []cobranza.Policy{
		withEnd("FAR", 61),
		withEnd("EDGE60", 60),
		withEnd("MID", 50),
		withEnd("EDGE45", 45),
		withEnd("NEAR", 44),
		withEnd("ALSO50", 50),
		cancelled,
		noEnd,
	}

	notices := cobranza.ExpiringPolicies(policies, today, cobranza.DefaultRenewalConfig())

	require.Len(t, notices, 4)
	ids := make([]cobranza.PolicyID, len(notices))
	for i, n := range notices {
		ids[i] = n.Policy.ID
	}
	assert.Equal(t, []cobranza.PolicyID{"EDGE45", "ALSO50", "MID", "EDGE60"}, ids)

	assert.Equal(t, 45, notices[0].DaysRemaining)
	assert.True(t, notices[0].Highlight)
	assert.True(t, notices[1].Highlight)
	assert.False(t, notices[3].Highlight)
}
