package factory

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ealc/cobranza/cobranza"
	"github.com/ealc/cobranza/generic"
)

func TestParsePolicy_FormLabels(t *testing.T) {
	factory := NewPolicyFactory()

	policy, err := factory.ParsePolicy(`{
		"id": " P1 ",
		"client_name": "Juan Pérez",
		"start_date": "01/01/2024",
		"end_date": "2025-01-01",
		"periodicity": "MENSUAL",
		"first_payment": "$1,000.00",
		"subsequent_payment": 500,
		"currency": "pesos",
		"state": "VIGENTE",
		"issuance_key": "AG-01",
		"insurer": "GNP"
	}`)

	require.NoError(t, err)
	assert.Equal(t, cobranza.PolicyID("P1"), policy.ID)
	assert.Equal(t, "Juan Pérez", policy.ClientName)
	assert.Equal(t, generic.NewTimePoint(2024, time.January, 1), policy.StartDate)
	assert.Equal(t, generic.NewTimePoint(2025, time.January, 1), policy.EndDate)
	assert.Equal(t, cobranza.Monthly, policy.Periodicity)
	assert.True(t, policy.FirstPaymentAmount.Equal(generic.NewAmountFromInt(1000, generic.CurrencyLocal)))
	assert.True(t, policy.SubsequentPaymentAmount.Equal(generic.NewAmountFromInt(500, generic.CurrencyLocal)))
	assert.Equal(t, cobranza.PolicyActive, policy.State)
	assert.Equal(t, "GNP", policy.Insurer)
}

func TestParsePolicy_UnknownPeriodicityIsKept(t *testing.T) {
	policy, err := NewPolicyFactory().ParsePolicy(`{"id":"P1","start_date":"01/01/2024","periodicity":"bimestral","first_payment":100}`)

	require.NoError(t, err)
	assert.Equal(t, cobranza.Periodicity("BIMESTRAL"), policy.Periodicity)
	assert.Equal(t, 1, policy.Periodicity.Months())
}

func TestParsePolicy_EmptyPeriodicityIsMonthly(t *testing.T) {
	policy, err := NewPolicyFactory().ParsePolicy(`{"id":"P1","start_date":"01/01/2024","first_payment":"100"}`)

	require.NoError(t, err)
	assert.Equal(t, cobranza.Monthly, policy.Periodicity)
	assert.True(t, policy.SubsequentPaymentAmount.IsZero())
}

func TestParsePolicy_Validation(t *testing.T) {
	tests := []struct {
		name  string
		json  string
		field string
		is    error
	}{
		{"missing id", `{"start_date":"01/01/2024","first_payment":100}`, "id", cobranza.ErrInvalidPolicy},
		{"missing start", `{"id":"P1","first_payment":100}`, "start_date", cobranza.ErrInvalidDate},
		{"bad start", `{"id":"P1","start_date":"31/02/2024","first_payment":100}`, "start_date", cobranza.ErrInvalidDate},
		{"end before start", `{"id":"P1","start_date":"01/01/2024","end_date":"01/01/2023","first_payment":100}`, "end_date", cobranza.ErrInvalidDate},
		{"zero first payment", `{"id":"P1","start_date":"01/01/2024","first_payment":"$0.00"}`, "first_payment", cobranza.ErrInvalidAmount},
		{"negative first payment after symbol", `{"id":"P1","start_date":"01/01/2024","first_payment":"$ -1,000.00"}`, "first_payment", cobranza.ErrInvalidAmount},
		{"exponent first payment", `{"id":"P1","start_date":"01/01/2024","first_payment":"1e3"}`, "first_payment", cobranza.ErrInvalidAmount},
		{"negative subsequent", `{"id":"P1","start_date":"01/01/2024","first_payment":100,"subsequent_payment":"-5"}`, "subsequent_payment", cobranza.ErrInvalidAmount},
		{"unknown state", `{"id":"P1","start_date":"01/01/2024","first_payment":100,"state":"SUSPENDIDA"}`, "state", cobranza.ErrInvalidPolicy},
		{"cancelled without date", `{"id":"P1","start_date":"01/01/2024","first_payment":100,"state":"CANCELADA"}`, "cancellation_date", cobranza.ErrInvalidDate},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewPolicyFactory().ParsePolicy(tt.json)

			require.Error(t, err)
			assert.ErrorIs(t, err, tt.is)
			assert.ErrorIs(t, err, cobranza.ErrValidation)
			var ve *cobranza.ValidationError
			require.ErrorAs(t, err, &ve)
			assert.Equal(t, tt.field, ve.Field)
		})
	}
}

func TestParsePolicy_MalformedJSON(t *testing.T) {
	_, err := NewPolicyFactory().ParsePolicy(`{"id":`)
	require.Error(t, err)

	_, err = NewPolicyFactory().ParsePolicy(`{"id":"P1","start_date":"01/01/2024","first_payment":true}`)
	require.Error(t, err)
}

func TestParsePolicies(t *testing.T) {
	policies, err := NewPolicyFactory().ParsePolicies(`[
		{"id":"P1","start_date":"01/01/2024","first_payment":100},
		{"id":"P2","start_date":"15/02/2024","periodicity":"TRIMESTRAL","first_payment":300,"state":"CANCELADO","cancellation_date":"01/06/2024"}
	]`)

	require.NoError(t, err)
	require.Len(t, policies, 2)
	assert.Equal(t, cobranza.Quarterly, policies[1].Periodicity)
	assert.Equal(t, cobranza.PolicyCancelled, policies[1].State)
	assert.Equal(t, generic.NewTimePoint(2024, time.June, 1), policies[1].CancellationDate)

	_, err = NewPolicyFactory().ParsePolicies(`[{"id":"P1","start_date":"01/01/2024","first_payment":100},{"id":""}]`)
	assert.ErrorContains(t, err, "policy 1")
}

func TestToJSON_RoundTrip(t *testing.T) {
	factory := NewPolicyFactory()
	original, err := factory.ParsePolicy(`{"id":"P1","client_name":"Ana","start_date":"31/01/2024","end_date":"31/01/2025","periodicity":"SEMESTRAL","first_payment":"1,500.50","subsequent_payment":"750.25","currency":"USD","issuance_key":"K"}`)
	require.NoError(t, err)

	data, err := json.Marshal(factory.ToJSON(*original))
	require.NoError(t, err)

	again, err := factory.ParsePolicy(string(data))
	require.NoError(t, err)
	assert.Equal(t, original.ID, again.ID)
	assert.Equal(t, original.StartDate, again.StartDate)
	assert.Equal(t, original.EndDate, again.EndDate)
	assert.Equal(t, original.Periodicity, again.Periodicity)
	assert.Equal(t, generic.CurrencyForeign, again.Currency)
	assert.True(t, original.FirstPaymentAmount.Equal(again.FirstPaymentAmount))
	assert.True(t, original.SubsequentPaymentAmount.Equal(again.SubsequentPaymentAmount))
}
