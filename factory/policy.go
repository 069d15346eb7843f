/*
Package factory converts policy form data into cobranza.Policy values.

PURPOSE:
  Policies arrive from spreadsheets and web forms with loosely formatted
  fields: dates as dd/mm/yyyy or ISO, amounts with currency symbols and
  thousands separators, Spanish labels for periodicity and state. The
  factory normalizes them and rejects what cannot be billed.

JSON SCHEMA:
  {
    "id": "P1",
    "client_name": "Juan Pérez",
    "start_date": "01/01/2024",
    "end_date": "01/01/2025",
    "periodicity": "MENSUAL",
    "first_payment": "$1,000.00",
    "subsequent_payment": 500,
    "currency": "MXN",
    "state": "VIGENTE",
    "issuance_key": "AG-01"
  }

RULES:
  - id and start_date are required
  - first_payment must be positive; subsequent_payment may be zero
  - an unrecognized periodicity is kept as typed; generation bills it
    monthly and reports it
  - CANCELLED policies need a cancellation_date

USAGE:
  factory := NewPolicyFactory()
  policy, err := factory.ParsePolicy(jsonString)
*/
package factory

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/ealc/cobranza/cobranza"
	"github.com/ealc/cobranza/generic"
)

// =============================================================================
// JSON SCHEMA TYPES
// =============================================================================

// PolicyJSON is the JSON representation of a policy form.
type PolicyJSON struct {
	ID                string `json:"id"`
	ClientName        string `json:"client_name"`
	StartDate         string `json:"start_date"`
	EndDate           string `json:"end_date,omitempty"`
	Periodicity       string `json:"periodicity"`
	FirstPayment      Money  `json:"first_payment"`
	SubsequentPayment Money  `json:"subsequent_payment,omitempty"`
	Currency          string `json:"currency,omitempty"`
	State             string `json:"state,omitempty"`
	CancellationDate  string `json:"cancellation_date,omitempty"`
	IssuanceKey       string `json:"issuance_key,omitempty"`
	Product           string `json:"product,omitempty"`
	Insurer           string `json:"insurer,omitempty"`
	PaymentMethod     string `json:"payment_method,omitempty"`
}

// Money accepts either a JSON number or a formatted string ("$1,234.50").
type Money string

func (m *Money) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*m = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*m = Money(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("amount must be a number or string: %w", err)
	}
	*m = Money(n.String())
	return nil
}

// =============================================================================
// FACTORY
// =============================================================================

// PolicyFactory creates policies from JSON.
type PolicyFactory struct{}

func NewPolicyFactory() *PolicyFactory {
	return &PolicyFactory{}
}

// ParsePolicy parses one JSON object.
func (f *PolicyFactory) ParsePolicy(jsonStr string) (*cobranza.Policy, error) {
	var pj PolicyJSON
	if err := json.Unmarshal([]byte(jsonStr), &pj); err != nil {
		return nil, fmt.Errorf("invalid policy JSON: %w", err)
	}
	return f.FromJSON(pj)
}

// ParsePolicies parses a JSON array. The first invalid entry aborts.
func (f *PolicyFactory) ParsePolicies(jsonStr string) ([]cobranza.Policy, error) {
	var pjs []PolicyJSON
	if err := json.Unmarshal([]byte(jsonStr), &pjs); err != nil {
		return nil, fmt.Errorf("invalid policies JSON: %w", err)
	}
	policies := make([]cobranza.Policy, 0, len(pjs))
	for i, pj := range pjs {
		p, err := f.FromJSON(pj)
		if err != nil {
			return nil, fmt.Errorf("policy %d: %w", i, err)
		}
		policies = append(policies, *p)
	}
	return policies, nil
}

// FromJSON validates and normalizes a decoded form.
func (f *PolicyFactory) FromJSON(pj PolicyJSON) (*cobranza.Policy, error) {
	id := strings.TrimSpace(pj.ID)
	if id == "" {
		return nil, invalid("id", pj.ID, cobranza.ErrInvalidPolicy)
	}

	start, ok := generic.ParseDate(pj.StartDate)
	if !ok {
		return nil, invalid("start_date", pj.StartDate, cobranza.ErrInvalidDate)
	}

	var end generic.TimePoint
	if strings.TrimSpace(pj.EndDate) != "" {
		if end, ok = generic.ParseDate(pj.EndDate); !ok {
			return nil, invalid("end_date", pj.EndDate, cobranza.ErrInvalidDate)
		}
		if end.Before(start) {
			return nil, invalid("end_date", pj.EndDate, cobranza.ErrInvalidDate)
		}
	}

	currency := generic.ParseCurrency(pj.Currency)
	first := generic.NewAmountFromString(string(pj.FirstPayment), currency)
	if !first.IsPositive() {
		return nil, invalid("first_payment", string(pj.FirstPayment), cobranza.ErrInvalidAmount)
	}
	subsequent := generic.NewAmountFromString(string(pj.SubsequentPayment), currency)
	if subsequent.IsNegative() {
		return nil, invalid("subsequent_payment", string(pj.SubsequentPayment), cobranza.ErrInvalidAmount)
	}

	state, ok := cobranza.ParsePolicyState(pj.State)
	if !ok {
		return nil, invalid("state", pj.State, cobranza.ErrInvalidPolicy)
	}

	var cancelledOn generic.TimePoint
	if strings.TrimSpace(pj.CancellationDate) != "" {
		if cancelledOn, ok = generic.ParseDate(pj.CancellationDate); !ok {
			return nil, invalid("cancellation_date", pj.CancellationDate, cobranza.ErrInvalidDate)
		}
	}
	if state == cobranza.PolicyCancelled && cancelledOn.IsZero() {
		return nil, invalid("cancellation_date", pj.CancellationDate, cobranza.ErrInvalidDate)
	}

	return &cobranza.Policy{
		ID:                      cobranza.PolicyID(id),
		ClientName:              strings.TrimSpace(pj.ClientName),
		StartDate:               start,
		EndDate:                 end,
		Periodicity:             parsePeriodicity(pj.Periodicity),
		FirstPaymentAmount:      first,
		SubsequentPaymentAmount: subsequent,
		Currency:                currency,
		State:                   state,
		CancellationDate:        cancelledOn,
		IssuanceKey:             strings.TrimSpace(pj.IssuanceKey),
		Product:                 strings.TrimSpace(pj.Product),
		Insurer:                 strings.TrimSpace(pj.Insurer),
		PaymentMethod:           strings.TrimSpace(pj.PaymentMethod),
	}, nil
}

// ToJSON converts a policy back to its canonical form.
func (f *PolicyFactory) ToJSON(p cobranza.Policy) PolicyJSON {
	pj := PolicyJSON{
		ID:            string(p.ID),
		ClientName:    p.ClientName,
		StartDate:     p.StartDate.String(),
		Periodicity:   string(p.Periodicity),
		FirstPayment:  Money(p.FirstPaymentAmount.Value.StringFixed(2)),
		Currency:      string(p.Currency),
		State:         string(p.State),
		IssuanceKey:   p.IssuanceKey,
		Product:       p.Product,
		Insurer:       p.Insurer,
		PaymentMethod: p.PaymentMethod,
	}
	if !p.SubsequentPaymentAmount.IsZero() {
		pj.SubsequentPayment = Money(p.SubsequentPaymentAmount.Value.StringFixed(2))
	}
	if !p.EndDate.IsZero() {
		pj.EndDate = p.EndDate.String()
	}
	if !p.CancellationDate.IsZero() {
		pj.CancellationDate = p.CancellationDate.String()
	}
	return pj
}

// =============================================================================
// PARSE HELPERS
// =============================================================================

// parsePeriodicity normalizes known labels. Unknown labels are kept so the
// engine can report them when it falls back to monthly billing.
func parsePeriodicity(s string) cobranza.Periodicity {
	if p, ok := cobranza.ParsePeriodicity(s); ok {
		return p
	}
	if strings.TrimSpace(s) == "" {
		return cobranza.Monthly
	}
	return cobranza.Periodicity(strings.ToUpper(strings.TrimSpace(s)))
}

func invalid(field, value string, err error) error {
	return &cobranza.ValidationError{Field: field, Value: value, Err: err}
}
