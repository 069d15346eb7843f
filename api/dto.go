/*
dto.go - Data Transfer Objects for API requests and responses

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients
  - *Response: Complex response wrappers

VALIDATION:
  Request bodies carry go-playground/validator tags and are checked in
  Handler.decode before reaching the engine. The engine still validates
  dates and amounts itself; tags only catch missing or malformed fields.

DATES AND AMOUNTS:
  Dates are rendered ISO (2006-01-02) with a dd/mm/yyyy display copy where
  the collection screen shows them. Amounts are decimal strings with two
  places so no precision is lost in JSON.
*/
package api

import (
	"time"

	"github.com/ealc/cobranza/cobranza"
	"github.com/ealc/cobranza/factory"
	"github.com/ealc/cobranza/generic"
)

// =============================================================================
// REQUEST TYPES
// =============================================================================

// PaymentRequest registers a payment against one receipt.
type PaymentRequest struct {
	Amount      factory.Money `json:"amount" validate:"required"`
	PaymentDate string        `json:"payment_date" validate:"required"`
}

// CancelPolicyRequest cancels a policy as of a date.
type CancelPolicyRequest struct {
	CancellationDate string `json:"cancellation_date" validate:"required"`
}

// ReceiptQuery filters the receipt statement.
type ReceiptQuery struct {
	PolicyID string `validate:"omitempty,max=64"`
	Tier     string `validate:"omitempty,oneof=low watch high critical settled void"`
}

// LoadScenarioRequest selects a demo scenario.
type LoadScenarioRequest struct {
	ScenarioID string `json:"scenario_id" validate:"required"`
}

// =============================================================================
// RESPONSE TYPES
// =============================================================================

// PolicyDTO represents a policy in API responses.
type PolicyDTO struct {
	ID                string `json:"id"`
	ClientName        string `json:"client_name"`
	StartDate         string `json:"start_date"`
	EndDate           string `json:"end_date,omitempty"`
	Periodicity       string `json:"periodicity"`
	FirstPayment      string `json:"first_payment"`
	SubsequentPayment string `json:"subsequent_payment"`
	Currency          string `json:"currency"`
	State             string `json:"state"`
	CancellationDate  string `json:"cancellation_date,omitempty"`
	IssuanceKey       string `json:"issuance_key,omitempty"`
	Product           string `json:"product,omitempty"`
	Insurer           string `json:"insurer,omitempty"`
	PaymentMethod     string `json:"payment_method,omitempty"`
}

// ReceiptDTO is a receipt with its display fields as of the request date.
type ReceiptDTO struct {
	Key             string `json:"key"`
	PolicyID        string `json:"policy_id"`
	Number          int    `json:"number"`
	DueDate         string `json:"due_date"`
	DueDateDisplay  string `json:"due_date_display"`
	ExpectedAmount  string `json:"expected_amount"`
	PaidAmount      string `json:"paid_amount"`
	Currency        string `json:"currency"`
	PaymentDate     string `json:"payment_date,omitempty"`
	DaysLate        int    `json:"days_late"`
	Status          string `json:"status"`
	EffectiveStatus string `json:"effective_status"`
	DaysElapsed     int    `json:"days_elapsed"`
	Tier            string `json:"tier"`
	Comment         string `json:"comment,omitempty"`
	ClientName      string `json:"client_name,omitempty"`
	IssuanceKey     string `json:"issuance_key,omitempty"`
}

// SkippedPolicyDTO reports a policy left out of generation.
type SkippedPolicyDTO struct {
	PolicyID string `json:"policy_id"`
	Reason   string `json:"reason"`
}

// RunSummaryDTO describes one billing pass.
type RunSummaryDTO struct {
	RunID                string             `json:"run_id"`
	Action               string             `json:"action"`
	AsOf                 string             `json:"as_of"`
	Generated            []string           `json:"generated"`
	Skipped              []SkippedPolicyDTO `json:"skipped"`
	DefaultedPeriodicity []string           `json:"defaulted_periodicity,omitempty"`
	Refreshed            int                `json:"refreshed"`
	Receipts             int                `json:"receipts"`
}

// StatementResponse is the billing tab: the pass summary plus the views.
type StatementResponse struct {
	AsOf     string        `json:"as_of"`
	Run      RunSummaryDTO `json:"run"`
	Receipts []ReceiptDTO  `json:"receipts"`
}

// PaymentResponse is the settled receipt.
type PaymentResponse struct {
	Receipt  ReceiptDTO `json:"receipt"`
	DaysLate int        `json:"days_late"`
}

// CancellationResponse lists the receipts voided by a cancellation.
type CancellationResponse struct {
	PolicyID         string   `json:"policy_id"`
	CancellationDate string   `json:"cancellation_date"`
	Cancelled        []string `json:"cancelled"`
}

// RenewalDTO is one entry of the renewal watch.
type RenewalDTO struct {
	Policy        PolicyDTO `json:"policy"`
	DaysRemaining int       `json:"days_remaining"`
	Highlight     bool      `json:"highlight"`
}

// RunDTO is a billing run log entry.
type RunDTO struct {
	ID          string `json:"id"`
	Action      string `json:"action"`
	AsOf        string `json:"as_of"`
	Actor       string `json:"actor,omitempty"`
	Generated   int    `json:"generated"`
	Paid        int    `json:"paid"`
	Cancelled   int    `json:"cancelled"`
	Skipped     int    `json:"skipped"`
	Status      string `json:"status"`
	Error       string `json:"error,omitempty"`
	StartedAt   string `json:"started_at"`
	CompletedAt string `json:"completed_at,omitempty"`
}

// ScenarioDTO represents a demo scenario.
type ScenarioDTO struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	AsOf        string `json:"as_of"`
}

// LoadScenarioResponse is returned after a scenario was loaded and billed.
type LoadScenarioResponse struct {
	Scenario ScenarioDTO   `json:"scenario"`
	Policies int           `json:"policies"`
	Run      RunSummaryDTO `json:"run"`
}

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
	Field   string `json:"field,omitempty"`
}

// =============================================================================
// CONVERSIONS
// =============================================================================

func toPolicyDTO(p cobranza.Policy) PolicyDTO {
	return PolicyDTO{
		ID:                string(p.ID),
		ClientName:        p.ClientName,
		StartDate:         dateString(p.StartDate),
		EndDate:           dateString(p.EndDate),
		Periodicity:       string(p.Periodicity),
		FirstPayment:      p.FirstPaymentAmount.Value.StringFixed(2),
		SubsequentPayment: p.SubsequentPaymentAmount.Value.StringFixed(2),
		Currency:          string(p.Currency),
		State:             string(p.State),
		CancellationDate:  dateString(p.CancellationDate),
		IssuanceKey:       p.IssuanceKey,
		Product:           p.Product,
		Insurer:           p.Insurer,
		PaymentMethod:     p.PaymentMethod,
	}
}

func toReceiptDTO(v cobranza.ReceiptView) ReceiptDTO {
	return ReceiptDTO{
		Key:             v.Key().String(),
		PolicyID:        string(v.PolicyID),
		Number:          v.Number,
		DueDate:         dateString(v.DueDate),
		DueDateDisplay:  v.DueDate.Display(),
		ExpectedAmount:  v.ExpectedAmount.Value.StringFixed(2),
		PaidAmount:      v.PaidAmount.Value.StringFixed(2),
		Currency:        string(v.ExpectedAmount.Currency),
		PaymentDate:     dateString(v.PaymentDate),
		DaysLate:        v.DaysLate,
		Status:          string(v.Status),
		EffectiveStatus: string(v.EffectiveStatus),
		DaysElapsed:     v.DaysElapsed,
		Tier:            string(v.Tier),
		Comment:         v.Comment,
		ClientName:      v.ClientName,
		IssuanceKey:     v.IssuanceKey,
	}
}

func toRunSummaryDTO(s *cobranza.RunSummary) RunSummaryDTO {
	dto := RunSummaryDTO{
		RunID:     s.RunID,
		Action:    string(s.Action),
		AsOf:      s.AsOf.String(),
		Generated: keyStrings(s.Generated),
		Skipped:   make([]SkippedPolicyDTO, len(s.Skipped)),
		Refreshed: s.Refreshed,
		Receipts:  len(s.Receipts()),
	}
	for i, sk := range s.Skipped {
		dto.Skipped[i] = SkippedPolicyDTO{PolicyID: string(sk.PolicyID), Reason: string(sk.Reason)}
	}
	for _, id := range s.DefaultedPeriodicity {
		dto.DefaultedPeriodicity = append(dto.DefaultedPeriodicity, string(id))
	}
	return dto
}

func toRunDTO(r cobranza.Run) RunDTO {
	dto := RunDTO{
		ID:        r.ID,
		Action:    string(r.Action),
		AsOf:      r.AsOf.String(),
		Actor:     r.Actor,
		Generated: r.Generated,
		Paid:      r.Paid,
		Cancelled: r.Cancelled,
		Skipped:   r.Skipped,
		Status:    string(r.Status),
		Error:     r.Error,
		StartedAt: r.StartedAt.UTC().Format(time.RFC3339),
	}
	if !r.CompletedAt.IsZero() {
		dto.CompletedAt = r.CompletedAt.UTC().Format(time.RFC3339)
	}
	return dto
}

func keyStrings(keys []cobranza.ReceiptKey) []string {
	out := make([]string, len(keys))
	for i, k := range keys {
		out[i] = k.String()
	}
	return out
}

func dateString(t generic.TimePoint) string {
	if t.IsZero() {
		return ""
	}
	return t.String()
}
