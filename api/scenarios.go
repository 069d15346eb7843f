/*
scenarios.go - Demo scenario loaders for testing and demonstrations

PURPOSE:

	Provides pre-built portfolios that populate the database with policies
	and bill them as of a fixed date, so the statement, payment and
	cancellation screens have something realistic to show.

AVAILABLE SCENARIOS:

	monthly-start:  One monthly policy, first billing pass (three receipts)
	cancellation:   Quarterly and monthly policies, one paid, one cancelled
	renewal-watch:  Policies ending inside and outside the renewal range

HOW SCENARIOS WORK:
 1. Reset database (clear all data)
 2. Create policies via factory
 3. Run one billing pass as of the scenario date
 4. Optionally register payments or cancellations

USAGE VIA API:

	POST /api/scenarios/load
	{"scenario_id": "cancellation"}

NOTE:

	Scenarios reset the database. Only use in development/demo environments.
*/
package api

import (
	"context"
	"fmt"
	"net/http"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/ealc/cobranza/cobranza"
	"github.com/ealc/cobranza/generic"
)

const scenarioActor = "scenario"

// =============================================================================
// SCENARIO DEFINITIONS
// =============================================================================

type scenario struct {
	ScenarioDTO
	policies []string // factory JSON
	after    func(ctx context.Context, h *Handler, req cobranza.Request) error
}

var scenarios = []scenario{
	{
		ScenarioDTO: ScenarioDTO{
			ID:          "monthly-start",
			Name:        "Monthly Start",
			Description: "Monthly policy starting 01/01/2024 billed on 15/01/2024",
			AsOf:        "2024-01-15",
		},
		policies: []string{
			`{"id": "P1", "client_name": "Juan Pérez", "start_date": "01/01/2024", "end_date": "01/01/2025",
			  "periodicity": "MENSUAL", "first_payment": 1000, "subsequent_payment": 500,
			  "currency": "MXN", "state": "VIGENTE", "issuance_key": "AG-01"}`,
		},
	},
	{
		ScenarioDTO: ScenarioDTO{
			ID:          "cancellation",
			Name:        "Payment and Cancellation",
			Description: "Quarterly and monthly policies; first monthly receipt paid, monthly policy cancelled on 15/04/2024",
			AsOf:        "2024-04-01",
		},
		policies: []string{
			`{"id": "Q1", "client_name": "Transportes del Norte", "start_date": "2023-10-15", "end_date": "2024-10-15",
			  "periodicity": "TRIMESTRAL", "first_payment": "$400.00", "subsequent_payment": "$400.00",
			  "currency": "MXN", "state": "VIGENTE", "issuance_key": "AG-02"}`,
			`{"id": "M1", "client_name": "María López", "start_date": "01/02/2024", "end_date": "01/02/2025",
			  "periodicity": "MENSUAL", "first_payment": "1,000.00", "subsequent_payment": "500",
			  "currency": "MXN", "state": "VIGENTE", "issuance_key": "AG-01"}`,
		},
		after: func(ctx context.Context, h *Handler, req cobranza.Request) error {
			if _, err := h.Engine.RegisterPayment(ctx, req, cobranza.PaymentInput{
				PolicyID:      "M1",
				ReceiptNumber: 1,
				Amount:        decimal.NewFromInt(1000),
				PaymentDate:   "05/02/2024",
			}); err != nil {
				return fmt.Errorf("register payment: %w", err)
			}
			if _, err := h.Engine.CancelPolicy(ctx, req, "M1", "15/04/2024"); err != nil {
				return fmt.Errorf("cancel policy: %w", err)
			}
			return nil
		},
	},
	{
		ScenarioDTO: ScenarioDTO{
			ID:          "renewal-watch",
			Name:        "Renewal Watch",
			Description: "Policies ending 46, 51 and 134 days after 20/03/2024",
			AsOf:        "2024-03-20",
		},
		policies: []string{
			`{"id": "R1", "client_name": "Farmacias Rivera", "start_date": "2023-05-05", "end_date": "2024-05-05",
			  "periodicity": "ANUAL", "first_payment": 12000, "currency": "MXN", "state": "VIGENTE"}`,
			`{"id": "R2", "client_name": "Constructora Sol", "start_date": "2023-05-10", "end_date": "2024-05-10",
			  "periodicity": "SEMESTRAL", "first_payment": 3000, "subsequent_payment": 3000,
			  "currency": "USD", "state": "VIGENTE"}`,
			`{"id": "R3", "client_name": "Hotel Mirador", "start_date": "2023-08-01", "end_date": "2024-08-01",
			  "periodicity": "ANUAL", "first_payment": 8000, "currency": "UDI", "state": "VIGENTE"}`,
		},
	},
}

func findScenario(id string) (scenario, bool) {
	for _, s := range scenarios {
		if s.ID == id {
			return s, true
		}
	}
	return scenario{}, false
}

// =============================================================================
// SCENARIO HANDLERS
// =============================================================================

// ListScenarios returns available scenarios.
func (h *Handler) ListScenarios(w http.ResponseWriter, r *http.Request) {
	dtos := make([]ScenarioDTO, len(scenarios))
	for i, s := range scenarios {
		dtos[i] = s.ScenarioDTO
	}
	writeJSON(w, http.StatusOK, dtos)
}

// GetCurrentScenario returns the currently loaded scenario, if any.
func (h *Handler) GetCurrentScenario(w http.ResponseWriter, r *http.Request) {
	h.mu.RLock()
	current := h.currentScenario
	h.mu.RUnlock()

	if current == "" {
		writeJSON(w, http.StatusOK, nil)
		return
	}
	if s, ok := findScenario(current); ok {
		writeJSON(w, http.StatusOK, s.ScenarioDTO)
		return
	}
	writeJSON(w, http.StatusOK, ScenarioDTO{ID: current, Name: current})
}

// LoadScenario resets the database and loads a predefined scenario.
func (h *Handler) LoadScenario(w http.ResponseWriter, r *http.Request) {
	var body LoadScenarioRequest
	if !h.decode(w, r, &body) {
		return
	}

	s, ok := findScenario(body.ScenarioID)
	if !ok {
		writeError(w, http.StatusBadRequest, "Unknown scenario", fmt.Errorf("scenario %q", body.ScenarioID))
		return
	}

	summary, err := h.loadScenario(r.Context(), s)
	if err != nil {
		h.writeDomainError(w, r, "Failed to load scenario", err)
		return
	}

	writeJSON(w, http.StatusOK, LoadScenarioResponse{
		Scenario: s.ScenarioDTO,
		Policies: len(s.policies),
		Run:      toRunSummaryDTO(summary),
	})
}

// ResetDatabase clears all data.
func (h *Handler) ResetDatabase(w http.ResponseWriter, r *http.Request) {
	if err := h.Store.Reset(r.Context()); err != nil {
		h.writeStoreError(w, r, "Failed to reset database", err)
		return
	}

	h.mu.Lock()
	h.currentScenario = ""
	h.mu.Unlock()

	writeJSON(w, http.StatusOK, map[string]string{"status": "reset"})
}

// =============================================================================
// SCENARIO LOADER
// =============================================================================

// loadScenario returns the summary of the scenario's first billing pass.
func (h *Handler) loadScenario(ctx context.Context, s scenario) (*cobranza.RunSummary, error) {
	if err := h.Store.Reset(ctx); err != nil {
		return nil, &cobranza.StoreUnavailableError{Op: "reset", Err: err}
	}

	h.mu.Lock()
	h.currentScenario = ""
	h.mu.Unlock()

	for _, js := range s.policies {
		if err := h.createPolicyFromJSON(ctx, js); err != nil {
			return nil, err
		}
	}

	req := cobranza.Request{
		Today:  generic.MustParseDate(s.AsOf),
		Actor:  scenarioActor,
		Config: h.Schedule,
	}
	summary, err := h.Engine.Run(ctx, req)
	if err != nil {
		return nil, err
	}
	if s.after != nil {
		if err := s.after(ctx, h, req); err != nil {
			return nil, err
		}
	}

	h.mu.Lock()
	h.currentScenario = s.ID
	h.mu.Unlock()

	h.Logger.Info("scenario loaded",
		zap.String("scenario", s.ID),
		zap.Int("policies", len(s.policies)),
		zap.Int("generated", len(summary.Generated)),
	)
	return summary, nil
}

func (h *Handler) createPolicyFromJSON(ctx context.Context, jsonStr string) error {
	policy, err := h.PolicyFactory.ParsePolicy(jsonStr)
	if err != nil {
		return err
	}
	return h.Engine.SavePolicy(ctx, *policy)
}
