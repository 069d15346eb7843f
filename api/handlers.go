/*
handlers.go - HTTP API handlers for the collection back office

PURPOSE:
  Exposes the billing engine via REST API. Handles HTTP request/response,
  JSON serialization and validation, and delegates to cobranza.Engine.
  Every handler that touches receipts runs one billing pass.

ENDPOINTS:
  Policies:
    GET    /api/policies                    List policies (?state=ACTIVE)
    POST   /api/policies                    Create or replace a policy
    GET    /api/policies/{id}               Get policy details
    GET    /api/policies/{id}/receipts      Statement for one policy
    POST   /api/policies/{id}/cancel        Cancel policy, void future receipts

  Billing:
    POST   /api/billing/run                 Generate, merge, refresh, save
    GET    /api/receipts                    Statement (?policy_id=&tier=)
    POST   /api/receipts/{policyID}/{number}/payments  Register a payment
    GET    /api/renewals                    Policies ending in 45-60 days
    GET    /api/runs                        Billing run log (?limit=)

  Scenarios:
    GET    /api/scenarios                   List demo scenarios
    POST   /api/scenarios/load              Load a demo scenario

REQUEST CONTEXT:
  "Today" is the server date unless ?as_of= is given (ISO or dd/mm/yyyy).
  The actor for audit comments comes from the X-Actor header or ?actor=.

ERROR HANDLING:
  Errors are returned as JSON {error, details, field} with HTTP status:
  - 400: Malformed body, missing fields, bad query parameters
  - 404: Unknown policy or receipt
  - 409: Receipt already PAID or CANCELLED
  - 422: Domain validation (bad date, amount, policy data)
  - 503: Store unavailable; nothing was written, retry the action
  - 500: Anything else

SECURITY NOTE:
  No authentication. The actor header is trusted as given.

SEE ALSO:
  - dto.go: Request/response data structures
  - scenarios.go: Demo scenario loaders
  - server.go: Router setup and middleware
*/
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/ealc/cobranza/cobranza"
	"github.com/ealc/cobranza/factory"
	"github.com/ealc/cobranza/generic"
	"github.com/ealc/cobranza/logger"
	"github.com/ealc/cobranza/store/sqlite"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Store         *sqlite.Store
	Engine        *cobranza.Engine
	PolicyFactory *factory.PolicyFactory
	Logger        *zap.Logger

	Schedule cobranza.ScheduleConfig
	Renewal  cobranza.RenewalConfig
	Now      func() time.Time // defaults to time.Now

	validate *validator.Validate

	// Track currently loaded scenario
	mu              sync.RWMutex
	currentScenario string
}

// NewHandler creates a handler whose engine reads and writes store.
func NewHandler(store *sqlite.Store, log *zap.Logger) *Handler {
	if log == nil {
		log = zap.NewNop()
	}
	return &Handler{
		Store:         store,
		Engine:        cobranza.NewEngine(store, store, log),
		PolicyFactory: factory.NewPolicyFactory(),
		Logger:        log,
		Schedule:      cobranza.DefaultScheduleConfig(),
		Renewal:       cobranza.DefaultRenewalConfig(),
		Now:           time.Now,
		validate:      newValidator(),
	}
}

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "" || name == "-" {
			return strings.ToLower(fld.Name)
		}
		return name
	})
	return v
}

// =============================================================================
// POLICY HANDLERS
// =============================================================================

// ListPolicies returns all policies, optionally filtered by state.
func (h *Handler) ListPolicies(w http.ResponseWriter, r *http.Request) {
	var state cobranza.PolicyState
	if s := r.URL.Query().Get("state"); s != "" {
		parsed, ok := cobranza.ParsePolicyState(s)
		if !ok {
			writeError(w, http.StatusBadRequest, "Invalid state filter", fmt.Errorf("unknown state %q", s))
			return
		}
		state = parsed
	}

	policies, err := h.Store.ListPolicies(r.Context())
	if err != nil {
		h.writeStoreError(w, r, "Failed to list policies", err)
		return
	}

	dtos := make([]PolicyDTO, 0, len(policies))
	for _, p := range policies {
		if state != "" && p.State != state {
			continue
		}
		dtos = append(dtos, toPolicyDTO(p))
	}
	writeJSON(w, http.StatusOK, dtos)
}

// GetPolicy returns a single policy.
func (h *Handler) GetPolicy(w http.ResponseWriter, r *http.Request) {
	id := cobranza.PolicyID(chi.URLParam(r, "id"))

	policy, err := h.Store.GetPolicy(r.Context(), id)
	if err != nil {
		h.writeStoreError(w, r, "Failed to get policy", err)
		return
	}
	if policy == nil {
		writeError(w, http.StatusNotFound, "Policy not found", nil)
		return
	}
	writeJSON(w, http.StatusOK, toPolicyDTO(*policy))
}

// CreatePolicy validates a policy form and stores it. An existing policy
// with the same id is replaced, but its state only changes through
// POST /api/policies/{id}/cancel and its schedule is fixed once billed.
func (h *Handler) CreatePolicy(w http.ResponseWriter, r *http.Request) {
	var form factory.PolicyJSON
	if err := json.NewDecoder(r.Body).Decode(&form); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	policy, err := h.PolicyFactory.FromJSON(form)
	if err != nil {
		h.writeDomainError(w, r, "Invalid policy", err)
		return
	}

	if err := h.Engine.SavePolicy(r.Context(), *policy); err != nil {
		message := "Failed to save policy"
		if errors.Is(err, cobranza.ErrPolicyStateChange) {
			message = "Policy state cannot change here; cancel through POST /api/policies/" + string(policy.ID) + "/cancel"
		}
		h.writeDomainError(w, r, message, err)
		return
	}

	logger.FromContext(r.Context()).Info("policy saved",
		zap.String("policy_id", string(policy.ID)),
		zap.String("state", string(policy.State)),
	)
	writeJSON(w, http.StatusCreated, toPolicyDTO(*policy))
}

// CancelPolicy marks the policy CANCELLED and voids every non-terminal
// receipt due after the cancellation date.
func (h *Handler) CancelPolicy(w http.ResponseWriter, r *http.Request) {
	req, ok := h.request(w, r)
	if !ok {
		return
	}

	var body CancelPolicyRequest
	if !h.decode(w, r, &body) {
		return
	}

	id := cobranza.PolicyID(chi.URLParam(r, "id"))
	result, err := h.Engine.CancelPolicy(r.Context(), req, id, body.CancellationDate)
	if err != nil {
		h.writeDomainError(w, r, "Failed to cancel policy", err)
		return
	}

	writeJSON(w, http.StatusOK, CancellationResponse{
		PolicyID:         string(result.PolicyID),
		CancellationDate: result.CancellationDate.String(),
		Cancelled:        keyStrings(result.Cancelled),
	})
}

// GetPolicyReceipts returns the statement of one policy.
func (h *Handler) GetPolicyReceipts(w http.ResponseWriter, r *http.Request) {
	id := cobranza.PolicyID(chi.URLParam(r, "id"))

	policy, err := h.Store.GetPolicy(r.Context(), id)
	if err != nil {
		h.writeStoreError(w, r, "Failed to get policy", err)
		return
	}
	if policy == nil {
		writeError(w, http.StatusNotFound, "Policy not found", nil)
		return
	}

	h.statement(w, r, cobranza.StatementFilter{PolicyID: id})
}

// =============================================================================
// BILLING HANDLERS
// =============================================================================

// RunBilling performs a billing pass with no mutation.
func (h *Handler) RunBilling(w http.ResponseWriter, r *http.Request) {
	req, ok := h.request(w, r)
	if !ok {
		return
	}

	summary, err := h.Engine.Run(r.Context(), req)
	if err != nil {
		h.writeDomainError(w, r, "Billing run failed", err)
		return
	}
	writeJSON(w, http.StatusOK, toRunSummaryDTO(summary))
}

// ListReceipts returns the statement, optionally filtered by policy and tier.
func (h *Handler) ListReceipts(w http.ResponseWriter, r *http.Request) {
	q := ReceiptQuery{
		PolicyID: r.URL.Query().Get("policy_id"),
		Tier:     strings.ToLower(r.URL.Query().Get("tier")),
	}
	if err := h.validate.Struct(q); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid receipt filter", err)
		return
	}

	h.statement(w, r, cobranza.StatementFilter{
		PolicyID: cobranza.PolicyID(q.PolicyID),
		Tier:     cobranza.Tier(q.Tier),
	})
}

func (h *Handler) statement(w http.ResponseWriter, r *http.Request, filter cobranza.StatementFilter) {
	req, ok := h.request(w, r)
	if !ok {
		return
	}

	views, summary, err := h.Engine.Statement(r.Context(), req, filter)
	if err != nil {
		h.writeDomainError(w, r, "Failed to build statement", err)
		return
	}

	resp := StatementResponse{
		AsOf:     req.Today.String(),
		Run:      toRunSummaryDTO(summary),
		Receipts: make([]ReceiptDTO, len(views)),
	}
	for i, v := range views {
		resp.Receipts[i] = toReceiptDTO(v)
	}
	writeJSON(w, http.StatusOK, resp)
}

// RegisterPayment settles one receipt.
func (h *Handler) RegisterPayment(w http.ResponseWriter, r *http.Request) {
	req, ok := h.request(w, r)
	if !ok {
		return
	}

	number, err := strconv.Atoi(chi.URLParam(r, "number"))
	if err != nil || number < 1 {
		writeError(w, http.StatusBadRequest, "Invalid receipt number", err)
		return
	}

	var body PaymentRequest
	if !h.decode(w, r, &body) {
		return
	}

	result, err := h.Engine.RegisterPayment(r.Context(), req, cobranza.PaymentInput{
		PolicyID:      cobranza.PolicyID(chi.URLParam(r, "policyID")),
		ReceiptNumber: number,
		Amount:        generic.ParseAmount(string(body.Amount)),
		PaymentDate:   body.PaymentDate,
	})
	if err != nil {
		h.writeDomainError(w, r, "Failed to register payment", err)
		return
	}

	writeJSON(w, http.StatusOK, PaymentResponse{
		Receipt:  toReceiptDTO(cobranza.View(result.Receipt, req.Today)),
		DaysLate: result.DaysLate,
	})
}

// ListRenewals returns active policies whose coverage ends soon.
func (h *Handler) ListRenewals(w http.ResponseWriter, r *http.Request) {
	req, ok := h.request(w, r)
	if !ok {
		return
	}

	notices, err := h.Engine.Renewals(r.Context(), req, h.Renewal)
	if err != nil {
		h.writeDomainError(w, r, "Failed to list renewals", err)
		return
	}

	dtos := make([]RenewalDTO, len(notices))
	for i, n := range notices {
		dtos[i] = RenewalDTO{
			Policy:        toPolicyDTO(n.Policy),
			DaysRemaining: n.DaysRemaining,
			Highlight:     n.Highlight,
		}
	}
	writeJSON(w, http.StatusOK, dtos)
}

// ListRuns returns the billing run log, newest first.
func (h *Handler) ListRuns(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if s := r.URL.Query().Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "Invalid limit", err)
			return
		}
		limit = n
	}

	runs, err := h.Store.ListRuns(r.Context(), limit)
	if err != nil {
		h.writeStoreError(w, r, "Failed to list runs", err)
		return
	}

	dtos := make([]RunDTO, len(runs))
	for i, run := range runs {
		dtos[i] = toRunDTO(run)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// Health reports whether the database answers.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	if err := h.Store.Ping(r.Context()); err != nil {
		writeError(w, http.StatusServiceUnavailable, "Database unavailable", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// =============================================================================
// HELPERS
// =============================================================================

// request builds the per-operation context. It writes a 400 and returns
// false when ?as_of= cannot be parsed.
func (h *Handler) request(w http.ResponseWriter, r *http.Request) (cobranza.Request, bool) {
	today := generic.FromTime(h.now())
	if s := r.URL.Query().Get("as_of"); s != "" {
		d, ok := generic.ParseDate(s)
		if !ok {
			writeError(w, http.StatusBadRequest, "Invalid as_of date", fmt.Errorf("cannot parse %q", s))
			return cobranza.Request{}, false
		}
		today = d
	}

	actor := r.Header.Get("X-Actor")
	if actor == "" {
		actor = r.URL.Query().Get("actor")
	}
	return cobranza.Request{Today: today, Actor: actor, Config: h.Schedule}, true
}

// decode reads a JSON body into dst and validates its tags.
func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return false
	}
	if err := h.validate.Struct(dst); err != nil {
		resp := ErrorResponse{Error: "Invalid request body", Details: err.Error()}
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			resp.Field = verrs[0].Field()
			resp.Details = fmt.Sprintf("%s is %s", verrs[0].Field(), verrs[0].Tag())
		}
		writeJSON(w, http.StatusBadRequest, resp)
		return false
	}
	return true
}

func (h *Handler) now() time.Time {
	if h.Now == nil {
		return time.Now()
	}
	return h.Now()
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

// writeDomainError maps engine errors to their HTTP status.
func (h *Handler) writeDomainError(w http.ResponseWriter, r *http.Request, message string, err error) {
	status := statusFor(err)
	resp := ErrorResponse{Error: message, Details: err.Error()}

	var ve *cobranza.ValidationError
	if errors.As(err, &ve) {
		resp.Field = ve.Field
	}
	if status >= http.StatusInternalServerError {
		logger.FromContext(r.Context()).Error(message, zap.Error(err))
	}
	writeJSON(w, status, resp)
}

// writeStoreError reports a direct store failure as 503.
func (h *Handler) writeStoreError(w http.ResponseWriter, r *http.Request, message string, err error) {
	h.writeDomainError(w, r, message, &cobranza.StoreUnavailableError{Op: "api", Err: err})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, cobranza.ErrValidation):
		return http.StatusUnprocessableEntity
	case errors.Is(err, cobranza.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, cobranza.ErrAlreadySettled):
		return http.StatusConflict
	case errors.Is(err, cobranza.ErrStoreUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
