/*
handlers.go - HTTP API handlers for the planning engine

PURPOSE:
  Exposes plan generation and pay computation via REST API. Handles HTTP
  request/response, JSON serialization, and delegates to the plan and
  payroll services.

ENDPOINTS:
  Plans:
    POST   /api/plans/{month}/generate     Regenerate the month's plan
    GET    /api/plans/{month}              Stored plan rows
    PUT    /api/plans/{month}/rows         Manual edit; locks the row
    POST   /api/plans/{month}/rows/unlock  Hand a row back to the allocator

  Pay:
    GET    /api/operators/{id}/pay?month=YYYY-MM&week=YYYY-MM-DD
    GET    /api/roles/{role}/pay?month=YYYY-MM

  Scenarios:
    GET    /api/scenarios                  List demo scenarios
    GET    /api/scenarios/current          Loaded scenario, if any
    POST   /api/scenarios/load             Reset and seed a scenario

  Inputs:
    GET    /api/operators                  List operators
    POST   /api/operators                  Create or rename an operator
    POST   /api/revenue                    Record shift revenue
    POST   /api/adjustments                Append a ledger entry
    POST   /api/weekly-debts               Record an automatic weekly debt
    POST   /api/weekly-debts/{id}/status   Settle, cancel or reactivate a weekly debt
    GET    /api/salary-rules               Current rule-set document
    POST   /api/salary-rules               Upload a rule-set document

ERROR HANDLING:
  Errors are returned as JSON with the status picked by statusFor:
  - 400: invalid input (generic.IsClientError)
  - 404: unknown operator, role or plan row (generic.IsNotFound)
  - 409: identity conflict or locked row (generic.IsConflict)
  - 500: everything else

SECURITY NOTE:
  No authentication. All endpoints are public.

SEE ALSO:
  - dto.go: Request/response data structures
  - server.go: Router setup and middleware
*/
package api

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/warp/payplan/factory"
	"github.com/warp/payplan/generic"
	"github.com/warp/payplan/payroll"
	"github.com/warp/payplan/plan"
	"github.com/warp/payplan/store/sqlite"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Store       *sqlite.Store
	Planner     *plan.Planner
	Payroll     *payroll.Service
	RuleFactory *factory.RuleFactory
	Clock       generic.Clock

	// Track currently loaded scenario
	mu              sync.Mutex
	currentScenario string
}

// NewHandler creates a handler over store and the services built on it.
func NewHandler(store *sqlite.Store, planner *plan.Planner, pay *payroll.Service) *Handler {
	return &Handler{
		Store:       store,
		Planner:     planner,
		Payroll:     pay,
		RuleFactory: factory.NewRuleFactory(),
		Clock:       generic.SystemClock{},
	}
}

// =============================================================================
// PLAN HANDLERS
// =============================================================================

// GeneratePlan regenerates the month's plan and returns every stored row.
func (h *Handler) GeneratePlan(w http.ResponseWriter, r *http.Request) {
	month, ok := monthParam(w, r)
	if !ok {
		return
	}

	out, err := h.Planner.GeneratePlan(r.Context(), month)
	if err != nil {
		writeDomainError(w, "Failed to generate plan", err)
		return
	}

	resp := toPlanResponse(out.Month, out.Entries)
	resp.Written, resp.Preserved, resp.Pruned = &out.Written, &out.Preserved, &out.Pruned
	writeJSON(w, http.StatusOK, resp)
}

// GetPlan returns the stored rows of the month.
func (h *Handler) GetPlan(w http.ResponseWriter, r *http.Request) {
	month, ok := monthParam(w, r)
	if !ok {
		return
	}

	entries, err := h.Planner.Plan(r.Context(), month)
	if err != nil {
		writeDomainError(w, "Failed to load plan", err)
		return
	}
	writeJSON(w, http.StatusOK, toPlanResponse(month, entries))
}

// EditPlanRow stores a manual edit and locks the row.
func (h *Handler) EditPlanRow(w http.ResponseWriter, r *http.Request) {
	month, ok := monthParam(w, r)
	if !ok {
		return
	}
	var req EditRowRequest
	if !decodeBody(w, r, &req) {
		return
	}

	targets := generic.Targets{
		MonthTurnover: req.MonthTurnover,
		WeekTurnover:  req.WeekTurnover,
		MonthShifts:   req.MonthShifts,
		WeekShifts:    req.WeekShifts,
	}
	locked, err := h.Planner.LockRow(r.Context(), req.planKey(month), targets, req.Metadata)
	if err != nil {
		writeDomainError(w, "Failed to edit plan row", err)
		return
	}
	writeJSON(w, http.StatusOK, toPlanRowDTO(locked))
}

// UnlockPlanRow clears the lock so the next generation overwrites the row.
func (h *Handler) UnlockPlanRow(w http.ResponseWriter, r *http.Request) {
	month, ok := monthParam(w, r)
	if !ok {
		return
	}
	var req RowKeyRequest
	if !decodeBody(w, r, &req) {
		return
	}

	if err := h.Planner.UnlockRow(r.Context(), req.planKey(month)); err != nil {
		writeDomainError(w, "Failed to unlock plan row", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "unlocked"})
}

// =============================================================================
// PAY HANDLERS
// =============================================================================

// GetOperatorPay returns the monthly breakdown and, with ?week=, the weekly one.
func (h *Handler) GetOperatorPay(w http.ResponseWriter, r *http.Request) {
	op := generic.OperatorID(chi.URLParam(r, "id"))
	q := r.URL.Query()

	month, err := generic.ParseMonth(q.Get("month"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid month (use YYYY-MM)", err)
		return
	}
	var week generic.TimePoint
	if ws := q.Get("week"); ws != "" {
		if week, err = generic.ParseDate(ws); err != nil {
			writeError(w, http.StatusBadRequest, "Invalid week (use YYYY-MM-DD)", err)
			return
		}
	}

	report, err := h.Payroll.OperatorPay(r.Context(), op, month, week)
	if err != nil {
		writeDomainError(w, "Failed to compute pay", err)
		return
	}
	writeJSON(w, http.StatusOK, toOperatorPayDTO(report))
}

// GetRolePay returns a management role's monthly pay.
func (h *Handler) GetRolePay(w http.ResponseWriter, r *http.Request) {
	role := generic.RoleCode(chi.URLParam(r, "role"))

	month, err := generic.ParseMonth(r.URL.Query().Get("month"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid month (use YYYY-MM)", err)
		return
	}

	rb, err := h.Payroll.RolePay(r.Context(), role, month)
	if err != nil {
		writeDomainError(w, "Failed to compute role pay", err)
		return
	}
	writeJSON(w, http.StatusOK, toRolePayDTO(rb))
}

// =============================================================================
// INPUT HANDLERS
// =============================================================================

func (h *Handler) ListOperators(w http.ResponseWriter, r *http.Request) {
	ops, err := h.Store.Operators(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list operators", err)
		return
	}

	dtos := make([]OperatorDTO, len(ops))
	for i, op := range ops {
		dtos[i] = OperatorDTO{ID: string(op.ID), Name: op.Name, Active: op.Active}
	}
	writeJSON(w, http.StatusOK, dtos)
}

func (h *Handler) CreateOperator(w http.ResponseWriter, r *http.Request) {
	var req CreateOperatorRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.ID == "" || req.Name == "" {
		writeError(w, http.StatusBadRequest, "id and name are required", nil)
		return
	}

	op := generic.Operator{ID: generic.OperatorID(req.ID), Name: req.Name, Active: true}
	if req.Active != nil {
		op.Active = *req.Active
	}
	if err := h.Store.SaveOperator(r.Context(), op); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to save operator", err)
		return
	}
	writeJSON(w, http.StatusCreated, OperatorDTO{ID: req.ID, Name: op.Name, Active: op.Active})
}

func (h *Handler) CreateRevenue(w http.ResponseWriter, r *http.Request) {
	var req CreateRevenueRequest
	if !decodeBody(w, r, &req) {
		return
	}

	date, err := generic.ParseDate(req.Date)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid date (use YYYY-MM-DD)", err)
		return
	}
	shift, err := generic.ParseShiftType(req.Shift)
	if err != nil {
		writeDomainError(w, "Invalid shift", err)
		return
	}

	id, err := h.Store.AddRevenue(r.Context(), generic.RevenueRecord{
		ID:       generic.RecordID(req.ID),
		Date:     date,
		Company:  generic.CompanyCode(req.Company),
		Operator: generic.OperatorID(req.Operator),
		Shift:    shift,
		Channels: generic.Channels{Cash: req.Cash, Wallet: req.Wallet, Card: req.Card, Online: req.Online},
	})
	if err != nil {
		writeDomainError(w, "Failed to record revenue", err)
		return
	}
	writeJSON(w, http.StatusCreated, CreatedResponse{ID: string(id)})
}

// CreateAdjustment appends a ledger entry. The amount is a positive
// magnitude; the kind decides the sign.
func (h *Handler) CreateAdjustment(w http.ResponseWriter, r *http.Request) {
	var req CreateAdjustmentRequest
	if !decodeBody(w, r, &req) {
		return
	}

	date, err := generic.ParseDate(req.Date)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid date (use YYYY-MM-DD)", err)
		return
	}
	kind := generic.AdjustmentKind(req.Kind)
	if !kind.Valid() {
		writeDomainError(w, "Invalid adjustment", fmt.Errorf("%w: %q", generic.ErrInvalidAdjustmentKind, req.Kind))
		return
	}
	if !req.Amount.IsPositive() {
		writeDomainError(w, "Invalid adjustment", fmt.Errorf("%w: amount must be positive", generic.ErrInvalidAmount))
		return
	}
	if req.Operator == "" {
		writeError(w, http.StatusBadRequest, "operator is required", nil)
		return
	}

	id := generic.RecordID(h.Store.NewID())
	err = h.Store.AppendAdjustment(r.Context(), generic.Adjustment{
		ID:       id,
		Operator: generic.OperatorID(req.Operator),
		Date:     date,
		Amount:   req.Amount,
		Kind:     kind,
		Note:     req.Note,
	})
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to append adjustment", err)
		return
	}
	writeJSON(w, http.StatusCreated, CreatedResponse{ID: string(id)})
}

// CreateWeeklyDebt records an automatic deduction. The date is moved to the
// Monday of its week.
func (h *Handler) CreateWeeklyDebt(w http.ResponseWriter, r *http.Request) {
	var req CreateDebtRequest
	if !decodeBody(w, r, &req) {
		return
	}

	week, err := generic.ParseDate(req.WeekStart)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid week_start (use YYYY-MM-DD)", err)
		return
	}
	if !req.Amount.IsPositive() {
		writeDomainError(w, "Invalid weekly debt", fmt.Errorf("%w: amount must be positive", generic.ErrInvalidAmount))
		return
	}
	if req.Operator == "" {
		writeError(w, http.StatusBadRequest, "operator is required", nil)
		return
	}

	id := generic.RecordID(h.Store.NewID())
	err = h.Store.AppendDebt(r.Context(), generic.WeeklyDebt{
		ID:        id,
		Operator:  generic.OperatorID(req.Operator),
		WeekStart: generic.WeekStart(week),
		Amount:    req.Amount,
		Status:    generic.DebtActive,
	})
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to record weekly debt", err)
		return
	}
	writeJSON(w, http.StatusCreated, CreatedResponse{ID: string(id)})
}

// SetWeeklyDebtStatus settles or cancels a weekly debt. Only active debts
// are deducted from pay.
func (h *Handler) SetWeeklyDebtStatus(w http.ResponseWriter, r *http.Request) {
	var req DebtStatusRequest
	if !decodeBody(w, r, &req) {
		return
	}

	id := generic.RecordID(chi.URLParam(r, "id"))
	if err := h.Store.SetDebtStatus(r.Context(), id, generic.DebtStatus(req.Status)); err != nil {
		writeDomainError(w, "Failed to update weekly debt", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"id": string(id), "status": req.Status})
}

// =============================================================================
// SALARY RULE HANDLERS
// =============================================================================

// ListSalaryRules returns every rule and role salary as one document.
func (h *Handler) ListSalaryRules(w http.ResponseWriter, r *http.Request) {
	rules, err := h.Store.ListRules(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list salary rules", err)
		return
	}
	roles, err := h.Store.RoleSalaries(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list role salaries", err)
		return
	}
	writeJSON(w, http.StatusOK, h.RuleFactory.ToJSON(rules, roles))
}

// UploadSalaryRules validates a rule-set document and stores it. A rule
// colliding with a stored active rule is a 409 and nothing is written.
func (h *Handler) UploadSalaryRules(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Failed to read request body", err)
		return
	}

	doc, err := h.RuleFactory.ParseRuleSet(body)
	if err != nil {
		status := statusFor(err)
		if status == http.StatusInternalServerError {
			// Malformed JSON.
			status = http.StatusBadRequest
		}
		writeError(w, status, "Invalid rule set", err)
		return
	}

	saved, err := h.Store.SaveRules(r.Context(), doc.Rules)
	if err != nil {
		writeDomainError(w, "Failed to save salary rules", err)
		return
	}
	for _, role := range doc.Roles {
		if err := h.Store.SaveRoleSalary(r.Context(), role); err != nil {
			writeError(w, http.StatusInternalServerError, "Failed to save role salary", err)
			return
		}
	}
	writeJSON(w, http.StatusCreated, h.RuleFactory.ToJSON(saved, doc.Roles))
}

// ResetDatabase clears all data.
func (h *Handler) ResetDatabase(w http.ResponseWriter, r *http.Request) {
	if err := h.Store.Reset(r.Context()); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to reset database", err)
		return
	}
	h.setScenario("")
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// =============================================================================
// HELPERS
// =============================================================================

func monthParam(w http.ResponseWriter, r *http.Request) (generic.TimePoint, bool) {
	month, err := generic.ParseMonth(chi.URLParam(r, "month"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid month (use YYYY-MM)", err)
		return generic.TimePoint{}, false
	}
	return month, true
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return false
	}
	return true
}

// statusFor maps a domain error onto an HTTP status.
func statusFor(err error) int {
	switch {
	case generic.IsClientError(err):
		return http.StatusBadRequest
	case generic.IsNotFound(err):
		return http.StatusNotFound
	case generic.IsConflict(err):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func writeDomainError(w http.ResponseWriter, message string, err error) {
	writeError(w, statusFor(err), message, err)
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
