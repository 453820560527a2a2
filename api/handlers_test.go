/*
handlers_test.go - HTTP tests for API handlers

Tests for:
- Plan generation over a seeded scenario
- Manual edits locking rows across regeneration
- Operator and role pay
- Input endpoints and error status mapping
*/
package api_test

import (
	"bytes"
	"encoding/json"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/payplan/api"
	"github.com/warp/payplan/forecast"
	"github.com/warp/payplan/generic"
	"github.com/warp/payplan/metrics"
	"github.com/warp/payplan/payroll"
	"github.com/warp/payplan/plan"
	"github.com/warp/payplan/store/sqlite"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

// April 10th 2025: planning April uses the closed months February and March.
var testClock = generic.FixedClock{At: time.Date(2025, time.April, 10, 9, 0, 0, 0, time.UTC)}

type testEnv struct {
	router  *chi.Mux
	handler *api.Handler
	planner *plan.Planner
	reg     *prometheus.Registry
}

func setupTestEnv(t *testing.T) *testEnv {
	t.Helper()
	store, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	quiet := log.New(io.Discard, "", 0)

	planner := &plan.Planner{
		Revenue:   store,
		Plans:     store,
		Operators: store,
		Allocator: plan.NewAllocator(forecast.New(forecast.DefaultPolicy(), testClock), plan.DefaultConfig()),
		Metrics:   m,
		Logger:    quiet,
		Clock:     testClock,
	}
	svc := &payroll.Service{
		Revenue:     store,
		Rules:       store,
		Adjustments: store,
		Debts:       store,
		Plans:       store,
		Roles:       store,
		Operators:   store,
		Config:      payroll.DefaultConfig(),
		Metrics:     m,
		Logger:      quiet,
	}

	h := api.NewHandler(store, planner, svc)
	h.Clock = testClock
	return &testEnv{
		router:  api.NewRouter(h, api.RouterOptions{Gatherer: reg}),
		handler: h,
		planner: planner,
		reg:     reg,
	}
}

func (e *testEnv) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		reader = strings.NewReader(b)
	default:
		data, err := json.Marshal(b)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func (e *testEnv) loadScenario(t *testing.T, id string) {
	t.Helper()
	rec := e.do(t, http.MethodPost, "/api/scenarios/load", map[string]string{"scenario_id": id, "month": "2025-04"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
}

func findRow(rows []api.PlanRowDTO, entity, company, operator, role string) (api.PlanRowDTO, bool) {
	for _, r := range rows {
		if r.Entity == entity && r.Company == company && r.Operator == operator && r.Role == role {
			return r, true
		}
	}
	return api.PlanRowDTO{}, false
}

// =============================================================================
// PLAN TESTS
// =============================================================================

func TestGeneratePlan_SteadyGrowth(t *testing.T) {
	// GIVEN: February 100000 and March 120000 for company A
	env := setupTestEnv(t)
	env.loadScenario(t, "steady-growth")

	// WHEN: Generating April
	rec := env.do(t, http.MethodPost, "/api/plans/2025-04/generate", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	resp := decode[api.PlanResponse](t, rec)

	// THEN: collective A continues the trend and operators split it by share
	assert.Equal(t, "2025-04", resp.Month)
	require.NotNil(t, resp.Written)
	assert.Equal(t, len(resp.Rows), *resp.Written)
	assert.Equal(t, 0, *resp.Preserved)

	a, ok := findRow(resp.Rows, "collective", "A", "", "")
	require.True(t, ok)
	assert.Equal(t, "140000", a.MonthTurnover.String())
	assert.Equal(t, "120000", a.Metadata[plan.MetaBasisOneAgo])
	assert.False(t, a.Locked)

	b, ok := findRow(resp.Rows, "collective", "B", "", "")
	require.True(t, ok)
	assert.Equal(t, "36000", b.MonthTurnover.String())

	op1, ok := findRow(resp.Rows, "operator", "A", "op1", "")
	require.True(t, ok)
	assert.Equal(t, "82727", op1.MonthTurnover.String())
	assert.Equal(t, "Alice", op1.Metadata[plan.MetaOperatorName])

	op2, ok := findRow(resp.Rows, "operator", "A", "op2", "")
	require.True(t, ok)
	assert.Equal(t, "57273", op2.MonthTurnover.String())

	sup, ok := findRow(resp.Rows, "role", "", "", "supervisor")
	require.True(t, ok)
	assert.Equal(t, "176000", sup.MonthTurnover.String())

	// AND: the stored plan matches what generation returned
	stored := decode[api.PlanResponse](t, env.do(t, http.MethodGet, "/api/plans/2025-04", nil))
	assert.Len(t, stored.Rows, len(resp.Rows))
	assert.Nil(t, stored.Written)
}

func TestEditPlanRow_SurvivesRegeneration(t *testing.T) {
	env := setupTestEnv(t)
	env.loadScenario(t, "steady-growth")
	require.Equal(t, http.StatusOK, env.do(t, http.MethodPost, "/api/plans/2025-04/generate", nil).Code)

	// WHEN: A manager edits company A's target
	edit := map[string]any{
		"entity":         "collective",
		"company":        "A",
		"month_turnover": "150000",
		"week_turnover":  "34522",
		"month_shifts":   "3",
		"week_shifts":    "1",
		"metadata":       map[string]string{"note": "agreed with owner"},
	}
	rec := env.do(t, http.MethodPut, "/api/plans/2025-04/rows", edit)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.True(t, decode[api.PlanRowDTO](t, rec).Locked)

	// THEN: regeneration keeps it verbatim
	resp := decode[api.PlanResponse](t, env.do(t, http.MethodPost, "/api/plans/2025-04/generate", nil))
	assert.Equal(t, 1, *resp.Preserved)
	a, ok := findRow(resp.Rows, "collective", "A", "", "")
	require.True(t, ok)
	assert.True(t, a.Locked)
	assert.Equal(t, "150000", a.MonthTurnover.String())
	assert.Equal(t, "agreed with owner", a.Metadata["note"])

	// WHEN: the row is unlocked, the next run overwrites it
	unlock := map[string]string{"entity": "collective", "company": "A"}
	require.Equal(t, http.StatusOK, env.do(t, http.MethodPost, "/api/plans/2025-04/rows/unlock", unlock).Code)

	resp = decode[api.PlanResponse](t, env.do(t, http.MethodPost, "/api/plans/2025-04/generate", nil))
	a, _ = findRow(resp.Rows, "collective", "A", "", "")
	assert.False(t, a.Locked)
	assert.Equal(t, "140000", a.MonthTurnover.String())
}

func TestPlanEndpoints_Errors(t *testing.T) {
	env := setupTestEnv(t)

	tests := []struct {
		name   string
		method string
		path   string
		body   any
		want   int
	}{
		{"bad month", http.MethodGet, "/api/plans/april", nil, http.StatusBadRequest},
		{"malformed body", http.MethodPut, "/api/plans/2025-04/rows", "{", http.StatusBadRequest},
		{
			"collective row with operator", http.MethodPut, "/api/plans/2025-04/rows",
			map[string]string{"entity": "collective", "company": "A", "operator": "op1"}, http.StatusBadRequest,
		},
		{
			"negative target", http.MethodPut, "/api/plans/2025-04/rows",
			map[string]string{"entity": "collective", "company": "A", "month_turnover": "-1"}, http.StatusBadRequest,
		},
		{
			"unlock missing row", http.MethodPost, "/api/plans/2025-04/rows/unlock",
			map[string]string{"entity": "collective", "company": "Z"}, http.StatusNotFound,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := env.do(t, tt.method, tt.path, tt.body)
			assert.Equal(t, tt.want, rec.Code, rec.Body.String())
			assert.NotEmpty(t, decode[api.ErrorResponse](t, rec).Error)
		})
	}
}

// =============================================================================
// PAY TESTS
// =============================================================================

func TestOperatorPay(t *testing.T) {
	env := setupTestEnv(t)
	env.loadScenario(t, "steady-growth")

	// op1 worked two day shifts of 35000 in March: both tiers apply to each.
	rec := env.do(t, http.MethodGet, "/api/operators/op1/pay?month=2025-03", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	op1 := decode[api.OperatorPayDTO](t, rec)
	assert.Equal(t, "Alice", op1.Name)
	assert.Equal(t, "2000", op1.Month.BasePay.String())
	assert.Equal(t, "2400", op1.Month.TierBonus.String())
	assert.Equal(t, "1000", op1.Month.ManualPlus.String())
	assert.Equal(t, "5400", op1.Month.Payable.String())
	assert.Len(t, op1.Month.Shifts, 2)
	assert.Nil(t, op1.Week)

	// op2: one night shift of 50000, a fine, an advance and a weekly debt.
	rec = env.do(t, http.MethodGet, "/api/operators/op2/pay?month=2025-03&week=2025-03-05", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	op2 := decode[api.OperatorPayDTO](t, rec)
	assert.Equal(t, "2200", op2.Month.GrossPay.String())
	assert.Equal(t, "200", op2.Month.ManualMinus.String())
	assert.Equal(t, "300", op2.Month.AutoDebts.String())
	assert.Equal(t, "500", op2.Month.Advances.String())
	assert.Equal(t, "1200", op2.Month.Payable.String())
	assert.Equal(t, "500", op2.Month.NetPenalty.String())
	require.NotNil(t, op2.Week)
	assert.Equal(t, "2025-03-03", op2.Week.From)
	assert.Equal(t, "2200", op2.Week.GrossPay.String())
}

func TestOperatorPay_Errors(t *testing.T) {
	env := setupTestEnv(t)
	env.loadScenario(t, "steady-growth")

	assert.Equal(t, http.StatusNotFound, env.do(t, http.MethodGet, "/api/operators/nobody/pay?month=2025-03", nil).Code)
	assert.Equal(t, http.StatusBadRequest, env.do(t, http.MethodGet, "/api/operators/op1/pay", nil).Code)
	assert.Equal(t, http.StatusBadRequest, env.do(t, http.MethodGet, "/api/operators/op1/pay?month=2025-03&week=monday", nil).Code)
}

func TestRolePay(t *testing.T) {
	env := setupTestEnv(t)
	env.loadScenario(t, "steady-growth")
	require.Equal(t, http.StatusOK, env.do(t, http.MethodPost, "/api/plans/2025-04/generate", nil).Code)

	rec := env.do(t, http.MethodGet, "/api/roles/supervisor/pay?month=2025-04", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	rp := decode[api.RolePayDTO](t, rec)
	assert.Equal(t, "176000", rp.Target.String())
	assert.True(t, rp.GlobalTurnover.IsZero(), "nothing recorded in April yet")
	assert.Equal(t, "50000", rp.Payable.String())

	assert.Equal(t, http.StatusNotFound, env.do(t, http.MethodGet, "/api/roles/cfo/pay?month=2025-04", nil).Code)
}

// =============================================================================
// INPUT TESTS
// =============================================================================

func TestInputEndpoints(t *testing.T) {
	env := setupTestEnv(t)

	rec := env.do(t, http.MethodPost, "/api/operators", map[string]string{"id": "op9", "name": "Ivy"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	ops := decode[[]api.OperatorDTO](t, env.do(t, http.MethodGet, "/api/operators", nil))
	require.Len(t, ops, 1)
	assert.True(t, ops[0].Active)

	rec = env.do(t, http.MethodPost, "/api/revenue", map[string]any{
		"date": "2025-03-03", "company": "A", "operator": "op9", "shift": "day", "cash": 1200, "card": "300.50",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.NotEmpty(t, decode[api.CreatedResponse](t, rec).ID)

	rec = env.do(t, http.MethodPost, "/api/adjustments", map[string]any{
		"operator": "op9", "date": "2025-03-04", "amount": 250, "kind": "bonus",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = env.do(t, http.MethodPost, "/api/weekly-debts", map[string]any{
		"operator": "op9", "week_start": "2025-03-06", "amount": 100,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	// The debt landed on the Monday of its week and the rest adds up.
	pay := decode[api.OperatorPayDTO](t, env.do(t, http.MethodGet, "/api/operators/op9/pay?month=2025-03", nil))
	assert.Equal(t, "1500.5", pay.Month.PeriodTurnover.String())
	assert.Equal(t, "250", pay.Month.ManualPlus.String())
	assert.Equal(t, "100", pay.Month.AutoDebts.String())
	require.Len(t, pay.Month.Shifts, 1)
	assert.True(t, pay.Month.Shifts[0].Fallback, "no salary rule stored for A")
}

func TestSetWeeklyDebtStatus(t *testing.T) {
	env := setupTestEnv(t)

	// GIVEN: op9 owes 100 in the first week of March
	rec := env.do(t, http.MethodPost, "/api/operators", map[string]string{"id": "op9", "name": "Ivy"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	rec = env.do(t, http.MethodPost, "/api/weekly-debts", map[string]any{
		"operator": "op9", "week_start": "2025-03-03", "amount": 100,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	id := decode[api.CreatedResponse](t, rec).ID

	// WHEN: the debt is settled
	rec = env.do(t, http.MethodPost, "/api/weekly-debts/"+id+"/status", map[string]string{"status": "settled"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	// THEN: it no longer reduces pay
	pay := decode[api.OperatorPayDTO](t, env.do(t, http.MethodGet, "/api/operators/op9/pay?month=2025-03", nil))
	assert.True(t, pay.Month.AutoDebts.IsZero())

	// Reactivating brings the deduction back
	rec = env.do(t, http.MethodPost, "/api/weekly-debts/"+id+"/status", map[string]string{"status": "active"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	pay = decode[api.OperatorPayDTO](t, env.do(t, http.MethodGet, "/api/operators/op9/pay?month=2025-03", nil))
	assert.Equal(t, "100", pay.Month.AutoDebts.String())

	rec = env.do(t, http.MethodPost, "/api/weekly-debts/"+id+"/status", map[string]string{"status": "paid"})
	assert.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
	rec = env.do(t, http.MethodPost, "/api/weekly-debts/missing/status", map[string]string{"status": "settled"})
	assert.Equal(t, http.StatusNotFound, rec.Code, rec.Body.String())
}

func TestInputEndpoints_Validation(t *testing.T) {
	env := setupTestEnv(t)

	tests := []struct {
		name string
		path string
		body any
	}{
		{"operator without name", "/api/operators", map[string]string{"id": "x"}},
		{"revenue bad shift", "/api/revenue", map[string]any{"date": "2025-03-03", "company": "A", "shift": "evening"}},
		{"revenue bad date", "/api/revenue", map[string]any{"date": "03/03/2025", "company": "A", "shift": "day"}},
		{"revenue without company", "/api/revenue", map[string]any{"date": "2025-03-03", "shift": "day"}},
		{"adjustment unknown kind", "/api/adjustments", map[string]any{"operator": "a", "date": "2025-03-03", "amount": 1, "kind": "gift"}},
		{"adjustment zero amount", "/api/adjustments", map[string]any{"operator": "a", "date": "2025-03-03", "amount": 0, "kind": "fine"}},
		{"debt negative amount", "/api/weekly-debts", map[string]any{"operator": "a", "week_start": "2025-03-03", "amount": -5}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := env.do(t, http.MethodPost, tt.path, tt.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
		})
	}
}

func TestSalaryRules(t *testing.T) {
	env := setupTestEnv(t)
	env.loadScenario(t, "steady-growth")

	doc := decode[map[string][]map[string]any](t, env.do(t, http.MethodGet, "/api/salary-rules", nil))
	assert.Len(t, doc["rules"], 4)
	assert.Len(t, doc["roles"], 2)

	// A second active rule for A/day conflicts with the stored one.
	rec := env.do(t, http.MethodPost, "/api/salary-rules",
		`{"rules": [{"id": "other", "company": "A", "shift": "day", "base_per_shift": 5}]}`)
	assert.Equal(t, http.StatusConflict, rec.Code, rec.Body.String())

	rec = env.do(t, http.MethodPost, "/api/salary-rules", `{"rules": [{"company": "A", "shift": "dusk"}]}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, http.MethodPost, "/api/salary-rules", `{"rules": [`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, http.MethodPost, "/api/salary-rules",
		`{"rules": [{"id": "D-day", "company": "D", "shift": "day", "base_per_shift": 700}],
		  "roles": [{"role": "supervisor", "fixed_salary": 52000}]}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	doc = decode[map[string][]map[string]any](t, env.do(t, http.MethodGet, "/api/salary-rules", nil))
	assert.Len(t, doc["rules"], 5)
}

// =============================================================================
// SCENARIO AND METRICS TESTS
// =============================================================================

func TestScenarios(t *testing.T) {
	env := setupTestEnv(t)

	list := decode[[]api.ScenarioDTO](t, env.do(t, http.MethodGet, "/api/scenarios", nil))
	assert.Len(t, list, 3)
	assert.Equal(t, "null\n", env.do(t, http.MethodGet, "/api/scenarios/current", nil).Body.String())

	env.loadScenario(t, "new-company")
	current := decode[api.ScenarioDTO](t, env.do(t, http.MethodGet, "/api/scenarios/current", nil))
	assert.Equal(t, "new-company", current.ID)

	// Company C has only March history, so its plan rows come from one point.
	resp := decode[api.PlanResponse](t, env.do(t, http.MethodPost, "/api/plans/2025-04/generate", nil))
	c, ok := findRow(resp.Rows, "collective", "C", "", "")
	require.True(t, ok)
	assert.Equal(t, "0", c.Metadata[plan.MetaBasisTwoAgo])
	_, ok = findRow(resp.Rows, "operator", "C", "op4", "")
	assert.True(t, ok)

	rec := env.do(t, http.MethodPost, "/api/scenarios/load", map[string]string{"scenario_id": "nope"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	require.Equal(t, http.StatusOK, env.do(t, http.MethodPost, "/api/reset", nil).Code)
	assert.Equal(t, "null\n", env.do(t, http.MethodGet, "/api/scenarios/current", nil).Body.String())
	assert.Empty(t, decode[[]api.OperatorDTO](t, env.do(t, http.MethodGet, "/api/operators", nil)))
}

func TestMetricsEndpoint(t *testing.T) {
	env := setupTestEnv(t)
	env.loadScenario(t, "steady-growth")
	require.Equal(t, http.StatusOK, env.do(t, http.MethodPost, "/api/plans/2025-04/generate", nil).Code)

	rec := env.do(t, http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `payplan_plan_rows_generated_total{entity="collective"} 2`)
}
