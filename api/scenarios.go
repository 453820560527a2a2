/*
scenarios.go - Demo scenario loaders for testing and demonstrations

PURPOSE:

	Provides pre-built scenarios that populate the database with realistic
	data for testing and demos. Each scenario creates operators, salary rules,
	role salaries, two months of revenue history and a few ledger entries
	ahead of a target month.

AVAILABLE SCENARIOS:

	steady-growth: Two companies, three operators, growing turnover
	new-company:   Adds a company with only one month of history
	open-month:    Takings already dated in the target month, so planning
	               the month after extrapolates a running month

HOW SCENARIOS WORK:
 1. Reset database (clear all data)
 2. Store salary rules via the rule factory
 3. Create operators and role salaries
 4. Add revenue for the two months before the target month
 5. Add adjustments and weekly debts

USAGE VIA API:

	POST /api/scenarios/load
	{"scenario_id": "steady-growth", "month": "2025-04"}

	"month" is the month to plan; it defaults to the current month.

NOTE:

	Scenarios reset the database. Only use in development/demo environments.

SEE ALSO:
  - handlers.go: ResetDatabase
  - factory/rules.go: StarterRuleSetJSON
*/
package api

import (
	"context"
	"fmt"
	"net/http"

	"github.com/shopspring/decimal"
	"github.com/warp/payplan/factory"
	"github.com/warp/payplan/generic"
	"github.com/warp/payplan/store/sqlite"
)

// =============================================================================
// SCENARIO DEFINITIONS
// =============================================================================

// ScenarioDTO describes a demo scenario.
type ScenarioDTO struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// LoadScenarioRequest picks a scenario and the month it prepares.
type LoadScenarioRequest struct {
	ScenarioID string `json:"scenario_id"`
	Month      string `json:"month,omitempty"`
}

var scenarios = []ScenarioDTO{
	{
		ID:          "steady-growth",
		Name:        "Steady Growth",
		Description: "Two companies, three operators, turnover up month over month",
	},
	{
		ID:          "new-company",
		Name:        "New Company",
		Description: "Steady growth plus a company that opened last month",
	},
	{
		ID:          "open-month",
		Name:        "Open Month",
		Description: "Last month is still running; its turnover is extrapolated",
	},
}

// ListScenarios returns available scenarios.
func (h *Handler) ListScenarios(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, scenarios)
}

// GetCurrentScenario returns the currently loaded scenario, if any.
func (h *Handler) GetCurrentScenario(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	current := h.currentScenario
	h.mu.Unlock()

	if current == "" {
		writeJSON(w, http.StatusOK, nil)
		return
	}
	for _, s := range scenarios {
		if s.ID == current {
			writeJSON(w, http.StatusOK, s)
			return
		}
	}
	writeJSON(w, http.StatusOK, ScenarioDTO{ID: current, Name: current})
}

// LoadScenario resets the database and loads a predefined scenario.
func (h *Handler) LoadScenario(w http.ResponseWriter, r *http.Request) {
	var req LoadScenarioRequest
	if !decodeBody(w, r, &req) {
		return
	}

	month := generic.MonthStart(generic.Today(h.Clock))
	if req.Month != "" {
		m, err := generic.ParseMonth(req.Month)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid month (use YYYY-MM)", err)
			return
		}
		month = m
	}
	if !knownScenario(req.ScenarioID) {
		writeError(w, http.StatusBadRequest, "Unknown scenario", nil)
		return
	}

	h.setScenario("")
	if err := LoadScenarioData(r.Context(), h.Store, h.RuleFactory, req.ScenarioID, month); err != nil {
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("Failed to load scenario: %v", err), err)
		return
	}
	h.setScenario(req.ScenarioID)

	writeJSON(w, http.StatusOK, map[string]string{
		"status":   "loaded",
		"scenario": req.ScenarioID,
		"month":    month.MonthString(),
	})
}

func (h *Handler) setScenario(id string) {
	h.mu.Lock()
	h.currentScenario = id
	h.mu.Unlock()
}

func knownScenario(id string) bool {
	for _, s := range scenarios {
		if s.ID == id {
			return true
		}
	}
	return false
}

// =============================================================================
// SCENARIO LOADERS
// =============================================================================

// LoadScenarioData resets store and seeds scenario id ahead of month.
func LoadScenarioData(ctx context.Context, store *sqlite.Store, rf *factory.RuleFactory, id string, month generic.TimePoint) error {
	if !knownScenario(id) {
		return fmt.Errorf("unknown scenario %q", id)
	}
	if err := store.Reset(ctx); err != nil {
		return fmt.Errorf("failed to reset database: %w", err)
	}

	month = generic.MonthStart(month)
	s := &seeder{ctx: ctx, store: store, rf: rf}

	s.steadyGrowth(month)
	switch id {
	case "new-company":
		s.newCompany(month)
	case "open-month":
		s.openMonth(month)
	}
	return s.err
}

// seeder keeps the first error so loaders read as a flat list of facts.
type seeder struct {
	ctx   context.Context
	store *sqlite.Store
	rf    *factory.RuleFactory
	err   error
}

func (s *seeder) rules(company string, base, th1, b1, th2, b2 int64) {
	if s.err != nil {
		return
	}
	doc, err := s.rf.ParseRuleSet([]byte(factory.StarterRuleSetJSON(company, base, th1, b1, th2, b2)))
	if err != nil {
		s.err = err
		return
	}
	_, s.err = s.store.SaveRules(s.ctx, doc.Rules)
}

func (s *seeder) operator(id, name string) {
	if s.err != nil {
		return
	}
	s.err = s.store.SaveOperator(s.ctx, generic.Operator{ID: generic.OperatorID(id), Name: name, Active: true})
}

func (s *seeder) role(role string, salary int64) {
	if s.err != nil {
		return
	}
	s.err = s.store.SaveRoleSalary(s.ctx, generic.RoleSalary{
		Role: generic.RoleCode(role), FixedSalary: decimal.NewFromInt(salary),
	})
}

func (s *seeder) revenue(date generic.TimePoint, company, op string, shift generic.ShiftType, cash, card int64) {
	if s.err != nil {
		return
	}
	_, s.err = s.store.AddRevenue(s.ctx, generic.RevenueRecord{
		Date:     date,
		Company:  generic.CompanyCode(company),
		Operator: generic.OperatorID(op),
		Shift:    shift,
		Channels: generic.Channels{
			Cash:   decimal.NewFromInt(cash),
			Wallet: decimal.Zero,
			Card:   decimal.NewFromInt(card),
			Online: decimal.Zero,
		},
	})
}

func (s *seeder) adjustment(op string, date generic.TimePoint, kind generic.AdjustmentKind, amount int64, note string) {
	if s.err != nil {
		return
	}
	s.err = s.store.AppendAdjustment(s.ctx, generic.Adjustment{
		Operator: generic.OperatorID(op),
		Date:     date,
		Amount:   decimal.NewFromInt(amount),
		Kind:     kind,
		Note:     note,
	})
}

func (s *seeder) debt(op string, date generic.TimePoint, amount int64) {
	if s.err != nil {
		return
	}
	s.err = s.store.AppendDebt(s.ctx, generic.WeeklyDebt{
		Operator:  generic.OperatorID(op),
		WeekStart: generic.WeekStart(date),
		Amount:    decimal.NewFromInt(amount),
		Status:    generic.DebtActive,
	})
}

// steadyGrowth: company A grows from 100000 to 120000, company B from 20000
// to 28000, 3000 of which nobody is credited with.
func (s *seeder) steadyGrowth(month generic.TimePoint) {
	twoAgo, oneAgo := month.AddMonths(-2), month.AddMonths(-1)

	s.rules("A", 1000, 10000, 500, 20000, 700)
	s.rules("B", 800, 8000, 300, 15000, 500)
	s.operator("op1", "Alice")
	s.operator("op2", "Bob")
	s.operator("op3", "Cara")
	s.role("supervisor", 50000)
	s.role("marketing", 40000)

	s.revenue(twoAgo.AddDays(2), "A", "op1", generic.ShiftDay, 20000, 10000)
	s.revenue(twoAgo.AddDays(3), "A", "op1", generic.ShiftDay, 25000, 5000)
	s.revenue(twoAgo.AddDays(4), "A", "op2", generic.ShiftNight, 30000, 10000)
	s.revenue(twoAgo.AddDays(5), "B", "op3", generic.ShiftDay, 20000, 0)

	s.revenue(oneAgo.AddDays(2), "A", "op1", generic.ShiftDay, 30000, 5000)
	s.revenue(oneAgo.AddDays(3), "A", "op1", generic.ShiftDay, 30000, 5000)
	s.revenue(oneAgo.AddDays(4), "A", "op2", generic.ShiftNight, 40000, 10000)
	s.revenue(oneAgo.AddDays(5), "B", "op3", generic.ShiftDay, 20000, 5000)
	// Unattributed takings count for the company but for no operator.
	s.revenue(oneAgo.AddDays(6), "B", "", generic.ShiftNight, 3000, 0)

	s.adjustment("op1", oneAgo.AddDays(10), generic.AdjustmentBonus, 1000, "best week")
	s.adjustment("op2", oneAgo.AddDays(11), generic.AdjustmentAdvance, 500, "")
	s.adjustment("op2", oneAgo.AddDays(12), generic.AdjustmentFine, 200, "late")
	s.debt("op2", oneAgo.AddDays(7), 300)
}

func (s *seeder) newCompany(month generic.TimePoint) {
	oneAgo := month.AddMonths(-1)

	s.rules("C", 900, 12000, 400, 0, 0)
	s.operator("op4", "Dan")
	s.revenue(oneAgo.AddDays(14), "C", "op4", generic.ShiftDay, 15000, 0)
	s.revenue(oneAgo.AddDays(15), "C", "op4", generic.ShiftNight, 9000, 1000)
}

// openMonth adds takings dated in the target month itself, so planning the
// month after it sees a running prior month.
func (s *seeder) openMonth(month generic.TimePoint) {
	s.revenue(month.AddDays(1), "A", "op1", generic.ShiftDay, 18000, 2000)
	s.revenue(month.AddDays(2), "A", "op2", generic.ShiftDay, 12000, 0)
	s.revenue(month.AddDays(2), "B", "op3", generic.ShiftNight, 6000, 0)
}
