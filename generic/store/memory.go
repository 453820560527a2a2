// Package store provides in-memory implementations of the engine's store interfaces.
package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/warp/payplan/generic"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

type Memory struct {
	mu          sync.RWMutex
	revenue     []generic.RevenueRecord
	rules       []generic.SalaryRule
	adjustments []generic.Adjustment
	debts       []generic.WeeklyDebt
	operators   map[generic.OperatorID]generic.Operator
	roles       map[generic.RoleCode]generic.RoleSalary
	plans       map[generic.PlanIdentity]generic.PlanRecord
}

var (
	_ generic.RevenueSource     = (*Memory)(nil)
	_ generic.RuleSource        = (*Memory)(nil)
	_ generic.AdjustmentLedger  = (*Memory)(nil)
	_ generic.DebtLedger        = (*Memory)(nil)
	_ generic.OperatorDirectory = (*Memory)(nil)
	_ generic.RoleSource        = (*Memory)(nil)
	_ generic.PlanStore         = (*Memory)(nil)
)

func NewMemory() *Memory {
	return &Memory{
		operators: make(map[generic.OperatorID]generic.Operator),
		roles:     make(map[generic.RoleCode]generic.RoleSalary),
		plans:     make(map[generic.PlanIdentity]generic.PlanRecord),
	}
}

// =============================================================================
// SEEDING
// =============================================================================

func (m *Memory) AddRevenue(records ...generic.RevenueRecord) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.revenue = append(m.revenue, records...)
}

func (m *Memory) AddRule(rule generic.SalaryRule) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rules = append(m.rules, rule)
}

func (m *Memory) AddOperator(op generic.Operator) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.operators[op.ID] = op
}

func (m *Memory) AddRoleSalary(rs generic.RoleSalary) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.roles[rs.Role] = rs
}

// =============================================================================
// SOURCES
// =============================================================================

func (m *Memory) RevenueInRange(_ context.Context, f generic.RevenueFilter) ([]generic.RevenueRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []generic.RevenueRecord
	for _, r := range m.revenue {
		if !f.Period.Contains(r.Date) {
			continue
		}
		if f.Company != "" && r.Company != f.Company {
			continue
		}
		if f.Operator != "" && r.Operator != f.Operator {
			continue
		}
		out = append(out, r)
	}
	return out, nil
}

func (m *Memory) ActiveRules(_ context.Context) ([]generic.SalaryRule, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []generic.SalaryRule
	for _, r := range m.rules {
		if r.Active {
			out = append(out, r)
		}
	}
	return out, nil
}

func (m *Memory) Adjustments(_ context.Context, op generic.OperatorID, p generic.Period) ([]generic.Adjustment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []generic.Adjustment
	for _, a := range m.adjustments {
		if a.Operator == op && p.Contains(a.Date) {
			out = append(out, a)
		}
	}
	return out, nil
}

// AppendAdjustment adds a ledger entry. Append-only.
func (m *Memory) AppendAdjustment(_ context.Context, adj generic.Adjustment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if adj.CreatedAt.IsZero() {
		adj.CreatedAt = time.Now().UTC()
	}
	m.adjustments = append(m.adjustments, adj)
	return nil
}

func (m *Memory) ActiveDebts(_ context.Context, op generic.OperatorID, p generic.Period) ([]generic.WeeklyDebt, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []generic.WeeklyDebt
	for _, d := range m.debts {
		if d.Operator == op && d.Status == generic.DebtActive && p.Contains(d.WeekStart) {
			out = append(out, d)
		}
	}
	return out, nil
}

func (m *Memory) AppendDebt(_ context.Context, debt generic.WeeklyDebt) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.debts = append(m.debts, debt)
	return nil
}

func (m *Memory) Operators(_ context.Context) ([]generic.Operator, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]generic.Operator, 0, len(m.operators))
	for _, op := range m.operators {
		out = append(out, op)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *Memory) RoleSalaries(_ context.Context) ([]generic.RoleSalary, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]generic.RoleSalary, 0, len(m.roles))
	for _, rs := range m.roles {
		out = append(out, rs)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Role < out[j].Role })
	return out, nil
}

// =============================================================================
// PLAN STORE
// =============================================================================

func (m *Memory) LoadPlan(_ context.Context, month generic.TimePoint) ([]generic.PlanRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []generic.PlanRecord
	for _, rec := range m.plans {
		if rec.Key.Month.Equal(month) {
			out = append(out, copyRecord(rec))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key.Less(out[j].Key) })
	return out, nil
}

// SaveRecord checks the stored lock under the write lock, so the check and
// the write are one step.
func (m *Memory) SaveRecord(_ context.Context, rec generic.PlanRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	k := rec.Key.Identity()
	if existing, ok := m.plans[k]; ok && existing.Locked && !rec.Locked {
		return &generic.LockedRowError{Key: rec.Key}
	}
	if rec.UpdatedAt.IsZero() {
		rec.UpdatedAt = time.Now().UTC()
	}
	m.plans[k] = copyRecord(rec)
	return nil
}

func (m *Memory) Unlock(_ context.Context, key generic.PlanKey) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec, ok := m.plans[key.Identity()]
	if !ok {
		return generic.ErrPlanRowNotFound
	}
	rec.Locked = false
	rec.UpdatedAt = time.Now().UTC()
	m.plans[key.Identity()] = rec
	return nil
}

func (m *Memory) PruneGenerated(_ context.Context, month generic.TimePoint, keep []generic.PlanKey) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	kept := make(map[generic.PlanIdentity]bool, len(keep))
	for _, k := range keep {
		kept[k.Identity()] = true
	}
	removed := 0
	for k, rec := range m.plans {
		if rec.Key.Month.Equal(month) && !rec.Locked && !kept[k] {
			delete(m.plans, k)
			removed++
		}
	}
	return removed, nil
}

func copyRecord(rec generic.PlanRecord) generic.PlanRecord {
	if rec.Metadata != nil {
		meta := make(map[string]string, len(rec.Metadata))
		for k, v := range rec.Metadata {
			meta[k] = v
		}
		rec.Metadata = meta
	}
	return rec
}
