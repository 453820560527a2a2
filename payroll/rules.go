/*
Package payroll computes operator and management pay from shift revenue.

PURPOSE:
  Operators are paid per shift: a base from the salary rule of the shift's
  (company, shift type), up to two independent tier bonuses on the shift's
  turnover, and an optional company-wide group bonus. The month adds a KPI
  bonus when the operator hits their plan target. Manual adjustments and the
  automatic weekly debts are then applied on top.

KEY CONCEPTS:
  Config:     default base pay, KPI rate, group bonus threshold
  RuleSet:    active salary rules indexed by (company, shift type)
  Shift:      one (company, date, shift type) unit with its turnover
  Breakdown:  every component of one pay computation, kept separate
  Calculator: pure computation over an in-memory snapshot
  Service:    fetches inputs once, runs the calculator, logs and counts

PAYABLE:
  payable = base + tiers + group + kpi + manualPlus
            - manualMinus - autoDebts - advances

  netPenalty = manualMinus + autoDebts. Advances are pay received early
  and never count as a penalty.

SEE ALSO:
  - factory/rules.go: JSON rule-set documents
  - plan/planner.go: the operator plan rows used as KPI targets
*/
package payroll

import (
	"sort"

	"github.com/shopspring/decimal"
	"github.com/warp/payplan/generic"
)

// =============================================================================
// CONFIG
// =============================================================================

// GroupBonus pays PerShift on every shift of a company's ISO week once the
// company's total turnover that week reaches WeeklyThreshold.
type GroupBonus struct {
	WeeklyThreshold decimal.Decimal
	PerShift        decimal.Decimal
}

func (g GroupBonus) Enabled() bool {
	return g.WeeklyThreshold.IsPositive() && g.PerShift.IsPositive()
}

type Config struct {
	// DefaultBasePay applies to shifts without an active rule.
	DefaultBasePay decimal.Decimal

	// KPIRate is the share of pay added as KPI bonus (operators: monthly
	// base pay, roles: fixed salary).
	KPIRate decimal.Decimal

	GroupBonus GroupBonus
}

func DefaultConfig() Config {
	return Config{
		DefaultBasePay: decimal.NewFromInt(1000),
		KPIRate:        decimal.RequireFromString("0.1"),
	}
}

// =============================================================================
// RULE SET
// =============================================================================

// RuleSet indexes active salary rules. At most one active rule may exist per
// (company, shift type).
type RuleSet struct {
	rules map[generic.RuleKey]generic.SalaryRule
}

// NewRuleSet indexes the active rules. Inactive rules are ignored; a second
// active rule for a key returns *generic.RuleConflictError.
func NewRuleSet(rules []generic.SalaryRule) (*RuleSet, error) {
	rs := &RuleSet{rules: make(map[generic.RuleKey]generic.SalaryRule, len(rules))}
	for _, r := range rules {
		if !r.Active {
			continue
		}
		if existing, ok := rs.rules[r.Key()]; ok {
			return nil, &generic.RuleConflictError{Key: r.Key(), ExistingID: existing.ID}
		}
		rs.rules[r.Key()] = r
	}
	return rs, nil
}

// Lookup returns the active rule for the key.
func (rs *RuleSet) Lookup(company generic.CompanyCode, shift generic.ShiftType) (generic.SalaryRule, bool) {
	if rs == nil {
		return generic.SalaryRule{}, false
	}
	r, ok := rs.rules[generic.RuleKey{Company: company, Shift: shift}]
	return r, ok
}

// Rules lists the indexed rules ordered by key.
func (rs *RuleSet) Rules() []generic.SalaryRule {
	if rs == nil {
		return nil
	}
	out := make([]generic.SalaryRule, 0, len(rs.rules))
	for _, r := range rs.rules {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key().String() < out[j].Key().String() })
	return out
}

func (rs *RuleSet) Len() int {
	if rs == nil {
		return 0
	}
	return len(rs.rules)
}

// ShiftRate is the pay of one shift, split by component.
type ShiftRate struct {
	Base  decimal.Decimal
	Tier  decimal.Decimal
	Group decimal.Decimal
}

func (r ShiftRate) Total() decimal.Decimal { return r.Base.Add(r.Tier).Add(r.Group) }

// TierBonus applies both tiers independently. A zero threshold disables
// its tier.
func TierBonus(rule generic.SalaryRule, turnover decimal.Decimal) decimal.Decimal {
	bonus := decimal.Zero
	if rule.Threshold1.IsPositive() && turnover.GreaterThanOrEqual(rule.Threshold1) {
		bonus = bonus.Add(rule.Bonus1)
	}
	if rule.Threshold2.IsPositive() && turnover.GreaterThanOrEqual(rule.Threshold2) {
		bonus = bonus.Add(rule.Bonus2)
	}
	return bonus
}
