/*
Package generic provides the shared model of the compensation planning engine.

PURPOSE:
  This package holds the domain records every other package agrees on:
  revenue records, salary rules, ledger entries, weekly debts and plan rows.
  The forecaster, allocator and payroll calculator only ever see these types,
  so stores and HTTP handlers can be swapped without touching the math.

KEY CONCEPTS IN THIS FILE (types.go):
  - Money: decimal.Decimal, whole currency units after rounding
  - RevenueRecord: one operator's takings for one shift, split by channel
  - SalaryRule: per (company, shift type) base pay and two bonus tiers
  - Adjustment / WeeklyDebt: the two ledgers that move payable amounts
  - PlanKey / PlanRecord: the persisted shape of a plan row

DESIGN PRINCIPLES:
  1. Precision: all money goes through decimal.Decimal
  2. Type Safety: company, operator and role identifiers are distinct types
  3. Immutability: revenue records and ledger entries are never edited

SEE ALSO:
  - period.go: month and week windows
  - snapshot.go: the in-memory revenue view used by one computation
  - store.go: the read/write interfaces the engine depends on
*/
package generic

import (
	"fmt"
	"math"
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// MONEY
// =============================================================================

// NewMoney returns a whole-unit amount.
func NewMoney(units int64) decimal.Decimal { return decimal.NewFromInt(units) }

// MoneyFromFloat converts an inbound float amount. ok is false for NaN and
// infinities so callers can skip the entry instead of failing.
func MoneyFromFloat(f float64) (decimal.Decimal, bool) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return decimal.Zero, false
	}
	return decimal.NewFromFloat(f), true
}

// RoundUnits rounds half away from zero to whole units.
func RoundUnits(d decimal.Decimal) decimal.Decimal { return d.Round(0) }

// =============================================================================
// IDENTIFIERS
// =============================================================================

type RecordID string
type OperatorID string
type CompanyCode string
type RoleCode string

// ShiftType is the half of the day a shift covers.
type ShiftType string

const (
	ShiftDay   ShiftType = "day"
	ShiftNight ShiftType = "night"
)

func (s ShiftType) Valid() bool { return s == ShiftDay || s == ShiftNight }

// ParseShiftType accepts "day" and "night".
func ParseShiftType(s string) (ShiftType, error) {
	st := ShiftType(s)
	if !st.Valid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidShiftType, s)
	}
	return st, nil
}

// =============================================================================
// REVENUE RECORD
// =============================================================================

// Channels holds the per-channel takings of one record.
type Channels struct {
	Cash   decimal.Decimal
	Wallet decimal.Decimal
	Card   decimal.Decimal
	Online decimal.Decimal
}

func (c Channels) Total() decimal.Decimal {
	return c.Cash.Add(c.Wallet).Add(c.Card).Add(c.Online)
}

// RevenueRecord is immutable once recorded. Operator is empty when the
// takings were not attributed to anyone.
type RevenueRecord struct {
	ID       RecordID
	Date     TimePoint
	Company  CompanyCode
	Operator OperatorID
	Shift    ShiftType
	Channels Channels
}

func (r RevenueRecord) Turnover() decimal.Decimal { return r.Channels.Total() }

// Counts reports whether the record takes part in aggregates.
func (r RevenueRecord) Counts() bool { return r.Turnover().IsPositive() }

// =============================================================================
// DIRECTORY
// =============================================================================

type Operator struct {
	ID     OperatorID
	Name   string
	Active bool
}

// RoleSalary is the fixed monthly salary of a management role.
type RoleSalary struct {
	Role        RoleCode
	FixedSalary decimal.Decimal
}

// =============================================================================
// SALARY RULE
// =============================================================================

// RuleKey identifies a salary rule.
type RuleKey struct {
	Company CompanyCode
	Shift   ShiftType
}

func (k RuleKey) String() string { return string(k.Company) + "/" + string(k.Shift) }

// SalaryRule is the pay table for one (company, shift type). A zero
// threshold disables its tier.
type SalaryRule struct {
	ID           RecordID
	Company      CompanyCode
	Shift        ShiftType
	BasePerShift decimal.Decimal
	Threshold1   decimal.Decimal
	Bonus1       decimal.Decimal
	Threshold2   decimal.Decimal
	Bonus2       decimal.Decimal
	Active       bool
}

func (r SalaryRule) Key() RuleKey { return RuleKey{Company: r.Company, Shift: r.Shift} }

// =============================================================================
// ADJUSTMENT LEDGER
// =============================================================================

type AdjustmentKind string

const (
	AdjustmentBonus   AdjustmentKind = "bonus"
	AdjustmentFine    AdjustmentKind = "fine"
	AdjustmentDebt    AdjustmentKind = "debt"
	AdjustmentAdvance AdjustmentKind = "advance"
)

func (k AdjustmentKind) Valid() bool {
	switch k {
	case AdjustmentBonus, AdjustmentFine, AdjustmentDebt, AdjustmentAdvance:
		return true
	}
	return false
}

// Adjustment is a manual ledger entry. Amount is always a positive
// magnitude; Kind decides the sign.
type Adjustment struct {
	ID        RecordID
	Operator  OperatorID
	Date      TimePoint
	Amount    decimal.Decimal
	Kind      AdjustmentKind
	Note      string
	CreatedAt time.Time
}

// =============================================================================
// WEEKLY DEBT
// =============================================================================

type DebtStatus string

const (
	DebtActive    DebtStatus = "active"
	DebtSettled   DebtStatus = "settled"
	DebtCancelled DebtStatus = "cancelled"
)

func (s DebtStatus) Valid() bool {
	switch s {
	case DebtActive, DebtSettled, DebtCancelled:
		return true
	}
	return false
}

// WeeklyDebt is an automatic deduction keyed by week start. It is tracked
// apart from the adjustment ledger and never merged into it.
type WeeklyDebt struct {
	ID        RecordID
	Operator  OperatorID
	WeekStart TimePoint
	Amount    decimal.Decimal
	Status    DebtStatus
}

// =============================================================================
// PLAN ROW
// =============================================================================

type EntityType string

const (
	EntityCollective EntityType = "collective"
	EntityOperator   EntityType = "operator"
	EntityRole       EntityType = "role"
)

// PlanKey is the identity of a plan row. Unused parts are empty strings.
type PlanKey struct {
	Month    TimePoint
	Entity   EntityType
	Company  CompanyCode
	Operator OperatorID
	Role     RoleCode
}

// Validate checks that the key references exactly what its entity type needs.
func (k PlanKey) Validate() error {
	if k.Month.IsZero() || k.Month.Day() != 1 {
		return fmt.Errorf("%w: month must be the first day of a month, got %s", ErrInvalidPlanKey, k.Month)
	}
	switch k.Entity {
	case EntityCollective:
		if k.Company == "" || k.Operator != "" || k.Role != "" {
			return fmt.Errorf("%w: collective row needs a company only (%s)", ErrInvalidPlanKey, k)
		}
	case EntityOperator:
		if k.Company == "" || k.Operator == "" || k.Role != "" {
			return fmt.Errorf("%w: operator row needs a company and an operator (%s)", ErrInvalidPlanKey, k)
		}
	case EntityRole:
		if k.Role == "" || k.Company != "" || k.Operator != "" {
			return fmt.Errorf("%w: role row needs a role only (%s)", ErrInvalidPlanKey, k)
		}
	default:
		return fmt.Errorf("%w: unknown entity type %q", ErrInvalidPlanKey, k.Entity)
	}
	return nil
}

// String is for messages and logs only. Ids may contain "/", so two keys
// can print alike; compare keys through Identity.
func (k PlanKey) String() string {
	return fmt.Sprintf("%s/%s/%s/%s/%s", k.Month, k.Entity, k.Company, k.Operator, k.Role)
}

// PlanIdentity is the comparable form of a PlanKey, usable as a map key.
type PlanIdentity struct {
	Month    string
	Entity   EntityType
	Company  CompanyCode
	Operator OperatorID
	Role     RoleCode
}

func (k PlanKey) Identity() PlanIdentity {
	return PlanIdentity{
		Month:    k.Month.String(),
		Entity:   k.Entity,
		Company:  k.Company,
		Operator: k.Operator,
		Role:     k.Role,
	}
}

// Less orders keys by month, entity, company, operator, then role.
func (k PlanKey) Less(o PlanKey) bool {
	a, b := k.Identity(), o.Identity()
	switch {
	case a.Month != b.Month:
		return a.Month < b.Month
	case a.Entity != b.Entity:
		return a.Entity < b.Entity
	case a.Company != b.Company:
		return a.Company < b.Company
	case a.Operator != b.Operator:
		return a.Operator < b.Operator
	default:
		return a.Role < b.Role
	}
}

// Targets are the month figures and their derived weekly figures.
type Targets struct {
	MonthTurnover decimal.Decimal
	WeekTurnover  decimal.Decimal
	MonthShifts   decimal.Decimal
	WeekShifts    decimal.Decimal
}

// PlanRecord is the stored form of a plan row.
type PlanRecord struct {
	Key       PlanKey
	Targets   Targets
	Metadata  map[string]string
	Locked    bool
	UpdatedAt time.Time
}
