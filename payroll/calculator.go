package payroll

import (
	"github.com/shopspring/decimal"
	"github.com/warp/payplan/generic"
)

// =============================================================================
// BREAKDOWN
// =============================================================================

// ShiftPay is one shift with its computed rate.
type ShiftPay struct {
	Shift
	Rate     ShiftRate
	RuleID   generic.RecordID // empty when the default base applied
	Fallback bool
}

// Breakdown keeps every pay component apart. Manual debits and automatic
// debts are never merged before output.
type Breakdown struct {
	Operator generic.OperatorID
	Window   generic.Period

	PeriodTurnover decimal.Decimal
	BasePay        decimal.Decimal
	TierBonus      decimal.Decimal
	GroupBonus     decimal.Decimal
	KPIBonus       decimal.Decimal
	KPITarget      decimal.Decimal

	ManualPlus  decimal.Decimal
	ManualMinus decimal.Decimal
	AutoDebts   decimal.Decimal
	Advances    decimal.Decimal

	Payable    decimal.Decimal
	NetPenalty decimal.Decimal

	Shifts  []ShiftPay
	Skipped int
}

// GrossPay is shift pay plus KPI bonus, before any ledger entry.
func (b Breakdown) GrossPay() decimal.Decimal {
	return b.BasePay.Add(b.TierBonus).Add(b.GroupBonus).Add(b.KPIBonus)
}

// =============================================================================
// INPUT
// =============================================================================

// Input is everything one computation reads.
type Input struct {
	Operator generic.OperatorID

	// Revenue must cover the window for the operator and the full ISO weeks
	// touching it for every operator of the operator's companies, so group
	// bonuses see whole-week company totals.
	Revenue generic.Snapshot

	Adjustments []generic.Adjustment
	Debts       []generic.WeeklyDebt

	// Target is the operator's monthly turnover target. Zero means no plan
	// row, and no KPI bonus.
	Target decimal.Decimal
}

// =============================================================================
// CALCULATOR
// =============================================================================

type Calculator struct {
	Config Config
	Rules  *RuleSet
}

func NewCalculator(cfg Config, rules *RuleSet) *Calculator {
	return &Calculator{Config: cfg, Rules: rules}
}

// ComputeWeek computes pay for the ISO week containing day. No KPI bonus.
func (c *Calculator) ComputeWeek(in Input, day generic.TimePoint) Breakdown {
	return c.compute(in, generic.WeekPeriod(day), false)
}

// ComputeMonth computes pay for the month containing day, KPI included.
func (c *Calculator) ComputeMonth(in Input, day generic.TimePoint) Breakdown {
	return c.compute(in, generic.MonthPeriod(day), true)
}

func (c *Calculator) compute(in Input, window generic.Period, withKPI bool) Breakdown {
	b := Breakdown{
		Operator:       in.Operator,
		Window:         window,
		PeriodTurnover: decimal.Zero,
		BasePay:        decimal.Zero,
		TierBonus:      decimal.Zero,
		GroupBonus:     decimal.Zero,
		KPIBonus:       decimal.Zero,
		KPITarget:      in.Target,
	}

	weeks := weeklyCompanyTotals(in.Revenue)
	own := in.Revenue.ForOperator(in.Operator).InPeriod(window)
	for _, s := range AggregateShifts(own.Records()) {
		sp := c.rate(s, weeks)
		b.Shifts = append(b.Shifts, sp)
		b.PeriodTurnover = b.PeriodTurnover.Add(s.Turnover)
		b.BasePay = b.BasePay.Add(sp.Rate.Base)
		b.TierBonus = b.TierBonus.Add(sp.Rate.Tier)
		b.GroupBonus = b.GroupBonus.Add(sp.Rate.Group)
	}

	if withKPI && in.Target.IsPositive() && b.PeriodTurnover.GreaterThanOrEqual(in.Target) {
		b.KPIBonus = b.BasePay.Add(b.TierBonus).Add(b.GroupBonus).Mul(c.Config.KPIRate)
	}

	ledger := ReduceLedger(in.Operator, window, in.Adjustments)
	b.ManualPlus = ledger.ManualPlus
	b.ManualMinus = ledger.ManualMinus
	b.Advances = ledger.Advances

	debts, skipped := SumDebts(in.Operator, window, in.Debts)
	b.AutoDebts = debts
	b.Skipped = ledger.Skipped + skipped

	b.Payable = b.GrossPay().
		Add(b.ManualPlus).
		Sub(b.ManualMinus).
		Sub(b.AutoDebts).
		Sub(b.Advances)
	b.NetPenalty = b.ManualMinus.Add(b.AutoDebts)
	return b
}

func (c *Calculator) rate(s Shift, weeks companyWeeks) ShiftPay {
	sp := ShiftPay{Shift: s}
	rule, ok := c.Rules.Lookup(s.Company, s.Type)
	if ok {
		sp.RuleID = rule.ID
		sp.Rate.Base = rule.BasePerShift
		sp.Rate.Tier = TierBonus(rule, s.Turnover)
	} else {
		sp.Fallback = true
		sp.Rate.Base = c.Config.DefaultBasePay
		sp.Rate.Tier = decimal.Zero
	}

	sp.Rate.Group = decimal.Zero
	if g := c.Config.GroupBonus; g.Enabled() && weeks.total(s.Company, s.Date).GreaterThanOrEqual(g.WeeklyThreshold) {
		sp.Rate.Group = g.PerShift
	}
	return sp
}

// =============================================================================
// LEDGERS
// =============================================================================

// Ledger is the reduced adjustment ledger of one window.
type Ledger struct {
	ManualPlus  decimal.Decimal
	ManualMinus decimal.Decimal
	Advances    decimal.Decimal
	Skipped     int
}

// ReduceLedger folds the operator's adjustments dated inside window.
// Bonuses credit, debts and fines debit alike, advances are tracked apart.
// Non-positive amounts and unknown kinds are skipped and counted.
func ReduceLedger(op generic.OperatorID, window generic.Period, adjs []generic.Adjustment) Ledger {
	l := Ledger{ManualPlus: decimal.Zero, ManualMinus: decimal.Zero, Advances: decimal.Zero}
	for _, a := range adjs {
		if a.Operator != op || !window.Contains(a.Date) {
			continue
		}
		if !a.Amount.IsPositive() || !a.Kind.Valid() {
			l.Skipped++
			continue
		}
		switch a.Kind {
		case generic.AdjustmentBonus:
			l.ManualPlus = l.ManualPlus.Add(a.Amount)
		case generic.AdjustmentDebt, generic.AdjustmentFine:
			l.ManualMinus = l.ManualMinus.Add(a.Amount)
		case generic.AdjustmentAdvance:
			l.Advances = l.Advances.Add(a.Amount)
		}
	}
	return l
}

// SumDebts totals the operator's active weekly debts whose week starts inside
// window. Active debts with a non-positive amount are skipped and counted.
func SumDebts(op generic.OperatorID, window generic.Period, debts []generic.WeeklyDebt) (decimal.Decimal, int) {
	sum := decimal.Zero
	skipped := 0
	for _, d := range debts {
		if d.Operator != op || d.Status != generic.DebtActive || !window.Contains(d.WeekStart) {
			continue
		}
		if !d.Amount.IsPositive() {
			skipped++
			continue
		}
		sum = sum.Add(d.Amount)
	}
	return sum, skipped
}

// =============================================================================
// MANAGEMENT ROLES
// =============================================================================

// RoleBreakdown is the monthly pay of a management role.
type RoleBreakdown struct {
	Role           generic.RoleCode
	Window         generic.Period
	FixedSalary    decimal.Decimal
	GlobalTurnover decimal.Decimal
	Target         decimal.Decimal
	KPIBonus       decimal.Decimal
	Payable        decimal.Decimal
}

// RolePay pays the fixed salary plus the KPI share once global turnover
// reaches a positive role target.
func (c *Calculator) RolePay(role generic.RoleSalary, month generic.TimePoint, globalTurnover, target decimal.Decimal) RoleBreakdown {
	rb := RoleBreakdown{
		Role:           role.Role,
		Window:         generic.MonthPeriod(month),
		FixedSalary:    role.FixedSalary,
		GlobalTurnover: globalTurnover,
		Target:         target,
		KPIBonus:       decimal.Zero,
	}
	if target.IsPositive() && globalTurnover.GreaterThanOrEqual(target) {
		rb.KPIBonus = role.FixedSalary.Mul(c.Config.KPIRate)
	}
	rb.Payable = rb.FixedSalary.Add(rb.KPIBonus)
	return rb
}
