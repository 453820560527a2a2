package payroll

import (
	"context"
	"fmt"
	"log"

	"github.com/shopspring/decimal"
	"github.com/warp/payplan/generic"
	"github.com/warp/payplan/metrics"
)

// Service loads pay inputs from the stores and runs the calculator.
type Service struct {
	Revenue     generic.RevenueSource
	Rules       generic.RuleSource
	Adjustments generic.AdjustmentSource
	Debts       generic.DebtSource
	Plans       generic.PlanStore
	Roles       generic.RoleSource
	Operators   generic.OperatorDirectory // optional; unknown ids are rejected when set

	Config  Config
	Metrics *metrics.Metrics
	Logger  *log.Logger
}

// OperatorReport is an operator's monthly breakdown and, when a week was
// asked for, the weekly one.
type OperatorReport struct {
	Operator generic.Operator
	Month    Breakdown
	Week     *Breakdown
}

func (s *Service) logger() *log.Logger {
	if s.Logger != nil {
		return s.Logger
	}
	return log.Default()
}

// OperatorPay computes the month containing month and, if week is set, the
// ISO week containing week.
func (s *Service) OperatorPay(ctx context.Context, op generic.OperatorID, month, week generic.TimePoint) (*OperatorReport, error) {
	if op == "" {
		return nil, fmt.Errorf("%w: operator is required", generic.ErrOperatorNotFound)
	}
	if month.IsZero() {
		return nil, fmt.Errorf("%w: month is required", generic.ErrInvalidPeriod)
	}
	month = generic.MonthStart(month)

	operator, err := s.lookupOperator(ctx, op)
	if err != nil {
		return nil, err
	}

	// Group bonuses need whole weeks, which may spill over the month edges.
	span := generic.MonthPeriod(month).FullWeeks()
	if !week.IsZero() {
		span = span.Union(generic.WeekPeriod(week))
	}

	calc, err := s.calculator(ctx)
	if err != nil {
		return nil, err
	}
	records, err := s.Revenue.RevenueInRange(ctx, generic.RevenueFilter{Period: span})
	if err != nil {
		return nil, fmt.Errorf("failed to load revenue: %w", err)
	}
	adjs, err := s.Adjustments.Adjustments(ctx, op, span)
	if err != nil {
		return nil, fmt.Errorf("failed to load adjustments: %w", err)
	}
	debts, err := s.Debts.ActiveDebts(ctx, op, span)
	if err != nil {
		return nil, fmt.Errorf("failed to load weekly debts: %w", err)
	}
	target, err := s.operatorTarget(ctx, op, month)
	if err != nil {
		return nil, err
	}

	in := Input{
		Operator:    op,
		Revenue:     generic.NewSnapshot(records),
		Adjustments: adjs,
		Debts:       debts,
		Target:      target,
	}

	report := &OperatorReport{Operator: operator, Month: calc.ComputeMonth(in, month)}
	s.record("month", report.Month)
	if !week.IsZero() {
		wb := calc.ComputeWeek(in, week)
		report.Week = &wb
		s.record("week", wb)
	}
	return report, nil
}

// RolePay computes a management role's monthly pay against global turnover.
func (s *Service) RolePay(ctx context.Context, role generic.RoleCode, month generic.TimePoint) (*RoleBreakdown, error) {
	if month.IsZero() {
		return nil, fmt.Errorf("%w: month is required", generic.ErrInvalidPeriod)
	}
	month = generic.MonthStart(month)

	salaries, err := s.Roles.RoleSalaries(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load role salaries: %w", err)
	}
	var salary *generic.RoleSalary
	for i := range salaries {
		if salaries[i].Role == role {
			salary = &salaries[i]
			break
		}
	}
	if salary == nil {
		return nil, fmt.Errorf("%w: %s", generic.ErrRoleNotFound, role)
	}

	records, err := s.Revenue.RevenueInRange(ctx, generic.RevenueFilter{Period: generic.MonthPeriod(month)})
	if err != nil {
		return nil, fmt.Errorf("failed to load revenue: %w", err)
	}
	rows, err := s.Plans.LoadPlan(ctx, month)
	if err != nil {
		return nil, fmt.Errorf("failed to load plan: %w", err)
	}
	target := decimal.Zero
	for _, r := range rows {
		if r.Key.Entity == generic.EntityRole && r.Key.Role == role {
			target = r.Targets.MonthTurnover
			break
		}
	}

	calc := NewCalculator(s.Config, nil)
	rb := calc.RolePay(*salary, month, generic.NewSnapshot(records).Turnover(), target)
	s.Metrics.PayComputed("role")
	return &rb, nil
}

func (s *Service) calculator(ctx context.Context) (*Calculator, error) {
	rules, err := s.Rules.ActiveRules(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load salary rules: %w", err)
	}
	rs, err := NewRuleSet(rules)
	if err != nil {
		return nil, err
	}
	return NewCalculator(s.Config, rs), nil
}

func (s *Service) lookupOperator(ctx context.Context, op generic.OperatorID) (generic.Operator, error) {
	if s.Operators == nil {
		return generic.Operator{ID: op}, nil
	}
	ops, err := s.Operators.Operators(ctx)
	if err != nil {
		return generic.Operator{}, fmt.Errorf("failed to load operators: %w", err)
	}
	for _, o := range ops {
		if o.ID == op {
			return o, nil
		}
	}
	return generic.Operator{}, fmt.Errorf("%w: %s", generic.ErrOperatorNotFound, op)
}

// operatorTarget sums the operator's plan rows across companies.
func (s *Service) operatorTarget(ctx context.Context, op generic.OperatorID, month generic.TimePoint) (decimal.Decimal, error) {
	rows, err := s.Plans.LoadPlan(ctx, month)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to load plan: %w", err)
	}
	target := decimal.Zero
	for _, r := range rows {
		if r.Key.Entity == generic.EntityOperator && r.Key.Operator == op {
			target = target.Add(r.Targets.MonthTurnover)
		}
	}
	return target, nil
}

func (s *Service) record(window string, b Breakdown) {
	s.Metrics.PayComputed(window)
	s.Metrics.LedgerEntriesSkipped(b.Skipped)
	if b.Skipped > 0 {
		s.logger().Printf("[Payroll] %s %s: skipped %d ledger entries with a non-positive amount",
			b.Operator, b.Window, b.Skipped)
	}
}
