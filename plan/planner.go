package plan

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/payplan/generic"
	"github.com/warp/payplan/metrics"
)

// Planner runs plan generation against the stores.
type Planner struct {
	Revenue   generic.RevenueSource
	Plans     generic.PlanStore
	Operators generic.OperatorDirectory // optional, names only
	Allocator *Allocator
	Metrics   *metrics.Metrics
	Logger    *log.Logger
	Clock     generic.Clock
}

// Outcome summarizes one generation run.
type Outcome struct {
	Month     generic.TimePoint
	Entries   []Entry
	Written   int
	Preserved int
	Pruned    int
}

func (p *Planner) logger() *log.Logger {
	if p.Logger != nil {
		return p.Logger
	}
	return log.Default()
}

func (p *Planner) now() time.Time {
	if p.Clock != nil {
		return p.Clock.Now()
	}
	return time.Now()
}

// LookbackPeriod covers the two months before month.
func LookbackPeriod(month generic.TimePoint) generic.Period {
	m := generic.MonthStart(month)
	return generic.Period{Start: m.AddMonths(-2), End: m.AddDays(-1)}
}

// GeneratePlan regenerates the month's plan.
//
// Revenue for the lookback is fetched once. A merged plan with duplicate keys
// is rejected before any write. Each generated row is written on its own; a
// write bouncing off a row locked in the meantime counts as preserved.
func (p *Planner) GeneratePlan(ctx context.Context, monthStart generic.TimePoint) (out *Outcome, err error) {
	started := time.Now()
	defer func() {
		outcome := "ok"
		if err != nil {
			outcome = "error"
		}
		p.Metrics.GenerationDone(outcome, started)
	}()

	if monthStart.IsZero() {
		return nil, fmt.Errorf("%w: month is required", generic.ErrInvalidPeriod)
	}
	month := generic.MonthStart(monthStart)

	records, err := p.Revenue.RevenueInRange(ctx, generic.RevenueFilter{Period: LookbackPeriod(month)})
	if err != nil {
		return nil, fmt.Errorf("failed to load revenue: %w", err)
	}
	fresh := p.Allocator.Generate(month, generic.NewSnapshot(records))

	if p.Operators != nil {
		ops, err := p.Operators.Operators(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to load operators: %w", err)
		}
		names := make(map[generic.OperatorID]string, len(ops))
		for _, op := range ops {
			names[op.ID] = op.Name
		}
		Annotate(fresh, names)
	}

	stored, err := p.Plans.LoadPlan(ctx, month)
	if err != nil {
		return nil, fmt.Errorf("failed to load plan: %w", err)
	}

	merged := Merge(FromRecords(stored), fresh)
	if err := Validate(merged); err != nil {
		p.logger().Printf("[Planner] %s rejected: %v", month.MonthString(), err)
		return nil, err
	}

	out = &Outcome{Month: month}
	now := p.now()
	keep := make([]generic.PlanKey, 0, len(merged))
	for _, e := range merged {
		row := e.Row()
		keep = append(keep, row.Key)
		if e.IsLocked() {
			out.Preserved++
			p.Metrics.RowPreserved()
			continue
		}
		err := p.Plans.SaveRecord(ctx, ToRecord(e, now))
		switch {
		case errors.Is(err, generic.ErrRowLocked):
			out.Preserved++
			p.Metrics.RowPreserved()
			p.logger().Printf("[Planner] %s locked concurrently, kept", row.Key)
		case err != nil:
			return nil, fmt.Errorf("failed to save %s: %w", row.Key, err)
		default:
			out.Written++
			p.Metrics.RowGenerated(string(row.Key.Entity))
		}
	}

	if out.Pruned, err = p.Plans.PruneGenerated(ctx, month, keep); err != nil {
		return nil, fmt.Errorf("failed to prune plan: %w", err)
	}

	reloaded, err := p.Plans.LoadPlan(ctx, month)
	if err != nil {
		return nil, fmt.Errorf("failed to reload plan: %w", err)
	}
	out.Entries = FromRecords(reloaded)

	p.logger().Printf("[Planner] %s: %d written, %d preserved, %d pruned",
		month.MonthString(), out.Written, out.Preserved, out.Pruned)
	return out, nil
}

// LockRow stores a manual edit. The row is locked from then on and survives
// regeneration until unlocked.
func (p *Planner) LockRow(ctx context.Context, key generic.PlanKey, targets generic.Targets, meta map[string]string) (Locked, error) {
	key.Month = generic.MonthStart(key.Month)
	if err := key.Validate(); err != nil {
		return Locked{}, err
	}
	for _, v := range []struct {
		name string
		val  decimal.Decimal
	}{
		{"month_turnover", targets.MonthTurnover},
		{"week_turnover", targets.WeekTurnover},
		{"month_shifts", targets.MonthShifts},
		{"week_shifts", targets.WeekShifts},
	} {
		if v.val.IsNegative() {
			return Locked{}, fmt.Errorf("%w: %s must not be negative", generic.ErrInvalidAmount, v.name)
		}
	}

	entry := Lock(Row{Key: key, Targets: targets, Metadata: meta})
	if err := p.Plans.SaveRecord(ctx, ToRecord(entry, p.now())); err != nil {
		return Locked{}, fmt.Errorf("failed to save %s: %w", key, err)
	}
	p.logger().Printf("[Planner] %s locked by manual edit", key)
	return entry, nil
}

// UnlockRow hands a row back to the allocator; the next run overwrites it.
func (p *Planner) UnlockRow(ctx context.Context, key generic.PlanKey) error {
	key.Month = generic.MonthStart(key.Month)
	if err := key.Validate(); err != nil {
		return err
	}
	if err := p.Plans.Unlock(ctx, key); err != nil {
		return fmt.Errorf("failed to unlock %s: %w", key, err)
	}
	p.logger().Printf("[Planner] %s unlocked", key)
	return nil
}

// Plan returns the stored entries of the month.
func (p *Planner) Plan(ctx context.Context, monthStart generic.TimePoint) ([]Entry, error) {
	recs, err := p.Plans.LoadPlan(ctx, generic.MonthStart(monthStart))
	if err != nil {
		return nil, fmt.Errorf("failed to load plan: %w", err)
	}
	return FromRecords(recs), nil
}

// RowFor finds the plan row for key among entries.
func RowFor(entries []Entry, key generic.PlanKey) (Row, bool) {
	k := key.Identity()
	for _, e := range entries {
		if r := e.Row(); r.Key.Identity() == k {
			return r, true
		}
	}
	return Row{}, false
}
