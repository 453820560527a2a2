package plan_test

import (
	"context"
	"errors"
	"io"
	"log"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/payplan/generic"
	"github.com/warp/payplan/generic/store"
	"github.com/warp/payplan/metrics"
	"github.com/warp/payplan/plan"
)

func newPlanner(mem *store.Memory, plans generic.PlanStore) (*plan.Planner, *metrics.Metrics) {
	m := metrics.New(prometheus.NewRegistry())
	clock := clockAt(2025, time.May, 10)
	return &plan.Planner{
		Revenue:   mem,
		Plans:     plans,
		Operators: mem,
		Allocator: newAllocator(clock),
		Metrics:   m,
		Logger:    log.New(io.Discard, "", 0),
		Clock:     clock,
	}, m
}

func TestPlanner_GeneratePlan_WritesRows(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemory()
	mem.AddRevenue(history()...)
	mem.AddOperator(generic.Operator{ID: "op1", Name: "Alice", Active: true})
	p, m := newPlanner(mem, mem)

	out, err := p.GeneratePlan(ctx, april)
	require.NoError(t, err)

	assert.Equal(t, 5, out.Written)
	assert.Equal(t, 0, out.Preserved)
	require.Len(t, out.Entries, 5)

	row, ok := plan.RowFor(out.Entries, operatorKey("op1"))
	require.True(t, ok)
	assert.Equal(t, "Alice", row.Metadata[plan.MetaOperatorName])
	assert.Equal(t, "82727", row.Targets.MonthTurnover.String())

	assert.Equal(t, 2.0, testutil.ToFloat64(m.PlanRowsGenerated.WithLabelValues("operator")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.PlanGenerations.WithLabelValues("ok")))
}

func TestPlanner_GeneratePlan_PreservesLockedRow(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemory()
	mem.AddRevenue(history()...)
	p, _ := newPlanner(mem, mem)

	_, err := p.GeneratePlan(ctx, april)
	require.NoError(t, err)

	// GIVEN: op1's target is edited by hand
	_, err = p.LockRow(ctx, operatorKey("op1"), generic.Targets{
		MonthTurnover: generic.NewMoney(90000),
		WeekTurnover:  generic.NewMoney(20713),
	}, map[string]string{"note": "manual"})
	require.NoError(t, err)
	before, err := mem.LoadPlan(ctx, april)
	require.NoError(t, err)

	// WHEN: new revenue arrives and the plan is regenerated
	mem.AddRevenue(revenue(date(2025, time.March, 28), "A", "op2", 80000))
	out, err := p.GeneratePlan(ctx, april)
	require.NoError(t, err)

	// THEN: the locked record is unchanged, op2 moved
	after, err := mem.LoadPlan(ctx, april)
	require.NoError(t, err)
	assert.Equal(t, recordFor(t, before, operatorKey("op1")), recordFor(t, after, operatorKey("op1")))
	assert.NotEqual(t,
		recordFor(t, before, operatorKey("op2")).Targets.MonthTurnover.String(),
		recordFor(t, after, operatorKey("op2")).Targets.MonthTurnover.String())
	assert.Equal(t, 1, out.Preserved)
	assert.Equal(t, 4, out.Written)
}

func TestPlanner_GeneratePlan_RowLockedDuringRun(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemory()
	mem.AddRevenue(history()...)

	// GIVEN: op2 gets locked after the planner loaded the plan
	manual := generic.PlanRecord{
		Key:     operatorKey("op2"),
		Targets: generic.Targets{MonthTurnover: generic.NewMoney(1)},
		Locked:  true,
	}
	racing := &lockAfterLoad{Memory: mem, rec: manual}
	p, m := newPlanner(mem, racing)

	out, err := p.GeneratePlan(ctx, april)
	require.NoError(t, err)

	// THEN: the store refused the write and the run reports it as preserved
	assert.Equal(t, 1, out.Preserved)
	assert.Equal(t, 4, out.Written)
	row, ok := plan.RowFor(out.Entries, operatorKey("op2"))
	require.True(t, ok)
	assert.Equal(t, "1", row.Targets.MonthTurnover.String())
	assert.Equal(t, 1.0, testutil.ToFloat64(m.PlanRowsPreserved))
}

func TestPlanner_GeneratePlan_PrunesStaleGeneratedRows(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemory()
	mem.AddRevenue(history()...)
	p, _ := newPlanner(mem, mem)

	stale := generic.PlanRecord{Key: operatorKey("left-company"), Targets: generic.Targets{MonthTurnover: generic.NewMoney(7)}}
	kept := generic.PlanRecord{Key: operatorKey("on-leave"), Targets: generic.Targets{MonthTurnover: generic.NewMoney(8)}, Locked: true}
	require.NoError(t, mem.SaveRecord(ctx, stale))
	require.NoError(t, mem.SaveRecord(ctx, kept))

	out, err := p.GeneratePlan(ctx, april)
	require.NoError(t, err)

	assert.Equal(t, 1, out.Pruned)
	_, ok := plan.RowFor(out.Entries, operatorKey("left-company"))
	assert.False(t, ok)
	_, ok = plan.RowFor(out.Entries, operatorKey("on-leave"))
	assert.True(t, ok)
}

func TestPlanner_UnlockRow(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemory()
	mem.AddRevenue(history()...)
	p, _ := newPlanner(mem, mem)

	_, err := p.LockRow(ctx, operatorKey("op1"), generic.Targets{MonthTurnover: generic.NewMoney(1)}, nil)
	require.NoError(t, err)
	require.NoError(t, p.UnlockRow(ctx, operatorKey("op1")))

	out, err := p.GeneratePlan(ctx, april)
	require.NoError(t, err)

	row, ok := plan.RowFor(out.Entries, operatorKey("op1"))
	require.True(t, ok)
	assert.Equal(t, "82727", row.Targets.MonthTurnover.String())
	assert.Equal(t, 0, out.Preserved)

	err = p.UnlockRow(ctx, operatorKey("nobody"))
	assert.True(t, generic.IsNotFound(err))
}

func TestPlanner_LockRow_Validation(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemory()
	p, _ := newPlanner(mem, mem)

	_, err := p.LockRow(ctx, generic.PlanKey{Month: april, Entity: generic.EntityOperator, Company: "A"}, generic.Targets{}, nil)
	assert.True(t, errors.Is(err, generic.ErrInvalidPlanKey))

	_, err = p.LockRow(ctx, operatorKey("op1"), generic.Targets{MonthTurnover: generic.NewMoney(-1)}, nil)
	assert.True(t, errors.Is(err, generic.ErrInvalidAmount))

	// mid-month dates are normalized to the month start
	key := operatorKey("op1")
	key.Month = date(2025, time.April, 15)
	locked, err := p.LockRow(ctx, key, generic.Targets{MonthTurnover: generic.NewMoney(5)}, nil)
	require.NoError(t, err)
	assert.True(t, locked.Row().Key.Month.Equal(april))
}

func TestPlanner_GeneratePlan_StoreFailure(t *testing.T) {
	mem := store.NewMemory()
	p, m := newPlanner(mem, mem)
	p.Revenue = failingRevenue{}

	_, err := p.GeneratePlan(context.Background(), april)
	assert.Error(t, err)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.PlanGenerations.WithLabelValues("error")))

	_, err = p.GeneratePlan(context.Background(), generic.TimePoint{})
	assert.True(t, errors.Is(err, generic.ErrInvalidPeriod))
}

// =============================================================================
// TEST DOUBLES
// =============================================================================

// lockAfterLoad stores a locked record right after the first LoadPlan.
type lockAfterLoad struct {
	*store.Memory
	rec  generic.PlanRecord
	done bool
}

func (l *lockAfterLoad) LoadPlan(ctx context.Context, month generic.TimePoint) ([]generic.PlanRecord, error) {
	recs, err := l.Memory.LoadPlan(ctx, month)
	if err == nil && !l.done {
		l.done = true
		if err := l.Memory.SaveRecord(ctx, l.rec); err != nil {
			return nil, err
		}
	}
	return recs, err
}

type failingRevenue struct{}

func (failingRevenue) RevenueInRange(context.Context, generic.RevenueFilter) ([]generic.RevenueRecord, error) {
	return nil, errors.New("connection reset")
}

func recordFor(t *testing.T, recs []generic.PlanRecord, key generic.PlanKey) generic.PlanRecord {
	t.Helper()
	for _, r := range recs {
		if r.Key.Identity() == key.Identity() {
			return r
		}
	}
	t.Fatalf("no record for %s", key)
	return generic.PlanRecord{}
}
