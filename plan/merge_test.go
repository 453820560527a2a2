package plan_test

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/payplan/generic"
	"github.com/warp/payplan/plan"
)

func operatorKey(op string) generic.PlanKey {
	return generic.PlanKey{Month: april, Entity: generic.EntityOperator, Company: "A", Operator: generic.OperatorID(op)}
}

func row(key generic.PlanKey, month int64) plan.Row {
	return plan.Row{
		Key:     key,
		Targets: generic.Targets{MonthTurnover: generic.NewMoney(month)},
	}
}

func TestMerge_LockedReplacesFreshRow(t *testing.T) {
	// GIVEN: op1 was edited by hand to 90000
	previous := []plan.Entry{
		plan.Lock(row(operatorKey("op1"), 90000)),
		plan.Generate(row(operatorKey("op2"), 10000)),
	}
	fresh := []plan.Row{row(operatorKey("op1"), 82727), row(operatorKey("op2"), 57273)}

	// WHEN: merging
	merged := plan.Merge(previous, fresh)

	// THEN: op1 keeps the manual value, op2 takes the fresh one
	require.Len(t, merged, 2)
	assert.True(t, merged[0].IsLocked())
	assert.Equal(t, "90000", merged[0].Row().Targets.MonthTurnover.String())
	assert.False(t, merged[1].IsLocked())
	assert.Equal(t, "57273", merged[1].Row().Targets.MonthTurnover.String())
}

func TestMerge_IdsSharingSlashBoundaryStayDistinct(t *testing.T) {
	// GIVEN: (a, b/c) is locked; the fresh run produces (a/b, c)
	locked := generic.PlanKey{Month: april, Entity: generic.EntityOperator, Company: "a", Operator: "b/c"}
	other := generic.PlanKey{Month: april, Entity: generic.EntityOperator, Company: "a/b", Operator: "c"}
	require.Equal(t, locked.String(), other.String())

	// WHEN: merging
	merged := plan.Merge([]plan.Entry{plan.Lock(row(locked, 1))}, []plan.Row{row(other, 999)})

	// THEN: both rows survive, neither replaces the other
	require.Len(t, merged, 2)
	assert.False(t, merged[0].IsLocked())
	assert.Equal(t, other, merged[0].Row().Key)
	assert.Equal(t, "999", merged[0].Row().Targets.MonthTurnover.String())
	assert.True(t, merged[1].IsLocked())
	assert.Equal(t, locked, merged[1].Row().Key)
	require.NoError(t, plan.Validate(merged))
}

func TestMerge_LockedKeptWhenNotRegenerated(t *testing.T) {
	previous := []plan.Entry{
		plan.Lock(row(operatorKey("gone"), 1000)),
		plan.Generate(row(operatorKey("stale"), 1000)),
	}
	fresh := []plan.Row{row(operatorKey("op1"), 5000)}

	merged := plan.Merge(previous, fresh)

	require.Len(t, merged, 2)
	assert.Equal(t, generic.OperatorID("op1"), merged[0].Row().Key.Operator)
	assert.Equal(t, generic.OperatorID("gone"), merged[1].Row().Key.Operator)
	assert.True(t, merged[1].IsLocked())

	locked, generated := plan.Counts(merged)
	assert.Equal(t, 1, locked)
	assert.Equal(t, 1, generated)
}

func TestMerge_LockIdempotentAcrossRuns(t *testing.T) {
	manual := plan.Lock(plan.Row{
		Key:      operatorKey("op1"),
		Targets:  generic.Targets{MonthTurnover: generic.NewMoney(90000), MonthShifts: generic.NewMoney(12)},
		Metadata: map[string]string{"note": "agreed with supervisor"},
	})

	entries := []plan.Entry{manual}
	for _, v := range []int64{1000, 2000, 3000} {
		entries = plan.Merge(entries, []plan.Row{row(operatorKey("op1"), v)})
	}

	require.Len(t, entries, 1)
	assert.Equal(t, manual.Row(), entries[0].Row())
}

func TestEntry_RowIsACopy(t *testing.T) {
	e := plan.Generate(plan.Row{Key: operatorKey("op1"), Metadata: map[string]string{"a": "1"}})

	r := e.Row()
	r.Metadata["a"] = "changed"

	assert.Equal(t, "1", e.Row().Metadata["a"])
}

func TestRecordConversion(t *testing.T) {
	now := time.Date(2025, time.April, 2, 10, 0, 0, 0, time.UTC)
	rec := plan.ToRecord(plan.Lock(row(operatorKey("op1"), 500)), now)

	assert.True(t, rec.Locked)
	assert.Equal(t, now, rec.UpdatedAt)

	back := plan.FromRecord(rec)
	_, isLocked := back.(plan.Locked)
	assert.True(t, isLocked)

	rec.Locked = false
	_, isGenerated := plan.FromRecord(rec).(plan.Generated)
	assert.True(t, isGenerated)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		entries []plan.Entry
		wantErr error
	}{
		{
			name: "unique keys",
			entries: []plan.Entry{
				plan.Generate(row(operatorKey("op1"), 1)),
				plan.Generate(row(operatorKey("op2"), 1)),
			},
		},
		{
			name: "duplicate key",
			entries: []plan.Entry{
				plan.Generate(row(operatorKey("op1"), 1)),
				plan.Lock(row(operatorKey("op1"), 2)),
			},
			wantErr: generic.ErrIdentityConflict,
		},
		{
			name: "ids sharing a slash boundary",
			entries: []plan.Entry{
				plan.Generate(row(generic.PlanKey{Month: april, Entity: generic.EntityOperator, Company: "a", Operator: "b/c"}, 1)),
				plan.Generate(row(generic.PlanKey{Month: april, Entity: generic.EntityOperator, Company: "a/b", Operator: "c"}, 1)),
			},
		},
		{
			name: "malformed key",
			entries: []plan.Entry{
				plan.Generate(row(generic.PlanKey{Month: april, Entity: generic.EntityRole}, 1)),
			},
			wantErr: generic.ErrInvalidPlanKey,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := plan.Validate(tt.entries)
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.True(t, errors.Is(err, tt.wantErr), "got %v", err)
		})
	}

	var conflict *generic.PlanConflictError
	err := plan.Validate([]plan.Entry{
		plan.Generate(row(operatorKey("op1"), 1)),
		plan.Generate(row(operatorKey("op1"), 1)),
	})
	require.True(t, errors.As(err, &conflict))
	assert.Equal(t, operatorKey("op1"), conflict.Key)
}
