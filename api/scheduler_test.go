package api_test

import (
	"context"
	"io"
	"log"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/payplan/api"
	"github.com/warp/payplan/generic"
)

func newScheduler(env *testEnv) *api.PlanScheduler {
	s := api.NewPlanScheduler(env.planner)
	s.Clock = testClock
	s.Logger = log.New(io.Discard, "", 0)
	return s
}

func TestPlanScheduler_RunNowRegeneratesCurrentMonth(t *testing.T) {
	env := setupTestEnv(t)
	env.loadScenario(t, "steady-growth")

	out, err := newScheduler(env).RunNow(context.Background())
	require.NoError(t, err)
	assert.Equal(t, generic.NewTimePoint(2025, time.April, 1), out.Month)
	assert.Positive(t, out.Written)
}

func TestPlanScheduler_StartRunsImmediately(t *testing.T) {
	env := setupTestEnv(t)
	env.loadScenario(t, "steady-growth")

	s := newScheduler(env)
	s.CheckInterval = time.Hour
	s.Start()
	s.Start() // second start is a no-op
	s.Stop()
	s.Stop()

	entries, err := env.planner.Plan(context.Background(), generic.NewTimePoint(2025, time.April, 1))
	require.NoError(t, err)
	assert.NotEmpty(t, entries)
	assert.Equal(t, testClock.At.Add(time.Hour), s.NextRunTime())
}

func TestPlanScheduler_Disabled(t *testing.T) {
	env := setupTestEnv(t)
	env.loadScenario(t, "steady-growth")

	s := newScheduler(env)
	s.Enabled = false
	s.Start()
	s.Stop()

	entries, err := env.planner.Plan(context.Background(), generic.NewTimePoint(2025, time.April, 1))
	require.NoError(t, err)
	assert.Empty(t, entries)
}
