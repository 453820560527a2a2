package forecast_test

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/warp/payplan/forecast"
	"github.com/warp/payplan/generic"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

func d(v int64) decimal.Decimal { return decimal.NewFromInt(v) }

func at(year int, month time.Month, day int) generic.Clock {
	return generic.FixedClock{At: time.Date(year, month, day, 14, 30, 0, 0, time.UTC)}
}

func series(vs ...int64) []decimal.Decimal {
	out := make([]decimal.Decimal, len(vs))
	for i, v := range vs {
		out[i] = d(v)
	}
	return out
}

// =============================================================================
// SMOOTHING
// =============================================================================

func TestSmooth_TwoPointTrend(t *testing.T) {
	// GIVEN: [100000, 120000] with α=0.6, β=0.2
	// THEN: L stays 120000, T stays 20000, forecast 140000
	p := forecast.DefaultPolicy()
	assert.Equal(t, "140000", p.Smooth(series(100000, 120000)).String())
}

func TestSmooth_Degenerate(t *testing.T) {
	p := forecast.DefaultPolicy()

	assert.True(t, p.Smooth(nil).IsZero(), "empty series forecasts zero")
	assert.Equal(t, "42", p.Smooth(series(42)).String())
	assert.True(t, p.Smooth(series(-5)).IsZero(), "single negative value floors at zero")
}

func TestSmooth_NeverNegative(t *testing.T) {
	// Steep decline: 100000 -> 10000 extrapolates below zero.
	p := forecast.DefaultPolicy()
	assert.True(t, p.Smooth(series(100000, 10000)).IsZero())
}

func TestSmooth_TrendClamp(t *testing.T) {
	// GIVEN: clamp 0.15 of level
	// WHEN: growth of 20000 on a level of 120000 (bound 18000)
	// THEN: forecast is 120000 + 18000
	p := forecast.DefaultPolicy()
	p.TrendClamp = decimal.RequireFromString("0.15")

	assert.Equal(t, "138000", p.Smooth(series(100000, 120000)).String())

	// Inside the bound the clamp changes nothing.
	assert.Equal(t, "110000", p.Smooth(series(100000, 105000)).String())
}

// =============================================================================
// FORECAST WITH PARTIAL PERIOD
// =============================================================================

func TestForecast_ClosedPriorMonth(t *testing.T) {
	// GIVEN: today is 2025-05-20, target May, so April is closed
	f :=forecast.New(forecast.DefaultPolicy(), at(2025, time.May, 20))

	res := f.Forecast(generic.NewTimePoint(2025, time.May, 1), d(100000), d(120000))

	assert.False(t, res.IsPartial)
	assert.Equal(t, "120000", res.EstimatedPrior.String())
	assert.Equal(t, "140000", res.Forecast.String())
	assert.Equal(t, "16.67", res.TrendPercent.String())
}

func TestForecast_PartialPriorMonthIsNormalized(t *testing.T) {
	// GIVEN: 10 of April's 30 days elapsed, April raw total 50000
	// THEN: estimated April = 50000 / 10 * 30 = 150000, partial
	f := forecast.New(forecast.DefaultPolicy(), at(2025, time.April, 10))

	res := f.Forecast(generic.NewTimePoint(2025, time.May, 1), d(140000), d(50000))

	assert.True(t, res.IsPartial)
	assert.Equal(t, "150000", res.EstimatedPrior.String())
	// L = 0.6*150000 + 0.4*(140000+10000) = 150000, T = 10000
	assert.Equal(t, "160000", res.Forecast.String())
}

func TestForecast_ElapsedClampedToOneOnFirstDay(t *testing.T) {
	f := forecast.New(forecast.DefaultPolicy(), at(2025, time.April, 1))

	res := f.Forecast(generic.NewTimePoint(2025, time.May, 1), d(0), d(1000))

	assert.True(t, res.IsPartial)
	assert.Equal(t, "30000", res.EstimatedPrior.String())
}

func TestForecast_ZeroBaseTrendPercent(t *testing.T) {
	f := forecast.New(forecast.DefaultPolicy(), at(2025, time.June, 15))

	res := f.Forecast(generic.NewTimePoint(2025, time.May, 1), d(0), d(0))

	assert.True(t, res.Forecast.IsZero())
	assert.True(t, res.TrendPercent.IsZero())
}

func TestPartialFactor(t *testing.T) {
	target := generic.NewTimePoint(2025, time.May, 1)

	open := forecast.New(forecast.DefaultPolicy(), at(2025, time.April, 10))
	assert.Equal(t, "3", open.PartialFactor(target).String())

	closed := forecast.New(forecast.DefaultPolicy(), at(2025, time.May, 2))
	assert.Equal(t, "1", closed.PartialFactor(target).String())
}
