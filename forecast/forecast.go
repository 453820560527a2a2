/*
Package forecast extrapolates next-month totals from two monthly figures.

PURPOSE:
  Turns "month before last" and "last month" totals (turnover or shift
  counts) into a point forecast for the target month. Last month may still be
  open; it is then scaled up to a full-month estimate before smoothing.

METHOD:
  Two-point linear trend smoothing:

    L = s[0], T = s[1] - s[0]
    prevL = L
    L = α·s[1] + (1-α)·(L+T)
    T = β·(L-prevL) + (1-β)·T
    forecast = max(0, round(L+T))

  Policy is fixed at α = 0.6, β = 0.2. An optional clamp bounds |T| to a
  fraction of |L|; it is off unless configured.

EXAMPLE:
  f := forecast.New(forecast.DefaultPolicy(), generic.SystemClock{})
  res := f.Forecast(april, marchTwoAgo, marchOneAgo)
  // res.Forecast, res.EstimatedPrior, res.IsPartial, res.TrendPercent
*/
package forecast

import (
	"github.com/shopspring/decimal"
	"github.com/warp/payplan/generic"
)

// =============================================================================
// POLICY
// =============================================================================

// Policy holds the smoothing constants.
type Policy struct {
	Alpha decimal.Decimal
	Beta  decimal.Decimal

	// TrendClamp bounds |T| to TrendClamp·|L|. Zero disables it.
	TrendClamp decimal.Decimal
}

// DefaultPolicy is the canonical α = 0.6, β = 0.2 without a clamp.
func DefaultPolicy() Policy {
	return Policy{
		Alpha: decimal.RequireFromString("0.6"),
		Beta:  decimal.RequireFromString("0.2"),
	}
}

// =============================================================================
// RESULT
// =============================================================================

type Result struct {
	Forecast       decimal.Decimal
	EstimatedPrior decimal.Decimal
	IsPartial      bool
	TrendPercent   decimal.Decimal
}

// =============================================================================
// FORECASTER
// =============================================================================

// Forecaster is pure apart from reading the clock to decide whether last
// month is still open.
type Forecaster struct {
	Policy Policy
	Clock  generic.Clock
}

func New(policy Policy, clock generic.Clock) *Forecaster {
	if clock == nil {
		clock = generic.SystemClock{}
	}
	return &Forecaster{Policy: policy, Clock: clock}
}

// Window describes the month before the target month as seen from now.
type Window struct {
	Period    generic.Period
	Elapsed   int
	Total     int
	IsPartial bool
}

// PriorWindow returns the month before targetStart and how much of it has
// elapsed. Elapsed is clamped to [1, Total].
func (f *Forecaster) PriorWindow(targetStart generic.TimePoint) Window {
	prior := generic.MonthPeriod(targetStart).PreviousMonth()
	total := generic.DaysInMonth(prior.Start)
	today := generic.Today(f.Clock)

	w := Window{Period: prior, Elapsed: total, Total: total}
	if prior.Contains(today) {
		w.IsPartial = true
		w.Elapsed = clamp(today.Day(), 1, total)
	}
	return w
}

// PartialFactor is Total/Elapsed for an open prior month, 1 otherwise.
func (f *Forecaster) PartialFactor(targetStart generic.TimePoint) decimal.Decimal {
	w := f.PriorWindow(targetStart)
	if !w.IsPartial {
		return decimal.NewFromInt(1)
	}
	return decimal.NewFromInt(int64(w.Total)).Div(decimal.NewFromInt(int64(w.Elapsed)))
}

// Forecast computes the target month's figure from the two prior months.
func (f *Forecaster) Forecast(targetStart generic.TimePoint, twoAgo, oneAgo decimal.Decimal) Result {
	w := f.PriorWindow(targetStart)

	estimated := oneAgo
	if w.IsPartial {
		estimated = generic.RoundUnits(
			oneAgo.Div(decimal.NewFromInt(int64(w.Elapsed))).Mul(decimal.NewFromInt(int64(w.Total))),
		)
	}

	fc := f.Policy.Smooth([]decimal.Decimal{twoAgo, estimated})

	return Result{
		Forecast:       fc,
		EstimatedPrior: estimated,
		IsPartial:      w.IsPartial,
		TrendPercent:   TrendPercent(fc, estimated),
	}
}

// Smooth applies the two-point trend smoothing. Only the first two values of
// series are used.
func (p Policy) Smooth(series []decimal.Decimal) decimal.Decimal {
	switch len(series) {
	case 0:
		return decimal.Zero
	case 1:
		return decimal.Max(decimal.Zero, series[0])
	}

	one := decimal.NewFromInt(1)
	level := series[0]
	trend := series[1].Sub(series[0])

	y := series[1]
	prevLevel := level
	level = p.Alpha.Mul(y).Add(one.Sub(p.Alpha).Mul(level.Add(trend)))
	trend = p.Beta.Mul(level.Sub(prevLevel)).Add(one.Sub(p.Beta).Mul(trend))

	if p.TrendClamp.IsPositive() {
		bound := p.TrendClamp.Mul(level.Abs())
		trend = decimal.Min(decimal.Max(trend, bound.Neg()), bound)
	}

	return decimal.Max(decimal.Zero, generic.RoundUnits(level.Add(trend)))
}

// TrendPercent is (forecast - base) / base · 100 to two decimals, 0 when
// base is zero.
func TrendPercent(forecast, base decimal.Decimal) decimal.Decimal {
	if base.IsZero() {
		return decimal.Zero
	}
	return forecast.Sub(base).Div(base).Mul(decimal.NewFromInt(100)).Round(2)
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
