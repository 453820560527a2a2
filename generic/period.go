package generic

import "fmt"

// =============================================================================
// PERIOD - Inclusive date window
// =============================================================================

// Period is the window a computation covers: [Start, End], both inclusive.
//
// Examples:
//   - Month 2025-03: Mar 1 - Mar 31
//   - ISO week: Monday - Sunday
type Period struct {
	Start TimePoint
	End   TimePoint
}

// Validate rejects windows that end before they start.
func (p Period) Validate() error {
	if p.Start.IsZero() || p.End.IsZero() || p.End.Before(p.Start) {
		return fmt.Errorf("%w: %s", ErrInvalidPeriod, p)
	}
	return nil
}

// Contains returns true if the time point is within the period [Start, End]
func (p Period) Contains(t TimePoint) bool {
	return t.AfterOrEqual(p.Start) && t.BeforeOrEqual(p.End)
}

// NumDays is the inclusive length in days.
func (p Period) NumDays() int { return DaysBetween(p.Start, p.End) + 1 }

func (p Period) String() string {
	return "[" + p.Start.String() + ", " + p.End.String() + "]"
}

// =============================================================================
// CALENDAR PERIODS
// =============================================================================

// MonthPeriod returns the calendar month containing tp.
func MonthPeriod(tp TimePoint) Period {
	return Period{Start: MonthStart(tp), End: EndOfMonth(tp.Year(), tp.Month())}
}

// WeekPeriod returns the Monday-Sunday week containing tp.
func WeekPeriod(tp TimePoint) Period {
	start := WeekStart(tp)
	return Period{Start: start, End: start.AddDays(6)}
}

// PreviousMonth returns the month before p's start month.
func (p Period) PreviousMonth() Period {
	return MonthPeriod(MonthStart(p.Start).AddMonths(-1))
}

// FullWeeks widens p to whole Monday-Sunday weeks. Company weekly totals for
// a month need the weeks that straddle its edges.
func (p Period) FullWeeks() Period {
	return Period{Start: WeekStart(p.Start), End: WeekPeriod(p.End).End}
}

// Union returns the smallest period covering both.
func (p Period) Union(o Period) Period {
	out := p
	if o.Start.Before(out.Start) {
		out.Start = o.Start
	}
	if o.End.After(out.End) {
		out.End = o.End
	}
	return out
}
