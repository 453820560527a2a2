package generic

import (
	"fmt"
	"time"
)

// =============================================================================
// TIME POINT - Calendar day (all aggregates are date-keyed)
// =============================================================================

type TimePoint struct {
	Time time.Time
}

const (
	dateLayout  = "2006-01-02"
	monthLayout = "2006-01"
)

// Constructors
func NewTimePoint(year int, month time.Month, day int) TimePoint {
	return TimePoint{Time: time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

// FromTime keeps the calendar date of t in its own location.
func FromTime(t time.Time) TimePoint {
	return NewTimePoint(t.Year(), t.Month(), t.Day())
}

// ParseDate parses "2006-01-02".
func ParseDate(s string) (TimePoint, error) {
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return TimePoint{}, fmt.Errorf("%w: date %q", ErrInvalidPeriod, s)
	}
	return FromTime(t), nil
}

// ParseMonth parses "2006-01" (or a full date) into the first day of that month.
func ParseMonth(s string) (TimePoint, error) {
	t, err := time.Parse(monthLayout, s)
	if err != nil {
		d, derr := ParseDate(s)
		if derr != nil {
			return TimePoint{}, fmt.Errorf("%w: month %q", ErrInvalidPeriod, s)
		}
		return MonthStart(d), nil
	}
	return FromTime(t), nil
}

// Comparison
func (tp TimePoint) Before(other TimePoint) bool        { return tp.Time.Before(other.Time) }
func (tp TimePoint) Equal(other TimePoint) bool         { return tp.Time.Equal(other.Time) }
func (tp TimePoint) After(other TimePoint) bool         { return tp.Time.After(other.Time) }
func (tp TimePoint) BeforeOrEqual(other TimePoint) bool { return !tp.After(other) }
func (tp TimePoint) AfterOrEqual(other TimePoint) bool  { return !tp.Before(other) }

// Arithmetic
func (tp TimePoint) AddDays(n int) TimePoint   { return TimePoint{Time: tp.Time.AddDate(0, 0, n)} }
func (tp TimePoint) AddMonths(n int) TimePoint { return TimePoint{Time: tp.Time.AddDate(0, n, 0)} }

// Properties
func (tp TimePoint) Year() int             { return tp.Time.Year() }
func (tp TimePoint) Month() time.Month     { return tp.Time.Month() }
func (tp TimePoint) Day() int              { return tp.Time.Day() }
func (tp TimePoint) Weekday() time.Weekday { return tp.Time.Weekday() }
func (tp TimePoint) IsZero() bool          { return tp.Time.IsZero() }

func (tp TimePoint) String() string { return tp.Time.Format(dateLayout) }

// MonthString formats as "2006-01".
func (tp TimePoint) MonthString() string { return tp.Time.Format(monthLayout) }

// =============================================================================
// CALENDAR HELPERS
// =============================================================================

func DaysBetween(from, to TimePoint) int { return int(to.Time.Sub(from.Time).Hours() / 24) }

func StartOfMonth(year int, month time.Month) TimePoint { return NewTimePoint(year, month, 1) }

func EndOfMonth(year int, month time.Month) TimePoint {
	return StartOfMonth(year, month).AddMonths(1).AddDays(-1)
}

// MonthStart returns the first day of tp's month.
func MonthStart(tp TimePoint) TimePoint { return StartOfMonth(tp.Year(), tp.Month()) }

// DaysInMonth returns the number of days in tp's month.
func DaysInMonth(tp TimePoint) int { return EndOfMonth(tp.Year(), tp.Month()).Day() }

// WeekStart returns the Monday on or before tp (ISO weeks).
func WeekStart(tp TimePoint) TimePoint {
	offset := (int(tp.Weekday()) + 6) % 7
	return tp.AddDays(-offset)
}

// =============================================================================
// CLOCK
// =============================================================================

// Clock supplies "now". Only the forecaster's open-period check reads it.
type Clock interface {
	Now() time.Time
}

type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }

// FixedClock always returns the same instant.
type FixedClock struct {
	At time.Time
}

func (c FixedClock) Now() time.Time { return c.At }

// Today returns the current calendar day of clock.
func Today(clock Clock) TimePoint { return FromTime(clock.Now()) }
