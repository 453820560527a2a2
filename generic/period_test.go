package generic_test

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/payplan/generic"
)

func date(year int, month time.Month, day int) generic.TimePoint {
	return generic.NewTimePoint(year, month, day)
}

func TestMonthPeriod(t *testing.T) {
	p := generic.MonthPeriod(date(2024, time.February, 17))

	assert.Equal(t, "2024-02-01", p.Start.String())
	assert.Equal(t, "2024-02-29", p.End.String())
	assert.Equal(t, 29, p.NumDays())
}

func TestWeekPeriod_MondayToSunday(t *testing.T) {
	tests := []struct {
		name string
		day  generic.TimePoint
		want string
	}{
		{"monday", date(2025, time.March, 10), "2025-03-10"},
		{"wednesday", date(2025, time.March, 12), "2025-03-10"},
		{"sunday", date(2025, time.March, 16), "2025-03-10"},
		{"next monday", date(2025, time.March, 17), "2025-03-17"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := generic.WeekPeriod(tt.day)
			assert.Equal(t, tt.want, p.Start.String())
			assert.Equal(t, 7, p.NumDays())
			assert.Equal(t, time.Sunday, p.End.Weekday())
		})
	}
}

func TestPeriod_FullWeeksAndPreviousMonth(t *testing.T) {
	march := generic.MonthPeriod(date(2025, time.March, 1))

	weeks := march.FullWeeks()
	assert.Equal(t, "2025-02-24", weeks.Start.String())
	assert.Equal(t, "2025-04-06", weeks.End.String())

	prev := march.PreviousMonth()
	assert.Equal(t, "2025-02-01", prev.Start.String())
	assert.Equal(t, "2025-02-28", prev.End.String())

	jan := generic.MonthPeriod(date(2025, time.January, 1)).PreviousMonth()
	assert.Equal(t, "2024-12-01", jan.Start.String())
}

func TestPeriod_Validate(t *testing.T) {
	ok := generic.Period{Start: date(2025, 1, 1), End: date(2025, 1, 1)}
	assert.NoError(t, ok.Validate())

	bad := generic.Period{Start: date(2025, 1, 2), End: date(2025, 1, 1)}
	err := bad.Validate()
	assert.True(t, errors.Is(err, generic.ErrInvalidPeriod))
	assert.True(t, generic.IsClientError(err))
}

func TestParseMonth(t *testing.T) {
	m, err := generic.ParseMonth("2025-03")
	require.NoError(t, err)
	assert.Equal(t, "2025-03-01", m.String())

	m, err = generic.ParseMonth("2025-03-19")
	require.NoError(t, err)
	assert.Equal(t, "2025-03-01", m.String())

	_, err = generic.ParseMonth("March")
	assert.ErrorIs(t, err, generic.ErrInvalidPeriod)
}

func TestDaysInMonth(t *testing.T) {
	assert.Equal(t, 31, generic.DaysInMonth(date(2025, time.January, 9)))
	assert.Equal(t, 28, generic.DaysInMonth(date(2025, time.February, 9)))
	assert.Equal(t, 30, generic.DaysInMonth(date(2025, time.April, 30)))
}
