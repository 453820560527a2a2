package payroll

import (
	"sort"

	"github.com/shopspring/decimal"
	"github.com/warp/payplan/generic"
)

// Shift is one worked (company, date, shift type) unit.
type Shift struct {
	Company  generic.CompanyCode
	Date     generic.TimePoint
	Type     generic.ShiftType
	Turnover decimal.Decimal
}

type shiftKey struct {
	company generic.CompanyCode
	date    string
	shift   generic.ShiftType
}

// AggregateShifts groups records by (company, date, shift type) and sums
// their turnover. The result is ordered by date, company, shift type.
func AggregateShifts(records []generic.RevenueRecord) []Shift {
	idx := make(map[shiftKey]int)
	var out []Shift
	for _, r := range records {
		if !r.Counts() {
			continue
		}
		k := shiftKey{company: r.Company, date: r.Date.String(), shift: r.Shift}
		if i, ok := idx[k]; ok {
			out[i].Turnover = out[i].Turnover.Add(r.Turnover())
			continue
		}
		idx[k] = len(out)
		out = append(out, Shift{Company: r.Company, Date: r.Date, Type: r.Shift, Turnover: r.Turnover()})
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Date.Equal(out[j].Date) {
			return out[i].Date.Before(out[j].Date)
		}
		if out[i].Company != out[j].Company {
			return out[i].Company < out[j].Company
		}
		return out[i].Type < out[j].Type
	})
	return out
}

type weekKey struct {
	company generic.CompanyCode
	week    string
}

// companyWeeks sums turnover per (company, ISO week) across all operators.
type companyWeeks map[weekKey]decimal.Decimal

func weeklyCompanyTotals(snap generic.Snapshot) companyWeeks {
	totals := make(companyWeeks)
	for _, r := range snap.Records() {
		k := weekKey{company: r.Company, week: generic.WeekStart(r.Date).String()}
		totals[k] = totals[k].Add(r.Turnover())
	}
	return totals
}

func (cw companyWeeks) total(company generic.CompanyCode, day generic.TimePoint) decimal.Decimal {
	return cw[weekKey{company: company, week: generic.WeekStart(day).String()}]
}
