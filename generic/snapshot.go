package generic

import (
	"sort"

	"github.com/shopspring/decimal"
)

// =============================================================================
// SNAPSHOT - Revenue fetched once per computation
// =============================================================================

// Snapshot is the read-only revenue view one computation works on.
// Records with a non-positive turnover are dropped on construction, so no
// aggregate downstream ever sees them.
type Snapshot struct {
	records []RevenueRecord
}

// NewSnapshot copies the counting records, ordered by date then company,
// operator, shift and id so iteration is deterministic.
func NewSnapshot(records []RevenueRecord) Snapshot {
	kept := make([]RevenueRecord, 0, len(records))
	for _, r := range records {
		if r.Counts() {
			kept = append(kept, r)
		}
	}
	sort.SliceStable(kept, func(i, j int) bool {
		a, b := kept[i], kept[j]
		if !a.Date.Equal(b.Date) {
			return a.Date.Before(b.Date)
		}
		if a.Company != b.Company {
			return a.Company < b.Company
		}
		if a.Operator != b.Operator {
			return a.Operator < b.Operator
		}
		if a.Shift != b.Shift {
			return a.Shift < b.Shift
		}
		return a.ID < b.ID
	})
	return Snapshot{records: kept}
}

func (s Snapshot) Records() []RevenueRecord {
	out := make([]RevenueRecord, len(s.records))
	copy(out, s.records)
	return out
}

func (s Snapshot) Len() int { return len(s.records) }

func (s Snapshot) filter(keep func(RevenueRecord) bool) Snapshot {
	var out []RevenueRecord
	for _, r := range s.records {
		if keep(r) {
			out = append(out, r)
		}
	}
	return Snapshot{records: out}
}

func (s Snapshot) InPeriod(p Period) Snapshot {
	return s.filter(func(r RevenueRecord) bool { return p.Contains(r.Date) })
}

func (s Snapshot) ForCompany(c CompanyCode) Snapshot {
	return s.filter(func(r RevenueRecord) bool { return r.Company == c })
}

func (s Snapshot) ForOperator(op OperatorID) Snapshot {
	return s.filter(func(r RevenueRecord) bool { return r.Operator == op })
}

// Companies returns the distinct company codes, sorted.
func (s Snapshot) Companies() []CompanyCode {
	seen := make(map[CompanyCode]bool)
	var out []CompanyCode
	for _, r := range s.records {
		if !seen[r.Company] {
			seen[r.Company] = true
			out = append(out, r.Company)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func (s Snapshot) Turnover() decimal.Decimal {
	total := decimal.Zero
	for _, r := range s.records {
		total = total.Add(r.Turnover())
	}
	return total
}

// ShiftCount counts distinct (operator, date, shift type) units.
func (s Snapshot) ShiftCount() int {
	type unit struct {
		op    OperatorID
		date  string
		shift ShiftType
	}
	seen := make(map[unit]bool)
	for _, r := range s.records {
		seen[unit{op: r.Operator, date: r.Date.String(), shift: r.Shift}] = true
	}
	return len(seen)
}
