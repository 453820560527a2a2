package plan

import (
	"sort"

	"github.com/shopspring/decimal"
	"github.com/warp/payplan/forecast"
	"github.com/warp/payplan/generic"
)

// Metadata keys written on generated rows.
const (
	MetaBasisTwoAgo      = "basis_two_ago"
	MetaBasisOneAgo      = "basis_one_ago"
	MetaEstimatedOneAgo  = "estimated_one_ago"
	MetaShiftsTwoAgo     = "shifts_two_ago"
	MetaShiftsOneAgo     = "shifts_one_ago"
	MetaPartial          = "partial"
	MetaTrendPct         = "trend_pct"
	MetaSharePct         = "share_pct"
	MetaWeightedBasis    = "weighted_basis"
	MetaOperatorName     = "operator_name"
	MetaCollectiveSource = "companies"
)

// =============================================================================
// CONFIG
// =============================================================================

type Config struct {
	// WeeksPerMonth converts month targets into weekly ones.
	WeeksPerMonth decimal.Decimal

	// MinOperatorContribution is the weighted turnover below which an
	// operator gets no row.
	MinOperatorContribution decimal.Decimal

	// Roles get one global row each.
	Roles []generic.RoleCode

	// Companies always get a collective row, even without history.
	Companies []generic.CompanyCode
}

func DefaultConfig() Config {
	return Config{
		WeeksPerMonth:           decimal.RequireFromString("4.345"),
		MinOperatorContribution: decimal.NewFromInt(1000),
		Roles:                   []generic.RoleCode{"supervisor", "marketing"},
	}
}

// =============================================================================
// ALLOCATOR
// =============================================================================

// Allocator turns a revenue snapshot into plan rows. It holds no mutable
// state, so one instance may serve concurrent calls.
type Allocator struct {
	Forecaster *forecast.Forecaster
	Config     Config
}

func NewAllocator(f *forecast.Forecaster, cfg Config) *Allocator {
	if cfg.WeeksPerMonth.IsZero() {
		cfg.WeeksPerMonth = DefaultConfig().WeeksPerMonth
	}
	return &Allocator{Forecaster: f, Config: cfg}
}

type contribution struct {
	operator generic.OperatorID
	twoAgo   decimal.Decimal
	oneAgo   decimal.Decimal
	weighted decimal.Decimal
}

// Generate computes the fresh rows for the month starting at monthStart.
// Order: per company its collective row then operator rows by id, companies
// by code, then role rows by code.
func (a *Allocator) Generate(monthStart generic.TimePoint, snap generic.Snapshot) []Row {
	month := generic.MonthStart(monthStart)
	oneAgo := generic.MonthPeriod(month.AddMonths(-1))
	twoAgo := generic.MonthPeriod(month.AddMonths(-2))
	factor := a.Forecaster.PartialFactor(month)

	var rows []Row
	collectiveTotal := decimal.Zero

	companies := a.companies(snap)
	for _, company := range companies {
		cs := snap.ForCompany(company)
		prev2 := cs.InPeriod(twoAgo)
		prev1 := cs.InPeriod(oneAgo)

		turnover := a.Forecaster.Forecast(month, prev2.Turnover(), prev1.Turnover())
		shifts := a.Forecaster.Forecast(month,
			decimal.NewFromInt(int64(prev2.ShiftCount())),
			decimal.NewFromInt(int64(prev1.ShiftCount())))

		collective := Row{
			Key:     generic.PlanKey{Month: month, Entity: generic.EntityCollective, Company: company},
			Targets: a.targets(turnover.Forecast, shifts.Forecast),
			Metadata: map[string]string{
				MetaBasisTwoAgo:     prev2.Turnover().String(),
				MetaBasisOneAgo:     prev1.Turnover().String(),
				MetaEstimatedOneAgo: turnover.EstimatedPrior.String(),
				MetaShiftsTwoAgo:    decimal.NewFromInt(int64(prev2.ShiftCount())).String(),
				MetaShiftsOneAgo:    decimal.NewFromInt(int64(prev1.ShiftCount())).String(),
				MetaPartial:         boolString(turnover.IsPartial),
				MetaTrendPct:        turnover.TrendPercent.String(),
			},
		}
		rows = append(rows, collective)
		collectiveTotal = collectiveTotal.Add(collective.Targets.MonthTurnover)

		if prev2.ShiftCount()+prev1.ShiftCount() == 0 {
			continue
		}
		rows = append(rows, a.distribute(month, company, prev2, prev1, factor, turnover.Forecast, shifts.Forecast)...)
	}

	roles := append([]generic.RoleCode(nil), a.Config.Roles...)
	sort.Slice(roles, func(i, j int) bool { return roles[i] < roles[j] })
	for _, role := range roles {
		rows = append(rows, Row{
			Key:     generic.PlanKey{Month: month, Entity: generic.EntityRole, Role: role},
			Targets: a.targets(collectiveTotal, decimal.Zero),
			Metadata: map[string]string{
				MetaCollectiveSource: decimal.NewFromInt(int64(len(companies))).String(),
			},
		})
	}
	return rows
}

// distribute splits the company targets across operators by weighted share.
func (a *Allocator) distribute(
	month generic.TimePoint,
	company generic.CompanyCode,
	prev2, prev1 generic.Snapshot,
	factor, turnoverTarget, shiftTarget decimal.Decimal,
) []Row {
	byOp := make(map[generic.OperatorID]*contribution)
	get := func(op generic.OperatorID) *contribution {
		c, ok := byOp[op]
		if !ok {
			c = &contribution{operator: op, twoAgo: decimal.Zero, oneAgo: decimal.Zero}
			byOp[op] = c
		}
		return c
	}
	for _, r := range prev2.Records() {
		if r.Operator != "" {
			c := get(r.Operator)
			c.twoAgo = c.twoAgo.Add(r.Turnover())
		}
	}
	for _, r := range prev1.Records() {
		if r.Operator != "" {
			c := get(r.Operator)
			c.oneAgo = c.oneAgo.Add(r.Turnover())
		}
	}

	total := decimal.Zero
	contribs := make([]*contribution, 0, len(byOp))
	for _, c := range byOp {
		c.weighted = c.twoAgo.Add(c.oneAgo.Mul(factor))
		total = total.Add(c.weighted)
		contribs = append(contribs, c)
	}
	if !total.IsPositive() {
		return nil
	}
	sort.Slice(contribs, func(i, j int) bool { return contribs[i].operator < contribs[j].operator })

	var rows []Row
	for _, c := range contribs {
		if c.weighted.LessThan(a.Config.MinOperatorContribution) {
			continue
		}
		share := c.weighted.Div(total)
		rows = append(rows, Row{
			Key: generic.PlanKey{
				Month:    month,
				Entity:   generic.EntityOperator,
				Company:  company,
				Operator: c.operator,
			},
			Targets: a.targets(
				generic.RoundUnits(turnoverTarget.Mul(share)),
				generic.RoundUnits(shiftTarget.Mul(share)),
			),
			Metadata: map[string]string{
				MetaSharePct:      share.Mul(decimal.NewFromInt(100)).Round(2).String(),
				MetaBasisTwoAgo:   c.twoAgo.String(),
				MetaBasisOneAgo:   c.oneAgo.String(),
				MetaWeightedBasis: c.weighted.Round(2).String(),
			},
		})
	}
	return rows
}

func (a *Allocator) targets(monthTurnover, monthShifts decimal.Decimal) generic.Targets {
	return generic.Targets{
		MonthTurnover: monthTurnover,
		WeekTurnover:  generic.RoundUnits(monthTurnover.Div(a.Config.WeeksPerMonth)),
		MonthShifts:   monthShifts,
		WeekShifts:    generic.RoundUnits(monthShifts.Div(a.Config.WeeksPerMonth)),
	}
}

// companies is the sorted union of configured companies and those in snap.
func (a *Allocator) companies(snap generic.Snapshot) []generic.CompanyCode {
	seen := make(map[generic.CompanyCode]bool)
	var out []generic.CompanyCode
	for _, c := range append(append([]generic.CompanyCode(nil), a.Config.Companies...), snap.Companies()...) {
		if c != "" && !seen[c] {
			seen[c] = true
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Annotate adds display names to operator rows. Names never affect targets.
func Annotate(rows []Row, names map[generic.OperatorID]string) {
	for i := range rows {
		if rows[i].Key.Entity != generic.EntityOperator {
			continue
		}
		if name, ok := names[rows[i].Key.Operator]; ok && name != "" {
			if rows[i].Metadata == nil {
				rows[i].Metadata = make(map[string]string)
			}
			rows[i].Metadata[MetaOperatorName] = name
		}
	}
}

func boolString(b bool) string {
	if b {
		return "true"
	}
	return "false"
}
