/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the domain model (generic, plan, payroll) from the external API contract.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients
  - *Response: Complex response wrappers

MONEY:
  Amounts are shopspring/decimal values. They are written as JSON strings
  ("82727", "150.5") and accepted either as strings or numbers.

TYPES:
  Plans:     PlanRowDTO, PlanResponse, EditRowRequest, RowKeyRequest
  Payroll:   BreakdownDTO, ShiftPayDTO, OperatorPayDTO, RolePayDTO
  Inputs:    CreateOperatorRequest, CreateRevenueRequest,
             CreateAdjustmentRequest, CreateDebtRequest,
             DebtStatusRequest
  Errors:    ErrorResponse

VALIDATION:
  Validation is done in handlers, not in DTOs. DTOs are pure data carriers.

SEE ALSO:
  - handlers.go: Uses these types
  - factory/rules.go: RuleSetJSON, the salary rule document
*/
package api

import (
	"github.com/shopspring/decimal"
	"github.com/warp/payplan/generic"
	"github.com/warp/payplan/payroll"
	"github.com/warp/payplan/plan"
)

// =============================================================================
// PLAN TYPES
// =============================================================================

// PlanRowDTO represents one plan row in API responses.
type PlanRowDTO struct {
	Month         string            `json:"month"`
	Entity        string            `json:"entity"`
	Company       string            `json:"company,omitempty"`
	Operator      string            `json:"operator,omitempty"`
	Role          string            `json:"role,omitempty"`
	MonthTurnover decimal.Decimal   `json:"month_turnover"`
	WeekTurnover  decimal.Decimal   `json:"week_turnover"`
	MonthShifts   decimal.Decimal   `json:"month_shifts"`
	WeekShifts    decimal.Decimal   `json:"week_shifts"`
	Metadata      map[string]string `json:"metadata,omitempty"`
	Locked        bool              `json:"locked"`
}

// PlanResponse is a month's plan. The counters are only set by generation.
type PlanResponse struct {
	Month     string       `json:"month"`
	Rows      []PlanRowDTO `json:"rows"`
	Written   *int         `json:"written,omitempty"`
	Preserved *int         `json:"preserved,omitempty"`
	Pruned    *int         `json:"pruned,omitempty"`
}

// RowKeyRequest names a plan row inside the month of the URL.
type RowKeyRequest struct {
	Entity   string `json:"entity"`
	Company  string `json:"company,omitempty"`
	Operator string `json:"operator,omitempty"`
	Role     string `json:"role,omitempty"`
}

// EditRowRequest is a manual edit. The edited row is locked.
type EditRowRequest struct {
	RowKeyRequest
	MonthTurnover decimal.Decimal   `json:"month_turnover"`
	WeekTurnover  decimal.Decimal   `json:"week_turnover"`
	MonthShifts   decimal.Decimal   `json:"month_shifts"`
	WeekShifts    decimal.Decimal   `json:"week_shifts"`
	Metadata      map[string]string `json:"metadata,omitempty"`
}

func (k RowKeyRequest) planKey(month generic.TimePoint) generic.PlanKey {
	return generic.PlanKey{
		Month:    month,
		Entity:   generic.EntityType(k.Entity),
		Company:  generic.CompanyCode(k.Company),
		Operator: generic.OperatorID(k.Operator),
		Role:     generic.RoleCode(k.Role),
	}
}

func toPlanRowDTO(e plan.Entry) PlanRowDTO {
	r := e.Row()
	return PlanRowDTO{
		Month:         r.Key.Month.MonthString(),
		Entity:        string(r.Key.Entity),
		Company:       string(r.Key.Company),
		Operator:      string(r.Key.Operator),
		Role:          string(r.Key.Role),
		MonthTurnover: r.Targets.MonthTurnover,
		WeekTurnover:  r.Targets.WeekTurnover,
		MonthShifts:   r.Targets.MonthShifts,
		WeekShifts:    r.Targets.WeekShifts,
		Metadata:      r.Metadata,
		Locked:        e.IsLocked(),
	}
}

func toPlanResponse(month generic.TimePoint, entries []plan.Entry) PlanResponse {
	rows := make([]PlanRowDTO, len(entries))
	for i, e := range entries {
		rows[i] = toPlanRowDTO(e)
	}
	return PlanResponse{Month: month.MonthString(), Rows: rows}
}

// =============================================================================
// PAYROLL TYPES
// =============================================================================

type ShiftPayDTO struct {
	Date     string          `json:"date"`
	Company  string          `json:"company"`
	Shift    string          `json:"shift"`
	Turnover decimal.Decimal `json:"turnover"`
	Base     decimal.Decimal `json:"base"`
	Tier     decimal.Decimal `json:"tier_bonus"`
	Group    decimal.Decimal `json:"group_bonus"`
	Total    decimal.Decimal `json:"total"`
	RuleID   string          `json:"rule_id,omitempty"`
	Fallback bool            `json:"fallback"`
}

// BreakdownDTO keeps manual debits and automatic debts apart, as the
// calculator does.
type BreakdownDTO struct {
	From           string          `json:"from"`
	To             string          `json:"to"`
	PeriodTurnover decimal.Decimal `json:"period_turnover"`
	BasePay        decimal.Decimal `json:"base_pay"`
	TierBonus      decimal.Decimal `json:"tier_bonus"`
	GroupBonus     decimal.Decimal `json:"group_bonus"`
	KPIBonus       decimal.Decimal `json:"kpi_bonus"`
	KPITarget      decimal.Decimal `json:"kpi_target"`
	GrossPay       decimal.Decimal `json:"gross_pay"`
	ManualPlus     decimal.Decimal `json:"manual_plus"`
	ManualMinus    decimal.Decimal `json:"manual_minus"`
	AutoDebts      decimal.Decimal `json:"auto_debts"`
	Advances       decimal.Decimal `json:"advances"`
	Payable        decimal.Decimal `json:"payable"`
	NetPenalty     decimal.Decimal `json:"net_penalty"`
	Skipped        int             `json:"skipped_entries"`
	Shifts         []ShiftPayDTO   `json:"shifts"`
}

type OperatorPayDTO struct {
	Operator string        `json:"operator"`
	Name     string        `json:"name,omitempty"`
	Month    BreakdownDTO  `json:"month"`
	Week     *BreakdownDTO `json:"week,omitempty"`
}

type RolePayDTO struct {
	Role           string          `json:"role"`
	Month          string          `json:"month"`
	FixedSalary    decimal.Decimal `json:"fixed_salary"`
	GlobalTurnover decimal.Decimal `json:"global_turnover"`
	Target         decimal.Decimal `json:"target"`
	KPIBonus       decimal.Decimal `json:"kpi_bonus"`
	Payable        decimal.Decimal `json:"payable"`
}

func toBreakdownDTO(b payroll.Breakdown) BreakdownDTO {
	shifts := make([]ShiftPayDTO, len(b.Shifts))
	for i, s := range b.Shifts {
		shifts[i] = ShiftPayDTO{
			Date:     s.Date.String(),
			Company:  string(s.Company),
			Shift:    string(s.Type),
			Turnover: s.Turnover,
			Base:     s.Rate.Base,
			Tier:     s.Rate.Tier,
			Group:    s.Rate.Group,
			Total:    s.Rate.Total(),
			RuleID:   string(s.RuleID),
			Fallback: s.Fallback,
		}
	}
	return BreakdownDTO{
		From:           b.Window.Start.String(),
		To:             b.Window.End.String(),
		PeriodTurnover: b.PeriodTurnover,
		BasePay:        b.BasePay,
		TierBonus:      b.TierBonus,
		GroupBonus:     b.GroupBonus,
		KPIBonus:       b.KPIBonus,
		KPITarget:      b.KPITarget,
		GrossPay:       b.GrossPay(),
		ManualPlus:     b.ManualPlus,
		ManualMinus:    b.ManualMinus,
		AutoDebts:      b.AutoDebts,
		Advances:       b.Advances,
		Payable:        b.Payable,
		NetPenalty:     b.NetPenalty,
		Skipped:        b.Skipped,
		Shifts:         shifts,
	}
}

func toOperatorPayDTO(r *payroll.OperatorReport) OperatorPayDTO {
	dto := OperatorPayDTO{
		Operator: string(r.Operator.ID),
		Name:     r.Operator.Name,
		Month:    toBreakdownDTO(r.Month),
	}
	if r.Week != nil {
		w := toBreakdownDTO(*r.Week)
		dto.Week = &w
	}
	return dto
}

func toRolePayDTO(rb *payroll.RoleBreakdown) RolePayDTO {
	return RolePayDTO{
		Role:           string(rb.Role),
		Month:          rb.Window.Start.MonthString(),
		FixedSalary:    rb.FixedSalary,
		GlobalTurnover: rb.GlobalTurnover,
		Target:         rb.Target,
		KPIBonus:       rb.KPIBonus,
		Payable:        rb.Payable,
	}
}

// =============================================================================
// INPUT TYPES
// =============================================================================

type CreateOperatorRequest struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Active *bool  `json:"active,omitempty"`
}

type OperatorDTO struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Active bool   `json:"active"`
}

type CreateRevenueRequest struct {
	ID       string          `json:"id,omitempty"`
	Date     string          `json:"date"`
	Company  string          `json:"company"`
	Operator string          `json:"operator,omitempty"`
	Shift    string          `json:"shift"`
	Cash     decimal.Decimal `json:"cash"`
	Wallet   decimal.Decimal `json:"wallet"`
	Card     decimal.Decimal `json:"card"`
	Online   decimal.Decimal `json:"online"`
}

type CreateAdjustmentRequest struct {
	Operator string          `json:"operator"`
	Date     string          `json:"date"`
	Amount   decimal.Decimal `json:"amount"`
	Kind     string          `json:"kind"`
	Note     string          `json:"note,omitempty"`
}

type CreateDebtRequest struct {
	Operator  string          `json:"operator"`
	WeekStart string          `json:"week_start"`
	Amount    decimal.Decimal `json:"amount"`
}

// DebtStatusRequest moves a weekly debt to active, settled or cancelled.
type DebtStatusRequest struct {
	Status string `json:"status"`
}

// CreatedResponse echoes the id of a stored record.
type CreatedResponse struct {
	ID string `json:"id"`
}

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}
