/*
store.go - Persistence interfaces consumed and produced by the engine

PURPOSE:
  Defines the boundary between the computations and the record stores.
  Revenue, rules, ledgers and the operator directory are read-only inputs;
  the plan store is the only output the engine writes.

KEY INTERFACES:
  RevenueSource:     date-range revenue records, optionally per company/operator
  RuleSource:        active salary rules
  AdjustmentSource:  manual ledger entries for one operator and window
  DebtSource:        active weekly debts for one operator and window
  OperatorDirectory: id -> display name, presentation only
  RoleSource:        fixed salaries of management roles
  PlanStore:         load and upsert plan rows by identity key

LOCK CONTRACT:
  SaveRecord must check the stored row's locked flag as part of the write
  itself, not earlier in the batch. An unlocked record colliding with a
  locked stored row returns *LockedRowError and writes nothing. A locked
  record (manual edit) always writes.

IMPLEMENTATIONS:
  - store/sqlite/sqlite.go: SQLite via database/sql
  - generic/store/memory.go: In-memory for testing
*/
package generic

import "context"

// =============================================================================
// INPUT SOURCES (read-only)
// =============================================================================

// RevenueFilter narrows a revenue query. Empty Company/Operator match all.
type RevenueFilter struct {
	Period   Period
	Company  CompanyCode
	Operator OperatorID
}

type RevenueSource interface {
	RevenueInRange(ctx context.Context, filter RevenueFilter) ([]RevenueRecord, error)
}

type RuleSource interface {
	// ActiveRules returns every active salary rule.
	ActiveRules(ctx context.Context) ([]SalaryRule, error)
}

type AdjustmentSource interface {
	// Adjustments returns the operator's ledger entries dated inside period.
	Adjustments(ctx context.Context, operator OperatorID, period Period) ([]Adjustment, error)
}

type DebtSource interface {
	// ActiveDebts returns active weekly debts whose week starts inside period.
	ActiveDebts(ctx context.Context, operator OperatorID, period Period) ([]WeeklyDebt, error)
}

type OperatorDirectory interface {
	Operators(ctx context.Context) ([]Operator, error)
}

type RoleSource interface {
	RoleSalaries(ctx context.Context) ([]RoleSalary, error)
}

// =============================================================================
// PLAN STORE (output)
// =============================================================================

type PlanStore interface {
	// LoadPlan returns every stored row for the month.
	LoadPlan(ctx context.Context, month TimePoint) ([]PlanRecord, error)

	// SaveRecord upserts by identity key, honoring the lock contract above.
	SaveRecord(ctx context.Context, rec PlanRecord) error

	// Unlock clears the locked flag of a stored row, leaving its values.
	// Returns ErrPlanRowNotFound when no row has the key.
	Unlock(ctx context.Context, key PlanKey) error

	// PruneGenerated deletes the month's unlocked rows whose keys are not in
	// keep. Locked rows are never deleted. Returns the number removed.
	PruneGenerated(ctx context.Context, month TimePoint, keep []PlanKey) (int, error)
}

// =============================================================================
// LEDGER WRITERS - Append-only
// =============================================================================

// AdjustmentLedger is append-only. Corrections are new entries.
type AdjustmentLedger interface {
	AdjustmentSource
	AppendAdjustment(ctx context.Context, adj Adjustment) error
}

// DebtLedger records weekly debts.
type DebtLedger interface {
	DebtSource
	AppendDebt(ctx context.Context, debt WeeklyDebt) error
}
