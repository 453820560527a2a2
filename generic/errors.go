/*
errors.go - Centralized error types for the planning engine

PURPOSE:
  All error types in one place for consistency and discoverability.
  Computation code never returns errors for missing data or arithmetic
  degeneracies; those resolve to documented fallbacks. What remains here is
  input validation, store failures and identity conflicts.

ERROR CATEGORIES:
  1. Identity errors - two rows or rules claiming the same key
  2. Validation errors - malformed keys, periods, amounts
  3. Lookup errors - unknown operators, roles, plan rows

USAGE:
    if errors.Is(err, generic.ErrIdentityConflict) {
        // surface 409 to the caller, nothing was written
    }
*/
package generic

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrIdentityConflict is returned when two plan rows or two salary rules
	// share an identity key. The write is aborted.
	ErrIdentityConflict = errors.New("identity conflict")

	// ErrRowLocked is returned when a generated row would overwrite a row that
	// is locked in the store.
	ErrRowLocked = errors.New("plan row is locked")

	// ErrInvalidPlanKey is returned when a key does not match its entity type.
	ErrInvalidPlanKey = errors.New("invalid plan key")

	// ErrInvalidPeriod is returned when a period or date is malformed.
	ErrInvalidPeriod = errors.New("invalid period")

	// ErrInvalidAmount is returned when an inbound amount is not a finite
	// positive number at a validation boundary.
	ErrInvalidAmount = errors.New("invalid amount")

	ErrInvalidShiftType = errors.New("invalid shift type")

	ErrInvalidAdjustmentKind = errors.New("invalid adjustment kind")

	ErrInvalidDebtStatus = errors.New("invalid debt status")

	ErrOperatorNotFound = errors.New("operator not found")

	ErrRoleNotFound = errors.New("role not found")

	ErrPlanRowNotFound = errors.New("plan row not found")

	ErrDebtNotFound = errors.New("weekly debt not found")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// PlanConflictError reports a duplicate plan key.
type PlanConflictError struct {
	Key    PlanKey
	Reason string
}

func (e *PlanConflictError) Error() string {
	return fmt.Sprintf("plan row conflict on %s: %s", e.Key, e.Reason)
}

func (e *PlanConflictError) Unwrap() error { return ErrIdentityConflict }

// RuleConflictError reports a second active salary rule for the same
// (company, shift type).
type RuleConflictError struct {
	Key        RuleKey
	ExistingID RecordID
}

func (e *RuleConflictError) Error() string {
	return fmt.Sprintf("salary rule conflict on %s (existing: %s)", e.Key, e.ExistingID)
}

func (e *RuleConflictError) Unwrap() error { return ErrIdentityConflict }

// LockedRowError names the locked row a write bounced off.
type LockedRowError struct {
	Key PlanKey
}

func (e *LockedRowError) Error() string { return fmt.Sprintf("plan row %s is locked", e.Key) }

func (e *LockedRowError) Unwrap() error { return ErrRowLocked }

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsConflict returns true for identity conflicts and locked-row bounces.
func IsConflict(err error) bool {
	return errors.Is(err, ErrIdentityConflict) || errors.Is(err, ErrRowLocked)
}

// IsClientError returns true if the error is due to invalid client input.
func IsClientError(err error) bool {
	return errors.Is(err, ErrInvalidPlanKey) ||
		errors.Is(err, ErrInvalidPeriod) ||
		errors.Is(err, ErrInvalidAmount) ||
		errors.Is(err, ErrInvalidShiftType) ||
		errors.Is(err, ErrInvalidAdjustmentKind) ||
		errors.Is(err, ErrInvalidDebtStatus)
}

// IsNotFound returns true if the error indicates a missing resource.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrOperatorNotFound) ||
		errors.Is(err, ErrRoleNotFound) ||
		errors.Is(err, ErrPlanRowNotFound) ||
		errors.Is(err, ErrDebtNotFound)
}
