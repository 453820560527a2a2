/*
Package factory converts JSON rule-set documents into salary rules.

PURPOSE:
  Salary rules and role salaries change more often than code. A rule-set
  document is stored or uploaded as JSON, parsed here, validated, and turned
  into generic.SalaryRule and generic.RoleSalary values.

JSON SCHEMA:
  {
    "rules": [
      {
        "id": "a-day",
        "company": "A",
        "shift": "day",
        "base_per_shift": 1000,
        "tiers": [
          {"threshold": 10000, "bonus": 500},
          {"threshold": 20000, "bonus": 700}
        ],
        "active": true
      }
    ],
    "roles": [
      {"role": "supervisor", "fixed_salary": 50000}
    ]
  }

VALIDATION:
  - company is required, shift must be "day" or "night"
  - at most two tiers; amounts are non-negative; a tier paying a bonus needs
    a positive threshold
  - one active rule per (company, shift), one salary per role
  - missing ids are generated, "active" defaults to true

USAGE:
  f := factory.NewRuleFactory()
  doc, err := f.ParseRuleSet(data)
  rules, err := payroll.NewRuleSet(doc.Rules)

SEE ALSO:
  - payroll/rules.go: RuleSet lookup with default-base fallback
*/
package factory

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/warp/payplan/generic"
	"github.com/warp/payplan/payroll"
)

// MaxTiers is the number of bonus tiers a salary rule carries.
const MaxTiers = 2

// =============================================================================
// JSON SCHEMA TYPES
// =============================================================================

type RuleSetJSON struct {
	Rules []RuleJSON `json:"rules"`
	Roles []RoleJSON `json:"roles,omitempty"`
}

type RuleJSON struct {
	ID           string          `json:"id,omitempty"`
	Company      string          `json:"company"`
	Shift        string          `json:"shift"`
	BasePerShift decimal.Decimal `json:"base_per_shift"`
	Tiers        []TierJSON      `json:"tiers,omitempty"`
	Active       *bool           `json:"active,omitempty"`
}

type TierJSON struct {
	Threshold decimal.Decimal `json:"threshold"`
	Bonus     decimal.Decimal `json:"bonus"`
}

type RoleJSON struct {
	Role        string          `json:"role"`
	FixedSalary decimal.Decimal `json:"fixed_salary"`
}

// Document is a parsed and validated rule set.
type Document struct {
	Rules []generic.SalaryRule
	Roles []generic.RoleSalary
}

// =============================================================================
// RULE FACTORY
// =============================================================================

type RuleFactory struct {
	// NewID names rules that arrive without an id.
	NewID func() string
}

func NewRuleFactory() *RuleFactory {
	return &RuleFactory{NewID: uuid.NewString}
}

// ParseRuleSet parses and validates a JSON rule-set document.
func (f *RuleFactory) ParseRuleSet(data []byte) (*Document, error) {
	var rj RuleSetJSON
	if err := json.Unmarshal(data, &rj); err != nil {
		return nil, fmt.Errorf("failed to parse rule set JSON: %w", err)
	}
	return f.FromJSON(rj)
}

// FromJSON validates rj and converts it.
func (f *RuleFactory) FromJSON(rj RuleSetJSON) (*Document, error) {
	doc := &Document{}
	for i, r := range rj.Rules {
		rule, err := f.parseRule(r)
		if err != nil {
			return nil, fmt.Errorf("rule %d: %w", i, err)
		}
		doc.Rules = append(doc.Rules, rule)
	}
	// Index once to surface duplicate active keys before anything is stored.
	if _, err := payroll.NewRuleSet(doc.Rules); err != nil {
		return nil, err
	}

	seen := make(map[generic.RoleCode]bool)
	for i, r := range rj.Roles {
		if r.Role == "" {
			return nil, fmt.Errorf("role %d: %w: role is required", i, generic.ErrInvalidAmount)
		}
		if r.FixedSalary.IsNegative() {
			return nil, fmt.Errorf("role %s: %w: fixed_salary must not be negative", r.Role, generic.ErrInvalidAmount)
		}
		role := generic.RoleCode(r.Role)
		if seen[role] {
			return nil, fmt.Errorf("%w: role %s defined twice", generic.ErrIdentityConflict, role)
		}
		seen[role] = true
		doc.Roles = append(doc.Roles, generic.RoleSalary{Role: role, FixedSalary: r.FixedSalary})
	}
	return doc, nil
}

func (f *RuleFactory) parseRule(r RuleJSON) (generic.SalaryRule, error) {
	if r.Company == "" {
		return generic.SalaryRule{}, fmt.Errorf("%w: company is required", generic.ErrInvalidPlanKey)
	}
	shift, err := generic.ParseShiftType(r.Shift)
	if err != nil {
		return generic.SalaryRule{}, err
	}
	if r.BasePerShift.IsNegative() {
		return generic.SalaryRule{}, fmt.Errorf("%w: base_per_shift must not be negative", generic.ErrInvalidAmount)
	}
	if len(r.Tiers) > MaxTiers {
		return generic.SalaryRule{}, fmt.Errorf("%w: at most %d tiers, got %d", generic.ErrInvalidAmount, MaxTiers, len(r.Tiers))
	}

	tiers := make([]TierJSON, MaxTiers)
	for i := range tiers {
		tiers[i] = TierJSON{Threshold: decimal.Zero, Bonus: decimal.Zero}
	}
	for i, t := range r.Tiers {
		if t.Threshold.IsNegative() || t.Bonus.IsNegative() {
			return generic.SalaryRule{}, fmt.Errorf("%w: tier %d has a negative amount", generic.ErrInvalidAmount, i+1)
		}
		if t.Bonus.IsPositive() && !t.Threshold.IsPositive() {
			return generic.SalaryRule{}, fmt.Errorf("%w: tier %d pays a bonus without a threshold", generic.ErrInvalidAmount, i+1)
		}
		tiers[i] = t
	}

	id := r.ID
	if id == "" {
		id = f.NewID()
	}
	active := true
	if r.Active != nil {
		active = *r.Active
	}
	return generic.SalaryRule{
		ID:           generic.RecordID(id),
		Company:      generic.CompanyCode(r.Company),
		Shift:        shift,
		BasePerShift: r.BasePerShift,
		Threshold1:   tiers[0].Threshold,
		Bonus1:       tiers[0].Bonus,
		Threshold2:   tiers[1].Threshold,
		Bonus2:       tiers[1].Bonus,
		Active:       active,
	}, nil
}

// ToJSON converts rules and role salaries back into a document. Disabled
// tiers are omitted.
func (f *RuleFactory) ToJSON(rules []generic.SalaryRule, roles []generic.RoleSalary) RuleSetJSON {
	out := RuleSetJSON{Rules: make([]RuleJSON, 0, len(rules))}
	for _, r := range rules {
		active := r.Active
		rj := RuleJSON{
			ID:           string(r.ID),
			Company:      string(r.Company),
			Shift:        string(r.Shift),
			BasePerShift: r.BasePerShift,
			Active:       &active,
		}
		for _, t := range []TierJSON{{r.Threshold1, r.Bonus1}, {r.Threshold2, r.Bonus2}} {
			if t.Threshold.IsPositive() {
				rj.Tiers = append(rj.Tiers, t)
			}
		}
		out.Rules = append(out.Rules, rj)
	}
	for _, r := range roles {
		out.Roles = append(out.Roles, RoleJSON{Role: string(r.Role), FixedSalary: r.FixedSalary})
	}
	return out
}

// =============================================================================
// PRESETS
// =============================================================================

// StarterRuleSetJSON is a two-shift rule set for one company, used to seed a
// fresh database.
func StarterRuleSetJSON(company string, base, threshold1, bonus1, threshold2, bonus2 int64) string {
	return fmt.Sprintf(`{
  "rules": [
    {"id": "%[1]s-day", "company": "%[1]s", "shift": "day", "base_per_shift": %[2]d,
     "tiers": [{"threshold": %[3]d, "bonus": %[4]d}, {"threshold": %[5]d, "bonus": %[6]d}]},
    {"id": "%[1]s-night", "company": "%[1]s", "shift": "night", "base_per_shift": %[2]d,
     "tiers": [{"threshold": %[3]d, "bonus": %[4]d}, {"threshold": %[5]d, "bonus": %[6]d}]}
  ]
}`, company, base, threshold1, bonus1, threshold2, bonus2)
}
