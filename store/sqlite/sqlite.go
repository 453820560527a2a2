/*
Package sqlite provides a SQLite-backed implementation of the storage interfaces.

PURPOSE:
  Implements every source the engine reads and the plan store it writes,
  using database/sql and mattn/go-sqlite3.

INTERFACES IMPLEMENTED:
  generic.RevenueSource, generic.RuleSource, generic.AdjustmentLedger,
  generic.DebtLedger, generic.OperatorDirectory, generic.RoleSource,
  generic.PlanStore

KEY TABLES:
  revenue_records: Immutable shift revenue by channel
  operators:       Operator directory
  salary_rules:    Per (company, shift) pay rules; one active per key
  role_salaries:   Fixed monthly salary per management role
  adjustments:     Append-only manual ledger (bonus, fine, debt, advance)
  weekly_debts:    Automatic deductions keyed by week start
  plan_rows:       Plan targets keyed by (month, entity, company, operator, role)

LOCKED ROWS:
  A generated plan row is written with

    INSERT ... ON CONFLICT(...) DO UPDATE SET ... WHERE plan_rows.locked = 0

  so the locked check happens inside the write statement itself. When the
  stored row is locked the statement changes nothing and SaveRecord returns
  *generic.LockedRowError. Manual edits use the same upsert without the
  WHERE clause.

STORAGE FORMATS:
  Dates are TEXT "2006-01-02", so range filters compare lexically. Money is
  TEXT holding the decimal string; nothing is stored as REAL. Empty key parts
  are '' rather than NULL so they take part in the primary key.

CONCURRENCY:
  Uses sync.RWMutex for thread-safety, on top of SQLite's single writer.

USAGE:
  store, err := sqlite.New("./data/payplan.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

SEE ALSO:
  - generic/store.go: Interface definitions
  - generic/store/memory.go: In-memory implementation for testing
*/
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"
	"github.com/warp/payplan/generic"
)

// Store implements all storage interfaces using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex

	// NewID names records stored without an id.
	NewID func() string
}

var (
	_ generic.RevenueSource     = (*Store)(nil)
	_ generic.RuleSource        = (*Store)(nil)
	_ generic.AdjustmentLedger  = (*Store)(nil)
	_ generic.DebtLedger        = (*Store)(nil)
	_ generic.OperatorDirectory = (*Store)(nil)
	_ generic.RoleSource        = (*Store)(nil)
	_ generic.PlanStore         = (*Store)(nil)
)

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// Every connection to ":memory:" is a separate database.
	if dbPath == ":memory:" {
		db.SetMaxOpenConns(1)
	}

	store := NewWithDB(db)
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// NewWithDB wraps an open handle without migrating it.
func NewWithDB(db *sql.DB) *Store {
	return &Store{db: db, NewID: uuid.NewString}
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS revenue_records (
		id TEXT PRIMARY KEY,
		date TEXT NOT NULL,
		company TEXT NOT NULL,
		operator TEXT NOT NULL DEFAULT '',
		shift TEXT NOT NULL,
		cash TEXT NOT NULL DEFAULT '0',
		wallet TEXT NOT NULL DEFAULT '0',
		card TEXT NOT NULL DEFAULT '0',
		online TEXT NOT NULL DEFAULT '0',
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_revenue_date
		ON revenue_records(date);
	CREATE INDEX IF NOT EXISTS idx_revenue_company_date
		ON revenue_records(company, date);
	CREATE INDEX IF NOT EXISTS idx_revenue_operator_date
		ON revenue_records(operator, date);

	CREATE TABLE IF NOT EXISTS operators (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		active INTEGER NOT NULL DEFAULT 1,
		created_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS salary_rules (
		id TEXT PRIMARY KEY,
		company TEXT NOT NULL,
		shift TEXT NOT NULL,
		base_per_shift TEXT NOT NULL,
		threshold1 TEXT NOT NULL DEFAULT '0',
		bonus1 TEXT NOT NULL DEFAULT '0',
		threshold2 TEXT NOT NULL DEFAULT '0',
		bonus2 TEXT NOT NULL DEFAULT '0',
		active INTEGER NOT NULL DEFAULT 1,
		updated_at TEXT NOT NULL
	);

	-- One active rule per (company, shift)
	CREATE UNIQUE INDEX IF NOT EXISTS idx_salary_rules_active_key
		ON salary_rules(company, shift) WHERE active = 1;

	CREATE TABLE IF NOT EXISTS role_salaries (
		role TEXT PRIMARY KEY,
		fixed_salary TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	-- Append-only: no UPDATE or DELETE is ever issued on adjustments
	CREATE TABLE IF NOT EXISTS adjustments (
		id TEXT PRIMARY KEY,
		operator TEXT NOT NULL,
		date TEXT NOT NULL,
		amount TEXT NOT NULL,
		kind TEXT NOT NULL,
		note TEXT,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_adjustments_operator_date
		ON adjustments(operator, date);

	CREATE TABLE IF NOT EXISTS weekly_debts (
		id TEXT PRIMARY KEY,
		operator TEXT NOT NULL,
		week_start TEXT NOT NULL,
		amount TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT 'active',
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_weekly_debts_operator_week
		ON weekly_debts(operator, week_start);

	CREATE TABLE IF NOT EXISTS plan_rows (
		month TEXT NOT NULL,
		entity TEXT NOT NULL,
		company TEXT NOT NULL DEFAULT '',
		operator TEXT NOT NULL DEFAULT '',
		role TEXT NOT NULL DEFAULT '',
		month_turnover TEXT NOT NULL,
		week_turnover TEXT NOT NULL,
		month_shifts TEXT NOT NULL,
		week_shifts TEXT NOT NULL,
		metadata_json TEXT,
		locked INTEGER NOT NULL DEFAULT 0,
		updated_at TEXT NOT NULL,
		PRIMARY KEY (month, entity, company, operator, role)
	);
	`

	_, err := s.db.Exec(schema)
	return err
}

func (s *Store) id(given generic.RecordID) generic.RecordID {
	if given != "" {
		return given
	}
	return generic.RecordID(s.NewID())
}

// =============================================================================
// REVENUE (generic.RevenueSource)
// =============================================================================

// AddRevenue stores a revenue record and returns its id.
func (s *Store) AddRevenue(ctx context.Context, r generic.RevenueRecord) (generic.RecordID, error) {
	if !r.Shift.Valid() {
		return "", fmt.Errorf("%w: %q", generic.ErrInvalidShiftType, r.Shift)
	}
	if r.Date.IsZero() || r.Company == "" {
		return "", fmt.Errorf("%w: revenue needs a date and a company", generic.ErrInvalidPeriod)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	r.ID = s.id(r.ID)
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO revenue_records
		(id, date, company, operator, shift, cash, wallet, card, online, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		r.ID, r.Date.String(), r.Company, r.Operator, r.Shift,
		r.Channels.Cash.String(), r.Channels.Wallet.String(),
		r.Channels.Card.String(), r.Channels.Online.String(),
		now(),
	)
	if err != nil {
		return "", fmt.Errorf("failed to add revenue: %w", err)
	}
	return r.ID, nil
}

func (s *Store) RevenueInRange(ctx context.Context, f generic.RevenueFilter) ([]generic.RevenueRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `
		SELECT id, date, company, operator, shift, cash, wallet, card, online
		FROM revenue_records
		WHERE date >= ? AND date <= ?`
	args := []any{f.Period.Start.String(), f.Period.End.String()}
	if f.Company != "" {
		query += " AND company = ?"
		args = append(args, f.Company)
	}
	if f.Operator != "" {
		query += " AND operator = ?"
		args = append(args, f.Operator)
	}
	query += " ORDER BY date, company, operator, id"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query revenue: %w", err)
	}
	defer rows.Close()

	var out []generic.RevenueRecord
	for rows.Next() {
		var r generic.RevenueRecord
		var date, shift, cash, wallet, card, online string
		if err := rows.Scan(&r.ID, &date, &r.Company, &r.Operator, &shift, &cash, &wallet, &card, &online); err != nil {
			return nil, err
		}
		if r.Date, err = generic.ParseDate(date); err != nil {
			return nil, err
		}
		r.Shift = generic.ShiftType(shift)
		if r.Channels, err = parseChannels(cash, wallet, card, online); err != nil {
			return nil, fmt.Errorf("revenue %s: %w", r.ID, err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// =============================================================================
// OPERATORS (generic.OperatorDirectory)
// =============================================================================

func (s *Store) SaveOperator(ctx context.Context, op generic.Operator) error {
	if op.ID == "" || op.Name == "" {
		return errors.New("operator needs an id and a name")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO operators (id, name, active, created_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			active = excluded.active
	`, op.ID, op.Name, op.Active, now())
	if err != nil {
		return fmt.Errorf("failed to save operator: %w", err)
	}
	return nil
}

func (s *Store) Operators(ctx context.Context) ([]generic.Operator, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, "SELECT id, name, active FROM operators ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("failed to query operators: %w", err)
	}
	defer rows.Close()

	var out []generic.Operator
	for rows.Next() {
		var op generic.Operator
		if err := rows.Scan(&op.ID, &op.Name, &op.Active); err != nil {
			return nil, err
		}
		out = append(out, op)
	}
	return out, rows.Err()
}

// =============================================================================
// SALARY RULES (generic.RuleSource)
// =============================================================================

// SaveRules upserts rules in one transaction. An active rule colliding with
// another active rule of the same (company, shift) aborts the whole batch
// with *generic.RuleConflictError.
func (s *Store) SaveRules(ctx context.Context, rules []generic.SalaryRule) ([]generic.SalaryRule, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	saved := make([]generic.SalaryRule, 0, len(rules))
	for _, r := range rules {
		r.ID = s.id(r.ID)
		if r.Active {
			var existing string
			err := tx.QueryRowContext(ctx,
				"SELECT id FROM salary_rules WHERE company = ? AND shift = ? AND active = 1 AND id <> ?",
				r.Company, r.Shift, r.ID,
			).Scan(&existing)
			if err == nil {
				return nil, &generic.RuleConflictError{Key: r.Key(), ExistingID: generic.RecordID(existing)}
			}
			if !errors.Is(err, sql.ErrNoRows) {
				return nil, fmt.Errorf("failed to check rule %s: %w", r.Key(), err)
			}
		}

		_, err := tx.ExecContext(ctx, `
			INSERT INTO salary_rules
			(id, company, shift, base_per_shift, threshold1, bonus1, threshold2, bonus2, active, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET
				company = excluded.company,
				shift = excluded.shift,
				base_per_shift = excluded.base_per_shift,
				threshold1 = excluded.threshold1,
				bonus1 = excluded.bonus1,
				threshold2 = excluded.threshold2,
				bonus2 = excluded.bonus2,
				active = excluded.active,
				updated_at = excluded.updated_at
		`,
			r.ID, r.Company, r.Shift, r.BasePerShift.String(),
			r.Threshold1.String(), r.Bonus1.String(),
			r.Threshold2.String(), r.Bonus2.String(),
			r.Active, now(),
		)
		if err != nil {
			if isUniqueConstraintError(err) {
				return nil, &generic.RuleConflictError{Key: r.Key()}
			}
			return nil, fmt.Errorf("failed to save rule %s: %w", r.ID, err)
		}
		saved = append(saved, r)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit rules: %w", err)
	}
	return saved, nil
}

func (s *Store) ActiveRules(ctx context.Context) ([]generic.SalaryRule, error) {
	return s.queryRules(ctx, "WHERE active = 1")
}

// ListRules returns every rule, inactive ones included.
func (s *Store) ListRules(ctx context.Context) ([]generic.SalaryRule, error) {
	return s.queryRules(ctx, "")
}

func (s *Store) queryRules(ctx context.Context, where string) ([]generic.SalaryRule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, company, shift, base_per_shift, threshold1, bonus1, threshold2, bonus2, active
		FROM salary_rules `+where+`
		ORDER BY company, shift, id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query salary rules: %w", err)
	}
	defer rows.Close()

	var out []generic.SalaryRule
	for rows.Next() {
		var r generic.SalaryRule
		var shift string
		var amounts [5]string
		if err := rows.Scan(&r.ID, &r.Company, &shift,
			&amounts[0], &amounts[1], &amounts[2], &amounts[3], &amounts[4], &r.Active); err != nil {
			return nil, err
		}
		r.Shift = generic.ShiftType(shift)
		parsed, err := parseDecimals(amounts[:]...)
		if err != nil {
			return nil, fmt.Errorf("salary rule %s: %w", r.ID, err)
		}
		r.BasePerShift, r.Threshold1, r.Bonus1, r.Threshold2, r.Bonus2 =
			parsed[0], parsed[1], parsed[2], parsed[3], parsed[4]
		out = append(out, r)
	}
	return out, rows.Err()
}

// =============================================================================
// ROLE SALARIES (generic.RoleSource)
// =============================================================================

func (s *Store) SaveRoleSalary(ctx context.Context, rs generic.RoleSalary) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO role_salaries (role, fixed_salary, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(role) DO UPDATE SET
			fixed_salary = excluded.fixed_salary,
			updated_at = excluded.updated_at
	`, rs.Role, rs.FixedSalary.String(), now())
	if err != nil {
		return fmt.Errorf("failed to save role salary: %w", err)
	}
	return nil
}

func (s *Store) RoleSalaries(ctx context.Context) ([]generic.RoleSalary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, "SELECT role, fixed_salary FROM role_salaries ORDER BY role")
	if err != nil {
		return nil, fmt.Errorf("failed to query role salaries: %w", err)
	}
	defer rows.Close()

	var out []generic.RoleSalary
	for rows.Next() {
		var rs generic.RoleSalary
		var salary string
		if err := rows.Scan(&rs.Role, &salary); err != nil {
			return nil, err
		}
		if rs.FixedSalary, err = decimal.NewFromString(salary); err != nil {
			return nil, fmt.Errorf("role %s: %w", rs.Role, err)
		}
		out = append(out, rs)
	}
	return out, rows.Err()
}

// =============================================================================
// ADJUSTMENTS (generic.AdjustmentLedger)
// =============================================================================

// AppendAdjustment adds a ledger entry. Entries are never updated.
func (s *Store) AppendAdjustment(ctx context.Context, adj generic.Adjustment) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	adj.ID = s.id(adj.ID)
	created := adj.CreatedAt
	if created.IsZero() {
		created = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO adjustments (id, operator, date, amount, kind, note, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, adj.ID, adj.Operator, adj.Date.String(), adj.Amount.String(), adj.Kind,
		nullString(adj.Note), created.Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("failed to append adjustment: %w", err)
	}
	return nil
}

func (s *Store) Adjustments(ctx context.Context, op generic.OperatorID, p generic.Period) ([]generic.Adjustment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, operator, date, amount, kind, note, created_at
		FROM adjustments
		WHERE operator = ? AND date >= ? AND date <= ?
		ORDER BY date, created_at, id
	`, op, p.Start.String(), p.End.String())
	if err != nil {
		return nil, fmt.Errorf("failed to query adjustments: %w", err)
	}
	defer rows.Close()

	var out []generic.Adjustment
	for rows.Next() {
		var a generic.Adjustment
		var date, amount, kind, created string
		var note sql.NullString
		if err := rows.Scan(&a.ID, &a.Operator, &date, &amount, &kind, &note, &created); err != nil {
			return nil, err
		}
		if a.Date, err = generic.ParseDate(date); err != nil {
			return nil, err
		}
		// Malformed stored amounts become zero and are skipped downstream.
		a.Amount, _ = decimal.NewFromString(amount)
		a.Kind = generic.AdjustmentKind(kind)
		a.Note = note.String
		a.CreatedAt, _ = time.Parse(time.RFC3339, created)
		out = append(out, a)
	}
	return out, rows.Err()
}

// =============================================================================
// WEEKLY DEBTS (generic.DebtLedger)
// =============================================================================

func (s *Store) AppendDebt(ctx context.Context, debt generic.WeeklyDebt) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	debt.ID = s.id(debt.ID)
	if debt.Status == "" {
		debt.Status = generic.DebtActive
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO weekly_debts (id, operator, week_start, amount, status, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, debt.ID, debt.Operator, debt.WeekStart.String(), debt.Amount.String(), debt.Status, now())
	if err != nil {
		return fmt.Errorf("failed to append weekly debt: %w", err)
	}
	return nil
}

// SetDebtStatus settles or cancels a weekly debt.
// SetDebtStatus settles, cancels or reactivates a weekly debt.
func (s *Store) SetDebtStatus(ctx context.Context, id generic.RecordID, status generic.DebtStatus) error {
	if !status.Valid() {
		return fmt.Errorf("%w: %q", generic.ErrInvalidDebtStatus, status)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, "UPDATE weekly_debts SET status = ? WHERE id = ?", status, id)
	if err != nil {
		return fmt.Errorf("failed to update weekly debt: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", generic.ErrDebtNotFound, id)
	}
	return nil
}

func (s *Store) ActiveDebts(ctx context.Context, op generic.OperatorID, p generic.Period) ([]generic.WeeklyDebt, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, operator, week_start, amount, status
		FROM weekly_debts
		WHERE operator = ? AND status = ? AND week_start >= ? AND week_start <= ?
		ORDER BY week_start, id
	`, op, generic.DebtActive, p.Start.String(), p.End.String())
	if err != nil {
		return nil, fmt.Errorf("failed to query weekly debts: %w", err)
	}
	defer rows.Close()

	var out []generic.WeeklyDebt
	for rows.Next() {
		var d generic.WeeklyDebt
		var week, amount, status string
		if err := rows.Scan(&d.ID, &d.Operator, &week, &amount, &status); err != nil {
			return nil, err
		}
		if d.WeekStart, err = generic.ParseDate(week); err != nil {
			return nil, err
		}
		d.Amount, _ = decimal.NewFromString(amount)
		d.Status = generic.DebtStatus(status)
		out = append(out, d)
	}
	return out, rows.Err()
}

// =============================================================================
// PLAN STORE (generic.PlanStore)
// =============================================================================

const upsertPlanRow = `
	INSERT INTO plan_rows
	(month, entity, company, operator, role,
	 month_turnover, week_turnover, month_shifts, week_shifts,
	 metadata_json, locked, updated_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(month, entity, company, operator, role) DO UPDATE SET
		month_turnover = excluded.month_turnover,
		week_turnover = excluded.week_turnover,
		month_shifts = excluded.month_shifts,
		week_shifts = excluded.week_shifts,
		metadata_json = excluded.metadata_json,
		locked = excluded.locked,
		updated_at = excluded.updated_at`

// SaveRecord upserts a plan row. Generated rows only overwrite unlocked
// stored rows; the guard is part of the statement.
func (s *Store) SaveRecord(ctx context.Context, rec generic.PlanRecord) error {
	if err := rec.Key.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	meta, err := json.Marshal(rec.Metadata)
	if err != nil {
		return fmt.Errorf("failed to encode metadata: %w", err)
	}
	updated := rec.UpdatedAt
	if updated.IsZero() {
		updated = time.Now()
	}

	query := upsertPlanRow
	if !rec.Locked {
		query += "\n\tWHERE plan_rows.locked = 0"
	}

	k := rec.Key
	res, err := s.db.ExecContext(ctx, query,
		k.Month.String(), k.Entity, k.Company, k.Operator, k.Role,
		rec.Targets.MonthTurnover.String(), rec.Targets.WeekTurnover.String(),
		rec.Targets.MonthShifts.String(), rec.Targets.WeekShifts.String(),
		string(meta), rec.Locked, updated.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("failed to save plan row %s: %w", k, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to save plan row %s: %w", k, err)
	}
	if n == 0 {
		return &generic.LockedRowError{Key: k}
	}
	return nil
}

func (s *Store) LoadPlan(ctx context.Context, month generic.TimePoint) ([]generic.PlanRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT month, entity, company, operator, role,
		       month_turnover, week_turnover, month_shifts, week_shifts,
		       metadata_json, locked, updated_at
		FROM plan_rows
		WHERE month = ?
		ORDER BY entity, company, operator, role
	`, month.String())
	if err != nil {
		return nil, fmt.Errorf("failed to query plan rows: %w", err)
	}
	defer rows.Close()

	var out []generic.PlanRecord
	for rows.Next() {
		var rec generic.PlanRecord
		var monthStr, entity, updated string
		var targets [4]string
		var meta sql.NullString
		if err := rows.Scan(&monthStr, &entity, &rec.Key.Company, &rec.Key.Operator, &rec.Key.Role,
			&targets[0], &targets[1], &targets[2], &targets[3],
			&meta, &rec.Locked, &updated); err != nil {
			return nil, err
		}
		if rec.Key.Month, err = generic.ParseDate(monthStr); err != nil {
			return nil, err
		}
		rec.Key.Entity = generic.EntityType(entity)
		parsed, err := parseDecimals(targets[:]...)
		if err != nil {
			return nil, fmt.Errorf("plan row %s: %w", rec.Key, err)
		}
		rec.Targets = generic.Targets{
			MonthTurnover: parsed[0],
			WeekTurnover:  parsed[1],
			MonthShifts:   parsed[2],
			WeekShifts:    parsed[3],
		}
		if meta.Valid && meta.String != "" && meta.String != "null" {
			if err := json.Unmarshal([]byte(meta.String), &rec.Metadata); err != nil {
				return nil, fmt.Errorf("plan row %s metadata: %w", rec.Key, err)
			}
		}
		rec.UpdatedAt, _ = time.Parse(time.RFC3339Nano, updated)
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (s *Store) Unlock(ctx context.Context, key generic.PlanKey) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, `
		UPDATE plan_rows SET locked = 0, updated_at = ?
		WHERE month = ? AND entity = ? AND company = ? AND operator = ? AND role = ?
	`, time.Now().UTC().Format(time.RFC3339Nano),
		key.Month.String(), key.Entity, key.Company, key.Operator, key.Role)
	if err != nil {
		return fmt.Errorf("failed to unlock plan row %s: %w", key, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return generic.ErrPlanRowNotFound
	}
	return nil
}

func (s *Store) PruneGenerated(ctx context.Context, month generic.TimePoint, keep []generic.PlanKey) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	kept := make(map[generic.PlanIdentity]bool, len(keep))
	for _, k := range keep {
		kept[k.Identity()] = true
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	rows, err := tx.QueryContext(ctx, `
		SELECT entity, company, operator, role FROM plan_rows
		WHERE month = ? AND locked = 0
	`, month.String())
	if err != nil {
		return 0, fmt.Errorf("failed to query plan rows: %w", err)
	}
	var stale []generic.PlanKey
	for rows.Next() {
		k := generic.PlanKey{Month: month}
		var entity string
		if err := rows.Scan(&entity, &k.Company, &k.Operator, &k.Role); err != nil {
			rows.Close()
			return 0, err
		}
		k.Entity = generic.EntityType(entity)
		if !kept[k.Identity()] {
			stale = append(stale, k)
		}
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return 0, err
	}

	for _, k := range stale {
		if _, err := tx.ExecContext(ctx, `
			DELETE FROM plan_rows
			WHERE month = ? AND entity = ? AND company = ? AND operator = ? AND role = ? AND locked = 0
		`, k.Month.String(), k.Entity, k.Company, k.Operator, k.Role); err != nil {
			return 0, fmt.Errorf("failed to prune plan row %s: %w", k, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit prune: %w", err)
	}
	return len(stale), nil
}

// =============================================================================
// UTILITIES
// =============================================================================

// Reset clears all data (for testing/demo).
func (s *Store) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tables := []string{"revenue_records", "operators", "salary_rules", "role_salaries",
		"adjustments", "weekly_debts", "plan_rows"}
	for _, table := range tables {
		if _, err := s.db.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return err
		}
	}
	return nil
}

func now() string { return time.Now().UTC().Format(time.RFC3339) }

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func parseChannels(cash, wallet, card, online string) (generic.Channels, error) {
	d, err := parseDecimals(cash, wallet, card, online)
	if err != nil {
		return generic.Channels{}, err
	}
	return generic.Channels{Cash: d[0], Wallet: d[1], Card: d[2], Online: d[3]}, nil
}

func parseDecimals(values ...string) ([]decimal.Decimal, error) {
	out := make([]decimal.Decimal, len(values))
	for i, v := range values {
		d, err := decimal.NewFromString(v)
		if err != nil {
			return nil, fmt.Errorf("invalid decimal %q: %w", v, err)
		}
		out[i] = d
	}
	return out, nil
}

func isUniqueConstraintError(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
