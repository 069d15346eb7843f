/*
Package sqlite provides a SQLite-backed implementation of the billing stores.

INTERFACES IMPLEMENTED:
  cobranza.PolicyRepository: policy list, lookup and upsert
  cobranza.LedgerStore:      whole-ledger load and replace
  cobranza.RunRecorder:      billing run log

KEY TABLES:
  policies:     one row per policy, amounts as decimal strings
  receipts:     the ledger, PRIMARY KEY(policy_id, number)
  billing_runs: one row per billing pass

WHOLE-LEDGER REPLACE:
  SaveAll deletes every receipt and inserts the new set inside a single
  transaction. A failure rolls back and the previous ledger stays intact.
  The composite primary key rejects a duplicated (policy, number) pair.

DATES AND AMOUNTS:
  Dates are stored as ISO text (2006-01-02), NULL when unset.
  Amounts are stored as decimal strings so no precision is lost.

CONCURRENCY:
  Uses sync.RWMutex plus a single open connection. The single connection
  also keeps ":memory:" databases shared across calls.

USAGE:
  store, err := sqlite.New("./data/cobranza.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

  engine := cobranza.NewEngine(store, store, logger)

MIGRATION:
  Schema is auto-migrated on New(). For production, use a proper
  migration tool (golang-migrate, goose) with versioned migrations.
*/
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"

	"github.com/ealc/cobranza/cobranza"
	"github.com/ealc/cobranza/generic"
)

// ErrDuplicateReceipt is returned when SaveAll receives the same key twice.
var ErrDuplicateReceipt = errors.New("duplicate receipt key")

// Store implements the cobranza storage interfaces using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

var (
	_ cobranza.PolicyRepository = (*Store)(nil)
	_ cobranza.LedgerStore      = (*Store)(nil)
	_ cobranza.RunRecorder      = (*Store)(nil)
)

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	store, err := NewFromDB(db)
	if err != nil {
		db.Close()
		return nil, err
	}
	return store, nil
}

// NewFromDB wraps an already opened database and migrates it.
func NewFromDB(db *sql.DB) (*Store, error) {
	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping checks that the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS policies (
		id TEXT PRIMARY KEY,
		client_name TEXT NOT NULL DEFAULT '',
		start_date TEXT,
		end_date TEXT,
		periodicity TEXT NOT NULL,
		first_payment TEXT NOT NULL,
		subsequent_payment TEXT NOT NULL,
		currency TEXT NOT NULL,
		state TEXT NOT NULL,
		cancellation_date TEXT,
		issuance_key TEXT NOT NULL DEFAULT '',
		product TEXT NOT NULL DEFAULT '',
		insurer TEXT NOT NULL DEFAULT '',
		payment_method TEXT NOT NULL DEFAULT '',
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_policies_state
		ON policies(state);

	CREATE TABLE IF NOT EXISTS receipts (
		policy_id TEXT NOT NULL,
		number INTEGER NOT NULL,
		due_date TEXT NOT NULL,
		expected_amount TEXT NOT NULL,
		paid_amount TEXT NOT NULL,
		currency TEXT NOT NULL,
		payment_date TEXT,
		days_late INTEGER NOT NULL DEFAULT 0,
		status TEXT NOT NULL,
		comment TEXT NOT NULL DEFAULT '',
		client_name TEXT NOT NULL DEFAULT '',
		issuance_key TEXT NOT NULL DEFAULT '',
		PRIMARY KEY (policy_id, number)
	);

	CREATE INDEX IF NOT EXISTS idx_receipts_status
		ON receipts(status);
	CREATE INDEX IF NOT EXISTS idx_receipts_due_date
		ON receipts(due_date);

	CREATE TABLE IF NOT EXISTS billing_runs (
		id TEXT PRIMARY KEY,
		action TEXT NOT NULL,
		as_of TEXT NOT NULL,
		actor TEXT NOT NULL DEFAULT '',
		generated INTEGER NOT NULL DEFAULT 0,
		paid INTEGER NOT NULL DEFAULT 0,
		cancelled INTEGER NOT NULL DEFAULT 0,
		skipped INTEGER NOT NULL DEFAULT 0,
		status TEXT NOT NULL,
		error TEXT,
		started_at TEXT NOT NULL,
		completed_at TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_billing_runs_started
		ON billing_runs(started_at DESC);
	`

	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// TRANSACTIONS
// =============================================================================

// WithTx executes fn within a database transaction. The transaction is
// committed only if fn returns nil.
func (s *Store) WithTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit()
}

// =============================================================================
// POLICY STORE (cobranza.PolicyRepository)
// =============================================================================

const policyColumns = `id, client_name, start_date, end_date, periodicity,
	first_payment, subsequent_payment, currency, state, cancellation_date,
	issuance_key, product, insurer, payment_method`

// ListActive returns the ACTIVE policies ordered by id.
func (s *Store) ListActive(ctx context.Context) ([]cobranza.Policy, error) {
	return s.queryPolicies(ctx,
		"SELECT "+policyColumns+" FROM policies WHERE state = ? ORDER BY id",
		string(cobranza.PolicyActive),
	)
}

// ListPolicies returns every policy regardless of state.
func (s *Store) ListPolicies(ctx context.Context) ([]cobranza.Policy, error) {
	return s.queryPolicies(ctx, "SELECT "+policyColumns+" FROM policies ORDER BY id")
}

// GetPolicy returns (nil, nil) when the id is unknown.
func (s *Store) GetPolicy(ctx context.Context, id cobranza.PolicyID) (*cobranza.Policy, error) {
	policies, err := s.queryPolicies(ctx, "SELECT "+policyColumns+" FROM policies WHERE id = ?", string(id))
	if err != nil {
		return nil, err
	}
	if len(policies) == 0 {
		return nil, nil
	}
	return &policies[0], nil
}

// SavePolicy inserts or replaces the policy with the same id.
func (s *Store) SavePolicy(ctx context.Context, p cobranza.Policy) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
		INSERT INTO policies (` + policyColumns + `, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			client_name = excluded.client_name,
			start_date = excluded.start_date,
			end_date = excluded.end_date,
			periodicity = excluded.periodicity,
			first_payment = excluded.first_payment,
			subsequent_payment = excluded.subsequent_payment,
			currency = excluded.currency,
			state = excluded.state,
			cancellation_date = excluded.cancellation_date,
			issuance_key = excluded.issuance_key,
			product = excluded.product,
			insurer = excluded.insurer,
			payment_method = excluded.payment_method,
			updated_at = excluded.updated_at
	`

	now := time.Now().UTC().Format(time.RFC3339)
	_, err := s.db.ExecContext(ctx, query,
		string(p.ID), p.ClientName, nullDate(p.StartDate), nullDate(p.EndDate), string(p.Periodicity),
		p.FirstPaymentAmount.Value.String(), p.SubsequentPaymentAmount.Value.String(),
		string(p.Currency), string(p.State), nullDate(p.CancellationDate),
		p.IssuanceKey, p.Product, p.Insurer, p.PaymentMethod,
		now, now,
	)
	if err != nil {
		return fmt.Errorf("failed to save policy %s: %w", p.ID, err)
	}
	return nil
}

func (s *Store) queryPolicies(ctx context.Context, query string, args ...any) ([]cobranza.Policy, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var policies []cobranza.Policy
	for rows.Next() {
		p, err := scanPolicy(rows)
		if err != nil {
			return nil, err
		}
		policies = append(policies, p)
	}
	return policies, rows.Err()
}

func scanPolicy(rows *sql.Rows) (cobranza.Policy, error) {
	var (
		p                                   cobranza.Policy
		id, periodicity, currency, state    string
		first, subsequent                   string
		startDate, endDate, cancellationDay sql.NullString
	)
	err := rows.Scan(
		&id, &p.ClientName, &startDate, &endDate, &periodicity,
		&first, &subsequent, &currency, &state, &cancellationDay,
		&p.IssuanceKey, &p.Product, &p.Insurer, &p.PaymentMethod,
	)
	if err != nil {
		return cobranza.Policy{}, err
	}

	p.ID = cobranza.PolicyID(id)
	p.Periodicity = cobranza.Periodicity(periodicity)
	p.Currency = generic.Currency(currency)
	p.State = cobranza.PolicyState(state)
	p.StartDate = parseDate(startDate)
	p.EndDate = parseDate(endDate)
	p.CancellationDate = parseDate(cancellationDay)

	if p.FirstPaymentAmount, err = parseAmount(first, p.Currency); err != nil {
		return cobranza.Policy{}, fmt.Errorf("policy %s first_payment: %w", id, err)
	}
	if p.SubsequentPaymentAmount, err = parseAmount(subsequent, p.Currency); err != nil {
		return cobranza.Policy{}, fmt.Errorf("policy %s subsequent_payment: %w", id, err)
	}
	return p, nil
}

// =============================================================================
// LEDGER STORE (cobranza.LedgerStore)
// =============================================================================

// LoadAll returns every receipt ordered by (policy_id, number).
func (s *Store) LoadAll(ctx context.Context) ([]cobranza.Receipt, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT policy_id, number, due_date, expected_amount, paid_amount, currency,
			payment_date, days_late, status, comment, client_name, issuance_key
		FROM receipts
		ORDER BY policy_id, number
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to load receipts: %w", err)
	}
	defer rows.Close()

	var receipts []cobranza.Receipt
	for rows.Next() {
		r, err := scanReceipt(rows)
		if err != nil {
			return nil, err
		}
		receipts = append(receipts, r)
	}
	return receipts, rows.Err()
}

// SaveAll replaces the stored ledger with receipts in one transaction.
func (s *Store) SaveAll(ctx context.Context, receipts []cobranza.Receipt) error {
	return s.WithTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, "DELETE FROM receipts"); err != nil {
			return fmt.Errorf("failed to clear receipts: %w", err)
		}

		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO receipts (policy_id, number, due_date, expected_amount, paid_amount,
				currency, payment_date, days_late, status, comment, client_name, issuance_key)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`)
		if err != nil {
			return fmt.Errorf("failed to prepare receipt insert: %w", err)
		}
		defer stmt.Close()

		for _, r := range receipts {
			_, err := stmt.ExecContext(ctx,
				string(r.PolicyID), r.Number, r.DueDate.String(),
				r.ExpectedAmount.Value.String(), r.PaidAmount.Value.String(),
				string(r.ExpectedAmount.Currency), nullDate(r.PaymentDate), r.DaysLate,
				string(r.Status), r.Comment, r.ClientName, r.IssuanceKey,
			)
			if err != nil {
				if isUniqueConstraintError(err) {
					return fmt.Errorf("%w: %s", ErrDuplicateReceipt, r.Key())
				}
				return fmt.Errorf("failed to insert receipt %s: %w", r.Key(), err)
			}
		}
		return nil
	})
}

func scanReceipt(rows *sql.Rows) (cobranza.Receipt, error) {
	var (
		r                 cobranza.Receipt
		policyID, status  string
		dueDate, currency string
		expected, paid    string
		paymentDate       sql.NullString
	)
	err := rows.Scan(
		&policyID, &r.Number, &dueDate, &expected, &paid, &currency,
		&paymentDate, &r.DaysLate, &status, &r.Comment, &r.ClientName, &r.IssuanceKey,
	)
	if err != nil {
		return cobranza.Receipt{}, err
	}

	r.PolicyID = cobranza.PolicyID(policyID)
	r.DueDate, _ = generic.ParseDate(dueDate)
	r.PaymentDate = parseDate(paymentDate)

	st, ok := cobranza.ParseStatus(status)
	if !ok {
		return cobranza.Receipt{}, fmt.Errorf("receipt %s: unknown status %q", r.Key(), status)
	}
	r.Status = st

	cur := generic.Currency(currency)
	if r.ExpectedAmount, err = parseAmount(expected, cur); err != nil {
		return cobranza.Receipt{}, fmt.Errorf("receipt %s expected_amount: %w", r.Key(), err)
	}
	if r.PaidAmount, err = parseAmount(paid, cur); err != nil {
		return cobranza.Receipt{}, fmt.Errorf("receipt %s paid_amount: %w", r.Key(), err)
	}
	return r, nil
}

// =============================================================================
// RUN LOG (cobranza.RunRecorder)
// =============================================================================

// SaveRun inserts the run, or updates it if the id already exists.
func (s *Store) SaveRun(ctx context.Context, run cobranza.Run) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
		INSERT INTO billing_runs (id, action, as_of, actor, generated, paid, cancelled,
			skipped, status, error, started_at, completed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			generated = excluded.generated,
			paid = excluded.paid,
			cancelled = excluded.cancelled,
			skipped = excluded.skipped,
			status = excluded.status,
			error = excluded.error,
			completed_at = excluded.completed_at
	`

	var completedAt *string
	if !run.CompletedAt.IsZero() {
		c := run.CompletedAt.UTC().Format(time.RFC3339Nano)
		completedAt = &c
	}

	_, err := s.db.ExecContext(ctx, query,
		run.ID, string(run.Action), run.AsOf.String(), run.Actor,
		run.Generated, run.Paid, run.Cancelled, run.Skipped,
		string(run.Status), nullString(run.Error),
		run.StartedAt.UTC().Format(time.RFC3339Nano), completedAt,
	)
	return err
}

// ListRuns returns the most recent runs first. limit <= 0 returns all.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]cobranza.Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `
		SELECT id, action, as_of, actor, generated, paid, cancelled, skipped,
			status, error, started_at, completed_at
		FROM billing_runs
		ORDER BY started_at DESC
	`
	var args []any
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []cobranza.Run
	for rows.Next() {
		var (
			r                    cobranza.Run
			action, asOf, status string
			runErr, completedAt  sql.NullString
			startedAt            string
		)
		if err := rows.Scan(
			&r.ID, &action, &asOf, &r.Actor, &r.Generated, &r.Paid, &r.Cancelled, &r.Skipped,
			&status, &runErr, &startedAt, &completedAt,
		); err != nil {
			return nil, err
		}

		r.Action = cobranza.RunAction(action)
		r.Status = cobranza.RunStatus(status)
		r.AsOf, _ = generic.ParseDate(asOf)
		r.Error = runErr.String
		r.StartedAt, _ = time.Parse(time.RFC3339Nano, startedAt)
		if completedAt.Valid {
			r.CompletedAt, _ = time.Parse(time.RFC3339Nano, completedAt.String)
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// =============================================================================
// UTILITIES
// =============================================================================

// Reset clears all data (for testing/demo).
func (s *Store) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tables := []string{"receipts", "policies", "billing_runs"}
	for _, table := range tables {
		if _, err := s.db.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return err
		}
	}
	return nil
}

// Helper functions

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func nullDate(t generic.TimePoint) sql.NullString {
	if t.IsZero() {
		return sql.NullString{}
	}
	return nullString(t.String())
}

func parseDate(s sql.NullString) generic.TimePoint {
	if !s.Valid {
		return generic.TimePoint{}
	}
	t, _ := generic.ParseDate(s.String)
	return t
}

func parseAmount(value string, currency generic.Currency) (generic.Amount, error) {
	d, err := decimal.NewFromString(value)
	if err != nil {
		return generic.Amount{}, err
	}
	return generic.NewAmount(d, currency), nil
}

func isUniqueConstraintError(err error) bool {
	return err != nil && (strings.Contains(err.Error(), "UNIQUE constraint failed") ||
		strings.Contains(err.Error(), "PRIMARY KEY constraint failed"))
}
