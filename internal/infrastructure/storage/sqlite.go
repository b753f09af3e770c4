package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"

	"github.com/paymentops/payment-match-backend/internal/domain/matching"
	"github.com/paymentops/payment-match-backend/internal/domain/model"
)

// Storage provides SQLite database access for payments, entities and
// match audit records. It implements the Repository interface.
type Storage struct {
	db *sql.DB
}

// Compile-time check that Storage implements Repository
var _ Repository = (*Storage)(nil)

// NewStorage creates a new storage instance with SQLite database
func NewStorage(dbPath string) (*Storage, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, err
	}

	// Enable foreign key constraints (SQLite-specific)
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	s := &Storage{db: db}

	// Run all pending migrations
	if err := s.runMigrations(); err != nil {
		_ = db.Close()
		return nil, err
	}

	return s, nil
}

// Close closes the database connection
func (s *Storage) Close() error {
	return s.db.Close()
}

// --- Customers ---

const customerColumns = "id, name, company, primary_client_id"

func scanCustomer(row interface{ Scan(...any) error }) (*model.Customer, error) {
	var c model.Customer
	if err := row.Scan(&c.ID, &c.Name, &c.Company, &c.PrimaryClientID); err != nil {
		return nil, err
	}
	return &c, nil
}

// CustomerByID fetches a single customer, nil when absent.
func (s *Storage) CustomerByID(ctx context.Context, id int64) (*model.Customer, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT "+customerColumns+" FROM customers WHERE id = ?", id)
	c, err := scanCustomer(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get customer %d: %w", id, err)
	}
	return c, nil
}

// CustomersByPrimaryClientID returns customers whose primary client is
// identified by the given account id.
func (s *Storage) CustomersByPrimaryClientID(ctx context.Context, accountID string) ([]*model.Customer, error) {
	return s.queryCustomers(ctx,
		"SELECT "+customerColumns+" FROM customers WHERE primary_client_id = ?", accountID)
}

// CustomersByName returns customer candidates for name scoring. Retrieval
// is deliberately broad; the scorer does the actual filtering.
func (s *Storage) CustomersByName(ctx context.Context, name string) ([]*model.Customer, error) {
	if name == "" {
		return nil, nil
	}
	return s.queryCustomers(ctx,
		"SELECT "+customerColumns+" FROM customers WHERE name <> ''")
}

// CustomersByCompany returns customer candidates for company scoring.
func (s *Storage) CustomersByCompany(ctx context.Context, company string) ([]*model.Customer, error) {
	if company == "" {
		return nil, nil
	}
	return s.queryCustomers(ctx,
		"SELECT "+customerColumns+" FROM customers WHERE company <> ''")
}

func (s *Storage) queryCustomers(ctx context.Context, query string, args ...any) ([]*model.Customer, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query customers: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var customers []*model.Customer
	for rows.Next() {
		c, err := scanCustomer(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan customer: %w", err)
		}
		customers = append(customers, c)
	}
	return customers, rows.Err()
}

// ClientIDsForCustomer returns linked client ids, primary first.
func (s *Storage) ClientIDsForCustomer(ctx context.Context, customerID int64) ([]int64, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT client_id FROM customer_clients
		WHERE customer_id = ?
		ORDER BY is_primary DESC, client_id ASC
	`, customerID)
	if err != nil {
		return nil, fmt.Errorf("failed to query client links for customer %d: %w", customerID, err)
	}
	defer func() { _ = rows.Close() }()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// --- Clients ---

const clientColumns = "id, name, company, account_number"

func scanClient(row interface{ Scan(...any) error }) (*model.Client, error) {
	var c model.Client
	if err := row.Scan(&c.ID, &c.Name, &c.Company, &c.AccountNumber); err != nil {
		return nil, err
	}
	return &c, nil
}

// ClientByAccountNumber fetches a client by exact account number, nil
// when absent.
func (s *Storage) ClientByAccountNumber(ctx context.Context, accountNumber string) (*model.Client, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT "+clientColumns+" FROM clients WHERE account_number = ?", accountNumber)
	c, err := scanClient(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get client by account %q: %w", accountNumber, err)
	}
	return c, nil
}

// ClientsByName returns client candidates for name scoring.
func (s *Storage) ClientsByName(ctx context.Context, name string) ([]*model.Client, error) {
	if name == "" {
		return nil, nil
	}
	return s.queryClients(ctx,
		"SELECT "+clientColumns+" FROM clients WHERE name <> ''")
}

// ClientsByCompany returns client candidates for company scoring.
func (s *Storage) ClientsByCompany(ctx context.Context, company string) ([]*model.Client, error) {
	if company == "" {
		return nil, nil
	}
	return s.queryClients(ctx,
		"SELECT "+clientColumns+" FROM clients WHERE company <> ''")
}

func (s *Storage) queryClients(ctx context.Context, query string, args ...any) ([]*model.Client, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query clients: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var clients []*model.Client
	for rows.Next() {
		c, err := scanClient(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan client: %w", err)
		}
		clients = append(clients, c)
	}
	return clients, rows.Err()
}

// DistinctAccountIDs returns every known client account number. Loaded
// once per batch to build the known-accounts set.
func (s *Storage) DistinctAccountIDs(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT DISTINCT account_number FROM clients WHERE account_number <> ''")
	if err != nil {
		return nil, fmt.Errorf("failed to query account ids: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// --- Payments ---

// UnappliedPayments returns up to limit payments awaiting application,
// oldest first. A non-positive limit returns all of them.
func (s *Storage) UnappliedPayments(ctx context.Context, limit int) ([]*model.Payment, error) {
	if limit <= 0 {
		limit = -1 // SQLite treats negative LIMIT as unlimited
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, cust_id, cust_name, comp_name,
		       account_number, full_sub_account, acct, acct_no, sub_account,
		       amount, payment_date, bank_reference, applied
		FROM wf_payments
		WHERE applied = 0
		ORDER BY payment_date ASC, id ASC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query unapplied payments: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var payments []*model.Payment
	for rows.Next() {
		var p model.Payment
		var amount string
		var date sql.NullTime
		if err := rows.Scan(
			&p.ID, &p.CustID, &p.CustName, &p.CompName,
			&p.AccountNumber, &p.FullSubAccount, &p.ACCT, &p.AcctNo, &p.SubAccount,
			&amount, &date, &p.BankReference, &p.Applied,
		); err != nil {
			return nil, fmt.Errorf("failed to scan payment: %w", err)
		}
		p.Amount, err = decimal.NewFromString(amount)
		if err != nil {
			return nil, fmt.Errorf("payment %d has malformed amount %q: %w", p.ID, amount, err)
		}
		if date.Valid {
			p.Date = date.Time
		}
		payments = append(payments, &p)
	}
	return payments, rows.Err()
}

// MarkPaymentApplied flips the applied flag on a source payment.
func (s *Storage) MarkPaymentApplied(ctx context.Context, paymentID int64) error {
	result, err := s.db.ExecContext(ctx,
		"UPDATE wf_payments SET applied = 1 WHERE id = ?", paymentID)
	if err != nil {
		return fmt.Errorf("failed to mark payment %d applied: %w", paymentID, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return fmt.Errorf("payment %d not found", paymentID)
	}
	return nil
}

// --- Applied payments ---

// UpsertAppliedPayment creates or updates the applied-payment row keyed
// by payment reference. Reports whether a new row was created; the same
// reference never produces a second row.
func (s *Storage) UpsertAppliedPayment(ctx context.Context, applied *AppliedPayment) (int64, bool, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, false, fmt.Errorf("failed to begin upsert: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var existingID int64
	err = tx.QueryRowContext(ctx,
		"SELECT id FROM applied_payments WHERE payment_reference = ?",
		applied.PaymentReference).Scan(&existingID)

	switch {
	case errors.Is(err, sql.ErrNoRows):
		result, err := tx.ExecContext(ctx, `
			INSERT INTO applied_payments
			(client_id, amount, payment_date, notes, payment_reference)
			VALUES (?, ?, ?, ?, ?)
		`, applied.ClientID, applied.Amount.String(), applied.PaymentDate,
			applied.Notes, applied.PaymentReference)
		if err != nil {
			return 0, false, fmt.Errorf("failed to insert applied payment %q: %w", applied.PaymentReference, err)
		}
		id, err := result.LastInsertId()
		if err != nil {
			return 0, false, err
		}
		if err := tx.Commit(); err != nil {
			return 0, false, err
		}
		return id, true, nil

	case err != nil:
		return 0, false, fmt.Errorf("failed to check applied payment %q: %w", applied.PaymentReference, err)

	default:
		_, err := tx.ExecContext(ctx, `
			UPDATE applied_payments
			SET client_id = ?, amount = ?, payment_date = ?, notes = ?,
			    updated_at = CURRENT_TIMESTAMP
			WHERE id = ?
		`, applied.ClientID, applied.Amount.String(), applied.PaymentDate,
			applied.Notes, existingID)
		if err != nil {
			return 0, false, fmt.Errorf("failed to update applied payment %q: %w", applied.PaymentReference, err)
		}
		if err := tx.Commit(); err != nil {
			return 0, false, err
		}
		return existingID, false, nil
	}
}

// AppliedPaymentByReference fetches an applied payment, nil when absent.
func (s *Storage) AppliedPaymentByReference(ctx context.Context, reference string) (*AppliedPayment, error) {
	var a AppliedPayment
	var amount string
	var paymentDate, createdAt, updatedAt sql.NullTime
	err := s.db.QueryRowContext(ctx, `
		SELECT id, client_id, amount, payment_date, notes, payment_reference,
		       created_at, updated_at
		FROM applied_payments
		WHERE payment_reference = ?
	`, reference).Scan(
		&a.ID, &a.ClientID, &amount, &paymentDate, &a.Notes, &a.PaymentReference,
		&createdAt, &updatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get applied payment %q: %w", reference, err)
	}
	a.Amount, err = decimal.NewFromString(amount)
	if err != nil {
		return nil, fmt.Errorf("applied payment %q has malformed amount %q: %w", reference, amount, err)
	}
	if paymentDate.Valid {
		a.PaymentDate = paymentDate.Time
	}
	if createdAt.Valid {
		a.CreatedAt = createdAt.Time
	}
	if updatedAt.Valid {
		a.UpdatedAt = updatedAt.Time
	}
	return &a, nil
}

// --- Match runs ---

// StartRun records the beginning of a batch run.
func (s *Storage) StartRun(ctx context.Context, run *MatchRun) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO match_runs (id, started_at, batch_limit, dry_run, status)
		VALUES (?, ?, ?, ?, 'running')
	`, run.ID, run.StartedAt, run.Limit, run.DryRun)
	if err != nil {
		return fmt.Errorf("failed to start run %s: %w", run.ID, err)
	}
	run.Status = "running"
	return nil
}

// CompleteRun writes the final counters and status for a run.
func (s *Storage) CompleteRun(ctx context.Context, run *MatchRun) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE match_runs
		SET completed_at = ?, payments_found = ?, customer_matches = ?,
		    client_matches = ?, no_matches = ?, errors = ?,
		    high_confidence = ?, medium_confidence = ?, status = ?
		WHERE id = ?
	`, run.CompletedAt, run.PaymentsFound, run.CustomerMatches,
		run.ClientMatches, run.NoMatches, run.Errors,
		run.HighConfidence, run.MediumConfidence, run.Status, run.ID)
	if err != nil {
		return fmt.Errorf("failed to complete run %s: %w", run.ID, err)
	}
	return nil
}

const runColumns = `id, started_at, completed_at, batch_limit, dry_run,
	payments_found, customer_matches, client_matches, no_matches, errors,
	high_confidence, medium_confidence, status`

func scanRun(row interface{ Scan(...any) error }) (*MatchRun, error) {
	var run MatchRun
	var startedAt, completedAt sql.NullTime
	if err := row.Scan(
		&run.ID, &startedAt, &completedAt, &run.Limit, &run.DryRun,
		&run.PaymentsFound, &run.CustomerMatches, &run.ClientMatches,
		&run.NoMatches, &run.Errors,
		&run.HighConfidence, &run.MediumConfidence, &run.Status,
	); err != nil {
		return nil, err
	}
	if startedAt.Valid {
		run.StartedAt = startedAt.Time.Format(time.RFC3339)
	}
	if completedAt.Valid {
		run.CompletedAt = completedAt.Time.Format(time.RFC3339)
	}
	return &run, nil
}

// GetRun fetches a run by id, nil when absent.
func (s *Storage) GetRun(ctx context.Context, id string) (*MatchRun, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT "+runColumns+" FROM match_runs WHERE id = ?", id)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get run %s: %w", id, err)
	}
	return run, nil
}

// ListRuns returns recent runs, newest first.
func (s *Storage) ListRuns(ctx context.Context, limit int) ([]MatchRun, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+runColumns+" FROM match_runs ORDER BY started_at DESC LIMIT ?", limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var runs []MatchRun
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		runs = append(runs, *run)
	}
	return runs, rows.Err()
}

// --- Match records ---

// SaveMatchRecord persists one payment evaluation to the audit trail.
func (s *Storage) SaveMatchRecord(ctx context.Context, rec *MatchRecord) error {
	result, err := s.db.ExecContext(ctx, `
		INSERT INTO match_records
		(run_id, payment_id, entity_kind, entity_id, match_type, tier,
		 confidence, name_score, company_score, account_score)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, rec.RunID, rec.PaymentID, rec.EntityKind, rec.EntityID,
		rec.MatchType, rec.Tier, rec.Confidence,
		rec.NameScore, rec.CompanyScore, rec.AccountScore)
	if err != nil {
		return fmt.Errorf("failed to save match record for payment %d: %w", rec.PaymentID, err)
	}
	rec.ID, err = result.LastInsertId()
	return err
}

// ListMatchRecords returns audit records matching the filters, newest first.
func (s *Storage) ListMatchRecords(ctx context.Context, filters MatchFilters) ([]MatchRecord, error) {
	query := `
		SELECT id, run_id, payment_id, entity_kind, entity_id, match_type,
		       tier, confidence, name_score, company_score, account_score,
		       created_at
		FROM match_records
		WHERE 1=1
	`
	var args []any
	if filters.RunID != "" {
		query += " AND run_id = ?"
		args = append(args, filters.RunID)
	}
	if filters.Tier != "" {
		query += " AND tier = ?"
		args = append(args, filters.Tier)
	}
	if filters.MatchType != "" {
		query += " AND match_type = ?"
		args = append(args, filters.MatchType)
	}

	limit := filters.Limit
	if limit <= 0 {
		limit = 50
	}
	query += " ORDER BY id DESC LIMIT ? OFFSET ?"
	args = append(args, limit, filters.Offset)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list match records: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var records []MatchRecord
	for rows.Next() {
		var rec MatchRecord
		var createdAt sql.NullTime
		if err := rows.Scan(
			&rec.ID, &rec.RunID, &rec.PaymentID, &rec.EntityKind, &rec.EntityID,
			&rec.MatchType, &rec.Tier, &rec.Confidence,
			&rec.NameScore, &rec.CompanyScore, &rec.AccountScore,
			&createdAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan match record: %w", err)
		}
		if createdAt.Valid {
			rec.CreatedAt = createdAt.Time.Format(time.RFC3339)
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// GetMatchStats aggregates the audit trail by match type and tier.
func (s *Storage) GetMatchStats(ctx context.Context) (*MatchStats, error) {
	stats := &MatchStats{
		ByType: make(map[string]int),
		ByTier: make(map[string]int),
	}

	rows, err := s.db.QueryContext(ctx,
		"SELECT match_type, COUNT(*) FROM match_records GROUP BY match_type")
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate match types: %w", err)
	}
	defer func() { _ = rows.Close() }()
	for rows.Next() {
		var matchType string
		var count int
		if err := rows.Scan(&matchType, &count); err != nil {
			return nil, err
		}
		stats.ByType[matchType] = count
		stats.TotalEvaluated += count
		if matchType == string(model.MatchNone) {
			stats.Unmatched += count
		} else {
			stats.Matched += count
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	tierRows, err := s.db.QueryContext(ctx,
		"SELECT tier, COUNT(*) FROM match_records GROUP BY tier")
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate tiers: %w", err)
	}
	defer func() { _ = tierRows.Close() }()
	for tierRows.Next() {
		var tier string
		var count int
		if err := tierRows.Scan(&tier, &count); err != nil {
			return nil, err
		}
		stats.ByTier[tier] = count
	}
	return stats, tierRows.Err()
}

// --- Order payments ---

// MatchToOrderPayment checks the historical order ledger for the payment.
// With an account id it looks for order payments on that account;
// without one it falls back to prior payments under the same customer
// name.
func (s *Storage) MatchToOrderPayment(ctx context.Context, req matching.OrderMatchRequest) (bool, error) {
	var count int
	if req.AccountID != "" {
		err := s.db.QueryRowContext(ctx,
			"SELECT COUNT(*) FROM order_payments WHERE account_id = ?",
			req.AccountID).Scan(&count)
		if err != nil {
			return false, fmt.Errorf("failed to query order payments by account: %w", err)
		}
		return count > 0, nil
	}

	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM order_payments WHERE customer_name <> '' AND lower(customer_name) = lower(?)",
		req.CustomerName).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("failed to query order payments by name: %w", err)
	}
	return count > 0, nil
}
