package storage

import (
	"database/sql"
	"fmt"
)

// Migration represents a database schema migration
type Migration struct {
	Version int
	Name    string
	Up      func(*sql.Tx) error
}

// allMigrations defines all migrations in order
var allMigrations = []Migration{
	{
		Version: 1,
		Name:    "initial_schema",
		Up:      migration001InitialSchema,
	},
	{
		Version: 2,
		Name:    "add_applied_payments_table",
		Up:      migration002AddAppliedPaymentsTable,
	},
	{
		Version: 3,
		Name:    "add_match_run_tables",
		Up:      migration003AddMatchRunTables,
	},
	{
		Version: 4,
		Name:    "add_order_payments_table",
		Up:      migration004AddOrderPaymentsTable,
	},
}

// runMigrations executes all pending migrations
func (s *Storage) runMigrations() error {
	if err := s.ensureMigrationsTable(); err != nil {
		return fmt.Errorf("failed to create migrations table: %w", err)
	}

	applied, err := s.getAppliedMigrations()
	if err != nil {
		return fmt.Errorf("failed to get applied migrations: %w", err)
	}

	for _, migration := range allMigrations {
		if applied[migration.Version] {
			continue
		}

		tx, err := s.db.Begin()
		if err != nil {
			return fmt.Errorf("failed to begin transaction for migration %d: %w", migration.Version, err)
		}

		if err := migration.Up(tx); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("migration %d (%s) failed: %w", migration.Version, migration.Name, err)
		}

		if _, err := tx.Exec(
			"INSERT INTO schema_migrations (version, name) VALUES (?, ?)",
			migration.Version, migration.Name,
		); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("failed to record migration %d: %w", migration.Version, err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("failed to commit migration %d: %w", migration.Version, err)
		}
	}

	return nil
}

func (s *Storage) ensureMigrationsTable() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			name TEXT NOT NULL,
			applied_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)
	`)
	return err
}

func (s *Storage) getAppliedMigrations() (map[int]bool, error) {
	rows, err := s.db.Query("SELECT version FROM schema_migrations")
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	applied := make(map[int]bool)
	for rows.Next() {
		var version int
		if err := rows.Scan(&version); err != nil {
			return nil, err
		}
		applied[version] = true
	}

	return applied, rows.Err()
}

func migration001InitialSchema(tx *sql.Tx) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS customers (
			id INTEGER PRIMARY KEY,
			name TEXT NOT NULL DEFAULT '',
			company TEXT NOT NULL DEFAULT '',
			primary_client_id TEXT NOT NULL DEFAULT ''
		)`,
		`CREATE TABLE IF NOT EXISTS clients (
			id INTEGER PRIMARY KEY,
			name TEXT NOT NULL DEFAULT '',
			company TEXT NOT NULL DEFAULT '',
			account_number TEXT NOT NULL DEFAULT ''
		)`,
		`CREATE TABLE IF NOT EXISTS customer_clients (
			customer_id INTEGER NOT NULL REFERENCES customers(id),
			client_id INTEGER NOT NULL REFERENCES clients(id),
			is_primary INTEGER NOT NULL DEFAULT 0,
			PRIMARY KEY (customer_id, client_id)
		)`,
		`CREATE TABLE IF NOT EXISTS wf_payments (
			id INTEGER PRIMARY KEY,
			cust_id TEXT NOT NULL DEFAULT '',
			cust_name TEXT NOT NULL DEFAULT '',
			comp_name TEXT NOT NULL DEFAULT '',
			account_number TEXT NOT NULL DEFAULT '',
			full_sub_account TEXT NOT NULL DEFAULT '',
			acct TEXT NOT NULL DEFAULT '',
			acct_no TEXT NOT NULL DEFAULT '',
			sub_account TEXT NOT NULL DEFAULT '',
			amount TEXT NOT NULL DEFAULT '0',
			payment_date TIMESTAMP,
			bank_reference TEXT NOT NULL DEFAULT '',
			applied INTEGER NOT NULL DEFAULT 0
		)`,
		`CREATE INDEX IF NOT EXISTS idx_clients_account_number ON clients(account_number)`,
		`CREATE INDEX IF NOT EXISTS idx_customers_name ON customers(name)`,
		`CREATE INDEX IF NOT EXISTS idx_wf_payments_applied ON wf_payments(applied)`,
	}

	for _, stmt := range stmts {
		if _, err := tx.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

func migration002AddAppliedPaymentsTable(tx *sql.Tx) error {
	_, err := tx.Exec(`
		CREATE TABLE IF NOT EXISTS applied_payments (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			client_id INTEGER NOT NULL,
			amount TEXT NOT NULL DEFAULT '0',
			payment_date TIMESTAMP,
			notes TEXT NOT NULL DEFAULT '',
			payment_reference TEXT NOT NULL UNIQUE,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)
	`)
	return err
}

func migration003AddMatchRunTables(tx *sql.Tx) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS match_runs (
			id TEXT PRIMARY KEY,
			started_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			completed_at TIMESTAMP,
			batch_limit INTEGER NOT NULL DEFAULT 0,
			dry_run INTEGER NOT NULL DEFAULT 0,
			payments_found INTEGER NOT NULL DEFAULT 0,
			customer_matches INTEGER NOT NULL DEFAULT 0,
			client_matches INTEGER NOT NULL DEFAULT 0,
			no_matches INTEGER NOT NULL DEFAULT 0,
			errors INTEGER NOT NULL DEFAULT 0,
			high_confidence INTEGER NOT NULL DEFAULT 0,
			medium_confidence INTEGER NOT NULL DEFAULT 0,
			status TEXT NOT NULL DEFAULT 'running'
		)`,
		`CREATE TABLE IF NOT EXISTS match_records (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			run_id TEXT NOT NULL REFERENCES match_runs(id),
			payment_id INTEGER NOT NULL,
			entity_kind TEXT NOT NULL DEFAULT '',
			entity_id INTEGER NOT NULL DEFAULT 0,
			match_type TEXT NOT NULL,
			tier TEXT NOT NULL,
			confidence REAL NOT NULL DEFAULT 0,
			name_score REAL NOT NULL DEFAULT 0,
			company_score REAL NOT NULL DEFAULT 0,
			account_score REAL NOT NULL DEFAULT 0,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE INDEX IF NOT EXISTS idx_match_records_tier ON match_records(tier)`,
		`CREATE INDEX IF NOT EXISTS idx_match_records_run ON match_records(run_id)`,
	}

	for _, stmt := range stmts {
		if _, err := tx.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

func migration004AddOrderPaymentsTable(tx *sql.Tx) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS order_payments (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			account_id TEXT NOT NULL DEFAULT '',
			customer_name TEXT NOT NULL DEFAULT '',
			payment_type INTEGER NOT NULL DEFAULT 0,
			amount TEXT NOT NULL DEFAULT '0',
			payment_date TIMESTAMP
		)`,
		`CREATE INDEX IF NOT EXISTS idx_order_payments_account ON order_payments(account_id)`,
	}

	for _, stmt := range stmts {
		if _, err := tx.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}
