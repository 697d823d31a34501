package config

import (
	"fmt"
	"log/slog"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq" // PostgreSQL driver
)

// SetupDatabase initializes the database connection
func SetupDatabase(cfg *Config) (*sqlx.DB, error) {
	db, err := sqlx.Connect("postgres", cfg.Database.GetDSN())
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// Test the connection
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	// Set connection pool settings
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)

	// Create tables if they don't exist
	if err := createTables(db); err != nil {
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	return db, nil
}

// createTables creates the necessary tables in the database
func createTables(db *sqlx.DB) error {
	// Create users table
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS users (
			id VARCHAR(36) PRIMARY KEY,
			email VARCHAR(255) UNIQUE NOT NULL,
			name VARCHAR(255) NOT NULL,
			password VARCHAR(255) NOT NULL,
			created_at TIMESTAMP NOT NULL,
			updated_at TIMESTAMP NOT NULL
		)
	`)
	if err != nil {
		return err
	}

	// Denormalized balances; always equal to the sum of transaction deltas
	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS credit_balances (
			user_id VARCHAR(36) PRIMARY KEY REFERENCES users(id) ON DELETE CASCADE,
			balance INTEGER NOT NULL CHECK (balance >= 0),
			updated_at TIMESTAMP NOT NULL
		)
	`)
	if err != nil {
		return err
	}

	// Append-only credit ledger
	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS credit_transactions (
			id VARCHAR(36) PRIMARY KEY,
			user_id VARCHAR(36) NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			delta INTEGER NOT NULL,
			reason VARCHAR(16) NOT NULL,
			related_project_id VARCHAR(64),
			created_at TIMESTAMP NOT NULL
		)
	`)
	if err != nil {
		return err
	}

	// The primary key enforces at most one unlock per (user, project) pair
	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS unlock_records (
			user_id VARCHAR(36) NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			project_id VARCHAR(64) NOT NULL,
			credits_spent INTEGER NOT NULL CHECK (credits_spent > 0),
			created_at TIMESTAMP NOT NULL,
			PRIMARY KEY (user_id, project_id)
		)
	`)
	if err != nil {
		return err
	}

	// One active subscription per user; selecting a new plan replaces the row
	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS user_subscriptions (
			user_id VARCHAR(36) PRIMARY KEY REFERENCES users(id) ON DELETE CASCADE,
			subscription_id VARCHAR(64) NOT NULL,
			started_at TIMESTAMP NOT NULL,
			renews_at TIMESTAMP NOT NULL
		)
	`)
	if err != nil {
		return err
	}

	// Create indexes for better performance
	indexes := []string{
		"CREATE INDEX IF NOT EXISTS idx_credit_transactions_user_id ON credit_transactions(user_id)",
		"CREATE INDEX IF NOT EXISTS idx_unlock_records_project_id ON unlock_records(project_id)",
	}

	for _, idx := range indexes {
		_, err = db.Exec(idx)
		if err != nil {
			slog.Warn("failed to create index", "error", err)
			// Don't return error here, indexes are not critical
		}
	}

	return nil
}
