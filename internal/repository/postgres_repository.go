package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/tradiehub/credits-server/internal/models"
)

// Repository interface defines the methods that any repository implementation must satisfy
type Repository interface {
	// User operations
	CreateUser(ctx context.Context, user *models.User) error
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	GetUserByID(ctx context.Context, id string) (*models.User, error)

	// Credit ledger operations
	EnsureBalance(ctx context.Context, userID string) error
	GetBalance(ctx context.Context, userID string) (int, error)
	ApplyTransaction(ctx context.Context, txn *models.CreditTransaction) error
	ListTransactions(ctx context.Context, userID string) ([]models.CreditTransaction, error)

	// Unlock operations
	GetUnlock(ctx context.Context, userID, projectID string) (*models.UnlockRecord, error)
	CreateUnlockWithDebit(ctx context.Context, userID, projectID string, cost int) (*models.UnlockRecord, bool, error)
	DeleteProjectUnlocks(ctx context.Context, projectID string) (int64, error)

	// Subscription state operations
	SetActiveSubscription(ctx context.Context, sub *models.ActiveSubscription) error
	GetActiveSubscription(ctx context.Context, userID string) (*models.ActiveSubscription, error)
}

// PostgresRepository implements the Repository interface using PostgreSQL
type PostgresRepository struct {
	db *sqlx.DB
}

// NewPostgresRepository creates a new PostgreSQL repository
func NewPostgresRepository(db *sqlx.DB) *PostgresRepository {
	return &PostgresRepository{
		db: db,
	}
}

// User repository methods
func (r *PostgresRepository) CreateUser(ctx context.Context, user *models.User) error {
	query := `
		INSERT INTO users (id, email, name, password, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`

	if user.ID == "" {
		user.ID = uuid.New().String()
	}

	now := time.Now().UTC()
	user.CreatedAt = now
	user.UpdatedAt = now

	_, err := r.db.ExecContext(ctx, query,
		user.ID, user.Email, user.Name, user.Password, user.CreatedAt, user.UpdatedAt)

	return err
}

func (r *PostgresRepository) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	query := `SELECT * FROM users WHERE email = $1`

	var user models.User
	err := r.db.GetContext(ctx, &user, query, email)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil // User not found
		}
		return nil, err
	}

	return &user, nil
}

func (r *PostgresRepository) GetUserByID(ctx context.Context, id string) (*models.User, error) {
	query := `SELECT * FROM users WHERE id = $1`

	var user models.User
	err := r.db.GetContext(ctx, &user, query, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil // User not found
		}
		return nil, err
	}

	return &user, nil
}

// Credit ledger repository methods

// EnsureBalance creates the user's balance row with value 0 if it does not
// exist yet. Safe to call on every touch.
func (r *PostgresRepository) EnsureBalance(ctx context.Context, userID string) error {
	query := `
		INSERT INTO credit_balances (user_id, balance, updated_at)
		VALUES ($1, 0, $2)
		ON CONFLICT (user_id) DO NOTHING
	`

	_, err := r.db.ExecContext(ctx, query, userID, time.Now().UTC())
	return err
}

func (r *PostgresRepository) GetBalance(ctx context.Context, userID string) (int, error) {
	query := `SELECT balance FROM credit_balances WHERE user_id = $1`

	var balance int
	err := r.db.GetContext(ctx, &balance, query, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, fmt.Errorf("balance for user %s: %w", userID, models.ErrNotFound)
		}
		return 0, err
	}

	return balance, nil
}

// ApplyTransaction appends a ledger entry and updates the denormalized
// balance as one unit of work. A negative delta that would take the balance
// below zero fails with ErrInsufficientCredits and records nothing.
func (r *PostgresRepository) ApplyTransaction(ctx context.Context, txn *models.CreditTransaction) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}

	defer func() {
		if err != nil {
			tx.Rollback()
			return
		}
	}()

	err = applyTransactionTx(ctx, tx, txn)
	if err != nil {
		return err
	}

	if err = tx.Commit(); err != nil {
		return mapConflict(err)
	}
	return nil
}

// applyTransactionTx performs the balance update plus ledger append inside an
// existing transaction. The conditional UPDATE takes the row lock that
// serializes all balance mutations for the user.
func applyTransactionTx(ctx context.Context, tx *sql.Tx, txn *models.CreditTransaction) error {
	now := time.Now().UTC()

	res, err := tx.ExecContext(ctx,
		`UPDATE credit_balances
		SET balance = balance + $2, updated_at = $3
		WHERE user_id = $1 AND balance + $2 >= 0`,
		txn.UserID, txn.Delta, now)
	if err != nil {
		return mapConflict(err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}

	if rows == 0 {
		// Either the balance row is missing or the debit would go negative.
		var exists bool
		err = tx.QueryRowContext(ctx,
			`SELECT EXISTS(SELECT 1 FROM credit_balances WHERE user_id = $1)`,
			txn.UserID).Scan(&exists)
		if err != nil {
			return err
		}
		if !exists {
			return fmt.Errorf("balance for user %s: %w", txn.UserID, models.ErrNotFound)
		}
		return fmt.Errorf("debit of %d for user %s: %w", -txn.Delta, txn.UserID, models.ErrInsufficientCredits)
	}

	if txn.ID == "" {
		txn.ID = uuid.New().String()
	}
	if txn.CreatedAt.IsZero() {
		txn.CreatedAt = now
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO credit_transactions (id, user_id, delta, reason, related_project_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		txn.ID, txn.UserID, txn.Delta, txn.Reason, txn.RelatedProjectID, txn.CreatedAt)
	if err != nil {
		return mapConflict(err)
	}

	return nil
}

func (r *PostgresRepository) ListTransactions(ctx context.Context, userID string) ([]models.CreditTransaction, error) {
	query := `
		SELECT * FROM credit_transactions
		WHERE user_id = $1
		ORDER BY created_at DESC, id DESC
	`

	var txns []models.CreditTransaction
	err := r.db.SelectContext(ctx, &txns, query, userID)
	if err != nil {
		return nil, err
	}

	return txns, nil
}

// Unlock repository methods

func (r *PostgresRepository) GetUnlock(ctx context.Context, userID, projectID string) (*models.UnlockRecord, error) {
	query := `SELECT * FROM unlock_records WHERE user_id = $1 AND project_id = $2`

	var record models.UnlockRecord
	err := r.db.GetContext(ctx, &record, query, userID, projectID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil // Not unlocked yet
		}
		return nil, err
	}

	return &record, nil
}

// CreateUnlockWithDebit performs the atomic unlock step: claim the
// (user, project) pair, debit the balance, and append the ledger entry, all
// in one transaction. The boolean result reports whether this call created
// the record; false means another call already holds the pair and nothing
// was charged.
//
// The primary key on unlock_records serializes racing callers: the second
// insert blocks until the first transaction commits, then conflicts and
// affects zero rows.
func (r *PostgresRepository) CreateUnlockWithDebit(
	ctx context.Context,
	userID string,
	projectID string,
	cost int,
) (*models.UnlockRecord, bool, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, false, err
	}

	defer func() {
		if err != nil {
			tx.Rollback()
			return
		}
	}()

	now := time.Now().UTC()
	record := &models.UnlockRecord{
		UserID:       userID,
		ProjectID:    projectID,
		CreditsSpent: cost,
		CreatedAt:    now,
	}

	res, insertErr := tx.ExecContext(ctx,
		`INSERT INTO unlock_records (user_id, project_id, credits_spent, created_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (user_id, project_id) DO NOTHING`,
		record.UserID, record.ProjectID, record.CreditsSpent, record.CreatedAt)
	if insertErr != nil {
		err = mapConflict(insertErr)
		return nil, false, err
	}

	rows, rowsErr := res.RowsAffected()
	if rowsErr != nil {
		err = rowsErr
		return nil, false, err
	}

	if rows == 0 {
		// Lost the race (or a retry). Hand back the existing record unchanged.
		tx.Rollback()
		existing, getErr := r.GetUnlock(ctx, userID, projectID)
		if getErr != nil {
			return nil, false, getErr
		}
		if existing == nil {
			// The winning transaction aborted between our insert and read.
			return nil, false, models.ErrConcurrencyConflict
		}
		return existing, false, nil
	}

	debit := &models.CreditTransaction{
		UserID:           userID,
		Delta:            -cost,
		Reason:           models.ReasonUnlock,
		RelatedProjectID: &projectID,
	}
	err = applyTransactionTx(ctx, tx, debit)
	if err != nil {
		return nil, false, err
	}

	if err = tx.Commit(); err != nil {
		err = mapConflict(err)
		return nil, false, err
	}

	return record, true, nil
}

// DeleteProjectUnlocks removes all unlock records for a deleted project.
// This is cascade cleanup, not a refund: the ledger entries stay.
func (r *PostgresRepository) DeleteProjectUnlocks(ctx context.Context, projectID string) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM unlock_records WHERE project_id = $1`, projectID)
	if err != nil {
		return 0, err
	}

	return res.RowsAffected()
}

// Subscription repository methods

// SetActiveSubscription records the user's current plan. Selecting a new
// plan supersedes the previous one; a user never holds two at once.
func (r *PostgresRepository) SetActiveSubscription(ctx context.Context, sub *models.ActiveSubscription) error {
	query := `
		INSERT INTO user_subscriptions (user_id, subscription_id, started_at, renews_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (user_id) DO UPDATE
		SET subscription_id = EXCLUDED.subscription_id,
		    started_at = EXCLUDED.started_at,
		    renews_at = EXCLUDED.renews_at
	`

	_, err := r.db.ExecContext(ctx, query,
		sub.UserID, sub.SubscriptionID, sub.StartedAt, sub.RenewsAt)

	return err
}

func (r *PostgresRepository) GetActiveSubscription(ctx context.Context, userID string) (*models.ActiveSubscription, error) {
	query := `SELECT * FROM user_subscriptions WHERE user_id = $1`

	var sub models.ActiveSubscription
	err := r.db.GetContext(ctx, &sub, query, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil // No active subscription
		}
		return nil, err
	}

	return &sub, nil
}

// mapConflict translates transient Postgres failures (serialization
// failures, deadlocks) into ErrConcurrencyConflict so the service layer can
// retry them. Everything else passes through untouched.
func mapConflict(err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code {
		case "40001", "40P01": // serialization_failure, deadlock_detected
			return fmt.Errorf("%w: %v", models.ErrConcurrencyConflict, err)
		}
	}
	return err
}
