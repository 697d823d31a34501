package repository

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/tradiehub/credits-server/internal/models"
)

// MemoryRepository is an in-memory Repository used by tests and local
// development. A single mutex serializes all mutations, which satisfies the
// same observable invariants as the row locks in the Postgres implementation.
type MemoryRepository struct {
	mu           sync.RWMutex
	usersByID    map[string]models.User
	usersByEmail map[string]string
	balances     map[string]int
	transactions map[string][]models.CreditTransaction
	unlocks      map[string]models.UnlockRecord // key: userID + "\x00" + projectID
	subs         map[string]models.ActiveSubscription
}

// NewMemoryRepository creates an empty in-memory repository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		usersByID:    make(map[string]models.User),
		usersByEmail: make(map[string]string),
		balances:     make(map[string]int),
		transactions: make(map[string][]models.CreditTransaction),
		unlocks:      make(map[string]models.UnlockRecord),
		subs:         make(map[string]models.ActiveSubscription),
	}
}

func unlockKey(userID, projectID string) string {
	return userID + "\x00" + projectID
}

func (r *MemoryRepository) CreateUser(ctx context.Context, user *models.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if user.ID == "" {
		user.ID = uuid.New().String()
	}
	if _, exists := r.usersByEmail[user.Email]; exists {
		return fmt.Errorf("user with email %s already exists", user.Email)
	}

	now := time.Now().UTC()
	user.CreatedAt = now
	user.UpdatedAt = now

	r.usersByID[user.ID] = *user
	r.usersByEmail[user.Email] = user.ID
	return nil
}

func (r *MemoryRepository) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.usersByEmail[email]
	if !ok {
		return nil, nil
	}
	user := r.usersByID[id]
	return &user, nil
}

func (r *MemoryRepository) GetUserByID(ctx context.Context, id string) (*models.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	user, ok := r.usersByID[id]
	if !ok {
		return nil, nil
	}
	return &user, nil
}

func (r *MemoryRepository) EnsureBalance(ctx context.Context, userID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.balances[userID]; !ok {
		r.balances[userID] = 0
	}
	return nil
}

func (r *MemoryRepository) GetBalance(ctx context.Context, userID string) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	balance, ok := r.balances[userID]
	if !ok {
		return 0, fmt.Errorf("balance for user %s: %w", userID, models.ErrNotFound)
	}
	return balance, nil
}

func (r *MemoryRepository) ApplyTransaction(ctx context.Context, txn *models.CreditTransaction) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.applyTransactionLocked(txn)
}

func (r *MemoryRepository) applyTransactionLocked(txn *models.CreditTransaction) error {
	balance, ok := r.balances[txn.UserID]
	if !ok {
		return fmt.Errorf("balance for user %s: %w", txn.UserID, models.ErrNotFound)
	}
	if balance+txn.Delta < 0 {
		return fmt.Errorf("debit of %d for user %s: %w", -txn.Delta, txn.UserID, models.ErrInsufficientCredits)
	}

	if txn.ID == "" {
		txn.ID = uuid.New().String()
	}
	if txn.CreatedAt.IsZero() {
		txn.CreatedAt = time.Now().UTC()
	}

	r.balances[txn.UserID] = balance + txn.Delta
	r.transactions[txn.UserID] = append(r.transactions[txn.UserID], *txn)
	return nil
}

func (r *MemoryRepository) ListTransactions(ctx context.Context, userID string) ([]models.CreditTransaction, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	txns := make([]models.CreditTransaction, len(r.transactions[userID]))
	copy(txns, r.transactions[userID])
	sort.SliceStable(txns, func(i, j int) bool {
		return txns[i].CreatedAt.After(txns[j].CreatedAt)
	})
	return txns, nil
}

func (r *MemoryRepository) GetUnlock(ctx context.Context, userID, projectID string) (*models.UnlockRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	record, ok := r.unlocks[unlockKey(userID, projectID)]
	if !ok {
		return nil, nil
	}
	return &record, nil
}

func (r *MemoryRepository) CreateUnlockWithDebit(
	ctx context.Context,
	userID string,
	projectID string,
	cost int,
) (*models.UnlockRecord, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := unlockKey(userID, projectID)
	if existing, ok := r.unlocks[key]; ok {
		return &existing, false, nil
	}

	debit := &models.CreditTransaction{
		UserID:           userID,
		Delta:            -cost,
		Reason:           models.ReasonUnlock,
		RelatedProjectID: &projectID,
	}
	if err := r.applyTransactionLocked(debit); err != nil {
		return nil, false, err
	}

	record := models.UnlockRecord{
		UserID:       userID,
		ProjectID:    projectID,
		CreditsSpent: cost,
		CreatedAt:    time.Now().UTC(),
	}
	r.unlocks[key] = record
	return &record, true, nil
}

func (r *MemoryRepository) DeleteProjectUnlocks(ctx context.Context, projectID string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var deleted int64
	for key, record := range r.unlocks {
		if record.ProjectID == projectID {
			delete(r.unlocks, key)
			deleted++
		}
	}
	return deleted, nil
}

func (r *MemoryRepository) SetActiveSubscription(ctx context.Context, sub *models.ActiveSubscription) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.subs[sub.UserID] = *sub
	return nil
}

func (r *MemoryRepository) GetActiveSubscription(ctx context.Context, userID string) (*models.ActiveSubscription, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	sub, ok := r.subs[userID]
	if !ok {
		return nil, nil
	}
	return &sub, nil
}
