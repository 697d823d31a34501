package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/tradiehub/credits-server/internal/catalog"
	"github.com/tradiehub/credits-server/internal/models"
	"github.com/tradiehub/credits-server/internal/repository"
	"github.com/tradiehub/credits-server/internal/tariff"
	"golang.org/x/crypto/bcrypt"
)

// ErrEmailTaken is returned by SignUp when the email is already registered.
var ErrEmailTaken = errors.New("user with this email already exists")

// maxUnlockAttempts bounds the internal retry loop for transient conflicts
// during the atomic unlock step. Conflicts resolve into either a win or an
// observed existing record almost immediately; more than a few retries means
// something is genuinely wrong with the backing store.
const maxUnlockAttempts = 3

// Service defines all the business logic operations
type Service interface {
	// Authentication
	SignUp(ctx context.Context, req models.SignUpRequest) (*models.AuthResponse, error)
	Login(ctx context.Context, req models.LoginRequest) (*models.AuthResponse, error)

	// Tariff
	CalculateCredits(budget *models.BudgetRange) int

	// Credit ledger
	GetBalance(ctx context.Context, userID string) (*models.BalanceResponse, error)
	ListTransactions(ctx context.Context, userID string) (*models.TransactionsResponse, error)
	Purchase(ctx context.Context, userID string, req models.PurchaseRequest) (*models.PurchaseResponse, error)
	Grant(ctx context.Context, userID string, credits int) (*models.CreditTransaction, error)

	// Unlock entitlement
	Unlock(ctx context.Context, userID, projectID string, budget *models.BudgetRange) (*models.UnlockResponse, error)
	UnlockStatus(ctx context.Context, userID, projectID string) (*models.UnlockStatusResponse, error)
	RemoveProjectUnlocks(ctx context.Context, projectID string) (int64, error)

	// Subscription & discount resolution
	SelectSubscription(ctx context.Context, userID string, req models.SelectSubscriptionRequest) (*models.SubscriptionResponse, error)
	GetSubscription(ctx context.Context, userID string) (*models.SubscriptionResponse, error)
	DiscountFor(ctx context.Context, userID string) (int, error)
	IsPremiumEligible(ctx context.Context, userID string) (bool, error)

	// Catalogs
	ListPackages() *models.PackagesResponse
	ListSubscriptions() *models.SubscriptionsResponse
}

// DefaultService implements the Service interface
type DefaultService struct {
	repo           repository.Repository
	catalog        *catalog.Catalog
	jwtSecret      []byte
	tokenDuration  time.Duration
	welcomeCredits int
}

// NewDefaultService creates a new DefaultService
func NewDefaultService(repo repository.Repository, cat *catalog.Catalog, jwtSecret string, welcomeCredits int) Service {
	return &DefaultService{
		repo:           repo,
		catalog:        cat,
		jwtSecret:      []byte(jwtSecret),
		tokenDuration:  24 * time.Hour, // 24 hours token validity
		welcomeCredits: welcomeCredits,
	}
}

// Authentication methods
func (s *DefaultService) SignUp(ctx context.Context, req models.SignUpRequest) (*models.AuthResponse, error) {
	// Check if user already exists
	existingUser, err := s.repo.GetUserByEmail(ctx, req.Email)
	if err != nil {
		return nil, fmt.Errorf("error checking user existence: %w", err)
	}

	if existingUser != nil {
		return nil, ErrEmailTaken
	}

	// Hash the password
	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("error hashing password: %w", err)
	}

	// Create the user
	user := &models.User{
		ID:       uuid.New().String(),
		Email:    req.Email,
		Name:     req.Name,
		Password: string(hashedPassword),
	}

	if err := s.repo.CreateUser(ctx, user); err != nil {
		return nil, fmt.Errorf("error creating user: %w", err)
	}

	// Every user gets a ledger, starting at zero
	if err := s.repo.EnsureBalance(ctx, user.ID); err != nil {
		return nil, fmt.Errorf("error initializing balance: %w", err)
	}

	if s.welcomeCredits > 0 {
		if _, err := s.Grant(ctx, user.ID, s.welcomeCredits); err != nil {
			return nil, fmt.Errorf("error granting welcome credits: %w", err)
		}
	}

	return &models.AuthResponse{
		Status: "success",
		UserID: user.ID,
		Email:  user.Email,
		Name:   user.Name,
	}, nil
}

func (s *DefaultService) Login(ctx context.Context, req models.LoginRequest) (*models.AuthResponse, error) {
	// Get the user
	user, err := s.repo.GetUserByEmail(ctx, req.Email)
	if err != nil {
		return nil, fmt.Errorf("error getting user: %w", err)
	}

	if user == nil {
		return nil, errors.New("invalid email or password")
	}

	// Verify password
	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(req.Password)); err != nil {
		return nil, errors.New("invalid email or password")
	}

	// Generate JWT token
	token, err := s.generateJWT(user)
	if err != nil {
		return nil, fmt.Errorf("error generating token: %w", err)
	}

	return &models.AuthResponse{
		Status:    "success",
		UserID:    user.ID,
		Token:     token,
		ExpiresIn: int(s.tokenDuration.Seconds()),
	}, nil
}

// Tariff

// CalculateCredits quotes the unlock cost for a project budget. Pure; safe
// to call without auth.
func (s *DefaultService) CalculateCredits(budget *models.BudgetRange) int {
	return tariff.ForBudget(budget)
}

// Credit ledger operations

func (s *DefaultService) GetBalance(ctx context.Context, userID string) (*models.BalanceResponse, error) {
	if err := s.requireUser(ctx, userID); err != nil {
		return nil, err
	}

	// Known users always have a ledger; initialize lazily rather than
	// erroring on first touch.
	if err := s.repo.EnsureBalance(ctx, userID); err != nil {
		return nil, fmt.Errorf("error initializing balance: %w", err)
	}

	balance, err := s.repo.GetBalance(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("error getting balance: %w", err)
	}

	return &models.BalanceResponse{
		Status:  "success",
		UserID:  userID,
		Balance: balance,
	}, nil
}

func (s *DefaultService) ListTransactions(ctx context.Context, userID string) (*models.TransactionsResponse, error) {
	if err := s.requireUser(ctx, userID); err != nil {
		return nil, err
	}

	txns, err := s.repo.ListTransactions(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("error listing transactions: %w", err)
	}

	return &models.TransactionsResponse{
		Status:       "success",
		UserID:       userID,
		Transactions: txns,
	}, nil
}

func (s *DefaultService) Purchase(ctx context.Context, userID string, req models.PurchaseRequest) (*models.PurchaseResponse, error) {
	if err := s.requireUser(ctx, userID); err != nil {
		return nil, err
	}

	pkg, err := s.catalog.PackageByID(req.PackageID)
	if err != nil {
		return nil, err
	}

	if pkg.PremiumOnly {
		eligible, err := s.IsPremiumEligible(ctx, userID)
		if err != nil {
			return nil, err
		}
		if !eligible {
			return nil, fmt.Errorf("package %s requires an active subscription: %w", pkg.ID, models.ErrNotEligible)
		}
	}

	discount, err := s.DiscountFor(ctx, userID)
	if err != nil {
		return nil, err
	}

	if err := s.repo.EnsureBalance(ctx, userID); err != nil {
		return nil, fmt.Errorf("error initializing balance: %w", err)
	}

	txn := &models.CreditTransaction{
		UserID: userID,
		Delta:  pkg.Credits,
		Reason: models.ReasonPurchase,
	}
	if err := s.repo.ApplyTransaction(ctx, txn); err != nil {
		return nil, fmt.Errorf("error applying purchase: %w", err)
	}

	balance, err := s.repo.GetBalance(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("error getting balance: %w", err)
	}

	// The subscription discount changes the money charged by the payment
	// collaborator, never the credit amount.
	pricePaid := pkg.Price * (100 - float64(discount)) / 100

	return &models.PurchaseResponse{
		Status:          "success",
		PricePaid:       pricePaid,
		DiscountApplied: discount,
		Transaction:     txn,
		NewBalance:      balance,
	}, nil
}

// Grant credits a user outside of a purchase (welcome credits, goodwill).
func (s *DefaultService) Grant(ctx context.Context, userID string, credits int) (*models.CreditTransaction, error) {
	if credits <= 0 {
		return nil, fmt.Errorf("grant must be positive, got %d", credits)
	}

	if err := s.repo.EnsureBalance(ctx, userID); err != nil {
		return nil, fmt.Errorf("error initializing balance: %w", err)
	}

	txn := &models.CreditTransaction{
		UserID: userID,
		Delta:  credits,
		Reason: models.ReasonGrant,
	}
	if err := s.repo.ApplyTransaction(ctx, txn); err != nil {
		return nil, fmt.Errorf("error applying grant: %w", err)
	}

	return txn, nil
}

// Unlock entitlement engine

// Unlock grants the user access to a project's contact details, charging
// the tariff cost exactly once per (user, project) pair. Safe to retry and
// safe to call concurrently: losers of the race observe the winner's record
// and are charged nothing.
func (s *DefaultService) Unlock(ctx context.Context, userID, projectID string, budget *models.BudgetRange) (*models.UnlockResponse, error) {
	if err := s.requireUser(ctx, userID); err != nil {
		return nil, err
	}
	if projectID == "" {
		return nil, fmt.Errorf("project id is required: %w", models.ErrNotFound)
	}

	// Fast path: already unlocked, nothing to charge.
	existing, err := s.repo.GetUnlock(ctx, userID, projectID)
	if err != nil {
		return nil, fmt.Errorf("error checking unlock record: %w", err)
	}
	if existing != nil {
		return s.unlockResponse(ctx, userID, projectID, true, 0)
	}

	cost := tariff.ForBudget(budget)

	if err := s.repo.EnsureBalance(ctx, userID); err != nil {
		return nil, fmt.Errorf("error initializing balance: %w", err)
	}

	for attempt := 0; attempt < maxUnlockAttempts; attempt++ {
		record, created, err := s.repo.CreateUnlockWithDebit(ctx, userID, projectID, cost)
		if err != nil {
			if errors.Is(err, models.ErrConcurrencyConflict) {
				continue
			}
			return nil, fmt.Errorf("error unlocking project: %w", err)
		}

		if !created {
			// Someone else paid for this pair first.
			return s.unlockResponse(ctx, userID, projectID, true, 0)
		}
		return s.unlockResponse(ctx, userID, projectID, false, record.CreditsSpent)
	}

	return nil, fmt.Errorf("error unlocking project %s for user %s: retries exhausted", projectID, userID)
}

func (s *DefaultService) unlockResponse(ctx context.Context, userID, projectID string, already bool, charged int) (*models.UnlockResponse, error) {
	balance, err := s.repo.GetBalance(ctx, userID)
	if err != nil && !errors.Is(err, models.ErrNotFound) {
		return nil, fmt.Errorf("error getting balance: %w", err)
	}

	return &models.UnlockResponse{
		Status:          "success",
		ProjectID:       projectID,
		AlreadyUnlocked: already,
		CreditsCharged:  charged,
		NewBalance:      balance,
	}, nil
}

func (s *DefaultService) UnlockStatus(ctx context.Context, userID, projectID string) (*models.UnlockStatusResponse, error) {
	if err := s.requireUser(ctx, userID); err != nil {
		return nil, err
	}

	record, err := s.repo.GetUnlock(ctx, userID, projectID)
	if err != nil {
		return nil, fmt.Errorf("error checking unlock record: %w", err)
	}

	return &models.UnlockStatusResponse{
		Status:    "success",
		ProjectID: projectID,
		Unlocked:  record != nil,
		Record:    record,
	}, nil
}

// RemoveProjectUnlocks is cascade cleanup for a deleted project. No refunds
// are issued; the ledger history stays intact.
func (s *DefaultService) RemoveProjectUnlocks(ctx context.Context, projectID string) (int64, error) {
	deleted, err := s.repo.DeleteProjectUnlocks(ctx, projectID)
	if err != nil {
		return 0, fmt.Errorf("error removing unlock records: %w", err)
	}
	return deleted, nil
}

// Subscription & discount resolution

func (s *DefaultService) SelectSubscription(ctx context.Context, userID string, req models.SelectSubscriptionRequest) (*models.SubscriptionResponse, error) {
	if err := s.requireUser(ctx, userID); err != nil {
		return nil, err
	}

	plan, err := s.catalog.SubscriptionByID(req.SubscriptionID)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	sub := &models.ActiveSubscription{
		UserID:         userID,
		SubscriptionID: plan.ID,
		StartedAt:      now,
		RenewsAt:       renewalDate(now, plan.BillingCycle),
	}

	// Supersedes any previous subscription; discounts never stack.
	if err := s.repo.SetActiveSubscription(ctx, sub); err != nil {
		return nil, fmt.Errorf("error setting subscription: %w", err)
	}

	return &models.SubscriptionResponse{
		Status:         "success",
		Active:         sub,
		Plan:           plan,
		CreditDiscount: plan.CreditDiscount,
	}, nil
}

func (s *DefaultService) GetSubscription(ctx context.Context, userID string) (*models.SubscriptionResponse, error) {
	if err := s.requireUser(ctx, userID); err != nil {
		return nil, err
	}

	sub, err := s.repo.GetActiveSubscription(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("error getting subscription: %w", err)
	}

	resp := &models.SubscriptionResponse{Status: "success"}
	if sub == nil {
		return resp, nil
	}

	resp.Active = sub
	if plan, err := s.catalog.SubscriptionByID(sub.SubscriptionID); err == nil {
		resp.Plan = plan
		resp.CreditDiscount = plan.CreditDiscount
	}
	return resp, nil
}

// DiscountFor resolves the user's active subscription into a credit-package
// discount percentage. No subscription, or a plan that has since left the
// catalog, resolves to zero.
func (s *DefaultService) DiscountFor(ctx context.Context, userID string) (int, error) {
	sub, err := s.repo.GetActiveSubscription(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("error getting subscription: %w", err)
	}
	if sub == nil {
		return 0, nil
	}

	plan, err := s.catalog.SubscriptionByID(sub.SubscriptionID)
	if err != nil {
		return 0, nil
	}
	return plan.CreditDiscount, nil
}

// IsPremiumEligible reports whether any active subscription exists,
// regardless of tier. Gates premium-only packages.
func (s *DefaultService) IsPremiumEligible(ctx context.Context, userID string) (bool, error) {
	sub, err := s.repo.GetActiveSubscription(ctx, userID)
	if err != nil {
		return false, fmt.Errorf("error getting subscription: %w", err)
	}
	return sub != nil, nil
}

// Catalogs

func (s *DefaultService) ListPackages() *models.PackagesResponse {
	return &models.PackagesResponse{
		Status:   "success",
		Packages: s.catalog.Packages(),
	}
}

func (s *DefaultService) ListSubscriptions() *models.SubscriptionsResponse {
	return &models.SubscriptionsResponse{
		Status:        "success",
		Subscriptions: s.catalog.Subscriptions(),
	}
}

// Helper methods

// requireUser distinguishes a truly unknown identity from a known user who
// simply has no ledger rows yet.
func (s *DefaultService) requireUser(ctx context.Context, userID string) error {
	user, err := s.repo.GetUserByID(ctx, userID)
	if err != nil {
		return fmt.Errorf("error getting user: %w", err)
	}
	if user == nil {
		return fmt.Errorf("user %s: %w", userID, models.ErrNotFound)
	}
	return nil
}

func renewalDate(from time.Time, cycle models.BillingCycle) time.Time {
	if cycle == models.BillingYearly {
		return from.AddDate(1, 0, 0)
	}
	return from.AddDate(0, 1, 0)
}

func (s *DefaultService) generateJWT(user *models.User) (string, error) {
	expirationTime := time.Now().Add(s.tokenDuration)

	claims := jwt.MapClaims{
		"sub": user.ID, // subject
		"exp": expirationTime.Unix(),
		"iat": time.Now().Unix(), // issued at
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.jwtSecret)
}
