package models

import (
	"time"
)

// User represents a registered business user (tradesperson account)
type User struct {
	ID        string    `db:"id" json:"id"`
	Email     string    `db:"email" json:"email"`
	Name      string    `db:"name" json:"name"`
	Password  string    `db:"password" json:"-"` // Password hash, not returned in JSON
	CreatedAt time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt time.Time `db:"updated_at" json:"updatedAt"`
}

// BudgetRange is a project's stated budget. Pricing always uses the upper
// bound: quoting off the worst case is deliberate policy, not an accident.
type BudgetRange struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

// TransactionReason is the business reason for a credit movement.
type TransactionReason string

const (
	ReasonPurchase TransactionReason = "purchase"
	ReasonUnlock   TransactionReason = "unlock"
	ReasonRefund   TransactionReason = "refund"
	ReasonGrant    TransactionReason = "grant"
)

// CreditTransaction is one append-only entry in a user's credit ledger.
// A user's balance is always the sum of their deltas.
type CreditTransaction struct {
	ID               string            `db:"id" json:"id"`
	UserID           string            `db:"user_id" json:"userId"`
	Delta            int               `db:"delta" json:"delta"`
	Reason           TransactionReason `db:"reason" json:"reason"`
	RelatedProjectID *string           `db:"related_project_id" json:"relatedProjectId,omitempty"`
	CreatedAt        time.Time         `db:"created_at" json:"createdAt"`
}

// CreditBalance is the denormalized balance for a user, kept in lockstep
// with the transaction log.
type CreditBalance struct {
	UserID    string    `db:"user_id" json:"userId"`
	Balance   int       `db:"balance" json:"balance"`
	UpdatedAt time.Time `db:"updated_at" json:"updatedAt"`
}

// UnlockRecord is the durable fact that a user has paid to see a project's
// contact details. At most one record ever exists per (user, project) pair.
type UnlockRecord struct {
	UserID       string    `db:"user_id" json:"userId"`
	ProjectID    string    `db:"project_id" json:"projectId"`
	CreditsSpent int       `db:"credits_spent" json:"creditsSpent"`
	CreatedAt    time.Time `db:"created_at" json:"createdAt"`
}

// UnlockResult is what the entitlement engine hands back to the caller.
// AlreadyUnlocked with zero charge means the caller raced or retried; the
// contact details are visible either way.
type UnlockResult struct {
	AlreadyUnlocked bool `json:"alreadyUnlocked"`
	CreditsCharged  int  `json:"creditsCharged"`
}

// ActiveSubscription is the per-user subscription state. Absence means no
// discount applies.
type ActiveSubscription struct {
	UserID         string    `db:"user_id" json:"userId"`
	SubscriptionID string    `db:"subscription_id" json:"subscriptionId"`
	StartedAt      time.Time `db:"started_at" json:"startedAt"`
	RenewsAt       time.Time `db:"renews_at" json:"renewsAt"`
}

// CreditPackage is a purchasable bundle of credits. Catalog data, never
// mutated at runtime.
type CreditPackage struct {
	ID              string  `toml:"id" json:"id"`
	Name            string  `toml:"name" json:"name"`
	Credits         int     `toml:"credits" json:"credits"`
	Price           float64 `toml:"price" json:"price"`
	DiscountPercent int     `toml:"discount_percent" json:"discountPercent,omitempty"`
	PremiumOnly     bool    `toml:"premium_only" json:"premiumOnly,omitempty"`
}

// BillingCycle is a subscription's renewal period.
type BillingCycle string

const (
	BillingMonthly BillingCycle = "monthly"
	BillingYearly  BillingCycle = "yearly"
)

// Subscription is a purchasable plan. Catalog data, never mutated at runtime.
type Subscription struct {
	ID             string       `toml:"id" json:"id"`
	Name           string       `toml:"name" json:"name"`
	Price          float64      `toml:"price" json:"price"`
	BillingCycle   BillingCycle `toml:"billing_cycle" json:"billingCycle"`
	Features       []string     `toml:"features" json:"features"`
	CreditDiscount int          `toml:"credit_discount" json:"creditDiscount"`
}
