package models

// Request models
type SignUpRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=8"`
	Name     string `json:"name" binding:"required"`
}

type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// TariffQuoteRequest carries either a full budget range or a single amount.
// Both absent means "project has no stated budget" and prices at the floor.
type TariffQuoteRequest struct {
	Budget *BudgetRange `json:"budget,omitempty"`
	Amount *float64     `json:"amount,omitempty"`
}

type UnlockRequest struct {
	Budget *BudgetRange `json:"budget,omitempty"`
}

type PurchaseRequest struct {
	PackageID string `json:"packageId" binding:"required"`
}

type SelectSubscriptionRequest struct {
	SubscriptionID string `json:"subscriptionId" binding:"required"`
}

// Response models
type AuthResponse struct {
	Status    string `json:"status"`
	UserID    string `json:"userId,omitempty"`
	Email     string `json:"email,omitempty"`
	Name      string `json:"name,omitempty"`
	Token     string `json:"token,omitempty"`
	ExpiresIn int    `json:"expiresIn,omitempty"`
}

type TariffQuoteResponse struct {
	Status  string `json:"status"`
	Credits int    `json:"credits"`
}

type BalanceResponse struct {
	Status  string `json:"status"`
	UserID  string `json:"userId"`
	Balance int    `json:"balance"`
}

type TransactionsResponse struct {
	Status       string              `json:"status"`
	UserID       string              `json:"userId"`
	Transactions []CreditTransaction `json:"transactions"`
}

type PurchaseResponse struct {
	Status string `json:"status"`
	// PricePaid is the package price after the subscription discount. The
	// payment collaborator charges it; the credits land here regardless.
	PricePaid       float64            `json:"pricePaid"`
	DiscountApplied int                `json:"discountApplied"`
	Transaction     *CreditTransaction `json:"transaction"`
	NewBalance      int                `json:"newBalance"`
}

type UnlockResponse struct {
	Status          string `json:"status"`
	ProjectID       string `json:"projectId"`
	AlreadyUnlocked bool   `json:"alreadyUnlocked"`
	CreditsCharged  int    `json:"creditsCharged"`
	NewBalance      int    `json:"newBalance"`
}

type UnlockStatusResponse struct {
	Status    string        `json:"status"`
	ProjectID string        `json:"projectId"`
	Unlocked  bool          `json:"unlocked"`
	Record    *UnlockRecord `json:"record,omitempty"`
}

type SubscriptionResponse struct {
	Status         string              `json:"status"`
	Active         *ActiveSubscription `json:"active,omitempty"`
	Plan           *Subscription       `json:"plan,omitempty"`
	CreditDiscount int                 `json:"creditDiscount"`
}

type PackagesResponse struct {
	Status   string          `json:"status"`
	Packages []CreditPackage `json:"packages"`
}

type SubscriptionsResponse struct {
	Status        string         `json:"status"`
	Subscriptions []Subscription `json:"subscriptions"`
}

type ErrorResponse struct {
	Status  string `json:"status"`
	Code    string `json:"code"`
	Message string `json:"message"`
}
