// Package catalog holds the immutable reference data: credit packages and
// subscription plans. Catalogs are loaded once at process start, either from
// the built-in defaults or from a TOML file, and are never mutated afterwards.
package catalog

import (
	"fmt"

	"github.com/BurntSushi/toml"
	"github.com/tradiehub/credits-server/internal/models"
)

// Catalog is the read-only package and subscription reference data.
type Catalog struct {
	packages      []models.CreditPackage
	subscriptions []models.Subscription
	packageIndex  map[string]int
	subIndex      map[string]int
}

type catalogFile struct {
	Packages      []models.CreditPackage `toml:"packages"`
	Subscriptions []models.Subscription  `toml:"subscriptions"`
}

// Default returns the built-in catalog shipped with the server.
func Default() *Catalog {
	c, err := build(defaultPackages(), defaultSubscriptions())
	if err != nil {
		// Built-in data is validated by tests; a bad default is a bug.
		panic(err)
	}
	return c
}

// Load reads a catalog from a TOML file, replacing the defaults entirely.
func Load(path string) (*Catalog, error) {
	var f catalogFile
	if _, err := toml.DecodeFile(path, &f); err != nil {
		return nil, fmt.Errorf("error reading catalog file: %w", err)
	}
	return build(f.Packages, f.Subscriptions)
}

func build(packages []models.CreditPackage, subscriptions []models.Subscription) (*Catalog, error) {
	c := &Catalog{
		packages:      packages,
		subscriptions: subscriptions,
		packageIndex:  make(map[string]int, len(packages)),
		subIndex:      make(map[string]int, len(subscriptions)),
	}

	for i, p := range packages {
		if p.ID == "" {
			return nil, fmt.Errorf("package %d has no id", i)
		}
		if p.Credits <= 0 {
			return nil, fmt.Errorf("package %q must grant at least one credit", p.ID)
		}
		if p.Price < 0 {
			return nil, fmt.Errorf("package %q has a negative price", p.ID)
		}
		if p.DiscountPercent < 0 || p.DiscountPercent > 100 {
			return nil, fmt.Errorf("package %q discount must be 0..100", p.ID)
		}
		if _, exists := c.packageIndex[p.ID]; exists {
			return nil, fmt.Errorf("duplicate package id %q", p.ID)
		}
		c.packageIndex[p.ID] = i
	}

	for i, s := range subscriptions {
		if s.ID == "" {
			return nil, fmt.Errorf("subscription %d has no id", i)
		}
		if s.BillingCycle != models.BillingMonthly && s.BillingCycle != models.BillingYearly {
			return nil, fmt.Errorf("subscription %q has unknown billing cycle %q", s.ID, s.BillingCycle)
		}
		if s.CreditDiscount < 0 || s.CreditDiscount > 100 {
			return nil, fmt.Errorf("subscription %q credit discount must be 0..100", s.ID)
		}
		if _, exists := c.subIndex[s.ID]; exists {
			return nil, fmt.Errorf("duplicate subscription id %q", s.ID)
		}
		c.subIndex[s.ID] = i
	}

	return c, nil
}

// Packages returns the credit packages in catalog order.
func (c *Catalog) Packages() []models.CreditPackage {
	out := make([]models.CreditPackage, len(c.packages))
	copy(out, c.packages)
	return out
}

// Subscriptions returns the subscription plans in catalog order.
func (c *Catalog) Subscriptions() []models.Subscription {
	out := make([]models.Subscription, len(c.subscriptions))
	copy(out, c.subscriptions)
	return out
}

// PackageByID looks up a credit package.
func (c *Catalog) PackageByID(id string) (*models.CreditPackage, error) {
	i, ok := c.packageIndex[id]
	if !ok {
		return nil, fmt.Errorf("package %q: %w", id, models.ErrNotFound)
	}
	p := c.packages[i]
	return &p, nil
}

// SubscriptionByID looks up a subscription plan.
func (c *Catalog) SubscriptionByID(id string) (*models.Subscription, error) {
	i, ok := c.subIndex[id]
	if !ok {
		return nil, fmt.Errorf("subscription %q: %w", id, models.ErrNotFound)
	}
	s := c.subscriptions[i]
	return &s, nil
}

func defaultPackages() []models.CreditPackage {
	return []models.CreditPackage{
		{ID: "starter", Name: "Starter", Credits: 10, Price: 14.99},
		{ID: "standard", Name: "Standard", Credits: 30, Price: 39.99, DiscountPercent: 10},
		{ID: "pro", Name: "Pro", Credits: 75, Price: 89.99, DiscountPercent: 20},
		{ID: "bulk", Name: "Bulk", Credits: 200, Price: 199.99, DiscountPercent: 30, PremiumOnly: true},
	}
}

func defaultSubscriptions() []models.Subscription {
	return []models.Subscription{
		{
			ID:           "basic-monthly",
			Name:         "Basic",
			Price:        9.99,
			BillingCycle: models.BillingMonthly,
			Features: []string{
				"Priority listing in search results",
				"5% discount on credit packages",
			},
			CreditDiscount: 5,
		},
		{
			ID:           "plus-monthly",
			Name:         "Plus",
			Price:        24.99,
			BillingCycle: models.BillingMonthly,
			Features: []string{
				"Priority listing in search results",
				"Profile badge",
				"15% discount on credit packages",
				"Access to bulk credit packages",
			},
			CreditDiscount: 15,
		},
		{
			ID:           "plus-yearly",
			Name:         "Plus (annual)",
			Price:        249.99,
			BillingCycle: models.BillingYearly,
			Features: []string{
				"Priority listing in search results",
				"Profile badge",
				"25% discount on credit packages",
				"Access to bulk credit packages",
			},
			CreditDiscount: 25,
		},
	}
}
