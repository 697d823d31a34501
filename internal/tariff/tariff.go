// Package tariff prices project unlocks: the credit cost is a staircase
// function of the project's budget, one credit per started 250 of budget.
package tariff

import (
	"math"

	"github.com/tradiehub/credits-server/internal/models"
)

// BracketSize is the budget width covered by a single credit.
const BracketSize = 250

// MinimumCost is charged when a project has no usable budget at all.
const MinimumCost = 1

// ForAmount returns the credit cost for a plain numeric budget.
// Non-positive or non-finite amounts price at the floor.
func ForAmount(amount float64) int {
	if math.IsNaN(amount) || math.IsInf(amount, 0) || amount <= 0 {
		return MinimumCost
	}

	cost := int(math.Ceil(amount / BracketSize))
	if cost < MinimumCost {
		return MinimumCost
	}
	return cost
}

// ForBudget returns the credit cost for a budget range. A nil budget means
// the project never stated one. Ranges always price off the upper bound —
// the worst case for the business user.
func ForBudget(b *models.BudgetRange) int {
	if b == nil {
		return MinimumCost
	}
	return ForAmount(b.Max)
}
