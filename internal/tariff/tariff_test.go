package tariff

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/tradiehub/credits-server/internal/models"
)

func TestForAmountStaircase(t *testing.T) {
	tests := []struct {
		amount float64
		want   int
	}{
		{0, 1},
		{1, 1},
		{249.99, 1},
		{250, 1},
		{250.01, 2},
		{400, 2},
		{500, 2},
		{500.01, 3},
		{620, 3},
		{750, 3},
		{1000, 4},
		{10000, 40},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, ForAmount(tt.amount), "amount %v", tt.amount)
	}
}

func TestForAmountFloor(t *testing.T) {
	assert.Equal(t, 1, ForAmount(-100))
	assert.Equal(t, 1, ForAmount(0))
	assert.Equal(t, 1, ForAmount(math.NaN()))
	assert.Equal(t, 1, ForAmount(math.Inf(1)))
	assert.Equal(t, 1, ForAmount(math.Inf(-1)))
}

func TestForAmountMonotonic(t *testing.T) {
	prev := 0
	for amount := 0.0; amount <= 5000; amount += 50 {
		cost := ForAmount(amount)
		assert.GreaterOrEqual(t, cost, prev, "cost must never decrease (amount %v)", amount)
		assert.GreaterOrEqual(t, cost, 1)
		prev = cost
	}
}

func TestForAmountSameBracketSameCost(t *testing.T) {
	// Everything strictly inside one 250-wide bracket costs the same.
	for _, base := range []float64{250, 500, 750, 1000} {
		lo := ForAmount(base - 249)
		hi := ForAmount(base)
		assert.Equal(t, lo, hi, "bracket ending at %v", base)
	}
}

func TestForBudget(t *testing.T) {
	assert.Equal(t, 1, ForBudget(nil), "absent budget prices at the floor")

	// Upper bound is used, never the midpoint or minimum.
	b := &models.BudgetRange{Min: 400, Max: 620}
	assert.Equal(t, 3, ForBudget(b))

	assert.Equal(t, 1, ForBudget(&models.BudgetRange{Min: 0, Max: 0}))
	assert.Equal(t, 2, ForBudget(&models.BudgetRange{Min: 100, Max: 300}))
}
