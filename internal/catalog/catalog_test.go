package catalog

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tradiehub/credits-server/internal/models"
)

func TestDefaultCatalog(t *testing.T) {
	c := Default()

	packages := c.Packages()
	require.NotEmpty(t, packages)
	for _, p := range packages {
		assert.NotEmpty(t, p.ID)
		assert.Greater(t, p.Credits, 0)
		assert.GreaterOrEqual(t, p.Price, 0.0)
	}

	subs := c.Subscriptions()
	require.NotEmpty(t, subs)
	for _, s := range subs {
		assert.NotEmpty(t, s.ID)
		assert.GreaterOrEqual(t, s.CreditDiscount, 0)
		assert.LessOrEqual(t, s.CreditDiscount, 100)
	}
}

func TestCatalogOrderIsStable(t *testing.T) {
	c := Default()

	first := c.Packages()
	second := c.Packages()
	assert.Equal(t, first, second)

	// Returned slices are copies; callers must not be able to mutate the catalog.
	first[0].Credits = 9999
	assert.NotEqual(t, first[0].Credits, c.Packages()[0].Credits)
}

func TestPackageByID(t *testing.T) {
	c := Default()

	p, err := c.PackageByID("starter")
	require.NoError(t, err)
	assert.Equal(t, "starter", p.ID)

	_, err = c.PackageByID("no-such-package")
	assert.True(t, errors.Is(err, models.ErrNotFound))
}

func TestSubscriptionByID(t *testing.T) {
	c := Default()

	s, err := c.SubscriptionByID("plus-monthly")
	require.NoError(t, err)
	assert.Equal(t, 15, s.CreditDiscount)

	_, err = c.SubscriptionByID("no-such-plan")
	assert.True(t, errors.Is(err, models.ErrNotFound))
}

func TestLoadFromTOML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "catalog.toml")

	data := `
[[packages]]
id = "mini"
name = "Mini"
credits = 5
price = 7.5

[[packages]]
id = "mega"
name = "Mega"
credits = 500
price = 450.0
discount_percent = 40
premium_only = true

[[subscriptions]]
id = "gold"
name = "Gold"
price = 19.99
billing_cycle = "monthly"
features = ["Everything"]
credit_discount = 20
`
	require.NoError(t, os.WriteFile(path, []byte(data), 0o644))

	c, err := Load(path)
	require.NoError(t, err)

	packages := c.Packages()
	require.Len(t, packages, 2)
	assert.Equal(t, "mini", packages[0].ID)
	assert.Equal(t, "mega", packages[1].ID)
	assert.True(t, packages[1].PremiumOnly)

	s, err := c.SubscriptionByID("gold")
	require.NoError(t, err)
	assert.Equal(t, models.BillingMonthly, s.BillingCycle)
}

func TestLoadRejectsBadData(t *testing.T) {
	dir := t.TempDir()

	cases := map[string]string{
		"zero credits": `
[[packages]]
id = "bad"
name = "Bad"
credits = 0
price = 1.0
`,
		"duplicate id": `
[[packages]]
id = "dup"
name = "One"
credits = 1
price = 1.0

[[packages]]
id = "dup"
name = "Two"
credits = 2
price = 2.0
`,
		"bad billing cycle": `
[[subscriptions]]
id = "weird"
name = "Weird"
price = 1.0
billing_cycle = "weekly"
credit_discount = 0
`,
	}

	for name, data := range cases {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(dir, "bad.toml")
			require.NoError(t, os.WriteFile(path, []byte(data), 0o644))

			_, err := Load(path)
			assert.Error(t, err)
		})
	}
}
