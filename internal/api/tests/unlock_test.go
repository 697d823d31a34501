package api_test

import (
	"encoding/json"
	"net/http"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tradiehub/credits-server/internal/api/testutils"
	"github.com/tradiehub/credits-server/internal/models"
)

func TestUnlockProject(t *testing.T) {
	testCtx := testutils.SetupTestContext(t)
	testutils.FundTestUser(t, testCtx, 5)

	req := models.UnlockRequest{Budget: &models.BudgetRange{Min: 400, Max: 620}}

	w := testutils.PerformRequest(
		testCtx.Router,
		http.MethodPost,
		"/api/projects/project-1/unlock",
		req,
		testutils.AuthHeaders(testCtx.TestUserJWT),
	)

	assert.Equal(t, http.StatusOK, w.Code)

	var resp models.UnlockResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.False(t, resp.AlreadyUnlocked)
	assert.Equal(t, 3, resp.CreditsCharged)
	assert.Equal(t, 2, resp.NewBalance)

	// Status endpoint reflects the new entitlement
	w = testutils.PerformRequest(
		testCtx.Router,
		http.MethodGet,
		"/api/projects/project-1/unlock",
		nil,
		testutils.AuthHeaders(testCtx.TestUserJWT),
	)

	assert.Equal(t, http.StatusOK, w.Code)

	var status models.UnlockStatusResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &status))
	assert.True(t, status.Unlocked)
	require.NotNil(t, status.Record)
	assert.Equal(t, 3, status.Record.CreditsSpent)
}

func TestUnlockIsIdempotentOverHTTP(t *testing.T) {
	testCtx := testutils.SetupTestContext(t)
	testutils.FundTestUser(t, testCtx, 10)

	req := models.UnlockRequest{Budget: &models.BudgetRange{Min: 100, Max: 500}}

	// A rapid double-tap sends the same request twice
	for i, wantCharged := range []int{2, 0} {
		w := testutils.PerformRequest(
			testCtx.Router,
			http.MethodPost,
			"/api/projects/project-2/unlock",
			req,
			testutils.AuthHeaders(testCtx.TestUserJWT),
		)

		assert.Equal(t, http.StatusOK, w.Code)

		var resp models.UnlockResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, wantCharged, resp.CreditsCharged, "request %d", i)
		assert.Equal(t, i > 0, resp.AlreadyUnlocked, "request %d", i)
	}

	// Only one debit happened
	w := testutils.PerformRequest(
		testCtx.Router,
		http.MethodGet,
		"/api/credits/balance",
		nil,
		testutils.AuthHeaders(testCtx.TestUserJWT),
	)

	var balance models.BalanceResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &balance))
	assert.Equal(t, 8, balance.Balance)
}

func TestConcurrentUnlockRequests(t *testing.T) {
	testCtx := testutils.SetupTestContext(t)
	testutils.FundTestUser(t, testCtx, 50)

	req := models.UnlockRequest{Budget: &models.BudgetRange{Min: 400, Max: 620}}

	const numRequests = 10
	responses := make(chan models.UnlockResponse, numRequests)
	var wg sync.WaitGroup

	for i := 0; i < numRequests; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()

			w := testutils.PerformRequest(
				testCtx.Router,
				http.MethodPost,
				"/api/projects/project-race/unlock",
				req,
				testutils.AuthHeaders(testCtx.TestUserJWT),
			)

			assert.Equal(t, http.StatusOK, w.Code)

			var resp models.UnlockResponse
			if err := json.Unmarshal(w.Body.Bytes(), &resp); err == nil {
				responses <- resp
			}
		}()
	}

	wg.Wait()
	close(responses)

	winners, totalCharged := 0, 0
	for resp := range responses {
		if !resp.AlreadyUnlocked {
			winners++
		}
		totalCharged += resp.CreditsCharged
	}

	assert.Equal(t, 1, winners, "exactly one request must be charged")
	assert.Equal(t, 3, totalCharged)

	w := testutils.PerformRequest(
		testCtx.Router,
		http.MethodGet,
		"/api/credits/balance",
		nil,
		testutils.AuthHeaders(testCtx.TestUserJWT),
	)

	var balance models.BalanceResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &balance))
	assert.Equal(t, 47, balance.Balance)
}

func TestUnlockInsufficientCreditsReturns402(t *testing.T) {
	testCtx := testutils.SetupTestContext(t)
	testutils.FundTestUser(t, testCtx, 2)

	req := models.UnlockRequest{Budget: &models.BudgetRange{Min: 400, Max: 620}}

	w := testutils.PerformRequest(
		testCtx.Router,
		http.MethodPost,
		"/api/projects/project-3/unlock",
		req,
		testutils.AuthHeaders(testCtx.TestUserJWT),
	)

	assert.Equal(t, http.StatusPaymentRequired, w.Code)

	var errResp models.ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &errResp))
	assert.Equal(t, "INSUFFICIENT_CREDITS", errResp.Code)

	// Balance untouched, no entitlement created
	w = testutils.PerformRequest(
		testCtx.Router,
		http.MethodGet,
		"/api/credits/balance",
		nil,
		testutils.AuthHeaders(testCtx.TestUserJWT),
	)

	var balance models.BalanceResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &balance))
	assert.Equal(t, 2, balance.Balance)

	w = testutils.PerformRequest(
		testCtx.Router,
		http.MethodGet,
		"/api/projects/project-3/unlock",
		nil,
		testutils.AuthHeaders(testCtx.TestUserJWT),
	)

	var status models.UnlockStatusResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &status))
	assert.False(t, status.Unlocked)
}

func TestUnlockWithoutBudgetBody(t *testing.T) {
	testCtx := testutils.SetupTestContext(t)
	testutils.FundTestUser(t, testCtx, 1)

	// No body at all: the project has no stated budget, floor price applies
	w := testutils.PerformRequest(
		testCtx.Router,
		http.MethodPost,
		"/api/projects/project-nobudget/unlock",
		nil,
		testutils.AuthHeaders(testCtx.TestUserJWT),
	)

	assert.Equal(t, http.StatusOK, w.Code)

	var resp models.UnlockResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, 1, resp.CreditsCharged)
	assert.Equal(t, 0, resp.NewBalance)
}
