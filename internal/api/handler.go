package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/tradiehub/credits-server/internal/models"
	"github.com/tradiehub/credits-server/internal/service"
)

// Handler wires the credit engine service to HTTP routes
type Handler struct {
	svc service.Service
}

// NewHandler creates a new API handler
func NewHandler(svc service.Service) *Handler {
	return &Handler{svc: svc}
}

// SetupRoutes registers all API routes on the router
func (h *Handler) SetupRoutes(router *gin.Engine) {
	router.GET("/metrics", MetricsHandler())

	api := router.Group("/api")
	{
		auth := api.Group("/auth")
		{
			auth.POST("/signup", h.SignUp)
			auth.POST("/login", h.Login)
		}

		// Pure quote and read-only catalogs need no auth
		api.POST("/tariff/quote", h.TariffQuote)
		api.GET("/catalog/packages", h.ListPackages)
		api.GET("/catalog/subscriptions", h.ListSubscriptions)

		protected := api.Group("")
		protected.Use(AuthMiddleware())
		{
			protected.GET("/credits/balance", h.GetBalance)
			protected.GET("/credits/transactions", h.ListTransactions)
			protected.POST("/credits/purchase", h.Purchase)

			protected.POST("/projects/:projectId/unlock", h.Unlock)
			protected.GET("/projects/:projectId/unlock", h.UnlockStatus)

			protected.PUT("/subscription", h.SelectSubscription)
			protected.GET("/subscription", h.GetSubscription)
		}
	}
}

// Auth handlers

func (h *Handler) SignUp(c *gin.Context) {
	var req models.SignUpRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	resp, err := h.svc.SignUp(c.Request.Context(), req)
	if err != nil {
		if errors.Is(err, service.ErrEmailTaken) {
			c.JSON(http.StatusConflict, models.ErrorResponse{
				Status:  "error",
				Code:    "EMAIL_TAKEN",
				Message: err.Error(),
			})
			return
		}
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, resp)
}

func (h *Handler) Login(c *gin.Context) {
	var req models.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	resp, err := h.svc.Login(c.Request.Context(), req)
	if err != nil {
		c.JSON(http.StatusUnauthorized, models.ErrorResponse{
			Status:  "error",
			Code:    "UNAUTHORIZED",
			Message: err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, resp)
}

// Tariff handler

func (h *Handler) TariffQuote(c *gin.Context) {
	var req models.TariffQuoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	budget := req.Budget
	if budget == nil && req.Amount != nil {
		budget = &models.BudgetRange{Min: *req.Amount, Max: *req.Amount}
	}

	c.JSON(http.StatusOK, models.TariffQuoteResponse{
		Status:  "success",
		Credits: h.svc.CalculateCredits(budget),
	})
}

// Catalog handlers

func (h *Handler) ListPackages(c *gin.Context) {
	c.JSON(http.StatusOK, h.svc.ListPackages())
}

func (h *Handler) ListSubscriptions(c *gin.Context) {
	c.JSON(http.StatusOK, h.svc.ListSubscriptions())
}

// Credit ledger handlers

func (h *Handler) GetBalance(c *gin.Context) {
	resp, err := h.svc.GetBalance(c.Request.Context(), c.GetString("userId"))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

func (h *Handler) ListTransactions(c *gin.Context) {
	resp, err := h.svc.ListTransactions(c.Request.Context(), c.GetString("userId"))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

func (h *Handler) Purchase(c *gin.Context) {
	var req models.PurchaseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	resp, err := h.svc.Purchase(c.Request.Context(), c.GetString("userId"), req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// Unlock handlers

func (h *Handler) Unlock(c *gin.Context) {
	var req models.UnlockRequest
	// Body is optional: projects without a stated budget price at the floor
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err)
			return
		}
	}

	resp, err := h.svc.Unlock(c.Request.Context(), c.GetString("userId"), c.Param("projectId"), req.Budget)
	if err != nil {
		if errors.Is(err, models.ErrInsufficientCredits) {
			unlockOutcomes.WithLabelValues(unlockOutcomeInsufficient).Inc()
		} else {
			unlockOutcomes.WithLabelValues(unlockOutcomeError).Inc()
		}
		respondError(c, err)
		return
	}

	if resp.AlreadyUnlocked {
		unlockOutcomes.WithLabelValues(unlockOutcomeAlready).Inc()
	} else {
		unlockOutcomes.WithLabelValues(unlockOutcomeGranted).Inc()
	}
	c.JSON(http.StatusOK, resp)
}

func (h *Handler) UnlockStatus(c *gin.Context) {
	resp, err := h.svc.UnlockStatus(c.Request.Context(), c.GetString("userId"), c.Param("projectId"))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// Subscription handlers

func (h *Handler) SelectSubscription(c *gin.Context) {
	var req models.SelectSubscriptionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	resp, err := h.svc.SelectSubscription(c.Request.Context(), c.GetString("userId"), req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

func (h *Handler) GetSubscription(c *gin.Context) {
	resp, err := h.svc.GetSubscription(c.Request.Context(), c.GetString("userId"))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// Error mapping

func badRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, models.ErrorResponse{
		Status:  "error",
		Code:    "INVALID_REQUEST",
		Message: err.Error(),
	})
}

// respondError maps the engine's error taxonomy onto HTTP statuses.
// ErrConcurrencyConflict never reaches here in normal operation; the
// service retries it internally.
func respondError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, models.ErrInsufficientCredits):
		c.JSON(http.StatusPaymentRequired, models.ErrorResponse{
			Status:  "error",
			Code:    "INSUFFICIENT_CREDITS",
			Message: err.Error(),
		})
	case errors.Is(err, models.ErrNotEligible):
		c.JSON(http.StatusForbidden, models.ErrorResponse{
			Status:  "error",
			Code:    "NOT_ELIGIBLE",
			Message: err.Error(),
		})
	case errors.Is(err, models.ErrNotFound):
		c.JSON(http.StatusNotFound, models.ErrorResponse{
			Status:  "error",
			Code:    "NOT_FOUND",
			Message: err.Error(),
		})
	default:
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{
			Status:  "error",
			Code:    "INTERNAL_ERROR",
			Message: err.Error(),
		})
	}
}
