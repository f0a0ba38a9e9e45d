package handler

import (
	"encoding/json"
	"errors"
	"math"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/davincilab-soft/kity-chatgpt-navigator/internal/config"
	"github.com/davincilab-soft/kity-chatgpt-navigator/internal/domain"
	"github.com/davincilab-soft/kity-chatgpt-navigator/internal/http/middleware"
	"github.com/davincilab-soft/kity-chatgpt-navigator/internal/payment"
	"github.com/davincilab-soft/kity-chatgpt-navigator/internal/service"
)

// UserHandler serves the registry and donation endpoints.
type UserHandler struct {
	Users        *service.UserService
	Checkout     payment.CheckoutProvider
	donationLink string
	currency     string
}

// NewUserHandler creates the handler set.
func NewUserHandler(users *service.UserService, checkout payment.CheckoutProvider, cfg config.Config) *UserHandler {
	return &UserHandler{
		Users:        users,
		Checkout:     checkout,
		donationLink: cfg.StripeDonationLink,
		currency:     cfg.StripeCurrency,
	}
}

type upsertRequest struct {
	Email                      string  `json:"email"`
	Name                       *string `json:"name"`
	Status                     *string `json:"status"`
	TrialStartedAt             *string `json:"trialStartedAt"`
	TrialStartedAtSnake        *string `json:"trial_started_at"`
	SubscriptionStartedAt      *string `json:"subscriptionStartedAt"`
	SubscriptionStartedAtSnake *string `json:"subscription_started_at"`
}

// Upsert creates or updates the user for the posted email. 201 on create,
// 200 on update, 400 with the allowed-status list on validation failure.
func (h *UserHandler) Upsert(c *gin.Context) {
	var req upsertRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Email is required", "allowedStatuses": domain.AllowedStatuses()})
		return
	}

	user, created, err := h.Users.Upsert(c.Request.Context(), service.UpsertInput{
		Email:                 req.Email,
		Name:                  req.Name,
		Status:                req.Status,
		TrialStartedAt:        firstNonNil(req.TrialStartedAt, req.TrialStartedAtSnake),
		SubscriptionStartedAt: firstNonNil(req.SubscriptionStartedAt, req.SubscriptionStartedAtSnake),
	})
	if err != nil {
		var validationErr *domain.ValidationError
		if errors.As(err, &validationErr) {
			c.JSON(http.StatusBadRequest, gin.H{"error": validationErr.Message, "allowedStatuses": domain.AllowedStatuses()})
			return
		}
		zap.L().Error("user upsert failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal error"})
		return
	}

	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	c.JSON(status, gin.H{"user": user, "created": created})
}

// List returns every user, newest first.
func (h *UserHandler) List(c *gin.Context) {
	users, err := h.Users.List(c.Request.Context())
	if err != nil {
		zap.L().Error("user list failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal error"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"users": users})
}

// Me returns the user resolved from the bearer token.
func (h *UserHandler) Me(c *gin.Context) {
	user, ok := middleware.GetCurrentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid token"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": user})
}

// Health reports liveness.
func (h *UserHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// DonationLink returns the static donation URL when configured.
func (h *UserHandler) DonationLink(c *gin.Context) {
	if h.donationLink == "" {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Donation link not configured"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"url": h.donationLink})
}

// DonationCheckout creates a checkout session for the posted amount.
func (h *UserHandler) DonationCheckout(c *gin.Context) {
	if h.Checkout == nil || !h.Checkout.Configured() {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Stripe is not configured"})
		return
	}

	var req struct {
		Amount json.RawMessage `json:"amount"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid amount"})
		return
	}

	amount, err := parseAmount(req.Amount)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid amount"})
		return
	}
	if amount <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Amount must be greater than zero"})
		return
	}

	// Smallest currency unit, rounded to whole cents.
	cents := int64(math.Round(amount * 100))

	url, err := h.Checkout.CreateSession(c.Request.Context(), cents, h.currency)
	if err != nil {
		zap.L().Error("checkout session failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"url": url})
}

// parseAmount accepts a JSON number or a numeric string.
func parseAmount(raw json.RawMessage) (float64, error) {
	if len(raw) == 0 {
		return 0, errors.New("amount missing")
	}
	text := strings.TrimSpace(string(raw))
	text = strings.Trim(text, `"`)
	return strconv.ParseFloat(text, 64)
}

func firstNonNil(values ...*string) *string {
	for _, v := range values {
		if v != nil {
			return v
		}
	}
	return nil
}
