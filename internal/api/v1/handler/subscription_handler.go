package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"chatpro/internal/api/v1/dto"
	"chatpro/internal/middleware"
	"chatpro/internal/model"
	"chatpro/internal/service"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
)

// BillingSessionService creates hosted Stripe pages.
type BillingSessionService interface {
	CreateCheckoutSession(ctx context.Context, userID, plan string) (string, error)
	CreatePortalSession(ctx context.Context, userID string) (string, error)
}

// SubscriptionHandler handles subscription-related endpoints.
type SubscriptionHandler struct {
	billing    BillingSessionService
	revenueCat service.RevenueCatService
	validate   *validator.Validate
	logger     zerolog.Logger
}

// NewSubscriptionHandler creates a new SubscriptionHandler.
func NewSubscriptionHandler(billing BillingSessionService, revenueCat service.RevenueCatService, v *validator.Validate, logger zerolog.Logger) *SubscriptionHandler {
	return &SubscriptionHandler{billing: billing, revenueCat: revenueCat, validate: v, logger: logger}
}

// RegisterRoutes registers the subscription endpoints.
func (h *SubscriptionHandler) RegisterRoutes(mux *http.ServeMux, authMiddleware func(http.Handler) http.Handler) {
	mux.Handle("POST /subscriptions/checkout", authMiddleware(http.HandlerFunc(h.Checkout)))
	mux.Handle("GET /subscriptions/portal", authMiddleware(http.HandlerFunc(h.Portal)))
	mux.Handle("POST /subscriptions/mobile/sync", authMiddleware(http.HandlerFunc(h.MobileSync)))
}

// Checkout godoc
// @Summary Initiate a Stripe Checkout session for plan upgrade
// @Description Creates a Stripe Checkout session and returns its URL.
// @Tags subscriptions
// @Accept json
// @Produce json
// @Param subscription body dto.SubscriptionCheckoutRequest true "Subscription checkout request"
// @Success 200 {object} dto.URLResponse "URL of the Stripe Checkout session"
// @Failure 400 {string} string "invalid request payload"
// @Failure 401 {string} string "unauthorized"
// @Failure 500 {string} string "failed to create checkout session"
// @Router /subscriptions/checkout [post]
func (h *SubscriptionHandler) Checkout(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	var req dto.SubscriptionCheckoutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request payload", http.StatusBadRequest)
		return
	}
	if err := h.validate.Struct(&req); err != nil {
		http.Error(w, "Validation failed: "+err.Error(), http.StatusBadRequest)
		return
	}
	url, err := h.billing.CreateCheckoutSession(r.Context(), userID, req.Plan)
	if err != nil {
		if errors.Is(err, service.ErrInvalidPlan) {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		h.logger.Error().Err(err).Msg("failed to create checkout session")
		http.Error(w, "failed to create checkout session", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, dto.URLResponse{URL: url})
}

// Portal godoc
// @Summary Create a Stripe Customer Portal session
// @Description Generates a Stripe Customer Portal session URL for the authenticated user.
// @Tags subscriptions
// @Produce json
// @Success 200 {object} dto.URLResponse "URL of the Customer Portal session"
// @Failure 401 {string} string "unauthorized"
// @Failure 404 {string} string "no billing account"
// @Failure 500 {string} string "failed to create portal session"
// @Router /subscriptions/portal [get]
func (h *SubscriptionHandler) Portal(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	url, err := h.billing.CreatePortalSession(r.Context(), userID)
	if err != nil {
		if errors.Is(err, service.ErrUserNotFound) {
			http.Error(w, "no billing account", http.StatusNotFound)
			return
		}
		h.logger.Error().Err(err).Msg("failed to create portal session")
		http.Error(w, "failed to create portal session", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, dto.URLResponse{URL: url})
}

// MobileSync godoc
// @Summary Sync mobile purchase state reported by the client
// @Description Stores a best-effort mobile subscription snapshot when webhook delivery lags.
// @Tags subscriptions
// @Accept json
// @Produce json
// @Param sync body dto.MobileSyncRequest true "Client customer info"
// @Success 200 {object} dto.MobileSyncResponse
// @Failure 400 {string} string "invalid request payload"
// @Failure 401 {string} string "unauthorized"
// @Failure 403 {string} string "user mismatch"
// @Failure 500 {string} string "failed to sync subscription"
// @Router /subscriptions/mobile/sync [post]
func (h *SubscriptionHandler) MobileSync(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	var req dto.MobileSyncRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request payload", http.StatusBadRequest)
		return
	}
	if err := h.validate.Struct(&req); err != nil {
		http.Error(w, "Validation failed: "+err.Error(), http.StatusBadRequest)
		return
	}

	snap, err := h.revenueCat.SyncFromClient(r.Context(), userID, model.MobileSyncInput{
		IsPro:               *req.IsPro,
		OriginalAppUserID:   req.CustomerInfo.OriginalAppUserID,
		ActiveSubscriptions: req.CustomerInfo.ActiveSubscriptions,
		Entitlements:        req.CustomerInfo.Entitlements,
	})
	if err != nil {
		if errors.Is(err, service.ErrUserMismatch) {
			http.Error(w, "user mismatch", http.StatusForbidden)
			return
		}
		h.logger.Error().Err(err).Str("user_id", userID).Msg("failed to sync mobile subscription")
		http.Error(w, "failed to sync subscription", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, dto.MobileSyncResponse{Synced: true, Subscription: *snap})
}
