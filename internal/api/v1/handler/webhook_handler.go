package handler

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"chatpro/internal/api/v1/dto"
	"chatpro/internal/metrics"
	"chatpro/internal/service"

	"github.com/rs/zerolog"
)

const webhookBodyLimit = 1 << 20

// StripeWebhookService is the part of *service.StripeService the webhook route needs.
type StripeWebhookService interface {
	HandleWebhook(ctx context.Context, payload []byte, sigHeader string) (string, error)
}

// WebhookHandler receives subscription events from RevenueCat and Stripe.
type WebhookHandler struct {
	revenueCat service.RevenueCatService
	stripe     StripeWebhookService
	logger     zerolog.Logger
}

// NewWebhookHandler creates a new WebhookHandler.
func NewWebhookHandler(revenueCat service.RevenueCatService, stripe StripeWebhookService, logger zerolog.Logger) *WebhookHandler {
	return &WebhookHandler{revenueCat: revenueCat, stripe: stripe, logger: logger.With().Str("handler", "WebhookHandler").Logger()}
}

// RegisterRoutes registers the webhook endpoints. They authenticate by signature, not bearer token.
func (h *WebhookHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /webhooks/revenuecat", h.RevenueCat)
	mux.HandleFunc("POST /webhooks/stripe", h.Stripe)
}

// RevenueCat godoc
// @Summary Receive a RevenueCat webhook
// @Description Verifies the HMAC signature and replaces the user's mobile subscription snapshot.
// @Tags webhooks
// @Accept json
// @Produce json
// @Param X-RevenueCat-Signature header string true "hex HMAC-SHA256 of the body"
// @Success 200 {object} dto.RevenueCatWebhookResponse
// @Failure 400 {object} dto.ErrorResponse "malformed or unknown event"
// @Failure 401 {object} dto.ErrorResponse "invalid signature"
// @Failure 500 {object} dto.ErrorResponse "processing failed"
// @Router /webhooks/revenuecat [post]
func (h *WebhookHandler) RevenueCat(w http.ResponseWriter, r *http.Request) {
	started := time.Now()
	status := http.StatusOK
	eventType := "unknown"
	defer func() { observeWebhook("revenuecat", eventType, started, &status) }()

	payload, err := readWebhookBody(w, r)
	if err != nil {
		status = http.StatusBadRequest
		writeError(w, status, "failed to read request body")
		return
	}

	res, err := h.revenueCat.HandleWebhook(r.Context(), payload, r.Header.Get("X-RevenueCat-Signature"))
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidSignature):
			status = http.StatusUnauthorized
			writeError(w, status, "invalid signature")
		case service.IsClientError(err):
			status = http.StatusBadRequest
			writeError(w, status, err.Error())
		default:
			h.logger.Error().Err(err).Msg("RevenueCat webhook processing failed")
			status = http.StatusInternalServerError
			writeError(w, status, "processing failed")
		}
		return
	}

	eventType = res.EventType
	resp := dto.RevenueCatWebhookResponse{Received: true, UserID: res.UserID, IsPro: res.IsPro}
	if res.Status != nil {
		st := string(*res.Status)
		resp.Status = &st
	}
	writeJSON(w, http.StatusOK, resp)
}

// Stripe godoc
// @Summary Receive a Stripe webhook
// @Description Verifies the Stripe signature and updates the user's web billing subscription record.
// @Tags webhooks
// @Accept json
// @Produce json
// @Param Stripe-Signature header string true "Stripe signature header"
// @Success 200 {object} dto.WebhookReceivedResponse
// @Failure 400 {object} dto.ErrorResponse "invalid signature or payload"
// @Failure 500 {object} dto.ErrorResponse "processing failed"
// @Router /webhooks/stripe [post]
func (h *WebhookHandler) Stripe(w http.ResponseWriter, r *http.Request) {
	started := time.Now()
	status := http.StatusOK
	eventType := "unknown"
	defer func() { observeWebhook("stripe", eventType, started, &status) }()

	payload, err := readWebhookBody(w, r)
	if err != nil {
		status = http.StatusBadRequest
		writeError(w, status, "failed to read request body")
		return
	}
	sigHeader := r.Header.Get("Stripe-Signature")
	if strings.TrimSpace(sigHeader) == "" {
		status = http.StatusBadRequest
		writeError(w, status, "missing Stripe signature")
		return
	}

	et, err := h.stripe.HandleWebhook(r.Context(), payload, sigHeader)
	if et != "" {
		eventType = et
	}
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidSignature):
			status = http.StatusBadRequest
			writeError(w, status, "invalid Stripe signature")
		case service.IsClientError(err):
			status = http.StatusBadRequest
			writeError(w, status, err.Error())
		default:
			h.logger.Error().Err(err).Str("event_type", eventType).Msg("Stripe webhook processing failed")
			status = http.StatusInternalServerError
			writeError(w, status, "processing failed")
		}
		return
	}
	writeJSON(w, http.StatusOK, dto.WebhookReceivedResponse{Received: true})
}

func readWebhookBody(w http.ResponseWriter, r *http.Request) ([]byte, error) {
	r.Body = http.MaxBytesReader(w, r.Body, webhookBodyLimit)
	return io.ReadAll(r.Body)
}

func observeWebhook(provider, eventType string, started time.Time, status *int) {
	metrics.WebhookRequestsTotal.WithLabelValues(provider, eventType, strconv.Itoa(*status)).Inc()
	metrics.WebhookDuration.WithLabelValues(provider).Observe(time.Since(started).Seconds())
}
