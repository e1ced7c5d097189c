package handler

import (
	"net/http"

	"chatpro/internal/middleware"
	"chatpro/internal/model"
	"chatpro/internal/service"

	"github.com/rs/zerolog"
)

// EntitlementHandler exposes the entitlement decision and usage gate to clients.
type EntitlementHandler struct {
	entitlements service.EntitlementService
	usage        service.UsageService
	logger       zerolog.Logger
}

// NewEntitlementHandler creates a new EntitlementHandler.
func NewEntitlementHandler(entitlements service.EntitlementService, usage service.UsageService, logger zerolog.Logger) *EntitlementHandler {
	return &EntitlementHandler{entitlements: entitlements, usage: usage, logger: logger}
}

// RegisterRoutes mounts the entitlement and usage routes.
func (h *EntitlementHandler) RegisterRoutes(mux *http.ServeMux, authMw func(http.Handler) http.Handler) {
	mux.Handle("GET /entitlements/me", authMw(http.HandlerFunc(h.getEntitlement)))
	mux.Handle("GET /usage/me", authMw(http.HandlerFunc(h.getUsage)))
	mux.Handle("POST /usage/{resource}/consume", authMw(http.HandlerFunc(h.consume)))
}

// getEntitlement godoc
// @Summary Get the caller's entitlement
// @Tags entitlements
// @Produce json
// @Success 200 {object} model.Entitlement
// @Failure 401 {string} string "unauthorized"
// @Router /entitlements/me [get]
func (h *EntitlementHandler) getEntitlement(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	writeJSON(w, http.StatusOK, h.entitlements.Resolve(r.Context(), userID))
}

// getUsage godoc
// @Summary Get the caller's current usage and limits
// @Tags usage
// @Produce json
// @Success 200 {object} model.UsageSummary
// @Failure 401 {string} string "unauthorized"
// @Failure 500 {string} string "failed to read usage"
// @Router /usage/me [get]
func (h *EntitlementHandler) getUsage(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	summary, err := h.usage.Summary(r.Context(), userID)
	if err != nil {
		h.logger.Error().Err(err).Str("user_id", userID).Msg("failed to read usage")
		http.Error(w, "failed to read usage", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

// consume godoc
// @Summary Consume one unit of a metered resource
// @Tags usage
// @Produce json
// @Param resource path string true "message, image or deep_research"
// @Success 200 {object} model.UsageDecision
// @Failure 400 {string} string "unknown resource"
// @Failure 401 {string} string "unauthorized"
// @Failure 429 {object} map[string]interface{} "usage limit reached"
// @Router /usage/{resource}/consume [post]
func (h *EntitlementHandler) consume(w http.ResponseWriter, r *http.Request) {
	resource := model.ResourceClass(r.PathValue("resource"))
	if !resource.Valid() {
		http.Error(w, "unknown resource", http.StatusBadRequest)
		return
	}
	middleware.UsageGate(h.usage, resource, h.logger)(http.HandlerFunc(h.writeDecision)).ServeHTTP(w, r)
}

func (h *EntitlementHandler) writeDecision(w http.ResponseWriter, r *http.Request) {
	decision, ok := middleware.UsageDecisionFromContext(r.Context())
	if !ok {
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, decision)
}
