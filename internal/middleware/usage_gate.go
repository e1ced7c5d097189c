package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"chatpro/internal/model"
	"chatpro/internal/service"

	"github.com/rs/zerolog"
)

const usageDecisionKey = contextKey("usage_decision")

// UsageDecisionFromContext returns the decision UsageGate made for this request.
func UsageDecisionFromContext(ctx context.Context) (model.UsageDecision, bool) {
	d, ok := ctx.Value(usageDecisionKey).(model.UsageDecision)
	return d, ok
}

type usageLimitResponse struct {
	Error    string              `json:"error"`
	Resource model.ResourceClass `json:"resource"`
	Limit    int64               `json:"limit"`
	ResetsAt *time.Time          `json:"resetsAt,omitempty"`
}

// UsageGate consumes one unit of resource before calling next and answers 429 once the
// free-tier allowance is spent. It must run after AuthMiddleware.
func UsageGate(usage service.UsageService, resource model.ResourceClass, logger zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userID, ok := UserIDFromContext(r.Context())
			if !ok {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}
			decision, err := usage.CheckAndConsume(r.Context(), userID, resource)
			if err != nil {
				logger.Error().Err(err).Str("resource", string(resource)).Msg("Usage gate misconfigured")
				http.Error(w, "internal server error", http.StatusInternalServerError)
				return
			}
			SetRateLimitHeaders(w, decision)
			if !decision.Allowed {
				if decision.ResetsAt != nil {
					secs := int(time.Until(*decision.ResetsAt).Seconds()) + 1
					w.Header().Set("Retry-After", strconv.Itoa(secs))
				}
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusTooManyRequests)
				_ = json.NewEncoder(w).Encode(usageLimitResponse{
					Error:    "usage limit reached",
					Resource: resource,
					Limit:    decision.Limit,
					ResetsAt: decision.ResetsAt,
				})
				return
			}
			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), usageDecisionKey, decision)))
		})
	}
}

// SetRateLimitHeaders describes a metered decision in X-RateLimit-* headers. Unlimited decisions set none.
func SetRateLimitHeaders(w http.ResponseWriter, d model.UsageDecision) {
	if d.Unlimited || d.FailedOpen {
		return
	}
	h := w.Header()
	h.Set("X-RateLimit-Limit", strconv.FormatInt(d.Limit, 10))
	h.Set("X-RateLimit-Remaining", strconv.FormatInt(d.Remaining, 10))
	if d.ResetsAt != nil {
		h.Set("X-RateLimit-Reset", strconv.FormatInt(d.ResetsAt.Unix(), 10))
	}
}
