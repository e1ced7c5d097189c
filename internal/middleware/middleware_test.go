package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"chatpro/internal/model"
	"chatpro/internal/util"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func bearer(t *testing.T, secret, subject string) string {
	t.Helper()
	claims := util.Claims{RegisteredClaims: jwt.RegisteredClaims{
		Subject:   subject,
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}}
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	require.NoError(t, err)
	return "Bearer " + tok
}

func TestAuthMiddleware(t *testing.T) {
	var seen string
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = UserIDFromContext(r.Context())
		w.WriteHeader(http.StatusNoContent)
	})
	h := AuthMiddleware("secret", zerolog.Nop())(next)

	tests := []struct {
		name       string
		header     string
		wantStatus int
		wantUser   string
	}{
		{"missing header", "", http.StatusUnauthorized, ""},
		{"not bearer", "Basic abc", http.StatusUnauthorized, ""},
		{"bad token", "Bearer nope", http.StatusUnauthorized, ""},
		{"wrong secret", bearer(t, "other", "user_1"), http.StatusUnauthorized, ""},
		{"valid", bearer(t, "secret", "user_1"), http.StatusNoContent, "user_1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			seen = ""
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Equal(t, tt.wantUser, seen)
		})
	}
}

type stubUsage struct {
	decision model.UsageDecision
	err      error
	calls    int
}

func (s *stubUsage) CheckAndConsume(context.Context, string, model.ResourceClass) (model.UsageDecision, error) {
	s.calls++
	return s.decision, s.err
}

func (s *stubUsage) Summary(context.Context, string) (*model.UsageSummary, error) {
	return nil, errors.New("not used")
}

func (s *stubUsage) Prune(context.Context, time.Time) (int64, error) { return 0, nil }

func TestUsageGate(t *testing.T) {
	resets := time.Now().Add(30 * time.Minute).Truncate(time.Second)

	tests := []struct {
		name        string
		user        string
		usage       *stubUsage
		wantStatus  int
		wantHeaders map[string]string
		wantNext    bool
	}{
		{
			name:       "no user",
			usage:      &stubUsage{},
			wantStatus: http.StatusUnauthorized,
		},
		{
			name:       "allowed",
			user:       "user_1",
			usage:      &stubUsage{decision: model.UsageDecision{Allowed: true, Count: 3, Limit: 15, Remaining: 12, ResetsAt: &resets}},
			wantStatus: http.StatusOK,
			wantHeaders: map[string]string{
				"X-RateLimit-Limit":     "15",
				"X-RateLimit-Remaining": "12",
			},
			wantNext: true,
		},
		{
			name:       "unlimited sets no headers",
			user:       "user_1",
			usage:      &stubUsage{decision: model.UsageDecision{Allowed: true, Unlimited: true}},
			wantStatus: http.StatusOK,
			wantNext:   true,
		},
		{
			name:       "denied",
			user:       "user_1",
			usage:      &stubUsage{decision: model.UsageDecision{Allowed: false, Count: 16, Limit: 15, ResetsAt: &resets}},
			wantStatus: http.StatusTooManyRequests,
			wantHeaders: map[string]string{
				"X-RateLimit-Limit":     "15",
				"X-RateLimit-Remaining": "0",
			},
		},
		{
			name:       "service error",
			user:       "user_1",
			usage:      &stubUsage{err: errors.New("unknown resource")},
			wantStatus: http.StatusInternalServerError,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			called := false
			next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				called = true
				_, ok := UsageDecisionFromContext(r.Context())
				assert.True(t, ok)
			})
			req := httptest.NewRequest(http.MethodPost, "/", nil)
			if tt.user != "" {
				req = req.WithContext(WithUserID(req.Context(), tt.user))
			}
			rec := httptest.NewRecorder()
			UsageGate(tt.usage, model.ResourceMessage, zerolog.Nop())(next).ServeHTTP(rec, req)

			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Equal(t, tt.wantNext, called)
			for k, v := range tt.wantHeaders {
				assert.Equal(t, v, rec.Header().Get(k), k)
			}
			if tt.usage.decision.Unlimited {
				assert.Empty(t, rec.Header().Get("X-RateLimit-Limit"))
			}
		})
	}
}

func TestUsageGate_DeniedBody(t *testing.T) {
	resets := time.Now().Add(10 * time.Minute)
	usage := &stubUsage{decision: model.UsageDecision{Allowed: false, Count: 4, Limit: 3, ResetsAt: &resets}}
	req := httptest.NewRequest(http.MethodPost, "/", nil)
	req = req.WithContext(WithUserID(req.Context(), "user_1"))
	rec := httptest.NewRecorder()

	UsageGate(usage, model.ResourceImage, zerolog.Nop())(http.NotFoundHandler()).ServeHTTP(rec, req)

	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "usage limit reached", body["error"])
	assert.Equal(t, "image", body["resource"])
	assert.EqualValues(t, 3, body["limit"])
}

func TestLoggerMiddleware_RequestID(t *testing.T) {
	h := LoggerMiddleware(zerolog.Nop())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusTeapot, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Request-ID", "abc")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, "abc", rec.Header().Get("X-Request-ID"))
}
