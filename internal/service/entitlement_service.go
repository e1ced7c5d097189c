package service

import (
	"context"
	"time"

	"chatpro/internal/metrics"
	"chatpro/internal/model"

	"github.com/rs/zerolog"
)

// EntitlementService decides whether a user is Pro from the mobile snapshot and the web plan flag.
type EntitlementService interface {
	// Resolve never fails: any source that cannot be read counts as no entitlement.
	Resolve(ctx context.Context, userID string) model.Entitlement
}

type entitlementService struct {
	oracle  IdentityOracle
	webPlan string
	now     func() time.Time
	logger  zerolog.Logger
}

// NewEntitlementService creates an EntitlementService. webPlan is the plan key checked on the web flag.
func NewEntitlementService(oracle IdentityOracle, webPlan string, logger zerolog.Logger) EntitlementService {
	return &entitlementService{
		oracle:  oracle,
		webPlan: webPlan,
		now:     time.Now,
		logger:  logger.With().Str("service", "EntitlementService").Logger(),
	}
}

func (s *entitlementService) Resolve(ctx context.Context, userID string) model.Entitlement {
	ent := s.resolve(ctx, userID)
	metrics.EntitlementResolutions.WithLabelValues(string(ent.Source)).Inc()
	return ent
}

func (s *entitlementService) resolve(ctx context.Context, userID string) model.Entitlement {
	if userID == "" {
		return model.NoEntitlement()
	}

	// Mobile purchases are checked first and win outright.
	snap, err := s.oracle.GetMobileSnapshot(ctx, userID)
	if err != nil {
		metrics.EntitlementSourceErrors.WithLabelValues(string(model.SourceRevenueCat)).Inc()
		s.logger.Warn().Err(err).Str("user_id", userID).Msg("Mobile snapshot unavailable, treating as not entitled")
	} else if snap.IsEntitling(s.now()) {
		return model.Entitlement{
			IsPro:           true,
			Source:          model.SourceRevenueCat,
			ExpiresAt:       snap.ExpiresAt,
			Platform:        snap.Platform,
			WillRenew:       snap.WillRenew,
			IsInTrialPeriod: snap.IsInTrialPeriod,
		}
	}

	hasPlan, err := s.oracle.HasPlan(ctx, userID, s.webPlan)
	if err != nil {
		metrics.EntitlementSourceErrors.WithLabelValues(string(model.SourceClerk)).Inc()
		s.logger.Warn().Err(err).Str("user_id", userID).Msg("Web plan flag unavailable, treating as not entitled")
		return model.NoEntitlement()
	}
	if hasPlan {
		web := model.PlatformWeb
		return model.Entitlement{
			IsPro:    true,
			Source:   model.SourceClerk,
			Platform: &web,
		}
	}
	return model.NoEntitlement()
}
