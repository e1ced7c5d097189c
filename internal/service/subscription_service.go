package service

import (
	"context"

	"chatpro/internal/model"
	"chatpro/internal/repository"

	"github.com/rs/zerolog"
)

// SubscriptionService defines business logic methods for web billing subscription records.
type SubscriptionService interface {
	GetSubscription(ctx context.Context, userID string) (*model.SubscriptionRecord, error)
	UpsertStripeSubscription(ctx context.Context, in model.SubscriptionUpsert) error
	// CancelStripeSubscription downgrades the record owning subID and returns its user id.
	// found is false when no record exists.
	CancelStripeSubscription(ctx context.Context, subID string) (userID string, found bool, err error)
}

type subscriptionService struct {
	repo   repository.SubscriptionRepository
	logger zerolog.Logger
}

// NewSubscriptionService creates a new SubscriptionService with a scoped logger.
func NewSubscriptionService(repo repository.SubscriptionRepository, logger zerolog.Logger) SubscriptionService {
	return &subscriptionService{
		repo:   repo,
		logger: logger.With().Str("service", "SubscriptionService").Logger(),
	}
}

// GetSubscription returns the user's subscription regardless of status.
func (s *subscriptionService) GetSubscription(ctx context.Context, userID string) (*model.SubscriptionRecord, error) {
	sub, err := s.repo.GetSubscription(ctx, userID)
	if err != nil {
		s.logger.Error().Err(err).Str("user_id", userID).Msg("Failed to fetch subscription")
		return nil, err
	}
	return sub, nil
}

func (s *subscriptionService) UpsertStripeSubscription(ctx context.Context, in model.SubscriptionUpsert) error {
	if err := s.repo.UpsertStripeSubscription(ctx, in); err != nil {
		s.logger.Error().Err(err).Str("user_id", in.UserID).Str("status", in.Status).Msg("Failed to upsert stripe subscription")
		return err
	}
	return nil
}

func (s *subscriptionService) CancelStripeSubscription(ctx context.Context, subID string) (string, bool, error) {
	userID, found, err := s.repo.CancelByStripeSubscriptionID(ctx, subID)
	if err != nil {
		s.logger.Error().Err(err).Str("subscription_id", subID).Msg("Failed to cancel stripe subscription")
		return "", false, err
	}
	if !found {
		s.logger.Warn().Str("subscription_id", subID).Msg("No subscription record for deleted stripe subscription")
	}
	return userID, found, nil
}
