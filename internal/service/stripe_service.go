package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"chatpro/internal/config"
	"chatpro/internal/model"
	"chatpro/internal/repository"

	"github.com/rs/zerolog"
	"github.com/stripe/stripe-go/v82"
	billingsession "github.com/stripe/stripe-go/v82/billingportal/session"
	checkoutsession "github.com/stripe/stripe-go/v82/checkout/session"
	customerpkg "github.com/stripe/stripe-go/v82/customer"
	"github.com/stripe/stripe-go/v82/webhook"
)

const stripeProvider = "stripe"

// StripeService manages Stripe integration
type StripeService struct {
	cfg      *config.Config
	userRepo repository.UserRepository
	subSvc   SubscriptionService
	effects  webhookEffects
	logger   zerolog.Logger
}

// NewStripeService initializes Stripe key and returns service with a scoped logger
func NewStripeService(cfg *config.Config, userRepo repository.UserRepository, subSvc SubscriptionService, archive WebhookArchive, notifier EntitlementNotifier, logger zerolog.Logger) *StripeService {
	stripe.Key = cfg.StripeSecretKey
	lg := logger.With().Str("service", "StripeService").Logger()
	return &StripeService{
		cfg:      cfg,
		userRepo: userRepo,
		subSvc:   subSvc,
		effects:  webhookEffects{archive: archive, notifier: notifier, logger: lg},
		logger:   lg,
	}
}

// getUserIDFromEvent resolves the user from subscription metadata, falling back to the customer id.
func (s *StripeService) getUserIDFromEvent(ctx context.Context, metadata map[string]string, customerID string) (string, error) {
	if userID, ok := metadata["user_id"]; ok && userID != "" {
		return userID, nil
	}
	if customerID == "" {
		return "", fmt.Errorf("%w: missing metadata and customer id", ErrUnresolvedUser)
	}
	s.logger.Warn().Str("stripe_customer_id", customerID).Msg("Missing user_id metadata; looking up user by customer ID")
	u, err := s.userRepo.GetUserByStripeCustomerID(ctx, customerID)
	if err != nil {
		return "", fmt.Errorf("failed to lookup user by Stripe customer ID: %w", err)
	}
	if u == nil {
		return "", fmt.Errorf("%w: no user found for customer ID %s", ErrUnresolvedUser, customerID)
	}
	return u.UserID, nil
}

// GetOrCreateCustomer ensures a Stripe Customer exists for a user
func (s *StripeService) GetOrCreateCustomer(ctx context.Context, user *model.User) (string, error) {
	if user.StripeCustomerID != nil && *user.StripeCustomerID != "" {
		return *user.StripeCustomerID, nil
	}
	s.logger.Info().Str("user_id", user.UserID).Msg("No Stripe customer ID found, creating customer")
	return s.CreateCustomer(ctx, user)
}

// CreateCustomer creates a new Stripe customer for a user
func (s *StripeService) CreateCustomer(ctx context.Context, user *model.User) (string, error) {
	params := &stripe.CustomerParams{
		Metadata: map[string]string{"user_id": user.UserID},
	}
	if user.Email != "" {
		params.Email = stripe.String(user.Email)
	}
	params.Context = ctx
	cust, err := customerpkg.New(params)
	if err != nil {
		s.logger.Error().Err(err).Str("user_id", user.UserID).Msg("Failed to create Stripe customer")
		return "", fmt.Errorf("create stripe customer: %w", err)
	}
	if err := s.userRepo.UpdateStripeCustomerID(ctx, user.UserID, cust.ID); err != nil {
		s.logger.Error().Err(err).Str("user_id", user.UserID).Msg("Failed to store stripe customer id in user_profiles")
		return "", fmt.Errorf("store stripe customer id: %w", err)
	}
	return cust.ID, nil
}

// priceForPlan maps a checkout plan name to its configured Stripe price.
func (s *StripeService) priceForPlan(plan string) (string, error) {
	var priceID string
	switch plan {
	case "monthly":
		priceID = s.cfg.StripePriceProMonthly
	case "annual":
		priceID = s.cfg.StripePriceProAnnual
	default:
		return "", fmt.Errorf("%w: %s", ErrInvalidPlan, plan)
	}
	if priceID == "" {
		return "", fmt.Errorf("%w: no price configured for %s", ErrInvalidPlan, plan)
	}
	return priceID, nil
}

// CreateCheckoutSession creates a Stripe Checkout session
func (s *StripeService) CreateCheckoutSession(ctx context.Context, userID, plan string) (string, error) {
	priceID, err := s.priceForPlan(plan)
	if err != nil {
		return "", err
	}
	user, err := s.userRepo.GetUserByID(ctx, userID)
	if err != nil {
		s.logger.Error().Err(err).Str("user_id", userID).Msg("Failed to fetch user for checkout session")
		return "", fmt.Errorf("fetch user: %w", err)
	}
	if user == nil {
		user = &model.User{UserID: userID}
	}
	customerID, err := s.GetOrCreateCustomer(ctx, user)
	if err != nil {
		return "", err
	}
	metadata := map[string]string{"user_id": userID}
	sessParams := &stripe.CheckoutSessionParams{
		Customer:   stripe.String(customerID),
		LineItems:  []*stripe.CheckoutSessionLineItemParams{{Price: stripe.String(priceID), Quantity: stripe.Int64(1)}},
		Mode:       stripe.String(string(stripe.CheckoutSessionModeSubscription)),
		SuccessURL: stripe.String(s.cfg.StripePortalReturnURL + "?status=success"),
		CancelURL:  stripe.String(s.cfg.StripePortalReturnURL + "?status=cancel"),
		Metadata:   metadata,
		SubscriptionData: &stripe.CheckoutSessionSubscriptionDataParams{
			Metadata: metadata,
		},
	}
	sessParams.Context = ctx
	sess, err := checkoutsession.New(sessParams)
	if err != nil {
		s.logger.Error().Err(err).Str("plan", plan).Msg("Failed to create Stripe checkout session")
		return "", fmt.Errorf("create checkout session: %w", err)
	}
	return sess.URL, nil
}

// CreatePortalSession creates a Stripe Customer Portal session
func (s *StripeService) CreatePortalSession(ctx context.Context, userID string) (string, error) {
	user, err := s.userRepo.GetUserByID(ctx, userID)
	if err != nil {
		s.logger.Error().Err(err).Str("user_id", userID).Msg("Failed to fetch user for portal session")
		return "", fmt.Errorf("fetch user: %w", err)
	}
	if user == nil || user.StripeCustomerID == nil || *user.StripeCustomerID == "" {
		return "", fmt.Errorf("%w: no stripe customer for user %s", ErrUserNotFound, userID)
	}
	params := &stripe.BillingPortalSessionParams{Customer: stripe.String(*user.StripeCustomerID), ReturnURL: stripe.String(s.cfg.StripePortalReturnURL)}
	params.Context = ctx
	sess, err := billingsession.New(params)
	if err != nil {
		s.logger.Error().Err(err).Str("user_id", userID).Msg("Failed to create Stripe billing portal session")
		return "", fmt.Errorf("create billing portal session: %w", err)
	}
	return sess.URL, nil
}

// HandleWebhook verifies a Stripe delivery and applies it. It returns the event type
// once the signature is valid.
func (s *StripeService) HandleWebhook(ctx context.Context, payload []byte, sigHeader string) (string, error) {
	if s.cfg.StripeWebhookSecret == "" {
		return "", fmt.Errorf("%w: webhook secret not configured", ErrInvalidSignature)
	}
	event, err := webhook.ConstructEventWithOptions(payload, sigHeader, s.cfg.StripeWebhookSecret, webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		s.logger.Warn().Err(err).Msg("Signature verification failed for Stripe webhook")
		return "", fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}
	eventType := string(event.Type)
	s.logger.Info().Str("event_type", eventType).Str("event_id", event.ID).Msg("Stripe webhook received")

	changed, err := s.handleEvent(ctx, &event)
	if err != nil {
		return eventType, err
	}

	s.effects.archivePayload(ctx, stripeProvider, payload)
	if changed != nil {
		s.effects.notify(ctx, *changed)
	}
	return eventType, nil
}

func (s *StripeService) handleEvent(ctx context.Context, event *stripe.Event) (*model.EntitlementChanged, error) {
	switch event.Type {
	case "customer.subscription.created", "customer.subscription.updated":
		var ss stripe.Subscription
		if err := json.Unmarshal(event.Data.Raw, &ss); err != nil {
			return nil, fmt.Errorf("%w: decode subscription: %v", ErrMalformedEvent, err)
		}
		return s.applySubscription(ctx, string(event.Type), &ss)

	case "customer.subscription.deleted":
		var ss stripe.Subscription
		if err := json.Unmarshal(event.Data.Raw, &ss); err != nil {
			return nil, fmt.Errorf("%w: decode subscription: %v", ErrMalformedEvent, err)
		}
		if ss.ID == "" {
			return nil, fmt.Errorf("%w: subscription id missing", ErrMalformedEvent)
		}
		userID, found, err := s.subSvc.CancelStripeSubscription(ctx, ss.ID)
		if err != nil {
			return nil, fmt.Errorf("cancel subscription %s: %w", ss.ID, err)
		}
		if !found {
			return nil, nil
		}
		return &model.EntitlementChanged{
			UserID:    userID,
			Provider:  stripeProvider,
			EventType: string(event.Type),
			Status:    model.BillingStatusCanceled,
		}, nil

	default:
		s.logger.Info().Str("event_type", string(event.Type)).Str("event_id", event.ID).Msg("Stripe webhook ignored (unhandled type)")
		return nil, nil
	}
}

func (s *StripeService) applySubscription(ctx context.Context, eventType string, ss *stripe.Subscription) (*model.EntitlementChanged, error) {
	customerID := ""
	if ss.Customer != nil {
		customerID = ss.Customer.ID
	}
	userID, err := s.getUserIDFromEvent(ctx, ss.Metadata, customerID)
	if err != nil {
		s.logger.Error().Err(err).Str("subscription_id", ss.ID).Msg("Failed to determine user ID from subscription")
		return nil, err
	}

	in := model.SubscriptionUpsert{
		UserID:               userID,
		Plan:                 model.PlanPro,
		Status:               string(ss.Status),
		StripeCustomerID:     customerID,
		StripeSubscriptionID: ss.ID,
	}
	if ss.Items != nil && len(ss.Items.Data) > 0 && ss.Items.Data[0] != nil {
		item := ss.Items.Data[0]
		start := time.Unix(item.CurrentPeriodStart, 0).UTC()
		end := time.Unix(item.CurrentPeriodEnd, 0).UTC()
		in.CurrentPeriodStart = &start
		in.CurrentPeriodEnd = &end
	}

	if err := s.subSvc.UpsertStripeSubscription(ctx, in); err != nil {
		return nil, fmt.Errorf("upsert subscription %s: %w", ss.ID, err)
	}
	if customerID != "" {
		if err := s.userRepo.SetStripeCustomerIDIfUnset(ctx, userID, customerID); err != nil {
			return nil, fmt.Errorf("backfill customer id: %w", err)
		}
	}

	s.logger.Info().Str("subscription_id", ss.ID).Str("user_id", userID).Str("status", in.Status).Msg("Stripe subscription stored")
	rec := model.SubscriptionRecord{Plan: in.Plan, Status: in.Status}
	return &model.EntitlementChanged{
		UserID:    userID,
		Provider:  stripeProvider,
		EventType: eventType,
		IsPro:     rec.EffectivePlan() == model.PlanPro,
		Status:    in.Status,
	}, nil
}

// IsClientError reports whether err came from the request content rather than a dependency.
func IsClientError(err error) bool {
	return errors.Is(err, ErrInvalidSignature) ||
		errors.Is(err, ErrMalformedEvent) ||
		errors.Is(err, ErrUnknownEventType) ||
		errors.Is(err, ErrMissingAppUserID) ||
		errors.Is(err, ErrUnresolvedUser)
}
