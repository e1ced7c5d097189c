package service

import (
	"context"
	"fmt"
	"time"

	"chatpro/internal/config"
	"chatpro/internal/metrics"
	"chatpro/internal/model"
	"chatpro/internal/repository"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// UsageLimits holds the free-tier allowance per bucket for each resource.
type UsageLimits map[model.ResourceClass]int64

// LimitsFromConfig reads free-tier limits from configuration.
func LimitsFromConfig(cfg *config.Config) UsageLimits {
	return UsageLimits{
		model.ResourceMessage:      int64(cfg.FreeMessagesPerHour),
		model.ResourceImage:        int64(cfg.FreeImagesPerDay),
		model.ResourceDeepResearch: int64(cfg.FreeDeepResearchPerDay),
	}
}

// UsageService gates free-tier consumption against the user's entitlement.
type UsageService interface {
	// CheckAndConsume records one unit of resource for a free user and reports whether it is allowed.
	// Pro users are never metered. Counter store failures allow the request.
	CheckAndConsume(ctx context.Context, userID string, resource model.ResourceClass) (model.UsageDecision, error)
	// Summary reports current usage for every resource without consuming.
	Summary(ctx context.Context, userID string) (*model.UsageSummary, error)
	// Prune deletes counters for buckets that started before cutoff.
	Prune(ctx context.Context, cutoff time.Time) (int64, error)
}

// UsageOption customizes a UsageService.
type UsageOption func(*usageService)

// WithMessageRecordFallback lets an active Pro billing record lift the message limit
// when the resolver says free.
func WithMessageRecordFallback(subSvc SubscriptionService) UsageOption {
	return func(s *usageService) { s.recordFallback = subSvc }
}

// WithClock overrides the time source used for bucketing.
func WithClock(now func() time.Time) UsageOption {
	return func(s *usageService) { s.now = now }
}

type usageService struct {
	repo           repository.UsageRepository
	resolver       EntitlementService
	recordFallback SubscriptionService
	limits         UsageLimits
	now            func() time.Time
	logger         zerolog.Logger
}

// NewUsageService creates a UsageService with a scoped logger.
func NewUsageService(repo repository.UsageRepository, resolver EntitlementService, limits UsageLimits, logger zerolog.Logger, opts ...UsageOption) UsageService {
	s := &usageService{
		repo:     repo,
		resolver: resolver,
		limits:   limits,
		now:      time.Now,
		logger:   logger.With().Str("service", "UsageService").Logger(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *usageService) CheckAndConsume(ctx context.Context, userID string, resource model.ResourceClass) (model.UsageDecision, error) {
	limit, ok := s.limits[resource]
	if !resource.Valid() || !ok {
		return model.UsageDecision{}, fmt.Errorf("%w: %q", ErrUnknownResource, resource)
	}

	if s.isPro(ctx, userID, resource) {
		metrics.UsageDecisions.WithLabelValues(string(resource), "unlimited").Inc()
		return model.UsageDecision{Resource: resource, Allowed: true, Unlimited: true, Limit: limit}, nil
	}

	now := s.now()
	resetsAt := resource.BucketEnd(now)
	decision := model.UsageDecision{Resource: resource, Limit: limit, ResetsAt: &resetsAt}

	count, err := s.repo.Increment(ctx, userID, resource, resource.BucketKey(now), resource.BucketStart(now))
	if err != nil {
		metrics.UsageDecisions.WithLabelValues(string(resource), "failed_open").Inc()
		s.logger.Error().Err(err).Str("user_id", userID).Str("resource", string(resource)).Msg("Usage counter unavailable, allowing request")
		decision.Allowed = true
		decision.FailedOpen = true
		decision.Remaining = limit
		return decision, nil
	}

	decision.Count = count
	decision.Allowed = count <= limit
	if remaining := limit - count; remaining > 0 {
		decision.Remaining = remaining
	}

	outcome := "allowed"
	if !decision.Allowed {
		outcome = "denied"
		s.logger.Info().Str("user_id", userID).Str("resource", string(resource)).Int64("count", count).Int64("limit", limit).Msg("Free tier limit reached")
	}
	metrics.UsageDecisions.WithLabelValues(string(resource), outcome).Inc()
	return decision, nil
}

func (s *usageService) isPro(ctx context.Context, userID string, resource model.ResourceClass) bool {
	if s.resolver.Resolve(ctx, userID).IsPro {
		return true
	}
	if s.recordFallback == nil || resource != model.ResourceMessage {
		return false
	}
	rec, err := s.recordFallback.GetSubscription(ctx, userID)
	if err != nil {
		return false
	}
	return rec.EffectivePlan() == model.PlanPro
}

func (s *usageService) Summary(ctx context.Context, userID string) (*model.UsageSummary, error) {
	ent := s.resolver.Resolve(ctx, userID)
	now := s.now()

	usage := make([]model.UsageInfo, len(model.ResourceClasses))
	g, gctx := errgroup.WithContext(ctx)
	for i, resource := range model.ResourceClasses {
		usage[i] = model.UsageInfo{
			Resource:  resource,
			Limit:     s.limits[resource],
			Unlimited: ent.IsPro,
			ResetsAt:  resource.BucketEnd(now),
		}
		if ent.IsPro {
			continue
		}
		g.Go(func() error {
			count, err := s.repo.GetCount(gctx, userID, resource, resource.BucketKey(now))
			if err != nil {
				return err
			}
			usage[i].Count = count
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		s.logger.Error().Err(err).Str("user_id", userID).Msg("Failed to read usage summary")
		return nil, fmt.Errorf("read usage summary: %w", err)
	}
	return &model.UsageSummary{IsPro: ent.IsPro, Source: ent.Source, Usage: usage}, nil
}

func (s *usageService) Prune(ctx context.Context, cutoff time.Time) (int64, error) {
	n, err := s.repo.PruneBefore(ctx, cutoff)
	if err != nil {
		return 0, err
	}
	s.logger.Info().Int64("deleted", n).Time("cutoff", cutoff).Msg("Pruned usage counters")
	return n, nil
}
