package service

import (
	"context"
	"time"

	"chatpro/internal/metrics"
	"chatpro/internal/model"

	"github.com/rs/zerolog"
)

// webhookEffects runs the best-effort work that follows a successfully applied webhook.
// Failures are logged and counted, never returned.
type webhookEffects struct {
	archive  WebhookArchive
	notifier EntitlementNotifier
	logger   zerolog.Logger
}

func (e webhookEffects) archivePayload(ctx context.Context, provider string, payload []byte) {
	if e.archive == nil {
		return
	}
	key, err := e.archive.Store(ctx, provider, payload)
	if err != nil {
		metrics.SideEffectFailures.WithLabelValues("archive").Inc()
		e.logger.Warn().Err(err).Str("provider", provider).Msg("Failed to archive webhook payload")
		return
	}
	if key != "" {
		e.logger.Debug().Str("provider", provider).Str("key", key).Msg("Archived webhook payload")
	}
}

func (e webhookEffects) notify(ctx context.Context, ev model.EntitlementChanged) {
	if e.notifier == nil {
		return
	}
	if ev.OccurredAt == 0 {
		ev.OccurredAt = time.Now().Unix()
	}
	if err := e.notifier.Notify(ctx, ev); err != nil {
		metrics.SideEffectFailures.WithLabelValues("publish").Inc()
		e.logger.Warn().Err(err).Str("user_id", ev.UserID).Msg("Failed to publish entitlement change")
	}
}
