package service

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"chatpro/internal/model"

	"github.com/rs/zerolog"
)

const revenueCatProvider = "revenuecat"

// RevenueCatResult summarizes an applied mobile webhook event.
type RevenueCatResult struct {
	UserID    string
	EventType string
	IsPro     bool
	Status    *model.SnapshotStatus
}

// RevenueCatService applies mobile in-app purchase state to the identity oracle.
type RevenueCatService interface {
	// HandleWebhook verifies, normalizes and stores one webhook delivery.
	HandleWebhook(ctx context.Context, payload []byte, signature string) (*RevenueCatResult, error)
	// SyncFromClient stores a best-effort snapshot reported by the mobile client.
	SyncFromClient(ctx context.Context, callerID string, in model.MobileSyncInput) (*model.MobileSnapshot, error)
}

type revenueCatService struct {
	secret  string
	proTag  string
	oracle  IdentityOracle
	effects webhookEffects
	now     func() time.Time
	logger  zerolog.Logger
}

// NewRevenueCatService creates a RevenueCatService with a scoped logger.
func NewRevenueCatService(secret, proTag string, oracle IdentityOracle, archive WebhookArchive, notifier EntitlementNotifier, logger zerolog.Logger) RevenueCatService {
	lg := logger.With().Str("service", "RevenueCatService").Logger()
	return &revenueCatService{
		secret:  secret,
		proTag:  proTag,
		oracle:  oracle,
		effects: webhookEffects{archive: archive, notifier: notifier, logger: lg},
		now:     time.Now,
		logger:  lg,
	}
}

func (s *revenueCatService) HandleWebhook(ctx context.Context, payload []byte, signature string) (*RevenueCatResult, error) {
	if err := VerifyRevenueCatSignature(s.secret, payload, signature); err != nil {
		s.logger.Warn().Err(err).Msg("Rejected RevenueCat webhook")
		return nil, err
	}

	ev, err := ParseRevenueCatEvent(payload)
	if err != nil {
		s.logger.Warn().Err(err).Msg("Invalid RevenueCat webhook payload")
		return nil, err
	}

	snap := NormalizeRevenueCatEvent(*ev, s.proTag, s.now())
	if err := s.oracle.PutMobileSnapshot(ctx, ev.AppUserID, snap); err != nil {
		s.logger.Error().Err(err).Str("user_id", ev.AppUserID).Str("event_type", string(ev.Type)).Msg("Failed to store mobile snapshot")
		return nil, fmt.Errorf("store mobile snapshot: %w", err)
	}

	s.logger.Info().
		Str("user_id", ev.AppUserID).
		Str("event_type", string(ev.Type)).
		Bool("is_pro", snap.IsPro).
		Msg("RevenueCat webhook applied")

	s.effects.archivePayload(ctx, revenueCatProvider, payload)
	changed := model.EntitlementChanged{
		UserID:    ev.AppUserID,
		Provider:  revenueCatProvider,
		EventType: string(ev.Type),
		IsPro:     snap.IsPro,
	}
	if snap.Status != nil {
		changed.Status = string(*snap.Status)
	}
	s.effects.notify(ctx, changed)

	return &RevenueCatResult{UserID: ev.AppUserID, EventType: string(ev.Type), IsPro: snap.IsPro, Status: snap.Status}, nil
}

func (s *revenueCatService) SyncFromClient(ctx context.Context, callerID string, in model.MobileSyncInput) (*model.MobileSnapshot, error) {
	if callerID == "" || callerID != in.OriginalAppUserID {
		s.logger.Warn().Str("user_id", callerID).Str("app_user_id", in.OriginalAppUserID).Msg("Mobile sync caller mismatch")
		return nil, ErrUserMismatch
	}

	isPro := in.IsPro && hasEntitlement(in.Entitlements, s.proTag)
	status := model.SnapshotExpired
	if isPro {
		status = model.SnapshotActive
	}
	snap := model.MobileSnapshot{
		IsPro:       isPro,
		Status:      &status,
		WillRenew:   isPro,
		LastUpdated: s.now().UTC(),
	}
	if len(in.ActiveSubscriptions) > 0 {
		snap.ProductID = in.ActiveSubscriptions[0]
		snap.Platform = platformFromProductID(snap.ProductID)
	}

	if err := s.oracle.PutMobileSnapshot(ctx, callerID, snap); err != nil {
		s.logger.Error().Err(err).Str("user_id", callerID).Msg("Failed to store synced mobile snapshot")
		return nil, fmt.Errorf("store mobile snapshot: %w", err)
	}
	s.logger.Info().Str("user_id", callerID).Bool("is_pro", isPro).Msg("Mobile subscription synced from client")
	return &snap, nil
}

// VerifyRevenueCatSignature checks a hex HMAC-SHA256 of payload, optionally prefixed "sha256=".
// An unset secret rejects every request.
func VerifyRevenueCatSignature(secret string, payload []byte, signature string) error {
	if secret == "" {
		return fmt.Errorf("%w: webhook secret not configured", ErrInvalidSignature)
	}
	signature = strings.TrimPrefix(strings.TrimSpace(signature), "sha256=")
	if signature == "" {
		return fmt.Errorf("%w: missing signature", ErrInvalidSignature)
	}
	given, err := hex.DecodeString(signature)
	if err != nil {
		return fmt.Errorf("%w: signature is not hex", ErrInvalidSignature)
	}
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	if !hmac.Equal(given, mac.Sum(nil)) {
		return ErrInvalidSignature
	}
	return nil
}

// SignRevenueCatPayload returns the hex signature VerifyRevenueCatSignature accepts.
func SignRevenueCatPayload(secret string, payload []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}

// ParseRevenueCatEvent decodes and validates a webhook body.
func ParseRevenueCatEvent(payload []byte) (*model.RevenueCatEvent, error) {
	var body struct {
		Event *model.RevenueCatEvent `json:"event"`
	}
	if err := json.Unmarshal(payload, &body); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedEvent, err)
	}
	if body.Event == nil {
		return nil, fmt.Errorf("%w: missing event object", ErrMalformedEvent)
	}
	ev := body.Event
	if !ev.Type.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrUnknownEventType, ev.Type)
	}
	if strings.TrimSpace(ev.AppUserID) == "" {
		return nil, ErrMissingAppUserID
	}
	return ev, nil
}

// NormalizeRevenueCatEvent maps a webhook event to the snapshot that replaces the stored one.
func NormalizeRevenueCatEvent(ev model.RevenueCatEvent, proTag string, now time.Time) model.MobileSnapshot {
	var expiresAt *time.Time
	if ev.ExpirationAtMs != nil {
		t := time.UnixMilli(*ev.ExpirationAtMs).UTC()
		expiresAt = &t
	}

	status := statusForEvent(ev.Type, expiresAt, now)
	isPro := hasEntitlement(ev.EntitlementIDs, proTag) &&
		ev.Type.GrantsAccess() &&
		status != nil && *status == model.SnapshotActive

	return model.MobileSnapshot{
		IsPro:           isPro,
		Platform:        platformFromStore(ev.Store),
		ExpiresAt:       expiresAt,
		ProductID:       ev.ProductID,
		Status:          status,
		WillRenew:       willRenew(ev.Type),
		IsInTrialPeriod: strings.EqualFold(ev.PeriodType, "TRIAL"),
		LastUpdated:     now.UTC(),
	}
}

func statusForEvent(t model.RevenueCatEventType, expiresAt *time.Time, now time.Time) *model.SnapshotStatus {
	var st model.SnapshotStatus
	switch {
	case t.GrantsAccess():
		st = model.SnapshotActive
		if expiresAt != nil && !expiresAt.After(now) {
			st = model.SnapshotExpired
		}
	case t == model.EventCancellation:
		st = model.SnapshotCancelled
	case t == model.EventExpiration:
		st = model.SnapshotExpired
	case t == model.EventBillingIssue:
		st = model.SnapshotBillingIssue
	default:
		return nil
	}
	return &st
}

func willRenew(t model.RevenueCatEventType) bool {
	switch t {
	case model.EventNonRenewingPurchase, model.EventCancellation, model.EventExpiration:
		return false
	}
	return true
}

func hasEntitlement(ids []string, tag string) bool {
	for _, id := range ids {
		if strings.EqualFold(id, tag) {
			return true
		}
	}
	return false
}

func platformFromStore(store string) *model.Platform {
	var p model.Platform
	switch strings.ToUpper(store) {
	case "APP_STORE", "MAC_APP_STORE":
		p = model.PlatformAppStore
	case "PLAY_STORE":
		p = model.PlatformPlayStore
	case "STRIPE":
		p = model.PlatformStripe
	case "PROMOTIONAL":
		p = model.PlatformPromotional
	default:
		return nil
	}
	return &p
}

// platformFromProductID guesses the store from product id conventions.
// Play subscription ids carry a base plan after a colon.
func platformFromProductID(productID string) *model.Platform {
	id := strings.ToLower(productID)
	var p model.Platform
	switch {
	case strings.Contains(id, "android"), strings.Contains(id, "google"), strings.Contains(id, "play"), strings.Contains(id, ":"):
		p = model.PlatformPlayStore
	case strings.Contains(id, "ios"), strings.Contains(id, "apple"), strings.Contains(id, "appstore"):
		p = model.PlatformAppStore
	case strings.Contains(id, "promo"):
		p = model.PlatformPromotional
	default:
		return nil
	}
	return &p
}
