package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"chatpro/internal/config"
	"chatpro/internal/model"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/auth"
	"github.com/rs/zerolog"
	"google.golang.org/api/option"
)

// subscriptionClaim is the custom-claims key holding the mobile snapshot.
const subscriptionClaim = "subscription"

// IdentityOracle reads and writes per-user subscription metadata held by the identity provider.
type IdentityOracle interface {
	// GetMobileSnapshot returns the stored snapshot, or nil when the user has none.
	GetMobileSnapshot(ctx context.Context, userID string) (*model.MobileSnapshot, error)
	// PutMobileSnapshot replaces the stored snapshot wholesale.
	PutMobileSnapshot(ctx context.Context, userID string, snap model.MobileSnapshot) error
	// HasPlan reports whether the user's web billing plan flag includes plan.
	HasPlan(ctx context.Context, userID, plan string) (bool, error)
}

// ClaimsClient is the subset of *auth.Client the oracle needs.
type ClaimsClient interface {
	GetUser(ctx context.Context, uid string) (*auth.UserRecord, error)
	SetCustomUserClaims(ctx context.Context, uid string, customClaims map[string]interface{}) error
}

// NewFirebaseAuthClient initializes the Firebase app and returns its Auth client.
// Without FIREBASE_CREDENTIALS, application default credentials are used.
func NewFirebaseAuthClient(ctx context.Context, cfg *config.Config) (*auth.Client, error) {
	var opts []option.ClientOption
	if cfg.FirebaseCredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.FirebaseCredentialsFile))
	}
	app, err := firebase.NewApp(ctx, &firebase.Config{ProjectID: cfg.FirebaseProjectID}, opts...)
	if err != nil {
		return nil, fmt.Errorf("firebase init: %w", err)
	}
	client, err := app.Auth(ctx)
	if err != nil {
		return nil, fmt.Errorf("firebase auth client: %w", err)
	}
	return client, nil
}

type firebaseOracle struct {
	client ClaimsClient
	logger zerolog.Logger
}

// NewFirebaseOracle creates an IdentityOracle backed by Firebase Auth custom claims.
func NewFirebaseOracle(client ClaimsClient, logger zerolog.Logger) IdentityOracle {
	return &firebaseOracle{
		client: client,
		logger: logger.With().Str("service", "IdentityOracle").Logger(),
	}
}

func (o *firebaseOracle) GetMobileSnapshot(ctx context.Context, userID string) (*model.MobileSnapshot, error) {
	u, err := o.client.GetUser(ctx, userID)
	if err != nil {
		if auth.IsUserNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get identity user %s: %w", userID, err)
	}
	return snapshotFromClaims(u.CustomClaims)
}

func (o *firebaseOracle) PutMobileSnapshot(ctx context.Context, userID string, snap model.MobileSnapshot) error {
	u, err := o.client.GetUser(ctx, userID)
	if err != nil {
		return fmt.Errorf("get identity user %s: %w", userID, err)
	}

	encoded, err := snapshotToClaim(snap)
	if err != nil {
		return err
	}

	claims := make(map[string]interface{}, len(u.CustomClaims)+1)
	for k, v := range u.CustomClaims {
		claims[k] = v
	}
	claims[subscriptionClaim] = encoded

	if err := o.client.SetCustomUserClaims(ctx, userID, claims); err != nil {
		return fmt.Errorf("set custom claims for %s: %w", userID, err)
	}
	o.logger.Debug().Str("user_id", userID).Bool("is_pro", snap.IsPro).Msg("Stored mobile subscription snapshot")
	return nil
}

func (o *firebaseOracle) HasPlan(ctx context.Context, userID, plan string) (bool, error) {
	u, err := o.client.GetUser(ctx, userID)
	if err != nil {
		if auth.IsUserNotFound(err) {
			return false, nil
		}
		return false, fmt.Errorf("get identity user %s: %w", userID, err)
	}
	return claimsHavePlan(u.CustomClaims, plan), nil
}

// snapshotFromClaims decodes the subscription claim. A missing claim is not an error.
func snapshotFromClaims(claims map[string]interface{}) (*model.MobileSnapshot, error) {
	raw, ok := claims[subscriptionClaim]
	if !ok || raw == nil {
		return nil, nil
	}
	b, err := json.Marshal(raw)
	if err != nil {
		return nil, fmt.Errorf("encode subscription claim: %w", err)
	}
	var snap model.MobileSnapshot
	if err := json.Unmarshal(b, &snap); err != nil {
		return nil, fmt.Errorf("decode subscription claim: %w", err)
	}
	return &snap, nil
}

func snapshotToClaim(snap model.MobileSnapshot) (map[string]interface{}, error) {
	b, err := json.Marshal(snap)
	if err != nil {
		return nil, fmt.Errorf("encode snapshot: %w", err)
	}
	var out map[string]interface{}
	if err := json.Unmarshal(b, &out); err != nil {
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}
	return out, nil
}

// claimsHavePlan accepts either a "plan" string or a "plans" list.
func claimsHavePlan(claims map[string]interface{}, plan string) bool {
	if p, ok := claims["plan"].(string); ok && strings.EqualFold(p, plan) {
		return true
	}
	if list, ok := claims["plans"].([]interface{}); ok {
		for _, item := range list {
			if p, ok := item.(string); ok && strings.EqualFold(p, plan) {
				return true
			}
		}
	}
	return false
}
