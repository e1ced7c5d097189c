package repository

import (
	"context"
	"errors"
	"fmt"

	"chatpro/internal/model"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// SubscriptionRepository defines methods for accessing web billing subscription records.
type SubscriptionRepository interface {
	// GetSubscription returns the user's record regardless of status, or nil when none exists.
	GetSubscription(ctx context.Context, userID string) (*model.SubscriptionRecord, error)
	UpsertStripeSubscription(ctx context.Context, in model.SubscriptionUpsert) error
	// CancelByStripeSubscriptionID marks the record owning subID as canceled/free and returns
	// the owning user id. found is false when no record matched.
	CancelByStripeSubscriptionID(ctx context.Context, subID string) (userID string, found bool, err error)
}

type subscriptionRepo struct {
	pool *pgxpool.Pool
}

// NewSubscriptionRepo creates a new SubscriptionRepository.
func NewSubscriptionRepo(pool *pgxpool.Pool) SubscriptionRepository {
	return &subscriptionRepo{pool: pool}
}

func (r *subscriptionRepo) GetSubscription(ctx context.Context, userID string) (*model.SubscriptionRecord, error) {
	const q = `
        SELECT user_id, plan, status, current_period_start, current_period_end,
               stripe_customer_id, stripe_subscription_id, created_at, updated_at
        FROM user_subscriptions
        WHERE user_id = $1
    `
	var us model.SubscriptionRecord
	err := r.pool.QueryRow(ctx, q, userID).Scan(
		&us.UserID,
		&us.Plan,
		&us.Status,
		&us.CurrentPeriodStart,
		&us.CurrentPeriodEnd,
		&us.StripeCustomerID,
		&us.StripeSubscriptionID,
		&us.CreatedAt,
		&us.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("fetch subscription for user %s: %w", userID, err)
	}
	return &us, nil
}

func (r *subscriptionRepo) UpsertStripeSubscription(ctx context.Context, in model.SubscriptionUpsert) error {
	const q = `
		INSERT INTO user_subscriptions (user_id, plan, status, current_period_start, current_period_end,
		                                stripe_customer_id, stripe_subscription_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, NULLIF($6, ''), NULLIF($7, ''), NOW(), NOW())
		ON CONFLICT (user_id) DO UPDATE
		SET plan = EXCLUDED.plan,
			status = EXCLUDED.status,
			current_period_start = EXCLUDED.current_period_start,
			current_period_end = EXCLUDED.current_period_end,
			stripe_customer_id = COALESCE(EXCLUDED.stripe_customer_id, user_subscriptions.stripe_customer_id),
			stripe_subscription_id = COALESCE(EXCLUDED.stripe_subscription_id, user_subscriptions.stripe_subscription_id),
			updated_at = NOW();
	`
	_, err := r.pool.Exec(ctx, q,
		in.UserID,
		string(in.Plan),
		in.Status,
		in.CurrentPeriodStart,
		in.CurrentPeriodEnd,
		in.StripeCustomerID,
		in.StripeSubscriptionID,
	)
	if err != nil {
		return fmt.Errorf("upsert stripe subscription for user %s: %w", in.UserID, err)
	}
	return nil
}

func (r *subscriptionRepo) CancelByStripeSubscriptionID(ctx context.Context, subID string) (string, bool, error) {
	const q = `
		UPDATE user_subscriptions
		SET status = 'canceled',
			plan = 'free',
			updated_at = NOW()
		WHERE stripe_subscription_id = $1
		RETURNING user_id;
	`
	var userID string
	if err := r.pool.QueryRow(ctx, q, subID).Scan(&userID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("cancel stripe subscription %s: %w", subID, err)
	}
	return userID, true, nil
}
