package repository

import (
	"context"
	"errors"
	"fmt"

	"chatpro/internal/model"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type UserRepository interface {
	GetUserByID(ctx context.Context, id string) (*model.User, error)
	GetUserByStripeCustomerID(ctx context.Context, customerID string) (*model.User, error)
	// SetStripeCustomerIDIfUnset records customerID for the user unless one is already stored.
	SetStripeCustomerIDIfUnset(ctx context.Context, userID, customerID string) error
	UpdateStripeCustomerID(ctx context.Context, userID, customerID string) error
}

type userRepo struct {
	pool *pgxpool.Pool
}

func NewUserRepo(pool *pgxpool.Pool) UserRepository {
	return &userRepo{pool: pool}
}

func (r *userRepo) GetUserByID(ctx context.Context, id string) (*model.User, error) {
	const q = `SELECT user_id, email, stripe_customer_id, created_at, updated_at FROM user_profiles WHERE user_id = $1`
	return r.scanOne(ctx, q, id)
}

func (r *userRepo) GetUserByStripeCustomerID(ctx context.Context, customerID string) (*model.User, error) {
	const q = `SELECT user_id, email, stripe_customer_id, created_at, updated_at FROM user_profiles WHERE stripe_customer_id = $1`
	return r.scanOne(ctx, q, customerID)
}

func (r *userRepo) scanOne(ctx context.Context, q string, arg string) (*model.User, error) {
	var u model.User
	err := r.pool.QueryRow(ctx, q, arg).Scan(&u.UserID, &u.Email, &u.StripeCustomerID, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("fetch user profile: %w", err)
	}
	return &u, nil
}

func (r *userRepo) SetStripeCustomerIDIfUnset(ctx context.Context, userID, customerID string) error {
	const q = `
		INSERT INTO user_profiles (user_id, stripe_customer_id, created_at, updated_at)
		VALUES ($1, $2, NOW(), NOW())
		ON CONFLICT (user_id) DO UPDATE
		SET stripe_customer_id = $2,
			updated_at = NOW()
		WHERE user_profiles.stripe_customer_id IS NULL OR user_profiles.stripe_customer_id = '';
	`
	if _, err := r.pool.Exec(ctx, q, userID, customerID); err != nil {
		return fmt.Errorf("backfill stripe customer id for user %s: %w", userID, err)
	}
	return nil
}

func (r *userRepo) UpdateStripeCustomerID(ctx context.Context, userID, customerID string) error {
	const q = `
		INSERT INTO user_profiles (user_id, stripe_customer_id, created_at, updated_at)
		VALUES ($1, $2, NOW(), NOW())
		ON CONFLICT (user_id) DO UPDATE
		SET stripe_customer_id = EXCLUDED.stripe_customer_id,
			updated_at = NOW();
	`
	if _, err := r.pool.Exec(ctx, q, userID, customerID); err != nil {
		return fmt.Errorf("store stripe customer id for user %s: %w", userID, err)
	}
	return nil
}
