package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"chatpro/internal/model"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// UsageRepository stores per-user, per-resource, per-bucket usage counters.
type UsageRepository interface {
	// Increment atomically creates the counter at 1 or adds 1 to it, returning the post-increment value.
	Increment(ctx context.Context, userID string, resource model.ResourceClass, bucket string, bucketStart time.Time) (int64, error)
	// GetCount returns the counter value, or 0 when the bucket has no row yet.
	GetCount(ctx context.Context, userID string, resource model.ResourceClass, bucket string) (int64, error)
	// PruneBefore deletes counters whose bucket started before cutoff.
	PruneBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

type usageRepo struct {
	pool *pgxpool.Pool
}

// NewUsageRepo creates a new UsageRepository.
func NewUsageRepo(pool *pgxpool.Pool) UsageRepository {
	return &usageRepo{pool: pool}
}

func (r *usageRepo) Increment(ctx context.Context, userID string, resource model.ResourceClass, bucket string, bucketStart time.Time) (int64, error) {
	// Single statement: concurrent callers on the same key serialize on the
	// row lock and each observe a distinct count.
	const q = `
		INSERT INTO usage_counters (user_id, resource, bucket, count, bucket_start, updated_at)
		VALUES ($1, $2, $3, 1, $4, NOW())
		ON CONFLICT (user_id, resource, bucket) DO UPDATE
		SET count = usage_counters.count + 1,
			updated_at = NOW()
		RETURNING count
	`
	var count int64
	if err := r.pool.QueryRow(ctx, q, userID, string(resource), bucket, bucketStart).Scan(&count); err != nil {
		return 0, fmt.Errorf("increment %s usage for user %s: %w", resource, userID, err)
	}
	return count, nil
}

func (r *usageRepo) GetCount(ctx context.Context, userID string, resource model.ResourceClass, bucket string) (int64, error) {
	const q = `
        SELECT count
        FROM usage_counters
        WHERE user_id = $1
          AND resource = $2
          AND bucket = $3
    `
	var count int64
	if err := r.pool.QueryRow(ctx, q, userID, string(resource), bucket).Scan(&count); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, nil
		}
		return 0, fmt.Errorf("read %s usage for user %s: %w", resource, userID, err)
	}
	return count, nil
}

func (r *usageRepo) PruneBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := r.pool.Exec(ctx, `DELETE FROM usage_counters WHERE bucket_start < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("prune usage counters before %s: %w", cutoff.Format(time.RFC3339), err)
	}
	return tag.RowsAffected(), nil
}
