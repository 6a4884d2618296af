package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/soundbites/quizapi/internal/database"
	"github.com/soundbites/quizapi/internal/models"
)

// RateLimitRepository keeps rate-limit records in Postgres so every
// instance behind a load balancer shares them.
type RateLimitRepository struct {
	pool *pgxpool.Pool
}

func NewRateLimitRepository(db *database.DB) *RateLimitRepository {
	return &RateLimitRepository{pool: db.Pool}
}

// Reserve locks the fingerprint's row for the whole read-modify-write, so
// concurrent attempts are admitted one after another and none slips past a
// lock taken by the one before it.
func (r *RateLimitRepository) Reserve(ctx context.Context, fingerprint string, now time.Time, policy models.RateLimitPolicy) (*models.RateLimitRecord, bool, error) {
	rec := &models.RateLimitRecord{Fingerprint: fingerprint}
	var admitted bool

	err := database.WithTransaction(ctx, r.pool, func(tx pgx.Tx) error {
		insert := `
			INSERT INTO rate_limit_records (fingerprint, updated_at)
			VALUES ($1, $2)
			ON CONFLICT (fingerprint) DO NOTHING
		`
		if _, err := tx.Exec(ctx, insert, fingerprint, now); err != nil {
			return fmt.Errorf("failed to create rate limit record: %w", err)
		}

		selectForUpdate := `SELECT attempts, lock_until, updated_at FROM rate_limit_records WHERE fingerprint = $1 FOR UPDATE`
		if err := tx.QueryRow(ctx, selectForUpdate, fingerprint).Scan(&rec.Attempts, &rec.LockUntil, &rec.UpdatedAt); err != nil {
			return database.MapPostgresError(err)
		}

		admitted = reserveAttempt(rec, now, policy)

		update := `UPDATE rate_limit_records SET attempts = $2, lock_until = $3, updated_at = $4 WHERE fingerprint = $1`
		if _, err := tx.Exec(ctx, update, fingerprint, rec.Attempts, rec.LockUntil, rec.UpdatedAt); err != nil {
			return fmt.Errorf("failed to update rate limit record: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	return rec, admitted, nil
}

// Get returns the pruned record, or an empty one when the fingerprint has no
// failures. A record whose lock has expired is deleted.
func (r *RateLimitRepository) Get(ctx context.Context, fingerprint string, now time.Time, policy models.RateLimitPolicy) (*models.RateLimitRecord, error) {
	rec := &models.RateLimitRecord{Fingerprint: fingerprint}

	query := `SELECT attempts, lock_until, updated_at FROM rate_limit_records WHERE fingerprint = $1`
	err := r.pool.QueryRow(ctx, query, fingerprint).Scan(&rec.Attempts, &rec.LockUntil, &rec.UpdatedAt)
	if err == pgx.ErrNoRows {
		return rec, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get rate limit record: %w", err)
	}

	expiredLock := rec.LockUntil
	if pruneRecord(rec, now, policy) {
		// Only delete if no failure re-locked the row since it was read
		del := `DELETE FROM rate_limit_records WHERE fingerprint = $1 AND lock_until = $2`
		if _, err := r.pool.Exec(ctx, del, fingerprint, *expiredLock); err != nil {
			return nil, fmt.Errorf("failed to clear expired lock: %w", err)
		}
	}
	return rec, nil
}

func (r *RateLimitRepository) Clear(ctx context.Context, fingerprint string) error {
	if _, err := r.pool.Exec(ctx, `DELETE FROM rate_limit_records WHERE fingerprint = $1`, fingerprint); err != nil {
		return fmt.Errorf("failed to clear rate limit record: %w", err)
	}
	return nil
}

// DeleteStale removes records untouched since before whose lock, if any, has
// also passed.
func (r *RateLimitRepository) DeleteStale(ctx context.Context, before time.Time) (int64, error) {
	query := `
		DELETE FROM rate_limit_records
		WHERE updated_at < $1 AND (lock_until IS NULL OR lock_until < $1)
	`
	tag, err := r.pool.Exec(ctx, query, before)
	if err != nil {
		return 0, fmt.Errorf("failed to delete stale rate limit records: %w", err)
	}
	return tag.RowsAffected(), nil
}
