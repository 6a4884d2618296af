package repositories

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/soundbites/quizapi/internal/database"
	"github.com/soundbites/quizapi/internal/models"
)

// RecoveryRepository stores one salted recovery hash per account
type RecoveryRepository struct {
	pool *pgxpool.Pool
}

func NewRecoveryRepository(db *database.DB) *RecoveryRepository {
	return &RecoveryRepository{pool: db.Pool}
}

func upsertRecoverySecret(ctx context.Context, tx pgx.Tx, secret *models.RecoverySecret) error {
	if secret.CreatedAt.IsZero() {
		secret.CreatedAt = time.Now().UTC()
	}
	query := `
		INSERT INTO recovery_secrets (account_id, salt, code_hash, created_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (account_id) DO UPDATE
		SET salt = EXCLUDED.salt, code_hash = EXCLUDED.code_hash, created_at = EXCLUDED.created_at
	`
	if _, err := tx.Exec(ctx, query, secret.AccountID, secret.Salt, secret.CodeHash, secret.CreatedAt); err != nil {
		return database.MapPostgresError(err)
	}
	return nil
}

// Upsert replaces the account's recovery secret, invalidating the previous code
func (r *RecoveryRepository) Upsert(ctx context.Context, secret *models.RecoverySecret) error {
	return database.WithTransaction(ctx, r.pool, func(tx pgx.Tx) error {
		return upsertRecoverySecret(ctx, tx, secret)
	})
}

func (r *RecoveryRepository) GetByAccountID(ctx context.Context, accountID string) (*models.RecoverySecret, error) {
	query := `SELECT account_id, salt, code_hash, created_at FROM recovery_secrets WHERE account_id = $1`

	var s models.RecoverySecret
	err := r.pool.QueryRow(ctx, query, accountID).Scan(&s.AccountID, &s.Salt, &s.CodeHash, &s.CreatedAt)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}
	return &s, nil
}

func (r *RecoveryRepository) List(ctx context.Context) ([]*models.RecoverySecret, error) {
	rows, err := r.pool.Query(ctx, `SELECT account_id, salt, code_hash, created_at FROM recovery_secrets`)
	if err != nil {
		return nil, fmt.Errorf("failed to query recovery secrets: %w", err)
	}
	defer rows.Close()

	secrets := make([]*models.RecoverySecret, 0)
	for rows.Next() {
		var s models.RecoverySecret
		if err := rows.Scan(&s.AccountID, &s.Salt, &s.CodeHash, &s.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan recovery secret: %w", err)
		}
		secrets = append(secrets, &s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}
	return secrets, nil
}

// Redeem swaps the redeemed secret for the next one and replaces the account
// credentials in one transaction. A secret that no longer holds the redeemed
// hash means the code was already used, and nothing is written.
func (r *RecoveryRepository) Redeem(ctx context.Context, redemption models.RecoveryRedemption) error {
	next := redemption.Next
	if next == nil {
		return fmt.Errorf("redeem: next recovery secret is required")
	}
	if next.CreatedAt.IsZero() {
		next.CreatedAt = time.Now().UTC()
	}

	return database.WithTransaction(ctx, r.pool, func(tx pgx.Tx) error {
		swap := `
			UPDATE recovery_secrets
			SET salt = $3, code_hash = $4, created_at = $5
			WHERE account_id = $1 AND code_hash = $2
		`
		tag, err := tx.Exec(ctx, swap, redemption.AccountID, redemption.RedeemedCodeHash, next.Salt, next.CodeHash, next.CreatedAt)
		if err != nil {
			return database.MapPostgresError(err)
		}
		if tag.RowsAffected() == 0 {
			return models.ErrInvalidRecoveryCode
		}

		update := `UPDATE accounts SET identifier = $2, password_hash = $3, updated_at = now() WHERE id = $1`
		tag, err = tx.Exec(ctx, update, redemption.AccountID, strings.TrimSpace(redemption.NewIdentifier), redemption.NewPasswordHash)
		if err != nil {
			return database.MapPostgresError(err)
		}
		if tag.RowsAffected() == 0 {
			return models.ErrNotFound
		}
		return nil
	})
}
