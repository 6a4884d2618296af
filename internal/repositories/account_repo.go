package repositories

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/soundbites/quizapi/internal/database"
	"github.com/soundbites/quizapi/internal/models"
)

// firstAccountLockKey serialises concurrent first-run initialisations
const firstAccountLockKey = 7248150931

const accountColumns = `id, identifier, password_hash, role, created_at, updated_at`

// AccountRepository is the Postgres credential store
type AccountRepository struct {
	pool *pgxpool.Pool
}

func NewAccountRepository(db *database.DB) *AccountRepository {
	return &AccountRepository{pool: db.Pool}
}

// rowScanner is implemented by pgx.Row and pgx.Rows
type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanAccountRow(scanner rowScanner) (*models.Account, error) {
	var a models.Account
	err := scanner.Scan(&a.ID, &a.Identifier, &a.PasswordHash, &a.Role, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}
	return &a, nil
}

func scanAccountRows(rows pgx.Rows) ([]*models.Account, error) {
	defer rows.Close()

	accounts := make([]*models.Account, 0)
	for rows.Next() {
		a, err := scanAccountRow(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan account: %w", err)
		}
		accounts = append(accounts, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}
	return accounts, nil
}

func (r *AccountRepository) GetByID(ctx context.Context, id string) (*models.Account, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, models.ErrNotFound
	}
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE id = $1`
	return scanAccountRow(r.pool.QueryRow(ctx, query, id))
}

// GetByIdentifier looks an account up case-insensitively
func (r *AccountRepository) GetByIdentifier(ctx context.Context, identifier string) (*models.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE lower(identifier) = lower($1)`
	return scanAccountRow(r.pool.QueryRow(ctx, query, strings.TrimSpace(identifier)))
}

func (r *AccountRepository) List(ctx context.Context, limit, offset int) ([]*models.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts ORDER BY created_at ASC LIMIT $1 OFFSET $2`

	rows, err := r.pool.Query(ctx, query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to query accounts: %w", err)
	}
	return scanAccountRows(rows)
}

func (r *AccountRepository) Count(ctx context.Context) (int, error) {
	var count int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM accounts`).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count accounts: %w", err)
	}
	return count, nil
}

// Create inserts the account and, when secret is non-nil, its initial
// recovery secret in the same transaction.
func (r *AccountRepository) Create(ctx context.Context, account *models.Account, secret *models.RecoverySecret) (*models.Account, error) {
	var created *models.Account
	err := database.WithTransaction(ctx, r.pool, func(tx pgx.Tx) error {
		var err error
		created, err = insertAccount(ctx, tx, account, secret)
		return err
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

// CreateFirst inserts the account only when the store is empty. Concurrent
// callers are serialised by an advisory lock; all but one get ErrConflict.
func (r *AccountRepository) CreateFirst(ctx context.Context, account *models.Account, secret *models.RecoverySecret) (*models.Account, error) {
	var created *models.Account
	err := database.WithTransaction(ctx, r.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock($1)`, firstAccountLockKey); err != nil {
			return fmt.Errorf("failed to acquire initialization lock: %w", err)
		}

		var exists bool
		if err := tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM accounts)`).Scan(&exists); err != nil {
			return fmt.Errorf("failed to check for accounts: %w", err)
		}
		if exists {
			return models.ErrConflict
		}

		var err error
		created, err = insertAccount(ctx, tx, account, secret)
		return err
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

func insertAccount(ctx context.Context, tx pgx.Tx, account *models.Account, secret *models.RecoverySecret) (*models.Account, error) {
	now := time.Now().UTC()
	account.ID = uuid.New().String()
	account.Identifier = strings.TrimSpace(account.Identifier)
	account.CreatedAt = now
	account.UpdatedAt = now
	if account.Role == "" {
		account.Role = models.RoleViewer
	}

	query := `
		INSERT INTO accounts (id, identifier, password_hash, role, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING ` + accountColumns

	created, err := scanAccountRow(tx.QueryRow(ctx, query,
		account.ID, account.Identifier, account.PasswordHash, account.Role, account.CreatedAt, account.UpdatedAt,
	))
	if err != nil {
		return nil, err
	}

	if secret != nil {
		secret.AccountID = created.ID
		if err := upsertRecoverySecret(ctx, tx, secret); err != nil {
			return nil, err
		}
	}
	return created, nil
}

func (r *AccountRepository) UpdatePassword(ctx context.Context, id, passwordHash string) error {
	query := `UPDATE accounts SET password_hash = $2, updated_at = now() WHERE id = $1`

	tag, err := r.pool.Exec(ctx, query, id, passwordHash)
	if err != nil {
		return database.MapPostgresError(err)
	}
	if tag.RowsAffected() == 0 {
		return models.ErrNotFound
	}
	return nil
}

// Update writes the account's identifier, password hash and role. A clash
// with another account's identifier is ErrConflict.
func (r *AccountRepository) Update(ctx context.Context, account *models.Account) (*models.Account, error) {
	if _, err := uuid.Parse(account.ID); err != nil {
		return nil, models.ErrNotFound
	}

	query := `
		UPDATE accounts
		SET identifier = $2, password_hash = $3, role = $4, updated_at = now()
		WHERE id = $1
		RETURNING ` + accountColumns

	return scanAccountRow(r.pool.QueryRow(ctx, query,
		account.ID, strings.TrimSpace(account.Identifier), account.PasswordHash, account.Role,
	))
}

func (r *AccountRepository) Delete(ctx context.Context, id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return models.ErrNotFound
	}

	tag, err := r.pool.Exec(ctx, `DELETE FROM accounts WHERE id = $1`, id)
	if err != nil {
		return database.MapPostgresError(err)
	}
	if tag.RowsAffected() == 0 {
		return models.ErrNotFound
	}
	return nil
}
