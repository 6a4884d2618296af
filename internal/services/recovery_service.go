package services

import (
	"context"
	"fmt"
	"time"

	"github.com/soundbites/quizapi/internal/auth"
	"github.com/soundbites/quizapi/internal/models"
)

// RecoveryRepository stores one recovery secret per account
type RecoveryRepository interface {
	Upsert(ctx context.Context, secret *models.RecoverySecret) error
	GetByAccountID(ctx context.Context, accountID string) (*models.RecoverySecret, error)
	List(ctx context.Context) ([]*models.RecoverySecret, error)
	Redeem(ctx context.Context, redemption models.RecoveryRedemption) error
}

// RecoveryService manages the recovery codes. Plaintext codes are returned
// to the caller once and never stored.
type RecoveryService struct {
	repo RecoveryRepository
	now  func() time.Time
}

func NewRecoveryService(repo RecoveryRepository) *RecoveryService {
	return &RecoveryService{repo: repo, now: time.Now}
}

// Mint creates a new code and the secret that verifies it, without storing
// anything. accountID may be empty when the account does not exist yet.
func (s *RecoveryService) Mint(accountID string) (string, *models.RecoverySecret, error) {
	code, err := auth.GenerateRecoveryCode()
	if err != nil {
		return "", nil, fmt.Errorf("failed to generate recovery code: %w", err)
	}
	salt, err := auth.GenerateRecoverySalt()
	if err != nil {
		return "", nil, fmt.Errorf("failed to generate recovery salt: %w", err)
	}

	return code, &models.RecoverySecret{
		AccountID: accountID,
		Salt:      salt,
		CodeHash:  auth.HashRecoveryCode(salt, code),
		CreatedAt: s.now().UTC(),
	}, nil
}

// Generate stores a fresh secret for the account, replacing any previous
// one, and returns the plaintext code.
func (s *RecoveryService) Generate(ctx context.Context, accountID string) (string, error) {
	code, secret, err := s.Mint(accountID)
	if err != nil {
		return "", err
	}
	if err := s.repo.Upsert(ctx, secret); err != nil {
		return "", err
	}
	return code, nil
}

// Rotate invalidates the account's current code by generating a new one
func (s *RecoveryService) Rotate(ctx context.Context, accountID string) (string, error) {
	return s.Generate(ctx, accountID)
}

// Verify returns the secret the candidate code belongs to. Every stored
// secret is compared so the time taken does not depend on which one matched.
func (s *RecoveryService) Verify(ctx context.Context, candidate string) (*models.RecoverySecret, error) {
	secrets, err := s.repo.List(ctx)
	if err != nil {
		return nil, err
	}

	var match *models.RecoverySecret
	for _, secret := range secrets {
		if auth.RecoveryCodeMatches(secret.Salt, secret.CodeHash, candidate) && match == nil {
			match = secret
		}
	}
	if match == nil {
		return nil, models.ErrInvalidRecoveryCode
	}
	return match, nil
}

// Redeem applies a recovery atomically; see RecoveryRepository.Redeem
func (s *RecoveryService) Redeem(ctx context.Context, redemption models.RecoveryRedemption) error {
	return s.repo.Redeem(ctx, redemption)
}
