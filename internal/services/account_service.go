package services

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/soundbites/quizapi/internal/models"
	pkgauth "github.com/soundbites/quizapi/pkg/auth"
	pkglogger "github.com/soundbites/quizapi/pkg/logger"
)

// AccountUpdate carries the fields an admin wants to change. Empty fields
// are left as they are.
type AccountUpdate struct {
	Identifier string
	Password   string
	Role       string
}

// AccountService handles administrative account listing, editing and
// removal. Creation goes through AuthService.InitializeAccount.
type AccountService struct {
	repo        AccountRepository
	hasher      PasswordHasher
	policy      pkgauth.PasswordPolicy
	logger      *slog.Logger
	auditLogger *pkglogger.AuditLogger
}

func NewAccountService(repo AccountRepository, hasher PasswordHasher, policy pkgauth.PasswordPolicy, logger *slog.Logger, auditLogger *pkglogger.AuditLogger) *AccountService {
	if policy.MinLength == 0 {
		policy = pkgauth.NewPasswordPolicy(pkgauth.DefaultMinPasswordLen)
	}
	return &AccountService{
		repo:        repo,
		hasher:      hasher,
		policy:      policy,
		logger:      logger,
		auditLogger: auditLogger,
	}
}

// ListAccounts returns the public views of a page of accounts
func (s *AccountService) ListAccounts(ctx context.Context, limit, offset int) ([]models.AccountView, error) {
	accounts, err := s.repo.List(ctx, limit, offset)
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to list accounts",
			slog.Int("limit", limit), slog.Int("offset", offset), slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	views := make([]models.AccountView, 0, len(accounts))
	for _, a := range accounts {
		views = append(views, a.View())
	}
	return views, nil
}

// UpdateAccount changes another account's identifier, password or role.
// An admin cannot take the admin role away from themselves.
func (s *AccountService) UpdateAccount(ctx context.Context, actor *models.Principal, id string, update AccountUpdate) (*models.AccountView, error) {
	if actor == nil {
		return nil, models.ErrUnauthorized
	}

	identifier := strings.TrimSpace(update.Identifier)
	if identifier == "" && update.Password == "" && update.Role == "" {
		return nil, models.NewValidationError("request", "no fields to update")
	}
	if update.Role != "" && !models.ValidRole(update.Role) {
		return nil, models.NewValidationError("role", "must be one of admin, editor, viewer")
	}
	if actor.AccountID == id && update.Role != "" && update.Role != models.RoleAdmin {
		return nil, models.NewValidationError("role", "cannot remove your own admin role")
	}
	if identifier != "" {
		if err := validateIdentifier("identifier", identifier); err != nil {
			return nil, err
		}
	}
	if update.Password != "" {
		if err := s.policy.Validate(update.Password); err != nil {
			return nil, models.NewValidationError("password", err.Error())
		}
	}

	account, err := s.repo.GetByID(ctx, id)
	if errors.Is(err, models.ErrNotFound) {
		return nil, models.ErrNotFound
	}
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to load account", slog.String("account_id", id), slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	changed := make(map[string]string)
	if identifier != "" && identifier != account.Identifier {
		account.Identifier = identifier
		changed["identifier_changed"] = "true"
	}
	if update.Role != "" && update.Role != account.Role {
		changed["old_role"] = account.Role
		changed["new_role"] = update.Role
		account.Role = update.Role
	}
	if update.Password != "" {
		hash, err := s.hasher.Hash(ctx, update.Password)
		if err != nil {
			s.logger.ErrorContext(ctx, "failed to hash password", slog.String("account_id", id), slog.Any("error", err))
			return nil, models.ErrInternalServer
		}
		account.PasswordHash = hash
		changed["password_reset"] = "true"
	}

	updated, err := s.repo.Update(ctx, account)
	switch {
	case errors.Is(err, models.ErrConflict):
		return nil, models.NewValidationError("identifier", "is already in use")
	case errors.Is(err, models.ErrNotFound):
		return nil, models.ErrNotFound
	case err != nil:
		s.logger.ErrorContext(ctx, "failed to update account", slog.String("account_id", id), slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	s.auditLogger.LogAccountAction(ctx, pkglogger.EventAccountUpdated, id, actor.AccountID, changed)
	view := updated.View()
	return &view, nil
}

// DeleteAccount removes an account. Admins cannot delete themselves, so at
// least one admin always remains.
func (s *AccountService) DeleteAccount(ctx context.Context, actor *models.Principal, id string) error {
	if actor == nil {
		return models.ErrUnauthorized
	}
	if actor.AccountID == id {
		return models.NewValidationError("id", "cannot delete your own account")
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return models.ErrNotFound
		}
		s.logger.ErrorContext(ctx, "failed to delete account", slog.String("account_id", id), slog.Any("error", err))
		return models.ErrInternalServer
	}

	s.auditLogger.LogAccountAction(ctx, pkglogger.EventAccountDeleted, id, actor.AccountID, nil)
	return nil
}
