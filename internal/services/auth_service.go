package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode"

	"github.com/soundbites/quizapi/internal/auth"
	"github.com/soundbites/quizapi/internal/models"
	"github.com/soundbites/quizapi/internal/observability"
	pkgauth "github.com/soundbites/quizapi/pkg/auth"
	pkglogger "github.com/soundbites/quizapi/pkg/logger"
)

// MaxIdentifierLength bounds usernames and email addresses
const MaxIdentifierLength = 254

// AccountRepository is the credential store
type AccountRepository interface {
	GetByID(ctx context.Context, id string) (*models.Account, error)
	GetByIdentifier(ctx context.Context, identifier string) (*models.Account, error)
	List(ctx context.Context, limit, offset int) ([]*models.Account, error)
	Count(ctx context.Context) (int, error)
	Create(ctx context.Context, account *models.Account, secret *models.RecoverySecret) (*models.Account, error)
	CreateFirst(ctx context.Context, account *models.Account, secret *models.RecoverySecret) (*models.Account, error)
	UpdatePassword(ctx context.Context, id, passwordHash string) error
	Update(ctx context.Context, account *models.Account) (*models.Account, error)
	Delete(ctx context.Context, id string) error
}

// PasswordHasher hashes and verifies passwords off the request path.
// Errors mean the hasher could not run, never that the password was wrong.
type PasswordHasher interface {
	Hash(ctx context.Context, plaintext string) (string, error)
	Verify(ctx context.Context, plaintext, hash string) (bool, error)
	VerifyDummy(ctx context.Context, plaintext string) error
}

// TokenIssuer signs and verifies session tokens
type TokenIssuer interface {
	Issue(accountID, role string) (*models.SessionToken, error)
	Verify(token string) (*models.Principal, error)
}

// RequestMeta identifies the client behind an auth call
type RequestMeta struct {
	Fingerprint string
	IPAddress   string
	UserAgent   string
}

// AuthServiceConfig holds the controller's tunables
type AuthServiceConfig struct {
	StoreTimeout   time.Duration
	PasswordPolicy pkgauth.PasswordPolicy
	Timing         *auth.TimingDelay
}

// LoginResult is returned by a successful login
type LoginResult struct {
	Token   *models.SessionToken
	Account models.AccountView
}

// RecoveryCodeResult carries a plaintext recovery code for one-time display
type RecoveryCodeResult struct {
	Code string `json:"recoveryCode"`
	QR   string `json:"recoveryCodeQr,omitempty"`
}

// InitializeResult is returned when an account is provisioned
type InitializeResult struct {
	Account  models.AccountView
	Recovery RecoveryCodeResult
}

// AuthService is the session controller. It composes the credential store,
// hasher, token issuer, rate limiter and recovery manager into the login,
// verify, logout, change-password, recover and initialize operations.
type AuthService struct {
	accounts     AccountRepository
	recovery     *RecoveryService
	limiter      *RateLimitService
	hasher       PasswordHasher
	tokens       TokenIssuer
	notifier     Notifier
	policy       pkgauth.PasswordPolicy
	storeTimeout time.Duration
	timing       *auth.TimingDelay
	logger       *slog.Logger
	auditLogger  *pkglogger.AuditLogger
	now          func() time.Time
}

func NewAuthService(
	accounts AccountRepository,
	recovery *RecoveryService,
	limiter *RateLimitService,
	hasher PasswordHasher,
	tokens TokenIssuer,
	notifier Notifier,
	cfg AuthServiceConfig,
	logger *slog.Logger,
	auditLogger *pkglogger.AuditLogger,
) *AuthService {
	if cfg.StoreTimeout <= 0 {
		cfg.StoreTimeout = 3 * time.Second
	}
	if cfg.PasswordPolicy.MinLength == 0 {
		cfg.PasswordPolicy = pkgauth.NewPasswordPolicy(pkgauth.DefaultMinPasswordLen)
	}
	return &AuthService{
		accounts:     accounts,
		recovery:     recovery,
		limiter:      limiter,
		hasher:       hasher,
		tokens:       tokens,
		notifier:     notifier,
		policy:       cfg.PasswordPolicy,
		storeTimeout: cfg.StoreTimeout,
		timing:       cfg.Timing,
		logger:       logger,
		auditLogger:  auditLogger,
		now:          time.Now,
	}
}

// Login verifies credentials for the fingerprint and issues a session token.
// Unknown identifiers and wrong passwords fail identically.
func (s *AuthService) Login(ctx context.Context, identifier, password string, meta RequestMeta) (*LoginResult, error) {
	start := s.now()
	identifier = strings.TrimSpace(identifier)

	lockout, err := s.reserveAttempt(ctx, pkglogger.EventLogin, identifier, meta)
	if err != nil {
		return nil, err
	}

	account, err := s.lookupIdentifier(ctx, identifier)
	if err != nil {
		return nil, s.unavailable(ctx, "login", err)
	}

	valid := false
	if account == nil {
		if err := s.hasher.VerifyDummy(ctx, password); err != nil {
			return nil, s.unavailable(ctx, "login", err)
		}
	} else {
		valid, err = s.hasher.Verify(ctx, password, account.PasswordHash)
		if err != nil {
			return nil, s.unavailable(ctx, "login", err)
		}
	}

	if !valid {
		s.auditLogger.LogAuthAttempt(ctx, s.auditEvent(pkglogger.EventLogin, "", identifier, meta, false, "invalid_credentials"))
		s.auditLockout(ctx, identifier, meta, lockout)
		s.timing.WaitFrom(ctx, start)
		return nil, models.ErrInvalidCredentials
	}

	s.clearFingerprint(ctx, meta)

	token, err := s.tokens.Issue(account.ID, account.Role)
	if err != nil {
		return nil, s.unavailable(ctx, "login", err)
	}

	s.auditLogger.LogAuthAttempt(ctx, s.auditEvent(pkglogger.EventLogin, account.ID, identifier, meta, true, ""))
	return &LoginResult{Token: token, Account: account.View()}, nil
}

// Authenticate verifies a bearer token and confirms its account still
// exists. The returned role is the account's current role.
func (s *AuthService) Authenticate(ctx context.Context, token string) (*models.Principal, error) {
	account, err := s.verifyAccount(ctx, token)
	if err != nil {
		return nil, err
	}
	return &models.Principal{AccountID: account.ID, Role: account.Role}, nil
}

// Verify is Authenticate for the /auth/verify endpoint, returning the public view
func (s *AuthService) Verify(ctx context.Context, token string) (*models.AccountView, error) {
	account, err := s.verifyAccount(ctx, token)
	if err != nil {
		return nil, err
	}
	view := account.View()
	return &view, nil
}

func (s *AuthService) verifyAccount(ctx context.Context, token string) (*models.Account, error) {
	principal, err := s.tokens.Verify(token)
	if err != nil {
		return nil, err
	}

	sctx, cancel := s.storeCtx(ctx)
	defer cancel()

	account, err := s.accounts.GetByID(sctx, principal.AccountID)
	if errors.Is(err, models.ErrNotFound) {
		return nil, models.ErrTokenMalformed
	}
	if err != nil {
		return nil, s.unavailable(ctx, "verify", err)
	}
	return account, nil
}

// Logout only records the event. Tokens are stateless, so a discarded token
// stays valid until it expires; the handler clears the cookie.
func (s *AuthService) Logout(ctx context.Context, principal *models.Principal, meta RequestMeta) {
	accountID := ""
	if principal != nil {
		accountID = principal.AccountID
	}
	s.auditLogger.LogAuthAttempt(ctx, s.auditEvent(pkglogger.EventLogout, accountID, "", meta, true, ""))
}

// ChangePassword replaces the caller's password after re-checking the
// current one. A wrong current password counts as a failed attempt.
func (s *AuthService) ChangePassword(ctx context.Context, principal *models.Principal, currentPassword, newPassword string, meta RequestMeta) error {
	start := s.now()
	if principal == nil {
		return models.ErrUnauthorized
	}

	if err := s.validatePassword("newPassword", newPassword); err != nil {
		return err
	}
	if newPassword == currentPassword {
		return models.NewValidationError("newPassword", "must differ from the current password")
	}

	lockout, err := s.reserveAttempt(ctx, pkglogger.EventPasswordChange, "", meta)
	if err != nil {
		return err
	}

	sctx, cancel := s.storeCtx(ctx)
	account, err := s.accounts.GetByID(sctx, principal.AccountID)
	cancel()
	if errors.Is(err, models.ErrNotFound) {
		return models.ErrUnauthorized
	}
	if err != nil {
		return s.unavailable(ctx, "change_password", err)
	}

	valid, err := s.hasher.Verify(ctx, currentPassword, account.PasswordHash)
	if err != nil {
		return s.unavailable(ctx, "change_password", err)
	}
	if !valid {
		s.auditLogger.LogAuthAttempt(ctx, s.auditEvent(pkglogger.EventPasswordChange, account.ID, account.Identifier, meta, false, "invalid_current_password"))
		s.auditLockout(ctx, account.Identifier, meta, lockout)
		s.timing.WaitFrom(ctx, start)
		return models.ErrInvalidCredentials
	}

	hash, err := s.hasher.Hash(ctx, newPassword)
	if err != nil {
		return s.unavailable(ctx, "change_password", err)
	}

	sctx, cancel = s.storeCtx(ctx)
	err = s.accounts.UpdatePassword(sctx, account.ID, hash)
	cancel()
	if err != nil {
		return s.unavailable(ctx, "change_password", err)
	}

	s.clearFingerprint(ctx, meta)
	s.auditLogger.LogAuthAttempt(ctx, s.auditEvent(pkglogger.EventPasswordChange, account.ID, account.Identifier, meta, true, ""))
	s.notify(ctx, account.Identifier, NoticePasswordChanged)
	return nil
}

// RecoverAccount redeems a recovery code: the account gets the new
// identifier and password, and the code is replaced by a new one that is
// returned for one-time display. A used code never works again.
func (s *AuthService) RecoverAccount(ctx context.Context, code, newIdentifier, newPassword string, meta RequestMeta) (*RecoveryCodeResult, error) {
	start := s.now()
	newIdentifier = strings.TrimSpace(newIdentifier)

	lockout, err := s.reserveAttempt(ctx, pkglogger.EventAccountRecovery, "", meta)
	if err != nil {
		return nil, err
	}

	sctx, cancel := s.storeCtx(ctx)
	secret, err := s.recovery.Verify(sctx, code)
	cancel()
	if errors.Is(err, models.ErrInvalidRecoveryCode) {
		s.auditLogger.LogAuthAttempt(ctx, s.auditEvent(pkglogger.EventAccountRecovery, "", "", meta, false, "invalid_recovery_code"))
		s.auditLockout(ctx, "", meta, lockout)
		s.timing.WaitFrom(ctx, start)
		return nil, models.ErrInvalidRecoveryCode
	}
	if err != nil {
		return nil, s.unavailable(ctx, "recover_account", err)
	}
	// A valid code frees the slot even if the new credentials are rejected
	s.clearFingerprint(ctx, meta)

	if err := validateIdentifier("newIdentifier", newIdentifier); err != nil {
		return nil, err
	}
	if err := s.validatePassword("newPassword", newPassword); err != nil {
		return nil, err
	}

	owner, err := s.lookupIdentifier(ctx, newIdentifier)
	if err != nil {
		return nil, s.unavailable(ctx, "recover_account", err)
	}
	if owner != nil && owner.ID != secret.AccountID {
		return nil, models.NewValidationError("newIdentifier", "is already in use")
	}

	hash, err := s.hasher.Hash(ctx, newPassword)
	if err != nil {
		return nil, s.unavailable(ctx, "recover_account", err)
	}
	nextCode, next, err := s.recovery.Mint(secret.AccountID)
	if err != nil {
		return nil, s.unavailable(ctx, "recover_account", err)
	}

	sctx, cancel = s.storeCtx(ctx)
	err = s.recovery.Redeem(sctx, models.RecoveryRedemption{
		AccountID:        secret.AccountID,
		RedeemedCodeHash: secret.CodeHash,
		Next:             next,
		NewIdentifier:    newIdentifier,
		NewPasswordHash:  hash,
	})
	cancel()
	switch {
	case errors.Is(err, models.ErrInvalidRecoveryCode):
		// Redeemed concurrently by another request
		s.auditLogger.LogAuthAttempt(ctx, s.auditEvent(pkglogger.EventAccountRecovery, secret.AccountID, "", meta, false, "recovery_code_already_used"))
		return nil, models.ErrInvalidRecoveryCode
	case errors.Is(err, models.ErrConflict):
		return nil, models.NewValidationError("newIdentifier", "is already in use")
	case err != nil:
		return nil, s.unavailable(ctx, "recover_account", err)
	}

	s.auditLogger.LogAuthAttempt(ctx, s.auditEvent(pkglogger.EventAccountRecovery, secret.AccountID, newIdentifier, meta, true, ""))
	s.notify(ctx, newIdentifier, NoticeAccountRecovered)

	return s.recoveryResult(ctx, nextCode), nil
}

// InitializeAccount provisions an account and its first recovery code.
// Without an actor it only succeeds while the store is empty, and the
// account is an admin. Otherwise the actor must be an admin.
func (s *AuthService) InitializeAccount(ctx context.Context, actor *models.Principal, identifier, password, role string) (*InitializeResult, error) {
	identifier = strings.TrimSpace(identifier)

	if actor == nil {
		sctx, cancel := s.storeCtx(ctx)
		count, err := s.accounts.Count(sctx)
		cancel()
		if err != nil {
			return nil, s.unavailable(ctx, "initialize_account", err)
		}
		if count > 0 {
			return nil, models.ErrUnauthorized
		}
		role = models.RoleAdmin
	} else {
		if actor.Role != models.RoleAdmin {
			return nil, models.ErrForbidden
		}
		if role == "" {
			role = models.RoleViewer
		}
	}

	if !models.ValidRole(role) {
		return nil, models.NewValidationError("role", "must be one of admin, editor, viewer")
	}
	if err := validateIdentifier("identifier", identifier); err != nil {
		return nil, err
	}
	if err := s.validatePassword("password", password); err != nil {
		return nil, err
	}

	hash, err := s.hasher.Hash(ctx, password)
	if err != nil {
		return nil, s.unavailable(ctx, "initialize_account", err)
	}
	code, secret, err := s.recovery.Mint("")
	if err != nil {
		return nil, s.unavailable(ctx, "initialize_account", err)
	}

	account := &models.Account{Identifier: identifier, PasswordHash: hash, Role: role}

	sctx, cancel := s.storeCtx(ctx)
	var created *models.Account
	if actor == nil {
		created, err = s.accounts.CreateFirst(sctx, account, secret)
	} else {
		created, err = s.accounts.Create(sctx, account, secret)
	}
	cancel()

	switch {
	case errors.Is(err, models.ErrConflict) && actor == nil:
		// Lost the first-run race
		return nil, models.ErrUnauthorized
	case errors.Is(err, models.ErrConflict):
		return nil, models.NewValidationError("identifier", "is already in use")
	case err != nil:
		return nil, s.unavailable(ctx, "initialize_account", err)
	}

	actorID := ""
	eventType := pkglogger.EventAccountInitialized
	if actor != nil {
		actorID = actor.AccountID
		eventType = pkglogger.EventAccountCreated
	}
	s.auditLogger.LogAccountAction(ctx, eventType, created.ID, actorID, map[string]string{"role": created.Role})

	return &InitializeResult{
		Account:  created.View(),
		Recovery: *s.recoveryResult(ctx, code),
	}, nil
}

// RegenerateRecoveryCode replaces the caller's recovery code
func (s *AuthService) RegenerateRecoveryCode(ctx context.Context, principal *models.Principal) (*RecoveryCodeResult, error) {
	if principal == nil {
		return nil, models.ErrUnauthorized
	}

	sctx, cancel := s.storeCtx(ctx)
	defer cancel()

	if _, err := s.accounts.GetByID(sctx, principal.AccountID); err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, models.ErrUnauthorized
		}
		return nil, s.unavailable(ctx, "regenerate_recovery_code", err)
	}

	code, err := s.recovery.Rotate(sctx, principal.AccountID)
	if err != nil {
		return nil, s.unavailable(ctx, "regenerate_recovery_code", err)
	}

	s.auditLogger.LogAccountAction(ctx, pkglogger.EventRecoveryCodeRotated, principal.AccountID, principal.AccountID, nil)
	return s.recoveryResult(ctx, code), nil
}

func (s *AuthService) storeCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, s.storeTimeout)
}

// lookupIdentifier returns nil without error when no account matches
func (s *AuthService) lookupIdentifier(ctx context.Context, identifier string) (*models.Account, error) {
	if identifier == "" {
		return nil, nil
	}

	sctx, cancel := s.storeCtx(ctx)
	defer cancel()

	account, err := s.accounts.GetByIdentifier(sctx, identifier)
	if errors.Is(err, models.ErrNotFound) {
		return nil, nil
	}
	return account, err
}

// reserveAttempt takes the fingerprint's attempt slot before any credential
// is checked, so a burst of concurrent guesses gets no more checks than the
// threshold allows. It returns the lockout the slot triggered, if any.
func (s *AuthService) reserveAttempt(ctx context.Context, eventType, identifier string, meta RequestMeta) (time.Duration, error) {
	sctx, cancel := s.storeCtx(ctx)
	defer cancel()

	res, err := s.limiter.Reserve(sctx, meta.Fingerprint)
	if err != nil {
		return 0, s.unavailable(ctx, eventType, err)
	}
	if !res.Admitted {
		s.auditLogger.LogAuthAttempt(ctx, s.auditEvent(eventType, "", identifier, meta, false, "locked_out"))
		return 0, &models.LockedOutError{RetryAfter: res.RetryAfter}
	}
	return res.Lockout, nil
}

// auditLockout records a lockout once the attempt that used the last slot
// has failed.
func (s *AuthService) auditLockout(ctx context.Context, identifier string, meta RequestMeta, lockout time.Duration) {
	if lockout <= 0 {
		return
	}
	event := s.auditEvent(pkglogger.EventLockout, "", identifier, meta, false, "threshold_reached")
	event.Metadata = map[string]string{"lockout_seconds": fmt.Sprintf("%.0f", lockout.Seconds())}
	s.auditLogger.LogAuthAttempt(ctx, event)
}

// clearFingerprint is best-effort: the credential already checked out, and
// a leftover record ages out on its own.
func (s *AuthService) clearFingerprint(ctx context.Context, meta RequestMeta) {
	sctx, cancel := s.storeCtx(ctx)
	defer cancel()

	if err := s.limiter.Clear(sctx, meta.Fingerprint); err != nil {
		s.logger.WarnContext(ctx, "failed to clear rate limit record",
			slog.String("fingerprint", meta.Fingerprint),
			slog.Any("error", err))
	}
}

// unavailable logs and reports an infrastructure failure and hides it
// behind ErrServiceUnavailable.
func (s *AuthService) unavailable(ctx context.Context, operation string, err error) error {
	s.logger.ErrorContext(ctx, "auth operation failed",
		slog.String("operation", operation),
		slog.Any("error", err))
	observability.CaptureError(ctx, err, map[string]string{"operation": operation})
	return fmt.Errorf("%s: %w", operation, models.ErrServiceUnavailable)
}

func (s *AuthService) validatePassword(field, password string) error {
	if err := s.policy.Validate(password); err != nil {
		return models.NewValidationError(field, err.Error())
	}
	return nil
}

func (s *AuthService) notify(ctx context.Context, identifier string, notice SecurityNotice) {
	if s.notifier == nil || !isEmailAddress(identifier) {
		return
	}
	if err := s.notifier.SendSecurityNotice(ctx, identifier, notice, s.now()); err != nil {
		s.logger.WarnContext(ctx, "failed to send security notice",
			slog.String("notice", string(notice)),
			slog.Any("error", err))
	}
}

func (s *AuthService) recoveryResult(ctx context.Context, code string) *RecoveryCodeResult {
	result := &RecoveryCodeResult{Code: auth.FormatRecoveryCode(code)}
	qr, err := auth.RecoveryCodeQR(code)
	if err != nil {
		s.logger.WarnContext(ctx, "failed to render recovery code QR", slog.Any("error", err))
		return result
	}
	result.QR = qr
	return result
}

func (s *AuthService) auditEvent(eventType, accountID, identifier string, meta RequestMeta, success bool, reason string) pkglogger.AuditEvent {
	return pkglogger.AuditEvent{
		EventType:     eventType,
		AccountID:     accountID,
		Identifier:    identifier,
		Fingerprint:   meta.Fingerprint,
		IPAddress:     meta.IPAddress,
		UserAgent:     meta.UserAgent,
		Success:       success,
		FailureReason: reason,
	}
}

func validateIdentifier(field, identifier string) error {
	if identifier == "" {
		return models.NewValidationError(field, "is required")
	}
	if len(identifier) > MaxIdentifierLength {
		return models.NewValidationError(field, fmt.Sprintf("must be at most %d characters", MaxIdentifierLength))
	}
	for _, r := range identifier {
		if unicode.IsSpace(r) || unicode.IsControl(r) {
			return models.NewValidationError(field, "must not contain spaces")
		}
	}
	return nil
}
