package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/soundbites/quizapi/internal/auth"
	"github.com/soundbites/quizapi/internal/models"
	"github.com/soundbites/quizapi/internal/services"
	pkghttp "github.com/soundbites/quizapi/pkg/http"
)

// AuthServiceInterface defines the interface for auth business logic
type AuthServiceInterface interface {
	Login(ctx context.Context, identifier, password string, meta services.RequestMeta) (*services.LoginResult, error)
	Verify(ctx context.Context, token string) (*models.AccountView, error)
	Logout(ctx context.Context, principal *models.Principal, meta services.RequestMeta)
	ChangePassword(ctx context.Context, principal *models.Principal, currentPassword, newPassword string, meta services.RequestMeta) error
	RecoverAccount(ctx context.Context, code, newIdentifier, newPassword string, meta services.RequestMeta) (*services.RecoveryCodeResult, error)
	InitializeAccount(ctx context.Context, actor *models.Principal, identifier, password, role string) (*services.InitializeResult, error)
	RegenerateRecoveryCode(ctx context.Context, principal *models.Principal) (*services.RecoveryCodeResult, error)
}

// AuthHandler handles authentication-related HTTP requests
type AuthHandler struct {
	service  AuthServiceInterface
	ipConfig *pkghttp.IPConfig
	cookies  auth.CookieConfig
}

// NewAuthHandler creates a new AuthHandler
func NewAuthHandler(service AuthServiceInterface, ipConfig *pkghttp.IPConfig, cookies auth.CookieConfig) *AuthHandler {
	return &AuthHandler{
		service:  service,
		ipConfig: ipConfig,
		cookies:  cookies,
	}
}

// Request DTOs

// LoginRequest represents the request body for login
type LoginRequest struct {
	Identifier string `json:"identifier" validate:"required,max=254"`
	Password   string `json:"password" validate:"required,max=1024"`
}

// ChangePasswordRequest represents the request body for a password change
type ChangePasswordRequest struct {
	CurrentPassword string `json:"currentPassword" validate:"required,max=1024"`
	NewPassword     string `json:"newPassword" validate:"required,max=1024"`
}

// RecoverRequest represents the request body for account recovery
type RecoverRequest struct {
	RecoveryCode  string `json:"recoveryCode" validate:"required,max=64"`
	NewIdentifier string `json:"newIdentifier" validate:"required,max=254"`
	NewPassword   string `json:"newPassword" validate:"required,max=1024"`
}

// InitializeRequest represents the request body for provisioning an account
type InitializeRequest struct {
	Identifier string `json:"identifier" validate:"required,max=254"`
	Password   string `json:"password" validate:"required,max=1024"`
	Role       string `json:"role" validate:"omitempty,oneof=admin editor viewer"`
}

// Response DTOs

// LoginResponse is returned by a successful login
type LoginResponse struct {
	Token     string             `json:"token"`
	ExpiresAt time.Time          `json:"expiresAt"`
	User      models.AccountView `json:"user"`
}

// VerifyResponse reports whether the presented session is valid
type VerifyResponse struct {
	Valid bool                `json:"valid"`
	User  *models.AccountView `json:"user,omitempty"`
	Error string              `json:"error,omitempty"`
}

// RecoverResponse carries the replacement recovery code
type RecoverResponse struct {
	NewRecoveryCode string `json:"newRecoveryCode"`
	RecoveryCodeQR  string `json:"recoveryCodeQr,omitempty"`
}

// InitializeResponse carries the new account and its first recovery code
type InitializeResponse struct {
	User           models.AccountView `json:"user"`
	RecoveryCode   string             `json:"recoveryCode"`
	RecoveryCodeQR string             `json:"recoveryCodeQr,omitempty"`
}

// SuccessResponse is the body of operations with nothing else to report
type SuccessResponse struct {
	Success bool `json:"success"`
}

func (h *AuthHandler) requestMeta(r *http.Request) services.RequestMeta {
	ip, userAgent := pkghttp.ClientInfo(r, h.ipConfig)
	return services.RequestMeta{
		Fingerprint: auth.Fingerprint(ip, userAgent),
		IPAddress:   ip,
		UserAgent:   userAgent,
	}
}

// Login handles POST /auth/login. The token is returned in the body and
// also set as an HttpOnly cookie.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := decodeAndValidate(w, r, &req); err != nil {
		writeServiceError(w, err)
		return
	}

	result, err := h.service.Login(r.Context(), req.Identifier, req.Password, h.requestMeta(r))
	if err != nil {
		writeServiceError(w, err)
		return
	}

	auth.SetSessionCookie(w, result.Token.Value, result.Token.ExpiresAt, h.cookies)
	pkghttp.WriteJSON(w, http.StatusOK, LoginResponse{
		Token:     result.Token.Value,
		ExpiresAt: result.Token.ExpiresAt,
		User:      result.Account,
	})
}

// Verify handles GET /auth/verify
func (h *AuthHandler) Verify(w http.ResponseWriter, r *http.Request) {
	token := auth.ExtractToken(r, h.cookies)
	if token == "" {
		pkghttp.WriteJSON(w, http.StatusUnauthorized, VerifyResponse{Valid: false, Error: "unauthorized"})
		return
	}

	view, err := h.service.Verify(r.Context(), token)
	if err != nil {
		switch {
		case errors.Is(err, models.ErrServiceUnavailable):
			writeServiceError(w, err)
		case errors.Is(err, models.ErrTokenExpired):
			pkghttp.WriteJSON(w, http.StatusUnauthorized, VerifyResponse{Valid: false, Error: "token_expired"})
		default:
			pkghttp.WriteJSON(w, http.StatusUnauthorized, VerifyResponse{Valid: false, Error: "unauthorized"})
		}
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, VerifyResponse{Valid: true, User: view})
}

// Logout handles POST /auth/logout. Tokens are stateless: the cookie is
// cleared, but a copied token keeps working until it expires.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	h.service.Logout(r.Context(), auth.GetPrincipalFromContext(r), h.requestMeta(r))
	auth.ClearSessionCookie(w, h.cookies)
	pkghttp.WriteJSON(w, http.StatusOK, SuccessResponse{Success: true})
}

// ChangePassword handles POST /auth/change-password
func (h *AuthHandler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	principal := auth.GetPrincipalFromContext(r)
	if principal == nil {
		pkghttp.WriteUnauthorized(w, "Authentication required")
		return
	}

	var req ChangePasswordRequest
	if err := decodeAndValidate(w, r, &req); err != nil {
		writeServiceError(w, err)
		return
	}

	if err := h.service.ChangePassword(r.Context(), principal, req.CurrentPassword, req.NewPassword, h.requestMeta(r)); err != nil {
		writeServiceError(w, err)
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, SuccessResponse{Success: true})
}

// Recover handles POST /auth/recover
func (h *AuthHandler) Recover(w http.ResponseWriter, r *http.Request) {
	var req RecoverRequest
	if err := decodeAndValidate(w, r, &req); err != nil {
		writeServiceError(w, err)
		return
	}

	result, err := h.service.RecoverAccount(r.Context(), req.RecoveryCode, req.NewIdentifier, req.NewPassword, h.requestMeta(r))
	if err != nil {
		writeServiceError(w, err)
		return
	}

	w.Header().Set("Cache-Control", "no-store")
	pkghttp.WriteJSON(w, http.StatusOK, RecoverResponse{
		NewRecoveryCode: result.Code,
		RecoveryCodeQR:  result.QR,
	})
}

// Initialize handles POST /auth/initialize. Anonymous callers can only
// create the first account; afterwards an admin session is required.
func (h *AuthHandler) Initialize(w http.ResponseWriter, r *http.Request) {
	var req InitializeRequest
	if err := decodeAndValidate(w, r, &req); err != nil {
		writeServiceError(w, err)
		return
	}

	result, err := h.service.InitializeAccount(r.Context(), auth.GetPrincipalFromContext(r), req.Identifier, req.Password, req.Role)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	w.Header().Set("Cache-Control", "no-store")
	pkghttp.WriteJSON(w, http.StatusCreated, InitializeResponse{
		User:           result.Account,
		RecoveryCode:   result.Recovery.Code,
		RecoveryCodeQR: result.Recovery.QR,
	})
}

// RegenerateRecoveryCode handles POST /auth/recovery-code
func (h *AuthHandler) RegenerateRecoveryCode(w http.ResponseWriter, r *http.Request) {
	principal := auth.GetPrincipalFromContext(r)
	if principal == nil {
		pkghttp.WriteUnauthorized(w, "Authentication required")
		return
	}

	result, err := h.service.RegenerateRecoveryCode(r.Context(), principal)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	w.Header().Set("Cache-Control", "no-store")
	pkghttp.WriteJSON(w, http.StatusOK, result)
}
