package handlers

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/soundbites/quizapi/internal/auth"
	"github.com/soundbites/quizapi/internal/models"
	"github.com/soundbites/quizapi/internal/services"
	pkghttp "github.com/soundbites/quizapi/pkg/http"
)

// AccountService defines the account administration operations
type AccountService interface {
	ListAccounts(ctx context.Context, limit, offset int) ([]models.AccountView, error)
	UpdateAccount(ctx context.Context, actor *models.Principal, id string, update services.AccountUpdate) (*models.AccountView, error)
	DeleteAccount(ctx context.Context, actor *models.Principal, id string) error
}

// AccountInitializer provisions accounts together with their recovery code
type AccountInitializer interface {
	InitializeAccount(ctx context.Context, actor *models.Principal, identifier, password, role string) (*services.InitializeResult, error)
}

// UserHandler handles the admin-only dashboard account endpoints
type UserHandler struct {
	accounts    AccountService
	initializer AccountInitializer
}

// NewUserHandler creates a new UserHandler
func NewUserHandler(accounts AccountService, initializer AccountInitializer) *UserHandler {
	return &UserHandler{
		accounts:    accounts,
		initializer: initializer,
	}
}

// ListUsersResponse represents a page of accounts
type ListUsersResponse struct {
	Users  []models.AccountView `json:"users"`
	Limit  int                  `json:"limit"`
	Offset int                  `json:"offset"`
}

// ListUsers retrieves a page of accounts
//
// @Summary List dashboard accounts
// @Param limit query int false "Limit (default 20, max 100)"
// @Param offset query int false "Offset (default 0)"
// @Produce json
// @Success 200 {object} ListUsersResponse
// @Router /admin/users [get]
func (h *UserHandler) ListUsers(w http.ResponseWriter, r *http.Request) {
	limit, offset := parsePagination(r)

	users, err := h.accounts.ListAccounts(r.Context(), limit, offset)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, ListUsersResponse{Users: users, Limit: limit, Offset: offset})
}

// CreateUser provisions an account on behalf of the calling admin
//
// @Summary Create a dashboard account
// @Accept json
// @Param request body InitializeRequest true "Account"
// @Produce json
// @Success 201 {object} InitializeResponse
// @Failure 400 {object} pkghttp.ErrorResponse
// @Failure 403 {object} pkghttp.ErrorResponse
// @Router /admin/users [post]
func (h *UserHandler) CreateUser(w http.ResponseWriter, r *http.Request) {
	actor := auth.GetPrincipalFromContext(r)
	if actor == nil {
		pkghttp.WriteUnauthorized(w, "Authentication required")
		return
	}

	var req InitializeRequest
	if err := decodeAndValidate(w, r, &req); err != nil {
		writeServiceError(w, err)
		return
	}

	result, err := h.initializer.InitializeAccount(r.Context(), actor, req.Identifier, req.Password, req.Role)
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

// UpdateUserRequest changes an account. Omitted fields are left as they are.
type UpdateUserRequest struct {
	Identifier string `json:"identifier" validate:"omitempty,max=254"`
	Password   string `json:"password" validate:"omitempty,max=1024"`
	Role       string `json:"role" validate:"omitempty,oneof=admin editor viewer"`
}

// UserResponse wraps a single account
type UserResponse struct {
	User models.AccountView `json:"user"`
}

// UpdateUser changes an account's identifier, password or role. Admins
// cannot remove their own admin role.
//
// @Summary Update a dashboard account
// @Accept json
// @Param id path string true "Account ID"
// @Param request body UpdateUserRequest true "Fields to change"
// @Produce json
// @Success 200 {object} UserResponse
// @Failure 400 {object} pkghttp.ErrorResponse
// @Failure 404 {object} pkghttp.ErrorResponse
// @Router /admin/users/{id} [put]
func (h *UserHandler) UpdateUser(w http.ResponseWriter, r *http.Request) {
	actor := auth.GetPrincipalFromContext(r)
	if actor == nil {
		pkghttp.WriteUnauthorized(w, "Authentication required")
		return
	}

	id := chi.URLParam(r, "id")
	if id == "" {
		pkghttp.WriteBadRequest(w, "Account ID is required")
		return
	}

	var req UpdateUserRequest
	if err := decodeAndValidate(w, r, &req); err != nil {
		writeServiceError(w, err)
		return
	}

	user, err := h.accounts.UpdateAccount(r.Context(), actor, id, services.AccountUpdate{
		Identifier: req.Identifier,
		Password:   req.Password,
		Role:       req.Role,
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, UserResponse{User: *user})
}

// DeleteUser removes an account. Admins cannot delete themselves.
//
// @Summary Delete a dashboard account
// @Param id path string true "Account ID"
// @Success 204
// @Failure 400 {object} pkghttp.ErrorResponse
// @Failure 404 {object} pkghttp.ErrorResponse
// @Router /admin/users/{id} [delete]
func (h *UserHandler) DeleteUser(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		pkghttp.WriteBadRequest(w, "Account ID is required")
		return
	}

	if err := h.accounts.DeleteAccount(r.Context(), auth.GetPrincipalFromContext(r), id); err != nil {
		writeServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
