package handlers_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/soundbites/quizapi/internal/handlers"
	"github.com/soundbites/quizapi/internal/models"
	"github.com/soundbites/quizapi/internal/services"
)

func TestListUsers_Pagination(t *testing.T) {
	tests := []struct {
		name           string
		query          string
		expectedLimit  int
		expectedOffset int
	}{
		{name: "defaults", query: "", expectedLimit: 20, expectedOffset: 0},
		{name: "explicit", query: "?limit=5&offset=10", expectedLimit: 5, expectedOffset: 10},
		{name: "limit clamped", query: "?limit=1000", expectedLimit: 100, expectedOffset: 0},
		{name: "garbage ignored", query: "?limit=abc&offset=-3", expectedLimit: 20, expectedOffset: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			accounts := &handlers.MockAccountService{
				ListAccountsFunc: func(ctx context.Context, limit, offset int) ([]models.AccountView, error) {
					assert.Equal(t, tt.expectedLimit, limit)
					assert.Equal(t, tt.expectedOffset, offset)
					return []models.AccountView{{ID: "acc-1", Identifier: "admin", Role: models.RoleAdmin}}, nil
				},
			}
			handler := handlers.NewUserHandler(accounts, &handlers.MockAuthService{})

			req := httptest.NewRequest(http.MethodGet, "/admin/users"+tt.query, nil)
			w := httptest.NewRecorder()
			handler.ListUsers(w, req)

			var resp handlers.ListUsersResponse
			handlers.AssertJSONResponse(t, w, http.StatusOK, &resp)
			assert.Len(t, resp.Users, 1)
			assert.NotContains(t, w.Body.String(), "password")
		})
	}
}

func TestCreateUser_PassesActor(t *testing.T) {
	initializer := &handlers.MockAuthService{
		InitializeAccountFunc: func(ctx context.Context, actor *models.Principal, identifier, password, role string) (*services.InitializeResult, error) {
			assert.Equal(t, "admin-1", actor.AccountID)
			assert.Equal(t, models.RoleEditor, role)
			return &services.InitializeResult{
				Account:  models.AccountView{ID: "acc-2", Identifier: identifier, Role: role},
				Recovery: services.RecoveryCodeResult{Code: "ABCD-EFGH-JKLM-NPQR-STUV"},
			}, nil
		},
	}
	handler := handlers.NewUserHandler(&handlers.MockAccountService{}, initializer)

	req := handlers.NewTestRequest(t, http.MethodPost, "/admin/users", handlers.InitializeRequest{Identifier: "editor", Password: "editor-pass", Role: models.RoleEditor})
	req = handlers.WithPrincipal(req, "admin-1", models.RoleAdmin)
	w := httptest.NewRecorder()
	handler.CreateUser(w, req)

	var resp handlers.InitializeResponse
	handlers.AssertJSONResponse(t, w, http.StatusCreated, &resp)
	assert.Equal(t, "acc-2", resp.User.ID)
	assert.NotEmpty(t, resp.RecoveryCode)
}

func TestCreateUser_DuplicateIdentifier(t *testing.T) {
	initializer := &handlers.MockAuthService{
		InitializeAccountFunc: func(ctx context.Context, actor *models.Principal, identifier, password, role string) (*services.InitializeResult, error) {
			return nil, models.NewValidationError("identifier", "is already in use")
		},
	}
	handler := handlers.NewUserHandler(&handlers.MockAccountService{}, initializer)

	req := handlers.NewTestRequest(t, http.MethodPost, "/admin/users", handlers.InitializeRequest{Identifier: "editor", Password: "editor-pass"})
	req = handlers.WithPrincipal(req, "admin-1", models.RoleAdmin)
	w := httptest.NewRecorder()
	handler.CreateUser(w, req)

	handlers.AssertErrorResponse(t, w, http.StatusBadRequest, "validation_error")
}

func TestDeleteUser(t *testing.T) {
	tests := []struct {
		name           string
		err            error
		expectedStatus int
	}{
		{name: "deleted", expectedStatus: http.StatusNoContent},
		{name: "not found", err: models.ErrNotFound, expectedStatus: http.StatusNotFound},
		{name: "self", err: models.NewValidationError("id", "cannot delete your own account"), expectedStatus: http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			accounts := &handlers.MockAccountService{
				DeleteAccountFunc: func(ctx context.Context, actor *models.Principal, id string) error {
					assert.Equal(t, "acc-2", id)
					assert.Equal(t, "admin-1", actor.AccountID)
					return tt.err
				},
			}
			handler := handlers.NewUserHandler(accounts, &handlers.MockAuthService{})

			req := httptest.NewRequest(http.MethodDelete, "/admin/users/acc-2", nil)
			req = handlers.WithPrincipal(req, "admin-1", models.RoleAdmin)
			req = handlers.WithChiRouteContext(req, map[string]string{"id": "acc-2"})
			w := httptest.NewRecorder()
			handler.DeleteUser(w, req)

			assert.Equal(t, tt.expectedStatus, w.Code)
		})
	}
}

func TestUpdateUser(t *testing.T) {
	tests := []struct {
		name           string
		body           interface{}
		err            error
		expectedStatus int
		expectedError  string
	}{
		{name: "updated", body: map[string]string{"role": "viewer", "password": "a-brand-new-pass"}, expectedStatus: http.StatusOK},
		{name: "unknown role", body: map[string]string{"role": "owner"}, expectedStatus: http.StatusBadRequest, expectedError: "validation_error"},
		{name: "self demotion", body: map[string]string{"role": "editor"}, err: models.NewValidationError("role", "cannot remove your own admin role"), expectedStatus: http.StatusBadRequest, expectedError: "validation_error"},
		{name: "not found", body: map[string]string{"role": "viewer"}, err: models.ErrNotFound, expectedStatus: http.StatusNotFound, expectedError: "not_found"},
		{name: "unavailable", body: map[string]string{"role": "viewer"}, err: models.ErrInternalServer, expectedStatus: http.StatusInternalServerError, expectedError: "internal_error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			accounts := &handlers.MockAccountService{
				UpdateAccountFunc: func(ctx context.Context, actor *models.Principal, id string, update services.AccountUpdate) (*models.AccountView, error) {
					assert.Equal(t, "admin-1", actor.AccountID)
					assert.Equal(t, "acc-2", id)
					if tt.err != nil {
						return nil, tt.err
					}
					return &models.AccountView{ID: id, Identifier: "editor", Role: update.Role}, nil
				},
			}
			handler := handlers.NewUserHandler(accounts, &handlers.MockAuthService{})

			req := handlers.NewTestRequest(t, http.MethodPut, "/admin/users/acc-2", tt.body)
			req = handlers.WithPrincipal(req, "admin-1", models.RoleAdmin)
			req = handlers.WithChiRouteContext(req, map[string]string{"id": "acc-2"})
			w := httptest.NewRecorder()
			handler.UpdateUser(w, req)

			if tt.expectedError != "" {
				handlers.AssertErrorResponse(t, w, tt.expectedStatus, tt.expectedError)
				return
			}
			var resp handlers.UserResponse
			handlers.AssertJSONResponse(t, w, tt.expectedStatus, &resp)
			assert.Equal(t, models.RoleViewer, resp.User.Role)
			assert.NotContains(t, w.Body.String(), "a-brand-new-pass")
		})
	}
}

func TestUpdateUser_RequiresPrincipal(t *testing.T) {
	handler := handlers.NewUserHandler(&handlers.MockAccountService{}, &handlers.MockAuthService{})

	req := handlers.NewTestRequest(t, http.MethodPut, "/admin/users/acc-2", map[string]string{"role": "viewer"})
	req = handlers.WithChiRouteContext(req, map[string]string{"id": "acc-2"})
	w := httptest.NewRecorder()
	handler.UpdateUser(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}
