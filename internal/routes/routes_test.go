package routes_test

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/soundbites/quizapi/internal/auth"
	"github.com/soundbites/quizapi/internal/handlers"
	"github.com/soundbites/quizapi/internal/middleware"
	"github.com/soundbites/quizapi/internal/models"
	"github.com/soundbites/quizapi/internal/repositories"
	"github.com/soundbites/quizapi/internal/routes"
	"github.com/soundbites/quizapi/internal/services"
	pkgauth "github.com/soundbites/quizapi/pkg/auth"
	pkglogger "github.com/soundbites/quizapi/pkg/logger"
)

// newTestRouter wires the full stack over the in-memory stores
func newTestRouter(t *testing.T) http.Handler {
	t.Helper()

	logger := slog.Default()
	auditLogger := pkglogger.NewAuditLogger(logger)

	hasher, err := pkgauth.NewHasher(bcrypt.MinCost, 4)
	require.NoError(t, err)

	store := repositories.NewMemoryStore()
	limiter := services.NewRateLimitService(repositories.NewMemoryRateLimitStore(), models.RateLimitPolicy{
		Window:    5 * time.Minute,
		Threshold: 5,
		Lockout:   60 * time.Second,
	}, logger)

	authService := services.NewAuthService(
		store,
		services.NewRecoveryService(store.RecoverySecrets()),
		limiter,
		hasher,
		auth.NewTokenManager("routes-test-secret-32-characters!", "quizapi-test", time.Hour),
		services.NewLogNotifier(logger),
		services.AuthServiceConfig{},
		logger,
		auditLogger,
	)
	cookies := auth.CookieConfig{SameSite: "strict"}

	router := chi.NewRouter()
	routes.RegisterRoutes(router, routes.Handlers{
		Auth:   handlers.NewAuthHandler(authService, nil, cookies),
		Users:  handlers.NewUserHandler(services.NewAccountService(store, hasher, pkgauth.PasswordPolicy{}, logger, auditLogger), authService),
		Quiz:   handlers.NewQuizHandler(services.NewQuizService(repositories.NewMemoryQuizStore(), logger)),
		Health: handlers.NewHealthHandler(nil),
	}, authService, cookies, middleware.RateLimitConfig{RequestsPerMinute: 1000})

	return router
}

func do(t *testing.T, router http.Handler, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func login(t *testing.T, router http.Handler, identifier, password string) string {
	t.Helper()

	w := do(t, router, http.MethodPost, "/auth/login", "", handlers.LoginRequest{Identifier: identifier, Password: password})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp handlers.LoginResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp.Token
}

func TestRoutes_FirstRunAndRoles(t *testing.T) {
	router := newTestRouter(t)

	for _, path := range []string{"/health", "/health/live", "/health/ready"} {
		w := do(t, router, http.MethodGet, path, "", nil)
		assert.Equal(t, http.StatusOK, w.Code, path)
	}

	// First run: anonymous initialize creates the admin
	w := do(t, router, http.MethodPost, "/auth/initialize", "", handlers.InitializeRequest{Identifier: "admin@example.com", Password: "admin-password"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var initResp handlers.InitializeResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &initResp))
	assert.Equal(t, models.RoleAdmin, initResp.User.Role)
	assert.NotEmpty(t, initResp.RecoveryCode)
	assert.Equal(t, "no-store", w.Header().Get("Cache-Control"))

	// Second anonymous attempt is refused
	w = do(t, router, http.MethodPost, "/auth/initialize", "", handlers.InitializeRequest{Identifier: "intruder", Password: "intruder-password"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	adminToken := login(t, router, "ADMIN@example.com", "admin-password")

	w = do(t, router, http.MethodGet, "/admin/users", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = do(t, router, http.MethodGet, "/admin/users", adminToken, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.NotContains(t, w.Body.String(), "passwordHash")

	w = do(t, router, http.MethodPost, "/admin/users", adminToken, handlers.InitializeRequest{Identifier: "editor", Password: "editor-password", Role: models.RoleEditor})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	editorToken := login(t, router, "editor", "editor-password")

	w = do(t, router, http.MethodGet, "/admin/users", editorToken, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = do(t, router, http.MethodPost, "/admin/questions", editorToken, handlers.QuestionRequest{Text: "Favourite genre?", Options: []string{"Jazz", "Techno"}})
	assert.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = do(t, router, http.MethodGet, "/quiz/questions", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Favourite genre?")

	w = do(t, router, http.MethodPost, "/quiz/results", "", handlers.SubmitResultRequest{Score: 4, Email: "fan@example.com"})
	assert.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = do(t, router, http.MethodGet, "/admin/leads", editorToken, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "fan@example.com")
}

func TestRoutes_SessionCookieAndLockout(t *testing.T) {
	router := newTestRouter(t)

	w := do(t, router, http.MethodPost, "/auth/initialize", "", handlers.InitializeRequest{Identifier: "admin", Password: "admin-password"})
	require.Equal(t, http.StatusCreated, w.Code)

	w = do(t, router, http.MethodPost, "/auth/login", "", handlers.LoginRequest{Identifier: "admin", Password: "admin-password"})
	require.Equal(t, http.StatusOK, w.Code)

	var sessionCookie *http.Cookie
	for _, c := range w.Result().Cookies() {
		if c.Name == auth.DefaultSessionCookieName {
			sessionCookie = c
		}
	}
	require.NotNil(t, sessionCookie)
	assert.True(t, sessionCookie.HttpOnly)

	req := httptest.NewRequest(http.MethodGet, "/auth/verify", nil)
	req.AddCookie(sessionCookie)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"valid":true`)

	for i := 0; i < 5; i++ {
		w = do(t, router, http.MethodPost, "/auth/login", "", handlers.LoginRequest{Identifier: "admin", Password: "wrong-password"})
		assert.Equal(t, http.StatusUnauthorized, w.Code, "attempt %d", i+1)
	}

	// Correct credentials stay locked out from the same client
	w = do(t, router, http.MethodPost, "/auth/login", "", handlers.LoginRequest{Identifier: "admin", Password: "admin-password"})
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.NotEmpty(t, w.Header().Get("Retry-After"))
	assert.True(t, strings.Contains(w.Body.String(), "retryAfter"))
}

func TestRoutes_RecoverAccount(t *testing.T) {
	router := newTestRouter(t)

	w := do(t, router, http.MethodPost, "/auth/initialize", "", handlers.InitializeRequest{Identifier: "admin", Password: "admin-password"})
	require.Equal(t, http.StatusCreated, w.Code)
	var initResp handlers.InitializeResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &initResp))

	w = do(t, router, http.MethodPost, "/auth/recover", "", handlers.RecoverRequest{
		RecoveryCode:  initResp.RecoveryCode,
		NewIdentifier: "owner@example.com",
		NewPassword:   "brand-new-password",
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	// Old code is spent
	w = do(t, router, http.MethodPost, "/auth/recover", "", handlers.RecoverRequest{
		RecoveryCode:  initResp.RecoveryCode,
		NewIdentifier: "thief",
		NewPassword:   "thief-password",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	login(t, router, "owner@example.com", "brand-new-password")
}

func TestRoutes_AdminUpdatesUser(t *testing.T) {
	router := newTestRouter(t)

	w := do(t, router, http.MethodPost, "/auth/initialize", "", handlers.InitializeRequest{Identifier: "admin", Password: "admin-password"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var adminResp handlers.InitializeResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &adminResp))
	adminToken := login(t, router, "admin", "admin-password")

	w = do(t, router, http.MethodPost, "/admin/users", adminToken, handlers.InitializeRequest{Identifier: "editor", Password: "editor-password", Role: models.RoleEditor})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var editorResp handlers.InitializeResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &editorResp))
	editorToken := login(t, router, "editor", "editor-password")

	w = do(t, router, http.MethodPut, "/admin/users/"+adminResp.User.ID, editorToken, handlers.UpdateUserRequest{Role: models.RoleEditor})
	assert.Equal(t, http.StatusForbidden, w.Code, "only admins edit accounts")

	w = do(t, router, http.MethodPut, "/admin/users/"+adminResp.User.ID, adminToken, handlers.UpdateUserRequest{Role: models.RoleViewer})
	assert.Equal(t, http.StatusBadRequest, w.Code, "admins cannot demote themselves")

	w = do(t, router, http.MethodPut, "/admin/users/"+editorResp.User.ID, adminToken, handlers.UpdateUserRequest{
		Role:     models.RoleViewer,
		Password: "reset-by-admin",
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var updated handlers.UserResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &updated))
	assert.Equal(t, models.RoleViewer, updated.User.Role)

	w = do(t, router, http.MethodPost, "/admin/questions", editorToken, handlers.QuestionRequest{Text: "Still allowed?", Options: []string{"Yes", "No"}})
	assert.Equal(t, http.StatusForbidden, w.Code, "the demotion applies to existing sessions")

	login(t, router, "editor", "reset-by-admin")

	w = do(t, router, http.MethodPut, "/admin/users/"+editorResp.User.ID, adminToken, handlers.UpdateUserRequest{Identifier: "ADMIN"})
	assert.Equal(t, http.StatusBadRequest, w.Code, "identifiers stay unique")
}
