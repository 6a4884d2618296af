package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/soundbites/quizapi/internal/models"
	pkghttp "github.com/soundbites/quizapi/pkg/http"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockSessionVerifier implements SessionVerifier for testing
type mockSessionVerifier struct {
	AuthenticateFunc func(ctx context.Context, token string) (*models.Principal, error)
	lastToken        string
}

func (m *mockSessionVerifier) Authenticate(ctx context.Context, token string) (*models.Principal, error) {
	m.lastToken = token
	if m.AuthenticateFunc != nil {
		return m.AuthenticateFunc(ctx, token)
	}
	return nil, models.ErrTokenMalformed
}

func okVerifier(role string) *mockSessionVerifier {
	return &mockSessionVerifier{
		AuthenticateFunc: func(ctx context.Context, token string) (*models.Principal, error) {
			return &models.Principal{AccountID: "account-1", Role: role}, nil
		},
	}
}

func principalEcho(t *testing.T) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p := GetPrincipalFromContext(r)
		require.NotNil(t, p)
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(p.AccountID))
	})
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) pkghttp.ErrorResponse {
	t.Helper()
	var resp pkghttp.ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

func TestExtractToken(t *testing.T) {
	cookies := CookieConfig{Name: "admin_token"}

	tests := []struct {
		name     string
		header   string
		cookie   string
		expected string
	}{
		{name: "bearer header", header: "Bearer abc.def.ghi", expected: "abc.def.ghi"},
		{name: "lowercase scheme", header: "bearer abc.def.ghi", expected: "abc.def.ghi"},
		{name: "cookie only", cookie: "cookie.token.value", expected: "cookie.token.value"},
		{name: "header wins over cookie", header: "Bearer header.token", cookie: "cookie.token", expected: "header.token"},
		{name: "basic scheme rejected", header: "Basic dXNlcjpwYXNz", expected: ""},
		{name: "nothing", expected: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/auth/verify", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			if tt.cookie != "" {
				req.AddCookie(&http.Cookie{Name: "admin_token", Value: tt.cookie})
			}
			assert.Equal(t, tt.expected, ExtractToken(req, cookies))
		})
	}
}

func TestAuthenticate_MissingToken(t *testing.T) {
	verifier := okVerifier(models.RoleAdmin)
	handler := Authenticate(verifier, CookieConfig{})(principalEcho(t))

	req := httptest.NewRequest(http.MethodGet, "/admin/results", nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "unauthorized", decodeError(t, w).Error)
	assert.Empty(t, verifier.lastToken, "verifier must not be called without a token")
}

func TestAuthenticate_BearerToken(t *testing.T) {
	verifier := okVerifier(models.RoleEditor)
	handler := Authenticate(verifier, CookieConfig{})(principalEcho(t))

	req := httptest.NewRequest(http.MethodGet, "/admin/results", nil)
	req.Header.Set("Authorization", "Bearer good-token")
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "account-1", w.Body.String())
	assert.Equal(t, "good-token", verifier.lastToken)
}

func TestAuthenticate_CookieToken(t *testing.T) {
	verifier := okVerifier(models.RoleViewer)
	handler := Authenticate(verifier, CookieConfig{Name: "admin_token"})(principalEcho(t))

	req := httptest.NewRequest(http.MethodGet, "/admin/results", nil)
	req.AddCookie(&http.Cookie{Name: "admin_token", Value: "cookie-token"})
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "cookie-token", verifier.lastToken)
}

func TestAuthenticate_ErrorMapping(t *testing.T) {
	tests := []struct {
		name           string
		err            error
		expectedStatus int
		expectedCode   string
	}{
		{name: "expired", err: models.ErrTokenExpired, expectedStatus: http.StatusUnauthorized, expectedCode: "token_expired"},
		{name: "malformed", err: models.ErrTokenMalformed, expectedStatus: http.StatusUnauthorized, expectedCode: "unauthorized"},
		{name: "store down fails closed", err: models.ErrServiceUnavailable, expectedStatus: http.StatusServiceUnavailable, expectedCode: "service_unavailable"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			verifier := &mockSessionVerifier{
				AuthenticateFunc: func(ctx context.Context, token string) (*models.Principal, error) {
					return nil, tt.err
				},
			}
			handler := Authenticate(verifier, CookieConfig{})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				t.Fatal("next handler must not run")
			}))

			req := httptest.NewRequest(http.MethodGet, "/admin/results", nil)
			req.Header.Set("Authorization", "Bearer some-token")
			w := httptest.NewRecorder()
			handler.ServeHTTP(w, req)

			assert.Equal(t, tt.expectedStatus, w.Code)
			assert.Equal(t, tt.expectedCode, decodeError(t, w).Error)
		})
	}
}

func TestOptionalAuthenticate(t *testing.T) {
	tests := []struct {
		name           string
		token          string
		verifier       *mockSessionVerifier
		expectedStatus int
		wantPrincipal  bool
	}{
		{name: "no token passes anonymously", verifier: okVerifier(models.RoleAdmin), expectedStatus: http.StatusOK},
		{name: "valid token injects principal", token: "good", verifier: okVerifier(models.RoleAdmin), expectedStatus: http.StatusOK, wantPrincipal: true},
		{name: "invalid token passes anonymously", token: "bad", verifier: &mockSessionVerifier{}, expectedStatus: http.StatusOK},
		{
			name:  "store down fails closed",
			token: "good",
			verifier: &mockSessionVerifier{AuthenticateFunc: func(ctx context.Context, token string) (*models.Principal, error) {
				return nil, models.ErrServiceUnavailable
			}},
			expectedStatus: http.StatusServiceUnavailable,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got *models.Principal
			handler := OptionalAuthenticate(tt.verifier, CookieConfig{})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				got = GetPrincipalFromContext(r)
				w.WriteHeader(http.StatusOK)
			}))

			req := httptest.NewRequest(http.MethodPost, "/auth/initialize", nil)
			if tt.token != "" {
				req.Header.Set("Authorization", "Bearer "+tt.token)
			}
			w := httptest.NewRecorder()
			handler.ServeHTTP(w, req)

			assert.Equal(t, tt.expectedStatus, w.Code)
			assert.Equal(t, tt.wantPrincipal, got != nil)
		})
	}
}

func TestRequireRole(t *testing.T) {
	tests := []struct {
		name           string
		principal      *models.Principal
		roles          []string
		expectedStatus int
	}{
		{name: "admin allowed", principal: &models.Principal{AccountID: "a", Role: models.RoleAdmin}, roles: []string{models.RoleAdmin}, expectedStatus: http.StatusOK},
		{name: "editor allowed among several", principal: &models.Principal{AccountID: "a", Role: models.RoleEditor}, roles: []string{models.RoleAdmin, models.RoleEditor}, expectedStatus: http.StatusOK},
		{name: "viewer forbidden", principal: &models.Principal{AccountID: "a", Role: models.RoleViewer}, roles: []string{models.RoleAdmin, models.RoleEditor}, expectedStatus: http.StatusForbidden},
		{name: "no principal", principal: nil, roles: []string{models.RoleAdmin}, expectedStatus: http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := RequireRole(tt.roles...)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusOK)
			}))

			req := httptest.NewRequest(http.MethodDelete, "/admin/questions/1", nil)
			if tt.principal != nil {
				req = req.WithContext(WithPrincipal(req.Context(), tt.principal))
			}
			w := httptest.NewRecorder()
			handler.ServeHTTP(w, req)

			assert.Equal(t, tt.expectedStatus, w.Code)
		})
	}
}

func TestSessionCookie_SetAndClear(t *testing.T) {
	config := CookieConfig{Name: "admin_token", Secure: true, SameSite: "strict"}

	w := httptest.NewRecorder()
	SetSessionCookie(w, "token-value", time.Now().Add(time.Hour), config)

	cookies := w.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, "admin_token", cookies[0].Name)
	assert.Equal(t, "token-value", cookies[0].Value)
	assert.True(t, cookies[0].HttpOnly)
	assert.True(t, cookies[0].Secure)
	assert.Equal(t, http.SameSiteStrictMode, cookies[0].SameSite)
	assert.InDelta(t, 3600, cookies[0].MaxAge, 2)

	w = httptest.NewRecorder()
	ClearSessionCookie(w, config)
	cookies = w.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, "", cookies[0].Value)
	assert.True(t, cookies[0].MaxAge < 0)
}

func TestCookieConfig_DefaultName(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: DefaultSessionCookieName, Value: "v"})

	token, err := GetSessionCookie(req, CookieConfig{})
	require.NoError(t, err)
	assert.Equal(t, "v", token)
}
