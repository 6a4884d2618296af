package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"

	"github.com/soundbites/quizapi/internal/auth"
	"github.com/soundbites/quizapi/internal/models"
	"github.com/soundbites/quizapi/internal/services"
	pkghttp "github.com/soundbites/quizapi/pkg/http"
)

// NewTestRequest creates an HTTP request with JSON body for testing
func NewTestRequest(t *testing.T, method, url string, body interface{}) *http.Request {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("failed to encode request body: %v", err)
		}
	}
	req := httptest.NewRequest(method, url, &buf)
	req.Header.Set("Content-Type", "application/json")
	return req
}

// WithPrincipal adds a verified principal to the request context for testing
// authenticated endpoints
func WithPrincipal(req *http.Request, accountID, role string) *http.Request {
	return req.WithContext(auth.WithPrincipal(req.Context(), &models.Principal{AccountID: accountID, Role: role}))
}

// AssertJSONResponse checks that response has correct status and decodes JSON body
func AssertJSONResponse(t *testing.T, w *httptest.ResponseRecorder, expectedStatus int, target interface{}) {
	assert.Equal(t, expectedStatus, w.Code, "Response status mismatch")

	contentType := w.Header().Get("Content-Type")
	assert.Equal(t, "application/json", contentType, "Content-Type should be application/json")

	if target != nil {
		err := json.Unmarshal(w.Body.Bytes(), target)
		assert.NoError(t, err, "Failed to decode response JSON")
	}
}

// AssertErrorResponse checks that response is a valid error response
func AssertErrorResponse(t *testing.T, w *httptest.ResponseRecorder, expectedStatus int, expectedError string) {
	assert.Equal(t, expectedStatus, w.Code, "Response status mismatch")

	var resp pkghttp.ErrorResponse
	err := json.Unmarshal(w.Body.Bytes(), &resp)
	assert.NoError(t, err, "Failed to decode error response")
	assert.Equal(t, expectedError, resp.Error, "Error code mismatch")
	assert.NotEmpty(t, resp.Message, "Error message should not be empty")
}

// MockAuthService implements AuthServiceInterface for testing
type MockAuthService struct {
	LoginFunc                  func(ctx context.Context, identifier, password string, meta services.RequestMeta) (*services.LoginResult, error)
	VerifyFunc                 func(ctx context.Context, token string) (*models.AccountView, error)
	LogoutFunc                 func(ctx context.Context, principal *models.Principal, meta services.RequestMeta)
	ChangePasswordFunc         func(ctx context.Context, principal *models.Principal, currentPassword, newPassword string, meta services.RequestMeta) error
	RecoverAccountFunc         func(ctx context.Context, code, newIdentifier, newPassword string, meta services.RequestMeta) (*services.RecoveryCodeResult, error)
	InitializeAccountFunc      func(ctx context.Context, actor *models.Principal, identifier, password, role string) (*services.InitializeResult, error)
	RegenerateRecoveryCodeFunc func(ctx context.Context, principal *models.Principal) (*services.RecoveryCodeResult, error)
}

func (m *MockAuthService) Login(ctx context.Context, identifier, password string, meta services.RequestMeta) (*services.LoginResult, error) {
	if m.LoginFunc == nil {
		return nil, models.ErrInvalidCredentials
	}
	return m.LoginFunc(ctx, identifier, password, meta)
}

func (m *MockAuthService) Verify(ctx context.Context, token string) (*models.AccountView, error) {
	if m.VerifyFunc == nil {
		return nil, models.ErrTokenMalformed
	}
	return m.VerifyFunc(ctx, token)
}

func (m *MockAuthService) Logout(ctx context.Context, principal *models.Principal, meta services.RequestMeta) {
	if m.LogoutFunc != nil {
		m.LogoutFunc(ctx, principal, meta)
	}
}

func (m *MockAuthService) ChangePassword(ctx context.Context, principal *models.Principal, currentPassword, newPassword string, meta services.RequestMeta) error {
	if m.ChangePasswordFunc == nil {
		return nil
	}
	return m.ChangePasswordFunc(ctx, principal, currentPassword, newPassword, meta)
}

func (m *MockAuthService) RecoverAccount(ctx context.Context, code, newIdentifier, newPassword string, meta services.RequestMeta) (*services.RecoveryCodeResult, error) {
	if m.RecoverAccountFunc == nil {
		return nil, models.ErrInvalidRecoveryCode
	}
	return m.RecoverAccountFunc(ctx, code, newIdentifier, newPassword, meta)
}

func (m *MockAuthService) InitializeAccount(ctx context.Context, actor *models.Principal, identifier, password, role string) (*services.InitializeResult, error) {
	if m.InitializeAccountFunc == nil {
		return nil, models.ErrUnauthorized
	}
	return m.InitializeAccountFunc(ctx, actor, identifier, password, role)
}

func (m *MockAuthService) RegenerateRecoveryCode(ctx context.Context, principal *models.Principal) (*services.RecoveryCodeResult, error) {
	if m.RegenerateRecoveryCodeFunc == nil {
		return nil, models.ErrUnauthorized
	}
	return m.RegenerateRecoveryCodeFunc(ctx, principal)
}

// MockAccountService implements AccountService for testing
type MockAccountService struct {
	ListAccountsFunc  func(ctx context.Context, limit, offset int) ([]models.AccountView, error)
	UpdateAccountFunc func(ctx context.Context, actor *models.Principal, id string, update services.AccountUpdate) (*models.AccountView, error)
	DeleteAccountFunc func(ctx context.Context, actor *models.Principal, id string) error
}

func (m *MockAccountService) ListAccounts(ctx context.Context, limit, offset int) ([]models.AccountView, error) {
	if m.ListAccountsFunc == nil {
		return []models.AccountView{}, nil
	}
	return m.ListAccountsFunc(ctx, limit, offset)
}

func (m *MockAccountService) UpdateAccount(ctx context.Context, actor *models.Principal, id string, update services.AccountUpdate) (*models.AccountView, error) {
	if m.UpdateAccountFunc == nil {
		return &models.AccountView{ID: id, Identifier: update.Identifier, Role: update.Role}, nil
	}
	return m.UpdateAccountFunc(ctx, actor, id, update)
}

func (m *MockAccountService) DeleteAccount(ctx context.Context, actor *models.Principal, id string) error {
	if m.DeleteAccountFunc == nil {
		return nil
	}
	return m.DeleteAccountFunc(ctx, actor, id)
}

// MockQuizService implements QuizService for testing
type MockQuizService struct {
	ListQuestionsFunc  func(ctx context.Context, activeOnly bool) ([]*models.Question, error)
	CreateQuestionFunc func(ctx context.Context, q *models.Question) (*models.Question, error)
	UpdateQuestionFunc func(ctx context.Context, q *models.Question) (*models.Question, error)
	DeleteQuestionFunc func(ctx context.Context, id string) error
	SubmitResultFunc   func(ctx context.Context, result *models.QuizResult, lead *models.Lead) (*models.QuizResult, error)
	ListResultsFunc    func(ctx context.Context, limit, offset int) ([]*models.QuizResult, error)
	ListLeadsFunc      func(ctx context.Context, limit, offset int) ([]*models.Lead, error)
}

func (m *MockQuizService) ListQuestions(ctx context.Context, activeOnly bool) ([]*models.Question, error) {
	if m.ListQuestionsFunc == nil {
		return []*models.Question{}, nil
	}
	return m.ListQuestionsFunc(ctx, activeOnly)
}

func (m *MockQuizService) CreateQuestion(ctx context.Context, q *models.Question) (*models.Question, error) {
	if m.CreateQuestionFunc == nil {
		return q, nil
	}
	return m.CreateQuestionFunc(ctx, q)
}

func (m *MockQuizService) UpdateQuestion(ctx context.Context, q *models.Question) (*models.Question, error) {
	if m.UpdateQuestionFunc == nil {
		return nil, models.ErrNotFound
	}
	return m.UpdateQuestionFunc(ctx, q)
}

func (m *MockQuizService) DeleteQuestion(ctx context.Context, id string) error {
	if m.DeleteQuestionFunc == nil {
		return nil
	}
	return m.DeleteQuestionFunc(ctx, id)
}

func (m *MockQuizService) SubmitResult(ctx context.Context, result *models.QuizResult, lead *models.Lead) (*models.QuizResult, error) {
	if m.SubmitResultFunc == nil {
		return result, nil
	}
	return m.SubmitResultFunc(ctx, result, lead)
}

func (m *MockQuizService) ListResults(ctx context.Context, limit, offset int) ([]*models.QuizResult, error) {
	if m.ListResultsFunc == nil {
		return []*models.QuizResult{}, nil
	}
	return m.ListResultsFunc(ctx, limit, offset)
}

func (m *MockQuizService) ListLeads(ctx context.Context, limit, offset int) ([]*models.Lead, error) {
	if m.ListLeadsFunc == nil {
		return []*models.Lead{}, nil
	}
	return m.ListLeadsFunc(ctx, limit, offset)
}

// WithChiRouteContext adds chi URL parameters to request context for testing.
// It lets tests set URL parameters that the chi router would normally
// extract from the path.
func WithChiRouteContext(r *http.Request, params map[string]string) *http.Request {
	rctx := chi.NewRouteContext()
	for key, value := range params {
		rctx.URLParams.Add(key, value)
	}
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}
