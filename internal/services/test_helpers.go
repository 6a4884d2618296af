package services

import (
	"context"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/ses"

	"github.com/soundbites/quizapi/internal/models"
)

// MockAccountRepository implements AccountRepository for testing
type MockAccountRepository struct {
	GetByIDFunc         func(ctx context.Context, id string) (*models.Account, error)
	GetByIdentifierFunc func(ctx context.Context, identifier string) (*models.Account, error)
	ListFunc            func(ctx context.Context, limit, offset int) ([]*models.Account, error)
	CountFunc           func(ctx context.Context) (int, error)
	CreateFunc          func(ctx context.Context, account *models.Account, secret *models.RecoverySecret) (*models.Account, error)
	CreateFirstFunc     func(ctx context.Context, account *models.Account, secret *models.RecoverySecret) (*models.Account, error)
	UpdatePasswordFunc  func(ctx context.Context, id, passwordHash string) error
	UpdateFunc          func(ctx context.Context, account *models.Account) (*models.Account, error)
	DeleteFunc          func(ctx context.Context, id string) error
}

func (m *MockAccountRepository) GetByID(ctx context.Context, id string) (*models.Account, error) {
	if m.GetByIDFunc != nil {
		return m.GetByIDFunc(ctx, id)
	}
	return nil, models.ErrNotFound
}

func (m *MockAccountRepository) GetByIdentifier(ctx context.Context, identifier string) (*models.Account, error) {
	if m.GetByIdentifierFunc != nil {
		return m.GetByIdentifierFunc(ctx, identifier)
	}
	return nil, models.ErrNotFound
}

func (m *MockAccountRepository) List(ctx context.Context, limit, offset int) ([]*models.Account, error) {
	if m.ListFunc != nil {
		return m.ListFunc(ctx, limit, offset)
	}
	return []*models.Account{}, nil
}

func (m *MockAccountRepository) Count(ctx context.Context) (int, error) {
	if m.CountFunc != nil {
		return m.CountFunc(ctx)
	}
	return 0, nil
}

func (m *MockAccountRepository) Create(ctx context.Context, account *models.Account, secret *models.RecoverySecret) (*models.Account, error) {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, account, secret)
	}
	return nil, models.ErrInternalServer
}

func (m *MockAccountRepository) CreateFirst(ctx context.Context, account *models.Account, secret *models.RecoverySecret) (*models.Account, error) {
	if m.CreateFirstFunc != nil {
		return m.CreateFirstFunc(ctx, account, secret)
	}
	return nil, models.ErrInternalServer
}

func (m *MockAccountRepository) UpdatePassword(ctx context.Context, id, passwordHash string) error {
	if m.UpdatePasswordFunc != nil {
		return m.UpdatePasswordFunc(ctx, id, passwordHash)
	}
	return nil
}

func (m *MockAccountRepository) Update(ctx context.Context, account *models.Account) (*models.Account, error) {
	if m.UpdateFunc != nil {
		return m.UpdateFunc(ctx, account)
	}
	return account, nil
}

func (m *MockAccountRepository) Delete(ctx context.Context, id string) error {
	if m.DeleteFunc != nil {
		return m.DeleteFunc(ctx, id)
	}
	return nil
}

// MockRecoveryRepository implements RecoveryRepository for testing
type MockRecoveryRepository struct {
	UpsertFunc         func(ctx context.Context, secret *models.RecoverySecret) error
	GetByAccountIDFunc func(ctx context.Context, accountID string) (*models.RecoverySecret, error)
	ListFunc           func(ctx context.Context) ([]*models.RecoverySecret, error)
	RedeemFunc         func(ctx context.Context, redemption models.RecoveryRedemption) error
}

func (m *MockRecoveryRepository) Upsert(ctx context.Context, secret *models.RecoverySecret) error {
	if m.UpsertFunc != nil {
		return m.UpsertFunc(ctx, secret)
	}
	return nil
}

func (m *MockRecoveryRepository) GetByAccountID(ctx context.Context, accountID string) (*models.RecoverySecret, error) {
	if m.GetByAccountIDFunc != nil {
		return m.GetByAccountIDFunc(ctx, accountID)
	}
	return nil, models.ErrNotFound
}

func (m *MockRecoveryRepository) List(ctx context.Context) ([]*models.RecoverySecret, error) {
	if m.ListFunc != nil {
		return m.ListFunc(ctx)
	}
	return []*models.RecoverySecret{}, nil
}

func (m *MockRecoveryRepository) Redeem(ctx context.Context, redemption models.RecoveryRedemption) error {
	if m.RedeemFunc != nil {
		return m.RedeemFunc(ctx, redemption)
	}
	return nil
}

// MockRateLimitStore implements RateLimitStore for testing
type MockRateLimitStore struct {
	ReserveFunc     func(ctx context.Context, fingerprint string, now time.Time, policy models.RateLimitPolicy) (*models.RateLimitRecord, bool, error)
	ClearFunc       func(ctx context.Context, fingerprint string) error
	DeleteStaleFunc func(ctx context.Context, before time.Time) (int64, error)
}

func (m *MockRateLimitStore) Reserve(ctx context.Context, fingerprint string, now time.Time, policy models.RateLimitPolicy) (*models.RateLimitRecord, bool, error) {
	if m.ReserveFunc != nil {
		return m.ReserveFunc(ctx, fingerprint, now, policy)
	}
	return &models.RateLimitRecord{Fingerprint: fingerprint, Attempts: []time.Time{now}}, true, nil
}

func (m *MockRateLimitStore) Clear(ctx context.Context, fingerprint string) error {
	if m.ClearFunc != nil {
		return m.ClearFunc(ctx, fingerprint)
	}
	return nil
}

func (m *MockRateLimitStore) DeleteStale(ctx context.Context, before time.Time) (int64, error) {
	if m.DeleteStaleFunc != nil {
		return m.DeleteStaleFunc(ctx, before)
	}
	return 0, nil
}

// MockPasswordHasher implements PasswordHasher for testing
type MockPasswordHasher struct {
	HashFunc        func(ctx context.Context, plaintext string) (string, error)
	VerifyFunc      func(ctx context.Context, plaintext, hash string) (bool, error)
	VerifyDummyFunc func(ctx context.Context, plaintext string) error
}

func (m *MockPasswordHasher) Hash(ctx context.Context, plaintext string) (string, error) {
	if m.HashFunc != nil {
		return m.HashFunc(ctx, plaintext)
	}
	return "hashed:" + plaintext, nil
}

func (m *MockPasswordHasher) Verify(ctx context.Context, plaintext, hash string) (bool, error) {
	if m.VerifyFunc != nil {
		return m.VerifyFunc(ctx, plaintext, hash)
	}
	return hash == "hashed:"+plaintext, nil
}

func (m *MockPasswordHasher) VerifyDummy(ctx context.Context, plaintext string) error {
	if m.VerifyDummyFunc != nil {
		return m.VerifyDummyFunc(ctx, plaintext)
	}
	return nil
}

// MockTokenIssuer implements TokenIssuer for testing
type MockTokenIssuer struct {
	IssueFunc  func(accountID, role string) (*models.SessionToken, error)
	VerifyFunc func(token string) (*models.Principal, error)
}

func (m *MockTokenIssuer) Issue(accountID, role string) (*models.SessionToken, error) {
	if m.IssueFunc != nil {
		return m.IssueFunc(accountID, role)
	}
	return &models.SessionToken{Value: "token-" + accountID, ExpiresAt: time.Now().Add(24 * time.Hour)}, nil
}

func (m *MockTokenIssuer) Verify(token string) (*models.Principal, error) {
	if m.VerifyFunc != nil {
		return m.VerifyFunc(token)
	}
	return nil, models.ErrTokenMalformed
}

// MockNotifier implements Notifier for testing
type MockNotifier struct {
	SendSecurityNoticeFunc func(ctx context.Context, to string, notice SecurityNotice, at time.Time) error
}

func (m *MockNotifier) SendSecurityNotice(ctx context.Context, to string, notice SecurityNotice, at time.Time) error {
	if m.SendSecurityNoticeFunc != nil {
		return m.SendSecurityNoticeFunc(ctx, to, notice, at)
	}
	return nil
}

// MockSESClient implements SESClient for testing
type MockSESClient struct {
	SendEmailFunc func(ctx context.Context, params *ses.SendEmailInput, optFns ...func(*ses.Options)) (*ses.SendEmailOutput, error)
}

func (m *MockSESClient) SendEmail(ctx context.Context, params *ses.SendEmailInput, optFns ...func(*ses.Options)) (*ses.SendEmailOutput, error) {
	if m.SendEmailFunc != nil {
		return m.SendEmailFunc(ctx, params, optFns...)
	}
	return &ses.SendEmailOutput{}, nil
}

// MockQuizRepository implements QuizRepository for testing
type MockQuizRepository struct {
	ListQuestionsFunc  func(ctx context.Context, activeOnly bool) ([]*models.Question, error)
	GetQuestionFunc    func(ctx context.Context, id string) (*models.Question, error)
	CreateQuestionFunc func(ctx context.Context, q *models.Question) (*models.Question, error)
	UpdateQuestionFunc func(ctx context.Context, q *models.Question) (*models.Question, error)
	DeleteQuestionFunc func(ctx context.Context, id string) error
	CreateResultFunc   func(ctx context.Context, result *models.QuizResult, lead *models.Lead) (*models.QuizResult, error)
	ListResultsFunc    func(ctx context.Context, limit, offset int) ([]*models.QuizResult, error)
	ListLeadsFunc      func(ctx context.Context, limit, offset int) ([]*models.Lead, error)
}

func (m *MockQuizRepository) ListQuestions(ctx context.Context, activeOnly bool) ([]*models.Question, error) {
	if m.ListQuestionsFunc != nil {
		return m.ListQuestionsFunc(ctx, activeOnly)
	}
	return []*models.Question{}, nil
}

func (m *MockQuizRepository) GetQuestion(ctx context.Context, id string) (*models.Question, error) {
	if m.GetQuestionFunc != nil {
		return m.GetQuestionFunc(ctx, id)
	}
	return nil, models.ErrNotFound
}

func (m *MockQuizRepository) CreateQuestion(ctx context.Context, q *models.Question) (*models.Question, error) {
	if m.CreateQuestionFunc != nil {
		return m.CreateQuestionFunc(ctx, q)
	}
	return q, nil
}

func (m *MockQuizRepository) UpdateQuestion(ctx context.Context, q *models.Question) (*models.Question, error) {
	if m.UpdateQuestionFunc != nil {
		return m.UpdateQuestionFunc(ctx, q)
	}
	return q, nil
}

func (m *MockQuizRepository) DeleteQuestion(ctx context.Context, id string) error {
	if m.DeleteQuestionFunc != nil {
		return m.DeleteQuestionFunc(ctx, id)
	}
	return nil
}

func (m *MockQuizRepository) CreateResult(ctx context.Context, result *models.QuizResult, lead *models.Lead) (*models.QuizResult, error) {
	if m.CreateResultFunc != nil {
		return m.CreateResultFunc(ctx, result, lead)
	}
	return result, nil
}

func (m *MockQuizRepository) ListResults(ctx context.Context, limit, offset int) ([]*models.QuizResult, error) {
	if m.ListResultsFunc != nil {
		return m.ListResultsFunc(ctx, limit, offset)
	}
	return []*models.QuizResult{}, nil
}

func (m *MockQuizRepository) ListLeads(ctx context.Context, limit, offset int) ([]*models.Lead, error) {
	if m.ListLeadsFunc != nil {
		return m.ListLeadsFunc(ctx, limit, offset)
	}
	return []*models.Lead{}, nil
}
