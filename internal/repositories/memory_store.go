package repositories

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/soundbites/quizapi/internal/models"
)

// MemoryStore is the in-process credential and recovery store used when
// STORE_DRIVER=memory. State is lost on restart.
type MemoryStore struct {
	mu           sync.RWMutex
	accounts     map[string]*models.Account
	byIdentifier map[string]string
	secrets      map[string]*models.RecoverySecret
	now          func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		accounts:     make(map[string]*models.Account),
		byIdentifier: make(map[string]string),
		secrets:      make(map[string]*models.RecoverySecret),
		now:          func() time.Time { return time.Now().UTC() },
	}
}

func identifierKey(identifier string) string {
	return strings.ToLower(strings.TrimSpace(identifier))
}

func copyAccount(a *models.Account) *models.Account {
	c := *a
	return &c
}

func (s *MemoryStore) GetByID(_ context.Context, id string) (*models.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	a, ok := s.accounts[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	return copyAccount(a), nil
}

func (s *MemoryStore) GetByIdentifier(_ context.Context, identifier string) (*models.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.byIdentifier[identifierKey(identifier)]
	if !ok {
		return nil, models.ErrNotFound
	}
	return copyAccount(s.accounts[id]), nil
}

func (s *MemoryStore) List(_ context.Context, limit, offset int) ([]*models.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	all := make([]*models.Account, 0, len(s.accounts))
	for _, a := range s.accounts {
		all = append(all, copyAccount(a))
	}
	sort.Slice(all, func(i, j int) bool {
		if all[i].CreatedAt.Equal(all[j].CreatedAt) {
			return all[i].ID < all[j].ID
		}
		return all[i].CreatedAt.Before(all[j].CreatedAt)
	})
	return paginate(all, limit, offset), nil
}

func (s *MemoryStore) Count(context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.accounts), nil
}

func (s *MemoryStore) Create(_ context.Context, account *models.Account, secret *models.RecoverySecret) (*models.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.insertLocked(account, secret)
}

func (s *MemoryStore) CreateFirst(_ context.Context, account *models.Account, secret *models.RecoverySecret) (*models.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.accounts) > 0 {
		return nil, models.ErrConflict
	}
	return s.insertLocked(account, secret)
}

func (s *MemoryStore) insertLocked(account *models.Account, secret *models.RecoverySecret) (*models.Account, error) {
	key := identifierKey(account.Identifier)
	if _, taken := s.byIdentifier[key]; taken {
		return nil, models.ErrConflict
	}

	now := s.now()
	stored := copyAccount(account)
	stored.ID = uuid.New().String()
	stored.Identifier = strings.TrimSpace(account.Identifier)
	stored.CreatedAt = now
	stored.UpdatedAt = now
	if stored.Role == "" {
		stored.Role = models.RoleViewer
	}

	s.accounts[stored.ID] = stored
	s.byIdentifier[key] = stored.ID

	if secret != nil {
		secret.AccountID = stored.ID
		if secret.CreatedAt.IsZero() {
			secret.CreatedAt = now
		}
		sc := *secret
		s.secrets[stored.ID] = &sc
	}
	return copyAccount(stored), nil
}

func (s *MemoryStore) UpdatePassword(_ context.Context, id, passwordHash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.accounts[id]
	if !ok {
		return models.ErrNotFound
	}
	a.PasswordHash = passwordHash
	a.UpdatedAt = s.now()
	return nil
}

func (s *MemoryStore) Update(_ context.Context, account *models.Account) (*models.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.accounts[account.ID]
	if !ok {
		return nil, models.ErrNotFound
	}

	identifier := strings.TrimSpace(account.Identifier)
	oldKey, newKey := identifierKey(a.Identifier), identifierKey(identifier)
	if newKey != oldKey {
		if _, taken := s.byIdentifier[newKey]; taken {
			return nil, models.ErrConflict
		}
		delete(s.byIdentifier, oldKey)
		s.byIdentifier[newKey] = a.ID
	}

	a.Identifier = identifier
	a.PasswordHash = account.PasswordHash
	a.Role = account.Role
	a.UpdatedAt = s.now()
	return copyAccount(a), nil
}

func (s *MemoryStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.accounts[id]
	if !ok {
		return models.ErrNotFound
	}
	delete(s.byIdentifier, identifierKey(a.Identifier))
	delete(s.accounts, id)
	delete(s.secrets, id)
	return nil
}

func (s *MemoryStore) Upsert(_ context.Context, secret *models.RecoverySecret) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.accounts[secret.AccountID]; !ok {
		return models.ErrBadRequest
	}
	if secret.CreatedAt.IsZero() {
		secret.CreatedAt = s.now()
	}
	sc := *secret
	s.secrets[secret.AccountID] = &sc
	return nil
}

func (s *MemoryStore) GetByAccountID(_ context.Context, accountID string) (*models.RecoverySecret, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sc, ok := s.secrets[accountID]
	if !ok {
		return nil, models.ErrNotFound
	}
	out := *sc
	return &out, nil
}

func (s *MemoryStore) ListSecrets(context.Context) ([]*models.RecoverySecret, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*models.RecoverySecret, 0, len(s.secrets))
	for _, sc := range s.secrets {
		c := *sc
		out = append(out, &c)
	}
	return out, nil
}

// Redeem applies the recovery under the store lock, mirroring the Postgres
// compare-and-swap.
func (s *MemoryStore) Redeem(_ context.Context, r models.RecoveryRedemption) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.secrets[r.AccountID]
	if !ok || current.CodeHash != r.RedeemedCodeHash || r.Next == nil {
		return models.ErrInvalidRecoveryCode
	}
	a, ok := s.accounts[r.AccountID]
	if !ok {
		return models.ErrNotFound
	}

	newKey := identifierKey(r.NewIdentifier)
	if owner, taken := s.byIdentifier[newKey]; taken && owner != a.ID {
		return models.ErrConflict
	}

	now := s.now()
	delete(s.byIdentifier, identifierKey(a.Identifier))
	a.Identifier = strings.TrimSpace(r.NewIdentifier)
	a.PasswordHash = r.NewPasswordHash
	a.UpdatedAt = now
	s.byIdentifier[newKey] = a.ID

	next := *r.Next
	next.AccountID = a.ID
	if next.CreatedAt.IsZero() {
		next.CreatedAt = now
	}
	s.secrets[a.ID] = &next
	return nil
}

// RecoverySecrets exposes the recovery half of the store under the method
// names the recovery service expects.
func (s *MemoryStore) RecoverySecrets() *MemoryRecoveryStore {
	return &MemoryRecoveryStore{s: s}
}

// MemoryRecoveryStore adapts MemoryStore to the recovery repository contract
type MemoryRecoveryStore struct {
	s *MemoryStore
}

func (m *MemoryRecoveryStore) Upsert(ctx context.Context, secret *models.RecoverySecret) error {
	return m.s.Upsert(ctx, secret)
}

func (m *MemoryRecoveryStore) GetByAccountID(ctx context.Context, accountID string) (*models.RecoverySecret, error) {
	return m.s.GetByAccountID(ctx, accountID)
}

func (m *MemoryRecoveryStore) List(ctx context.Context) ([]*models.RecoverySecret, error) {
	return m.s.ListSecrets(ctx)
}

func (m *MemoryRecoveryStore) Redeem(ctx context.Context, r models.RecoveryRedemption) error {
	return m.s.Redeem(ctx, r)
}

func paginate[T any](items []T, limit, offset int) []T {
	if offset < 0 {
		offset = 0
	}
	if offset >= len(items) {
		return []T{}
	}
	items = items[offset:]
	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}
	return items
}
