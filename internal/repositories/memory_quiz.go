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

// MemoryQuizStore is the in-process quiz store for STORE_DRIVER=memory
type MemoryQuizStore struct {
	mu        sync.RWMutex
	questions map[string]*models.Question
	leads     map[string]*models.Lead // keyed by lower-case email
	results   []*models.QuizResult
}

func NewMemoryQuizStore() *MemoryQuizStore {
	return &MemoryQuizStore{
		questions: make(map[string]*models.Question),
		leads:     make(map[string]*models.Lead),
	}
}

func copyQuestion(q *models.Question) *models.Question {
	c := *q
	c.Options = append([]string{}, q.Options...)
	return &c
}

func (s *MemoryQuizStore) ListQuestions(_ context.Context, activeOnly bool) ([]*models.Question, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*models.Question, 0, len(s.questions))
	for _, q := range s.questions {
		if activeOnly && !q.Active {
			continue
		}
		out = append(out, copyQuestion(q))
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Position == out[j].Position {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].Position < out[j].Position
	})
	return out, nil
}

func (s *MemoryQuizStore) GetQuestion(_ context.Context, id string) (*models.Question, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	q, ok := s.questions[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	return copyQuestion(q), nil
}

func (s *MemoryQuizStore) CreateQuestion(_ context.Context, q *models.Question) (*models.Question, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	stored := copyQuestion(q)
	stored.ID = uuid.New().String()
	stored.CreatedAt = now
	stored.UpdatedAt = now
	s.questions[stored.ID] = stored
	return copyQuestion(stored), nil
}

func (s *MemoryQuizStore) UpdateQuestion(_ context.Context, q *models.Question) (*models.Question, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.questions[q.ID]
	if !ok {
		return nil, models.ErrNotFound
	}
	stored := copyQuestion(q)
	stored.CreatedAt = existing.CreatedAt
	stored.UpdatedAt = time.Now().UTC()
	s.questions[q.ID] = stored
	return copyQuestion(stored), nil
}

func (s *MemoryQuizStore) DeleteQuestion(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.questions[id]; !ok {
		return models.ErrNotFound
	}
	delete(s.questions, id)
	return nil
}

func (s *MemoryQuizStore) CreateResult(_ context.Context, result *models.QuizResult, lead *models.Lead) (*models.QuizResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	if lead != nil {
		key := strings.ToLower(strings.TrimSpace(lead.Email))
		existing, ok := s.leads[key]
		if !ok {
			existing = &models.Lead{ID: uuid.New().String(), Email: key, CreatedAt: now}
			s.leads[key] = existing
		}
		if lead.Name != "" {
			existing.Name = lead.Name
		}
		existing.UpdatedAt = now
		leadID := existing.ID
		result.LeadID = &leadID
	}

	result.ID = uuid.New().String()
	result.CreatedAt = now
	if result.Answers == nil {
		result.Answers = map[string]int{}
	}
	stored := *result
	s.results = append(s.results, &stored)
	return result, nil
}

func (s *MemoryQuizStore) ListResults(_ context.Context, limit, offset int) ([]*models.QuizResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*models.QuizResult, 0, len(s.results))
	for i := len(s.results) - 1; i >= 0; i-- {
		c := *s.results[i]
		out = append(out, &c)
	}
	return paginate(out, limit, offset), nil
}

func (s *MemoryQuizStore) ListLeads(_ context.Context, limit, offset int) ([]*models.Lead, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*models.Lead, 0, len(s.leads))
	for _, l := range s.leads {
		c := *l
		out = append(out, &c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return paginate(out, limit, offset), nil
}
