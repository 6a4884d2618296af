package repositories

import (
	"context"
	"sync"
	"time"

	"github.com/soundbites/quizapi/internal/models"
)

// MemoryRateLimitStore keeps records per process. Only suitable when a
// single instance serves all traffic.
type MemoryRateLimitStore struct {
	mu      sync.Mutex
	records map[string]*models.RateLimitRecord
}

func NewMemoryRateLimitStore() *MemoryRateLimitStore {
	return &MemoryRateLimitStore{records: make(map[string]*models.RateLimitRecord)}
}

func (s *MemoryRateLimitStore) Reserve(_ context.Context, fingerprint string, now time.Time, policy models.RateLimitPolicy) (*models.RateLimitRecord, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[fingerprint]
	if !ok {
		rec = &models.RateLimitRecord{Fingerprint: fingerprint}
		s.records[fingerprint] = rec
	}
	admitted := reserveAttempt(rec, now, policy)
	return copyRecord(rec), admitted, nil
}

func (s *MemoryRateLimitStore) Get(_ context.Context, fingerprint string, now time.Time, policy models.RateLimitPolicy) (*models.RateLimitRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[fingerprint]
	if !ok {
		return &models.RateLimitRecord{Fingerprint: fingerprint}, nil
	}
	if pruneRecord(rec, now, policy) {
		delete(s.records, fingerprint)
	}
	return copyRecord(rec), nil
}

func (s *MemoryRateLimitStore) Clear(_ context.Context, fingerprint string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.records, fingerprint)
	return nil
}

func (s *MemoryRateLimitStore) DeleteStale(_ context.Context, before time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var deleted int64
	for fp, rec := range s.records {
		if rec.UpdatedAt.Before(before) && (rec.LockUntil == nil || rec.LockUntil.Before(before)) {
			delete(s.records, fp)
			deleted++
		}
	}
	return deleted, nil
}
