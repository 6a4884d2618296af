package services

import (
	"context"
	"log/slog"
	"time"

	"github.com/soundbites/quizapi/internal/models"
)

// RateLimitStore persists attempts per client fingerprint.
// Reserve must prune, check the lock, append and apply the threshold as one
// atomic step, and report whether the attempt was admitted.
type RateLimitStore interface {
	Reserve(ctx context.Context, fingerprint string, now time.Time, policy models.RateLimitPolicy) (*models.RateLimitRecord, bool, error)
	Clear(ctx context.Context, fingerprint string) error
	DeleteStale(ctx context.Context, before time.Time) (int64, error)
}

// Reservation is the outcome of asking for an attempt slot
type Reservation struct {
	Admitted bool
	// RetryAfter is the remaining lockout of a refused attempt
	RetryAfter time.Duration
	// Lockout is set when an admitted attempt used the last slot
	Lockout time.Duration
}

// RateLimitService applies the sliding-window lockout policy. Every attempt
// takes a slot before its credential is checked; a success clears the
// fingerprint, so in effect only failures stay counted.
type RateLimitService struct {
	store  RateLimitStore
	policy models.RateLimitPolicy
	logger *slog.Logger
	now    func() time.Time
}

func NewRateLimitService(store RateLimitStore, policy models.RateLimitPolicy, logger *slog.Logger) *RateLimitService {
	return &RateLimitService{
		store:  store,
		policy: policy,
		logger: logger,
		now:    time.Now,
	}
}

func (s *RateLimitService) Policy() models.RateLimitPolicy {
	return s.policy
}

// Reserve takes an attempt slot for fingerprint. A locked fingerprint is
// refused with its remaining lockout.
func (s *RateLimitService) Reserve(ctx context.Context, fingerprint string) (*Reservation, error) {
	now := s.now()
	rec, admitted, err := s.store.Reserve(ctx, fingerprint, now, s.policy)
	if err != nil {
		return nil, err
	}

	if !admitted {
		res := &Reservation{}
		if rec.Locked(now) {
			res.RetryAfter = rec.LockUntil.Sub(now)
		}
		s.logger.DebugContext(ctx, "attempt refused",
			slog.String("fingerprint", fingerprint),
			slog.Duration("retry_after", res.RetryAfter),
		)
		return res, nil
	}

	res := &Reservation{Admitted: true}
	if rec.Locked(now) {
		res.Lockout = rec.LockUntil.Sub(now)
	}
	return res, nil
}

func (s *RateLimitService) Clear(ctx context.Context, fingerprint string) error {
	return s.store.Clear(ctx, fingerprint)
}

// CleanupStale deletes records that can no longer affect a decision: their
// newest attempt is out of the window and any lock has run out.
func (s *RateLimitService) CleanupStale(ctx context.Context) (int64, error) {
	before := s.now().Add(-(s.policy.Window + s.policy.Lockout))
	return s.store.DeleteStale(ctx, before)
}
