package services

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soundbites/quizapi/internal/models"
	"github.com/soundbites/quizapi/internal/repositories"
)

var testPolicy = models.RateLimitPolicy{
	Window:    5 * time.Minute,
	Threshold: 5,
	Lockout:   60 * time.Second,
}

func newTestLimiter(store RateLimitStore, now time.Time) *RateLimitService {
	svc := NewRateLimitService(store, testPolicy, slog.Default())
	svc.now = func() time.Time { return now }
	return svc
}

func TestRateLimitService_ReserveLocksOnLastSlot(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	svc := newTestLimiter(repositories.NewMemoryRateLimitStore(), now)

	for i := 0; i < testPolicy.Threshold-1; i++ {
		res, err := svc.Reserve(ctx, "fp")
		require.NoError(t, err)
		assert.True(t, res.Admitted, "attempt %d", i+1)
		assert.Zero(t, res.Lockout, "attempt %d", i+1)
	}

	res, err := svc.Reserve(ctx, "fp")
	require.NoError(t, err)
	assert.True(t, res.Admitted, "the last slot is still admitted")
	assert.Equal(t, testPolicy.Lockout, res.Lockout)

	res, err = svc.Reserve(ctx, "fp")
	require.NoError(t, err)
	assert.False(t, res.Admitted)
	assert.Equal(t, testPolicy.Lockout, res.RetryAfter)

	res, err = svc.Reserve(ctx, "other")
	require.NoError(t, err)
	assert.True(t, res.Admitted, "lockout is per fingerprint")
}

func TestRateLimitService_Clear(t *testing.T) {
	ctx := context.Background()
	svc := newTestLimiter(repositories.NewMemoryRateLimitStore(), time.Now())

	for i := 0; i < testPolicy.Threshold; i++ {
		_, err := svc.Reserve(ctx, "fp")
		require.NoError(t, err)
	}
	require.NoError(t, svc.Clear(ctx, "fp"))

	res, err := svc.Reserve(ctx, "fp")
	require.NoError(t, err)
	assert.True(t, res.Admitted)
	assert.Zero(t, res.Lockout)
}

func TestRateLimitService_PropagatesStoreErrors(t *testing.T) {
	storeErr := errors.New("store unavailable")
	store := &MockRateLimitStore{
		ReserveFunc: func(ctx context.Context, fingerprint string, now time.Time, policy models.RateLimitPolicy) (*models.RateLimitRecord, bool, error) {
			return nil, false, storeErr
		},
		ClearFunc: func(ctx context.Context, fingerprint string) error {
			return storeErr
		},
	}
	svc := newTestLimiter(store, time.Now())

	_, err := svc.Reserve(context.Background(), "fp")
	assert.ErrorIs(t, err, storeErr)
	assert.ErrorIs(t, svc.Clear(context.Background(), "fp"), storeErr)
}

func TestRateLimitService_PassesPolicyToStore(t *testing.T) {
	now := time.Now()
	var gotPolicy models.RateLimitPolicy
	var gotNow time.Time
	store := &MockRateLimitStore{
		ReserveFunc: func(ctx context.Context, fingerprint string, n time.Time, policy models.RateLimitPolicy) (*models.RateLimitRecord, bool, error) {
			gotPolicy, gotNow = policy, n
			return &models.RateLimitRecord{Fingerprint: fingerprint}, true, nil
		},
	}
	svc := newTestLimiter(store, now)

	_, err := svc.Reserve(context.Background(), "fp")
	require.NoError(t, err)
	assert.Equal(t, testPolicy, gotPolicy)
	assert.Equal(t, now, gotNow)
	assert.Equal(t, testPolicy, svc.Policy())
}

func TestRateLimitService_CleanupStale(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	var gotBefore time.Time
	store := &MockRateLimitStore{
		DeleteStaleFunc: func(ctx context.Context, before time.Time) (int64, error) {
			gotBefore = before
			return 3, nil
		},
	}
	svc := newTestLimiter(store, now)

	deleted, err := svc.CleanupStale(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(3), deleted)
	assert.Equal(t, now.Add(-6*time.Minute), gotBefore)
}
