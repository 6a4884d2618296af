package auth

import (
	"context"
	"crypto/rand"
	"encoding/binary"
	"time"
)

// TimingConfig holds configuration for the failure delay
type TimingConfig struct {
	BaseDelay   time.Duration
	RandomDelay time.Duration // upper bound of the random jitter added on top
}

// TimingDelay pads failed authentication attempts up to a jittered floor so
// that response times do not reveal which check failed. The zero config
// disables it; the dummy hash comparison already evens out the main branch.
type TimingDelay struct {
	config TimingConfig
}

// NewTimingDelay creates a new TimingDelay instance
func NewTimingDelay(config TimingConfig) *TimingDelay {
	return &TimingDelay{config: config}
}

// cryptoRandDuration returns a secure random duration in [0, max)
func cryptoRandDuration(max time.Duration) time.Duration {
	if max <= 0 {
		return 0
	}
	randomBytes := make([]byte, 8)
	if _, err := rand.Read(randomBytes); err != nil {
		return 0
	}
	return time.Duration(binary.BigEndian.Uint64(randomBytes) % uint64(max))
}

// Target returns the jittered floor for one failed attempt
func (td *TimingDelay) Target() time.Duration {
	if td == nil {
		return 0
	}
	return td.config.BaseDelay + cryptoRandDuration(td.config.RandomDelay)
}

// WaitFrom sleeps until at least Target() has elapsed since start, or until ctx ends
func (td *TimingDelay) WaitFrom(ctx context.Context, start time.Time) {
	remaining := td.Target() - time.Since(start)
	if remaining <= 0 {
		return
	}

	timer := time.NewTimer(remaining)
	defer timer.Stop()
	select {
	case <-timer.C:
	case <-ctx.Done():
	}
}
