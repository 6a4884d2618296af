package repositories

import (
	"time"

	"github.com/soundbites/quizapi/internal/models"
)

// pruneRecord resets a record whose lock has expired and otherwise drops
// attempts that fell out of the window. It reports whether the lock expired.
func pruneRecord(rec *models.RateLimitRecord, now time.Time, policy models.RateLimitPolicy) bool {
	if rec.LockUntil != nil && !now.Before(*rec.LockUntil) {
		rec.Attempts = nil
		rec.LockUntil = nil
		return true
	}

	cutoff := now.Add(-policy.Window)
	kept := make([]time.Time, 0, len(rec.Attempts))
	for _, at := range rec.Attempts {
		if at.After(cutoff) {
			kept = append(kept, at)
		}
	}
	rec.Attempts = kept
	return false
}

// reserveAttempt counts an attempt made at now unless the record is locked.
// The attempt that fills the window locks the record, so at most threshold
// attempts are admitted per window however many arrive at once. It reports
// whether the attempt was admitted.
func reserveAttempt(rec *models.RateLimitRecord, now time.Time, policy models.RateLimitPolicy) bool {
	pruneRecord(rec, now, policy)
	if !rec.Locked(now) && len(rec.Attempts) >= policy.Threshold {
		lock(rec, now, policy)
	}
	if rec.Locked(now) {
		return false
	}

	rec.Attempts = append(rec.Attempts, now)
	if len(rec.Attempts) >= policy.Threshold {
		lock(rec, now, policy)
	}
	rec.UpdatedAt = now
	return true
}

func lock(rec *models.RateLimitRecord, now time.Time, policy models.RateLimitPolicy) {
	lockUntil := now.Add(policy.Lockout)
	rec.LockUntil = &lockUntil
	rec.UpdatedAt = now
}

func copyRecord(rec *models.RateLimitRecord) *models.RateLimitRecord {
	out := &models.RateLimitRecord{
		Fingerprint: rec.Fingerprint,
		Attempts:    append([]time.Time(nil), rec.Attempts...),
		UpdatedAt:   rec.UpdatedAt,
	}
	if rec.LockUntil != nil {
		lockUntil := *rec.LockUntil
		out.LockUntil = &lockUntil
	}
	return out
}
