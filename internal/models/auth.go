package models

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// TokenClaims are the signed contents of a session token. Subject holds the account id.
type TokenClaims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// SessionToken is an issued bearer credential together with its expiry.
type SessionToken struct {
	Value     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// RateLimitPolicy configures the per-fingerprint sliding window.
type RateLimitPolicy struct {
	Window    time.Duration
	Threshold int
	Lockout   time.Duration
}

// RateLimitRecord holds the failed attempts of one client fingerprint.
// Attempts are pruned to the window on every read.
type RateLimitRecord struct {
	Fingerprint string
	Attempts    []time.Time
	LockUntil   *time.Time
	UpdatedAt   time.Time
}

// Locked reports whether the record is locked at now
func (r *RateLimitRecord) Locked(now time.Time) bool {
	return r != nil && r.LockUntil != nil && now.Before(*r.LockUntil)
}

// RecoverySecret is the salted hash of an account's single active recovery code.
type RecoverySecret struct {
	AccountID string
	Salt      string
	CodeHash  string
	CreatedAt time.Time
}

// RecoveryRedemption describes one atomic recovery: the redeemed secret is
// swapped for Next and the account credentials are replaced.
type RecoveryRedemption struct {
	AccountID        string
	RedeemedCodeHash string
	Next             *RecoverySecret
	NewIdentifier    string
	NewPasswordHash  string
}
