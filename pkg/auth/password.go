package auth

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"
	"golang.org/x/sync/semaphore"
)

const (
	DefaultBcryptCost = 12
	MinProductionCost = 10
	// AbsoluteMinPasswordLen is the floor no configuration may go below
	AbsoluteMinPasswordLen = 6
	DefaultMinPasswordLen  = 8
	// MaxPasswordBytes is bcrypt's input limit
	MaxPasswordBytes = 72
)

// PasswordValidationError describes why a new password was rejected.
// Unlike login failures, these messages are safe to show the user.
type PasswordValidationError struct {
	Reason string
}

func (e *PasswordValidationError) Error() string {
	return e.Reason
}

// Common weak passwords to reject
var commonPasswords = map[string]bool{
	"password":     true,
	"12345678":     true,
	"123456":       true,
	"qwerty":       true,
	"abc123":       true,
	"password123":  true,
	"password123!": true,
	"admin":        true,
	"admin123":     true,
	"letmein":      true,
	"welcome":      true,
	"changeme":     true,
	"passw0rd":     true,
	"trustno1":     true,
}

// PasswordPolicy enforces the rules applied when a password is set
type PasswordPolicy struct {
	MinLength int
}

// NewPasswordPolicy clamps minLength to AbsoluteMinPasswordLen
func NewPasswordPolicy(minLength int) PasswordPolicy {
	if minLength < AbsoluteMinPasswordLen {
		minLength = AbsoluteMinPasswordLen
	}
	return PasswordPolicy{MinLength: minLength}
}

// Validate checks a candidate password. Length is counted in characters,
// the upper bound in bytes because that is what bcrypt accepts.
func (p PasswordPolicy) Validate(password string) error {
	if len([]rune(password)) < p.MinLength {
		return &PasswordValidationError{Reason: fmt.Sprintf("must be at least %d characters", p.MinLength)}
	}
	if len(password) > MaxPasswordBytes {
		return &PasswordValidationError{Reason: fmt.Sprintf("must be at most %d bytes", MaxPasswordBytes)}
	}
	if strings.TrimSpace(password) == "" {
		return &PasswordValidationError{Reason: "must not be blank"}
	}
	if commonPasswords[strings.ToLower(password)] {
		return &PasswordValidationError{Reason: "is too common, please choose a more unique password"}
	}
	return nil
}

// Hasher wraps bcrypt behind a weighted semaphore so that at most
// `concurrency` hashes run at once and waiting callers honour their context.
type Hasher struct {
	cost      int
	sem       *semaphore.Weighted
	dummyHash []byte
}

// NewHasher creates a Hasher. It computes one dummy hash at the same cost
// so that lookups of unknown accounts can burn equivalent time.
func NewHasher(cost, concurrency int) (*Hasher, error) {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		return nil, fmt.Errorf("bcrypt cost %d out of range [%d, %d]", cost, bcrypt.MinCost, bcrypt.MaxCost)
	}
	if concurrency < 1 {
		concurrency = 1
	}

	filler := make([]byte, 24)
	if _, err := rand.Read(filler); err != nil {
		return nil, fmt.Errorf("failed to generate dummy password: %w", err)
	}
	dummy, err := bcrypt.GenerateFromPassword([]byte(base64.RawStdEncoding.EncodeToString(filler)), cost)
	if err != nil {
		return nil, fmt.Errorf("failed to compute dummy hash: %w", err)
	}

	return &Hasher{
		cost:      cost,
		sem:       semaphore.NewWeighted(int64(concurrency)),
		dummyHash: dummy,
	}, nil
}

// Cost returns the configured bcrypt cost
func (h *Hasher) Cost() int {
	return h.cost
}

// Hash returns the bcrypt hash of plaintext. It only fails when the context
// ends before a worker slot frees up or bcrypt rejects the input.
func (h *Hasher) Hash(ctx context.Context, plaintext string) (string, error) {
	if err := h.sem.Acquire(ctx, 1); err != nil {
		return "", fmt.Errorf("waiting for hash worker: %w", err)
	}
	defer h.sem.Release(1)

	hashed, err := bcrypt.GenerateFromPassword([]byte(plaintext), h.cost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hashed), nil
}

// Verify compares plaintext with hash. A malformed hash yields false, not an
// error. The error return is reserved for context cancellation while waiting.
func (h *Hasher) Verify(ctx context.Context, plaintext, hash string) (bool, error) {
	if err := h.sem.Acquire(ctx, 1); err != nil {
		return false, fmt.Errorf("waiting for hash worker: %w", err)
	}
	defer h.sem.Release(1)

	return compare([]byte(hash), plaintext), nil
}

// VerifyDummy spends the same work as Verify against a hash that matches
// nothing. Use it when the account lookup came back empty.
func (h *Hasher) VerifyDummy(ctx context.Context, plaintext string) error {
	if err := h.sem.Acquire(ctx, 1); err != nil {
		return fmt.Errorf("waiting for hash worker: %w", err)
	}
	defer h.sem.Release(1)

	compare(h.dummyHash, plaintext)
	return nil
}

// compare reports any bcrypt error, including a malformed hash, as no match
func compare(hash []byte, plaintext string) bool {
	return bcrypt.CompareHashAndPassword(hash, []byte(plaintext)) == nil
}
