package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/soundbites/quizapi/internal/models"
)

// TokenManager issues and verifies stateless HS256 session tokens.
// Rotating the secret invalidates every outstanding token.
type TokenManager struct {
	secret []byte
	issuer string
	ttl    time.Duration
	now    func() time.Time
}

// NewTokenManager creates a new TokenManager
func NewTokenManager(secret, issuer string, ttl time.Duration) *TokenManager {
	return &TokenManager{
		secret: []byte(secret),
		issuer: issuer,
		ttl:    ttl,
		now:    time.Now,
	}
}

// TTL returns the lifetime of issued tokens
func (tm *TokenManager) TTL() time.Duration {
	return tm.ttl
}

// Issue signs a token for accountID carrying role, valid for the configured TTL
func (tm *TokenManager) Issue(accountID, role string) (*models.SessionToken, error) {
	issuedAt := tm.now().Truncate(time.Second)
	expiresAt := issuedAt.Add(tm.ttl)

	claims := &models.TokenClaims{
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.New().String(),
			Issuer:    tm.issuer,
			Subject:   accountID,
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			NotBefore: jwt.NewNumericDate(issuedAt),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(tm.secret)
	if err != nil {
		return nil, fmt.Errorf("failed to sign session token: %w", err)
	}

	return &models.SessionToken{Value: signed, ExpiresAt: expiresAt}, nil
}

// Verify checks signature, issuer and expiry. It returns models.ErrTokenExpired
// for a well-formed token past its expiry and models.ErrTokenMalformed for
// everything else that fails.
//
// A token is valid only while now < exp. jwt/v5 treats now == exp as
// expired, so a token is rejected from the first instant of its expiry
// second rather than one second later.
func (tm *TokenManager) Verify(tokenString string) (*models.Principal, error) {
	if tokenString == "" {
		return nil, models.ErrTokenMalformed
	}

	claims := &models.TokenClaims{}
	_, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return tm.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(tm.issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(tm.now),
	)
	if err != nil {
		// Expiry is only reported once the signature has been checked, so an
		// expired forgery still lands in the malformed branch.
		if errors.Is(err, jwt.ErrTokenExpired) && !errors.Is(err, jwt.ErrTokenSignatureInvalid) {
			return nil, models.ErrTokenExpired
		}
		return nil, models.ErrTokenMalformed
	}

	if claims.Subject == "" || !models.ValidRole(claims.Role) {
		return nil, models.ErrTokenMalformed
	}

	return &models.Principal{AccountID: claims.Subject, Role: claims.Role}, nil
}
