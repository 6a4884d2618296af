package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/soundbites/quizapi/internal/models"
	pkghttp "github.com/soundbites/quizapi/pkg/http"
)

// contextKey is a custom type for context keys
type contextKey string

const (
	// PrincipalContextKey is the key for storing the verified principal in context
	PrincipalContextKey contextKey = "principal"
)

// SessionVerifier resolves a raw session token to the principal it belongs to.
// Implementations re-check the account so that deleted accounts and changed
// roles take effect before the token expires.
type SessionVerifier interface {
	Authenticate(ctx context.Context, token string) (*models.Principal, error)
}

// ExtractToken returns the session token from an "Authorization: Bearer" header,
// falling back to the session cookie. The header wins when both are present.
func ExtractToken(r *http.Request, cookies CookieConfig) string {
	if authHeader := r.Header.Get("Authorization"); authHeader != "" {
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
			return strings.TrimSpace(parts[1])
		}
		return ""
	}

	if token, err := GetSessionCookie(r, cookies); err == nil {
		return token
	}
	return ""
}

// Authenticate rejects requests without a valid session and injects the principal into context
func Authenticate(verifier SessionVerifier, cookies CookieConfig) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := ExtractToken(r, cookies)
			if token == "" {
				pkghttp.WriteUnauthorized(w, "Authentication required")
				return
			}

			principal, err := verifier.Authenticate(r.Context(), token)
			if err != nil {
				switch {
				case errors.Is(err, models.ErrTokenExpired):
					pkghttp.WriteError(w, http.StatusUnauthorized, "token_expired", "Session expired, please log in again")
				case errors.Is(err, models.ErrServiceUnavailable):
					// Fail closed: deny access if the session cannot be checked
					pkghttp.WriteServiceUnavailable(w, "Unable to verify session")
				default:
					pkghttp.WriteUnauthorized(w, "Invalid session")
				}
				return
			}

			ctx := context.WithValue(r.Context(), PrincipalContextKey, principal)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// OptionalAuthenticate injects the principal when the request carries a valid
// session and otherwise lets it through anonymously. Only an unreachable
// store stops the request.
func OptionalAuthenticate(verifier SessionVerifier, cookies CookieConfig) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := ExtractToken(r, cookies)
			if token == "" {
				next.ServeHTTP(w, r)
				return
			}

			principal, err := verifier.Authenticate(r.Context(), token)
			if errors.Is(err, models.ErrServiceUnavailable) {
				pkghttp.WriteServiceUnavailable(w, "Unable to verify session")
				return
			}
			if err != nil {
				next.ServeHTTP(w, r)
				return
			}

			next.ServeHTTP(w, r.WithContext(WithPrincipal(r.Context(), principal)))
		})
	}
}

// RequireRole allows the request through only if the principal holds one of roles.
// It must be used after Authenticate.
func RequireRole(roles ...string) func(next http.Handler) http.Handler {
	allowed := make(map[string]bool, len(roles))
	for _, role := range roles {
		allowed[role] = true
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			principal := GetPrincipalFromContext(r)
			if principal == nil {
				pkghttp.WriteUnauthorized(w, "Authentication required")
				return
			}

			if !allowed[principal.Role] {
				pkghttp.WriteForbidden(w, "Insufficient permissions")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// GetPrincipalFromContext extracts the verified principal from request context
func GetPrincipalFromContext(r *http.Request) *models.Principal {
	principal, ok := r.Context().Value(PrincipalContextKey).(*models.Principal)
	if !ok {
		return nil
	}
	return principal
}

// WithPrincipal returns a copy of ctx carrying principal
func WithPrincipal(ctx context.Context, principal *models.Principal) context.Context {
	return context.WithValue(ctx, PrincipalContextKey, principal)
}
