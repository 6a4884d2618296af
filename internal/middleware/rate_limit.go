package middleware

import (
	"net/http"
	"time"

	"github.com/go-chi/httprate"

	pkghttp "github.com/soundbites/quizapi/pkg/http"
)

// RateLimitConfig holds the coarse per-IP throttle for the auth endpoints.
// It sits in front of the per-fingerprint lockout and only guards against floods.
type RateLimitConfig struct {
	RequestsPerMinute int
	IPConfig          *pkghttp.IPConfig
}

// DefaultAuthRateLimit returns the default throttle (20 requests per minute)
func DefaultAuthRateLimit(ipConfig *pkghttp.IPConfig) RateLimitConfig {
	return RateLimitConfig{
		RequestsPerMinute: 20,
		IPConfig:          ipConfig,
	}
}

// RateLimitByIP creates a middleware that rate limits requests by client IP.
// The IP is resolved with the same trusted-proxy rules as the fingerprint.
func RateLimitByIP(config RateLimitConfig) func(next http.Handler) http.Handler {
	return httprate.Limit(
		config.RequestsPerMinute,
		time.Minute,
		httprate.WithKeyFuncs(func(r *http.Request) (string, error) {
			return pkghttp.ExtractClientIP(r, config.IPConfig), nil
		}),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			pkghttp.WriteTooManyRequests(w, "Too many requests")
		}),
	)
}
