package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setRequired(t *testing.T) {
	t.Setenv("JWT_SECRET", "test-secret-32-characters-long!")
	t.Setenv("DB_PASSWORD", "test")
}

func TestLoad_AuthDefaults(t *testing.T) {
	setRequired(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 24*time.Hour, cfg.Auth.TokenTTL)
	assert.Equal(t, 5*time.Minute, cfg.Auth.RateLimitWindow)
	assert.Equal(t, 5, cfg.Auth.RateLimitThreshold)
	assert.Equal(t, 60*time.Second, cfg.Auth.RateLimitLockout)
	assert.Equal(t, 12, cfg.Auth.PasswordHashCost)
	assert.Equal(t, 8, cfg.Auth.PasswordMinLength)
	assert.Equal(t, 3*time.Second, cfg.Auth.StoreTimeout)
	assert.Equal(t, "admin_token", cfg.Auth.CookieName)
	assert.False(t, cfg.Auth.CookieSecure, "cookies are not forced secure outside production")
	assert.Equal(t, DriverPostgres, cfg.Store.Driver)
	assert.Equal(t, DriverPostgres, cfg.Store.RateLimitDriver, "rate limit store follows the account store")
}

func TestLoad_MissingJWTSecret(t *testing.T) {
	t.Setenv("JWT_SECRET", "")
	t.Setenv("DB_PASSWORD", "test")

	_, err := Load()
	assert.ErrorContains(t, err, "JWT_SECRET is required")
}

func TestLoad_WeakJWTSecret(t *testing.T) {
	tests := []struct {
		name   string
		secret string
		env    string
	}{
		{name: "too short in development", secret: "short", env: "development"},
		{name: "too short in production", secret: "only-twenty-chars-xx", env: "production"},
		{name: "repeated weak word", secret: "secretsecretsecret", env: "development"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("JWT_SECRET", tt.secret)
			t.Setenv("DB_PASSWORD", "test")
			t.Setenv("ENV", tt.env)

			_, err := Load()
			assert.Error(t, err)
		})
	}
}

func TestLoad_DBPasswordOnlyRequiredForPostgres(t *testing.T) {
	t.Setenv("JWT_SECRET", "test-secret-32-characters-long!")
	t.Setenv("DB_PASSWORD", "")

	_, err := Load()
	assert.ErrorContains(t, err, "DB_PASSWORD")

	t.Setenv("STORE_DRIVER", "memory")
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, DriverMemory, cfg.Store.RateLimitDriver)
	assert.False(t, cfg.NeedsPostgres())
}

func TestLoad_RedisRequiresURL(t *testing.T) {
	setRequired(t)
	t.Setenv("RATE_LIMIT_STORE", "redis")

	_, err := Load()
	assert.ErrorContains(t, err, "REDIS_URL")

	t.Setenv("REDIS_URL", "redis://localhost:6379/0")
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, DriverRedis, cfg.Store.RateLimitDriver)
}

func TestLoad_UnknownDriver(t *testing.T) {
	setRequired(t)
	t.Setenv("STORE_DRIVER", "mongo")

	_, err := Load()
	assert.ErrorContains(t, err, "STORE_DRIVER")
}

func TestLoad_ProductionRules(t *testing.T) {
	setRequired(t)
	t.Setenv("ENV", "production")
	t.Setenv("JWT_SECRET", "a-production-secret-with-more-than-32-chars")

	t.Setenv("PASSWORD_HASH_COST", "8")
	_, err := Load()
	assert.ErrorContains(t, err, "PASSWORD_HASH_COST")

	t.Setenv("PASSWORD_HASH_COST", "12")
	cfg, err := Load()
	require.NoError(t, err)
	assert.True(t, cfg.Auth.CookieSecure)
}

func TestLoad_PasswordMinLengthFloor(t *testing.T) {
	setRequired(t)
	t.Setenv("PASSWORD_MIN_LENGTH", "4")

	_, err := Load()
	assert.ErrorContains(t, err, "PASSWORD_MIN_LENGTH")
}

func TestLoad_CustomRateLimitPolicy(t *testing.T) {
	setRequired(t)
	t.Setenv("RATE_LIMIT_WINDOW", "15m")
	t.Setenv("RATE_LIMIT_THRESHOLD", "10")
	t.Setenv("RATE_LIMIT_LOCKOUT", "5m")
	t.Setenv("TOKEN_TTL", "8h")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 15*time.Minute, cfg.Auth.RateLimitWindow)
	assert.Equal(t, 10, cfg.Auth.RateLimitThreshold)
	assert.Equal(t, 5*time.Minute, cfg.Auth.RateLimitLockout)
	assert.Equal(t, 8*time.Hour, cfg.Auth.TokenTTL)
}

func TestServerConfig_Timeouts(t *testing.T) {
	tests := []struct {
		name     string
		env      map[string]string
		expected [3]time.Duration
	}{
		{
			name:     "defaults",
			expected: [3]time.Duration{15 * time.Second, 15 * time.Second, 60 * time.Second},
		},
		{
			name:     "custom values",
			env:      map[string]string{"SERVER_READ_TIMEOUT": "30s", "SERVER_WRITE_TIMEOUT": "45s", "SERVER_IDLE_TIMEOUT": "120s"},
			expected: [3]time.Duration{30 * time.Second, 45 * time.Second, 120 * time.Second},
		},
		{
			name:     "invalid duration falls back to default",
			env:      map[string]string{"SERVER_READ_TIMEOUT": "not-a-duration"},
			expected: [3]time.Duration{15 * time.Second, 15 * time.Second, 60 * time.Second},
		},
		{
			name:     "explicit zero is honoured",
			env:      map[string]string{"SERVER_READ_TIMEOUT": "0s"},
			expected: [3]time.Duration{0, 15 * time.Second, 60 * time.Second},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			setRequired(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}

			cfg, err := Load()
			require.NoError(t, err)
			assert.Equal(t, tt.expected[0], cfg.Server.ReadTimeout)
			assert.Equal(t, tt.expected[1], cfg.Server.WriteTimeout)
			assert.Equal(t, tt.expected[2], cfg.Server.IdleTimeout)
		})
	}
}

func TestGetEnvAsList(t *testing.T) {
	t.Setenv("TRUSTED_PROXIES", " 10.0.0.0/8, ,127.0.0.1/32 ")
	assert.Equal(t, []string{"10.0.0.0/8", "127.0.0.1/32"}, getEnvAsList("TRUSTED_PROXIES"))

	t.Setenv("TRUSTED_PROXIES", "")
	assert.Empty(t, getEnvAsList("TRUSTED_PROXIES"))
}

func TestDSN(t *testing.T) {
	c := DatabaseConfig{Host: "db", Port: 5433, User: "u", Password: "p", Name: "n", SSLMode: "require"}
	assert.Equal(t, "host=db port=5433 user=u password=p dbname=n sslmode=require", c.DSN())
}
