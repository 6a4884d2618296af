package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Store drivers
const (
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
	DriverRedis    = "redis"
)

type Config struct {
	Database      DatabaseConfig
	Server        ServerConfig
	Store         StoreConfig
	Auth          AuthConfig
	Bootstrap     BootstrapConfig
	Email         EmailConfig
	Observability ObservabilityConfig
}

type DatabaseConfig struct {
	Host              string
	Port              int
	User              string
	Password          string
	Name              string
	SSLMode           string
	MaxConns          int32
	MinConns          int32
	MaxConnLifetime   time.Duration
	MaxConnIdleTime   time.Duration
	HealthCheckPeriod time.Duration
	Migrate           bool
}

type ServerConfig struct {
	Port           string
	Env            string
	LogLevel       string
	AllowedOrigins []string
	TrustedProxies []string
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	IdleTimeout    time.Duration
	RequestTimeout time.Duration
}

// StoreConfig selects the backends. The memory drivers keep state per
// process and are only suitable for a single-instance deployment.
type StoreConfig struct {
	Driver          string
	RateLimitDriver string
	RedisURL        string
}

type AuthConfig struct {
	JWTSecret                string
	TokenTTL                 time.Duration
	TokenIssuer              string
	PasswordHashCost         int
	PasswordMinLength        int
	HashConcurrency          int
	StoreTimeout             time.Duration
	RateLimitWindow          time.Duration
	RateLimitThreshold       int
	RateLimitLockout         time.Duration
	CleanupInterval          time.Duration
	LoginIPRequestsPerMinute int
	FailureDelay             time.Duration
	FailureJitter            time.Duration
	CookieName               string
	CookieSecure             bool
	CookieSameSite           string
	CookieDomain             string
}

// BootstrapConfig optionally initializes the first admin at startup
type BootstrapConfig struct {
	AdminIdentifier string
	AdminPassword   string
}

type EmailConfig struct {
	Enabled     bool
	AWSRegion   string
	FromAddress string
}

type ObservabilityConfig struct {
	SentryDSN        string
	TracesSampleRate float64
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	jwtSecret := getEnv("JWT_SECRET", "")
	if jwtSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required")
	}

	env := getEnv("ENV", "development")

	cfg := &Config{
		Database: DatabaseConfig{
			Host:              getEnv("DB_HOST", "localhost"),
			Port:              getEnvAsInt("DB_PORT", 5432),
			User:              getEnv("DB_USER", "postgres"),
			Password:          getEnv("DB_PASSWORD", ""),
			Name:              getEnv("DB_NAME", "quizapi"),
			SSLMode:           getEnv("DB_SSLMODE", "disable"),
			MaxConns:          int32(getEnvAsInt("DB_MAX_CONNS", 25)),
			MinConns:          int32(getEnvAsInt("DB_MIN_CONNS", 5)),
			MaxConnLifetime:   getEnvAsDuration("DB_MAX_CONN_LIFETIME", 5*time.Minute),
			MaxConnIdleTime:   getEnvAsDuration("DB_MAX_CONN_IDLE_TIME", 1*time.Minute),
			HealthCheckPeriod: getEnvAsDuration("DB_HEALTH_CHECK_PERIOD", 1*time.Minute),
			Migrate:           getEnvAsBool("DB_MIGRATE", true),
		},
		Server: ServerConfig{
			Port:           getEnv("PORT", "8080"),
			Env:            env,
			LogLevel:       getEnv("LOG_LEVEL", "info"),
			AllowedOrigins: parseAllowedOrigins(env),
			TrustedProxies: getEnvAsList("TRUSTED_PROXIES"),
			ReadTimeout:    getEnvAsDuration("SERVER_READ_TIMEOUT", 15*time.Second),
			WriteTimeout:   getEnvAsDuration("SERVER_WRITE_TIMEOUT", 15*time.Second),
			IdleTimeout:    getEnvAsDuration("SERVER_IDLE_TIMEOUT", 60*time.Second),
			RequestTimeout: getEnvAsDuration("REQUEST_TIMEOUT", 30*time.Second),
		},
		Store: StoreConfig{
			Driver:          strings.ToLower(getEnv("STORE_DRIVER", DriverPostgres)),
			RateLimitDriver: strings.ToLower(getEnv("RATE_LIMIT_STORE", "")),
			RedisURL:        getEnv("REDIS_URL", ""),
		},
		Auth: AuthConfig{
			JWTSecret:                jwtSecret,
			TokenTTL:                 getEnvAsDuration("TOKEN_TTL", 24*time.Hour),
			TokenIssuer:              getEnv("TOKEN_ISSUER", "quizapi"),
			PasswordHashCost:         getEnvAsInt("PASSWORD_HASH_COST", 12),
			PasswordMinLength:        getEnvAsInt("PASSWORD_MIN_LENGTH", 8),
			HashConcurrency:          getEnvAsInt("HASH_CONCURRENCY", 4),
			StoreTimeout:             getEnvAsDuration("STORE_TIMEOUT", 3*time.Second),
			RateLimitWindow:          getEnvAsDuration("RATE_LIMIT_WINDOW", 5*time.Minute),
			RateLimitThreshold:       getEnvAsInt("RATE_LIMIT_THRESHOLD", 5),
			RateLimitLockout:         getEnvAsDuration("RATE_LIMIT_LOCKOUT", 60*time.Second),
			CleanupInterval:          getEnvAsDuration("RATE_LIMIT_CLEANUP_INTERVAL", 10*time.Minute),
			LoginIPRequestsPerMinute: getEnvAsInt("LOGIN_IP_REQUESTS_PER_MINUTE", 20),
			FailureDelay:             time.Duration(getEnvAsInt("AUTH_FAILURE_DELAY_MS", 0)) * time.Millisecond,
			FailureJitter:            time.Duration(getEnvAsInt("AUTH_FAILURE_JITTER_MS", 0)) * time.Millisecond,
			CookieName:               getEnv("SESSION_COOKIE_NAME", "admin_token"),
			CookieSecure:             getEnvAsBool("SESSION_COOKIE_SECURE", env == "production"),
			CookieSameSite:           strings.ToLower(getEnv("SESSION_COOKIE_SAMESITE", "strict")),
			CookieDomain:             getEnv("SESSION_COOKIE_DOMAIN", ""),
		},
		Bootstrap: BootstrapConfig{
			AdminIdentifier: getEnv("ADMIN_IDENTIFIER", ""),
			AdminPassword:   getEnv("ADMIN_PASSWORD", ""),
		},
		Email: EmailConfig{
			Enabled:     getEnvAsBool("EMAIL_ENABLED", false),
			AWSRegion:   getEnv("AWS_REGION", "us-east-1"),
			FromAddress: getEnv("EMAIL_FROM_ADDRESS", ""),
		},
		Observability: ObservabilityConfig{
			SentryDSN:        getEnv("SENTRY_DSN", ""),
			TracesSampleRate: getEnvAsFloat("SENTRY_TRACES_SAMPLE_RATE", 0),
		},
	}

	// The rate-limit store follows the account store unless set explicitly
	if cfg.Store.RateLimitDriver == "" {
		cfg.Store.RateLimitDriver = cfg.Store.Driver
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) validate() error {
	switch c.Store.Driver {
	case DriverPostgres, DriverMemory:
	default:
		return fmt.Errorf("STORE_DRIVER must be %q or %q (got %q)", DriverPostgres, DriverMemory, c.Store.Driver)
	}

	switch c.Store.RateLimitDriver {
	case DriverPostgres, DriverMemory, DriverRedis:
	default:
		return fmt.Errorf("RATE_LIMIT_STORE must be %q, %q or %q (got %q)", DriverMemory, DriverPostgres, DriverRedis, c.Store.RateLimitDriver)
	}

	if c.NeedsPostgres() && c.Database.Password == "" {
		return fmt.Errorf("DB_PASSWORD is required")
	}
	if c.Store.RateLimitDriver == DriverRedis && c.Store.RedisURL == "" {
		return fmt.Errorf("REDIS_URL is required when RATE_LIMIT_STORE=redis")
	}

	if err := validateJWTSecret(c.Auth.JWTSecret, c.Server.Env); err != nil {
		return err
	}

	// bcrypt below cost 10 is only tolerated outside production
	if c.Auth.PasswordHashCost < 10 && c.Server.Env == "production" {
		return fmt.Errorf("PASSWORD_HASH_COST must be at least 10 in production (got %d)", c.Auth.PasswordHashCost)
	}
	if c.Auth.PasswordMinLength < 6 {
		return fmt.Errorf("PASSWORD_MIN_LENGTH must be at least 6 (got %d)", c.Auth.PasswordMinLength)
	}
	if c.Auth.TokenTTL <= 0 {
		return fmt.Errorf("TOKEN_TTL must be positive")
	}
	if c.Auth.RateLimitThreshold < 1 || c.Auth.RateLimitWindow <= 0 || c.Auth.RateLimitLockout <= 0 {
		return fmt.Errorf("rate limit window, threshold and lockout must be positive")
	}
	if c.Auth.StoreTimeout <= 0 {
		return fmt.Errorf("STORE_TIMEOUT must be positive")
	}

	if c.Email.Enabled && c.Email.FromAddress == "" {
		return fmt.Errorf("EMAIL_FROM_ADDRESS is required when EMAIL_ENABLED=true")
	}

	return nil
}

// NeedsPostgres reports whether any configured store is backed by Postgres
func (c *Config) NeedsPostgres() bool {
	return c.Store.Driver == DriverPostgres || c.Store.RateLimitDriver == DriverPostgres
}

// validateJWTSecret enforces minimum security standards for JWT secret
func validateJWTSecret(secret, env string) error {
	// Minimum length based on environment
	minLength := 16 // Development minimum
	if env == "production" {
		minLength = 32 // Production requires stronger secret (256 bits)
	}

	if len(secret) < minLength {
		return fmt.Errorf("JWT_SECRET must be at least %d characters in %s environment (got %d)",
			minLength, env, len(secret))
	}

	weakSecrets := []string{
		"secret", "test", "password", "12345", "changeme",
		"admin", "root", "default", "example",
	}

	secretLower := strings.ToLower(secret)
	for _, weak := range weakSecrets {
		if secretLower == weak || strings.Repeat(weak, len(secret)/len(weak)) == secretLower {
			return fmt.Errorf("JWT_SECRET cannot be a common weak value")
		}
	}

	return nil
}

func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode,
	)
}

func getEnv(key, defaultVal string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultVal
}

func getEnvAsInt(key string, defaultVal int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultVal
}

func getEnvAsFloat(key string, defaultVal float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultVal
}

func getEnvAsBool(key string, defaultVal bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultVal
}

func getEnvAsDuration(key string, defaultVal time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultVal
}

func getEnvAsList(key string) []string {
	raw := getEnv(key, "")
	if raw == "" {
		return []string{}
	}
	items := strings.Split(raw, ",")
	out := make([]string, 0, len(items))
	for _, item := range items {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

func parseAllowedOrigins(env string) []string {
	if env == "production" {
		return getEnvAsList("ALLOWED_ORIGINS")
	}

	// Development: allow localhost variants
	return []string{
		"http://localhost:3000",
		"http://localhost:8080",
		"http://localhost:5173", // Vite default
		"http://127.0.0.1:3000",
		"http://127.0.0.1:8080",
		"http://127.0.0.1:5173",
	}
}
