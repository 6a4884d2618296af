package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/soundbites/quizapi/internal/auth"
	"github.com/soundbites/quizapi/internal/background"
	"github.com/soundbites/quizapi/internal/config"
	"github.com/soundbites/quizapi/internal/database"
	"github.com/soundbites/quizapi/internal/handlers"
	middlewareCustom "github.com/soundbites/quizapi/internal/middleware"
	"github.com/soundbites/quizapi/internal/models"
	"github.com/soundbites/quizapi/internal/observability"
	"github.com/soundbites/quizapi/internal/repositories"
	"github.com/soundbites/quizapi/internal/routes"
	"github.com/soundbites/quizapi/internal/services"
	pkgauth "github.com/soundbites/quizapi/pkg/auth"
	pkghttp "github.com/soundbites/quizapi/pkg/http"
	pkglogger "github.com/soundbites/quizapi/pkg/logger"
)

// stores is the persistence backend selected by STORE_DRIVER and RATE_LIMIT_STORE
type stores struct {
	accounts  services.AccountRepository
	recovery  services.RecoveryRepository
	quiz      services.QuizRepository
	rateLimit services.RateLimitStore
	health    handlers.HealthChecker
	closers   []io.Closer
}

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load configuration", slog.Any("error", err))
		os.Exit(1)
	}

	logger = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: parseLevel(cfg.Server.LogLevel)}))
	slog.SetDefault(logger)
	logger.Info("configuration loaded",
		slog.String("env", cfg.Server.Env),
		slog.String("store", cfg.Store.Driver),
		slog.String("rate_limit_store", cfg.Store.RateLimitDriver),
	)

	if err := observability.InitSentry(cfg.Observability, cfg.Server.Env); err != nil {
		logger.Error("failed to initialize sentry", slog.Any("error", err))
	}
	defer observability.FlushSentry()

	startupCtx, startupCancel := context.WithTimeout(context.Background(), 30*time.Second)
	st, db, err := openStores(startupCtx, cfg, logger)
	startupCancel()
	if err != nil {
		logger.Error("failed to open stores", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		for _, c := range st.closers {
			_ = c.Close()
		}
		if db != nil {
			db.Close()
		}
	}()

	auditLogger := pkglogger.NewAuditLogger(logger)

	hasher, err := pkgauth.NewHasher(cfg.Auth.PasswordHashCost, cfg.Auth.HashConcurrency)
	if err != nil {
		logger.Error("failed to initialize password hasher", slog.Any("error", err))
		os.Exit(1)
	}

	tokenManager := auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.TokenIssuer, cfg.Auth.TokenTTL)

	rateLimitService := services.NewRateLimitService(st.rateLimit, models.RateLimitPolicy{
		Window:    cfg.Auth.RateLimitWindow,
		Threshold: cfg.Auth.RateLimitThreshold,
		Lockout:   cfg.Auth.RateLimitLockout,
	}, logger)

	timingDelay := auth.NewTimingDelay(auth.TimingConfig{
		BaseDelay:   cfg.Auth.FailureDelay,
		RandomDelay: cfg.Auth.FailureJitter,
	})

	notifier, err := newNotifier(cfg, logger)
	if err != nil {
		logger.Error("failed to initialize email service", slog.Any("error", err))
		os.Exit(1)
	}

	passwordPolicy := pkgauth.NewPasswordPolicy(cfg.Auth.PasswordMinLength)

	// Initialize services
	authService := services.NewAuthService(
		st.accounts,
		services.NewRecoveryService(st.recovery),
		rateLimitService,
		hasher,
		tokenManager,
		notifier,
		services.AuthServiceConfig{
			StoreTimeout:   cfg.Auth.StoreTimeout,
			PasswordPolicy: passwordPolicy,
			Timing:         timingDelay,
		},
		logger,
		auditLogger,
	)
	accountService := services.NewAccountService(st.accounts, hasher, passwordPolicy, logger, auditLogger)
	quizService := services.NewQuizService(st.quiz, logger)

	// Bootstrap first admin if configured
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	ensureAdminAccount(ctx, authService, cfg.Bootstrap, logger)
	cancel()

	ipConfig, err := pkghttp.NewIPConfig(cfg.Server.TrustedProxies)
	if err != nil {
		logger.Error("invalid TRUSTED_PROXIES", slog.Any("error", err))
		os.Exit(1)
	}

	cookies := auth.CookieConfig{
		Name:     cfg.Auth.CookieName,
		Domain:   cfg.Auth.CookieDomain,
		Secure:   cfg.Auth.CookieSecure,
		SameSite: cfg.Auth.CookieSameSite,
	}

	// Setup router
	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(middlewareCustom.SecurityHeaders(middlewareCustom.SecurityHeadersConfig{Env: cfg.Server.Env}))
	router.Use(middlewareCustom.CORS(middlewareCustom.DefaultCORSConfig(cfg.Server.AllowedOrigins)))
	router.Use(middlewareCustom.SecureLogger(logger))
	router.Use(middlewareCustom.Recover(logger))
	router.Use(middleware.Timeout(cfg.Server.RequestTimeout))

	routes.RegisterRoutes(router, routes.Handlers{
		Auth:   handlers.NewAuthHandler(authService, ipConfig, cookies),
		Users:  handlers.NewUserHandler(accountService, authService),
		Quiz:   handlers.NewQuizHandler(quizService),
		Health: handlers.NewHealthHandler(st.health),
	}, authService, cookies, middlewareCustom.RateLimitConfig{
		RequestsPerMinute: cfg.Auth.LoginIPRequestsPerMinute,
		IPConfig:          ipConfig,
	})

	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Start cleanup task
	cleanupManager := background.NewCleanupManager(rateLimitService, logger, cfg.Auth.CleanupInterval)
	cleanupCtx, cleanupCancel := context.WithCancel(context.Background())
	defer cleanupCancel()

	go cleanupManager.Start(cleanupCtx)

	// Start server
	serverErr := make(chan error, 1)
	go func() {
		logger.Info("starting server", slog.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	// Graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-sigChan:
		logger.Info("shutdown signal received")
	case err := <-serverErr:
		logger.Error("server error", slog.Any("error", err))
	}

	cleanupManager.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", slog.Any("error", err))
		return
	}

	logger.Info("server stopped gracefully")
}

// openStores connects the configured backends. db is nil in memory mode.
func openStores(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*stores, *database.DB, error) {
	st := &stores{}
	var db *database.DB

	if cfg.NeedsPostgres() {
		var err error
		db, err = database.NewConnection(ctx, &cfg.Database, logger)
		if err != nil {
			return nil, nil, fmt.Errorf("connect to database: %w", err)
		}
		if cfg.Database.Migrate {
			if err := db.Migrate(ctx); err != nil {
				db.Close()
				return nil, nil, fmt.Errorf("migrate database: %w", err)
			}
		}
	}

	switch cfg.Store.Driver {
	case config.DriverPostgres:
		st.accounts = repositories.NewAccountRepository(db)
		st.recovery = repositories.NewRecoveryRepository(db)
		st.quiz = repositories.NewQuizRepository(db)
		st.health = db
	default:
		logger.Warn("using in-memory store; data is lost on restart and not shared between instances")
		memory := repositories.NewMemoryStore()
		st.accounts = memory
		st.recovery = memory.RecoverySecrets()
		st.quiz = repositories.NewMemoryQuizStore()
	}

	switch cfg.Store.RateLimitDriver {
	case config.DriverPostgres:
		st.rateLimit = repositories.NewRateLimitRepository(db)
	case config.DriverRedis:
		client, err := repositories.NewRedisClient(ctx, cfg.Store.RedisURL)
		if err != nil {
			if db != nil {
				db.Close()
			}
			return nil, nil, err
		}
		st.rateLimit = repositories.NewRedisRateLimitStore(client)
		st.closers = append(st.closers, client)
	default:
		st.rateLimit = repositories.NewMemoryRateLimitStore()
	}

	return st, db, nil
}

func newNotifier(cfg *config.Config, logger *slog.Logger) (services.Notifier, error) {
	if !cfg.Email.Enabled {
		return services.NewLogNotifier(logger), nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return services.NewSESNotifier(ctx, cfg.Email.AWSRegion, cfg.Email.FromAddress, logger)
}

// ensureAdminAccount initializes the first admin when ADMIN_IDENTIFIER and
// ADMIN_PASSWORD are set and the store is still empty. The recovery code is
// written to the log once, since nobody else will ever see it.
func ensureAdminAccount(ctx context.Context, authService *services.AuthService, cfg config.BootstrapConfig, logger *slog.Logger) {
	if cfg.AdminIdentifier == "" || cfg.AdminPassword == "" {
		logger.Info("no ADMIN_IDENTIFIER or ADMIN_PASSWORD set, skipping admin bootstrap")
		return
	}

	result, err := authService.InitializeAccount(ctx, nil, cfg.AdminIdentifier, cfg.AdminPassword, models.RoleAdmin)
	switch {
	case errors.Is(err, models.ErrUnauthorized):
		logger.Info("accounts already exist, skipping admin bootstrap")
		return
	case err != nil:
		logger.Error("failed to bootstrap admin account", slog.Any("error", err))
		return
	}

	logger.Warn("admin account created; store this recovery code now, it will not be shown again",
		slog.String("account_id", result.Account.ID),
		slog.String("identifier", pkglogger.SanitizedIdentifier(result.Account.Identifier)),
		slog.String("recovery_code", result.Recovery.Code),
	)
}

func parseLevel(level string) slog.Level {
	var l slog.Level
	if err := l.UnmarshalText([]byte(strings.ToUpper(level))); err != nil {
		return slog.LevelInfo
	}
	return l
}
