package routes

import (
	"github.com/go-chi/chi/v5"

	"github.com/soundbites/quizapi/internal/auth"
	"github.com/soundbites/quizapi/internal/handlers"
	"github.com/soundbites/quizapi/internal/middleware"
	"github.com/soundbites/quizapi/internal/models"
)

// Handlers groups the HTTP handlers mounted by RegisterRoutes
type Handlers struct {
	Auth   *handlers.AuthHandler
	Users  *handlers.UserHandler
	Quiz   *handlers.QuizHandler
	Health *handlers.HealthHandler
}

// RegisterRoutes registers all application routes
func RegisterRoutes(
	router chi.Router,
	h Handlers,
	verifier auth.SessionVerifier,
	cookies auth.CookieConfig,
	rateLimitConfig middleware.RateLimitConfig,
) {
	throttle := middleware.RateLimitByIP(rateLimitConfig)

	router.Get("/health", h.Health.Health)
	router.Get("/health/live", h.Health.Live)
	router.Get("/health/ready", h.Health.Ready)

	// Public routes. Credential-accepting endpoints sit behind the per-IP throttle.
	router.With(throttle).Post("/auth/login", h.Auth.Login)
	router.With(throttle).Post("/auth/recover", h.Auth.Recover)
	router.Get("/auth/verify", h.Auth.Verify)

	router.Get("/quiz/questions", h.Quiz.ListQuestions)
	router.Post("/quiz/results", h.Quiz.SubmitResult)

	// Anonymous callers allowed; a valid session is picked up when present
	router.Group(func(r chi.Router) {
		r.Use(auth.OptionalAuthenticate(verifier, cookies))
		r.With(throttle).Post("/auth/initialize", h.Auth.Initialize)
		r.Post("/auth/logout", h.Auth.Logout)
	})

	// Protected routes - authentication required
	router.Group(func(r chi.Router) {
		r.Use(auth.Authenticate(verifier, cookies))

		r.With(throttle).Post("/auth/change-password", h.Auth.ChangePassword)
		r.Post("/auth/recovery-code", h.Auth.RegenerateRecoveryCode)

		// Any role
		r.Get("/admin/results", h.Quiz.ListResults)
		r.Get("/admin/leads", h.Quiz.ListLeads)
		r.Get("/admin/questions", h.Quiz.AdminListQuestions)

		r.Group(func(r chi.Router) {
			r.Use(auth.RequireRole(models.RoleAdmin, models.RoleEditor))
			r.Post("/admin/questions", h.Quiz.CreateQuestion)
			r.Put("/admin/questions/{id}", h.Quiz.UpdateQuestion)
			r.Delete("/admin/questions/{id}", h.Quiz.DeleteQuestion)
		})

		r.Group(func(r chi.Router) {
			r.Use(auth.RequireRole(models.RoleAdmin))
			r.Get("/admin/users", h.Users.ListUsers)
			r.Post("/admin/users", h.Users.CreateUser)
			r.Put("/admin/users/{id}", h.Users.UpdateUser)
			r.Delete("/admin/users/{id}", h.Users.DeleteUser)
		})
	})
}
