package middleware

import (
	"log/slog"
	"net/http"
	"runtime/debug"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/soundbites/quizapi/internal/observability"
	pkghttp "github.com/soundbites/quizapi/pkg/http"
)

// Recover turns a handler panic into a JSON 500 and reports it to Sentry
func Recover(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				rec := recover()
				if rec == nil {
					return
				}
				if rec == http.ErrAbortHandler {
					panic(rec)
				}

				stack := debug.Stack()
				requestID := middleware.GetReqID(r.Context())
				logger.ErrorContext(r.Context(), "panic in handler",
					slog.Any("panic", rec),
					slog.String("path", r.URL.Path),
					slog.String("request_id", requestID),
					slog.String("stack", string(stack)),
				)
				observability.CapturePanic(r.Context(), rec, stack, map[string]string{
					"path":       r.URL.Path,
					"request_id": requestID,
				})

				pkghttp.WriteInternalError(w, "Internal server error")
			}()

			next.ServeHTTP(w, r)
		})
	}
}
