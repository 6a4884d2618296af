package handlers

import (
	"errors"
	"net/http"

	"github.com/soundbites/quizapi/internal/models"
	pkghttp "github.com/soundbites/quizapi/pkg/http"
)

// writeServiceError translates the error taxonomy into an HTTP response.
// Messages stay generic; infrastructure details were logged by the service.
func writeServiceError(w http.ResponseWriter, err error) {
	var locked *models.LockedOutError
	var invalid *models.ValidationError

	switch {
	case errors.As(err, &locked):
		pkghttp.WriteLockedOut(w, locked.RetryAfterSeconds())
	case errors.As(err, &invalid):
		pkghttp.WriteErrorWithDetails(w, http.StatusBadRequest, "validation_error", invalid.Error(), invalid.Field)
	case errors.Is(err, models.ErrInvalidCredentials):
		pkghttp.WriteError(w, http.StatusUnauthorized, "invalid_credentials", "Invalid credentials")
	case errors.Is(err, models.ErrInvalidRecoveryCode):
		pkghttp.WriteError(w, http.StatusBadRequest, "invalid_recovery_code", "Invalid recovery code")
	case errors.Is(err, models.ErrTokenExpired):
		pkghttp.WriteError(w, http.StatusUnauthorized, "token_expired", "Session expired, please log in again")
	case errors.Is(err, models.ErrTokenMalformed),
		errors.Is(err, models.ErrUnauthorized):
		pkghttp.WriteUnauthorized(w, "Authentication required")
	case errors.Is(err, models.ErrForbidden):
		pkghttp.WriteForbidden(w, "Insufficient permissions")
	case errors.Is(err, models.ErrNotFound):
		pkghttp.WriteNotFound(w, "Resource not found")
	case errors.Is(err, models.ErrConflict):
		pkghttp.WriteConflict(w, "Resource already exists")
	case errors.Is(err, models.ErrBadRequest):
		pkghttp.WriteBadRequest(w, "Bad request")
	case errors.Is(err, models.ErrServiceUnavailable):
		pkghttp.WriteServiceUnavailable(w, "Service temporarily unavailable, please try again")
	default:
		pkghttp.WriteInternalError(w, "Internal server error")
	}
}
