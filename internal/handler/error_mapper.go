package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/forgo/sipmate/api/internal/database"
	"github.com/forgo/sipmate/api/internal/model"
	"github.com/forgo/sipmate/api/internal/service"
)

// gatewayRetryAfter is the retry hint, in seconds, sent with 503 responses
const gatewayRetryAfter = 2

// MapServiceError converts a service error to a ProblemDetails response.
// Gateway failures map to 503; WriteServiceError narrows that to 500 for
// requests that are not safe to retry.
func MapServiceError(err error) *model.ProblemDetails {
	if err == nil {
		return nil
	}

	switch {
	// ===== Authentication Errors → 401 =====
	case errors.Is(err, service.ErrInvalidCredentials),
		errors.Is(err, service.ErrIdentityMismatch):
		pd := model.NewUnauthorizedError(service.ErrInvalidCredentials.Error())
		pd.Code = model.ErrCodeLoginFailed
		return pd
	case errors.Is(err, service.ErrRefreshTokenExpired):
		pd := model.NewUnauthorizedError(err.Error())
		pd.Code = model.ErrCodeTokenExpired
		return pd
	case errors.Is(err, service.ErrInvalidRefreshToken),
		errors.Is(err, service.ErrRefreshTokenRevoked):
		pd := model.NewUnauthorizedError(err.Error())
		pd.Code = model.ErrCodeTokenInvalid
		return pd
	case errors.Is(err, service.ErrNotSignedIn):
		return model.NewUnauthorizedError("authentication required")

	// ===== Not Found Errors → 404 =====
	case errors.Is(err, service.ErrUserNotFound):
		return model.NewNotFoundError("user")
	case errors.Is(err, service.ErrWineNotFound):
		return model.NewNotFoundError("wine")
	case errors.Is(err, service.ErrPostNotFound):
		return model.NewNotFoundError("post")

	// ===== Conflict Errors → 409 =====
	case errors.Is(err, service.ErrDuplicateUsername):
		return model.NewConflictError(service.ErrDuplicateUsername.Error(), model.ErrCodeDuplicateUsername)
	case errors.Is(err, service.ErrEmailAlreadyRegistered):
		return model.NewConflictError(service.ErrEmailAlreadyRegistered.Error(), model.ErrCodeEmailRegistered)

	// ===== Validation Errors → 422 =====
	case errors.Is(err, service.ErrUsernameRequired),
		errors.Is(err, service.ErrUsernameTooLong):
		return fieldError("username", err)
	case errors.Is(err, service.ErrPasswordRequired),
		errors.Is(err, service.ErrPasswordTooShort),
		errors.Is(err, service.ErrPasswordTooLong):
		return fieldError("password", err)
	case errors.Is(err, service.ErrInvalidEmail):
		return fieldError("email", err)
	case errors.Is(err, service.ErrInvalidRating):
		return fieldError("rating", err)
	case errors.Is(err, service.ErrNotesTooLong):
		return fieldError("notes", err)
	case errors.Is(err, service.ErrLocationTooLong):
		return fieldError("location", err)
	case errors.Is(err, service.ErrContentRequired),
		errors.Is(err, service.ErrContentTooLong):
		return fieldError("content", err)
	case errors.Is(err, service.ErrInvalidWineType):
		return fieldError("type", err)
	case errors.Is(err, service.ErrInvalidMinRating):
		return fieldError("min_rating", err)
	case errors.Is(err, service.ErrInvalidSortKey):
		return fieldError("sort", err)

	// ===== Gateway Errors → 503 =====
	case errors.Is(err, service.ErrGatewayFailure),
		errors.Is(err, database.ErrConnection),
		errors.Is(err, database.ErrQuery):
		return model.NewServiceUnavailableError("the backend is temporarily unavailable", gatewayRetryAfter)

	// ===== Default → 500 =====
	default:
		return model.NewInternalError("")
	}
}

// MapServiceErrorWithContext converts a service error to a ProblemDetails response
// with additional context about the operation that failed.
func MapServiceErrorWithContext(err error, operation string) *model.ProblemDetails {
	pd := MapServiceError(err)
	if pd != nil && pd.Status == http.StatusInternalServerError {
		pd.Detail = operation + ": an unexpected error occurred"
	}
	return pd
}

// WriteServiceError maps err and writes it. Server-side failures are logged
// and never expose the underlying message.
func WriteServiceError(w http.ResponseWriter, r *http.Request, err error, operation string) {
	pd := MapServiceErrorWithContext(err, operation)
	if pd.Status == http.StatusServiceUnavailable && !isIdempotent(r.Method) {
		pd = model.NewInternalError(operation + ": an unexpected error occurred")
	}
	if pd.Status >= http.StatusInternalServerError {
		slog.ErrorContext(r.Context(), "request failed",
			slog.String("operation", operation),
			slog.String("error", err.Error()),
		)
	}
	WriteError(w, pd)
}

func fieldError(field string, err error) *model.ProblemDetails {
	return model.NewValidationError([]model.FieldError{{Field: field, Message: err.Error()}})
}

func isIdempotent(method string) bool {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodPut, http.MethodDelete, http.MethodOptions:
		return true
	}
	return false
}
