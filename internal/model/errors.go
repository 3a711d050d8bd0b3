package model

import (
	"encoding/json"
	"fmt"
	"net/http"
)

// ErrorCode is the numeric code carried in every problem body. The thousands
// digit names the kind of failure.
type ErrorCode int

const (
	// Authentication (1xxx)
	ErrCodeUnauthorized ErrorCode = 1001
	ErrCodeTokenExpired ErrorCode = 1002
	ErrCodeTokenInvalid ErrorCode = 1003
	ErrCodeLoginFailed  ErrorCode = 1004

	// Resources (3xxx)
	ErrCodeNotFound          ErrorCode = 3001
	ErrCodeDuplicateUsername ErrorCode = 3004
	ErrCodeEmailRegistered   ErrorCode = 3005

	// Input (4xxx)
	ErrCodeValidation   ErrorCode = 4001
	ErrCodeInvalidInput ErrorCode = 4002
	ErrCodeRateLimited  ErrorCode = 4003

	// Server (5xxx)
	ErrCodeInternal    ErrorCode = 5001
	ErrCodeUnavailable ErrorCode = 5003
)

// problemTypeBase prefixes every problem type URI
const problemTypeBase = "https://api.sipmate.app/errors/"

// ProblemDetails is an RFC 9457 problem body with SipMate's extension members
type ProblemDetails struct {
	Type   string       `json:"type"`
	Title  string       `json:"title"`
	Status int          `json:"status"`
	Detail string       `json:"detail,omitempty"`
	Errors []FieldError `json:"errors,omitempty"`

	Code       ErrorCode `json:"code,omitempty"`
	RetryAfter *int      `json:"retry_after,omitempty"`
}

// FieldError names one rejected request field
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (p *ProblemDetails) Error() string {
	return fmt.Sprintf("[%d] %s: %s", p.Status, p.Title, p.Detail)
}

// WriteJSON writes the problem with its status and the problem+json media type
func (p *ProblemDetails) WriteJSON(w http.ResponseWriter) {
	if p.RetryAfter != nil {
		w.Header().Set("Retry-After", fmt.Sprint(*p.RetryAfter))
	}
	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(p.Status)
	_ = json.NewEncoder(w).Encode(p)
}

func newProblem(slug string, status int, detail string, code ErrorCode) *ProblemDetails {
	return &ProblemDetails{
		Type:   problemTypeBase + slug,
		Title:  http.StatusText(status),
		Status: status,
		Detail: detail,
		Code:   code,
	}
}

func NewUnauthorizedError(detail string) *ProblemDetails {
	return newProblem("unauthorized", http.StatusUnauthorized, detail, ErrCodeUnauthorized)
}

// NewNotFoundError reports a missing resource by name ("wine", "post")
func NewNotFoundError(resource string) *ProblemDetails {
	return newProblem("not-found", http.StatusNotFound, resource+" not found", ErrCodeNotFound)
}

// NewValidationError summarizes the first field error in Detail and lists
// all of them in Errors
func NewValidationError(errors []FieldError) *ProblemDetails {
	detail := "One or more fields failed validation"
	if len(errors) > 0 {
		detail = fmt.Sprintf("%s: %s", errors[0].Field, errors[0].Message)
		if len(errors) > 1 {
			detail = fmt.Sprintf("%s (and %d more errors)", detail, len(errors)-1)
		}
	}
	p := newProblem("validation", http.StatusUnprocessableEntity, detail, ErrCodeValidation)
	p.Title = "Validation Error"
	p.Errors = errors
	return p
}

// NewConflictError reports a uniqueness conflict. The code tells clients
// which value was taken.
func NewConflictError(detail string, code ErrorCode) *ProblemDetails {
	return newProblem("conflict", http.StatusConflict, detail, code)
}

func NewInternalError(detail string) *ProblemDetails {
	if detail == "" {
		detail = "An unexpected error occurred"
	}
	return newProblem("internal", http.StatusInternalServerError, detail, ErrCodeInternal)
}

func NewBadRequestError(detail string) *ProblemDetails {
	return newProblem("bad-request", http.StatusBadRequest, detail, ErrCodeInvalidInput)
}

// NewPayloadTooLargeError reports a request body over limit bytes
func NewPayloadTooLargeError(limit int64) *ProblemDetails {
	return newProblem("payload-too-large", http.StatusRequestEntityTooLarge,
		fmt.Sprintf("Request body exceeds %d bytes", limit), ErrCodeInvalidInput)
}

func NewRateLimitError(retryAfter int) *ProblemDetails {
	p := newProblem("rate-limited", http.StatusTooManyRequests,
		fmt.Sprintf("Rate limit exceeded. Retry after %d seconds", retryAfter), ErrCodeRateLimited)
	p.RetryAfter = &retryAfter
	return p
}

// NewServiceUnavailableError reports a transient store failure the client may retry
func NewServiceUnavailableError(detail string, retryAfter int) *ProblemDetails {
	p := newProblem("unavailable", http.StatusServiceUnavailable, detail, ErrCodeUnavailable)
	p.RetryAfter = &retryAfter
	return p
}
