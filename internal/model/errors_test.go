package model

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

// ============================================================================
// Error() Interface Tests
// ============================================================================

func TestProblemDetails_Error_ReturnsFormattedMessage(t *testing.T) {
	t.Parallel()

	pd := &ProblemDetails{
		Status: http.StatusNotFound,
		Title:  "Not Found",
		Detail: "wine not found",
	}

	errMsg := pd.Error()

	for _, want := range []string{"404", "Not Found", "wine not found"} {
		if !strings.Contains(errMsg, want) {
			t.Errorf("error message should contain %q, got: %s", want, errMsg)
		}
	}
}

// ============================================================================
// WriteJSON Tests
// ============================================================================

func TestProblemDetails_WriteJSON_SetsHeadersAndBody(t *testing.T) {
	t.Parallel()

	pd := NewNotFoundError("wine")
	rr := httptest.NewRecorder()

	pd.WriteJSON(rr)

	if ct := rr.Header().Get("Content-Type"); ct != "application/problem+json" {
		t.Errorf("expected Content-Type 'application/problem+json', got %q", ct)
	}
	if rr.Code != http.StatusNotFound {
		t.Errorf("expected status 404, got %d", rr.Code)
	}

	var decoded ProblemDetails
	if err := json.NewDecoder(rr.Body).Decode(&decoded); err != nil {
		t.Fatalf("failed to decode body: %v", err)
	}
	if decoded.Detail != "wine not found" {
		t.Errorf("expected detail 'wine not found', got %q", decoded.Detail)
	}
	if decoded.Code != ErrCodeNotFound {
		t.Errorf("expected code %d, got %d", ErrCodeNotFound, decoded.Code)
	}
	if rr.Header().Get("Retry-After") != "" {
		t.Error("expected no Retry-After without a hint")
	}
}

func TestProblemDetails_WriteJSON_RetryAfterHeader(t *testing.T) {
	t.Parallel()

	rr := httptest.NewRecorder()
	NewServiceUnavailableError("wine catalog is unavailable", 2).WriteJSON(rr)

	if got := rr.Header().Get("Retry-After"); got != "2" {
		t.Errorf("expected Retry-After 2, got %q", got)
	}
	if rr.Code != http.StatusServiceUnavailable {
		t.Errorf("expected status 503, got %d", rr.Code)
	}
}

// ============================================================================
// Constructor Tests
// ============================================================================

func TestConstructors_StatusAndCode(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		pd     *ProblemDetails
		status int
		code   ErrorCode
	}{
		{"unauthorized", NewUnauthorizedError("x"), http.StatusUnauthorized, ErrCodeUnauthorized},
		{"not found", NewNotFoundError("post"), http.StatusNotFound, ErrCodeNotFound},
		{"duplicate username", NewConflictError("x", ErrCodeDuplicateUsername), http.StatusConflict, ErrCodeDuplicateUsername},
		{"email registered", NewConflictError("x", ErrCodeEmailRegistered), http.StatusConflict, ErrCodeEmailRegistered},
		{"internal", NewInternalError(""), http.StatusInternalServerError, ErrCodeInternal},
		{"bad request", NewBadRequestError("x"), http.StatusBadRequest, ErrCodeInvalidInput},
		{"payload too large", NewPayloadTooLargeError(1024), http.StatusRequestEntityTooLarge, ErrCodeInvalidInput},
		{"rate limited", NewRateLimitError(30), http.StatusTooManyRequests, ErrCodeRateLimited},
		{"unavailable", NewServiceUnavailableError("x", 5), http.StatusServiceUnavailable, ErrCodeUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.pd.Status != tt.status {
				t.Errorf("expected status %d, got %d", tt.status, tt.pd.Status)
			}
			if tt.pd.Code != tt.code {
				t.Errorf("expected code %d, got %d", tt.code, tt.pd.Code)
			}
			if !strings.HasPrefix(tt.pd.Type, "https://api.sipmate.app/errors/") {
				t.Errorf("unexpected type URL %q", tt.pd.Type)
			}
		})
	}
}

func TestNewInternalError_EmptyDetail_UsesDefault(t *testing.T) {
	t.Parallel()

	pd := NewInternalError("")

	if pd.Detail != "An unexpected error occurred" {
		t.Errorf("expected default detail, got %q", pd.Detail)
	}
}

func TestNewValidationError_SummarizesFields(t *testing.T) {
	t.Parallel()

	single := NewValidationError([]FieldError{{Field: "rating", Message: "rating must be between 1 and 5"}})
	if single.Detail != "rating: rating must be between 1 and 5" {
		t.Errorf("unexpected detail %q", single.Detail)
	}

	multi := NewValidationError([]FieldError{
		{Field: "rating", Message: "bad"},
		{Field: "notes", Message: "bad"},
		{Field: "location", Message: "bad"},
	})
	if !strings.Contains(multi.Detail, "and 2 more errors") {
		t.Errorf("expected summary of remaining errors, got %q", multi.Detail)
	}
	if len(multi.Errors) != 3 {
		t.Errorf("expected 3 field errors, got %d", len(multi.Errors))
	}

	empty := NewValidationError(nil)
	if empty.Detail != "One or more fields failed validation" {
		t.Errorf("unexpected default detail %q", empty.Detail)
	}
}

func TestRetryAfter_SerializedOnlyWhenSet(t *testing.T) {
	t.Parallel()

	data, err := json.Marshal(NewServiceUnavailableError("try later", 5))
	if err != nil {
		t.Fatalf("failed to marshal: %v", err)
	}
	if !strings.Contains(string(data), `"retry_after":5`) {
		t.Errorf("expected retry_after in %s", data)
	}

	data, err = json.Marshal(NewNotFoundError("wine"))
	if err != nil {
		t.Fatalf("failed to marshal: %v", err)
	}
	if strings.Contains(string(data), "retry_after") {
		t.Errorf("retry_after should be omitted, got %s", data)
	}
}

// ============================================================================
// Error Code Constants Tests
// ============================================================================

func TestErrorCodes_CorrectRanges(t *testing.T) {
	t.Parallel()

	ranges := []struct {
		lo, hi ErrorCode
		codes  []ErrorCode
	}{
		{1000, 2000, []ErrorCode{ErrCodeUnauthorized, ErrCodeTokenExpired, ErrCodeTokenInvalid, ErrCodeLoginFailed}},
		{3000, 4000, []ErrorCode{ErrCodeNotFound, ErrCodeDuplicateUsername, ErrCodeEmailRegistered}},
		{4000, 5000, []ErrorCode{ErrCodeValidation, ErrCodeInvalidInput, ErrCodeRateLimited}},
		{5000, 6000, []ErrorCode{ErrCodeInternal, ErrCodeUnavailable}},
	}

	seen := make(map[ErrorCode]bool)
	for _, r := range ranges {
		for _, code := range r.codes {
			if code < r.lo || code >= r.hi {
				t.Errorf("code %d outside [%d, %d)", code, r.lo, r.hi)
			}
			if seen[code] {
				t.Errorf("duplicate error code %d", code)
			}
			seen[code] = true
		}
	}
}
