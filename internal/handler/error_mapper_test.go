package handler

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/forgo/sipmate/api/internal/database"
	"github.com/forgo/sipmate/api/internal/service"
)

func TestMapServiceError(t *testing.T) {
	t.Parallel()

	tests := []struct {
		err    error
		status int
	}{
		{service.ErrUsernameRequired, http.StatusUnprocessableEntity},
		{service.ErrPasswordTooLong, http.StatusUnprocessableEntity},
		{service.ErrLocationTooLong, http.StatusUnprocessableEntity},
		{service.ErrInvalidSortKey, http.StatusUnprocessableEntity},
		{service.ErrDuplicateUsername, http.StatusConflict},
		{service.ErrEmailAlreadyRegistered, http.StatusConflict},
		{service.ErrInvalidCredentials, http.StatusUnauthorized},
		{service.ErrIdentityMismatch, http.StatusUnauthorized},
		{service.ErrNotSignedIn, http.StatusUnauthorized},
		{service.ErrRefreshTokenRevoked, http.StatusUnauthorized},
		{service.ErrWineNotFound, http.StatusNotFound},
		{service.ErrPostNotFound, http.StatusNotFound},
		{service.ErrUserNotFound, http.StatusNotFound},
		{service.ErrGatewayFailure, http.StatusServiceUnavailable},
		{database.ErrConnection, http.StatusServiceUnavailable},
		{fmt.Errorf("list posts: %w", database.ErrQuery), http.StatusServiceUnavailable},
		{fmt.Errorf("signing up: %w", service.ErrDuplicateUsername), http.StatusConflict},
		{errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		pd := MapServiceError(tt.err)
		if pd.Status != tt.status {
			t.Errorf("%v: expected status %d, got %d", tt.err, tt.status, pd.Status)
		}
	}

	if MapServiceError(nil) != nil {
		t.Error("expected nil for nil error")
	}
}

func TestMapServiceError_ConflictMessageIsStable(t *testing.T) {
	t.Parallel()

	direct := MapServiceError(service.ErrDuplicateUsername)
	wrapped := MapServiceError(fmt.Errorf("create profile: %w", service.ErrDuplicateUsername))
	if direct.Detail != wrapped.Detail {
		t.Errorf("expected one message for duplicate usernames, got %q and %q", direct.Detail, wrapped.Detail)
	}
}

func TestMapServiceErrorWithContext_HidesInternalDetail(t *testing.T) {
	t.Parallel()

	pd := MapServiceErrorWithContext(errors.New("secret connection string"), "save wine")
	if pd.Detail != "save wine: an unexpected error occurred" {
		t.Errorf("unexpected detail %q", pd.Detail)
	}

	pd = MapServiceErrorWithContext(service.ErrWineNotFound, "save wine")
	if pd.Status != http.StatusNotFound {
		t.Errorf("expected not found to pass through, got %d", pd.Status)
	}
}

func TestWriteServiceError_GatewayByMethod(t *testing.T) {
	t.Parallel()

	tests := []struct {
		method string
		status int
		retry  string
	}{
		{http.MethodGet, http.StatusServiceUnavailable, "2"},
		{http.MethodPut, http.StatusServiceUnavailable, "2"},
		{http.MethodDelete, http.StatusServiceUnavailable, "2"},
		{http.MethodPost, http.StatusInternalServerError, ""},
	}

	for _, tt := range tests {
		rr := httptest.NewRecorder()
		WriteServiceError(rr, httptest.NewRequest(tt.method, "/v1/saved-wines/w1", nil), service.ErrGatewayFailure, "op")

		if rr.Code != tt.status {
			t.Errorf("%s: expected status %d, got %d", tt.method, tt.status, rr.Code)
		}
		if got := rr.Header().Get("Retry-After"); got != tt.retry {
			t.Errorf("%s: expected Retry-After %q, got %q", tt.method, tt.retry, got)
		}
	}
}
