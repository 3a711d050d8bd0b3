package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/forgo/sipmate/api/internal/middleware"
	"github.com/forgo/sipmate/api/internal/model"
	"github.com/forgo/sipmate/api/internal/service"
)

// AuthAPI is the auth resolution surface the handler needs
type AuthAPI interface {
	Register(ctx context.Context, req service.RegisterRequest) (*service.RegisterResult, error)
	Login(ctx context.Context, req service.LoginRequest) (*service.LoginResult, error)
	Logout(ctx context.Context, userID string) error
	CurrentUser(ctx context.Context, userID string) (*model.User, error)
	ChangePassword(ctx context.Context, userID, currentPassword, newPassword string) error
}

// SessionRefresher exchanges a refresh token for a new session
type SessionRefresher interface {
	Refresh(ctx context.Context, refreshToken string) (*service.Session, error)
}

// AuthHandler handles authentication endpoints
type AuthHandler struct {
	auth     AuthAPI
	sessions SessionRefresher
}

// AuthHandlerConfig holds dependencies for the auth handler
type AuthHandlerConfig struct {
	Auth     AuthAPI
	Sessions SessionRefresher
}

// NewAuthHandler creates a new auth handler
func NewAuthHandler(cfg AuthHandlerConfig) *AuthHandler {
	return &AuthHandler{auth: cfg.Auth, sessions: cfg.Sessions}
}

// RegisterRequest represents the register endpoint request body
type RegisterRequest struct {
	Username string `json:"username"`
	Email    string `json:"email,omitempty"`
	Password string `json:"password"`
}

// LoginRequest represents the login endpoint request body
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// RefreshRequest represents the refresh endpoint request body
type RefreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

// ChangePasswordRequest represents the password endpoint request body
type ChangePasswordRequest struct {
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
}

// TokenResponse represents a token response
type TokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int    `json:"expires_in"`
}

// UserResponse represents a user in API responses
type UserResponse struct {
	ID        string `json:"id"`
	Username  string `json:"username"`
	Email     string `json:"email"`
	CreatedOn string `json:"created_on"`
	UpdatedOn string `json:"updated_on"`
}

// SessionResponse is returned by register and login. Token is absent when a
// registration succeeded but the automatic sign-in did not.
type SessionResponse struct {
	User           UserResponse   `json:"user"`
	Token          *TokenResponse `json:"token,omitempty"`
	SignInRequired bool           `json:"sign_in_required,omitempty"`
}

// RegisterRoutes registers auth routes. protect wraps routes that need a
// signed-in caller; limit wraps credential-checking routes.
func (h *AuthHandler) RegisterRoutes(mux *http.ServeMux, protect, limit middleware.Middleware) {
	mux.Handle("POST /v1/auth/register", limit(http.HandlerFunc(h.Register)))
	mux.Handle("POST /v1/auth/login", limit(http.HandlerFunc(h.Login)))
	mux.HandleFunc("POST /v1/auth/refresh", h.Refresh)
	mux.Handle("POST /v1/auth/logout", protect(http.HandlerFunc(h.Logout)))
	mux.Handle("GET /v1/auth/me", protect(http.HandlerFunc(h.Me)))
	mux.Handle("POST /v1/auth/password", protect(limit(http.HandlerFunc(h.ChangePassword))))
}

// Register handles POST /v1/auth/register
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := DecodeJSON(r, &req); err != nil {
		WriteError(w, model.NewBadRequestError("invalid request body"))
		return
	}

	result, err := h.auth.Register(r.Context(), service.RegisterRequest{
		Username: req.Username,
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		WriteServiceError(w, r, err, "register")
		return
	}

	resp := SessionResponse{User: toUserResponse(result.User)}
	if result.Session != nil {
		resp.Token = toTokenResponse(result.Session.Tokens)
	} else {
		resp.SignInRequired = true
		slog.WarnContext(r.Context(), "registered without session",
			slog.String("user_id", result.User.ID),
			slog.Any("error", result.SignInErr),
		)
	}

	WriteData(w, http.StatusCreated, resp, map[string]string{
		"self":  "/v1/auth/me",
		"login": "/v1/auth/login",
	})
}

// Login handles POST /v1/auth/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := DecodeJSON(r, &req); err != nil {
		WriteError(w, model.NewBadRequestError("invalid request body"))
		return
	}

	result, err := h.auth.Login(r.Context(), service.LoginRequest{
		Username: req.Username,
		Password: req.Password,
	})
	if err != nil {
		WriteServiceError(w, r, err, "login")
		return
	}

	WriteData(w, http.StatusOK, SessionResponse{
		User:  toUserResponse(result.User),
		Token: toTokenResponse(result.Session.Tokens),
	}, map[string]string{
		"self": "/v1/auth/me",
	})
}

// Refresh handles POST /v1/auth/refresh
func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	var req RefreshRequest
	if err := DecodeJSON(r, &req); err != nil {
		WriteError(w, model.NewBadRequestError("invalid request body"))
		return
	}
	if req.RefreshToken == "" {
		WriteError(w, model.NewValidationError([]model.FieldError{
			{Field: "refresh_token", Message: "refresh_token is required"},
		}))
		return
	}

	session, err := h.sessions.Refresh(r.Context(), req.RefreshToken)
	if err != nil {
		WriteServiceError(w, r, err, "refresh")
		return
	}

	WriteData(w, http.StatusOK, toTokenResponse(session.Tokens), nil)
}

// Logout handles POST /v1/auth/logout. It always succeeds for a signed-in
// caller.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	if !requireUser(w, userID) {
		return
	}

	_ = h.auth.Logout(r.Context(), userID)
	WriteNoContent(w)
}

// Me handles GET /v1/auth/me
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	if !requireUser(w, userID) {
		return
	}

	user, err := h.auth.CurrentUser(r.Context(), userID)
	if err != nil {
		WriteServiceError(w, r, err, "get current user")
		return
	}

	WriteData(w, http.StatusOK, toUserResponse(user), map[string]string{
		"self":        "/v1/auth/me",
		"saved_wines": "/v1/saved-wines",
	})
}

// ChangePassword handles POST /v1/auth/password
func (h *AuthHandler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	if !requireUser(w, userID) {
		return
	}

	var req ChangePasswordRequest
	if err := DecodeJSON(r, &req); err != nil {
		WriteError(w, model.NewBadRequestError("invalid request body"))
		return
	}

	err := h.auth.ChangePassword(r.Context(), userID, req.CurrentPassword, req.NewPassword)
	if errors.Is(err, service.ErrInvalidCredentials) {
		WriteError(w, model.NewUnauthorizedError("current password is incorrect"))
		return
	}
	if err != nil {
		WriteServiceError(w, r, err, "change password")
		return
	}

	WriteNoContent(w)
}

// Helper functions

const timeFormat = "2006-01-02T15:04:05Z"

func toUserResponse(user *model.User) UserResponse {
	return UserResponse{
		ID:        user.ID,
		Username:  user.Username,
		Email:     user.Email,
		CreatedOn: user.CreatedOn.UTC().Format(timeFormat),
		UpdatedOn: user.UpdatedOn.UTC().Format(timeFormat),
	}
}

func toTokenResponse(tokens *service.TokenPair) *TokenResponse {
	if tokens == nil {
		return nil
	}
	return &TokenResponse{
		AccessToken:  tokens.AccessToken,
		RefreshToken: tokens.RefreshToken,
		TokenType:    tokens.TokenType,
		ExpiresIn:    tokens.ExpiresIn,
	}
}
