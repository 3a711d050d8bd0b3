package service

import "errors"

// Centralized service layer errors.
// All errors returned by service methods are defined here for consistency
// and to make error handling in handlers predictable.

// ===== Validation Errors =====
var (
	ErrUsernameRequired = errors.New("username is required")
	ErrUsernameTooLong  = errors.New("username must be at most 50 characters")
	ErrPasswordRequired = errors.New("password is required")
	ErrPasswordTooShort = errors.New("password is too short")
	ErrPasswordTooLong  = errors.New("password must be at most 72 bytes")
	ErrInvalidEmail     = errors.New("invalid email format")
	ErrInvalidRating    = errors.New("rating must be between 1 and 5")
	ErrNotesTooLong     = errors.New("notes must be 500 characters or less")
	ErrLocationTooLong  = errors.New("location must be 200 characters or less")
	ErrContentRequired  = errors.New("content is required")
	ErrContentTooLong   = errors.New("content is too long")
	ErrInvalidWineType  = errors.New("wine type must be red or white")
	ErrInvalidSortKey   = errors.New("unknown sort key")
	ErrInvalidMinRating = errors.New("min_rating must be between 0 and 5")
)

// ===== Conflict Errors =====
var (
	ErrDuplicateUsername      = errors.New("username already taken")
	ErrEmailAlreadyRegistered = errors.New("email already registered")
)

// ===== Authentication Errors =====
var (
	ErrInvalidCredentials = errors.New("invalid username or password")
	// ErrIdentityMismatch is returned when the signed-in account is not the one
	// the profile belongs to. Handlers report it like ErrInvalidCredentials.
	ErrIdentityMismatch = errors.New("signed-in account does not match profile")
	ErrNotSignedIn      = errors.New("not signed in")
	ErrUserNotFound     = errors.New("user not found")
)

// ===== Token Errors =====
var (
	ErrInvalidRefreshToken = errors.New("invalid refresh token")
	ErrRefreshTokenExpired = errors.New("refresh token expired")
	ErrRefreshTokenRevoked = errors.New("refresh token revoked")
)

// ===== Not Found Errors =====
var (
	ErrWineNotFound = errors.New("wine not found")
	ErrPostNotFound = errors.New("post not found")
)

// ===== Gateway Errors =====
var (
	// ErrGatewayFailure wraps store or identity failures that are not a
	// credential rejection. The operation may succeed if retried.
	ErrGatewayFailure = errors.New("backend unavailable")

	// ErrAutoSignInFailed marks a registration whose account and profile were
	// created but whose follow-up sign-in failed. It is reported through
	// RegisterResult.SignInErr, never as the error of Register.
	ErrAutoSignInFailed = errors.New("registered but automatic sign-in failed")
)
