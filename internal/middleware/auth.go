package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/forgo/sipmate/api/internal/model"
	"github.com/forgo/sipmate/api/pkg/jwt"
)

// TokenValidator validates bearer access tokens
type TokenValidator interface {
	ValidateAccessToken(token string) (*model.TokenClaims, error)
}

const (
	// ClaimsKey is the context key for the validated token claims
	ClaimsKey contextKey = "claims"
	// UserEmailKey is the context key for the account email
	UserEmailKey contextKey = "userEmail"
	// AccountIDKey is the context key for the identity account id
	AccountIDKey contextKey = "accountID"
)

// Auth returns a middleware that rejects requests without a valid access
// token. The user id placed in the context is the caller's profile id.
func Auth(validator TokenValidator) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				model.NewUnauthorizedError("missing authorization header").WriteJSON(w)
				return
			}

			token, ok := bearerToken(authHeader)
			if !ok {
				model.NewUnauthorizedError("invalid authorization header format").WriteJSON(w)
				return
			}

			claims, err := validator.ValidateAccessToken(token)
			if err != nil {
				switch {
				case errors.Is(err, jwt.ErrTokenExpired):
					pd := model.NewUnauthorizedError("token expired")
					pd.Code = model.ErrCodeTokenExpired
					pd.WriteJSON(w)
				case errors.Is(err, jwt.ErrInvalidSignature):
					model.NewUnauthorizedError("invalid token signature").WriteJSON(w)
				default:
					model.NewUnauthorizedError("invalid token").WriteJSON(w)
				}
				return
			}

			next.ServeHTTP(w, r.WithContext(withClaims(r.Context(), claims)))
		})
	}
}

// OptionalAuth is like Auth but lets anonymous requests through. A missing or
// invalid token leaves the context without a user.
func OptionalAuth(validator TokenValidator) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := bearerToken(r.Header.Get("Authorization"))
			if !ok {
				next.ServeHTTP(w, r)
				return
			}

			claims, err := validator.ValidateAccessToken(token)
			if err != nil {
				next.ServeHTTP(w, r)
				return
			}

			next.ServeHTTP(w, r.WithContext(withClaims(r.Context(), claims)))
		})
	}
}

func bearerToken(header string) (string, bool) {
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || parts[1] == "" {
		return "", false
	}
	return parts[1], true
}

func withClaims(ctx context.Context, claims *model.TokenClaims) context.Context {
	ctx = context.WithValue(ctx, UserIDKey, model.ProfileID(claims.UserID))
	ctx = context.WithValue(ctx, AccountIDKey, claims.UserID)
	ctx = context.WithValue(ctx, UserEmailKey, claims.Email)
	return context.WithValue(ctx, ClaimsKey, claims)
}

// GetUserID returns the caller's profile id, or "" for anonymous requests
func GetUserID(ctx context.Context) string {
	if id, ok := ctx.Value(UserIDKey).(string); ok {
		return id
	}
	return ""
}

// GetAccountID returns the caller's identity account id
func GetAccountID(ctx context.Context) string {
	if id, ok := ctx.Value(AccountIDKey).(string); ok {
		return id
	}
	return ""
}

// GetUserEmail extracts the user email from context
func GetUserEmail(ctx context.Context) string {
	if email, ok := ctx.Value(UserEmailKey).(string); ok {
		return email
	}
	return ""
}

// GetClaims extracts the token claims from context
func GetClaims(ctx context.Context) *model.TokenClaims {
	if claims, ok := ctx.Value(ClaimsKey).(*model.TokenClaims); ok {
		return claims
	}
	return nil
}
