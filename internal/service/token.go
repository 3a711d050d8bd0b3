package service

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/forgo/sipmate/api/internal/model"
	"github.com/forgo/sipmate/api/pkg/jwt"
)

// RefreshToken represents a stored refresh token
type RefreshToken struct {
	ID        string    `json:"id"`
	AccountID string    `json:"account"`
	TokenHash string    `json:"token_hash"`
	ExpiresAt time.Time `json:"expires_at"`
	CreatedAt time.Time `json:"created_on"`
	Revoked   bool      `json:"revoked"`
}

// TokenRepository defines the interface for refresh token storage
type TokenRepository interface {
	CreateRefreshToken(ctx context.Context, token *RefreshToken) error
	GetRefreshTokenByHash(ctx context.Context, hash string) (*RefreshToken, error)
	RevokeRefreshToken(ctx context.Context, hash string) error
	RevokeAllAccountTokens(ctx context.Context, accountID string) error
}

// TokenService issues access tokens and rotates refresh tokens
type TokenService struct {
	jwtService      *jwt.Service
	tokenRepo       TokenRepository
	refreshDuration time.Duration
	now             func() time.Time
}

// TokenServiceConfig holds configuration for the token service
type TokenServiceConfig struct {
	JWTService      *jwt.Service
	TokenRepo       TokenRepository
	RefreshDuration time.Duration // Default: 30 days
}

// NewTokenService creates a new token service
func NewTokenService(cfg TokenServiceConfig) *TokenService {
	if cfg.RefreshDuration == 0 {
		cfg.RefreshDuration = 30 * 24 * time.Hour
	}

	return &TokenService{
		jwtService:      cfg.JWTService,
		tokenRepo:       cfg.TokenRepo,
		refreshDuration: cfg.RefreshDuration,
		now:             time.Now,
	}
}

// TokenPair represents an access token and refresh token pair
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int    `json:"expires_in"` // seconds
}

// GenerateTokenPair signs an access token for the account and stores a new
// opaque refresh token
func (s *TokenService) GenerateTokenPair(ctx context.Context, account *model.Account) (*TokenPair, error) {
	accessToken, err := s.jwtService.Sign(jwt.NewClaims(account.ID, account.Email, ""))
	if err != nil {
		return nil, err
	}

	refreshToken, err := generateRefreshToken()
	if err != nil {
		return nil, err
	}

	now := s.now()
	stored := &RefreshToken{
		AccountID: account.ID,
		TokenHash: hashToken(refreshToken),
		ExpiresAt: now.Add(s.refreshDuration),
		CreatedAt: now,
	}
	if err := s.tokenRepo.CreateRefreshToken(ctx, stored); err != nil {
		return nil, err
	}

	return &TokenPair{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		TokenType:    "Bearer",
		ExpiresIn:    int(s.jwtService.GetExpiration().Seconds()),
	}, nil
}

// LookupRefreshToken returns the stored token for a raw refresh token, or
// ErrInvalidRefreshToken when it is unknown
func (s *TokenService) LookupRefreshToken(ctx context.Context, refreshToken string) (*RefreshToken, error) {
	stored, err := s.tokenRepo.GetRefreshTokenByHash(ctx, hashToken(refreshToken))
	if err != nil || stored == nil {
		return nil, ErrInvalidRefreshToken
	}
	return stored, nil
}

// RefreshTokens validates a refresh token and issues new tokens.
// Tokens are single use: presenting a revoked token revokes every token of
// the account.
func (s *TokenService) RefreshTokens(ctx context.Context, refreshToken string, account *model.Account) (*TokenPair, error) {
	stored, err := s.LookupRefreshToken(ctx, refreshToken)
	if err != nil {
		return nil, err
	}

	if stored.Revoked {
		_ = s.tokenRepo.RevokeAllAccountTokens(ctx, stored.AccountID)
		return nil, ErrRefreshTokenRevoked
	}

	if s.now().After(stored.ExpiresAt) {
		return nil, ErrRefreshTokenExpired
	}

	if err := s.tokenRepo.RevokeRefreshToken(ctx, hashToken(refreshToken)); err != nil {
		return nil, err
	}

	return s.GenerateTokenPair(ctx, account)
}

// ValidateAccessToken validates an access token and returns the claims
func (s *TokenService) ValidateAccessToken(token string) (*jwt.Claims, error) {
	return s.jwtService.Validate(token)
}

// RevokeAllAccountTokens revokes all refresh tokens of an account
func (s *TokenService) RevokeAllAccountTokens(ctx context.Context, accountID string) error {
	return s.tokenRepo.RevokeAllAccountTokens(ctx, accountID)
}

// generateRefreshToken creates a cryptographically secure random token
func generateRefreshToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

// hashToken creates a SHA-256 hash of the token for storage
func hashToken(token string) string {
	hash := sha256.Sum256([]byte(token))
	return hex.EncodeToString(hash[:])
}
