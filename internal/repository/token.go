package repository

import (
	"context"
	"errors"
	"time"

	"github.com/forgo/sipmate/api/internal/database"
	"github.com/forgo/sipmate/api/internal/service"
)

// TokenRepository handles refresh token data access
type TokenRepository struct {
	db database.Database
}

// NewTokenRepository creates a new token repository
func NewTokenRepository(db database.Database) *TokenRepository {
	return &TokenRepository{db: db}
}

// CreateRefreshToken stores a new refresh token
func (r *TokenRepository) CreateRefreshToken(ctx context.Context, token *service.RefreshToken) error {
	query := `
		CREATE refresh_token CONTENT {
			account: type::record($account),
			token_hash: $token_hash,
			expires_at: <datetime>$expires_at,
			created_on: time::now(),
			revoked: false
		}
	`
	vars := map[string]interface{}{
		"account":    token.AccountID,
		"token_hash": token.TokenHash,
		"expires_at": token.ExpiresAt.UTC().Format(time.RFC3339),
	}

	result, err := r.db.Query(ctx, query, vars)
	if err != nil {
		return err
	}

	created, err := extractCreatedRecord(result)
	if err != nil {
		return err
	}

	token.ID = created.ID
	token.CreatedAt = created.CreatedOn
	return nil
}

// GetRefreshTokenByHash retrieves a refresh token by its hash
func (r *TokenRepository) GetRefreshTokenByHash(ctx context.Context, hash string) (*service.RefreshToken, error) {
	query := `SELECT * FROM refresh_token WHERE token_hash = $hash LIMIT 1`
	vars := map[string]interface{}{"hash": hash}

	result, err := r.db.QueryOne(ctx, query, vars)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}

	data, err := recordMap(result)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}

	var token service.RefreshToken
	if err := decodeRecord(data, &token); err != nil {
		return nil, err
	}
	return &token, nil
}

// RevokeRefreshToken marks a refresh token as revoked
func (r *TokenRepository) RevokeRefreshToken(ctx context.Context, hash string) error {
	query := `UPDATE refresh_token SET revoked = true WHERE token_hash = $hash`
	return r.db.Execute(ctx, query, map[string]interface{}{"hash": hash})
}

// RevokeAllAccountTokens revokes all refresh tokens for an account
func (r *TokenRepository) RevokeAllAccountTokens(ctx context.Context, accountID string) error {
	query := `UPDATE refresh_token SET revoked = true WHERE account = type::record($account)`
	return r.db.Execute(ctx, query, map[string]interface{}{"account": accountID})
}

// DeleteExpiredTokens removes all expired refresh tokens
func (r *TokenRepository) DeleteExpiredTokens(ctx context.Context) error {
	query := `DELETE refresh_token WHERE expires_at < time::now()`
	return r.db.Execute(ctx, query, nil)
}

// CleanupRevokedTokens removes tokens that were revoked and issued before cutoff
func (r *TokenRepository) CleanupRevokedTokens(ctx context.Context, olderThan time.Duration) error {
	cutoff := time.Now().Add(-olderThan).UTC().Format(time.RFC3339)
	query := `DELETE refresh_token WHERE revoked = true AND created_on < <datetime>$cutoff`
	return r.db.Execute(ctx, query, map[string]interface{}{"cutoff": cutoff})
}
