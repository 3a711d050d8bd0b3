package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/forgo/sipmate/api/internal/database"
	"github.com/forgo/sipmate/api/internal/model"
	"golang.org/x/crypto/bcrypt"
)

const (
	// bcrypt cost factor (10-14 recommended for production)
	bcryptCost = 12

	defaultMinPasswordLength = 6
	// bcrypt only accepts passwords up to 72 bytes
	maxPasswordLength = 72
)

// AccountRepository defines the interface for account storage
type AccountRepository interface {
	Create(ctx context.Context, account *model.Account) error
	GetByID(ctx context.Context, id string) (*model.Account, error)
	GetByEmail(ctx context.Context, email string) (*model.Account, error)
	UpdatePassword(ctx context.Context, accountID, hash string) error
	Delete(ctx context.Context, id string) error
}

// SessionEvent names a change of session state
type SessionEvent string

const (
	SessionSignedIn       SessionEvent = "signed_in"
	SessionTokenRefreshed SessionEvent = "token_refreshed"
	SessionSignedOut      SessionEvent = "signed_out"
)

// SessionChange is delivered to session listeners. Account is nil for
// SessionSignedOut.
type SessionChange struct {
	Event     SessionEvent
	AccountID string
	Account   *model.Account
}

// SessionListener receives session changes in registration order
type SessionListener func(ctx context.Context, change SessionChange)

// Session is an authenticated account with its tokens
type Session struct {
	Account *model.Account `json:"account"`
	Tokens  *TokenPair     `json:"tokens"`
}

// IdentityService is the email/password identity provider. It owns accounts,
// password hashes and sessions, and knows nothing about usernames.
type IdentityService struct {
	accountRepo       AccountRepository
	tokenService      *TokenService
	minPasswordLength int

	mu        sync.RWMutex
	listeners []listenerEntry
	nextID    int
}

type listenerEntry struct {
	id int
	fn SessionListener
}

// IdentityServiceConfig holds configuration for the identity service
type IdentityServiceConfig struct {
	AccountRepo       AccountRepository
	TokenService      *TokenService
	MinPasswordLength int // Default: 6
}

// NewIdentityService creates a new identity service
func NewIdentityService(cfg IdentityServiceConfig) *IdentityService {
	if cfg.MinPasswordLength <= 0 {
		cfg.MinPasswordLength = defaultMinPasswordLength
	}
	return &IdentityService{
		accountRepo:       cfg.AccountRepo,
		tokenService:      cfg.TokenService,
		minPasswordLength: cfg.MinPasswordLength,
	}
}

// SignUp creates an account. It does not start a session.
func (s *IdentityService) SignUp(ctx context.Context, email, password string) (*model.Account, error) {
	email = normalizeEmail(email)
	if !isValidEmail(email) {
		return nil, ErrInvalidEmail
	}
	if err := s.ValidatePassword(password); err != nil {
		return nil, err
	}

	hash, err := hashPassword(password)
	if err != nil {
		return nil, err
	}

	account := &model.Account{Email: email, Hash: &hash}
	if err := s.accountRepo.Create(ctx, account); err != nil {
		if errors.Is(err, database.ErrDuplicate) {
			return nil, ErrEmailAlreadyRegistered
		}
		return nil, gatewayError(err)
	}
	return account, nil
}

// VerifyPassword checks credentials without starting a session
func (s *IdentityService) VerifyPassword(ctx context.Context, email, password string) (*model.Account, error) {
	account, err := s.accountRepo.GetByEmail(ctx, normalizeEmail(email))
	if err != nil {
		return nil, gatewayError(err)
	}
	if account == nil || account.Hash == nil || *account.Hash == "" {
		return nil, ErrInvalidCredentials
	}
	if !checkPassword(password, *account.Hash) {
		return nil, ErrInvalidCredentials
	}
	return account, nil
}

// SignInWithPassword verifies credentials and starts a session
func (s *IdentityService) SignInWithPassword(ctx context.Context, email, password string) (*Session, error) {
	account, err := s.VerifyPassword(ctx, email, password)
	if err != nil {
		return nil, err
	}

	tokens, err := s.tokenService.GenerateTokenPair(ctx, account)
	if err != nil {
		return nil, gatewayError(err)
	}

	s.notify(ctx, SessionChange{Event: SessionSignedIn, AccountID: account.ID, Account: account})
	return &Session{Account: account, Tokens: tokens}, nil
}

// Refresh rotates a refresh token
func (s *IdentityService) Refresh(ctx context.Context, refreshToken string) (*Session, error) {
	stored, err := s.tokenService.LookupRefreshToken(ctx, refreshToken)
	if err != nil {
		return nil, err
	}

	account, err := s.accountRepo.GetByID(ctx, stored.AccountID)
	if err != nil {
		return nil, gatewayError(err)
	}
	if account == nil {
		return nil, ErrUserNotFound
	}

	tokens, err := s.tokenService.RefreshTokens(ctx, refreshToken, account)
	if err != nil {
		return nil, err
	}

	s.notify(ctx, SessionChange{Event: SessionTokenRefreshed, AccountID: account.ID, Account: account})
	return &Session{Account: account, Tokens: tokens}, nil
}

// SignOut revokes every refresh token of the account. Listeners are told the
// session ended even when revocation fails.
func (s *IdentityService) SignOut(ctx context.Context, accountID string) error {
	err := s.tokenService.RevokeAllAccountTokens(ctx, accountID)
	s.notify(ctx, SessionChange{Event: SessionSignedOut, AccountID: accountID})
	if err != nil {
		return gatewayError(err)
	}
	return nil
}

// UpdatePassword replaces the password and revokes existing refresh tokens
func (s *IdentityService) UpdatePassword(ctx context.Context, accountID, password string) error {
	if err := s.ValidatePassword(password); err != nil {
		return err
	}
	hash, err := hashPassword(password)
	if err != nil {
		return err
	}
	if err := s.accountRepo.UpdatePassword(ctx, accountID, hash); err != nil {
		return gatewayError(err)
	}
	if err := s.tokenService.RevokeAllAccountTokens(ctx, accountID); err != nil {
		return gatewayError(err)
	}
	return nil
}

// GetAccount returns the account or ErrUserNotFound
func (s *IdentityService) GetAccount(ctx context.Context, accountID string) (*model.Account, error) {
	account, err := s.accountRepo.GetByID(ctx, accountID)
	if err != nil {
		return nil, gatewayError(err)
	}
	if account == nil {
		return nil, ErrUserNotFound
	}
	return account, nil
}

// DeleteAccount removes an account created by a registration that could not
// be completed
func (s *IdentityService) DeleteAccount(ctx context.Context, accountID string) error {
	if err := s.accountRepo.Delete(ctx, accountID); err != nil {
		return gatewayError(err)
	}
	return nil
}

// ValidateAccessToken validates an access token and returns the claims
func (s *IdentityService) ValidateAccessToken(token string) (*model.TokenClaims, error) {
	claims, err := s.tokenService.ValidateAccessToken(token)
	if err != nil {
		return nil, err
	}
	return &model.TokenClaims{
		UserID:   claims.UserID,
		Email:    claims.Email,
		Username: claims.Username,
	}, nil
}

// OnSessionChange registers a listener and returns a function that removes it
func (s *IdentityService) OnSessionChange(fn SessionListener) func() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextID++
	id := s.nextID
	s.listeners = append(s.listeners, listenerEntry{id: id, fn: fn})

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			for i, l := range s.listeners {
				if l.id == id {
					s.listeners = append(s.listeners[:i], s.listeners[i+1:]...)
					return
				}
			}
		})
	}
}

func (s *IdentityService) notify(ctx context.Context, change SessionChange) {
	s.mu.RLock()
	listeners := make([]listenerEntry, len(s.listeners))
	copy(listeners, s.listeners)
	s.mu.RUnlock()

	slog.Debug("session change",
		slog.String("event", string(change.Event)),
		slog.String("account_id", change.AccountID),
	)
	for _, l := range listeners {
		l.fn(ctx, change)
	}
}

// ValidatePassword checks the password length rules without touching the
// store. Length is counted in bytes.
func (s *IdentityService) ValidatePassword(password string) error {
	if password == "" {
		return ErrPasswordRequired
	}
	if len(password) < s.minPasswordLength {
		return fmt.Errorf("%w: at least %d characters", ErrPasswordTooShort, s.minPasswordLength)
	}
	if len(password) > maxPasswordLength {
		return ErrPasswordTooLong
	}
	return nil
}

// gatewayError marks a store failure that is not a credential rejection
func gatewayError(err error) error {
	return fmt.Errorf("%w: %w", ErrGatewayFailure, err)
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func hashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcryptCost)
	if errors.Is(err, bcrypt.ErrPasswordTooLong) {
		return "", ErrPasswordTooLong
	}
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

func checkPassword(password, hash string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	return err == nil
}

func isValidEmail(email string) bool {
	if email == "" || len(email) > 254 {
		return false
	}
	atIndex := strings.Index(email, "@")
	if atIndex < 1 {
		return false
	}
	dotIndex := strings.LastIndex(email, ".")
	if dotIndex < atIndex+2 {
		return false
	}
	return dotIndex < len(email)-1
}
