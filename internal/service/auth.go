package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/forgo/sipmate/api/internal/database"
	"github.com/forgo/sipmate/api/internal/model"
)

const (
	maxUsernameLength = 50
	defaultAppDomain  = "sipmate.local"
)

// ProfileRepository defines the interface for profile storage
type ProfileRepository interface {
	Create(ctx context.Context, user *model.User) error
	GetByID(ctx context.Context, id string) (*model.User, error)
	GetByUsername(ctx context.Context, username string) (*model.User, error)
	UpdateEmail(ctx context.Context, id, email string) error
}

// IdentityProvider is the account and session backend the auth service
// resolves usernames against
type IdentityProvider interface {
	SignUp(ctx context.Context, email, password string) (*model.Account, error)
	VerifyPassword(ctx context.Context, email, password string) (*model.Account, error)
	SignInWithPassword(ctx context.Context, email, password string) (*Session, error)
	SignOut(ctx context.Context, accountID string) error
	UpdatePassword(ctx context.Context, accountID, password string) error
	ValidatePassword(password string) error
	DeleteAccount(ctx context.Context, accountID string) error
	OnSessionChange(fn SessionListener) func()
}

// AuthState is delivered to auth state listeners. User is nil when signed
// out, and also when a profile had to be created for the session.
type AuthState struct {
	Event     SessionEvent `json:"event"`
	AccountID string       `json:"account_id"`
	User      *model.User  `json:"user"`
}

// AuthListener receives auth state changes in registration order
type AuthListener func(ctx context.Context, state AuthState)

// AuthService maps usernames onto the email-based identity provider and keeps
// profiles in step with sessions
type AuthService struct {
	identity    IdentityProvider
	profileRepo ProfileRepository
	appDomain   string
	now         func() time.Time

	unsubscribe func()

	mu        sync.RWMutex
	listeners []authListenerEntry
	nextID    int
}

type authListenerEntry struct {
	id int
	fn AuthListener
}

// AuthServiceConfig holds configuration for the auth service
type AuthServiceConfig struct {
	Identity    IdentityProvider
	ProfileRepo ProfileRepository
	AppDomain   string // Default: sipmate.local
}

// NewAuthService creates a new auth service and subscribes it to the
// identity provider's session changes
func NewAuthService(cfg AuthServiceConfig) *AuthService {
	if cfg.AppDomain == "" {
		cfg.AppDomain = defaultAppDomain
	}
	s := &AuthService{
		identity:    cfg.Identity,
		profileRepo: cfg.ProfileRepo,
		appDomain:   cfg.AppDomain,
		now:         time.Now,
	}
	s.unsubscribe = cfg.Identity.OnSessionChange(s.handleSessionChange)
	return s
}

// Close detaches the service from the identity provider
func (s *AuthService) Close() {
	if s.unsubscribe != nil {
		s.unsubscribe()
	}
}

// RegisterRequest represents a registration request. Email is optional.
type RegisterRequest struct {
	Username string
	Email    string
	Password string
}

// RegisterResult represents a completed registration. Session is nil when
// the follow-up sign-in failed, in which case SignInErr says why.
type RegisterResult struct {
	User      *model.User
	Session   *Session
	SignInErr error
}

// Register creates an account and its profile, then signs in
func (s *AuthService) Register(ctx context.Context, req RegisterRequest) (*RegisterResult, error) {
	username := strings.TrimSpace(req.Username)
	if username == "" {
		return nil, ErrUsernameRequired
	}
	if utf8.RuneCountInString(username) > maxUsernameLength {
		return nil, ErrUsernameTooLong
	}
	if err := s.identity.ValidatePassword(req.Password); err != nil {
		return nil, err
	}

	email := normalizeEmail(req.Email)
	if email != "" && !isValidEmail(email) {
		return nil, ErrInvalidEmail
	}

	existing, err := s.profileRepo.GetByUsername(ctx, username)
	if err != nil {
		return nil, gatewayError(err)
	}
	if existing != nil {
		return nil, ErrDuplicateUsername
	}

	if email == "" {
		email = SyntheticEmail(username, s.appDomain)
	}

	account, err := s.identity.SignUp(ctx, email, req.Password)
	if err != nil {
		return nil, err
	}

	user, err := s.createProfile(ctx, account, username)
	if err != nil {
		return nil, err
	}

	result := &RegisterResult{User: user}
	session, err := s.identity.SignInWithPassword(ctx, email, req.Password)
	if err != nil {
		slog.Warn("automatic sign-in after registration failed",
			slog.String("account_id", account.ID),
			slog.String("error", err.Error()),
		)
		result.SignInErr = fmt.Errorf("%w: %w", ErrAutoSignInFailed, err)
		return result, nil
	}
	result.Session = session
	return result, nil
}

// createProfile stores the profile for a freshly signed-up account
func (s *AuthService) createProfile(ctx context.Context, account *model.Account, username string) (*model.User, error) {
	user := &model.User{
		ID:       model.ProfileID(account.ID),
		Username: username,
		Email:    account.Email,
	}

	err := s.profileRepo.Create(ctx, user)
	switch {
	case err == nil:
		return user, nil
	case errors.Is(err, database.ErrDuplicate):
		if delErr := s.identity.DeleteAccount(ctx, account.ID); delErr != nil {
			slog.Warn("failed to remove orphaned account",
				slog.String("account_id", account.ID),
				slog.String("error", delErr.Error()),
			)
		}
		return nil, ErrDuplicateUsername
	case errors.Is(err, database.ErrRecordExists):
		existing, getErr := s.profileRepo.GetByID(ctx, user.ID)
		if getErr != nil {
			return nil, gatewayError(getErr)
		}
		if existing == nil {
			return nil, gatewayError(err)
		}
		return existing, nil
	default:
		return nil, gatewayError(err)
	}
}

// LoginRequest represents a login request
type LoginRequest struct {
	Username string
	Password string
}

// LoginResult represents a successful login
type LoginResult struct {
	User    *model.User
	Session *Session
}

// Login signs in by username. The profile's stored email is tried first, then
// the emails older registrations may have used.
func (s *AuthService) Login(ctx context.Context, req LoginRequest) (*LoginResult, error) {
	username := strings.TrimSpace(req.Username)
	if username == "" {
		return nil, ErrUsernameRequired
	}
	if req.Password == "" {
		return nil, ErrPasswordRequired
	}

	profile, err := s.profileRepo.GetByUsername(ctx, username)
	if err != nil {
		return nil, gatewayError(err)
	}
	if profile == nil {
		return nil, ErrInvalidCredentials
	}

	candidates := LoginCandidates(profile.Email, username, s.appDomain)
	email, session, err := firstSuccess(ctx, candidates, func(ctx context.Context, email string) (*Session, error) {
		return s.identity.SignInWithPassword(ctx, email, req.Password)
	})
	if err != nil {
		return nil, err
	}

	if model.RecordKey(session.Account.ID) != model.RecordKey(profile.ID) {
		slog.Warn("signed-in account does not own profile",
			slog.String("account_id", session.Account.ID),
			slog.String("profile_id", profile.ID),
		)
		if err := s.identity.SignOut(ctx, session.Account.ID); err != nil {
			slog.Warn("sign-out after identity mismatch failed", slog.String("error", err.Error()))
		}
		return nil, ErrIdentityMismatch
	}

	if email != profile.Email {
		s.healEmail(ctx, profile, email)
	}

	return &LoginResult{User: profile, Session: session}, nil
}

// firstSuccess runs attempt for each candidate in order, one at a time, and
// stops at the first success. Credential rejections move on to the next
// candidate. When all fail the result is ErrInvalidCredentials, unless some
// attempt failed for another reason, in which case the last such error is
// returned.
func firstSuccess[C, R any](ctx context.Context, candidates []C, attempt func(context.Context, C) (R, error)) (C, R, error) {
	var (
		zeroC   C
		zeroR   R
		lastErr error
	)
	for _, c := range candidates {
		if err := ctx.Err(); err != nil {
			return zeroC, zeroR, gatewayError(err)
		}
		r, err := attempt(ctx, c)
		if err == nil {
			return c, r, nil
		}
		if !errors.Is(err, ErrInvalidCredentials) {
			lastErr = err
		}
	}
	if lastErr != nil {
		if !errors.Is(lastErr, ErrGatewayFailure) {
			lastErr = gatewayError(lastErr)
		}
		return zeroC, zeroR, lastErr
	}
	return zeroC, zeroR, ErrInvalidCredentials
}

// healEmail records the email the account actually signs in with. Failures
// are logged and ignored.
func (s *AuthService) healEmail(ctx context.Context, profile *model.User, email string) {
	if err := s.profileRepo.UpdateEmail(ctx, profile.ID, email); err != nil {
		slog.Warn("failed to update profile email",
			slog.String("profile_id", profile.ID),
			slog.String("error", err.Error()),
		)
		return
	}
	profile.Email = email
}

// Logout ends the session. Identity errors are logged, never returned.
func (s *AuthService) Logout(ctx context.Context, userID string) error {
	if err := s.identity.SignOut(ctx, model.AccountID(userID)); err != nil {
		slog.Warn("sign-out failed",
			slog.String("user_id", userID),
			slog.String("error", err.Error()),
		)
	}
	return nil
}

// CurrentUser returns the profile of the signed-in user
func (s *AuthService) CurrentUser(ctx context.Context, userID string) (*model.User, error) {
	user, err := s.profileRepo.GetByID(ctx, model.ProfileID(userID))
	if err != nil {
		return nil, gatewayError(err)
	}
	if user == nil {
		return nil, ErrUserNotFound
	}
	return user, nil
}

// ChangePassword verifies the current password and replaces it. Existing
// refresh tokens are revoked.
func (s *AuthService) ChangePassword(ctx context.Context, userID, currentPassword, newPassword string) error {
	if err := s.identity.ValidatePassword(newPassword); err != nil {
		return err
	}

	user, err := s.CurrentUser(ctx, userID)
	if err != nil {
		return err
	}

	account, err := s.identity.VerifyPassword(ctx, user.Email, currentPassword)
	if err != nil {
		return err
	}
	if model.RecordKey(account.ID) != model.RecordKey(user.ID) {
		return ErrIdentityMismatch
	}

	return s.identity.UpdatePassword(ctx, account.ID, newPassword)
}

// OnAuthStateChange registers a listener and returns a function that removes it
func (s *AuthService) OnAuthStateChange(fn AuthListener) func() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextID++
	id := s.nextID
	s.listeners = append(s.listeners, authListenerEntry{id: id, fn: fn})

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

func (s *AuthService) handleSessionChange(ctx context.Context, change SessionChange) {
	state := AuthState{Event: change.Event, AccountID: change.AccountID}
	if change.Event != SessionSignedOut && change.Account != nil {
		user, err := s.syncProfile(ctx, change.Account)
		if err != nil {
			slog.Warn("profile sync failed",
				slog.String("account_id", change.AccountID),
				slog.String("error", err.Error()),
			)
		}
		state.User = user
	}
	s.emit(ctx, state)
}

// syncProfile loads the profile for a session, healing email drift. A missing
// profile is created and nil is returned for this change.
func (s *AuthService) syncProfile(ctx context.Context, account *model.Account) (*model.User, error) {
	profile, err := s.profileRepo.GetByID(ctx, model.ProfileID(account.ID))
	if err != nil {
		return nil, err
	}
	if profile == nil {
		s.createMissingProfile(ctx, account)
		return nil, nil
	}
	if account.Email != "" && profile.Email != account.Email {
		s.healEmail(ctx, profile, account.Email)
	}
	return profile, nil
}

func (s *AuthService) createMissingProfile(ctx context.Context, account *model.Account) {
	base := emailLocalPart(account.Email)
	if base == "" {
		key := model.RecordKey(account.ID)
		if len(key) > 8 {
			key = key[:8]
		}
		base = "user_" + key
	}

	user := &model.User{
		ID:       model.ProfileID(account.ID),
		Username: base,
		Email:    account.Email,
	}
	err := s.profileRepo.Create(ctx, user)
	if errors.Is(err, database.ErrDuplicate) {
		user.Username = fmt.Sprintf("%s_%d", base, s.now().UnixMilli())
		err = s.profileRepo.Create(ctx, user)
	}
	if err != nil && !errors.Is(err, database.ErrRecordExists) {
		slog.Warn("failed to create missing profile",
			slog.String("account_id", account.ID),
			slog.String("error", err.Error()),
		)
		return
	}
	slog.Info("created missing profile",
		slog.String("account_id", account.ID),
		slog.String("username", user.Username),
	)
}

func (s *AuthService) emit(ctx context.Context, state AuthState) {
	s.mu.RLock()
	listeners := make([]authListenerEntry, len(s.listeners))
	copy(listeners, s.listeners)
	s.mu.RUnlock()

	for _, l := range listeners {
		l.fn(ctx, state)
	}
}

func emailLocalPart(email string) string {
	if i := strings.IndexByte(email, '@'); i >= 0 {
		return email[:i]
	}
	return email
}
