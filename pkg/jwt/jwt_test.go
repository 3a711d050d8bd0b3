package jwt

import (
	"crypto/rand"
	"crypto/rsa"
	"errors"
	"os"
	"testing"
	"time"

	gojwt "github.com/golang-jwt/jwt/v5"
)

// ============================================================================
// Test Helpers
// ============================================================================

func newTestService(t *testing.T) *Service {
	t.Helper()
	return newTestServiceWithExpiration(t, 15*time.Minute)
}

func newTestServiceWithExpiration(t *testing.T, expiration time.Duration) *Service {
	t.Helper()
	privateKey, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("failed to generate RSA key: %v", err)
	}
	return NewTestService(privateKey, "test-issuer", expiration)
}

// ============================================================================
// Sign Tests
// ============================================================================

func TestSign_ValidClaims_ReturnsToken(t *testing.T) {
	t.Parallel()
	svc := newTestService(t)

	token, err := svc.Sign(Claims{UserID: "account:abc", Email: "wine_lover@sipmate.local"})

	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if token == "" {
		t.Fatal("expected token, got empty string")
	}
}

func TestSign_NilPrivateKey_ReturnsErrInvalidKey(t *testing.T) {
	t.Parallel()
	svc := &Service{issuer: "test-issuer", expiration: time.Minute}

	_, err := svc.Sign(Claims{UserID: "account:abc"})

	if !errors.Is(err, ErrInvalidKey) {
		t.Errorf("expected ErrInvalidKey, got %v", err)
	}
}

func TestSign_SetsStandardClaims(t *testing.T) {
	t.Parallel()
	svc := newTestService(t)
	before := time.Now().Add(-time.Second)

	token, err := svc.Sign(Claims{UserID: "account:abc"})
	if err != nil {
		t.Fatalf("sign failed: %v", err)
	}
	claims, err := svc.Validate(token)
	if err != nil {
		t.Fatalf("validate failed: %v", err)
	}

	if claims.Issuer != "test-issuer" {
		t.Errorf("expected issuer test-issuer, got %q", claims.Issuer)
	}
	if claims.IssuedAt == nil || claims.IssuedAt.Before(before) {
		t.Errorf("expected issued-at to be set to now, got %v", claims.IssuedAt)
	}
	if claims.ExpiresAt == nil {
		t.Fatal("expected default expiry")
	}
	if d := claims.ExpiresAt.Sub(claims.IssuedAt.Time); d < 14*time.Minute || d > 16*time.Minute {
		t.Errorf("expected ~15m lifetime, got %v", d)
	}
}

func TestSign_PreservesCustomExpiration(t *testing.T) {
	t.Parallel()
	svc := newTestService(t)
	custom := time.Now().Add(2 * time.Hour).Truncate(time.Second)

	token, err := svc.Sign(Claims{
		RegisteredClaims: gojwt.RegisteredClaims{ExpiresAt: gojwt.NewNumericDate(custom)},
		UserID:           "account:abc",
	})
	if err != nil {
		t.Fatalf("sign failed: %v", err)
	}
	claims, err := svc.Validate(token)
	if err != nil {
		t.Fatalf("validate failed: %v", err)
	}

	if !claims.ExpiresAt.Time.Equal(custom) {
		t.Errorf("expected expiry %v, got %v", custom, claims.ExpiresAt.Time)
	}
}

// ============================================================================
// Validate Tests
// ============================================================================

func TestSignAndValidate_RoundTrip(t *testing.T) {
	t.Parallel()
	svc := newTestService(t)

	token, err := svc.Sign(Claims{
		RegisteredClaims: gojwt.RegisteredClaims{Subject: "account:abc"},
		UserID:           "account:abc",
		Email:            "wine_lover@sipmate.local",
		Username:         "wine_lover",
	})
	if err != nil {
		t.Fatalf("sign failed: %v", err)
	}

	claims, err := svc.Validate(token)
	if err != nil {
		t.Fatalf("validate failed: %v", err)
	}
	if claims.Subject != "account:abc" || claims.UserID != "account:abc" {
		t.Errorf("unexpected subject/user: %q %q", claims.Subject, claims.UserID)
	}
	if claims.Email != "wine_lover@sipmate.local" {
		t.Errorf("unexpected email %q", claims.Email)
	}
	if claims.Username != "wine_lover" {
		t.Errorf("unexpected username %q", claims.Username)
	}
}

func TestValidate_NilPublicKey_ReturnsErrInvalidKey(t *testing.T) {
	t.Parallel()
	svc := &Service{issuer: "test-issuer"}

	_, err := svc.Validate("a.b.c")

	if !errors.Is(err, ErrInvalidKey) {
		t.Errorf("expected ErrInvalidKey, got %v", err)
	}
}

func TestValidate_Malformed_ReturnsErrInvalidToken(t *testing.T) {
	t.Parallel()
	svc := newTestService(t)

	tests := []string{"", "abc", "a.b", "a.b.c.d", "not.a.token"}
	for _, tok := range tests {
		if _, err := svc.Validate(tok); !errors.Is(err, ErrInvalidToken) {
			t.Errorf("Validate(%q): expected ErrInvalidToken, got %v", tok, err)
		}
	}
}

func TestValidate_ExpiredToken_ReturnsErrTokenExpired(t *testing.T) {
	t.Parallel()
	svc := newTestService(t)

	token, err := svc.Sign(Claims{
		RegisteredClaims: gojwt.RegisteredClaims{ExpiresAt: gojwt.NewNumericDate(time.Now().Add(-time.Hour))},
		UserID:           "account:abc",
	})
	if err != nil {
		t.Fatalf("sign failed: %v", err)
	}

	if _, err := svc.Validate(token); !errors.Is(err, ErrTokenExpired) {
		t.Errorf("expected ErrTokenExpired, got %v", err)
	}
}

func TestValidate_DifferentKey_ReturnsErrInvalidSignature(t *testing.T) {
	t.Parallel()
	signer := newTestService(t)
	verifier := newTestService(t)

	token, err := signer.Sign(Claims{UserID: "account:abc"})
	if err != nil {
		t.Fatalf("sign failed: %v", err)
	}

	if _, err := verifier.Validate(token); !errors.Is(err, ErrInvalidSignature) {
		t.Errorf("expected ErrInvalidSignature, got %v", err)
	}
}

func TestValidate_WrongIssuer_ReturnsErrInvalidToken(t *testing.T) {
	t.Parallel()
	privateKey, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("failed to generate RSA key: %v", err)
	}
	signer := NewTestService(privateKey, "someone-else", time.Minute)
	verifier := NewTestService(privateKey, "test-issuer", time.Minute)

	token, err := signer.Sign(Claims{UserID: "account:abc"})
	if err != nil {
		t.Fatalf("sign failed: %v", err)
	}

	if _, err := verifier.Validate(token); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("expected ErrInvalidToken, got %v", err)
	}
}

func TestValidate_RejectsNoneAlgorithm(t *testing.T) {
	t.Parallel()
	svc := newTestService(t)

	unsigned, err := gojwt.NewWithClaims(gojwt.SigningMethodNone, Claims{
		RegisteredClaims: gojwt.RegisteredClaims{Issuer: "test-issuer"},
		UserID:           "account:abc",
	}).SignedString(gojwt.UnsafeAllowNoneSignatureType)
	if err != nil {
		t.Fatalf("failed to build unsigned token: %v", err)
	}

	if _, err := svc.Validate(unsigned); err == nil {
		t.Error("expected unsigned token to be rejected")
	}
}

// ============================================================================
// Key Loading Tests
// ============================================================================

func TestNewService_NoKeys_ReturnsService(t *testing.T) {
	t.Parallel()

	svc, err := NewService(Config{Issuer: "test", ExpirationMins: 15})

	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if svc.GetExpiration() != 15*time.Minute {
		t.Errorf("expected 15m expiration, got %v", svc.GetExpiration())
	}
}

func TestNewService_WithGeneratedKeys_SignsAndValidates(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	privatePath := dir + "/private.pem"
	publicPath := dir + "/public.pem"

	if err := GenerateKeyPair(privatePath, publicPath); err != nil {
		t.Fatalf("failed to generate keys: %v", err)
	}

	signer, err := NewService(Config{PrivateKeyPath: privatePath, Issuer: "test", ExpirationMins: 5})
	if err != nil {
		t.Fatalf("signer: %v", err)
	}
	verifier, err := NewService(Config{PublicKeyPath: publicPath, Issuer: "test", ExpirationMins: 5})
	if err != nil {
		t.Fatalf("verifier: %v", err)
	}
	if verifier.privateKey != nil {
		t.Error("expected verifier to hold only a public key")
	}

	token, err := signer.Sign(Claims{UserID: "account:abc"})
	if err != nil {
		t.Fatalf("sign failed: %v", err)
	}
	if _, err := verifier.Validate(token); err != nil {
		t.Errorf("expected token to validate with public key, got %v", err)
	}
}

func TestNewService_MissingOrInvalidKeyFiles_ReturnError(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	garbage := dir + "/garbage.pem"
	if err := os.WriteFile(garbage, []byte("not a pem"), 0600); err != nil {
		t.Fatalf("write: %v", err)
	}

	tests := []struct {
		name string
		cfg  Config
	}{
		{"private missing", Config{PrivateKeyPath: dir + "/nope.pem"}},
		{"public missing", Config{PublicKeyPath: dir + "/nope.pem"}},
		{"private invalid", Config{PrivateKeyPath: garbage}},
		{"public invalid", Config{PublicKeyPath: garbage}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewService(tt.cfg); err == nil {
				t.Error("expected error")
			}
		})
	}
}
