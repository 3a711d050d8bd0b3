package jwt

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
	"os"
	"time"

	gojwt "github.com/golang-jwt/jwt/v5"
)

var (
	ErrInvalidToken     = errors.New("invalid token")
	ErrTokenExpired     = errors.New("token expired")
	ErrTokenNotYetValid = errors.New("token not yet valid")
	ErrInvalidSignature = errors.New("invalid signature")
	ErrInvalidKey       = errors.New("invalid key")
)

// Claims are the access token claims. Subject and UserID both carry the
// account record id; Username is the profile username at issue time.
type Claims struct {
	gojwt.RegisteredClaims

	Email    string `json:"email,omitempty"`
	UserID   string `json:"user_id,omitempty"`
	Username string `json:"username,omitempty"`
}

// NewClaims returns claims for the account with Subject and UserID set
func NewClaims(accountID, email, username string) Claims {
	return Claims{
		RegisteredClaims: gojwt.RegisteredClaims{Subject: accountID},
		Email:            email,
		UserID:           accountID,
		Username:         username,
	}
}

// Service signs and validates RS256 access tokens
type Service struct {
	privateKey *rsa.PrivateKey
	publicKey  *rsa.PublicKey
	issuer     string
	expiration time.Duration
}

// Config holds JWT service configuration
type Config struct {
	PrivateKeyPath string
	PublicKeyPath  string
	Issuer         string
	ExpirationMins int
}

// NewService creates a new JWT service
func NewService(cfg Config) (*Service, error) {
	var privateKey *rsa.PrivateKey
	var publicKey *rsa.PublicKey
	var err error

	if cfg.PrivateKeyPath != "" {
		privateKey, err = loadPrivateKey(cfg.PrivateKeyPath)
		if err != nil {
			return nil, fmt.Errorf("failed to load private key: %w", err)
		}
		publicKey = &privateKey.PublicKey
	}

	// Validation-only deployments ship just the public key
	if cfg.PublicKeyPath != "" && publicKey == nil {
		publicKey, err = loadPublicKey(cfg.PublicKeyPath)
		if err != nil {
			return nil, fmt.Errorf("failed to load public key: %w", err)
		}
	}

	return &Service{
		privateKey: privateKey,
		publicKey:  publicKey,
		issuer:     cfg.Issuer,
		expiration: time.Duration(cfg.ExpirationMins) * time.Minute,
	}, nil
}

// GenerateKeyPair generates a new RSA key pair and saves to files
func GenerateKeyPair(privateKeyPath, publicKeyPath string) error {
	privateKey, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		return fmt.Errorf("failed to generate key: %w", err)
	}

	privateKeyPEM := pem.EncodeToMemory(&pem.Block{
		Type:  "RSA PRIVATE KEY",
		Bytes: x509.MarshalPKCS1PrivateKey(privateKey),
	})
	if err := os.WriteFile(privateKeyPath, privateKeyPEM, 0600); err != nil {
		return fmt.Errorf("failed to write private key: %w", err)
	}

	publicKeyBytes, err := x509.MarshalPKIXPublicKey(&privateKey.PublicKey)
	if err != nil {
		return fmt.Errorf("failed to marshal public key: %w", err)
	}
	publicKeyPEM := pem.EncodeToMemory(&pem.Block{
		Type:  "PUBLIC KEY",
		Bytes: publicKeyBytes,
	})
	if err := os.WriteFile(publicKeyPath, publicKeyPEM, 0644); err != nil {
		return fmt.Errorf("failed to write public key: %w", err)
	}

	return nil
}

// Sign fills in issuer, issued-at, not-before and (when unset) expiry, then
// returns the compact RS256 token.
func (s *Service) Sign(claims Claims) (string, error) {
	if s.privateKey == nil {
		return "", ErrInvalidKey
	}

	now := time.Now()
	claims.Issuer = s.issuer
	claims.IssuedAt = gojwt.NewNumericDate(now)
	claims.NotBefore = gojwt.NewNumericDate(now)
	if claims.ExpiresAt == nil {
		claims.ExpiresAt = gojwt.NewNumericDate(now.Add(s.expiration))
	}

	signed, err := gojwt.NewWithClaims(gojwt.SigningMethodRS256, claims).SignedString(s.privateKey)
	if err != nil {
		return "", fmt.Errorf("failed to sign: %w", err)
	}
	return signed, nil
}

// Validate parses tokenString, verifies signature, time window and issuer,
// and returns the claims.
func (s *Service) Validate(tokenString string) (*Claims, error) {
	if s.publicKey == nil {
		return nil, ErrInvalidKey
	}

	claims := &Claims{}
	_, err := gojwt.ParseWithClaims(tokenString, claims, func(*gojwt.Token) (interface{}, error) {
		return s.publicKey, nil
	},
		gojwt.WithValidMethods([]string{gojwt.SigningMethodRS256.Alg()}),
		gojwt.WithIssuer(s.issuer),
	)
	if err != nil {
		return nil, mapParseError(err)
	}

	return claims, nil
}

// GetExpiration returns the token expiration duration
func (s *Service) GetExpiration() time.Duration {
	return s.expiration
}

// NewTestService creates a JWT service with in-memory keys for testing
func NewTestService(privateKey *rsa.PrivateKey, issuer string, expiration time.Duration) *Service {
	return &Service{
		privateKey: privateKey,
		publicKey:  &privateKey.PublicKey,
		issuer:     issuer,
		expiration: expiration,
	}
}

func mapParseError(err error) error {
	switch {
	case errors.Is(err, gojwt.ErrTokenExpired):
		return ErrTokenExpired
	case errors.Is(err, gojwt.ErrTokenNotValidYet):
		return ErrTokenNotYetValid
	case errors.Is(err, gojwt.ErrTokenSignatureInvalid):
		return ErrInvalidSignature
	default:
		return ErrInvalidToken
	}
}

func loadPrivateKey(path string) (*rsa.PrivateKey, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return gojwt.ParseRSAPrivateKeyFromPEM(data)
}

func loadPublicKey(path string) (*rsa.PublicKey, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return gojwt.ParseRSAPublicKeyFromPEM(data)
}
