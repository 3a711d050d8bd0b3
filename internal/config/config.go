package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	JWT       JWTConfig
	Identity  IdentityConfig
	Storage   StorageConfig
	RateLimit RateLimitConfig
	Import    ImportConfig
}

// ServerConfig holds HTTP server settings
type ServerConfig struct {
	Port           string
	Env            string
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	AllowedOrigins []string
	LogLevel       string
	IdempotencyTTL time.Duration // how long keyed POST responses are replayed
}

// DatabaseConfig holds SurrealDB connection settings
type DatabaseConfig struct {
	Host         string
	Port         string
	Namespace    string
	Database     string
	User         string
	Password     string
	QueryTimeout time.Duration

	// AutoMigrate applies MigrationsDir on startup. The schema files are
	// idempotent, so this is safe on every boot.
	AutoMigrate   bool
	MigrationsDir string
}

// JWTConfig holds JWT signing settings
type JWTConfig struct {
	PrivateKeyPath string
	PublicKeyPath  string
	ExpirationMins int
	Issuer         string
}

// IdentityConfig holds account and session settings
type IdentityConfig struct {
	// AppDomain is the domain of synthetic sign-in emails
	AppDomain         string
	MinPasswordLength int
	RefreshTTL        time.Duration
	// SweepInterval is how often expired refresh tokens are purged
	SweepInterval time.Duration
}

// StorageConfig holds public object storage settings for wine images
type StorageConfig struct {
	PublicURL string
	Bucket    string
}

// RateLimitConfig holds the login rate limit
type RateLimitConfig struct {
	AuthRate   int
	AuthWindow time.Duration
}

// ImportConfig holds settings for the catalog importer
type ImportConfig struct {
	LegacyDatabaseURL string
}

// Load reads configuration from environment variables with sensible
// defaults. A .env file in the working directory is read first; variables
// already set in the environment win.
func Load() (*Config, error) {
	return LoadFiles(".env")
}

// LoadFiles is like Load but reads the given dotenv files. Missing files are
// skipped.
func LoadFiles(files ...string) (*Config, error) {
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("loading %s: %w", f, err)
		}
	}

	return &Config{
		Server: ServerConfig{
			Port:           getEnv("SERVER_PORT", "8080"),
			Env:            getEnv("SERVER_ENV", "development"),
			ReadTimeout:    getDurationEnv("SERVER_READ_TIMEOUT", 15*time.Second),
			WriteTimeout:   getDurationEnv("SERVER_WRITE_TIMEOUT", 15*time.Second),
			AllowedOrigins: getSliceEnv("CORS_ALLOWED_ORIGINS", []string{"http://localhost:8081"}),
			LogLevel:       getEnv("LOG_LEVEL", "info"),
			IdempotencyTTL: getDurationEnv("IDEMPOTENCY_TTL", 24*time.Hour),
		},
		Database: DatabaseConfig{
			Host:          getEnv("DB_HOST", "localhost"),
			Port:          getEnv("DB_PORT", "8000"),
			Namespace:     getEnv("DB_NAMESPACE", "sipmate"),
			Database:      getEnv("DB_DATABASE", "main"),
			User:          getEnv("DB_USER", "root"),
			Password:      getEnv("DB_PASSWORD", "root"),
			QueryTimeout:  getDurationEnv("DB_QUERY_TIMEOUT", 10*time.Second),
			AutoMigrate:   getBoolEnv("DB_AUTO_MIGRATE", true),
			MigrationsDir: getEnv("DB_MIGRATIONS_DIR", "migrations"),
		},
		JWT: JWTConfig{
			PrivateKeyPath: getEnv("JWT_PRIVATE_KEY_PATH", "./keys/private.pem"),
			PublicKeyPath:  getEnv("JWT_PUBLIC_KEY_PATH", "./keys/public.pem"),
			ExpirationMins: getIntEnv("JWT_EXPIRATION_MINS", 15),
			Issuer:         getEnv("JWT_ISSUER", "api.sipmate.app"),
		},
		Identity: IdentityConfig{
			AppDomain:         strings.ToLower(getEnv("IDENTITY_APP_DOMAIN", "sipmate.local")),
			MinPasswordLength: getIntEnv("IDENTITY_MIN_PASSWORD_LENGTH", 6),
			RefreshTTL:        getDurationEnv("IDENTITY_REFRESH_TTL", 30*24*time.Hour),
			SweepInterval:     getDurationEnv("IDENTITY_SWEEP_INTERVAL", time.Hour),
		},
		Storage: StorageConfig{
			PublicURL: getEnv("STORAGE_PUBLIC_URL", ""),
			Bucket:    getEnv("STORAGE_BUCKET", "wine-images"),
		},
		RateLimit: RateLimitConfig{
			AuthRate:   getIntEnv("AUTH_RATE_LIMIT", 10),
			AuthWindow: getDurationEnv("AUTH_RATE_WINDOW", time.Minute),
		},
		Import: ImportConfig{
			LegacyDatabaseURL: getEnv("LEGACY_DATABASE_URL", ""),
		},
	}, nil
}

// IsDevelopment returns true if running in development mode
func (c *Config) IsDevelopment() bool {
	return c.Server.Env == "development"
}

// IsProduction returns true if running in production mode
func (c *Config) IsProduction() bool {
	return c.Server.Env == "production"
}

// Validate checks that all required configuration values are present and valid.
// It returns an error describing all validation failures, or nil if valid.
func (c *Config) Validate() error {
	var errs []error

	// Server
	if c.Server.Port == "" {
		errs = append(errs, errors.New("SERVER_PORT is required"))
	}
	if c.Server.Env != "development" && c.Server.Env != "production" && c.Server.Env != "test" {
		errs = append(errs, fmt.Errorf("SERVER_ENV must be 'development', 'production', or 'test', got '%s'", c.Server.Env))
	}
	if len(c.Server.AllowedOrigins) == 0 {
		errs = append(errs, errors.New("CORS_ALLOWED_ORIGINS must have at least one origin"))
	}
	switch strings.ToLower(c.Server.LogLevel) {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Errorf("LOG_LEVEL must be debug, info, warn or error, got '%s'", c.Server.LogLevel))
	}

	// Database
	if c.Database.Host == "" {
		errs = append(errs, errors.New("DB_HOST is required"))
	}
	if c.Database.Port == "" {
		errs = append(errs, errors.New("DB_PORT is required"))
	}
	if c.Database.Namespace == "" {
		errs = append(errs, errors.New("DB_NAMESPACE is required"))
	}
	if c.Database.Database == "" {
		errs = append(errs, errors.New("DB_DATABASE is required"))
	}
	if c.Database.QueryTimeout <= 0 {
		errs = append(errs, errors.New("DB_QUERY_TIMEOUT must be positive"))
	}
	if c.Database.AutoMigrate && c.Database.MigrationsDir == "" {
		errs = append(errs, errors.New("DB_MIGRATIONS_DIR is required when DB_AUTO_MIGRATE is set"))
	}

	// JWT
	if c.IsProduction() {
		if c.JWT.PrivateKeyPath == "" {
			errs = append(errs, errors.New("JWT_PRIVATE_KEY_PATH is required in production"))
		}
		if c.JWT.PublicKeyPath == "" {
			errs = append(errs, errors.New("JWT_PUBLIC_KEY_PATH is required in production"))
		}
	}
	if c.JWT.ExpirationMins <= 0 {
		errs = append(errs, errors.New("JWT_EXPIRATION_MINS must be positive"))
	}

	// Identity
	if c.Identity.AppDomain == "" || strings.ContainsAny(c.Identity.AppDomain, "@ /") {
		errs = append(errs, fmt.Errorf("IDENTITY_APP_DOMAIN must be a bare domain, got '%s'", c.Identity.AppDomain))
	}
	if c.Identity.MinPasswordLength < 1 || c.Identity.MinPasswordLength > 128 {
		errs = append(errs, errors.New("IDENTITY_MIN_PASSWORD_LENGTH must be between 1 and 128"))
	}
	if c.Identity.RefreshTTL <= 0 {
		errs = append(errs, errors.New("IDENTITY_REFRESH_TTL must be positive"))
	}
	if c.Identity.SweepInterval <= 0 {
		errs = append(errs, errors.New("IDENTITY_SWEEP_INTERVAL must be positive"))
	}

	// Storage
	if c.Storage.PublicURL != "" {
		if u, err := url.Parse(c.Storage.PublicURL); err != nil || u.Scheme == "" || u.Host == "" {
			errs = append(errs, fmt.Errorf("STORAGE_PUBLIC_URL must be an absolute URL, got '%s'", c.Storage.PublicURL))
		}
	} else if c.IsProduction() {
		errs = append(errs, errors.New("STORAGE_PUBLIC_URL is required in production"))
	}
	if c.Storage.Bucket == "" {
		errs = append(errs, errors.New("STORAGE_BUCKET is required"))
	}

	// Rate limit
	if c.RateLimit.AuthRate <= 0 {
		errs = append(errs, errors.New("AUTH_RATE_LIMIT must be positive"))
	}
	if c.RateLimit.AuthWindow <= 0 {
		errs = append(errs, errors.New("AUTH_RATE_WINDOW must be positive"))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

// Helper functions for reading environment variables

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getSliceEnv(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, v := range strings.Split(value, ",") {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}
