// Package config loads and validates SipMate API configuration.
//
// Values come from environment variables. A .env file, when present, is read
// first through godotenv; variables already in the environment take
// precedence.
//
//	cfg, err := config.Load()
//	if err != nil { ... }
//	if err := cfg.Validate(); err != nil { ... }
//
// # Configuration Groups
//
//   - Server: port, environment, timeouts, CORS origins, log level
//   - Database: SurrealDB connection and per-query timeout
//   - JWT: signing keys, expiration, issuer
//   - Identity: synthetic email domain, password policy, refresh-token TTL
//   - Storage: public object storage URL and wine image bucket
//   - RateLimit: login attempts per client
//   - Import: legacy Postgres DSN for cmd/catalog-import
//
// Validate reports every problem at once using errors.Join.
package config
