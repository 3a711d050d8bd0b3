// Package middleware provides HTTP middleware for the SipMate API.
//
// # Available Middleware
//
//   - Auth / OptionalAuth: bearer access-token validation
//   - RateLimit / RateLimitBy: token-bucket limiting per user or client address
//   - Idempotency: replays the response to a POST that repeats its Idempotency-Key
//   - RequestID, Logger, Recovery, CORS, Compress: request plumbing
//
// # Identity in the Context
//
// Access tokens carry the identity account id. Auth stores the paired profile
// id under UserIDKey, which is the id every service uses for the caller:
//
//	userID := middleware.GetUserID(r.Context())       // "profile:<key>"
//	accountID := middleware.GetAccountID(r.Context()) // "account:<key>"
//
// # Composition
//
//	handler := middleware.Chain(mux,
//	    middleware.Recovery,
//	    middleware.RequestID,
//	    middleware.Logger,
//	    middleware.CORS(cfg.Server.AllowedOrigins),
//	)
package middleware
