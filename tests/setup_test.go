// Package tests contains end-to-end acceptance tests for the SipMate API.
//
// These tests run against a real SurrealDB instance and drive the API
// through the same router, middleware and services the server wires up.
//
// To run tests:
//  1. Start SurrealDB: surreal start memory -A --user root --pass root
//  2. Run tests: go test ./tests/...
//
// Or let testcontainers start one: TEST_DB_CONTAINER=1 go test ./tests/...
//
// Environment variables:
//
//	TEST_DB_HOST      - SurrealDB host (default: localhost)
//	TEST_DB_PORT      - SurrealDB port (default: 8000)
//	TEST_DB_USER      - SurrealDB username (default: root)
//	TEST_DB_PASSWORD  - SurrealDB password (default: root)
//	TEST_DB_CONTAINER - set to 1 to start SurrealDB in a container
package tests

import (
	"net/http"
	"testing"
	"time"

	"github.com/forgo/sipmate/api/internal/handler"
	"github.com/forgo/sipmate/api/internal/middleware"
	"github.com/forgo/sipmate/api/internal/repository"
	"github.com/forgo/sipmate/api/internal/service"
	"github.com/forgo/sipmate/api/internal/testing/fixtures"
	"github.com/forgo/sipmate/api/internal/testing/helpers"
	"github.com/forgo/sipmate/api/internal/testing/testdb"
)

const (
	testStorageURL = "https://xyz.supabase.co"
	testBucket     = "wine-images"
)

// stack is a fully wired API over one test database
type stack struct {
	tdb       *testdb.TestDB
	fixtures  *fixtures.Factory
	jwt       *helpers.JWTHelper
	router    http.Handler
	auth      *service.AuthService
	identity  *service.IdentityService
	savedWine *service.SavedWineService
	community *service.CommunityService
	catalog   *service.CatalogService
	hub       *service.EventHub
}

// newStack wires repositories, services and handlers the way the server does
func newStack(t *testing.T) *stack {
	t.Helper()

	tdb := testdb.New(t)
	t.Cleanup(tdb.Close)

	jwtService := helpers.NewTestJWTService(t)

	accountRepo := repository.NewAccountRepository(tdb.DB)
	profileRepo := repository.NewProfileRepository(tdb.DB)
	tokenRepo := repository.NewTokenRepository(tdb.DB)
	wineRepo := repository.NewWineRepository(tdb.DB)
	savedWineRepo := repository.NewSavedWineRepository(tdb.DB)
	communityRepo := repository.NewCommunityRepository(tdb.DB)

	tokenService := service.NewTokenService(service.TokenServiceConfig{
		JWTService:      jwtService,
		TokenRepo:       tokenRepo,
		RefreshDuration: 24 * time.Hour,
	})
	identityService := service.NewIdentityService(service.IdentityServiceConfig{
		AccountRepo:  accountRepo,
		TokenService: tokenService,
	})
	authService := service.NewAuthService(service.AuthServiceConfig{
		Identity:    identityService,
		ProfileRepo: profileRepo,
		AppDomain:   fixtures.DefaultAppDomain,
	})
	t.Cleanup(authService.Close)

	catalogService := service.NewCatalogService(service.CatalogServiceConfig{WineRepo: wineRepo})

	hub := service.NewEventHub()
	t.Cleanup(hub.Close)

	savedWineService := service.NewSavedWineService(service.SavedWineServiceConfig{
		SavedWineRepo: savedWineRepo,
		Wines:         catalogService,
		EventHub:      hub,
		Auth:          authService,
	})
	t.Cleanup(savedWineService.Close)
	t.Cleanup(authService.OnAuthStateChange(hub.AuthStateListener()))

	communityService := service.NewCommunityService(service.CommunityServiceConfig{
		CommunityRepo: communityRepo,
		ProfileRepo:   profileRepo,
		Wines:         catalogService,
	})

	limiter := middleware.NewRateLimiter(middleware.RateLimitConfig{Rate: 1000, Window: time.Minute})
	t.Cleanup(limiter.Stop)
	idempotency := middleware.NewIdempotencyStore(middleware.IdempotencyConfig{})
	t.Cleanup(idempotency.Stop)

	protect := middleware.Auth(identityService)
	optional := middleware.OptionalAuth(identityService)
	limit := middleware.RateLimitBy(limiter, middleware.ClientKey)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", handler.NewHealthHandler(tdb.DB).Health)
	handler.NewAuthHandler(handler.AuthHandlerConfig{
		Auth:     authService,
		Sessions: identityService,
	}).RegisterRoutes(mux, protect, limit)
	handler.NewWineHandler(catalogService, service.NewImageURLBuilder(testStorageURL, testBucket)).RegisterRoutes(mux)
	handler.NewSavedWineHandler(savedWineService).RegisterRoutes(mux, protect)
	handler.NewCommunityHandler(communityService).RegisterRoutes(mux, func(next http.Handler) http.Handler {
		return protect(middleware.Idempotency(idempotency)(next))
	}, optional)
	handler.NewEventsHandler(hub).RegisterRoutes(mux, protect)

	return &stack{
		tdb:       tdb,
		fixtures:  fixtures.New(tdb.DB),
		jwt:       helpers.NewJWTHelper(jwtService),
		router:    middleware.Chain(mux, middleware.RequestID, middleware.Recovery),
		auth:      authService,
		identity:  identityService,
		savedWine: savedWineService,
		community: communityService,
		catalog:   catalogService,
		hub:       hub,
	}
}
