package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/forgo/sipmate/api/internal/config"
	"github.com/forgo/sipmate/api/internal/database"
	"github.com/forgo/sipmate/api/internal/handler"
	"github.com/forgo/sipmate/api/internal/jobs"
	"github.com/forgo/sipmate/api/internal/middleware"
	"github.com/forgo/sipmate/api/internal/repository"
	"github.com/forgo/sipmate/api/internal/service"
	"github.com/forgo/sipmate/api/pkg/jwt"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// Initialize structured logging
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: parseLogLevel(cfg.Server.LogLevel),
	}))
	slog.SetDefault(logger)

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		slog.Error("invalid configuration", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// Initialize database connection
	db := database.NewSurrealDB(database.Config{
		Host:         cfg.Database.Host,
		Port:         cfg.Database.Port,
		User:         cfg.Database.User,
		Password:     cfg.Database.Password,
		Namespace:    cfg.Database.Namespace,
		Database:     cfg.Database.Database,
		QueryTimeout: cfg.Database.QueryTimeout,
	})

	ctx := context.Background()
	if err := db.Connect(ctx); err != nil {
		slog.Error("failed to connect to database", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer func() { _ = db.Close() }()

	slog.Info("connected to database",
		slog.String("host", cfg.Database.Host),
		slog.String("database", cfg.Database.Database),
	)

	if cfg.Database.AutoMigrate {
		migrations, err := database.LoadMigrations(cfg.Database.MigrationsDir)
		if err != nil {
			slog.Error("failed to load migrations", slog.String("error", err.Error()))
			os.Exit(1)
		}
		if err := database.Migrate(ctx, db, migrations); err != nil {
			slog.Error("failed to apply migrations", slog.String("error", err.Error()))
			os.Exit(1)
		}
		slog.Info("schema up to date", slog.Int("migrations", len(migrations)))
	}

	// Initialize JWT service
	jwtService, err := jwt.NewService(jwt.Config{
		PrivateKeyPath: cfg.JWT.PrivateKeyPath,
		PublicKeyPath:  cfg.JWT.PublicKeyPath,
		Issuer:         cfg.JWT.Issuer,
		ExpirationMins: cfg.JWT.ExpirationMins,
	})
	if err != nil {
		slog.Error("failed to initialize JWT service", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// Initialize repositories
	accountRepo := repository.NewAccountRepository(db)
	profileRepo := repository.NewProfileRepository(db)
	tokenRepo := repository.NewTokenRepository(db)
	wineRepo := repository.NewWineRepository(db)
	savedWineRepo := repository.NewSavedWineRepository(db)
	communityRepo := repository.NewCommunityRepository(db)

	// Initialize services
	tokenService := service.NewTokenService(service.TokenServiceConfig{
		JWTService:      jwtService,
		TokenRepo:       tokenRepo,
		RefreshDuration: cfg.Identity.RefreshTTL,
	})

	identityService := service.NewIdentityService(service.IdentityServiceConfig{
		AccountRepo:       accountRepo,
		TokenService:      tokenService,
		MinPasswordLength: cfg.Identity.MinPasswordLength,
	})

	authService := service.NewAuthService(service.AuthServiceConfig{
		Identity:    identityService,
		ProfileRepo: profileRepo,
		AppDomain:   cfg.Identity.AppDomain,
	})
	defer authService.Close()

	catalogService := service.NewCatalogService(service.CatalogServiceConfig{
		WineRepo: wineRepo,
	})

	// Event hub for SSE; it hears auth changes after the saved wine stores do
	eventHub := service.NewEventHub()
	defer eventHub.Close()

	savedWineService := service.NewSavedWineService(service.SavedWineServiceConfig{
		SavedWineRepo: savedWineRepo,
		Wines:         catalogService,
		EventHub:      eventHub,
		Auth:          authService,
	})
	defer savedWineService.Close()

	unsubscribeHub := authService.OnAuthStateChange(eventHub.AuthStateListener())
	defer unsubscribeHub()

	communityService := service.NewCommunityService(service.CommunityServiceConfig{
		CommunityRepo: communityRepo,
		ProfileRepo:   profileRepo,
		Wines:         catalogService,
	})

	imageURLs := service.NewImageURLBuilder(cfg.Storage.PublicURL, cfg.Storage.Bucket)

	// Background jobs
	tokenSweeper := jobs.NewTokenSweeper(tokenRepo, cfg.Identity.SweepInterval)
	tokenSweeper.Start()
	defer tokenSweeper.Stop()

	// Rate limiter for credential endpoints
	authLimiter := middleware.NewRateLimiter(middleware.RateLimitConfig{
		Rate:   cfg.RateLimit.AuthRate,
		Window: cfg.RateLimit.AuthWindow,
	})
	defer authLimiter.Stop()

	// Replays retried community posts and comments
	idempotencyStore := middleware.NewIdempotencyStore(middleware.IdempotencyConfig{
		TTL: cfg.Server.IdempotencyTTL,
	})
	defer idempotencyStore.Stop()

	// Initialize handlers
	authHandler := handler.NewAuthHandler(handler.AuthHandlerConfig{
		Auth:     authService,
		Sessions: identityService,
	})
	wineHandler := handler.NewWineHandler(catalogService, imageURLs)
	savedWineHandler := handler.NewSavedWineHandler(savedWineService)
	communityHandler := handler.NewCommunityHandler(communityService)
	eventsHandler := handler.NewEventsHandler(eventHub)
	healthHandler := handler.NewHealthHandler(db)

	// Create router and register routes
	mux := http.NewServeMux()

	// Health check endpoint
	mux.HandleFunc("GET /health", healthHandler.Health)

	authMiddleware := middleware.Auth(identityService)
	optionalAuth := middleware.OptionalAuth(identityService)
	limitByClient := middleware.RateLimitBy(authLimiter, middleware.ClientKey)

	authHandler.RegisterRoutes(mux, authMiddleware, limitByClient)
	wineHandler.RegisterRoutes(mux)
	savedWineHandler.RegisterRoutes(mux, authMiddleware)
	communityHandler.RegisterRoutes(mux, func(next http.Handler) http.Handler {
		return authMiddleware(middleware.Idempotency(idempotencyStore)(next))
	}, optionalAuth)
	eventsHandler.RegisterRoutes(mux, authMiddleware)

	// Apply global middleware
	wrapped := middleware.Chain(
		mux,
		middleware.RequestID,
		middleware.Logger,
		middleware.Recovery,
		middleware.CORS(cfg.Server.AllowedOrigins),
		middleware.Compress,
	)

	// Create HTTP server
	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      wrapped,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  120 * time.Second,
	}

	// Start server in goroutine
	go func() {
		slog.Info("starting server",
			slog.String("port", cfg.Server.Port),
			slog.String("env", cfg.Server.Env),
		)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("server error", slog.String("error", err.Error()))
			os.Exit(1)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down server...")

	// Close event streams first so Shutdown does not wait on them
	eventHub.Close()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("server forced to shutdown", slog.String("error", err.Error()))
	}

	slog.Info("server exited")
}

func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
