package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"github.com/tcglibrary/catalog/internal/auth"
	"github.com/tcglibrary/catalog/internal/banlist"
	"github.com/tcglibrary/catalog/internal/catalog"
	"github.com/tcglibrary/catalog/internal/config"
	"github.com/tcglibrary/catalog/internal/deck"
	"github.com/tcglibrary/catalog/internal/health"
	"github.com/tcglibrary/catalog/internal/logger"
	"github.com/tcglibrary/catalog/internal/mailer"
	"github.com/tcglibrary/catalog/internal/metrics"
	appmw "github.com/tcglibrary/catalog/internal/middleware"
	"github.com/tcglibrary/catalog/internal/repository"
	"github.com/tcglibrary/catalog/internal/sanitizer"
)

const version = "1.0.0"

func main() {
	// A missing .env is fine; the environment wins either way
	_ = godotenv.Load()

	log := logger.New(logger.DefaultConfig())
	slog.SetDefault(log)

	cfg := config.Load()
	if cfg.Auth.JWTSecret == "" {
		log.Error("JWT_SECRET environment variable is required")
		os.Exit(1)
	}

	dbPool, err := setupDatabase(cfg, log)
	if err != nil {
		log.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer dbPool.Close()

	// Catalog tables go through sqlx on the same pool
	catalogDB := sqlx.NewDb(stdlib.OpenDBFromPool(dbPool), "pgx")
	defer catalogDB.Close()

	redisClient := setupRedis(cfg, log)
	if redisClient != nil {
		defer redisClient.Close()
	}

	// Repositories
	userRepo := repository.NewUserRepository(dbPool)
	sessionRepo := repository.NewSessionRepository(dbPool)
	resetRepo := repository.NewResetTokenRepository(dbPool)
	deckRepo := repository.NewDeckRepo(dbPool)
	likeRepo := repository.NewLikeRepo(dbPool)
	cardRepo := repository.NewCardRepo(catalogDB)
	banlistRepo := repository.NewBanlistRepo(catalogDB)
	expansionRepo := repository.NewExpansionRepo(catalogDB)

	// Services
	tokenService := auth.NewTokenService(auth.TokenServiceConfig{
		Secret: cfg.Auth.JWTSecret,
		Expiry: cfg.Auth.SessionTTL,
		Issuer: cfg.Auth.Issuer,
	})
	passwordValidator := auth.NewPasswordValidator()
	authService := auth.NewAuthService(userRepo, sessionRepo, tokenService, passwordValidator, log)

	resetMailer, err := mailer.New(cfg.Mail, cfg.Server.BaseURL, log)
	if err != nil {
		log.Error("Invalid mail configuration", "error", err)
		os.Exit(1)
	}
	resetService := auth.NewResetService(
		userRepo, sessionRepo, resetRepo, passwordValidator, resetMailer, cfg.Auth.ResetTokenTTL, log,
	)

	var cache banlist.Cache = banlist.NewMemoryCache()
	if redisClient != nil {
		cache = banlist.NewRedisCache(redisClient)
	}
	banlistService := banlist.NewService(banlistRepo, cardRepo, expansionRepo, cache, log)
	catalogService := catalog.NewService(cardRepo, expansionRepo, banlistService, cfg.Catalog.BatchSize, log)
	deckService := deck.NewService(deckRepo, likeRepo, cardRepo, sanitizer.NewTextSanitizer(), log)

	// Background jobs
	sweeper := auth.NewSessionSweeper(authService, resetService, cfg.Auth.SweepInterval, log)
	sweeper.Start()
	defer sweeper.Stop()

	dbCollector := metrics.NewDBStatsCollector(dbPool, catalogDB.DB, log)
	dbCollector.Start(15 * time.Second)
	defer dbCollector.Stop()

	// Middleware
	sessions := appmw.NewAuthMiddleware(authService, log)
	loginLimiter := appmw.NewLoginRateLimiter()
	defer loginLimiter.Stop()
	forgotLimiter := appmw.NewForgotPasswordRateLimiter()
	defer forgotLimiter.Stop()

	healthHandler := health.NewHandler(health.Config{
		DBPool:      dbPool,
		CatalogDB:   catalogDB,
		RedisClient: redisClient,
		Version:     version,
	})

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(appmw.StructuredLogger(log))
	r.Use(metrics.Middleware)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.Server.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "X-Request-Id"},
		ExposedHeaders:   []string{"X-RateLimit-Limit", "X-RateLimit-Remaining", "X-RateLimit-Reset"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	healthHandler.RegisterRoutes(r)
	r.Handle("/metrics", metrics.Handler())

	auth.RegisterRoutes(r, auth.NewAuthHandler(authService, resetService, cfg.Server.IsProduction(), log), auth.RouteMiddleware{
		Authenticate: sessions.Authenticate,
		LoginLimit:   loginLimiter.Middleware,
		ForgotLimit:  forgotLimiter.Middleware,
	})
	catalog.RegisterRoutes(r, catalog.NewHandler(catalogService, log), sessions.RequireAdmin)
	banlist.RegisterRoutes(r, banlist.NewHandler(banlistService, log), sessions.RequireAdmin)
	deck.RegisterRoutes(r, deck.NewHandler(deckService, log), deck.RouteMiddleware{
		Authenticate: sessions.Authenticate,
		Optional:     sessions.Optional,
	})

	addr := cfg.Server.Host + ":" + cfg.Server.Port
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 65 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info("Starting server", "addr", addr, "env", cfg.Server.Environment)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("Server failed", "error", err)
			os.Exit(1)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down server")
	healthHandler.SetReady(false)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Error("Server forced to shutdown", "error", err)
	}

	log.Info("Server exited")
}

// setupDatabase creates and configures the database connection pool
func setupDatabase(cfg *config.Config, log *slog.Logger) (*pgxpool.Pool, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	poolConfig, err := pgxpool.ParseConfig(cfg.Database.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to parse database config: %w", err)
	}

	poolConfig.MaxConns = 25
	poolConfig.MinConns = 2
	poolConfig.MaxConnLifetime = 5 * time.Minute
	poolConfig.MaxConnIdleTime = 1 * time.Minute
	poolConfig.HealthCheckPeriod = 30 * time.Second

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create database pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	log.Info("Connected to database", "db", cfg.Database.DBName, "host", cfg.Database.Host, "port", cfg.Database.Port)
	return pool, nil
}

// setupRedis returns nil when no address is configured or the server does
// not answer; the banlist cache then stays in memory
func setupRedis(cfg *config.Config, log *slog.Logger) *redis.Client {
	if cfg.Redis.Addr == "" {
		log.Info("Redis not configured; using in-memory banlist cache")
		return nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		log.Warn("Redis unreachable; using in-memory banlist cache", "addr", cfg.Redis.Addr, "error", err)
		client.Close()
		return nil
	}

	log.Info("Connected to Redis", "addr", cfg.Redis.Addr)
	return client
}
