package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/adgenie/backend/internal/api"
	"github.com/adgenie/backend/internal/assets"
	"github.com/adgenie/backend/internal/auth"
	"github.com/adgenie/backend/internal/brands"
	"github.com/adgenie/backend/internal/cache"
	"github.com/adgenie/backend/internal/config"
	"github.com/adgenie/backend/internal/db"
	"github.com/adgenie/backend/internal/generation"
	"github.com/adgenie/backend/internal/health"
	"github.com/adgenie/backend/internal/logger"
	"github.com/adgenie/backend/internal/projects"
	"github.com/adgenie/backend/internal/storage"
	"github.com/adgenie/backend/internal/websocket"
)

const version = "1.0.0"

func main() {
	cfg := config.Load()
	log := logger.WithComponent("server")
	ctx := context.Background()

	database, err := db.New(cfg.DBHost, cfg.DBPort, cfg.DBUser, cfg.DBPassword, cfg.DBName)
	if err != nil {
		log.Error(ctx, "failed to connect to database", err)
		os.Exit(1)
	}
	defer database.Close()

	if err := database.Migrate(); err != nil {
		log.Error(ctx, "failed to run migrations", err)
		os.Exit(1)
	}

	redisCache, err := cache.New(cfg.RedisURL)
	if err != nil {
		log.Error(ctx, "failed to connect to redis", err)
		os.Exit(1)
	}
	defer redisCache.Close()

	objectStore, err := storage.New(cfg)
	if err != nil {
		log.Error(ctx, "failed to connect to object storage", err)
		os.Exit(1)
	}
	if err := objectStore.EnsureBucket(ctx); err != nil {
		log.Error(ctx, "failed to ensure bucket", err)
		os.Exit(1)
	}

	presigner, err := storage.NewPresigner(cfg)
	if err != nil {
		log.Error(ctx, "failed to initialize presigner", err)
		os.Exit(1)
	}

	// Repositories
	userRepo := db.NewUserRepository(database)
	tokenRepo := db.NewTokenRepository(database)
	resetRepo := db.NewResetRepository(database)
	brandRepo := db.NewBrandRepository(database)
	projectRepo := db.NewProjectRepository(database)
	scriptRepo := db.NewScriptRepository(database)
	assetRepo := db.NewAssetRepository(database)

	// Auth
	codec := auth.NewCodec(cfg.JWTSecret, cfg.AccessTokenTTL, cfg.RefreshTokenTTL)
	loginLimiter := auth.NewSlidingWindowLimiter(cfg.LoginMaxAttempts, cfg.LoginWindow)
	resetLimiter := auth.NewSlidingWindowLimiter(cfg.LoginMaxAttempts, cfg.LoginWindow)
	blacklist := cache.NewTokenBlacklist(redisCache)
	authService := auth.NewService(userRepo, tokenRepo, resetRepo, codec,
		loginLimiter, resetLimiter, blacklist, cfg.ResetCodeTTL)

	// Periodic cleanup of expired refresh tokens and reset codes.
	cleanupCtx, stopCleanup := context.WithCancel(ctx)
	defer stopCleanup()
	go func() {
		ticker := time.NewTicker(time.Hour)
		defer ticker.Stop()
		for {
			select {
			case <-cleanupCtx.Done():
				return
			case <-ticker.C:
				if err := authService.PurgeExpired(cleanupCtx); err != nil {
					log.Warn(cleanupCtx, "credential cleanup failed", map[string]any{"error": err.Error()})
				}
			}
		}
	}()

	// Generation pipeline
	queue := generation.NewQueue(redisCache.Client())
	generationService := generation.NewService(queue, projectRepo, nil, &generation.ServiceConfig{
		WorkerCount: cfg.WorkerCount,
	})
	generationService.Start()

	// Domain services
	brandService := brands.NewService(brandRepo, projectRepo, objectStore)
	projectService := projects.NewService(projectRepo, scriptRepo, brandRepo, generationService)
	assetService := assets.NewService(assetRepo, objectStore, presigner)

	// Health checks
	checker := health.NewChecker(version, 5*time.Second)
	checker.Register("database", health.DatabaseCheck(database.DB))
	checker.Register("redis", health.RedisCheck(redisCache.Client()))
	checker.RegisterOptional("storage", objectStore.Ping)

	router := api.NewRouter(api.Deps{
		AuthService:   authService,
		Auth:          auth.NewHandlers(authService),
		Brands:        brands.NewHandlers(brandService),
		Projects:      projects.NewHandlers(projectService),
		Assets:        assets.NewHandlers(assetService),
		Generation:    generation.NewHandlers(generationService),
		Health:        health.NewHandler(checker),
		WebSocket:     websocket.NewHandler(authService, generationService, cfg.FrontendOrigin),
		AllowedOrigin: cfg.FrontendOrigin,
	})

	server := &http.Server{
		Addr:              cfg.ServerAddr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	go func() {
		log.Info(ctx, "server starting", map[string]any{"addr": cfg.ServerAddr})
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error(ctx, "server failed", err)
			os.Exit(1)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	log.Info(ctx, "shutting down")

	shutdownCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error(shutdownCtx, "server shutdown failed", err)
	}
	if err := generationService.Stop(shutdownCtx); err != nil {
		log.Error(shutdownCtx, "worker pool shutdown failed", err)
	}

	log.Info(ctx, "server stopped")
}
