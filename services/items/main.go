package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/cloudmarket/backend/pkg/cache"
	"github.com/cloudmarket/backend/pkg/config"
	"github.com/cloudmarket/backend/pkg/database"
	"github.com/cloudmarket/backend/pkg/events"
	"github.com/cloudmarket/backend/pkg/logger"
	mw "github.com/cloudmarket/backend/pkg/middleware"
	"github.com/cloudmarket/backend/pkg/session"
	"github.com/cloudmarket/backend/services/items/internal/handlers"
	"github.com/cloudmarket/backend/services/items/internal/repository"
	"github.com/cloudmarket/backend/services/items/internal/service"
)

func main() {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.Error("Invalid configuration", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Connect to database
	pool, err := database.Connect(ctx, cfg.Database)
	if err != nil {
		logger.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	// Redis remembers processed Idempotency-Keys for the admin endpoints
	redisClient, err := cache.Connect(ctx, cfg.Redis.URL)
	if err != nil {
		logger.Error("Failed to connect to redis", "error", err)
		os.Exit(1)
	}
	defer redisClient.Close()

	eventBus, err := events.NewNATSEventBus(cfg.NATS.URL, "items")
	if err != nil {
		logger.Error("Failed to connect to NATS", "error", err)
		os.Exit(1)
	}
	defer eventBus.Close()

	signer, err := session.NewSigner(cfg.Session.Secret, cfg.Session.TTL)
	if err != nil {
		logger.Error("Failed to create session verifier", "error", err)
		os.Exit(1)
	}

	itemService := service.NewItemService(
		repository.NewItemRepository(pool),
		repository.NewProductRepository(pool),
		eventBus,
	)
	h := handlers.New(itemService, signer, cache.NewRedisCache(redisClient, "items:"), cfg)

	r := chi.NewRouter()
	r.Use(mw.RequestID)
	r.Use(mw.ServiceName("items"))
	r.Use(mw.Logging)
	r.Use(mw.Recover)
	r.Use(mw.CORS(cfg.CORS.AllowedOrigins))
	r.Use(mw.Health)
	h.Routes(r)

	srv := &http.Server{
		Addr:         ":" + cfg.Server.ItemsPort,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Graceful shutdown
	go func() {
		<-ctx.Done()
		logger.Info("Shutting down items service...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("Items service shutdown error", "error", err)
		}
	}()

	logger.Info("Starting items service", "port", cfg.Server.ItemsPort)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Items service error", "error", err)
		os.Exit(1)
	}
}
