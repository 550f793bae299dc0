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

	"github.com/cloudmarket/backend/pkg/accounts"
	"github.com/cloudmarket/backend/pkg/cache"
	"github.com/cloudmarket/backend/pkg/config"
	"github.com/cloudmarket/backend/pkg/database"
	"github.com/cloudmarket/backend/pkg/events"
	"github.com/cloudmarket/backend/pkg/logger"
	mw "github.com/cloudmarket/backend/pkg/middleware"
	"github.com/cloudmarket/backend/pkg/session"
	"github.com/cloudmarket/backend/pkg/telegram"
	"github.com/cloudmarket/backend/services/auth/internal/handlers"
	"github.com/cloudmarket/backend/services/auth/internal/messenger"
	"github.com/cloudmarket/backend/services/auth/internal/repository"
	"github.com/cloudmarket/backend/services/auth/internal/service"
)

const janitorInterval = 15 * time.Minute

func main() {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.Error("Invalid configuration", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := database.Connect(ctx, cfg.Database)
	if err != nil {
		logger.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	redisClient, err := cache.Connect(ctx, cfg.Redis.URL)
	if err != nil {
		logger.Error("Failed to connect to redis", "error", err)
		os.Exit(1)
	}
	defer redisClient.Close()

	eventBus, err := events.NewNATSEventBus(cfg.NATS.URL, "auth")
	if err != nil {
		logger.Error("Failed to connect to NATS", "error", err)
		os.Exit(1)
	}
	defer eventBus.Close()

	signer, err := session.NewSigner(cfg.Session.Secret, cfg.Session.TTL)
	if err != nil {
		logger.Error("Failed to create session signer", "error", err)
		os.Exit(1)
	}

	var msg messenger.Service
	if cfg.TelegramEnabled() {
		msg = messenger.NewTelegramMessenger(telegram.NewClient(cfg.Telegram.BotToken, cfg.Telegram.APIBaseURL, cfg.Telegram.SendTimeout))
	} else {
		logger.Warn("Telegram delivery disabled, login codes will be logged")
		msg = messenger.NewDevMessenger()
	}

	otpRepo := repository.NewOTPRepository(pool)
	rateLimitRepo := repository.NewRateLimitRepository(pool)
	directory := accounts.NewDirectory(pool)

	otpService := service.NewOTPService(otpRepo, rateLimitRepo, directory, msg, signer, eventBus, cfg.OTP)
	sessionService := service.NewSessionService(directory, cache.NewRedisCache(redisClient, "auth:"), signer, eventBus, cfg)

	h := handlers.New(otpService, sessionService, rateLimitRepo, signer, cfg)

	r := chi.NewRouter()
	r.Use(mw.RequestID)
	r.Use(mw.ServiceName("auth"))
	r.Use(mw.Logging)
	r.Use(mw.Recover)
	r.Use(mw.CORS(cfg.CORS.AllowedOrigins))
	r.Use(mw.Health)
	h.Routes(r)

	go service.RunJanitor(ctx, janitorInterval, otpRepo, rateLimitRepo)

	srv := &http.Server{
		Addr:         ":" + cfg.Server.AuthPort,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		<-ctx.Done()
		logger.Info("Shutting down auth service...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("Auth service shutdown error", "error", err)
		}
	}()

	logger.Info("Starting auth service", "port", cfg.Server.AuthPort)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Auth service error", "error", err)
		os.Exit(1)
	}
}
