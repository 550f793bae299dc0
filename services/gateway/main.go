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

	"github.com/cloudmarket/backend/pkg/config"
	"github.com/cloudmarket/backend/pkg/logger"
	mw "github.com/cloudmarket/backend/pkg/middleware"
	"github.com/cloudmarket/backend/services/gateway/internal/handlers"
	"github.com/cloudmarket/backend/services/gateway/internal/proxy"
)

const upstreamTimeout = 30 * time.Second

func main() {
	cfg := config.Load()

	authProxy := proxy.NewServiceProxy("auth", cfg.Services.AuthURL, upstreamTimeout)
	itemsProxy := proxy.NewServiceProxy("items", cfg.Services.ItemsURL, upstreamTimeout)
	h := handlers.New(authProxy, itemsProxy)

	r := chi.NewRouter()

	// Global middleware
	r.Use(mw.RequestID)
	r.Use(mw.ServiceName("gateway"))
	r.Use(mw.Logging)
	r.Use(mw.Recover)
	r.Use(mw.CORS(cfg.CORS.AllowedOrigins))
	r.Use(mw.Health)

	h.Routes(r)

	srv := &http.Server{
		Addr:         ":" + cfg.Server.GatewayPort,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		<-ctx.Done()
		logger.Info("Shutting down gateway service...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("Gateway shutdown error", "error", err)
		}
	}()

	logger.Info("Starting gateway service", "port", cfg.Server.GatewayPort,
		"auth", cfg.Services.AuthURL, "items", cfg.Services.ItemsURL)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Gateway server error", "error", err)
		os.Exit(1)
	}
}
