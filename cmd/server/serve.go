package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"portfolio-web/internal/api"
	"portfolio-web/internal/auth"
)

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, logger, err := setup()
	if err != nil {
		return err
	}
	defer logger.Sync()

	logger.Info("Starting portfolio service", zap.String("feed_url", cfg.Feed.URL))
	if !cfg.AdminEnabled() {
		logger.Info("Admin endpoints disabled: set auth.jwt_secret and auth.admin_password_hash to enable")
	}

	feedService := newFeedService(cfg, logger)
	authService := auth.NewService(cfg.Auth.JWTSecret, cfg.Auth.JWTExpiration, cfg.Auth.AdminUser, cfg.Auth.AdminPasswordHash)

	gin.SetMode(gin.ReleaseMode)
	router := api.NewRouter(api.Services{
		Auth:           authService,
		Feed:           feedService,
		Fallback:       cfg.Feed.Fallback,
		CacheTTL:       cfg.Feed.CacheTTL,
		AllowedOrigins: cfg.Server.AllowedOrigins,
		Logger:         logger,
	})

	srv := &http.Server{
		Addr:         cfg.Server.Address,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Listening", zap.String("address", cfg.Server.Address))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	// Warm the cache so the first visitor does not wait on the upstream.
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), cfg.Feed.Timeout)
		defer cancel()
		if items, err := feedService.Recent(ctx); err == nil {
			logger.Info("Feed cache warmed", zap.Int("items", len(items)))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	select {
	case err, ok := <-errCh:
		if ok {
			logger.Error("Server failed", zap.Error(err))
			return err
		}
		return nil
	case <-quit:
	}

	logger.Info("Shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("Shutdown failed", zap.Error(err))
		return err
	}
	logger.Info("Server stopped")
	return nil
}
