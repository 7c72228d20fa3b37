package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"

	"github.com/mivanov-dev/bank-cards/internal/card"
	"github.com/mivanov-dev/bank-cards/internal/config"
	"github.com/mivanov-dev/bank-cards/internal/handler"
	"github.com/mivanov-dev/bank-cards/internal/logging"
	"github.com/mivanov-dev/bank-cards/internal/middleware"
	"github.com/mivanov-dev/bank-cards/internal/repository"
	"github.com/mivanov-dev/bank-cards/internal/service/cards"
	"github.com/mivanov-dev/bank-cards/internal/service/transfer"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logging.Init("bank-cards-api", cfg.LogLevel, cfg.AppEnv)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	db, err := repository.NewPostgresDB(ctx, cfg.DatabaseURL, repository.PoolConfig{
		MaxOpenConns:     cfg.DBMaxOpenConns,
		MaxIdleConns:     cfg.DBMaxIdleConns,
		ConnMaxLifetimeS: cfg.DBConnMaxLifetimeS,
		ConnMaxIdleTimeS: cfg.DBConnMaxIdleTimeS,
	})
	cancel()
	if err != nil {
		slog.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	encKey, err := cfg.EncryptionKey()
	if err != nil {
		slog.Error("invalid card encryption key", "error", err)
		os.Exit(1)
	}
	vault, err := card.NewVault(encKey)
	if err != nil {
		slog.Error("failed to build card vault", "error", err)
		os.Exit(1)
	}
	gen, err := card.NewNumberGenerator(cfg.CardBIN)
	if err != nil {
		slog.Error("invalid card BIN", "error", err)
		os.Exit(1)
	}

	userRepo := repository.NewUserRepository(db)
	accountRepo := repository.NewAccountRepository(db)
	cardRepo := repository.NewCardRepository(db)
	transferRepo := repository.NewTransferRepository(db)

	cardSvc := cards.NewService(cardRepo, accountRepo, userRepo, vault, gen, db, cfg)
	transferSvc := transfer.NewService(cardRepo, accountRepo, transferRepo, vault, db)

	jwtExpiry := time.Duration(cfg.JWTExpiryMin) * time.Minute
	authHandler := handler.NewAuthHandler(userRepo, cfg.JWTSecret, jwtExpiry)
	cardHandler := handler.NewCardHandler(cardSvc)
	transferHandler := handler.NewTransferHandler(transferSvc)
	adminHandler := handler.NewAdminHandler(cardSvc, userRepo)
	healthHandler := handler.NewHealthHandler(db)

	authed := middleware.Auth(cfg.JWTSecret)
	admin := func(h http.HandlerFunc) http.Handler {
		return authed(middleware.RequireAdmin(h))
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /health/live", healthHandler.Liveness)
	mux.HandleFunc("GET /health/ready", healthHandler.Readiness)

	mux.HandleFunc("POST /api/v1/auth/register", authHandler.Register)
	mux.HandleFunc("POST /api/v1/auth/login", authHandler.Login)

	mux.Handle("GET /api/v1/cards", authed(http.HandlerFunc(cardHandler.List)))
	mux.Handle("GET /api/v1/cards/{id}/balance", authed(http.HandlerFunc(cardHandler.Balance)))
	mux.Handle("POST /api/v1/cards/{id}/block", authed(http.HandlerFunc(cardHandler.Block)))
	mux.Handle("POST /api/v1/transfers", authed(http.HandlerFunc(transferHandler.Create)))

	mux.Handle("POST /api/v1/admin/cards", admin(adminHandler.ProvisionCard))
	mux.Handle("GET /api/v1/admin/cards", admin(adminHandler.ListAllCards))
	mux.Handle("PATCH /api/v1/admin/users/{userID}/cards/{cardID}/status", admin(adminHandler.UpdateCardStatus))
	mux.Handle("DELETE /api/v1/admin/users/{userID}/cards/{cardID}", admin(adminHandler.DeleteCard))
	mux.Handle("GET /api/v1/admin/users", admin(adminHandler.ListUsers))
	mux.Handle("GET /api/v1/admin/users/{id}/cards", admin(adminHandler.ListUserCards))

	root := middleware.RequestID(middleware.Logging(middleware.Recovery(mux)))

	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           root,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		slog.Info("server started", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down server")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}
	slog.Info("server stopped")
}
