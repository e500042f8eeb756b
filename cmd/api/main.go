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

	"github.com/campuspay/backend/internal/config"
	"github.com/campuspay/backend/internal/handler"
	"github.com/campuspay/backend/internal/logging"
	"github.com/campuspay/backend/internal/middleware"
	"github.com/campuspay/backend/internal/repository"
	"github.com/campuspay/backend/internal/service/ledger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logging.Init("campuspay-api", cfg.LogLevel, cfg.AppEnv)

	ctx := context.Background()
	db, err := repository.NewPostgresDB(ctx, cfg.DatabaseURL, repository.PoolConfig{
		MaxOpenConns:     cfg.DBMaxOpenConns,
		MaxIdleConns:     cfg.DBMaxIdleConns,
		ConnMaxLifetimeS: cfg.DBConnMaxLifetimeS,
		ConnMaxIdleTimeS: cfg.DBConnMaxIdleTimeS,
	})
	if err != nil {
		slog.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	users := repository.NewUserRepository(db)
	wallets := repository.NewWalletRepository(db)
	transactions := repository.NewTransactionRepository(db)
	loans := repository.NewLoanRepository(db)
	repayments := repository.NewLoanRepaymentRepository(db)
	idempotency := repository.NewIdempotencyRepository(db)

	engine := ledger.NewService(users, wallets, transactions, loans, repayments, db)

	// Hourly sweep of expired idempotency records.
	go func() {
		ticker := time.NewTicker(time.Hour)
		defer ticker.Stop()
		for range ticker.C {
			if n, err := idempotency.PurgeExpired(ctx); err != nil {
				slog.Error("idempotency purge failed", "error", err)
			} else if n > 0 {
				slog.Info("idempotency records purged", "removed", n)
			}
		}
	}()

	healthHandler := handler.NewHealthHandler(db)
	walletHandler := handler.NewWalletHandler(engine)
	loanHandler := handler.NewLoanHandler(engine)
	transactionHandler := handler.NewTransactionHandler(transactions)

	authed := func(h http.HandlerFunc) http.Handler {
		return middleware.Auth(cfg.JWTSecret)(h)
	}
	mutating := func(h http.HandlerFunc) http.Handler {
		return middleware.Auth(cfg.JWTSecret)(middleware.Idempotency(idempotency)(h))
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", healthHandler.Health)
	mux.Handle("GET /api/v1/wallet", authed(walletHandler.Get))
	mux.Handle("POST /api/v1/wallet/topup", mutating(walletHandler.TopUp))
	mux.Handle("POST /api/v1/wallet/transfer", mutating(walletHandler.Transfer))
	mux.Handle("GET /api/v1/loans", authed(loanHandler.List))
	mux.Handle("POST /api/v1/loans", mutating(loanHandler.Create))
	mux.Handle("POST /api/v1/loans/{id}/repay", mutating(loanHandler.Repay))
	mux.Handle("GET /api/v1/transactions", authed(transactionHandler.List))

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
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}
	slog.Info("server stopped")
}
