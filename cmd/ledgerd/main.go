package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"ledger/internal/app/bootstrap"
	"ledger/internal/config"
	ledger_http "ledger/internal/handler/http/ledger"

	"go.uber.org/zap"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading configuration: %v\n", err)
		os.Exit(1)
	}

	appLogger, err := bootstrap.NewLogger(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
	defer appLogger.Sync()
	appLogger.Info("Ledger service starting...")

	ctxMain, cancelMain := context.WithCancel(context.Background())
	defer cancelMain()

	storage, err := bootstrap.OpenStorage(ctxMain, cfg, appLogger)
	if err != nil {
		appLogger.Fatal("Failed to open ledger storage", zap.Error(err))
	}
	defer func() {
		if err := storage.Close(); err != nil {
			appLogger.Error("Error closing database connection", zap.Error(err))
		} else {
			appLogger.Info("Storage closed.")
		}
	}()

	service, err := bootstrap.NewLedgerService(cfg, storage.Store, appLogger)
	if err != nil {
		appLogger.Fatal("Failed to initialize ledger service", zap.Error(err))
	}
	appLogger.Info("Ledger Service initialized.")

	stopOutbox, err := bootstrap.StartOutbox(ctxMain, cfg, storage, appLogger)
	if err != nil {
		appLogger.Fatal("Failed to start outbox processor", zap.Error(err))
	}

	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:           ledger_http.NewRouter(service, appLogger.With(zap.String("component", "HTTPHandler"))),
		ReadHeaderTimeout: 5 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		appLogger.Info("Starting HTTP server", zap.String("address", httpServer.Addr))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		appLogger.Info("Shutting down application...", zap.String("signal", sig.String()))
	case err := <-serverErr:
		appLogger.Error("HTTP server failed", zap.Error(err))
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		appLogger.Error("HTTP server graceful shutdown failed", zap.Error(err))
	} else {
		appLogger.Info("HTTP server gracefully shut down.")
	}

	cancelMain()
	stopOutbox()

	appLogger.Info("Application gracefully shut down.")
}
