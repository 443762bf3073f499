package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"ledger/internal/app/bootstrap"
	"ledger/internal/config"
	"ledger/internal/handler/cli"

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

	if err := run(cfg, appLogger); err != nil {
		appLogger.Error("Ledger menu exited with error", zap.Error(err))
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, appLogger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	storage, err := bootstrap.OpenStorage(ctx, cfg, appLogger)
	if err != nil {
		return err
	}
	defer func() {
		if err := storage.Close(); err != nil {
			appLogger.Error("Error closing database connection", zap.Error(err))
		}
	}()

	service, err := bootstrap.NewLedgerService(cfg, storage.Store, appLogger)
	if err != nil {
		return err
	}

	stopOutbox, err := bootstrap.StartOutbox(ctx, cfg, storage, appLogger)
	if err != nil {
		return err
	}
	defer stopOutbox()

	menu := cli.NewMenu(service, os.Stdin, os.Stdout, appLogger.With(zap.String("component", "Menu")))
	if err := menu.Run(ctx); err != nil && ctx.Err() == nil {
		return err
	}
	return nil
}
