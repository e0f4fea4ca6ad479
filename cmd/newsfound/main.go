package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/taoi11/somenewsfound/internal/app"
	"github.com/taoi11/somenewsfound/internal/config"
	"github.com/taoi11/somenewsfound/internal/logging"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg := config.Load()
	logger := logging.New(cfg.Logging.Level, cfg.Environment)

	application, err := app.New(cfg, logger)
	if err != nil {
		logger.Error("application setup failed", "error", err)
		os.Exit(1)
	}

	if err := application.Run(ctx); err != nil {
		logger.Error("application stopped", "error", err)
		os.Exit(1)
	}
}
