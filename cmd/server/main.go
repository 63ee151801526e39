package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/Tyrowin/gorelay/internal/server"
)

func main() {
	cfg, err := server.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger, err := server.NewLogger(cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("starting relay server",
		zap.String("addr", cfg.Addr()),
		zap.String("static_dir", cfg.StaticDir))

	app := server.NewApp(cfg, logger)
	if err := app.Start(); err != nil {
		logger.Fatal("failed to start server", zap.Error(err))
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logger.Info("received shutdown signal", zap.Stringer("signal", sig))
	case err := <-app.Errors():
		logger.Error("server failed", zap.Error(err))
	}

	if err := app.Shutdown(); err != nil {
		logger.Error("shutdown error", zap.Error(err))
	}
	logger.Info("relay server shut down complete")
}
