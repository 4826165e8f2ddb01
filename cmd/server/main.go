package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"voxrelay/internal/server"
	"voxrelay/pkg/config"
	"voxrelay/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	if err := logger.Init(cfg.Env); err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	log := logger.Named("server")

	// A single positional argument overrides the bind address.
	addr := cfg.BindAddr
	if len(os.Args) > 1 {
		addr = os.Args[1]
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	srv := server.New(addr, log)
	if err := srv.Run(ctx); err != nil {
		log.Error("server failed", zap.Error(err))
		logger.Sync()
		os.Exit(1)
	}
}
