package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"fx-advisor/internal/config"
	"fx-advisor/internal/logging"

	"github.com/joho/godotenv"
)

func main() {
	_ = godotenv.Load()

	cfg := config.Load()
	logger, err := logging.New(logging.Config{Level: "warn", Format: "console", Output: os.Stderr})
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	root := newRootCmd(cfg, func(ctx context.Context) (*services, func(), error) {
		return buildServices(ctx, cfg, logger)
	})
	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
