package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"paperbroker/internal/cli"
	"paperbroker/internal/config"
	"paperbroker/internal/logging"
)

func main() {
	cfg, err := config.Load(os.Getenv("PAPERBROKER_CONFIG_DIR"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger := logging.NewLoggerWithConfig(cfg.LogConfig())

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	root := cli.NewRootCmd(cfg, logger)
	if err := root.ExecuteContext(logging.WithLogger(ctx, logger)); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		cancel()
		os.Exit(1)
	}
}
