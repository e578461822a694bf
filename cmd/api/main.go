package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"delayrisk/adapters/api"
	"delayrisk/internal"
	"delayrisk/internal/config"
	"delayrisk/internal/container"

	"github.com/joho/godotenv"
)

func main() {
	_ = godotenv.Load()

	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logger := internal.NewLoggerWithFormat(internal.ParseLogLevel(cfg.Logging.Level), cfg.Logging.Format)
	defer logger.Sync()

	c, err := container.New(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer c.Shutdown(context.Background())

	svc, err := c.InferenceService(ctx, "")
	if err != nil {
		return fmt.Errorf("load model: %w", err)
	}

	serverCfg := api.DefaultServerConfig()
	serverCfg.Addr = ":" + cfg.Server.Port
	serverCfg.GinMode = cfg.Server.GinMode

	return api.NewServer(svc, serverCfg, logger).Start(ctx)
}
