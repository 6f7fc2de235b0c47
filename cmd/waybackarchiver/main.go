package main

import (
	"context"
	"os"

	"WaybackArchiver/internal/app"
	"WaybackArchiver/internal/config"
	"WaybackArchiver/internal/logging"
)

func main() {
	ctx := context.Background()
	cfg := config.Load()
	logger := logging.New(cfg.Logging.Level)

	application := app.New(cfg, logger)

	inputPath := ""
	if len(os.Args) > 1 {
		inputPath = os.Args[1]
	}

	if err := application.Run(ctx, inputPath); err != nil {
		logger.Error("application stopped", "error", err)
		os.Exit(1)
	}
}
