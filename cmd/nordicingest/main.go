package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"NordicIngest/internal/app"
	"NordicIngest/internal/config"
	"NordicIngest/internal/logging"
)

func main() {
	once := flag.Bool("once", false, "run a single acquisition cycle and exit")
	flag.Parse()

	// Missing .env is fine; environment variables still apply.
	_ = godotenv.Load()

	cfg := config.MustLoad()
	logger := logging.New(cfg.Logging.Level, cfg.Logging.Format)

	application, err := app.New(cfg, logger)
	if err != nil {
		logger.Error("startup failed", "error", err)
		os.Exit(1)
	}
	defer application.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if *once {
		report := application.RunOnce(ctx)
		if len(report.Errors) > 0 {
			os.Exit(1)
		}
		return
	}

	if err := application.Run(ctx); err != nil {
		logger.Error("application stopped", "error", err)
		os.Exit(1)
	}
}
