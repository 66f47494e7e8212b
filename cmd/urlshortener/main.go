package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/msiSibs/urlShortener/internal/app"
	"github.com/msiSibs/urlShortener/internal/config"
	"github.com/msiSibs/urlShortener/internal/logger"
)

func main() {
	cfg, err := config.FromEnv()
	if err != nil {
		boot := logger.Init("production", "info")
		boot.Fatal().Err(err).Msg("config")
	}
	log := logger.Init(cfg.Env, cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("boot")
	}

	log.Info().
		Str("base_url", cfg.BaseURL).
		Str("store", cfg.StoreDriver).
		Int("code_length", cfg.CodeLength).
		Int("default_expiry_days", cfg.DefaultExpiryDays).
		Msg("urlshortener starting")

	// Blocks until SIGINT/SIGTERM.
	runErr := a.Run(ctx)
	if err := a.Close(); err != nil {
		log.Warn().Err(err).Msg("close store")
	}
	if runErr != nil {
		log.Fatal().Err(runErr).Msg("server")
	}
	log.Info().Msg("server gracefully stopped")
}
