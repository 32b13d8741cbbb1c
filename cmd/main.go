// Command rsibot runs RSI paper-trading strategies controlled over Telegram and HTTP.
//
// Usage:
//
//	rsibot                      (stock rsi-simple and rsi-delay strategies)
//	rsibot --config config.yaml
//	rsibot --setup              (interactive wizard, writes config.gen.yaml)
//
// Environment variables (a .env file is loaded when present):
//
//	TELEGRAM_TOKEN, TELEGRAM_CHAT_ID
//	For Binance: BINANCE_API_KEY, BINANCE_API_SECRET (optional, market data is public)
//	For Bybit: BYBIT_API_KEY, BYBIT_API_SECRET
//	For Hyperliquid: HYPERLIQUID_PRIVATE_KEY, HYPERLIQUID_BASE_URL
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/vadiminshakov/rsibot/config"
	"github.com/vadiminshakov/rsibot/internal"
	"github.com/vadiminshakov/rsibot/internal/clients"
	"github.com/vadiminshakov/rsibot/internal/setup"
)

func main() {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Printf("failed to load .env: %v", err)
	}

	cfg, flags, err := config.Get()
	if err != nil {
		log.Fatal(err)
	}

	if flags.Setup {
		if err := setup.RunTUI(); err != nil {
			log.Fatal(err)
		}
		cfg, err = config.Load(setup.OutputFile)
		if err != nil {
			log.Fatal(err)
		}
		if err := config.ApplyEnv(&cfg, os.Getenv); err != nil {
			log.Fatal(err)
		}
	}

	logger, err := newLogger(flags.Debug)
	if err != nil {
		log.Fatal(err)
	}
	defer logger.Sync()

	client, err := clients.FromEnv(cfg.Platform, os.Getenv)
	if err != nil {
		logger.Fatal("failed to create exchange client", zap.String("platform", cfg.Platform), zap.Error(err))
	}

	app, err := internal.NewApp(logger, cfg, client)
	if err != nil {
		logger.Fatal("failed to build strategies", zap.Error(err))
	}
	defer app.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info("rsibot started",
		zap.String("platform", cfg.Platform),
		zap.Strings("strategies", app.Registry().Names()))

	if err := app.Run(ctx); err != nil {
		logger.Error("rsibot stopped with error", zap.Error(err))
		return
	}
	logger.Info("rsibot stopped")
}

func newLogger(debug bool) (*zap.Logger, error) {
	if debug {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}
