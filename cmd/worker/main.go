package main

import (
	"context"
	"os/signal"
	"syscall"

	"arbitrage-detector/internal/bootstrap"
	"arbitrage-detector/internal/config"
	"arbitrage-detector/internal/infrastructure/logx"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

func init() { _ = godotenv.Load() }

func main() {
	cfg := config.Load()
	log, err := logx.Setup(cfg.LogLevel, cfg.Env)
	if log == nil {
		panic(err)
	}
	if err != nil {
		log.Warn("unknown LOG_LEVEL, using info", zap.String("level", cfg.LogLevel))
	}
	defer func() { _ = log.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.Build(ctx, cfg, log)
	defer app.Close()
	if err != nil {
		log.Fatal("bootstrap", zap.Error(err))
	}

	app.Worker().Start(ctx)
	log.Info("worker.stopped")
}
