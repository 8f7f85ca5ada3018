package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"

	"arbitrage-detector/internal/bootstrap"
	"arbitrage-detector/internal/config"
	infraconfig "arbitrage-detector/internal/infrastructure/config"
	"arbitrage-detector/internal/infrastructure/logx"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

func init() { _ = godotenv.Load() }

func main() {
	cfg := config.Load()
	logger, err := logx.Setup(cfg.LogLevel, cfg.Env)
	if logger == nil {
		panic(err)
	}
	if err != nil {
		logger.Warn("unknown LOG_LEVEL, using info", zap.String("level", cfg.LogLevel))
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.Build(ctx, cfg, logger)
	defer app.Close()
	if err != nil {
		logger.Fatal("bootstrap", zap.Error(err))
	}

	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           app.Router(),
		ReadHeaderTimeout: infraconfig.DefaultReadHeaderTimeout,
	}

	go func() {
		logger.Info("server.started", zap.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server.listen_failed", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), infraconfig.DefaultShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warn("server.shutdown_failed", zap.Error(err))
	}
	logger.Info("server.stopped")
}
