package logx

import (
	"strings"
	"sync/atomic"

	"arbitrage-detector/internal/config"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var logger atomic.Pointer[zap.Logger]

// init gives packages a usable logger before main has loaded .env; main
// replaces it through Setup once configuration is final.
func init() {
	appCfg := config.Load()
	l, _ := Setup(appCfg.LogLevel, appCfg.Env)
	if l == nil {
		panic("logx: cannot build fallback logger")
	}
}

// New builds a JSON production logger at the given level.
func New(level, env string) (*zap.Logger, error) {
	zapCfg := zap.NewProductionConfig()
	zapCfg.Sampling = nil
	zapCfg.DisableStacktrace = true
	zapCfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	if level != "" {
		if err := zapCfg.Level.UnmarshalText([]byte(strings.ToLower(level))); err != nil {
			return nil, err
		}
	}
	l, err := zapCfg.Build(zap.AddCaller())
	if err != nil {
		return nil, err
	}
	return l.With(zap.String("service", "arbitrage-detector"), zap.String("env", env)), nil
}

// Setup installs the package logger. An unknown level falls back to info;
// the returned error reports it while the logger is still usable.
func Setup(level, env string) (*zap.Logger, error) {
	l, err := New(level, env)
	if err != nil {
		fallback, ferr := New("info", env)
		if ferr != nil {
			return nil, ferr
		}
		logger.Store(fallback)
		return fallback, err
	}
	logger.Store(l)
	return l, nil
}

// L returns the package-level logger instance.
func L() *zap.Logger {
	return logger.Load()
}
