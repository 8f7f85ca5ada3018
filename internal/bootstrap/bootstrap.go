package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"arbitrage-detector/internal/application"
	"arbitrage-detector/internal/config"
	"arbitrage-detector/internal/domain"
	infraconfig "arbitrage-detector/internal/infrastructure/config"
	httpserver "arbitrage-detector/internal/infrastructure/http"
	"arbitrage-detector/internal/infrastructure/httpx"
	"arbitrage-detector/internal/infrastructure/memstore"
	"arbitrage-detector/internal/infrastructure/metrics"
	"arbitrage-detector/internal/infrastructure/pg"
	"arbitrage-detector/internal/infrastructure/provider"
	redisstore "arbitrage-detector/internal/infrastructure/redis"
	"arbitrage-detector/internal/infrastructure/worker"

	"github.com/redis/go-redis/v9"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"
)

var ErrMissingDBURL = errors.New("DATABASE_URL is required for STORAGE=pg")

// fakeSkewBps spreads fake venue prices far enough apart that local runs
// surface opportunities at the default threshold.
const fakeSkewBps = 60

type check func(ctx context.Context) error

// App holds the wired detection engine and everything around it.
type App struct {
	Config   config.Config
	Log      *zap.Logger
	Service  *application.DetectionService
	Metrics  *metrics.Registry
	Breakers *provider.CircuitBreaker

	checks   []check
	cleanups []func()
}

// Build wires provider chain, detector, storage and idempotency from cfg.
// Close must be called even when Build fails halfway.
func Build(ctx context.Context, cfg config.Config, log *zap.Logger) (*App, error) {
	if log == nil {
		log = zap.NewNop()
	}
	app := &App{Config: cfg, Log: log, Metrics: metrics.NewRegistry()}

	universe, err := LoadUniverse(cfg.UniverseFile)
	if err != nil {
		return app, err
	}

	base, err := BuildQuoteProvider(cfg)
	if err != nil {
		return app, err
	}
	app.Breakers = provider.NewCircuitBreaker(
		provider.NewRateLimited(base, cfg.ProviderRPS, cfg.ProviderBurst),
		provider.BreakerSettings{},
		log.With(zap.String("component", "breaker")),
	)
	app.checks = append(app.checks, app.venuesReachable)

	repo, err := app.buildRepo(ctx)
	if err != nil {
		return app, err
	}
	idem, err := app.buildIdempotency(ctx)
	if err != nil {
		return app, err
	}

	detector := application.NewDetector(app.Breakers, application.DetectorConfig{
		OrchestratorConfig: application.OrchestratorConfig{
			MaxInFlight:       cfg.MaxInFlight,
			MaxRetries:        cfg.MaxRetries,
			RetryBackoff:      cfg.RetryBackoff,
			RequestTimeout:    cfg.RequestTimeout,
			InstrumentTimeout: cfg.InstrumentTimeout,
		},
		PassTimeout: cfg.PassTimeout,
	},
		application.WithLogger(log.With(zap.String("component", "detector"))),
		application.WithRecorder(app.Metrics),
	)
	app.Service = application.NewDetectionService(detector, repo, idem, universe, cfg.DefaultThreshold, log)

	log.Info("bootstrap.ready",
		zap.String("provider", cfg.Provider),
		zap.String("storage", cfg.Storage),
		zap.String("idempotency", cfg.IdempotencyBackend),
		zap.Int("universe", len(universe)),
		zap.String("default_threshold", cfg.DefaultThreshold.String()),
	)
	return app, nil
}

// LoadUniverse reads and validates the configured instrument list.
func LoadUniverse(path string) ([]domain.Instrument, error) {
	raw, err := config.LoadUniverse(path)
	if err != nil {
		return nil, fmt.Errorf("load universe: %w", err)
	}
	instruments, err := domain.ParseInstruments(raw)
	if err != nil {
		return nil, fmt.Errorf("universe %s: %w", path, err)
	}
	return instruments, nil
}

// BuildQuoteProvider returns the bare upstream adapter selected by PROVIDER.
func BuildQuoteProvider(cfg config.Config) (application.QuoteProvider, error) {
	switch strings.ToLower(cfg.Provider) {
	case "yahoo":
		return &provider.YahooChartProvider{
			BaseURL: cfg.YahooAPIBase,
			Suffixes: map[domain.Exchange]string{
				domain.ExchangePrimary:   cfg.PrimarySuffix,
				domain.ExchangeSecondary: cfg.SecondarySuffix,
			},
			MaxAge: cfg.QuoteMaxAge,
			Client: &httpx.Client{HTTP: &http.Client{Timeout: infraconfig.DefaultHTTPClientTimeout}},
		}, nil
	case "fake", "":
		return provider.NewFake(fakeSkewBps), nil
	default:
		return nil, fmt.Errorf("unsupported PROVIDER=%q", cfg.Provider)
	}
}

func (a *App) buildRepo(ctx context.Context) (application.DetectionRepo, error) {
	switch a.Config.Storage {
	case "memory", "":
		return memstore.NewDetectionRepo(), nil
	case "pg":
		if a.Config.DatabaseURL == "" {
			return nil, ErrMissingDBURL
		}
		db, err := pg.Connect(ctx, a.Config.DatabaseURL, pg.PoolOptions{MaxConns: int32(a.Config.PGMaxConns)})
		if err != nil {
			return nil, fmt.Errorf("connect pg: %w", err)
		}
		a.cleanups = append(a.cleanups, func() {
			a.Log.Info("bootstrap.closing_pg")
			db.Close()
		})
		if err := pg.RunMigrations(ctx, db); err != nil {
			return nil, err
		}
		a.checks = append(a.checks, db.Ping)
		return pg.NewDetectionRepo(db, a.Config.KeepRuns), nil
	default:
		return nil, fmt.Errorf("unsupported STORAGE=%q", a.Config.Storage)
	}
}

func (a *App) buildIdempotency(ctx context.Context) (application.IdempotencyStore, error) {
	switch a.Config.IdempotencyBackend {
	case "none", "":
		return application.NoopIdempotency{}, nil
	case "redis":
		store, err := redisstore.Open(ctx, &redis.Options{
			Addr:     a.Config.RedisAddr,
			Password: a.Config.RedisPassword,
			DB:       a.Config.RedisDB,
		}, a.Config.RedisTTL)
		if err != nil {
			return nil, err
		}
		a.cleanups = append(a.cleanups, func() { _ = store.Close() })
		a.checks = append(a.checks, store.Ping)
		return store, nil
	default:
		return nil, fmt.Errorf("unsupported IDEMPOTENCY_BACKEND=%q", a.Config.IdempotencyBackend)
	}
}

// venuesReachable fails only when every venue breaker is open.
func (a *App) venuesReachable(context.Context) error {
	for _, ex := range domain.Exchanges() {
		if a.Breakers.State(ex) != gobreaker.StateOpen {
			return nil
		}
	}
	return errors.New("all venue circuit breakers are open")
}

// Ready runs every readiness check.
func (a *App) Ready(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	for _, c := range a.checks {
		if err := c(ctx); err != nil {
			return err
		}
	}
	return nil
}

// Router builds the HTTP API over the wired service.
func (a *App) Router() http.Handler {
	srv := httpserver.NewServer(a.Service)
	srv.SetReadyCheck(a.Ready)
	srv.SetMetricsHandler(a.Metrics.Handler())
	srv.SetExchangeLabels(map[domain.Exchange]string{
		domain.ExchangePrimary:   a.Config.PrimaryLabel,
		domain.ExchangeSecondary: a.Config.SecondaryLabel,
	})
	return httpserver.NewRouter(srv)
}

// Worker returns the scheduler that stores a pass every WORKER_POLL_MS.
func (a *App) Worker() application.Worker {
	return &worker.Scheduler{
		Runner:     a.Service,
		PollEvery:  a.Config.WorkerPoll,
		RunOnStart: true,
		Log:        a.Log.With(zap.String("component", "scheduler")),
	}
}

// Close releases resources in reverse order of acquisition.
func (a *App) Close() {
	for i := len(a.cleanups) - 1; i >= 0; i-- {
		a.cleanups[i]()
	}
	a.cleanups = nil
}
