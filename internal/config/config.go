package config

import (
	"os"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
)

type Config struct {
	// Common
	Env      string
	LogLevel string
	// API
	Port        string
	Storage     string
	DatabaseURL string
	PGMaxConns  int
	KeepRuns    int
	// Provider
	Provider        string
	YahooAPIBase    string
	PrimarySuffix   string
	SecondarySuffix string
	PrimaryLabel    string
	SecondaryLabel  string
	QuoteMaxAge     time.Duration
	ProviderRPS     float64
	ProviderBurst   int
	// Engine
	MaxInFlight       int
	MaxRetries        int
	RetryBackoff      time.Duration
	RequestTimeout    time.Duration
	InstrumentTimeout time.Duration
	PassTimeout       time.Duration
	DefaultThreshold  decimal.Decimal
	UniverseFile      string
	// Worker
	WorkerPoll time.Duration
	// Redis (idempotency)
	IdempotencyBackend string
	RedisAddr          string
	RedisPassword      string
	RedisDB            int
	RedisTTL           time.Duration
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func atoiDef(s string, def int) int {
	i, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return i
}

func floatDef(s string, def float64) float64 {
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return def
	}
	return f
}

func msDef(key string, def int) time.Duration {
	return time.Duration(atoiDef(getEnv(key, strconv.Itoa(def)), def)) * time.Millisecond
}

func decimalDef(s string, def decimal.Decimal) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return def
	}
	return d
}

// Load reads environment variables and applies defaults.
func Load() Config {
	return Config{
		Env:                getEnv("ENV", "local"),
		LogLevel:           getEnv("LOG_LEVEL", "info"),
		Port:               getEnv("PORT", "8080"),
		Storage:            getEnv("STORAGE", "memory"),
		DatabaseURL:        getEnv("DATABASE_URL", ""),
		PGMaxConns:         atoiDef(getEnv("PG_MAX_CONNS", "4"), 4),
		KeepRuns:           atoiDef(getEnv("DETECTION_KEEP_RUNS", "20"), 20),
		Provider:           getEnv("PROVIDER", "fake"),
		YahooAPIBase:       getEnv("YAHOO_API_BASE", "https://query1.finance.yahoo.com"),
		PrimarySuffix:      getEnv("PRIMARY_SUFFIX", ".NS"),
		SecondarySuffix:    getEnv("SECONDARY_SUFFIX", ".BO"),
		PrimaryLabel:       getEnv("PRIMARY_LABEL", "NSE"),
		SecondaryLabel:     getEnv("SECONDARY_LABEL", "BSE"),
		QuoteMaxAge:        msDef("QUOTE_MAX_AGE_MS", 0),
		ProviderRPS:        floatDef(getEnv("PROVIDER_RPS", "20"), 20),
		ProviderBurst:      atoiDef(getEnv("PROVIDER_BURST", "10"), 10),
		MaxInFlight:        atoiDef(getEnv("MAX_IN_FLIGHT", "8"), 8),
		MaxRetries:         atoiDef(getEnv("MAX_RETRIES", "1"), 1),
		RetryBackoff:       msDef("RETRY_BACKOFF_MS", 200),
		RequestTimeout:     msDef("REQUEST_TIMEOUT_MS", 3000),
		InstrumentTimeout:  msDef("INSTRUMENT_TIMEOUT_MS", 10000),
		PassTimeout:        msDef("PASS_TIMEOUT_MS", 60000),
		DefaultThreshold:   decimalDef(getEnv("DEFAULT_THRESHOLD", "0.5"), decimal.RequireFromString("0.5")),
		UniverseFile:       getEnv("UNIVERSE_FILE", "configs/universe.yaml"),
		WorkerPoll:         msDef("WORKER_POLL_MS", 60000),
		IdempotencyBackend: getEnv("IDEMPOTENCY_BACKEND", "none"),
		RedisAddr:          getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword:      getEnv("REDIS_PASSWORD", ""),
		RedisDB:            atoiDef(getEnv("REDIS_DB", "0"), 0),
		RedisTTL:           msDef("IDEMPOTENCY_TTL_MS", 86400000),
	}
}
