package config

import "time"

const (
	DefaultShutdownTimeout   = 10 * time.Second
	DefaultReadHeaderTimeout = 5 * time.Second
	DefaultHTTPClientTimeout = 10 * time.Second
	DefaultUserAgent         = "Mozilla/5.0 (compatible; arbitrage-detector/1.0)"
	DefaultPGMaxConns        = 5
	DefaultPGMinConns        = 1
)
