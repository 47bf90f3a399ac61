package config

import (
	"log"
	"os"
	"strconv"
	"strings"
)

type Config struct {
	DatabaseURL string
	RedisURL    string
	HTTPAddr    string
	APIKey      string

	LogLevel  string
	LogFormat string

	TracingEnabled bool
	OTLPEndpoint   string

	FXBase             string
	FXTarget           string
	FXHistoryDays      int
	FXBacktestDays     int
	FXBacktestInterval int
	FXSimulations      int
	FXHorizonDays      int
	FXWorkers          int
	FXAmount           float64
	FXPollSecs         int
	FXResolvePollSecs  int
	FXAPITimeoutSecs   int
}

func Load() *Config {
	cfg := &Config{
		DatabaseURL: os.Getenv("DATABASE_URL"),
		RedisURL:    os.Getenv("REDIS_URL"),
		APIKey:      strings.TrimSpace(os.Getenv("API_KEY")),
	}

	if cfg.DatabaseURL == "" {
		log.Println("Warning: DATABASE_URL not set, prediction log disabled")
	}
	if cfg.RedisURL == "" {
		log.Println("Warning: REDIS_URL not set, defaulting to localhost:6379")
		cfg.RedisURL = "localhost:6379"
	}

	cfg.HTTPAddr = stringOr("HTTP_ADDR", ":8080")
	cfg.LogLevel = strings.ToLower(stringOr("LOG_LEVEL", "info"))
	cfg.LogFormat = strings.ToLower(stringOr("LOG_FORMAT", "json"))
	if cfg.LogFormat != "json" && cfg.LogFormat != "console" {
		log.Printf("Warning: unsupported LOG_FORMAT=%q, defaulting to json", cfg.LogFormat)
		cfg.LogFormat = "json"
	}

	cfg.TracingEnabled = os.Getenv("TRACING_ENABLED") != "false"
	cfg.OTLPEndpoint = stringOr("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317")

	cfg.FXBase = strings.ToLower(stringOr("FX_BASE", "inr"))
	cfg.FXTarget = strings.ToLower(stringOr("FX_TARGET", "aud"))

	cfg.FXHistoryDays = positiveInt("FX_HISTORY_DAYS", 40)
	cfg.FXBacktestDays = positiveInt("FX_BACKTEST_DAYS", 120)
	cfg.FXBacktestInterval = positiveInt("FX_BACKTEST_INTERVAL", 2)
	cfg.FXSimulations = positiveInt("FX_SIMULATIONS", 1000)
	cfg.FXHorizonDays = positiveInt("FX_HORIZON_DAYS", 7)
	cfg.FXWorkers = positiveInt("FX_WORKERS", 4)
	cfg.FXPollSecs = positiveInt("FX_POLL_SECS", 3600)
	cfg.FXResolvePollSecs = positiveInt("FX_RESOLVE_POLL_SECS", 1800)
	cfg.FXAPITimeoutSecs = positiveInt("FX_API_TIMEOUT_SECS", 5)

	cfg.FXAmount = 1000
	if v := strings.TrimSpace(os.Getenv("FX_AMOUNT")); v != "" {
		if n, err := strconv.ParseFloat(v, 64); err == nil && n > 0 {
			cfg.FXAmount = n
		}
	}

	return cfg
}

func stringOr(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func positiveInt(key string, fallback int) int {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
	}
	return fallback
}
