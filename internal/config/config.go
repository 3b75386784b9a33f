// Package config loads service configuration from an optional TOML file
// with environment variable overrides.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	toml "github.com/pelletier/go-toml/v2"
)

type Config struct {
	Server    ServerConfig    `toml:"server"`
	Storage   StorageConfig   `toml:"storage"`
	Market    MarketConfig    `toml:"market"`
	Analytics AnalyticsConfig `toml:"analytics"`
	Logging   LoggingConfig   `toml:"logging"`
}

type ServerConfig struct {
	Host string `toml:"host"`
	Port int    `toml:"port"`
}

func (c ServerConfig) Addr() string { return fmt.Sprintf("%s:%d", c.Host, c.Port) }

type StorageConfig struct {
	Path string `toml:"path"`
}

type MarketConfig struct {
	Timeout   string `toml:"timeout"`
	RateLimit int    `toml:"rate_limit"`
	CacheTTL  string `toml:"cache_ttl"`
}

// GetTimeout parses the request timeout, defaulting to 15s.
func (c MarketConfig) GetTimeout() time.Duration {
	d, err := time.ParseDuration(c.Timeout)
	if err != nil || d <= 0 {
		return 15 * time.Second
	}
	return d
}

// GetCacheTTL parses the price cache TTL, defaulting to 15m.
func (c MarketConfig) GetCacheTTL() time.Duration {
	d, err := time.ParseDuration(c.CacheTTL)
	if err != nil || d <= 0 {
		return 15 * time.Minute
	}
	return d
}

type AnalyticsConfig struct {
	RiskFreeRate     float64 `toml:"risk_free_rate"`
	Benchmark        string  `toml:"benchmark"`
	LookbackDays     int     `toml:"lookback_days"`
	AlignPolicy      string  `toml:"align_policy"` // "intersection" (default) or "forward-fill"
	FetchConcurrency int     `toml:"fetch_concurrency"`
	FetchTimeout     string  `toml:"fetch_timeout"`
}

// GetFetchTimeout parses the per-ticker fetch timeout, defaulting to 10s.
func (c AnalyticsConfig) GetFetchTimeout() time.Duration {
	d, err := time.ParseDuration(c.FetchTimeout)
	if err != nil || d <= 0 {
		return 10 * time.Second
	}
	return d
}

type LoggingConfig struct {
	Level string `toml:"level"`
}

// Load reads path (when it exists), fills defaults, and applies env
// overrides PORT, DB_PATH, RISK_FREE_RATE, and BENCHMARK.
func Load(path string) (Config, error) {
	cfg := Config{
		Server:  ServerConfig{Host: "", Port: 9095},
		Storage: StorageConfig{Path: "data/portfolio.db"},
		Market:  MarketConfig{Timeout: "15s", RateLimit: 5, CacheTTL: "15m"},
		Analytics: AnalyticsConfig{
			RiskFreeRate:     0.02,
			Benchmark:        "SPY",
			LookbackDays:     252,
			AlignPolicy:      "intersection",
			FetchConcurrency: 4,
			FetchTimeout:     "10s",
		},
		Logging: LoggingConfig{Level: "info"},
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err == nil {
			if err := toml.Unmarshal(data, &cfg); err != nil {
				return Config{}, fmt.Errorf("parse %s: %w", path, err)
			}
		} else if !os.IsNotExist(err) {
			return Config{}, err
		}
	}

	if v := os.Getenv("PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("DB_PATH"); v != "" {
		cfg.Storage.Path = v
	}
	if v := os.Getenv("RISK_FREE_RATE"); v != "" {
		if rate, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Analytics.RiskFreeRate = rate
		}
	}
	if v := os.Getenv("BENCHMARK"); v != "" {
		cfg.Analytics.Benchmark = v
	}
	return cfg, nil
}
