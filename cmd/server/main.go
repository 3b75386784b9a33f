package main

import (
	"flag"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"

	"portfolioapi/internal/config"
	"portfolioapi/internal/market"
	"portfolioapi/internal/portfolio"
	"portfolioapi/internal/server"
	"portfolioapi/internal/storage"
)

func main() {
	configPath := flag.String("config", "config.toml", "path to TOML config")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fallback := zerolog.New(os.Stderr)
		fallback.Fatal().Err(err).Msg("config load failed")
	}
	logger := newLogger(cfg.Logging.Level)

	_ = os.MkdirAll(filepath.Dir(cfg.Storage.Path), 0o755)
	db, err := storage.OpenSQLite("file:" + cfg.Storage.Path + "?_fk=1")
	if err != nil {
		logger.Fatal().Err(err).Msg("open sqlite failed")
	}
	defer db.Close()
	if err := storage.InitSchema(db); err != nil {
		logger.Fatal().Err(err).Msg("schema init failed")
	}
	logger.Info().Str("path", cfg.Storage.Path).Msg("sqlite opened, schema ensured")

	prices := market.NewClient(
		market.WithTimeout(cfg.Market.GetTimeout()),
		market.WithRateLimit(cfg.Market.RateLimit),
		market.WithCacheTTL(cfg.Market.GetCacheTTL()),
		market.WithLogger(logger.With().Str("component", "market").Logger()),
	)

	store := storage.NewPositionStore(db)
	builder := portfolio.NewBuilder(store, prices,
		portfolio.WithAlignPolicy(portfolio.AlignPolicy(cfg.Analytics.AlignPolicy)),
		portfolio.WithFetchConcurrency(cfg.Analytics.FetchConcurrency),
		portfolio.WithFetchTimeout(cfg.Analytics.GetFetchTimeout()),
		portfolio.WithBuilderLogger(logger.With().Str("component", "builder").Logger()),
	)

	srv := server.New(store, builder, prices, server.Options{
		RiskFreeRate:    cfg.Analytics.RiskFreeRate,
		BenchmarkTicker: cfg.Analytics.Benchmark,
		LookbackDays:    cfg.Analytics.LookbackDays,
	}, logger.With().Str("component", "http").Logger())

	addr := cfg.Server.Addr()
	logger.Info().Str("addr", addr).Msg("listening")
	if err := http.ListenAndServe(addr, srv); err != nil {
		logger.Fatal().Err(err).Msg("server error")
	}
}

func newLogger(level string) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil || lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}
	output := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}
	return zerolog.New(output).Level(lvl).With().Timestamp().Logger()
}
