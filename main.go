package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"orderblock-trading-bot/config"
	"orderblock-trading-bot/internal/engine"
	"orderblock-trading-bot/internal/events"
	"orderblock-trading-bot/internal/exchange"
	"orderblock-trading-bot/internal/feed"
	"orderblock-trading-bot/internal/filters"
	"orderblock-trading-bot/internal/logging"
	"orderblock-trading-bot/internal/regime"
	"orderblock-trading-bot/internal/risk"
	"orderblock-trading-bot/internal/strategy"
	"orderblock-trading-bot/internal/telemetry"
)

func main() {
	_ = godotenv.Load()

	configPath := flag.String("config", "", "path to JSON config file (optional)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	logger := logging.New(cfg.LoggingConfig)
	logger.Info().
		Strs("symbols", cfg.TradingConfig.Symbols).
		Str("interval", cfg.TradingConfig.Interval).
		Bool("dry_run", cfg.TradingConfig.DryRun).
		Msg("starting order block trader")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var cache regime.Cache = regime.NewMemoryCache()
	if cfg.RedisConfig.Enabled {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisConfig.Address,
			Password: cfg.RedisConfig.Password,
			DB:       cfg.RedisConfig.DB,
		})
		ttl := time.Duration(cfg.RegimeConfig.CacheTTLMinutes) * time.Minute
		cache = regime.NewRedisCache(client, ttl, logging.Component(logger, "regime-cache"))
	}
	classifier := regime.NewClassifier(cfg.RegimeConfig, cache)
	bank := filters.NewBank(cfg.FiltersConfig, classifier)
	riskMgr := risk.NewManager(cfg.RiskConfig)

	var sink telemetry.Sink = telemetry.NewLogSink(logging.Component(logger, "sink"))
	if cfg.DatabaseConfig.Enabled {
		pgSink, err := telemetry.NewPostgresSink(ctx, cfg.DatabaseConfig.URL, logging.Component(logger, "postgres"))
		if err != nil {
			logger.Fatal().Err(err).Msg("database sink init failed")
		}
		sink = pgSink
	}
	defer sink.Close()

	var metrics *telemetry.Metrics
	if cfg.MetricsConfig.Enabled {
		metrics = telemetry.NewMetrics()
		metrics.SetCapital(cfg.RiskConfig.InitialCapital)
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		go func() {
			logger.Info().Str("addr", cfg.MetricsConfig.Addr).Msg("metrics server listening")
			if err := http.ListenAndServe(cfg.MetricsConfig.Addr, mux); err != nil {
				logger.Error().Err(err).Msg("metrics server stopped")
			}
		}()
	}

	bus := events.NewBus()
	busLogger := logging.Component(logger, "lifecycle")
	bus.Subscribe(strategy.EventBlockDetected, func(e strategy.Event) {
		busLogger.Info().Str("symbol", e.Symbol).Str("side", string(e.Side)).Float64("midpoint", e.Price).Msg("order block detected")
	})
	bus.Subscribe(strategy.EventOrderFilled, func(e strategy.Event) {
		busLogger.Info().Str("symbol", e.Symbol).Str("side", string(e.Side)).Float64("entry", e.Price).Msg("position opened")
	})
	bus.Subscribe(strategy.EventPositionClosed, func(e strategy.Event) {
		busLogger.Info().Str("symbol", e.Symbol).Str("reason", e.Reason).Float64("price", e.Price).Msg("position closed")
	})

	if !cfg.TradingConfig.DryRun {
		logger.Warn().Msg("live order routing not configured, orders go to the paper exchange")
	}
	placer := exchange.NewPaperExchange(logging.Component(logger, "exchange"))

	trader := engine.NewTrader(cfg, placer, riskMgr, bank, bus, metrics, sink, logging.Component(logger, "trader"))
	stream := feed.NewStream(cfg.FeedConfig, cfg.TradingConfig.Symbols, cfg.TradingConfig.Interval, logging.Component(logger, "feed"))

	go func() {
		if err := stream.Run(ctx); err != nil {
			logger.Error().Err(err).Msg("candle stream failed")
			stop()
		}
	}()

	if err := trader.Run(ctx, stream); err != nil {
		logger.Error().Err(err).Msg("trader stopped with error")
		os.Exit(1)
	}

	logger.Info().Float64("capital", trader.Capital()).Msg("shutdown complete")
}
