package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"papertrade/internal/application/container"
	"papertrade/internal/application/port"
	"papertrade/internal/application/service"
	"papertrade/internal/event"
	"papertrade/internal/infrastructure/config"
	"papertrade/internal/infrastructure/logger"
	"papertrade/internal/infrastructure/marketdata"
	"papertrade/internal/infrastructure/replicator"
	"papertrade/internal/infrastructure/storage"
	"papertrade/internal/infrastructure/storage/composite"
	"papertrade/internal/infrastructure/storage/postgres"
	redisstore "papertrade/internal/infrastructure/storage/redis"
	"papertrade/internal/infrastructure/storage/sqlite"
)

func main() {
	configPath := flag.String("config", "configs/config.toml", "path to config.toml")
	logLevel := flag.String("log-level", "info", "zerolog level")
	flag.Parse()

	logger.Setup(*logLevel)

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal().Err(err).Str("config", *configPath).Msg("load config failed")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := buildStore(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("storage init failed")
	}

	var repl port.Replicator = replicator.NewNoop()
	if cfg.Replicator.Enabled {
		repl = replicator.NewHTTP(cfg.Replicator.BaseURL, cfg.ReplicatorTimeout(),
			cfg.Replicator.MaxAttempts, cfg.Replicator.QueueSize)
	}

	bus := event.NewBus()
	ledger := service.NewLedger(cfg.App.InitialCapital, store, repl, bus)
	if err := ledger.Restore(ctx); err != nil {
		log.Warn().Err(err).Msg("ledger restore failed, starting empty")
	}

	app := container.New(ledger, bus, store)
	defer func() {
		_ = repl.Close()
		if err := app.Close(); err != nil {
			log.Warn().Err(err).Msg("storage close failed")
		}
	}()

	subscribeLogging(app)

	snap := ledger.Snapshot()
	log.Info().
		Str("config", *configPath).
		Float64("total_value", snap.TotalValue).
		Int("open_positions", snap.OpenPositions).
		Strs("backends", cfg.Storage.Backends).
		Msg("papertrade started")

	source := marketdata.NewClient(cfg.MarketData.BaseURL)
	refresher := service.NewPriceRefresher(ledger, source, cfg.RefreshInterval())

	if cfg.MarketData.WsEnabled {
		feed := marketdata.NewWsFeed(cfg.MarketData.WsURL)
		ticks, err := feed.Subscribe(ctx, cfg.App.Symbols)
		if err != nil {
			log.Warn().Err(err).Msg("ws feed subscribe failed, polling only")
		} else {
			go refresher.ConsumeFeed(ctx, ticks)
		}
	}

	if err := refresher.Run(ctx); err != nil && ctx.Err() == nil {
		log.Error().Err(err).Msg("price refresher exited")
	}
	log.Info().Msg("papertrade stopped")
}

func buildStore(cfg *config.Config) (port.Store, error) {
	var stores []port.Store
	for _, backend := range cfg.Storage.Backends {
		switch backend {
		case "memory":
			stores = append(stores, storage.NewMemory())
		case "sqlite":
			repo, err := sqlite.New(cfg.Storage.SQLitePath)
			if err != nil {
				return nil, err
			}
			stores = append(stores, repo)
		case "redis":
			rdb := goredis.NewClient(&goredis.Options{
				Addr: cfg.Storage.RedisAddr,
				DB:   cfg.Storage.RedisDB,
			})
			stores = append(stores, redisstore.New(rdb, cfg.Storage.KeyPrefix))
		case "postgres":
			repo, err := postgres.New(cfg.Storage.PostgresDSN)
			if err != nil {
				return nil, err
			}
			stores = append(stores, repo)
		}
	}
	if len(stores) == 1 {
		return stores[0], nil
	}
	return composite.New(stores...), nil
}

func subscribeLogging(app *container.Container) {
	bus := app.Bus()

	bus.Subscribe(event.PositionAdded, func(ev event.Event) {
		log.Info().
			Str("id", ev.Position.ID).
			Str("symbol", ev.Position.Symbol).
			Str("side", string(ev.Position.Side)).
			Float64("quantity", ev.Position.Quantity).
			Float64("price", ev.Position.EntryPrice).
			Msg("position opened")
	})
	bus.Subscribe(event.PositionClosed, func(ev event.Event) {
		log.Info().
			Str("id", ev.Position.ID).
			Str("symbol", ev.Position.Symbol).
			Float64("realized_pnl", ev.Position.RealizedPnL).
			Msg("position closed")

		stats := app.Performance().TradingStats(app.Ledger().Positions())
		log.Info().
			Int("total_trades", stats.TotalTrades).
			Float64("win_rate", stats.WinRate).
			Float64("avg_win", stats.AvgWin).
			Float64("avg_loss", stats.AvgLoss).
			Float64("profit_factor", stats.ProfitFactor).
			Msg("trading stats")
	})
	bus.Subscribe(event.PortfolioUpdated, func(ev event.Event) {
		metrics := app.Risk().Calculate(app.Ledger().Positions())
		log.Debug().
			Float64("total_value", ev.Snapshot.TotalValue).
			Float64("unrealized", ev.Snapshot.TotalUnrealizedPnL).
			Float64("realized", ev.Snapshot.TotalRealizedPnL).
			Float64("exposure", metrics.TotalExposure).
			Float64("max_drawdown", metrics.MaxDrawdown).
			Float64("volatility", metrics.Volatility).
			Float64("var_95", metrics.VaR95).
			Msg("portfolio updated")
	})
}
