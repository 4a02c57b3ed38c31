// perpbot runs a multi-tenant perpetual-futures trading keeper: a
// registry of independent bot instances, each running its own
// signal-ensemble decision loop, fronted by a Telegram admin channel, a
// REST control surface, a webhook ingress, and a Prometheus metrics
// endpoint.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/fluxtrade/perpbot/internal/adminapi"
	"github.com/fluxtrade/perpbot/internal/botmanager"
	"github.com/fluxtrade/perpbot/internal/config"
	"github.com/fluxtrade/perpbot/internal/exchange"
	"github.com/fluxtrade/perpbot/internal/ledger"
	"github.com/fluxtrade/perpbot/internal/model"
	"github.com/fluxtrade/perpbot/internal/obsmetrics"
	"github.com/fluxtrade/perpbot/internal/statestore"
	"github.com/fluxtrade/perpbot/internal/telegrambot"
	"github.com/fluxtrade/perpbot/internal/webhook"
)

const version = "1.0.0"

func main() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	if err := godotenv.Load(); err != nil {
		log.Warn().Msg("No .env file found, using environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	if cfg.Debug {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}

	log.Info().Str("version", version).Msg("perpbot starting...")

	// 1. Ledger (trade history + analytics)
	store, err := ledger.Open(cfg.DatabasePath)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open ledger")
	}

	// 2. State store (crash-recovery KV), falling back to the dummy
	// implementation when no Redis URL is configured.
	var state statestore.Store
	if cfg.StateStoreURL != "" {
		opts, err := redis.ParseURL(cfg.StateStoreURL)
		if err != nil {
			log.Fatal().Err(err).Msg("Invalid STATE_STORE_URL")
		}
		if cfg.StateStorePassword != "" {
			opts.Password = cfg.StateStorePassword
		}
		opts.DB = cfg.StateStoreDB
		redisClient := redis.NewClient(opts)
		rs := statestore.NewRedisStore(redisClient, cfg.StateStoreKeyPrefix)

		pingCtx, cancel := context.WithTimeout(context.Background(), cfg.KVTimeout)
		ok := rs.Ping(pingCtx)
		cancel()
		if ok {
			state = rs
			log.Info().Msg("state store connected (redis)")
		} else {
			log.Warn().Msg("state store unreachable, falling back to in-memory dummy store")
			state = statestore.NewDummyStore()
		}
	} else {
		state = statestore.NewDummyStore()
	}

	// 3. Exchange adapter
	exch := exchange.NewBinanceClient(cfg.ExchangeAPIKey, cfg.ExchangeAPISecret, cfg.IsTestnet)

	// 4. Metrics registry
	registry := prometheus.NewRegistry()
	metrics := obsmetrics.New(registry)

	// 5. Bot manager, seeded with the configured bots
	manager := botmanager.New(botmanager.Params{
		Config:   cfg,
		Exchange: exch,
		Store:    store,
		State:    state,
		Metrics:  metrics,
	})

	for _, seed := range cfg.SeedBots {
		riskLevel := model.RiskLevel(seed.RiskLevel)
		if riskLevel == "" {
			riskLevel = model.RiskLevel(cfg.DefaultRiskLevel)
		}
		botCfg, err := model.NewBotConfig(seed.BotName, seed.Symbol, riskLevel)
		if err != nil {
			log.Error().Err(err).Str("bot", seed.BotName).Msg("failed to build seed bot config")
			continue
		}
		botCfg.IsTestnet = seed.IsTestnet
		botCfg.Description = seed.Description
		if err := manager.AddBot(botCfg); err != nil {
			log.Error().Err(err).Str("bot", seed.BotName).Msg("failed to register seed bot")
			continue
		}
		exch.StreamSymbol(botCfg.Symbol)
		log.Info().Str("bot", seed.BotName).Str("symbol", seed.Symbol).Msg("bot registered")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 6. Telegram admin channel
	var tgBot *telegrambot.Bot
	if cfg.TelegramToken != "" {
		tgBot, err = telegrambot.New(cfg.TelegramToken, cfg.TelegramChatID, manager)
		if err != nil {
			log.Error().Err(err).Msg("failed to start telegram bot")
		} else {
			tgBot.Start()
		}
	}

	// 7. REST admin surface + webhook ingress + metrics, on one router
	router := mux.NewRouter()
	adminapi.New(manager).RegisterRoutes(router)
	router.Handle("/webhook", webhook.New(manager, cfg.WebhookSecret)).Methods(http.MethodPost)
	adminServer := &http.Server{Addr: cfg.AdminListenAddr, Handler: router}

	go func() {
		log.Info().Str("addr", cfg.AdminListenAddr).Msg("admin API listening")
		if err := adminServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("admin API server failed")
		}
	}()

	metricsServer := &http.Server{Addr: cfg.MetricsListenAddr, Handler: obsmetrics.Handler(registry)}
	go func() {
		log.Info().Str("addr", cfg.MetricsListenAddr).Msg("metrics endpoint listening")
		if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("metrics server failed")
		}
	}()

	// 8. Start every registered bot's decision loop
	manager.StartAll(ctx)

	log.Info().Msg("all services started")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	manager.StopAll(shutdownCtx)
	exch.Stop()
	if tgBot != nil {
		tgBot.Stop()
	}
	_ = adminServer.Shutdown(shutdownCtx)
	_ = metricsServer.Shutdown(shutdownCtx)

	log.Info().Msg("shutdown complete")
}
