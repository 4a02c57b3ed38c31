// Package config loads process-wide configuration for the bot keeper from
// the environment, with an optional .env file for local development.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
)

// SeedBotConfig is a single bot definition loaded at startup, mirroring the
// shape accepted by BotManager.AddBot.
type SeedBotConfig struct {
	BotName     string
	Symbol      string
	RiskLevel   string
	IsTestnet   bool
	IsActive    bool
	Description string
}

// Config is the process-wide configuration shared by every bot instance,
// the admin surfaces, and the supporting infrastructure.
type Config struct {
	Debug bool

	// Telegram admin channel
	TelegramToken  string
	TelegramChatID int64

	// Database (ledger + bot config store). A "postgres://" prefix selects
	// the Postgres driver; otherwise DatabasePath is treated as a sqlite
	// file path.
	DatabasePath string

	// StateStore (Redis-shaped KV). Empty disables the real backend and
	// forces the dummy fallback.
	StateStoreURL      string
	StateStorePassword string
	StateStoreDB       int
	StateStoreKeyPrefix string

	// AI provider (signal ensemble's memory-augmented voter)
	AIProviderURL   string
	AIProviderKey   string
	AIModel         string
	AITimeout       time.Duration
	UseMemorySignals bool

	// Exchange
	ExchangeAPIKey    string
	ExchangeAPISecret string
	ExchangeBaseURL   string
	ExchangeWSURL     string
	IsTestnet         bool

	// Loop cadence and timeouts
	LoopInterval        time.Duration
	PositionMonitorEvery time.Duration
	ExchangeTimeout     time.Duration
	AITimeoutCall       time.Duration
	KVTimeout           time.Duration

	// Position sizing
	UseRealBalance  bool
	NotionalCapital decimal.Decimal

	// Circuit breaker defaults (process-wide; each bot gets its own breaker built from these)
	MaxConsecutiveLosses int
	MaxDailyLossPct      decimal.Decimal
	CircuitCooldown      time.Duration

	// Admin REST + metrics
	AdminListenAddr   string
	MetricsListenAddr string
	WebhookSecret     string

	// Default risk level applied when a seed bot omits one
	DefaultRiskLevel string

	// Bots to register at startup
	SeedBots []SeedBotConfig
}

// Load reads the environment (and process .env, loaded by the caller via
// godotenv before Load runs) into a Config, applying documented defaults.
func Load() (*Config, error) {
	cfg := &Config{
		Debug: getEnvBool("DEBUG", false),

		TelegramToken: os.Getenv("TELEGRAM_BOT_TOKEN"),

		DatabasePath: getEnv("DATABASE_PATH", "data/botkeeper.db"),

		StateStoreURL:       getEnv("STATE_STORE_URL", "redis://localhost:6379"),
		StateStorePassword:  os.Getenv("STATE_STORE_PASSWORD"),
		StateStoreDB:        getEnvInt("STATE_STORE_DB", 0),
		StateStoreKeyPrefix: getEnv("STATE_STORE_KEY_PREFIX", "trading"),

		AIProviderURL:    getEnv("AI_PROVIDER_URL", ""),
		AIProviderKey:    os.Getenv("AI_PROVIDER_KEY"),
		AIModel:          getEnv("AI_MODEL", "gemini-1.5-flash"),
		AITimeout:        getEnvDuration("AI_TIMEOUT", 30*time.Second),
		UseMemorySignals: getEnvBool("USE_MEMORY_SIGNALS", true),

		ExchangeAPIKey:    os.Getenv("EXCHANGE_API_KEY"),
		ExchangeAPISecret: os.Getenv("EXCHANGE_API_SECRET"),
		ExchangeBaseURL:   getEnv("EXCHANGE_BASE_URL", "https://fapi.binance.com"),
		ExchangeWSURL:     getEnv("EXCHANGE_WS_URL", "wss://fstream.binance.com"),
		IsTestnet:         getEnvBool("EXCHANGE_TESTNET", true),

		LoopInterval:         getEnvDuration("LOOP_INTERVAL", 300*time.Second),
		PositionMonitorEvery: getEnvDuration("POSITION_MONITOR_INTERVAL", 15*time.Second),
		ExchangeTimeout:      getEnvDuration("EXCHANGE_TIMEOUT", 10*time.Second),
		AITimeoutCall:        getEnvDuration("AI_CALL_TIMEOUT", 30*time.Second),
		KVTimeout:            getEnvDuration("KV_TIMEOUT", 2*time.Second),

		UseRealBalance:  getEnvBool("USE_REAL_BALANCE", false),
		NotionalCapital: getEnvDecimal("NOTIONAL_CAPITAL", decimal.NewFromInt(1000)),

		MaxConsecutiveLosses: getEnvInt("MAX_CONSECUTIVE_LOSSES", 3),
		MaxDailyLossPct:      getEnvDecimal("MAX_DAILY_LOSS_PCT", decimal.NewFromFloat(0.05)),
		CircuitCooldown:      getEnvDuration("CIRCUIT_COOLDOWN", 30*time.Minute),

		AdminListenAddr:   getEnv("ADMIN_LISTEN_ADDR", ":8090"),
		MetricsListenAddr: getEnv("METRICS_LISTEN_ADDR", ":9090"),
		WebhookSecret:     os.Getenv("WEBHOOK_SECRET"),

		DefaultRiskLevel: getEnv("DEFAULT_RISK_LEVEL", "medium"),
	}

	if chatID := os.Getenv("TELEGRAM_CHAT_ID"); chatID != "" {
		id, err := strconv.ParseInt(chatID, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid TELEGRAM_CHAT_ID: %w", err)
		}
		cfg.TelegramChatID = id
	}

	if cfg.TelegramToken == "" {
		return nil, fmt.Errorf("TELEGRAM_BOT_TOKEN is required")
	}

	if symbol := getEnv("SEED_BOT_SYMBOL", "BTCUSDT"); symbol != "" {
		cfg.SeedBots = []SeedBotConfig{
			{
				BotName:     getEnv("SEED_BOT_NAME", "primary"),
				Symbol:      symbol,
				RiskLevel:   cfg.DefaultRiskLevel,
				IsTestnet:   cfg.IsTestnet,
				IsActive:    true,
				Description: "seed bot loaded from environment",
			},
		}
	}

	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return value == "true" || value == "1" || value == "yes"
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func getEnvDecimal(key string, defaultValue decimal.Decimal) decimal.Decimal {
	if value := os.Getenv(key); value != "" {
		if d, err := decimal.NewFromString(value); err == nil {
			return d
		}
	}
	return defaultValue
}
