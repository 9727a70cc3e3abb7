// internal/config/config.go
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"custody-service/internal/chains/registry"

	"go.uber.org/zap"
)

type Config struct {
	AppEnv   string
	Security SecurityConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Kafka    KafkaConfig
	HTTP     HTTPConfig
	Chains   ChainsConfig
	Intent   IntentConfig
	Swap     SwapConfig
}

type SecurityConfig struct {
	EncryptionKey string
	KeyFile       string
	// optional; derived from the encryption key when empty
	IntentSigningKey string
}

type DatabaseConfig struct {
	URL             string
	MaxConns        int
	MinConns        int
	MaxConnLifetime time.Duration
	MaxConnIdleTime time.Duration
	AutoMigrate     bool
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type KafkaConfig struct {
	Brokers []string
	Topic   string
}

type HTTPConfig struct {
	Addr           string
	AllowedOrigins []string
	WriteTimeout   time.Duration
}

type ChainsConfig struct {
	AlchemyAPIKey  string
	RPCOverrides   map[string]string
	NoditAPIKey    string
	NoditBaseURL   string
	OneInchAPIKey  string
	OneInchBaseURL string
}

type IntentConfig struct {
	TTL             time.Duration
	SweepInterval   time.Duration
	Store           string // "postgres" or "memory"
	QuoteRateLimit  int
	QuoteRateWindow time.Duration
	LockTTL         time.Duration
}

type SwapConfig struct {
	Slippage         float64
	Deadline         time.Duration
	DefaultBuyAmount string
}

func Load(logger *zap.Logger) (*Config, error) {
	// ============================================================================
	// Database Configuration
	// ============================================================================
	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		dbURL = fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s",
			getEnv("DB_USER", "postgres"),
			os.Getenv("DB_PASSWORD"),
			getEnv("DB_HOST", "localhost"),
			getEnv("DB_PORT", "5432"),
			getEnv("DB_NAME", "custody"),
			getEnv("DB_SSLMODE", "disable"),
		)
	}

	// ============================================================================
	// Chain Configuration
	// ============================================================================
	overrides := make(map[string]string)
	for _, chain := range registry.DefaultChains() {
		key := "CHAIN_RPC_URL_" + strings.ToUpper(chain.Name)
		if url := os.Getenv(key); url != "" {
			overrides[chain.Name] = url
		}
	}

	alchemyKey := os.Getenv("ALCHEMY_API_KEY")
	if alchemyKey == "" && len(overrides) < len(registry.DefaultChains()) {
		logger.Warn("ALCHEMY_API_KEY is not set; chains without CHAIN_RPC_URL_<CHAIN> will fail upstream calls")
	}

	// ============================================================================
	// Intent Configuration
	// ============================================================================
	store := strings.ToLower(getEnv("INTENT_STORE", "postgres"))
	if store != "postgres" && store != "memory" {
		return nil, fmt.Errorf("INTENT_STORE must be postgres or memory, got %q", store)
	}

	slippage := getEnvAsFloat("SWAP_SLIPPAGE", 0.05)
	if slippage <= 0 || slippage >= 0.5 {
		return nil, fmt.Errorf("SWAP_SLIPPAGE must be between 0 and 0.5, got %v", slippage)
	}

	cfg := &Config{
		AppEnv: getEnv("APP_ENV", "production"),
		Security: SecurityConfig{
			EncryptionKey:    os.Getenv("WALLET_ENCRYPTION_KEY"),
			KeyFile:          getEnv("WALLET_KEY_FILE", "wallet_key.key"),
			IntentSigningKey: os.Getenv("INTENT_SIGNING_KEY"),
		},
		Database: DatabaseConfig{
			URL:             dbURL,
			MaxConns:        getEnvAsInt("DB_MAX_CONNS", 20),
			MinConns:        getEnvAsInt("DB_MIN_CONNS", 2),
			MaxConnLifetime: getEnvAsDuration("DB_MAX_CONN_LIFETIME", 30*time.Minute),
			MaxConnIdleTime: getEnvAsDuration("DB_MAX_CONN_IDLE_TIME", 5*time.Minute),
			AutoMigrate:     getEnvAsBool("DB_AUTO_MIGRATE", true),
		},
		Redis: RedisConfig{
			Addr:     os.Getenv("REDIS_ADDR"),
			Password: os.Getenv("REDIS_PASS"),
			DB:       getEnvAsInt("REDIS_DB", 0),
		},
		Kafka: KafkaConfig{
			Brokers: parseCSVEnv("KAFKA_BROKERS"),
			Topic:   getEnv("KAFKA_TOPIC", "custody.intents"),
		},
		HTTP: HTTPConfig{
			Addr:           getEnv("HTTP_ADDR", ":8080"),
			AllowedOrigins: parseCSVEnvDefault("CORS_ALLOWED_ORIGINS", []string{"*"}),
			WriteTimeout:   getEnvAsDuration("HTTP_WRITE_TIMEOUT", 90*time.Second),
		},
		Chains: ChainsConfig{
			AlchemyAPIKey:  alchemyKey,
			RPCOverrides:   overrides,
			NoditAPIKey:    os.Getenv("NODIT_API_KEY"),
			NoditBaseURL:   os.Getenv("NODIT_BASE_URL"),
			OneInchAPIKey:  os.Getenv("ONEINCH_API_KEY"),
			OneInchBaseURL: os.Getenv("ONEINCH_BASE_URL"),
		},
		Intent: IntentConfig{
			TTL:             getEnvAsDuration("INTENT_TTL", 5*time.Minute),
			SweepInterval:   getEnvAsDuration("INTENT_SWEEP_INTERVAL", time.Minute),
			Store:           store,
			QuoteRateLimit:  getEnvAsInt("QUOTE_RATE_LIMIT", 30),
			QuoteRateWindow: getEnvAsDuration("QUOTE_RATE_WINDOW", time.Minute),
			LockTTL:         getEnvAsDuration("CONFIRM_LOCK_TTL", 2*time.Minute),
		},
		Swap: SwapConfig{
			Slippage:         slippage,
			Deadline:         getEnvAsDuration("SWAP_DEADLINE", 20*time.Minute),
			DefaultBuyAmount: getEnv("DEFAULT_BUY_AMOUNT", "0.01"),
		},
	}

	logger.Info("Configuration loaded",
		zap.String("app_env", cfg.AppEnv),
		zap.String("http_addr", cfg.HTTP.Addr),
		zap.String("intent_store", cfg.Intent.Store),
		zap.Bool("redis", cfg.Redis.Addr != ""),
		zap.Bool("kafka", len(cfg.Kafka.Brokers) > 0),
		zap.Bool("nodit", cfg.Chains.NoditAPIKey != ""),
		zap.Int("rpc_overrides", len(overrides)))

	return cfg, nil
}

// ============================================================================
// Helper Functions
// ============================================================================

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsInt64(key string, defaultValue int64) int64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseInt(valueStr, 10, 64)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsDuration accepts Go durations ("90s") or bare seconds ("90").
func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	if secs := getEnvAsInt64(key, -1); secs >= 0 {
		return time.Duration(secs) * time.Second
	}
	return defaultValue
}

func parseCSVEnv(key string) []string {
	raw := os.Getenv(key)
	if raw == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func parseCSVEnvDefault(key string, defaultValue []string) []string {
	if values := parseCSVEnv(key); len(values) > 0 {
		return values
	}
	return defaultValue
}
