package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestLoadDefaults(t *testing.T) {
	for _, key := range []string{"DATABASE_URL", "INTENT_STORE", "SWAP_SLIPPAGE", "KAFKA_BROKERS", "CORS_ALLOWED_ORIGINS", "INTENT_TTL"} {
		t.Setenv(key, "")
	}

	cfg, err := Load(zap.NewNop())
	require.NoError(t, err)
	assert.Equal(t, "postgres", cfg.Intent.Store)
	assert.Equal(t, 5*time.Minute, cfg.Intent.TTL)
	assert.Equal(t, 0.05, cfg.Swap.Slippage)
	assert.Equal(t, "0.01", cfg.Swap.DefaultBuyAmount)
	assert.Equal(t, []string{"*"}, cfg.HTTP.AllowedOrigins)
	assert.Empty(t, cfg.Kafka.Brokers)
	assert.Contains(t, cfg.Database.URL, "postgres://")
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://u:p@db:5432/custody")
	t.Setenv("INTENT_STORE", "Memory")
	t.Setenv("INTENT_TTL", "90")
	t.Setenv("SWAP_DEADLINE", "5m")
	t.Setenv("KAFKA_BROKERS", "k1:9092, k2:9092,")
	t.Setenv("CHAIN_RPC_URL_POLYGON", "http://localhost:8545")
	t.Setenv("QUOTE_RATE_LIMIT", "not-a-number")

	cfg, err := Load(zap.NewNop())
	require.NoError(t, err)
	assert.Equal(t, "postgres://u:p@db:5432/custody", cfg.Database.URL)
	assert.Equal(t, "memory", cfg.Intent.Store)
	assert.Equal(t, 90*time.Second, cfg.Intent.TTL)
	assert.Equal(t, 5*time.Minute, cfg.Swap.Deadline)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, map[string]string{"polygon": "http://localhost:8545"}, cfg.Chains.RPCOverrides)
	assert.Equal(t, 30, cfg.Intent.QuoteRateLimit)
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	t.Setenv("INTENT_STORE", "sqlite")
	_, err := Load(zap.NewNop())
	assert.Error(t, err)

	t.Setenv("INTENT_STORE", "")
	t.Setenv("SWAP_SLIPPAGE", "0.9")
	_, err = Load(zap.NewNop())
	assert.Error(t, err)
}
