package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, "shipx", cfg.DefaultCourier)
	assert.Equal(t, 3, cfg.MaxLabelAttempts)
	assert.Equal(t, "15m0s", cfg.TrackingTTL.String())
	assert.Equal(t, "memory", cfg.StoreBackend)
	assert.Equal(t, "memory", cfg.CacheBackend)
	assert.Equal(t, "shipment.events", cfg.KafkaTopic)
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("TRACKING_TTL", "5m")
	t.Setenv("STORE_BACKEND", "postgres")
	t.Setenv("KAFKA_BROKERS", "kafka-1:9092,kafka-2:9092")
	t.Setenv("ADMIN_TOKENS", "tok1:alice,tok2:bob")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Port)
	assert.Equal(t, "5m0s", cfg.TrackingTTL.String())
	assert.Equal(t, "postgres", cfg.StoreBackend)
	assert.Equal(t, []string{"kafka-1:9092", "kafka-2:9092"}, cfg.KafkaBrokers)
	assert.Equal(t, map[string]string{"tok1": "alice", "tok2": "bob"}, cfg.AdminTokens)
}
