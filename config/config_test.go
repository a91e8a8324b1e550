package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadDefaults(t *testing.T) {
	cfg := Load()

	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, "memory", cfg.Storage.Backend)
	assert.Equal(t, "memory", cfg.Storage.SessionBackend)
	assert.False(t, cfg.Kafka.Enabled)
	assert.Equal(t, "flat", cfg.Business.ShippingPolicy)
	assert.Equal(t, int64(500), cfg.Business.ShippingFee)
	assert.Equal(t, 30*time.Minute, cfg.Business.SessionTTL)
	assert.Equal(t, "STOREFRONT_SESSION", cfg.Business.SessionCookieName)
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("STORAGE_BACKEND", "postgres")
	t.Setenv("SESSION_BACKEND", "redis")
	t.Setenv("EVENTS_ENABLED", "true")
	t.Setenv("KAFKA_BROKERS", "k1:9092,k2:9092")
	t.Setenv("SHIPPING_POLICY", "free_over")
	t.Setenv("SHIPPING_FEE", "700")
	t.Setenv("SESSION_TTL_MINUTES", "5")
	t.Setenv("REDIS_DB", "not-a-number")

	cfg := Load()

	assert.Equal(t, "postgres", cfg.Storage.Backend)
	assert.Equal(t, "redis", cfg.Storage.SessionBackend)
	assert.True(t, cfg.Kafka.Enabled)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, "free_over", cfg.Business.ShippingPolicy)
	assert.Equal(t, int64(700), cfg.Business.ShippingFee)
	assert.Equal(t, 5*time.Minute, cfg.Business.SessionTTL)
	assert.Equal(t, 0, cfg.Redis.DB)
}
