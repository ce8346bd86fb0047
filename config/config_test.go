package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadEnvDefaults(t *testing.T) {
	cfg := LoadEnv()

	assert.Equal(t, ":8080", cfg.Server.HTTPPort)
	assert.Equal(t, "postgres", cfg.Storage.Driver)
	assert.Equal(t, 30*time.Minute, cfg.Inventory.CartReservationTTL)
	assert.Equal(t, 7*24*time.Hour, cfg.Inventory.OrderReservationTTL)
	assert.Equal(t, "orders.events", cfg.Kafka.OrderTopic)
	assert.False(t, cfg.Telemetry.Enabled)
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("STORAGE_DRIVER", "memory")
	t.Setenv("CART_RESERVATION_TTL", "45m")
	t.Setenv("SWEEP_INTERVAL", "10")
	t.Setenv("SWEEP_BATCH_SIZE", "not-a-number")
	t.Setenv("KAFKA_BROKERS", "k1:9092, k2:9092,")
	t.Setenv("REDIS_ENABLED", "false")

	cfg := LoadEnv()

	assert.Equal(t, "memory", cfg.Storage.Driver)
	assert.Equal(t, 45*time.Minute, cfg.Inventory.CartReservationTTL)
	assert.Equal(t, 10*time.Second, cfg.Inventory.SweepInterval)
	assert.Equal(t, 500, cfg.Inventory.SweepBatchSize)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Kafka.Brokers)
	assert.False(t, cfg.Redis.Enabled)
}

func TestGetEnvDurationFallsBackOnGarbage(t *testing.T) {
	t.Setenv("SOME_TIMEOUT", "soon")
	assert.Equal(t, time.Minute, getEnvDuration("SOME_TIMEOUT", time.Minute))
}
