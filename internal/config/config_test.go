package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("HTTP_ADDR", "")
	t.Setenv("BREAKER_FAILURE_THRESHOLD", "")
	c := Load()
	assert.Equal(t, ":8081", c.HTTPAddr)
	assert.Equal(t, 3, c.BreakerFailureThreshold)
	assert.Equal(t, 30*time.Second, c.BreakerResetTimeout)
	assert.Equal(t, "order_events", c.OrderEventsTopic)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("KAFKA_BROKERS", " k1:9092, ,k2:9092 ")
	t.Setenv("BREAKER_RESET_TIMEOUT", "2s")
	t.Setenv("OUTBOX_BATCH", "not-a-number")
	t.Setenv("STORE_DRIVER", "memory")
	t.Setenv("OTEL_ENABLED", "true")
	c := Load()
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, c.KafkaBrokers)
	assert.Equal(t, 2*time.Second, c.BreakerResetTimeout)
	assert.Equal(t, 100, c.OutboxBatch)
	assert.Equal(t, "memory", c.StoreDriver)
	assert.True(t, c.OTelEnabled)
}
