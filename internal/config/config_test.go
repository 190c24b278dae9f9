package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	for _, key := range []string{"HTTP_ADDR", "DATABASE_URL", "REDIS_URL", "KAFKA_BROKER",
		"OTEL_ENDPOINT", "OTEL_AUTH_HEADER", "OPERATION_TIMEOUT", "DEFAULT_PAGE_SIZE", "MAX_PAGE_SIZE"} {
		t.Setenv(key, "")
	}

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.HTTPAddr)
	assert.Equal(t, "localhost:9092", cfg.KafkaBroker)
	assert.Equal(t, 10*time.Second, cfg.OperationTimeout)
	assert.Equal(t, 20, cfg.DefaultPageSize)
	assert.False(t, cfg.TelemetryEnabled())
	assert.Empty(t, cfg.RedisURL)
}

func TestLoadConfigOverrides(t *testing.T) {
	t.Setenv("HTTP_ADDR", ":9090")
	t.Setenv("OPERATION_TIMEOUT", "3s")
	t.Setenv("DEFAULT_PAGE_SIZE", "5")
	t.Setenv("MAX_PAGE_SIZE", "50")
	t.Setenv("OTEL_ENDPOINT", "otlp.example.com")
	t.Setenv("OTEL_AUTH_HEADER", "Basic abc")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.HTTPAddr)
	assert.Equal(t, 3*time.Second, cfg.OperationTimeout)
	assert.Equal(t, 5, cfg.DefaultPageSize)
	assert.True(t, cfg.TelemetryEnabled())
}

func TestLoadConfigRejectsBadValues(t *testing.T) {
	t.Run("endpoint without auth header", func(t *testing.T) {
		t.Setenv("OTEL_ENDPOINT", "otlp.example.com")
		t.Setenv("OTEL_AUTH_HEADER", "")
		_, err := LoadConfig()
		assert.Error(t, err)
	})

	t.Run("unparsable timeout", func(t *testing.T) {
		t.Setenv("OTEL_ENDPOINT", "")
		t.Setenv("OPERATION_TIMEOUT", "soon")
		_, err := LoadConfig()
		assert.ErrorContains(t, err, "OPERATION_TIMEOUT")
	})

	t.Run("page sizes out of order", func(t *testing.T) {
		t.Setenv("OTEL_ENDPOINT", "")
		t.Setenv("OPERATION_TIMEOUT", "")
		t.Setenv("DEFAULT_PAGE_SIZE", "50")
		t.Setenv("MAX_PAGE_SIZE", "10")
		_, err := LoadConfig()
		assert.Error(t, err)
	})
}
