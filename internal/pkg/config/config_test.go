package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	t.Run("Defaults", func(t *testing.T) {
		t.Setenv("POSTGRES_URL", "postgres://localhost/checks")

		cfg, err := Load()
		require.NoError(t, err)

		assert.Equal(t, "info", cfg.LogLevel)
		assert.Equal(t, BackendRedis, cfg.StreamBackend)
		assert.EqualValues(t, 1000, cfg.StreamMaxEvents)
		assert.Equal(t, 24*time.Hour, cfg.StreamTTL)
		assert.Equal(t, []string{"*"}, cfg.CORSAllowedOrigins)
	})

	t.Run("Overrides", func(t *testing.T) {
		t.Setenv("POSTGRES_URL", "postgres://localhost/checks")
		t.Setenv("STREAM_BACKEND", "memory")
		t.Setenv("STREAM_TTL", "1h")
		t.Setenv("CORS_ALLOWED_ORIGINS", "https://a.example,https://b.example")

		cfg, err := Load()
		require.NoError(t, err)

		assert.Equal(t, BackendMemory, cfg.StreamBackend)
		assert.Equal(t, time.Hour, cfg.StreamTTL)
		assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORSAllowedOrigins)
	})

	t.Run("Missing Postgres URL", func(t *testing.T) {
		t.Setenv("POSTGRES_URL", "")

		_, err := Load()
		assert.Error(t, err)
	})

	t.Run("Unknown Backend", func(t *testing.T) {
		t.Setenv("POSTGRES_URL", "postgres://localhost/checks")
		t.Setenv("STREAM_BACKEND", "kafka")

		_, err := Load()
		assert.ErrorContains(t, err, "STREAM_BACKEND")
	})
}
