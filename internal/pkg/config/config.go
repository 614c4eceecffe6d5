package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"
)

const (
	BackendRedis  = "redis"
	BackendMemory = "memory"
)

// Config holds all application configuration.
type Config struct {
	LogLevel             string        `env:"LOG_LEVEL" envDefault:"info"`
	HTTPAddr             string        `env:"HTTP_ADDR" envDefault:":8080"`
	MetricsAddr          string        `env:"METRICS_ADDR" envDefault:":9091"`
	StreamBackend        string        `env:"STREAM_BACKEND" envDefault:"redis"`
	RedisURL             string        `env:"REDIS_URL" envDefault:"redis://localhost:6379/0"`
	PostgresURL          string        `env:"POSTGRES_URL,required,notEmpty"`
	StreamMaxEvents      int64         `env:"STREAM_MAX_EVENTS" envDefault:"1000"`
	StreamTTL            time.Duration `env:"STREAM_TTL" envDefault:"24h"`
	PublishTimeout       time.Duration `env:"PUBLISH_TIMEOUT" envDefault:"2s"`
	SSEHeartbeatInterval time.Duration `env:"SSE_HEARTBEAT_INTERVAL" envDefault:"15s"`
	RateLimitRPS         float64       `env:"RATE_LIMIT_RPS" envDefault:"50"`
	RateLimitBurst       int           `env:"RATE_LIMIT_BURST" envDefault:"100"`
	CORSAllowedOrigins   []string      `env:"CORS_ALLOWED_ORIGINS" envDefault:"*" envSeparator:","`
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	// Attempt to load .env file for local development.
	_ = godotenv.Load()

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks values that env tags cannot express.
func (c *Config) Validate() error {
	switch c.StreamBackend {
	case BackendRedis, BackendMemory:
	default:
		return fmt.Errorf("unsupported STREAM_BACKEND %q", c.StreamBackend)
	}
	if c.StreamMaxEvents <= 0 {
		return fmt.Errorf("STREAM_MAX_EVENTS must be positive, got %d", c.StreamMaxEvents)
	}
	if c.StreamTTL <= 0 {
		return fmt.Errorf("STREAM_TTL must be positive, got %s", c.StreamTTL)
	}
	if c.RateLimitRPS <= 0 || c.RateLimitBurst <= 0 {
		return fmt.Errorf("rate limit must be positive (rps=%v, burst=%d)", c.RateLimitRPS, c.RateLimitBurst)
	}
	return nil
}
