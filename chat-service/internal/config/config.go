package config

import (
	"time"

	"github.com/caarlos0/env/v10"
	_ "github.com/joho/godotenv/autoload"

	"tattoo-app/pkg/mongodb"
)

type Config struct {
	MongoDB        mongodb.Config
	ServerPort     string        `env:"SERVER_PORT" envDefault:":8007"`
	RedisURL       string        `env:"REDIS_URL" envDefault:"redis://localhost:6379/0"`
	AuthServiceURL string        `env:"AUTH_SERVICE_URL" envDefault:"http://auth-service:8000"`
	AllowedOrigins []string      `env:"CORS_ALLOWED_ORIGINS" envSeparator:"," envDefault:"http://localhost:3000"`
	LockTTL        time.Duration `env:"LOCK_TTL" envDefault:"5s"`
	LockWait       time.Duration `env:"LOCK_WAIT" envDefault:"3s"`
	// live delivery
	PollInterval time.Duration `env:"SSE_POLL_INTERVAL" envDefault:"1s"`
	MaxLifetime  time.Duration `env:"SSE_MAX_LIFETIME" envDefault:"30m"`
}

func LoadConfig() (*Config, error) {
	cfg := new(Config)
	if err := env.Parse(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}
