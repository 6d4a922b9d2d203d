package config

import (
	"time"

	"github.com/caarlos0/env/v10"
	_ "github.com/joho/godotenv/autoload"

	"tattoo-app/pkg/mongodb"
)

type Config struct {
	MongoDB         mongodb.Config
	ServerPort      string        `env:"SERVER_PORT" envDefault:":8001"`
	RedisURL        string        `env:"REDIS_URL" envDefault:"redis://localhost:6379/0"`
	AuthServiceURL  string        `env:"AUTH_SERVICE_URL" envDefault:"http://auth-service:8000"`
	CatalogURL      string        `env:"CATALOG_SERVICE_URL" envDefault:"http://catalog-service:8003"`
	AllowedOrigins  []string      `env:"CORS_ALLOWED_ORIGINS" envSeparator:"," envDefault:"http://localhost:3000"`
	LockBackend     string        `env:"LOCK_BACKEND" envDefault:"redis"`
	LockTTL         time.Duration `env:"LOCK_TTL" envDefault:"10s"`
	LockWait        time.Duration `env:"LOCK_WAIT" envDefault:"5s"`
	CompletionGrace time.Duration `env:"COMPLETION_GRACE" envDefault:"1h"`
}

func LoadConfig() (*Config, error) {
	cfg := new(Config)
	if err := env.Parse(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}
