package config

import (
	"github.com/caarlos0/env/v10"
	_ "github.com/joho/godotenv/autoload"

	"tattoo-app/pkg/mongodb"
)

type Config struct {
	MongoDB        mongodb.Config
	RedisURL       string   `env:"REDIS_URL" envDefault:"redis://localhost:6379/0"`
	ServerPort     string   `env:"SERVER_PORT" envDefault:":8002"`
	AuthServiceURL string   `env:"AUTH_SERVICE_URL" envDefault:"http://auth-service:8000"`
	AllowedOrigins []string `env:"CORS_ALLOWED_ORIGINS" envSeparator:"," envDefault:"http://localhost:3000"`
}

// LoadConfig подгружает переменные окружения (и .env, если есть)
func LoadConfig() (*Config, error) {
	cfg := new(Config)
	if err := env.Parse(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}
