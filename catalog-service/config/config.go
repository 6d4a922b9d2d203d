package config

import (
	"time"

	"github.com/caarlos0/env/v10"
	_ "github.com/joho/godotenv/autoload"

	"tattoo-app/pkg/mongodb"
)

// Config holds all application configuration
type Config struct {
	MongoDB     mongodb.Config
	Server      ServerConfig
	AuthService AuthServiceConfig
	Redis       RedisConfig
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Port string `env:"SERVER_PORT" envDefault:"8003"`
}

// AuthServiceConfig holds auth service configuration
type AuthServiceConfig struct {
	URL string `env:"AUTH_SERVICE_URL" envDefault:"http://auth-service:8000"`
}

// RedisConfig: TTL applies to cached design listings
type RedisConfig struct {
	URL      string        `env:"REDIS_URL" envDefault:"redis://localhost:6379/0"`
	CacheTTL time.Duration `env:"DESIGNS_CACHE_TTL" envDefault:"30s"`
}

// NewConfig creates a new Config
func NewConfig() (*Config, error) {
	cfg := new(Config)
	err := env.Parse(cfg)

	return cfg, err
}
