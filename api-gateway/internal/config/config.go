package config

import (
	"github.com/caarlos0/env/v10"
	_ "github.com/joho/godotenv/autoload"
)

type Config struct {
	ServerPort      string   `env:"SERVER_PORT" envDefault:"0.0.0.0:8080"`
	AllowedOrigins  []string `env:"CORS_ALLOWED_ORIGINS" envSeparator:"," envDefault:"http://localhost:3000,http://localhost:8080"`
	AuthURL         string   `env:"AUTH_SERVICE_URL" envDefault:"http://auth-service:8000"`
	CatalogURL      string   `env:"CATALOG_SERVICE_URL" envDefault:"http://catalog-service:8003"`
	AppointmentURL  string   `env:"APPOINTMENT_SERVICE_URL" envDefault:"http://appointment-service:8001"`
	ChatURL         string   `env:"CHAT_SERVICE_URL" envDefault:"http://chat-service:8007"`
	MediaURL        string   `env:"MEDIA_SERVICE_URL" envDefault:"http://media-service:8004"`
	NotificationURL string   `env:"NOTIFICATION_SERVICE_URL" envDefault:"http://notification-service:8002"`
}

func LoadConfig() (*Config, error) {
	cfg := new(Config)
	if err := env.Parse(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}
