package config

import (
	"github.com/caarlos0/env/v10"
	_ "github.com/joho/godotenv/autoload"

	"tattoo-app/pkg/mongodb"
)

type Config struct {
	MongoDB        mongodb.Config
	ServerPort     string   `env:"SERVER_PORT" envDefault:":8004"`
	AuthServiceURL string   `env:"AUTH_SERVICE_URL" envDefault:"http://auth-service:8000"`
	CatalogURL     string   `env:"CATALOG_SERVICE_URL" envDefault:"http://catalog-service:8003"`
	AllowedOrigins []string `env:"CORS_ALLOWED_ORIGINS" envSeparator:"," envDefault:"http://localhost:3000"`

	Minio     MinioConfig
	OpenAI    OpenAIConfig
	DashScope DashScopeConfig
	Images    ImagesConfig
}

type MinioConfig struct {
	Endpoint  string `env:"MINIO_ENDPOINT" envDefault:"localhost:9000"`
	AccessKey string `env:"MINIO_ACCESS_KEY" envDefault:"minioadmin"`
	SecretKey string `env:"MINIO_SECRET_KEY" envDefault:"minioadmin"`
	Bucket    string `env:"MINIO_BUCKET" envDefault:"tattoo-media"`
	PublicURL string `env:"MINIO_PUBLIC_URL" envDefault:"http://localhost:9000"`
	UseSSL    bool   `env:"MINIO_USE_SSL" envDefault:"false"`
}

type OpenAIConfig struct {
	APIKey  string `env:"OPENAI_API_KEY"`
	BaseURL string `env:"OPENAI_BASE_URL" envDefault:"https://api.openai.com/v1"`
	Model   string `env:"OPENAI_IMAGE_MODEL" envDefault:"gpt-image-1"`
}

type DashScopeConfig struct {
	APIKey string `env:"DASHSCOPE_API_KEY"`
	// intl или cn
	Region string `env:"DASHSCOPE_REGION" envDefault:"intl"`
}

type ImagesConfig struct {
	DailyLimit        int    `env:"IMAGE_DAILY_LIMIT" envDefault:"40"`
	DefaultSize       string `env:"IMAGE_DEFAULT_SIZE" envDefault:"1024x1024"`
	DefaultBackground string `env:"IMAGE_DEFAULT_BACKGROUND" envDefault:"transparent"`
	MaxUploadBytes    int64  `env:"MAX_UPLOAD_BYTES" envDefault:"10485760"`
}

func LoadConfig() (*Config, error) {
	cfg := new(Config)
	if err := env.Parse(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}
