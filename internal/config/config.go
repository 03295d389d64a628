package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// DefaultEnvFiles are read, when present, before the environment is parsed.
// Variables already set in the process environment win.
var DefaultEnvFiles = []string{".env", ".env.local"}

type Config struct {
	HTTPPort           string   `env:"HTTP_PORT" envDefault:"5001"`
	PostgresDSN        string   `env:"POSTGRES_DSN"`
	TemporalAddress    string   `env:"TEMPORAL_ADDRESS" envDefault:"localhost:7233"`
	TemporalNamespace  string   `env:"TEMPORAL_NAMESPACE" envDefault:"default"`
	TemporalTaskQueue  string   `env:"TEMPORAL_TASK_QUEUE" envDefault:"property-workflow-task-queue"`
	MinioEndpoint      string   `env:"MINIO_ENDPOINT" envDefault:"localhost:9000"`
	MinioAccessKey     string   `env:"MINIO_ACCESS_KEY"`
	MinioSecretKey     string   `env:"MINIO_SECRET_KEY"`
	MinioBucket        string   `env:"MINIO_BUCKET" envDefault:"property-documents"`
	MinioUseSSL        bool     `env:"MINIO_USE_SSL" envDefault:"false"`
	WorkflowIDPrefix   string   `env:"WORKFLOW_ID_PREFIX" envDefault:"property-repair"`
	AllowedUploadBytes int64    `env:"MAX_UPLOAD_BYTES" envDefault:"52428800"`
	JWTSecret          string   `env:"JWT_SECRET"`
	CORSAllowedOrigins []string `env:"CORS_ALLOWED_ORIGINS" envDefault:"http://localhost:5174" envSeparator:","`
	LogLevel           string   `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat          string   `env:"LOG_FORMAT" envDefault:"text"`
}

func Load() (Config, error) {
	if err := loadEnvFiles(DefaultEnvFiles); err != nil {
		return Config{}, err
	}

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}

	if cfg.PostgresDSN == "" {
		return Config{}, fmt.Errorf("POSTGRES_DSN is required")
	}
	if cfg.AllowedUploadBytes <= 0 {
		return Config{}, fmt.Errorf("MAX_UPLOAD_BYTES must be positive")
	}

	return cfg, nil
}

func loadEnvFiles(files []string) error {
	existing := make([]string, 0, len(files))
	for _, file := range files {
		if _, err := os.Stat(file); err == nil {
			existing = append(existing, file)
		} else if !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("stat %s: %w", file, err)
		}
	}
	if len(existing) == 0 {
		return nil
	}
	if err := godotenv.Load(existing...); err != nil {
		return fmt.Errorf("load env files: %w", err)
	}
	return nil
}
