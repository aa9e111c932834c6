// Package config loads application configuration from environment
// variables, optionally seeded from a .env file for local development.
package config

import (
	"fmt"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Config holds all application configuration.
type Config struct {
	// Server
	Port     int    `envconfig:"PORT" default:"8080"`
	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`

	// CORS
	CORSOrigins []string `envconfig:"CORS_ORIGINS"`

	// HTTP client
	HTTPTimeout time.Duration `envconfig:"HTTP_TIMEOUT" default:"10s"`

	// Resilience
	MaxRetries     int           `envconfig:"MAX_RETRIES" default:"3"`
	InitialBackoff time.Duration `envconfig:"INITIAL_BACKOFF" default:"100ms"`
	MaxConcurrency int           `envconfig:"MAX_CONCURRENCY" default:"50"`

	// Filing sessions and uploads
	SessionTTL      time.Duration `envconfig:"SESSION_TTL" default:"2h"`
	UploadBatchSize int           `envconfig:"UPLOAD_BATCH_SIZE" default:"5"`
	UploadTimeout   time.Duration `envconfig:"UPLOAD_TIMEOUT" default:"30s"`

	// Observability
	OTLPEndpoint string `envconfig:"OTEL_EXPORTER_OTLP_ENDPOINT"`

	// Supabase
	SupabaseURL        string `envconfig:"SUPABASE_URL"`
	SupabaseAnonKey    string `envconfig:"SUPABASE_ANON_KEY"`
	SupabaseServiceKey string `envconfig:"SUPABASE_SERVICE_ROLE_KEY"`
	StorageBucket      string `envconfig:"STORAGE_BUCKET" default:"tax-documents"`

	// JWT / Auth
	JWTSecret    string        `envconfig:"JWT_SECRET" default:"taxfiling-default-dev-secret-change-me"`
	JWTAccessTTL time.Duration `envconfig:"JWT_ACCESS_TTL" default:"1h"`
}

// LoadDotEnv reads a .env file and sets environment variables. Missing
// files are not an error in production.
func LoadDotEnv(path string) error {
	return godotenv.Load(path)
}

// Load reads configuration from environment variables with defaults.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process config: %w", err)
	}
	return &cfg, nil
}
