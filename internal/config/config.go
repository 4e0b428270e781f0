// Package config loads the elevation service configuration from the
// environment.
package config

import (
	"log"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

type (
	Config struct {
		DataDir      string    `env:"DATA_DIR" envDefault:"data" validate:"required"`
		ManifestName string    `env:"MANIFEST_NAME" envDefault:"summary.json" validate:"required"`
		MaxPoints    int       `env:"MAX_POINTS" envDefault:"50" validate:"gte=1"`
		SpatialIndex bool      `env:"SPATIAL_INDEX" envDefault:"false"`
		HTTP         HTTP      `envPrefix:"HTTP_"`
		Logger       Logger    `envPrefix:"LOGGER_"`
		Cache        Cache     `envPrefix:"CACHE_"`
		Resolver     Resolver  `envPrefix:"RESOLVER_"`
		Telemetry    Telemetry `envPrefix:"TELEMETRY_"`
		S3           S3        `envPrefix:"S3_"`
	}

	HTTP struct {
		Addr         string        `env:"ADDR" envDefault:"0.0.0.0:8000" validate:"required,hostname_port"`
		ReadTimeout  time.Duration `env:"READ_TIMEOUT" envDefault:"15s"`
		WriteTimeout time.Duration `env:"WRITE_TIMEOUT" envDefault:"60s"`
		IdleTimeout  time.Duration `env:"IDLE_TIMEOUT" envDefault:"60s"`
	}

	Logger struct {
		Level string `env:"LEVEL" envDefault:"info" validate:"oneof=debug info warn error"`
	}

	Cache struct {
		Size          int           `env:"SIZE" envDefault:"0"`
		DecodeTimeout time.Duration `env:"DECODE_TIMEOUT" envDefault:"30s"`
	}

	Resolver struct {
		Concurrency int `env:"CONCURRENCY" envDefault:"4" validate:"gte=1"`
	}

	Telemetry struct {
		Enabled      bool   `env:"ENABLED" envDefault:"false"`
		ServiceName  string `env:"SERVICE_NAME" envDefault:"elevation-api"`
		OTLPEndpoint string `env:"OTLP_ENDPOINT" envDefault:"localhost:4317" validate:"required_if=Enabled true"`
	}

	S3 struct {
		Endpoint  string `env:"ENDPOINT"`
		AccessKey string `env:"ACCESS_KEY"`
		SecretKey string `env:"SECRET_KEY"`
		UseSSL    bool   `env:"USE_SSL" envDefault:"true"`
	}
)

// New loads the configuration and validates it.
func New() (*Config, error) {
	cfg, err := Load()
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Load loads a .env file, if present, and parses the environment. The result
// is not validated, so that callers can apply overrides first.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Printf("NOTICE: .env file not found or cannot be loaded: %v\n", err)
	}

	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate validates c.
func (c *Config) Validate() error {
	return validator.New().Struct(c)
}
