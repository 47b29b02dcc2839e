// Package config loads viewer settings from the environment.
package config

import (
	"log"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

type (
	Config struct {
		// CacheLimit bounds the number of decoded tiles kept resident.
		CacheLimit     int           `env:"CACHE_LIMIT" envDefault:"128"`
		Workers        int           `env:"WORKERS" envDefault:"8"`
		DrainTimeout   time.Duration `env:"DRAIN_TIMEOUT" envDefault:"10s"`
		LevelThreshold float64       `env:"LEVEL_THRESHOLD" envDefault:"0"`
		HTTPTimeout    time.Duration `env:"HTTP_TIMEOUT" envDefault:"10s"`

		Logger    Logger    `envPrefix:"LOGGER_"`
		ByteCache ByteCache `envPrefix:"BYTE_CACHE_"`
		Redis     Redis     `envPrefix:"REDIS_"`
	}

	Logger struct {
		Level string `env:"LEVEL" envDefault:"info"`
	}

	ByteCache struct {
		// Backend selects the persistent tile byte cache: "" (disabled),
		// "dir", "sqlite" or "redis".
		Backend    string `env:"BACKEND" envDefault:""`
		Dir        string `env:"DIR" envDefault:""`
		SQLitePath string `env:"SQLITE_PATH" envDefault:""`
	}

	Redis struct {
		Addr     string        `env:"ADDR" envDefault:"localhost:6379"`
		Password string        `env:"PASSWORD" envDefault:""`
		DB       int           `env:"DB" envDefault:"0"`
		TTL      time.Duration `env:"TTL" envDefault:"24h"`
	}
)

// New reads configuration from DEEPZOOM_-prefixed environment variables,
// loading a .env file first when one is present.
func New() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Printf("NOTICE: .env file not found or cannot be loaded: %v\n", err)
	}

	cfg, err := env.ParseAsWithOptions[Config](env.Options{Prefix: "DEEPZOOM_"})
	if err != nil {
		return nil, err
	}

	return &cfg, nil
}
