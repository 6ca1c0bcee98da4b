package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

type Config struct {
	Addr           string        `env:"ADDR" envDefault:":8080"`
	DatabaseURL    string        `env:"DATABASE_URL"`
	NATSURL        string        `env:"NATS_URL"`
	AllowedOrigins []string      `env:"ALLOWED_ORIGINS" envSeparator:"," envDefault:"http://localhost:3000"`
	PickTimeLimit  time.Duration `env:"PICK_TIME_LIMIT" envDefault:"60s"`
	CompletedGrace time.Duration `env:"COMPLETED_GRACE" envDefault:"5m"`
	Debug          bool          `env:"DEBUG" envDefault:"false"`
}

// Load reads .env if present, then the environment.
func Load() (Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse environment: %w", err)
	}
	return cfg, nil
}
