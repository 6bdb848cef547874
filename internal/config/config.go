package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config holds the runtime configuration, loaded from the environment.
type Config struct {
	Addr              string        `env:"ADDR" envDefault:":8080"`
	DatabaseURL       string        `env:"DATABASE_URL"`
	LogLevel          string        `env:"LOG_LEVEL" envDefault:"info"`
	RatingBand        int           `env:"RATING_BAND" envDefault:"200"`
	InactivityTimeout time.Duration `env:"INACTIVITY_TIMEOUT" envDefault:"3m"`
	SweepInterval     time.Duration `env:"SWEEP_INTERVAL" envDefault:"30s"`
}

// FromEnv loads configuration from environment variables.
func FromEnv() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return cfg, fmt.Errorf("parse env: %w", err)
	}
	return cfg, nil
}
