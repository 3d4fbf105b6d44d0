package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

type Config struct {
	Addr string `env:"ADDR" envDefault:":8080"`
	// DatabaseURL is a postgres DSN. When empty the server runs on the
	// in-memory store and nothing survives a restart.
	DatabaseURL  string        `env:"DATABASE_URL"`
	RestartDelay time.Duration `env:"RESTART_DELAY" envDefault:"5s"`
	StaticDir    string        `env:"STATIC_DIR" envDefault:"public"`
	DevLog       bool          `env:"DEV_LOG"`
}

// Load reads .env if present, then the environment.
func Load() (Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	return cfg, nil
}
