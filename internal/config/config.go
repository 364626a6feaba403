package config

import (
	"fmt"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"
)

// Config holds the environment driven configuration shared by the proxy
// server and the terminal client.
type Config struct {
	ListenAddr     string `env:"LISTEN_ADDR" envDefault:":8100"`
	BackendURL     string `env:"BACKEND_URL" envDefault:"http://localhost:8000"`
	IdentityDBPath string `env:"IDENTITY_DB_PATH" envDefault:"studymate.db"`
}

// Load reads an optional .env file and then the process environment.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse environment: %w", err)
	}
	return cfg, nil
}
