package config

import (
	"time"

	"github.com/caarlos0/env/v10"
)

type Config struct {
	BackendURL   string        `env:"BACKEND_URL" envDefault:"http://localhost:8080/api"`
	UserID       string        `env:"USER_ID" envDefault:"demo-user"`
	Port         string        `env:"PORT" envDefault:"3000"`
	CORSOrigin   string        `env:"CORS_ORIGIN" envDefault:"*"`
	PollInterval time.Duration `env:"POLL_INTERVAL" envDefault:"30s"`
	HTTPTimeout  time.Duration `env:"HTTP_TIMEOUT" envDefault:"10s"`
	QuoteTTL     time.Duration `env:"QUOTE_TTL" envDefault:"15s"`
}

func Load() (Config, error) {
	var cfg Config
	return cfg, env.Parse(&cfg)
}
