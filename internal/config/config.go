package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	App struct {
		Name string `envconfig:"APP_NAME" default:"community-capital-api"`
		Env  string `envconfig:"ENV" default:"development"`
		Port int    `envconfig:"PORT" default:"8080"`
	}

	DatabaseURL string `envconfig:"DATABASE_URL" required:"true"`
	RedisURL    string `envconfig:"REDIS_URL" default:"redis://localhost:6379"`

	JWT struct {
		Secret string        `envconfig:"JWT_SECRET" required:"true"`
		TTL    time.Duration `envconfig:"JWT_TTL" default:"168h"`
	}

	Stripe struct {
		SecretKey    string `envconfig:"STRIPE_SECRET_KEY"`
		CardholderID string `envconfig:"STRIPE_ISSUING_CARDHOLDER_ID"`
	}

	Plaid struct {
		ClientID    string `envconfig:"PLAID_CLIENT_ID"`
		Secret      string `envconfig:"PLAID_SECRET"`
		Environment string `envconfig:"PLAID_ENV" default:"sandbox"`
	}

	Twilio struct {
		AccountSID string `envconfig:"TWILIO_ACCOUNT_SID"`
		AuthToken  string `envconfig:"TWILIO_AUTH_TOKEN"`
		FromNumber string `envconfig:"TWILIO_FROM_NUMBER"`
	}

	Worker struct {
		Concurrency       int           `envconfig:"WORKER_CONCURRENCY" default:"4"`
		ReconcileInterval time.Duration `envconfig:"WORKER_RECONCILE_INTERVAL" default:"5m"`
		ReconcileAge      time.Duration `envconfig:"WORKER_RECONCILE_AGE" default:"10m"`
	}
}

func (c *Config) IsProduction() bool {
	return c.App.Env == "production"
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process config: %w", err)
	}

	return &cfg, nil
}
