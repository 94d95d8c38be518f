// Package config loads server configuration from environment variables.
package config

import (
	"fmt"

	"github.com/caarlos0/env/v11"

	"github.com/dsampson94/community-recruit/internal/score"
)

// Config holds everything the server needs to start. Fields are populated
// from environment variables via the caarlos0/env struct tags; defaults keep
// a bare `go run ./cmd/server` working for local development.
type Config struct {
	Port   int    `env:"PORT" envDefault:"8080"`
	DBPath string `env:"DB_PATH" envDefault:"data/community.db"`

	// JWTSecret signs access tokens. When empty, authenticated routes are
	// not registered and the server runs read-only plus registration.
	JWTSecret string `env:"JWT_SECRET"`

	GitHubClientID     string `env:"GITHUB_CLIENT_ID"`
	GitHubClientSecret string `env:"GITHUB_CLIENT_SECRET"`
	GitHubCallbackURL  string `env:"GITHUB_CALLBACK_URL"`

	// Mailgun credentials for the notification collaborator. When the
	// domain is empty the no-op notifier is used.
	MailgunDomain string `env:"MAILGUN_DOMAIN"`
	MailgunAPIKey string `env:"MAILGUN_SENDING_API_KEY"`
	MailgunFrom   string `env:"MAILGUN_FROM_EMAIL" envDefault:"no-reply@community-recruit.dev"`

	// Scoring weights for the leaderboard total. All default to 1, the
	// equally-weighted formula the platform launched with.
	CommitWeight  float64 `env:"SCORE_COMMIT_WEIGHT" envDefault:"1"`
	HoursWeight   float64 `env:"SCORE_HOURS_WEIGHT" envDefault:"1"`
	BreadthWeight float64 `env:"SCORE_BREADTH_WEIGHT" envDefault:"1"`
}

// Load parses the environment into a Config.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("config: parsing environment: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("config: PORT %d out of range", c.Port)
	}
	if c.CommitWeight < 0 || c.HoursWeight < 0 || c.BreadthWeight < 0 {
		return fmt.Errorf("config: scoring weights must not be negative")
	}
	return nil
}

// Weights returns the scoring weights as the score package's type.
func (c *Config) Weights() score.Weights {
	return score.Weights{
		Commit:  c.CommitWeight,
		Hours:   c.HoursWeight,
		Breadth: c.BreadthWeight,
	}
}
