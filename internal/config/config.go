package config

import (
	"fmt"
	"strings"

	"github.com/caarlos0/env/v11"

	"github.com/dukerupert/splitcart/internal/database"
)

// Config holds process configuration read from SPLITCART_* environment
// variables.
type Config struct {
	Port     string `env:"SPLITCART_PORT" envDefault:"8080"`
	LogLevel string `env:"SPLITCART_LOG_LEVEL" envDefault:"info"`
	BaseURL  string `env:"SPLITCART_BASE_URL"`

	DBDriver string `env:"SPLITCART_DB_DRIVER" envDefault:"sqlite"`
	DBDSN    string `env:"SPLITCART_DB_DSN" envDefault:"splitcart.db"`

	ResendAPIKey     string   `env:"SPLITCART_RESEND_API_KEY"`
	FromEmail        string   `env:"SPLITCART_FROM_EMAIL"`
	NotifyRecipients []string `env:"SPLITCART_NOTIFY_RECIPIENTS" envSeparator:","`

	GateUser         string `env:"SPLITCART_GATE_USER"`
	GatePasswordHash string `env:"SPLITCART_GATE_PASSWORD_HASH"`

	WSOriginPatterns []string `env:"SPLITCART_WS_ORIGINS" envSeparator:","`

	S3 S3
}

// S3 configures receipt archive export. Export is off unless Endpoint and
// Bucket are set.
type S3 struct {
	Endpoint  string `env:"SPLITCART_S3_ENDPOINT"`
	Bucket    string `env:"SPLITCART_S3_BUCKET"`
	Region    string `env:"SPLITCART_S3_REGION" envDefault:"us-east-1"`
	AccessKey string `env:"SPLITCART_S3_ACCESS_KEY"`
	SecretKey string `env:"SPLITCART_S3_SECRET_KEY"`
}

// Load parses the environment and validates the result.
func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	d, err := database.ParseDialect(c.DBDriver)
	if err != nil {
		return fmt.Errorf("SPLITCART_DB_DRIVER: %w", err)
	}
	c.DBDriver = string(d)
	if strings.TrimSpace(c.DBDSN) == "" {
		return fmt.Errorf("SPLITCART_DB_DSN is required")
	}

	recipients := c.NotifyRecipients[:0]
	for _, r := range c.NotifyRecipients {
		if r = strings.TrimSpace(r); r != "" {
			recipients = append(recipients, r)
		}
	}
	c.NotifyRecipients = recipients

	if (c.GateUser == "") != (c.GatePasswordHash == "") {
		return fmt.Errorf("SPLITCART_GATE_USER and SPLITCART_GATE_PASSWORD_HASH must be set together")
	}
	return nil
}

// Dialect returns the validated database dialect.
func (c Config) Dialect() database.Dialect {
	return database.Dialect(c.DBDriver)
}

// GateEnabled reports whether the basic-auth gate is configured.
func (c Config) GateEnabled() bool {
	return c.GateUser != "" && c.GatePasswordHash != ""
}
