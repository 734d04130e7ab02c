package config

import (
	"fmt"
	"log"
	"os"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

const (
	// EnvProduction represents the production environment.
	EnvProduction = "production"
)

// Config holds all application configuration, shared between the CLI and
// the development backend.
type Config struct {
	Env      string `envconfig:"ENV" default:"development"`
	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`

	// Mail backend settings (CLI side)
	APIBaseURL string `envconfig:"MAIL_API_BASE_URL" default:"http://localhost:8080"`
	Language   string `envconfig:"REPLY_LANGUAGE" default:"ja-JP"`

	// Devserver settings
	Port       string `envconfig:"PORT" default:"8080"`
	DevToken   string `envconfig:"DEV_API_TOKEN" default:"dev-token"`
	HSTSMaxAge int    `envconfig:"HSTS_MAX_AGE" default:"31536000"`
}

// LoadConfig loads configuration from a .env file and environment
// variables.
func LoadConfig() (*Config, error) {
	// .env is optional; expected to be absent in production.
	if err := godotenv.Load(); err != nil {
		if !os.IsNotExist(err) {
			log.Printf("Warning: Error loading .env file: %v", err)
		}
	}

	var config Config
	if err := envconfig.Process("", &config); err != nil {
		return nil, fmt.Errorf("failed to process environment variables: %w", err)
	}

	return &config, nil
}
