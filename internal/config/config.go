// Package config loads service configuration from the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"

	"github.com/Shivanand-hulikatti/event-booking/internal/database"
)

// Supported event store backends.
const (
	StorePostgres = "postgres"
	StoreMongo    = "mongo"
	StoreMemory   = "memory"
)

// Config holds all configuration for the service.
type Config struct {
	Port  string
	Store string

	// PostgreSQL
	Postgres database.Config

	// MongoDB
	MongoURI string
	MongoDB  string

	// NATS; notifications fall back to the log when URL is empty.
	NATSURL     string
	NATSSubject string

	JWTSecret   string
	CORSOrigins []string

	LogLevel  string
	LogFormat string
}

// Load reads a .env file if present and then builds the config from
// environment variables, falling back to local-development defaults.
// Variables already set in the environment take precedence over .env.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	cfg := &Config{
		Port:  getEnv("PORT", "8080"),
		Store: strings.ToLower(getEnv("STORE", StorePostgres)),
		Postgres: database.Config{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "5432"),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", "postgres"),
			DBName:   getEnv("DB_NAME", "eventbooking"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		MongoURI:    getEnv("MONGO_URI", "mongodb://localhost:27017"),
		MongoDB:     getEnv("MONGO_DB", "eventbooking"),
		NATSURL:     os.Getenv("NATS_URL"),
		NATSSubject: getEnv("NATS_SUBJECT", "events.bookings"),
		JWTSecret:   os.Getenv("JWT_SECRET"),
		CORSOrigins: parseCSV(getEnv("CORS_ORIGINS", "*")),
		LogLevel:    getEnv("LOG_LEVEL", "info"),
		LogFormat:   getEnv("LOG_FORMAT", "json"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate reports configuration that cannot run.
func (c *Config) Validate() error {
	switch c.Store {
	case StorePostgres, StoreMongo, StoreMemory:
	default:
		return fmt.Errorf("unknown STORE %q (want postgres, mongo or memory)", c.Store)
	}
	if c.JWTSecret == "" && c.Store != StoreMemory {
		return errors.New("JWT_SECRET is required")
	}
	return nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func parseCSV(input string) []string {
	if input == "" {
		return nil
	}
	parts := strings.Split(input, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		out = append(out, part)
	}
	return out
}
