// Package config loads FieldLog daemon configuration from the environment.
package config

import (
	"errors"
	"os"
	"time"

	"github.com/joho/godotenv"
)

// Config holds the daemon configuration.
type Config struct {
	ServerPort    string
	DataDir       string
	BackendURL    string
	BackendAPIKey string
	ProbeURL      string
	ProbeInterval time.Duration
	DrainInterval time.Duration
	CallTimeout   time.Duration
	LogLevel      string
	LogFile       string
}

// Load reads configuration from a .env file (if present) and the
// environment.
func Load() (*Config, error) {
	// A missing .env file is fine; the environment may be set directly.
	_ = godotenv.Load()

	probeInterval, err := durationEnv("PROBE_INTERVAL", "30s")
	if err != nil {
		return nil, errors.New("invalid PROBE_INTERVAL format")
	}
	drainInterval, err := durationEnv("DRAIN_INTERVAL", "5m")
	if err != nil {
		return nil, errors.New("invalid DRAIN_INTERVAL format")
	}
	callTimeout, err := durationEnv("SYNC_CALL_TIMEOUT", "15s")
	if err != nil {
		return nil, errors.New("invalid SYNC_CALL_TIMEOUT format")
	}

	cfg := &Config{
		ServerPort:    getEnv("SERVER_PORT", "8090"),
		DataDir:       getEnv("DATA_DIR", "./data"),
		BackendURL:    os.Getenv("BACKEND_URL"),
		BackendAPIKey: os.Getenv("BACKEND_API_KEY"),
		ProbeURL:      os.Getenv("PROBE_URL"),
		ProbeInterval: probeInterval,
		DrainInterval: drainInterval,
		CallTimeout:   callTimeout,
		LogLevel:      getEnv("LOG_LEVEL", "INFO"),
		LogFile:       os.Getenv("LOG_FILE"),
	}

	if cfg.BackendURL == "" {
		return nil, errors.New("BACKEND_URL is required")
	}

	return cfg, nil
}

// Helper: get env with default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// durationEnv parses a duration env var with a default.
func durationEnv(key, defaultValue string) (time.Duration, error) {
	return time.ParseDuration(getEnv(key, defaultValue))
}
