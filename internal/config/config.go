package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds environment-driven settings for the REST API.
type Config struct {
	DatabaseURL  string
	Port         int
	BearerToken  string
	DefaultLimit int

	DBMaxConns         int32
	DBAcquireTimeout   time.Duration
	DBStatementTimeout time.Duration
}

// Load reads configuration from environment variables (optionally .env).
func Load() (Config, error) {
	_ = godotenv.Load() // ignore missing file

	cfg := Config{
		Port:               8080,
		DefaultLimit:       100,
		DBMaxConns:         10,
		DBAcquireTimeout:   5 * time.Second,
		DBStatementTimeout: 30 * time.Second,
	}

	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	if cfg.DatabaseURL == "" {
		return cfg, errors.New("DATABASE_URL is required")
	}

	if portStr := os.Getenv("PORT"); portStr != "" {
		if port, err := strconv.Atoi(portStr); err == nil && port > 0 {
			cfg.Port = port
		} else {
			return cfg, fmt.Errorf("invalid PORT: %s", portStr)
		}
	} else if portStr := os.Getenv("API_PORT"); portStr != "" {
		if port, err := strconv.Atoi(portStr); err == nil && port > 0 {
			cfg.Port = port
		} else {
			return cfg, fmt.Errorf("invalid API_PORT: %s", portStr)
		}
	}

	if limitStr := os.Getenv("API_DEFAULT_LIMIT"); limitStr != "" {
		if limit, err := strconv.Atoi(limitStr); err == nil && limit > 0 {
			cfg.DefaultLimit = limit
		} else {
			return cfg, fmt.Errorf("invalid API_DEFAULT_LIMIT: %s", limitStr)
		}
	}

	if connsStr := os.Getenv("DB_MAX_CONNS"); connsStr != "" {
		if conns, err := strconv.Atoi(connsStr); err == nil && conns > 0 {
			cfg.DBMaxConns = int32(conns)
		} else {
			return cfg, fmt.Errorf("invalid DB_MAX_CONNS: %s", connsStr)
		}
	}

	if timeoutStr := os.Getenv("DB_ACQUIRE_TIMEOUT"); timeoutStr != "" {
		if timeout, err := time.ParseDuration(timeoutStr); err == nil && timeout > 0 {
			cfg.DBAcquireTimeout = timeout
		} else {
			return cfg, fmt.Errorf("invalid DB_ACQUIRE_TIMEOUT: %s", timeoutStr)
		}
	}

	if timeoutStr := os.Getenv("DB_STATEMENT_TIMEOUT"); timeoutStr != "" {
		if timeout, err := time.ParseDuration(timeoutStr); err == nil && timeout > 0 {
			cfg.DBStatementTimeout = timeout
		} else {
			return cfg, fmt.Errorf("invalid DB_STATEMENT_TIMEOUT: %s", timeoutStr)
		}
	}

	cfg.BearerToken = os.Getenv("API_BEARER_TOKEN")

	return cfg, nil
}

// ListenAddr returns the host:port string for the HTTP server.
func (c Config) ListenAddr() string {
	return fmt.Sprintf(":%d", c.Port)
}
