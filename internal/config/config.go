// Package config loads configuration from environment variables, optionally
// seeded from a .env file.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds every setting the server reads at startup.
type Config struct {
	Addr        string
	DatabaseURL string
	JWTSecret   string
	// Owner is the principal allowed to run AdminOnly operations. It is
	// persisted on first start and cannot change afterwards.
	Owner string
	// OwnerPassword, when set, is stored as the owner's login credential at
	// startup. The owner principal cannot be registered over HTTP.
	OwnerPassword   string
	LogLevel        string
	LogFormat       string
	AuditLogPath    string
	EnableSeed      bool
	ShutdownTimeout time.Duration
}

const defaultDSN = "gigledger.db?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"

// Load reads the environment. Files are applied in order and never
// override variables that are already set; missing files are ignored.
func Load(envFiles ...string) (Config, error) {
	for _, f := range envFiles {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, os.ErrNotExist) {
			return Config{}, fmt.Errorf("load %s: %w", f, err)
		}
	}

	timeout, err := time.ParseDuration(getenv("SHUTDOWN_TIMEOUT", "10s"))
	if err != nil {
		return Config{}, fmt.Errorf("SHUTDOWN_TIMEOUT: %w", err)
	}
	seed, err := strconv.ParseBool(getenv("ENABLE_SEED", "false"))
	if err != nil {
		return Config{}, fmt.Errorf("ENABLE_SEED: %w", err)
	}

	cfg := Config{
		Addr:            getenv("ADDR", ":8080"),
		DatabaseURL:     getenv("DATABASE_URL", defaultDSN),
		JWTSecret:       getenv("JWT_SECRET", ""),
		Owner:           getenv("OWNER_PRINCIPAL", ""),
		OwnerPassword:   getenv("OWNER_PASSWORD", ""),
		LogLevel:        getenv("LOG_LEVEL", "info"),
		LogFormat:       getenv("LOG_FORMAT", "text"),
		AuditLogPath:    getenv("AUDIT_LOG_PATH", ""),
		EnableSeed:      seed,
		ShutdownTimeout: timeout,
	}
	if cfg.Owner == "" {
		return Config{}, errors.New("OWNER_PRINCIPAL is required")
	}
	if cfg.JWTSecret == "" {
		return Config{}, errors.New("JWT_SECRET is required")
	}
	return cfg, nil
}

// getenv returns the value of the named environment variable, or fallback
// if the variable is not set or is empty.
func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
