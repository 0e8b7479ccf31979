package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"golang.org/x/crypto/bcrypt"
)

const (
	EnvProduction  = "production"
	EnvDevelopment = "development"

	BackendPostgres = "postgres"
	BackendRedis    = "redis"
)

// Config holds the application settings that are not owned by the database
// or logger packages.
type Config struct {
	Env             string
	Port            string
	CookieDomain    string
	AllowedOrigin   string
	TokenBackend    string
	RedisURL        string
	BcryptCost      int
	SweepInterval   time.Duration
	ConversationTTL time.Duration
}

var ErrMissingPort = errors.New("missing required environment variable: PORT")

// Production reports whether the service runs with production cookie and CORS policy.
func (c Config) Production() bool { return c.Env == EnvProduction }

// FromEnv reads the config from environment variables. PORT is required;
// everything else falls back to a per-environment default.
func FromEnv() (Config, error) {
	env := os.Getenv("APP_ENV")
	if env != EnvProduction {
		env = EnvDevelopment
	}
	cfg := Config{
		Env:             env,
		Port:            os.Getenv("PORT"),
		TokenBackend:    BackendPostgres,
		RedisURL:        "redis://localhost:6379/0",
		BcryptCost:      11,
		SweepInterval:   10 * time.Minute,
		ConversationTTL: 24 * time.Hour,
	}
	if cfg.Production() {
		cfg.CookieDomain = "budgeteer.cf"
		cfg.AllowedOrigin = "https://budgeteer.me"
	} else {
		cfg.CookieDomain = "127.0.0.1"
		cfg.AllowedOrigin = "http://127.0.0.1:5173"
	}

	if cfg.Port == "" {
		return cfg, ErrMissingPort
	}
	if v := os.Getenv("COOKIE_DOMAIN"); v != "" {
		cfg.CookieDomain = v
	}
	if v := os.Getenv("CORS_ORIGIN"); v != "" {
		cfg.AllowedOrigin = v
	}
	if v := os.Getenv("REDIS_URL"); v != "" {
		cfg.RedisURL = v
	}
	switch v := os.Getenv("TOKEN_BACKEND"); v {
	case "":
	case BackendPostgres, BackendRedis:
		cfg.TokenBackend = v
	default:
		return cfg, fmt.Errorf("TOKEN_BACKEND: unsupported value %q", v)
	}
	if v := os.Getenv("BCRYPT_COST"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return cfg, fmt.Errorf("BCRYPT_COST: %w", err)
		}
		if n < bcrypt.MinCost || n > bcrypt.MaxCost {
			return cfg, fmt.Errorf("BCRYPT_COST must be between %d and %d", bcrypt.MinCost, bcrypt.MaxCost)
		}
		cfg.BcryptCost = n
	}
	var err error
	if cfg.SweepInterval, err = durationFromEnv("SWEEP_INTERVAL", cfg.SweepInterval); err != nil {
		return cfg, err
	}
	if cfg.ConversationTTL, err = durationFromEnv("CONVERSATION_TTL", cfg.ConversationTTL); err != nil {
		return cfg, err
	}
	if cfg.SweepInterval <= 0 {
		return cfg, errors.New("SWEEP_INTERVAL must be positive")
	}
	return cfg, nil
}

func durationFromEnv(key string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return def, fmt.Errorf("%s: %w", key, err)
	}
	return d, nil
}
