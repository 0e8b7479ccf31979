package config

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"APP_ENV", "PORT", "COOKIE_DOMAIN", "CORS_ORIGIN", "TOKEN_BACKEND",
		"REDIS_URL", "BCRYPT_COST", "SWEEP_INTERVAL", "CONVERSATION_TTL",
	} {
		t.Setenv(k, "")
	}
}

func TestFromEnv_RequiresPort(t *testing.T) {
	clearEnv(t)
	_, err := FromEnv()
	assert.True(t, errors.Is(err, ErrMissingPort))
}

func TestFromEnv_DevelopmentDefaults(t *testing.T) {
	clearEnv(t)
	t.Setenv("PORT", "3000")

	cfg, err := FromEnv()
	require.NoError(t, err)
	assert.Equal(t, EnvDevelopment, cfg.Env)
	assert.False(t, cfg.Production())
	assert.Equal(t, "127.0.0.1", cfg.CookieDomain)
	assert.Equal(t, "http://127.0.0.1:5173", cfg.AllowedOrigin)
	assert.Equal(t, BackendPostgres, cfg.TokenBackend)
	assert.Equal(t, 11, cfg.BcryptCost)
	assert.Equal(t, 10*time.Minute, cfg.SweepInterval)
	assert.Equal(t, 24*time.Hour, cfg.ConversationTTL)
}

func TestFromEnv_ProductionOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("APP_ENV", "production")
	t.Setenv("PORT", "8080")
	t.Setenv("CORS_ORIGIN", "https://example.org")
	t.Setenv("TOKEN_BACKEND", "redis")
	t.Setenv("CONVERSATION_TTL", "0")
	t.Setenv("SWEEP_INTERVAL", "30s")

	cfg, err := FromEnv()
	require.NoError(t, err)
	assert.True(t, cfg.Production())
	assert.Equal(t, "budgeteer.cf", cfg.CookieDomain)
	assert.Equal(t, "https://example.org", cfg.AllowedOrigin)
	assert.Equal(t, BackendRedis, cfg.TokenBackend)
	assert.Equal(t, time.Duration(0), cfg.ConversationTTL)
	assert.Equal(t, 30*time.Second, cfg.SweepInterval)
}

func TestFromEnv_BcryptCostBounds(t *testing.T) {
	for _, v := range []string{"4", "31"} {
		clearEnv(t)
		t.Setenv("PORT", "3000")
		t.Setenv("BCRYPT_COST", v)
		_, err := FromEnv()
		assert.NoError(t, err, v)
	}
}

func TestFromEnv_Invalid(t *testing.T) {
	cases := map[string][2]string{
		"backend":   {"TOKEN_BACKEND", "mongo"},
		"cost":      {"BCRYPT_COST", "high"},
		"cost low":  {"BCRYPT_COST", "3"},
		"cost high": {"BCRYPT_COST", "40"},
		"interval":  {"SWEEP_INTERVAL", "soon"},
		"negative":  {"SWEEP_INTERVAL", "-1m"},
		"ttl":       {"CONVERSATION_TTL", "forever"},
	}
	for name, kv := range cases {
		t.Run(name, func(t *testing.T) {
			clearEnv(t)
			t.Setenv("PORT", "3000")
			t.Setenv(kv[0], kv[1])
			_, err := FromEnv()
			assert.Error(t, err)
		})
	}
}
