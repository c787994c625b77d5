package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadFrom_Defaults(t *testing.T) {
	cfg, err := LoadFrom(map[string]string{})
	require.NoError(t, err)

	assert.Equal(t, "rental-service", cfg.App.Name)
	assert.Equal(t, "0.0.0.0:8080", cfg.App.Addr())
	assert.Equal(t, 30*time.Second, cfg.App.RequestTimeout())
	assert.Equal(t, int32(10), cfg.Postgres.MaxConns)
	assert.True(t, cfg.Postgres.RunMigrations)
	assert.Equal(t, "127.0.0.1:6379", cfg.Redis.Addr)
	assert.Equal(t, time.Hour, cfg.Auth.AccessTokenTTL())
	assert.Equal(t, "Customer", cfg.Auth.DefaultRole)
	assert.Equal(t, uint(5), cfg.Webhook.MaxAttempts)
	assert.Equal(t, 5*time.Second, cfg.Client.ReadyTimeout)
	assert.Empty(t, cfg.Webhook.URLs)
}

func TestLoadFrom_Overrides(t *testing.T) {
	cfg, err := LoadFrom(map[string]string{
		"APP_PORT":                      "9090",
		"APP_REQUEST_TIMEOUT_SECONDS":   "0",
		"REDIS_DB":                      "3",
		"AUTH_ACCESS_TOKEN_TTL_MINUTES": "15",
		"WEBHOOK_URLS":                  "https://a.example/hook,https://b.example/hook",
		"CLIENT_READY_TIMEOUT":          "250ms",
		"CLIENT_ALLOWED_ROLES":          "Admin,Staff Trips",
	})
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0:9090", cfg.App.Addr())
	assert.Zero(t, cfg.App.RequestTimeout())
	assert.Equal(t, 3, cfg.Redis.DB)
	assert.Equal(t, 15*time.Minute, cfg.Auth.AccessTokenTTL())
	assert.Equal(t, []string{"https://a.example/hook", "https://b.example/hook"}, cfg.Webhook.URLs)
	assert.Equal(t, 250*time.Millisecond, cfg.Client.ReadyTimeout)
	assert.Equal(t, []string{"Admin", "Staff Trips"}, cfg.Client.AllowedRoles)
}

func TestLoadFrom_InvalidValue(t *testing.T) {
	_, err := LoadFrom(map[string]string{"REDIS_DB": "zero"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse env")
}
