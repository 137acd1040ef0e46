package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	t.Run("Should apply defaults and env overrides", func(t *testing.T) {
		t.Setenv("LIFELINE_AUTH_SECRET", "test-secret")
		t.Setenv("LIFELINE_SERVER_PORT", "9090")
		t.Setenv("LIFELINE_DATABASE_SSL_MODE", "require")
		cfg, err := Load()
		require.NoError(t, err)
		assert.Equal(t, "test-secret", cfg.Auth.Secret)
		assert.Equal(t, 9090, cfg.Server.Port)
		assert.Equal(t, "require", cfg.Database.SSLMode)
		assert.Equal(t, "0.0.0.0", cfg.Server.Host)
		assert.Equal(t, 24*time.Hour, cfg.Auth.TokenTTL)
	})
	t.Run("Should fail without an auth secret", func(t *testing.T) {
		t.Setenv("LIFELINE_AUTH_SECRET", "")
		_, err := Load()
		assert.Error(t, err)
	})
	t.Run("Should require telegram token when enabled", func(t *testing.T) {
		t.Setenv("LIFELINE_AUTH_SECRET", "test-secret")
		t.Setenv("LIFELINE_TELEGRAM_ENABLED", "true")
		t.Setenv("LIFELINE_TELEGRAM_TOKEN", "")
		_, err := Load()
		assert.Error(t, err)
	})
}

func TestTransformEnvKey(t *testing.T) {
	t.Run("Should split section from the rest of the path", func(t *testing.T) {
		assert.Equal(t, "database.ssl_mode", transformEnvKey("LIFELINE_DATABASE_SSL_MODE"))
		assert.Equal(t, "auth.token_ttl", transformEnvKey("LIFELINE_AUTH_TOKEN_TTL"))
		assert.Equal(t, "server.port", transformEnvKey("LIFELINE_SERVER_PORT"))
	})
}

func TestDatabaseDSN(t *testing.T) {
	t.Run("Should render a pgx-compatible DSN", func(t *testing.T) {
		d := DatabaseConfig{Host: "db", Port: 5432, User: "u", Password: "p", Name: "lifeline", SSLMode: "disable"}
		assert.Equal(t, "postgres://u:p@db:5432/lifeline?sslmode=disable", d.DSN())
	})
}
