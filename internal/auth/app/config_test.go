package app

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/aussiebroadwan/passport/internal/auth/service"
)

func setSecrets(t *testing.T) {
	t.Helper()
	t.Setenv("AUTH_ACCESS_SECRET", strings.Repeat("a", 32))
	t.Setenv("AUTH_REFRESH_SECRET", strings.Repeat("r", 32))
}

func TestLoadConfig_Defaults(t *testing.T) {
	setSecrets(t)

	cfg, err := LoadConfig()
	require.NoError(t, err)

	require.Equal(t, "passport", cfg.Issuer)
	require.Equal(t, 15*time.Minute, cfg.AccessTTL)
	require.Equal(t, 7*24*time.Hour, cfg.RefreshTTL)
	require.Equal(t, 24*time.Hour, cfg.VerificationTTL)
	require.Equal(t, time.Hour, cfg.ResetTTL)
	require.Equal(t, uint32(19456), cfg.HashMemoryKiB)
	require.Equal(t, "sqlite", cfg.DatabaseDriver)
	require.Equal(t, "sql", cfg.SessionStore)
	require.Equal(t, "log", cfg.MailProvider)
	require.Equal(t, []string{"http://localhost:3000"}, cfg.CORSOrigins)
	require.Equal(t, service.DefaultNotifyPolicy(), cfg.NotifyPolicy())
	require.Equal(t, 8080, cfg.Port)
	require.False(t, cfg.Production())
}

func TestLoadConfig_Overrides(t *testing.T) {
	setSecrets(t)
	t.Setenv("AUTH_ACCESS_TTL", "5m")
	t.Setenv("CORS_ORIGIN", "https://a.example,https://b.example")
	t.Setenv("NOTIFY_REGISTER", "required")
	t.Setenv("NOTIFY_FORGOT_PASSWORD", "best_effort")
	t.Setenv("DATABASE_DRIVER", "postgres")
	t.Setenv("DATABASE_URL", "postgres://localhost/passport")
	t.Setenv("ENV", "prod")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	require.Equal(t, 5*time.Minute, cfg.AccessTTL)
	require.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORSOrigins)
	require.Equal(t, service.Required, cfg.NotifyRegister)
	require.Equal(t, service.BestEffort, cfg.NotifyForgotPassword)
	require.True(t, cfg.Production())
}

func TestLoadConfig_BadNotifyMode(t *testing.T) {
	setSecrets(t)
	t.Setenv("NOTIFY_RESEND", "sometimes")

	_, err := LoadConfig()
	require.Error(t, err)
}

func TestConfigValidate(t *testing.T) {
	setSecrets(t)
	base := func() Config {
		cfg, err := LoadConfig()
		require.NoError(t, err)
		return cfg
	}

	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"missing secrets", func(c *Config) { c.AccessSecret = "" }, "AUTH_ACCESS_SECRET"},
		{"weak secret", func(c *Config) { c.AccessSecret = "short" }, "token secrets"},
		{"shared secret", func(c *Config) { c.RefreshSecret = c.AccessSecret }, "token secrets"},
		{"access outlives refresh", func(c *Config) { c.AccessTTL = c.RefreshTTL }, "AUTH_ACCESS_TTL"},
		{"postgres without url", func(c *Config) { c.DatabaseDriver = "postgres" }, "DATABASE_URL"},
		{"unknown driver", func(c *Config) { c.DatabaseDriver = "mysql" }, "DATABASE_DRIVER"},
		{"redis without url", func(c *Config) { c.SessionStore = "redis" }, "REDIS_URL"},
		{"resend without key", func(c *Config) { c.MailProvider = "resend" }, "RESEND_API_KEY"},
		{"relative frontend", func(c *Config) { c.FrontendURL = "/app" }, "FRONTEND_URL"},
		{"zero argon iterations", func(c *Config) { c.HashIterations = 0 }, "argon2id"},
		{"bad port", func(c *Config) { c.Port = 70000 }, "PORT"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base()
			tt.mutate(&cfg)
			err := cfg.Validate()
			require.Error(t, err)
			require.Contains(t, err.Error(), tt.want)
		})
	}
}
