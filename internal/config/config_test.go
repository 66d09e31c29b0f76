package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("GEMA_JWT_SECRET", "secret")
	t.Setenv("GEMA_DATABASE_URL", "postgres://localhost/gema")

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, DriverPostgres, cfg.DatabaseDriver)
	require.Equal(t, ":8080", cfg.HTTPAddress())
	require.Equal(t, "info", cfg.LogLevel)
	require.Equal(t, "gema:grading", cfg.NotificationChannel)
	require.Equal(t, 2, cfg.NotificationWorkers)
	require.Equal(t, 256, cfg.NotificationQueueSize)
	require.Equal(t, 30*time.Second, cfg.NotificationKeepAlive)
	require.Equal(t, 5, cfg.DisputeRateLimit)
	require.Equal(t, "*", cfg.CORSOrigins)
	require.Equal(t, time.Minute, cfg.DisputeRateWindow)
}

func TestLoadSQLiteOverrides(t *testing.T) {
	t.Setenv("GEMA_JWT_SECRET", "secret")
	t.Setenv("GEMA_DATABASE_DRIVER", "SQLite")
	t.Setenv("GEMA_APP_PORT", ":9090")
	t.Setenv("GEMA_DISPUTES_RATE_WINDOW", "10s")
	t.Setenv("GEMA_NOTIFICATIONS_WORKERS", "0")

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, DriverSQLite, cfg.DatabaseDriver)
	require.NotEmpty(t, cfg.DatabaseURL)
	require.Equal(t, ":9090", cfg.HTTPAddress())
	require.Equal(t, 10*time.Second, cfg.DisputeRateWindow)
	require.Equal(t, 2, cfg.NotificationWorkers)
}

func TestLoadRejectsInvalidConfig(t *testing.T) {
	t.Setenv("GEMA_DATABASE_URL", "postgres://localhost/gema")
	_, err := Load()
	require.ErrorContains(t, err, "jwt secret")

	t.Setenv("GEMA_JWT_SECRET", "secret")
	t.Setenv("GEMA_DATABASE_DRIVER", "mysql")
	_, err = Load()
	require.ErrorContains(t, err, "unsupported database driver")

	t.Setenv("GEMA_DATABASE_DRIVER", "postgres")
	t.Setenv("GEMA_NOTIFICATIONS_KEEPALIVE", "soon")
	_, err = Load()
	require.ErrorContains(t, err, "notifications.keepalive")
}
