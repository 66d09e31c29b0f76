package database

import (
	"bytes"
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/gema-grading-api/internal/config"
)

func TestConnectSQLiteLimitsConnections(t *testing.T) {
	db, err := Connect(config.DriverSQLite, "file::memory:")
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	defer sqlDB.Close()
	require.Equal(t, 1, sqlDB.Stats().MaxOpenConnections)
}

func TestConnectRejectsUnknownDriver(t *testing.T) {
	_, err := Connect("oracle", "dsn")
	require.Error(t, err)

	_, err = Connect(config.DriverPostgres, "")
	require.Error(t, err)
}

func TestConnectRedis(t *testing.T) {
	server, err := miniredis.Run()
	require.NoError(t, err)
	defer server.Close()

	var logs bytes.Buffer
	client, err := ConnectRedis(context.Background(), "redis://"+server.Addr()+"/2", zerolog.New(&logs))
	require.NoError(t, err)
	defer client.Close()
	require.Equal(t, 2, client.Options().DB)
	require.Equal(t, 3*time.Second, client.Options().DialTimeout)
	require.Contains(t, logs.String(), `"component":"redis"`)

	_, err = ConnectRedis(context.Background(), "", zerolog.Nop())
	require.Error(t, err)

	_, err = ConnectRedis(context.Background(), "://bad", zerolog.Nop())
	require.Error(t, err)

	server.Close()
	_, err = ConnectRedis(context.Background(), "redis://"+server.Addr(), zerolog.Nop())
	require.ErrorContains(t, err, "unable to connect to redis")
}
